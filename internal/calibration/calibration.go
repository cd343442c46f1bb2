// Package calibration runs the per-cabin floor-position learning sequence
// and persists its result to disk: seek to the lowest point, then capture
// each floor's sensor rising edge and falling edge and average the two
// encoder readings into that floor's position.
package calibration

import (
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"elevator-rig-core/internal/cabin"
	"elevator-rig-core/internal/engine"
	"elevator-rig-core/internal/link"
	"elevator-rig-core/internal/sensor"
)

// seekPotency is the duty used to drive down to the lowest point before
// calibration starts; floorPotency is the slower creep used while hunting
// for each floor's sensor edges.
const (
	seekPotency  = 1.0
	floorPotency = 0.10
	pollInterval = 100 * time.Millisecond
)

// Run drives the cabin down to its lowest point, then up through each
// floor's sensor band in order, recording the encoder position at both the
// rising and falling edge of each floor's sensor and averaging the two into
// that floor's calibrated position. It blocks until done; the supervisor
// calls it synchronously during startup.
func Run(l *link.Link, eng *engine.Engine, bank *sensor.Bank, id cabin.ID) (cabin.FloorPositions, error) {
	encoder := id.Encoder()

	if err := eng.SetDirection(cabin.Down); err != nil {
		return cabin.FloorPositions{}, err
	}
	if err := eng.SetPotency(seekPotency); err != nil {
		return cabin.FloorPositions{}, err
	}

	for {
		pos, err := l.GetEncoderValue(encoder)
		if err != nil {
			return cabin.FloorPositions{}, err
		}
		if pos <= 0 {
			break
		}
		time.Sleep(pollInterval)
	}

	if err := eng.Stop(); err != nil {
		return cabin.FloorPositions{}, err
	}

	var fp cabin.FloorPositions
	for _, floor := range cabin.Floors {
		pos, err := calibrateFloor(l, eng, bank, encoder, floor)
		if err != nil {
			return cabin.FloorPositions{}, err
		}
		fp.Set(floor, pos)
	}

	if !fp.Ordered() {
		return fp, fmt.Errorf("calibration: floor positions not ascending: %+v", fp)
	}

	return fp, nil
}

func calibrateFloor(l *link.Link, eng *engine.Engine, bank *sensor.Bank, encoder cabin.EncoderID, floor cabin.Floor) (int32, error) {
	if err := eng.SetDirection(cabin.Up); err != nil {
		return 0, err
	}
	if err := eng.SetPotency(floorPotency); err != nil {
		return 0, err
	}

	for bank.Low(floor) {
		time.Sleep(pollInterval)
	}

	if err := eng.Stop(); err != nil {
		return 0, err
	}

	rising, err := l.GetEncoderValue(encoder)
	if err != nil {
		return 0, err
	}

	if err := eng.SetDirection(cabin.Up); err != nil {
		return 0, err
	}
	if err := eng.SetPotency(floorPotency); err != nil {
		return 0, err
	}

	for bank.High(floor) {
		time.Sleep(pollInterval)
	}

	if err := eng.Stop(); err != nil {
		return 0, err
	}

	falling, err := l.GetEncoderValue(encoder)
	if err != nil {
		return 0, err
	}

	return (rising + falling) / 2, nil
}

// Load reads a persisted FloorPositions record: four little-endian int32
// values in cabin.Floors order.
func Load(path string) (cabin.FloorPositions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cabin.FloorPositions{}, fmt.Errorf("calibration: read %s: %w", path, err)
	}
	if len(data) != 16 {
		return cabin.FloorPositions{}, fmt.Errorf("calibration: %s: invalid length %d, want 16", path, len(data))
	}

	var fp cabin.FloorPositions
	for i, floor := range cabin.Floors {
		fp.Set(floor, int32(binary.LittleEndian.Uint32(data[i*4:])))
	}
	return fp, nil
}

// Save persists a FloorPositions record in the same layout Load expects.
func Save(path string, fp cabin.FloorPositions) error {
	data := make([]byte, 16)
	for i, floor := range cabin.Floors {
		binary.LittleEndian.PutUint32(data[i*4:], uint32(fp.At(floor)))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("calibration: write %s: %w", path, err)
	}
	return nil
}
