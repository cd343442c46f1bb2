package status

import (
	"fmt"
	"image"
	"image/draw"
	"log"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"elevator-rig-core/internal/cabin"
)

const (
	displayWidth  = 128
	displayHeight = 64
)

type cabinState struct {
	floor       cabin.Floor
	direction   cabin.Direction
	temperature float32
	hasFloor    bool
	hasTemp     bool
}

// OLED is a status.Sink backed by an SSD1306 display split into two
// vertical panes, one per cabin, redrawn with golang.org/x/image/font,
// the text-rendering stack periph.io-based display tooling favors over
// a full graphics library for a 128x64 1-bit panel.
type OLED struct {
	mu     sync.Mutex
	dev    *ssd1306.Dev
	img    *image1bit.Image
	cabins [2]cabinState
}

// NewOLED initializes the display over the given I2C bus and draws the
// boot banner (one header per cabin, divided by a vertical rule).
func NewOLED(bus i2c.Bus) (*OLED, error) {
	dev, err := ssd1306.NewI2C(bus, &ssd1306.Opts{W: displayWidth, H: displayHeight, Rotated: false})
	if err != nil {
		return nil, fmt.Errorf("status: init ssd1306: %w", err)
	}

	img, err := image1bit.New(image.Rect(0, 0, displayWidth, displayHeight))
	if err != nil {
		return nil, fmt.Errorf("status: allocate frame buffer: %w", err)
	}

	o := &OLED{dev: dev, img: img}
	o.render()
	return o, nil
}

// UpdateDirection implements Sink.
func (o *OLED) UpdateDirection(id cabin.ID, d cabin.Direction) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cabins[id].direction = d
	o.render()
}

// UpdateFloor implements Sink.
func (o *OLED) UpdateFloor(id cabin.ID, f cabin.Floor) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cabins[id].floor = f
	o.cabins[id].hasFloor = true
	o.render()
}

// UpdateTemperature implements Sink.
func (o *OLED) UpdateTemperature(id cabin.ID, celsius float32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cabins[id].temperature = celsius
	o.cabins[id].hasTemp = true
	o.render()
}

// render must be called with o.mu held. It redraws the whole frame from
// cached state and flushes it to the display; image1bit.Image's packed
// format makes partial invalidation more trouble than it is worth at
// this refresh rate, so the whole buffer is recomposed every tick.
func (o *OLED) render() {
	draw.Draw(o.img, o.img.Bounds(), image.NewUniform(image1bit.Off), image.Point{}, draw.Src)
	drawVerticalRule(o.img, displayWidth/2)

	headers := [2]string{"Cabin A", "Cabin B"}
	for i, st := range o.cabins {
		x := 2
		if i == 1 {
			x = displayWidth/2 + 2
		}

		drawText(o.img, x, 10, headers[i])
		drawText(o.img, x, 46, st.direction.String())
		if st.hasFloor {
			drawText(o.img, x, 30, "Floor "+st.floor.String())
		}
		if st.hasTemp {
			drawText(o.img, x, 62, fmt.Sprintf("%.0fC", st.temperature))
		}
	}

	if err := o.dev.Draw(o.img.Bounds(), o.img, image.Point{}); err != nil {
		log.Printf("status: oled: draw: %v", err)
	}
}

func drawText(img *image1bit.Image, x, y int, text string) {
	drawer := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(image1bit.On),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	drawer.DrawString(text)
}

func drawVerticalRule(img *image1bit.Image, x int) {
	for y := 0; y < displayHeight; y++ {
		img.Set(x, y, image1bit.On)
	}
}
