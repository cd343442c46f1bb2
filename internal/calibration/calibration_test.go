package calibration

import (
	"os"
	"path/filepath"
	"testing"

	"elevator-rig-core/internal/cabin"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	want := cabin.FloorPositions{Ground: 0, First: 10500, Second: 21200, Third: 31800}
	path := filepath.Join(t.TempDir(), "cabin-a.bin")

	require.NoError(t, Save(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadRejectsWrongLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.bin")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.bin"))
	assert.Error(t, err)
}

func TestFloorPositionsOrderedProperty(t *testing.T) {
	ordered := cabin.FloorPositions{Ground: 0, First: 100, Second: 200, Third: 300}
	assert.True(t, ordered.Ordered())

	unordered := cabin.FloorPositions{Ground: 0, First: 100, Second: 90, Third: 300}
	assert.False(t, unordered.Ordered())
}
