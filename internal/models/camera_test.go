package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResolution(t *testing.T) {
	res, err := ParseResolution("1920x1080")
	require.NoError(t, err)
	assert.Equal(t, Resolution{Width: 1920, Height: 1080}, res)

	res, err = ParseResolution("")
	require.NoError(t, err)
	assert.Equal(t, "1280x720", res.String())

	res, err = ParseResolution("640X480")
	require.NoError(t, err)
	assert.Equal(t, Resolution{Width: 640, Height: 480}, res)

	for _, bad := range []string{"huge", "0x480", "-640x480", "640x", "x480"} {
		_, err := ParseResolution(bad)
		assert.Error(t, err, bad)
	}
}

func TestCollectionStatePhase(t *testing.T) {
	assert.Equal(t, PhaseIdle, CollectionState{}.Phase())
	assert.Equal(t, PhaseRunning, CollectionState{Active: true}.Phase())
	assert.Equal(t, PhasePaused, CollectionState{Active: true, Paused: true}.Phase())
	// A stale paused flag without an active campaign still reads as idle.
	assert.Equal(t, PhaseIdle, CollectionState{Paused: true}.Phase())
}
