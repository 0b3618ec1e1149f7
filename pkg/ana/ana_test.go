package ana

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControllerDefaultsToOptimized(t *testing.T) {
	assert.Equal(t, Optimized, NewController().State())
}

func TestSetIsIdempotent(t *testing.T) {
	c := NewController()

	changed, err := c.Set(NonOptimized)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = c.Set(NonOptimized)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, NonOptimized, c.State())
}

func TestSetRejectsUnknownState(t *testing.T) {
	c := NewController()
	_, err := c.Set(State(9))
	require.Error(t, err)
	assert.Equal(t, Optimized, c.State())
}

func TestParseState(t *testing.T) {
	for in, want := range map[string]State{
		"optimized":     Optimized,
		"non-optimized": NonOptimized,
		"NON_OPTIMIZED": NonOptimized,
		"inaccessible":  Inaccessible,
	} {
		got, err := ParseState(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseState("change")
	assert.Error(t, err)
}

func TestTextRoundTrip(t *testing.T) {
	text, err := NonOptimized.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "non-optimized", string(text))

	var s State
	require.NoError(t, s.UnmarshalText([]byte("inaccessible")))
	assert.Equal(t, Inaccessible, s)
}
