package signal

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, window int) *Engine {
	t.Helper()
	e, err := NewEngine(Config{ThresholdFraction: 0.001, WindowSize: window, VolumeDecay: DefaultVolumeDecay})
	require.NoError(t, err)
	return e
}

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		name        string
		cfg         Config
		expectError bool
	}{
		{name: "Valid", cfg: Config{ThresholdFraction: 0.001, WindowSize: 15, VolumeDecay: 0.7}},
		{name: "Zero threshold", cfg: Config{ThresholdFraction: 0, WindowSize: 15, VolumeDecay: 0.7}, expectError: true},
		{name: "Window too short", cfg: Config{ThresholdFraction: 0.001, WindowSize: 5, VolumeDecay: 0.7}, expectError: true},
		{name: "Decay of one", cfg: Config{ThresholdFraction: 0.001, WindowSize: 15, VolumeDecay: 1}, expectError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEngine_Update_BullBurst(t *testing.T) {
	e := newTestEngine(t, 6)
	e.Seed([]float64{100, 101, 100, 99, 100, 100})

	r := e.Update(105, 0)

	assert.Equal(t, Bull, r.Signal)
	assert.InDelta(t, 0.105, r.BurstSize, 1e-12)
	assert.InDelta(t, 5.0, r.LastMove, 1e-12)
	assert.Equal(t, []float64{101, 100, 99, 100, 100, 105}, r.Window)
}

func TestEngine_Update_BearBurst(t *testing.T) {
	e := newTestEngine(t, 15)
	e.Seed([]float64{100, 99, 100, 101, 100, 100})

	r := e.Update(95, 0)

	assert.Equal(t, Bear, r.Signal)
	assert.Len(t, r.Window, 7)
}

func TestEngine_Update_InsufficientHistory(t *testing.T) {
	e := newTestEngine(t, 15)
	e.Seed([]float64{100, 100, 100, 100})

	r := e.Update(120, 0)

	assert.Equal(t, None, r.Signal)
	assert.Equal(t, 5, e.History())
}

func TestClassify_SecondaryConfirmationPath(t *testing.T) {
	// The previous tick already jumped, so the five-price max is poisoned, but
	// the latest tick is still rising and well clear of the older window.
	window := []float64{100, 100, 100, 100, 102, 102.05}
	assert.Equal(t, Bull, Classify(window, 102.05*0.001))

	mirror := []float64{100, 100, 100, 100, 98, 97.95}
	assert.Equal(t, Bear, Classify(mirror, 97.95*0.001))

	// Latest falls back below the previous tick: neither path confirms.
	stalled := []float64{100, 100, 100, 100, 103, 102}
	assert.Equal(t, None, Classify(stalled, 102*0.001))
}

func TestClassify_NeverBothDirections(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 5000; i++ {
		window := make([]float64, 6+rng.Intn(10))
		for j := range window {
			window[j] = 100 + rng.NormFloat64()
		}
		burst := window[len(window)-1] * 0.001

		if Classify(window, burst) == Bull {
			// Re-evaluate the bear conditions directly; they must not hold.
			n := len(window)
			latest, prev := window[n-1], window[n-2]
			bear := latest-minOf(window[n-6:n-1]) < -burst ||
				(latest-minOf(window[n-6:n-2]) < -burst && latest < prev)
			assert.False(t, bear, "window %v satisfied both directions", window)
		}
	}
}

func TestPriorExtremes(t *testing.T) {
	hi, lo, ok := PriorExtremes([]float64{1, 5, 2, 3, 4, 9, 0})
	require.True(t, ok)
	assert.Equal(t, 5.0, hi)
	assert.Equal(t, 2.0, lo)

	_, _, ok = PriorExtremes([]float64{1, 2})
	assert.False(t, ok)
}

func TestPriceHistory_EvictsOldest(t *testing.T) {
	h := NewPriceHistory(3)
	for _, p := range []float64{1, 2, 3, 4, 5} {
		h.Push(p)
	}
	assert.Equal(t, []float64{3, 4, 5}, h.Values())
	assert.Equal(t, 3, h.Capacity())

	h.Seed([]float64{9, 9, 9})
	assert.Equal(t, []float64{3, 4, 5}, h.Values(), "seed must not overwrite a live window")
}

func TestVolumeEstimate(t *testing.T) {
	v := NewVolumeEstimate(0.7)
	assert.InDelta(t, 3.0, v.Update(10), 1e-12)
	assert.InDelta(t, 0.7*3.0+0.3*20, v.Update(20), 1e-12)

	before := v.Value()
	v.Update(-50)
	assert.InDelta(t, 0.7*before, v.Value(), 1e-12)
	assert.GreaterOrEqual(t, v.Value(), 0.0)
}

func TestEngine_Update_SmoothsVolume(t *testing.T) {
	e := newTestEngine(t, 15)
	e.Update(100, 10)
	r := e.Update(100, 10)
	assert.InDelta(t, 0.7*3+3, r.Volume, 1e-12)
	assert.InDelta(t, r.Volume, e.Volume(), 1e-12)
}

func TestSignal_String(t *testing.T) {
	assert.Equal(t, "BULL", Bull.String())
	assert.Equal(t, "BEAR", Bear.String())
	assert.Equal(t, "NONE", None.String())
}
