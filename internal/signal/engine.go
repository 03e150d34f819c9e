// Package signal detects short-horizon price bursts against a rolling window
// of composite prices.
package signal

import (
	"fmt"
	"math"
)

// Signal is the ternary burst direction.
type Signal int

const (
	None Signal = iota
	Bull
	Bear
)

func (s Signal) String() string {
	switch s {
	case Bull:
		return "BULL"
	case Bear:
		return "BEAR"
	default:
		return "NONE"
	}
}

const (
	// MinWindow is the number of prices needed before a burst can be evaluated.
	MinWindow = 6
	// DefaultVolumeDecay is the weight of the previous volume estimate.
	DefaultVolumeDecay = 0.7
)

// Config configures an Engine.
type Config struct {
	ThresholdFraction float64
	WindowSize        int
	VolumeDecay       float64
}

// Validate reports whether the configuration can drive an Engine.
func (c Config) Validate() error {
	if c.ThresholdFraction <= 0 {
		return fmt.Errorf("burst threshold fraction must be positive, got %v", c.ThresholdFraction)
	}
	if c.WindowSize < MinWindow {
		return fmt.Errorf("price window must hold at least %d prices, got %d", MinWindow, c.WindowSize)
	}
	if c.VolumeDecay < 0 || c.VolumeDecay >= 1 {
		return fmt.Errorf("volume decay must be in [0,1), got %v", c.VolumeDecay)
	}
	return nil
}

// Reading is the result of one Update.
type Reading struct {
	Signal    Signal
	Latest    float64
	BurstSize float64
	// LastMove is |latest - previous|.
	LastMove float64
	Volume   float64
	// Window is a copy of the price history after the update.
	Window []float64
}

// Engine owns the rolling price window and smoothed volume of one strategy
// instance. It is not safe for concurrent use; ticks must not overlap.
type Engine struct {
	threshold float64
	history   *PriceHistory
	volume    *VolumeEstimate
}

// NewEngine builds an Engine from a validated Config.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		threshold: cfg.ThresholdFraction,
		history:   NewPriceHistory(cfg.WindowSize),
		volume:    NewVolumeEstimate(cfg.VolumeDecay),
	}, nil
}

// Seed pre-fills the price window, e.g. from recent trade prices at start-up.
func (e *Engine) Seed(prices []float64) {
	e.history.Seed(prices)
}

// History exposes the number of prices currently held.
func (e *Engine) History() int { return e.history.Len() }

// Volume returns the current smoothed volume.
func (e *Engine) Volume() float64 { return e.volume.Value() }

// Update pushes a new composite price and the latest trade volume sum, then
// classifies the window. BULL is checked before BEAR.
func (e *Engine) Update(price, windowVolume float64) Reading {
	vol := e.volume.Update(windowVolume)
	e.history.Push(price)

	window := e.history.Values()
	r := Reading{
		Signal:    None,
		Latest:    price,
		BurstSize: price * e.threshold,
		Volume:    vol,
		Window:    window,
	}
	if len(window) < MinWindow {
		return r
	}
	r.LastMove = math.Abs(window[len(window)-1] - window[len(window)-2])
	r.Signal = Classify(window, r.BurstSize)
	return r
}

// Classify evaluates the burst conditions on a window (oldest first) whose
// last element is the latest price.
func Classify(window []float64, burstSize float64) Signal {
	n := len(window)
	if n < MinWindow {
		return None
	}
	latest := window[n-1]
	prev := window[n-2]
	recent := window[n-6 : n-1] // five prices before latest
	older := window[n-6 : n-2]  // the same minus the previous price

	if latest-maxOf(recent) > burstSize ||
		(latest-maxOf(older) > burstSize && latest > prev) {
		return Bull
	}
	if latest-minOf(recent) < -burstSize ||
		(latest-minOf(older) < -burstSize && latest < prev) {
		return Bear
	}
	return None
}

// PriorExtremes returns max and min of the window excluding its last two prices,
// restricted to the burst lookback.
func PriorExtremes(window []float64) (hi, lo float64, ok bool) {
	n := len(window)
	if n < MinWindow {
		return 0, 0, false
	}
	older := window[n-6 : n-2]
	return maxOf(older), minOf(older), true
}

func maxOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

func minOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}
