// Package burst sizes momentum orders after a price burst, shrinking the base
// quantity through a fixed chain of multiplicative dampeners.
package burst

import (
	"fmt"

	"quant-trade-bot-go/internal/market"
	"quant-trade-bot-go/internal/signal"

	"go.uber.org/zap"
)

const (
	balanceDiscount  = 0.99
	coldStartFactor  = 0.8
	unconfirmedScale = 0.9
	volatilityFactor = 0.9
	slippageFactor   = 0.99

	DefaultMaxSlippageSteps = 50
)

// coldStartRounds: each threshold the round count is still below applies coldStartFactor once.
var coldStartRounds = []int{5, 10}

// volatilityMultiples of the burst size. Every multiple crossed by the last
// price move, and separately by the spread, applies volatilityFactor once.
var volatilityMultiples = []float64{2, 3, 4}

// Config configures a Sizer.
type Config struct {
	// VolumeFloor is the smoothed volume at or below which size is scaled by volume/floor.
	VolumeFloor float64
	// MinQuantity suppresses orders smaller than this base quantity.
	MinQuantity float64
	// SlippageStep is the adverse quote move that costs one slippage penalty.
	SlippageStep float64
	// MaxSlippageSteps bounds the slippage penalty loop.
	MaxSlippageSteps int
}

// Validate checks the sizer configuration.
func (c Config) Validate() error {
	if c.VolumeFloor <= 0 {
		return fmt.Errorf("burst volume floor must be positive, got %v", c.VolumeFloor)
	}
	if c.MinQuantity < 0 {
		return fmt.Errorf("burst min quantity must not be negative, got %v", c.MinQuantity)
	}
	if c.SlippageStep <= 0 {
		return fmt.Errorf("slippage step must be positive, got %v", c.SlippageStep)
	}
	if c.MaxSlippageSteps <= 0 {
		return fmt.Errorf("max slippage steps must be positive, got %d", c.MaxSlippageSteps)
	}
	return nil
}

// Factor is one applied dampener.
type Factor struct {
	Name  string
	Value float64
}

// Input is everything the sizer reads for one decision.
type Input struct {
	Pair    market.Pair
	Reading signal.Reading
	Book    market.OrderBook
	// QuoteAvailable funds a BULL entry, BaseAvailable a BEAR exit.
	QuoteAvailable float64
	BaseAvailable  float64
}

// Result describes one sizing decision.
type Result struct {
	Intent  market.OrderIntent
	OK      bool
	Round   int
	Base    float64
	Factors []Factor
	Reason  string
}

// Multiplier is the product of all applied factors.
func (r Result) Multiplier() float64 {
	m := 1.0
	for _, f := range r.Factors {
		m *= f.Value
	}
	return m
}

// Sizer owns the observation round counter of one strategy instance.
type Sizer struct {
	cfg    Config
	rounds int
	logger *zap.Logger
}

// NewSizer validates cfg and returns a Sizer.
func NewSizer(cfg Config, logger *zap.Logger) (*Sizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Sizer{cfg: cfg, logger: logger.Named("burst-sizer")}, nil
}

// Observe counts one observation round and returns the new count.
func (s *Sizer) Observe() int {
	s.rounds++
	return s.rounds
}

// Rounds returns the rounds observed since the last sizing decision.
func (s *Sizer) Rounds() int { return s.rounds }

// Size turns a burst reading into a dampened intent. Any call with a BULL or
// BEAR reading counts as a sizing decision and resets the round counter,
// whether or not an intent is produced.
func (s *Sizer) Size(in Input) Result {
	res := Result{Round: s.rounds}
	sig := in.Reading.Signal
	if sig == signal.None {
		res.Reason = "no burst"
		return res
	}
	defer func() { s.rounds = 0 }()

	l := s.logger.With(zap.String("pair", in.Pair.String()), zap.Stringer("signal", sig), zap.Int("round", res.Round))

	bid, ask := in.Book.BestBid(), in.Book.BestAsk()
	if bid <= 0 || ask <= 0 {
		res.Reason = "empty book"
		l.Info("No top of book, burst order suppressed")
		return res
	}

	intent := market.OrderIntent{Pair: in.Pair, Purpose: market.PurposeBurstEntry}
	if sig == signal.Bull {
		intent.Side = market.SideBuy
		intent.Price = bid
		res.Base = in.QuoteAvailable / bid * balanceDiscount
	} else {
		intent.Side = market.SideSell
		intent.Price = ask
		res.Base = in.BaseAvailable
	}
	if res.Base <= 0 {
		res.Reason = "no available balance"
		l.Info("Burst detected but no balance available")
		return res
	}

	res.Factors = s.dampeners(sig, res.Round, in)
	intent.Quantity = res.Base * res.Multiplier()
	res.Intent = intent

	if intent.Quantity < s.cfg.MinQuantity {
		res.Reason = "below min quantity"
		l.Debug("Burst order below minimum quantity, suppressed",
			zap.Float64("quantity", intent.Quantity), zap.Float64("min_quantity", s.cfg.MinQuantity))
		return res
	}

	res.OK = true
	l.Info("Burst order sized",
		zap.Float64("base_quantity", res.Base),
		zap.Float64("multiplier", res.Multiplier()),
		zap.Float64("quantity", intent.Quantity))
	return res
}

// dampeners builds the factor chain in its fixed order: volume, cold start,
// confirmation, price volatility, spread volatility.
func (s *Sizer) dampeners(sig signal.Signal, round int, in Input) []Factor {
	var factors []Factor
	r := in.Reading

	if r.Volume <= s.cfg.VolumeFloor {
		factors = append(factors, Factor{Name: "low_volume", Value: r.Volume / s.cfg.VolumeFloor})
	}

	for _, threshold := range coldStartRounds {
		if round < threshold {
			factors = append(factors, Factor{Name: fmt.Sprintf("cold_start_%d", threshold), Value: coldStartFactor})
		}
	}

	if hi, lo, ok := signal.PriorExtremes(r.Window); ok {
		if (sig == signal.Bull && r.Latest < hi) || (sig == signal.Bear && r.Latest > lo) {
			factors = append(factors, Factor{Name: "unconfirmed", Value: unconfirmedScale})
		}
	}

	spread := in.Book.Spread()
	for _, m := range volatilityMultiples {
		if r.LastMove > m*r.BurstSize {
			factors = append(factors, Factor{Name: fmt.Sprintf("move_%gx", m), Value: volatilityFactor})
		}
	}
	for _, m := range volatilityMultiples {
		if spread > m*r.BurstSize {
			factors = append(factors, Factor{Name: fmt.Sprintf("spread_%gx", m), Value: volatilityFactor})
		}
	}
	return factors
}

// PenalizeSlippage shrinks a sized intent by slippageFactor for every
// SlippageStep the pressure quotes moved against it between the sizing
// snapshot and a re-sample. The loop is capped at MaxSlippageSteps. It reports
// false when the penalised quantity falls under MinQuantity.
func (s *Sizer) PenalizeSlippage(intent market.OrderIntent, before, after market.Quotes) (market.OrderIntent, int, bool) {
	steps := 0
	switch intent.Side {
	case market.SideBuy:
		ref := before.Bid
		for after.Bid-ref > s.cfg.SlippageStep && steps < s.cfg.MaxSlippageSteps {
			intent.Quantity *= slippageFactor
			ref += s.cfg.SlippageStep
			steps++
		}
	case market.SideSell:
		ref := before.Ask
		for after.Ask-ref < -s.cfg.SlippageStep && steps < s.cfg.MaxSlippageSteps {
			intent.Quantity *= slippageFactor
			ref -= s.cfg.SlippageStep
			steps++
		}
	}
	if steps > 0 {
		s.logger.Debug("Book moved while sizing, quantity penalised",
			zap.String("side", string(intent.Side)), zap.Int("steps", steps), zap.Float64("quantity", intent.Quantity))
	}
	return intent, steps, intent.Quantity >= s.cfg.MinQuantity
}
