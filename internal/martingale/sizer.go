// Package martingale plans take-profit and add-on orders for an open position.
//
// The add-on quantity is always |amount| * Multiple, so exposure grows
// geometrically with every filled add-on. Without MaxAddOnRounds or
// MaxAddOnNotional set this growth is unbounded.
package martingale

import (
	"fmt"
	"math"
	"sort"

	"quant-trade-bot-go/internal/market"

	"go.uber.org/zap"
)

// Tier maps an add-on notional threshold to a grid step multiplier.
type Tier struct {
	MinNotional float64
	Multiplier  float64
}

// DefaultTiers widen the grid as the add-on notional grows.
var DefaultTiers = []Tier{
	{MinNotional: 0, Multiplier: 1},
	{MinNotional: 100, Multiplier: 1.5},
	{MinNotional: 500, Multiplier: 2},
	{MinNotional: 2000, Multiplier: 3},
}

// Config configures a Sizer.
type Config struct {
	Multiple           float64
	TakeProfitFraction float64
	GridStepFraction   float64
	// EntryNotional is the quote amount of the opening order.
	EntryNotional float64
	MinQuantity   float64
	GridTiers     []Tier
	// MaxAddOnRounds and MaxAddOnNotional cap compounding; zero disables a cap.
	MaxAddOnRounds   int
	MaxAddOnNotional float64
}

// Validate checks the configuration, including tier monotonicity.
func (c Config) Validate() error {
	if c.Multiple <= 0 {
		return fmt.Errorf("martingale multiple must be positive, got %v", c.Multiple)
	}
	if c.TakeProfitFraction <= 0 || c.TakeProfitFraction >= 1 {
		return fmt.Errorf("take profit fraction must be within (0,1), got %v", c.TakeProfitFraction)
	}
	if c.GridStepFraction < 0 || c.GridStepFraction >= 1 {
		return fmt.Errorf("grid step fraction must be within [0,1), got %v", c.GridStepFraction)
	}
	if c.EntryNotional <= 0 {
		return fmt.Errorf("entry notional must be positive, got %v", c.EntryNotional)
	}
	if c.MinQuantity < 0 {
		return fmt.Errorf("min quantity must not be negative, got %v", c.MinQuantity)
	}
	if c.MaxAddOnRounds < 0 || c.MaxAddOnNotional < 0 {
		return fmt.Errorf("add-on caps must not be negative")
	}
	for i, t := range c.GridTiers {
		if t.Multiplier <= 0 {
			return fmt.Errorf("grid tier %d multiplier must be positive, got %v", i, t.Multiplier)
		}
		if i > 0 {
			prev := c.GridTiers[i-1]
			if t.MinNotional <= prev.MinNotional || t.Multiplier < prev.Multiplier {
				return fmt.Errorf("grid tiers must be ordered by notional with non-decreasing multipliers (tier %d)", i)
			}
		}
	}
	// The grid must never push the add-on price to zero or beyond.
	if c.GridStepFraction*c.GridMultiplier(math.MaxFloat64) >= 1 {
		return fmt.Errorf("grid step %v times the largest tier multiplier reaches 100%%", c.GridStepFraction)
	}
	return nil
}

// GridMultiplier is a step function of the add-on notional: the multiplier of
// the highest tier whose threshold the notional reaches, or 1 below all tiers.
func (c Config) GridMultiplier(notional float64) float64 {
	i := sort.Search(len(c.GridTiers), func(i int) bool { return c.GridTiers[i].MinNotional > notional })
	if i == 0 {
		return 1
	}
	return c.GridTiers[i-1].Multiplier
}

// Input is the per-tick view of one pair.
type Input struct {
	Pair     market.Pair
	Position market.Position
	BestBid  float64
	BestAsk  float64
}

// Plan is either an Entry, or a TakeProfit with an optional AddOn.
type Plan struct {
	Entry      *market.OrderIntent
	TakeProfit *market.OrderIntent
	AddOn      *market.OrderIntent
	Round      int
	// GridMultiplier applied to the add-on price offset.
	GridMultiplier float64
	// Capped is set when a safety cap removed the add-on.
	Capped bool
}

// Intents flattens the plan in submission order.
func (p Plan) Intents() []market.OrderIntent {
	var out []market.OrderIntent
	for _, i := range []*market.OrderIntent{p.Entry, p.TakeProfit, p.AddOn} {
		if i != nil {
			out = append(out, *i)
		}
	}
	return out
}

// addOnFillRatio is the share of a planned add-on that must have filled for
// the round to count. It absorbs quantization of the submitted quantity.
const addOnFillRatio = 0.9

// Sizer owns the add-on round counter of one strategy instance.
type Sizer struct {
	cfg        Config
	round      int
	lastAmount float64
	// roundBase is the position size the current add-on was planned from.
	roundBase float64
	logger    *zap.Logger
}

// NewSizer validates cfg and returns a Sizer.
func NewSizer(cfg Config, logger *zap.Logger) (*Sizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Sizer{cfg: cfg, logger: logger.Named("martingale-sizer")}, nil
}

// Observe updates the round counter from the latest position snapshot. A
// round counts once the position has grown by the planned add-on of
// roundBase*Multiple, so partial fills of one add-on order count once. A
// shrinking position lowers roundBase and a flat or flipped one starts over.
func (s *Sizer) Observe(pos market.Position) int {
	size := math.Abs(pos.Amount)
	switch {
	case size == 0 || s.roundBase == 0 || (pos.Amount > 0) != (s.lastAmount > 0):
		s.round = 0
		s.roundBase = size
	case size-s.roundBase >= s.roundBase*s.cfg.Multiple*addOnFillRatio:
		s.round++
		s.roundBase = size
	case size < s.roundBase:
		s.roundBase = size
	}
	s.lastAmount = pos.Amount
	return s.round
}

// Round returns the number of add-ons filled on the current position.
func (s *Sizer) Round() int { return s.round }

// Plan computes the orders for one tick.
func (s *Sizer) Plan(in Input) Plan {
	plan := Plan{Round: s.round}
	l := s.logger.With(zap.String("pair", in.Pair.String()), zap.Int("round", s.round))

	if in.BestBid <= 0 || in.BestAsk <= 0 {
		l.Info("No top of book, skipping")
		return plan
	}

	pos := in.Position
	if pos.IsFlat() {
		qty := s.cfg.EntryNotional / in.BestBid
		if qty < s.cfg.MinQuantity {
			l.Debug("Entry below minimum quantity, suppressed", zap.Float64("quantity", qty))
			return plan
		}
		plan.Entry = &market.OrderIntent{
			Pair:     in.Pair,
			Side:     market.SideBuy,
			Price:    in.BestBid,
			Quantity: qty,
			Purpose:  market.PurposeEntry,
		}
		return plan
	}

	if pos.EntryPrice <= 0 {
		l.Info("Position has no entry price, skipping", zap.Float64("amount", pos.Amount))
		return plan
	}

	size := math.Abs(pos.Amount)
	addQty := size * s.cfg.Multiple
	plan.GridMultiplier = s.cfg.GridMultiplier(addQty * pos.EntryPrice)
	offset := s.cfg.GridStepFraction * plan.GridMultiplier

	tp := &market.OrderIntent{Pair: in.Pair, Quantity: size, Purpose: market.PurposeTakeProfit}
	add := &market.OrderIntent{Pair: in.Pair, Quantity: addQty, Purpose: market.PurposeAddOn}
	if pos.IsLong() {
		tp.Side = market.SideSell
		tp.Price = math.Max(pos.EntryPrice*(1+s.cfg.TakeProfitFraction), in.BestAsk)
		add.Side = market.SideBuy
		add.Price = math.Min(pos.EntryPrice*(1-offset), in.BestBid)
	} else {
		tp.Side = market.SideBuy
		tp.Price = math.Min(pos.EntryPrice*(1-s.cfg.TakeProfitFraction), in.BestBid)
		add.Side = market.SideSell
		add.Price = math.Max(pos.EntryPrice*(1+offset), in.BestAsk)
	}

	if tp.Quantity >= s.cfg.MinQuantity {
		plan.TakeProfit = tp
	}

	switch {
	case s.cfg.MaxAddOnRounds > 0 && s.round >= s.cfg.MaxAddOnRounds:
		plan.Capped = true
		l.Warn("Add-on round cap reached, not adding to position", zap.Int("max_rounds", s.cfg.MaxAddOnRounds))
	case s.cfg.MaxAddOnNotional > 0 && add.Notional() > s.cfg.MaxAddOnNotional:
		plan.Capped = true
		l.Warn("Add-on notional cap reached, not adding to position",
			zap.Float64("notional", add.Notional()), zap.Float64("max_notional", s.cfg.MaxAddOnNotional))
	case add.Quantity < s.cfg.MinQuantity:
		l.Debug("Add-on below minimum quantity, suppressed", zap.Float64("quantity", add.Quantity))
	default:
		plan.AddOn = add
	}

	l.Info("Martingale plan",
		zap.Float64("amount", pos.Amount),
		zap.Float64("entry_price", pos.EntryPrice),
		zap.Float64("grid_multiplier", plan.GridMultiplier),
		zap.Bool("capped", plan.Capped))
	return plan
}
