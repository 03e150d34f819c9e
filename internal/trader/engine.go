package trader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"quant-trade-bot-go/internal/config"
	"quant-trade-bot-go/internal/market"
	"quant-trade-bot-go/internal/metrics"
	"quant-trade-bot-go/internal/models"
)

// Venue is the exchange side of the engine: market data, order routing and
// the exchange's lot and tick rules.
type Venue interface {
	market.DataSource
	market.OrderRouter
	Quantize(intent market.OrderIntent) (market.OrderIntent, error)
}

// Engine runs one strategy on a timer. Ticks never overlap.
type Engine struct {
	UUID      string
	Name      string
	StartTime time.Time

	logger   *zap.Logger
	cfg      *config.Config
	venue    Venue
	db       *gorm.DB
	strategy Strategy
	journal  *Journal
	interval time.Duration

	mu           sync.Mutex
	lastDecision time.Time
	cooldown     time.Duration
	ticks        int64
	lastError    string
}

// NewEngine creates a new trading engine.
func NewEngine(logger *zap.Logger, cfg *config.Config, venue Venue, db *gorm.DB, strategy Strategy) *Engine {
	return &Engine{
		UUID:      uuid.NewString(),
		Name:      "quant-trade-bot",
		StartTime: time.Now(),
		logger:    logger,
		cfg:       cfg,
		venue:     venue,
		db:        db,
		strategy:  strategy,
		journal:   NewJournal(db, logger),
		interval:  time.Duration(cfg.Trading.OrderIntervalSeconds) * time.Second,
	}
}

func (e *Engine) strategyContext() StrategyContext {
	return StrategyContext{Logger: e.logger, Cfg: e.cfg, Market: e.venue, DB: e.db}
}

// Initialize prepares the strategy.
func (e *Engine) Initialize(ctx context.Context) error {
	if err := e.strategy.Initialize(ctx, e.strategyContext()); err != nil {
		return fmt.Errorf("failed to initialize strategy %s: %w", e.strategy.Name(), err)
	}
	return nil
}

// Run initializes the strategy and ticks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("Initializing trading engine...", zap.String("strategy", e.strategy.Name()))
	if err := e.Initialize(ctx); err != nil {
		return err
	}
	e.logger.Info("Engine initialized successfully.")

	interval := time.Duration(e.cfg.Trading.TickInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Info("Starting decision loop",
		zap.Duration("tick_interval", interval),
		zap.Duration("order_interval", e.interval),
		zap.Bool("dry_run", e.cfg.Trading.DryRun))

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Stopping trading engine...")
			return nil
		case now := <-ticker.C:
			if err := e.Tick(ctx, now); err != nil {
				e.logger.Error("Tick failed", zap.Error(err))
			}
		}
	}
}

// due reports whether the order interval (plus any cooldown) has elapsed
// since the last completed decision.
func (e *Engine) due(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastDecision.IsZero() {
		return true
	}
	return !now.Before(e.lastDecision.Add(e.interval + e.cooldown))
}

// Tick runs one decision: cancel live orders, ask the strategy, quantize and
// route the intents. A tick that fails leaves the last-decision time alone so
// the next timer tick retries.
func (e *Engine) Tick(ctx context.Context, now time.Time) error {
	name := e.strategy.Name()
	if !e.due(now) {
		metrics.IncTick(name, "skipped")
		return nil
	}

	if !e.cfg.Trading.DryRun {
		for _, pair := range e.strategy.Pairs() {
			if err := e.venue.CancelAllActiveOrders(ctx, pair); err != nil {
				return e.fail(name, fmt.Errorf("cancel orders on %s: %w", pair, err), now)
			}
		}
	}

	decision, err := e.strategy.Decide(ctx, e.strategyContext(), now)
	if err != nil {
		return e.fail(name, fmt.Errorf("strategy %s: %w", name, err), now)
	}

	for _, intent := range decision.Intents {
		e.route(ctx, name, intent, now)
	}

	e.journal.RecordDecision(name, decision, nil, now)
	metrics.IncTick(name, "decided")

	e.mu.Lock()
	e.lastDecision = now
	e.cooldown = decision.Cooldown
	e.ticks++
	e.lastError = ""
	e.mu.Unlock()

	if len(decision.Intents) == 0 {
		e.logger.Debug("No intents this tick", zap.String("note", decision.Note))
	}
	return nil
}

func (e *Engine) fail(name string, err error, now time.Time) error {
	metrics.IncTick(name, "failed")
	e.journal.RecordDecision(name, Decision{}, err, now)
	e.mu.Lock()
	e.lastError = err.Error()
	e.mu.Unlock()
	return err
}

func (e *Engine) route(ctx context.Context, name string, intent market.OrderIntent, now time.Time) {
	dryRun := e.cfg.Trading.DryRun
	l := e.logger.With(
		zap.String("pair", intent.Pair.String()),
		zap.String("side", string(intent.Side)),
		zap.String("purpose", string(intent.Purpose)),
		zap.Float64("original_quantity", intent.Quantity),
		zap.Float64("original_price", intent.Price),
	)
	metrics.IncIntent(name, string(intent.Purpose), string(intent.Side))

	quantized, err := e.venue.Quantize(intent)
	if err != nil {
		l.Info("Intent rejected by exchange filters", zap.Error(err))
		e.journal.RecordIntent(name, intent, "", models.IntentStatusRejected, err, dryRun, now)
		return
	}
	l = l.With(zap.Float64("quantity", quantized.Quantity), zap.Float64("price", quantized.Price))

	if dryRun {
		l.Warn("Dry run enabled. No real order will be placed.")
		metrics.IncOrder("dry_run", string(intent.Side))
		e.journal.RecordIntent(name, quantized, "", models.IntentStatusSimulated, nil, true, now)
		return
	}

	orderID, err := e.venue.SubmitOrder(ctx, quantized)
	if err != nil {
		l.Error("Failed to place order", zap.Error(err))
		metrics.IncOrderFailure(string(intent.Side))
		e.journal.RecordIntent(name, quantized, "", models.IntentStatusFailed, err, false, now)
		return
	}
	l.Info("Order placed", zap.String("order_id", orderID))
	metrics.IncOrder("live", string(intent.Side))
	e.journal.RecordIntent(name, quantized, orderID, models.IntentStatusSubmitted, nil, false, now)
}

// Status is a point-in-time view of the engine for the status API.
type Status struct {
	UUID         string `json:"uuid"`
	Name         string `json:"name"`
	Strategy     string `json:"strategy"`
	DryRun       bool   `json:"dry_run"`
	StartTime    string `json:"start_time"`
	Uptime       string `json:"uptime"`
	Ticks        int64  `json:"ticks"`
	LastDecision string `json:"last_decision,omitempty"`
	NextDue      string `json:"next_due,omitempty"`
	LastError    string `json:"last_error,omitempty"`
}

// Status reports the engine state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Status{
		UUID:      e.UUID,
		Name:      e.Name,
		Strategy:  e.strategy.Name(),
		DryRun:    e.cfg.Trading.DryRun,
		StartTime: e.StartTime.Format(time.RFC3339),
		Uptime:    time.Since(e.StartTime).Round(time.Second).String(),
		Ticks:     e.ticks,
		LastError: e.lastError,
	}
	if !e.lastDecision.IsZero() {
		s.LastDecision = e.lastDecision.Format(time.RFC3339)
		s.NextDue = e.lastDecision.Add(e.interval + e.cooldown).Format(time.RFC3339)
	}
	return s
}
