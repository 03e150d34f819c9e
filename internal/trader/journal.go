package trader

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"quant-trade-bot-go/internal/market"
	"quant-trade-bot-go/internal/models"
)

// Journal persists decisions and intents. Write failures are logged and never
// abort a tick.
type Journal struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewJournal creates a Journal on db.
func NewJournal(db *gorm.DB, logger *zap.Logger) *Journal {
	return &Journal{db: db, logger: logger.Named("journal")}
}

// RecordIntent stores one routed (or simulated, or rejected) intent.
func (j *Journal) RecordIntent(strategy string, intent market.OrderIntent, orderID, status string, cause error, dryRun bool, at time.Time) {
	row := models.Intent{
		Strategy:  strategy,
		Pair:      intent.Pair.String(),
		Side:      string(intent.Side),
		Purpose:   string(intent.Purpose),
		Price:     intent.Price,
		Quantity:  intent.Quantity,
		Notional:  intent.Notional(),
		OrderID:   orderID,
		Status:    status,
		Timestamp: at.UnixMilli(),
		DryRun:    dryRun,
	}
	if cause != nil {
		row.Error = cause.Error()
	}
	if err := j.db.Create(&row).Error; err != nil {
		j.logger.Error("Failed to save intent record", zap.Error(err))
		return
	}
	j.logger.Debug("Saved intent record", zap.Uint("intent_id", row.ID))
}

// RecordDecision stores the summary of one evaluated tick.
func (j *Journal) RecordDecision(strategy string, d Decision, cause error, at time.Time) {
	row := models.Decision{
		Strategy:   strategy,
		Intents:    len(d.Intents),
		CooldownMs: d.Cooldown.Milliseconds(),
		Note:       d.Note,
		Timestamp:  at.UnixMilli(),
	}
	if cause != nil {
		row.Error = cause.Error()
	}
	if err := j.db.Create(&row).Error; err != nil {
		j.logger.Error("Failed to save decision record", zap.Error(err))
	}
}
