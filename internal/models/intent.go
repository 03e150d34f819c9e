package models

import "gorm.io/gorm"

// Intent is one order intent emitted by a strategy, with its routing outcome.
type Intent struct {
	gorm.Model
	Strategy  string  `json:"strategy" gorm:"index"`
	Pair      string  `json:"pair" gorm:"index"`
	Side      string  `json:"side"` // "BUY" or "SELL"
	Purpose   string  `json:"purpose" gorm:"index"`
	Price     float64 `json:"price"`
	Quantity  float64 `json:"quantity"`
	Notional  float64 `json:"notional"`
	OrderID   string  `json:"order_id,omitempty"`
	Status    string  `json:"status"` // see IntentStatus*
	Error     string  `json:"error,omitempty"`
	Timestamp int64   `json:"timestamp" gorm:"index"` // unix millis
	DryRun    bool    `json:"dry_run"`
}

const (
	IntentStatusSubmitted = "submitted"
	IntentStatusSimulated = "simulated"
	IntentStatusRejected  = "rejected"
	IntentStatusFailed    = "failed"
)
