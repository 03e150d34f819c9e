package models

import "gorm.io/gorm"

// Decision records one evaluated tick.
type Decision struct {
	gorm.Model
	Strategy   string `json:"strategy" gorm:"index"`
	Intents    int    `json:"intents"`
	CooldownMs int64  `json:"cooldown_ms"`
	Note       string `json:"note,omitempty"`
	Error      string `json:"error,omitempty"`
	Timestamp  int64  `json:"timestamp" gorm:"index"` // unix millis
}
