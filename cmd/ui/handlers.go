package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"quant-trade-bot-go/internal/models"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log *zap.Logger
	db  *gorm.DB
	now func() time.Time
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, db *gorm.DB) *APIHandler {
	return &APIHandler{log: log, db: db, now: time.Now}
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", zap.Error(err))
	}
}

// query applies the optional strategy filter and limit shared by the list endpoints.
func query(db *gorm.DB, r *http.Request) *gorm.DB {
	limit := defaultLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = min(v, maxLimit)
	}
	q := db.Order("timestamp desc").Order("id desc").Limit(limit)
	if s := r.URL.Query().Get("strategy"); s != "" {
		q = q.Where("strategy = ?", s)
	}
	return q
}

// IntentsHandler returns journaled order intents, most recent first.
func (h *APIHandler) IntentsHandler(w http.ResponseWriter, r *http.Request) {
	var intents []models.Intent
	if err := query(h.db, r).Find(&intents).Error; err != nil {
		h.log.Error("Failed to get intents from database", zap.Error(err))
		http.Error(w, "Failed to get intents", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, intents)
}

// DecisionsHandler returns journaled ticks, most recent first.
func (h *APIHandler) DecisionsHandler(w http.ResponseWriter, r *http.Request) {
	var decisions []models.Decision
	if err := query(h.db, r).Find(&decisions).Error; err != nil {
		h.log.Error("Failed to get decisions from database", zap.Error(err))
		http.Error(w, "Failed to get decisions", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, decisions)
}

// StatusResponse summarises the journal.
type StatusResponse struct {
	Intents      int64            `json:"intents"`
	Decisions    int64            `json:"decisions"`
	LastDecision *models.Decision `json:"last_decision,omitempty"`
}

// StatusHandler reports row counts and the latest decision.
func (h *APIHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	var resp StatusResponse
	if err := h.db.Model(&models.Intent{}).Count(&resp.Intents).Error; err != nil {
		h.log.Error("Failed to count intents", zap.Error(err))
		http.Error(w, "Failed to get status", http.StatusInternalServerError)
		return
	}
	if err := h.db.Model(&models.Decision{}).Count(&resp.Decisions).Error; err != nil {
		h.log.Error("Failed to count decisions", zap.Error(err))
		http.Error(w, "Failed to get status", http.StatusInternalServerError)
		return
	}
	if resp.Decisions > 0 {
		var last models.Decision
		if err := h.db.Order("timestamp desc").Order("id desc").First(&last).Error; err == nil {
			resp.LastDecision = &last
		}
	}
	h.writeJSON(w, resp)
}

// StatsDetail holds intent counts for a given period.
type StatsDetail struct {
	TotalIntents  int64            `json:"total_intents"`
	TotalNotional float64          `json:"total_notional"`
	ByPurpose     map[string]int64 `json:"by_purpose"`
	ByStatus      map[string]int64 `json:"by_status"`
}

// StatisticsResponse is the structure for the /api/statistics endpoint.
type StatisticsResponse struct {
	Since24h StatsDetail `json:"since_24h"`
	AllTime  StatsDetail `json:"all_time"`
}

type intentGroup struct {
	Purpose  string
	Status   string
	Count    int64
	Notional float64
}

func (h *APIHandler) stats(sinceMs int64) (StatsDetail, error) {
	var groups []intentGroup
	err := h.db.Model(&models.Intent{}).
		Select("purpose, status, count(*) as count, coalesce(sum(notional), 0) as notional").
		Where("timestamp >= ?", sinceMs).
		Group("purpose, status").
		Scan(&groups).Error
	if err != nil {
		return StatsDetail{}, err
	}

	detail := StatsDetail{ByPurpose: map[string]int64{}, ByStatus: map[string]int64{}}
	for _, g := range groups {
		detail.TotalIntents += g.Count
		detail.ByPurpose[g.Purpose] += g.Count
		detail.ByStatus[g.Status] += g.Count
		if g.Status == models.IntentStatusSubmitted || g.Status == models.IntentStatusSimulated {
			detail.TotalNotional += g.Notional
		}
	}
	return detail, nil
}

// StatisticsHandler calculates intent statistics for the last 24 hours and all time.
// Notional only counts intents that were submitted or simulated.
func (h *APIHandler) StatisticsHandler(w http.ResponseWriter, r *http.Request) {
	since24h := h.now().Add(-24 * time.Hour).UnixMilli()

	stats24h, err := h.stats(since24h)
	if err != nil {
		h.log.Error("Failed to get intents for statistics", zap.Error(err))
		http.Error(w, "Failed to calculate statistics", http.StatusInternalServerError)
		return
	}
	statsAllTime, err := h.stats(0)
	if err != nil {
		h.log.Error("Failed to get intents for statistics", zap.Error(err))
		http.Error(w, "Failed to calculate statistics", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, StatisticsResponse{Since24h: stats24h, AllTime: statsAllTime})
}
