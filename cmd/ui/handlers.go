package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"eve-trade-ledger/internal/report"
	"go.uber.org/zap"
)

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log        *zap.Logger
	aggregator *report.Aggregator
	traderID   int64
	startTime  time.Time
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, aggregator *report.Aggregator, traderID int64) *APIHandler {
	return &APIHandler{
		log:        log,
		aggregator: aggregator,
		traderID:   traderID,
		startTime:  time.Now(),
	}
}

// StatusHandler reports server liveness and uptime.
func (h *APIHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	status := struct {
		TraderID  int64  `json:"trader_id"`
		StartTime string `json:"start_time"`
		Uptime    string `json:"uptime"`
	}{
		TraderID:  h.traderID,
		StartTime: h.startTime.Format(time.RFC3339),
		Uptime:    time.Since(h.startTime).String(),
	}
	h.writeJSON(w, status)
}

// MonthlyHandler returns the per-month profit report, newest month first.
func (h *APIHandler) MonthlyHandler(w http.ResponseWriter, r *http.Request) {
	rows, err := h.aggregator.ByMonth(h.traderID)
	if err != nil {
		h.log.Error("Failed to build monthly report", zap.Error(err))
		http.Error(w, "Failed to build monthly report", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, rows)
}

// DailyHandler returns the per-day profit report for an inclusive date
// range. Query params: from=YYYY-MM-DD&to=YYYY-MM-DD (default: last 30 days).
func (h *APIHandler) DailyHandler(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows, err := h.aggregator.ByDay(h.traderID, from, to)
	if err != nil {
		h.log.Error("Failed to build daily report", zap.Error(err))
		http.Error(w, "Failed to build daily report", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, rows)
}

// ItemsHandler returns the per-item profit report for an inclusive date
// range, most profitable item first.
func (h *APIHandler) ItemsHandler(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows, err := h.aggregator.ByItem(h.traderID, from, to)
	if err != nil {
		h.log.Error("Failed to build item report", zap.Error(err))
		http.Error(w, "Failed to build item report", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, rows)
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to write response", zap.Error(err))
	}
}

func parseRange(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now()
	from := now.AddDate(0, 0, -30)
	to := now

	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid 'from' date %q, want YYYY-MM-DD", v)
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid 'to' date %q, want YYYY-MM-DD", v)
		}
		to = t
	}
	return from, to, nil
}
