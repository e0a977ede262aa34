package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/ignite/warmup-engine/internal/domain"
	"github.com/ignite/warmup-engine/internal/engagement"
	"github.com/ignite/warmup-engine/internal/pkg/httputil"
	"github.com/ignite/warmup-engine/internal/warmup"
)

// EventSink accepts delivery event rows from the webhook ingest.
type EventSink interface {
	RecordEvent(ctx context.Context, e *domain.EmailEvent) error
}

// Handlers carries the services the API routes dispatch to.
type Handlers struct {
	controller *warmup.Controller
	engagement *engagement.Service
	events     EventSink
	health     *HealthChecker

	// defaultServerID is used when a request does not name a server.
	defaultServerID string
}

// NewHandlers creates the handler set.
func NewHandlers(
	controller *warmup.Controller,
	engagementSvc *engagement.Service,
	events EventSink,
	health *HealthChecker,
	defaultServerID string,
) *Handlers {
	if defaultServerID == "" {
		defaultServerID = domain.MarketingServerID
	}
	return &Handlers{
		controller:      controller,
		engagement:      engagementSvc,
		events:          events,
		health:          health,
		defaultServerID: defaultServerID,
	}
}

// serverID resolves the sending identity for a request. Deployments with a
// single identity never pass the parameter.
func (h *Handlers) serverID(r *http.Request) string {
	if id := r.URL.Query().Get("server_id"); id != "" {
		return id
	}
	return h.defaultServerID
}

// writeWarmupError maps controller sentinel errors onto HTTP statuses.
// Lifecycle conflicts are 409, bad input is 400, everything else is 500.
func writeWarmupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, warmup.ErrAlreadyWarming),
		errors.Is(err, warmup.ErrNotWarming),
		errors.Is(err, warmup.ErrNotPaused):
		httputil.Conflict(w, err.Error())
	case errors.Is(err, warmup.ErrDayOutOfRange),
		errors.Is(err, warmup.ErrBadSendCount):
		httputil.BadRequest(w, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}

// GetWarmupStatus returns the full warmup snapshot for dashboards.
func (h *Handlers) GetWarmupStatus(w http.ResponseWriter, r *http.Request) {
	state, err := h.controller.State(r.Context(), h.serverID(r))
	if err != nil {
		writeWarmupError(w, err)
		return
	}
	httputil.OK(w, state)
}

// StartWarmup begins the ramp at day 1.
func (h *Handlers) StartWarmup(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.controller.Start(r.Context(), h.serverID(r))
	if err != nil {
		writeWarmupError(w, err)
		return
	}
	httputil.OK(w, cfg)
}

// PauseWarmup suspends sending with an operator-supplied reason.
func (h *Handlers) PauseWarmup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Reason == "" {
		req.Reason = "manual pause"
	}
	cfg, err := h.controller.Pause(r.Context(), h.serverID(r), req.Reason)
	if err != nil {
		writeWarmupError(w, err)
		return
	}
	httputil.OK(w, cfg)
}

// ResumeWarmup restarts a paused warmup, applying the cooldown regression.
func (h *Handlers) ResumeWarmup(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.controller.Resume(r.Context(), h.serverID(r))
	if err != nil {
		writeWarmupError(w, err)
		return
	}
	httputil.OK(w, cfg)
}

// AdvanceWarmupDay is the manual admin override for day progression. The
// scheduled job gates advancement on metrics; this endpoint does not.
func (h *Handlers) AdvanceWarmupDay(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.controller.AdvanceDay(r.Context(), h.serverID(r))
	if err != nil {
		writeWarmupError(w, err)
		return
	}
	httputil.OK(w, cfg)
}

// SetWarmupDay jumps the schedule to a specific day.
func (h *Handlers) SetWarmupDay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Day int `json:"day"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	cfg, err := h.controller.SetDay(r.Context(), h.serverID(r), req.Day)
	if err != nil {
		writeWarmupError(w, err)
		return
	}
	httputil.OK(w, cfg)
}

// ResetWarmupCounter zeroes today's sent counter.
func (h *Handlers) ResetWarmupCounter(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.ResetDailyCounter(r.Context(), h.serverID(r)); err != nil {
		writeWarmupError(w, err)
		return
	}
	httputil.OK(w, map[string]bool{"reset": true})
}

// CanSend runs the admission check for one engagement tier.
func (h *Handlers) CanSend(w http.ResponseWriter, r *http.Request) {
	tier := domain.EngagementTier(r.URL.Query().Get("tier"))
	if !tier.Valid() {
		httputil.BadRequest(w, "unknown engagement tier")
		return
	}
	decision, err := h.controller.CanSendToTier(r.Context(), h.serverID(r), tier)
	if err != nil {
		writeWarmupError(w, err)
		return
	}
	httputil.OK(w, decision)
}

// ReserveSends atomically admits and counts a batch, so concurrent send
// workers cannot overshoot the daily limit.
func (h *Handlers) ReserveSends(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tier  domain.EngagementTier `json:"tier"`
		Count int                   `json:"count"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	if !req.Tier.Valid() {
		httputil.BadRequest(w, "unknown engagement tier")
		return
	}
	decision, err := h.controller.TryReserve(r.Context(), h.serverID(r), req.Tier, req.Count)
	if err != nil {
		writeWarmupError(w, err)
		return
	}
	httputil.OK(w, decision)
}

// RecordSent adds an already-sent batch to today's counter.
func (h *Handlers) RecordSent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Count int `json:"count"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	if err := h.controller.RecordSent(r.Context(), h.serverID(r), req.Count); err != nil {
		writeWarmupError(w, err)
		return
	}
	httputil.OK(w, map[string]bool{"recorded": true})
}

// GetWarmupLogs returns completed-day records, newest first.
func (h *Handlers) GetWarmupLogs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	logs, err := h.controller.Logs(r.Context(), h.serverID(r), limit)
	if err != nil {
		writeWarmupError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"logs": logs, "count": len(logs)})
}

// GetProgress reports whether recent metrics would permit a day advance.
func (h *Handlers) GetProgress(w http.ResponseWriter, r *http.Request) {
	decision, err := h.controller.Progress(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, decision)
}

// GetCooldown reports detected sending inactivity, without acting on it.
func (h *Handlers) GetCooldown(w http.ResponseWriter, r *http.Request) {
	check, err := h.controller.CheckCooldown(r.Context(), h.serverID(r))
	if err != nil {
		writeWarmupError(w, err)
		return
	}
	httputil.OK(w, check)
}

// GetCapacityEstimate answers "how long until I can send to my whole list"
// from the schedule table alone.
func (h *Handlers) GetCapacityEstimate(w http.ResponseWriter, r *http.Request) {
	emails, err := strconv.Atoi(r.URL.Query().Get("emails"))
	if err != nil || emails < 0 {
		httputil.BadRequest(w, "emails must be a non-negative integer")
		return
	}
	startDay := 1
	if s := r.URL.Query().Get("start_day"); s != "" {
		if startDay, err = strconv.Atoi(s); err != nil || startDay < 1 {
			httputil.BadRequest(w, "start_day must be a positive integer")
			return
		}
	}

	days := warmup.EstimateDaysToComplete(emails, startDay)
	httputil.OK(w, map[string]any{
		"emails":         emails,
		"start_day":      startDay,
		"estimated_days": days,
		"schedule_days":  warmup.ScheduleDays,
	})
}

// GetSchedule returns the full 30-day ramp table.
func (h *Handlers) GetSchedule(w http.ResponseWriter, r *http.Request) {
	entries := make([]warmup.ScheduleEntry, 0, warmup.ScheduleDays)
	for day := 1; day <= warmup.ScheduleDays; day++ {
		entries = append(entries, *warmup.ScheduleForDay(day))
	}
	httputil.OK(w, map[string]any{"schedule": entries})
}
