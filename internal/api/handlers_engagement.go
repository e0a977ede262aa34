package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ignite/warmup-engine/internal/domain"
	"github.com/ignite/warmup-engine/internal/engagement"
	"github.com/ignite/warmup-engine/internal/pkg/httputil"
)

// GetContactTier returns one contact's stored engagement tier.
func (h *Handlers) GetContactTier(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "contactID")
	c, err := h.engagement.Contact(r.Context(), id)
	if err != nil {
		writeEngagementError(w, err)
		return
	}
	httputil.OK(w, map[string]any{
		"contact_id": c.ID,
		"tier":       c.EngagementTier,
	})
}

// RecordContactOpen registers an open event and returns the new tier.
func (h *Handlers) RecordContactOpen(w http.ResponseWriter, r *http.Request) {
	h.recordContactEvent(w, r, h.engagement.RecordOpen)
}

// RecordContactClick registers a click event and returns the new tier.
func (h *Handlers) RecordContactClick(w http.ResponseWriter, r *http.Request) {
	h.recordContactEvent(w, r, h.engagement.RecordClick)
}

// RecordContactDelivery registers a delivered marketing send. The first
// delivery moves a contact out of NEW.
func (h *Handlers) RecordContactDelivery(w http.ResponseWriter, r *http.Request) {
	h.recordContactEvent(w, r, h.engagement.RecordEmailReceived)
}

func (h *Handlers) recordContactEvent(
	w http.ResponseWriter,
	r *http.Request,
	record func(ctx context.Context, contactID string) (domain.EngagementTier, error),
) {
	id := chi.URLParam(r, "contactID")
	tier, err := record(r.Context(), id)
	if err != nil {
		writeEngagementError(w, err)
		return
	}
	httputil.OK(w, map[string]any{
		"contact_id": id,
		"tier":       tier,
	})
}

// RecalculateTiers runs the full-list tier sweep and returns its summary.
func (h *Handlers) RecalculateTiers(w http.ResponseWriter, r *http.Request) {
	result, err := h.engagement.RecalculateAll(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, result)
}

// IngestEvent accepts a delivery event from the sending pipeline's webhook
// and fans it out: the row lands in the event log for the metrics window,
// and engagement-relevant statuses also update the contact.
func (h *Handlers) IngestEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContactID  string                  `json:"contact_id"`
		Category   domain.EmailCategory    `json:"category"`
		Status     domain.EmailEventStatus `json:"status"`
		OccurredAt time.Time               `json:"occurred_at"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.ContactID == "" {
		httputil.BadRequest(w, "contact_id is required")
		return
	}
	switch req.Status {
	case domain.EventSent, domain.EventDelivered, domain.EventOpened,
		domain.EventBounced, domain.EventSpamComplaint:
	default:
		httputil.BadRequest(w, "unknown event status")
		return
	}
	if req.Category == "" {
		req.Category = domain.CategoryMarketing
	}
	if req.OccurredAt.IsZero() {
		req.OccurredAt = time.Now().UTC()
	}

	event := &domain.EmailEvent{
		ID:         uuid.New().String(),
		ContactID:  req.ContactID,
		Category:   req.Category,
		Status:     req.Status,
		OccurredAt: req.OccurredAt,
	}
	if err := h.events.RecordEvent(r.Context(), event); err != nil {
		httputil.InternalError(w, err)
		return
	}

	// Contact updates are best-effort for unknown contacts: the event log
	// row is the source of truth for the metrics window.
	var tierErr error
	switch req.Status {
	case domain.EventDelivered:
		_, tierErr = h.engagement.RecordEmailReceived(r.Context(), req.ContactID)
	case domain.EventOpened:
		_, tierErr = h.engagement.RecordOpen(r.Context(), req.ContactID)
	}
	if tierErr != nil && !errors.Is(tierErr, engagement.ErrNotFound) {
		httputil.InternalError(w, tierErr)
		return
	}

	httputil.JSON(w, http.StatusAccepted, map[string]any{"id": event.ID})
}

func writeEngagementError(w http.ResponseWriter, err error) {
	if errors.Is(err, engagement.ErrNotFound) {
		httputil.Error(w, http.StatusNotFound, err.Error())
		return
	}
	httputil.InternalError(w, err)
}
