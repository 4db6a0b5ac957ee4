package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"portal_sync/internal/domain"
)

type handlers struct {
	feeds            FeedRenderer
	drainer          Drainer
	enqueuer         JobEnqueuer
	tester           ConnectivityTester
	rotator          TokenRotator
	pubs             PublicationLister
	defaultBatchSize int
	logger           *slog.Logger
}

func (h *handlers) renderFeed(w http.ResponseWriter, r *http.Request) {
	slug := r.URL.Query().Get("portal")
	token := r.URL.Query().Get("token")

	output, err := h.feeds.Render(r.Context(), slug, token)
	if err != nil {
		if errors.Is(err, domain.ErrFeedUnauthorized) {
			// Deliberately indistinguishable for bad slug and bad token.
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		h.logger.Error("feed rendering failed", "portal", slug, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", output.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(output.Body)
}

func (h *handlers) drainQueue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BatchSize int `json:"batch_size"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.BatchSize <= 0 {
		req.BatchSize = h.defaultBatchSize
	}

	stats, err := h.drainer.Drain(r.Context(), req.BatchSize)
	if err != nil {
		h.logger.Error("queue drain failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"claimed":     stats.Claimed,
		"succeeded":   stats.Succeeded,
		"failed":      stats.Failed,
		"rescheduled": stats.Rescheduled,
		"noops":       stats.NoOps,
		"duration_ms": stats.Duration.Milliseconds(),
	})
}

func (h *handlers) enqueueJob(w http.ResponseWriter, r *http.Request) {
	portalID, err := pathID(r, "portalID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	listingID, err := pathID(r, "listingID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req struct {
		Action string `json:"action"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !domain.ValidAction(req.Action) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown action %q", req.Action))
		return
	}

	job, err := h.enqueuer.Enqueue(r.Context(), portalID, listingID, domain.JobAction(req.Action))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "portal not found")
			return
		}
		h.logger.Error("enqueue failed", "portal_id", portalID, "listing_id", listingID, "error", err)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":      job.ID,
		"status":      job.Status,
		"action":      job.Action,
		"next_run_at": job.NextRunAt,
	})
}

func (h *handlers) testPortal(w http.ResponseWriter, r *http.Request) {
	portalID, err := pathID(r, "portalID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.tester.Test(r.Context(), portalID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "portal not found")
			return
		}
		h.logger.Error("connectivity test failed", "portal_id", portalID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) rotateToken(w http.ResponseWriter, r *http.Request) {
	portalID, err := pathID(r, "portalID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, err := h.rotator.RotateToken(r.Context(), portalID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "portal not found")
			return
		}
		h.logger.Error("token rotation failed", "portal_id", portalID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"feed_token": token})
}

func (h *handlers) listPublications(w http.ResponseWriter, r *http.Request) {
	portalID, err := pathID(r, "portalID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pubs, err := h.pubs.ListByPortal(r.Context(), portalID)
	if err != nil {
		h.logger.Error("listing publications failed", "portal_id", portalID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	type publicationView struct {
		ListingID     int64   `json:"listing_id"`
		Status        string  `json:"status"`
		ExternalID    *string `json:"external_id,omitempty"`
		LastError     *string `json:"last_error,omitempty"`
		LastAttemptAt *string `json:"last_attempt_at,omitempty"`
	}

	views := make([]publicationView, 0, len(pubs))
	for _, p := range pubs {
		v := publicationView{
			ListingID:  p.ListingID,
			Status:     string(p.Status),
			ExternalID: p.ExternalID,
			LastError:  p.LastError,
		}
		if p.LastAttemptAt != nil {
			ts := p.LastAttemptAt.UTC().Format("2006-01-02T15:04:05Z07:00")
			v.LastAttemptAt = &ts
		}
		views = append(views, v)
	}

	writeJSON(w, http.StatusOK, views)
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

// decodeBody tolerates an empty body so parameterless POSTs stay simple.
func decodeBody(r *http.Request, out any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
