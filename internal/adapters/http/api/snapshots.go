package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/elevenvotes/consensus/internal/adapters/mq/queue"
	"github.com/elevenvotes/consensus/internal/domain/dedupe"
	"github.com/elevenvotes/consensus/internal/domain/model"
	"github.com/elevenvotes/consensus/pkg/logger"
	"github.com/elevenvotes/consensus/pkg/metrics"
)

// SnapshotDependencies is what POST /snapshots needs.
type SnapshotDependencies interface {
	dedupe.Deduper
	Enqueue(ctx context.Context, s model.Snapshot) error
}

// SnapshotsHandler accepts raw snapshot documents.
type SnapshotsHandler struct {
	deps     SnapshotDependencies
	maxBytes int64
	logger   logger.Logger
	now      func() time.Time
}

// NewSnapshotsHandler creates a snapshots handler.
func NewSnapshotsHandler(deps SnapshotDependencies) *SnapshotsHandler {
	return &SnapshotsHandler{
		deps:     deps,
		maxBytes: DefaultMaxSnapshotBytes,
		logger:   logger.Get().Named("api"),
		now:      time.Now,
	}
}

// snapshotRequest is the body of POST /snapshots.
type snapshotRequest struct {
	ID      string          `json:"id"`
	MatchID string          `json:"matchId"`
	Kind    model.Kind      `json:"kind"`
	Data    json.RawMessage `json:"data"`
}

func (r *snapshotRequest) validate() error {
	r.MatchID = strings.TrimSpace(r.MatchID)
	r.ID = strings.TrimSpace(r.ID)
	switch {
	case r.MatchID == "":
		return errors.New("missing matchId")
	case !r.Kind.Valid():
		return fmt.Errorf("unknown kind %q", r.Kind)
	}
	data := bytes.TrimSpace(r.Data)
	if len(data) == 0 || data[0] != '{' {
		return errors.New("data must be a JSON object")
	}
	return nil
}

type ackResponse struct {
	Status     string `json:"status"`
	Duplicate  bool   `json:"duplicate"`
	SnapshotID string `json:"snapshotId"`
}

// HandlePostSnapshot handles POST /snapshots. Snapshots without an id get a
// generated one and therefore never count as duplicates.
func (h *SnapshotsHandler) HandlePostSnapshot(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_snapshot"
	ctx := r.Context()

	var req snapshotRequest
	body := http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			metrics.RecordSnapshotRejected("too_large")
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", wrap(op, ErrBadRequest, err))
			return
		}
		metrics.RecordSnapshotRejected("invalid")
		writeError(w, http.StatusBadRequest, "bad_request", wrap(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		metrics.RecordSnapshotRejected("invalid")
		writeError(w, http.StatusBadRequest, "bad_request", wrap(op, ErrBadRequest, err))
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	if h.deps.SeenAndRecord(ctx, req.ID) {
		metrics.RecordSnapshotDuplicate()
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true, SnapshotID: req.ID})
		return
	}

	snap := model.Snapshot{
		ID:         req.ID,
		MatchID:    req.MatchID,
		Kind:       req.Kind,
		Data:       req.Data,
		ReceivedAt: h.now(),
	}
	if err := h.deps.Enqueue(ctx, snap); err != nil {
		// Let the sender retry the same id.
		h.deps.Unrecord(ctx, req.ID)
		if errors.Is(err, queue.ErrClosed) {
			metrics.RecordSnapshotRejected("closed")
			writeError(w, http.StatusServiceUnavailable, "unavailable", wrap(op, ErrUnavailable, err))
			return
		}
		metrics.RecordSnapshotRejected("backpressure")
		h.logger.Warn(ctx, "snapshot refused", logger.String("snapshotID", req.ID), logger.Error(err))
		writeError(w, http.StatusTooManyRequests, "backpressure", wrap(op, ErrBackpressure, err))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", SnapshotID: req.ID})
}
