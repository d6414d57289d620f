package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/availo-hq/availo/services/settings-service/internal/outbox"
	"github.com/availo-hq/availo/services/settings-service/internal/storage"
)

// knownProviders is the set availability-service can fetch busy intervals for.
var knownProviders = map[string]bool{
	"google":  true,
	"outlook": true,
	"apple":   true,
	"ics":     true,
	"other":   true,
}

type ConnectionsHandler struct {
	repo       *storage.Repository
	outboxRepo *outbox.Repository
	logger     *slog.Logger
}

func NewConnectionsHandler(repo *storage.Repository, outboxRepo *outbox.Repository, logger *slog.Logger) *ConnectionsHandler {
	return &ConnectionsHandler{repo: repo, outboxRepo: outboxRepo, logger: logger}
}

type createConnectionRequest struct {
	Provider    string          `json:"provider"`
	AccountID   string          `json:"accountId"`
	CalendarID  string          `json:"calendarId"`
	FeedURL     string          `json:"feedUrl"`
	Credentials string          `json:"credentials"`
	IsActive    *bool           `json:"isActive"`
	Metadata    json.RawMessage `json:"metadata"`
}

type connectionItem struct {
	ID         string          `json:"id"`
	Provider   string          `json:"provider"`
	AccountID  string          `json:"accountId"`
	CalendarID string          `json:"calendarId"`
	FeedURL    string          `json:"feedUrl,omitempty"`
	IsActive   bool            `json:"isActive"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	CreatedAt  string          `json:"createdAt"`
}

func (h *ConnectionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ownerID := ownerIDFromHeader(r)
	if ownerID == "" {
		http.Error(w, "missing X-Owner-Id", http.StatusBadRequest)
		return
	}

	var req createConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Provider = strings.ToLower(strings.TrimSpace(req.Provider))
	req.AccountID = strings.TrimSpace(req.AccountID)
	req.FeedURL = strings.TrimSpace(req.FeedURL)

	if !knownProviders[req.Provider] {
		http.Error(w, "unknown provider", http.StatusBadRequest)
		return
	}
	if req.Provider == "ics" {
		u, err := url.Parse(req.FeedURL)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			http.Error(w, "ics connections require a valid feedUrl", http.StatusBadRequest)
			return
		}
	} else if req.AccountID == "" {
		http.Error(w, "accountId is required", http.StatusBadRequest)
		return
	}
	if len(req.Metadata) > 0 {
		trimmed := bytes.TrimSpace(req.Metadata)
		if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
			http.Error(w, "metadata must be a JSON object", http.StatusBadRequest)
			return
		}
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := h.repo.CreateConnection(ctx, tx, storage.Connection{
		OwnerID:    ownerID,
		Provider:   req.Provider,
		AccountID:  req.AccountID,
		CalendarID: strings.TrimSpace(req.CalendarID),
		FeedURL:    req.FeedURL,
		IsActive:   isActive,
		Metadata:   req.Metadata,
	}, req.Credentials)
	if err != nil {
		h.logger.Error("connection create failed", "owner_id", ownerID, "err", err)
		http.Error(w, "failed to create connection", http.StatusInternalServerError)
		return
	}
	if err := h.emitChanged(r, tx, ownerID); err != nil {
		http.Error(w, "failed to create connection", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to create connection", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{"id": id})
}

func (h *ConnectionsHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ownerID := ownerIDFromHeader(r)
	if ownerID == "" {
		http.Error(w, "missing X-Owner-Id", http.StatusBadRequest)
		return
	}

	conns, err := h.repo.ListConnections(r.Context(), ownerID)
	if err != nil {
		h.logger.Error("connection list failed", "owner_id", ownerID, "err", err)
		http.Error(w, "failed to list connections", http.StatusInternalServerError)
		return
	}

	// Credentials never leave this service.
	items := make([]connectionItem, 0, len(conns))
	for _, c := range conns {
		items = append(items, connectionItem{
			ID:         c.ID,
			Provider:   c.Provider,
			AccountID:  c.AccountID,
			CalendarID: c.CalendarID,
			FeedURL:    c.FeedURL,
			IsActive:   c.IsActive,
			Metadata:   c.Metadata,
			CreatedAt:  c.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(items)
}

type setActiveRequest struct {
	ID       string `json:"id"`
	IsActive bool   `json:"isActive"`
}

func (h *ConnectionsHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ownerID := ownerIDFromHeader(r)
	if ownerID == "" {
		http.Error(w, "missing X-Owner-Id", http.StatusBadRequest)
		return
	}

	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.SetConnectionActive(ctx, tx, ownerID, req.ID, req.IsActive); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, "connection not found", http.StatusNotFound)
			return
		}
		h.logger.Error("connection update failed", "owner_id", ownerID, "err", err)
		http.Error(w, "failed to update connection", http.StatusInternalServerError)
		return
	}
	if err := h.emitChanged(r, tx, ownerID); err != nil {
		http.Error(w, "failed to update connection", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to update connection", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ConnectionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ownerID := ownerIDFromHeader(r)
	if ownerID == "" {
		http.Error(w, "missing X-Owner-Id", http.StatusBadRequest)
		return
	}

	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.DeleteConnection(ctx, tx, ownerID, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, "connection not found", http.StatusNotFound)
			return
		}
		h.logger.Error("connection delete failed", "owner_id", ownerID, "err", err)
		http.Error(w, "failed to delete connection", http.StatusInternalServerError)
		return
	}
	if err := h.emitChanged(r, tx, ownerID); err != nil {
		http.Error(w, "failed to delete connection", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to delete connection", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ConnectionsHandler) emitChanged(r *http.Request, tx pgx.Tx, ownerID string) error {
	evt, err := outbox.SettingsChanged(ownerID, "connection")
	if err != nil {
		return err
	}
	if err := h.outboxRepo.Insert(r.Context(), tx, evt); err != nil {
		h.logger.Error("outbox insert failed", "owner_id", ownerID, "err", err)
		return err
	}
	return nil
}
