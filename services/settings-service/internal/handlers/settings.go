package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/availo-hq/availo/services/settings-service/internal/model"
	"github.com/availo-hq/availo/services/settings-service/internal/outbox"
	"github.com/availo-hq/availo/services/settings-service/internal/storage"
)

type SettingsHandler struct {
	repo       *storage.Repository
	outboxRepo *outbox.Repository
	logger     *slog.Logger
}

func NewSettingsHandler(repo *storage.Repository, outboxRepo *outbox.Repository, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{repo: repo, outboxRepo: outboxRepo, logger: logger}
}

func ownerIDFromHeader(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Owner-Id"))
}

// Get returns the owner's settings, creating the default document on first
// read so a fresh account sees a sensible schedule instead of a 404.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ownerID := ownerIDFromHeader(r)
	if ownerID == "" {
		http.Error(w, "missing X-Owner-Id", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	settings, found, err := h.repo.GetSettings(ctx, ownerID)
	if err != nil {
		h.logger.Error("settings load failed", "owner_id", ownerID, "err", err)
		http.Error(w, "failed to load settings", http.StatusInternalServerError)
		return
	}
	if !found {
		settings = model.Default()
		if err := h.writeSettings(r, ownerID, settings); err != nil {
			h.logger.Error("default settings create failed", "owner_id", ownerID, "err", err)
			http.Error(w, "failed to initialize settings", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(settings)
}

// Update replaces the whole settings document.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ownerID := ownerIDFromHeader(r)
	if ownerID == "" {
		http.Error(w, "missing X-Owner-Id", http.StatusBadRequest)
		return
	}

	var req model.Settings
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	settings := req.Normalize()

	if err := h.writeSettings(r, ownerID, settings); err != nil {
		h.logger.Error("settings update failed", "owner_id", ownerID, "err", err)
		http.Error(w, "failed to update settings", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(settings)
}

// writeSettings commits the document and its change event in one transaction.
func (h *SettingsHandler) writeSettings(r *http.Request, ownerID string, settings model.Settings) error {
	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.ReplaceSettings(ctx, tx, ownerID, settings); err != nil {
		return err
	}
	evt, err := outbox.SettingsChanged(ownerID, "schedule")
	if err != nil {
		return err
	}
	if err := h.outboxRepo.Insert(ctx, tx, evt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
