package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/availo-hq/availo/services/availability-service/internal/cache"
	"github.com/availo-hq/availo/services/availability-service/internal/resolve"
)

const dateLayout = "2006-01-02"

// FeedResolver is the slice of the resolver the handler needs.
type FeedResolver interface {
	Resolve(ctx context.Context, ownerID string, win *resolve.Window, ov *resolve.Overrides) (resolve.Feed, error)
}

// FeedHandler serves the public availability feed the embeddable widget polls.
// No auth: the feed exposes free/busy shape only, never event details.
type FeedHandler struct {
	resolver FeedResolver
	cache    *cache.FeedCache
	logger   *slog.Logger
}

func NewFeedHandler(resolver FeedResolver, feedCache *cache.FeedCache, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{resolver: resolver, cache: feedCache, logger: logger}
}

type slotItem struct {
	Date     string `json:"date"`
	Start    string `json:"start"`
	End      string `json:"end"`
	StartUTC string `json:"startUtc"`
	EndUTC   string `json:"endUtc"`
}

type dayItem struct {
	Date           string     `json:"date"`
	DayOfWeek      string     `json:"dayOfWeek"`
	IsAvailable    bool       `json:"isAvailable"`
	Status         string     `json:"status"`
	AvailableSlots []slotItem `json:"availableSlots,omitempty"`
}

type degradedItem struct {
	ConnectionID string `json:"connectionId"`
	Provider     string `json:"provider"`
	Reason       string `json:"reason,omitempty"`
}

type feedResponse struct {
	OwnerID           string         `json:"ownerId"`
	Timezone          string         `json:"timezone"`
	ResolvedAt        string         `json:"resolvedAt"`
	Days              []dayItem      `json:"days"`
	DegradedProviders []degradedItem `json:"degradedProviders,omitempty"`
}

func (h *FeedHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	ownerID := strings.TrimSpace(q.Get("ownerId"))
	if ownerID == "" {
		http.Error(w, "ownerId is required", http.StatusBadRequest)
		return
	}

	win, err := parseWindow(q.Get("from"), q.Get("to"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ov, err := parseOverrides(q.Get("days"), q.Get("showHours"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	key := h.cache.Key(ownerID, cacheVariant(q.Get("from"), q.Get("to"), q.Get("days"), q.Get("showHours")))
	if body, ok := h.cache.Get(ctx, key); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
		return
	}

	feed, err := h.resolver.Resolve(ctx, ownerID, win, ov)
	if err != nil {
		if errors.Is(err, resolve.ErrInvalidWindow) || errors.Is(err, resolve.ErrInvalidOwner) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("feed resolution failed", "owner_id", ownerID, "err", err)
		http.Error(w, "availability resolution failed", http.StatusInternalServerError)
		return
	}

	body, err := json.Marshal(renderFeed(feed))
	if err != nil {
		http.Error(w, "encoding error", http.StatusInternalServerError)
		return
	}

	// A degraded feed reflects a transient upstream failure; caching it would
	// pin the gap for the TTL.
	if len(feed.Degraded) == 0 {
		h.cache.Set(ctx, key, body)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func renderFeed(feed resolve.Feed) feedResponse {
	resp := feedResponse{
		OwnerID:    feed.OwnerID,
		Timezone:   feed.Timezone,
		ResolvedAt: feed.ResolvedAt.Format(time.RFC3339),
		Days:       make([]dayItem, 0, len(feed.Days)),
	}
	for _, d := range feed.Degraded {
		item := degradedItem{ConnectionID: d.ConnectionID, Provider: d.Provider}
		if feed.Options.ShowBusyReasons {
			item.Reason = d.Reason
		}
		resp.DegradedProviders = append(resp.DegradedProviders, item)
	}
	for _, day := range feed.Days {
		item := dayItem{
			Date:        day.Date.Format(dateLayout),
			DayOfWeek:   day.Weekday.DisplayName(),
			IsAvailable: day.Available,
			Status:      string(day.Status),
		}
		for _, s := range day.Slots {
			local := s.Start.In(feed.Location)
			localEnd := s.End.In(feed.Location)
			item.AvailableSlots = append(item.AvailableSlots, slotItem{
				Date:     local.Format(dateLayout),
				Start:    local.Format("15:04"),
				End:      localEnd.Format("15:04"),
				StartUTC: s.Start.UTC().Format(time.RFC3339),
				EndUTC:   s.End.UTC().Format(time.RFC3339),
			})
		}
		resp.Days = append(resp.Days, item)
	}
	return resp
}

func parseWindow(fromRaw, toRaw string) (*resolve.Window, error) {
	fromRaw = strings.TrimSpace(fromRaw)
	toRaw = strings.TrimSpace(toRaw)
	if fromRaw == "" && toRaw == "" {
		return nil, nil
	}
	if fromRaw == "" || toRaw == "" {
		return nil, errors.New("from and to must be provided together")
	}
	from, err := time.Parse(dateLayout, fromRaw)
	if err != nil {
		return nil, fmt.Errorf("invalid from date %q", fromRaw)
	}
	to, err := time.Parse(dateLayout, toRaw)
	if err != nil {
		return nil, fmt.Errorf("invalid to date %q", toRaw)
	}
	return &resolve.Window{From: from, To: to}, nil
}

func parseOverrides(daysRaw, showHoursRaw string) (*resolve.Overrides, error) {
	var ov resolve.Overrides
	set := false
	if s := strings.TrimSpace(daysRaw); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid days value %q", daysRaw)
		}
		ov.LookAheadDays = &n
		set = true
	}
	if s := strings.TrimSpace(showHoursRaw); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("invalid showHours value %q", showHoursRaw)
		}
		ov.ShowExactHours = &v
		set = true
	}
	if !set {
		return nil, nil
	}
	return &ov, nil
}

func cacheVariant(from, to, days, showHours string) string {
	return strings.Join([]string{from, to, days, showHours}, "|")
}
