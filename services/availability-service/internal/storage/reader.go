package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/availo-hq/availo/libs/db"
	"github.com/availo-hq/availo/services/availability-service/internal/provider"
	"github.com/availo-hq/availo/services/availability-service/internal/resolve"
	"github.com/availo-hq/availo/services/availability-service/internal/schedule"
)

// Reader is the availability side's read-only view of the settings schema.
// Writes happen in settings-service; this service only resolves.
type Reader struct {
	pool *db.Pool
}

func NewReader(pool *db.Pool) *Reader {
	return &Reader{pool: pool}
}

func (r *Reader) GetSettings(ctx context.Context, ownerID string) (resolve.Settings, bool, error) {
	s := resolve.Settings{OwnerID: ownerID}
	err := r.pool.QueryRow(ctx, `
		SELECT timezone, show_exact_hours, look_ahead_days, show_busy_reasons
		FROM owner_settings
		WHERE owner_id = $1
	`, ownerID).Scan(&s.Timezone, &s.Options.ShowExactHours, &s.Options.LookAheadDays, &s.Options.ShowBusyReasons)
	if errors.Is(err, pgx.ErrNoRows) {
		return resolve.Settings{}, false, nil
	}
	if err != nil {
		return resolve.Settings{}, false, err
	}

	weekly, err := r.loadWeekly(ctx, ownerID)
	if err != nil {
		return resolve.Settings{}, false, err
	}
	s.Weekly = weekly
	return s, true, nil
}

func (r *Reader) loadWeekly(ctx context.Context, ownerID string) (schedule.Weekly, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT d.weekday, d.is_available, r.start_minute, r.end_minute
		FROM schedule_days d
		LEFT JOIN schedule_ranges r
			ON r.owner_id = d.owner_id AND r.weekday = d.weekday
		WHERE d.owner_id = $1
		ORDER BY d.weekday ASC, r.start_minute ASC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	weekly := schedule.Weekly{}
	for rows.Next() {
		var (
			wd          int
			isAvailable bool
			startMin    *int
			endMin      *int
		)
		if err := rows.Scan(&wd, &isAvailable, &startMin, &endMin); err != nil {
			return nil, err
		}
		day, err := schedule.WeekdayFromInt(wd)
		if err != nil {
			return nil, fmt.Errorf("schedule_days row: %w", err)
		}
		entry := weekly[day]
		entry.Available = isAvailable
		if startMin != nil && endMin != nil {
			entry.Ranges = append(entry.Ranges, schedule.TimeRange{StartMinute: *startMin, EndMinute: *endMin})
		}
		weekly[day] = entry
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return weekly.Normalize(), nil
}

func (r *Reader) ListActive(ctx context.Context, ownerID string) ([]provider.Connection, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, owner_id::text, provider, account_id, calendar_id, feed_url, credentials, is_active, metadata
		FROM calendar_connections
		WHERE owner_id = $1 AND is_active
		ORDER BY created_at ASC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []provider.Connection
	for rows.Next() {
		var (
			c    provider.Connection
			meta []byte
		)
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Provider, &c.AccountID, &c.CalendarID, &c.FeedURL, &c.Credentials, &c.IsActive, &meta); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &c.Metadata); err != nil {
				return nil, fmt.Errorf("connection %s metadata: %w", c.ID, err)
			}
		}
		out = append(out, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
