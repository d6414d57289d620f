package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/availo-hq/availo/libs/db"
	"github.com/availo-hq/availo/services/settings-service/internal/model"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// GetSettings loads one owner's settings document. The second return is false
// when the owner has no row yet.
func (r *Repository) GetSettings(ctx context.Context, ownerID string) (model.Settings, bool, error) {
	var s model.Settings
	err := r.pool.QueryRow(ctx, `
		SELECT timezone, show_exact_hours, look_ahead_days, show_busy_reasons
		FROM owner_settings
		WHERE owner_id = $1
	`, ownerID).Scan(&s.Timezone, &s.DisplayOptions.ShowExactHours, &s.DisplayOptions.LookAheadDays, &s.DisplayOptions.ShowBusyReasons)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Settings{}, false, nil
	}
	if err != nil {
		return model.Settings{}, false, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT d.weekday, d.is_available, r.start_minute, r.end_minute
		FROM schedule_days d
		LEFT JOIN schedule_ranges r
			ON r.owner_id = d.owner_id AND r.weekday = d.weekday
		WHERE d.owner_id = $1
		ORDER BY d.weekday ASC, r.start_minute ASC
	`, ownerID)
	if err != nil {
		return model.Settings{}, false, err
	}
	defer rows.Close()

	weekly := map[string]model.DaySchedule{}
	for rows.Next() {
		var (
			wd          int
			isAvailable bool
			startMin    *int
			endMin      *int
		)
		if err := rows.Scan(&wd, &isAvailable, &startMin, &endMin); err != nil {
			return model.Settings{}, false, err
		}
		if wd < 0 || wd >= len(model.WeekdayNames) {
			continue
		}
		name := model.WeekdayNames[wd]
		day := weekly[name]
		day.Available = isAvailable
		if startMin != nil && endMin != nil {
			day.TimeRanges = append(day.TimeRanges, model.TimeRange{
				Start: model.FormatClock(*startMin),
				End:   model.FormatClock(*endMin),
			})
		}
		weekly[name] = day
	}
	if rows.Err() != nil {
		return model.Settings{}, false, rows.Err()
	}
	s.WeeklySchedule = weekly
	return s.Normalize(), true, nil
}

// ReplaceSettings writes the full document inside the caller's transaction so
// the outbox event commits atomically with the change.
func (r *Repository) ReplaceSettings(ctx context.Context, tx pgx.Tx, ownerID string, s model.Settings) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO owner_settings (owner_id, timezone, show_exact_hours, look_ahead_days, show_busy_reasons)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner_id) DO UPDATE
		SET timezone = EXCLUDED.timezone,
			show_exact_hours = EXCLUDED.show_exact_hours,
			look_ahead_days = EXCLUDED.look_ahead_days,
			show_busy_reasons = EXCLUDED.show_busy_reasons,
			updated_at = now()
	`, ownerID, s.Timezone, s.DisplayOptions.ShowExactHours, s.DisplayOptions.LookAheadDays, s.DisplayOptions.ShowBusyReasons)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM schedule_ranges WHERE owner_id = $1`, ownerID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM schedule_days WHERE owner_id = $1`, ownerID); err != nil {
		return err
	}

	for wd, name := range model.WeekdayNames {
		day := s.WeeklySchedule[name]
		if _, err := tx.Exec(ctx, `
			INSERT INTO schedule_days (owner_id, weekday, is_available)
			VALUES ($1, $2, $3)
		`, ownerID, wd, day.Available); err != nil {
			return err
		}
		if !day.Available {
			continue
		}
		for _, tr := range day.TimeRanges {
			startMin, endMin, err := model.RangeMinutes(tr)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO schedule_ranges (owner_id, weekday, start_minute, end_minute)
				VALUES ($1, $2, $3, $4)
			`, ownerID, wd, startMin, endMin); err != nil {
				return err
			}
		}
	}
	return nil
}

type Connection struct {
	ID         string
	OwnerID    string
	Provider   string
	AccountID  string
	CalendarID string
	FeedURL    string
	IsActive   bool
	Metadata   []byte
	CreatedAt  time.Time
}

func (r *Repository) CreateConnection(ctx context.Context, tx pgx.Tx, c Connection, credentials string) (string, error) {
	id := uuid.NewString()
	_, err := tx.Exec(ctx, `
		INSERT INTO calendar_connections (id, owner_id, provider, account_id, calendar_id, feed_url, credentials, is_active, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9::jsonb, '{}'::jsonb))
	`, id, c.OwnerID, c.Provider, c.AccountID, c.CalendarID, c.FeedURL, credentials, c.IsActive, nullableJSON(c.Metadata))
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repository) ListConnections(ctx context.Context, ownerID string) ([]Connection, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, owner_id::text, provider, account_id, calendar_id, feed_url, is_active, metadata, created_at
		FROM calendar_connections
		WHERE owner_id = $1
		ORDER BY created_at ASC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Connection
	for rows.Next() {
		var c Connection
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Provider, &c.AccountID, &c.CalendarID, &c.FeedURL, &c.IsActive, &c.Metadata, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *Repository) SetConnectionActive(ctx context.Context, tx pgx.Tx, ownerID, connectionID string, active bool) error {
	tag, err := tx.Exec(ctx, `
		UPDATE calendar_connections
		SET is_active = $3, updated_at = now()
		WHERE owner_id = $1 AND id = $2
	`, ownerID, connectionID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *Repository) DeleteConnection(ctx context.Context, tx pgx.Tx, ownerID, connectionID string) error {
	tag, err := tx.Exec(ctx, `
		DELETE FROM calendar_connections
		WHERE owner_id = $1 AND id = $2
	`, ownerID, connectionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
