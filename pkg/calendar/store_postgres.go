package calendar

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

type PostgresStore struct {
	db *pgxpool.Pool
	tx pgx.Tx
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// getQueryer returns the appropriate database interface for queries (either tx or db)
func (s *PostgresStore) getQueryer() interface {
	Exec(ctx context.Context, query string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, query string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) pgx.Row
} {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

func (s *PostgresStore) WithTransaction(ctx context.Context, fn func(store Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		// The Rollback will be a no-op if the transaction was already committed
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			log.Errorf("rollback error: %v", rbErr)
		}
	}()

	if err := fn(&PostgresStore{db: s.db, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Event, error) {
	query := `SELECT uid, title, start_time, end_time, all_day, color, description, meeting_link,
                     members, recurring, series_id
              FROM calendar_event
              ORDER BY position`

	rows, err := s.getQueryer().Query(ctx, query)
	if err != nil {
		err := fmt.Errorf("could not query calendar events: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	events := make([]Event, 0, 16)
	for rows.Next() {
		var uid string
		var seriesId *string
		var color string
		var e Event
		err := rows.Scan(&uid, &e.Title, &e.Start, &e.End, &e.AllDay, &color, &e.Description, &e.MeetingLink,
			&e.Members, &e.Recurring, &seriesId)
		if err != nil {
			err := fmt.Errorf("could not scan row: %w", err)
			log.Error(err)
			return nil, err
		}
		if e.UID, err = uuid.Parse(uid); err != nil {
			return nil, fmt.Errorf("stored event has invalid uid %q: %w", uid, err)
		}
		if seriesId != nil {
			id, err := uuid.Parse(*seriesId)
			if err != nil {
				return nil, fmt.Errorf("stored event %s has invalid series id: %w", uid, err)
			}
			e.SeriesId = uuid.NullUUID{UUID: id, Valid: true}
		}
		e.Color = Color(color)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not read calendar events: %w", err)
	}
	return events, nil
}

func (s *PostgresStore) ReplaceAll(ctx context.Context, events []Event) error {
	if err := checkUniqueUIDs(events); err != nil {
		return err
	}
	return s.WithTransaction(ctx, func(store Store) error {
		txStore := store.(*PostgresStore)
		if _, err := txStore.getQueryer().Exec(ctx, `DELETE FROM calendar_event`); err != nil {
			return fmt.Errorf("could not clear calendar events: %w", err)
		}
		for _, e := range events {
			if err := txStore.Upsert(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PostgresStore) Upsert(ctx context.Context, event Event) error {
	if event.UID == uuid.Nil {
		return ErrMissingEventUID
	}
	query := `INSERT INTO calendar_event (
                            uid,
                            title,
                            start_time,
                            end_time,
                            all_day,
                            color,
                            description,
                            meeting_link,
                            members,
                            recurring,
                            series_id
						) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			  ON CONFLICT (uid) DO UPDATE SET
			                title = EXCLUDED.title,
			                start_time = EXCLUDED.start_time,
			                end_time = EXCLUDED.end_time,
			                all_day = EXCLUDED.all_day,
			                color = EXCLUDED.color,
			                description = EXCLUDED.description,
			                meeting_link = EXCLUDED.meeting_link,
			                members = EXCLUDED.members,
			                recurring = EXCLUDED.recurring,
			                series_id = EXCLUDED.series_id`

	members := event.Members
	if members == nil {
		members = []Member{}
	}
	var seriesId *string
	if event.SeriesId.Valid {
		id := event.SeriesId.UUID.String()
		seriesId = &id
	}
	_, err := s.getQueryer().Exec(ctx, query,
		event.UID.String(),
		event.Title,
		event.Start,
		event.End,
		event.AllDay,
		string(event.Color),
		event.Description,
		event.MeetingLink,
		members,
		event.Recurring,
		seriesId,
	)
	if err != nil {
		err := fmt.Errorf("could not upsert calendar event: %w", err)
		log.Error(err)
		return err
	}
	return nil
}

// RemoveWhere evaluates pred in Go, so it reads the events and deletes the matching ones
// inside a single transaction.
func (s *PostgresStore) RemoveWhere(ctx context.Context, pred func(Event) bool) (int, error) {
	removed := 0
	err := s.WithTransaction(ctx, func(store Store) error {
		txStore := store.(*PostgresStore)
		events, err := txStore.List(ctx)
		if err != nil {
			return err
		}
		for _, e := range events {
			if !pred(e) {
				continue
			}
			if _, err := txStore.getQueryer().Exec(ctx, `DELETE FROM calendar_event WHERE uid = $1`, e.UID.String()); err != nil {
				err := fmt.Errorf("could not delete calendar event: %w", err)
				log.Error(err)
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}
