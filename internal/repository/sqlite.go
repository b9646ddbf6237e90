package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/mergington-activities/internal/model"
	"github.com/google/uuid"
)

// sqlQuerier is satisfied by both *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore persists the catalog and the registration ledger in SQLite.
//
// The handle must be opened with database.OpenSQLite: its transactions
// acquire the write lock at BEGIN, which serializes every mutation and so
// also every mutation of the same activity.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore constructs a SQLiteStore. The caller owns db.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Ping checks the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ListActivities returns every activity with its roster in registration order.
func (s *SQLiteStore) ListActivities(ctx context.Context) ([]model.Activity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.name, a.slug, a.description, a.schedule, a.max_participants, ap.participant_email
		 FROM activities a
		 LEFT JOIN activity_participants ap ON ap.activity_id = a.id
		 ORDER BY a.rowid, ap.rowid`,
	)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var activities []model.Activity
	for rows.Next() {
		var (
			a     model.Activity
			email sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.Name, &a.Slug, &a.Description, &a.Schedule, &a.MaxParticipants, &email); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		var ep *string
		if email.Valid {
			ep = &email.String
		}
		activities = appendRosterRow(activities, a, ep)
	}
	return activities, rows.Err()
}

// GetActivity returns one activity by name or slug, or model.ErrActivityNotFound.
func (s *SQLiteStore) GetActivity(ctx context.Context, name string) (*model.Activity, error) {
	a, err := sqliteLookupActivity(ctx, s.db, name)
	if err != nil {
		return nil, err
	}
	if a.Participants, err = sqliteRoster(ctx, s.db, a.ID); err != nil {
		return nil, err
	}
	return a, nil
}

// GetParticipant returns a participant and the activities they are registered for.
func (s *SQLiteStore) GetParticipant(ctx context.Context, email string) (*model.Participant, error) {
	return sqliteParticipant(ctx, s.db, email)
}

// FindOrCreateParticipant resolves email to its participant, creating the
// record on first use.
func (s *SQLiteStore) FindOrCreateParticipant(ctx context.Context, email string) (*model.Participant, error) {
	if _, err := sqliteUpsertParticipant(ctx, s.db, email); err != nil {
		return nil, err
	}
	return sqliteParticipant(ctx, s.db, email)
}

// SignUp links email to the activity in one write transaction.
func (s *SQLiteStore) SignUp(ctx context.Context, activityName, email string) (*model.Registration, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	a, err := sqliteLookupActivity(ctx, tx, activityName)
	if err != nil {
		return nil, err
	}

	if _, err := sqliteUpsertParticipant(ctx, tx, email); err != nil {
		return nil, err
	}

	var registered bool
	var count int
	err = tx.QueryRowContext(ctx,
		`SELECT
		   EXISTS (SELECT 1 FROM activity_participants WHERE activity_id = ? AND participant_email = ?),
		   (SELECT COUNT(*) FROM activity_participants WHERE activity_id = ?)`,
		a.ID, email, a.ID,
	).Scan(&registered, &count)
	if err != nil {
		return nil, fmt.Errorf("check registration: %w", err)
	}
	if registered {
		return nil, model.ErrAlreadySignedUp
	}
	if count >= a.MaxParticipants {
		return nil, model.ErrActivityFull
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO activity_participants (activity_id, participant_email) VALUES (?, ?)`,
		a.ID, email,
	); err != nil {
		return nil, fmt.Errorf("insert registration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return &model.Registration{ActivityID: a.ID, ActivityName: a.Name, Email: email}, nil
}

// Unregister removes the link between email and the activity.
func (s *SQLiteStore) Unregister(ctx context.Context, activityName, email string) (*model.Registration, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	a, err := sqliteLookupActivity(ctx, tx, activityName)
	if err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM activity_participants WHERE activity_id = ? AND participant_email = ?`,
		a.ID, email,
	)
	if err != nil {
		return nil, fmt.Errorf("delete registration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("delete registration: %w", err)
	}
	if n == 0 {
		return nil, model.ErrNotSignedUp
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return &model.Registration{ActivityID: a.ID, ActivityName: a.Name, Email: email}, nil
}

// Seed inserts catalog entries whose name and slug are not yet taken, together with
// their initial rosters. Existing activities are left untouched.
func (s *SQLiteStore) Seed(ctx context.Context, seeds []model.ActivitySeed) (model.SeedResult, error) {
	var res model.SeedResult

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, seed := range seeds {
		id := uuid.NewString()
		r, err := tx.ExecContext(ctx,
			`INSERT INTO activities (id, name, slug, description, schedule, max_participants)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT DO NOTHING`,
			id, seed.Name, Slugify(seed.Name), seed.Description, seed.Schedule, seed.MaxParticipants,
		)
		if err != nil {
			return model.SeedResult{}, fmt.Errorf("insert activity %q: %w", seed.Name, err)
		}
		if n, err := r.RowsAffected(); err != nil {
			return model.SeedResult{}, fmt.Errorf("insert activity %q: %w", seed.Name, err)
		} else if n == 0 {
			res.ActivitiesSkipped++
			continue
		}
		res.ActivitiesCreated++

		for _, email := range dedupe(seed.Participants) {
			created, err := sqliteUpsertParticipant(ctx, tx, email)
			if err != nil {
				return model.SeedResult{}, err
			}
			if created {
				res.ParticipantsCreated++
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO activity_participants (activity_id, participant_email) VALUES (?, ?)`,
				id, email,
			); err != nil {
				return model.SeedResult{}, fmt.Errorf("link %s to %q: %w", email, seed.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return model.SeedResult{}, fmt.Errorf("commit transaction: %w", err)
	}
	return res, nil
}

func sqliteLookupActivity(ctx context.Context, q sqlQuerier, name string) (*model.Activity, error) {
	var a model.Activity
	err := q.QueryRowContext(ctx, activityLookupSQLSQLite, name, name, name).
		Scan(&a.ID, &a.Name, &a.Slug, &a.Description, &a.Schedule, &a.MaxParticipants)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrActivityNotFound
		}
		return nil, fmt.Errorf("get activity: %w", err)
	}
	return &a, nil
}

func sqliteRoster(ctx context.Context, q sqlQuerier, activityID string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT participant_email FROM activity_participants WHERE activity_id = ? ORDER BY rowid`,
		activityID,
	)
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	return collectStrings(rows, "roster")
}

func sqliteUpsertParticipant(ctx context.Context, q sqlQuerier, email string) (bool, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO participants (email) VALUES (?) ON CONFLICT (email) DO NOTHING`,
		email,
	)
	if err != nil {
		return false, fmt.Errorf("upsert participant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("upsert participant: %w", err)
	}
	return n == 1, nil
}

func sqliteParticipant(ctx context.Context, q sqlQuerier, email string) (*model.Participant, error) {
	var p model.Participant
	err := q.QueryRowContext(ctx, `SELECT email FROM participants WHERE email = ?`, email).Scan(&p.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrParticipantNotFound
		}
		return nil, fmt.Errorf("get participant: %w", err)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT a.name
		 FROM activity_participants ap
		 JOIN activities a ON a.id = ap.activity_id
		 WHERE ap.participant_email = ?
		 ORDER BY ap.rowid`,
		email,
	)
	if err != nil {
		return nil, fmt.Errorf("list participant activities: %w", err)
	}
	if p.Activities, err = collectStrings(rows, "participant activities"); err != nil {
		return nil, err
	}
	return &p, nil
}

func collectStrings(rows *sql.Rows, what string) ([]string, error) {
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan %s: %w", what, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", what, err)
	}
	return out, nil
}
