package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/mergington-activities/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists the catalog and the registration ledger in PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore. The caller owns pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: pool}
}

// Ping checks the pool can reach the server.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// ListActivities returns every activity with its roster in registration order.
func (s *PostgresStore) ListActivities(ctx context.Context) ([]model.Activity, error) {
	rows, err := s.db.Query(ctx,
		`SELECT a.id, a.name, a.slug, a.description, a.schedule, a.max_participants, ap.participant_email
		 FROM activities a
		 LEFT JOIN activity_participants ap ON ap.activity_id = a.id
		 ORDER BY a.seq, ap.seq`,
	)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var activities []model.Activity
	for rows.Next() {
		var (
			a     model.Activity
			email *string
		)
		if err := rows.Scan(&a.ID, &a.Name, &a.Slug, &a.Description, &a.Schedule, &a.MaxParticipants, &email); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		activities = appendRosterRow(activities, a, email)
	}
	return activities, rows.Err()
}

// GetActivity returns one activity by name or slug, or model.ErrActivityNotFound.
func (s *PostgresStore) GetActivity(ctx context.Context, name string) (*model.Activity, error) {
	a, err := pgLookupActivity(ctx, s.db, name, false)
	if err != nil {
		return nil, err
	}
	if a.Participants, err = pgRoster(ctx, s.db, a.ID); err != nil {
		return nil, err
	}
	return a, nil
}

// GetParticipant returns a participant and the activities they are registered for.
func (s *PostgresStore) GetParticipant(ctx context.Context, email string) (*model.Participant, error) {
	return pgParticipant(ctx, s.db, email)
}

// FindOrCreateParticipant resolves email to its participant, creating the
// record on first use. Concurrent first uses converge on one row.
func (s *PostgresStore) FindOrCreateParticipant(ctx context.Context, email string) (*model.Participant, error) {
	if _, err := pgUpsertParticipant(ctx, s.db, email); err != nil {
		return nil, err
	}
	return pgParticipant(ctx, s.db, email)
}

// SignUp links email to the activity inside a transaction that holds the
// activity row lock, so a concurrent sign-up for the same activity waits
// until this one commits or rolls back.
func (s *PostgresStore) SignUp(ctx context.Context, activityName, email string) (*model.Registration, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	// No-op once committed.
	defer func() { _ = tx.Rollback(ctx) }()

	a, err := pgLookupActivity(ctx, tx, activityName, true)
	if err != nil {
		return nil, err
	}

	if _, err := pgUpsertParticipant(ctx, tx, email); err != nil {
		return nil, err
	}

	var registered bool
	var count int
	err = tx.QueryRow(ctx,
		`SELECT
		   EXISTS (SELECT 1 FROM activity_participants WHERE activity_id = $1 AND participant_email = $2),
		   (SELECT COUNT(*) FROM activity_participants WHERE activity_id = $1)`,
		a.ID, email,
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

	if _, err := tx.Exec(ctx,
		`INSERT INTO activity_participants (activity_id, participant_email) VALUES ($1, $2)`,
		a.ID, email,
	); err != nil {
		return nil, fmt.Errorf("insert registration: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return &model.Registration{ActivityID: a.ID, ActivityName: a.Name, Email: email}, nil
}

// Unregister removes the link between email and the activity.
func (s *PostgresStore) Unregister(ctx context.Context, activityName, email string) (*model.Registration, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	a, err := pgLookupActivity(ctx, tx, activityName, true)
	if err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx,
		`DELETE FROM activity_participants WHERE activity_id = $1 AND participant_email = $2`,
		a.ID, email,
	)
	if err != nil {
		return nil, fmt.Errorf("delete registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, model.ErrNotSignedUp
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return &model.Registration{ActivityID: a.ID, ActivityName: a.Name, Email: email}, nil
}

// Seed inserts catalog entries whose name and slug are not yet taken, together with
// their initial rosters. Existing activities are left untouched.
func (s *PostgresStore) Seed(ctx context.Context, seeds []model.ActivitySeed) (model.SeedResult, error) {
	var res model.SeedResult

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, seed := range seeds {
		id := uuid.NewString()
		tag, err := tx.Exec(ctx,
			`INSERT INTO activities (id, name, slug, description, schedule, max_participants)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT DO NOTHING`,
			id, seed.Name, Slugify(seed.Name), seed.Description, seed.Schedule, seed.MaxParticipants,
		)
		if err != nil {
			return model.SeedResult{}, fmt.Errorf("insert activity %q: %w", seed.Name, err)
		}
		if tag.RowsAffected() == 0 {
			res.ActivitiesSkipped++
			continue
		}
		res.ActivitiesCreated++

		for _, email := range dedupe(seed.Participants) {
			created, err := pgUpsertParticipant(ctx, tx, email)
			if err != nil {
				return model.SeedResult{}, err
			}
			if created {
				res.ParticipantsCreated++
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO activity_participants (activity_id, participant_email) VALUES ($1, $2)`,
				id, email,
			); err != nil {
				return model.SeedResult{}, fmt.Errorf("link %s to %q: %w", email, seed.Name, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return model.SeedResult{}, fmt.Errorf("commit transaction: %w", err)
	}
	return res, nil
}

func pgLookupActivity(ctx context.Context, q pgxQuerier, name string, forUpdate bool) (*model.Activity, error) {
	query := activityLookupSQLPostgres
	if forUpdate {
		query += " FOR UPDATE"
	}

	var a model.Activity
	err := q.QueryRow(ctx, query, name).
		Scan(&a.ID, &a.Name, &a.Slug, &a.Description, &a.Schedule, &a.MaxParticipants)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrActivityNotFound
		}
		return nil, fmt.Errorf("get activity: %w", err)
	}
	return &a, nil
}

func pgRoster(ctx context.Context, q pgxQuerier, activityID string) ([]string, error) {
	rows, err := q.Query(ctx,
		`SELECT participant_email FROM activity_participants WHERE activity_id = $1 ORDER BY seq`,
		activityID,
	)
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	emails, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan roster: %w", err)
	}
	if emails == nil {
		emails = []string{}
	}
	return emails, nil
}

func pgUpsertParticipant(ctx context.Context, q pgxQuerier, email string) (bool, error) {
	tag, err := q.Exec(ctx,
		`INSERT INTO participants (email) VALUES ($1) ON CONFLICT (email) DO NOTHING`,
		email,
	)
	if err != nil {
		return false, fmt.Errorf("upsert participant: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func pgParticipant(ctx context.Context, q pgxQuerier, email string) (*model.Participant, error) {
	var p model.Participant
	err := q.QueryRow(ctx, `SELECT email FROM participants WHERE email = $1`, email).Scan(&p.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrParticipantNotFound
		}
		return nil, fmt.Errorf("get participant: %w", err)
	}

	rows, err := q.Query(ctx,
		`SELECT a.name
		 FROM activity_participants ap
		 JOIN activities a ON a.id = ap.activity_id
		 WHERE ap.participant_email = $1
		 ORDER BY ap.seq`,
		email,
	)
	if err != nil {
		return nil, fmt.Errorf("list participant activities: %w", err)
	}
	p.Activities, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan participant activities: %w", err)
	}
	if p.Activities == nil {
		p.Activities = []string{}
	}
	return &p, nil
}

// appendRosterRow folds one row of an activities LEFT JOIN roster query
// into the running list. Rows of one activity must be adjacent.
func appendRosterRow(list []model.Activity, a model.Activity, email *string) []model.Activity {
	if n := len(list); n == 0 || list[n-1].ID != a.ID {
		a.Participants = []string{}
		list = append(list, a)
	}
	if email != nil {
		last := &list[len(list)-1]
		last.Participants = append(last.Participants, *email)
	}
	return list
}
