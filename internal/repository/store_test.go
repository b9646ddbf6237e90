package repository_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/mergington-activities/internal/database"
	"github.com/Shivanand-hulikatti/mergington-activities/internal/model"
	"github.com/Shivanand-hulikatti/mergington-activities/internal/repository"
)

// store is the method set shared by PostgresStore and SQLiteStore.
type store interface {
	Ping(ctx context.Context) error
	ListActivities(ctx context.Context) ([]model.Activity, error)
	GetActivity(ctx context.Context, name string) (*model.Activity, error)
	GetParticipant(ctx context.Context, email string) (*model.Participant, error)
	FindOrCreateParticipant(ctx context.Context, email string) (*model.Participant, error)
	SignUp(ctx context.Context, activityName, email string) (*model.Registration, error)
	Unregister(ctx context.Context, activityName, email string) (*model.Registration, error)
	Seed(ctx context.Context, seeds []model.ActivitySeed) (model.SeedResult, error)
}

func newSQLiteStore(t *testing.T) store {
	t.Helper()
	db, err := database.OpenSQLite(database.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.MigrateSQLite(db))
	return repository.NewSQLiteStore(db)
}

func newPostgresStore(t *testing.T) store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := database.NewPoolFromURL(ctx, url, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, database.MigratePostgres(pool))
	_, err = pool.Exec(ctx, `TRUNCATE activity_participants, participants, activities`)
	require.NoError(t, err)
	return repository.NewPostgresStore(pool)
}

// newSQLiteFileStore opens a WAL file database. Unlike :memory: it has a
// multi-connection pool, so transactions from different goroutines overlap.
func newSQLiteFileStore(t *testing.T) store {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "activities.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.MigrateSQLite(db))
	return repository.NewSQLiteStore(db)
}

var stores = map[string]func(t *testing.T) store{
	"sqlite":      newSQLiteStore,
	"sqlite-file": newSQLiteFileStore,
	"postgres":    newPostgresStore,
}

func forEachStore(t *testing.T, fn func(t *testing.T, s store)) {
	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			fn(t, open(t))
		})
	}
}

func testSeeds() []model.ActivitySeed {
	return []model.ActivitySeed{
		{
			Name:            "Chess Club",
			Description:     "Learn strategies and compete in chess tournaments",
			Schedule:        "Fridays, 3:30 PM - 5:00 PM",
			MaxParticipants: 12,
			Participants:    []string{"michael@mergington.edu", "daniel@mergington.edu"},
		},
		{
			Name:            "Math Club",
			Description:     "Solve challenging problems",
			Schedule:        "Tuesdays, 3:30 PM - 4:30 PM",
			MaxParticipants: 3,
			Participants:    []string{"james@mergington.edu", "daniel@mergington.edu"},
		},
	}
}

func seeded(t *testing.T, s store) {
	t.Helper()
	_, err := s.Seed(context.Background(), testSeeds())
	require.NoError(t, err)
}

func rosters(t *testing.T, s store) map[string][]string {
	t.Helper()
	activities, err := s.ListActivities(context.Background())
	require.NoError(t, err)
	out := make(map[string][]string, len(activities))
	for _, a := range activities {
		out[a.Name] = a.Participants
	}
	return out
}

func TestStore_SeedAndList(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()

		res, err := s.Seed(ctx, testSeeds())
		require.NoError(t, err)
		assert.Equal(t, model.SeedResult{ActivitiesCreated: 2, ParticipantsCreated: 3}, res)

		activities, err := s.ListActivities(ctx)
		require.NoError(t, err)
		require.Len(t, activities, 2)

		chess := activities[0]
		assert.Equal(t, "Chess Club", chess.Name)
		assert.Equal(t, "chess-club", chess.Slug)
		assert.Equal(t, 12, chess.MaxParticipants)
		assert.Equal(t, "Fridays, 3:30 PM - 5:00 PM", chess.Schedule)
		assert.Equal(t, []string{"michael@mergington.edu", "daniel@mergington.edu"}, chess.Participants)
		assert.NotEmpty(t, chess.ID)
	})
}

func TestStore_ListActivities_Empty(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		activities, err := s.ListActivities(context.Background())
		require.NoError(t, err)
		assert.Empty(t, activities)
	})
}

func TestStore_SeedIsIdempotent(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		seeded(t, s)
		before := rosters(t, s)

		res, err := s.Seed(ctx, testSeeds())
		require.NoError(t, err)
		assert.Equal(t, model.SeedResult{ActivitiesSkipped: 2}, res)
		assert.Equal(t, before, rosters(t, s))

		p, err := s.GetParticipant(ctx, "daniel@mergington.edu")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"Chess Club", "Math Club"}, p.Activities)
	})
}

func TestStore_SeedSkipsSlugCollision(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		seeded(t, s)

		res, err := s.Seed(ctx, []model.ActivitySeed{
			{Name: "Chess club", MaxParticipants: 4, Participants: []string{"newcomer@mergington.edu"}},
		})
		require.NoError(t, err)
		assert.Equal(t, model.SeedResult{ActivitiesSkipped: 1}, res)

		a, err := s.GetActivity(ctx, "chess-club")
		require.NoError(t, err)
		assert.Equal(t, "Chess Club", a.Name)
		assert.Equal(t, 12, a.MaxParticipants)

		_, err = s.GetParticipant(ctx, "newcomer@mergington.edu")
		require.ErrorIs(t, err, model.ErrParticipantNotFound)
	})
}

func TestStore_SeedDoesNotRestoreRoster(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		seeded(t, s)

		_, err := s.Unregister(ctx, "Chess Club", "michael@mergington.edu")
		require.NoError(t, err)

		_, err = s.Seed(ctx, testSeeds())
		require.NoError(t, err)
		assert.Equal(t, []string{"daniel@mergington.edu"}, rosters(t, s)["Chess Club"])
	})
}

func TestStore_SignUpScenario(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		seeded(t, s)
		const email = "new@mergington.edu"

		reg, err := s.SignUp(ctx, "Chess Club", email)
		require.NoError(t, err)
		assert.Equal(t, "Chess Club", reg.ActivityName)
		assert.Equal(t, email, reg.Email)
		assert.Len(t, rosters(t, s)["Chess Club"], 3)

		_, err = s.SignUp(ctx, "Chess Club", email)
		require.ErrorIs(t, err, model.ErrAlreadySignedUp)
		assert.Len(t, rosters(t, s)["Chess Club"], 3)

		_, err = s.Unregister(ctx, "Chess Club", email)
		require.NoError(t, err)
		assert.Len(t, rosters(t, s)["Chess Club"], 2)

		_, err = s.SignUp(ctx, "Unknown Club", "x@mergington.edu")
		require.ErrorIs(t, err, model.ErrActivityNotFound)
	})
}

func TestStore_Unregister(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		seeded(t, s)

		_, err := s.Unregister(ctx, "Unknown Club", "michael@mergington.edu")
		require.ErrorIs(t, err, model.ErrActivityNotFound)

		_, err = s.Unregister(ctx, "Chess Club", "nobody@mergington.edu")
		require.ErrorIs(t, err, model.ErrNotSignedUp)

		// Known participant, different activity.
		_, err = s.Unregister(ctx, "Math Club", "michael@mergington.edu")
		require.ErrorIs(t, err, model.ErrNotSignedUp)

		_, err = s.Unregister(ctx, "Chess Club", "michael@mergington.edu")
		require.NoError(t, err)
		_, err = s.Unregister(ctx, "Chess Club", "michael@mergington.edu")
		require.ErrorIs(t, err, model.ErrNotSignedUp)
	})
}

func TestStore_RelationIsSymmetric(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		seeded(t, s)
		const email = "sym@mergington.edu"

		_, err := s.SignUp(ctx, "Math Club", email)
		require.NoError(t, err)

		p, err := s.GetParticipant(ctx, email)
		require.NoError(t, err)
		assert.Equal(t, []string{"Math Club"}, p.Activities)
		assert.Contains(t, rosters(t, s)["Math Club"], email)

		_, err = s.Unregister(ctx, "Math Club", email)
		require.NoError(t, err)

		// The participant outlives its last registration.
		p, err = s.GetParticipant(ctx, email)
		require.NoError(t, err)
		assert.Empty(t, p.Activities)
		assert.NotContains(t, rosters(t, s)["Math Club"], email)
	})
}

func TestStore_SignUp_Full(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		seeded(t, s)

		_, err := s.SignUp(ctx, "Math Club", "third@mergington.edu")
		require.NoError(t, err)

		_, err = s.SignUp(ctx, "Math Club", "fourth@mergington.edu")
		require.ErrorIs(t, err, model.ErrActivityFull)
		assert.Len(t, rosters(t, s)["Math Club"], 3)

		// The rejected sign-up rolled back the participant it created.
		_, err = s.GetParticipant(ctx, "fourth@mergington.edu")
		require.ErrorIs(t, err, model.ErrParticipantNotFound)
	})
}

func TestStore_DuplicateCheckedBeforeCapacity(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		seeded(t, s)

		_, err := s.SignUp(ctx, "Math Club", "third@mergington.edu")
		require.NoError(t, err)

		_, err = s.SignUp(ctx, "Math Club", "james@mergington.edu")
		require.ErrorIs(t, err, model.ErrAlreadySignedUp)
	})
}

func TestStore_LookupBySlug(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		seeded(t, s)

		a, err := s.GetActivity(ctx, "chess-club")
		require.NoError(t, err)
		assert.Equal(t, "Chess Club", a.Name)
		assert.Equal(t, []string{"michael@mergington.edu", "daniel@mergington.edu"}, a.Participants)

		reg, err := s.SignUp(ctx, "math-club", "slug@mergington.edu")
		require.NoError(t, err)
		assert.Equal(t, "Math Club", reg.ActivityName)

		_, err = s.GetActivity(ctx, "no-such-club")
		require.ErrorIs(t, err, model.ErrActivityNotFound)
	})
}

func TestStore_FindOrCreateParticipant(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		seeded(t, s)

		p, err := s.FindOrCreateParticipant(ctx, "michael@mergington.edu")
		require.NoError(t, err)
		assert.Equal(t, []string{"Chess Club"}, p.Activities)

		const email = "fresh@mergington.edu"
		var wg sync.WaitGroup
		errs := make([]error, 10)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = s.FindOrCreateParticipant(ctx, email)
			}(i)
		}
		wg.Wait()
		for _, err := range errs {
			require.NoError(t, err)
		}

		p, err = s.GetParticipant(ctx, email)
		require.NoError(t, err)
		assert.Equal(t, email, p.Email)
		assert.Empty(t, p.Activities)
	})
}

func TestStore_ConcurrentSignUpsRespectCapacity(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		_, err := s.Seed(ctx, []model.ActivitySeed{{Name: "Robotics", MaxParticipants: 5}})
		require.NoError(t, err)

		const n = 20
		results := make(chan model.SignUpResult, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				email := fmt.Sprintf("student%02d@mergington.edu", i)
				_, err := s.SignUp(ctx, "Robotics", email)
				results <- model.SignUpResult{Email: email, Err: err}
			}(i)
		}
		wg.Wait()
		close(results)

		var ok, full int
		for r := range results {
			switch {
			case r.Err == nil:
				ok++
			default:
				require.ErrorIs(t, r.Err, model.ErrActivityFull, r.Email)
				full++
			}
		}
		assert.Equal(t, 5, ok)
		assert.Equal(t, n-5, full)
		assert.Len(t, rosters(t, s)["Robotics"], 5)
	})
}

func TestStore_ConcurrentDuplicateSignUps(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		seeded(t, s)

		const n = 10
		errs := make([]error, n)
		var wg sync.WaitGroup
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = s.SignUp(ctx, "Chess Club", "twin@mergington.edu")
			}(i)
		}
		wg.Wait()

		var ok int
		for _, err := range errs {
			if err == nil {
				ok++
				continue
			}
			require.ErrorIs(t, err, model.ErrAlreadySignedUp)
		}
		assert.Equal(t, 1, ok)
		assert.Len(t, rosters(t, s)["Chess Club"], 3)
	})
}

func TestStore_Ping(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		require.NoError(t, s.Ping(context.Background()))
	})
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "chess-club", repository.Slugify("Chess Club"))
	assert.Equal(t, "programming-class", repository.Slugify("  Programming Class "))
}
