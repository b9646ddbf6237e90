package seed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/mergington-activities/internal/model"
)

func TestDefault(t *testing.T) {
	activities := Default()
	require.Len(t, activities, 9)

	names := make(map[string]bool, len(activities))
	for _, a := range activities {
		require.NoError(t, a.Validate(), a.Name)
		assert.False(t, names[a.Name], "duplicate %s", a.Name)
		names[a.Name] = true
	}
	assert.True(t, names["Chess Club"])
	assert.True(t, names["Debate Team"])

	// Callers may mutate the result freely.
	activities[0].Participants[0] = "changed@mergington.edu"
	assert.Equal(t, "michael@mergington.edu", Default()[0].Participants[0])
}

func TestParse(t *testing.T) {
	data := []byte(`
activities:
  - name: Robotics
    description: Build robots
    schedule: Mondays, 4:00 PM
    max_participants: 2
    participants: [ada@mergington.edu]
  - name: Cooking
    max_participants: 8
`)
	activities, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, activities, 2)
	assert.Equal(t, model.ActivitySeed{
		Name:            "Robotics",
		Description:     "Build robots",
		Schedule:        "Mondays, 4:00 PM",
		MaxParticipants: 2,
		Participants:    []string{"ada@mergington.edu"},
	}, activities[0])
	assert.Empty(t, activities[1].Participants)
}

func TestParse_Rejects(t *testing.T) {
	tests := map[string]string{
		"unknown field": "activities:\n  - name: Robotics\n    capacity: 3\n",
		"over capacity": "activities:\n  - name: Robotics\n    max_participants: 1\n    participants: [a@m.edu, b@m.edu]\n",
		"no capacity":   "activities:\n  - name: Robotics\n",
		"empty list":    "activities: []\n",
		"not yaml":      "activities: [\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data))
			require.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activities.yaml")
	require.NoError(t, os.WriteFile(path, []byte("activities:\n  - name: Robotics\n    max_participants: 4\n"), 0o600))

	activities, err := Load(path)
	require.NoError(t, err)
	require.Len(t, activities, 1)
	assert.Equal(t, "Robotics", activities[0].Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
