// Package model defines the core domain types for the activity registration system.
package model

import (
	"slices"
	"strings"
)

// Activity is an extracurricular activity students can sign up for.
type Activity struct {
	ID              string   `json:"-"`
	Name            string   `json:"name"`
	Slug            string   `json:"slug"`
	Description     string   `json:"description"`
	Schedule        string   `json:"schedule"`
	MaxParticipants int      `json:"max_participants"`
	Participants    []string `json:"participants"`
}

// Remaining returns the number of open spots.
func (a *Activity) Remaining() int {
	return a.MaxParticipants - len(a.Participants)
}

// IsFull returns true when no spots remain.
func (a *Activity) IsFull() bool {
	return len(a.Participants) >= a.MaxParticipants
}

// Clone returns a copy that does not share the roster slice.
func (a Activity) Clone() Activity {
	a.Participants = slices.Clone(a.Participants)
	if a.Participants == nil {
		a.Participants = []string{}
	}
	return a
}

// ActivityDetail is a single activity with its open capacity.
type ActivityDetail struct {
	Activity
	Remaining int  `json:"remaining"`
	Full      bool `json:"full"`
}

// Detail returns a with its capacity summary.
func (a *Activity) Detail() ActivityDetail {
	return ActivityDetail{Activity: *a, Remaining: a.Remaining(), Full: a.IsFull()}
}

// Participant is a student identified by email.
type Participant struct {
	Email      string   `json:"email"`
	Activities []string `json:"activities"`
}

// Registration is one (activity, participant) pair of the registration relation.
type Registration struct {
	ActivityID   string `json:"-"`
	ActivityName string `json:"activity"`
	Email        string `json:"email"`
}

// ActivitySeed is one entry of the initial catalog dataset.
type ActivitySeed struct {
	Name            string   `yaml:"name"`
	Description     string   `yaml:"description"`
	Schedule        string   `yaml:"schedule"`
	MaxParticipants int      `yaml:"max_participants"`
	Participants    []string `yaml:"participants"`
}

// Validate checks the entry is internally consistent.
func (s ActivitySeed) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return Invalid("name", "activity name is required")
	}
	if s.MaxParticipants <= 0 {
		return Invalid("max_participants", "capacity of "+s.Name+" must be a positive integer")
	}

	seen := make(map[string]struct{}, len(s.Participants))
	for _, email := range s.Participants {
		email = strings.TrimSpace(email)
		if email == "" {
			return Invalid("participants", "roster of "+s.Name+" contains an empty email")
		}
		seen[email] = struct{}{}
	}
	if len(seen) > s.MaxParticipants {
		return Invalid("participants", "roster of "+s.Name+" exceeds its capacity")
	}
	return nil
}

// SeedResult reports what a seeding run inserted.
type SeedResult struct {
	ActivitiesCreated   int `json:"activities_created"`
	ActivitiesSkipped   int `json:"activities_skipped"`
	ParticipantsCreated int `json:"participants_created"`
}

// MessageResponse is the confirmation envelope for sign-up and unregister.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SignUpResult summarises the outcome of a single sign-up attempt.
// Used in the concurrent test harness.
type SignUpResult struct {
	Email string
	Err   error
}
