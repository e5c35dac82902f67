package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// Challenge is a target drawing learners try to reproduce.
type Challenge struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	ImageURL  string    `json:"imageUrl"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Submission is a user's script for a challenge. There is at most one per
// user and challenge; resubmitting replaces the code.
type Submission struct {
	Username    string    `json:"username"`
	ChallengeID string    `json:"challengeId"`
	Code        string    `json:"code"`
	SubmittedAt time.Time `json:"submittedAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Account struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Timespan is a closed interval of wall-clock time.
type Timespan struct {
	Start time.Time `json:"startTime"`
	End   time.Time `json:"endTime"`
}

// Contains reports whether t is within the timespan, bounds included.
func (ts *Timespan) Contains(t time.Time) bool {
	if ts == nil {
		return false
	}
	return !t.Before(ts.Start) && !t.After(ts.End)
}

// Settings holds the admin switches. Nil fields are unset.
type Settings struct {
	PlaygroundCloseTime *time.Time `json:"playgroundCloseTime"`
	ChallengeTimespan   *Timespan  `json:"challengeTimespan"`
}

// PlaygroundClosed reports whether the close time has passed at now.
func (s *Settings) PlaygroundClosed(now time.Time) bool {
	return s.PlaygroundCloseTime != nil && !s.PlaygroundCloseTime.After(now)
}

// Store is the persistence interface for challenges, submissions, accounts
// and settings. Scripts are stored; action logs never are.
type Store interface {
	// CreateChallenge inserts a new challenge. The ID field must be set by the
	// caller. A zero Position appends the challenge at the end.
	CreateChallenge(ctx context.Context, c *Challenge) error

	// GetChallenge returns a challenge by ID or unique ID prefix.
	GetChallenge(ctx context.Context, id string) (*Challenge, error)

	// ListChallenges returns challenges ordered by position.
	ListChallenges(ctx context.Context) ([]Challenge, error)

	// UpdateChallenge updates title, image and position.
	UpdateChallenge(ctx context.Context, c *Challenge) error

	// DeleteChallenge removes a challenge and its submissions.
	DeleteChallenge(ctx context.Context, id string) error

	// SaveSubmission creates or replaces a user's code for a challenge,
	// keeping the first SubmittedAt.
	SaveSubmission(ctx context.Context, username, challengeID, code string) (*Submission, error)

	GetSubmission(ctx context.Context, username, challengeID string) (*Submission, error)

	// ListSubmissions returns a challenge's submissions ordered by submission
	// time.
	ListSubmissions(ctx context.Context, challengeID string) ([]Submission, error)

	// CreateAccount fails with ErrConflict when the username is taken.
	CreateAccount(ctx context.Context, a *Account) error

	GetAccount(ctx context.Context, username string) (*Account, error)

	GetSettings(ctx context.Context) (*Settings, error)
	SaveSettings(ctx context.Context, s *Settings) error

	// Close releases resources.
	Close() error
}
