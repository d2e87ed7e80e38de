package profiles

import (
	"context"
	"time"
)

type Profile struct {
	ParticipantID int64     `json:"participant_id"`
	Name          string    `json:"name"`
	Age           int       `json:"age"`
	Interests     string    `json:"interests"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Store persists profiles by participant id. Get returns an errors.NotFound
// error when the participant never completed the profile flow.
type Store interface {
	Get(ctx context.Context, participantID int64) (*Profile, error)
	Save(ctx context.Context, profile *Profile) error
}
