// Package retrieval loads the diagnostic profile and runs similarity search
// over the knowledge and example corpora.
package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/korody/persona-ai-sub001/internal/logger"
	"github.com/korody/persona-ai-sub001/internal/model"
)

// ProfileStore returns the newest raw profile record for a user, or nil.
type ProfileStore interface {
	LatestProfile(ctx context.Context, userID string) (*model.ProfileRecord, error)
}

// ProfileLoader fetches and normalizes a user's latest diagnostic profile.
type ProfileLoader struct {
	store ProfileStore
	log   *logger.Logger
}

func NewProfileLoader(store ProfileStore, log *logger.Logger) *ProfileLoader {
	return &ProfileLoader{store: store, log: log.With("component", "profile_loader")}
}

// Load returns the user's profile, or nil when none exists or the stored
// record is malformed. Only a store failure is an error.
func (l *ProfileLoader) Load(ctx context.Context, userID string) (*model.DiagnosticProfile, error) {
	if userID == "" {
		return nil, nil
	}
	rec, err := l.store.LatestProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if rec == nil {
		return nil, nil
	}
	p, err := Normalize(rec)
	if err != nil {
		l.log.Warn("malformed diagnostic profile treated as absent", "user_id", userID, "profile_id", rec.ID, "error", err)
		return nil, nil
	}
	return p, nil
}

// ErrMalformedProfile marks a stored profile that cannot be used.
var ErrMalformedProfile = errors.New("malformed profile")

// Normalize validates a raw record. Any missing or out-of-range required field
// rejects the whole record.
func Normalize(rec *model.ProfileRecord) (*model.DiagnosticProfile, error) {
	if len(rec.ElementScores) == 0 {
		return nil, fmt.Errorf("%w: element scores missing", ErrMalformedProfile)
	}
	if rec.PrimaryElement == "" {
		return nil, fmt.Errorf("%w: primary element missing", ErrMalformedProfile)
	}
	primary, err := model.ParseElement(rec.PrimaryElement)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedProfile, err)
	}

	scores := make(map[model.Element]int, len(model.Elements))
	for _, e := range model.Elements {
		scores[e] = 0
	}
	for k, v := range rec.ElementScores {
		e, err := model.ParseElement(k)
		if err != nil {
			return nil, fmt.Errorf("%w: score key: %v", ErrMalformedProfile, err)
		}
		if v < 0 {
			return nil, fmt.Errorf("%w: negative score for %s", ErrMalformedProfile, e)
		}
		scores[e] = v
	}

	intensity, err := bounded("intensity", rec.Intensity, 0, 5, 0)
	if err != nil {
		return nil, err
	}
	urgency, err := bounded("urgency", rec.Urgency, 0, 5, 0)
	if err != nil {
		return nil, err
	}
	quadrant, err := bounded("quadrant", rec.Quadrant, 1, 4, 1)
	if err != nil {
		return nil, err
	}

	return &model.DiagnosticProfile{
		ID:             rec.ID,
		UserID:         rec.UserID,
		PrimaryElement: primary,
		ElementScores:  scores,
		Intensity:      intensity,
		Urgency:        urgency,
		Quadrant:       quadrant,
		ProfileLabel:   rec.ProfileLabel,
		ArchetypeLabel: rec.ArchetypeLabel,
		CreatedAt:      rec.CreatedAt,
	}, nil
}

// bounded reads an optional integer field. A missing value takes def; a
// present value outside [lo, hi] is malformed.
func bounded(name string, v *int, lo, hi, def int) (int, error) {
	if v == nil {
		return def, nil
	}
	if *v < lo || *v > hi {
		return 0, fmt.Errorf("%w: %s %d outside [%d, %d]", ErrMalformedProfile, name, *v, lo, hi)
	}
	return *v, nil
}
