package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/korody/persona-ai-sub001/internal/model"
)

// LatestProfile returns the newest stored profile record for userID, or nil
// when the user has never completed an assessment. The record is returned raw;
// normalization belongs to the caller.
func (s *SQLiteStore) LatestProfile(ctx context.Context, userID string) (*model.ProfileRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, primary_element, element_scores, intensity, urgency, quadrant,
		       profile_label, archetype_label, created_at
		FROM profiles
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, userID)

	var rec model.ProfileRecord
	var primary, scores, profileLabel, archetypeLabel sql.NullString
	var intensity, urgency, quadrant sql.NullInt64
	var createdAt int64
	err := row.Scan(&rec.ID, &rec.UserID, &primary, &scores, &intensity, &urgency, &quadrant,
		&profileLabel, &archetypeLabel, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan profile row: %w", err)
	}

	rec.PrimaryElement = primary.String
	rec.ProfileLabel = profileLabel.String
	rec.ArchetypeLabel = archetypeLabel.String
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	rec.Intensity = nullIntPtr(intensity)
	rec.Urgency = nullIntPtr(urgency)
	rec.Quadrant = nullIntPtr(quadrant)
	if scores.Valid && scores.String != "" {
		// encoding/json keeps going after a type error and leaves the map
		// partly filled; drop it so the loader sees no scores at all.
		if err := json.Unmarshal([]byte(scores.String), &rec.ElementScores); err != nil {
			rec.ElementScores = nil
		}
	}
	return &rec, nil
}

func nullIntPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func (s *SQLiteStore) insertProfile(ctx context.Context, tx *sql.Tx, rec model.ProfileRecord) error {
	if rec.ID == "" {
		rec.ID = s.newID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	var scores *string
	if rec.ElementScores != nil {
		b, _ := json.Marshal(rec.ElementScores)
		str := string(b)
		scores = &str
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO profiles (id, user_id, primary_element, element_scores, intensity, urgency, quadrant,
		                      profile_label, archetype_label, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			primary_element = excluded.primary_element,
			element_scores = excluded.element_scores,
			intensity = excluded.intensity,
			urgency = excluded.urgency,
			quadrant = excluded.quadrant,
			profile_label = excluded.profile_label,
			archetype_label = excluded.archetype_label`,
		rec.ID, rec.UserID, nullString(rec.PrimaryElement), scores, rec.Intensity, rec.Urgency, rec.Quadrant,
		nullString(rec.ProfileLabel), nullString(rec.ArchetypeLabel), rec.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}
