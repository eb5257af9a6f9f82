package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/korody/persona-ai-sub001/internal/model"
)

const exerciseSelect = `
	SELECT e.id, e.course_id, e.title, e.url, e.element_tag, e.level, e.duration_minutes,
	       e.benefits, e.indications, e.contraindications, e.embedding, e.enabled
	FROM exercises e
	JOIN courses c ON c.id = e.course_id`

// enabledClause is the cascaded enablement filter shared by every exercise read.
const enabledClause = `e.enabled = 1 AND c.enabled = 1`

func scanExercises(rows *sql.Rows) ([]model.Exercise, error) {
	var out []model.Exercise
	for rows.Next() {
		var e model.Exercise
		var tag sql.NullString
		var benefits, indications, contra sql.NullString
		var blob []byte
		if err := rows.Scan(&e.ID, &e.CourseID, &e.Title, &e.URL, &tag, &e.Level, &e.DurationMinutes,
			&benefits, &indications, &contra, &blob, &e.Enabled); err != nil {
			return nil, fmt.Errorf("scan exercise: %w", err)
		}
		e.ElementTag = model.Element(tag.String)
		e.Benefits = decodeList(benefits)
		e.Indications = decodeList(indications)
		e.Contraindications = decodeList(contra)
		e.Embedding = decodeVector(blob)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exercises: %w", err)
	}
	return out, nil
}

// ExercisesByIndications returns enabled exercises whose indications overlap
// symptoms, most overlapping first, then by id.
func (s *SQLiteStore) ExercisesByIndications(ctx context.Context, symptoms []string, limit int) ([]model.Exercise, error) {
	if len(symptoms) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(symptoms)), ",")
	args := make([]any, 0, len(symptoms)+1)
	for _, sym := range symptoms {
		args = append(args, sym)
	}
	args = append(args, limit)

	query := `
		SELECT id, course_id, title, url, element_tag, level, duration_minutes,
		       benefits, indications, contraindications, embedding, enabled
		FROM (
			SELECT e.*,
			       (SELECT COUNT(*) FROM json_each(e.indications) j WHERE j.value IN (` + placeholders + `)) AS overlap
			FROM exercises e
			JOIN courses c ON c.id = e.course_id
			WHERE ` + enabledClause + ` AND e.indications IS NOT NULL
		)
		WHERE overlap > 0
		ORDER BY overlap DESC, id
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query exercises by indications: %w", err)
	}
	defer rows.Close()
	return scanExercises(rows)
}

// IntroductoryExercises returns the curated starter set: enabled beginner
// exercises, shortest first.
func (s *SQLiteStore) IntroductoryExercises(ctx context.Context, limit int) ([]model.Exercise, error) {
	rows, err := s.db.QueryContext(ctx, exerciseSelect+`
		WHERE `+enabledClause+` AND e.level = ?
		ORDER BY e.duration_minutes, e.id
		LIMIT ?`, model.LevelBeginner, limit)
	if err != nil {
		return nil, fmt.Errorf("query introductory exercises: %w", err)
	}
	defer rows.Close()
	return scanExercises(rows)
}

// ExercisesByElement returns enabled exercises tagged with element.
func (s *SQLiteStore) ExercisesByElement(ctx context.Context, element model.Element, limit int) ([]model.Exercise, error) {
	rows, err := s.db.QueryContext(ctx, exerciseSelect+`
		WHERE `+enabledClause+` AND e.element_tag = ?
		ORDER BY e.duration_minutes, e.id
		LIMIT ?`, string(element), limit)
	if err != nil {
		return nil, fmt.Errorf("query exercises by element: %w", err)
	}
	defer rows.Close()
	return scanExercises(rows)
}

// SetCourseEnabled is the administrative toggle. It flips the course and every
// exercise under it in one transaction.
func (s *SQLiteStore) SetCourseEnabled(ctx context.Context, courseID string, enabled bool) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE courses SET enabled = ? WHERE id = ?`, boolInt(enabled), courseID)
	if err != nil {
		return 0, fmt.Errorf("update course: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("course %q not found", courseID)
	}

	res, err = tx.ExecContext(ctx, `UPDATE exercises SET enabled = ? WHERE course_id = ?`, boolInt(enabled), courseID)
	if err != nil {
		return 0, fmt.Errorf("cascade to exercises: %w", err)
	}
	n, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}
