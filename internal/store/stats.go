package store

import (
	"context"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath          string `json:"db_path"`
	DBSizeBytes     int64  `json:"db_size_bytes"`
	Profiles        int    `json:"profiles"`
	KnowledgeChunks int    `json:"knowledge_chunks"`
	Documents       int    `json:"documents"`
	Examples        int    `json:"examples"`
	ActiveExamples  int    `json:"active_examples"`
	Courses         int    `json:"courses"`
	Exercises       int    `json:"exercises"`
	EnabledExercise int    `json:"enabled_exercises"`
	Campaigns       int    `json:"campaigns"`
	Products        int    `json:"products"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	counts := []struct {
		dst   *int
		query string
	}{
		{&st.Profiles, `SELECT COUNT(*) FROM profiles`},
		{&st.KnowledgeChunks, `SELECT COUNT(*) FROM knowledge_chunks`},
		{&st.Documents, `SELECT COUNT(DISTINCT document_id) FROM knowledge_chunks`},
		{&st.Examples, `SELECT COUNT(*) FROM examples`},
		{&st.ActiveExamples, `SELECT COUNT(*) FROM examples WHERE active = 1`},
		{&st.Courses, `SELECT COUNT(*) FROM courses`},
		{&st.Exercises, `SELECT COUNT(*) FROM exercises`},
		{&st.EnabledExercise, `SELECT COUNT(*) FROM exercises e JOIN courses c ON c.id = e.course_id WHERE ` + enabledClause},
		{&st.Campaigns, `SELECT COUNT(*) FROM campaigns`},
		{&st.Products, `SELECT COUNT(*) FROM products`},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return st, err
		}
	}
	return st, nil
}
