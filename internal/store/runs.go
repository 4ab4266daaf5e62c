package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run is one recorded translation.
type Run struct {
	ID                   string
	SourceLang           string
	TargetLang           string
	MediaType            string
	Title                string
	TokensUsed           int
	QualityScore         *float64
	RefinementIterations *int
	WinningModel         string
	Duration             time.Duration
	CreatedAt            time.Time
	Chunks               []RunChunk
}

// RunChunk is the outcome of one chunk of a run.
type RunChunk struct {
	Index          int
	SourceText     string
	TranslatedText string
	TokensUsed     int
	QualityScore   *float64
	SelectedModel  string
}

// ErrRunNotFound is returned by GetRun for an unknown ID.
var ErrRunNotFound = errors.New("run not found")

// SaveRun records r and its chunks. An empty r.ID is replaced with a new
// UUID; the ID used is returned.
func (s *Store) SaveRun(ctx context.Context, r Run) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO translation_runs (id, source_lang, target_lang, media_type, title, tokens_used, quality_score, refinement_iterations, winning_model, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SourceLang, r.TargetLang, r.MediaType, r.Title, r.TokensUsed,
		nullFloat(r.QualityScore), nullInt(r.RefinementIterations), r.WinningModel, r.Duration.Milliseconds(), r.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("failed to save run: %w", err)
	}

	for _, c := range r.Chunks {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO run_chunks (run_id, chunk_index, source_text, translated_text, tokens_used, quality_score, selected_model)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.ID, c.Index, c.SourceText, c.TranslatedText, c.TokensUsed, nullFloat(c.QualityScore), c.SelectedModel)
		if err != nil {
			return "", fmt.Errorf("failed to save chunk %d: %w", c.Index, err)
		}
	}
	return r.ID, tx.Commit()
}

// GetRun loads a run with its chunks in index order.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	var r Run
	var score sql.NullFloat64
	var iterations sql.NullInt64
	var ms int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source_lang, target_lang, media_type, title, tokens_used, quality_score, refinement_iterations, winning_model, duration_ms, created_at
		 FROM translation_runs WHERE id = ?`, id).Scan(
		&r.ID, &r.SourceLang, &r.TargetLang, &r.MediaType, &r.Title, &r.TokensUsed,
		&score, &iterations, &r.WinningModel, &ms, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	r.QualityScore = floatPtr(score)
	r.RefinementIterations = intPtr(iterations)
	r.Duration = time.Duration(ms) * time.Millisecond

	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_index, source_text, translated_text, tokens_used, quality_score, selected_model
		 FROM run_chunks WHERE run_id = ? ORDER BY chunk_index`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var c RunChunk
		var cs sql.NullFloat64
		if err := rows.Scan(&c.Index, &c.SourceText, &c.TranslatedText, &c.TokensUsed, &cs, &c.SelectedModel); err != nil {
			return nil, err
		}
		c.QualityScore = floatPtr(cs)
		r.Chunks = append(r.Chunks, c)
	}
	return &r, rows.Err()
}

// ListRuns returns the most recent runs without their chunks.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_lang, target_lang, media_type, title, tokens_used, quality_score, refinement_iterations, winning_model, duration_ms, created_at
		 FROM translation_runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var score sql.NullFloat64
		var iterations sql.NullInt64
		var ms int64
		if err := rows.Scan(&r.ID, &r.SourceLang, &r.TargetLang, &r.MediaType, &r.Title, &r.TokensUsed,
			&score, &iterations, &r.WinningModel, &ms, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.QualityScore = floatPtr(score)
		r.RefinementIterations = intPtr(iterations)
		r.Duration = time.Duration(ms) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	return &f.Float64
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
