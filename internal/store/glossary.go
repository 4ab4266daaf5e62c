package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/GrxyScxr1/vertana-sub000/internal/glossary"
)

// Term is a row in the glossary table.
type Term struct {
	ID         string
	SourceLang string
	TargetLang string
	glossary.Entry
	CreatedAt time.Time
}

// AddTerm inserts or replaces the entry for e.Original in a language pair.
func (s *Store) AddTerm(ctx context.Context, sourceLang, targetLang string, e glossary.Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO glossary (id, source_lang, target_lang, source_term, target_term, context)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(source_lang, target_lang, source_term)
		 DO UPDATE SET target_term = excluded.target_term, context = excluded.context`,
		uuid.NewString(), sourceLang, targetLang, e.Original, e.Translated, e.Context)
	return err
}

// AddTerms stores every entry of g in one transaction.
func (s *Store) AddTerms(ctx context.Context, sourceLang, targetLang string, g glossary.Glossary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO glossary (id, source_lang, target_lang, source_term, target_term, context)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(source_lang, target_lang, source_term)
		 DO UPDATE SET target_term = excluded.target_term, context = excluded.context`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range g {
		if _, err := stmt.ExecContext(ctx, uuid.NewString(), sourceLang, targetLang, e.Original, e.Translated, e.Context); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Glossary returns the terms of a language pair in insertion order, ready
// to use as the initial glossary of a translation.
func (s *Store) Glossary(ctx context.Context, sourceLang, targetLang string) (glossary.Glossary, error) {
	return s.queryGlossary(ctx,
		`SELECT source_term, target_term, context FROM glossary WHERE source_lang = ? AND target_lang = ? ORDER BY created_at, rowid`,
		sourceLang, targetLang)
}

// SearchTerms returns up to limit terms of a language pair whose source or
// target term contains query, ignoring case.
func (s *Store) SearchTerms(ctx context.Context, sourceLang, targetLang, query string, limit int) (glossary.Glossary, error) {
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(query))) + "%"
	return s.queryGlossary(ctx,
		`SELECT source_term, target_term, context FROM glossary
		 WHERE source_lang = ? AND target_lang = ?
		   AND (lower(source_term) LIKE ? ESCAPE '\' OR lower(target_term) LIKE ? ESCAPE '\')
		 ORDER BY length(source_term), source_term LIMIT ?`,
		sourceLang, targetLang, pattern, pattern, limit)
}

func (s *Store) queryGlossary(ctx context.Context, query string, args ...any) (glossary.Glossary, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	g := glossary.Glossary{}
	for rows.Next() {
		var e glossary.Entry
		if err := rows.Scan(&e.Original, &e.Translated, &e.Context); err != nil {
			return nil, err
		}
		g = append(g, e)
	}
	return g, rows.Err()
}

// ListTerms returns all glossary entries, optionally filtered by language
// pair (pass empty strings to return everything).
func (s *Store) ListTerms(ctx context.Context, sourceLang, targetLang string) ([]Term, error) {
	query := `SELECT id, source_lang, target_lang, source_term, target_term, context, created_at FROM glossary`
	var args []any

	switch {
	case sourceLang != "" && targetLang != "":
		query += ` WHERE source_lang = ? AND target_lang = ?`
		args = append(args, sourceLang, targetLang)
	case sourceLang != "":
		query += ` WHERE source_lang = ?`
		args = append(args, sourceLang)
	case targetLang != "":
		query += ` WHERE target_lang = ?`
		args = append(args, targetLang)
	}
	query += ` ORDER BY source_lang, target_lang, source_term`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var terms []Term
	for rows.Next() {
		var t Term
		if err := rows.Scan(&t.ID, &t.SourceLang, &t.TargetLang, &t.Original, &t.Translated, &t.Context, &t.CreatedAt); err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	return terms, rows.Err()
}

// DeleteTerm removes a glossary entry by ID and reports whether it existed.
func (s *Store) DeleteTerm(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM glossary WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
