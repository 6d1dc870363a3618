// Package store archives runs and their result tables in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"dafit/internal/family"
	"dafit/internal/fitter"
	"dafit/internal/model"
	"dafit/internal/result"
	"dafit/internal/table"
)

// Run is one archived analysis.
type Run struct {
	ID          string
	Started     time.Time
	Fingerprint string // inputs + spec; equal fingerprints mean a repeated analysis
	BaseModel   string
	Correction  string
	SpecJSON    string
	Version     string
	Samples     int
	Features    int
	OK          int
	Failed      int
	Skipped     int
}

// Store is backed by an *sql.DB using the modernc "sqlite" driver.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New initializes the schema in db.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("store: schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			base_model TEXT NOT NULL,
			correction TEXT NOT NULL,
			spec TEXT NOT NULL,
			version TEXT NOT NULL,
			samples INTEGER NOT NULL,
			features INTEGER NOT NULL,
			ok INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			skipped INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS runs_fingerprint ON runs (fingerprint);
		CREATE TABLE IF NOT EXISTS results (
			run_id TEXT NOT NULL REFERENCES runs (id),
			feature_index INTEGER NOT NULL,
			term_index INTEGER NOT NULL,
			feature TEXT NOT NULL,
			metadata TEXT NOT NULL,
			value TEXT NOT NULL,
			coef REAL,
			stderr REAL,
			pval REAL,
			qval REAL,
			n INTEGER NOT NULL,
			n_not_zero INTEGER NOT NULL,
			model_used TEXT,
			status TEXT NOT NULL,
			note TEXT NOT NULL,
			PRIMARY KEY (run_id, feature_index, term_index)
		);`,
	)
	return err
}

// NewRunID returns a fresh random run identifier.
func NewRunID() string { return uuid.NewString() }

// NewRun fills the summary fields of a Run for tab.
func NewRun(id, fingerprint, version string, spec model.Spec, samples int, tab *result.Table) (Run, error) {
	js, err := json.Marshal(specDoc(spec))
	if err != nil {
		return Run{}, err
	}
	return Run{
		ID:          id,
		Started:     time.Now().UTC(),
		Fingerprint: fingerprint,
		BaseModel:   spec.Family.String(),
		Correction:  tab.Correction,
		SpecJSON:    string(js),
		Version:     version,
		Samples:     samples,
		Features:    tab.Summary.Features,
		OK:          tab.Summary.OK,
		Failed:      tab.Summary.Failed,
		Skipped:     tab.Summary.Skipped,
	}, nil
}

// SaveRun writes run and its rows in one transaction.
func (s *Store) SaveRun(ctx context.Context, run Run, rows []result.Row) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started, fingerprint, base_model, correction, spec, version,
			samples, features, ok, failed, skipped)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Started.Format(time.RFC3339Nano), run.Fingerprint, run.BaseModel, run.Correction,
		run.SpecJSON, run.Version, run.Samples, run.Features, run.OK, run.Failed, run.Skipped,
	); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO results (run_id, feature_index, term_index, feature, metadata, value,
			coef, stderr, pval, qval, n, n_not_zero, model_used, status, note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		var modelUsed any
		if r.ModelUsed.Valid() {
			modelUsed = r.ModelUsed.String()
		}
		if _, err = stmt.ExecContext(ctx,
			run.ID, r.FeatureIndex, r.TermIndex, r.Feature, r.Metadata, r.Value,
			nullable(r.Coef), nullable(r.StdErr), nullable(r.PValue), nullable(r.QValue),
			r.N, r.NNotZero, modelUsed, string(r.Status), r.Note,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ErrNotFound is returned for an unknown run id.
var ErrNotFound = errors.New("store: run not found")

// GetRun loads one run's summary.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, started, fingerprint, base_model, correction, spec, version,
			samples, features, ok, failed, skipped
		FROM runs WHERE id = ?`, id)
	var (
		run     Run
		started string
	)
	err := row.Scan(&run.ID, &started, &run.Fingerprint, &run.BaseModel, &run.Correction, &run.SpecJSON,
		&run.Version, &run.Samples, &run.Features, &run.OK, &run.Failed, &run.Skipped)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, err
	}
	run.Started, err = time.Parse(time.RFC3339Nano, started)
	return run, err
}

// RunsByFingerprint lists earlier runs over identical inputs and spec,
// oldest first.
func (s *Store) RunsByFingerprint(ctx context.Context, fp string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM runs WHERE fingerprint = ? ORDER BY started, id`, fp)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Results loads a run's rows in feature, then term order.
func (s *Store) Results(ctx context.Context, runID string) ([]result.Row, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT feature_index, term_index, feature, metadata, value, coef, stderr, pval, qval,
			n, n_not_zero, model_used, status, note
		FROM results WHERE run_id = ? ORDER BY feature_index, term_index`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []result.Row
	for rows.Next() {
		var (
			r                    result.Row
			coef, se, pval, qval sql.NullFloat64
			modelUsed            sql.NullString
			status               string
		)
		if err := rows.Scan(&r.FeatureIndex, &r.TermIndex, &r.Feature, &r.Metadata, &r.Value,
			&coef, &se, &pval, &qval, &r.N, &r.NNotZero, &modelUsed, &status, &r.Note); err != nil {
			return nil, err
		}
		r.Coef, r.StdErr, r.PValue, r.QValue = orNaN(coef), orNaN(se), orNaN(pval), orNaN(qval)
		r.Status = fitter.Status(status)
		if modelUsed.Valid {
			if r.ModelUsed, err = family.Parse(modelUsed.String); err != nil {
				return nil, err
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullable(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// specDoc is the archived form of a Spec.
func specDoc(s model.Spec) map[string]any {
	fb := map[string]string{}
	for k, v := range s.Fallback {
		fb[k.String()] = v.String()
	}
	return map[string]any{
		"base_model":     s.Family.String(),
		"fixed_effects":  s.FixedEffects,
		"random_effects": s.RandomEffects,
		"reference":      s.Reference,
		"adjust_offset":  s.AdjustOffset,
		"offset_column":  s.OffsetColumnName(),
		"standardize":    s.Standardize,
		"fallback":       fb,
		"correction":     s.CorrectionMethod(),
		"min_variance":   s.MinVariance,
		"min_prevalence": s.MinPrevalence,
		"min_abundance":  s.MinAbundance,
	}
}

// Fingerprint hashes the aligned inputs and the analysis-relevant parts of
// spec. Worker count and timeouts do not change results and are left out.
func Fingerprint(ft *table.FeatureTable, md *table.Metadata, spec model.Spec) (string, error) {
	h := xxhash.New()
	var b [8]byte
	str := func(s string) {
		binary.LittleEndian.PutUint64(b[:], uint64(len(s)))
		_, _ = h.Write(b[:])
		_, _ = h.WriteString(s)
	}
	num := func(v float64) {
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
		_, _ = h.Write(b[:])
	}
	for _, id := range ft.Samples {
		str(id)
	}
	for f, id := range ft.Features {
		str(id)
		for _, v := range ft.Values[f] {
			num(v)
		}
	}
	for _, id := range md.Samples {
		str(id)
	}
	for c, name := range md.Columns {
		str(name)
		for _, cell := range md.Cells[c] {
			str(cell)
		}
	}
	js, err := json.Marshal(specDoc(spec))
	if err != nil {
		return "", err
	}
	str(string(js))
	return fmt.Sprintf("%016x", h.Sum64()), nil
}
