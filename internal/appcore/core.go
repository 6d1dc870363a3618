// internal/appcore/core.go
package appcore

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"dafit/internal/cmdutil"
	"dafit/internal/design"
	"dafit/internal/engine"
	"dafit/internal/metrics"
	"dafit/internal/model"
	"dafit/internal/output"
	"dafit/internal/pipeline"
	"dafit/internal/plot"
	"dafit/internal/result"
	"dafit/internal/store"
	"dafit/internal/table"
	"dafit/internal/version"
	"dafit/internal/writers"
)

type Options struct {
	FeaturesFile string
	MetadataFile string
	Orientation  table.Orientation

	Spec model.Spec

	Format   string
	Header   bool
	Unsorted bool

	SQLite      string
	MetricsFile string
	Volcano     string
	Alpha       float64
}

// inputError marks a table that could be read but not parsed.
type inputError struct{ err error }

func (e inputError) Error() string { return e.err.Error() }
func (e inputError) Unwrap() error { return e.err }

// Load reads both tables concurrently and parses the feature table against
// the metadata sample IDs.
func Load(ctx context.Context, o Options) (engine.Input, error) {
	var ftRaw, mdRaw *table.Raw
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		ftRaw, err = table.ReadFile(o.FeaturesFile)
		return err
	})
	g.Go(func() (err error) {
		mdRaw, err = table.ReadFile(o.MetadataFile)
		return err
	})
	if err := g.Wait(); err != nil {
		return engine.Input{}, classify(err)
	}
	md := mdRaw.Metadata()
	ft, err := ftRaw.Features(o.Orientation, md.Samples)
	if err != nil {
		return engine.Input{}, inputError{err}
	}
	return engine.Input{Features: ft, Metadata: md}, nil
}

func classify(err error) error {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return err
	}
	return inputError{err}
}

// Run loads the inputs, fits every feature, writes the result table to
// stdout and produces the requested side outputs. It returns a process
// exit code.
func Run(parent context.Context, stdout io.Writer, logger *slog.Logger, o Options) int {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	in, err := Load(ctx, o)
	if err != nil {
		logger.Error("loading input", "err", err)
		var ie inputError
		if errors.As(err, &ie) {
			return cmdutil.ExitUsage
		}
		return cmdutil.ExitIO
	}

	var m *metrics.Metrics
	if o.MetricsFile != "" {
		m = metrics.New()
	}
	obs := []pipeline.Observer{pipeline.NewLoggingObserver(logger)}
	if m != nil {
		obs = append(obs, m)
	}
	eng := engine.New(logger, pipeline.Observers(obs...))

	rep, err := eng.Run(ctx, in, o.Spec)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Error("run failed", "err", err)
		}
		return cmdutil.ExitCode(err)
	}

	runID := store.NewRunID()
	if err := writeTable(stdout, o, rep, runID); err != nil {
		if code := cmdutil.ExitCode(err); code != cmdutil.ExitOK {
			logger.Error("writing results", "err", err)
			return code
		}
	}

	code := cmdutil.ExitOK
	if o.SQLite != "" {
		if err := archive(ctx, o, rep, runID, logger); err != nil {
			logger.Error("archiving run", "db", o.SQLite, "err", err)
			code = cmdutil.ExitIO
		}
	}
	if m != nil {
		m.ObserveRun(rep.Table.Summary, rep.Elapsed)
		if err := m.WriteTextfile(o.MetricsFile); err != nil {
			logger.Error("writing metrics", "file", o.MetricsFile, "err", err)
			code = cmdutil.ExitIO
		}
	}
	if o.Volcano != "" {
		if err := volcanoes(o, rep, logger); err != nil {
			logger.Error("writing volcano plot", "file", o.Volcano, "err", err)
			code = cmdutil.ExitIO
		}
	}
	return code
}

func writeTable(stdout io.Writer, o Options, rep *engine.Report, runID string) error {
	outw := bufio.NewWriter(stdout)
	rows := rep.Table.Rows
	if !o.Unsorted {
		rows = rep.Table.Sorted()
	}
	inCh, writeErr := writers.StartResultWriter(outw, writers.Options{
		Format: o.Format,
		Header: o.Header,
		Run:    output.ToAPIRun(rep, runID),
	}, 256)
	for _, r := range rows {
		inCh <- r
	}
	close(inCh)
	if err := <-writeErr; err != nil {
		return err
	}
	return outw.Flush()
}

// archive stores rep under a fingerprint of the aligned inputs, so samples
// dropped before fitting do not make a repeated analysis look new.
func archive(ctx context.Context, o Options, rep *engine.Report, runID string, logger *slog.Logger) error {
	fp, err := store.Fingerprint(rep.Data.Features, rep.Data.Metadata, rep.Spec)
	if err != nil {
		return err
	}
	db, err := store.Open(o.SQLite)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	prev, err := db.RunsByFingerprint(ctx, fp)
	if err != nil {
		return err
	}
	if len(prev) > 0 {
		logger.Info("identical inputs were analysed before", "fingerprint", fp, "runs", strings.Join(prev, ","))
	}
	run, err := store.NewRun(runID, fp, version.Version, rep.Spec, rep.Samples, rep.Table)
	if err != nil {
		return err
	}
	if err := db.SaveRun(ctx, run, rep.Table.Rows); err != nil {
		return err
	}
	logger.Debug("run archived", "db", o.SQLite, "run_id", runID)
	return nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// volcanoPath returns path unchanged for single-term designs, otherwise
// inserts the term label before the extension.
func volcanoPath(path string, t design.Term, terms int) string {
	if terms == 1 {
		return path
	}
	ext := filepath.Ext(path)
	label := unsafeName.ReplaceAllString(t.Label(), "_")
	return strings.TrimSuffix(path, ext) + "-" + label + ext
}

func volcanoes(o Options, rep *engine.Report, logger *slog.Logger) error {
	byTerm := make([][]result.Row, len(rep.Table.Terms))
	for _, r := range rep.Table.Rows {
		byTerm[r.TermIndex] = append(byTerm[r.TermIndex], r)
	}
	for i, t := range rep.Table.Terms {
		path := volcanoPath(o.Volcano, t, len(rep.Table.Terms))
		err := plot.Volcano(byTerm[i], o.Alpha, t.Label(), path)
		if errors.Is(err, plot.ErrNothingToPlot) {
			logger.Warn("no fitted features to plot", "term", t.Label())
			continue
		}
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}
