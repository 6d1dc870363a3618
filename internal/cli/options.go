// internal/cli/options.go
package cli

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"dafit/internal/cliutil"
	"dafit/internal/config"
	"dafit/internal/family"
	"dafit/internal/model"
	"dafit/internal/output"
	"dafit/internal/plot"
	"dafit/internal/table"
	"dafit/internal/version"
)

// Options holds all CLI flags and arguments.
type Options struct {
	// Input
	FeaturesFile string
	MetadataFile string
	Orientation  table.Orientation
	ConfigFile   string

	// Model
	Spec model.Spec

	// Output
	Output   string
	Header   bool // true unless --no-header
	Unsorted bool

	// Side outputs
	SQLite      string
	MetricsFile string
	Volcano     string
	Alpha       float64

	Quiet   bool
	Verbose bool
	Version bool
}

// DefaultSpec is the model used when neither --config nor flags say
// otherwise.
func DefaultSpec() model.Spec {
	return model.Spec{
		Family:     family.CPLM,
		Correction: model.CorrectionBH,
	}
}

// NewFlagSet returns a configured FlagSet with custom usage/help.
func NewFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(),
			`%s: per-feature differential abundance with compound Poisson models

Version: %s

Usage of %s:
  %s [flags] --features FILE --metadata FILE --fixed-effects a,b
  %s [flags] FEATURES METADATA

Flags override values from --config.

`, name, version.Version, name, name, name)
		fs.PrintDefaults()
	}
	return fs
}

// ParseArgs registers and parses all flags, returns an Options struct.
func ParseArgs(fs *flag.FlagSet, argv []string) (Options, error) {
	var opt Options
	var help bool
	var (
		orientation, baseModel, fixed, random, reference string
		fallback, correction, fitTimeout                  string
		offsetColumn                                      string
		standardize, adjustOffset                         bool
		minVariance, minPrevalence, minAbundance          float64
		workers                                           int
		noHeader                                          bool
	)
	def := DefaultSpec()

	// Input
	fs.StringVar(&opt.FeaturesFile, "features", "", "feature table TSV (.gz/.zst/.lz4 ok; '-' = stdin) [*]")
	fs.StringVar(&opt.MetadataFile, "metadata", "", "sample metadata TSV, samples as rows [*]")
	fs.StringVar(&orientation, "orientation", string(table.OrientAuto), "feature table layout: auto | samples-rows | samples-columns [auto]")
	fs.StringVar(&opt.ConfigFile, "config", "", "YAML model file (keys as in the flag names, with underscores)")

	// Model
	fs.StringVar(&baseModel, "base-model", def.Family.String(), "model family: CPLM | ZICP | ZACP | LM [CPLM]")
	fs.StringVar(&fixed, "fixed-effects", "", "comma-separated covariates entering the design [*]")
	fs.StringVar(&random, "random-effects", "", "comma-separated grouping covariates (random intercepts)")
	fs.StringVar(&reference, "reference", "", `baseline levels, "covariate,level;covariate2,level"`)
	fs.BoolVar(&standardize, "standardize", false, "scale each feature's response by its standard deviation [false]")
	fs.BoolVar(&adjustOffset, "adjust-offset", false, "add a normalization offset (offset column, else log library size) [false]")
	fs.StringVar(&offsetColumn, "offset-column", model.DefaultOffsetColumn, "metadata column holding offsets on the link scale [scale_factor]")
	fs.StringVar(&fallback, "fallback", "", `fallback overrides, e.g. "ZICP=LM,CPLM=none" [ZICP=CPLM,ZACP=CPLM,CPLM=LM]`)
	fs.StringVar(&correction, "correction", def.Correction, "multiple-testing correction: BH | BY | holm | bonferroni [BH]")
	fs.Float64Var(&minVariance, "min-variance", 0, "skip features whose response variance is at or below this [0]")
	fs.Float64Var(&minPrevalence, "min-prevalence", 0, "skip features present in fewer than this fraction of samples [0]")
	fs.Float64Var(&minAbundance, "min-abundance", 0, "a feature is present in a sample when its value exceeds this [0]")

	// Performance
	fs.IntVar(&workers, "workers", 0, "number of worker goroutines (0 = all CPUs) [0]")
	fs.StringVar(&fitTimeout, "fit-timeout", "0", "per-feature fit deadline, e.g. 30s (0 = none) [0]")

	// Output
	fs.StringVar(&opt.Output, "output", output.FormatText, "output format: text | json | jsonl [text]")
	fs.BoolVar(&noHeader, "no-header", false, "suppress header line in text/TSV [false]")
	fs.BoolVar(&opt.Unsorted, "unsorted", false, "keep feature order instead of sorting by term and p-value [false]")
	fs.StringVar(&opt.SQLite, "sqlite", "", "archive the run and its results in this SQLite database")
	fs.StringVar(&opt.MetricsFile, "metrics-file", "", "write Prometheus text-format metrics to this file")
	fs.StringVar(&opt.Volcano, "volcano", "", "write a volcano plot per term (.png | .svg | .pdf)")
	fs.Float64Var(&opt.Alpha, "alpha", 0.05, "q-value threshold highlighted in plots [0.05]")

	fs.BoolVar(&opt.Quiet, "quiet", false, "only print errors on stderr [false]")
	fs.BoolVar(&opt.Verbose, "verbose", false, "debug logging on stderr [false]")
	fs.BoolVar(&opt.Version, "v", false, "print version and exit (shorthand) [false]")
	fs.BoolVar(&opt.Version, "version", false, "print version and exit [false]")
	fs.BoolVar(&help, "h", false, "show this help message (shorthand) [false]")

	flagArgs, posArgs := cliutil.SplitFlagsAndPositionals(fs, argv)
	if err := fs.Parse(flagArgs); err != nil {
		return opt, err
	}
	if help {
		fs.Usage()
		return opt, flag.ErrHelp
	}
	if opt.Version {
		return opt, nil
	}
	opt.Header = !noHeader

	switch len(posArgs) {
	case 0:
	case 2:
		if opt.FeaturesFile != "" || opt.MetadataFile != "" {
			return opt, errors.New("give the input tables either as --features/--metadata or as two positionals, not both")
		}
		opt.FeaturesFile, opt.MetadataFile = posArgs[0], posArgs[1]
	default:
		return opt, fmt.Errorf("unexpected arguments %q", posArgs)
	}

	// Spec: defaults, then --config, then explicit flags.
	opt.Spec = def
	if opt.ConfigFile != "" {
		cfg, err := config.Load(opt.ConfigFile)
		if err != nil {
			return opt, err
		}
		if err := cfg.Apply(&opt.Spec); err != nil {
			return opt, err
		}
	}
	var ferr error
	fs.Visit(func(f *flag.Flag) {
		if ferr != nil {
			return
		}
		s := &opt.Spec
		switch f.Name {
		case "base-model":
			s.Family, ferr = family.Parse(baseModel)
		case "fixed-effects":
			s.FixedEffects = cliutil.ParseList(fixed)
		case "random-effects":
			s.RandomEffects = cliutil.ParseList(random)
		case "reference":
			s.Reference, ferr = cliutil.ParseReference(reference)
		case "standardize":
			s.Standardize = standardize
		case "adjust-offset":
			s.AdjustOffset = adjustOffset
		case "offset-column":
			s.OffsetColumn = offsetColumn
		case "fallback":
			s.Fallback, ferr = cliutil.ParseFallback(fallback)
		case "correction":
			s.Correction = correction
		case "min-variance":
			s.MinVariance = minVariance
		case "min-prevalence":
			s.MinPrevalence = minPrevalence
		case "min-abundance":
			s.MinAbundance = minAbundance
		case "workers":
			s.Workers = workers
		case "fit-timeout":
			s.FitTimeout, ferr = time.ParseDuration(fitTimeout)
		}
		if ferr != nil {
			ferr = fmt.Errorf("--%s: %w", f.Name, ferr)
		}
	})
	if ferr != nil {
		return opt, ferr
	}

	// Validation
	var err error
	if opt.Orientation, err = table.ParseOrientation(orientation); err != nil {
		return opt, err
	}
	if opt.FeaturesFile == "" || opt.MetadataFile == "" {
		return opt, errors.New("both --features and --metadata are required")
	}
	if opt.FeaturesFile == "-" && opt.MetadataFile == "-" {
		return opt, errors.New("only one input table can be read from stdin")
	}
	if opt.Output != output.FormatText && opt.Output != output.FormatJSON && opt.Output != output.FormatJSONL {
		return opt, fmt.Errorf("invalid --output %q", opt.Output)
	}
	if opt.Volcano != "" && !plot.SupportedExt(opt.Volcano) {
		return opt, fmt.Errorf("--volcano %q: want a .png, .svg or .pdf file", opt.Volcano)
	}
	if !(opt.Alpha > 0 && opt.Alpha < 1) {
		return opt, errors.New("--alpha must be in (0, 1)")
	}
	if opt.Quiet && opt.Verbose {
		return opt, errors.New("--quiet conflicts with --verbose")
	}
	return opt, nil
}
