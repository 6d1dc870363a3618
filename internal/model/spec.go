// Package model holds the immutable analysis specification shared by every
// stage of a run, and the run-level error taxonomy.
package model

import (
	"maps"
	"slices"
	"time"

	"dafit/internal/family"
)

// DefaultOffsetColumn is the metadata column consulted for precomputed offsets.
const DefaultOffsetColumn = "scale_factor"

// Correction method names accepted by Spec.Correction.
const (
	CorrectionBH         = "BH"
	CorrectionBY         = "BY"
	CorrectionHolm       = "holm"
	CorrectionBonferroni = "bonferroni"
)

// Spec is the model specification for one run. Build it, call Validate,
// then pass it by value; no stage modifies it.
type Spec struct {
	Family        family.Family
	FixedEffects  []string
	RandomEffects []string

	// Reference maps a categorical covariate to its baseline level.
	// Unlisted categorical covariates use their first level in sorted order.
	Reference map[string]string

	AdjustOffset bool
	OffsetColumn string // "" means DefaultOffsetColumn
	Standardize  bool

	// Fallback overrides the registry defaults; family.None ends a chain.
	Fallback map[family.Family]family.Family

	Correction string // "" means BH

	// Degenerate-feature thresholds.
	MinVariance   float64 // response variance at or below this is skipped
	MinPrevalence float64 // fraction of samples that must exceed MinAbundance
	MinAbundance  float64

	Workers    int           // 0 = all CPUs
	FitTimeout time.Duration // 0 = no per-feature timeout
}

// Clone returns a deep copy, so callers can hand out a Spec without sharing
// its maps or slices.
func (s Spec) Clone() Spec {
	c := s
	c.FixedEffects = slices.Clone(s.FixedEffects)
	c.RandomEffects = slices.Clone(s.RandomEffects)
	c.Reference = maps.Clone(s.Reference)
	c.Fallback = maps.Clone(s.Fallback)
	return c
}

// OffsetColumnName returns the effective normalization column name.
func (s Spec) OffsetColumnName() string {
	if s.OffsetColumn == "" {
		return DefaultOffsetColumn
	}
	return s.OffsetColumn
}

// CorrectionMethod returns the effective multiple-testing method.
func (s Spec) CorrectionMethod() string {
	if s.Correction == "" {
		return CorrectionBH
	}
	return s.Correction
}

// Covariates lists every metadata column the spec reads, fixed effects first.
func (s Spec) Covariates() []string {
	out := make([]string, 0, len(s.FixedEffects)+len(s.RandomEffects))
	out = append(out, s.FixedEffects...)
	return append(out, s.RandomEffects...)
}

// Validate checks the spec on its own terms and resolves the family registry.
// Checks that need the metadata table happen in design.Build.
func (s Spec) Validate() (*family.Registry, error) {
	if !s.Family.Valid() {
		return nil, Configf("base_model", "a model family is required")
	}
	if len(s.FixedEffects) == 0 {
		return nil, Configf("fixed_effects", "at least one fixed effect is required")
	}
	seen := map[string]string{}
	for _, name := range s.FixedEffects {
		if name == "" {
			return nil, Configf("fixed_effects", "empty covariate name")
		}
		if _, dup := seen[name]; dup {
			return nil, Configf("fixed_effects", "%q listed twice", name)
		}
		seen[name] = "fixed_effects"
	}
	for _, name := range s.RandomEffects {
		if name == "" {
			return nil, Configf("random_effects", "empty covariate name")
		}
		if prev, dup := seen[name]; dup {
			return nil, Configf("random_effects", "%q already listed in %s", name, prev)
		}
		seen[name] = "random_effects"
	}
	for cov := range s.Reference {
		if seen[cov] != "fixed_effects" {
			return nil, Configf("reference", "%q is not a fixed effect", cov)
		}
	}
	if s.AdjustOffset {
		if _, clash := seen[s.OffsetColumnName()]; clash {
			return nil, Configf("offset_column", "%q is also used as a covariate", s.OffsetColumnName())
		}
	}
	switch s.CorrectionMethod() {
	case CorrectionBH, CorrectionBY, CorrectionHolm, CorrectionBonferroni:
	default:
		return nil, Configf("correction", "unknown method %q", s.Correction)
	}
	if s.MinVariance < 0 {
		return nil, Configf("min_variance", "must be >= 0")
	}
	if s.MinPrevalence < 0 || s.MinPrevalence > 1 {
		return nil, Configf("min_prevalence", "must be within [0,1]")
	}
	if s.MinAbundance < 0 {
		return nil, Configf("min_abundance", "must be >= 0")
	}
	if s.Workers < 0 {
		return nil, Configf("workers", "must be >= 0")
	}
	if s.FitTimeout < 0 {
		return nil, Configf("fit_timeout", "must be >= 0")
	}

	reg, err := family.NewRegistry(s.Fallback)
	if err != nil {
		return nil, Configf("fallback", "%v", err)
	}
	if len(s.RandomEffects) > 0 {
		for _, f := range reg.Chain(s.Family) {
			if !reg.Traits(f).MixedEffects {
				return nil, Configf("random_effects", "model %s in the fallback chain of %s does not support random effects", f, s.Family)
			}
		}
	}
	return reg, nil
}
