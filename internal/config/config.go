// Package config reads the YAML model file accepted by --config. Every key
// is optional; keys that are present override the built-in defaults and
// are in turn overridden by explicit command-line flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"dafit/internal/family"
	"dafit/internal/model"
)

// File mirrors the YAML document. Pointer fields distinguish "absent" from
// the zero value.
type File struct {
	BaseModel     string            `yaml:"base_model"`
	FixedEffects  []string          `yaml:"fixed_effects"`
	RandomEffects []string          `yaml:"random_effects"`
	Reference     map[string]string `yaml:"reference"`
	Standardize   *bool             `yaml:"standardize"`
	AdjustOffset  *bool             `yaml:"adjust_offset"`
	OffsetColumn  string            `yaml:"offset_column"`
	Fallback      map[string]string `yaml:"fallback"`
	Correction    string            `yaml:"correction"`
	MinVariance   *float64          `yaml:"min_variance"`
	MinPrevalence *float64          `yaml:"min_prevalence"`
	MinAbundance  *float64          `yaml:"min_abundance"`
	Workers       *int              `yaml:"workers"`
	FitTimeout    string            `yaml:"fit_timeout"`
}

// Load reads and decodes path.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cfg, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode parses one YAML document; unknown keys are an error.
func Decode(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var cfg File
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &cfg, nil
		}
		return nil, model.Configf("config", "%v", err)
	}
	return &cfg, nil
}

// Apply copies every present key onto spec.
func (c *File) Apply(spec *model.Spec) error {
	if c.BaseModel != "" {
		f, err := family.Parse(c.BaseModel)
		if err != nil {
			return model.Configf("base_model", "%v", err)
		}
		spec.Family = f
	}
	if c.FixedEffects != nil {
		spec.FixedEffects = append([]string(nil), c.FixedEffects...)
	}
	if c.RandomEffects != nil {
		spec.RandomEffects = append([]string(nil), c.RandomEffects...)
	}
	if c.Reference != nil {
		spec.Reference = make(map[string]string, len(c.Reference))
		for k, v := range c.Reference {
			spec.Reference[k] = v
		}
	}
	if c.Standardize != nil {
		spec.Standardize = *c.Standardize
	}
	if c.AdjustOffset != nil {
		spec.AdjustOffset = *c.AdjustOffset
	}
	if c.OffsetColumn != "" {
		spec.OffsetColumn = c.OffsetColumn
	}
	if c.Fallback != nil {
		fb := make(map[family.Family]family.Family, len(c.Fallback))
		for k, v := range c.Fallback {
			from, err := family.Parse(k)
			if err != nil {
				return model.Configf("fallback", "%v", err)
			}
			to, err := family.Parse(v)
			if err != nil {
				return model.Configf("fallback", "%v", err)
			}
			fb[from] = to
		}
		spec.Fallback = fb
	}
	if c.Correction != "" {
		spec.Correction = c.Correction
	}
	if c.MinVariance != nil {
		spec.MinVariance = *c.MinVariance
	}
	if c.MinPrevalence != nil {
		spec.MinPrevalence = *c.MinPrevalence
	}
	if c.MinAbundance != nil {
		spec.MinAbundance = *c.MinAbundance
	}
	if c.Workers != nil {
		spec.Workers = *c.Workers
	}
	if c.FitTimeout != "" {
		d, err := time.ParseDuration(c.FitTimeout)
		if err != nil {
			return model.Configf("fit_timeout", "%v", err)
		}
		spec.FitTimeout = d
	}
	return nil
}
