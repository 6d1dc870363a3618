package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"dafit/internal/family"
)

func validSpec() Spec {
	return Spec{
		Family:       family.CPLM,
		FixedEffects: []string{"group", "age"},
		Reference:    map[string]string{"group": "control"},
	}
}

func TestValidate_OK(t *testing.T) {
	reg, err := validSpec().Validate()
	require.NoError(t, err)
	require.Equal(t, []family.Family{family.CPLM, family.LM}, reg.Chain(family.CPLM))
}

func TestValidate_Errors(t *testing.T) {
	cases := map[string]func(*Spec){
		"no family":          func(s *Spec) { s.Family = family.None },
		"no fixed effects":   func(s *Spec) { s.FixedEffects = nil },
		"duplicate fixed":    func(s *Spec) { s.FixedEffects = []string{"a", "a"} },
		"random also fixed":  func(s *Spec) { s.RandomEffects = []string{"group"} },
		"reference unknown":  func(s *Spec) { s.Reference = map[string]string{"site": "a"} },
		"bad correction":     func(s *Spec) { s.Correction = "fdr2" },
		"bad prevalence":     func(s *Spec) { s.MinPrevalence = 1.5 },
		"negative workers":   func(s *Spec) { s.Workers = -1 },
		"looping fallback":   func(s *Spec) { s.Fallback = map[family.Family]family.Family{family.LM: family.CPLM} },
		"offset is covariate": func(s *Spec) { s.AdjustOffset = true; s.OffsetColumn = "age" },
		"random on hurdle": func(s *Spec) {
			s.Family = family.ZACP
			s.RandomEffects = []string{"subject"}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			s := validSpec()
			mutate(&s)
			_, err := s.Validate()
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrFatalConfig), "want ErrFatalConfig, got %v", err)
		})
	}
}

func TestClone_DoesNotShare(t *testing.T) {
	s := validSpec()
	c := s.Clone()
	c.FixedEffects[0] = "changed"
	c.Reference["group"] = "treated"
	require.Equal(t, "group", s.FixedEffects[0])
	require.Equal(t, "control", s.Reference["group"])
}

func TestDefaults(t *testing.T) {
	var s Spec
	require.Equal(t, DefaultOffsetColumn, s.OffsetColumnName())
	require.Equal(t, CorrectionBH, s.CorrectionMethod())
}
