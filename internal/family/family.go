// internal/family/family.go
package family

import (
	"fmt"
	"strings"
)

// Family identifies one supported count-model family.
type Family uint8

const (
	None Family = iota // terminates a fallback chain
	CPLM               // compound Poisson (Tweedie) GLM, log link
	ZICP               // zero-inflated CPLM
	ZACP               // zero-adjusted (hurdle) model: logistic zero part + gamma positive part
	LM                 // Gaussian linear model on log(y + 0.5)

	numFamilies
)

var names = [numFamilies]string{
	None: "none",
	CPLM: "CPLM",
	ZICP: "ZICP",
	ZACP: "ZACP",
	LM:   "LM",
}

func (f Family) String() string {
	if f < numFamilies {
		return names[f]
	}
	return fmt.Sprintf("Family(%d)", uint8(f))
}

// Valid reports whether f names a fittable family (None is not fittable).
func (f Family) Valid() bool { return f > None && f < numFamilies }

// Parse maps a case-insensitive name to a Family. "none" parses to None.
func Parse(s string) (Family, error) {
	s = strings.TrimSpace(s)
	for i, n := range names {
		if strings.EqualFold(n, s) {
			return Family(i), nil
		}
	}
	return None, fmt.Errorf("unknown model family %q (want %s)", s, strings.Join(Names(), " | "))
}

// All lists the fittable families in declaration order.
func All() []Family {
	out := make([]Family, 0, numFamilies-1)
	for f := CPLM; f < numFamilies; f++ {
		out = append(out, f)
	}
	return out
}

// Names lists the fittable family names in declaration order.
func Names() []string {
	all := All()
	out := make([]string, len(all))
	for i, f := range all {
		out[i] = f.String()
	}
	return out
}

// Traits describes what a family can model and where it falls back to.
type Traits struct {
	ZeroInflated     bool   // models excess zeros explicitly
	PositiveResponse bool   // continuous part is fit on y > 0 only
	MixedEffects     bool   // accepts random-intercept groups
	Fallback         Family // None ends the chain
}

// Defaults returns the built-in traits table:
//
//	ZICP -> CPLM -> LM
//	ZACP -> CPLM -> LM
func Defaults() map[Family]Traits {
	return map[Family]Traits{
		CPLM: {MixedEffects: true, Fallback: LM},
		ZICP: {ZeroInflated: true, MixedEffects: true, Fallback: CPLM},
		ZACP: {ZeroInflated: true, PositiveResponse: true, Fallback: CPLM},
		LM:   {MixedEffects: true, Fallback: None},
	}
}
