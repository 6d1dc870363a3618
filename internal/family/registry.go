package family

import (
	"fmt"
	"strings"
)

// Registry is the resolved, read-only family table for one run.
// Build it once with NewRegistry; it is safe for concurrent use.
type Registry struct {
	traits [numFamilies]Traits
}

// NewRegistry applies fallback overrides on top of Defaults and rejects
// chains that loop. An override of None cuts a chain at that family.
func NewRegistry(overrides map[Family]Family) (*Registry, error) {
	r := &Registry{}
	for f, t := range Defaults() {
		r.traits[f] = t
	}
	for from, to := range overrides {
		if !from.Valid() {
			return nil, fmt.Errorf("fallback override: %q is not a fittable family", from)
		}
		if to != None && !to.Valid() {
			return nil, fmt.Errorf("fallback override: %q is not a fittable family", to)
		}
		if from == to {
			return nil, fmt.Errorf("fallback override: %s cannot fall back to itself", from)
		}
		t := r.traits[from]
		t.Fallback = to
		r.traits[from] = t
	}
	for _, f := range All() {
		if _, err := r.chain(f); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Traits returns the traits of f. Unknown families return the zero value.
func (r *Registry) Traits(f Family) Traits {
	if f < numFamilies {
		return r.traits[f]
	}
	return Traits{}
}

// Chain returns f followed by its fallbacks, in the order they are tried.
func (r *Registry) Chain(f Family) []Family {
	c, _ := r.chain(f)
	return c
}

func (r *Registry) chain(f Family) ([]Family, error) {
	var out []Family
	seen := map[Family]bool{}
	for cur := f; cur != None; cur = r.traits[cur].Fallback {
		if seen[cur] {
			parts := make([]string, 0, len(out)+1)
			for _, c := range out {
				parts = append(parts, c.String())
			}
			parts = append(parts, cur.String())
			return nil, fmt.Errorf("fallback chain loops: %s", strings.Join(parts, " -> "))
		}
		seen[cur] = true
		out = append(out, cur)
	}
	return out, nil
}
