// internal/cliutil/cliutil.go
package cliutil

import (
	"flag"
	"fmt"
	"strings"

	"dafit/internal/family"
)

// BoolFlags returns names of flags that don't require a value.
func BoolFlags(fs *flag.FlagSet) map[string]bool {
	m := map[string]bool{}
	fs.VisitAll(func(f *flag.Flag) {
		if bf, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && bf.IsBoolFlag() {
			m[f.Name] = true
		}
	})
	return m
}

// SplitFlagsAndPositionals separates flag-like args from positionals,
// preserving '-','--','--x=y' semantics. Use before fs.Parse(flagArgs).
func SplitFlagsAndPositionals(fs *flag.FlagSet, argv []string) (flagArgs, posArgs []string) {
	boolFlags := BoolFlags(fs)
	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		if arg == "--" {
			posArgs = append(posArgs, argv[i+1:]...)
			break
		}
		if arg == "-" {
			posArgs = append(posArgs, arg)
			continue
		}
		if strings.HasPrefix(arg, "-") {
			if strings.Contains(arg, "=") {
				flagArgs = append(flagArgs, arg)
				continue
			}
			name := strings.TrimLeft(arg, "-")
			if eq := strings.IndexByte(name, '='); eq >= 0 {
				name = name[:eq]
			}
			needsVal := !boolFlags[name]
			flagArgs = append(flagArgs, arg)
			if needsVal && i+1 < len(argv) {
				flagArgs = append(flagArgs, argv[i+1])
				i++
			}
			continue
		}
		posArgs = append(posArgs, arg)
	}
	return
}

// ParseList splits a comma-separated list, trimming blanks and dropping
// empty entries.
func ParseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseReference parses "cov,level;cov2,level2" into a covariate → level map.
func ParseReference(s string) (map[string]string, error) {
	out := map[string]string{}
	for _, item := range strings.Split(s, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		cov, lvl, ok := strings.Cut(item, ",")
		cov, lvl = strings.TrimSpace(cov), strings.TrimSpace(lvl)
		if !ok || cov == "" || lvl == "" {
			return nil, fmt.Errorf("bad reference %q (want covariate,level)", item)
		}
		if _, dup := out[cov]; dup {
			return nil, fmt.Errorf("reference for %q given twice", cov)
		}
		out[cov] = lvl
	}
	return out, nil
}

// ParseFallback parses "ZICP=CPLM,CPLM=none" into fallback overrides.
func ParseFallback(s string) (map[family.Family]family.Family, error) {
	out := map[family.Family]family.Family{}
	for _, item := range ParseList(s) {
		from, to, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("bad fallback %q (want FAMILY=FAMILY)", item)
		}
		f, err := family.Parse(from)
		if err != nil {
			return nil, err
		}
		t, err := family.Parse(to)
		if err != nil {
			return nil, err
		}
		out[f] = t
	}
	return out, nil
}
