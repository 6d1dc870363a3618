// ./internal/arch/arch_test.go
package arch

import (
	"bytes"
	"encoding/json"
	"io"
	"os/exec"
	"strings"
	"testing"
)

type pkg struct {
	ImportPath string
	Imports    []string
	Standard   bool
}

func TestImportBoundaries(t *testing.T) {
	cmd := exec.Command("go", "list", "-json", "./...")
	cmd.Dir = "../.."
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		t.Fatalf("go list: %v", err)
	}
	dec := json.NewDecoder(&out)

	outer := []string{
		"dafit/internal/cli", "dafit/internal/config", "dafit/internal/appcore",
		"dafit/internal/app", "dafit/cmd/",
	}
	sinks := []string{
		"dafit/internal/output", "dafit/internal/writers", "dafit/internal/store",
		"dafit/internal/metrics", "dafit/internal/plot",
	}
	// numeric and model-building layers know nothing of fitting orchestration
	numeric := append([]string{
		"dafit/internal/fitter", "dafit/internal/pipeline", "dafit/internal/engine",
		"dafit/internal/result",
	}, append(sinks, outer...)...)

	bans := map[string][]string{
		"dafit/internal/glm":     numeric,
		"dafit/internal/padjust": numeric,
		"dafit/internal/family":  numeric,
		"dafit/internal/design":  numeric,
		"dafit/internal/table":   numeric,
		"dafit/internal/align":   numeric,
		"dafit/internal/offset":  numeric,
		"dafit/internal/fitter":  append([]string{"dafit/internal/pipeline", "dafit/internal/engine"}, append(sinks, outer...)...),
		"dafit/internal/pipeline": append([]string{"dafit/internal/engine"}, append(sinks, outer...)...),
		"dafit/internal/engine":   append(sinks, outer...),
		"dafit/internal/output":   append([]string{"dafit/internal/pipeline"}, outer...),
		"dafit/internal/writers":  append([]string{"dafit/internal/pipeline"}, outer...),
		"dafit/internal/store":    append([]string{"dafit/internal/engine", "dafit/internal/pipeline"}, outer...),
		"dafit/internal/metrics":  append([]string{"dafit/internal/engine"}, outer...),
		"dafit/internal/plot":     append([]string{"dafit/internal/engine", "dafit/internal/pipeline"}, outer...),
	}

	var violations []string
	for {
		var p pkg
		if err := dec.Decode(&p); err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("decode: %v", err)
		}
		imp := p.ImportPath
		forbidden, ok := bans[imp]
		if !ok {
			continue
		}
		for _, dep := range p.Imports {
			if !strings.HasPrefix(dep, "dafit/") {
				continue
			}
			for _, ban := range forbidden {
				if dep == ban || (strings.HasSuffix(ban, "/") && strings.HasPrefix(dep, ban)) {
					violations = append(violations, imp+" → "+dep)
				}
			}
		}
	}

	if len(violations) > 0 {
		t.Fatalf("import boundary violations:\n  %s", strings.Join(violations, "\n  "))
	}
}
