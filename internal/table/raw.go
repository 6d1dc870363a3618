package table

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Raw is a tab-delimited grid: a header row and one labelled row per line.
// The first header cell (the corner) is ignored.
type Raw struct {
	Source string
	Cols   []string
	Rows   []string
	Cells  [][]string // [row][col]
}

// ReadFile loads a Raw grid from path (compressed or not).
func ReadFile(path string) (*Raw, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return Read(rc, path)
}

// Read parses a Raw grid. Blank lines and lines starting with '#' are skipped;
// each data row must have exactly one cell per header column.
func Read(r io.Reader, source string) (*Raw, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1<<20), 1<<30)

	raw := &Raw{Source: source}
	ln := 0
	for sc.Scan() {
		ln++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" || line[0] == '#' {
			continue
		}
		f := strings.Split(line, "\t")
		if raw.Cols == nil {
			if len(f) < 2 {
				return nil, fmt.Errorf("%s:%d header needs an ID column and at least one data column", source, ln)
			}
			raw.Cols = trimAll(f[1:])
			if err := checkUnique(raw.Cols); err != nil {
				return nil, fmt.Errorf("%s:%d %v", source, ln, err)
			}
			continue
		}
		if len(f) != len(raw.Cols)+1 {
			return nil, fmt.Errorf("%s:%d bad field count: got %d, want %d", source, ln, len(f), len(raw.Cols)+1)
		}
		raw.Rows = append(raw.Rows, strings.TrimSpace(f[0]))
		raw.Cells = append(raw.Cells, trimAll(f[1:]))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if raw.Cols == nil {
		return nil, fmt.Errorf("%s: empty table", source)
	}
	if err := checkUnique(raw.Rows); err != nil {
		return nil, fmt.Errorf("%s: %v", source, err)
	}
	return raw, nil
}

func trimAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.TrimSpace(s)
	}
	return out
}

func checkUnique(ids []string) error {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			return fmt.Errorf("empty identifier")
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate identifier %q", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// IsMissing reports whether a cell denotes a missing value.
func IsMissing(cell string) bool {
	switch strings.ToLower(cell) {
	case "", "na", "nan", "null":
		return true
	}
	return false
}
