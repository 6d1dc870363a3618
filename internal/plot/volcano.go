// Package plot renders static summary plots of a result table.
package plot

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"dafit/internal/result"
)

// ErrNothingToPlot is returned when no row has a finite effect and p-value.
var ErrNothingToPlot = errors.New("plot: no fitted rows to plot")

var (
	significantColor = color.RGBA{R: 200, G: 30, B: 30, A: 255}
	otherColor       = color.RGBA{R: 130, G: 130, B: 130, A: 255}
)

// SupportedExt reports whether path has an extension Volcano can write.
func SupportedExt(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".svg", ".pdf":
		return true
	}
	return false
}

// Points splits rows into significant (q <= alpha) and other volcano
// points: x is the coefficient, y is -log10(p).
func Points(rows []result.Row, alpha float64) (sig, other plotter.XYs) {
	for _, r := range rows {
		if math.IsNaN(r.Coef) || math.IsNaN(r.PValue) || math.IsInf(r.Coef, 0) {
			continue
		}
		p := math.Max(r.PValue, math.SmallestNonzeroFloat64)
		pt := plotter.XY{X: r.Coef, Y: -math.Log10(p)}
		if r.QValue <= alpha {
			sig = append(sig, pt)
		} else {
			other = append(other, pt)
		}
	}
	return sig, other
}

// Volcano writes a volcano plot of rows to path; the format follows the
// file extension.
func Volcano(rows []result.Row, alpha float64, title, path string) error {
	if !SupportedExt(path) {
		return fmt.Errorf("plot: unsupported file type %q (want .png, .svg or .pdf)", filepath.Ext(path))
	}
	sig, other := Points(rows, alpha)
	if len(sig)+len(other) == 0 {
		return ErrNothingToPlot
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "coefficient"
	p.Y.Label.Text = "-log10(p)"
	p.Add(plotter.NewGrid())

	add := func(pts plotter.XYs, c color.Color, label string) error {
		if len(pts) == 0 {
			return nil
		}
		s, err := plotter.NewScatter(pts)
		if err != nil {
			return err
		}
		s.GlyphStyle.Color = c
		s.GlyphStyle.Radius = vg.Points(2)
		p.Add(s)
		p.Legend.Add(label, s)
		return nil
	}
	if err := add(other, otherColor, fmt.Sprintf("q > %g", alpha)); err != nil {
		return err
	}
	if err := add(sig, significantColor, fmt.Sprintf("q ≤ %g", alpha)); err != nil {
		return err
	}
	p.Legend.Top = true

	return p.Save(8*vg.Inch, 6*vg.Inch, path)
}
