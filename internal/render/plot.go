package render

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/rewired-gh/seismoalert/internal/analysis"
	"github.com/rewired-gh/seismoalert/internal/models"
)

// ErrNothingToPlot is returned for an empty catalog.
var ErrNothingToPlot = errors.New("nothing to plot: catalog is empty")

var (
	observedColor = color.RGBA{A: 255}
	fitColor      = color.RGBA{R: 220, A: 255}
	mcColor       = color.RGBA{B: 220, A: 255}
)

// MagnitudeTimePlot saves a scatter plot of magnitude against time. The
// output format follows the file extension of path.
func MagnitudeTimePlot(c *models.Catalog, path string) error {
	if c.Len() == 0 {
		return ErrNothingToPlot
	}
	sorted := c.SortByTime(false)

	pts := make(plotter.XYs, sorted.Len())
	for i, e := range sorted.Events() {
		pts[i].X = float64(e.Time.Unix())
		pts[i].Y = e.Magnitude
	}

	p := plot.New()
	p.Title.Text = "Earthquake Magnitude vs. Time"
	p.X.Label.Text = "Time"
	p.Y.Label.Text = "Magnitude"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02\n15:04"}
	p.Add(plotter.NewGrid())

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("build scatter: %w", err)
	}
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}
	scatter.GlyphStyle.Radius = vg.Points(2.5)
	scatter.GlyphStyle.Color = fitColor
	p.Add(scatter)

	if err := p.Save(12*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}

// CumulativeCounts returns the distinct magnitudes of c in ascending order
// with the number of events at or above each one.
func CumulativeCounts(c *models.Catalog) (mags []float64, counts []int) {
	all := c.Magnitudes()
	sort.Float64s(all)

	for i, m := range all {
		if i > 0 && m == all[i-1] {
			continue
		}
		mags = append(mags, m)
		counts = append(counts, len(all)-i)
	}
	return mags, counts
}

// GutenbergRichterPlot saves the observed cumulative magnitude-frequency
// distribution on a log scale together with the fitted line 10^(a - bM) and
// a marker at the magnitude of completeness.
func GutenbergRichterPlot(c *models.Catalog, fit analysis.GutenbergRichterResult, path string) error {
	if c.Len() == 0 {
		return ErrNothingToPlot
	}

	mags, counts := CumulativeCounts(c)
	observed := make(plotter.XYs, len(mags))
	for i := range mags {
		observed[i].X = mags[i]
		observed[i].Y = float64(counts[i])
	}

	p := plot.New()
	p.Title.Text = "Gutenberg-Richter Distribution"
	p.X.Label.Text = "Magnitude"
	p.Y.Label.Text = "Cumulative Number (N >= M)"
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Add(plotter.NewGrid())

	scatter, err := plotter.NewScatter(observed)
	if err != nil {
		return fmt.Errorf("build scatter: %w", err)
	}
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}
	scatter.GlyphStyle.Color = observedColor
	p.Add(scatter)
	p.Legend.Add("Observed", scatter)

	lo, hi := mags[0], mags[len(mags)-1]
	line := make(plotter.XYs, 100)
	for i := range line {
		m := lo + (hi-lo)*float64(i)/float64(len(line)-1)
		line[i].X = m
		line[i].Y = math.Pow(10, fit.AValue-fit.BValue*m)
	}
	fitted, err := plotter.NewLine(line)
	if err != nil {
		return fmt.Errorf("build fit line: %w", err)
	}
	fitted.LineStyle.Color = fitColor
	fitted.LineStyle.Width = vg.Points(2)
	p.Add(fitted)
	p.Legend.Add(fmt.Sprintf("G-R fit (a=%.2f, b=%.2f)", fit.AValue, fit.BValue), fitted)

	if !math.IsNaN(fit.Mc) && !math.IsInf(fit.Mc, 0) {
		mcLine, err := plotter.NewLine(plotter.XYs{
			{X: fit.Mc, Y: 1},
			{X: fit.Mc, Y: float64(counts[0])},
		})
		if err != nil {
			return fmt.Errorf("build Mc marker: %w", err)
		}
		mcLine.LineStyle.Color = mcColor
		mcLine.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		p.Add(mcLine)
		p.Legend.Add(fmt.Sprintf("Mc = %.1f", fit.Mc), mcLine)
	}
	p.Legend.Top = true

	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}
