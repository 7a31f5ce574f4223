// Package report renders training history as line charts.
package report

import (
	"fmt"
	"image/color"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/born-ml/saenet/internal/train"
)

// Default chart size.
const (
	Width  = 8 * vg.Inch
	Height = 5 * vg.Inch
)

// Series is one named line of (epoch, value) points.
type Series struct {
	Name   string
	Points plotter.XYs
}

// Collect splits history into one cost series per pre-trained layer, the
// supervised cost and the validation accuracy. Empty series are dropped.
func Collect(h *train.History) []Series {
	var order []string
	layers := map[string]plotter.XYs{}
	var supervised, accuracy plotter.XYs

	for _, r := range h.Records {
		pt := plotter.XY{X: float64(r.Epoch), Y: r.Cost + r.Jacobian}
		switch {
		case r.Phase == train.PhaseUnsupervised:
			if _, ok := layers[r.Layer]; !ok {
				order = append(order, r.Layer)
			}
			layers[r.Layer] = append(layers[r.Layer], pt)
		case r.Eval:
			accuracy = append(accuracy, plotter.XY{X: float64(r.Epoch), Y: r.Accuracy})
		default:
			supervised = append(supervised, pt)
		}
	}

	series := make([]Series, 0, len(order)+2)
	for _, id := range order {
		series = append(series, Series{Name: fmt.Sprintf("%s cost", id), Points: layers[id]})
	}
	if len(supervised) > 0 {
		series = append(series, Series{Name: "supervised cost", Points: supervised})
	}
	if len(accuracy) > 0 {
		series = append(series, Series{Name: "accuracy", Points: accuracy})
	}
	return series
}

// NewPlot builds a chart of series against the global epoch.
func NewPlot(title string, series []Series) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "value"
	p.X.Padding, p.Y.Padding = 0, 0
	p.Legend.Top = true
	grid := plotter.NewGrid()
	grid.Vertical.Color = color.Gray{Y: 220}
	grid.Horizontal.Color = color.Gray{Y: 220}
	p.Add(grid)

	for i, s := range series {
		l, err := plotter.NewLine(s.Points)
		if err != nil {
			return nil, errors.Wrapf(err, "series %s", s.Name)
		}
		l.Width = 2
		l.Color = plotutil.Color(i)
		p.Add(l)
		p.Legend.Add(s.Name, l)
	}
	return p, nil
}

// Save writes the chart of h to path. The extension picks the format
// (.svg, .png, .pdf, ...).
func Save(path string, h *train.History) error {
	series := Collect(h)
	if len(series) == 0 {
		return errors.New("report: history is empty")
	}
	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	p, err := NewPlot(title, series)
	if err != nil {
		return errors.Wrap(err, "report")
	}
	if err := p.Save(Width, Height, path); err != nil {
		return errors.Wrapf(err, "report: save %s", path)
	}
	return nil
}
