package report

import (
	"errors"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var (
	gnssColor = color.RGBA{R: 0x99, G: 0x99, B: 0x99, A: 0xff}
	estColor  = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	rawColor  = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
)

// Track is the input of PlotTrack. Any series may be empty.
type Track struct {
	Title string
	GNSS  [][2]float64 // fixes, drawn as points
	Est   [][2]float64 // published positions, drawn as a line
	Raw   [][2]float64 // aligned estimates, drawn as points
}

func toXYs(pts [][2]float64) plotter.XYs {
	xy := make(plotter.XYs, len(pts))
	for i, p := range pts {
		xy[i] = plotter.XY{X: p[0], Y: p[1]}
	}
	return xy
}

// PlotTrack saves an east/north plot of t as a PNG (or any format gonum/plot
// infers from the path extension).
func PlotTrack(path string, t Track) error {
	if len(t.GNSS) == 0 && len(t.Est) == 0 && len(t.Raw) == 0 {
		return errors.New("report: nothing to plot")
	}

	p := plot.New()
	p.Title.Text = t.Title
	if p.Title.Text == "" {
		p.Title.Text = "Track"
	}
	p.X.Label.Text = "East (m)"
	p.Y.Label.Text = "North (m)"
	p.Add(plotter.NewGrid())

	if len(t.GNSS) > 0 {
		s, err := plotter.NewScatter(toXYs(t.GNSS))
		if err != nil {
			return err
		}
		s.GlyphStyle.Color = gnssColor
		s.GlyphStyle.Radius = vg.Points(1.5)
		p.Add(s)
		p.Legend.Add("GNSS", s)
	}
	if len(t.Est) > 0 {
		l, err := plotter.NewLine(toXYs(t.Est))
		if err != nil {
			return err
		}
		l.Color = estColor
		l.Width = vg.Points(1)
		p.Add(l)
		p.Legend.Add("estimate", l)
	}
	if len(t.Raw) > 0 {
		s, err := plotter.NewScatter(toXYs(t.Raw))
		if err != nil {
			return err
		}
		s.GlyphStyle.Color = rawColor
		s.GlyphStyle.Radius = vg.Points(2.5)
		s.GlyphStyle.Shape = draw.CrossGlyph{}
		p.Add(s)
		p.Legend.Add("aligned", s)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return p.Save(10*vg.Inch, 10*vg.Inch, path)
}
