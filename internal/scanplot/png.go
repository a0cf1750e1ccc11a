// Package scanplot draws sweeps: PNG files with gonum/plot for the run
// directory and HTML line charts with go-echarts for the debug server.
package scanplot

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/cybot/internal/scan"
	"github.com/banshee-data/cybot/internal/timeutil"
)

const (
	plotWidth  = 10 * vg.Inch
	plotHeight = 5 * vg.Inch
)

var (
	rawColor      = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 255}
	filteredColor = color.RGBA{R: 0xff, G: 0x7f, B: 0x0e, A: 255}
	opticalColor  = color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 255}
)

// series is one line on a sweep plot.
type series struct {
	name  string
	color color.Color
	seq   scan.Sequence
	value func(scan.Sample) int
}

func acoustic(s scan.Sample) int { return s.RangeA }
func optical(s scan.Sample) int  { return s.RangeB }

// sweepSeries lists the lines of a sweep. The smoothed line is left out when
// filtered is empty.
func sweepSeries(raw, filtered scan.Sequence) []series {
	out := []series{
		{"acoustic (raw)", rawColor, raw, acoustic},
		{"optical", opticalColor, raw, optical},
	}
	if len(filtered) > 0 {
		out = append(out, series{"acoustic (smoothed)", filteredColor, filtered, acoustic})
	}
	return out
}

// newSweepPlot builds the plot of a sweep. filtered may be nil.
func newSweepPlot(title string, raw, filtered scan.Sequence) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Bearing (°)"
	p.Y.Label.Text = "Range (cm)"
	p.X.Min, p.X.Max = 0, 180

	for _, s := range sweepSeries(raw, filtered) {
		pts := make(plotter.XYs, len(s.seq))
		for i, sample := range s.seq {
			pts[i] = plotter.XY{X: float64(sample.Bearing), Y: float64(s.value(sample))}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
		line.Color = s.color
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(s.name, line)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// WritePNG renders a sweep as PNG to w.
func WritePNG(w io.Writer, title string, raw, filtered scan.Sequence) error {
	p, err := newSweepPlot(title, raw, filtered)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// SavePNG writes a sweep plot to path.
func SavePNG(path, title string, raw, filtered scan.Sequence) error {
	p, err := newSweepPlot(title, raw, filtered)
	if err != nil {
		return err
	}
	return p.Save(plotWidth, plotHeight, path)
}

// DirPlotter saves every sweep it is given as a numbered PNG in one
// directory.
type DirPlotter struct {
	mu    sync.Mutex
	dir   string
	clock timeutil.Clock
	count int
}

// NewDirPlotter creates dir if needed.
func NewDirPlotter(dir string, clock timeutil.Clock) (*DirPlotter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create plot dir: %w", err)
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &DirPlotter{dir: dir, clock: clock}, nil
}

// PlotSweep saves raw and filtered as sweep_NNN_<time>.png and returns the
// path.
func (d *DirPlotter) PlotSweep(raw, filtered scan.Sequence) (string, error) {
	d.mu.Lock()
	d.count++
	n := d.count
	d.mu.Unlock()

	now := d.clock.Now()
	name := fmt.Sprintf("sweep_%03d_%s.png", n, now.Format("20060102_150405"))
	path := filepath.Join(d.dir, name)
	title := fmt.Sprintf("Sweep %d at %s", n, now.Format("15:04:05"))
	if err := SavePNG(path, title, raw, filtered); err != nil {
		return "", fmt.Errorf("save %s: %w", name, err)
	}
	return path, nil
}
