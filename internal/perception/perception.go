// Package perception finds discrete objects in a sweep and picks the
// narrowest one to drive towards.
package perception

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/cybot/internal/scan"
	"github.com/banshee-data/cybot/internal/units"
)

// ErrNoObject is returned by Smallest when no object was segmented.
var ErrNoObject = errors.New("no object found")

// DetectedObject is one contiguous run of in-range optical readings.
type DetectedObject struct {
	StartBearing int `json:"start_bearing"`
	EndBearing   int `json:"end_bearing"`
	// Range is the smoothed acoustic range at the midpoint bearing.
	Range        int `json:"range"`
	AngularWidth int `json:"angular_width"`
	Width        int `json:"width"`
}

// Midpoint returns the truncated mean of the start and end bearings.
func (o DetectedObject) Midpoint() int {
	return (o.StartBearing + o.EndBearing) / 2
}

// Params holds the segmentation thresholds.
type Params struct {
	// NoObjectDistance is the optical reading at and beyond which nothing is
	// considered to be there.
	NoObjectDistance int
	// Tolerance is the largest step between adjacent optical readings, exclusive,
	// for the surface to count as continuous where an object begins.
	Tolerance int
}

// Segment walks adjacent pairs of seq and returns the objects found on the
// optical channel. An object opens on an in-range reading whose successor is
// within tolerance and closes on an in-range reading whose successor is out
// of range. An object still open at the end of the sweep is dropped.
//
// The range and width of each object are taken from the acoustic channel, so
// seq should already be smoothed.
func Segment(seq scan.Sequence, p Params) []DetectedObject {
	var objects []DetectedObject
	looking := false
	start := 0

	for i := 0; i+1 < len(seq); i++ {
		cur, next := seq[i].RangeB, seq[i+1].RangeB
		switch {
		case !looking && cur < p.NoObjectDistance && abs(cur-next) < p.Tolerance:
			start = seq[i].Bearing
			looking = true
		case looking && cur < p.NoObjectDistance && next >= p.NoObjectDistance:
			objects = append(objects, measure(seq, start, seq[i].Bearing))
			looking = false
		}
	}
	return objects
}

func measure(seq scan.Sequence, start, end int) DetectedObject {
	obj := DetectedObject{
		StartBearing: start,
		EndBearing:   end,
		AngularWidth: end - start,
	}
	if idx := seq.IndexOf(obj.Midpoint()); idx >= 0 {
		obj.Range = seq[idx].RangeA
	} else {
		// the midpoint falls between samples: use the one below it
		obj.Range = seq[nearestBelow(seq, obj.Midpoint())].RangeA
	}
	obj.Width = ObjectWidth(obj.Range, start, end)
	return obj
}

func nearestBelow(seq scan.Sequence, bearing int) int {
	best := 0
	for i, s := range seq {
		if s.Bearing <= bearing {
			best = i
		}
	}
	return best
}

// ObjectWidth returns the chord subtended by the bearings at distance rangeCM:
// sqrt(2 r^2 (1 - cos(end-start))), truncated to whole centimetres.
func ObjectWidth(rangeCM, startBearing, endBearing int) int {
	r := float64(rangeCM)
	angle := units.DegToRad(float64(endBearing - startBearing))
	return int(math.Sqrt(2 * r * r * (1 - math.Cos(angle))))
}

// Target is the object chosen to approach.
type Target struct {
	Bearing int            `json:"bearing"`
	Width   int            `json:"width"`
	Object  DetectedObject `json:"object"`
}

// Smallest returns the narrowest object. Ties go to the first, lowest bearing,
// object. It returns ErrNoObject for an empty list.
func Smallest(objects []DetectedObject) (Target, error) {
	if len(objects) == 0 {
		return Target{}, ErrNoObject
	}
	best := 0
	for i := 1; i < len(objects); i++ {
		if objects[i].Width < objects[best].Width {
			best = i
		}
	}
	o := objects[best]
	return Target{Bearing: o.Midpoint(), Width: o.Width, Object: o}, nil
}

// Summary describes a set of objects for logging.
func Summary(objects []DetectedObject) string {
	if len(objects) == 0 {
		return "0 objects"
	}
	widths := make([]float64, len(objects))
	for i, o := range objects {
		widths[i] = float64(o.Width)
	}
	return fmt.Sprintf("%d objects, width min %.0f max %.0f mean %.1f cm",
		len(objects), floats.Min(widths), floats.Max(widths), floats.Sum(widths)/float64(len(widths)))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
