// Package scan sweeps the sensor turret across the field in front of the
// robot and smooths the acoustic channel of the result.
package scan

import (
	"context"
	"fmt"

	"github.com/banshee-data/cybot/internal/hardware"
)

// Sample is one turret position: acoustic range (RangeA) and optical range
// (RangeB) in centimetres at Bearing degrees.
type Sample struct {
	Bearing int `json:"bearing"`
	RangeA  int `json:"range_a"`
	RangeB  int `json:"range_b"`
}

// Sequence is a sweep in ascending bearing order with a fixed step.
type Sequence []Sample

// Clone returns an independent copy of s.
func (s Sequence) Clone() Sequence {
	if s == nil {
		return nil
	}
	out := make(Sequence, len(s))
	copy(out, s)
	return out
}

// IndexOf returns the index of the sample at bearing, or -1.
func (s Sequence) IndexOf(bearing int) int {
	for i, sample := range s {
		if sample.Bearing == bearing {
			return i
		}
	}
	return -1
}

// Window describes a sweep: every bearing from Start to End inclusive in
// increments of Step.
type Window struct {
	Start int
	End   int
	Step  int
}

// Len returns the number of samples a sweep over w produces.
func (w Window) Len() int {
	if w.Step <= 0 || w.End < w.Start {
		return 0
	}
	return (w.End-w.Start)/w.Step + 1
}

// Validate checks the window against the turret's travel.
func (w Window) Validate() error {
	if w.Step <= 0 {
		return fmt.Errorf("scan step must be positive, got %d", w.Step)
	}
	if w.Start < 0 || w.End > 180 || w.Start > w.End {
		return fmt.Errorf("scan window %d..%d outside 0..180", w.Start, w.End)
	}
	return nil
}

// Acquirer performs sweeps with one turret and its two rangers.
type Acquirer struct {
	sensors     hardware.Sensors
	acousticMax int
}

// NewAcquirer returns an Acquirer clamping acoustic readings to acousticMax.
func NewAcquirer(sensors hardware.Sensors, acousticMax int) *Acquirer {
	return &Acquirer{sensors: sensors, acousticMax: acousticMax}
}

// Sweep moves the turret to each bearing of w in turn and takes one reading
// from each ranger. Acoustic readings beyond the clamp are reported as the
// clamp. The sweep is strictly sequential and stops at the first hardware
// error.
func (a *Acquirer) Sweep(ctx context.Context, w Window) (Sequence, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	seq := make(Sequence, 0, w.Len())
	for bearing := w.Start; bearing <= w.End; bearing += w.Step {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sample, err := a.sample(ctx, bearing)
		if err != nil {
			return nil, fmt.Errorf("sweep at %d°: %w", bearing, err)
		}
		seq = append(seq, sample)
	}
	return seq, nil
}

func (a *Acquirer) sample(ctx context.Context, bearing int) (Sample, error) {
	if err := a.sensors.MoveTo(ctx, bearing); err != nil {
		return Sample{}, err
	}
	acoustic, err := a.sensors.ReadAcoustic(ctx)
	if err != nil {
		return Sample{}, err
	}
	optical, err := a.sensors.ReadOptical(ctx)
	if err != nil {
		return Sample{}, err
	}
	return Sample{
		Bearing: bearing,
		RangeA:  min(acoustic, a.acousticMax),
		RangeB:  optical,
	}, nil
}
