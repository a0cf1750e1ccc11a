// Package landmark locates objects of interest on the pose grid and
// remembers which ones have already been visited.
package landmark

import (
	"errors"
	"fmt"

	"github.com/banshee-data/cybot/internal/pose"
)

// ErrSetFull is returned by Set.Add when every slot is taken.
var ErrSetFull = errors.New("landmark set is full")

// Project returns the grid position of an object seen sensedDistance away at
// bearingOffset degrees from the current heading (positive is
// counter-clockwise). radius is added to the range so the result is the
// object's centre rather than its near edge.
//
// The projection reuses pose.Advance on a copy of p; the caller's pose is
// never modified.
func Project(p pose.Pose, sensedDistance, bearingOffset, radius int) pose.Position {
	return p.Advanced(sensedDistance+radius, bearingOffset).Position
}

// Set is a fixed-capacity collection of confirmed landmark positions. Entries
// are kept in insertion order and never removed.
type Set struct {
	entries  []pose.Position
	capacity int
}

// NewSet returns an empty set holding at most capacity landmarks.
func NewSet(capacity int) *Set {
	if capacity < 0 {
		capacity = 0
	}
	return &Set{
		entries:  make([]pose.Position, 0, capacity),
		capacity: capacity,
	}
}

// Len returns the number of confirmed landmarks.
func (s *Set) Len() int { return len(s.entries) }

// Cap returns the maximum number of landmarks.
func (s *Set) Cap() int { return s.capacity }

// Entries returns a copy of the confirmed landmarks.
func (s *Set) Entries() []pose.Position {
	out := make([]pose.Position, len(s.entries))
	copy(out, s.entries)
	return out
}

// Add appends p. A full set is left unchanged and ErrSetFull is returned.
func (s *Set) Add(p pose.Position) error {
	if len(s.entries) >= s.capacity {
		return fmt.Errorf("add %s: %w (capacity %d)", p, ErrSetFull, s.capacity)
	}
	s.entries = append(s.entries, p)
	return nil
}

// Match returns the first landmark within axisTolerance of candidate on both
// axes independently. The match region is a square of side 2*axisTolerance
// with open edges: a difference of exactly axisTolerance does not match.
func (s *Set) Match(candidate pose.Position, axisTolerance int) (pose.Position, bool) {
	for _, known := range s.entries {
		if withinTolerance(known.X, candidate.X, axisTolerance) &&
			withinTolerance(known.Y, candidate.Y, axisTolerance) {
			return known, true
		}
	}
	return pose.Position{}, false
}

// IsKnown reports whether candidate matches any landmark in the set.
func (s *Set) IsKnown(candidate pose.Position, axisTolerance int) bool {
	_, ok := s.Match(candidate, axisTolerance)
	return ok
}

func withinTolerance(value, target, tolerance int) bool {
	d := value - target
	if d < 0 {
		d = -d
	}
	return d < tolerance
}
