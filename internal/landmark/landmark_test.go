package landmark

import (
	"errors"
	"testing"

	"github.com/banshee-data/cybot/internal/pose"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProject_MatchesHypotheticalAdvance(t *testing.T) {
	live := pose.Origin()

	got := Project(live, 200, 45, 6)

	// 206 cm at 45° from the origin.
	assert.Equal(t, pose.Position{X: 146, Y: 146}, got)
	assert.Equal(t, pose.Origin(), live)
}

func TestProject_LeavesLivePoseUnchanged(t *testing.T) {
	poses := []pose.Pose{
		pose.Origin(),
		{Position: pose.Position{X: -3, Y: 5}, Heading: 25},
		{Position: pose.Position{X: 120, Y: -40}, Heading: 359},
	}
	for _, live := range poses {
		before := live
		for _, offset := range []int{-90, -45, 0, 30, 90, 180} {
			_ = Project(live, 75, offset, 6)
			require.Equal(t, before, live)
		}
	}
}

func TestProject_RelativeToHeading(t *testing.T) {
	live := pose.Pose{Position: pose.Position{X: 10, Y: 10}, Heading: 90}

	// Dead ahead along +Y.
	assert.Equal(t, pose.Position{X: 10, Y: 60}, Project(live, 44, 0, 6))
	// 90° to the right of a +Y heading is +X.
	assert.Equal(t, pose.Position{X: 60, Y: 10}, Project(live, 44, -90, 6))
}

func TestSet_AddAndCapacity(t *testing.T) {
	s := NewSet(2)
	require.NoError(t, s.Add(pose.Position{X: 1, Y: 1}))
	require.NoError(t, s.Add(pose.Position{X: 200, Y: 200}))

	err := s.Add(pose.Position{X: 400, Y: 400})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSetFull))

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 2, s.Cap())
	assert.Equal(t, []pose.Position{{X: 1, Y: 1}, {X: 200, Y: 200}}, s.Entries())
}

func TestSet_EntriesIsACopy(t *testing.T) {
	s := NewSet(1)
	require.NoError(t, s.Add(pose.Position{X: 5, Y: 5}))
	entries := s.Entries()
	entries[0].X = 99
	assert.Equal(t, pose.Position{X: 5, Y: 5}, s.Entries()[0])
}

func TestSet_NegativeCapacityRejectsEverything(t *testing.T) {
	s := NewSet(-1)
	assert.ErrorIs(t, s.Add(pose.Position{}), ErrSetFull)
}

func TestIsKnown_ToleranceBox(t *testing.T) {
	const tol = 50
	known := pose.Position{X: 146, Y: 146}
	s := NewSet(5)
	require.NoError(t, s.Add(known))

	tests := []struct {
		name      string
		candidate pose.Position
		want      bool
	}{
		{"identical", known, true},
		{"tol-1 on both axes", pose.Position{X: 146 + tol - 1, Y: 146 - tol + 1}, true},
		{"corner of the box is inside", pose.Position{X: 146 - 49, Y: 146 - 49}, true},
		{"exactly tol on x", pose.Position{X: 146 + tol, Y: 146}, false},
		{"exactly tol on y", pose.Position{X: 146, Y: 146 - tol}, false},
		{"beyond tol on both", pose.Position{X: 300, Y: 300}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.IsKnown(tt.candidate, tol))
		})
	}
}

func TestIsKnown_OriginIsARealLandmark(t *testing.T) {
	s := NewSet(3)
	assert.False(t, s.IsKnown(pose.Position{}, 10), "empty set matches nothing")

	require.NoError(t, s.Add(pose.Position{}))
	assert.True(t, s.IsKnown(pose.Position{X: 3, Y: -3}, 10))
}

func TestMatch_ReturnsFirstHit(t *testing.T) {
	s := NewSet(3)
	require.NoError(t, s.Add(pose.Position{X: 0, Y: 100}))
	require.NoError(t, s.Add(pose.Position{X: 10, Y: 10}))
	require.NoError(t, s.Add(pose.Position{X: 12, Y: 12}))

	got, ok := s.Match(pose.Position{X: 11, Y: 11}, 5)
	require.True(t, ok)
	assert.Equal(t, pose.Position{X: 10, Y: 10}, got)
}

func TestIntersectWalls_PerpendicularFixes(t *testing.T) {
	first := WallFix{Pose: pose.Pose{Position: pose.Position{X: -3, Y: 5}, Heading: 25}}
	second := WallFix{Pose: pose.Pose{Position: pose.Position{X: 5, Y: -6}, Heading: 295}}

	got := IntersectWalls(first, second)
	assert.Equal(t, pose.Position{X: 3, Y: -7}, got)

	// Deterministic across calls.
	assert.Equal(t, got, IntersectWalls(first, second))
}

func TestIntersectWalls_AxisAlignedHeadingsUseEpsilon(t *testing.T) {
	// Facing +X against the wall x=10, then facing +Y against the wall y=20.
	first := WallFix{Pose: pose.Pose{Position: pose.Position{X: 10, Y: 0}, Heading: 0}}
	second := WallFix{Pose: pose.Pose{Position: pose.Position{X: 0, Y: 20}, Heading: 90}}

	assert.Equal(t, pose.Position{X: 10, Y: 20}, IntersectWalls(first, second))
}
