package perception

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/cybot/internal/scan"
)

var defaultParams = Params{NoObjectDistance: 50, Tolerance: 3}

// field builds a 0..180 step 2 sweep with nothing in range except the given
// optical and acoustic readings.
func field(optical, acoustic map[int]int) scan.Sequence {
	seq := make(scan.Sequence, 0, 91)
	for b := 0; b <= 180; b += 2 {
		s := scan.Sample{Bearing: b, RangeA: 250, RangeB: 50}
		if v, ok := optical[b]; ok {
			s.RangeB = v
		}
		if v, ok := acoustic[b]; ok {
			s.RangeA = v
		}
		seq = append(seq, s)
	}
	return seq
}

func run(from, to, value int) map[int]int {
	m := map[int]int{}
	for b := from; b <= to; b += 2 {
		m[b] = value
	}
	return m
}

func TestSegmentSingleRun(t *testing.T) {
	seq := field(run(20, 40, 30), run(20, 40, 30))
	objects := Segment(seq, defaultParams)

	require.Len(t, objects, 1)
	assert.Equal(t, 20, objects[0].StartBearing)
	assert.Equal(t, 40, objects[0].EndBearing)
	assert.Equal(t, 20, objects[0].AngularWidth)
	assert.Equal(t, 30, objects[0].Range)
	assert.Equal(t, ObjectWidth(30, 20, 40), objects[0].Width)
}

func TestSegmentCases(t *testing.T) {
	tests := []struct {
		name    string
		optical map[int]int
		want    [][2]int
	}{
		{"nothing", nil, nil},
		{"two runs", merge(run(10, 20, 30), run(100, 110, 40)), [][2]int{{10, 20}, {100, 110}}},
		{"open at end is dropped", run(170, 180, 30), nil},
		{"single sample never opens", map[int]int{60: 30}, nil},
		{"jump delays the start", merge(run(60, 70, 30), map[int]int{60: 20}), [][2]int{{62, 70}}},
		{"tolerance is exclusive", merge(map[int]int{60: 30, 62: 33}, run(64, 70, 33)), [][2]int{{62, 70}}},
		{"within tolerance", merge(map[int]int{60: 30, 62: 32}, run(64, 70, 33)), [][2]int{{60, 70}}},
		{"starts at first sample", run(0, 10, 20), [][2]int{{0, 10}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			objects := Segment(field(tt.optical, nil), defaultParams)
			var got [][2]int
			for _, o := range objects {
				got = append(got, [2]int{o.StartBearing, o.EndBearing})
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Segment mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSegmentMidpointBetweenSamples(t *testing.T) {
	// (80+98)/2 = 89 is not a sample bearing; the range comes from 88
	acoustic := run(80, 98, 40)
	acoustic[88] = 33
	seq := field(run(80, 98, 30), acoustic)

	objects := Segment(seq, defaultParams)
	require.Len(t, objects, 1)
	assert.Equal(t, 89, objects[0].Midpoint())
	assert.Equal(t, 33, objects[0].Range)
}

func TestObjectWidth(t *testing.T) {
	assert.Equal(t, 0, ObjectWidth(100, 40, 40))
	assert.Equal(t, 141, ObjectWidth(100, 0, 90))
	assert.Equal(t, 200, ObjectWidth(100, 0, 180))
	assert.Equal(t, 0, ObjectWidth(0, 0, 90))
}

func TestObjectWidthMonotonic(t *testing.T) {
	for _, r := range []int{1, 10, 33, 100, 250} {
		prev := 0
		for span := 0; span <= 180; span++ {
			w := ObjectWidth(r, 0, span)
			assert.GreaterOrEqual(t, w, prev, "range %d span %d", r, span)
			prev = w
		}
	}
}

func TestSmallest(t *testing.T) {
	_, err := Smallest(nil)
	assert.ErrorIs(t, err, ErrNoObject)

	objects := []DetectedObject{
		{StartBearing: 10, EndBearing: 20, Width: 12},
		{StartBearing: 40, EndBearing: 47, Width: 8},
		{StartBearing: 100, EndBearing: 110, Width: 8},
		{StartBearing: 150, EndBearing: 170, Width: 30},
	}
	target, err := Smallest(objects)
	require.NoError(t, err)
	assert.Equal(t, 43, target.Bearing, "truncated midpoint of the first minimum")
	assert.Equal(t, 8, target.Width)
	assert.Equal(t, objects[1], target.Object)
}

func TestSmallestWideObjectStillSelected(t *testing.T) {
	target, err := Smallest([]DetectedObject{{StartBearing: 0, EndBearing: 180, Width: 400}})
	require.NoError(t, err)
	assert.Equal(t, 90, target.Bearing)
}

// A tight close-range run at 80..100 in an otherwise empty field is the only
// object and is targeted dead ahead.
func TestScenarioSingleCloseRun(t *testing.T) {
	seq := field(run(80, 100, 30), run(80, 100, 30))
	require.Len(t, seq, 91)
	require.NoError(t, scan.RollingAverage(seq, 10))

	objects := Segment(seq, defaultParams)
	require.Len(t, objects, 1)
	assert.Equal(t, 80, objects[0].StartBearing)
	assert.Equal(t, 100, objects[0].EndBearing)

	target, err := Smallest(objects)
	require.NoError(t, err)
	assert.Equal(t, 90, target.Bearing)
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "0 objects", Summary(nil))
	got := Summary([]DetectedObject{{Width: 10}, {Width: 20}})
	assert.Equal(t, "2 objects, width min 10 max 20 mean 15.0 cm", got)
}

func merge(maps ...map[int]int) map[int]int {
	out := map[int]int{}
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
