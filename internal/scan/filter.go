package scan

import (
	"errors"
	"fmt"
)

// ErrBadWindow is returned by RollingAverage for a non-positive window.
var ErrBadWindow = errors.New("rolling average window must be positive")

// RollingAverage smooths the acoustic channel of seq in place.
//
// Index i of the first N-window samples becomes the mean of the raw readings
// i through i+window-1. The window cannot advance past the end, so the last
// window samples are averaged over a shrinking prefix of the final window:
// index N-window+j gets the mean of the first window-j raw readings of that
// final window. Means truncate. A window larger than the sequence is clamped
// to its length.
func RollingAverage(seq Sequence, window int) error {
	if window <= 0 {
		return fmt.Errorf("%w: %d", ErrBadWindow, window)
	}
	n := len(seq)
	if n == 0 {
		return nil
	}
	window = min(window, n)

	raw := make([]int, n)
	for i, s := range seq {
		raw[i] = s.RangeA
	}

	for i := 0; i < n-window; i++ {
		seq[i].RangeA = truncMean(raw[i : i+window])
	}

	tail := raw[n-window:]
	for j := 0; j < window; j++ {
		seq[n-window+j].RangeA = truncMean(tail[:window-j])
	}
	return nil
}

func truncMean(values []int) int {
	sum := 0
	for _, v := range values {
		sum += v
	}
	return sum / len(values)
}
