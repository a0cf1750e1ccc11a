package scan

import "fmt"

// TableHeader is the first line of a sweep report.
const TableHeader = "Angle(Degrees)\tSound_Dist(cm)\tIR_Dist(cm)"

// TableEnd closes a sweep report. It carries its own newline so it is sent
// without the CRLF that terminates the other lines.
const TableEnd = "END\n"

// TableLines formats seq as the tab separated report shown to the operator.
func TableLines(seq Sequence) []string {
	lines := make([]string, 0, len(seq)+2)
	lines = append(lines, TableHeader)
	for _, s := range seq {
		lines = append(lines, fmt.Sprintf("%d\t%d\t%d", s.Bearing, s.RangeA, s.RangeB))
	}
	return append(lines, TableEnd)
}
