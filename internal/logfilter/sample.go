package logfilter

// Sample keeps the first head and last tail lines and puts one OmittedMarker
// between them. When head+tail already covers the input, a copy of the input is
// returned unchanged so sampling never adds lines; empty input stays empty even
// when head and tail are both zero.
func Sample(lines []string, head, tail int) []string {
	if head < 0 {
		head = 0
	}
	if tail < 0 {
		tail = 0
	}
	total := len(lines)
	if head+tail >= total {
		out := make([]string, total)
		copy(out, lines)
		return out
	}

	omitted := total - head - tail
	out := make([]string, 0, head+tail+1)
	out = append(out, lines[:head]...)
	out = append(out, OmittedMarker(omitted))
	out = append(out, lines[total-tail:]...)
	return out
}
