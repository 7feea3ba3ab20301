package termination

import "strings"

// StreamFilter removes markers from streamed fragments. A marker may be split across
// fragments, so an unterminated "[" tail is held back until it is resolved or Flush is called.
type StreamFilter struct {
	detector *Detector
	pending  string
}

func (d *Detector) NewStreamFilter() *StreamFilter {
	return &StreamFilter{detector: d}
}

func (f *StreamFilter) Write(fragment string) string {
	buf := f.detector.Remove(f.pending + fragment)
	f.pending = ""

	if i := strings.LastIndexByte(buf, '['); i >= 0 {
		tail := buf[i:]
		if !strings.Contains(tail, "]") && len(tail) <= f.detector.holdback {
			f.pending = tail
			buf = buf[:i]
		}
	}
	return buf
}

func (f *StreamFilter) Flush() string {
	out := f.detector.Remove(f.pending)
	f.pending = ""
	return out
}
