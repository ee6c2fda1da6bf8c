package runner

import "strings"

// LineSplitter reassembles streamed chunks into whole lines, keeping a
// separate partial line per pipe. Blank lines are dropped and a trailing
// carriage return is trimmed.
type LineSplitter struct {
	pending [2]strings.Builder
	emit    func(string)
}

// NewLineSplitter returns a splitter that passes each complete line to emit.
func NewLineSplitter(emit func(string)) *LineSplitter {
	return &LineSplitter{emit: emit}
}

// Write adds a chunk read from p. It matches the StreamPipes callback.
func (s *LineSplitter) Write(p Pipe, chunk string) {
	buf := &s.pending[p]
	buf.WriteString(chunk)
	text := buf.String()
	end := strings.LastIndexByte(text, '\n')
	if end < 0 {
		return
	}
	buf.Reset()
	buf.WriteString(text[end+1:])
	for _, line := range strings.Split(text[:end], "\n") {
		s.send(line)
	}
}

// Flush emits any unterminated line, stdout first.
func (s *LineSplitter) Flush() {
	for i := range s.pending {
		buf := &s.pending[i]
		if buf.Len() == 0 {
			continue
		}
		line := buf.String()
		buf.Reset()
		s.send(line)
	}
}

func (s *LineSplitter) send(line string) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return
	}
	s.emit(line)
}
