package logmux

import (
	"io"
	"sync"
)

// Sink serializes line writes from concurrent multiplexers onto a single
// destination. Every formatted line leaves in one Write call, so lines from
// different processes interleave but never tear.
type Sink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewSink wraps the shared destination, typically os.Stdout.
func NewSink(w io.Writer) *Sink {
	return &Sink{w: w}
}

// WriteLine appends a newline and writes the result atomically with respect
// to other WriteLine calls.
func (s *Sink) WriteLine(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.w, line+"\n")
	return err
}
