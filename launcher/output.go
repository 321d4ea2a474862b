package launcher

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
)

// maxLineLength bounds the memory held per captured line
const maxLineLength = 512

// tailBuffer keeps the last max lines written by any stream
type tailBuffer struct {
	mu    sync.Mutex
	lines []string
	max   int
	total int
}

func newTailBuffer(max int) *tailBuffer {
	if max < 1 {
		max = 1
	}
	return &tailBuffer{max: max}
}

func (b *tailBuffer) add(line string) {
	if len(line) > maxLineLength {
		line = line[:maxLineLength] + "..."
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.total++
	if len(b.lines) == b.max {
		copy(b.lines, b.lines[1:])
		b.lines[len(b.lines)-1] = line
		return
	}
	b.lines = append(b.lines, line)
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.lines, "\n")
}

// Total returns the number of lines seen, including dropped ones
func (b *tailBuffer) Total() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// lineWriter splits a stream into lines, logs each one and records it in
// the shared tail. Each stream gets its own lineWriter; exec.Cmd writes to
// it from a single goroutine.
type lineWriter struct {
	stream  string
	logger  *slog.Logger
	tail    *tailBuffer
	partial []byte
}

func newLineWriter(stream string, logger *slog.Logger, tail *tailBuffer) *lineWriter {
	return &lineWriter{stream: stream, logger: logger, tail: tail}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.partial = append(w.partial, p...)
	for {
		i := bytes.IndexByte(w.partial, '\n')
		if i < 0 {
			break
		}
		w.emit(w.partial[:i])
		w.partial = w.partial[i+1:]
	}
	// A single unterminated line must not grow without bound
	if len(w.partial) > 4*maxLineLength {
		w.emit(w.partial)
		w.partial = nil
	}
	return len(p), nil
}

// Flush emits a trailing line that had no newline
func (w *lineWriter) Flush() {
	if len(w.partial) > 0 {
		w.emit(w.partial)
		w.partial = nil
	}
}

func (w *lineWriter) emit(raw []byte) {
	line := strings.TrimRight(string(raw), "\r")
	w.logger.Info("Deploy output", "stream", w.stream, "line", line)
	w.tail.add(line)
}
