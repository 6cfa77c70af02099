package gitx

import (
	"io"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/skaphos/reposync/internal/model"
)

var (
	progressCounted = regexp.MustCompile(`^([A-Za-z][A-Za-z ]*):\s+\d+% \((\d+)/(\d+)\)`)
	progressPlain   = regexp.MustCompile(`^([A-Za-z][A-Za-z ]*):\s+(\d+)(?:,|$)`)
)

// ProgressWriter turns sideband progress text into model.Progress updates.
// Within a stage, Current never decreases.
type ProgressWriter struct {
	mu      sync.Mutex
	sink    func(model.Progress)
	partial string
	last    map[string]uint64
}

var _ io.Writer = (*ProgressWriter)(nil)

// NewProgressWriter returns a writer that reports to sink.
func NewProgressWriter(sink func(model.Progress)) *ProgressWriter {
	return &ProgressWriter{sink: sink, last: make(map[string]uint64)}
}

// Write implements io.Writer. Lines may be terminated by \r or \n and may
// arrive split across calls.
func (w *ProgressWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	buf := w.partial + string(p)
	for {
		i := strings.IndexAny(buf, "\r\n")
		if i < 0 {
			break
		}
		w.line(buf[:i])
		buf = buf[i+1:]
	}
	w.partial = buf
	return len(p), nil
}

func (w *ProgressWriter) line(text string) {
	update, ok := ParseProgress(text)
	if !ok {
		return
	}
	if prev, seen := w.last[update.Stage]; seen && update.Current < prev {
		return
	}
	w.last[update.Stage] = update.Current
	if w.sink != nil {
		w.sink(update)
	}
}

// ParseProgress parses one server progress line such as
// "Receiving objects:  45% (9/20)" or "Counting objects: 20, done.".
func ParseProgress(line string) (model.Progress, bool) {
	line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "remote:"))
	if m := progressCounted.FindStringSubmatch(line); m != nil {
		cur, err1 := strconv.ParseUint(m[2], 10, 64)
		total, err2 := strconv.ParseUint(m[3], 10, 64)
		if err1 != nil || err2 != nil {
			return model.Progress{}, false
		}
		return model.Progress{Stage: strings.TrimSpace(m[1]), Current: cur, Total: total}, true
	}
	if m := progressPlain.FindStringSubmatch(line); m != nil {
		cur, err := strconv.ParseUint(m[2], 10, 64)
		if err != nil {
			return model.Progress{}, false
		}
		return model.Progress{Stage: strings.TrimSpace(m[1]), Current: cur}, true
	}
	return model.Progress{}, false
}
