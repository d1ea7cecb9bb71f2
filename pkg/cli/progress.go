package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"mercator-hq/docguard/pkg/model"
)

// ProgressReporter reports progress of a batch of runs.
type ProgressReporter interface {
	Start(total int)
	Done(run *model.Run, err error)
	Finish() Summary
}

// Summary counts the outcome of a batch of runs.
type Summary struct {
	Total     int
	Completed int
	Awaiting  int
	Failed    int
	Errors    int
}

// SimpleProgress implements a single-line text progress bar.
type SimpleProgress struct {
	mu      sync.Mutex
	summary Summary
	current int
	started time.Time
	writer  io.Writer
}

// NewProgressReporter creates a new progress reporter that writes to w.
// If w is nil, it defaults to os.Stderr.
func NewProgressReporter(w io.Writer) ProgressReporter {
	if w == nil {
		w = os.Stderr
	}
	return &SimpleProgress{
		writer: w,
	}
}

// Start initializes the reporter with the number of runs.
func (p *SimpleProgress) Start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.summary = Summary{Total: total}
	p.current = 0
	p.started = time.Now()

	p.render()
}

// Done records the outcome of one run. Safe for concurrent use.
func (p *SimpleProgress) Done(run *model.Run, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current++
	switch {
	case run == nil:
		p.summary.Errors++
	case run.Status == model.StatusCompleted:
		p.summary.Completed++
	case run.Status == model.StatusAwaitingHITL:
		p.summary.Awaiting++
	case run.Status == model.StatusFailed:
		p.summary.Failed++
	case err != nil:
		p.summary.Errors++
	}
	p.render()
}

// Finish ends the progress line and returns the counts.
func (p *SimpleProgress) Finish() Summary {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.render()
	fmt.Fprintln(p.writer)
	return p.summary
}

func (p *SimpleProgress) render() {
	if p.summary.Total == 0 {
		return
	}

	percent := float64(p.current) / float64(p.summary.Total) * 100
	barWidth := 30
	filled := int(float64(barWidth) * percent / 100)

	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	fmt.Fprintf(p.writer, "\rRuns: [%s] %d/%d completed=%d awaiting=%d failed=%d errors=%d %s",
		bar, p.current, p.summary.Total,
		p.summary.Completed, p.summary.Awaiting, p.summary.Failed, p.summary.Errors,
		time.Since(p.started).Round(time.Millisecond))
}
