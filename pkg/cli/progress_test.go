package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"mercator-hq/docguard/pkg/model"
)

func TestSimpleProgress(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf)

	progress.Start(4)
	progress.Done(&model.Run{Status: model.StatusCompleted}, nil)
	progress.Done(&model.Run{Status: model.StatusAwaitingHITL}, nil)
	progress.Done(&model.Run{Status: model.StatusFailed}, errors.New("stage error"))
	progress.Done(nil, errors.New("not found"))
	summary := progress.Finish()

	want := Summary{Total: 4, Completed: 1, Awaiting: 1, Failed: 1, Errors: 1}
	if summary != want {
		t.Errorf("Finish() = %+v, want %+v", summary, want)
	}

	output := buf.String()
	if !strings.Contains(output, "4/4 completed=1 awaiting=1 failed=1 errors=1") {
		t.Errorf("output missing final counts: %q", output)
	}
	if !strings.HasSuffix(output, "\n") {
		t.Error("Finish() should end the progress line")
	}
}

func TestSimpleProgress_ZeroTotal(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf)

	progress.Start(0)
	summary := progress.Finish()

	if summary.Total != 0 {
		t.Errorf("Total = %d, want 0", summary.Total)
	}
	if buf.String() != "\n" {
		t.Errorf("output = %q, want a bare newline", buf.String())
	}
}
