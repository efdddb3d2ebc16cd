package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/matzehuels/bpdoc/pkg/errors"
)

// Mode identifies the kind of run.
type Mode string

// Run modes.
const (
	ModeFull        Mode = "full"
	ModeIncremental Mode = "incremental"
	ModeRetire      Mode = "retire"
)

// Failure is one artifact that could not be exported.
type Failure struct {
	Path string
	Err  error
}

// Result summarises one run.
type Result struct {
	Mode      Mode
	Total     int // Artifacts considered
	Exported  int
	Removed   int
	Failures  []Failure
	Warnings  []errors.Warning
	Duration  time.Duration
	Cancelled bool
}

// Failed returns the number of failed artifacts.
func (r *Result) Failed() int { return len(r.Failures) }

// Summary returns a one-line description of the run.
func (r *Result) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s export: %d exported", r.Mode, r.Exported)
	if r.Removed > 0 {
		fmt.Fprintf(&b, ", %d removed", r.Removed)
	}
	if n := r.Failed(); n > 0 {
		fmt.Fprintf(&b, ", %d failed", n)
	}
	if n := len(r.Warnings); n > 0 {
		fmt.Fprintf(&b, ", %d warnings", n)
	}
	fmt.Fprintf(&b, " in %s", r.Duration.Round(time.Millisecond))
	if r.Cancelled {
		b.WriteString(" (cancelled)")
	}
	return b.String()
}
