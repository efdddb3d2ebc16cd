package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/matzehuels/bpdoc/pkg/observability"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner provides a progress indicator on stderr with context cancellation
// support. The message can be updated while it spins.
type Spinner struct {
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	stopped chan struct{}

	mu      sync.Mutex
	message string
	width   int // Widest line drawn, for clearing
}

// newSpinner creates a new spinner with the given message.
func newSpinner(message string) *Spinner {
	return newSpinnerWithContext(context.Background(), message)
}

// newSpinnerWithContext creates a spinner that will stop when the context is cancelled.
func newSpinnerWithContext(ctx context.Context, message string) *Spinner {
	spinnerCtx, cancel := context.WithCancel(ctx)
	return &Spinner{
		message: message,
		ctx:     spinnerCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start begins the spinner animation.
func (s *Spinner) Start() {
	go func() {
		defer close(s.stopped)
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for i := 0; ; i++ {
			select {
			case <-s.ctx.Done():
				s.clearLine()
				return
			case <-s.done:
				return
			case <-ticker.C:
				s.draw(spinnerFrames[i%len(spinnerFrames)])
			}
		}
	}()
}

// Update replaces the message shown next to the spinner.
func (s *Spinner) Update(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}

// Stop stops the spinner and clears the line. It is safe to call more than once.
func (s *Spinner) Stop() {
	s.cancel()
	s.mu.Lock()
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	s.mu.Unlock()
	<-s.stopped
	s.clearLine()
}

func (s *Spinner) draw(frame string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	line := fmt.Sprintf("%s %s", styleIconSpinner.Render(frame), StyleDim.Render(s.message))
	s.width = max(s.width, len(s.message)+2)
	fmt.Fprintf(os.Stderr, "\r%s", line)
}

func (s *Spinner) clearLine() {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(os.Stderr, "\r%s\r", strings.Repeat(" ", max(s.width, len(s.message)+2)+2))
}

// StopWithSuccess stops the spinner and shows a success message.
func (s *Spinner) StopWithSuccess(message string) {
	s.Stop()
	printSuccess("%s", message)
}

// StopWithError stops the spinner and shows an error message.
func (s *Spinner) StopWithError(message string) {
	s.Stop()
	printError("%s", message)
}

// Cancelled returns true if the spinner was stopped due to context cancellation.
func (s *Spinner) Cancelled() bool {
	return s.ctx.Err() != nil
}

// =============================================================================
// Export Progress
// =============================================================================

// exportProgress reports export hook events on a spinner.
type exportProgress struct {
	observability.NoopExportHooks
	spinner *Spinner
	label   string
	total   atomic.Int64
	done    atomic.Int64
	failed  atomic.Int64
}

func (p *exportProgress) OnExportStart(_ context.Context, _ string, total int) {
	p.total.Store(int64(total))
	p.done.Store(0)
	p.failed.Store(0)
	p.spinner.Update(fmt.Sprintf("%s (0/%d)", p.label, total))
}

func (p *exportProgress) OnArtifactExported(_ context.Context, path string, _ time.Duration, err error) {
	if err != nil {
		p.failed.Add(1)
	}
	msg := fmt.Sprintf("%s (%d/%d) %s", p.label, p.done.Add(1), p.total.Load(), path)
	if n := p.failed.Load(); n > 0 {
		msg += fmt.Sprintf(", %d failed", n)
	}
	p.spinner.Update(msg)
}

// trackExport shows export progress on a spinner until the returned stop
// function is called.
func trackExport(ctx context.Context, label string) (stop func()) {
	spinner := newSpinnerWithContext(ctx, label)
	observability.SetExportHooks(&exportProgress{spinner: spinner, label: label})
	spinner.Start()
	return func() {
		spinner.Stop()
		observability.SetExportHooks(observability.NoopExportHooks{})
	}
}
