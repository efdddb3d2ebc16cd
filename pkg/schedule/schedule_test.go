package schedule

import (
	"fmt"
	"testing"
	"time"

	"github.com/matzehuels/bpdoc/pkg/errors"
	"github.com/matzehuels/bpdoc/pkg/monitor"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(d time.Duration) time.Time { return epoch.Add(d) }

func update(path string, d time.Duration) monitor.Record {
	return monitor.Record{Path: path, Kind: monitor.Updated, At: at(d)}
}

func TestDebounce(t *testing.T) {
	s := New(Options{Window: 2 * time.Second})

	// Five saves, 500ms apart.
	for i := range 5 {
		s.Observe(update("/Game/A", time.Duration(i)*500*time.Millisecond))
	}
	last := at(2 * time.Second)

	tests := []struct {
		now  time.Duration
		want int
	}{
		{3 * time.Second, 0},
		{3999 * time.Millisecond, 0},
		{4 * time.Second, 1},
		{10 * time.Second, 0},
	}
	for _, tt := range tests {
		got, err := s.Pulse(at(tt.now))
		if err != nil {
			t.Fatalf("Pulse(%v): %v", tt.now, err)
		}
		if len(got) != tt.want {
			t.Fatalf("Pulse(%v) = %v, want %d eligible", tt.now, got, tt.want)
		}
		if tt.want == 1 {
			e := got[0]
			if !e.LastChange.Equal(last) || !e.Due.Equal(last.Add(2*time.Second)) || !e.ExportedAt.Equal(at(tt.now)) {
				t.Errorf("eligible = %+v", e)
			}
		}
	}
	if !s.LastExport().Equal(at(4 * time.Second)) {
		t.Errorf("LastExport = %v", s.LastExport())
	}
}

func TestLastExportPerArtifact(t *testing.T) {
	s := New(Options{Window: time.Second})
	s.Observe(update("/Game/A", 0))
	s.Observe(update("/Game/B", 1500*time.Millisecond))

	if _, err := s.Pulse(at(time.Second)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Pulse(at(3 * time.Second)); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path string
		want time.Time
		ok   bool
	}{
		{"/Game/A", at(time.Second), true},
		{"/Game/B", at(3 * time.Second), true},
		{"/Game/C", time.Time{}, false},
	}
	for _, tt := range tests {
		got, ok := s.LastExportOf(tt.path)
		if ok != tt.ok || !got.Equal(tt.want) {
			t.Errorf("LastExportOf(%s) = %v, %v, want %v, %v", tt.path, got, ok, tt.want, tt.ok)
		}
	}

	s.Observe(monitor.Record{Path: "/Game/A", Kind: monitor.Removed, At: at(4 * time.Second)})
	if _, ok := s.LastExportOf("/Game/A"); ok {
		t.Error("removed artifact keeps its last export")
	}
	s.Reset()
	if _, ok := s.LastExportOf("/Game/B"); ok {
		t.Error("Reset kept per-artifact exports")
	}
}

func TestInsertionOrder(t *testing.T) {
	s := New(Options{Window: time.Second})
	s.Observe(update("/Game/C", 0))
	s.Observe(update("/Game/A", 0))
	s.Observe(update("/Game/B", 0))
	s.Observe(update("/Game/C", 100*time.Millisecond))

	got, err := s.Pulse(at(5 * time.Second))
	if err != nil {
		t.Fatal(err)
	}
	var paths []string
	for _, e := range got {
		paths = append(paths, e.Path)
	}
	if fmt.Sprint(paths) != "[/Game/C /Game/A /Game/B]" {
		t.Errorf("order = %v", paths)
	}
}

func TestBatchExtension(t *testing.T) {
	s := New(Options{Window: time.Second, BatchThreshold: 3, BatchExtension: 4 * time.Second})
	for i := range 3 {
		s.Observe(update(fmt.Sprintf("/Game/BP_%d", i), 0))
	}
	if !s.Batched() || s.Window() != 5*time.Second {
		t.Fatalf("Batched = %v, Window = %v", s.Batched(), s.Window())
	}

	got, _ := s.Pulse(at(2 * time.Second))
	if len(got) != 0 {
		t.Errorf("Pulse inside extended window released %d", len(got))
	}
	got, _ = s.Pulse(at(5 * time.Second))
	if len(got) != 3 {
		t.Fatalf("Pulse after extended window released %d, want 3", len(got))
	}
	if !got[0].Due.Equal(at(5 * time.Second)) {
		t.Errorf("Due = %v, want last change + extended window", got[0].Due)
	}
	if s.Batched() {
		t.Error("Batched after pending set emptied")
	}
}

func TestBelowThresholdUsesBaseWindow(t *testing.T) {
	s := New(Options{Window: time.Second, BatchThreshold: 3, BatchExtension: 4 * time.Second})
	s.Observe(update("/Game/A", 0))
	s.Observe(update("/Game/B", 0))
	got, _ := s.Pulse(at(time.Second))
	if len(got) != 2 {
		t.Errorf("released %d, want 2", len(got))
	}
}

func TestRemoval(t *testing.T) {
	s := New(Options{Window: time.Second})
	s.Observe(update("/Game/A", 0))
	s.Observe(update("/Game/B", 0))

	if !s.Observe(monitor.Record{Path: "/Game/A", Kind: monitor.Removed, At: at(0)}) {
		t.Error("Observe(removed) = false, want true")
	}
	if !s.Observe(monitor.Record{Path: "/Game/Never", Kind: monitor.Removed}) {
		t.Error("Observe(removed, not pending) = false, want true")
	}
	if s.Observe(update("/Game/C", 0)) {
		t.Error("Observe(updated) = true, want false")
	}

	got, _ := s.Pulse(at(time.Hour))
	for _, e := range got {
		if e.Path == "/Game/A" {
			t.Error("removed artifact was released")
		}
	}
	if len(got) != 2 {
		t.Errorf("released %d, want 2", len(got))
	}
}

func TestDefaults(t *testing.T) {
	s := New(Options{})
	o := s.Options()
	if o.Window != DefaultWindow || o.BatchThreshold != DefaultBatchThreshold || o.BatchExtension != DefaultWindow {
		t.Errorf("defaults = %+v", o)
	}

	off := New(Options{BatchThreshold: -1})
	for i := range 100 {
		off.Observe(update(fmt.Sprintf("/Game/%d", i), 0))
	}
	if off.Batched() {
		t.Error("negative threshold should disable batching")
	}
}

func TestCorrupted(t *testing.T) {
	s := New(Options{})
	s.Observe(update("/Game/A", 0))
	s.order = append(s.order, "/Game/Ghost")

	if _, err := s.Pulse(at(time.Hour)); !errors.Is(err, errors.ErrCodeSchedulerCorrupted) {
		t.Errorf("Pulse = %v, want SCHEDULER_CORRUPTED", err)
	}

	s.Reset()
	if _, err := s.Pulse(at(time.Hour)); err != nil {
		t.Errorf("Pulse after Reset: %v", err)
	}
}
