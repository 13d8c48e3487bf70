package indexer

import (
	"fmt"
	"time"
)

// Phase is one step of the IndexController's state machine (spec.md §4.7).
type Phase string

const (
	PhaseDiscovering   Phase = "Discovering"
	PhaseDiffing       Phase = "Diffing"
	PhaseDeleting      Phase = "Deleting"
	PhaseChunking      Phase = "Chunking"
	PhaseEmbedding     Phase = "Embedding"
	PhaseIndexingFiles Phase = "Indexing files"
	PhaseVerifying     Phase = "Verifying"
	PhasePersisting    Phase = "Persisting"
	PhaseDone          Phase = "Done"
)

// Event is one progress update, percentage scoped to its own phase.
type Event struct {
	Phase      Phase
	Current    int
	Total      int
	Percentage float64
	Detail     string
}

// ProgressReporter emits Events on a channel a caller supplies; the
// IndexController never blocks on a slow or absent consumer.
type ProgressReporter struct {
	ch chan<- Event
}

// NewProgressReporter wraps ch. A nil channel is valid: every Emit becomes
// a no-op, so callers that don't care about progress pass nil.
func NewProgressReporter(ch chan<- Event) *ProgressReporter {
	return &ProgressReporter{ch: ch}
}

// Emit sends an event, computing percentage from current/total (0 when
// total is 0). Non-blocking: a full or absent channel drops the event
// rather than stalling the indexing run.
func (p *ProgressReporter) Emit(phase Phase, current, total int, detail string) {
	if p == nil || p.ch == nil {
		return
	}
	var pct float64
	if total > 0 {
		pct = float64(current) / float64(total) * 100
	}
	event := Event{Phase: phase, Current: current, Total: total, Percentage: pct, Detail: detail}
	select {
	case p.ch <- event:
	default:
	}
}

// LivePrinter renders Events to a human-readable progress line, the CLI
// consumer that reproduces the teacher's original fmt.Printf output
// (SPEC_FULL.md §4 "Live progress printer").
type LivePrinter struct {
	start time.Time
}

// NewLivePrinter constructs a printer timestamped to now.
func NewLivePrinter() *LivePrinter {
	return &LivePrinter{start: time.Now()}
}

// Print formats one Event as a single progress line.
func (l *LivePrinter) Print(e Event) string {
	elapsed := time.Since(l.start).Round(time.Second)
	if e.Total > 0 {
		return fmt.Sprintf("[%s] %d/%d (%.1f%%) | elapsed %s%s",
			e.Phase, e.Current, e.Total, e.Percentage, elapsed, detailSuffix(e.Detail))
	}
	return fmt.Sprintf("[%s] elapsed %s%s", e.Phase, elapsed, detailSuffix(e.Detail))
}

func detailSuffix(detail string) string {
	if detail == "" {
		return ""
	}
	return " | " + detail
}
