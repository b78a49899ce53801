// Package view maintains a viewer's local projection of the issue list and
// reconciles it with the relay's real-time events.
package view

import (
	"sync"
	"time"

	"github.com/givddul/issuerelay/internal/event"
	"github.com/givddul/issuerelay/internal/gitlab"
)

// ApplyResult reports what an incremental patch did.
type ApplyResult struct {
	// RefetchNeeded is set when an event referenced an issue the local view
	// does not have. The event cannot be applied; the caller should reload
	// the full list instead of dropping it.
	RefetchNeeded bool

	// Resolved holds staged optimistic actions this event confirmed.
	Resolved []Action

	// Changed reports whether the view was modified.
	Changed bool
}

// Reconciler holds the local issue list, keyed by iid and ordered newest
// first. It is a best-effort cache: GitLab stays the source of truth, a full
// Replace rebuilds it, and events keep it warm in between.
type Reconciler struct {
	mu      sync.Mutex
	order   []int
	issues  map[int]*gitlab.Issue
	pending []Action
}

// NewReconciler creates an empty reconciler
func NewReconciler() *Reconciler {
	return &Reconciler{
		issues: make(map[int]*gitlab.Issue),
	}
}

// Replace swaps in a full snapshot, discarding the previous view. Pending
// actions that the snapshot already reflects are resolved.
func (r *Reconciler) Replace(issues []gitlab.Issue) []Action {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.order = r.order[:0]
	r.issues = make(map[int]*gitlab.Issue, len(issues))
	for i := range issues {
		issue := issues[i]
		if _, ok := r.issues[issue.IID]; ok {
			continue
		}
		r.order = append(r.order, issue.IID)
		r.issues[issue.IID] = &issue
	}

	var resolved []Action
	r.pending, resolved = splitPending(r.pending, func(a Action) bool {
		return r.snapshotReflects(a)
	})
	return resolved
}

// Apply patches the view with a single event. Duplicate deliveries are
// idempotent: an issueCreated for a known iid is an upsert and a noteAdded
// with a known note id is a no-op.
func (r *Reconciler) Apply(ev event.Event) ApplyResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch payload := ev.Payload.(type) {
	case event.IssuePayload:
		switch ev.Name {
		case event.IssueCreated:
			return r.applyIssueCreated(payload)
		case event.IssueUpdated:
			return r.applyIssueUpdated(payload)
		}
	case event.NotePayload:
		if ev.Name == event.NoteAdded {
			return r.applyNoteAdded(payload)
		}
	}
	return ApplyResult{}
}

func (r *Reconciler) applyIssueCreated(payload event.IssuePayload) ApplyResult {
	result := ApplyResult{Changed: true}

	if existing, ok := r.issues[payload.IID]; ok {
		// Duplicate delivery or reconnect replay: update in place rather
		// than inserting a second entry.
		patchIssue(existing, payload)
	} else {
		issue := &gitlab.Issue{
			IID:   payload.IID,
			Title: payload.Title,
			State: payload.State,
			Notes: []gitlab.Note{},
		}
		patchIssue(issue, payload)
		r.issues[payload.IID] = issue
		r.order = append([]int{payload.IID}, r.order...)
	}

	r.pending, result.Resolved = splitPending(r.pending, func(a Action) bool {
		return a.Kind == ActionCreateIssue && a.Title == payload.Title
	})
	return result
}

func (r *Reconciler) applyIssueUpdated(payload event.IssuePayload) ApplyResult {
	issue, ok := r.issues[payload.IID]
	if !ok {
		return ApplyResult{RefetchNeeded: true}
	}

	patchIssue(issue, payload)

	result := ApplyResult{Changed: true}
	r.pending, result.Resolved = splitPending(r.pending, func(a Action) bool {
		return a.Kind == ActionSetState && a.IID == payload.IID &&
			stateAfter(a.StateEvent) == payload.State
	})
	return result
}

func (r *Reconciler) applyNoteAdded(payload event.NotePayload) ApplyResult {
	issue, ok := r.issues[payload.IID]
	if !ok {
		return ApplyResult{RefetchNeeded: true}
	}

	result := ApplyResult{}
	r.pending, result.Resolved = splitPending(r.pending, func(a Action) bool {
		return a.Kind == ActionAddNote && a.IID == payload.IID && a.Body == payload.Body
	})

	for _, n := range issue.Notes {
		if n.ID == payload.NoteID {
			// Already applied.
			return result
		}
	}

	note := gitlab.Note{
		ID:   payload.NoteID,
		Body: payload.Body,
	}
	if t, ok := parseTimestamp(payload.CreatedAt); ok {
		note.CreatedAt = t
	}
	issue.Notes = append(issue.Notes, note)
	if t, ok := parseTimestamp(payload.UpdatedAt); ok {
		issue.UpdatedAt = t
	}

	result.Changed = true
	return result
}

// Issues returns a copy of the view in display order, newest first
func (r *Reconciler) Issues() []gitlab.Issue {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]gitlab.Issue, 0, len(r.order))
	for _, iid := range r.order {
		issue := *r.issues[iid]
		issue.Notes = append([]gitlab.Note{}, issue.Notes...)
		out = append(out, issue)
	}
	return out
}

// Len returns the number of issues in the view
func (r *Reconciler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

func patchIssue(issue *gitlab.Issue, payload event.IssuePayload) {
	if payload.Title != "" {
		issue.Title = payload.Title
	}
	if payload.Description != "" {
		issue.Description = payload.Description
	}
	if payload.State != "" {
		issue.State = payload.State
	}
	if t, ok := parseTimestamp(payload.CreatedAt); ok {
		issue.CreatedAt = t
	}
	if t, ok := parseTimestamp(payload.UpdatedAt); ok {
		issue.UpdatedAt = t
	}
}

// timestampFormats covers GitLab's REST encoding and the older webhook
// encoding ("2024-03-01 10:12:30 UTC").
var timestampFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05 -0700",
}

func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
