package view

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/givddul/issuerelay/internal/event"
	"github.com/givddul/issuerelay/internal/gitlab"
)

func snapshot() []gitlab.Issue {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return []gitlab.Issue{
		{IID: 2, Title: "Second", State: "opened", CreatedAt: created, UpdatedAt: created, Notes: []gitlab.Note{}},
		{IID: 1, Title: "First", State: "closed", CreatedAt: created, UpdatedAt: created,
			Notes: []gitlab.Note{{ID: 10, Body: "old note", CreatedAt: created}}},
	}
}

func created(iid int, title string) event.Event {
	return event.Event{
		Name: event.IssueCreated,
		Payload: event.IssuePayload{
			IID:       iid,
			Title:     title,
			State:     "opened",
			CreatedAt: "2024-03-02 08:00:00 UTC",
			UpdatedAt: "2024-03-02 08:00:00 UTC",
		},
	}
}

func updated(iid int, state string) event.Event {
	return event.Event{
		Name: event.IssueUpdated,
		Payload: event.IssuePayload{
			IID:       iid,
			State:     state,
			UpdatedAt: "2024-03-02 09:00:00 UTC",
		},
	}
}

func noteAdded(iid, noteID int, body string) event.Event {
	return event.Event{
		Name: event.NoteAdded,
		Payload: event.NotePayload{
			IID:       iid,
			NoteID:    noteID,
			Body:      body,
			CreatedAt: "2024-03-02 09:30:00 UTC",
			UpdatedAt: "2024-03-02 09:30:00 UTC",
		},
	}
}

func TestReplaceBuildsOrderedView(t *testing.T) {
	r := NewReconciler()
	r.Replace(snapshot())

	issues := r.Issues()
	require.Len(t, issues, 2)
	assert.Equal(t, 2, issues[0].IID)
	assert.Equal(t, 1, issues[1].IID)

	if diff := cmp.Diff(snapshot(), issues); diff != "" {
		t.Errorf("view mismatch (-want +got):\n%s", diff)
	}
}

func TestIssueCreatedInsertsAtTop(t *testing.T) {
	r := NewReconciler()
	r.Replace(snapshot())

	result := r.Apply(created(3, "Third"))
	assert.True(t, result.Changed)
	assert.False(t, result.RefetchNeeded)

	issues := r.Issues()
	require.Len(t, issues, 3)
	assert.Equal(t, 3, issues[0].IID)
	assert.Equal(t, "Third", issues[0].Title)
	assert.Equal(t, "opened", issues[0].State)
}

func TestIssueCreatedIsUpsert(t *testing.T) {
	r := NewReconciler()
	r.Replace(snapshot())

	// Duplicate delivery of an issue already in the view must not create a
	// second entry.
	r.Apply(created(2, "Second"))
	r.Apply(created(2, "Second"))

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 2, r.Issues()[0].IID)
}

func TestIssueUpdatedPatchesExisting(t *testing.T) {
	r := NewReconciler()
	r.Replace(snapshot())

	result := r.Apply(updated(2, "closed"))
	assert.True(t, result.Changed)

	issues := r.Issues()
	assert.Equal(t, "closed", issues[0].State)
	assert.Equal(t, time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC), issues[0].UpdatedAt.UTC())
	// Untouched fields survive a sparse patch.
	assert.Equal(t, "Second", issues[0].Title)
}

func TestIssueUpdatedUnknownIIDSignalsRefetch(t *testing.T) {
	r := NewReconciler()
	r.Replace(snapshot())

	result := r.Apply(updated(99, "closed"))
	assert.True(t, result.RefetchNeeded)
	assert.False(t, result.Changed)
	assert.Equal(t, 2, r.Len())
}

func TestNoteAddedIsIdempotent(t *testing.T) {
	r := NewReconciler()
	r.Replace(snapshot())

	first := r.Apply(noteAdded(1, 11, "new note"))
	assert.True(t, first.Changed)

	second := r.Apply(noteAdded(1, 11, "new note"))
	assert.False(t, second.Changed)
	assert.False(t, second.RefetchNeeded)

	issues := r.Issues()
	require.Len(t, issues[1].Notes, 2)
	assert.Equal(t, 11, issues[1].Notes[1].ID)
}

func TestNoteAddedUnknownIIDSignalsRefetch(t *testing.T) {
	r := NewReconciler()
	r.Replace(snapshot())

	result := r.Apply(noteAdded(99, 12, "orphan"))
	assert.True(t, result.RefetchNeeded)
}

func TestNoteAddedRefreshesLastEdited(t *testing.T) {
	r := NewReconciler()
	r.Replace(snapshot())

	r.Apply(noteAdded(1, 11, "new note"))

	issues := r.Issues()
	assert.Equal(t, time.Date(2024, 3, 2, 9, 30, 0, 0, time.UTC), issues[1].UpdatedAt.UTC())
}

func TestPendingActionResolvedByEvent(t *testing.T) {
	r := NewReconciler()
	r.Replace(snapshot())

	action := Action{Kind: ActionAddNote, IID: 1, Body: "new note"}
	r.Stage(action)
	require.Equal(t, 1, r.PendingCount())

	result := r.Apply(noteAdded(1, 11, "new note"))
	require.Len(t, result.Resolved, 1)
	assert.Equal(t, action, result.Resolved[0])
	assert.Equal(t, 0, r.PendingCount())
}

func TestPendingStateChangeResolvedByMatchingState(t *testing.T) {
	r := NewReconciler()
	r.Replace(snapshot())

	r.Stage(Action{Kind: ActionSetState, IID: 2, StateEvent: "close"})

	// An unrelated update does not resolve it.
	result := r.Apply(updated(2, "opened"))
	assert.Empty(t, result.Resolved)
	assert.Equal(t, 1, r.PendingCount())

	result = r.Apply(updated(2, "closed"))
	require.Len(t, result.Resolved, 1)
	assert.Equal(t, 0, r.PendingCount())
}

func TestPendingCreateResolvedByEvent(t *testing.T) {
	r := NewReconciler()

	r.Stage(Action{Kind: ActionCreateIssue, Title: "Third"})

	result := r.Apply(created(3, "Third"))
	require.Len(t, result.Resolved, 1)
	assert.Equal(t, ActionCreateIssue, result.Resolved[0].Kind)
}

func TestPendingResolvedBySnapshot(t *testing.T) {
	r := NewReconciler()

	r.Stage(Action{Kind: ActionAddNote, IID: 1, Body: "old note"})
	r.Stage(Action{Kind: ActionAddNote, IID: 1, Body: "never confirmed"})

	resolved := r.Replace(snapshot())
	require.Len(t, resolved, 1)
	assert.Equal(t, "old note", resolved[0].Body)
	assert.Equal(t, 1, r.PendingCount())
}

func TestFailRollsBackPendingAction(t *testing.T) {
	r := NewReconciler()

	action := Action{Kind: ActionAddNote, IID: 1, Body: "lost"}
	r.Stage(action)

	assert.True(t, r.Fail(action))
	assert.False(t, r.Fail(action))
	assert.Equal(t, 0, r.PendingCount())
}

func TestPendingFiltersByIID(t *testing.T) {
	r := NewReconciler()

	r.Stage(Action{Kind: ActionAddNote, IID: 1, Body: "a"})
	r.Stage(Action{Kind: ActionAddNote, IID: 2, Body: "b"})
	r.Stage(Action{Kind: ActionSetState, IID: 1, StateEvent: "close"})

	assert.Len(t, r.Pending(1), 2)
	assert.Len(t, r.Pending(2), 1)
	assert.Empty(t, r.Pending(3))
}

func TestApplyIgnoresMismatchedPayload(t *testing.T) {
	r := NewReconciler()
	r.Replace(snapshot())

	result := r.Apply(event.Event{Name: event.IssueCreated, Payload: "garbage"})
	assert.False(t, result.Changed)
	assert.False(t, result.RefetchNeeded)
}
