package view

// ActionKind identifies a user-initiated action staged optimistically in the
// view before the provider has confirmed it.
type ActionKind string

const (
	ActionCreateIssue ActionKind = "create_issue"
	ActionAddNote     ActionKind = "add_note"
	ActionSetState    ActionKind = "set_state"
)

// Action is one staged optimistic action. It stays pending until a matching
// broadcast event or snapshot confirms it, or Fail rolls it back.
type Action struct {
	Kind       ActionKind
	IID        int
	Title      string
	Body       string
	StateEvent string
}

// Stage records an optimistic action awaiting confirmation
func (r *Reconciler) Stage(a Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, a)
}

// Fail rolls back one staged action, typically after the submit returned an
// error. The first pending action equal to a is removed.
func (r *Reconciler) Fail(a Action) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, p := range r.pending {
		if p == a {
			r.pending = append(r.pending[:i], r.pending[i+1:]...)
			return true
		}
	}
	return false
}

// Pending returns the staged actions for an issue; iid 0 matches staged
// issue creations.
func (r *Reconciler) Pending(iid int) []Action {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Action
	for _, p := range r.pending {
		if p.IID == iid {
			out = append(out, p)
		}
	}
	return out
}

// PendingCount returns the total number of unconfirmed actions
func (r *Reconciler) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// splitPending removes every pending action matched by confirm, returning
// the remaining queue and the resolved actions.
func splitPending(pending []Action, confirm func(Action) bool) ([]Action, []Action) {
	var remaining, resolved []Action
	for _, p := range pending {
		if confirm(p) {
			resolved = append(resolved, p)
		} else {
			remaining = append(remaining, p)
		}
	}
	return remaining, resolved
}

// snapshotReflects reports whether a full snapshot already contains the
// outcome of a staged action. Caller holds the lock.
func (r *Reconciler) snapshotReflects(a Action) bool {
	switch a.Kind {
	case ActionCreateIssue:
		for _, issue := range r.issues {
			if issue.Title == a.Title {
				return true
			}
		}
	case ActionAddNote:
		issue, ok := r.issues[a.IID]
		if !ok {
			return false
		}
		for _, n := range issue.Notes {
			if n.Body == a.Body {
				return true
			}
		}
	case ActionSetState:
		issue, ok := r.issues[a.IID]
		return ok && issue.State == stateAfter(a.StateEvent)
	}
	return false
}

// stateAfter maps a state_event to the issue state it produces
func stateAfter(stateEvent string) string {
	switch stateEvent {
	case "close":
		return "closed"
	case "reopen":
		return "opened"
	}
	return ""
}
