package gitlab

import (
	"time"

	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// Issue is the relay's view of a GitLab issue. GitLab owns the canonical
// state; this is what gets serialized to viewers.
type Issue struct {
	IID         int       `json:"iid"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	State       string    `json:"state"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Notes       []Note    `json:"notes"`

	// NotesTruncated marks an issue whose note listing failed. The issue
	// itself is still returned rather than aborting the whole listing.
	NotesTruncated bool `json:"notes_truncated,omitempty"`
}

// Note is a comment on an issue. Notes are append-only and immutable.
type Note struct {
	ID        int       `json:"id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// ConvertIssue converts a GitLab API issue to the relay's model
func ConvertIssue(in *gitlab.Issue) Issue {
	out := Issue{
		IID:         in.IID,
		Title:       in.Title,
		Description: in.Description,
		State:       in.State,
		Notes:       []Note{},
	}
	if in.CreatedAt != nil {
		out.CreatedAt = *in.CreatedAt
	}
	if in.UpdatedAt != nil {
		out.UpdatedAt = *in.UpdatedAt
	}
	return out
}

// ConvertNote converts a GitLab API note to the relay's model
func ConvertNote(in *gitlab.Note) Note {
	out := Note{
		ID:   in.ID,
		Body: in.Body,
	}
	if in.CreatedAt != nil {
		out.CreatedAt = *in.CreatedAt
	}
	return out
}
