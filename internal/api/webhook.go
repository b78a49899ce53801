package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/givddul/issuerelay/internal/event"
)

// GitLabWebhookPayload represents the structure of GitLab webhook payloads
// for issue and note events.
type GitLabWebhookPayload struct {
	ObjectKind       string                 `json:"object_kind"`
	EventType        string                 `json:"event_type"`
	ObjectAttributes GitLabObjectAttributes `json:"object_attributes"`
	Issue            *GitLabIssueRef        `json:"issue,omitempty"`
}

// GitLabObjectAttributes represents the object_attributes field in webhook
// payloads. For issue events it describes the issue; for note events it
// describes the note.
type GitLabObjectAttributes struct {
	ID           int    `json:"id"`
	IID          int    `json:"iid"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	State        string `json:"state"`
	Action       string `json:"action"`
	Note         string `json:"note"`
	NoteableType string `json:"noteable_type"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// GitLabIssueRef is the parent issue attached to note webhook payloads
type GitLabIssueRef struct {
	IID       int    `json:"iid"`
	UpdatedAt string `json:"updated_at"`
}

// handleWebhook handles POST /webhook. Requests are authenticated by exact
// match of the X-Gitlab-Token header against the configured shared secret.
// Authenticated requests always get a 200 so GitLab never disables the hook;
// unrecognized payload shapes are accepted without publishing anything.
func (s *Server) handleWebhook(c echo.Context) error {
	token := c.Request().Header.Get("X-Gitlab-Token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.Webhook.Secret)) != 1 {
		log.Warn().Msg("webhook token mismatch")
		return c.JSON(http.StatusForbidden, map[string]string{
			"error": "forbidden",
		})
	}

	var payload GitLabWebhookPayload
	if err := c.Bind(&payload); err != nil {
		log.Error().Err(err).Msg("failed to parse webhook payload")
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid webhook payload",
		})
	}

	if ev, ok := classifyWebhook(payload); ok {
		log.Info().Str("event", string(ev.Name)).Str("object_kind", payload.ObjectKind).Msg("publishing webhook event")
		s.hub.Publish(ev)
	} else {
		log.Debug().Str("object_kind", payload.ObjectKind).Str("action", payload.ObjectAttributes.Action).Msg("ignoring unrecognized webhook payload")
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "received",
	})
}

// classifyWebhook maps a webhook payload to a broadcast event. The "open"
// action identifies issue creation; any other issue payload is an update
// (close, reopen, edit); note payloads carry the note plus its parent issue.
func classifyWebhook(payload GitLabWebhookPayload) (event.Event, bool) {
	attrs := payload.ObjectAttributes

	switch {
	case attrs.Action == "open":
		return event.Event{
			Name: event.IssueCreated,
			Payload: event.IssuePayload{
				IID:       attrs.IID,
				Title:     attrs.Title,
				State:     attrs.State,
				CreatedAt: attrs.CreatedAt,
				UpdatedAt: attrs.UpdatedAt,
			},
		}, true

	case payload.ObjectKind == "issue":
		return event.Event{
			Name: event.IssueUpdated,
			Payload: event.IssuePayload{
				IID:         attrs.IID,
				Title:       attrs.Title,
				Description: attrs.Description,
				State:       attrs.State,
				CreatedAt:   attrs.CreatedAt,
				UpdatedAt:   attrs.UpdatedAt,
			},
		}, true

	case payload.ObjectKind == "note":
		// Notes on merge requests and commits have no parent issue; only
		// issue notes are relayed.
		if payload.Issue == nil {
			return event.Event{}, false
		}
		return event.Event{
			Name: event.NoteAdded,
			Payload: event.NotePayload{
				IID:       payload.Issue.IID,
				NoteID:    attrs.ID,
				Body:      attrs.Note,
				CreatedAt: attrs.CreatedAt,
				UpdatedAt: payload.Issue.UpdatedAt,
			},
		}, true
	}

	return event.Event{}, false
}
