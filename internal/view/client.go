package view

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/givddul/issuerelay/internal/event"
	"github.com/givddul/issuerelay/internal/gitlab"
)

// Client consumes a running relay: full listings over REST and incremental
// events over the SSE stream. It is the transport half of a viewer; the
// Reconciler is the state half.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the relay at baseURL
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
}

// FetchIssues retrieves the full issue list with notes
func (c *Client) FetchIssues(ctx context.Context) ([]gitlab.Issue, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/issues", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch issues: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("issue listing returned status %d", resp.StatusCode)
	}

	var issues []gitlab.Issue
	if err := json.NewDecoder(resp.Body).Decode(&issues); err != nil {
		return nil, fmt.Errorf("failed to decode issue listing: %w", err)
	}
	return issues, nil
}

// CreateIssue submits a new issue through the relay
func (c *Client) CreateIssue(ctx context.Context, title, description string) error {
	body := map[string]string{"title": title}
	if description != "" {
		body["description"] = description
	}
	return c.post(ctx, "/api/issues", body, http.StatusCreated)
}

// AddNote submits a note for an issue through the relay
func (c *Client) AddNote(ctx context.Context, iid int, body string) error {
	return c.post(ctx, fmt.Sprintf("/api/issues/%d/notes", iid), map[string]string{"body": body}, http.StatusOK)
}

// SetIssueState closes or reopens an issue through the relay
func (c *Client) SetIssueState(ctx context.Context, iid int, stateEvent string) error {
	payload, err := json.Marshal(map[string]string{"state_event": stateEvent})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		fmt.Sprintf("%s/api/issues/%d", c.baseURL, iid), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to set issue state: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("state change returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any, wantStatus int) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return fmt.Errorf("request to %s returned status %d", path, resp.StatusCode)
	}
	return nil
}

// Stream subscribes to the relay's event stream and invokes fn for every
// named event until ctx is cancelled or the connection drops. The stream
// uses no timeout; cancellation comes from ctx.
func (c *Client) Stream(ctx context.Context, fn func(event.Event)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/events", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to event stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("event stream returned status %d", resp.StatusCode)
	}

	var name, data string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case line == "":
			if name != "" && data != "" {
				if ev, ok := decodeEvent(name, data); ok {
					fn(ev)
				}
			}
			name, data = "", ""
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("event stream closed: %w", err)
	}
	return ctx.Err()
}

// decodeEvent unmarshals an SSE frame into a typed event
func decodeEvent(name, data string) (event.Event, bool) {
	switch event.Name(name) {
	case event.IssueCreated, event.IssueUpdated:
		var payload event.IssuePayload
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			return event.Event{}, false
		}
		return event.Event{Name: event.Name(name), Payload: payload}, true
	case event.NoteAdded:
		var payload event.NotePayload
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			return event.Event{}, false
		}
		return event.Event{Name: event.NoteAdded, Payload: payload}, true
	}
	return event.Event{}, false
}

// StreamWithRetry keeps the subscription alive, reconnecting with a fixed
// delay until ctx is cancelled. Events published while disconnected are lost,
// so callers should refetch after each reconnect.
func (c *Client) StreamWithRetry(ctx context.Context, delay time.Duration, fn func(event.Event), onConnect func()) error {
	for {
		if onConnect != nil {
			onConnect()
		}
		err := c.Stream(ctx, fn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_ = err

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
