// Package gitlab wraps the GitLab REST API for the issue relay: issue and
// note creation, state transitions, and the merged issues-with-notes listing.
package gitlab

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	gitlab "gitlab.com/gitlab-org/api/client-go"
	"golang.org/x/time/rate"
)

// Config contains configuration for the GitLab client
type Config struct {
	URL     string `koanf:"url"`
	Token   string `koanf:"token"`
	Project string `koanf:"project"`
}

// Client talks to a single GitLab project using a bearer credential.
// All outbound calls pass through a shared rate limiter so a burst of viewer
// actions cannot hammer the provider.
type Client struct {
	gl      *gitlab.Client
	project string
	limiter *rate.Limiter
}

// NewClient creates a new GitLab client for the configured project
func NewClient(cfg Config) (*Client, error) {
	gl, err := gitlab.NewOAuthClient(cfg.Token, gitlab.WithBaseURL(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("failed to create GitLab client: %w", err)
	}

	return &Client{
		gl:      gl,
		project: cfg.Project,
		limiter: rate.NewLimiter(rate.Limit(10), 10),
	}, nil
}

// CreateIssue opens a new issue with the given title and optional description
func (c *Client) CreateIssue(ctx context.Context, title, description string) (*Issue, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	opt := &gitlab.CreateIssueOptions{
		Title: gitlab.Ptr(title),
	}
	if description != "" {
		opt.Description = gitlab.Ptr(description)
	}

	created, _, err := c.gl.Issues.CreateIssue(c.project, opt, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to create issue: %w", err)
	}

	issue := ConvertIssue(created)
	return &issue, nil
}

// AddNote posts a note under the given issue
func (c *Client) AddNote(ctx context.Context, iid int, body string) (*Note, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	created, _, err := c.gl.Notes.CreateIssueNote(c.project, iid, &gitlab.CreateIssueNoteOptions{
		Body: gitlab.Ptr(body),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to add note to issue %d: %w", iid, err)
	}

	note := ConvertNote(created)
	return &note, nil
}

// SetIssueState applies a state transition to an issue. stateEvent must be
// "close" or "reopen".
func (c *Client) SetIssueState(ctx context.Context, iid int, stateEvent string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	_, _, err := c.gl.Issues.UpdateIssue(c.project, iid, &gitlab.UpdateIssueOptions{
		StateEvent: gitlab.Ptr(stateEvent),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to set state of issue %d: %w", iid, err)
	}

	return nil
}

// ListIssuesWithNotes fetches all issues for the project and merges each
// issue's notes in: one list call plus one notes call per issue.
//
// A failed notes call does not discard the listing; the affected issue is
// returned with NotesTruncated set and a warning is logged. A failed issue
// list call is an error.
func (c *Client) ListIssuesWithNotes(ctx context.Context) ([]Issue, error) {
	issues := []Issue{}

	opt := &gitlab.ListProjectIssuesOptions{
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		page, resp, err := c.gl.Issues.ListProjectIssues(c.project, opt, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list issues: %w", err)
		}

		for _, in := range page {
			issues = append(issues, ConvertIssue(in))
		}

		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}

	for i := range issues {
		notes, err := c.listNotes(ctx, issues[i].IID)
		if err != nil {
			log.Warn().Err(err).Int("iid", issues[i].IID).Msg("note listing failed, returning issue without notes")
			issues[i].NotesTruncated = true
			continue
		}
		issues[i].Notes = notes
	}

	return issues, nil
}

func (c *Client) listNotes(ctx context.Context, iid int) ([]Note, error) {
	notes := []Note{}

	opt := &gitlab.ListIssueNotesOptions{
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		page, resp, err := c.gl.Notes.ListIssueNotes(c.project, iid, opt, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list notes for issue %d: %w", iid, err)
		}

		for _, in := range page {
			notes = append(notes, ConvertNote(in))
		}

		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}

	return notes, nil
}
