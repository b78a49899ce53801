package api

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/givddul/issuerelay/internal/config"
	"github.com/givddul/issuerelay/internal/event"
	"github.com/givddul/issuerelay/internal/gitlab"
)

// fakeBroadcaster records published events instead of fanning them out
type fakeBroadcaster struct {
	mu        sync.Mutex
	published []event.Event
}

func (f *fakeBroadcaster) Publish(ev event.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, ev)
}

func (f *fakeBroadcaster) Subscribe() (uuid.UUID, <-chan event.Event) {
	ch := make(chan event.Event)
	close(ch)
	return uuid.New(), ch
}

func (f *fakeBroadcaster) Unsubscribe(uuid.UUID) {}

func (f *fakeBroadcaster) Close() {}

func (f *fakeBroadcaster) events() []event.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]event.Event(nil), f.published...)
}

// fakeIssueService implements IssueService with pluggable behavior
type fakeIssueService struct {
	createIssue func(ctx context.Context, title, description string) (*gitlab.Issue, error)
	addNote     func(ctx context.Context, iid int, body string) (*gitlab.Note, error)
	setState    func(ctx context.Context, iid int, stateEvent string) error
	list        func(ctx context.Context) ([]gitlab.Issue, error)
}

func (f *fakeIssueService) CreateIssue(ctx context.Context, title, description string) (*gitlab.Issue, error) {
	return f.createIssue(ctx, title, description)
}

func (f *fakeIssueService) AddNote(ctx context.Context, iid int, body string) (*gitlab.Note, error) {
	return f.addNote(ctx, iid, body)
}

func (f *fakeIssueService) SetIssueState(ctx context.Context, iid int, stateEvent string) error {
	return f.setState(ctx, iid, stateEvent)
}

func (f *fakeIssueService) ListIssuesWithNotes(ctx context.Context) ([]gitlab.Issue, error) {
	return f.list(ctx)
}

const testSecret = "s3cret"

func newTestServer(svc IssueService) (*Server, *fakeBroadcaster) {
	cfg := &config.Config{Port: 3000}
	cfg.Webhook.Secret = testSecret

	fb := &fakeBroadcaster{}
	return NewServer(cfg, svc, fb), fb
}
