// Package testfixtures provides deterministic fixtures, a controllable
// clock, and a sequential identifier generator for exercising the conference
// core in tests.
package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/conference-hub/internal/application"
	"github.com/example/conference-hub/internal/store"
)

var (
	userCounter       uint64
	conferenceCounter uint64
)

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic account record.
type UserFixture struct {
	ID       string
	FullName string
	IsGod    bool
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic user fixture with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	fixture := UserFixture{
		ID:       fmt.Sprintf("user-%03d", idx),
		FullName: fmt.Sprintf("User %03d", idx),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) {
		f.ID = id
	}
}

// WithUserFullName overrides the generated full name.
func WithUserFullName(name string) UserOption {
	return func(f *UserFixture) {
		f.FullName = name
	}
}

// WithGodMode marks the fixture as a god account.
func WithGodMode() UserOption {
	return func(f *UserFixture) {
		f.IsGod = true
	}
}

// Store converts the fixture to a store entity.
func (f UserFixture) Store() store.User {
	return store.User{ID: f.ID, FullName: f.FullName, IsGod: f.IsGod}
}

// Principal converts the fixture to an acting principal.
func (f UserFixture) Principal() application.Principal {
	return application.Principal{UserID: f.ID, IsGod: f.IsGod}
}

// -------------------------- Conference fixtures --------------------------

// ConferenceFixture represents a deterministic conference aggregate.
type ConferenceFixture struct {
	ID          string
	Name        string
	Start       time.Time
	End         time.Time
	OrganizerID string
}

// ConferenceOption configures the generated conference fixture.
type ConferenceOption func(*ConferenceFixture)

// NewConferenceFixture returns a deterministic conference fixture. The
// organizer defaults to a fresh user fixture ID.
func NewConferenceFixture(opts ...ConferenceOption) ConferenceFixture {
	idx := atomic.AddUint64(&conferenceCounter, 1)
	start := referenceTime.Add(time.Duration(idx) * time.Hour)
	fixture := ConferenceFixture{
		ID:          fmt.Sprintf("conf-%03d", idx),
		Name:        fmt.Sprintf("Conference %03d", idx),
		Start:       start,
		End:         start.Add(8 * time.Hour),
		OrganizerID: NewUserFixture().ID,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithConferenceID overrides the generated conference ID.
func WithConferenceID(id string) ConferenceOption {
	return func(f *ConferenceFixture) {
		f.ID = id
	}
}

// WithConferenceName overrides the generated name.
func WithConferenceName(name string) ConferenceOption {
	return func(f *ConferenceFixture) {
		f.Name = name
	}
}

// WithConferenceRange overrides the generated time range.
func WithConferenceRange(start, end time.Time) ConferenceOption {
	return func(f *ConferenceFixture) {
		f.Start = start
		f.End = end
	}
}

// WithConferenceOrganizer overrides the initial organizer.
func WithConferenceOrganizer(userID string) ConferenceOption {
	return func(f *ConferenceFixture) {
		f.OrganizerID = userID
	}
}

// Store converts the fixture to a store aggregate with the organizer as the
// sole member.
func (f ConferenceFixture) Store() store.Conference {
	return store.NewConference(f.ID, f.Name, f.Start, f.End, f.OrganizerID)
}

// Input converts the fixture to caller provided conference fields.
func (f ConferenceFixture) Input() application.ConferenceInput {
	return application.ConferenceInput{Name: f.Name, Start: f.Start, End: f.End}
}
