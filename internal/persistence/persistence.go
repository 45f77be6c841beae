// Package persistence defines the contract of the external persistence
// collaborator: a flat, relational snapshot of the entity graph loaded once
// at process start and saved once at shutdown. The core is agnostic to the
// storage format behind the Store interface.
package persistence

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("persistence: not found")

// User is a provisioned account row.
type User struct {
	ID           string
	FullName     string
	PasswordHash string
	IsGod        bool
}

// Contact is one directed owner → contact edge.
type Contact struct {
	OwnerID   string
	ContactID string
}

// Conference is a conference row; role membership travels in Roles.
type Conference struct {
	ID    string
	Name  string
	Start time.Time
	End   time.Time
}

// RoleKind labels a conference role membership row.
type RoleKind string

const (
	RoleOrganizer RoleKind = "organizer"
	RoleSpeaker   RoleKind = "speaker"
	RoleAttendee  RoleKind = "attendee"
)

// Role is one (conference, user, role) membership row.
type Role struct {
	ConferenceID string
	UserID       string
	Kind         RoleKind
}

// Room is a room row owned by a conference.
type Room struct {
	ID           string
	ConferenceID string
	Label        string
	Capacity     int
}

// Event is an event row owned by a conference.
type Event struct {
	ID           string
	ConferenceID string
	Name         string
	Start        time.Time
	End          time.Time
	RoomID       string
}

// EventMemberKind labels an event membership row.
type EventMemberKind string

const (
	EventMemberAttendee EventMemberKind = "attendee"
	EventMemberSpeaker  EventMemberKind = "speaker"
)

// EventMember is one (event, user, kind) membership row.
type EventMember struct {
	EventID string
	UserID  string
	Kind    EventMemberKind
}

// Conversation is a conversation row; ConferenceID is empty for direct ones.
type Conversation struct {
	ID           string
	Name         string
	ConferenceID string
}

// Participant is a participant row with its private view state.
type Participant struct {
	ConversationID string
	UserID         string
	HasRead        bool
	IsArchived     bool
}

// Message is one position-stable message row; Position preserves ordering
// and tombstone indices across save/load cycles.
type Message struct {
	ConversationID string
	Position       int
	SenderID       string
	SentAt         time.Time
	Content        string
	Deleted        bool
}

// Snapshot is the complete persisted state of the core.
type Snapshot struct {
	Users         []User
	Contacts      []Contact
	Conferences   []Conference
	Roles         []Role
	Rooms         []Room
	Events        []Event
	EventMembers  []EventMember
	Conversations []Conversation
	Participants  []Participant
	Messages      []Message
}

// Store is the persistence collaborator. Load returns an empty snapshot when
// no saved state exists; Save replaces the stored state atomically.
type Store interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snapshot Snapshot) error
}
