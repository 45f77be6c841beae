package application

import (
	"time"

	"github.com/example/conference-hub/internal/permission"
)

// Principal represents the already-resolved identity invoking a service
// method. Credential verification happens outside the core.
type Principal struct {
	UserID string
	IsGod  bool
}

func (p Principal) actor() permission.Actor {
	return permission.Actor{ID: p.UserID, God: p.IsGod}
}

// ConferenceInput captures caller provided conference fields.
type ConferenceInput struct {
	Name  string
	Start time.Time
	End   time.Time
}

// CreateConferenceParams wraps the data required to create a conference.
type CreateConferenceParams struct {
	Principal Principal
	Input     ConferenceInput
}

// ConferenceSummary is the public listing view of a conference.
type ConferenceSummary struct {
	ID    string
	Name  string
	Start time.Time
	End   time.Time
}

// EventInput captures caller provided event fields.
type EventInput struct {
	Name   string
	Start  time.Time
	End    time.Time
	RoomID string
}

// CreateEventParams wraps the data required to create an event.
type CreateEventParams struct {
	Principal    Principal
	ConferenceID string
	Input        EventInput
}

// RoomInput captures caller provided room fields.
type RoomInput struct {
	Label    string
	Capacity int
}

// CreateRoomParams wraps the data required to create a room.
type CreateRoomParams struct {
	Principal    Principal
	ConferenceID string
	Input        RoomInput
}

// InitiateConversationParams wraps the data required to open a direct
// conversation. Every participant must be a contact of the initiator.
type InitiateConversationParams struct {
	Principal      Principal
	Name           string
	ParticipantIDs []string
	FirstMessage   string
}

// ConferenceConversationParams wraps the data required to open a
// conference-scoped conversation among conference members.
type ConferenceConversationParams struct {
	Principal      Principal
	ConferenceID   string
	Name           string
	ParticipantIDs []string
}

// MessageView is the external representation of a message. Deleted messages
// keep their slot so indices stay stable, but expose no content.
type MessageView struct {
	Index    int
	SenderID string
	SentAt   time.Time
	Content  string
	Deleted  bool
}

// ConversationView is a participant's view of a conversation, including
// their private read/archive state.
type ConversationView struct {
	ID             string
	Name           string
	ConferenceID   string
	ParticipantIDs []string
	HasRead        bool
	IsArchived     bool
}

// UserView is the public directory representation of an account.
type UserView struct {
	ID       string
	FullName string
	IsGod    bool
}

// BootstrapRecord is one provisioning record supplied by the bulk-import
// collaborator. Import is idempotent on ID.
type BootstrapRecord struct {
	ID       string
	FullName string
	Password string
	IsGod    bool
}
