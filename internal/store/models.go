package store

import "time"

// User is a provisioned account. Accounts are created by the external
// bootstrap collaborator and never deleted by the core. PasswordHash is
// opaque payload carried for the persistence collaborator; the core performs
// no credential verification.
type User struct {
	ID           string
	FullName     string
	PasswordHash string
	IsGod        bool
}

// Room is a physical space owned by a conference.
type Room struct {
	ID       string
	Label    string
	Capacity int
}

// Event is a scheduled session owned by a conference. Its time range must
// fall within the owning conference's range and its RoomID must name a room
// of the same conference.
type Event struct {
	ID        string
	Name      string
	Start     time.Time
	End       time.Time
	RoomID    string
	Attendees map[string]struct{}
	Speakers  map[string]struct{}
}

// Conference is the root aggregate: role sets plus owned rooms, events, and
// the IDs of conference-scoped conversations (tracked for cascade deletion).
// The organizer set is never empty while the conference exists.
type Conference struct {
	ID              string
	Name            string
	Start           time.Time
	End             time.Time
	Organizers      map[string]struct{}
	Speakers        map[string]struct{}
	Attendees       map[string]struct{}
	Rooms           map[string]Room
	Events          map[string]Event
	ConversationIDs map[string]struct{}
}

// NewConference returns a conference with creatorID as its sole organizer.
func NewConference(id, name string, start, end time.Time, creatorID string) Conference {
	return Conference{
		ID:              id,
		Name:            name,
		Start:           start,
		End:             end,
		Organizers:      map[string]struct{}{creatorID: {}},
		Speakers:        make(map[string]struct{}),
		Attendees:       make(map[string]struct{}),
		Rooms:           make(map[string]Room),
		Events:          make(map[string]Event),
		ConversationIDs: make(map[string]struct{}),
	}
}

// IsMember reports whether userID holds any role in the conference.
func (c Conference) IsMember(userID string) bool {
	if _, ok := c.Organizers[userID]; ok {
		return true
	}
	if _, ok := c.Speakers[userID]; ok {
		return true
	}
	_, ok := c.Attendees[userID]
	return ok
}

// Message is one entry in a conversation's ordered log. Deleted messages are
// tombstoned in place so indices stay stable for other readers.
type Message struct {
	SenderID string
	SentAt   time.Time
	Content  string
	Deleted  bool
}

// ParticipantState is a participant's private view state for a conversation.
type ParticipantState struct {
	HasRead    bool
	IsArchived bool
}

// Conversation is a named message thread. ConferenceID is empty for direct
// conversations and names the owning conference for conference-scoped ones.
type Conversation struct {
	ID           string
	Name         string
	ConferenceID string
	Participants map[string]ParticipantState
	Messages     []Message
}

// Clone returns a deep copy of the event with its own attendee and speaker
// sets, detached from any store-held state.
func (e Event) Clone() Event {
	e.Attendees = cloneSet(e.Attendees)
	e.Speakers = cloneSet(e.Speakers)
	return e
}

func cloneSet(src map[string]struct{}) map[string]struct{} {
	dst := make(map[string]struct{}, len(src))
	for k := range src {
		dst[k] = struct{}{}
	}
	return dst
}

func cloneConference(src Conference) Conference {
	dst := src
	dst.Organizers = cloneSet(src.Organizers)
	dst.Speakers = cloneSet(src.Speakers)
	dst.Attendees = cloneSet(src.Attendees)
	dst.ConversationIDs = cloneSet(src.ConversationIDs)
	dst.Rooms = make(map[string]Room, len(src.Rooms))
	for id, room := range src.Rooms {
		dst.Rooms[id] = room
	}
	dst.Events = make(map[string]Event, len(src.Events))
	for id, event := range src.Events {
		dst.Events[id] = event.Clone()
	}
	return dst
}

func cloneConversation(src Conversation) Conversation {
	dst := src
	dst.Participants = make(map[string]ParticipantState, len(src.Participants))
	for id, state := range src.Participants {
		dst.Participants[id] = state
	}
	dst.Messages = make([]Message, len(src.Messages))
	copy(dst.Messages, src.Messages)
	return dst
}
