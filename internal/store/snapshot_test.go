package store

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/example/conference-hub/internal/persistence"
)

func populatedStore(t *testing.T) *Store {
	t.Helper()

	s := New()
	s.PutUser(User{ID: "u1", FullName: "Ada", PasswordHash: "$argon2id$hash", IsGod: false})
	s.PutUser(User{ID: "u2", FullName: "Zeus", IsGod: true})
	if err := s.AddContact("u1", "u2"); err != nil {
		t.Fatalf("AddContact: %v", err)
	}

	start := time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)
	conf := NewConference("c1", "GoCon", start, start.Add(48*time.Hour), "u1")
	conf.Attendees["u2"] = struct{}{}
	conf.Rooms["r1"] = Room{ID: "r1", Label: "Main Hall", Capacity: 100}
	conf.Events["e1"] = Event{
		ID:        "e1",
		Name:      "Keynote",
		Start:     start.Add(time.Hour),
		End:       start.Add(2 * time.Hour),
		RoomID:    "r1",
		Attendees: map[string]struct{}{"u2": {}},
		Speakers:  map[string]struct{}{"u1": {}},
	}
	if err := s.AddConference(conf); err != nil {
		t.Fatalf("AddConference: %v", err)
	}

	scoped := Conversation{
		ID:           "conv-1",
		Name:         "announcements",
		ConferenceID: "c1",
		Participants: map[string]ParticipantState{
			"u1": {HasRead: true},
			"u2": {IsArchived: true},
		},
		Messages: []Message{
			{SenderID: "u1", SentAt: start.Add(30 * time.Minute), Content: "welcome"},
			{SenderID: "u1", SentAt: start.Add(40 * time.Minute), Content: "retracted", Deleted: true},
		},
	}
	if err := s.AddConferenceConversation(scoped, nil); err != nil {
		t.Fatalf("AddConferenceConversation: %v", err)
	}
	return s
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	t.Parallel()

	original := populatedStore(t)
	snapshot := original.Snapshot()

	restored := New()
	restored.Restore(snapshot)

	if !reflect.DeepEqual(restored.Snapshot(), snapshot) {
		t.Fatal("snapshot of restored store differs from original snapshot")
	}

	conf, err := restored.GetConference("c1")
	if err != nil {
		t.Fatalf("GetConference after restore: %v", err)
	}
	if _, ok := conf.ConversationIDs["conv-1"]; !ok {
		t.Fatal("restore must re-link conference-scoped conversations for cascade deletion")
	}

	conv, err := restored.GetConversation("conv-1")
	if err != nil {
		t.Fatalf("GetConversation after restore: %v", err)
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("expected 2 messages after restore, got %d", len(conv.Messages))
	}
	if !conv.Messages[1].Deleted {
		t.Fatal("tombstone flag lost in round trip")
	}
	if !conv.Participants["u2"].IsArchived {
		t.Fatal("archive state lost in round trip")
	}
}

func TestRestoreReplacesExistingState(t *testing.T) {
	t.Parallel()

	s := New()
	s.PutUser(User{ID: "stale", FullName: "Stale"})
	s.Restore(persistence.Snapshot{
		Users: []persistence.User{{ID: "fresh", FullName: "Fresh"}},
	})

	if _, err := s.GetUser("stale"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stale user should be gone after restore, got %v", err)
	}
	if _, err := s.GetUser("fresh"); err != nil {
		t.Fatalf("restored user missing: %v", err)
	}
}

func TestSnapshotOrderIsDeterministic(t *testing.T) {
	t.Parallel()

	first := populatedStore(t).Snapshot()
	second := populatedStore(t).Snapshot()
	if !reflect.DeepEqual(first, second) {
		t.Fatal("snapshots of identical stores should be byte-for-byte identical")
	}
}
