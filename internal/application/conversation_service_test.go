package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/conference-hub/internal/application"
	"github.com/example/conference-hub/internal/testfixtures"
)

func initiate(t *testing.T, env *testfixtures.Env, initiator application.Principal, name string, participantIDs ...string) application.ConversationView {
	t.Helper()
	view, err := env.Conversations.InitiateConversation(context.Background(), application.InitiateConversationParams{
		Principal:      initiator,
		Name:           name,
		ParticipantIDs: participantIDs,
		FirstMessage:   "hello",
	})
	if err != nil {
		t.Fatalf("InitiateConversation: %v", err)
	}
	return view
}

func TestInitiateConversationRequiresContacts(t *testing.T) {
	t.Parallel()

	env := testfixtures.NewEnv()
	users := env.SeedUsers(
		testfixtures.NewUserFixture(),
		testfixtures.NewUserFixture(),
		testfixtures.NewUserFixture(),
	)
	initiator, friend, stranger := users[0], users[1], users[2]
	if err := env.SeedContact(initiator.ID, friend.ID); err != nil {
		t.Fatalf("SeedContact: %v", err)
	}

	_, err := env.Conversations.InitiateConversation(context.Background(), application.InitiateConversationParams{
		Principal:      initiator.Principal(),
		Name:           "plans",
		ParticipantIDs: []string{friend.ID, stranger.ID},
		FirstMessage:   "hello",
	})

	var denied *application.MessageDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected *MessageDeniedError, got %v", err)
	}
	if denied.BlockedID != stranger.ID {
		t.Fatalf("wrong blocked participant: %s", denied.BlockedID)
	}
	// All-or-nothing: the missing edge aborts the whole call.
	if env.Store.ConversationCount() != 0 {
		t.Fatalf("failed creation left %d conversations behind", env.Store.ConversationCount())
	}
}

func TestInitiateConversationSeedsFirstMessage(t *testing.T) {
	t.Parallel()

	env := testfixtures.NewEnv()
	users := env.SeedUsers(testfixtures.NewUserFixture(), testfixtures.NewUserFixture())
	initiator, friend := users[0], users[1]
	if err := env.SeedContact(initiator.ID, friend.ID); err != nil {
		t.Fatalf("SeedContact: %v", err)
	}

	view := initiate(t, env, initiator.Principal(), "plans", friend.ID)
	if !view.HasRead {
		t.Fatal("initiator starts with the conversation read")
	}

	messages, err := env.Conversations.Messages(context.Background(), friend.Principal(), view.ID)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(messages) != 1 || messages[0].Content != "hello" || messages[0].SenderID != initiator.ID {
		t.Fatalf("unexpected seeded log: %+v", messages)
	}
}

func TestInitiateConversationGodSkipsContactGate(t *testing.T) {
	t.Parallel()

	env := testfixtures.NewEnv()
	users := env.SeedUsers(
		testfixtures.NewUserFixture(testfixtures.WithGodMode()),
		testfixtures.NewUserFixture(),
	)
	god, mortal := users[0], users[1]

	view := initiate(t, env, god.Principal(), "decree", mortal.ID)
	if len(view.ParticipantIDs) != 2 {
		t.Fatalf("expected 2 participants, got %v", view.ParticipantIDs)
	}

	_, err := env.Conversations.InitiateConversation(context.Background(), application.InitiateConversationParams{
		Principal:      god.Principal(),
		Name:           "void",
		ParticipantIDs: []string{"ghost"},
		FirstMessage:   "hello",
	})
	if !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("even gods need existing participants, got %v", err)
	}
}

func TestSendMessageResetsReadAndArchiveState(t *testing.T) {
	t.Parallel()

	env := testfixtures.NewEnv()
	users := env.SeedUsers(testfixtures.NewUserFixture(), testfixtures.NewUserFixture())
	alice, bob := users[0], users[1]
	if err := env.SeedContact(alice.ID, bob.ID); err != nil {
		t.Fatalf("SeedContact: %v", err)
	}
	ctx := context.Background()

	view := initiate(t, env, alice.Principal(), "plans", bob.ID)

	// Bob reads, then archives; Alice's next message reactivates his copy
	// without touching the read state it had when archived.
	if _, err := env.Conversations.Messages(ctx, bob.Principal(), view.ID); err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if err := env.Conversations.ArchiveConversation(ctx, bob.Principal(), view.ID); err != nil {
		t.Fatalf("ArchiveConversation: %v", err)
	}

	env.Clock.Advance(time.Minute)
	if _, err := env.Conversations.SendMessage(ctx, alice.Principal(), view.ID, "still there?"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	views, err := env.Conversations.Conversations(ctx, bob.Principal())
	if err != nil {
		t.Fatalf("Conversations: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 conversation for bob, got %d", len(views))
	}
	if views[0].IsArchived {
		t.Fatal("inbound message must reactivate an archived copy")
	}
	if !views[0].HasRead {
		t.Fatal("reactivation keeps the read state from before the archive")
	}

	// The next message lands on an active copy and marks it unread.
	env.Clock.Advance(time.Minute)
	if _, err := env.Conversations.SendMessage(ctx, alice.Principal(), view.ID, "hello?"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	views, err = env.Conversations.Conversations(ctx, bob.Principal())
	if err != nil {
		t.Fatalf("Conversations: %v", err)
	}
	if views[0].HasRead {
		t.Fatal("a message into an active copy must mark it unread")
	}

	mine, err := env.Conversations.Conversations(ctx, alice.Principal())
	if err != nil {
		t.Fatalf("Conversations: %v", err)
	}
	if !mine[0].HasRead {
		t.Fatal("sender keeps the conversation read")
	}
}

func TestSendMessageRequiresParticipation(t *testing.T) {
	t.Parallel()

	env := testfixtures.NewEnv()
	users := env.SeedUsers(
		testfixtures.NewUserFixture(),
		testfixtures.NewUserFixture(),
		testfixtures.NewUserFixture(),
	)
	alice, bob, eve := users[0], users[1], users[2]
	if err := env.SeedContact(alice.ID, bob.ID); err != nil {
		t.Fatalf("SeedContact: %v", err)
	}

	view := initiate(t, env, alice.Principal(), "plans", bob.ID)

	_, err := env.Conversations.SendMessage(context.Background(), eve.Principal(), view.ID, "let me in")
	if !errors.Is(err, application.ErrPermissionDenied) {
		t.Fatalf("non-participant send should be denied, got %v", err)
	}
}

func TestDeleteMessageSenderOnly(t *testing.T) {
	t.Parallel()

	env := testfixtures.NewEnv()
	users := env.SeedUsers(testfixtures.NewUserFixture(), testfixtures.NewUserFixture())
	alice, bob := users[0], users[1]
	if err := env.SeedContact(alice.ID, bob.ID); err != nil {
		t.Fatalf("SeedContact: %v", err)
	}
	ctx := context.Background()

	view := initiate(t, env, alice.Principal(), "plans", bob.ID)

	err := env.Conversations.DeleteMessage(ctx, bob.Principal(), view.ID, 0)
	if !errors.Is(err, application.ErrPermissionDenied) {
		t.Fatalf("only the sender may delete, got %v", err)
	}

	if err := env.Conversations.DeleteMessage(ctx, alice.Principal(), view.ID, 0); err != nil {
		t.Fatalf("sender deletion: %v", err)
	}

	messages, err := env.Conversations.Messages(ctx, bob.Principal(), view.ID)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("tombstone must keep the slot, got %d messages", len(messages))
	}
	if !messages[0].Deleted || messages[0].Content != "" {
		t.Fatalf("deleted message should be blanked, got %+v", messages[0])
	}

	err = env.Conversations.DeleteMessage(ctx, alice.Principal(), view.ID, 5)
	if !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("out-of-range index should be ErrNotFound, got %v", err)
	}
}

func TestArchiveConversationRefusesGods(t *testing.T) {
	t.Parallel()

	env := testfixtures.NewEnv()
	users := env.SeedUsers(
		testfixtures.NewUserFixture(testfixtures.WithGodMode()),
		testfixtures.NewUserFixture(),
	)
	god, mortal := users[0], users[1]

	view := initiate(t, env, god.Principal(), "decree", mortal.ID)

	err := env.Conversations.ArchiveConversation(context.Background(), god.Principal(), view.ID)
	if !errors.Is(err, application.ErrPermissionDenied) {
		t.Fatalf("gods may not archive, got %v", err)
	}
}

func TestUnreadConversationAffectsCallerOnly(t *testing.T) {
	t.Parallel()

	env := testfixtures.NewEnv()
	users := env.SeedUsers(testfixtures.NewUserFixture(), testfixtures.NewUserFixture())
	alice, bob := users[0], users[1]
	if err := env.SeedContact(alice.ID, bob.ID); err != nil {
		t.Fatalf("SeedContact: %v", err)
	}
	ctx := context.Background()

	view := initiate(t, env, alice.Principal(), "plans", bob.ID)
	if _, err := env.Conversations.Messages(ctx, bob.Principal(), view.ID); err != nil {
		t.Fatalf("Messages: %v", err)
	}

	if err := env.Conversations.UnreadConversation(ctx, bob.Principal(), view.ID); err != nil {
		t.Fatalf("UnreadConversation: %v", err)
	}

	bobViews, err := env.Conversations.Conversations(ctx, bob.Principal())
	if err != nil {
		t.Fatalf("Conversations: %v", err)
	}
	if bobViews[0].HasRead {
		t.Fatal("bob's copy should be unread")
	}
	aliceViews, err := env.Conversations.Conversations(ctx, alice.Principal())
	if err != nil {
		t.Fatalf("Conversations: %v", err)
	}
	if !aliceViews[0].HasRead {
		t.Fatal("alice's read state must be untouched")
	}
}

func TestLeaveConversationKeepsLastParticipant(t *testing.T) {
	t.Parallel()

	env := testfixtures.NewEnv()
	users := env.SeedUsers(testfixtures.NewUserFixture(), testfixtures.NewUserFixture())
	alice, bob := users[0], users[1]
	if err := env.SeedContact(alice.ID, bob.ID); err != nil {
		t.Fatalf("SeedContact: %v", err)
	}
	ctx := context.Background()

	view := initiate(t, env, alice.Principal(), "plans", bob.ID)

	if err := env.Conversations.LeaveConversation(ctx, bob.Principal(), view.ID); err != nil {
		t.Fatalf("LeaveConversation: %v", err)
	}
	err := env.Conversations.LeaveConversation(ctx, alice.Principal(), view.ID)
	if !errors.Is(err, application.ErrLastParticipant) {
		t.Fatalf("last participant may not leave, got %v", err)
	}
}

func TestRemovingContactKeepsExistingConversation(t *testing.T) {
	t.Parallel()

	env := testfixtures.NewEnv()
	users := env.SeedUsers(testfixtures.NewUserFixture(), testfixtures.NewUserFixture())
	alice, bob := users[0], users[1]
	if err := env.SeedContact(alice.ID, bob.ID); err != nil {
		t.Fatalf("SeedContact: %v", err)
	}
	ctx := context.Background()

	view := initiate(t, env, alice.Principal(), "plans", bob.ID)

	if err := env.Users.RemoveContact(ctx, alice.Principal(), bob.ID); err != nil {
		t.Fatalf("RemoveContact: %v", err)
	}
	// Membership, once granted, persists.
	if _, err := env.Conversations.SendMessage(ctx, alice.Principal(), view.ID, "still works"); err != nil {
		t.Fatalf("SendMessage after contact removal: %v", err)
	}
	if _, err := env.Conversations.SendMessage(ctx, bob.Principal(), view.ID, "indeed"); err != nil {
		t.Fatalf("SendMessage by the removed contact: %v", err)
	}
}

func TestCreateConferenceConversation(t *testing.T) {
	t.Parallel()

	env := testfixtures.NewEnv()
	users := env.SeedUsers(
		testfixtures.NewUserFixture(),
		testfixtures.NewUserFixture(),
		testfixtures.NewUserFixture(),
	)
	organizer, attendee, outsider := users[0], users[1], users[2]
	ctx := context.Background()

	start := testfixtures.ReferenceTime()
	confID := createConference(t, env, organizer.Principal(), "GopherCon", start, start.Add(8*time.Hour))
	if err := env.Conferences.JoinConference(ctx, attendee.Principal(), confID); err != nil {
		t.Fatalf("JoinConference: %v", err)
	}

	// Attendees may not open conference-wide conversations.
	_, err := env.Conversations.CreateConferenceConversation(ctx, application.ConferenceConversationParams{
		Principal:      attendee.Principal(),
		ConferenceID:   confID,
		Name:           "chatter",
		ParticipantIDs: []string{organizer.ID},
	})
	if !errors.Is(err, application.ErrPermissionDenied) {
		t.Fatalf("attendee creation should be denied, got %v", err)
	}

	// Participants outside the conference fail the whole call.
	_, err = env.Conversations.CreateConferenceConversation(ctx, application.ConferenceConversationParams{
		Principal:      organizer.Principal(),
		ConferenceID:   confID,
		Name:           "announcements",
		ParticipantIDs: []string{attendee.ID, outsider.ID},
	})
	var vErr *application.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error for non-member participant, got %v", err)
	}
	if env.Store.ConversationCount() != 0 {
		t.Fatal("failed creation must leave nothing behind")
	}

	view, err := env.Conversations.CreateConferenceConversation(ctx, application.ConferenceConversationParams{
		Principal:      organizer.Principal(),
		ConferenceID:   confID,
		Name:           "announcements",
		ParticipantIDs: []string{attendee.ID},
	})
	if err != nil {
		t.Fatalf("CreateConferenceConversation: %v", err)
	}
	if view.ConferenceID != confID {
		t.Fatalf("conversation should be scoped to %s, got %s", confID, view.ConferenceID)
	}

	// Deleting the conference cascades the scoped conversation.
	if err := env.Conferences.DeleteConference(ctx, organizer.Principal(), confID); err != nil {
		t.Fatalf("DeleteConference: %v", err)
	}
	if _, err := env.Conversations.Messages(ctx, organizer.Principal(), view.ID); !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("scoped conversation should be cascade-deleted, got %v", err)
	}
}

func TestAddParticipantStartsUnread(t *testing.T) {
	t.Parallel()

	env := testfixtures.NewEnv()
	users := env.SeedUsers(
		testfixtures.NewUserFixture(),
		testfixtures.NewUserFixture(),
		testfixtures.NewUserFixture(),
	)
	alice, bob, carol := users[0], users[1], users[2]
	if err := env.SeedContact(alice.ID, bob.ID); err != nil {
		t.Fatalf("SeedContact: %v", err)
	}
	ctx := context.Background()

	view := initiate(t, env, alice.Principal(), "plans", bob.ID)
	if err := env.Conversations.AddParticipant(ctx, bob.Principal(), view.ID, carol.ID); err != nil {
		t.Fatalf("AddParticipant: %v", err)
	}

	carolViews, err := env.Conversations.Conversations(ctx, carol.Principal())
	if err != nil {
		t.Fatalf("Conversations: %v", err)
	}
	if len(carolViews) != 1 {
		t.Fatalf("carol should see the conversation, got %d", len(carolViews))
	}
	if carolViews[0].HasRead || carolViews[0].IsArchived {
		t.Fatal("newcomer starts unread and active")
	}
}
