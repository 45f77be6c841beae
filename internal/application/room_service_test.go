package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/conference-hub/internal/application"
	"github.com/example/conference-hub/internal/testfixtures"
)

func TestCreateRoomValidation(t *testing.T) {
	t.Parallel()

	env := testfixtures.NewEnv()
	organizer := env.SeedUsers(testfixtures.NewUserFixture())[0]
	start := testfixtures.ReferenceTime()
	confID := createConference(t, env, organizer.Principal(), "GopherCon", start, start.Add(8*time.Hour))

	tests := []struct {
		name  string
		input application.RoomInput
		field string
	}{
		{name: "blank label", input: application.RoomInput{Label: " ", Capacity: 10}, field: "label"},
		{name: "zero capacity", input: application.RoomInput{Label: "Hall", Capacity: 0}, field: "capacity"},
		{name: "negative capacity", input: application.RoomInput{Label: "Hall", Capacity: -3}, field: "capacity"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := env.Rooms.CreateRoom(context.Background(), application.CreateRoomParams{
				Principal:    organizer.Principal(),
				ConferenceID: confID,
				Input:        tt.input,
			})
			var vErr *application.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if _, ok := vErr.FieldErrors[tt.field]; !ok {
				t.Fatalf("expected error on field %q, got %v", tt.field, vErr.FieldErrors)
			}
		})
	}
}

func TestCreateRoomRequiresOrganizer(t *testing.T) {
	t.Parallel()

	env := testfixtures.NewEnv()
	users := env.SeedUsers(testfixtures.NewUserFixture(), testfixtures.NewUserFixture())
	organizer, attendee := users[0], users[1]
	ctx := context.Background()

	start := testfixtures.ReferenceTime()
	confID := createConference(t, env, organizer.Principal(), "GopherCon", start, start.Add(8*time.Hour))
	if err := env.Conferences.JoinConference(ctx, attendee.Principal(), confID); err != nil {
		t.Fatalf("JoinConference: %v", err)
	}

	_, err := env.Rooms.CreateRoom(ctx, application.CreateRoomParams{
		Principal:    attendee.Principal(),
		ConferenceID: confID,
		Input:        application.RoomInput{Label: "Hall", Capacity: 10},
	})
	if !errors.Is(err, application.ErrPermissionDenied) {
		t.Fatalf("attendee room creation should be denied, got %v", err)
	}
}

func TestDeleteRoomBlockedWhileInUse(t *testing.T) {
	t.Parallel()

	env := testfixtures.NewEnv()
	organizer := env.SeedUsers(testfixtures.NewUserFixture())[0]
	ctx := context.Background()

	start := testfixtures.ReferenceTime()
	confID := createConference(t, env, organizer.Principal(), "GopherCon", start, start.Add(8*time.Hour))

	room, err := env.Rooms.CreateRoom(ctx, application.CreateRoomParams{
		Principal:    organizer.Principal(),
		ConferenceID: confID,
		Input:        application.RoomInput{Label: "Hall", Capacity: 10},
	})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	event, err := env.Events.CreateEvent(ctx, application.CreateEventParams{
		Principal:    organizer.Principal(),
		ConferenceID: confID,
		Input: application.EventInput{
			Name:   "Keynote",
			Start:  start.Add(time.Hour),
			End:    start.Add(2 * time.Hour),
			RoomID: room.ID,
		},
	})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	err = env.Rooms.DeleteRoom(ctx, organizer.Principal(), confID, room.ID)
	if !errors.Is(err, application.ErrRoomInUse) {
		t.Fatalf("deleting an assigned room should fail with ErrRoomInUse, got %v", err)
	}

	if err := env.Events.DeleteEvent(ctx, organizer.Principal(), confID, event.ID); err != nil {
		t.Fatalf("DeleteEvent: %v", err)
	}
	if err := env.Rooms.DeleteRoom(ctx, organizer.Principal(), confID, room.ID); err != nil {
		t.Fatalf("DeleteRoom after freeing it: %v", err)
	}
}

func TestListRoomsOrderedByLabel(t *testing.T) {
	t.Parallel()

	env := testfixtures.NewEnv()
	organizer := env.SeedUsers(testfixtures.NewUserFixture())[0]
	ctx := context.Background()

	start := testfixtures.ReferenceTime()
	confID := createConference(t, env, organizer.Principal(), "GopherCon", start, start.Add(8*time.Hour))

	for _, label := range []string{"West Wing", "Auditorium", "Lobby"} {
		if _, err := env.Rooms.CreateRoom(ctx, application.CreateRoomParams{
			Principal:    organizer.Principal(),
			ConferenceID: confID,
			Input:        application.RoomInput{Label: label, Capacity: 10},
		}); err != nil {
			t.Fatalf("CreateRoom %q: %v", label, err)
		}
	}

	rooms, err := env.Rooms.ListRooms(ctx, organizer.Principal(), confID)
	if err != nil {
		t.Fatalf("ListRooms: %v", err)
	}
	want := []string{"Auditorium", "Lobby", "West Wing"}
	if len(rooms) != len(want) {
		t.Fatalf("expected %d rooms, got %d", len(want), len(rooms))
	}
	for i := range want {
		if rooms[i].Label != want[i] {
			t.Fatalf("order mismatch at %d: got %q, want %q", i, rooms[i].Label, want[i])
		}
	}
}
