package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/conference-hub/internal/permission"
	"github.com/example/conference-hub/internal/store"
)

// RoomService orchestrates validation, authorization, and entity-store
// mutation for rooms owned by conferences.
type RoomService struct {
	store       *store.Store
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewRoomService constructs a room service with the provided dependencies.
func NewRoomService(entities *store.Store, idGenerator func() string, now func() time.Time) *RoomService {
	return NewRoomServiceWithLogger(entities, idGenerator, now, nil)
}

// NewRoomServiceWithLogger constructs a room service with a specified logger.
func NewRoomServiceWithLogger(entities *store.Store, idGenerator func() string, now func() time.Time, logger *slog.Logger) *RoomService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &RoomService{store: entities, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *RoomService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RoomService", operation, attrs...)
}

// CreateRoom validates input and adds a room to the conference for an organizer.
func (s *RoomService) CreateRoom(ctx context.Context, params CreateRoomParams) (room store.Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateRoom",
		"principal_id", params.Principal.UserID,
		"conference_id", params.ConferenceID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("room_id", room.ID).InfoContext(ctx, "room created")
	}()

	roomID := s.idGenerator()
	err = s.store.UpdateConference(params.ConferenceID, func(conf *store.Conference) error {
		if decision := permission.Evaluate(params.Principal.actor(), permission.ActionCreateRoom, rolesOf(*conf)); !decision.Allowed {
			return deniedErr(permission.ActionCreateRoom, decision.Reason)
		}
		if vErr := validateRoomInput(params.Input); vErr.HasErrors() {
			return vErr
		}
		room = store.Room{
			ID:       roomID,
			Label:    strings.TrimSpace(params.Input.Label),
			Capacity: params.Input.Capacity,
		}
		conf.Rooms[room.ID] = room
		return nil
	})
	if err != nil {
		err = mapStoreErr(err)
		room = store.Room{}
		return
	}
	return
}

// DeleteRoom removes a room for an organizer. A room still assigned to
// events cannot be deleted, so no event is left pointing at nothing.
func (s *RoomService) DeleteRoom(ctx context.Context, principal Principal, conferenceID, roomID string) error {
	if s == nil {
		return fmt.Errorf("RoomService is nil")
	}

	logger := s.loggerWith(ctx, "DeleteRoom",
		"principal_id", principal.UserID,
		"conference_id", conferenceID,
		"room_id", roomID,
	)

	err := s.store.UpdateConference(conferenceID, func(conf *store.Conference) error {
		if decision := permission.Evaluate(principal.actor(), permission.ActionCreateRoom, rolesOf(*conf)); !decision.Allowed {
			return deniedErr(permission.ActionCreateRoom, decision.Reason)
		}
		if _, ok := conf.Rooms[roomID]; !ok {
			return ErrNotFound
		}
		for _, event := range conf.Events {
			if event.RoomID == roomID {
				return ErrRoomInUse
			}
		}
		delete(conf.Rooms, roomID)
		return nil
	})
	if err != nil {
		err = mapStoreErr(err)
		logger.ErrorContext(ctx, "failed to delete room", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "room deleted")
	return nil
}

// ListRooms returns the conference's rooms for any member, ordered by label.
func (s *RoomService) ListRooms(ctx context.Context, principal Principal, conferenceID string) ([]store.Room, error) {
	if s == nil {
		return nil, fmt.Errorf("RoomService is nil")
	}

	conf, err := s.store.GetConference(conferenceID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if decision := permission.Evaluate(principal.actor(), permission.ActionViewConference, rolesOf(conf)); !decision.Allowed {
		return nil, deniedErr(permission.ActionViewConference, decision.Reason)
	}

	rooms := make([]store.Room, 0, len(conf.Rooms))
	for _, room := range conf.Rooms {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].Label == rooms[j].Label {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].Label < rooms[j].Label
	})
	return rooms, nil
}

func validateRoomInput(input RoomInput) *ValidationError {
	vErr := &ValidationError{}

	if strings.TrimSpace(input.Label) == "" {
		vErr.add("label", "label is required")
	}
	if input.Capacity <= 0 {
		vErr.add("capacity", "capacity must be positive")
	}

	return vErr
}
