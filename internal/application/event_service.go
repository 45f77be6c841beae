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

// EventService orchestrates validation, authorization, and entity-store
// mutation for events owned by conferences.
type EventService struct {
	store       *store.Store
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewEventService constructs an event service with the provided dependencies.
func NewEventService(entities *store.Store, idGenerator func() string, now func() time.Time) *EventService {
	return NewEventServiceWithLogger(entities, idGenerator, now, nil)
}

// NewEventServiceWithLogger constructs an event service with a specified logger.
func NewEventServiceWithLogger(entities *store.Store, idGenerator func() string, now func() time.Time, logger *slog.Logger) *EventService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &EventService{store: entities, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *EventService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "EventService", operation, attrs...)
}

// CreateEvent validates input and adds an event to the conference for an
// organizer. The event's time range must fall within the conference's range
// and the assigned room must belong to the same conference.
func (s *EventService) CreateEvent(ctx context.Context, params CreateEventParams) (event store.Event, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateEvent",
		"principal_id", params.Principal.UserID,
		"conference_id", params.ConferenceID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("event_id", event.ID).InfoContext(ctx, "event created")
	}()

	eventID := s.idGenerator()
	err = s.store.UpdateConference(params.ConferenceID, func(conf *store.Conference) error {
		if decision := permission.Evaluate(params.Principal.actor(), permission.ActionCreateEvent, rolesOf(*conf)); !decision.Allowed {
			return deniedErr(permission.ActionCreateEvent, decision.Reason)
		}
		if vErr := validateEventInput(params.Input, *conf); vErr.HasErrors() {
			return vErr
		}
		if _, ok := conf.Rooms[params.Input.RoomID]; !ok {
			return ErrNotFound
		}
		event = store.Event{
			ID:        eventID,
			Name:      strings.TrimSpace(params.Input.Name),
			Start:     params.Input.Start,
			End:       params.Input.End,
			RoomID:    params.Input.RoomID,
			Attendees: make(map[string]struct{}),
			Speakers:  make(map[string]struct{}),
		}
		// The committed copy must not share sets with the returned value, or
		// callers could mutate store state without holding its locks.
		conf.Events[event.ID] = event.Clone()
		return nil
	})
	if err != nil {
		err = mapStoreErr(err)
		event = store.Event{}
		return
	}
	return
}

// DeleteEvent removes an event for an organizer of the owning conference.
func (s *EventService) DeleteEvent(ctx context.Context, principal Principal, conferenceID, eventID string) error {
	if s == nil {
		return fmt.Errorf("EventService is nil")
	}

	logger := s.loggerWith(ctx, "DeleteEvent",
		"principal_id", principal.UserID,
		"conference_id", conferenceID,
		"event_id", eventID,
	)

	err := s.store.UpdateConference(conferenceID, func(conf *store.Conference) error {
		if decision := permission.Evaluate(principal.actor(), permission.ActionCreateEvent, rolesOf(*conf)); !decision.Allowed {
			return deniedErr(permission.ActionCreateEvent, decision.Reason)
		}
		if _, ok := conf.Events[eventID]; !ok {
			return ErrNotFound
		}
		delete(conf.Events, eventID)
		return nil
	})
	if err != nil {
		err = mapStoreErr(err)
		logger.ErrorContext(ctx, "failed to delete event", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "event deleted")
	return nil
}

// RegisterForEvent registers the caller for an event of a conference they
// belong to. Registration is bounded by the capacity of the assigned room.
func (s *EventService) RegisterForEvent(ctx context.Context, principal Principal, conferenceID, eventID string) error {
	if s == nil {
		return fmt.Errorf("EventService is nil")
	}

	err := s.store.UpdateConference(conferenceID, func(conf *store.Conference) error {
		if decision := permission.Evaluate(principal.actor(), permission.ActionViewConference, rolesOf(*conf)); !decision.Allowed {
			return deniedErr(permission.ActionViewConference, decision.Reason)
		}
		event, ok := conf.Events[eventID]
		if !ok {
			return ErrNotFound
		}
		if _, registered := event.Attendees[principal.UserID]; registered {
			return nil
		}
		if room, ok := conf.Rooms[event.RoomID]; ok && len(event.Attendees) >= room.Capacity {
			return ErrEventFull
		}
		event.Attendees[principal.UserID] = struct{}{}
		return nil
	})
	return mapStoreErr(err)
}

// UnregisterFromEvent drops the caller's registration. Unregistering from an
// event they never joined is a no-op.
func (s *EventService) UnregisterFromEvent(ctx context.Context, principal Principal, conferenceID, eventID string) error {
	if s == nil {
		return fmt.Errorf("EventService is nil")
	}

	err := s.store.UpdateConference(conferenceID, func(conf *store.Conference) error {
		event, ok := conf.Events[eventID]
		if !ok {
			return ErrNotFound
		}
		delete(event.Attendees, principal.UserID)
		return nil
	})
	return mapStoreErr(err)
}

// AssignSpeaker adds a speaker slot on the event for an organizer. The
// speaker also gains the conference speaker role.
func (s *EventService) AssignSpeaker(ctx context.Context, principal Principal, conferenceID, eventID, userID string) error {
	if s == nil {
		return fmt.Errorf("EventService is nil")
	}

	if _, err := s.store.GetUser(userID); err != nil {
		return mapStoreErr(err)
	}

	err := s.store.UpdateConference(conferenceID, func(conf *store.Conference) error {
		if decision := permission.Evaluate(principal.actor(), permission.ActionManageMembership, rolesOf(*conf)); !decision.Allowed {
			return deniedErr(permission.ActionManageMembership, decision.Reason)
		}
		event, ok := conf.Events[eventID]
		if !ok {
			return ErrNotFound
		}
		event.Speakers[userID] = struct{}{}
		conf.Speakers[userID] = struct{}{}
		return nil
	})
	return mapStoreErr(err)
}

// UnassignSpeaker removes a speaker slot from the event. The conference-wide
// speaker role is left for RemoveSpeaker, since the user may speak at other
// events.
func (s *EventService) UnassignSpeaker(ctx context.Context, principal Principal, conferenceID, eventID, userID string) error {
	if s == nil {
		return fmt.Errorf("EventService is nil")
	}

	err := s.store.UpdateConference(conferenceID, func(conf *store.Conference) error {
		if decision := permission.Evaluate(principal.actor(), permission.ActionManageMembership, rolesOf(*conf)); !decision.Allowed {
			return deniedErr(permission.ActionManageMembership, decision.Reason)
		}
		event, ok := conf.Events[eventID]
		if !ok {
			return ErrNotFound
		}
		delete(event.Speakers, userID)
		return nil
	})
	return mapStoreErr(err)
}

// ListEvents returns the conference's events for any member, ordered by
// start time, then name.
func (s *EventService) ListEvents(ctx context.Context, principal Principal, conferenceID string) ([]store.Event, error) {
	if s == nil {
		return nil, fmt.Errorf("EventService is nil")
	}

	conf, err := s.store.GetConference(conferenceID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if decision := permission.Evaluate(principal.actor(), permission.ActionViewConference, rolesOf(conf)); !decision.Allowed {
		return nil, deniedErr(permission.ActionViewConference, decision.Reason)
	}

	events := make([]store.Event, 0, len(conf.Events))
	for _, event := range conf.Events {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].Start.Equal(events[j].Start) {
			return events[i].Name < events[j].Name
		}
		return events[i].Start.Before(events[j].Start)
	})
	return events, nil
}

func validateEventInput(input EventInput, conf store.Conference) *ValidationError {
	vErr := &ValidationError{}

	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "name is required")
	}
	if !input.End.After(input.Start) {
		vErr.add("time", "end must be after start")
	} else if input.Start.Before(conf.Start) || input.End.After(conf.End) {
		vErr.add("time", "event must fall within the conference time range")
	}
	if strings.TrimSpace(input.RoomID) == "" {
		vErr.add("room_id", "room is required")
	}

	return vErr
}
