package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/conference-hub/internal/permission"
	"github.com/example/conference-hub/internal/store"
)

// ConferenceService orchestrates validation, authorization, and entity-store
// mutation for conferences and their role sets.
type ConferenceService struct {
	store       *store.Store
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewConferenceService constructs a conference service with the provided dependencies.
func NewConferenceService(entities *store.Store, idGenerator func() string, now func() time.Time) *ConferenceService {
	return NewConferenceServiceWithLogger(entities, idGenerator, now, nil)
}

// NewConferenceServiceWithLogger constructs a conference service with a specified logger.
func NewConferenceServiceWithLogger(entities *store.Store, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ConferenceService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ConferenceService{store: entities, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *ConferenceService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ConferenceService", operation, attrs...)
}

// CreateConference validates input and registers a new conference with the
// caller as its sole organizer. Any resolved identity may create one.
func (s *ConferenceService) CreateConference(ctx context.Context, params CreateConferenceParams) (conf store.Conference, err error) {
	if s == nil {
		err = fmt.Errorf("ConferenceService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateConference",
		"principal_id", params.Principal.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create conference", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("conference_id", conf.ID).InfoContext(ctx, "conference created")
	}()

	if decision := permission.Evaluate(params.Principal.actor(), permission.ActionCreateConference, permission.Roles{}); !decision.Allowed {
		err = deniedErr(permission.ActionCreateConference, decision.Reason)
		return
	}

	vErr := validateConferenceInput(params.Input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	conf = store.NewConference(
		s.idGenerator(),
		strings.TrimSpace(params.Input.Name),
		params.Input.Start,
		params.Input.End,
		params.Principal.UserID,
	)
	if err = s.store.AddConference(conf); err != nil {
		err = mapStoreErr(err)
		conf = store.Conference{}
		return
	}
	return
}

// GetConference returns the full conference aggregate to members and gods.
func (s *ConferenceService) GetConference(ctx context.Context, principal Principal, conferenceID string) (store.Conference, error) {
	if s == nil {
		return store.Conference{}, fmt.Errorf("ConferenceService is nil")
	}

	conf, err := s.store.GetConference(conferenceID)
	if err != nil {
		return store.Conference{}, mapStoreErr(err)
	}
	if decision := permission.Evaluate(principal.actor(), permission.ActionViewConference, rolesOf(conf)); !decision.Allowed {
		return store.Conference{}, deniedErr(permission.ActionViewConference, decision.Reason)
	}
	return conf, nil
}

// ListConferences returns public summaries of every conference, ordered by
// name. Joining decisions need no membership, so no permission gate applies.
func (s *ConferenceService) ListConferences(ctx context.Context) ([]ConferenceSummary, error) {
	if s == nil {
		return nil, fmt.Errorf("ConferenceService is nil")
	}
	return summarize(s.store.ListConferences(), nil), nil
}

// UserConferences returns summaries of the conferences the caller belongs to.
func (s *ConferenceService) UserConferences(ctx context.Context, principal Principal) ([]ConferenceSummary, error) {
	if s == nil {
		return nil, fmt.Errorf("ConferenceService is nil")
	}
	return summarize(s.store.ListConferences(), func(c store.Conference) bool {
		return c.IsMember(principal.UserID)
	}), nil
}

// JoinableConferences returns summaries of the conferences the caller is not
// yet part of.
func (s *ConferenceService) JoinableConferences(ctx context.Context, principal Principal) ([]ConferenceSummary, error) {
	if s == nil {
		return nil, fmt.Errorf("ConferenceService is nil")
	}
	return summarize(s.store.ListConferences(), func(c store.Conference) bool {
		return !c.IsMember(principal.UserID)
	}), nil
}

// JoinConference self-registers the caller as an attendee.
func (s *ConferenceService) JoinConference(ctx context.Context, principal Principal, conferenceID string) error {
	if s == nil {
		return fmt.Errorf("ConferenceService is nil")
	}
	return s.AddAttendee(ctx, principal, conferenceID, principal.UserID)
}

// AddAttendee grants the attendee role. Organizers may add anyone;
// self-registration is open to any identity.
func (s *ConferenceService) AddAttendee(ctx context.Context, principal Principal, conferenceID, userID string) error {
	if s == nil {
		return fmt.Errorf("ConferenceService is nil")
	}

	logger := s.loggerWith(ctx, "AddAttendee",
		"principal_id", principal.UserID,
		"conference_id", conferenceID,
		"user_id", userID,
	)

	if _, err := s.store.GetUser(userID); err != nil {
		return mapStoreErr(err)
	}

	action := permission.ActionManageMembership
	if userID == principal.UserID {
		action = permission.ActionJoinConference
	}

	err := s.store.UpdateConference(conferenceID, func(conf *store.Conference) error {
		if decision := permission.Evaluate(principal.actor(), action, rolesOf(*conf)); !decision.Allowed {
			return deniedErr(action, decision.Reason)
		}
		conf.Attendees[userID] = struct{}{}
		return nil
	})
	if err != nil {
		err = mapStoreErr(err)
		logger.ErrorContext(ctx, "failed to add attendee", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "attendee added")
	return nil
}

// RemoveAttendee revokes the attendee role. Organizers may remove anyone;
// attendees may leave on their own. Removing a non-attendee is a no-op.
func (s *ConferenceService) RemoveAttendee(ctx context.Context, principal Principal, conferenceID, userID string) error {
	if s == nil {
		return fmt.Errorf("ConferenceService is nil")
	}

	err := s.store.UpdateConference(conferenceID, func(conf *store.Conference) error {
		if userID != principal.UserID {
			if decision := permission.Evaluate(principal.actor(), permission.ActionManageMembership, rolesOf(*conf)); !decision.Allowed {
				return deniedErr(permission.ActionManageMembership, decision.Reason)
			}
		}
		delete(conf.Attendees, userID)
		for _, event := range conf.Events {
			delete(event.Attendees, userID)
		}
		return nil
	})
	return mapStoreErr(err)
}

// AddOrganizer grants the organizer role to an existing user.
func (s *ConferenceService) AddOrganizer(ctx context.Context, principal Principal, conferenceID, userID string) error {
	if s == nil {
		return fmt.Errorf("ConferenceService is nil")
	}

	if _, err := s.store.GetUser(userID); err != nil {
		return mapStoreErr(err)
	}

	err := s.store.UpdateConference(conferenceID, func(conf *store.Conference) error {
		if decision := permission.Evaluate(principal.actor(), permission.ActionManageMembership, rolesOf(*conf)); !decision.Allowed {
			return deniedErr(permission.ActionManageMembership, decision.Reason)
		}
		conf.Organizers[userID] = struct{}{}
		return nil
	})
	return mapStoreErr(err)
}

// RemoveOrganizer revokes the organizer role. The check and the removal are
// one atomic step: a conference never loses its last organizer, and two
// concurrent removals against a two-organizer conference cannot both
// succeed. Removing a user who is not an organizer is a no-op.
func (s *ConferenceService) RemoveOrganizer(ctx context.Context, principal Principal, conferenceID, userID string) error {
	if s == nil {
		return fmt.Errorf("ConferenceService is nil")
	}

	logger := s.loggerWith(ctx, "RemoveOrganizer",
		"principal_id", principal.UserID,
		"conference_id", conferenceID,
		"user_id", userID,
	)

	err := s.store.UpdateConference(conferenceID, func(conf *store.Conference) error {
		if decision := permission.Evaluate(principal.actor(), permission.ActionManageMembership, rolesOf(*conf)); !decision.Allowed {
			return deniedErr(permission.ActionManageMembership, decision.Reason)
		}
		if _, isOrganizer := conf.Organizers[userID]; isOrganizer && len(conf.Organizers) == 1 {
			return ErrLoneOrganizer
		}
		delete(conf.Organizers, userID)
		return nil
	})
	if err != nil {
		err = mapStoreErr(err)
		logger.ErrorContext(ctx, "failed to remove organizer", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "organizer removed")
	return nil
}

// UpdateConferenceDetails changes the conference name and time range for an
// organizer. The new range must still contain every scheduled event.
func (s *ConferenceService) UpdateConferenceDetails(ctx context.Context, principal Principal, conferenceID string, input ConferenceInput) error {
	if s == nil {
		return fmt.Errorf("ConferenceService is nil")
	}

	logger := s.loggerWith(ctx, "UpdateConferenceDetails",
		"principal_id", principal.UserID,
		"conference_id", conferenceID,
	)

	err := s.store.UpdateConference(conferenceID, func(conf *store.Conference) error {
		if decision := permission.Evaluate(principal.actor(), permission.ActionEditConference, rolesOf(*conf)); !decision.Allowed {
			return deniedErr(permission.ActionEditConference, decision.Reason)
		}
		vErr := validateConferenceInput(input)
		for _, event := range conf.Events {
			if event.Start.Before(input.Start) || event.End.After(input.End) {
				vErr.add("time", "new range must contain every scheduled event")
				break
			}
		}
		if vErr.HasErrors() {
			return vErr
		}
		conf.Name = strings.TrimSpace(input.Name)
		conf.Start = input.Start
		conf.End = input.End
		return nil
	})
	if err != nil {
		err = mapStoreErr(err)
		logger.ErrorContext(ctx, "failed to update conference", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "conference updated")
	return nil
}

// AddSpeaker grants the speaker role to an existing user.
func (s *ConferenceService) AddSpeaker(ctx context.Context, principal Principal, conferenceID, userID string) error {
	if s == nil {
		return fmt.Errorf("ConferenceService is nil")
	}

	if _, err := s.store.GetUser(userID); err != nil {
		return mapStoreErr(err)
	}

	err := s.store.UpdateConference(conferenceID, func(conf *store.Conference) error {
		if decision := permission.Evaluate(principal.actor(), permission.ActionManageMembership, rolesOf(*conf)); !decision.Allowed {
			return deniedErr(permission.ActionManageMembership, decision.Reason)
		}
		conf.Speakers[userID] = struct{}{}
		return nil
	})
	return mapStoreErr(err)
}

// RemoveSpeaker revokes the speaker role and any event speaking slots.
func (s *ConferenceService) RemoveSpeaker(ctx context.Context, principal Principal, conferenceID, userID string) error {
	if s == nil {
		return fmt.Errorf("ConferenceService is nil")
	}

	err := s.store.UpdateConference(conferenceID, func(conf *store.Conference) error {
		if decision := permission.Evaluate(principal.actor(), permission.ActionManageMembership, rolesOf(*conf)); !decision.Allowed {
			return deniedErr(permission.ActionManageMembership, decision.Reason)
		}
		delete(conf.Speakers, userID)
		for _, event := range conf.Events {
			delete(event.Speakers, userID)
		}
		return nil
	})
	return mapStoreErr(err)
}

// DeleteConference removes the conference for an organizer (or god) and
// cascades its rooms, events, and conference-scoped conversations. Nothing
// remains reachable afterwards.
func (s *ConferenceService) DeleteConference(ctx context.Context, principal Principal, conferenceID string) (err error) {
	if s == nil {
		return fmt.Errorf("ConferenceService is nil")
	}

	logger := s.loggerWith(ctx, "DeleteConference",
		"principal_id", principal.UserID,
		"conference_id", conferenceID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete conference", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "conference deleted")
	}()

	err = s.store.DeleteConference(conferenceID, func(conf store.Conference) error {
		if decision := permission.Evaluate(principal.actor(), permission.ActionDeleteConference, rolesOf(conf)); !decision.Allowed {
			return deniedErr(permission.ActionDeleteConference, decision.Reason)
		}
		return nil
	})
	err = mapStoreErr(err)
	return
}

func validateConferenceInput(input ConferenceInput) *ValidationError {
	vErr := &ValidationError{}

	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "name is required")
	}
	if !input.End.After(input.Start) {
		vErr.add("time", "end must be after start")
	}

	return vErr
}

func rolesOf(conf store.Conference) permission.Roles {
	return permission.Roles{
		Organizers: conf.Organizers,
		Speakers:   conf.Speakers,
		Attendees:  conf.Attendees,
	}
}

func summarize(confs []store.Conference, keep func(store.Conference) bool) []ConferenceSummary {
	summaries := make([]ConferenceSummary, 0, len(confs))
	for _, conf := range confs {
		if keep != nil && !keep(conf) {
			continue
		}
		summaries = append(summaries, ConferenceSummary{
			ID:    conf.ID,
			Name:  conf.Name,
			Start: conf.Start,
			End:   conf.End,
		})
	}
	return summaries
}

func mapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, store.ErrAlreadyExists) {
		return ErrAlreadyExists
	}
	var contactErr *store.MissingContactError
	if errors.As(err, &contactErr) {
		return &MessageDeniedError{InitiatorID: contactErr.OwnerID, BlockedID: contactErr.ContactID}
	}
	return err
}
