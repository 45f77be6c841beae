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

// ConversationService orchestrates contact-gated conversation creation,
// message flow, and per-participant read/archive state.
type ConversationService struct {
	store       *store.Store
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewConversationService constructs a conversation service with the provided dependencies.
func NewConversationService(entities *store.Store, idGenerator func() string, now func() time.Time) *ConversationService {
	return NewConversationServiceWithLogger(entities, idGenerator, now, nil)
}

// NewConversationServiceWithLogger constructs a conversation service with a specified logger.
func NewConversationServiceWithLogger(entities *store.Store, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ConversationService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ConversationService{store: entities, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *ConversationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ConversationService", operation, attrs...)
}

// InitiateConversation opens a direct conversation seeded with the first
// message. Every other participant must be a contact of the initiator; the
// first missing edge fails the whole call and nothing is created. God
// identities skip the contact gate. The initiator is always included.
func (s *ConversationService) InitiateConversation(ctx context.Context, params InitiateConversationParams) (view ConversationView, err error) {
	if s == nil {
		err = fmt.Errorf("ConversationService is nil")
		return
	}

	logger := s.loggerWith(ctx, "InitiateConversation",
		"principal_id", params.Principal.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to initiate conversation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("conversation_id", view.ID).InfoContext(ctx, "conversation initiated")
	}()

	vErr := &ValidationError{}
	if strings.TrimSpace(params.Name) == "" {
		vErr.add("name", "name is required")
	}
	if strings.TrimSpace(params.FirstMessage) == "" {
		vErr.add("message", "first message is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	others := make([]string, 0, len(params.ParticipantIDs))
	for _, id := range params.ParticipantIDs {
		if id != params.Principal.UserID {
			others = append(others, id)
		}
	}

	conv := store.Conversation{
		ID:           s.idGenerator(),
		Name:         strings.TrimSpace(params.Name),
		Participants: make(map[string]store.ParticipantState, len(others)+1),
		Messages: []store.Message{{
			SenderID: params.Principal.UserID,
			SentAt:   s.now(),
			Content:  params.FirstMessage,
		}},
	}
	conv.Participants[params.Principal.UserID] = store.ParticipantState{HasRead: true}
	for _, id := range others {
		conv.Participants[id] = store.ParticipantState{}
	}

	requiredContacts := others
	if params.Principal.IsGod {
		// Gods bypass the contact gate; the store still verifies that every
		// participant exists.
		requiredContacts = nil
	}
	if err = mapStoreErr(s.store.AddDirectConversation(conv, params.Principal.UserID, requiredContacts)); err != nil {
		return
	}

	view = viewFor(conv, params.Principal.UserID)
	return
}

// CreateConferenceConversation opens a conversation among conference members
// for an organizer (or god). No contact gate applies; the permission check,
// membership check, and registration are one atomic step, and the
// conversation is cascade-deleted with the conference.
func (s *ConversationService) CreateConferenceConversation(ctx context.Context, params ConferenceConversationParams) (view ConversationView, err error) {
	if s == nil {
		err = fmt.Errorf("ConversationService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateConferenceConversation",
		"principal_id", params.Principal.UserID,
		"conference_id", params.ConferenceID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create conference conversation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("conversation_id", view.ID).InfoContext(ctx, "conference conversation created")
	}()

	if strings.TrimSpace(params.Name) == "" {
		vErr := &ValidationError{}
		vErr.add("name", "name is required")
		err = vErr
		return
	}

	conv := store.Conversation{
		ID:           s.idGenerator(),
		Name:         strings.TrimSpace(params.Name),
		ConferenceID: params.ConferenceID,
		Participants: make(map[string]store.ParticipantState, len(params.ParticipantIDs)+1),
	}
	conv.Participants[params.Principal.UserID] = store.ParticipantState{HasRead: true}
	for _, id := range params.ParticipantIDs {
		if id == params.Principal.UserID {
			continue
		}
		conv.Participants[id] = store.ParticipantState{}
	}

	err = s.store.AddConferenceConversation(conv, func(conf store.Conference) error {
		if decision := permission.Evaluate(params.Principal.actor(), permission.ActionMessageMembers, rolesOf(conf)); !decision.Allowed {
			return deniedErr(permission.ActionMessageMembers, decision.Reason)
		}
		for id := range conv.Participants {
			if id == params.Principal.UserID {
				continue
			}
			if !conf.IsMember(id) {
				vErr := &ValidationError{}
				vErr.add("participants", fmt.Sprintf("%s is not a member of the conference", id))
				return vErr
			}
		}
		return nil
	})
	if err != nil {
		err = mapStoreErr(err)
		return
	}

	view = viewFor(conv, params.Principal.UserID)
	return
}

// SendMessage appends to the conversation's message log for a participant.
// Other participants become unread; archived copies return to the active
// state instead, keeping whatever read state they had. The contact relation
// is not re-validated: membership, once granted, persists.
func (s *ConversationService) SendMessage(ctx context.Context, principal Principal, conversationID, content string) (msg MessageView, err error) {
	if s == nil {
		err = fmt.Errorf("ConversationService is nil")
		return
	}

	if strings.TrimSpace(content) == "" {
		vErr := &ValidationError{}
		vErr.add("message", "message content is required")
		err = vErr
		return
	}

	sentAt := s.now()
	err = s.store.UpdateConversation(conversationID, func(conv *store.Conversation) error {
		if _, ok := conv.Participants[principal.UserID]; !ok {
			return deniedErr(permission.ActionMessageMembers, permission.ReasonRoleInsufficient)
		}
		conv.Messages = append(conv.Messages, store.Message{
			SenderID: principal.UserID,
			SentAt:   sentAt,
			Content:  content,
		})
		msg = MessageView{
			Index:    len(conv.Messages) - 1,
			SenderID: principal.UserID,
			SentAt:   sentAt,
			Content:  content,
		}
		for id, state := range conv.Participants {
			switch {
			case id == principal.UserID:
				state.HasRead = true
			case state.IsArchived:
				state.IsArchived = false
			default:
				state.HasRead = false
			}
			conv.Participants[id] = state
		}
		return nil
	})
	if err != nil {
		err = mapStoreErr(err)
		msg = MessageView{}
	}
	return
}

// Messages returns the ordered message log for a participant and marks the
// conversation read for them. Deleted messages keep their slot with blank
// content so indices stay stable.
func (s *ConversationService) Messages(ctx context.Context, principal Principal, conversationID string) ([]MessageView, error) {
	if s == nil {
		return nil, fmt.Errorf("ConversationService is nil")
	}

	var views []MessageView
	err := s.store.UpdateConversation(conversationID, func(conv *store.Conversation) error {
		state, ok := conv.Participants[principal.UserID]
		if !ok {
			return deniedErr(permission.ActionViewConference, permission.ReasonRoleInsufficient)
		}
		state.HasRead = true
		conv.Participants[principal.UserID] = state

		views = make([]MessageView, len(conv.Messages))
		for i, message := range conv.Messages {
			view := MessageView{
				Index:    i,
				SenderID: message.SenderID,
				SentAt:   message.SentAt,
				Deleted:  message.Deleted,
			}
			if !message.Deleted {
				view.Content = message.Content
			}
			views[i] = view
		}
		return nil
	})
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return views, nil
}

// DeleteMessage tombstones the message at index. Only the sender of that
// message may delete it; the slot remains so other participants' indices
// stay valid.
func (s *ConversationService) DeleteMessage(ctx context.Context, principal Principal, conversationID string, index int) error {
	if s == nil {
		return fmt.Errorf("ConversationService is nil")
	}

	logger := s.loggerWith(ctx, "DeleteMessage",
		"principal_id", principal.UserID,
		"conversation_id", conversationID,
		"message_index", index,
	)

	err := s.store.UpdateConversation(conversationID, func(conv *store.Conversation) error {
		if _, ok := conv.Participants[principal.UserID]; !ok {
			return deniedErr(permission.ActionViewConference, permission.ReasonRoleInsufficient)
		}
		if index < 0 || index >= len(conv.Messages) {
			return ErrNotFound
		}
		if conv.Messages[index].SenderID != principal.UserID {
			return deniedErr(permission.ActionMessageMembers, permission.ReasonRoleInsufficient)
		}
		conv.Messages[index].Deleted = true
		return nil
	})
	if err != nil {
		err = mapStoreErr(err)
		logger.ErrorContext(ctx, "failed to delete message", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "message deleted")
	return nil
}

// ArchiveConversation hides the conversation for the caller until another
// participant sends a message into it. God identities are refused by policy.
func (s *ConversationService) ArchiveConversation(ctx context.Context, principal Principal, conversationID string) error {
	if s == nil {
		return fmt.Errorf("ConversationService is nil")
	}

	if principal.IsGod {
		// Gods are too powerful to archive conversations.
		return deniedErr(permission.ActionViewConference, permission.ReasonPolicyDenied)
	}

	err := s.store.UpdateConversation(conversationID, func(conv *store.Conversation) error {
		state, ok := conv.Participants[principal.UserID]
		if !ok {
			return deniedErr(permission.ActionViewConference, permission.ReasonRoleInsufficient)
		}
		state.IsArchived = true
		conv.Participants[principal.UserID] = state
		return nil
	})
	return mapStoreErr(err)
}

// UnreadConversation marks the conversation unread for the caller only.
func (s *ConversationService) UnreadConversation(ctx context.Context, principal Principal, conversationID string) error {
	if s == nil {
		return fmt.Errorf("ConversationService is nil")
	}

	err := s.store.UpdateConversation(conversationID, func(conv *store.Conversation) error {
		state, ok := conv.Participants[principal.UserID]
		if !ok {
			return deniedErr(permission.ActionViewConference, permission.ReasonRoleInsufficient)
		}
		state.HasRead = false
		conv.Participants[principal.UserID] = state
		return nil
	})
	return mapStoreErr(err)
}

// AddParticipant lets an existing participant bring another user into the
// conversation. The newcomer starts unread and active.
func (s *ConversationService) AddParticipant(ctx context.Context, principal Principal, conversationID, userID string) error {
	if s == nil {
		return fmt.Errorf("ConversationService is nil")
	}

	if _, err := s.store.GetUser(userID); err != nil {
		return mapStoreErr(err)
	}

	err := s.store.UpdateConversation(conversationID, func(conv *store.Conversation) error {
		if _, ok := conv.Participants[principal.UserID]; !ok {
			return deniedErr(permission.ActionViewConference, permission.ReasonRoleInsufficient)
		}
		if _, ok := conv.Participants[userID]; !ok {
			conv.Participants[userID] = store.ParticipantState{}
		}
		return nil
	})
	return mapStoreErr(err)
}

// LeaveConversation removes the caller from the conversation. The last
// participant cannot leave: a conversation always keeps at least one.
func (s *ConversationService) LeaveConversation(ctx context.Context, principal Principal, conversationID string) error {
	if s == nil {
		return fmt.Errorf("ConversationService is nil")
	}

	err := s.store.UpdateConversation(conversationID, func(conv *store.Conversation) error {
		if _, ok := conv.Participants[principal.UserID]; !ok {
			return deniedErr(permission.ActionViewConference, permission.ReasonRoleInsufficient)
		}
		if len(conv.Participants) == 1 {
			return ErrLastParticipant
		}
		delete(conv.Participants, principal.UserID)
		return nil
	})
	return mapStoreErr(err)
}

// Conversations returns the caller's conversations with their private
// read/archive state, ordered by name.
func (s *ConversationService) Conversations(ctx context.Context, principal Principal) ([]ConversationView, error) {
	if s == nil {
		return nil, fmt.Errorf("ConversationService is nil")
	}

	convs := s.store.ConversationsFor(principal.UserID)
	views := make([]ConversationView, len(convs))
	for i, conv := range convs {
		views[i] = viewFor(conv, principal.UserID)
	}
	return views, nil
}

func viewFor(conv store.Conversation, userID string) ConversationView {
	ids := make([]string, 0, len(conv.Participants))
	for id := range conv.Participants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	state := conv.Participants[userID]
	return ConversationView{
		ID:             conv.ID,
		Name:           conv.Name,
		ConferenceID:   conv.ConferenceID,
		ParticipantIDs: ids,
		HasRead:        state.HasRead,
		IsArchived:     state.IsArchived,
	}
}
