package store

import (
	"sort"

	"github.com/example/conference-hub/internal/persistence"
)

// Snapshot flattens the entity graph into the persistence row model. Rows are
// emitted in deterministic order. The snapshot is internally consistent: it
// is taken under the global lock, so no mutation interleaves with it.
func (s *Store) Snapshot() persistence.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snapshot persistence.Snapshot

	for _, id := range sortedUserIDs(s.users) {
		user := s.users[id]
		snapshot.Users = append(snapshot.Users, persistence.User{
			ID:           user.ID,
			FullName:     user.FullName,
			PasswordHash: user.PasswordHash,
			IsGod:        user.IsGod,
		})
	}

	for _, ownerID := range sortedKeys(s.contacts) {
		for _, contactID := range sortedSet(s.contacts[ownerID]) {
			snapshot.Contacts = append(snapshot.Contacts, persistence.Contact{
				OwnerID:   ownerID,
				ContactID: contactID,
			})
		}
	}

	confIDs := make([]string, 0, len(s.conferences))
	for id := range s.conferences {
		confIDs = append(confIDs, id)
	}
	sort.Strings(confIDs)
	for _, confID := range confIDs {
		conf := s.conferences[confID].conf
		snapshot.Conferences = append(snapshot.Conferences, persistence.Conference{
			ID:    conf.ID,
			Name:  conf.Name,
			Start: conf.Start,
			End:   conf.End,
		})
		appendRoles(&snapshot, conf.ID, conf.Organizers, persistence.RoleOrganizer)
		appendRoles(&snapshot, conf.ID, conf.Speakers, persistence.RoleSpeaker)
		appendRoles(&snapshot, conf.ID, conf.Attendees, persistence.RoleAttendee)

		roomIDs := make([]string, 0, len(conf.Rooms))
		for id := range conf.Rooms {
			roomIDs = append(roomIDs, id)
		}
		sort.Strings(roomIDs)
		for _, roomID := range roomIDs {
			room := conf.Rooms[roomID]
			snapshot.Rooms = append(snapshot.Rooms, persistence.Room{
				ID:           room.ID,
				ConferenceID: conf.ID,
				Label:        room.Label,
				Capacity:     room.Capacity,
			})
		}

		eventIDs := make([]string, 0, len(conf.Events))
		for id := range conf.Events {
			eventIDs = append(eventIDs, id)
		}
		sort.Strings(eventIDs)
		for _, eventID := range eventIDs {
			event := conf.Events[eventID]
			snapshot.Events = append(snapshot.Events, persistence.Event{
				ID:           event.ID,
				ConferenceID: conf.ID,
				Name:         event.Name,
				Start:        event.Start,
				End:          event.End,
				RoomID:       event.RoomID,
			})
			for _, userID := range sortedSet(event.Attendees) {
				snapshot.EventMembers = append(snapshot.EventMembers, persistence.EventMember{
					EventID: event.ID,
					UserID:  userID,
					Kind:    persistence.EventMemberAttendee,
				})
			}
			for _, userID := range sortedSet(event.Speakers) {
				snapshot.EventMembers = append(snapshot.EventMembers, persistence.EventMember{
					EventID: event.ID,
					UserID:  userID,
					Kind:    persistence.EventMemberSpeaker,
				})
			}
		}
	}

	convIDs := make([]string, 0, len(s.conversations))
	for id := range s.conversations {
		convIDs = append(convIDs, id)
	}
	sort.Strings(convIDs)
	for _, convID := range convIDs {
		conv := s.conversations[convID].conv
		snapshot.Conversations = append(snapshot.Conversations, persistence.Conversation{
			ID:           conv.ID,
			Name:         conv.Name,
			ConferenceID: conv.ConferenceID,
		})
		participantIDs := make([]string, 0, len(conv.Participants))
		for id := range conv.Participants {
			participantIDs = append(participantIDs, id)
		}
		sort.Strings(participantIDs)
		for _, userID := range participantIDs {
			state := conv.Participants[userID]
			snapshot.Participants = append(snapshot.Participants, persistence.Participant{
				ConversationID: conv.ID,
				UserID:         userID,
				HasRead:        state.HasRead,
				IsArchived:     state.IsArchived,
			})
		}
		for position, message := range conv.Messages {
			snapshot.Messages = append(snapshot.Messages, persistence.Message{
				ConversationID: conv.ID,
				Position:       position,
				SenderID:       message.SenderID,
				SentAt:         message.SentAt,
				Content:        message.Content,
				Deleted:        message.Deleted,
			})
		}
	}

	return snapshot
}

// Restore replaces the store contents with the given snapshot. It is called
// once at process start, before the store is shared.
func (s *Store) Restore(snapshot persistence.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users = make(map[string]User, len(snapshot.Users))
	for _, user := range snapshot.Users {
		s.users[user.ID] = User{
			ID:           user.ID,
			FullName:     user.FullName,
			PasswordHash: user.PasswordHash,
			IsGod:        user.IsGod,
		}
	}

	s.contacts = make(map[string]map[string]struct{})
	for _, contact := range snapshot.Contacts {
		edges := s.contacts[contact.OwnerID]
		if edges == nil {
			edges = make(map[string]struct{})
			s.contacts[contact.OwnerID] = edges
		}
		edges[contact.ContactID] = struct{}{}
	}

	s.conferences = make(map[string]*conferenceEntry, len(snapshot.Conferences))
	for _, row := range snapshot.Conferences {
		s.conferences[row.ID] = &conferenceEntry{conf: Conference{
			ID:              row.ID,
			Name:            row.Name,
			Start:           row.Start,
			End:             row.End,
			Organizers:      make(map[string]struct{}),
			Speakers:        make(map[string]struct{}),
			Attendees:       make(map[string]struct{}),
			Rooms:           make(map[string]Room),
			Events:          make(map[string]Event),
			ConversationIDs: make(map[string]struct{}),
		}}
	}
	for _, role := range snapshot.Roles {
		entry, ok := s.conferences[role.ConferenceID]
		if !ok {
			continue
		}
		switch role.Kind {
		case persistence.RoleOrganizer:
			entry.conf.Organizers[role.UserID] = struct{}{}
		case persistence.RoleSpeaker:
			entry.conf.Speakers[role.UserID] = struct{}{}
		case persistence.RoleAttendee:
			entry.conf.Attendees[role.UserID] = struct{}{}
		}
	}
	for _, room := range snapshot.Rooms {
		entry, ok := s.conferences[room.ConferenceID]
		if !ok {
			continue
		}
		entry.conf.Rooms[room.ID] = Room{
			ID:       room.ID,
			Label:    room.Label,
			Capacity: room.Capacity,
		}
	}
	eventOwner := make(map[string]string, len(snapshot.Events))
	for _, event := range snapshot.Events {
		entry, ok := s.conferences[event.ConferenceID]
		if !ok {
			continue
		}
		eventOwner[event.ID] = event.ConferenceID
		entry.conf.Events[event.ID] = Event{
			ID:        event.ID,
			Name:      event.Name,
			Start:     event.Start,
			End:       event.End,
			RoomID:    event.RoomID,
			Attendees: make(map[string]struct{}),
			Speakers:  make(map[string]struct{}),
		}
	}
	for _, member := range snapshot.EventMembers {
		confID, ok := eventOwner[member.EventID]
		if !ok {
			continue
		}
		event := s.conferences[confID].conf.Events[member.EventID]
		switch member.Kind {
		case persistence.EventMemberAttendee:
			event.Attendees[member.UserID] = struct{}{}
		case persistence.EventMemberSpeaker:
			event.Speakers[member.UserID] = struct{}{}
		}
	}

	s.conversations = make(map[string]*conversationEntry, len(snapshot.Conversations))
	for _, row := range snapshot.Conversations {
		conv := Conversation{
			ID:           row.ID,
			Name:         row.Name,
			ConferenceID: row.ConferenceID,
			Participants: make(map[string]ParticipantState),
		}
		if row.ConferenceID != "" {
			if entry, ok := s.conferences[row.ConferenceID]; ok {
				entry.conf.ConversationIDs[row.ID] = struct{}{}
			}
		}
		s.conversations[row.ID] = &conversationEntry{conv: conv}
	}
	for _, participant := range snapshot.Participants {
		entry, ok := s.conversations[participant.ConversationID]
		if !ok {
			continue
		}
		entry.conv.Participants[participant.UserID] = ParticipantState{
			HasRead:    participant.HasRead,
			IsArchived: participant.IsArchived,
		}
	}
	messagesByConv := make(map[string][]persistence.Message)
	for _, message := range snapshot.Messages {
		messagesByConv[message.ConversationID] = append(messagesByConv[message.ConversationID], message)
	}
	for convID, messages := range messagesByConv {
		entry, ok := s.conversations[convID]
		if !ok {
			continue
		}
		sort.Slice(messages, func(i, j int) bool {
			return messages[i].Position < messages[j].Position
		})
		entry.conv.Messages = make([]Message, len(messages))
		for i, message := range messages {
			entry.conv.Messages[i] = Message{
				SenderID: message.SenderID,
				SentAt:   message.SentAt,
				Content:  message.Content,
				Deleted:  message.Deleted,
			}
		}
	}
}

func sortedUserIDs(users map[string]User) []string {
	ids := make([]string, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedKeys(m map[string]map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func sortedSet(set map[string]struct{}) []string {
	values := make([]string, 0, len(set))
	for value := range set {
		values = append(values, value)
	}
	sort.Strings(values)
	return values
}

func appendRoles(snapshot *persistence.Snapshot, confID string, set map[string]struct{}, kind persistence.RoleKind) {
	for _, userID := range sortedSet(set) {
		snapshot.Roles = append(snapshot.Roles, persistence.Role{
			ConferenceID: confID,
			UserID:       userID,
			Kind:         kind,
		})
	}
}
