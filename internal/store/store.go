// Package store owns the in-memory conference entity graph and its
// consistency guarantees. Mutations run as short critical sections under
// per-entity locks: callers acting on different conferences never block one
// another, while mutations of the same entity are serialized, so
// check-then-act sequences (such as the lone-organizer rule) are atomic.
//
// Mutation callbacks receive a working copy and the entry is only replaced
// when the callback succeeds, so a failed operation never leaves a partial
// update visible.
package store

import (
	"errors"
	"sort"
	"sync"
)

var (
	// ErrNotFound is returned when the referenced identifier does not resolve.
	ErrNotFound = errors.New("store: not found")
	// ErrAlreadyExists is returned when an identifier is already taken.
	ErrAlreadyExists = errors.New("store: already exists")
)

type conferenceEntry struct {
	mu   sync.RWMutex
	conf Conference
}

type conversationEntry struct {
	mu   sync.RWMutex
	conv Conversation
}

// Store is the single in-process authority over users, contacts,
// conferences, and conversations.
type Store struct {
	// mu guards map membership. Entity entries carry their own locks so the
	// global lock is only held while locating or adding/removing entries,
	// except for cascading deletes which need exclusive access to both maps.
	mu            sync.RWMutex
	users         map[string]User
	contacts      map[string]map[string]struct{}
	conferences   map[string]*conferenceEntry
	conversations map[string]*conversationEntry
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:         make(map[string]User),
		contacts:      make(map[string]map[string]struct{}),
		conferences:   make(map[string]*conferenceEntry),
		conversations: make(map[string]*conversationEntry),
	}
}

// --- Users and contacts ---

// PutUser adds a user if the ID is unknown and reports whether it was newly
// added. Importing an already-known identifier is a no-op, not an error.
func (s *Store) PutUser(user User) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return false
	}
	s.users[user.ID] = user
	return true
}

// GetUser returns the user with the given ID.
func (s *Store) GetUser(id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

// ListUsers returns all users ordered by full name, then ID.
func (s *Store) ListUsers() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].FullName == users[j].FullName {
			return users[i].ID < users[j].ID
		}
		return users[i].FullName < users[j].FullName
	})
	return users
}

// AddContact records the directed edge owner → contact. Both users must
// exist. The reverse edge is not implied.
func (s *Store) AddContact(ownerID, contactID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[ownerID]; !ok {
		return ErrNotFound
	}
	if _, ok := s.users[contactID]; !ok {
		return ErrNotFound
	}
	edges := s.contacts[ownerID]
	if edges == nil {
		edges = make(map[string]struct{})
		s.contacts[ownerID] = edges
	}
	edges[contactID] = struct{}{}
	return nil
}

// RemoveContact removes the directed edge owner → contact if present.
func (s *Store) RemoveContact(ownerID, contactID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[ownerID]; !ok {
		return ErrNotFound
	}
	delete(s.contacts[ownerID], contactID)
	return nil
}

// HasContact reports whether the directed edge owner → contact exists.
func (s *Store) HasContact(ownerID, contactID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.contacts[ownerID][contactID]
	return ok
}

// Contacts returns the sorted contact IDs of owner.
func (s *Store) Contacts(ownerID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.contacts[ownerID]))
	for id := range s.contacts[ownerID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// --- Conferences ---

// AddConference registers a new conference aggregate.
func (s *Store) AddConference(conf Conference) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conferences[conf.ID]; ok {
		return ErrAlreadyExists
	}
	s.conferences[conf.ID] = &conferenceEntry{conf: cloneConference(conf)}
	return nil
}

// GetConference returns a consistent deep copy of the conference.
func (s *Store) GetConference(id string) (Conference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.conferences[id]
	if !ok {
		return Conference{}, ErrNotFound
	}
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	return cloneConference(entry.conf), nil
}

// ListConferences returns deep copies of every conference, ordered by name
// then ID. The map itself carries no ordering guarantee.
func (s *Store) ListConferences() []Conference {
	s.mu.RLock()
	defer s.mu.RUnlock()

	confs := make([]Conference, 0, len(s.conferences))
	for _, entry := range s.conferences {
		entry.mu.RLock()
		confs = append(confs, cloneConference(entry.conf))
		entry.mu.RUnlock()
	}
	sort.Slice(confs, func(i, j int) bool {
		if confs[i].Name == confs[j].Name {
			return confs[i].ID < confs[j].ID
		}
		return confs[i].Name < confs[j].Name
	})
	return confs
}

// UpdateConference applies fn to a working copy of the conference under its
// write lock and commits the copy only when fn returns nil. Concurrent
// updates of the same conference serialize; updates of different conferences
// proceed in parallel.
func (s *Store) UpdateConference(id string, fn func(*Conference) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.conferences[id]
	if !ok {
		return ErrNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	work := cloneConference(entry.conf)
	if err := fn(&work); err != nil {
		return err
	}
	entry.conf = work
	return nil
}

// DeleteConference removes the conference after guard approves the current
// state. Owned rooms and events go with the aggregate; conference-scoped
// conversations are cascaded out of the store so nothing dangles.
func (s *Store) DeleteConference(id string, guard func(Conference) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.conferences[id]
	if !ok {
		return ErrNotFound
	}
	if guard != nil {
		if err := guard(cloneConference(entry.conf)); err != nil {
			return err
		}
	}
	for convID := range entry.conf.ConversationIDs {
		delete(s.conversations, convID)
	}
	delete(s.conferences, id)
	return nil
}

// --- Conversations ---

// MissingContactError reports the first participant the initiator may not
// message. Conversation creation is all-or-nothing, so nothing was created.
type MissingContactError struct {
	OwnerID   string
	ContactID string
}

func (e *MissingContactError) Error() string {
	return "store: " + e.OwnerID + " has no contact " + e.ContactID
}

// AddDirectConversation registers a direct conversation after atomically
// verifying that every participant exists and that every ID in
// requiredContacts is a contact of initiatorID. The first violation aborts
// the whole call, with *MissingContactError for a missing edge, and no
// conversation is created.
func (s *Store) AddDirectConversation(conv Conversation, initiatorID string, requiredContacts []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[conv.ID]; ok {
		return ErrAlreadyExists
	}
	ids := make([]string, 0, len(conv.Participants))
	for id := range conv.Participants {
		if id != initiatorID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		if _, ok := s.users[id]; !ok {
			return ErrNotFound
		}
	}
	for _, id := range requiredContacts {
		if _, ok := s.contacts[initiatorID][id]; !ok {
			return &MissingContactError{OwnerID: initiatorID, ContactID: id}
		}
	}
	s.conversations[conv.ID] = &conversationEntry{conv: cloneConversation(conv)}
	return nil
}

// AddConferenceConversation registers a conference-scoped conversation. The
// guard runs on a copy of the owning conference under the store lock, so
// permission and membership checks are atomic with the registration; the
// conversation is recorded on the conference for cascade deletion.
func (s *Store) AddConferenceConversation(conv Conversation, guard func(Conference) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[conv.ID]; ok {
		return ErrAlreadyExists
	}
	entry, ok := s.conferences[conv.ConferenceID]
	if !ok {
		return ErrNotFound
	}
	if guard != nil {
		if err := guard(cloneConference(entry.conf)); err != nil {
			return err
		}
	}
	entry.conf.ConversationIDs[conv.ID] = struct{}{}
	s.conversations[conv.ID] = &conversationEntry{conv: cloneConversation(conv)}
	return nil
}

// GetConversation returns a consistent deep copy of the conversation.
func (s *Store) GetConversation(id string) (Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.conversations[id]
	if !ok {
		return Conversation{}, ErrNotFound
	}
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	return cloneConversation(entry.conv), nil
}

// UpdateConversation applies fn to a working copy under the conversation's
// write lock, committing only on success.
func (s *Store) UpdateConversation(id string, fn func(*Conversation) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.conversations[id]
	if !ok {
		return ErrNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	work := cloneConversation(entry.conv)
	if err := fn(&work); err != nil {
		return err
	}
	entry.conv = work
	return nil
}

// ConversationsFor returns deep copies of every conversation the user
// participates in, ordered by name then ID.
func (s *Store) ConversationsFor(userID string) []Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	convs := make([]Conversation, 0)
	for _, entry := range s.conversations {
		entry.mu.RLock()
		if _, ok := entry.conv.Participants[userID]; ok {
			convs = append(convs, cloneConversation(entry.conv))
		}
		entry.mu.RUnlock()
	}
	sort.Slice(convs, func(i, j int) bool {
		if convs[i].Name == convs[j].Name {
			return convs[i].ID < convs[j].ID
		}
		return convs[i].Name < convs[j].Name
	})
	return convs
}

// ConversationCount reports how many conversations exist in the store.
func (s *Store) ConversationCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}
