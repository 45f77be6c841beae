package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/conference-hub/internal/permission"
	"github.com/example/conference-hub/internal/store"
)

// UserService exposes the account directory, the directed contact graph, and
// the bulk-import collaborator used to provision accounts.
type UserService struct {
	store       *store.Store
	idGenerator func() string
	hash        func(password string) (string, error)
	logger      *slog.Logger
}

// NewUserService wires dependencies for the user service.
func NewUserService(entities *store.Store, idGenerator func() string) *UserService {
	return NewUserServiceWithLogger(entities, idGenerator, nil)
}

// NewUserServiceWithLogger wires dependencies for the user service with a
// specified logger.
func NewUserServiceWithLogger(entities *store.Store, idGenerator func() string, logger *slog.Logger) *UserService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	return &UserService{
		store:       entities,
		idGenerator: idGenerator,
		hash: func(password string) (string, error) {
			return hashPassword(password, defaultArgon2idParams)
		},
		logger: defaultLogger(logger),
	}
}

func (s *UserService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "UserService", operation, attrs...)
}

// GetUser returns the directory view of an account.
func (s *UserService) GetUser(ctx context.Context, userID string) (UserView, error) {
	if s == nil {
		return UserView{}, fmt.Errorf("UserService is nil")
	}

	user, err := s.store.GetUser(userID)
	if err != nil {
		return UserView{}, mapStoreErr(err)
	}
	return UserView{ID: user.ID, FullName: user.FullName, IsGod: user.IsGod}, nil
}

// ListUsers returns the directory ordered by full name.
func (s *UserService) ListUsers(ctx context.Context) ([]UserView, error) {
	if s == nil {
		return nil, fmt.Errorf("UserService is nil")
	}

	users := s.store.ListUsers()
	views := make([]UserView, len(users))
	for i, user := range users {
		views[i] = UserView{ID: user.ID, FullName: user.FullName, IsGod: user.IsGod}
	}
	return views, nil
}

// AddContact records the directed edge caller → contact. The reverse edge is
// not implied, and users cannot add themselves.
func (s *UserService) AddContact(ctx context.Context, principal Principal, contactID string) error {
	if s == nil {
		return fmt.Errorf("UserService is nil")
	}
	if contactID == principal.UserID {
		return deniedErr(permission.ActionMessageMembers, permission.ReasonSelfActionForbidden)
	}
	return mapStoreErr(s.store.AddContact(principal.UserID, contactID))
}

// RemoveContact drops the directed edge caller → contact. Conversations the
// contact already participates in are unaffected: membership, once granted,
// persists.
func (s *UserService) RemoveContact(ctx context.Context, principal Principal, contactID string) error {
	if s == nil {
		return fmt.Errorf("UserService is nil")
	}
	return mapStoreErr(s.store.RemoveContact(principal.UserID, contactID))
}

// Contacts returns the caller's contact IDs in sorted order.
func (s *UserService) Contacts(ctx context.Context, principal Principal) ([]string, error) {
	if s == nil {
		return nil, fmt.Errorf("UserService is nil")
	}
	return s.store.Contacts(principal.UserID), nil
}

// ImportUsers merges provisioning records idempotently: records whose ID is
// already known are skipped, not errors. It reports how many accounts were
// newly added. Supplied passwords are hashed before the account is stored.
func (s *UserService) ImportUsers(ctx context.Context, records []BootstrapRecord) (added int, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ImportUsers", "record_count", len(records))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to import users", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("added", added).InfoContext(ctx, "users imported")
	}()

	vErr := &ValidationError{}
	for i, record := range records {
		if strings.TrimSpace(record.FullName) == "" {
			vErr.add(fmt.Sprintf("records[%d].full_name", i), "full name is required")
		}
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	// Hash every password before the first insert, so a hashing failure
	// reports an error without leaving part of the batch committed.
	hashes := make([]string, len(records))
	for i, record := range records {
		if record.Password == "" {
			continue
		}
		hashes[i], err = s.hash(record.Password)
		if err != nil {
			err = fmt.Errorf("hash password for record %d: %w", i, err)
			return
		}
	}

	for i, record := range records {
		id := strings.TrimSpace(record.ID)
		if id == "" {
			id = s.idGenerator()
		}

		if s.store.PutUser(store.User{
			ID:           id,
			FullName:     strings.TrimSpace(record.FullName),
			PasswordHash: hashes[i],
			IsGod:        record.IsGod,
		}) {
			added++
		}
	}
	return
}
