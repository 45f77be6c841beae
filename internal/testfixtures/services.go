package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/conference-hub/internal/application"
	"github.com/example/conference-hub/internal/store"
)

// Env bundles a fresh store with fully wired services, a deterministic
// clock, and a sequential identifier generator.
type Env struct {
	Store         *store.Store
	Clock         *Clock
	IDGenerator   *IDGenerator
	Conferences   *application.ConferenceService
	Events        *application.EventService
	Rooms         *application.RoomService
	Conversations *application.ConversationService
	Users         *application.UserService
}

// EnvOption configures the generated environment.
type EnvOption func(*Env)

// WithEnvClock overrides the clock used by the environment.
func WithEnvClock(clock *Clock) EnvOption {
	return func(e *Env) {
		e.Clock = clock
	}
}

// WithEnvIDGenerator overrides the identifier generator.
func WithEnvIDGenerator(generator *IDGenerator) EnvOption {
	return func(e *Env) {
		e.IDGenerator = generator
	}
}

// NewEnv constructs an environment over an empty store.
func NewEnv(opts ...EnvOption) *Env {
	env := &Env{
		Store:       store.New(),
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(env)
	}

	logger := slog.Default()
	idGen := env.IDGenerator.NextFunc()
	now := env.Clock.NowFunc()

	env.Conferences = application.NewConferenceServiceWithLogger(env.Store, idGen, now, logger)
	env.Events = application.NewEventServiceWithLogger(env.Store, idGen, now, logger)
	env.Rooms = application.NewRoomServiceWithLogger(env.Store, idGen, now, logger)
	env.Conversations = application.NewConversationServiceWithLogger(env.Store, idGen, now, logger)
	env.Users = application.NewUserServiceWithLogger(env.Store, idGen, logger)
	return env
}

// SeedUsers adds the given fixtures to the store and returns them unchanged.
func (e *Env) SeedUsers(fixtures ...UserFixture) []UserFixture {
	for _, fixture := range fixtures {
		e.Store.PutUser(fixture.Store())
	}
	return fixtures
}

// SeedContact records the directed edge owner → contact, creating nothing
// else. Both users must already be seeded.
func (e *Env) SeedContact(ownerID, contactID string) error {
	return e.Store.AddContact(ownerID, contactID)
}
