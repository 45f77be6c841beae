// Package sqlite persists core snapshots in a SQLite database using the pure
// Go modernc.org/sqlite driver. Save replaces the whole snapshot inside one
// transaction; Load reads it back, returning an empty snapshot for a fresh
// database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/example/conference-hub/internal/persistence"
)

// Storage implements persistence.Store on a SQLite database.
type Storage struct {
	db *sql.DB
}

// Open connects to the SQLite database named by dsn.
func Open(dsn string) (*Storage, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", dsn, err)
	}
	// The driver serializes writes; a single connection avoids lock errors.
	db.SetMaxOpenConns(1)
	return &Storage{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		full_name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		is_god INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS contacts (
		owner_id TEXT NOT NULL,
		contact_id TEXT NOT NULL,
		PRIMARY KEY (owner_id, contact_id)
	)`,
	`CREATE TABLE IF NOT EXISTS conferences (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		start_at TEXT NOT NULL,
		end_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS conference_roles (
		conference_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		PRIMARY KEY (conference_id, user_id, kind)
	)`,
	`CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		conference_id TEXT NOT NULL,
		label TEXT NOT NULL,
		capacity INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		conference_id TEXT NOT NULL,
		name TEXT NOT NULL,
		start_at TEXT NOT NULL,
		end_at TEXT NOT NULL,
		room_id TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS event_members (
		event_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		PRIMARY KEY (event_id, user_id, kind)
	)`,
	`CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		conference_id TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS conversation_participants (
		conversation_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		has_read INTEGER NOT NULL DEFAULT 0,
		is_archived INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (conversation_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		conversation_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		sender_id TEXT NOT NULL,
		sent_at TEXT NOT NULL,
		content TEXT NOT NULL,
		deleted INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (conversation_id, position)
	)`,
}

// Migrate creates the schema when it does not exist yet.
func (s *Storage) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w", err)
		}
	}
	return nil
}

// Save replaces the persisted snapshot within a single transaction.
func (s *Storage) Save(ctx context.Context, snapshot persistence.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin save: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	tables := []string{
		"messages", "conversation_participants", "conversations",
		"event_members", "events", "rooms", "conference_roles",
		"conferences", "contacts", "users",
	}
	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("sqlite: clear %s: %w", table, err)
		}
	}

	for _, user := range snapshot.Users {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, full_name, password_hash, is_god) VALUES (?, ?, ?, ?)`,
			user.ID, user.FullName, user.PasswordHash, boolToInt(user.IsGod),
		); err != nil {
			return fmt.Errorf("sqlite: save user %s: %w", user.ID, err)
		}
	}
	for _, contact := range snapshot.Contacts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO contacts (owner_id, contact_id) VALUES (?, ?)`,
			contact.OwnerID, contact.ContactID,
		); err != nil {
			return fmt.Errorf("sqlite: save contact: %w", err)
		}
	}
	for _, conf := range snapshot.Conferences {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conferences (id, name, start_at, end_at) VALUES (?, ?, ?, ?)`,
			conf.ID, conf.Name, formatTime(conf.Start), formatTime(conf.End),
		); err != nil {
			return fmt.Errorf("sqlite: save conference %s: %w", conf.ID, err)
		}
	}
	for _, role := range snapshot.Roles {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conference_roles (conference_id, user_id, kind) VALUES (?, ?, ?)`,
			role.ConferenceID, role.UserID, string(role.Kind),
		); err != nil {
			return fmt.Errorf("sqlite: save role: %w", err)
		}
	}
	for _, room := range snapshot.Rooms {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rooms (id, conference_id, label, capacity) VALUES (?, ?, ?, ?)`,
			room.ID, room.ConferenceID, room.Label, room.Capacity,
		); err != nil {
			return fmt.Errorf("sqlite: save room %s: %w", room.ID, err)
		}
	}
	for _, event := range snapshot.Events {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO events (id, conference_id, name, start_at, end_at, room_id) VALUES (?, ?, ?, ?, ?, ?)`,
			event.ID, event.ConferenceID, event.Name, formatTime(event.Start), formatTime(event.End), event.RoomID,
		); err != nil {
			return fmt.Errorf("sqlite: save event %s: %w", event.ID, err)
		}
	}
	for _, member := range snapshot.EventMembers {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO event_members (event_id, user_id, kind) VALUES (?, ?, ?)`,
			member.EventID, member.UserID, string(member.Kind),
		); err != nil {
			return fmt.Errorf("sqlite: save event member: %w", err)
		}
	}
	for _, conv := range snapshot.Conversations {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conversations (id, name, conference_id) VALUES (?, ?, ?)`,
			conv.ID, conv.Name, conv.ConferenceID,
		); err != nil {
			return fmt.Errorf("sqlite: save conversation %s: %w", conv.ID, err)
		}
	}
	for _, participant := range snapshot.Participants {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conversation_participants (conversation_id, user_id, has_read, is_archived) VALUES (?, ?, ?, ?)`,
			participant.ConversationID, participant.UserID, boolToInt(participant.HasRead), boolToInt(participant.IsArchived),
		); err != nil {
			return fmt.Errorf("sqlite: save participant: %w", err)
		}
	}
	for _, message := range snapshot.Messages {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (conversation_id, position, sender_id, sent_at, content, deleted) VALUES (?, ?, ?, ?, ?, ?)`,
			message.ConversationID, message.Position, message.SenderID, formatTime(message.SentAt), message.Content, boolToInt(message.Deleted),
		); err != nil {
			return fmt.Errorf("sqlite: save message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit save: %w", err)
	}
	return nil
}

// Load reads the persisted snapshot. A fresh database yields a zero snapshot.
func (s *Storage) Load(ctx context.Context) (persistence.Snapshot, error) {
	var snapshot persistence.Snapshot

	rows, err := s.db.QueryContext(ctx, `SELECT id, full_name, password_hash, is_god FROM users ORDER BY id`)
	if err != nil {
		return persistence.Snapshot{}, fmt.Errorf("sqlite: load users: %w", err)
	}
	for rows.Next() {
		var user persistence.User
		var isGod int
		if err := rows.Scan(&user.ID, &user.FullName, &user.PasswordHash, &isGod); err != nil {
			rows.Close()
			return persistence.Snapshot{}, fmt.Errorf("sqlite: scan user: %w", err)
		}
		user.IsGod = isGod != 0
		snapshot.Users = append(snapshot.Users, user)
	}
	if err := closeRows(rows); err != nil {
		return persistence.Snapshot{}, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT owner_id, contact_id FROM contacts ORDER BY owner_id, contact_id`)
	if err != nil {
		return persistence.Snapshot{}, fmt.Errorf("sqlite: load contacts: %w", err)
	}
	for rows.Next() {
		var contact persistence.Contact
		if err := rows.Scan(&contact.OwnerID, &contact.ContactID); err != nil {
			rows.Close()
			return persistence.Snapshot{}, fmt.Errorf("sqlite: scan contact: %w", err)
		}
		snapshot.Contacts = append(snapshot.Contacts, contact)
	}
	if err := closeRows(rows); err != nil {
		return persistence.Snapshot{}, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT id, name, start_at, end_at FROM conferences ORDER BY id`)
	if err != nil {
		return persistence.Snapshot{}, fmt.Errorf("sqlite: load conferences: %w", err)
	}
	for rows.Next() {
		var conf persistence.Conference
		var start, end string
		if err := rows.Scan(&conf.ID, &conf.Name, &start, &end); err != nil {
			rows.Close()
			return persistence.Snapshot{}, fmt.Errorf("sqlite: scan conference: %w", err)
		}
		if conf.Start, err = parseTime(start); err != nil {
			rows.Close()
			return persistence.Snapshot{}, err
		}
		if conf.End, err = parseTime(end); err != nil {
			rows.Close()
			return persistence.Snapshot{}, err
		}
		snapshot.Conferences = append(snapshot.Conferences, conf)
	}
	if err := closeRows(rows); err != nil {
		return persistence.Snapshot{}, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT conference_id, user_id, kind FROM conference_roles ORDER BY conference_id, kind, user_id`)
	if err != nil {
		return persistence.Snapshot{}, fmt.Errorf("sqlite: load roles: %w", err)
	}
	for rows.Next() {
		var role persistence.Role
		var kind string
		if err := rows.Scan(&role.ConferenceID, &role.UserID, &kind); err != nil {
			rows.Close()
			return persistence.Snapshot{}, fmt.Errorf("sqlite: scan role: %w", err)
		}
		role.Kind = persistence.RoleKind(kind)
		snapshot.Roles = append(snapshot.Roles, role)
	}
	if err := closeRows(rows); err != nil {
		return persistence.Snapshot{}, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT id, conference_id, label, capacity FROM rooms ORDER BY id`)
	if err != nil {
		return persistence.Snapshot{}, fmt.Errorf("sqlite: load rooms: %w", err)
	}
	for rows.Next() {
		var room persistence.Room
		if err := rows.Scan(&room.ID, &room.ConferenceID, &room.Label, &room.Capacity); err != nil {
			rows.Close()
			return persistence.Snapshot{}, fmt.Errorf("sqlite: scan room: %w", err)
		}
		snapshot.Rooms = append(snapshot.Rooms, room)
	}
	if err := closeRows(rows); err != nil {
		return persistence.Snapshot{}, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT id, conference_id, name, start_at, end_at, room_id FROM events ORDER BY id`)
	if err != nil {
		return persistence.Snapshot{}, fmt.Errorf("sqlite: load events: %w", err)
	}
	for rows.Next() {
		var event persistence.Event
		var start, end string
		if err := rows.Scan(&event.ID, &event.ConferenceID, &event.Name, &start, &end, &event.RoomID); err != nil {
			rows.Close()
			return persistence.Snapshot{}, fmt.Errorf("sqlite: scan event: %w", err)
		}
		if event.Start, err = parseTime(start); err != nil {
			rows.Close()
			return persistence.Snapshot{}, err
		}
		if event.End, err = parseTime(end); err != nil {
			rows.Close()
			return persistence.Snapshot{}, err
		}
		snapshot.Events = append(snapshot.Events, event)
	}
	if err := closeRows(rows); err != nil {
		return persistence.Snapshot{}, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT event_id, user_id, kind FROM event_members ORDER BY event_id, kind, user_id`)
	if err != nil {
		return persistence.Snapshot{}, fmt.Errorf("sqlite: load event members: %w", err)
	}
	for rows.Next() {
		var member persistence.EventMember
		var kind string
		if err := rows.Scan(&member.EventID, &member.UserID, &kind); err != nil {
			rows.Close()
			return persistence.Snapshot{}, fmt.Errorf("sqlite: scan event member: %w", err)
		}
		member.Kind = persistence.EventMemberKind(kind)
		snapshot.EventMembers = append(snapshot.EventMembers, member)
	}
	if err := closeRows(rows); err != nil {
		return persistence.Snapshot{}, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT id, name, conference_id FROM conversations ORDER BY id`)
	if err != nil {
		return persistence.Snapshot{}, fmt.Errorf("sqlite: load conversations: %w", err)
	}
	for rows.Next() {
		var conv persistence.Conversation
		if err := rows.Scan(&conv.ID, &conv.Name, &conv.ConferenceID); err != nil {
			rows.Close()
			return persistence.Snapshot{}, fmt.Errorf("sqlite: scan conversation: %w", err)
		}
		snapshot.Conversations = append(snapshot.Conversations, conv)
	}
	if err := closeRows(rows); err != nil {
		return persistence.Snapshot{}, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT conversation_id, user_id, has_read, is_archived FROM conversation_participants ORDER BY conversation_id, user_id`)
	if err != nil {
		return persistence.Snapshot{}, fmt.Errorf("sqlite: load participants: %w", err)
	}
	for rows.Next() {
		var participant persistence.Participant
		var hasRead, isArchived int
		if err := rows.Scan(&participant.ConversationID, &participant.UserID, &hasRead, &isArchived); err != nil {
			rows.Close()
			return persistence.Snapshot{}, fmt.Errorf("sqlite: scan participant: %w", err)
		}
		participant.HasRead = hasRead != 0
		participant.IsArchived = isArchived != 0
		snapshot.Participants = append(snapshot.Participants, participant)
	}
	if err := closeRows(rows); err != nil {
		return persistence.Snapshot{}, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT conversation_id, position, sender_id, sent_at, content, deleted FROM messages ORDER BY conversation_id, position`)
	if err != nil {
		return persistence.Snapshot{}, fmt.Errorf("sqlite: load messages: %w", err)
	}
	for rows.Next() {
		var message persistence.Message
		var sentAt string
		var deleted int
		if err := rows.Scan(&message.ConversationID, &message.Position, &message.SenderID, &sentAt, &message.Content, &deleted); err != nil {
			rows.Close()
			return persistence.Snapshot{}, fmt.Errorf("sqlite: scan message: %w", err)
		}
		if message.SentAt, err = parseTime(sentAt); err != nil {
			rows.Close()
			return persistence.Snapshot{}, err
		}
		message.Deleted = deleted != 0
		snapshot.Messages = append(snapshot.Messages, message)
	}
	if err := closeRows(rows); err != nil {
		return persistence.Snapshot{}, err
	}

	return snapshot, nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("sqlite: iterate rows: %w", err)
	}
	return rows.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse time %q: %w", value, err)
	}
	return t, nil
}
