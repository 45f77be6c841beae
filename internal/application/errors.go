package application

import (
	"errors"
	"fmt"

	"github.com/example/conference-hub/internal/permission"
)

var (
	// ErrPermissionDenied is returned when the acting principal lacks the
	// role or policy standing required for an operation.
	ErrPermissionDenied = errors.New("application: permission denied")
	// ErrNotFound is returned when a referenced identifier does not resolve.
	ErrNotFound = errors.New("application: not found")
	// ErrLoneOrganizer is returned when an operation would leave a
	// conference without any organizer.
	ErrLoneOrganizer = errors.New("application: conference requires at least one organizer")
	// ErrMessageDenied is returned when a conversation participant is not a
	// contact of the initiator.
	ErrMessageDenied = errors.New("application: message denied")
	// ErrRoomInUse is returned when deleting a room still assigned to events.
	ErrRoomInUse = errors.New("application: room assigned to events")
	// ErrEventFull is returned when a registration would exceed the capacity
	// of the event's room.
	ErrEventFull = errors.New("application: event room at capacity")
	// ErrLastParticipant is returned when leaving would empty a conversation.
	ErrLastParticipant = errors.New("application: conversation requires at least one participant")
	// ErrAlreadyExists is returned when an identifier is already taken.
	ErrAlreadyExists = errors.New("application: already exists")
)

// PermissionDeniedError carries the machine-readable denial reason so callers
// can render precise diagnostics without re-deriving the cause.
type PermissionDeniedError struct {
	Action permission.Action
	Reason permission.Reason
}

// Error implements the error interface.
func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("application: permission denied (%s): %s", e.Action, e.Reason)
}

// Unwrap lets callers branch on ErrPermissionDenied with errors.Is.
func (e *PermissionDeniedError) Unwrap() error {
	return ErrPermissionDenied
}

func deniedErr(action permission.Action, reason permission.Reason) error {
	return &PermissionDeniedError{Action: action, Reason: reason}
}

// MessageDeniedError identifies the participant that blocked an atomic
// conversation creation.
type MessageDeniedError struct {
	InitiatorID string
	BlockedID   string
}

// Error implements the error interface.
func (e *MessageDeniedError) Error() string {
	return fmt.Sprintf("application: %s may not message %s", e.InitiatorID, e.BlockedID)
}

// Unwrap lets callers branch on ErrMessageDenied with errors.Is.
func (e *MessageDeniedError) Unwrap() error {
	return ErrMessageDenied
}

// ValidationError captures field level validation issues that callers can
// surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}
