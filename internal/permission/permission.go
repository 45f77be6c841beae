// Package permission contains the pure authorization rules for conference
// operations. Evaluation never mutates state and depends only on the actor
// and a snapshot of the target conference's role sets.
package permission

// Action identifies an operation an actor wants to perform on a conference.
type Action string

const (
	// ActionCreateConference creates a brand new conference.
	ActionCreateConference Action = "create_conference"
	// ActionViewConference reads conference details, events, and rooms.
	ActionViewConference Action = "view_conference"
	// ActionJoinConference self-registers the actor as an attendee.
	ActionJoinConference Action = "join_conference"
	// ActionManageMembership adds or removes members from role sets.
	ActionManageMembership Action = "manage_membership"
	// ActionCreateEvent creates or deletes events in the conference.
	ActionCreateEvent Action = "create_event"
	// ActionCreateRoom creates or deletes rooms in the conference.
	ActionCreateRoom Action = "create_room"
	// ActionEditConference changes conference attributes.
	ActionEditConference Action = "edit_conference"
	// ActionDeleteConference deletes the conference and everything it owns.
	ActionDeleteConference Action = "delete_conference"
	// ActionMessageMembers opens a conference-scoped conversation.
	ActionMessageMembers Action = "message_members"
)

// Reason labels why a request was denied so callers can render precise
// diagnostics without re-deriving the cause.
type Reason string

const (
	// ReasonRoleInsufficient means the actor holds no role that grants the action.
	ReasonRoleInsufficient Reason = "role_insufficient"
	// ReasonSelfActionForbidden means the action may not target the actor itself.
	ReasonSelfActionForbidden Reason = "self_action_forbidden"
	// ReasonPolicyDenied means a policy rule outside the role table refused the action.
	ReasonPolicyDenied Reason = "policy_denied"
)

// Actor is the already-resolved identity requesting an action. Authentication
// happens outside the core; God marks accounts that bypass role checks.
type Actor struct {
	ID  string
	God bool
}

// Roles is a point-in-time snapshot of a conference's role sets. A user may
// appear in several sets at once.
type Roles struct {
	Organizers map[string]struct{}
	Speakers   map[string]struct{}
	Attendees  map[string]struct{}
}

// IsOrganizer reports whether id is in the organizer set.
func (r Roles) IsOrganizer(id string) bool {
	_, ok := r.Organizers[id]
	return ok
}

// IsSpeaker reports whether id is in the speaker set.
func (r Roles) IsSpeaker(id string) bool {
	_, ok := r.Speakers[id]
	return ok
}

// IsAttendee reports whether id is in the attendee set.
func (r Roles) IsAttendee(id string) bool {
	_, ok := r.Attendees[id]
	return ok
}

// IsMember reports whether id holds any role at all.
func (r Roles) IsMember(id string) bool {
	return r.IsOrganizer(id) || r.IsSpeaker(id) || r.IsAttendee(id)
}

// Decision is the outcome of evaluating a single request.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Allow grants the request.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny refuses the request with the given reason.
func Deny(reason Reason) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Evaluate decides whether actor may perform action against a conference with
// the given role sets. Organizer capabilities subsume speaker capabilities,
// which subsume attendee capabilities, for read-style actions. God actors are
// allowed unconditionally; policy exceptions for god accounts (such as the
// conversation archive rule) live with the feature, not in this table.
func Evaluate(actor Actor, action Action, roles Roles) Decision {
	if actor.God {
		return Allow()
	}

	switch action {
	case ActionCreateConference, ActionJoinConference:
		// Any resolved identity qualifies.
		return Allow()
	case ActionViewConference:
		if roles.IsMember(actor.ID) {
			return Allow()
		}
		return Deny(ReasonRoleInsufficient)
	case ActionManageMembership,
		ActionCreateEvent,
		ActionCreateRoom,
		ActionEditConference,
		ActionDeleteConference,
		ActionMessageMembers:
		if roles.IsOrganizer(actor.ID) {
			return Allow()
		}
		return Deny(ReasonRoleInsufficient)
	}

	return Deny(ReasonPolicyDenied)
}
