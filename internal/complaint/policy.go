package complaint

import (
	"fmt"
	"time"

	"complaints/backend/internal/models"
)

// Transition is an action requested against a complaint.
type Transition string

const (
	TransitionAccept      Transition = "accept"
	TransitionFinish      Transition = "finish"
	TransitionDecline     Transition = "decline"
	TransitionRequestInfo Transition = "request_info"
	TransitionCitizenEdit Transition = "citizen_edit"
	TransitionRelease     Transition = "release"
)

type transitionKey struct {
	from models.ComplaintStatus
	t    Transition
}

// transitions is the whole state machine. Anything not listed is refused.
// in_progress --accept--> in_progress re-claims a complaint whose lock was
// released by the sweeper (or refreshes the holder's own lock).
var transitions = map[transitionKey]models.ComplaintStatus{
	{models.StatusNew, TransitionAccept}:             models.StatusInProgress,
	{models.StatusInProgress, TransitionAccept}:      models.StatusInProgress,
	{models.StatusNew, TransitionCitizenEdit}:        models.StatusNew,
	{models.StatusDeclined, TransitionCitizenEdit}:   models.StatusNew,
	{models.StatusInProgress, TransitionFinish}:      models.StatusFinished,
	{models.StatusInProgress, TransitionDecline}:     models.StatusDeclined,
	{models.StatusInProgress, TransitionRequestInfo}: models.StatusInProgress,
	{models.StatusInProgress, TransitionRelease}:     models.StatusInProgress,
}

// actorRoles lists who may trigger each transition. Admins may edit on a
// citizen's behalf; they never act as employees.
var actorRoles = map[Transition][]models.UserRole{
	TransitionAccept:      {models.RoleEmployee},
	TransitionFinish:      {models.RoleEmployee},
	TransitionDecline:     {models.RoleEmployee},
	TransitionRequestInfo: {models.RoleEmployee},
	TransitionCitizenEdit: {models.RoleCitizen, models.RoleAdmin},
	TransitionRelease:     {models.RoleEmployee},
}

// NextStatus looks up the status a transition leads to from the given status.
func NextStatus(from models.ComplaintStatus, t Transition) (models.ComplaintStatus, bool) {
	to, ok := transitions[transitionKey{from: from, t: t}]
	return to, ok
}

// CanTransition is the pure table check over (status, transition, role).
func CanTransition(from models.ComplaintStatus, t Transition, role models.UserRole) bool {
	if _, ok := NextStatus(from, t); !ok {
		return false
	}
	return roleAllowed(t, role)
}

func roleAllowed(t Transition, role models.UserRole) bool {
	for _, r := range actorRoles[t] {
		if r == role {
			return true
		}
	}
	return false
}

// CheckTransition runs, in order, the actor checks, the state table and the
// lock rule for transition t on c. It never mutates c.
func CheckTransition(c *models.Complaint, t Transition, actor *models.User, now time.Time) error {
	if actor == nil || !roleAllowed(t, actor.Role) {
		return authorizationError("role", fmt.Sprintf("Your role may not %s complaints.", verb(t)))
	}

	switch t {
	case TransitionAccept, TransitionDecline:
		if !actor.BelongsToEntity(c.EntityID) {
			return authorizationError("entity", fmt.Sprintf("You can only %s complaints for your entity.", verb(t)))
		}
	case TransitionFinish, TransitionRequestInfo, TransitionRelease:
		if !c.IsAssignedTo(actor.ID) {
			return authorizationError("assignment", fmt.Sprintf("You can only %s complaints assigned to you.", verb(t)))
		}
	case TransitionCitizenEdit:
		if !actor.IsAdmin() && c.UserID != actor.ID {
			return authorizationError("complaint", "You can only update your own complaints.")
		}
	}

	if _, ok := NextStatus(c.Status, t); !ok {
		return &Error{
			Kind:    KindStateViolation,
			Field:   "status",
			Message: fmt.Sprintf("Complaint cannot be %s in current status: %s", pastTense(t), c.Status),
		}
	}

	if t == TransitionAccept && c.LockedByOther(actor.ID, now) {
		return conflictError("locked", "This complaint is currently being handled by another employee.", nil)
	}
	if t == TransitionRelease && !c.IsLocked(now) {
		return &Error{Kind: KindStateViolation, Field: "locked", Message: "Complaint is not locked."}
	}

	return nil
}

func verb(t Transition) string {
	switch t {
	case TransitionRequestInfo:
		return "request info for"
	case TransitionCitizenEdit:
		return "update"
	default:
		return string(t)
	}
}

func pastTense(t Transition) string {
	switch t {
	case TransitionAccept:
		return "accepted"
	case TransitionFinish:
		return "finished"
	case TransitionDecline:
		return "declined"
	case TransitionRequestInfo:
		return "given an info request"
	case TransitionRelease:
		return "released"
	default:
		return "updated"
	}
}
