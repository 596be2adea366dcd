package booking

import "fmt"

// Action identifies a workflow transition.
type Action string

const (
	ActionBook      Action = "book"
	ActionAssign    Action = "assign"
	ActionConfirm   Action = "confirm"
	ActionDecline   Action = "decline"
	ActionStart     Action = "start"
	ActionComplete  Action = "complete"
	ActionPrescribe Action = "prescribe"
	ActionRate      Action = "rate"
	ActionCancel    Action = "cancel"
)

// statusUnchanged marks actions that mutate the row without moving the
// status (rating).
const statusUnchanged AppointmentStatus = ""

type transition struct {
	from []AppointmentStatus
	to   AppointmentStatus
}

// transitions is the exhaustive table of allowed predecessor statuses per
// action. Any call whose current status is not in its action's set fails
// with InvalidTransitionError.
var transitions = map[Action]transition{
	ActionAssign:    {from: []AppointmentStatus{StatusPending}, to: StatusAssigned},
	ActionConfirm:   {from: []AppointmentStatus{StatusAssigned}, to: StatusConfirmed},
	ActionDecline:   {from: []AppointmentStatus{StatusAssigned}, to: StatusDeclined},
	ActionStart:     {from: []AppointmentStatus{StatusConfirmed}, to: StatusInProgress},
	ActionComplete:  {from: []AppointmentStatus{StatusInProgress}, to: StatusCompleted},
	ActionPrescribe: {from: []AppointmentStatus{StatusCompleted}, to: StatusPrescribed},
	ActionRate:      {from: []AppointmentStatus{StatusCompleted, StatusPrescribed}, to: statusUnchanged},
	ActionCancel:    {from: []AppointmentStatus{StatusPending, StatusAssigned, StatusConfirmed}, to: StatusCancelled},
}

// InvalidTransitionError reports an action attempted from a status outside
// its allowed predecessor set.
type InvalidTransitionError struct {
	Action Action
	From   AppointmentStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s an appointment in status %q", e.Action, e.From)
}

// Next resolves the successor status for an action applied to the current
// status. Actions that leave the status in place return it unchanged.
func Next(action Action, from AppointmentStatus) (AppointmentStatus, error) {
	t, ok := transitions[action]
	if !ok {
		return "", &InvalidTransitionError{Action: action, From: from}
	}
	for _, allowed := range t.from {
		if from == allowed {
			if t.to == statusUnchanged {
				return from, nil
			}
			return t.to, nil
		}
	}
	return "", &InvalidTransitionError{Action: action, From: from}
}
