package booking

import (
	"errors"
	"testing"
)

func TestNext_ValidTransitions(t *testing.T) {
	cases := []struct {
		action Action
		from   AppointmentStatus
		want   AppointmentStatus
	}{
		{ActionAssign, StatusPending, StatusAssigned},
		{ActionConfirm, StatusAssigned, StatusConfirmed},
		{ActionDecline, StatusAssigned, StatusDeclined},
		{ActionStart, StatusConfirmed, StatusInProgress},
		{ActionComplete, StatusInProgress, StatusCompleted},
		{ActionPrescribe, StatusCompleted, StatusPrescribed},
		{ActionCancel, StatusPending, StatusCancelled},
		{ActionCancel, StatusAssigned, StatusCancelled},
		{ActionCancel, StatusConfirmed, StatusCancelled},
	}
	for _, tc := range cases {
		got, err := Next(tc.action, tc.from)
		if err != nil {
			t.Fatalf("Next(%s, %s): unexpected error: %v", tc.action, tc.from, err)
		}
		if got != tc.want {
			t.Errorf("Next(%s, %s) = %s, want %s", tc.action, tc.from, got, tc.want)
		}
	}
}

func TestNext_RateKeepsStatus(t *testing.T) {
	for _, from := range []AppointmentStatus{StatusCompleted, StatusPrescribed} {
		got, err := Next(ActionRate, from)
		if err != nil {
			t.Fatalf("Next(rate, %s): unexpected error: %v", from, err)
		}
		if got != from {
			t.Errorf("Next(rate, %s) = %s, want status unchanged", from, got)
		}
	}
}

func TestNext_InvalidTransitions(t *testing.T) {
	cases := []struct {
		action Action
		from   AppointmentStatus
	}{
		{ActionAssign, StatusAssigned},
		{ActionAssign, StatusCancelled},
		{ActionConfirm, StatusPending},
		{ActionConfirm, StatusConfirmed},
		{ActionDecline, StatusPending},
		{ActionStart, StatusPending},
		{ActionStart, StatusInProgress},
		{ActionComplete, StatusConfirmed},
		{ActionPrescribe, StatusInProgress},
		{ActionPrescribe, StatusPrescribed},
		{ActionRate, StatusConfirmed},
		{ActionCancel, StatusCompleted},
		{ActionCancel, StatusCancelled},
	}
	for _, tc := range cases {
		_, err := Next(tc.action, tc.from)
		if err == nil {
			t.Errorf("Next(%s, %s): expected error, got nil", tc.action, tc.from)
			continue
		}
		var invalid *InvalidTransitionError
		if !errors.As(err, &invalid) {
			t.Errorf("Next(%s, %s): error type %T, want *InvalidTransitionError", tc.action, tc.from, err)
			continue
		}
		if invalid.Action != tc.action || invalid.From != tc.from {
			t.Errorf("error fields = (%s, %s), want (%s, %s)", invalid.Action, invalid.From, tc.action, tc.from)
		}
	}
}

func TestInvalidTransitionError_Message(t *testing.T) {
	_, err := Next(ActionConfirm, StatusPending)
	if err == nil {
		t.Fatal("expected error")
	}
	want := `cannot confirm an appointment in status "pending"`
	if err.Error() != want {
		t.Errorf("message = %q, want %q", err.Error(), want)
	}
}
