package fsm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okalidis/consultiq/internal/adapter/fsm"
	"github.com/okalidis/consultiq/internal/domain"
)

func TestValidator_Apply_ValidTransitions(t *testing.T) {
	v := fsm.New()
	ctx := context.Background()

	cases := []struct {
		current domain.Status
		event   domain.Event
		want    domain.Status
	}{
		{domain.StatusPending, domain.EventAccept, domain.StatusConfirmed},
		{domain.StatusPending, domain.EventReject, domain.StatusRejected},
		{domain.StatusPending, domain.EventCancel, domain.StatusCancelled},
		{domain.StatusConfirmed, domain.EventCancel, domain.StatusCancelled},
		{domain.StatusBooked, domain.EventCancel, domain.StatusCancelled},
		{domain.StatusConfirmed, domain.EventComplete, domain.StatusCompleted},
		{domain.StatusBooked, domain.EventComplete, domain.StatusCompleted},
	}

	for _, tc := range cases {
		got, err := v.Apply(ctx, tc.current, tc.event)
		if err != nil {
			t.Errorf("Apply(%s, %s) unexpected error: %v", tc.current, tc.event, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Apply(%s, %s) = %s, want %s", tc.current, tc.event, got, tc.want)
		}
	}
}

func TestValidator_Apply_InvalidTransitions(t *testing.T) {
	v := fsm.New()
	ctx := context.Background()

	cases := []struct {
		current domain.Status
		event   domain.Event
	}{
		{domain.StatusConfirmed, domain.EventAccept},
		{domain.StatusBooked, domain.EventAccept},
		{domain.StatusConfirmed, domain.EventReject},
		{domain.StatusBooked, domain.EventReject},
		{domain.StatusPending, domain.EventComplete},
	}

	for _, tc := range cases {
		_, err := v.Apply(ctx, tc.current, tc.event)
		var trErr *domain.TransitionError
		if !errors.As(err, &trErr) {
			t.Errorf("Apply(%s, %s): expected TransitionError, got %v", tc.current, tc.event, err)
			continue
		}
		if trErr.Event != tc.event || trErr.Current != tc.current {
			t.Errorf("TransitionError = %+v, want event %s current %s", trErr, tc.event, tc.current)
		}
	}
}

func TestValidator_Apply_TerminalStatesAreImmutable(t *testing.T) {
	v := fsm.New()
	ctx := context.Background()

	terminal := []domain.Status{domain.StatusCompleted, domain.StatusCancelled, domain.StatusRejected}
	events := []domain.Event{domain.EventAccept, domain.EventReject, domain.EventCancel, domain.EventComplete}

	for _, status := range terminal {
		for _, event := range events {
			_, err := v.Apply(ctx, status, event)
			var trErr *domain.TransitionError
			if !errors.As(err, &trErr) {
				t.Errorf("Apply(%s, %s): expected TransitionError, got %v", status, event, err)
			}
		}
	}
}
