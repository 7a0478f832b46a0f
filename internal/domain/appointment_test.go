package domain_test

import (
	"testing"
	"time"

	"github.com/okalidis/consultiq/internal/domain"
)

func TestStatus_Active(t *testing.T) {
	active := []domain.Status{domain.StatusPending, domain.StatusConfirmed, domain.StatusBooked}
	for _, s := range active {
		if !s.Active() {
			t.Errorf("%q.Active() = false, want true", s)
		}
	}
	settled := []domain.Status{domain.StatusCompleted, domain.StatusCancelled, domain.StatusRejected}
	for _, s := range settled {
		if s.Active() {
			t.Errorf("%q.Active() = true, want false", s)
		}
		if !s.Terminal() {
			t.Errorf("%q.Terminal() = false, want true", s)
		}
	}
}

func TestTransitions_CoverLifecycle(t *testing.T) {
	type key struct {
		event domain.Event
		src   domain.Status
	}
	dst := make(map[key]domain.Status, len(domain.Transitions))
	for _, tr := range domain.Transitions {
		dst[key{tr.Event, tr.Src}] = tr.Dst
	}

	cases := []struct {
		event domain.Event
		src   domain.Status
		want  domain.Status
	}{
		{domain.EventAccept, domain.StatusPending, domain.StatusConfirmed},
		{domain.EventReject, domain.StatusPending, domain.StatusRejected},
		{domain.EventCancel, domain.StatusPending, domain.StatusCancelled},
		{domain.EventCancel, domain.StatusConfirmed, domain.StatusCancelled},
		{domain.EventCancel, domain.StatusBooked, domain.StatusCancelled},
		{domain.EventComplete, domain.StatusConfirmed, domain.StatusCompleted},
		{domain.EventComplete, domain.StatusBooked, domain.StatusCompleted},
	}
	for _, tc := range cases {
		got, ok := dst[key{tc.event, tc.src}]
		if !ok {
			t.Errorf("missing transition %s from %s", tc.event, tc.src)
			continue
		}
		if got != tc.want {
			t.Errorf("%s from %s = %s, want %s", tc.event, tc.src, got, tc.want)
		}
	}
	if len(domain.Transitions) != len(cases) {
		t.Errorf("Transitions has %d entries, want %d", len(domain.Transitions), len(cases))
	}
}

func TestTransitions_NoEscapeFromTerminalStates(t *testing.T) {
	for _, tr := range domain.Transitions {
		if tr.Src.Terminal() {
			t.Errorf("transition %s leaves terminal state %s", tr.Event, tr.Src)
		}
	}
}

func TestRoleMayTrigger(t *testing.T) {
	cases := []struct {
		event domain.Event
		role  domain.Role
		want  bool
	}{
		{domain.EventAccept, domain.RoleTeacher, true},
		{domain.EventAccept, domain.RoleStudent, false},
		{domain.EventAccept, domain.RoleAdmin, false},
		{domain.EventReject, domain.RoleTeacher, true},
		{domain.EventReject, domain.RoleStudent, false},
		{domain.EventCancel, domain.RoleStudent, true},
		{domain.EventCancel, domain.RoleTeacher, true},
		{domain.EventCancel, domain.RoleAdmin, true},
		{domain.EventComplete, domain.RoleTeacher, true},
		{domain.EventComplete, domain.RoleAdmin, true},
		{domain.EventComplete, domain.RoleStudent, false},
	}
	for _, tc := range cases {
		if got := domain.RoleMayTrigger(tc.event, tc.role); got != tc.want {
			t.Errorf("RoleMayTrigger(%s, %s) = %v, want %v", tc.event, tc.role, got, tc.want)
		}
	}
}

func TestParseRole(t *testing.T) {
	for _, s := range []string{"student", "teacher", "admin"} {
		role, err := domain.ParseRole(s)
		if err != nil {
			t.Errorf("ParseRole(%q) unexpected error: %v", s, err)
		}
		if string(role) != s {
			t.Errorf("ParseRole(%q) = %q", s, role)
		}
	}
	if _, err := domain.ParseRole("superuser"); err == nil {
		t.Error("ParseRole(\"superuser\") expected error, got nil")
	}
}

func TestNewRequest(t *testing.T) {
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	student := domain.StudentInfo{Name: "Ada", Email: "ada@example.com"}

	a := domain.NewRequest("apt-1", "t-1", student, domain.Monday, "3:00 PM", date)

	if a.Status != domain.StatusPending {
		t.Errorf("Status = %q, want %q", a.Status, domain.StatusPending)
	}
	if a.CreatedBy != domain.CreatedByStudent {
		t.Errorf("CreatedBy = %q, want %q", a.CreatedBy, domain.CreatedByStudent)
	}
	if a.CreatedAt.IsZero() || !a.CreatedAt.Equal(a.UpdatedAt) {
		t.Error("timestamps must be set and equal at creation")
	}

	key := a.Slot()
	if key.TeacherID != "t-1" || key.TimeSlot != "3:00 PM" || !key.Date.Equal(date) {
		t.Errorf("unexpected slot key %+v", key)
	}
}

func TestNewDirectBooking(t *testing.T) {
	date := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)
	a := domain.NewDirectBooking("apt-2", "t-1", domain.StudentInfo{Name: "Bob", Email: "bob@example.com"}, domain.Tuesday, "10:00 AM", date)

	if a.Status != domain.StatusBooked {
		t.Errorf("Status = %q, want %q", a.Status, domain.StatusBooked)
	}
	if a.CreatedBy != domain.CreatedByTeacher {
		t.Errorf("CreatedBy = %q, want %q", a.CreatedBy, domain.CreatedByTeacher)
	}
}
