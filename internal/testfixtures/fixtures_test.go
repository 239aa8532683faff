package testfixtures

import (
	"testing"

	"github.com/example/roombook/internal/scheduler"
)

func TestMeetingFixtureBookings(t *testing.T) {
	t.Parallel()

	booked := NewMeetingFixture(WithMeetingRoom("room-a"), WithMeetingWindow(At(10, 0), At(11, 0)))
	pending := NewMeetingFixture(WithMeetingRoom("room-a"), WithMeetingWindow(At(10, 0), At(11, 0)), AsPlaceholder())

	if pending.RoomID != "" || !pending.Start.IsZero() || pending.Name != "" {
		t.Fatalf("placeholder fixture kept booking details: %+v", pending)
	}
	if p := pending.Persistence(); !p.Placeholder || p.RoomID != nil {
		t.Fatalf("placeholder persistence record = %+v", p)
	}

	existing := []scheduler.Booking{booked.Booking(), pending.Booking()}
	candidate := scheduler.Booking{ID: "new", RoomID: "room-a", Start: At(10, 30), End: At(11, 30)}

	conflicts := scheduler.DetectConflicts(existing, candidate)
	if len(conflicts) != 1 || conflicts[0].WithBookingID != booked.ID {
		t.Fatalf("DetectConflicts = %+v, want only %s", conflicts, booked.ID)
	}
}
