package scheduler

import "time"

// Booking is a room reservation as seen by the availability checks.
type Booking struct {
	ID          string
	RoomID      string
	Start       time.Time
	End         time.Time
	Placeholder bool
}

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether the window is non-empty.
func (w Window) Valid() bool {
	return !w.Start.IsZero() && !w.End.IsZero() && w.Start.Before(w.End)
}

// Overlaps reports whether two half-open intervals intersect. Intervals that
// only touch at an endpoint do not overlap.
func Overlaps(a, b Window) bool {
	return a.Start.Before(b.End) && a.End.After(b.Start)
}

// ConflictType describes the type of conflict detected between bookings.
type ConflictType string

const (
	// ConflictTypeRoom indicates a room is double-booked.
	ConflictTypeRoom ConflictType = "room"
)

// Conflict details an overlapping booking that callers can present to users.
type Conflict struct {
	WithBookingID string
	Type          ConflictType
	RoomID        string
	Window        Window
}

// DetectConflicts returns every confirmed booking in existing that shares the
// candidate's room and overlaps its window. The candidate itself, identified by
// ID, and placeholder bookings are ignored.
func DetectConflicts(existing []Booking, candidate Booking) []Conflict {
	if candidate.RoomID == "" {
		return nil
	}
	window := Window{Start: candidate.Start, End: candidate.End}

	var conflicts []Conflict
	for _, booking := range existing {
		if booking.Placeholder || booking.RoomID != candidate.RoomID {
			continue
		}
		if candidate.ID != "" && booking.ID == candidate.ID {
			continue
		}
		other := Window{Start: booking.Start, End: booking.End}
		if !Overlaps(window, other) {
			continue
		}
		conflicts = append(conflicts, Conflict{
			WithBookingID: booking.ID,
			Type:          ConflictTypeRoom,
			RoomID:        booking.RoomID,
			Window:        other,
		})
	}
	return conflicts
}

// IsAvailable reports whether roomID is free for window, skipping the booking
// identified by excludingID so an edited meeting never collides with itself.
func IsAvailable(existing []Booking, roomID string, window Window, excludingID string) bool {
	candidate := Booking{ID: excludingID, RoomID: roomID, Start: window.Start, End: window.End}
	return len(DetectConflicts(existing, candidate)) == 0
}

// FirstAvailable walks roomIDs in the given order and returns the first room
// free for window. The caller supplies the stable ordering.
func FirstAvailable(roomIDs []string, existing []Booking, window Window) (string, bool) {
	for _, roomID := range roomIDs {
		if IsAvailable(existing, roomID, window, "") {
			return roomID, true
		}
	}
	return "", false
}

// AvailableRooms returns every room in roomIDs that is free for window,
// preserving the input order.
func AvailableRooms(roomIDs []string, existing []Booking, window Window) []string {
	free := make([]string, 0, len(roomIDs))
	for _, roomID := range roomIDs {
		if IsAvailable(existing, roomID, window, "") {
			free = append(free, roomID)
		}
	}
	return free
}
