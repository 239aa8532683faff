package application

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAvailabilityService_Windows(t *testing.T) {
	rooms := &roomRepoStub{rooms: []Room{{ID: "room-1", Name: "Everest"}, {ID: "room-2", Name: "K2"}}}
	meetings := &meetingRepoStub{meetings: []Meeting{
		{ID: "m-1", RoomID: "room-1", OwnerID: "user-1", Start: at(10, 0), End: at(11, 0), ETag: "e1"},
	}}
	svc := NewAvailabilityServiceWithLogger(rooms, meetings, discardLogger())
	ctx := context.Background()

	invalid := []struct {
		name       string
		start, end time.Time
	}{
		{name: "inverted", start: at(11, 0), end: at(10, 0)},
		{name: "empty", start: at(10, 0), end: at(10, 0)},
		{name: "missing end", start: at(10, 0)},
	}
	for _, tc := range invalid {
		t.Run(tc.name+" window is rejected before storage", func(t *testing.T) {
			before := meetings.overlaps

			var vErr *ValidationError
			if _, err := svc.IsAvailable(ctx, "room-1", tc.start, tc.end, ""); !errors.As(err, &vErr) {
				t.Fatalf("IsAvailable: expected ValidationError, got %v", err)
			}
			if _, err := svc.SelectAvailableRoom(ctx, tc.start, tc.end); !errors.As(err, &vErr) {
				t.Fatalf("SelectAvailableRoom: expected ValidationError, got %v", err)
			}
			if _, err := svc.ListAvailableRooms(ctx, tc.start, tc.end); !errors.As(err, &vErr) {
				t.Fatalf("ListAvailableRooms: expected ValidationError, got %v", err)
			}
			if meetings.overlaps != before {
				t.Fatalf("expected no repository reads, got %d", meetings.overlaps-before)
			}
		})
	}

	t.Run("valid window selects the first free room", func(t *testing.T) {
		room, err := svc.SelectAvailableRoom(ctx, at(10, 30), at(11, 30))
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if room.ID != "room-2" {
			t.Fatalf("expected room-2, got %s", room.ID)
		}

		free, err := svc.IsAvailable(ctx, "room-1", at(11, 0), at(12, 0), "")
		if err != nil || !free {
			t.Fatalf("expected back-to-back window to be free, got %v %v", free, err)
		}
	})
}
