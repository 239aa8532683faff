package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/roombook/internal/persistence"
)

func TestMeetingRepositoryOverlapGuard(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	userID := mustSaveUser(t, store, "owner")
	roomID := mustSaveRoom(t, store, "A")
	otherRoom := mustSaveRoom(t, store, "B")

	first := confirmedMeeting(userID, roomID, reference.Add(time.Hour), reference.Add(2*time.Hour))
	firstID, err := store.Meetings.Save(ctx, first)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	t.Run("rejects overlapping meeting in same room", func(t *testing.T) {
		overlapping := confirmedMeeting(userID, roomID, reference.Add(90*time.Minute), reference.Add(3*time.Hour))
		if _, err := store.Meetings.Save(ctx, overlapping); !errors.Is(err, persistence.ErrConflict) {
			t.Fatalf("expected persistence.ErrConflict, got %v", err)
		}
	})

	t.Run("allows back-to-back meetings", func(t *testing.T) {
		next := confirmedMeeting(userID, roomID, reference.Add(2*time.Hour), reference.Add(3*time.Hour))
		if _, err := store.Meetings.Save(ctx, next); err != nil {
			t.Fatalf("expected back-to-back meeting to succeed, got %v", err)
		}
	})

	t.Run("allows same window in another room", func(t *testing.T) {
		parallel := confirmedMeeting(userID, otherRoom, reference.Add(time.Hour), reference.Add(2*time.Hour))
		if _, err := store.Meetings.Save(ctx, parallel); err != nil {
			t.Fatalf("expected parallel meeting to succeed, got %v", err)
		}
	})

	t.Run("replacing a meeting does not collide with itself", func(t *testing.T) {
		stored, err := store.Meetings.FindByID(ctx, firstID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		previous := stored.ETag
		stored.End = stored.End.Add(-30 * time.Minute)
		stored.ETag = "rotated"
		if err := store.Meetings.Replace(ctx, stored, previous); err != nil {
			t.Fatalf("Replace failed: %v", err)
		}
	})

	t.Run("returns overlapping meetings for a window", func(t *testing.T) {
		found, err := store.Meetings.Overlapping(ctx, roomID, reference.Add(80*time.Minute), reference.Add(130*time.Minute))
		if err != nil {
			t.Fatalf("Overlapping failed: %v", err)
		}
		if len(found) != 2 {
			t.Fatalf("expected two overlapping meetings, got %d", len(found))
		}

		all, err := store.Meetings.Overlapping(ctx, "", reference.Add(time.Hour), reference.Add(61*time.Minute))
		if err != nil {
			t.Fatalf("Overlapping across rooms failed: %v", err)
		}
		if len(all) != 2 {
			t.Fatalf("expected meetings from both rooms, got %d", len(all))
		}
	})
}

func TestMeetingRepositoryConcurrencyToken(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	userID := mustSaveUser(t, store, "owner")
	roomID := mustSaveRoom(t, store, "A")

	id, err := store.Meetings.Save(ctx, confirmedMeeting(userID, roomID, reference, reference.Add(time.Hour)))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	stored, err := store.Meetings.FindByID(ctx, id)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}

	stored.Name = "Renamed"
	stored.ETag = "second"
	if err := store.Meetings.Replace(ctx, stored, "not-the-token"); !errors.Is(err, persistence.ErrStale) {
		t.Fatalf("expected persistence.ErrStale, got %v", err)
	}

	missing := stored
	missing.ID = "missing"
	if err := store.Meetings.Replace(ctx, missing, "anything"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected persistence.ErrNotFound, got %v", err)
	}

	if err := store.Meetings.Replace(ctx, stored, "etag-0900"); err != nil {
		t.Fatalf("Replace with current token failed: %v", err)
	}
	updated, err := store.Meetings.FindByID(ctx, id)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if updated.Name != "Renamed" || updated.ETag != "second" {
		t.Fatalf("unexpected updated meeting: %#v", updated)
	}
}

func TestMeetingRepositoryPlaceholders(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	userID := mustSaveUser(t, store, "owner")

	slot := persistence.Meeting{UserID: userID, ETag: "slot-token", Placeholder: true}
	slotID, err := store.Meetings.Save(ctx, slot)
	if err != nil {
		t.Fatalf("Save placeholder failed: %v", err)
	}

	found, err := store.Meetings.FindPlaceholder(ctx, userID)
	if err != nil {
		t.Fatalf("FindPlaceholder failed: %v", err)
	}
	if found.ID != slotID || !found.Placeholder || !found.Start.IsZero() {
		t.Fatalf("unexpected placeholder: %#v", found)
	}

	if _, err := store.Meetings.Save(ctx, persistence.Meeting{UserID: userID, ETag: "other", Placeholder: true}); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected second pending slot to be refused, got %v", err)
	}

	other := mustSaveUser(t, store, "other")
	if _, err := store.Meetings.FindPlaceholder(ctx, other); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected persistence.ErrNotFound, got %v", err)
	}
}

func TestMeetingRepositoryQuery(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	userID := mustSaveUser(t, store, "owner")
	roomID := mustSaveRoom(t, store, "A")

	past := confirmedMeeting(userID, roomID, reference.Add(-3*time.Hour), reference.Add(-2*time.Hour))
	endsNow := confirmedMeeting(userID, roomID, reference.Add(-time.Hour), reference)
	future := confirmedMeeting(userID, roomID, reference.Add(time.Hour), reference.Add(2*time.Hour))
	later := confirmedMeeting(userID, roomID, reference.Add(3*time.Hour), reference.Add(4*time.Hour))
	for _, m := range []persistence.Meeting{later, past, future, endsNow} {
		if _, err := store.Meetings.Save(ctx, m); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
	if _, err := store.Meetings.Save(ctx, persistence.Meeting{UserID: userID, ETag: "slot", Placeholder: true}); err != nil {
		t.Fatalf("Save placeholder failed: %v", err)
	}

	t.Run("excludes placeholders and ended meetings", func(t *testing.T) {
		now := reference
		meetings, total, err := store.Meetings.Query(ctx, persistence.MeetingQuery{EndsAfter: &now}, persistence.Page{})
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if total != 2 || len(meetings) != 2 {
			t.Fatalf("expected two upcoming meetings, got %d", total)
		}
		if !meetings[0].Start.Equal(future.Start) || !meetings[1].Start.Equal(later.Start) {
			t.Fatalf("expected start-time order, got %v then %v", meetings[0].Start, meetings[1].Start)
		}
	})

	t.Run("includes past meetings on request", func(t *testing.T) {
		meetings, total, err := store.Meetings.Query(ctx, persistence.MeetingQuery{}, persistence.Page{Limit: 3})
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if total != 4 || len(meetings) != 3 {
			t.Fatalf("expected total 4 with page of 3, got total=%d len=%d", total, len(meetings))
		}
	})

	t.Run("generic list includes placeholders", func(t *testing.T) {
		_, total, err := store.Meetings.List(ctx, persistence.Filter{"user_id": userID}, persistence.Page{})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if total != 5 {
			t.Fatalf("expected all five records, got %d", total)
		}
	})

	t.Run("bulk delete by owner", func(t *testing.T) {
		deleted, err := store.Meetings.DeleteMany(ctx, persistence.Filter{"user_id": userID})
		if err != nil {
			t.Fatalf("DeleteMany failed: %v", err)
		}
		if deleted != 5 {
			t.Fatalf("expected five deletions, got %d", deleted)
		}
	})
}
