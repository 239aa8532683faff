package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/roombook/internal/persistence"
)

func TestRoomService_CreateRoom(t *testing.T) {
	t.Run("validates required attributes", func(t *testing.T) {
		svc := NewRoomService(&roomRepoStub{}, nil, fixedNow)

		_, err := svc.CreateRoom(context.Background(), CreateRoomParams{
			Principal: alice,
			Input:     RoomInput{Name: "   ", Place: ""},
		})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["name"]; !ok {
			t.Fatalf("expected name validation error, got %v", vErr.FieldErrors)
		}
		if _, ok := vErr.FieldErrors["place"]; !ok {
			t.Fatalf("expected place validation error, got %v", vErr.FieldErrors)
		}
	})

	t.Run("persists trimmed attributes", func(t *testing.T) {
		repo := &roomRepoStub{}
		description := "  Projector  "
		svc := NewRoomService(repo, nil, fixedNow)

		created, err := svc.CreateRoom(context.Background(), CreateRoomParams{
			Principal: alice,
			Input:     RoomInput{Name: "  Sakura  ", Description: &description, Place: " 10F "},
		})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}

		if created.ID != "room-1" {
			t.Fatalf("expected repository assigned ID, got %q", created.ID)
		}
		saved := repo.saved[0]
		if saved.Name != "Sakura" || saved.Place != "10F" {
			t.Fatalf("expected trimmed attributes, got %+v", saved)
		}
		if saved.Description == nil || *saved.Description != "Projector" {
			t.Fatalf("expected trimmed description, got %v", saved.Description)
		}
		if !saved.CreatedAt.Equal(referenceNow) || !saved.UpdatedAt.Equal(referenceNow) {
			t.Fatalf("expected timestamps from injected clock, got %+v", saved)
		}
	})

	t.Run("maps repository errors to sentinel failures", func(t *testing.T) {
		svc := NewRoomService(&roomRepoStub{saveErr: persistence.ErrDuplicate}, nil, fixedNow)

		_, err := svc.CreateRoom(context.Background(), CreateRoomParams{
			Principal: alice,
			Input:     RoomInput{Name: "A", Place: "1F"},
		})
		if !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})
}

func TestRoomService_UpdateRoom(t *testing.T) {
	t.Run("propagates ErrNotFound when the room is missing", func(t *testing.T) {
		svc := NewRoomService(&roomRepoStub{}, nil, fixedNow)

		_, err := svc.UpdateRoom(context.Background(), UpdateRoomParams{
			Principal: alice,
			RoomID:    "missing",
			Input:     RoomInput{Name: "Room", Place: "HQ"},
		})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("replaces attributes and keeps creation time", func(t *testing.T) {
		created := referenceNow.Add(-48 * time.Hour)
		repo := &roomRepoStub{rooms: []Room{{ID: "R1", Name: "Sakura", Place: "10F", CreatedAt: created}}}
		svc := NewRoomService(repo, nil, fixedNow)

		updated, err := svc.UpdateRoom(context.Background(), UpdateRoomParams{
			Principal: alice,
			RoomID:    "R1",
			Input:     RoomInput{Name: " Maple ", Place: "11F"},
		})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if updated.Name != "Maple" || updated.Place != "11F" || updated.Description != nil {
			t.Fatalf("unexpected room %+v", updated)
		}
		if !updated.CreatedAt.Equal(created) || !updated.UpdatedAt.Equal(referenceNow) {
			t.Fatalf("unexpected timestamps %+v", updated)
		}
		if repo.rooms[0].Name != "Maple" {
			t.Fatalf("expected stored room to be replaced, got %+v", repo.rooms[0])
		}
	})
}

func TestRoomService_DeleteRoom(t *testing.T) {
	repo := &roomRepoStub{rooms: []Room{{ID: "R1", Name: "A", Place: "1F"}}}
	svc := NewRoomService(repo, nil, fixedNow)

	if err := svc.DeleteRoom(context.Background(), alice, "R1"); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != "R1" {
		t.Fatalf("expected repository to receive room ID, got %v", repo.deleted)
	}
	if err := svc.DeleteRoom(context.Background(), alice, "R1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRoomService_ListRooms(t *testing.T) {
	repo := &roomRepoStub{rooms: []Room{
		{ID: "R1", Name: "A", Place: "1F"},
		{ID: "R2", Name: "B", Place: "2F"},
		{ID: "R3", Name: "C", Place: "1F"},
	}}
	svc := NewRoomService(repo, nil, fixedNow)
	ctx := context.Background()

	t.Run("returns every room in stable order without paging", func(t *testing.T) {
		page, err := svc.ListRooms(ctx, ListParams{})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if page.AllCount != 3 || page.Items[0].ID != "R1" || page.Items[2].ID != "R3" {
			t.Fatalf("unexpected page %+v", page)
		}
	})

	t.Run("filters and pages", func(t *testing.T) {
		page, err := svc.ListRooms(ctx, ListParams{Filter: map[string]string{"place": "1F"}, Page: 1, Items: 1})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if page.AllCount != 2 || len(page.Items) != 1 || page.Items[0].ID != "R3" || page.Page != 1 {
			t.Fatalf("unexpected page %+v", page)
		}
	})

	t.Run("rejects unknown filters", func(t *testing.T) {
		_, err := svc.ListRooms(ctx, ListParams{Filter: map[string]string{"capacity": "10"}})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})
}

func TestRoomService_ListAvailableRooms(t *testing.T) {
	rooms := &roomRepoStub{rooms: []Room{{ID: "R1"}, {ID: "R2"}, {ID: "R3"}}}
	meetings := &meetingRepoStub{meetings: []Meeting{
		{ID: "m1", RoomID: "R2", Start: at(10, 0), End: at(11, 0)},
		{ID: "slot", Placeholder: true, OwnerID: "user-1"},
	}}
	svc := NewRoomService(rooms, meetings, fixedNow)

	free, err := svc.ListAvailableRooms(context.Background(), at(10, 30), at(11, 30))
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(free) != 2 || free[0].ID != "R1" || free[1].ID != "R3" {
		t.Fatalf("unexpected free rooms %+v", free)
	}

	_, err = svc.ListAvailableRooms(context.Background(), at(11, 0), at(10, 0))
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for inverted window, got %v", err)
	}
}

func TestRoomService_ListRoomMeetings(t *testing.T) {
	rooms := &roomRepoStub{rooms: []Room{{ID: "R1"}, {ID: "R2"}}}
	meetings := &meetingRepoStub{meetings: []Meeting{
		{ID: "m1", RoomID: "R1", Start: at(10, 0), End: at(11, 0)},
		{ID: "m2", RoomID: "R2", Start: at(10, 0), End: at(11, 0)},
	}}
	svc := NewRoomService(rooms, meetings, fixedNow)

	page, err := svc.ListRoomMeetings(context.Background(), "R1", ListMeetingsParams{})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "m1" {
		t.Fatalf("unexpected page %+v", page)
	}

	if _, err := svc.ListRoomMeetings(context.Background(), "missing", ListMeetingsParams{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMapRoomRepoError(t *testing.T) {
	unexpected := errors.New("boom")

	tests := map[string]struct {
		err      error
		expected error
	}{
		"nil":                   {err: nil, expected: nil},
		"application not found": {err: ErrNotFound, expected: ErrNotFound},
		"persistence not found": {err: persistence.ErrNotFound, expected: ErrNotFound},
		"duplicate":             {err: persistence.ErrDuplicate, expected: ErrAlreadyExists},
		"constraint":            {err: persistence.ErrConstraintViolation, expected: &ValidationError{}},
		"unexpected":            {err: unexpected, expected: unexpected},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			result := mapRoomRepoError(tc.err)

			switch expected := tc.expected.(type) {
			case nil:
				if result != nil {
					t.Fatalf("expected nil, got %v", result)
				}
			case *ValidationError:
				vErr, ok := result.(*ValidationError)
				if !ok {
					t.Fatalf("expected ValidationError, got %T", result)
				}
				if msg, ok := vErr.FieldErrors["place"]; !ok || msg == "" {
					t.Fatalf("expected place validation message, got %v", vErr.FieldErrors)
				}
			default:
				if !errors.Is(result, expected) {
					t.Fatalf("expected %v, got %v", expected, result)
				}
			}
		})
	}
}
