package bootstrap

import (
	"context"
	"time"

	"github.com/example/roombook/internal/application"
	"github.com/example/roombook/internal/persistence"
)

// repoAdapter exposes a persistence repository in application types.
type repoAdapter[A, P any] struct {
	repo    persistence.Repository[P]
	toApp   func(P) A
	toStore func(A) P
}

func (a repoAdapter[A, P]) FindByID(ctx context.Context, id string) (A, error) {
	record, err := a.repo.FindByID(ctx, id)
	if err != nil {
		var zero A
		return zero, err
	}
	return a.toApp(record), nil
}

func (a repoAdapter[A, P]) FindByKey(ctx context.Context, key, value string) (A, error) {
	record, err := a.repo.FindByKey(ctx, key, value)
	if err != nil {
		var zero A
		return zero, err
	}
	return a.toApp(record), nil
}

func (a repoAdapter[A, P]) List(ctx context.Context, filter persistence.Filter, page persistence.Page) ([]A, int, error) {
	records, total, err := a.repo.List(ctx, filter, page)
	if err != nil {
		return nil, 0, err
	}
	return mapAll(records, a.toApp), total, nil
}

func (a repoAdapter[A, P]) Save(ctx context.Context, record A) (string, error) {
	return a.repo.Save(ctx, a.toStore(record))
}

func (a repoAdapter[A, P]) Delete(ctx context.Context, id string) error {
	return a.repo.Delete(ctx, id)
}

func (a repoAdapter[A, P]) DeleteMany(ctx context.Context, filter persistence.Filter) (int, error) {
	return a.repo.DeleteMany(ctx, filter)
}

func mapAll[P, A any](records []P, convert func(P) A) []A {
	out := make([]A, 0, len(records))
	for _, record := range records {
		out = append(out, convert(record))
	}
	return out
}

// NewUserRepository adapts a persistence user store to the user service.
func NewUserRepository(repo persistence.UserRepository) application.UserRepository {
	return repoAdapter[application.UserCredentials, persistence.User]{
		repo:    repo,
		toApp:   toApplicationUser,
		toStore: toPersistenceUser,
	}
}

// NewRoomRepository adapts a persistence room store to the room and meeting services.
func NewRoomRepository(repo persistence.RoomRepository) application.RoomRepository {
	return repoAdapter[application.Room, persistence.Room]{
		repo:    repo,
		toApp:   toApplicationRoom,
		toStore: toPersistenceRoom,
	}
}

type meetingRepository struct {
	repoAdapter[application.Meeting, persistence.Meeting]
	meetings persistence.MeetingRepository
}

// NewMeetingRepository adapts a persistence meeting store to the meeting service.
func NewMeetingRepository(repo persistence.MeetingRepository) application.MeetingRepository {
	return meetingRepository{
		repoAdapter: repoAdapter[application.Meeting, persistence.Meeting]{
			repo:    repo,
			toApp:   toApplicationMeeting,
			toStore: toPersistenceMeeting,
		},
		meetings: repo,
	}
}

func (a meetingRepository) Query(ctx context.Context, query persistence.MeetingQuery, page persistence.Page) ([]application.Meeting, int, error) {
	records, total, err := a.meetings.Query(ctx, query, page)
	if err != nil {
		return nil, 0, err
	}
	return mapAll(records, toApplicationMeeting), total, nil
}

func (a meetingRepository) Overlapping(ctx context.Context, roomID string, start, end time.Time) ([]application.Meeting, error) {
	records, err := a.meetings.Overlapping(ctx, roomID, start, end)
	if err != nil {
		return nil, err
	}
	return mapAll(records, toApplicationMeeting), nil
}

func (a meetingRepository) FindPlaceholder(ctx context.Context, userID string) (application.Meeting, error) {
	record, err := a.meetings.FindPlaceholder(ctx, userID)
	if err != nil {
		return application.Meeting{}, err
	}
	return toApplicationMeeting(record), nil
}

func (a meetingRepository) Replace(ctx context.Context, meeting application.Meeting, expectedETag string) error {
	return a.meetings.Replace(ctx, toPersistenceMeeting(meeting), expectedETag)
}

func toApplicationUser(model persistence.User) application.UserCredentials {
	return application.UserCredentials{
		User: application.User{
			ID:        model.ID,
			Login:     model.Login,
			Name:      model.Name,
			CreatedAt: model.CreatedAt,
			UpdatedAt: model.UpdatedAt,
		},
		PasswordHash: model.PasswordHash,
	}
}

func toPersistenceUser(creds application.UserCredentials) persistence.User {
	return persistence.User{
		ID:           creds.User.ID,
		Login:        creds.User.Login,
		PasswordHash: creds.PasswordHash,
		Name:         creds.User.Name,
		CreatedAt:    creds.User.CreatedAt,
		UpdatedAt:    creds.User.UpdatedAt,
	}
}

func toApplicationRoom(model persistence.Room) application.Room {
	return application.Room{
		ID:          model.ID,
		Name:        model.Name,
		Description: cloneString(model.Description),
		Place:       model.Place,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceRoom(room application.Room) persistence.Room {
	return persistence.Room{
		ID:          room.ID,
		Name:        room.Name,
		Description: cloneString(room.Description),
		Place:       room.Place,
		CreatedAt:   room.CreatedAt,
		UpdatedAt:   room.UpdatedAt,
	}
}

func toApplicationMeeting(model persistence.Meeting) application.Meeting {
	meeting := application.Meeting{
		ID:          model.ID,
		Name:        model.Name,
		Description: cloneString(model.Description),
		Start:       model.Start,
		End:         model.End,
		OwnerID:     model.UserID,
		ETag:        model.ETag,
		Placeholder: model.Placeholder,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
	if model.RoomID != nil {
		meeting.RoomID = *model.RoomID
	}
	return meeting
}

// toPersistenceMeeting stores an empty room as NULL; placeholders have none.
func toPersistenceMeeting(meeting application.Meeting) persistence.Meeting {
	model := persistence.Meeting{
		ID:          meeting.ID,
		Name:        meeting.Name,
		Description: cloneString(meeting.Description),
		Start:       meeting.Start,
		End:         meeting.End,
		UserID:      meeting.OwnerID,
		ETag:        meeting.ETag,
		Placeholder: meeting.Placeholder,
		CreatedAt:   meeting.CreatedAt,
		UpdatedAt:   meeting.UpdatedAt,
	}
	if meeting.RoomID != "" {
		roomID := meeting.RoomID
		model.RoomID = &roomID
	}
	return model
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}
