package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/example/roombook/internal/persistence"
)

var referenceNow = time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return referenceNow }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func at(hour, minute int) time.Time {
	return time.Date(2024, time.January, 1, hour, minute, 0, 0, time.UTC)
}

func sequence(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func strPtr(s string) *string { return &s }

func paginate[T any](items []T, page persistence.Page) []T {
	if page.Skip >= len(items) {
		return []T{}
	}
	items = items[page.Skip:]
	if page.Limit > 0 && page.Limit < len(items) {
		items = items[:page.Limit]
	}
	return items
}

type roomRepoStub struct {
	rooms   []Room
	saveErr error
	listErr error
	saved   []Room
	deleted []string
}

func (r *roomRepoStub) FindByID(_ context.Context, id string) (Room, error) {
	for _, room := range r.rooms {
		if room.ID == id {
			return room, nil
		}
	}
	return Room{}, persistence.ErrNotFound
}

func (r *roomRepoStub) FindByKey(_ context.Context, key, value string) (Room, error) {
	for _, room := range r.rooms {
		if key == "name" && room.Name == value {
			return room, nil
		}
	}
	return Room{}, persistence.ErrNotFound
}

func (r *roomRepoStub) List(_ context.Context, filter persistence.Filter, page persistence.Page) ([]Room, int, error) {
	if r.listErr != nil {
		return nil, 0, r.listErr
	}
	var out []Room
	for _, room := range r.rooms {
		if v, ok := filter["name"]; ok && room.Name != v {
			continue
		}
		if v, ok := filter["place"]; ok && room.Place != v {
			continue
		}
		out = append(out, room)
	}
	return paginate(out, page), len(out), nil
}

func (r *roomRepoStub) Save(_ context.Context, room Room) (string, error) {
	if r.saveErr != nil {
		return "", r.saveErr
	}
	if room.ID == "" {
		room.ID = fmt.Sprintf("room-%d", len(r.rooms)+1)
		r.rooms = append(r.rooms, room)
	} else {
		for i := range r.rooms {
			if r.rooms[i].ID == room.ID {
				r.rooms[i] = room
			}
		}
	}
	r.saved = append(r.saved, room)
	return room.ID, nil
}

func (r *roomRepoStub) Delete(_ context.Context, id string) error {
	for i, room := range r.rooms {
		if room.ID == id {
			r.rooms = append(r.rooms[:i], r.rooms[i+1:]...)
			r.deleted = append(r.deleted, id)
			return nil
		}
	}
	return persistence.ErrNotFound
}

func (r *roomRepoStub) DeleteMany(context.Context, persistence.Filter) (int, error) {
	return 0, fmt.Errorf("not supported")
}

type meetingRepoStub struct {
	meetings   []Meeting
	saveErr    error
	replaceErr error
	queries    []persistence.MeetingQuery
	pages      []persistence.Page
	nextID     int
	overlaps   int
}

func (r *meetingRepoStub) FindByID(_ context.Context, id string) (Meeting, error) {
	for _, m := range r.meetings {
		if m.ID == id {
			return m, nil
		}
	}
	return Meeting{}, persistence.ErrNotFound
}

func (r *meetingRepoStub) FindByKey(_ context.Context, key, value string) (Meeting, error) {
	for _, m := range r.meetings {
		if key == "etag" && m.ETag == value {
			return m, nil
		}
	}
	return Meeting{}, persistence.ErrNotFound
}

func (r *meetingRepoStub) List(ctx context.Context, filter persistence.Filter, page persistence.Page) ([]Meeting, int, error) {
	return r.Query(ctx, persistence.MeetingQuery{Filter: filter, IncludePlaceholders: true}, page)
}

func (r *meetingRepoStub) Query(_ context.Context, query persistence.MeetingQuery, page persistence.Page) ([]Meeting, int, error) {
	r.queries = append(r.queries, query)
	r.pages = append(r.pages, page)
	var out []Meeting
	for _, m := range r.meetings {
		if m.Placeholder && !query.IncludePlaceholders {
			continue
		}
		if query.EndsAfter != nil && !m.End.After(*query.EndsAfter) {
			continue
		}
		if !matchesMeeting(m, query.Filter) {
			continue
		}
		out = append(out, m)
	}
	return paginate(out, page), len(out), nil
}

func matchesMeeting(m Meeting, filter persistence.Filter) bool {
	for key, value := range filter {
		switch key {
		case "room_id":
			if m.RoomID != value {
				return false
			}
		case "user_id":
			if m.OwnerID != value {
				return false
			}
		case "name":
			if m.Name != value {
				return false
			}
		}
	}
	return true
}

func (r *meetingRepoStub) Overlapping(_ context.Context, roomID string, start, end time.Time) ([]Meeting, error) {
	r.overlaps++
	var out []Meeting
	for _, m := range r.meetings {
		if m.Placeholder || (roomID != "" && m.RoomID != roomID) {
			continue
		}
		if m.Start.Before(end) && m.End.After(start) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *meetingRepoStub) FindPlaceholder(_ context.Context, userID string) (Meeting, error) {
	for _, m := range r.meetings {
		if m.Placeholder && m.OwnerID == userID {
			return m, nil
		}
	}
	return Meeting{}, persistence.ErrNotFound
}

func (r *meetingRepoStub) Save(_ context.Context, meeting Meeting) (string, error) {
	if r.saveErr != nil {
		return "", r.saveErr
	}
	if meeting.ID == "" {
		r.nextID++
		meeting.ID = fmt.Sprintf("meeting-%d", r.nextID)
		r.meetings = append(r.meetings, meeting)
		return meeting.ID, nil
	}
	for i := range r.meetings {
		if r.meetings[i].ID == meeting.ID {
			r.meetings[i] = meeting
			return meeting.ID, nil
		}
	}
	r.meetings = append(r.meetings, meeting)
	return meeting.ID, nil
}

func (r *meetingRepoStub) Replace(_ context.Context, meeting Meeting, expectedETag string) error {
	if r.replaceErr != nil {
		return r.replaceErr
	}
	for i := range r.meetings {
		if r.meetings[i].ID != meeting.ID {
			continue
		}
		if r.meetings[i].ETag != expectedETag {
			return persistence.ErrStale
		}
		r.meetings[i] = meeting
		return nil
	}
	return persistence.ErrNotFound
}

func (r *meetingRepoStub) Delete(_ context.Context, id string) error {
	for i, m := range r.meetings {
		if m.ID == id {
			r.meetings = append(r.meetings[:i], r.meetings[i+1:]...)
			return nil
		}
	}
	return persistence.ErrNotFound
}

func (r *meetingRepoStub) DeleteMany(_ context.Context, filter persistence.Filter) (int, error) {
	kept := r.meetings[:0]
	deleted := 0
	for _, m := range r.meetings {
		if matchesMeeting(m, filter) {
			deleted++
			continue
		}
		kept = append(kept, m)
	}
	r.meetings = kept
	return deleted, nil
}

type userRepoStub struct {
	users   []UserCredentials
	saveErr error
}

func (r *userRepoStub) FindByID(_ context.Context, id string) (UserCredentials, error) {
	for _, u := range r.users {
		if u.User.ID == id {
			return u, nil
		}
	}
	return UserCredentials{}, persistence.ErrNotFound
}

func (r *userRepoStub) FindByKey(_ context.Context, key, value string) (UserCredentials, error) {
	for _, u := range r.users {
		if key == "login" && u.User.Login == value {
			return u, nil
		}
	}
	return UserCredentials{}, persistence.ErrNotFound
}

func (r *userRepoStub) List(_ context.Context, _ persistence.Filter, page persistence.Page) ([]UserCredentials, int, error) {
	return paginate(r.users, page), len(r.users), nil
}

func (r *userRepoStub) Save(_ context.Context, creds UserCredentials) (string, error) {
	if r.saveErr != nil {
		return "", r.saveErr
	}
	if creds.User.ID == "" {
		creds.User.ID = fmt.Sprintf("user-%d", len(r.users)+1)
		r.users = append(r.users, creds)
		return creds.User.ID, nil
	}
	for i := range r.users {
		if r.users[i].User.ID == creds.User.ID {
			r.users[i] = creds
		}
	}
	return creds.User.ID, nil
}

func (r *userRepoStub) Delete(_ context.Context, id string) error {
	for i, u := range r.users {
		if u.User.ID == id {
			r.users = append(r.users[:i], r.users[i+1:]...)
			return nil
		}
	}
	return persistence.ErrNotFound
}

func (r *userRepoStub) DeleteMany(context.Context, persistence.Filter) (int, error) {
	return 0, fmt.Errorf("not supported")
}

type sessionStoreStub struct {
	byToken map[string]string
	issued  []string
	err     error
}

func newSessionStoreStub() *sessionStoreStub {
	return &sessionStoreStub{byToken: make(map[string]string)}
}

func (s *sessionStoreStub) TokenForSubject(_ context.Context, userID string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	for token, subject := range s.byToken {
		if subject == userID {
			return token, nil
		}
	}
	return "", persistence.ErrNotFound
}

func (s *sessionStoreStub) Issue(_ context.Context, userID, token string, _ time.Duration) error {
	s.byToken[token] = userID
	s.issued = append(s.issued, token)
	return nil
}

func (s *sessionStoreStub) Resolve(_ context.Context, token string) (string, error) {
	userID, ok := s.byToken[token]
	if !ok {
		return "", persistence.ErrNotFound
	}
	return userID, nil
}

func (s *sessionStoreStub) Revoke(_ context.Context, token string) error {
	if _, ok := s.byToken[token]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.byToken, token)
	return nil
}

type metricsRecorder struct {
	booked   []string
	rejected []string
	slots    []bool
}

func (m *metricsRecorder) MeetingBooked(mode string)     { m.booked = append(m.booked, mode) }
func (m *metricsRecorder) BookingRejected(reason string) { m.rejected = append(m.rejected, reason) }
func (m *metricsRecorder) SlotIssued(reused bool)        { m.slots = append(m.slots, reused) }
