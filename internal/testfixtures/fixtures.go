package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/roombook/internal/application"
	"github.com/example/roombook/internal/persistence"
	"github.com/example/roombook/internal/scheduler"
)

var (
	userCounter    uint64
	roomCounter    uint64
	meetingCounter uint64
)

// referenceTime is a Monday morning so that hour offsets read naturally.
var referenceTime = time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// At returns ReferenceTime shifted by the given hours and minutes.
func At(hours, minutes int) time.Time {
	return referenceTime.Add(time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute)
}

// ----------------------------- User fixtures -----------------------------

// UserFixture is a deterministic account usable at every layer.
type UserFixture struct {
	ID           string
	Login        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a user with a unique login.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	fixture := UserFixture{
		ID:           fmt.Sprintf("user-%03d", idx),
		Login:        fmt.Sprintf("user%03d", idx),
		Name:         fmt.Sprintf("User %03d", idx),
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		CreatedAt:    referenceTime,
		UpdatedAt:    referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

func WithUserID(id string) UserOption {
	return func(f *UserFixture) { f.ID = id }
}

func WithUserLogin(login string) UserOption {
	return func(f *UserFixture) { f.Login = login }
}

func WithUserName(name string) UserOption {
	return func(f *UserFixture) { f.Name = name }
}

func WithUserPasswordHash(hash string) UserOption {
	return func(f *UserFixture) { f.PasswordHash = hash }
}

// Credentials returns the application view including the password hash.
func (f UserFixture) Credentials() application.UserCredentials {
	return application.UserCredentials{
		User: application.User{
			ID:        f.ID,
			Login:     f.Login,
			Name:      f.Name,
			CreatedAt: f.CreatedAt,
			UpdatedAt: f.UpdatedAt,
		},
		PasswordHash: f.PasswordHash,
	}
}

func (f UserFixture) Principal() application.Principal {
	return application.Principal{UserID: f.ID, Login: f.Login}
}

// Persistence returns the stored record. The ID is kept; clear it to let the
// repository assign one.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:           f.ID,
		Login:        f.Login,
		PasswordHash: f.PasswordHash,
		Name:         f.Name,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// Input returns registration input with the given plain text password.
func (f UserFixture) Input(password string) application.UserInput {
	return application.UserInput{Login: f.Login, Password: password, Name: f.Name}
}

// ----------------------------- Room fixtures -----------------------------

// RoomFixture is a deterministic room usable at every layer.
type RoomFixture struct {
	ID          string
	Name        string
	Description *string
	Place       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RoomOption configures the generated room fixture.
type RoomOption func(*RoomFixture)

// NewRoomFixture returns a room on a deterministic floor.
func NewRoomFixture(opts ...RoomOption) RoomFixture {
	idx := atomic.AddUint64(&roomCounter, 1)
	fixture := RoomFixture{
		ID:        fmt.Sprintf("room-%03d", idx),
		Name:      fmt.Sprintf("Room %03d", idx),
		Place:     fmt.Sprintf("%dF", idx%10+1),
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

func WithRoomID(id string) RoomOption {
	return func(f *RoomFixture) { f.ID = id }
}

func WithRoomName(name string) RoomOption {
	return func(f *RoomFixture) { f.Name = name }
}

func WithRoomPlace(place string) RoomOption {
	return func(f *RoomFixture) { f.Place = place }
}

func WithRoomDescription(description string) RoomOption {
	return func(f *RoomFixture) { f.Description = &description }
}

func (f RoomFixture) Application() application.Room {
	return application.Room{
		ID:          f.ID,
		Name:        f.Name,
		Description: f.Description,
		Place:       f.Place,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

func (f RoomFixture) Persistence() persistence.Room {
	return persistence.Room{
		ID:          f.ID,
		Name:        f.Name,
		Description: f.Description,
		Place:       f.Place,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

func (f RoomFixture) Input() application.RoomInput {
	return application.RoomInput{Name: f.Name, Description: f.Description, Place: f.Place}
}

// --------------------------- Meeting fixtures ----------------------------

// MeetingFixture is a deterministic confirmed meeting, one hour long by default.
type MeetingFixture struct {
	ID          string
	Name        string
	Description *string
	Start       time.Time
	End         time.Time
	RoomID      string
	OwnerID     string
	ETag        string
	Placeholder bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MeetingOption configures the generated meeting fixture.
type MeetingOption func(*MeetingFixture)

func NewMeetingFixture(opts ...MeetingOption) MeetingFixture {
	idx := atomic.AddUint64(&meetingCounter, 1)
	fixture := MeetingFixture{
		ID:        fmt.Sprintf("meeting-%03d", idx),
		Name:      fmt.Sprintf("Meeting %03d", idx),
		Start:     referenceTime,
		End:       referenceTime.Add(time.Hour),
		ETag:      fmt.Sprintf("etag-%03d", idx),
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

func WithMeetingID(id string) MeetingOption {
	return func(f *MeetingFixture) { f.ID = id }
}

func WithMeetingName(name string) MeetingOption {
	return func(f *MeetingFixture) { f.Name = name }
}

func WithMeetingWindow(start, end time.Time) MeetingOption {
	return func(f *MeetingFixture) {
		f.Start = start
		f.End = end
	}
}

func WithMeetingRoom(roomID string) MeetingOption {
	return func(f *MeetingFixture) { f.RoomID = roomID }
}

func WithMeetingOwner(userID string) MeetingOption {
	return func(f *MeetingFixture) { f.OwnerID = userID }
}

func WithMeetingETag(etag string) MeetingOption {
	return func(f *MeetingFixture) { f.ETag = etag }
}

// AsPlaceholder turns the fixture into a pending reservation slot: no room,
// no name, no window.
func AsPlaceholder() MeetingOption {
	return func(f *MeetingFixture) {
		f.Placeholder = true
		f.Name = ""
		f.RoomID = ""
		f.Start = time.Time{}
		f.End = time.Time{}
	}
}

func (f MeetingFixture) Application() application.Meeting {
	return application.Meeting{
		ID:          f.ID,
		Name:        f.Name,
		Description: f.Description,
		Start:       f.Start,
		End:         f.End,
		RoomID:      f.RoomID,
		OwnerID:     f.OwnerID,
		ETag:        f.ETag,
		Placeholder: f.Placeholder,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

func (f MeetingFixture) Persistence() persistence.Meeting {
	model := persistence.Meeting{
		ID:          f.ID,
		Name:        f.Name,
		Description: f.Description,
		Start:       f.Start,
		End:         f.End,
		UserID:      f.OwnerID,
		ETag:        f.ETag,
		Placeholder: f.Placeholder,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
	if f.RoomID != "" {
		roomID := f.RoomID
		model.RoomID = &roomID
	}
	return model
}

// Input returns caller input booking the fixture's window, pinned to its room
// when one is set.
func (f MeetingFixture) Input() application.MeetingInput {
	input := application.MeetingInput{
		Name:        f.Name,
		Description: f.Description,
		Start:       f.Start,
		End:         f.End,
	}
	if f.RoomID != "" {
		roomID := f.RoomID
		input.RoomID = &roomID
	}
	return input
}

// Booking returns the availability engine's view of the meeting.
func (f MeetingFixture) Booking() scheduler.Booking {
	return scheduler.Booking{
		ID:          f.ID,
		RoomID:      f.RoomID,
		Start:       f.Start,
		End:         f.End,
		Placeholder: f.Placeholder,
	}
}
