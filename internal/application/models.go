package application

import "time"

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID string
	Login  string
}

// User represents an account exposed by the application services. The
// password hash never appears here; see UserCredentials.
type User struct {
	ID        string
	Login     string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
}

// UserInput captures the fields required to register a user.
type UserInput struct {
	Login    string
	Password string
	Name     string
}

// UserPatch overlays only the fields present in an update payload.
type UserPatch struct {
	Login    *string
	Password *string
	Name     *string
}

// RegisterUserParams wraps the data required to register a user.
type RegisterUserParams struct {
	Input UserInput
}

// UpdateUserParams wraps the data required to update a user.
type UpdateUserParams struct {
	Principal Principal
	UserID    string
	Patch     UserPatch
}

// RoomInput captures caller provided room fields.
type RoomInput struct {
	Name        string
	Description *string
	Place       string
}

// Room represents a bookable meeting room. Availability is not stored on the
// room; it is derived from meetings on demand.
type Room struct {
	ID          string
	Name        string
	Description *string
	Place       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateRoomParams wraps the data required to create a room.
type CreateRoomParams struct {
	Principal Principal
	Input     RoomInput
}

// UpdateRoomParams wraps the data required to replace a room.
type UpdateRoomParams struct {
	Principal Principal
	RoomID    string
	Input     RoomInput
}

// ListParams carries equality filters and zero-based paging. Items of zero
// returns every match.
type ListParams struct {
	Filter map[string]string
	Page   int
	Items  int
}

// RoomPage is one page of a room listing.
type RoomPage struct {
	Items    []Room
	Page     int
	AllCount int
}

// Meeting represents a room reservation. A placeholder meeting is a pending
// reservation slot that has not been filled in yet.
type Meeting struct {
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

// MeetingInput captures caller provided meeting fields. RoomID is optional:
// when absent the room is defaulted from the stored meeting or auto-selected.
type MeetingInput struct {
	Name        string
	Description *string
	Start       time.Time
	End         time.Time
	RoomID      *string
}

// CreateMeetingParams wraps the data required to book a meeting directly.
type CreateMeetingParams struct {
	Principal Principal
	Input     MeetingInput
}

// SaveMeetingParams wraps the data required to update a meeting or
// materialize a reservation slot. IfMatch carries the caller's concurrency token.
type SaveMeetingParams struct {
	Principal Principal
	MeetingID string
	Input     MeetingInput
	IfMatch   string
}

// MoveMeetingParams wraps the data required to move a meeting to another room.
type MoveMeetingParams struct {
	Principal Principal
	MeetingID string
	RoomID    string
	IfMatch   string
}

// DeleteMeetingParams wraps the data required to cancel a meeting. IfMatch is
// optional; when present it must equal the stored token.
type DeleteMeetingParams struct {
	Principal Principal
	MeetingID string
	IfMatch   string
}

// MeetingResult is returned by every write that leaves a confirmed meeting.
// Created reports whether the call brought the meeting into existence, in
// which case Location points at its canonical resource path.
type MeetingResult struct {
	Meeting  Meeting
	Location string
	ETag     string
	Created  bool
}

// SlotResult describes an issued reservation slot. Created is false when a
// pending slot already held by the user was handed out again.
type SlotResult struct {
	MeetingID string
	Location  string
	ETag      string
	Created   bool
}

// ListMeetingsParams wraps the data required to list meetings.
type ListMeetingsParams struct {
	ListParams
	IncludePast bool
}

// MeetingPage is one page of a meeting listing.
type MeetingPage struct {
	Items    []Meeting
	Page     int
	AllCount int
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Login    string
	Password string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	User      User
	Token     string
	ExpiresIn time.Duration
	Reused    bool
}
