package proto

// Code identifies a frame or local event type. Codes below 100 travel on the
// wire; codes from 100 up are published locally and never serialized.
type Code int

const (
	CodeAccountInfo         Code = 10
	CodeAccountInfoResponse Code = 11
	CodeSessionInfo         Code = 12
	CodeSessionInfoResponse Code = 13
	CodeUserMessage         Code = 14
	CodeServerStatus        Code = 15

	CodeConnectionStatus    Code = 100
	CodeAccountFinishInfo   Code = 101
	CodeAccountFinishAvatar Code = 102
	CodeSessionFinishInfo   Code = 103
	CodeSessionFinishAvatar Code = 104
)

// Status is the server-reported outcome carried inside a well-formed response.
type Status int

const (
	StatusOK Status = iota
	StatusServerError
	StatusMaintenance
	StatusUnknownError
	StatusNotFound
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusServerError:
		return "server_error"
	case StatusMaintenance:
		return "under_maintenance"
	case StatusNotFound:
		return "not_found"
	default:
		return "unknown_error"
	}
}
