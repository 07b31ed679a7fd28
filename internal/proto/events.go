package proto

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Event is one decoded frame or local notification. Every variant carries
// exactly the fields its code requires; nothing downstream of the transport
// touches raw JSON.
type Event interface {
	EventCode() Code
}

// AccountData is the account snapshot a response carries. Sessions and
// Friends are only present for the caller's own account; nil otherwise.
type AccountData struct {
	OCID             string   `json:"ocid"`
	Nickname         string   `json:"nickname"`
	Status           int      `json:"status"`
	Avatar           string   `json:"avatar"`
	AvatarHash       string   `json:"avatar_hash"`
	Time             int64    `json:"time"`
	PublicUpdateTime int64    `json:"public_update_time"`
	UpdateTime       int64    `json:"update_time"`
	Sessions         []string `json:"sessions,omitempty"`
	Friends          []string `json:"friends,omitempty"`
}

// SessionData is the session snapshot a response carries. Name is nullable;
// the UI falls back to a default display name.
type SessionData struct {
	SessionID  string   `json:"session_id"`
	Name       *string  `json:"name"`
	Avatar     string   `json:"avatar"`
	AvatarHash string   `json:"avatar_hash"`
	Time       int64    `json:"time"`
	UpdateTime int64    `json:"update_time"`
	Members    []string `json:"members"`
	Owner      string   `json:"owner"`
}

type AccountInfoResponse struct {
	Status Status      `json:"status"`
	Data   AccountData `json:"data"`
}

func (AccountInfoResponse) EventCode() Code { return CodeAccountInfoResponse }

type SessionInfoResponse struct {
	Status Status      `json:"status"`
	Data   SessionData `json:"data"`
}

func (SessionInfoResponse) EventCode() Code { return CodeSessionInfoResponse }

// Segment is one typed piece of a message payload.
type Segment struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// MsgSender names the account a message came from and the session it belongs to.
type MsgSender struct {
	OCID      string `json:"ocid"`
	SessionID string `json:"session_id"`
}

type UserMessage struct {
	MsgID  int64     `json:"msg_id"`
	Time   int64     `json:"time"`
	Msg    []Segment `json:"msg"`
	Sender MsgSender `json:"sender"`
}

func (UserMessage) EventCode() Code { return CodeUserMessage }

type ServerStatus struct {
	Status Status `json:"status"`
}

func (ServerStatus) EventCode() Code { return CodeServerStatus }

// ConnectionStatus is published locally whenever a connect attempt finishes
// or the connection is lost for good.
type ConnectionStatus struct {
	Status Status
	Err    string
}

func (ConnectionStatus) EventCode() Code { return CodeConnectionStatus }

type AccountFinishInfo struct{ OCID string }

func (AccountFinishInfo) EventCode() Code { return CodeAccountFinishInfo }

type AccountFinishAvatar struct{ OCID string }

func (AccountFinishAvatar) EventCode() Code { return CodeAccountFinishAvatar }

type SessionFinishInfo struct{ SessionID string }

func (SessionFinishInfo) EventCode() Code { return CodeSessionFinishInfo }

type SessionFinishAvatar struct{ SessionID string }

func (SessionFinishAvatar) EventCode() Code { return CodeSessionFinishAvatar }

// Decode turns one wire frame into its typed event. Unknown or malformed
// frames return an error; the receive loop logs and skips them.
func Decode(frame []byte) (Event, error) {
	var head struct {
		Code *Code `json:"code"`
	}
	if err := json.Unmarshal(frame, &head); err != nil {
		return nil, errors.Wrap(err, "decode frame header")
	}
	if head.Code == nil {
		return nil, errors.New("frame has no code field")
	}

	switch *head.Code {
	case CodeAccountInfoResponse:
		var ev AccountInfoResponse
		if err := json.Unmarshal(frame, &ev); err != nil {
			return nil, errors.Wrap(err, "decode account info response")
		}
		return ev, nil
	case CodeSessionInfoResponse:
		var ev SessionInfoResponse
		if err := json.Unmarshal(frame, &ev); err != nil {
			return nil, errors.Wrap(err, "decode session info response")
		}
		return ev, nil
	case CodeUserMessage:
		var ev UserMessage
		if err := json.Unmarshal(frame, &ev); err != nil {
			return nil, errors.Wrap(err, "decode user message")
		}
		return ev, nil
	case CodeServerStatus:
		var ev ServerStatus
		if err := json.Unmarshal(frame, &ev); err != nil {
			return nil, errors.Wrap(err, "decode server status")
		}
		return ev, nil
	default:
		return nil, errors.Errorf("unknown frame code %d", *head.Code)
	}
}
