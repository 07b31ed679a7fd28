package proto

// Request is an outbound frame. The server echoes exactly the fields named in
// a request's request_values list.
type Request interface {
	RequestCode() Code
}

// Field-name lists for info requests. The probe variants ask only for the
// authoritative timestamps used by the staleness check.
var (
	AccountRequestValues     = []string{"ocid", "nickname", "status", "avatar", "avatar_hash", "time", "public_update_time", "update_time"}
	AccountSelfRequestValues = append(append([]string{}, AccountRequestValues...), "sessions", "friends")
	AccountProbeValues       = []string{"ocid", "public_update_time", "update_time"}

	SessionRequestValues = []string{"session_id", "name", "avatar", "avatar_hash", "time", "update_time", "members", "owner"}
	SessionProbeValues   = []string{"session_id", "update_time"}
)

type AccountInfoRequest struct {
	Code          Code     `json:"code"`
	OCID          string   `json:"ocid"`
	RequestValues []string `json:"request_values"`
}

func (AccountInfoRequest) RequestCode() Code { return CodeAccountInfo }

func NewAccountInfoRequest(ocid string, values []string) AccountInfoRequest {
	return AccountInfoRequest{Code: CodeAccountInfo, OCID: ocid, RequestValues: values}
}

type SessionInfoRequest struct {
	Code          Code     `json:"code"`
	SessionID     string   `json:"session_id"`
	RequestValues []string `json:"request_values"`
}

func (SessionInfoRequest) RequestCode() Code { return CodeSessionInfo }

func NewSessionInfoRequest(sessionID string, values []string) SessionInfoRequest {
	return SessionInfoRequest{Code: CodeSessionInfo, SessionID: sessionID, RequestValues: values}
}

// SendMessageRequest carries an outbound chat message. The server assigns the
// final msg_id and pushes the message back as a UserMessage frame.
type SendMessageRequest struct {
	Code      Code      `json:"code"`
	SessionID string    `json:"session_id"`
	Msg       []Segment `json:"msg"`
}

func (SendMessageRequest) RequestCode() Code { return CodeUserMessage }

func NewSendMessageRequest(sessionID string, msg []Segment) SendMessageRequest {
	return SendMessageRequest{Code: CodeUserMessage, SessionID: sessionID, Msg: msg}
}
