package fetcher

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ourchat/ourchat-client/internal/proto"
	"github.com/ourchat/ourchat-client/internal/scheduler"
	"github.com/ourchat/ourchat-client/internal/store"
)

// Session is the live in-memory instance for one session id. Same lifecycle
// and threading rules as Account.
type Session struct {
	reg       *Registry
	sessionID string

	state      State
	data       proto.SessionData
	avatar     []byte
	haveInfo   bool
	haveAvatar bool

	infoSub *scheduler.Subscription
}

func newSession(r *Registry, sessionID string) *Session {
	return &Session{reg: r, sessionID: sessionID, state: StateUninitialized}
}

func (s *Session) SessionID() string        { return s.sessionID }
func (s *Session) State() State             { return s.state }
func (s *Session) Info() proto.SessionData  { return s.data }
func (s *Session) Avatar() []byte           { return s.avatar }
func (s *Session) HaveInfo() bool           { return s.haveInfo }
func (s *Session) HaveAvatar() bool         { return s.haveAvatar }

// Name returns the display name, falling back to the localized default when
// the session has none.
func (s *Session) Name() string {
	if s.data.Name != nil && *s.data.Name != "" {
		return *s.data.Name
	}
	return s.reg.lang.Text("default_session_name")
}

func (s *Session) start() {
	s.state = StateCacheCheck
	_, err := s.reg.bus.Submit(func() (any, error) {
		row, err := s.reg.store.GetSession(context.Background(), s.sessionID)
		if err != nil {
			return nil, errors.Wrap(err, "read session cache")
		}
		return row, nil
	}, s.onCacheRead)
	if err != nil {
		s.reg.log.Error("schedule session fetch", zap.String("session_id", s.sessionID), zap.Error(err))
	}
}

func (s *Session) onCacheRead(result any, err error) {
	if err != nil {
		s.reg.log.Error("session cache read failed", zap.String("session_id", s.sessionID), zap.Error(err))
		s.reg.warn("cache_read_failed", "")
		return
	}
	row, _ := result.(*store.SessionRow)
	if row == nil {
		s.sendFullRequest()
		return
	}
	s.data = sessionRowToData(row)
	s.state = StateCacheHitValidating
	s.infoSub = s.reg.bus.Listen(proto.CodeSessionInfoResponse, s.onProbeResponse)
	s.send(proto.NewSessionInfoRequest(s.sessionID, proto.SessionProbeValues))
}

func (s *Session) sendFullRequest() {
	s.state = StateFullFetchPending
	s.infoSub = s.reg.bus.Listen(proto.CodeSessionInfoResponse, s.onInfoResponse)
	s.send(proto.NewSessionInfoRequest(s.sessionID, proto.SessionRequestValues))
}

func (s *Session) send(req proto.Request) {
	if err := s.reg.sender.Send(req); err != nil {
		s.reg.log.Warn("send session info request", zap.String("session_id", s.sessionID), zap.Error(err))
		s.reg.warn("get_session_failed", "server_error")
	}
}

func (s *Session) onProbeResponse(ev proto.Event) {
	resp, ok := ev.(proto.SessionInfoResponse)
	if !ok {
		return
	}
	if resp.Status != proto.StatusOK {
		s.failInfo(resp.Status)
		return
	}
	if resp.Data.SessionID != s.sessionID {
		return
	}
	s.unlistenInfo()

	if s.data.UpdateTime == resp.Data.UpdateTime {
		s.finishInfo()
		return
	}
	s.sendFullRequest()
}

func (s *Session) onInfoResponse(ev proto.Event) {
	resp, ok := ev.(proto.SessionInfoResponse)
	if !ok {
		return
	}
	if resp.Status != proto.StatusOK {
		s.failInfo(resp.Status)
		return
	}
	if resp.Data.SessionID != s.sessionID {
		return
	}
	s.unlistenInfo()

	s.data = resp.Data
	if err := s.reg.store.SaveSession(context.Background(), sessionDataToRow(s.data)); err != nil {
		s.reg.log.Error("write session cache", zap.String("session_id", s.sessionID), zap.Error(err))
		s.reg.warn("cache_write_failed", "")
	}
	s.finishInfo()
}

// failInfo keeps the subscription alive; see Account.failInfo.
func (s *Session) failInfo(status proto.Status) {
	s.reg.log.Warn("get session info failed",
		zap.String("session_id", s.sessionID), zap.Stringer("status", status))
	s.reg.warn("get_session_failed", statusReasonKey(status))
}

func (s *Session) unlistenInfo() {
	if s.infoSub == nil {
		return
	}
	if err := s.reg.bus.Unlisten(s.infoSub); err != nil {
		s.reg.log.Error("unlisten session info response", zap.String("session_id", s.sessionID), zap.Error(err))
	}
	s.infoSub = nil
}

func (s *Session) finishInfo() {
	s.haveInfo = true
	s.state = StateReady
	s.reg.bus.Publish(proto.SessionFinishInfo{SessionID: s.sessionID})
	s.beginAvatar()
}

func (s *Session) beginAvatar() {
	s.state = StateAvatarPending
	hash, url := s.data.AvatarHash, s.data.Avatar
	_, err := s.reg.bus.Submit(func() (any, error) {
		return s.reg.resolveAvatar(hash, url)
	}, s.onAvatar)
	if err != nil {
		s.reg.log.Error("schedule avatar fetch", zap.String("session_id", s.sessionID), zap.Error(err))
	}
}

func (s *Session) onAvatar(result any, err error) {
	if err != nil {
		s.reg.warn("avatar_download_failed", "")
	} else if data, ok := result.([]byte); ok {
		s.avatar = data
	}
	s.haveAvatar = true
	s.state = StateComplete
	s.reg.bus.Publish(proto.SessionFinishAvatar{SessionID: s.sessionID})
}
