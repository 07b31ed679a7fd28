package fetcher

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ourchat/ourchat-client/internal/proto"
	"github.com/ourchat/ourchat-client/internal/scheduler"
	"github.com/ourchat/ourchat-client/internal/store"
)

// Account is the live in-memory instance for one ocid. All fields are
// mutated only from tick-dispatched callbacks.
type Account struct {
	reg  *Registry
	ocid string
	me   bool

	state      State
	data       proto.AccountData
	avatar     []byte
	haveInfo   bool
	haveAvatar bool

	infoSub *scheduler.Subscription

	// populated for the owner's own account after the info fetch
	sessions map[string]*Session
	friends  map[string]*Account
}

func newAccount(r *Registry, ocid string, me bool) *Account {
	return &Account{
		reg:      r,
		ocid:     ocid,
		me:       me,
		state:    StateUninitialized,
		sessions: map[string]*Session{},
		friends:  map[string]*Account{},
	}
}

func (a *Account) OCID() string                 { return a.ocid }
func (a *Account) Me() bool                     { return a.me }
func (a *Account) State() State                 { return a.state }
func (a *Account) Info() proto.AccountData      { return a.data }
func (a *Account) Avatar() []byte               { return a.avatar }
func (a *Account) HaveInfo() bool               { return a.haveInfo }
func (a *Account) HaveAvatar() bool             { return a.haveAvatar }
func (a *Account) Sessions() map[string]*Session { return a.sessions }
func (a *Account) Friends() map[string]*Account  { return a.friends }

// start schedules the cache read on the pool; everything after the read runs
// back on the tick goroutine.
func (a *Account) start() {
	a.state = StateCacheCheck
	_, err := a.reg.bus.Submit(func() (any, error) {
		row, err := a.reg.store.GetAccount(context.Background(), a.ocid)
		if err != nil {
			return nil, errors.Wrap(err, "read account cache")
		}
		return row, nil
	}, a.onCacheRead)
	if err != nil {
		a.reg.log.Error("schedule account fetch", zap.String("ocid", a.ocid), zap.Error(err))
	}
}

func (a *Account) onCacheRead(result any, err error) {
	if err != nil {
		// cached state can no longer be trusted
		a.reg.log.Error("account cache read failed", zap.String("ocid", a.ocid), zap.Error(err))
		a.reg.warn("cache_read_failed", "")
		return
	}
	row, _ := result.(*store.AccountRow)
	if row == nil {
		a.sendFullRequest()
		return
	}
	a.data = accountRowToData(row)
	a.state = StateCacheHitValidating
	a.infoSub = a.reg.bus.Listen(proto.CodeAccountInfoResponse, a.onProbeResponse)
	a.send(proto.NewAccountInfoRequest(a.ocid, proto.AccountProbeValues))
}

func (a *Account) sendFullRequest() {
	a.state = StateFullFetchPending
	a.infoSub = a.reg.bus.Listen(proto.CodeAccountInfoResponse, a.onInfoResponse)
	values := proto.AccountRequestValues
	if a.me {
		values = proto.AccountSelfRequestValues
	}
	a.send(proto.NewAccountInfoRequest(a.ocid, values))
}

func (a *Account) send(req proto.Request) {
	if err := a.reg.sender.Send(req); err != nil {
		a.reg.log.Warn("send account info request", zap.String("ocid", a.ocid), zap.Error(err))
		a.reg.warn("get_account_info_failed", "server_error")
	}
}

// onProbeResponse handles the minimal timestamp probe. Exactly one response
// is expected per request, so the subscription is dropped before acting.
func (a *Account) onProbeResponse(ev proto.Event) {
	resp, ok := ev.(proto.AccountInfoResponse)
	if !ok {
		return
	}
	if resp.Status != proto.StatusOK {
		a.failInfo(resp.Status)
		return
	}
	if resp.Data.OCID != a.ocid {
		// another instance's response
		return
	}
	a.unlistenInfo()

	cached, cloud := a.data.PublicUpdateTime, resp.Data.PublicUpdateTime
	if a.me {
		cached, cloud = a.data.UpdateTime, resp.Data.UpdateTime
	}
	if cached == cloud {
		a.finishInfo()
		return
	}
	a.sendFullRequest()
}

func (a *Account) onInfoResponse(ev proto.Event) {
	resp, ok := ev.(proto.AccountInfoResponse)
	if !ok {
		return
	}
	if resp.Status != proto.StatusOK {
		a.failInfo(resp.Status)
		return
	}
	if resp.Data.OCID != a.ocid {
		return
	}
	a.unlistenInfo()

	a.data = resp.Data
	if !a.me {
		a.data.Sessions = nil
		a.data.Friends = nil
	}
	if err := a.reg.store.SaveAccount(context.Background(), accountDataToRow(a.data)); err != nil {
		a.reg.log.Error("write account cache", zap.String("ocid", a.ocid), zap.Error(err))
		a.reg.warn("cache_write_failed", "")
	}
	a.finishInfo()
}

// failInfo warns and leaves the entity in its current (possibly stale-cached
// or empty) state. It keeps the subscription: error responses carry no entity
// id, so this instance cannot tell whether the error was its own, and a later
// response for its id must still land.
func (a *Account) failInfo(status proto.Status) {
	a.reg.log.Warn("get account info failed",
		zap.String("ocid", a.ocid), zap.Stringer("status", status))
	a.reg.warn("get_account_info_failed", statusReasonKey(status))
}

func (a *Account) unlistenInfo() {
	if a.infoSub == nil {
		return
	}
	if err := a.reg.bus.Unlisten(a.infoSub); err != nil {
		a.reg.log.Error("unlisten account info response", zap.String("ocid", a.ocid), zap.Error(err))
	}
	a.infoSub = nil
}

func (a *Account) finishInfo() {
	if a.me {
		for _, sid := range a.data.Sessions {
			a.sessions[sid] = a.reg.GetSession(sid)
		}
		for _, fid := range a.data.Friends {
			a.friends[fid] = a.reg.GetAccount(fid, false)
		}
	}
	a.haveInfo = true
	a.state = StateReady
	a.reg.bus.Publish(proto.AccountFinishInfo{OCID: a.ocid})
	a.beginAvatar()
}

func (a *Account) beginAvatar() {
	a.state = StateAvatarPending
	hash, url := a.data.AvatarHash, a.data.Avatar
	_, err := a.reg.bus.Submit(func() (any, error) {
		return a.reg.resolveAvatar(hash, url)
	}, a.onAvatar)
	if err != nil {
		a.reg.log.Error("schedule avatar fetch", zap.String("ocid", a.ocid), zap.Error(err))
	}
}

// onAvatar marks the avatar attempt finished even after exhausted retries so
// callers never spin waiting for it.
func (a *Account) onAvatar(result any, err error) {
	if err != nil {
		a.reg.warn("avatar_download_failed", "")
	} else if data, ok := result.([]byte); ok {
		a.avatar = data
	}
	a.haveAvatar = true
	a.state = StateComplete
	a.reg.bus.Publish(proto.AccountFinishAvatar{OCID: a.ocid})
}
