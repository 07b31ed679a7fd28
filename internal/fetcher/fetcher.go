// Package fetcher reconciles accounts and sessions against the local cache
// and the server using a two-phase staleness protocol: a cheap timestamp
// probe first, a full refetch only when the cache is stale, then a dependent
// avatar fetch.
package fetcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ourchat/ourchat-client/internal/proto"
	"github.com/ourchat/ourchat-client/internal/scheduler"
	"github.com/ourchat/ourchat-client/internal/store"
)

// State tracks one entity instance through its reconciliation lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateCacheCheck
	StateCacheHitValidating
	StateFullFetchPending
	StateReady
	StateAvatarPending
	StateComplete
)

// Bus is the slice of the scheduler the fetchers need.
type Bus interface {
	Listen(code proto.Code, fn scheduler.Handler) *scheduler.Subscription
	Unlisten(sub *scheduler.Subscription) error
	Publish(ev proto.Event)
	Submit(run scheduler.TaskFunc, onComplete scheduler.CompleteFunc) (*scheduler.Task, error)
	DeferToMainThread(fn func())
}

// Sender writes one request frame to the server.
type Sender interface {
	Send(req proto.Request) error
}

// Notifier is the UI sink for user-visible warnings.
type Notifier interface {
	Notify(kind, message string)
}

// Localizer resolves a message key, falling back to the key itself.
type Localizer interface {
	Text(key string) string
}

const (
	defaultAvatarAttempts = 5
	defaultRetryDelay     = 500 * time.Millisecond
)

type Deps struct {
	Bus        Bus
	Sender     Sender
	Store      *store.Store
	Notifier   Notifier
	Lang       Localizer
	Downloader Downloader
	Log        *zap.Logger
}

// Registry is the identity cache: at most one live Account per ocid and one
// live Session per session id. It is mutated only from tick-dispatched
// callbacks, so it needs no lock of its own.
type Registry struct {
	bus        Bus
	sender     Sender
	store      *store.Store
	notifier   Notifier
	lang       Localizer
	downloader Downloader
	log        *zap.Logger

	avatarAttempts int
	retryDelay     time.Duration

	accounts map[string]*Account
	sessions map[string]*Session
}

func NewRegistry(d Deps) *Registry {
	return &Registry{
		bus:            d.Bus,
		sender:         d.Sender,
		store:          d.Store,
		notifier:       d.Notifier,
		lang:           d.Lang,
		downloader:     d.Downloader,
		log:            d.Log,
		avatarAttempts: defaultAvatarAttempts,
		retryDelay:     defaultRetryDelay,
		accounts:       map[string]*Account{},
		sessions:       map[string]*Session{},
	}
}

// GetAccount returns the live instance for ocid, creating it (and kicking off
// its fetch) on first reference. A second call never re-issues requests.
func (r *Registry) GetAccount(ocid string, me bool) *Account {
	if a, ok := r.accounts[ocid]; ok {
		return a
	}
	a := newAccount(r, ocid, me)
	r.accounts[ocid] = a
	a.start()
	return a
}

func (r *Registry) GetSession(sessionID string) *Session {
	if s, ok := r.sessions[sessionID]; ok {
		return s
	}
	s := newSession(r, sessionID)
	r.sessions[sessionID] = s
	s.start()
	return s
}

// resolveAvatar runs on a pool goroutine: image cache hit by content hash,
// otherwise a bounded-retry download stored under its computed hash. Returns
// (nil, nil) when the entity has no avatar at all; the UI falls back to a
// placeholder.
func (r *Registry) resolveAvatar(hash, url string) ([]byte, error) {
	ctx := context.Background()
	data, err := r.store.GetImage(ctx, hash)
	if err != nil {
		return nil, errors.Wrap(err, "read image cache")
	}
	if data != nil {
		return data, nil
	}
	if url == "" {
		return nil, nil
	}

	var lastErr error
	for attempt := 1; attempt <= r.avatarAttempts; attempt++ {
		data, lastErr = r.downloader.Download(url)
		if lastErr == nil {
			sum := sha256.Sum256(data)
			key := hex.EncodeToString(sum[:])
			if err := r.store.SaveImage(ctx, key, data); err != nil {
				return nil, errors.Wrap(err, "write image cache")
			}
			return data, nil
		}
		if attempt < r.avatarAttempts {
			time.Sleep(r.retryDelay)
		}
	}
	return nil, errors.Wrapf(lastErr, "avatar download failed after %d attempts", r.avatarAttempts)
}

// warn surfaces a user-visible warning through the deferred-main-thread path.
func (r *Registry) warn(key, reasonKey string) {
	msg := r.lang.Text(key)
	if reasonKey != "" {
		msg += ": " + r.lang.Text(reasonKey)
	}
	r.bus.DeferToMainThread(func() {
		r.notifier.Notify("warning", msg)
	})
}

func statusReasonKey(s proto.Status) string {
	switch s {
	case proto.StatusServerError:
		return "server_error"
	case proto.StatusMaintenance:
		return "maintenance"
	case proto.StatusNotFound:
		return "not_found"
	default:
		return "unknown_error"
	}
}
