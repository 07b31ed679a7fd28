// Package client is the composition root: it owns the scheduler, transport,
// caches and fetcher registry, and runs the reconnect protocol. The host UI
// drives it by calling Tick on a fixed short interval.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ourchat/ourchat-client/internal/chatlog"
	"github.com/ourchat/ourchat-client/internal/config"
	"github.com/ourchat/ourchat-client/internal/fetcher"
	"github.com/ourchat/ourchat-client/internal/lang"
	"github.com/ourchat/ourchat-client/internal/proto"
	"github.com/ourchat/ourchat-client/internal/scheduler"
	"github.com/ourchat/ourchat-client/internal/store"
	"github.com/ourchat/ourchat-client/internal/transport"
)

const closeTimeout = 5 * time.Second

// Notifier is the UI sink for user-visible notices. Kind is one of
// "warning", "error" or "restart".
type Notifier interface {
	Notify(kind, message string)
}

type Client struct {
	cfg      config.Config
	log      *zap.Logger
	sched    *scheduler.Scheduler
	cache    *store.Store
	records  *chatlog.ChatLog
	conn     *transport.Transport
	registry *fetcher.Registry
	lang     *lang.Table
	notifier Notifier
}

func New(cfg config.Config, notifier Notifier, log *zap.Logger) (*Client, error) {
	sched := scheduler.New(cfg.Advanced.WorkerPool, log)

	cache, err := store.Open(cfg.Advanced.CachePath)
	if err != nil {
		_ = sched.Close(closeTimeout)
		return nil, err
	}
	records, err := chatlog.Open(cfg.Advanced.RecordPath, sched, log)
	if err != nil {
		_ = cache.Close()
		_ = sched.Close(closeTimeout)
		return nil, err
	}

	conn := transport.New(sched, log)
	table := lang.Load("lang", cfg.General.Language)

	registry := fetcher.NewRegistry(fetcher.Deps{
		Bus:        sched,
		Sender:     conn,
		Store:      cache,
		Notifier:   notifier,
		Lang:       table,
		Downloader: fetcher.NewHTTPDownloader(15 * time.Second),
		Log:        log,
	})

	return &Client{
		cfg:      cfg,
		log:      log,
		sched:    sched,
		cache:    cache,
		records:  records,
		conn:     conn,
		registry: registry,
		lang:     table,
		notifier: notifier,
	}, nil
}

func (c *Client) addr() string {
	return fmt.Sprintf("%s:%d", c.cfg.Server.IP, c.cfg.Server.Port)
}

// Connect makes the initial connection and starts the receive loop on a pool
// worker.
func (c *Client) Connect() error {
	if err := c.conn.Connect(c.addr()); err != nil {
		return err
	}
	_, err := c.sched.Submit(func() (any, error) {
		c.receiveLoop()
		return nil, nil
	}, nil)
	return err
}

// receiveLoop blocks on the transport and owns the reconnect protocol. There
// is no message replay after a successful reconnect; missed frames are gone.
func (c *Client) receiveLoop() {
	for {
		err := c.conn.ReceiveLoop()
		switch {
		case err == nil:
			// locally initiated close
			return
		case errors.Is(err, transport.ErrServerClosed):
			c.escalateRestart("server_shutdown")
			return
		case errors.Is(err, transport.ErrConnectionLost):
			if c.reconnect() {
				c.log.Info("reconnected")
				continue
			}
			c.escalateRestart("disconnect")
			return
		default:
			c.log.Warn("receive loop ended", zap.Error(err))
			return
		}
	}
}

// reconnect attempts the configured number of single connects. No backoff
// beyond one attempt per call.
func (c *Client) reconnect() bool {
	attempts := c.cfg.Server.ReconnectionAttempt
	for i := 1; i <= attempts; i++ {
		c.log.Info("reconnecting", zap.Int("attempt", i), zap.Int("max", attempts))
		if err := c.conn.Connect(c.addr()); err == nil {
			return true
		}
	}
	return false
}

// escalateRestart surfaces the terminal disconnect condition. The host owns
// the actual restart/relogin flow.
func (c *Client) escalateRestart(reasonKey string) {
	c.sched.Publish(proto.ConnectionStatus{Status: proto.StatusServerError, Err: reasonKey})
	msg := c.lang.Text(reasonKey)
	c.sched.DeferToMainThread(func() {
		c.notifier.Notify("restart", msg)
	})
}

// Tick drives one drain-and-dispatch cycle; call it from the host UI loop.
func (c *Client) Tick() { c.sched.Tick() }

// Listen, Unlisten and Publish expose the event bus to UI layers.
func (c *Client) Listen(code proto.Code, fn scheduler.Handler) *scheduler.Subscription {
	return c.sched.Listen(code, fn)
}

func (c *Client) Unlisten(sub *scheduler.Subscription) error { return c.sched.Unlisten(sub) }

func (c *Client) Publish(ev proto.Event) { c.sched.Publish(ev) }

// GetAccount and GetSession are the identity-cached accessors.
func (c *Client) GetAccount(ocid string, me bool) *fetcher.Account {
	return c.registry.GetAccount(ocid, me)
}

func (c *Client) GetSession(sessionID string) *fetcher.Session {
	return c.registry.GetSession(sessionID)
}

func (c *Client) History(ctx context.Context, sessionID string, max int, before int64) ([]chatlog.MessageRow, error) {
	return c.records.History(ctx, sessionID, max, before)
}

func (c *Client) UnreadCount(sessionID string) int { return c.records.UnreadCount(sessionID) }

func (c *Client) MarkRead(ctx context.Context, sessionID string) error {
	return c.records.MarkRead(ctx, sessionID)
}

// SendMessage sends one outbound chat message; the server assigns its msg_id
// and pushes it back on the wire.
func (c *Client) SendMessage(sessionID string, msg []proto.Segment) error {
	return c.conn.Send(proto.NewSendMessageRequest(sessionID, msg))
}

// Text resolves a localized string, falling back to the key.
func (c *Client) Text(key string) string { return c.lang.Text(key) }

// Close tears down in the mandatory order: transport first so no new events
// arrive, then a bounded wait for outstanding workers, then the database
// handles. Closing the stores before the pool drains risks a write against a
// closed handle.
func (c *Client) Close() error {
	var firstErr error
	if err := c.conn.Close(); err != nil {
		firstErr = err
	}
	if err := c.sched.Close(closeTimeout); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := c.records.Close(c.sched); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := c.cache.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
