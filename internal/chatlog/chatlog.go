// Package chatlog keeps the append-only local message history and the
// per-session unread counters. Every inbound user message is appended
// automatically via its event subscription, whether or not any session UI is
// open.
package chatlog

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ourchat/ourchat-client/internal/proto"
	"github.com/ourchat/ourchat-client/internal/scheduler"
)

// MessageRow is one stored message. Append-only: nothing is ever mutated
// except Read, which flips false -> true once.
type MessageRow struct {
	SessionID  string `gorm:"primaryKey;type:varchar(26)" json:"session_id"`
	MsgID      int64  `gorm:"primaryKey;autoIncrement:false" json:"msg_id"`
	Time       int64  `gorm:"index;not null" json:"time"`
	Msg        string `gorm:"type:text;not null" json:"msg"`
	SenderOCID string `gorm:"column:sender_ocid;type:varchar(10);not null" json:"sender_ocid"`
	Read       bool   `gorm:"not null" json:"read"`
}

func (MessageRow) TableName() string { return "message_record" }

// Bus is the slice of the scheduler the chat log needs.
type Bus interface {
	Listen(code proto.Code, fn scheduler.Handler) *scheduler.Subscription
	Unlisten(sub *scheduler.Subscription) error
}

type ChatLog struct {
	db  *gorm.DB
	log *zap.Logger
	sub *scheduler.Subscription

	mu     sync.Mutex
	unread map[string]int
}

// Open connects to the record database, primes the unread counters with one
// grouped scan, and subscribes to inbound user messages.
func Open(path string, bus Bus, log *zap.Logger) (*ChatLog, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open record database")
	}
	if err := db.AutoMigrate(&MessageRow{}); err != nil {
		return nil, errors.Wrap(err, "migrate record table")
	}

	c := &ChatLog{db: db, log: log, unread: map[string]int{}}
	if err := c.primeUnread(); err != nil {
		return nil, err
	}
	c.sub = bus.Listen(proto.CodeUserMessage, c.onUserMessage)
	return c, nil
}

func (c *ChatLog) primeUnread() error {
	var rows []struct {
		SessionID string
		N         int
	}
	err := c.db.Model(&MessageRow{}).
		Select("session_id, COUNT(*) AS n").
		Where("read = ?", false).
		Group("session_id").
		Scan(&rows).Error
	if err != nil {
		return errors.Wrap(err, "prime unread counters")
	}
	c.mu.Lock()
	for _, r := range rows {
		c.unread[r.SessionID] = r.N
	}
	c.mu.Unlock()
	return nil
}

func (c *ChatLog) onUserMessage(ev proto.Event) {
	um, ok := ev.(proto.UserMessage)
	if !ok {
		return
	}
	if err := c.Append(context.Background(), um); err != nil {
		c.log.Error("append message record", zap.Int64("msg_id", um.MsgID), zap.Error(err))
	}
}

// Append stores one message and bumps the session's unread counter.
func (c *ChatLog) Append(ctx context.Context, um proto.UserMessage) error {
	payload, err := json.Marshal(um.Msg)
	if err != nil {
		return errors.Wrap(err, "encode message payload")
	}
	row := MessageRow{
		SessionID:  um.Sender.SessionID,
		MsgID:      um.MsgID,
		Time:       um.Time,
		Msg:        string(payload),
		SenderOCID: um.Sender.OCID,
	}
	if err := c.db.WithContext(ctx).Create(&row).Error; err != nil {
		return errors.Wrap(err, "insert message record")
	}
	c.mu.Lock()
	c.unread[row.SessionID]++
	c.mu.Unlock()
	return nil
}

// History returns up to max records strictly older than before (all of the
// most recent max when before <= 0), ordered oldest -> newest. Queried
// newest-first so "most recent N" stays cheap, then reversed.
func (c *ChatLog) History(ctx context.Context, sessionID string, max int, before int64) ([]MessageRow, error) {
	if max <= 0 {
		max = 50
	}
	q := c.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("time DESC").
		Limit(max)
	if before > 0 {
		q = q.Where("time < ?", before)
	}

	var rows []MessageRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "query message records")
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

// MarkRead flips every unread record of the session in one bulk update and
// resets the counter.
func (c *ChatLog) MarkRead(ctx context.Context, sessionID string) error {
	err := c.db.WithContext(ctx).Model(&MessageRow{}).
		Where("session_id = ? AND read = ?", sessionID, false).
		Update("read", true).Error
	if err != nil {
		return errors.Wrap(err, "mark session read")
	}
	c.mu.Lock()
	delete(c.unread, sessionID)
	c.mu.Unlock()
	return nil
}

// UnreadCount is an O(1) lookup against the primed in-memory counters.
func (c *ChatLog) UnreadCount(sessionID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unread[sessionID]
}

// Sessions lists every session id that has at least one stored message.
func (c *ChatLog) Sessions(ctx context.Context) ([]string, error) {
	var ids []string
	err := c.db.WithContext(ctx).Model(&MessageRow{}).
		Distinct("session_id").
		Order("session_id").
		Pluck("session_id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(err, "list sessions")
	}
	return ids, nil
}

// Close detaches the event subscription and closes the database.
func (c *ChatLog) Close(bus Bus) error {
	if c.sub != nil {
		if err := bus.Unlisten(c.sub); err != nil {
			c.log.Warn("unlisten user messages", zap.Error(err))
		}
		c.sub = nil
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
