package store

import "encoding/json"

// AccountRow is the persisted snapshot of one account. Rows are replaced
// wholesale when fresh data arrives, never patched field by field.
type AccountRow struct {
	OCID             string `gorm:"column:ocid;primaryKey;type:varchar(10)" json:"ocid"`
	Nickname         string `gorm:"type:text;not null" json:"nickname"`
	Status           int    `gorm:"not null" json:"status"`
	Avatar           string `gorm:"type:text;not null" json:"avatar"`
	AvatarHash       string `gorm:"type:text;not null" json:"avatar_hash"`
	Time             int64  `gorm:"not null" json:"time"`
	PublicUpdateTime int64  `gorm:"not null" json:"public_update_time"`
	UpdateTime       int64  `gorm:"not null" json:"update_time"`

	// JSON-encoded id lists; empty for accounts other than the owner's.
	Sessions string `gorm:"type:text" json:"sessions"`
	Friends  string `gorm:"type:text" json:"friends"`
}

func (AccountRow) TableName() string { return "account_cache" }

type SessionRow struct {
	SessionID  string  `gorm:"primaryKey;type:varchar(26)" json:"session_id"`
	Name       *string `gorm:"type:text" json:"name"`
	Avatar     string  `gorm:"type:text" json:"avatar"`
	AvatarHash string  `gorm:"type:text" json:"avatar_hash"`
	Time       int64   `gorm:"not null" json:"time"`
	UpdateTime int64   `gorm:"not null" json:"update_time"`
	Members    string  `gorm:"type:text;not null" json:"members"`
	Owner      string  `gorm:"type:text;not null" json:"owner"`
}

func (SessionRow) TableName() string { return "session_cache" }

// ImageRow holds one downloaded blob keyed by its content hash.
type ImageRow struct {
	Hash string `gorm:"primaryKey;type:varchar(64)" json:"hash"`
	Data []byte `gorm:"not null" json:"-"`
}

func (ImageRow) TableName() string { return "image_cache" }

// EncodeList and DecodeList convert between id slices and the JSON text the
// cache columns hold. nil encodes to "" meaning absent.
func EncodeList(ids []string) string {
	if ids == nil {
		return ""
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return ""
	}
	return string(b)
}

func DecodeList(s string) []string {
	if s == "" {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(s), &ids); err != nil {
		return nil
	}
	return ids
}
