package fetcher

import (
	"github.com/ourchat/ourchat-client/internal/proto"
	"github.com/ourchat/ourchat-client/internal/store"
)

func accountRowToData(row *store.AccountRow) proto.AccountData {
	return proto.AccountData{
		OCID:             row.OCID,
		Nickname:         row.Nickname,
		Status:           row.Status,
		Avatar:           row.Avatar,
		AvatarHash:       row.AvatarHash,
		Time:             row.Time,
		PublicUpdateTime: row.PublicUpdateTime,
		UpdateTime:       row.UpdateTime,
		Sessions:         store.DecodeList(row.Sessions),
		Friends:          store.DecodeList(row.Friends),
	}
}

func accountDataToRow(d proto.AccountData) *store.AccountRow {
	return &store.AccountRow{
		OCID:             d.OCID,
		Nickname:         d.Nickname,
		Status:           d.Status,
		Avatar:           d.Avatar,
		AvatarHash:       d.AvatarHash,
		Time:             d.Time,
		PublicUpdateTime: d.PublicUpdateTime,
		UpdateTime:       d.UpdateTime,
		Sessions:         store.EncodeList(d.Sessions),
		Friends:          store.EncodeList(d.Friends),
	}
}

func sessionRowToData(row *store.SessionRow) proto.SessionData {
	return proto.SessionData{
		SessionID:  row.SessionID,
		Name:       row.Name,
		Avatar:     row.Avatar,
		AvatarHash: row.AvatarHash,
		Time:       row.Time,
		UpdateTime: row.UpdateTime,
		Members:    store.DecodeList(row.Members),
		Owner:      row.Owner,
	}
}

func sessionDataToRow(d proto.SessionData) *store.SessionRow {
	return &store.SessionRow{
		SessionID:  d.SessionID,
		Name:       d.Name,
		Avatar:     d.Avatar,
		AvatarHash: d.AvatarHash,
		Time:       d.Time,
		UpdateTime: d.UpdateTime,
		Members:    store.EncodeList(d.Members),
		Owner:      d.Owner,
	}
}
