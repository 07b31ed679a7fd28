package proto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeAccountInfoResponse(t *testing.T) {
	frame := []byte(`{
		"code": 11,
		"status": 0,
		"data": {
			"ocid": "0000000001",
			"nickname": "senlin",
			"status": 1,
			"avatar": "http://example.com/a.png",
			"avatar_hash": "abc",
			"time": 100,
			"public_update_time": 200,
			"update_time": 300,
			"sessions": ["114514"],
			"friends": []
		}
	}`)

	ev, err := Decode(frame)
	require.NoError(t, err)

	resp, ok := ev.(AccountInfoResponse)
	require.True(t, ok)
	require.Equal(t, StatusOK, resp.Status)
	require.Equal(t, "0000000001", resp.Data.OCID)
	require.Equal(t, []string{"114514"}, resp.Data.Sessions)
	require.NotNil(t, resp.Data.Friends)
	require.Empty(t, resp.Data.Friends)
	require.Equal(t, int64(200), resp.Data.PublicUpdateTime)
}

func TestDecodeSessionInfoResponseNullName(t *testing.T) {
	frame := []byte(`{
		"code": 13,
		"status": 0,
		"data": {
			"session_id": "114514",
			"name": null,
			"avatar": "",
			"avatar_hash": "",
			"time": 1,
			"update_time": 2,
			"members": ["0000000001"],
			"owner": "0000000001"
		}
	}`)

	ev, err := Decode(frame)
	require.NoError(t, err)

	resp := ev.(SessionInfoResponse)
	require.Nil(t, resp.Data.Name)
	require.Equal(t, "114514", resp.Data.SessionID)
}

func TestDecodeUserMessage(t *testing.T) {
	frame := []byte(`{
		"code": 14,
		"msg_id": 7,
		"time": 1700000000,
		"msg": [{"type": "text", "text": "hello"}],
		"sender": {"ocid": "0000000002", "session_id": "114514"}
	}`)

	ev, err := Decode(frame)
	require.NoError(t, err)

	um := ev.(UserMessage)
	require.Equal(t, int64(7), um.MsgID)
	require.Equal(t, "114514", um.Sender.SessionID)
	require.Len(t, um.Msg, 1)
	require.Equal(t, "hello", um.Msg[0].Text)
}

func TestDecodeRejectsUnknownAndMalformedFrames(t *testing.T) {
	_, err := Decode([]byte(`{"code": 9999}`))
	require.Error(t, err)

	_, err = Decode([]byte(`{"no_code": true}`))
	require.Error(t, err)

	_, err = Decode([]byte(`not json`))
	require.Error(t, err)
}

func TestRequestsCarryCodeAndRequestValues(t *testing.T) {
	req := NewAccountInfoRequest("0000000001", AccountProbeValues)
	raw, err := json.Marshal(req)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.EqualValues(t, 10, decoded["code"])
	require.Equal(t, "0000000001", decoded["ocid"])
	require.Len(t, decoded["request_values"], 3)
}

func TestSelfRequestValuesExtendBaseValues(t *testing.T) {
	require.Len(t, AccountSelfRequestValues, len(AccountRequestValues)+2)
	require.Contains(t, AccountSelfRequestValues, "sessions")
	require.Contains(t, AccountSelfRequestValues, "friends")
	// the base list must not have been mutated by the append
	require.NotContains(t, AccountRequestValues, "sessions")
}
