package signal

import (
	"encoding/json"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawFrame(t *testing.T) {
	f := rawFrame(EventOffer, json.RawMessage(`{"a":"<b>&"}`))
	assert.Equal(t, `{"event":"webrtc-offer","data":{"a":"<b>&"}}`, string(f))

	f = rawFrame(EventPong, nil)
	assert.Equal(t, `{"event":"pong","data":{}}`, string(f))
}

func TestEncodeEvent(t *testing.T) {
	f, err := encodeEvent(EventUsersCount, usersCountPayload{RoomID: "4821", Count: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"users-count","data":{"roomId":"4821","count":2}}`, string(f))
}

func TestDecodePayload(t *testing.T) {
	var p joinRoomPayload
	assert.ErrorIs(t, decodePayload(nil, &p), errEmptyPayload)
	assert.ErrorIs(t, decodePayload(json.RawMessage("null"), &p), errEmptyPayload)
	assert.Error(t, decodePayload(json.RawMessage(`{"roomId":`), &p))
	assert.Error(t, decodePayload(json.RawMessage(`{"roomId":"r","user":{}}`), &p))

	require.NoError(t, decodePayload(json.RawMessage(`{"roomId":"r","user":{"username":"ann"}}`), &p))
	assert.Equal(t, "r", p.RoomID)
	assert.Equal(t, "ann", p.User.Username)
}

func TestDecodePayload_EmbeddedRoute(t *testing.T) {
	var p iceCandidatePayload
	err := decodePayload(json.RawMessage(`{"roomId":"r","to":"b","candidate":{"candidate":"x"}}`), &p)
	assert.Error(t, err, "from is required")

	err = decodePayload(json.RawMessage(`{"roomId":"r","from":"a","to":"b","candidate":{"candidate":"x"}}`), &p)
	require.NoError(t, err)
	assert.Equal(t, "b", p.To)
	assert.Equal(t, "x", p.Candidate.Candidate)
}

func TestCheckSDPType(t *testing.T) {
	desc := &webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"}
	assert.NoError(t, checkSDPType(desc, webrtc.SDPTypeOffer))
	assert.Error(t, checkSDPType(desc, webrtc.SDPTypeAnswer))
}

func TestRateLimiter(t *testing.T) {
	assert.Nil(t, NewRateLimiter(0, 10))

	var disabled *RateLimiter
	assert.True(t, disabled.Allow("s"))
	disabled.Forget("s")

	rl := NewRateLimiter(0.001, 1)
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "buckets are per session")

	rl.Forget("a")
	assert.True(t, rl.Allow("a"))
}
