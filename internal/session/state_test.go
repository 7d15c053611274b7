package session

import (
	"testing"

	"github.com/raine/authclient/internal/claims"
	"github.com/stretchr/testify/assert"
)

const userToken = "x.eyJ1c2VyIjoxfQ.y"

func TestState_SetTokenDecodesClaims(t *testing.T) {
	s := New()
	assert.False(t, s.LoggedIn())

	err := s.SetToken(userToken)
	assert.NoError(t, err)

	snap := s.Snapshot()
	assert.True(t, snap.LoggedIn)
	assert.Equal(t, userToken, snap.AccessToken)
	assert.Equal(t, claims.Claims{"user": float64(1)}, snap.Claims)
}

func TestState_UndecodableTokenStillLogsIn(t *testing.T) {
	s := New()

	err := s.SetToken("opaque")
	var decodeErr *claims.DecodeError
	assert.ErrorAs(t, err, &decodeErr)

	snap := s.Snapshot()
	assert.True(t, snap.LoggedIn)
	assert.Equal(t, "opaque", snap.AccessToken)
	assert.Nil(t, snap.Claims)
}

func TestState_Clear(t *testing.T) {
	s := New()
	_ = s.SetToken(userToken)
	s.Clear()

	assert.Equal(t, Snapshot{}, s.Snapshot())
	assert.False(t, s.LoggedIn())
}

func TestState_SnapshotIsACopy(t *testing.T) {
	s := New()
	_ = s.SetToken(userToken)

	snap := s.Snapshot()
	snap.Claims["user"] = float64(99)

	assert.Equal(t, float64(1), s.Snapshot().Claims["user"])
}

func TestState_Subscribe(t *testing.T) {
	s := New()
	var got []Snapshot
	unsubscribe := s.Subscribe(func(snap Snapshot) {
		got = append(got, snap)
	})

	_ = s.SetToken(userToken)
	s.Clear()
	unsubscribe()
	unsubscribe()
	_ = s.SetToken(userToken)

	if assert.Len(t, got, 2) {
		assert.True(t, got[0].LoggedIn)
		assert.Equal(t, claims.Claims{"user": float64(1)}, got[0].Claims)
		assert.False(t, got[1].LoggedIn)
	}
}
