package room

import (
	"testing"
	"time"

	"flip7-server/pkg/flip7"
	"flip7-server/pkg/registry"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPitBoss_Dispatch(t *testing.T) {
	logger, _ := test.NewNullLogger()
	reg := registry.New(logger)
	_, err := reg.Create("g1", []flip7.PlayerInfo{{ID: "p1", Name: "One"}}, 1, flip7.DefaultOptions())
	require.NoError(t, err)

	p := NewPitBoss(logger, reg, nil, Options{})
	p.StartShift()
	defer p.EndShift()

	c1 := NewClient(nil, "g1")
	c2 := NewClient(nil, "g1")
	p.ClientConnected(c1)
	p.ClientConnected(c2)
	nextResponse(t, c1)
	nextResponse(t, c2)

	assert.Equal(t, 2, p.Connected("g1"))
	assert.Equal(t, 0, p.Connected("g2"))

	c1.ReceivedMessage(&PayloadIn{Kind: KindJoin, PlayerID: "p1"})
	assert.Equal(t, "p1", nextResponse(t, c1).PlayerID)
	nextResponse(t, c2)

	// a game with connected participants cannot be reaped
	assert.ErrorIs(t, p.Reap("g1"), flip7.ErrIllegalAction)

	p.ClientDisconnected(c1)
	res := nextResponse(t, c2)
	p1, _ := res.State.Player("p1")
	assert.Equal(t, flip7.StatusDisconnected, p1.Status)

	p.ClientDisconnected(c2)
	assert.Eventually(t, func() bool {
		return p.Connected("g1") == 0
	}, time.Second, 10*time.Millisecond)

	assert.NoError(t, p.Reap("g1"))
	assert.ErrorIs(t, p.Reap("g1"), flip7.ErrNotFound)
	assert.Equal(t, 0, reg.Len())
}

func TestPitBoss_ReapsIdleGames(t *testing.T) {
	logger, _ := test.NewNullLogger()
	reg := registry.New(logger)
	_, err := reg.Create("idle", nil, 1, flip7.DefaultOptions())
	require.NoError(t, err)
	_, err = reg.Create("busy", nil, 1, flip7.DefaultOptions())
	require.NoError(t, err)

	p := NewPitBoss(logger, reg, nil, Options{
		IdleTimeout:  time.Millisecond,
		ReapInterval: 20 * time.Millisecond,
	})
	p.StartShift()
	defer p.EndShift()

	c := NewClient(nil, "busy")
	p.ClientConnected(c)

	assert.Eventually(t, func() bool {
		return reg.Len() == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"busy"}, reg.IDs())
}

func TestPitBoss_EndShift(t *testing.T) {
	logger, _ := test.NewNullLogger()
	reg := registry.New(logger)
	_, err := reg.Create("g1", nil, 1, flip7.DefaultOptions())
	require.NoError(t, err)

	p := NewPitBoss(logger, reg, nil, Options{})
	p.StartShift()

	c := NewClient(nil, "g1")
	p.ClientConnected(c)
	p.EndShift()

	// calls after the shift ended do not block
	p.ClientDisconnected(c)
	assert.Equal(t, 0, p.Connected("g1"))
	assert.ErrorIs(t, p.Reap("g1"), flip7.ErrInternal)
}
