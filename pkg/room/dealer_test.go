package room

import (
	"sync"
	"testing"
	"time"

	"flip7-server/pkg/flip7"
	"flip7-server/pkg/registry"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu       sync.Mutex
	versions []int64
}

func (r *recordingPublisher) Publish(gameID string, snap *flip7.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.versions = append(r.versions, snap.Version)
	return nil
}

func (r *recordingPublisher) Versions() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]int64{}, r.versions...)
}

func TestDealer_AddClient(t *testing.T) {
	logger, _ := test.NewNullLogger()
	d := NewDealer(logger, registry.New(logger), nil, "g1", 0)
	c := NewClient(nil, "g1")
	c2 := NewClient(nil, "g1")

	d.AddClient(c)
	d.AddClient(c2)
	assert.Equal(t, 2, len(d.Clients()))

	assert.False(t, d.RemoveClient(c))
	assert.True(t, d.RemoveClient(c2))
}

func TestDealer_Join(t *testing.T) {
	d, _ := newTestDealer(t)
	c1 := addClient(t, d)
	c2 := addClient(t, d)

	d.ReceivedMessage(c1, &PayloadIn{Kind: KindJoin, Name: "Alice", Context: "a"})
	res := nextResponse(t, c1)
	assert.Equal(t, KindSyncState, res.Kind)
	assert.Equal(t, "a", res.Context)
	assert.NotEmpty(t, res.PlayerID)
	assert.Equal(t, res.PlayerID, c1.PlayerID())
	require.Len(t, res.State.Players, 3)
	assert.Equal(t, "Alice", res.State.Players[2].Name)

	res = nextResponse(t, c2)
	assert.Equal(t, KindSyncState, res.Kind)
	assert.Equal(t, "", res.Context)
	assert.Equal(t, "", res.PlayerID)
	assert.Len(t, res.State.Players, 3)

	// taking an existing seat
	d.ReceivedMessage(c2, &PayloadIn{Kind: KindJoin, PlayerID: "p2"})
	res = nextResponse(t, c2)
	assert.Equal(t, KindSyncState, res.Kind)
	assert.Equal(t, "p2", res.PlayerID)
	assertNoResponse(t, c1)

	// switching seats is not allowed
	d.ReceivedMessage(c2, &PayloadIn{Kind: KindJoin, PlayerID: "p1"})
	res = nextResponse(t, c2)
	assert.Equal(t, KindError, res.Kind)
	assert.Equal(t, flip7.CodeIllegalAction, res.Code)
}

func TestDealer_Join_SeatHeldByAnotherConnection(t *testing.T) {
	d, reg := newTestDealer(t)
	c1 := addClient(t, d)
	c2 := addClient(t, d)

	d.ReceivedMessage(c1, &PayloadIn{Kind: KindJoin, PlayerID: "p1"})
	assert.Equal(t, "p1", nextResponse(t, c1).PlayerID)
	nextResponse(t, c2)

	d.ReceivedMessage(c2, &PayloadIn{Kind: KindJoin, PlayerID: "p1", Context: "dup"})
	res := nextResponse(t, c2)
	assert.Equal(t, KindError, res.Kind)
	assert.Equal(t, flip7.CodeIllegalAction, res.Code)
	assert.Equal(t, "dup", res.Context)
	assert.Equal(t, "", c2.PlayerID())
	assertNoResponse(t, c1)

	snap, _ := reg.Snapshot("g1")
	assert.Len(t, snap.Players, 2)
}

func TestDealer_RejectedActionOnlyReachesSender(t *testing.T) {
	d, reg := newTestDealer(t)
	c1, c2 := joinBoth(t, d)

	d.ReceivedMessage(c1, &PayloadIn{Kind: KindStartGame, Context: "start"})
	res := nextResponse(t, c1)
	assert.Equal(t, "start", res.Context)
	assert.Equal(t, flip7.PhaseRoundInProgress, res.State.Phase)
	assert.Equal(t, flip7.PhaseRoundInProgress, nextResponse(t, c2).State.Phase)

	before, err := reg.Snapshot("g1")
	require.NoError(t, err)
	beforeJSON, err := before.JSON()
	require.NoError(t, err)

	d.ReceivedMessage(c2, &PayloadIn{Kind: KindDraw, Context: "x"})
	res = nextResponse(t, c2)
	assert.Equal(t, KindError, res.Kind)
	assert.Equal(t, flip7.CodeIllegalAction, res.Code)
	assert.Equal(t, "x", res.Context)
	assertNoResponse(t, c1)

	after, err := reg.Snapshot("g1")
	require.NoError(t, err)
	afterJSON, err := after.JSON()
	require.NoError(t, err)
	assert.Equal(t, string(beforeJSON), string(afterJSON))

	// acting for someone else
	d.ReceivedMessage(c2, &PayloadIn{Kind: KindDraw, PlayerID: "p1"})
	assert.Equal(t, flip7.CodeIllegalAction, nextResponse(t, c2).Code)

	d.ReceivedMessage(c1, &PayloadIn{Kind: KindStay})
	assert.Equal(t, "p2", nextResponse(t, c1).State.CurrentPlayerID)
	assert.Equal(t, "p2", nextResponse(t, c2).State.CurrentPlayerID)
}

func TestDealer_MustJoinBeforeActing(t *testing.T) {
	d, _ := newTestDealer(t)
	c := addClient(t, d)

	d.ReceivedMessage(c, &PayloadIn{Kind: KindStartGame})
	res := nextResponse(t, c)
	assert.Equal(t, KindError, res.Kind)
	assert.Equal(t, flip7.CodeIllegalAction, res.Code)

	d.ReceivedMessage(c, &PayloadIn{Kind: "shuffle"})
	res = nextResponse(t, c)
	assert.Equal(t, flip7.CodeValidation, res.Code)
}

func TestDealer_Pause(t *testing.T) {
	d, _ := newTestDealer(t)
	c1, c2 := joinBoth(t, d)

	// only the host pauses
	d.ReceivedMessage(c2, &PayloadIn{Kind: KindPause})
	assert.Equal(t, flip7.CodeIllegalAction, nextResponse(t, c2).Code)

	d.ReceivedMessage(c1, &PayloadIn{Kind: KindPause})
	assert.True(t, nextResponse(t, c1).State.Paused)
	assert.True(t, nextResponse(t, c2).State.Paused)

	for _, kind := range []string{KindStartGame, KindDraw, KindStay, KindPause} {
		d.ReceivedMessage(c1, &PayloadIn{Kind: kind})
		res := nextResponse(t, c1)
		assert.Equal(t, KindError, res.Kind, kind)
		assert.Equal(t, flip7.CodeIllegalAction, res.Code, kind)
	}

	// observers can still join while paused
	c3 := addClient(t, d)
	d.ReceivedMessage(c3, &PayloadIn{Kind: KindJoin, Name: "Carol"})
	assert.Equal(t, KindSyncState, nextResponse(t, c3).Kind)
	nextResponse(t, c1)
	nextResponse(t, c2)

	d.ReceivedMessage(c1, &PayloadIn{Kind: KindResume})
	assert.False(t, nextResponse(t, c1).State.Paused)

	d.ReceivedMessage(c1, &PayloadIn{Kind: KindStartGame})
	assert.Equal(t, flip7.PhaseRoundInProgress, nextResponse(t, c1).State.Phase)
}

func TestDealer_HostRejoinsWhilePaused(t *testing.T) {
	d, reg := newTestDealer(t)
	c1, c2 := joinBoth(t, d)

	d.ReceivedMessage(c1, &PayloadIn{Kind: KindPause})
	nextResponse(t, c1)
	nextResponse(t, c2)

	assert.False(t, d.RemoveClient(c1))
	res := nextResponse(t, c2)
	p1, _ := res.State.Player("p1")
	assert.Equal(t, flip7.StatusDisconnected, p1.Status)
	assert.True(t, res.State.Paused)

	c3 := addClient(t, d)
	d.ReceivedMessage(c3, &PayloadIn{Kind: KindJoin, PlayerID: "p1"})
	res = nextResponse(t, c3)
	assert.Equal(t, "p1", res.PlayerID)
	p1, _ = res.State.Player("p1")
	assert.Equal(t, flip7.StatusActive, p1.Status)
	nextResponse(t, c2)

	d.ReceivedMessage(c3, &PayloadIn{Kind: KindResume})
	assert.False(t, nextResponse(t, c3).State.Paused)

	snap, err := reg.Snapshot("g1")
	require.NoError(t, err)
	assert.False(t, snap.Paused)
}

func TestDealer_RemoveClientDisconnectsSeat(t *testing.T) {
	d, reg := newTestDealer(t)
	c1, c2 := joinBoth(t, d)

	assert.False(t, d.RemoveClient(c2))
	res := nextResponse(t, c1)
	p2, ok := res.State.Player("p2")
	assert.True(t, ok)
	assert.Equal(t, flip7.StatusDisconnected, p2.Status)

	// a new connection can take the seat back
	c3 := addClient(t, d)
	d.ReceivedMessage(c3, &PayloadIn{Kind: KindJoin, PlayerID: "p2"})
	res = nextResponse(t, c3)
	assert.Equal(t, "p2", res.PlayerID)
	p2, _ = res.State.Player("p2")
	assert.Equal(t, flip7.StatusActive, p2.Status)

	snap, _ := reg.Snapshot("g1")
	assert.Len(t, snap.Players, 2)
}

func TestDealer_RemoveClientWhileJoinIsQueued(t *testing.T) {
	logger, _ := test.NewNullLogger()
	reg := registry.New(logger)
	_, err := reg.Create("g1", []flip7.PlayerInfo{
		{ID: "p1", Name: "Player 1"},
		{ID: "p2", Name: "Player 2"},
	}, 1, flip7.DefaultOptions())
	require.NoError(t, err)
	_, err = reg.WithExclusive("g1", func(g *flip7.Game) error {
		return g.Disconnect("p1")
	})
	require.NoError(t, err)

	// queue everything before the run loop starts so the join is handled after the removal
	d := NewDealer(logger, reg, nil, "g1", 0)
	c := NewClient(nil, "g1")
	d.AddClient(c)
	d.ReceivedMessage(c, &PayloadIn{Kind: KindJoin, PlayerID: "p1"})
	assert.True(t, d.RemoveClient(c))
	d.EndShift()
	d.StartShift()

	select {
	case <-d.Done():
	case <-time.After(time.Second):
		t.Fatal("dealer did not stop")
	}

	assert.Equal(t, "p1", c.PlayerID())
	assert.Empty(t, d.Clients())

	snap, err := reg.Snapshot("g1")
	require.NoError(t, err)
	p1, _ := snap.Player("p1")
	assert.Equal(t, flip7.StatusDisconnected, p1.Status)
}

func TestDealer_Busy(t *testing.T) {
	logger, _ := test.NewNullLogger()
	reg := registry.New(logger)
	_, err := reg.Create("g1", nil, 1, flip7.DefaultOptions())
	require.NoError(t, err)

	// the run loop is never started, so the queue stays full
	d := NewDealer(logger, reg, nil, "g1", 1)
	c := NewClient(nil, "g1")
	d.AddClient(c)

	d.ReceivedMessage(c, &PayloadIn{Kind: KindJoin, Name: "Alice", Context: "busy?"})
	res := nextResponse(t, c)
	assert.Equal(t, KindError, res.Kind)
	assert.Equal(t, CodeBusy, res.Code)
	assert.Equal(t, "busy?", res.Context)
}

func TestDealer_PublishesCommittedSnapshots(t *testing.T) {
	logger, _ := test.NewNullLogger()
	reg := registry.New(logger)
	_, err := reg.Create("g1", nil, 1, flip7.DefaultOptions())
	require.NoError(t, err)

	pub := &recordingPublisher{}
	d := NewDealer(logger, reg, pub, "g1", 0)
	d.StartShift()
	defer d.EndShift()

	c := addClient(t, d)
	d.ReceivedMessage(c, &PayloadIn{Kind: KindJoin, Name: "Alice"})
	nextResponse(t, c)
	d.ReceivedMessage(c, &PayloadIn{Kind: KindStartGame})
	nextResponse(t, c)

	// rejected actions are never published
	d.ReceivedMessage(c, &PayloadIn{Kind: KindResume})
	nextResponse(t, c)

	assert.Equal(t, []int64{1, 2}, pub.Versions())
}

func TestDealer_EndShift(t *testing.T) {
	d, _ := newTestDealer(t)
	c := addClient(t, d)
	d.ReceivedMessage(c, &PayloadIn{Kind: KindJoin, PlayerID: "p1"})

	d.EndShift()
	select {
	case <-d.Done():
	case <-time.After(time.Second):
		t.Fatal("dealer did not stop")
	}

	// the join queued ahead of the stop was still handled
	assert.Equal(t, "p1", nextResponse(t, c).PlayerID)
}

func newTestDealer(t *testing.T) (*Dealer, *registry.Registry) {
	t.Helper()

	logger, _ := test.NewNullLogger()
	reg := registry.New(logger)
	_, err := reg.Create("g1", []flip7.PlayerInfo{
		{ID: "p1", Name: "Player 1"},
		{ID: "p2", Name: "Player 2"},
	}, 1, flip7.DefaultOptions())
	require.NoError(t, err)

	d := NewDealer(logger, reg, nil, "g1", 0)
	d.StartShift()
	t.Cleanup(func() {
		select {
		case <-d.Done():
		default:
			d.EndShift()
		}
	})

	return d, reg
}

// addClient adds a client and consumes the state it is greeted with
func addClient(t *testing.T, d *Dealer) *Client {
	t.Helper()

	c := NewClient(nil, d.gameID)
	d.AddClient(c)
	res := nextResponse(t, c)
	require.Equal(t, KindSyncState, res.Kind)

	return c
}

// joinBoth seats two clients as p1 and p2 and drains their messages
func joinBoth(t *testing.T, d *Dealer) (*Client, *Client) {
	t.Helper()

	c1 := addClient(t, d)
	c2 := addClient(t, d)

	d.ReceivedMessage(c1, &PayloadIn{Kind: KindJoin, PlayerID: "p1"})
	require.Equal(t, "p1", nextResponse(t, c1).PlayerID)
	nextResponse(t, c2)

	d.ReceivedMessage(c2, &PayloadIn{Kind: KindJoin, PlayerID: "p2"})
	require.Equal(t, "p2", nextResponse(t, c2).PlayerID)

	return c1, c2
}

func nextResponse(t *testing.T, c *Client) *Response {
	t.Helper()

	select {
	case msg := <-c.SendChan():
		res, ok := msg.(*Response)
		require.True(t, ok, "unexpected message %#v", msg)
		return res
	case <-time.After(time.Second):
		t.Fatalf("no message for %s", c)
		return nil
	}
}

func assertNoResponse(t *testing.T, c *Client) {
	t.Helper()

	select {
	case msg := <-c.SendChan():
		t.Fatalf("unexpected message for %s: %#v", c, msg)
	case <-time.After(50 * time.Millisecond):
	}
}
