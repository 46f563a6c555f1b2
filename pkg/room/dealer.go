package room

import (
	"fmt"
	"sync"

	"flip7-server/pkg/flip7"
	"flip7-server/pkg/registry"

	"github.com/sirupsen/logrus"
)

// Publisher receives every committed snapshot of a game
type Publisher interface {
	Publish(gameID string, snap *flip7.Snapshot) error
}

// Dealer serializes the requests of one game and broadcasts the results
type Dealer struct {
	gameID    string
	registry  *registry.Registry
	publisher Publisher
	logger    logrus.FieldLogger

	clients map[*Client]bool
	lock    sync.RWMutex

	// execInRunLoop is the bounded request queue of the game
	execInRunLoop chan func()
	done          chan struct{}

	// only touched from the run loop
	lastVersion int64
	ended       bool
}

// NewDealer creates a new dealer object
// This is called from a blocking state, so it needs to return quickly
func NewDealer(logger logrus.FieldLogger, reg *registry.Registry, publisher Publisher, gameID string, queueSize int) *Dealer {
	if queueSize <= 0 {
		queueSize = DefaultOptions().QueueSize
	}

	return &Dealer{
		gameID:        gameID,
		registry:      reg,
		publisher:     publisher,
		logger:        logger.WithField("gameId", gameID),
		clients:       make(map[*Client]bool),
		execInRunLoop: make(chan func(), queueSize),
		done:          make(chan struct{}),
		lastVersion:   -1,
	}
}

// Clients will return a slice of connected (at the time) clients
func (d *Dealer) Clients() []*Client {
	d.lock.RLock()
	defer d.lock.RUnlock()

	clients := make([]*Client, 0, len(d.clients))
	for client := range d.clients {
		clients = append(clients, client)
	}

	return clients
}

// StartShift starts the run loop
func (d *Dealer) StartShift() {
	go d.runLoop()
}

func (d *Dealer) runLoop() {
	d.logger.Debug("creating dealer run loop")
	defer close(d.done)

	for fn := range d.execInRunLoop {
		fn()

		if d.ended {
			d.logger.Debug("terminating dealer run loop")
			return
		}
	}
}

// EndShift stops the run loop once every request queued before it was handled
func (d *Dealer) EndShift() {
	d.execInRunLoop <- func() {
		d.ended = true
	}
}

// Done is closed when the run loop has terminated
func (d *Dealer) Done() <-chan struct{} {
	return d.done
}

// AddClient adds a client and sends it the current state
// This method must return quickly
func (d *Dealer) AddClient(client *Client) {
	d.lock.Lock()
	d.clients[client] = true
	d.lock.Unlock()

	client.setDealer(d)

	d.execInRunLoop <- func() {
		snap, err := d.registry.Snapshot(d.gameID)
		if err != nil {
			client.Send(NewErrorResponse("", err))
			return
		}

		client.Send(newSyncState("", client.PlayerID(), snap))
	}
}

// RemoveClient removes a client and releases its seat
// This method must return quickly
func (d *Dealer) RemoveClient(client *Client) (lastClient bool) {
	d.lock.Lock()
	delete(d.clients, client)
	nClients := len(d.clients)
	d.lock.Unlock()

	// a join still in the queue may seat the client after this point
	d.execInRunLoop <- func() {
		if playerID := client.PlayerID(); playerID != "" {
			d.disconnect(playerID)
		}
	}

	return nClients == 0
}

// ReceivedMessage queues a client's request
// A full queue is answered with a busy error right away.
func (d *Dealer) ReceivedMessage(c *Client, msg *PayloadIn) {
	select {
	case d.execInRunLoop <- func() { d.handle(c, msg) }:
	default:
		d.logger.WithField("client", c.String()).WithField("kind", msg.Kind).Warn("request queue full")
		c.Send(NewErrorResponse(msg.Context, ErrBusy))
	}
}

// NOTE: must only be called from the run loop
func (d *Dealer) handle(c *Client, msg *PayloadIn) {
	switch msg.Kind {
	case KindJoin:
		d.join(c, msg)
	case KindStartGame, KindDraw, KindStay, KindPause, KindResume:
		d.act(c, msg)
	default:
		c.Send(NewErrorResponse(msg.Context, fmt.Errorf("%w: unknown message kind %q", flip7.ErrValidation, msg.Kind)))
	}
}

// NOTE: must only be called from the run loop
func (d *Dealer) join(c *Client, msg *PayloadIn) {
	requested := msg.PlayerID
	if seated := c.PlayerID(); seated != "" {
		if requested != "" && requested != seated {
			c.Send(NewErrorResponse(msg.Context, fmt.Errorf("%w: already joined as %s", flip7.ErrIllegalAction, seated)))
			return
		}

		requested = seated
	}

	if requested != "" && d.seatHeldByOther(requested, c) {
		c.Send(NewErrorResponse(msg.Context, fmt.Errorf("%w: seat %s is held by another connection", flip7.ErrIllegalAction, requested)))
		return
	}

	var playerID string
	snap, err := d.registry.WithExclusive(d.gameID, func(g *flip7.Game) error {
		var err error
		playerID, err = g.Join(requested, msg.Name)
		return err
	})

	if err != nil {
		c.Send(NewErrorResponse(msg.Context, err))
		return
	}

	c.setPlayerID(playerID)
	d.logger.WithField("client", c.String()).Info("player joined")

	if !d.commit(snap, c, msg.Context) {
		c.Send(newSyncState(msg.Context, playerID, snap))
	}
}

// NOTE: must only be called from the run loop
func (d *Dealer) act(c *Client, msg *PayloadIn) {
	playerID := c.PlayerID()
	if playerID == "" {
		c.Send(NewErrorResponse(msg.Context, fmt.Errorf("%w: join the game first", flip7.ErrIllegalAction)))
		return
	}

	if msg.PlayerID != "" && msg.PlayerID != playerID {
		c.Send(NewErrorResponse(msg.Context, fmt.Errorf("%w: cannot act for another player", flip7.ErrIllegalAction)))
		return
	}

	snap, err := d.registry.WithExclusive(d.gameID, func(g *flip7.Game) error {
		if g.Paused() && msg.Kind != KindResume {
			return fmt.Errorf("%w: the game is paused", flip7.ErrIllegalAction)
		}

		switch msg.Kind {
		case KindStartGame:
			return g.StartRound()
		case KindDraw:
			_, err := g.Draw(playerID)
			return err
		case KindStay:
			return g.Stay(playerID)
		case KindPause:
			return g.Pause(playerID)
		default:
			return g.Resume(playerID)
		}
	})

	if err != nil {
		d.logger.WithError(err).WithField("client", c.String()).Debug("rejected action")
		c.Send(NewErrorResponse(msg.Context, err))
		return
	}

	if !d.commit(snap, c, msg.Context) {
		c.Send(newSyncState(msg.Context, playerID, snap))
	}
}

// NOTE: must only be called from the run loop
func (d *Dealer) disconnect(playerID string) {
	for _, client := range d.Clients() {
		if client.PlayerID() == playerID {
			return
		}
	}

	snap, err := d.registry.WithExclusive(d.gameID, func(g *flip7.Game) error {
		return g.Disconnect(playerID)
	})

	if err != nil {
		d.logger.WithError(err).WithField("playerId", playerID).Debug("could not disconnect player")
		return
	}

	_ = d.commit(snap, nil, "")
}

// commit broadcasts a snapshot that has not been sent yet and publishes it
// Only the sender's copy carries ctx. Returns false if the snapshot was already sent.
// NOTE: must only be called from the run loop
func (d *Dealer) commit(snap *flip7.Snapshot, sender *Client, ctx string) bool {
	if snap.Version == d.lastVersion {
		return false
	}

	d.lastVersion = snap.Version
	d.broadcast(snap, sender, ctx)

	if d.publisher != nil {
		if err := d.publisher.Publish(d.gameID, snap); err != nil {
			d.logger.WithError(err).Error("could not publish snapshot")
		}
	}

	return true
}

func (d *Dealer) broadcast(snap *flip7.Snapshot, sender *Client, ctx string) {
	for _, client := range d.Clients() {
		clientCtx := ""
		if client == sender {
			clientCtx = ctx
		}

		if !client.Send(newSyncState(clientCtx, client.PlayerID(), snap)) {
			d.logger.WithField("client", client.String()).Warn("client buffer full, dropping state")
		}
	}
}

func (d *Dealer) seatHeldByOther(playerID string, c *Client) bool {
	for _, client := range d.Clients() {
		if client != c && client.PlayerID() == playerID {
			return true
		}
	}

	return false
}
