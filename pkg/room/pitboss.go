package room

import (
	"fmt"
	"time"

	"flip7-server/pkg/flip7"
	"flip7-server/pkg/registry"

	"github.com/sirupsen/logrus"
)

// Options configures the PitBoss and its dealers
type Options struct {
	// QueueSize is the number of pending requests a game accepts before answering busy
	QueueSize int
	// IdleTimeout is how long a game without clients may sit untouched before it is reaped
	IdleTimeout time.Duration
	// ReapInterval is how often idle games are looked for, zero disables the reaper
	ReapInterval time.Duration
}

// DefaultOptions returns the default options
func DefaultOptions() Options {
	return Options{
		QueueSize:    64,
		IdleTimeout:  30 * time.Minute,
		ReapInterval: time.Minute,
	}
}

type connection struct {
	client   *Client
	attached chan struct{}
}

// PitBoss is responsible for dispatching clients to dealers
type PitBoss struct {
	registry  *registry.Registry
	publisher Publisher
	logger    logrus.FieldLogger
	options   Options

	dealers    map[string]*Dealer
	connect    chan *connection
	disconnect chan *Client
	exec       chan func()
	close      chan bool
	done       chan struct{}
}

// NewPitBoss returns a new dispatch object
func NewPitBoss(logger logrus.FieldLogger, reg *registry.Registry, publisher Publisher, opts Options) *PitBoss {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultOptions().QueueSize
	}

	return &PitBoss{
		registry:   reg,
		publisher:  publisher,
		logger:     logger,
		options:    opts,
		dealers:    make(map[string]*Dealer),
		connect:    make(chan *connection, 256),
		disconnect: make(chan *Client, 256),
		exec:       make(chan func(), 256),
		close:      make(chan bool),
		done:       make(chan struct{}),
	}
}

// StartShift starts the PitBoss run loop
func (p *PitBoss) StartShift() {
	go p.runLoop()
}

// EndShift stops the run loop and every dealer
func (p *PitBoss) EndShift() {
	close(p.close)
	<-p.done
}

func (p *PitBoss) runLoop() {
	defer close(p.done)

	var reap <-chan time.Time
	if p.options.ReapInterval > 0 {
		ticker := time.NewTicker(p.options.ReapInterval)
		defer ticker.Stop()
		reap = ticker.C
	}

	for {
		select {
		case conn := <-p.connect:
			client := conn.client
			p.logger.WithField("client", client.String()).Debug("client connected")
			dealer, found := p.dealers[client.GameID()]
			if !found {
				dealer = NewDealer(p.logger, p.registry, p.publisher, client.GameID(), p.options.QueueSize)
				dealer.StartShift()
				p.dealers[client.GameID()] = dealer
			}

			dealer.AddClient(client)
			close(conn.attached)
		case client := <-p.disconnect:
			p.logger.WithField("client", client.String()).Debug("client disconnected")
			dealer, found := p.dealers[client.GameID()]
			if !found {
				p.logger.WithField("gameId", client.GameID()).WithField("type", "exception").Error("dealer not found")
				continue
			}

			if dealer.RemoveClient(client) {
				// the seat release has to land before another dealer can serve the game
				dealer.EndShift()
				<-dealer.Done()
				delete(p.dealers, client.GameID())
			}
		case fn := <-p.exec:
			fn()
		case <-reap:
			p.reapIdle()
		case <-p.close:
			for gameID, dealer := range p.dealers {
				dealer.EndShift()
				<-dealer.Done()
				delete(p.dealers, gameID)
			}

			return
		}
	}
}

// NOTE: must only be called from the run loop
func (p *PitBoss) reapIdle() {
	for _, gameID := range p.registry.Idle(p.options.IdleTimeout) {
		if _, ok := p.dealers[gameID]; ok {
			continue
		}

		if err := p.registry.Remove(gameID); err != nil {
			p.logger.WithError(err).WithField("gameId", gameID).Warn("could not reap game")
			continue
		}

		p.logger.WithField("gameId", gameID).Info("reaped idle game")
	}
}

// execInRunLoop runs fn in the run loop and waits for it
func (p *PitBoss) execInRunLoop(fn func()) bool {
	done := make(chan struct{})
	select {
	case p.exec <- func() { fn(); close(done) }:
	case <-p.done:
		return false
	}

	select {
	case <-done:
		return true
	case <-p.done:
		return false
	}
}

// ClientConnected is called when a client connects to the server
// It returns once the client is attached to its game's dealer.
func (p *PitBoss) ClientConnected(client *Client) {
	conn := &connection{client: client, attached: make(chan struct{})}
	select {
	case p.connect <- conn:
	case <-p.done:
		return
	}

	select {
	case <-conn.attached:
	case <-p.done:
	}
}

// ClientDisconnected is called when a client disconnects from the server
func (p *PitBoss) ClientDisconnected(client *Client) {
	select {
	case p.disconnect <- client:
	case <-p.done:
	}
}

// Connected returns the number of clients connected to the game
func (p *PitBoss) Connected(gameID string) int {
	count := 0
	p.execInRunLoop(func() {
		if dealer, ok := p.dealers[gameID]; ok {
			count = len(dealer.Clients())
		}
	})

	return count
}

// Reap removes the game unless clients are still connected to it
func (p *PitBoss) Reap(gameID string) error {
	var err error
	ok := p.execInRunLoop(func() {
		if dealer, found := p.dealers[gameID]; found && len(dealer.Clients()) > 0 {
			err = fmt.Errorf("%w: %d participants are still connected", flip7.ErrIllegalAction, len(dealer.Clients()))
			return
		}

		err = p.registry.Remove(gameID)
	})

	if !ok {
		return fmt.Errorf("%w: the server is shutting down", flip7.ErrInternal)
	}

	return err
}
