package room

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Client is a client connected to the server via websockets
type Client struct {
	// Conn is the underlying websocket connection
	Conn *websocket.Conn

	// send is a channel for sending messages to the client
	send chan interface{}

	// Close is a channel for closing the client
	Close chan string

	// CloseError contains the reason why the connection was closed
	CloseError error

	id     string
	gameID string

	mu       sync.RWMutex
	dealer   *Dealer
	playerID string
}

// NewClient returns a new client object
func NewClient(conn *websocket.Conn, gameID string) *Client {
	return &Client{
		Conn:   conn,
		send:   make(chan interface{}, 256),
		Close:  make(chan string),
		id:     uuid.New().String(),
		gameID: gameID,
	}
}

// Send sends a message to the client
// If the client's buffer is full the message is dropped and false is returned
func (c *Client) Send(msg interface{}) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// SendChan returns a read-only channel
func (c *Client) SendChan() <-chan interface{} {
	return c.send
}

// GameID returns the game the client is connected to
func (c *Client) GameID() string {
	return c.gameID
}

// PlayerID returns the seat the client joined, empty if it only observes
func (c *Client) PlayerID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.playerID
}

func (c *Client) setPlayerID(playerID string) {
	c.mu.Lock()
	c.playerID = playerID
	c.mu.Unlock()
}

func (c *Client) setDealer(d *Dealer) {
	c.mu.Lock()
	c.dealer = d
	c.mu.Unlock()
}

func (c *Client) getDealer() *Dealer {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.dealer
}

// String returns a traceable identifier for the client and game
func (c *Client) String() string {
	if playerID := c.PlayerID(); playerID != "" {
		return fmt.Sprintf("%s:%s", playerID, c.gameID)
	}

	return fmt.Sprintf("%s:%s", c.id, c.gameID)
}

// ReceivedMessage is called when the server receives a message from a connected client
func (c *Client) ReceivedMessage(msg *PayloadIn) {
	dealer := c.getDealer()
	if dealer == nil {
		logrus.WithField("client", c.String()).WithField("kind", msg.Kind).Warn("received message, but dealer not found")
		return
	}

	dealer.ReceivedMessage(c, msg)
}
