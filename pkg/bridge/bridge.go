// Package bridge is the data contract for callers across a foreign-call boundary
//
// Every operation takes a JSON request and returns a Handle that owns the JSON
// result. The caller reads it with Bytes and must release it exactly once with Free.
package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"flip7-server/internal/rng"
	"flip7-server/pkg/flip7"
	"flip7-server/pkg/registry"

	"github.com/sirupsen/logrus"
)

// Handle identifies a result buffer owned by the bridge
// The zero value is never issued.
type Handle uint64

// ErrUnknownHandle is returned when a handle was never issued or was already freed
var ErrUnknownHandle = errors.New("unknown or already freed handle")

// Bridge routes foreign calls to the registry
type Bridge struct {
	registry *registry.Registry
	logger   logrus.FieldLogger
	seeds    rng.Generator
	options  flip7.Options

	mu      sync.Mutex
	buffers map[Handle][]byte
	next    Handle
}

// New returns a new bridge backed by reg
func New(logger logrus.FieldLogger, reg *registry.Registry) *Bridge {
	return &Bridge{
		registry: reg,
		logger:   logger,
		options:  flip7.DefaultOptions(),
		buffers:  make(map[Handle][]byte),
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type statusResponse struct {
	GameID string `json:"game_id"`
	Status string `json:"status"`
}

type newGameRequest struct {
	GameID  string             `json:"game_id"`
	Players []flip7.PlayerInfo `json:"players"`
	Seed    *int64             `json:"seed"`
}

type gameRequest struct {
	GameID   string `json:"game_id"`
	PlayerID string `json:"player_id"`
}

// NewGame creates a game in the lobby
func (b *Bridge) NewGame(input []byte) Handle {
	var req newGameRequest
	if err := decode(input, &req); err != nil {
		return b.fail(err)
	}

	seed := rng.Seed(b.seeds)
	if req.Seed != nil {
		seed = *req.Seed
	}

	if _, err := b.registry.Create(req.GameID, req.Players, seed, b.options); err != nil {
		return b.fail(err)
	}

	b.logger.WithField("gameId", req.GameID).Info("game created over bridge")
	return b.ok(statusResponse{GameID: req.GameID, Status: "created"})
}

// GetState returns the last committed snapshot of a game
func (b *Bridge) GetState(input []byte) Handle {
	var req gameRequest
	if err := decode(input, &req); err != nil {
		return b.fail(err)
	}

	snap, err := b.registry.Snapshot(req.GameID)
	if err != nil {
		return b.fail(err)
	}

	return b.ok(snap)
}

// StartRound deals a new round
func (b *Bridge) StartRound(input []byte) Handle {
	return b.act(input, false, func(g *flip7.Game, _ string) error {
		return g.StartRound()
	})
}

// Draw draws the top card for the player
func (b *Bridge) Draw(input []byte) Handle {
	return b.act(input, true, func(g *flip7.Game, playerID string) error {
		_, err := g.Draw(playerID)
		return err
	})
}

// Stay ends the player's round with their current hand
func (b *Bridge) Stay(input []byte) Handle {
	return b.act(input, true, func(g *flip7.Game, playerID string) error {
		return g.Stay(playerID)
	})
}

// DeleteGame removes a game
func (b *Bridge) DeleteGame(input []byte) Handle {
	var req gameRequest
	if err := decode(input, &req); err != nil {
		return b.fail(err)
	}

	if err := b.registry.Remove(req.GameID); err != nil {
		return b.fail(err)
	}

	b.logger.WithField("gameId", req.GameID).Info("game deleted over bridge")
	return b.ok(statusResponse{GameID: req.GameID, Status: "deleted"})
}

func (b *Bridge) act(input []byte, needsPlayer bool, fn func(g *flip7.Game, playerID string) error) Handle {
	var req gameRequest
	if err := decode(input, &req); err != nil {
		return b.fail(err)
	}

	if needsPlayer && req.PlayerID == "" {
		return b.fail(fmt.Errorf("%w: player_id is required", flip7.ErrValidation))
	}

	snap, err := b.registry.WithExclusive(req.GameID, func(g *flip7.Game) error {
		return fn(g, req.PlayerID)
	})
	if err != nil {
		return b.fail(err)
	}

	return b.ok(snap)
}

func decode(input []byte, v interface{}) error {
	if err := json.Unmarshal(input, v); err != nil {
		return fmt.Errorf("%w: %s", flip7.ErrValidation, err.Error())
	}

	return nil
}

func (b *Bridge) ok(v interface{}) Handle {
	data, err := json.Marshal(v)
	if err != nil {
		return b.fail(fmt.Errorf("%w: %s", flip7.ErrInternal, err.Error()))
	}

	return b.store(data)
}

func (b *Bridge) fail(err error) Handle {
	data, _ := json.Marshal(errorResponse{Error: errorBody{
		Code:    flip7.Code(err),
		Message: err.Error(),
	}})

	return b.store(data)
}

func (b *Bridge) store(data []byte) Handle {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.next++
	b.buffers[b.next] = data
	return b.next
}

// Bytes returns the buffer owned by h
// The slice is only valid until h is freed.
func (b *Bridge) Bytes(h Handle) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, ok := b.buffers[h]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}

	return data, nil
}

// Free releases the buffer owned by h
func (b *Bridge) Free(h Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.buffers[h]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}

	delete(b.buffers, h)
	return nil
}

// Outstanding returns the number of buffers that have not been freed
func (b *Bridge) Outstanding() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.buffers)
}
