package registry

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"flip7-server/pkg/flip7"

	"github.com/sirupsen/logrus"
)

// Action is run against a game while the caller holds exclusive access to it
type Action func(game *flip7.Game) error

type entry struct {
	mu      sync.Mutex
	game    *flip7.Game
	removed bool

	snapshot   atomic.Pointer[flip7.Snapshot]
	lastActive atomic.Int64
}

// Registry holds every live game
// The directory lock only guards lookups, each game has its own lock.
type Registry struct {
	mu    sync.RWMutex
	games map[string]*entry

	logger logrus.FieldLogger
	now    func() time.Time
	verify func(*flip7.Game) error
}

// New returns a new, empty registry
func New(logger logrus.FieldLogger) *Registry {
	return &Registry{
		games:  make(map[string]*entry),
		logger: logger,
		now:    time.Now,
		verify: (*flip7.Game).CheckInvariants,
	}
}

// Create creates a new game in the lobby and returns its first snapshot
func (r *Registry) Create(gameID string, players []flip7.PlayerInfo, seed int64, opts flip7.Options) (*flip7.Snapshot, error) {
	game, err := flip7.NewGame(r.logger, gameID, players, seed, opts)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.games[gameID]; ok {
		return nil, fmt.Errorf("%w: game %q", flip7.ErrAlreadyExists, gameID)
	}

	e := &entry{game: game}
	snap := game.Snapshot()
	e.snapshot.Store(snap)
	e.lastActive.Store(r.now().UnixNano())
	r.games[gameID] = e

	r.logger.WithFields(logrus.Fields{
		"gameId":  gameID,
		"players": len(players),
		"seed":    seed,
	}).Info("game created")

	return snap.Clone(), nil
}

func (r *Registry) get(gameID string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.games[gameID]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: game %q", flip7.ErrNotFound, gameID)
	}

	return e, nil
}

// WithExclusive runs the action while holding the game's lock
// A copy of the snapshot committed after the action is returned even when the action fails.
// A state that breaks the game's invariants panics.
func (r *Registry) WithExclusive(gameID string, action Action) (*flip7.Snapshot, error) {
	e, err := r.get(gameID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed {
		return nil, fmt.Errorf("%w: game %q", flip7.ErrNotFound, gameID)
	}

	prev := e.snapshot.Load()
	actionErr := action(e.game)

	if err := r.verify(e.game); err != nil {
		r.logger.WithError(err).WithField("gameId", gameID).Error("invariant violated")
		panic(err)
	}

	snap := prev
	if e.game.Version() != prev.Version {
		snap = e.game.Snapshot()
		e.snapshot.Store(snap)
	}

	e.lastActive.Store(r.now().UnixNano())
	return snap.Clone(), actionErr
}

// Snapshot returns a copy of the last committed snapshot without taking the game's lock
func (r *Registry) Snapshot(gameID string) (*flip7.Snapshot, error) {
	e, err := r.get(gameID)
	if err != nil {
		return nil, err
	}

	return e.snapshot.Load().Clone(), nil
}

// Remove deletes the game
// Callers blocked in WithExclusive on the game receive ErrNotFound.
func (r *Registry) Remove(gameID string) error {
	r.mu.Lock()
	e, ok := r.games[gameID]
	if ok {
		delete(r.games, gameID)
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: game %q", flip7.ErrNotFound, gameID)
	}

	e.mu.Lock()
	e.removed = true
	e.mu.Unlock()

	r.logger.WithField("gameId", gameID).Info("game removed")
	return nil
}

// IDs returns the ids of all games, sorted
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.games))
	for id := range r.games {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Len returns the number of games
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.games)
}

// Idle returns the ids of games that have not been accessed for at least d
func (r *Registry) Idle(d time.Duration) []string {
	cutoff := r.now().Add(-d).UnixNano()

	r.mu.RLock()
	ids := make([]string, 0)
	for id, e := range r.games {
		if e.lastActive.Load() <= cutoff {
			ids = append(ids, id)
		}
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Close removes every game
func (r *Registry) Close() {
	for _, id := range r.IDs() {
		_ = r.Remove(id)
	}
}
