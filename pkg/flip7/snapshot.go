package flip7

import (
	"encoding/json"
	"fmt"

	"flip7-server/pkg/deck"

	"github.com/sirupsen/logrus"
)

// PlayerSnapshot is the full state of one seat
type PlayerSnapshot struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Seat         int       `json:"seat"`
	Status       Status    `json:"status"`
	ResumeStatus Status    `json:"resumeStatus,omitempty"`
	Hand         deck.Hand `json:"hand"`
	RoundScore   int       `json:"roundScore"`
	TotalScore   int       `json:"totalScore"`
	Flip7        bool      `json:"flip7"`
}

// DeckSnapshot holds both piles of the deck
type DeckSnapshot struct {
	DrawPile    []deck.Card `json:"drawPile"`
	DiscardPile []deck.Card `json:"discardPile"`
}

// Snapshot is a copy of a game's state
// A snapshot shared between readers must not be modified, use Clone to get a private copy.
type Snapshot struct {
	GameID          string           `json:"gameId"`
	Version         int64            `json:"version"`
	Phase           Phase            `json:"phase"`
	Round           int              `json:"round"`
	Seed            int64            `json:"seed"`
	TurnIndex       int              `json:"turnIndex"`
	CurrentPlayerID string           `json:"currentPlayerId,omitempty"`
	HostID          string           `json:"hostId"`
	Paused          bool             `json:"paused"`
	TargetScore     int              `json:"targetScore"`
	MaxPlayers      int              `json:"maxPlayers"`
	Players         []PlayerSnapshot `json:"players"`
	Deck            DeckSnapshot     `json:"deck"`
	Winners         []string         `json:"winners,omitempty"`
}

// Player returns the seat with the matching id
func (s *Snapshot) Player(playerID string) (PlayerSnapshot, bool) {
	for _, p := range s.Players {
		if p.ID == playerID {
			return p, true
		}
	}

	return PlayerSnapshot{}, false
}

// Clone returns a deep copy of the snapshot
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}

	c := *s
	c.Players = make([]PlayerSnapshot, len(s.Players))
	for i, p := range s.Players {
		p.Hand = p.Hand.Clone()
		c.Players[i] = p
	}

	c.Deck = DeckSnapshot{
		DrawPile:    append([]deck.Card{}, s.Deck.DrawPile...),
		DiscardPile: append([]deck.Card{}, s.Deck.DiscardPile...),
	}

	if s.Winners != nil {
		c.Winners = append([]string{}, s.Winners...)
	}

	return &c
}

// JSON returns the serialized snapshot
func (s *Snapshot) JSON() ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	return b, nil
}

// Snapshot returns a deep copy of the game state
func (g *Game) Snapshot() *Snapshot {
	players := make([]PlayerSnapshot, len(g.players))
	for i, p := range g.players {
		players[i] = PlayerSnapshot{
			ID:           p.ID,
			Name:         p.Name,
			Seat:         p.Seat,
			Status:       p.Status,
			ResumeStatus: p.resumeStatus,
			Hand:         p.Hand(),
			RoundScore:   p.RoundScore,
			TotalScore:   p.TotalScore,
			Flip7:        p.hasFlip7(),
		}
	}

	currentPlayerID, _ := g.CurrentPlayerID()

	return &Snapshot{
		GameID:          g.id,
		Version:         g.version,
		Phase:           g.phase,
		Round:           g.round,
		Seed:            g.seed,
		TurnIndex:       g.turnIndex,
		CurrentPlayerID: currentPlayerID,
		HostID:          g.hostID,
		Paused:          g.paused,
		TargetScore:     g.options.TargetScore,
		MaxPlayers:      g.options.MaxPlayers,
		Players:         players,
		Deck: DeckSnapshot{
			DrawPile:    append([]deck.Card{}, g.deck.Cards...),
			DiscardPile: append([]deck.Card{}, g.deck.Discards...),
		},
		Winners: g.Winners(),
	}
}

// FromSnapshot rebuilds a game from a snapshot
// The rebuilt game must pass CheckInvariants.
func FromSnapshot(logger logrus.FieldLogger, snap *Snapshot) (*Game, error) {
	if snap == nil {
		return nil, invalid("missing snapshot")
	}

	if !ValidID(snap.GameID) {
		return nil, invalid("game id %q is not valid", snap.GameID)
	}

	switch snap.Phase {
	case PhaseLobby, PhaseRoundInProgress, PhaseRoundEnd, PhaseGameOver:
	default:
		return nil, invalid("unknown phase %q", snap.Phase)
	}

	g := &Game{
		id: snap.GameID,
		options: Options{
			TargetScore: snap.TargetScore,
			MaxPlayers:  snap.MaxPlayers,
		}.withDefaults(),
		players:    make([]*Player, 0, len(snap.Players)),
		idToPlayer: make(map[string]*Player, len(snap.Players)),
		deck:       deck.New(),
		seed:       snap.Seed,
		round:      snap.Round,
		phase:      snap.Phase,
		turnIndex:  snap.TurnIndex,
		hostID:     snap.HostID,
		paused:     snap.Paused,
		version:    snap.Version,
		logger:     logger.WithField("gameId", snap.GameID),
	}

	for i, ps := range snap.Players {
		if !ValidID(ps.ID) {
			return nil, invalid("player id %q is not valid", ps.ID)
		}

		if _, ok := g.idToPlayer[ps.ID]; ok {
			return nil, invalid("duplicate player %q", ps.ID)
		}

		if ps.Name == "" {
			return nil, invalid("player %q needs a name", ps.ID)
		}

		switch ps.Status {
		case StatusActive, StatusStayed, StatusBusted, StatusDisconnected:
		default:
			return nil, invalid("player %q has unknown status %q", ps.ID, ps.Status)
		}

		switch {
		case ps.ResumeStatus == "":
		case ps.Status != StatusDisconnected:
			return nil, invalid("player %q is %s but has a resume status", ps.ID, ps.Status)
		case ps.ResumeStatus != StatusActive && ps.ResumeStatus != StatusStayed && ps.ResumeStatus != StatusBusted:
			return nil, invalid("player %q has unknown resume status %q", ps.ID, ps.ResumeStatus)
		}

		for _, card := range ps.Hand {
			if !card.Valid() {
				return nil, invalid("player %q holds invalid card %d", ps.ID, card)
			}
		}

		p := &Player{
			ID:           ps.ID,
			Name:         ps.Name,
			Seat:         i,
			Status:       ps.Status,
			RoundScore:   ps.RoundScore,
			TotalScore:   ps.TotalScore,
			hand:         ps.Hand.Clone(),
			resumeStatus: ps.ResumeStatus,
		}

		g.players = append(g.players, p)
		g.idToPlayer[p.ID] = p
	}

	if g.hostID != "" && !g.HasPlayer(g.hostID) {
		return nil, invalid("host %q is not seated", g.hostID)
	}

	for _, card := range append(append([]deck.Card{}, snap.Deck.DrawPile...), snap.Deck.DiscardPile...) {
		if !card.Valid() {
			return nil, invalid("deck holds invalid card %d", card)
		}
	}

	g.deck.Restore(g.roundSeed(g.round), snap.Deck.DrawPile, snap.Deck.DiscardPile)

	if g.phase != PhaseRoundInProgress {
		g.turnIndex = -1
	}

	if err := g.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	return g, nil
}
