package flip7

import "flip7-server/pkg/deck"

// Status is a player's status within the current round
type Status string

// statuses
const (
	StatusActive       Status = "active"
	StatusStayed       Status = "stayed"
	StatusBusted       Status = "busted"
	StatusDisconnected Status = "disconnected"
)

// PlayerInfo identifies a player when seating them
type PlayerInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Player is an individual seated at the game
type Player struct {
	ID         string
	Name       string
	Seat       int
	Status     Status
	RoundScore int
	TotalScore int

	hand deck.Hand

	// status to restore when a disconnected player comes back
	resumeStatus Status
}

// NewPlayer returns a new player
func NewPlayer(id, name string, seat int) *Player {
	return &Player{
		ID:     id,
		Name:   name,
		Seat:   seat,
		Status: StatusActive,
		hand:   make(deck.Hand, 0, 8),
	}
}

// AddCard adds a card to the player's hand
func (p *Player) AddCard(card deck.Card) {
	p.hand.AddCard(card)
}

// Hand returns a copy of the player's hand
func (p *Player) Hand() deck.Hand {
	return p.hand.Clone()
}

// ResetRound clears the hand and round score for a new round
// The cumulative score is untouched
func (p *Player) ResetRound() {
	p.hand = make(deck.Hand, 0, 8)
	p.RoundScore = 0
	p.Status = StatusActive
	p.resumeStatus = ""
}

// IsConnected returns false if the player dropped off
func (p *Player) IsConnected() bool {
	return p.Status != StatusDisconnected
}

// Disconnect marks the player as disconnected and remembers where to resume
func (p *Player) Disconnect() {
	if p.Status == StatusDisconnected {
		return
	}

	p.resumeStatus = p.Status
	p.Status = StatusDisconnected
}

// Reconnect restores the status the player had when they disconnected
func (p *Player) Reconnect() {
	if p.Status != StatusDisconnected {
		return
	}

	p.Status = p.resumeStatus
	if p.Status == "" {
		p.Status = StatusActive
	}

	p.resumeStatus = ""
}

// roundStatus is the status that counts for the round
// A disconnected player is judged by the status they had before dropping
func (p *Player) roundStatus() Status {
	if p.Status == StatusDisconnected {
		return p.resumeStatus
	}

	return p.Status
}

// hasFlip7 returns true if the hand holds the required number of distinct ranks
func (p *Player) hasFlip7() bool {
	return p.roundStatus() != StatusBusted && p.hand.DistinctRanks() >= flip7Cards
}

// score returns the round score of the hand as it stands
func (p *Player) score() int {
	if p.roundStatus() == StatusBusted {
		return 0
	}

	sum := p.hand.Sum()
	if p.hasFlip7() {
		sum += flip7Bonus
	}

	return sum
}
