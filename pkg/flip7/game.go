package flip7

import (
	"fmt"
	"regexp"

	"flip7-server/pkg/deck"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// flip7Cards is how many distinct ranks end the round
	flip7Cards = 7
	// flip7Bonus is added to the rank sum of a Flip 7 hand
	flip7Bonus = 21
)

// Phase represents the current phase of the game
type Phase string

const (
	// PhaseLobby is before the first round
	PhaseLobby Phase = "lobby"
	// PhaseRoundInProgress is when players take turns drawing or staying
	PhaseRoundInProgress Phase = "roundInProgress"
	// PhaseRoundEnd is after a round was scored and before the next one
	PhaseRoundEnd Phase = "roundEnd"
	// PhaseGameOver is when a player reached the target score
	PhaseGameOver Phase = "gameOver"
)

// Options are the house rules for a game
type Options struct {
	// TargetScore ends the game once any cumulative score reaches it
	TargetScore int `json:"targetScore"`
	MaxPlayers  int `json:"maxPlayers"`
}

// DefaultOptions returns the standard rules
func DefaultOptions() Options {
	return Options{
		TargetScore: 200,
		MaxPlayers:  8,
	}
}

func (o Options) withDefaults() Options {
	defaults := DefaultOptions()
	if o.TargetScore <= 0 {
		o.TargetScore = defaults.TargetScore
	}

	if o.MaxPlayers <= 0 {
		o.MaxPlayers = defaults.MaxPlayers
	}

	return o
}

var idRx = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}\z`)

// ValidID returns true if the string can be used as a game or player identifier
func ValidID(id string) bool {
	return idRx.MatchString(id)
}

// Game is a game of Flip 7
type Game struct {
	id         string
	options    Options
	players    []*Player
	idToPlayer map[string]*Player
	deck       *deck.Deck

	seed      int64
	round     int
	phase     Phase
	turnIndex int
	hostID    string
	paused    bool
	version   int64

	logger logrus.FieldLogger
}

// NewGame returns a new game in the lobby
// The deck is shuffled from seed; the first player is the host.
func NewGame(logger logrus.FieldLogger, gameID string, players []PlayerInfo, seed int64, opts Options) (*Game, error) {
	if !ValidID(gameID) {
		return nil, invalid("game id %q must be 1-64 letters, digits, '.', '_' or '-'", gameID)
	}

	opts = opts.withDefaults()
	if len(players) > opts.MaxPlayers {
		return nil, PlayerCountError{
			Min: 0,
			Max: opts.MaxPlayers,
			Got: len(players),
		}
	}

	g := &Game{
		id:         gameID,
		options:    opts,
		players:    make([]*Player, 0, len(players)),
		idToPlayer: make(map[string]*Player, len(players)),
		deck:       deck.New(),
		seed:       seed,
		phase:      PhaseLobby,
		turnIndex:  -1,
		logger:     logger.WithField("gameId", gameID),
	}

	for _, info := range players {
		if !ValidID(info.ID) {
			return nil, invalid("player id %q is not valid", info.ID)
		}

		if info.Name == "" {
			return nil, invalid("player %q needs a name", info.ID)
		}

		if _, ok := g.idToPlayer[info.ID]; ok {
			return nil, invalid("duplicate player %q", info.ID)
		}

		g.seat(info.ID, info.Name)
	}

	g.deck.Shuffle(g.roundSeed(1))
	return g, nil
}

// ID returns the game identifier
func (g *Game) ID() string {
	return g.id
}

// Phase returns the current phase
func (g *Game) Phase() Phase {
	return g.phase
}

// Round returns the current round number, zero while in the lobby
func (g *Game) Round() int {
	return g.round
}

// Seed returns the seed all shuffles derive from
func (g *Game) Seed() int64 {
	return g.seed
}

// HostID returns the player who may pause and resume the game
func (g *Game) HostID() string {
	return g.hostID
}

// Paused returns true if the host suspended the game
func (g *Game) Paused() bool {
	return g.paused
}

// Version is incremented on every committed change
func (g *Game) Version() int64 {
	return g.version
}

// CurrentPlayerID returns the player whose turn it is
func (g *Game) CurrentPlayerID() (string, bool) {
	if g.phase != PhaseRoundInProgress || g.turnIndex < 0 {
		return "", false
	}

	return g.players[g.turnIndex].ID, true
}

// HasPlayer returns true if the player holds a seat
func (g *Game) HasPlayer(playerID string) bool {
	_, ok := g.idToPlayer[playerID]
	return ok
}

// roundSeed derives the shuffle seed of a round, round 1 uses the game seed itself
func (g *Game) roundSeed(round int) int64 {
	return g.seed + int64(round-1)
}

func (g *Game) touch() {
	g.version++
}

func (g *Game) seat(id, name string) *Player {
	p := NewPlayer(id, name, len(g.players))
	g.players = append(g.players, p)
	g.idToPlayer[id] = p
	if g.hostID == "" {
		g.hostID = id
	}

	return p
}

func (g *Game) getPlayer(playerID string) (*Player, error) {
	p, ok := g.idToPlayer[playerID]
	if !ok {
		return nil, playerNotFound(playerID)
	}

	return p, nil
}

// StartRound deals a fresh round
// Valid from the lobby or after a round ended.
func (g *Game) StartRound() error {
	if g.phase != PhaseLobby && g.phase != PhaseRoundEnd {
		return illegal("cannot start a round during %s", g.phase)
	}

	connected := 0
	for _, p := range g.players {
		if p.IsConnected() {
			connected++
		}
	}

	if connected == 0 {
		return illegal("no connected players")
	}

	if total := g.cardsAccountedFor(); total != deck.Size {
		return fmt.Errorf("%w: %d cards accounted for", ErrInternal, total)
	}

	for _, p := range g.players {
		g.deck.Discard(p.hand...)
	}

	g.round++
	g.deck.Shuffle(g.roundSeed(g.round))

	for _, p := range g.players {
		wasConnected := p.IsConnected()
		p.ResetRound()
		if !wasConnected {
			p.Disconnect()
		}
	}

	g.phase = PhaseRoundInProgress
	g.turnIndex = -1
	for i, p := range g.players {
		if p.Status == StatusActive {
			g.turnIndex = i
			break
		}
	}

	g.touch()
	g.logger.WithField("round", g.round).Info("round started")
	return nil
}

// turnHolder returns the player if they are allowed to act right now
func (g *Game) turnHolder(playerID string) (*Player, error) {
	p, err := g.getPlayer(playerID)
	if err != nil {
		return nil, err
	}

	if g.phase != PhaseRoundInProgress {
		return nil, illegal("no round in progress")
	}

	if g.players[g.turnIndex] != p {
		return nil, illegal("it is not %s's turn", p.Name)
	}

	if p.Status != StatusActive {
		return nil, illegal("%s is %s", p.Name, p.Status)
	}

	return p, nil
}

// Draw flips the top card for the player whose turn it is
func (g *Game) Draw(playerID string) (deck.Card, error) {
	p, err := g.turnHolder(playerID)
	if err != nil {
		return 0, err
	}

	card, err := g.deck.Draw()
	if err != nil {
		return 0, ErrEmptyDeck
	}

	log := g.logger.WithFields(logrus.Fields{
		"playerId": p.ID,
		"card":     card.Rank(),
	})

	duplicate := p.hand.HasRank(card)
	p.AddCard(card)

	switch {
	case duplicate:
		p.Status = StatusBusted
		p.RoundScore = 0
		log.Debug("player busted")
		g.advanceTurn()
	case p.hand.DistinctRanks() >= flip7Cards:
		p.Status = StatusStayed
		p.RoundScore = p.score()
		log.Info("flip 7")
		g.endRound()
	default:
		log.Debug("player drew")
		g.advanceTurn()
	}

	if g.phase == PhaseRoundInProgress && g.deck.CardsLeft() == 0 {
		log.Warn("deck exhausted, ending round")
		g.endRound()
	}

	g.touch()
	return card, nil
}

// Stay locks in the player's hand for the round
func (g *Game) Stay(playerID string) error {
	p, err := g.turnHolder(playerID)
	if err != nil {
		return err
	}

	p.Status = StatusStayed
	p.RoundScore = p.score()
	g.logger.WithField("playerId", p.ID).Debug("player stayed")

	g.advanceTurn()
	g.touch()
	return nil
}

// advanceTurn moves to the next active seat after the current one
// If nobody is left to act the round ends
func (g *Game) advanceTurn() {
	n := len(g.players)
	for i := 1; i <= n; i++ {
		idx := (g.turnIndex + i) % n
		if g.players[idx].Status == StatusActive {
			g.turnIndex = idx
			return
		}
	}

	g.endRound()
}

// endRound scores the round and merges it into the cumulative totals
// Players who were still drawing are scored as if they stayed.
func (g *Game) endRound() {
	for _, p := range g.players {
		switch {
		case p.Status == StatusActive:
			p.Status = StatusStayed
		case p.Status == StatusDisconnected && p.resumeStatus == StatusActive:
			p.resumeStatus = StatusStayed
		}
	}

	scores := g.ComputeScores()
	for _, p := range g.players {
		p.RoundScore = scores[p.ID]
		p.TotalScore += p.RoundScore
	}

	g.phase = PhaseRoundEnd
	g.turnIndex = -1

	for _, p := range g.players {
		if p.TotalScore >= g.options.TargetScore {
			g.phase = PhaseGameOver
			break
		}
	}

	g.logger.WithFields(logrus.Fields{
		"round":  g.round,
		"scores": scores,
		"phase":  g.phase,
	}).Info("round ended")
}

// ComputeScores returns each player's score for the current round
// It has no side effects and can be called any number of times
func (g *Game) ComputeScores() map[string]int {
	scores := make(map[string]int, len(g.players))
	for _, p := range g.players {
		scores[p.ID] = p.score()
	}

	return scores
}

// Winners returns the players with the highest cumulative score once the game is over
func (g *Game) Winners() []string {
	if g.phase != PhaseGameOver {
		return nil
	}

	best := -1
	var winners []string
	for _, p := range g.players {
		switch {
		case p.TotalScore > best:
			best = p.TotalScore
			winners = []string{p.ID}
		case p.TotalScore == best:
			winners = append(winners, p.ID)
		}
	}

	return winners
}

// Join seats a new player or re-attaches an existing seat
// A disconnected seat gets its hand, score and status back. The returned id is the seat's player id.
func (g *Game) Join(playerID, name string) (string, error) {
	if p, ok := g.idToPlayer[playerID]; ok {
		if !p.IsConnected() {
			p.Reconnect()
			g.touch()
			g.logger.WithField("playerId", p.ID).Info("player reconnected")
		}

		return p.ID, nil
	}

	if playerID != "" && !ValidID(playerID) {
		return "", invalid("player id %q is not valid", playerID)
	}

	if name == "" {
		return "", invalid("name is required")
	}

	switch g.phase {
	case PhaseRoundInProgress:
		return "", illegal("cannot take a seat while a round is in progress")
	case PhaseGameOver:
		return "", illegal("the game is over")
	}

	if len(g.players) >= g.options.MaxPlayers {
		return "", illegal("the game is full")
	}

	if playerID == "" {
		playerID = uuid.New().String()
	}

	p := g.seat(playerID, name)
	g.touch()
	g.logger.WithFields(logrus.Fields{"playerId": p.ID, "seat": p.Seat}).Info("player seated")
	return p.ID, nil
}

// Disconnect marks the player as disconnected, keeping the seat for a reconnect
// If it was their turn, play moves on to the next active player.
func (g *Game) Disconnect(playerID string) error {
	p, err := g.getPlayer(playerID)
	if err != nil {
		return err
	}

	if !p.IsConnected() {
		return illegal("%s is already disconnected", p.Name)
	}

	holdsTurn := g.phase == PhaseRoundInProgress && g.players[g.turnIndex] == p
	p.Disconnect()
	if holdsTurn {
		g.advanceTurn()
	}

	g.touch()
	g.logger.WithField("playerId", p.ID).Info("player disconnected")
	return nil
}

// Pause suspends the game, only the host may do so
// While paused the only accepted action is Resume. Join and Disconnect still apply,
// so a host who dropped can take the seat back and resume.
func (g *Game) Pause(playerID string) error {
	if err := g.checkHost(playerID, "pause"); err != nil {
		return err
	}

	if g.paused {
		return illegal("the game is already paused")
	}

	g.paused = true
	g.touch()
	return nil
}

// Resume lifts a pause, only the host may do so
func (g *Game) Resume(playerID string) error {
	if err := g.checkHost(playerID, "resume"); err != nil {
		return err
	}

	if !g.paused {
		return illegal("the game is not paused")
	}

	g.paused = false
	g.touch()
	return nil
}

func (g *Game) checkHost(playerID, action string) error {
	if _, err := g.getPlayer(playerID); err != nil {
		return err
	}

	if playerID != g.hostID {
		return illegal("only the host can %s the game", action)
	}

	if g.phase == PhaseGameOver {
		return illegal("the game is over")
	}

	return nil
}

func (g *Game) cardsAccountedFor() int {
	total := g.deck.Total()
	for _, p := range g.players {
		total += len(p.hand)
	}

	return total
}

// CheckInvariants verifies the structural rules every reachable state obeys
// A non-nil error means the state machine itself is broken
func (g *Game) CheckInvariants() error {
	if total := g.cardsAccountedFor(); total != deck.Size {
		return fmt.Errorf("%w: %d cards accounted for, expected %d", ErrInternal, total, deck.Size)
	}

	for _, p := range g.players {
		dupes := p.hand.Duplicates()
		if p.roundStatus() != StatusBusted {
			if dupes != 0 {
				return fmt.Errorf("%w: %s holds duplicate ranks without busting", ErrInternal, p.ID)
			}

			continue
		}

		last, _ := p.hand.LastCard()
		if dupes != 1 || !p.hand[:len(p.hand)-1].HasRank(last) {
			return fmt.Errorf("%w: %s busted without a single trailing duplicate", ErrInternal, p.ID)
		}
	}

	if g.phase == PhaseRoundInProgress {
		if g.turnIndex < 0 || g.turnIndex >= len(g.players) {
			return fmt.Errorf("%w: turn index %d out of range", ErrInternal, g.turnIndex)
		}

		if g.players[g.turnIndex].Status != StatusActive {
			return fmt.Errorf("%w: turn held by a %s player", ErrInternal, g.players[g.turnIndex].Status)
		}
	}

	return nil
}
