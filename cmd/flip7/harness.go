package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"flip7-server/pkg/flip7"

	"github.com/sirupsen/logrus"
)

const (
	defaultStateFile = "game_state.json"
	defaultPlayers   = 2
	defaultSeed      = 42
)

// harness drives a single game whose state lives in a JSON file between invocations
type harness struct {
	path   string
	out    io.Writer
	logger logrus.FieldLogger
	// raw prints snapshots as compact JSON instead of indented
	raw bool
}

func (h *harness) load() (*flip7.Game, error) {
	data, err := os.ReadFile(h.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no game state found at %s, run `flip7 new` first", h.path)
		}

		return nil, err
	}

	var snap flip7.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("could not parse %s: %w", h.path, err)
	}

	return flip7.FromSnapshot(h.logger, &snap)
}

func (h *harness) save(g *flip7.Game) error {
	data, err := g.Snapshot().JSON()
	if err != nil {
		return err
	}

	return os.WriteFile(h.path, data, 0o644)
}

func (h *harness) printf(format string, a ...interface{}) {
	_, _ = fmt.Fprintf(h.out, format+"\n", a...)
}

// newGame seats players "0".."n-1" and deals the first round
func (h *harness) newGame(players int, seed int64) error {
	opts := flip7.DefaultOptions()
	if players < 1 || players > opts.MaxPlayers {
		return flip7.PlayerCountError{Min: 1, Max: opts.MaxPlayers, Got: players}
	}

	infos := make([]flip7.PlayerInfo, players)
	for i := range infos {
		infos[i] = flip7.PlayerInfo{ID: strconv.Itoa(i), Name: fmt.Sprintf("Player %d", i)}
	}

	g, err := flip7.NewGame(h.logger, "cli", infos, seed, opts)
	if err != nil {
		return err
	}

	if err := g.StartRound(); err != nil {
		return err
	}

	if err := h.save(g); err != nil {
		return err
	}

	h.printf("New game started with %d players (seed: %d)", players, seed)
	h.printf("Game state saved to %s", h.path)
	return nil
}

func (h *harness) draw(playerID string) error {
	g, err := h.load()
	if err != nil {
		return err
	}

	card, err := g.Draw(playerID)
	if err != nil {
		return err
	}

	if err := h.save(g); err != nil {
		return err
	}

	p, _ := g.Snapshot().Player(playerID)
	h.printf("Player %s drew %s. Hand: %s (total %d)", playerID, card, p.Hand, p.Hand.Sum())
	switch {
	case p.Status == flip7.StatusBusted:
		h.printf("Player %s is bust!", playerID)
	case p.Flip7:
		h.printf("Player %s has Flip7!", playerID)
	}

	h.roundSummary(g)
	return nil
}

func (h *harness) stay(playerID string) error {
	g, err := h.load()
	if err != nil {
		return err
	}

	if err := g.Stay(playerID); err != nil {
		return err
	}

	if err := h.save(g); err != nil {
		return err
	}

	h.printf("Player %s stayed", playerID)
	h.roundSummary(g)
	return nil
}

// start deals the next round of a game in the state file
func (h *harness) start() error {
	g, err := h.load()
	if err != nil {
		return err
	}

	if err := g.StartRound(); err != nil {
		return err
	}

	if err := h.save(g); err != nil {
		return err
	}

	h.printf("Round %d started", g.Round())
	return nil
}

func (h *harness) roundSummary(g *flip7.Game) {
	switch g.Phase() {
	case flip7.PhaseRoundEnd, flip7.PhaseGameOver:
	default:
		return
	}

	snap := g.Snapshot()
	h.printf("Round %d finished!", snap.Round)
	for _, p := range snap.Players {
		h.printf("Player %s: %d points this round, %d total", p.ID, p.RoundScore, p.TotalScore)
	}

	if len(snap.Winners) > 0 {
		h.printf("Game over, winner(s): %s", strings.Join(snap.Winners, ", "))
	}
}

func (h *harness) state() error {
	g, err := h.load()
	if err != nil {
		return err
	}

	return h.printSnapshot(g.Snapshot())
}

func (h *harness) printSnapshot(snap *flip7.Snapshot) error {
	var data []byte
	var err error
	if h.raw {
		data, err = json.Marshal(snap)
	} else {
		data, err = json.MarshalIndent(snap, "", "  ")
	}

	if err != nil {
		return err
	}

	h.printf("%s", data)
	return nil
}

// simulate runs one harness command per line
// Blank lines and lines starting with # are skipped.
func (h *harness) simulate(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		h.printf("Executing: %s", line)
		if err := h.exec(strings.Fields(line)); err != nil {
			return fmt.Errorf("line %d: %w", lineNum, err)
		}
	}

	return scanner.Err()
}

func (h *harness) exec(parts []string) error {
	switch parts[0] {
	case "new":
		players, seed := defaultPlayers, int64(defaultSeed)
		if len(parts) > 1 {
			n, err := strconv.Atoi(parts[1])
			if err != nil {
				return fmt.Errorf("invalid player count %q", parts[1])
			}
			players = n
		}

		if len(parts) > 2 {
			n, err := strconv.ParseInt(parts[2], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid seed %q", parts[2])
			}
			seed = n
		}

		return h.newGame(players, seed)
	case "draw", "stay":
		if len(parts) < 2 {
			return fmt.Errorf("missing player argument")
		}

		if parts[0] == "draw" {
			return h.draw(parts[1])
		}

		return h.stay(parts[1])
	case "start":
		return h.start()
	case "state":
		return h.state()
	default:
		return fmt.Errorf("unknown command %q", parts[0])
	}
}

// demo plays a whole game in memory, every seat drawing until its hand reaches stayAt
func (h *harness) demo(seed int64, stayAt int) error {
	if stayAt < 1 {
		return fmt.Errorf("%w: stay-at must be positive", flip7.ErrValidation)
	}

	g, err := flip7.NewGame(h.logger, "demo", []flip7.PlayerInfo{
		{ID: "player1", Name: "Alice"},
		{ID: "player2", Name: "Bob"},
	}, seed, flip7.DefaultOptions())
	if err != nil {
		return err
	}

	h.printf("=== Flip 7 demo (seed %d) ===", seed)
	for g.Phase() != flip7.PhaseGameOver {
		if err := g.StartRound(); err != nil {
			return err
		}

		h.printf("--- Round %d ---", g.Round())
		for g.Phase() == flip7.PhaseRoundInProgress {
			playerID, _ := g.CurrentPlayerID()
			p, _ := g.Snapshot().Player(playerID)
			if p.Hand.Sum() >= stayAt {
				if err := g.Stay(playerID); err != nil {
					return err
				}

				h.printf("%s stays on %d", p.Name, p.Hand.Sum())
				continue
			}

			card, err := g.Draw(playerID)
			if err != nil {
				return err
			}

			p, _ = g.Snapshot().Player(playerID)
			h.printf("%s draws %s: %s", p.Name, card, p.Hand)
			switch {
			case p.Status == flip7.StatusBusted:
				h.printf("%s is BUST!", p.Name)
			case p.Flip7:
				h.printf("%s has FLIP7!", p.Name)
			}
		}

		for _, p := range g.Snapshot().Players {
			h.printf("%s: round score %d, total %d", p.Name, p.RoundScore, p.TotalScore)
		}
	}

	h.printf("Winner(s): %s", strings.Join(g.Winners(), ", "))
	return nil
}
