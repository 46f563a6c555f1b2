package mux

import (
	"net/http"

	"flip7-server/internal/rng"
	"flip7-server/internal/util"
	"flip7-server/pkg/flip7"
)

type gameSummary struct {
	GameID    string      `json:"gameId"`
	Phase     flip7.Phase `json:"phase"`
	Round     int         `json:"round"`
	Players   int         `json:"players"`
	Connected int         `json:"connected"`
}

type getGameResponse struct {
	Games []gameSummary `json:"games"`
	Total int           `json:"total"`
}

func (m *Mux) getGame() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset, limit, err := parsePaginationOptions(r)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err)
			return
		}

		ids := m.registry.IDs()
		resp := getGameResponse{
			Games: make([]gameSummary, 0, limit),
			Total: len(ids),
		}

		for i := offset; i < int64(len(ids)) && len(resp.Games) < limit; i++ {
			snap, err := m.registry.Snapshot(ids[i])
			if err != nil {
				// removed since IDs() was called
				continue
			}

			resp.Games = append(resp.Games, gameSummary{
				GameID:    snap.GameID,
				Phase:     snap.Phase,
				Round:     snap.Round,
				Players:   len(snap.Players),
				Connected: m.pitBoss.Connected(snap.GameID),
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

type postGamePayload struct {
	GameID  string             `json:"gameId"`
	Players []flip7.PlayerInfo `json:"players"`
	Seed    *int64             `json:"seed"`
	// TargetScore overrides the server's default when positive
	TargetScore int `json:"targetScore"`
}

func (m *Mux) postGame() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var pp postGamePayload
		if !decodeRequest(w, r, &pp) {
			return
		}

		if pp.GameID == "" {
			pp.GameID = util.RandomGameID(m.seeds)
		}

		seed := rng.Seed(m.seeds)
		if pp.Seed != nil {
			seed = *pp.Seed
		}

		opts := m.options.Game
		if pp.TargetScore > 0 {
			opts.TargetScore = pp.TargetScore
		}

		snap, err := m.registry.Create(pp.GameID, pp.Players, seed, opts)
		if err != nil {
			writeGameError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, snap)
	}
}

func (m *Mux) getGameID() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := m.registry.Snapshot(gameIDFromContext(r.Context()))
		if err != nil {
			writeGameError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, snap)
	}
}

type deleteGameResponse struct {
	GameID string `json:"gameId"`
	Status string `json:"status"`
}

func (m *Mux) deleteGameID() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID := gameIDFromContext(r.Context())
		if err := m.pitBoss.Reap(gameID); err != nil {
			writeGameError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, deleteGameResponse{
			GameID: gameID,
			Status: "deleted",
		})
	}
}
