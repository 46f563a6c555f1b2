package room

import (
	"errors"

	"flip7-server/pkg/flip7"
)

// message kinds
const (
	KindJoin      = "join"
	KindStartGame = "startGame"
	KindDraw      = "draw"
	KindStay      = "stay"
	KindPause     = "pause"
	KindResume    = "resume"
	KindSyncState = "syncState"
	KindError     = "error"
)

// CodeBusy is sent when a game's request queue is full
const CodeBusy = "busy"

// ErrBusy is returned when the dealer cannot accept more requests
var ErrBusy = errors.New("the game is busy, try again")

// PayloadIn is the format we expect from the client
type PayloadIn struct {
	Kind     string `json:"kind"`
	PlayerID string `json:"playerId,omitempty"`
	Name     string `json:"name,omitempty"`
	// Context will be passed back on the reply to this message
	Context string `json:"context,omitempty"`
}

// Response is a message sent to a client
type Response struct {
	Kind     string          `json:"kind"`
	PlayerID string          `json:"playerId,omitempty"`
	State    *flip7.Snapshot `json:"state,omitempty"`
	Code     string          `json:"code,omitempty"`
	Reason   string          `json:"reason,omitempty"`
	Context  string          `json:"context,omitempty"`
}

func newSyncState(ctx, playerID string, snap *flip7.Snapshot) *Response {
	return &Response{
		Kind:     KindSyncState,
		PlayerID: playerID,
		State:    snap,
		Context:  ctx,
	}
}

// NewErrorResponse returns an error message carrying the wire code of err
func NewErrorResponse(ctx string, err error) *Response {
	code := flip7.Code(err)
	if errors.Is(err, ErrBusy) {
		code = CodeBusy
	}

	return &Response{
		Kind:    KindError,
		Code:    code,
		Reason:  err.Error(),
		Context: ctx,
	}
}
