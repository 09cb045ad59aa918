package chessdto

import (
	"encoding/json"
	"time"
)

// Event types carried in Envelope.Type.
const (
	TypeJoinLobby  = "joinLobby"
	TypeLeaveLobby = "leaveLobby"
	TypeJoinMatch  = "joinMatch"
	TypeStartMatch = "startMatch"
	TypeSubmitMove = "submitMove"
	TypeEndMatch   = "endMatch"

	TypeQueued       = "queued"
	TypeMatched      = "matched"
	TypeMatchState   = "matchState"
	TypeMoveApplied  = "moveApplied"
	TypeMoveRejected = "moveRejected"
	TypeMatchEnded   = "matchEnded"
	TypeError        = "error"
)

// Envelope is one websocket frame.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload under typ.
func NewEnvelope(typ string, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Type: typ}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: typ, Payload: raw}, nil
}

// Decode unmarshals the payload into dst. An empty payload leaves dst untouched.
func (e Envelope) Decode(dst any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, dst)
}

type MatchRef struct {
	MatchID string `json:"matchId"`
}

// SubmitMove accepts either From/To squares ("e2", "e3") or Move ("e2e3").
type SubmitMove struct {
	MatchID string `json:"matchId"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
	Move    string `json:"move,omitempty"`
}

type EndMatch struct {
	MatchID string `json:"matchId"`
	Reason  string `json:"reason,omitempty"`
}

type PlayerView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Skill int    `json:"skill"`
	Color string `json:"color"`
}

type Queued struct {
	Waiting   int `json:"waiting"`
	Tolerance int `json:"tolerance"`
}

type Matched struct {
	MatchID       string     `json:"matchId"`
	Opponent      PlayerView `json:"opponent"`
	AssignedColor string     `json:"assignedColor"`
	Status        string     `json:"status"`
}

type MoveView struct {
	Ply   int    `json:"ply"`
	Move  string `json:"move"`
	Color string `json:"color"`
}

type MatchState struct {
	MatchID     string       `json:"matchId"`
	Status      string       `json:"status"`
	Board       string       `json:"board"`
	Turn        string       `json:"turn"`
	Players     []PlayerView `json:"players"`
	Moves       []MoveView   `json:"moves"`
	CreatedAt   time.Time    `json:"createdAt"`
	StartedAt   *time.Time   `json:"startedAt,omitempty"`
	EndedAt     *time.Time   `json:"endedAt,omitempty"`
	Winner      string       `json:"winner,omitempty"`
	Reason      string       `json:"reason,omitempty"`
	RemainingMs int64        `json:"remainingMs"`
	BudgetMs    int64        `json:"budgetMs"`
}

type MoveApplied struct {
	MatchID     string `json:"matchId"`
	Ply         int    `json:"ply"`
	Move        string `json:"move"`
	Mover       string `json:"mover"`
	Board       string `json:"board"`
	NextTurn    string `json:"nextTurn"`
	Status      string `json:"status"`
	RemainingMs int64  `json:"remainingMs"`
}

type MoveRejected struct {
	MatchID string    `json:"matchId"`
	Kind    ErrorKind `json:"errorKind"`
	Message string    `json:"message"`
	Detail  string    `json:"detail,omitempty"`
}

type MatchEnded struct {
	MatchID string `json:"matchId"`
	Status  string `json:"status"`
	Winner  string `json:"winner,omitempty"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type LobbyStatus struct {
	Waiting int `json:"waiting"`
}

// ResultView is one archived match in a player's history.
type ResultView struct {
	MatchID    string     `json:"matchId"`
	White      PlayerView `json:"white"`
	Black      PlayerView `json:"black"`
	Status     string     `json:"status"`
	Result     string     `json:"result"`
	Reason     string     `json:"reason,omitempty"`
	EndedBy    string     `json:"endedBy,omitempty"`
	Moves      []string   `json:"moves"`
	Movetext   string     `json:"movetext"`
	FinalBoard string     `json:"finalBoard"`
	CreatedAt  time.Time  `json:"createdAt"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	EndedAt    *time.Time `json:"endedAt,omitempty"`
	DurationMs int64      `json:"durationMs"`
}
