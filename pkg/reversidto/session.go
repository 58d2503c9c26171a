package reversidto

import "time"

// Message types pushed by the server.
const (
	MessageState    = "state"
	MessageAnalysis = "analysis"
	MessagePass     = "pass"
	MessageGameOver = "game_over"
	MessageError    = "error"
)

type Message struct {
	Type     string        `json:"type"`
	State    *SessionState `json:"state,omitempty"`
	Analysis *Hint         `json:"analysis,omitempty"`
	Side     string        `json:"side,omitempty"`
	Result   string        `json:"result,omitempty"`
	Error    *DomainError  `json:"error,omitempty"`
}

type Score struct {
	Black int `json:"black"`
	White int `json:"white"`
}

type MoveRecord struct {
	ID          int      `json:"id"`
	Side        string   `json:"side"`
	Move        string   `json:"move"`
	Score       *float64 `json:"score,omitempty"`
	RemainingMS *int64   `json:"remaining_ms,omitempty"`
}

type Hint struct {
	Move        string   `json:"move"`
	Score       float64  `json:"score"`
	Depth       int      `json:"depth"`
	TargetDepth int      `json:"target_depth,omitempty"`
	Certainty   int      `json:"certainty"`
	Nodes       int64    `json:"nodes,omitempty"`
	PV          []string `json:"pv,omitempty"`
	Endgame     bool     `json:"endgame,omitempty"`
}

type SessionState struct {
	SessionID   string       `json:"session_id"`
	Status      string       `json:"status"`
	Mode        string       `json:"mode"`
	Level       string       `json:"level"`
	Board       []string     `json:"board"`
	SideToMove  string       `json:"side_to_move"`
	LegalMoves  []string     `json:"legal_moves"`
	Moves       []MoveRecord `json:"moves"`
	LastMove    string       `json:"last_move,omitempty"`
	CanUndo     bool         `json:"can_undo"`
	CanRedo     bool         `json:"can_redo"`
	Score       Score        `json:"score"`
	PendingPass string       `json:"pending_pass,omitempty"`
	Thinking    bool         `json:"thinking"`
	Analyzing   bool         `json:"analyzing"`
	HintEnabled bool         `json:"hint_enabled"`
	ClockMS     int64        `json:"clock_ms"`
	Hints       []Hint       `json:"hints,omitempty"`
	Transcript  string       `json:"transcript"`
}

// Game is an archived finished game.
type Game struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	Mode       string    `json:"mode"`
	Level      string    `json:"level"`
	Result     string    `json:"result"`
	Score      Score     `json:"score"`
	Moves      []string  `json:"moves"`
	Transcript string    `json:"transcript"`
	StartBoard string    `json:"start_board"`
	StartSide  string    `json:"start_side"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	DurationMS int64     `json:"duration_ms"`
}
