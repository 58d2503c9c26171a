package reversidto

// Command types accepted on the session socket.
const (
	CommandStart    = "start"
	CommandSetup    = "setup"
	CommandResume   = "resume"
	CommandPlace    = "place"
	CommandPassAck  = "pass_ack"
	CommandUndo     = "undo"
	CommandRedo     = "redo"
	CommandReset    = "reset"
	CommandHint     = "hint"
	CommandRetry    = "retry"
	CommandSnapshot = "snapshot"
)

type Command struct {
	Type string `json:"type"`

	// start and setup
	Mode         string        `json:"mode,omitempty"`
	Level        string        `json:"level,omitempty"`
	HintLevel    string        `json:"hint_level,omitempty"`
	TimeBudgetMS int64         `json:"time_budget_ms,omitempty"`
	Setup        *SetupRequest `json:"setup,omitempty"`

	// place
	Move string `json:"move,omitempty"`
	// hint, and the initial hint toggle for start and setup
	Hint *bool `json:"hint,omitempty"`
	// resume
	SessionID string `json:"session_id,omitempty"`
}

// SetupRequest carries one of the three import encodings; InputMode picks
// which field is read.
type SetupRequest struct {
	InputMode  string `json:"input_mode"`
	Transcript string `json:"transcript,omitempty"`
	Board      string `json:"board,omitempty"`
	SideToMove string `json:"side_to_move,omitempty"`
}
