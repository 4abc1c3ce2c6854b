package autosave

// State is the autosave position of one record.
type State int

const (
	Idle State = iota
	Pending
	Saving
	Saved
	Error
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Saving:
		return "saving"
	case Saved:
		return "saved"
	case Error:
		return "error"
	default:
		return "idle"
	}
}

// Status is what the UI shows next to a row.
type Status struct {
	State State
	// Err is the last save failure. It stays set until a later save succeeds.
	Err error
}
