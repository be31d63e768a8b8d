package domain

// ContextType classifies where in the UI an error was raised.
type ContextType string

const (
	ContextDOM         ContextType = "dom_operation"
	ContextNetwork     ContextType = "network_operation"
	ContextGameLogic   ContextType = "game_logic"
	ContextTranslation ContextType = "translation"
	ContextSocket      ContextType = "socket_event"
	ContextOther       ContextType = "other"
)

// ContextTypes lists every known context type, in tally display order.
var ContextTypes = []ContextType{
	ContextDOM,
	ContextNetwork,
	ContextGameLogic,
	ContextTranslation,
	ContextSocket,
	ContextOther,
}

// Valid reports whether t is one of the known context types.
func (t ContextType) Valid() bool {
	switch t {
	case ContextDOM, ContextNetwork, ContextGameLogic, ContextTranslation, ContextSocket, ContextOther:
		return true
	}
	return false
}

// Normalize maps unrecognized types to ContextOther so that callers
// passing free-form tags never bypass the dispatch table.
func (t ContextType) Normalize() ContextType {
	if t.Valid() {
		return t
	}
	return ContextOther
}

// ErrorContext describes the unit of work that raised an error.
type ErrorContext struct {
	Type      ContextType
	Operation string // e.g. "question_display", "preview_update"
	Region    string // affected content region, if any
	HighChurn bool   // rapid-refresh paths get a larger error budget
}
