package conversation

// Role identifies who produced a turn.
type Role string

const (
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleToolResult Role = "tool_result"
)

// Turn is one entry in a conversation history: user input, assistant output,
// or the serialized result of a tool the model asked for.
type Turn struct {
	Role     Role
	Text     string
	ToolName string // set only for RoleToolResult
}

// DefaultHistoryCapacity bounds how many turns a session retains when no
// explicit capacity is configured.
const DefaultHistoryCapacity = 8

// History is an ordered, capacity-bounded sequence of turns. Appending beyond
// capacity evicts the oldest turn; eviction is strictly FIFO so the remaining
// turns keep their relative order.
type History struct {
	capacity int
	turns    []Turn
}

// NewHistory creates a history bounded to the given capacity. A non-positive
// capacity falls back to DefaultHistoryCapacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{
		capacity: capacity,
		turns:    make([]Turn, 0, capacity),
	}
}

// Append adds a turn, evicting the oldest one if the history is full.
func (h *History) Append(t Turn) {
	if len(h.turns) == h.capacity {
		copy(h.turns, h.turns[1:])
		h.turns = h.turns[:len(h.turns)-1]
	}
	h.turns = append(h.turns, t)
}

// Turns returns a copy of the history in order.
func (h *History) Turns() []Turn {
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len returns the number of retained turns.
func (h *History) Len() int {
	return len(h.turns)
}

// Capacity returns the maximum number of retained turns.
func (h *History) Capacity() int {
	return h.capacity
}
