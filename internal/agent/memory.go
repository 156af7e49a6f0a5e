package agent

import "github.com/johunsang/deepseek-code/internal/llm"

// Memory is the ordered, bounded conversation log of one loop. Eviction
// never drops a system turn: instructions survive no matter how long the
// conversation runs, old tool output does not.
type Memory struct {
	max   int
	turns []llm.ChatMessage
}

const defaultMaxTurns = 50

func NewMemory(max int) *Memory {
	if max <= 0 {
		max = defaultMaxTurns
	}
	return &Memory{max: max}
}

func (m *Memory) Append(turn llm.ChatMessage) {
	m.turns = append(m.turns, turn)
	if len(m.turns) <= m.max {
		return
	}
	system := make([]llm.ChatMessage, 0, 2)
	rest := make([]llm.ChatMessage, 0, len(m.turns))
	for _, t := range m.turns {
		if t.Role == llm.RoleSystem {
			system = append(system, t)
		} else {
			rest = append(rest, t)
		}
	}
	keep := m.max - len(system)
	if keep < 0 {
		keep = 0
	}
	if len(rest) > keep {
		rest = rest[len(rest)-keep:]
	}
	m.turns = append(system, rest...)
}

// All returns a copy of every turn in order.
func (m *Memory) All() []llm.ChatMessage {
	return append([]llm.ChatMessage(nil), m.turns...)
}

// Recent returns the last n turns in order (all turns when n exceeds the
// log length).
func (m *Memory) Recent(n int) []llm.ChatMessage {
	if n <= 0 {
		return nil
	}
	if n > len(m.turns) {
		n = len(m.turns)
	}
	return append([]llm.ChatMessage(nil), m.turns[len(m.turns)-n:]...)
}

func (m *Memory) Len() int { return len(m.turns) }
