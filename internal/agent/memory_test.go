package agent

import (
	"fmt"
	"testing"

	"github.com/johunsang/deepseek-code/internal/llm"
)

func TestMemoryNeverEvictsSystemTurns(t *testing.T) {
	m := NewMemory(5)
	m.Append(llm.ChatMessage{Role: llm.RoleSystem, Content: "instructions"})
	for i := 0; i < 40; i++ {
		m.Append(llm.ChatMessage{Role: llm.RoleUser, Content: fmt.Sprintf("turn %d", i)})
	}
	if m.Len() > 5 {
		t.Fatalf("memory exceeded bound: %d", m.Len())
	}
	turns := m.All()
	found := false
	for _, turn := range turns {
		if turn.Role == llm.RoleSystem && turn.Content == "instructions" {
			found = true
		}
	}
	if !found {
		t.Fatal("system turn was evicted")
	}
	if last := turns[len(turns)-1]; last.Content != "turn 39" {
		t.Fatalf("eviction must keep the most recent turns, tail is %q", last.Content)
	}
}

func TestMemoryKeepsMultipleSystemTurns(t *testing.T) {
	m := NewMemory(4)
	m.Append(llm.ChatMessage{Role: llm.RoleSystem, Content: "base"})
	m.Append(llm.ChatMessage{Role: llm.RoleUser, Content: "ask"})
	m.Append(llm.ChatMessage{Role: llm.RoleSystem, Content: "nudge"})
	for i := 0; i < 10; i++ {
		m.Append(llm.ChatMessage{Role: llm.RoleAssistant, Content: fmt.Sprintf("a%d", i)})
	}
	system := 0
	for _, turn := range m.All() {
		if turn.Role == llm.RoleSystem {
			system++
		}
	}
	if system != 2 {
		t.Fatalf("expected both system turns to survive, got %d", system)
	}
	if m.Len() != 4 {
		t.Fatalf("expected exactly 4 turns, got %d", m.Len())
	}
}

func TestRecentReturnsTail(t *testing.T) {
	m := NewMemory(10)
	for i := 0; i < 6; i++ {
		m.Append(llm.ChatMessage{Role: llm.RoleUser, Content: fmt.Sprintf("t%d", i)})
	}
	recent := m.Recent(3)
	if len(recent) != 3 || recent[0].Content != "t3" || recent[2].Content != "t5" {
		t.Fatalf("unexpected tail %+v", recent)
	}
	if got := m.Recent(100); len(got) != 6 {
		t.Fatalf("oversized n should return everything, got %d", len(got))
	}
}
