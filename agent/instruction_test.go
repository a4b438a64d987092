package agent

import (
	"errors"
	"testing"

	"github.com/hupe1980/agentworld/core"
)

type mockProvider struct {
	text string
	err  error
}

func (m mockProvider) Instruction(PromptContext) (string, error) { return m.text, m.err }

func testPromptContext() PromptContext {
	return PromptContext{Name: "alice", Roster: []string{"bob", "carol"}, TurnLimit: 5, WorldID: "w1"}
}

func TestInstruction_Static(t *testing.T) {
	inst := NewInstructionFromText("static instruction")
	if !inst.IsStatic() {
		t.Fatalf("expected static instruction")
	}
	got, err := inst.Resolve(testPromptContext())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "static instruction" {
		t.Fatalf("expected 'static instruction', got %q", got)
	}
}

func TestInstruction_Template(t *testing.T) {
	inst := NewInstructionFromText("I am {{.Name}} with {{join \", \" .Roster}}, limit {{.TurnLimit}}")
	got, err := inst.Resolve(testPromptContext())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "I am alice with bob, carol, limit 5" {
		t.Fatalf("unexpected rendering %q", got)
	}
}

func TestInstruction_NewInstructionFromFunc(t *testing.T) {
	inst := NewInstructionFromFunc(func(pc PromptContext) (string, error) { return "dynamic for " + pc.Name, nil })
	if inst.IsStatic() {
		t.Fatalf("expected dynamic instruction")
	}
	got, err := inst.Resolve(testPromptContext())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "dynamic for alice" {
		t.Fatalf("expected 'dynamic for alice', got %q", got)
	}
}

func TestInstruction_ErrorPropagation(t *testing.T) {
	expectedErr := errors.New("boom")
	inst := NewInstructionFromProvider(mockProvider{err: expectedErr})
	_, err := inst.Resolve(testPromptContext())
	if !errors.Is(err, expectedErr) {
		t.Fatalf("expected error %v, got %v", expectedErr, err)
	}
}

func TestInstructionFor_Default(t *testing.T) {
	got, err := InstructionFor(core.NewAgentProfile("alice")).Resolve(testPromptContext())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == "" || got == DefaultInstructionText {
		t.Fatalf("default instruction was not rendered: %q", got)
	}
}
