package agent

import (
	"fmt"

	"github.com/hupe1980/agentworld/core"
	"github.com/hupe1980/agentworld/internal/util"
)

// PromptContext is the data available to system prompt templates.
type PromptContext struct {
	Name      string
	Agent     core.AgentProfile
	Roster    []string
	TurnLimit int
	WorldID   string
}

// Provider supplies dynamic instruction text at runtime.
type Provider interface {
	Instruction(PromptContext) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(PromptContext) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(pc PromptContext) (string, error) { return f(pc) }

// Instruction represents either a static template string or a dynamic provider.
type Instruction struct {
	text     string
	provider Provider
}

// DefaultInstructionText is used for agents without a configured prompt.
const DefaultInstructionText = "You are {{.Name}}, one participant of a group chat with {{join \", \" .Roster}} and a human. " +
	"Address another participant with @name. Reply with <world>pass</world> to hand control back to the human."

// NewInstructionFromText creates an Instruction from a static template.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(PromptContext) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// InstructionFor returns the instruction configured on p or the default.
func InstructionFor(p core.AgentProfile) Instruction {
	if p.SystemPrompt != "" {
		return NewInstructionFromText(p.SystemPrompt)
	}
	return NewInstructionFromText(DefaultInstructionText)
}

// IsStatic returns true if the instruction is backed by a static template.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the instruction text, rendering the template or invoking
// the provider as needed.
func (i Instruction) Resolve(pc PromptContext) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(pc)
	}

	data := map[string]any{
		"Name":      pc.Name,
		"Roster":    toAny(pc.Roster),
		"TurnLimit": pc.TurnLimit,
		"WorldID":   pc.WorldID,
	}

	text, err := util.RenderTemplate(i.text, data)
	if err != nil {
		return "", fmt.Errorf("render instruction for %s: %w", pc.Name, err)
	}

	return text, nil
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
