package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

type ToolSpec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Observation is the outcome of one tool call during the current turn.
type Observation struct {
	Tool   string `json:"tool"`
	Input  string `json:"input"`
	Output string `json:"output"`
}

// PlanInput is everything the planner sees for one decision. Tools lists
// only the tools still available; it is empty when the planner must answer.
type PlanInput struct {
	System       string
	History      []Message
	Input        string
	Tools        []ToolSpec
	Observations []Observation
}

// Step is a planner decision: call Tool with Input, or answer with Final.
type Step struct {
	Tool  string `json:"tool,omitempty"`
	Input string `json:"input,omitempty"`
	Final string `json:"final,omitempty"`
}

type Planner interface {
	Next(ctx context.Context, in PlanInput) (Step, error)
}

// PlannerFunc adapts a function to Planner.
type PlannerFunc func(ctx context.Context, in PlanInput) (Step, error)

func (f PlannerFunc) Next(ctx context.Context, in PlanInput) (Step, error) {
	return f(ctx, in)
}

// parseStep decodes the planner's JSON reply. Tool inputs given as JSON
// objects (e.g. {"location":"Madrid"}) are flattened to their single
// string value.
func parseStep(raw string) (Step, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var wire struct {
		Tool  string          `json:"tool"`
		Input json.RawMessage `json:"input"`
		Final string          `json:"final"`
	}
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return Step{}, fmt.Errorf("planner returned invalid JSON: %w", err)
	}

	step := Step{Tool: strings.TrimSpace(wire.Tool), Final: wire.Final}
	if len(wire.Input) > 0 {
		step.Input = flattenInput(wire.Input)
	}
	if step.Tool == "" && step.Final == "" {
		return Step{}, fmt.Errorf("planner returned neither a tool nor a final answer")
	}
	return step, nil
}

func flattenInput(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil && len(obj) == 1 {
		for _, v := range obj {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return string(raw)
}

// renderTurn formats the current input, available tools and observations
// as the last user message of the planner prompt.
func renderTurn(in PlanInput) string {
	var b strings.Builder
	b.WriteString("User: ")
	b.WriteString(in.Input)
	b.WriteString("\n\n")

	if len(in.Tools) > 0 {
		b.WriteString("Available tools (each may be used at most once):\n")
		for _, t := range in.Tools {
			fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
		}
	} else {
		b.WriteString("No tools are available now. You must answer.\n")
	}

	if len(in.Observations) > 0 {
		b.WriteString("\nTool results so far:\n")
		for _, o := range in.Observations {
			fmt.Fprintf(&b, "- %s(%q) => %s\n", o.Tool, o.Input, o.Output)
		}
	}

	b.WriteString("\nReply with JSON only: {\"tool\":\"<name>\",\"input\":\"<text>\"} to call a tool, or {\"final\":\"<reply to the user>\"} to answer.")
	return b.String()
}
