package agent

import (
	"context"
	"errors"
	"strings"

	"drone-flight/registry/internal/logging"
)

var ErrEmptyInput = errors.New("input is required")

// Dispatcher runs one conversational turn.
type Dispatcher struct {
	planner    Planner
	tools      *Registry
	system     string
	maxHistory int

	// OnToolCall, when set, observes every tool invocation.
	OnToolCall func(tool string, err error)
}

func NewDispatcher(planner Planner, tools *Registry, maxHistory int) *Dispatcher {
	return &Dispatcher{
		planner:    planner,
		tools:      tools,
		system:     SystemPrompt,
		maxHistory: maxHistory,
	}
}

// Run asks the planner for steps until it answers. Every tool is called at
// most once, and the planner is consulted at most once per tool plus once
// for the answer. Requesting a used or unknown tool closes tool selection.
func (d *Dispatcher) Run(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.Input) == "" {
		return nil, ErrEmptyInput
	}

	in := PlanInput{
		System:  d.system,
		History: trimHistory(req.ChatHistory, d.maxHistory),
		Input:   req.Input,
	}
	used := make(map[string]bool, d.tools.Len())
	toolsClosed := false
	resp := &Response{Tools: []string{}}

	for calls := 0; calls < d.tools.Len()+1; calls++ {
		if toolsClosed {
			in.Tools = nil
		} else {
			in.Tools = d.tools.Specs(used)
		}

		step, err := d.planner.Next(ctx, in)
		if err != nil {
			return nil, err
		}

		if step.Tool == "" {
			resp.Result = step.Final
			break
		}

		tool, ok := d.tools.Get(step.Tool)
		if !ok || used[step.Tool] || toolsClosed {
			logging.Warn("Planner requested an unavailable tool",
				"tool", step.Tool,
				"known", ok,
				"already_used", used[step.Tool],
			)
			toolsClosed = true
			if step.Final != "" {
				resp.Result = step.Final
				break
			}
			continue
		}

		used[step.Tool] = true
		output, callErr := tool.Call(ctx, step.Input)
		if callErr != nil {
			logging.Warn("Agent tool call failed", "tool", step.Tool, "error", callErr.Error())
		}
		if d.OnToolCall != nil {
			d.OnToolCall(step.Tool, callErr)
		}
		resp.Tools = append(resp.Tools, step.Tool)
		in.Observations = append(in.Observations, Observation{Tool: step.Tool, Input: step.Input, Output: output})
	}

	if strings.TrimSpace(resp.Result) == "" {
		resp.Result = NoResponse
	}
	return resp, nil
}
