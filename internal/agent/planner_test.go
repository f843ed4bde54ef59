package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStep(t *testing.T) {
	step, err := parseStep(`{"tool":"google-maps","input":"Madrid"}`)
	require.NoError(t, err)
	assert.Equal(t, Step{Tool: "google-maps", Input: "Madrid"}, step)

	step, err = parseStep("```json\n{\"tool\":\"google-maps\",\"input\":{\"location\":\"Lisbon\"}}\n```")
	require.NoError(t, err)
	assert.Equal(t, "Lisbon", step.Input)

	step, err = parseStep(`{"final":"Sorry, I can only assist with drone flight registration."}`)
	require.NoError(t, err)
	assert.Equal(t, "", step.Tool)
	assert.Contains(t, step.Final, "drone flight registration")

	_, err = parseStep(`{}`)
	assert.Error(t, err)
	_, err = parseStep(`not json`)
	assert.Error(t, err)
}

func TestRenderTurn(t *testing.T) {
	out := renderTurn(PlanInput{
		Input: "drone 7 over Madrid",
		Tools: []ToolSpec{{Name: "google-maps", Description: "geocode"}},
		Observations: []Observation{
			{Tool: "google-maps", Input: "Madrid", Output: "Lat: 1, Lng: 2, Address: x"},
		},
	})
	assert.True(t, strings.HasPrefix(out, "User: drone 7 over Madrid"))
	assert.Contains(t, out, "- google-maps: geocode")
	assert.Contains(t, out, `google-maps("Madrid") => Lat: 1`)

	closed := renderTurn(PlanInput{Input: "x"})
	assert.Contains(t, closed, "No tools are available now")
}
