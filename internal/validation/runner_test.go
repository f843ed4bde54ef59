package validation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// helperRunner re-executes the test binary as a stand-in validator.
func helperRunner(mode string, timeout time.Duration) *Runner {
	return NewRunner(RunnerConfig{
		Command:       os.Args[0],
		Args:          []string{"-test.run=^TestHelperProcess$", "--", mode},
		Env:           []string{"GO_WANT_HELPER_PROCESS=1"},
		Timeout:       timeout,
		MaxConcurrent: 2,
	})
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	mode := ""
	for i, arg := range os.Args {
		if arg == "--" && i+1 < len(os.Args) {
			mode = os.Args[i+1]
			break
		}
	}
	input, _ := io.ReadAll(os.Stdin)

	switch mode {
	case "answer":
		fmt.Print(`{"answer":"ok"}`)
	case "echo":
		fmt.Printf(`{"received":%s}`, input)
	case "compliance":
		fmt.Println(`{"complianceMessages":["Altitude within 120m limit"]}`)
	case "reported":
		fmt.Print(`{"error":"Invalid response from validation agent."}`)
	case "fail":
		fmt.Fprint(os.Stderr, "Error: regulation.txt not found")
		os.Exit(1)
	case "garbage":
		fmt.Print("Thought: I need to use a tool to help me answer the question.")
	case "two":
		fmt.Print(`{"a":1}{"b":2}`)
	case "hang":
		time.Sleep(time.Minute)
	case "empty":
	}
	os.Exit(0)
}

func TestRunner_ReturnsDocument(t *testing.T) {
	doc, err := helperRunner("answer", 10*time.Second).Run(context.Background(), []byte(`{"droneName":"x"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"answer":"ok"}`, string(doc))
}

func TestRunner_WritesInputToStdin(t *testing.T) {
	doc, err := helperRunner("echo", 10*time.Second).Run(context.Background(), []byte(`{"droneName":"x"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"received":{"droneName":"x"}}`, string(doc))
}

func TestRunner_NonZeroExit(t *testing.T) {
	_, err := helperRunner("fail", 10*time.Second).Run(context.Background(), []byte(`{}`))
	require.Error(t, err)

	var procErr *ProcessError
	require.True(t, errors.As(err, &procErr), "got %T", err)
	assert.Equal(t, 1, procErr.ExitCode)
	assert.True(t, strings.Contains(procErr.Stderr, "regulation.txt"))
}

func TestRunner_RejectsNonJSON(t *testing.T) {
	_, err := helperRunner("garbage", 10*time.Second).Run(context.Background(), []byte(`{}`))
	assert.ErrorIs(t, err, ErrInvalidOutput)

	_, err = helperRunner("two", 10*time.Second).Run(context.Background(), []byte(`{}`))
	assert.ErrorIs(t, err, ErrInvalidOutput)

	_, err = helperRunner("empty", 10*time.Second).Run(context.Background(), []byte(`{}`))
	assert.ErrorIs(t, err, ErrEmptyOutput)
}

func TestRunner_Timeout(t *testing.T) {
	start := time.Now()
	_, err := helperRunner("hang", 300*time.Millisecond).Run(context.Background(), []byte(`{}`))
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 30*time.Second)
}

func TestRunner_WaitsForSlot(t *testing.T) {
	r := helperRunner("answer", 10*time.Second)
	require.NoError(t, r.sem.Acquire(context.Background(), 2))
	defer r.sem.Release(2)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := r.Run(ctx, []byte(`{}`))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunner_MissingCommand(t *testing.T) {
	_, err := NewRunner(RunnerConfig{}).Run(context.Background(), []byte(`{}`))
	assert.Error(t, err)
}

func TestDecodeDocument(t *testing.T) {
	doc, err := decodeDocument([]byte("  \n\"ok\"\n"))
	require.NoError(t, err)
	assert.Equal(t, `"ok"`, string(doc))

	_, err = decodeDocument([]byte("null"))
	assert.ErrorIs(t, err, ErrInvalidOutput)
}

func TestLimitedWriter(t *testing.T) {
	var sb strings.Builder
	w := &limitedWriter{w: &sb, max: 4}
	n, err := w.Write([]byte("abcdef"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, "abcd", sb.String())
	assert.True(t, w.truncated)
}
