// Command flightctl talks to a running flight registry.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"drone-flight/registry/internal/agent"
	"drone-flight/registry/internal/client"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	timeout   time.Duration
	wallet    string
	fromID    uint64
	limit     int
)

var rootCmd = &cobra.Command{
	Use:           "flightctl",
	Short:         "Command line client for the drone flight registry",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var registerCmd = &cobra.Command{
	Use:   "register [file]",
	Short: "Register a flight from a JSON payload (file or stdin)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := readPayload(cmd, args)
		if err != nil {
			return err
		}
		resp, err := newClient().RegisterFlight(cmd.Context(), payload, wallet)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Run the compliance validator over flight details",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := readPayload(cmd, args)
		if err != nil {
			return err
		}
		result, err := newClient().ValidateFlight(cmd.Context(), payload)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	},
}

var droneIDCmd = &cobra.Command{
	Use:   "drone-id",
	Short: "Print the current ledger counter",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		resp, err := newClient().DroneID(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), resp.DroneID)
		return nil
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List registration events",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		resp, err := newClient().Events(cmd.Context(), fromID, limit)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Send one message to the registration agent",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := newClient().Ask(cmd.Context(), agent.Request{Input: strings.Join(args, " ")})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), resp.Result)
		if len(resp.Tools) > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "tools: %s\n", strings.Join(resp.Tools, ", "))
		}
		return nil
	},
}

func init() {
	defaultURL := os.Getenv("FLIGHTREG_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8080"
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultURL, "registry base URL (or set FLIGHTREG_URL)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 90*time.Second, "request timeout")

	registerCmd.Flags().StringVar(&wallet, "wallet", "", "registrant address sent as X-Wallet-Address")
	eventsCmd.Flags().Uint64Var(&fromID, "from", 1, "first flight id")
	eventsCmd.Flags().IntVar(&limit, "limit", 100, "maximum events to list")

	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(droneIDCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(askCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newClient() *client.Client {
	return client.New(serverURL, timeout)
}

func readPayload(cmd *cobra.Command, args []string) (json.RawMessage, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 1 && args[0] != "-" {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("payload is not valid JSON")
	}
	return json.RawMessage(data), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
