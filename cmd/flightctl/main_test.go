package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDroneIDCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ledger/droneId", r.URL.Path)
		_, _ = w.Write([]byte(`{"droneId":12,"contract":"0x5FbDB2315678afecb367f032d93F642f64180aa3","chainId":1337}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"drone-id", "--server", srv.URL})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "12\n", out.String())
}

func TestRegisterCommand_ReadsStdin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "0x00000000000000000000000000000000000000a1", r.Header.Get("X-Wallet-Address"))
		_, _ = w.Write([]byte(`{"message":"Flight registered successfully!","flightId":1,"txHash":"0x01","registrant":"0xa1","event":"RegisteredFlight","explorerUrl":"x"}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetIn(strings.NewReader(`{"droneName":"Scout"}`))
	rootCmd.SetArgs([]string{"register", "--server", srv.URL, "--wallet", "0x00000000000000000000000000000000000000a1"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), `"flightId": 1`)
}

func TestRegisterCommand_RejectsInvalidJSON(t *testing.T) {
	rootCmd.SetIn(strings.NewReader(`{nope`))
	rootCmd.SetArgs([]string{"register", "--server", "http://127.0.0.1:1"})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")
}
