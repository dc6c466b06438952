package main

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMCP(t *testing.T, handler http.HandlerFunc) *MCPServer {
	t.Helper()
	api := httptest.NewServer(handler)
	t.Cleanup(api.Close)

	v := viper.New()
	v.Set("MEDREMINDER_API_URL", api.URL+"/")
	v.Set("MEDREMINDER_API_USERNAME", "u")
	v.Set("MEDREMINDER_API_PASSWORD", "p")
	return NewMCPServer(v)
}

type callResult struct {
	Result ToolCallResult `json:"result"`
	Error  *RPCError      `json:"error"`
}

func run(t *testing.T, s *MCPServer, lines ...string) []callResult {
	t.Helper()
	var out strings.Builder
	s.Run(strings.NewReader(strings.Join(lines, "\n")), &out)

	var results []callResult
	sc := bufio.NewScanner(strings.NewReader(out.String()))
	for sc.Scan() {
		var r callResult
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		results = append(results, r)
	}
	return results
}

func TestToggleDoseCallsAPI(t *testing.T) {
	var gotPath, gotUser string
	s := newTestMCP(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, _, _ = r.BasicAuth()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"completed":true}}`))
	})

	results := run(t, s,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"medreminder_toggle_dose","arguments":{"event_id":"abc-2024-01-01-09:00"}}}`,
	)

	require.Len(t, results, 1)
	assert.False(t, results[0].Result.IsError)
	assert.Contains(t, results[0].Result.Content[0].Text, `"completed": true`)
	assert.Equal(t, "/api/events/abc-2024-01-01-09:00/toggle", gotPath)
	assert.Equal(t, "u", gotUser)
}

func TestAPIErrorIsReported(t *testing.T) {
	s := newTestMCP(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"error":"not found"}`))
	})

	results := run(t, s,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"medreminder_day_schedule","arguments":{"date":"2024-01-01"}}}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"medreminder_toggle_dose","arguments":{}}}`,
	)

	require.Len(t, results, 2)
	assert.True(t, results[0].Result.IsError)
	assert.Equal(t, "API Error: not found", results[0].Result.Content[0].Text)
	assert.True(t, results[1].Result.IsError)
}

func TestProtocolMethods(t *testing.T) {
	s := newTestMCP(t, func(w http.ResponseWriter, r *http.Request) {})

	var out strings.Builder
	s.Run(strings.NewReader(strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`not json`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"resources/list"}`,
	}, "\n")), &out)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3, "notifications and garbage get no reply")
	assert.Contains(t, lines[0], "medreminder-mcp")
	assert.Contains(t, lines[1], "medreminder_toggle_dose")
	assert.Contains(t, lines[2], "-32601")
}
