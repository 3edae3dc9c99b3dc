package relayserver

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	ledgerPath := filepath.Join(t.TempDir(), "custody", "ledger.jsonl")
	start := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	calls := 0
	s := New(Options{
		LedgerPath: ledgerPath,
		Log:        logr.Discard(),
		Now: func() time.Time {
			calls++
			return start.Add(time.Duration(calls-1) * 1500 * time.Millisecond)
		},
	})
	return s, ledgerPath
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req, err := http.NewRequest(method, path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	s.Handler().ServeHTTP(w, req)
	return w
}

func readLedger(t *testing.T, path string) []LedgerEntry {
	t.Helper()
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	defer f.Close()
	var out []LedgerEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e LedgerEntry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		out = append(out, e)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestHealth_ReturnsOK(t *testing.T) {
	s, ledger := newTestServer(t)
	w := do(t, s, "GET", "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.Empty(t, readLedger(t, ledger))
}

func TestHeartbeat_EmitsPulseAndRecordsIt(t *testing.T) {
	s, ledger := newTestServer(t)
	w := do(t, s, "GET", "/heartbeat", "")
	require.Equal(t, http.StatusOK, w.Code)

	var pulse Pulse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pulse))
	assert.Equal(t, "alive", pulse.Status)
	assert.NotEmpty(t, pulse.Hostname)
	assert.Equal(t, 1.5, pulse.UptimeSeconds)

	entries := readLedger(t, ledger)
	require.Len(t, entries, 1)
	assert.Equal(t, EventHeartbeat, entries[0].Event)
	data, ok := entries[0].Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "alive", data["status"])
}

func TestRelay_Received(t *testing.T) {
	s, ledger := newTestServer(t)
	w := do(t, s, "POST", "/relay", `{"tool":"search","envelope":{"q":"status"}}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"received","tool":"search"}`, w.Body.String())

	entries := readLedger(t, ledger)
	require.Len(t, entries, 1)
	assert.Equal(t, EventRelayReceived, entries[0].Event)
	assert.Equal(t, map[string]any{"tool": "search", "envelope": map[string]any{"q": "status"}}, entries[0].Data)
}

func TestRelay_InvalidJSON(t *testing.T) {
	s, ledger := newTestServer(t)
	w := do(t, s, "POST", "/relay", `{"tool":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"detail":"Invalid JSON body"}`, w.Body.String())
	entries := readLedger(t, ledger)
	require.Len(t, entries, 1)
	assert.Equal(t, EventRelayInvalid, entries[0].Event)
	assert.Equal(t, map[string]any{"body_type": "invalid_json"}, entries[0].Data)
}

func TestRelay_TrailingDataIsInvalidJSON(t *testing.T) {
	for _, body := range []string{`{"tool":"a","envelope":{"x":1}} }`, `{"tool":"a","envelope":{"x":1}} {}`} {
		s, ledger := newTestServer(t)
		w := do(t, s, "POST", "/relay", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.JSONEq(t, `{"detail":"Invalid JSON body"}`, w.Body.String(), body)
		entries := readLedger(t, ledger)
		require.Len(t, entries, 1, body)
		assert.Equal(t, map[string]any{"body_type": "invalid_json"}, entries[0].Data, body)
	}

	s, _ := newTestServer(t)
	w := do(t, s, "POST", "/relay", "{\"tool\":\"a\",\"envelope\":{\"x\":1}}\n  \n")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRelay_NonObjectBody(t *testing.T) {
	cases := map[string]string{
		`[1,2]`:  "list",
		`"text"`: "str",
		`42`:     "int",
		`4.2`:    "float",
		`true`:   "bool",
		`null`:   "NoneType",
	}
	for body, want := range cases {
		s, ledger := newTestServer(t)
		w := do(t, s, "POST", "/relay", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.JSONEq(t, `{"detail":"Invalid envelope"}`, w.Body.String(), body)
		entries := readLedger(t, ledger)
		require.Len(t, entries, 1, body)
		assert.Equal(t, map[string]any{"body_type": want}, entries[0].Data, body)
	}
}

func TestRelay_MissingEnvelopeOrTool(t *testing.T) {
	s, ledger := newTestServer(t)
	w := do(t, s, "POST", "/relay", `{"tool":"search","envelope":{},"zeta":1,"alpha":2}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"detail":"Invalid envelope"}`, w.Body.String())
	entries := readLedger(t, ledger)
	require.Len(t, entries, 1)
	assert.Equal(t, map[string]any{
		"body_type":    "dict",
		"keys":         []any{"alpha", "envelope", "tool", "zeta"},
		"has_envelope": false,
		"has_tool":     true,
	}, entries[0].Data)
}

func TestRelay_KeyListCapped(t *testing.T) {
	s, ledger := newTestServer(t)
	fields := make([]string, 0, 60)
	for i := 0; i < 60; i++ {
		fields = append(fields, `"k`+string(rune('A'+i%26))+strings.Repeat("x", i/26)+`":1`)
	}
	w := do(t, s, "POST", "/relay", "{"+strings.Join(fields, ",")+"}")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	entries := readLedger(t, ledger)
	require.Len(t, entries, 1)
	data := entries[0].Data.(map[string]any)
	assert.Len(t, data["keys"], maxLedgerKeys)
}

func TestRelay_LedgerFailureIsNotAcknowledged(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "custody")
	require.NoError(t, os.WriteFile(blocker, []byte("not a dir"), 0o644))
	s := New(Options{LedgerPath: filepath.Join(blocker, "ledger.jsonl"), Log: logr.Discard()})

	w := do(t, s, "POST", "/relay", `{"tool":"search","envelope":{"q":1}}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestMetrics_CountsOutcomes(t *testing.T) {
	s, _ := newTestServer(t)
	do(t, s, "POST", "/relay", `{"tool":"a","envelope":{"x":1}}`)
	do(t, s, "POST", "/relay", `nope`)
	do(t, s, "GET", "/heartbeat", "")

	w := do(t, s, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `codex_relay_requests_total{outcome="received"} 1`)
	assert.Contains(t, body, `codex_relay_requests_total{outcome="invalid_json"} 1`)
	assert.Contains(t, body, `codex_relay_heartbeats_total 1`)
}

func TestMetrics_LedgerFailureCountedOnce(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "custody")
	require.NoError(t, os.WriteFile(blocker, []byte("not a dir"), 0o644))
	s := New(Options{LedgerPath: filepath.Join(blocker, "ledger.jsonl"), Log: logr.Discard()})

	w := do(t, s, "POST", "/relay", `nope`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	w = do(t, s, "POST", "/relay", `[1]`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = do(t, s, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `codex_relay_requests_total{outcome="ledger_error"} 2`)
	assert.NotContains(t, body, `outcome="invalid_json"`)
	assert.NotContains(t, body, `outcome="invalid_envelope"`)
}
