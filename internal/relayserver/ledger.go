package relayserver

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// LedgerRelPath is the custody ledger location under the process root.
const LedgerRelPath = "custody/ledger.jsonl"

// Custody event names.
const (
	EventHeartbeat     = "HEARTBEAT_EMIT"
	EventRelayInvalid  = "RELAY_INVALID"
	EventRelayReceived = "RELAY_RECEIVED"
)

// LedgerEntry is one line of the custody ledger.
type LedgerEntry struct {
	TS    string `json:"ts"`
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Ledger is an append-only JSON lines file. Appends are serialized so
// concurrent requests never interleave partial lines.
type Ledger struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

func NewLedger(path string) *Ledger {
	return &Ledger{path: path, now: time.Now}
}

func (l *Ledger) Path() string { return l.path }

// Append records event with data.
func (l *Ledger) Append(event string, data any) error {
	entry := LedgerEntry{
		TS:    l.now().UTC().Format(time.RFC3339Nano),
		Event: event,
		Data:  data,
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := appendJSONLine(l.path, entry); err != nil {
		return errors.Wrapf(err, "append %s to %s", event, l.path)
	}
	return nil
}

func appendJSONLine(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Sync()
}
