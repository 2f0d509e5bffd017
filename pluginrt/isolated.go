package pluginrt

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kestrel-engine/kestrel"
)

// RPCKind names one isolated-plugin RPC call or notification (spec §4.7
// "Build, Update(dt), FixedUpdate(dt), OnEvents(batch), Shutdown,
// ReadComponents(cursor, kinds), IterEntities(cursor), AssetReadback(req)").
type RPCKind string

const (
	RPCBuild           RPCKind = "build"
	RPCUpdate          RPCKind = "update"
	RPCFixedUpdate     RPCKind = "fixed_update"
	RPCOnEvents        RPCKind = "on_events"
	RPCShutdown        RPCKind = "shutdown"
	RPCReadComponents  RPCKind = "read_components"
	RPCIterEntities    RPCKind = "iter_entities"
	RPCAssetReadback   RPCKind = "asset_readback"
	RPCEmittedEvent    RPCKind = "emitted_event"    // unsolicited, host -> runtime
	RPCScriptMessage   RPCKind = "script_message"   // unsolicited, host -> runtime
)

// rpcFrame is the wire envelope: a length-prefixed JSON body, the same
// magic-free length-framing idiom package scene's KSCN codec uses for its
// compressed payload.
type rpcFrame struct {
	Id      uint64          `json:"id,omitempty"` // 0 for unsolicited notifications
	Kind    RPCKind         `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func writeFrame(w io.Writer, f rpcFrame) error {
	body, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("pluginrt: encoding rpc frame: %w", err)
	}
	var length [4]byte
	binary.LittleEndian.PutUint32(length[:], uint32(len(body)))
	if _, err := w.Write(length[:]); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

func readFrame(r *bufio.Reader) (rpcFrame, error) {
	var length [4]byte
	if _, err := io.ReadFull(r, length[:]); err != nil {
		return rpcFrame{}, err
	}
	n := binary.LittleEndian.Uint32(length[:])
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return rpcFrame{}, err
	}
	var f rpcFrame
	if err := json.Unmarshal(body, &f); err != nil {
		return rpcFrame{}, fmt.Errorf("pluginrt: decoding rpc frame: %w", err)
	}
	return f, nil
}

// IsolatedHost owns one subprocess-hosted plugin, communicating over its
// stdin/stdout pipes with the frame protocol above, and enforcing a
// per-request watchdog timeout (spec §4.7 "watchdog timers per RPC; expiry
// terminates the host, records the offending RPC, marks plugin Failed").
type IsolatedHost struct {
	name    string
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  *bufio.Reader
	timeout time.Duration
	logger  kestrel.Logger

	mu       sync.Mutex
	nextId   uint64
	pending  map[uint64]chan rpcFrame
	quota    *AssetReadbackQuota
	filters  []string
	failed   atomic.Bool
	lastFail string

	notifications chan rpcFrame
}

// NewIsolatedHost starts the subprocess at path with args and begins
// reading its response stream in the background.
func NewIsolatedHost(name, path string, args []string, timeout time.Duration, filters []string, logger kestrel.Logger) (*IsolatedHost, error) {
	if logger == nil {
		logger = kestrel.NewNopLogger()
	}
	cmd := exec.Command(path, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("pluginrt: opening stdin pipe for %q: %w", name, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("pluginrt: opening stdout pipe for %q: %w", name, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("pluginrt: starting isolated plugin %q: %w", name, err)
	}

	h := &IsolatedHost{
		name:          name,
		cmd:           cmd,
		stdin:         stdin,
		stdout:        bufio.NewReader(stdout),
		timeout:       timeout,
		logger:        logger,
		pending:       make(map[uint64]chan rpcFrame),
		quota:         NewAssetReadbackQuota(nil),
		filters:       filters,
		notifications: make(chan rpcFrame, 64),
	}
	go h.readLoop()
	return h, nil
}

func (h *IsolatedHost) readLoop() {
	for {
		f, err := readFrame(h.stdout)
		if err != nil {
			return
		}
		if f.Id == 0 {
			select {
			case h.notifications <- f:
			default:
				h.logger.Warnf("isolated plugin %q: notification buffer full, dropping %s", h.name, f.Kind)
			}
			continue
		}
		h.mu.Lock()
		ch, ok := h.pending[f.Id]
		if ok {
			delete(h.pending, f.Id)
		}
		h.mu.Unlock()
		if ok {
			ch <- f
		}
	}
}

// Call sends a request and blocks until a matching response arrives or the
// watchdog timeout expires. On timeout the host process is killed and
// Failed reports true with the timed-out RPC; Runtime does not consult
// Failed, so no plugin status changes on its account.
func (h *IsolatedHost) Call(kind RPCKind, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("pluginrt: encoding %s payload: %w", kind, err)
	}

	h.mu.Lock()
	h.nextId++
	id := h.nextId
	reply := make(chan rpcFrame, 1)
	h.pending[id] = reply
	h.mu.Unlock()

	if err := writeFrame(h.stdin, rpcFrame{Id: id, Kind: kind, Payload: body}); err != nil {
		h.mu.Lock()
		delete(h.pending, id)
		h.mu.Unlock()
		return nil, fmt.Errorf("pluginrt: writing %s request: %w", kind, err)
	}

	select {
	case resp := <-reply:
		if resp.Error != "" {
			return nil, fmt.Errorf("pluginrt: isolated plugin %q: %s failed: %s", h.name, kind, resp.Error)
		}
		return resp.Payload, nil
	case <-time.After(h.timeout):
		h.mu.Lock()
		delete(h.pending, id)
		h.mu.Unlock()
		h.failed.Store(true)
		h.lastFail = fmt.Sprintf("%s timed out after %s", kind, h.timeout)
		_ = h.cmd.Process.Kill()
		return nil, kestrel.NewPluginPanic(h.name, string(kind), h.lastFail)
	}
}

// RequestAssetReadback enforces the readback quota and manifest filter
// before forwarding to the subprocess (spec §4.7).
func (h *IsolatedHost) RequestAssetReadback(key string, approxBytes int) (json.RawMessage, error) {
	if !AssetFilterAllows(h.filters, key) {
		return nil, kestrel.NewCapabilityError(h.name, "asset_filter:"+key)
	}
	if !h.quota.Allow(approxBytes) {
		return nil, kestrel.NewRateLimited(fmt.Sprintf("%s:asset_readback", h.name))
	}
	return h.Call(RPCAssetReadback, map[string]any{"key": key})
}

// Notifications returns the channel of unsolicited EmittedEvent /
// ScriptMessage frames the subprocess pushes outside of request/response.
func (h *IsolatedHost) Notifications() <-chan rpcFrame { return h.notifications }

// Failed reports whether a prior Call timed out.
func (h *IsolatedHost) Failed() (bool, string) { return h.failed.Load(), h.lastFail }

// Close sends Shutdown, then closes the pipe and waits for process exit.
func (h *IsolatedHost) Close() error {
	_, _ = h.Call(RPCShutdown, nil)
	_ = h.stdin.Close()
	return h.cmd.Wait()
}
