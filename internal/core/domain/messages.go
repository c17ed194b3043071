package domain

import "encoding/json"

// Request is the client-to-daemon command envelope. One request is sent
// per connection; the daemon answers with one or more Response frames,
// the last of which carries Final.
type Request struct {
	Command       string            `json:"command"`
	Version       string            `json:"version,omitempty"`
	Fingerprint   string            `json:"options_fingerprint,omitempty"`
	IsTTY         bool              `json:"is_tty"`
	TerminalWidth int               `json:"terminal_width,omitempty"`
	Args          map[string]string `json:"args,omitempty"`
}

// Response is one daemon-to-client frame. Stdout and Stderr are
// incidental passthrough text the client copies to its own streams as
// frames arrive; Out and Err are the command's result text.
type Response struct {
	Out       string            `json:"out,omitempty"`
	Err       string            `json:"err,omitempty"`
	Stdout    string            `json:"stdout,omitempty"`
	Stderr    string            `json:"stderr,omitempty"`
	Status    int               `json:"status"`
	Error     string            `json:"error,omitempty"`
	Restart   string            `json:"restart,omitempty"`
	Traceback string            `json:"traceback,omitempty"`
	Memory    map[string]uint64 `json:"memory,omitempty"`

	// Counters is a gathered snapshot of the daemon's metrics, carried
	// only on status replies.
	Counters map[string]float64 `json:"counters,omitempty"`

	Final bool `json:"final,omitempty"`
}

// Worker protocol message kinds.
const (
	WorkerMsgInit     = "init"
	WorkerMsgGraphAck = "graph_ack"
	WorkerMsgTopology = "topology"
	WorkerMsgProcess  = "process"
	WorkerMsgResult   = "result"
	WorkerMsgBlocker  = "blocker"
	WorkerMsgFinal    = "final"
	WorkerMsgStats    = "stats"
)

// WorkerMessage is the driver/worker envelope. Kind selects which fields
// are meaningful.
type WorkerMessage struct {
	Kind string `json:"kind"`

	// init
	Sources []SourceFile `json:"sources,omitempty"`

	// topology
	SCCs []SCC `json:"sccs,omitempty"`

	// process / result / blocker
	SCCID   int             `json:"scc_id,omitempty"`
	Modules []string        `json:"modules,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Blocker *BlockerError   `json:"blocker,omitempty"`

	// graph_ack / stats
	ModuleCount int              `json:"module_count,omitempty"`
	Stats       map[string]int64 `json:"stats,omitempty"`
}
