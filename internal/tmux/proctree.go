package tmux

import (
	"context"
	"log/slog"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/asheshgoplani/agent-watch/internal/logging"
)

var procLog = logging.ForComponent(logging.CompTmux)

// ProcessRefreshInterval bounds how often the OS process table is read.
const ProcessRefreshInterval = 500 * time.Millisecond

// ProcessEntry is one row of the OS process table. PPID is 0 when the
// process has no parent.
type ProcessEntry struct {
	PID     int
	PPID    int
	Command string
}

// ProcessLister returns raw `ps -A -o pid=,ppid=,command=` output.
type ProcessLister func(ctx context.Context) ([]byte, error)

// ProcessTree caches the OS process table so pane detection can walk
// descendants without a ps call per pane.
type ProcessTree struct {
	mu          sync.Mutex
	procs       map[int]ProcessEntry
	children    map[int][]int
	lastRefresh time.Time

	list     ProcessLister
	now      func() time.Time
	interval time.Duration
	sf       singleflight.Group
}

// ProcessTreeOption configures a ProcessTree.
type ProcessTreeOption func(*ProcessTree)

// WithProcessLister replaces the ps invocation.
func WithProcessLister(l ProcessLister) ProcessTreeOption {
	return func(t *ProcessTree) { t.list = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ProcessTreeOption {
	return func(t *ProcessTree) { t.now = now }
}

// NewProcessTree creates an empty cache. The first Refresh always queries.
func NewProcessTree(opts ...ProcessTreeOption) *ProcessTree {
	t := &ProcessTree{
		procs:    make(map[int]ProcessEntry),
		children: make(map[int][]int),
		list:     psLister,
		now:      time.Now,
		interval: ProcessRefreshInterval,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func psLister(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return exec.CommandContext(ctx, "ps", "-A", "-o", "pid=,ppid=,command=").Output()
}

// Refresh re-reads the process table unless the last successful read is
// younger than ProcessRefreshInterval. It reports whether a new snapshot
// was installed. A failed read keeps the previous snapshot.
func (t *ProcessTree) Refresh(ctx context.Context) bool {
	t.mu.Lock()
	fresh := !t.lastRefresh.IsZero() && t.now().Sub(t.lastRefresh) < t.interval
	t.mu.Unlock()
	if fresh {
		return false
	}

	v, _, _ := t.sf.Do("ps", func() (any, error) {
		out, err := t.list(ctx)
		if err != nil {
			procLog.Debug("process_list_failed", slog.String("error", err.Error()))
			return false, nil
		}
		procs, children := parseProcessTable(out)

		t.mu.Lock()
		t.procs = procs
		t.children = children
		t.lastRefresh = t.now()
		t.mu.Unlock()
		return true, nil
	})
	return v.(bool)
}

// Len returns the number of cached processes.
func (t *ProcessTree) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.procs)
}

// CommandLine returns the cached full command of pid.
func (t *ProcessTree) CommandLine(pid int) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.procs[pid]
	if !ok {
		return "", false
	}
	return p.Command, true
}

// DescendantCommands walks children of pid up to maxDepth generations and
// returns each descendant's full command followed by the basename of its
// executable when that differs. Duplicates are kept.
func (t *ProcessTree) DescendantCommands(pid, maxDepth int) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []string
	var walk func(parent, depth int)
	walk = func(parent, depth int) {
		if depth > maxDepth {
			return
		}
		for _, child := range t.children[parent] {
			cmd := t.procs[child].Command
			out = append(out, cmd)
			if base := commandBase(cmd); base != "" && base != cmd {
				out = append(out, base)
			}
			walk(child, depth+1)
		}
	}
	walk(pid, 1)
	return out
}

// commandBase returns the last path element of the first token of cmd.
func commandBase(cmd string) string {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return ""
	}
	return filepath.Base(fields[0])
}

// commandColumn returns line after its pid and ppid columns, keeping the
// command's own spacing.
func commandColumn(line string) string {
	rest := strings.TrimLeft(line, " \t")
	for range 2 {
		i := strings.IndexAny(rest, " \t")
		if i < 0 {
			return ""
		}
		rest = strings.TrimLeft(rest[i:], " \t")
	}
	return strings.TrimRight(rest, " \t\r")
}

// parseProcessTable parses "pid ppid command..." lines, skipping any line
// that does not start with two integers.
func parseProcessTable(out []byte) (map[int]ProcessEntry, map[int][]int) {
	procs := make(map[int]ProcessEntry)
	children := make(map[int][]int)

	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		ppid, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		procs[pid] = ProcessEntry{PID: pid, PPID: ppid, Command: commandColumn(line)}
		if ppid != 0 {
			children[ppid] = append(children[ppid], pid)
		}
	}
	for _, kids := range children {
		sort.Ints(kids)
	}
	return procs, children
}
