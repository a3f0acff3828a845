package sink

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/taskorch/taskctl/pkg/log"
)

// FileMirror projects notifications, shared context, and private notes to
// append-only JSONL files under the state directory, per §6.3's optional
// "file mirrors for external observers". The database remains the source of
// truth; FileMirror is a best-effort read-side convenience for tools that
// watch the filesystem instead of querying the store.
type FileMirror struct {
	stateDir string
}

// NewFileMirror creates a FileMirror rooted at stateDir.
func NewFileMirror(stateDir string) *FileMirror {
	return &FileMirror{stateDir: stateDir}
}

// Publish appends e as one JSON line to the mirror file appropriate to its
// Type. Failures are logged and swallowed: mirror writes never affect the
// operation that produced the event.
func (f *FileMirror) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	dir, file := f.routeFor(e)
	if dir == "" {
		return
	}

	fullDir := filepath.Join(f.stateDir, dir)
	if err := os.MkdirAll(fullDir, 0o755); err != nil {
		log.Errorf("sink: mkdir mirror dir: %v", err)
		return
	}

	data, err := json.Marshal(e)
	if err != nil {
		log.Errorf("sink: marshal mirror event: %v", err)
		return
	}
	data = append(data, '\n')

	path := filepath.Join(fullDir, file)
	fh, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Errorf("sink: open mirror file: %v", err)
		return
	}
	defer fh.Close()

	if _, err := fh.Write(data); err != nil {
		log.Errorf("sink: write mirror file: %v", err)
	}
}

// routeFor decides which mirror subdirectory/file an event lands in,
// matching the layout documented in §6.3.
func (f *FileMirror) routeFor(e Event) (dir, file string) {
	switch e.Type {
	case "notification":
		return "notifications", e.TaskID + ".jsonl"
	case "context":
		return "context", e.TaskID + ".jsonl"
	case "private_note":
		return filepath.Join("agents", "notes"), e.AgentID + "_" + e.TaskID + ".jsonl"
	default:
		return "", ""
	}
}
