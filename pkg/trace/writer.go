// Package trace implements the Reasoning Tracer, the Trace Writer, and
// the trace query/decomposition helpers.
//
// The append-only JSON-line writing pattern is grounded on the
// teacher's core/pkg/audit/logger.go (marshal, write with a trailing
// newline, swallow I/O errors). That teacher file uses one shared
// io.Writer; spec §4.14 instead requires one file per (agentId,
// sessionId) and a strict single-queue ordering guarantee, so the
// per-file serialisation is generalised here using the same
// channel-plus-goroutine idiom the teacher demonstrates in
// core/pkg/governance/swarm_pdp.go.
package trace

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/openclaw/aasc/pkg/contracts"
)

type writeJob struct {
	filePath string
	line     []byte
	done     chan struct{}
}

// Writer serialises trace writes for the whole process through a
// single queue, so that N calls to Write for the same (agent, session)
// produce N appended lines in call order.
type Writer struct {
	baseDir string
	log     *slog.Logger
	index   *Index

	mu       sync.Mutex
	dirsMade map[string]bool

	queue chan writeJob
	wg    sync.WaitGroup
}

// SetIndex attaches the SQLite side-index (SPEC_FULL.md §4.18) so every
// subsequent Write of a ReasoningTrace also upserts its indexed
// columns. A nil index (the default) leaves Write as a pure JSONL
// append, matching the pre-index behavior.
func (w *Writer) SetIndex(idx *Index) {
	w.index = idx
}

// NewWriter starts the background drain goroutine and returns a Writer
// rooted at baseDir (<baseDir>/<agentId>/<sessionId>.jsonl).
func NewWriter(baseDir string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Writer{
		baseDir:  baseDir,
		log:      logger,
		dirsMade: make(map[string]bool),
		queue:    make(chan writeJob, 256),
	}
	w.wg.Add(1)
	go w.drain()
	return w
}

func (w *Writer) drain() {
	defer w.wg.Done()
	for job := range w.queue {
		w.appendLine(job.filePath, job.line)
		close(job.done)
	}
}

func (w *Writer) appendLine(filePath string, line []byte) {
	if filePath == "" {
		return
	}
	dir := filepath.Dir(filePath)

	w.mu.Lock()
	made := w.dirsMade[dir]
	w.mu.Unlock()

	if !made {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			w.log.Debug("trace: failed to create trace directory", "error", err, "dir", dir)
			return
		}
		w.mu.Lock()
		w.dirsMade[dir] = true
		w.mu.Unlock()
	}

	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		w.log.Debug("trace: failed to open trace file", "error", err, "path", filePath)
		return
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		w.log.Debug("trace: failed to append trace line", "error", err, "path", filePath)
	}
}

// filePathFor resolves the (agentId, sessionId) pair to its jsonl path.
// An empty agentId resolves to the literal directory name "default".
func (w *Writer) filePathFor(agentID, sessionID string) string {
	agent := agentID
	if agent == "" {
		agent = "default"
	}
	return filepath.Join(w.baseDir, agent, sessionID+".jsonl")
}

// Write fire-and-forgets a trace: serialises it and enqueues the line.
// Never blocks the caller on I/O; errors are swallowed per spec §4.14.
// When tr is a contracts.ReasoningTrace and an index is attached, the
// trace's indexed columns are also upserted.
func (w *Writer) Write(sessionID, agentID string, tr any) {
	data, err := json.Marshal(tr)
	if err != nil {
		w.log.Debug("trace: failed to marshal trace", "error", err)
		return
	}
	data = append(data, '\n')

	job := writeJob{filePath: w.filePathFor(agentID, sessionID), line: data, done: make(chan struct{})}
	w.queue <- job

	if w.index != nil {
		if full, ok := tr.(contracts.ReasoningTrace); ok {
			w.index.Upsert(sessionID, agentID, full)
		}
	}
}

// Flush awaits the tail of the queue: every write enqueued before this
// call is guaranteed to be durable on return.
func (w *Writer) Flush() {
	done := make(chan struct{})
	w.queue <- writeJob{filePath: "", line: nil, done: done}
	// A nil-path job is a pure barrier; appendLine no-ops on empty path.
	<-done
}

// Close stops the drain goroutine after the queue empties.
func (w *Writer) Close() {
	close(w.queue)
	w.wg.Wait()
}
