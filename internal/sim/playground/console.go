package playground

import (
	"log"
	"sync"

	logpkg "voxelplay.ai/internal/persistence/log"
	"voxelplay.ai/internal/script"
)

// consoleSink fans script output into the visible buffer, the archive and
// the queue of lines not yet sent to viewers. Scripts write to it from the
// interpreter goroutine.
type consoleSink struct {
	buf     *script.Buffer
	archive ConsoleArchive
	logger  *log.Logger

	mu      sync.Mutex
	runID   string
	pending []script.Line
	cleared bool
}

func (c *consoleSink) Append(l script.Line) {
	c.buf.Append(l)
	c.mu.Lock()
	c.pending = append(c.pending, l)
	runID := c.runID
	c.mu.Unlock()
	if c.archive != nil {
		if err := c.archive.WriteLine(logpkg.ConsoleEntry{Time: l.Time, RunID: runID, Level: string(l.Level), Text: l.Text}); err != nil {
			c.logger.Printf("console archive: %v", err)
		}
	}
}

func (c *consoleSink) Clear() {
	c.buf.Clear()
	c.mu.Lock()
	c.pending = nil
	c.cleared = true
	c.mu.Unlock()
}

func (c *consoleSink) setRun(id string) {
	c.mu.Lock()
	c.runID = id
	c.mu.Unlock()
}

// endRun closes the current run in the archive.
func (c *consoleSink) endRun() {
	c.mu.Lock()
	id := c.runID
	c.runID = ""
	c.mu.Unlock()
	if c.archive == nil || id == "" {
		return
	}
	if err := c.archive.EndRun(id); err != nil {
		c.logger.Printf("console archive: %v", err)
	}
}

// drain returns lines queued since the last call and whether the console
// was cleared in between.
func (c *consoleSink) drain() ([]script.Line, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	lines, cleared := c.pending, c.cleared
	c.pending, c.cleared = nil, false
	return lines, cleared
}
