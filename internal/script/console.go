package script

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

type Level string

const (
	LevelLog   Level = "log"
	LevelError Level = "error"
)

// Line is one timestamped console entry.
type Line struct {
	Time  time.Time `json:"time"`
	Level Level     `json:"level"`
	Text  string    `json:"text"`
}

func (l Line) String() string {
	return l.Time.Format("15:04:05") + " | " + l.Text
}

// Sink receives console output.
type Sink interface {
	Append(Line)
	Clear()
}

// Buffer is a bounded in-memory Sink. It is safe for concurrent use.
type Buffer struct {
	mu    sync.Mutex
	max   int
	lines []Line
}

func NewBuffer(max int) *Buffer {
	if max <= 0 {
		max = 1000
	}
	return &Buffer{max: max}
}

func (b *Buffer) Append(l Line) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, l)
	if over := len(b.lines) - b.max; over > 0 {
		b.lines = append(b.lines[:0], b.lines[over:]...)
	}
}

func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = nil
}

func (b *Buffer) Lines() []Line {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Line(nil), b.lines...)
}

// console formats calls into Lines, writes them to the sink and mirrors them
// to the host logger.
type console struct {
	sink   Sink
	logger *log.Logger
	now    func() time.Time

	lines   []Line
	cleared bool
}

func (c *console) emit(level Level, text string) {
	l := Line{Time: c.now(), Level: level, Text: text}
	c.lines = append(c.lines, l)
	if c.sink != nil {
		c.sink.Append(l)
	}
	if c.logger != nil {
		c.logger.Printf("%s: %s", level, text)
	}
}

func (c *console) clear() {
	c.cleared = true
	c.lines = nil
	if c.sink != nil {
		c.sink.Clear()
	}
}

func formatArgs(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	return strings.Join(parts, " ")
}
