package logging

import (
	"slices"
	"sync"
	"time"
)

// DefaultMaxEntries bounds the entries kept per task.
const DefaultMaxEntries = 1000

// LogEntry is a captured log record.
type LogEntry struct {
	Time       time.Time      `json:"time"`
	Level      string         `json:"level"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes"`
}

// LogCollector stores captured logs per task. It is safe for concurrent use.
type LogCollector struct {
	mu         sync.RWMutex
	logs       map[string][]LogEntry
	order      []string
	maxEntries int
}

// NewLogCollector creates a collector keeping at most DefaultMaxEntries per task.
func NewLogCollector() *LogCollector {
	return NewBoundedLogCollector(DefaultMaxEntries)
}

// NewBoundedLogCollector creates a collector keeping the newest max entries per task.
func NewBoundedLogCollector(max int) *LogCollector {
	return &LogCollector{
		logs:       make(map[string][]LogEntry),
		maxEntries: max,
	}
}

// AddLog records an entry for task.
func (c *LogCollector) AddLog(task string, entry LogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, seen := c.logs[task]
	if !seen {
		c.order = append(c.order, task)
	}
	entries = append(entries, entry)
	if c.maxEntries > 0 && len(entries) > c.maxEntries {
		entries = entries[len(entries)-c.maxEntries:]
	}
	c.logs[task] = entries
}

// GetLogs returns a copy of task's entries, or nil.
func (c *LogCollector) GetLogs(task string) []LogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.logs[task])
}

// GetAllLogs returns a copy of every task's entries.
func (c *LogCollector) GetAllLogs() map[string][]LogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string][]LogEntry, len(c.logs))
	for task, entries := range c.logs {
		out[task] = slices.Clone(entries)
	}
	return out
}

// Tasks returns task names in the order they first logged.
func (c *LogCollector) Tasks() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.order)
}

// Clear removes all entries.
func (c *LogCollector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs = make(map[string][]LogEntry)
	c.order = nil
}
