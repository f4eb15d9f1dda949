package database

import (
	"sync"
	"time"
)

const (
	flushInterval = 30 * time.Second
	flushSize     = 200
)

// Buffer batches audit and security-event writes and flushes them
// periodically or when full. Action audits arrive at game rates, far too
// fast to hit SQLite per-row.
type Buffer struct {
	db      *DB
	audits  []AuditEntry
	events  []EventEntry
	mu      sync.Mutex
	stop    chan struct{}
	stopped chan struct{}

	// OnError is called when a flush fails.
	OnError func(err error)
}

// NewBuffer creates a write-behind buffer for the given database.
func NewBuffer(db *DB) *Buffer {
	b := &Buffer{
		db:      db,
		audits:  make([]AuditEntry, 0, flushSize),
		events:  make([]EventEntry, 0, flushSize),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go b.loop()
	return b
}

// AddAudit queues an audit row for batch insertion.
func (b *Buffer) AddAudit(entry AuditEntry) {
	b.mu.Lock()
	b.audits = append(b.audits, entry)
	needsFlush := len(b.audits) >= flushSize
	b.mu.Unlock()

	if needsFlush {
		go b.Flush()
	}
}

// AddEvent queues a security event for batch insertion.
func (b *Buffer) AddEvent(entry EventEntry) {
	b.mu.Lock()
	b.events = append(b.events, entry)
	needsFlush := len(b.events) >= flushSize
	b.mu.Unlock()

	if needsFlush {
		go b.Flush()
	}
}

// Flush writes all buffered rows to the database.
func (b *Buffer) Flush() {
	b.mu.Lock()
	audits := b.audits
	events := b.events
	b.audits = make([]AuditEntry, 0, flushSize)
	b.events = make([]EventEntry, 0, flushSize)
	b.mu.Unlock()

	if err := b.db.InsertAudits(audits); err != nil && b.OnError != nil {
		b.OnError(err)
	}
	if err := b.db.InsertEvents(events); err != nil && b.OnError != nil {
		b.OnError(err)
	}
}

// Stop flushes remaining data and stops the background loop.
func (b *Buffer) Stop() {
	close(b.stop)
	<-b.stopped
	b.Flush() // Final flush
}

func (b *Buffer) loop() {
	defer close(b.stopped)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			b.Flush()
		}
	}
}
