package state

import "sync"

// ChunkQueue is a thread-safe FIFO of pending chunks. Multiple producers
// (dispatch re-enqueue, backoff round-trip) and the single orchestrator
// consumer share it; it never needs to be reassigned, only drained, so
// concurrent readers can never observe a swapped-out queue mid-iteration
// (spec §4.7.4).
type ChunkQueue struct {
	mu    sync.Mutex
	items []*Chunk
}

// NewChunkQueue builds an empty queue.
func NewChunkQueue() *ChunkQueue { return &ChunkQueue{} }

// Push appends a chunk to the back of the queue.
func (q *ChunkQueue) Push(c *Chunk) {
	q.mu.Lock()
	q.items = append(q.items, c)
	q.mu.Unlock()
}

// Pop removes and returns the front chunk, or nil if empty.
func (q *ChunkQueue) Pop() *Chunk {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	c := q.items[0]
	q.items = q.items[1:]
	return c
}

// Count returns the number of pending chunks.
func (q *ChunkQueue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain empties the queue and returns whatever was in it, without
// reassigning the underlying slice reference (spec §4.7.4).
func (q *ChunkQueue) Drain() []*Chunk {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Chunk, len(q.items))
	copy(out, q.items)
	q.items = q.items[:0]
	return out
}

// ChunkResultQueue is an append-only, thread-safe list of terminal
// chunks (CompletedChunks / FailedChunks in spec §3).
type ChunkResultQueue struct {
	mu    sync.Mutex
	items []*Chunk
}

func NewChunkResultQueue() *ChunkResultQueue { return &ChunkResultQueue{} }

func (q *ChunkResultQueue) Append(c *Chunk) {
	q.mu.Lock()
	q.items = append(q.items, c)
	q.mu.Unlock()
}

func (q *ChunkResultQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *ChunkResultQueue) Snapshot() []*Chunk {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Chunk, len(q.items))
	copy(out, q.items)
	return out
}

func (q *ChunkResultQueue) Drain() []*Chunk {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Chunk, len(q.items))
	copy(out, q.items)
	q.items = q.items[:0]
	return out
}

// StringQueue is a small append-only message queue used for the error
// queue (consumable by a UI in real time, spec §4.7.2) and arbitrary
// diagnostic messages.
type StringQueue struct {
	mu    sync.Mutex
	items []string
}

func NewStringQueue() *StringQueue { return &StringQueue{} }

func (q *StringQueue) Push(s string) {
	q.mu.Lock()
	q.items = append(q.items, s)
	q.mu.Unlock()
}

func (q *StringQueue) Snapshot() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.items))
	copy(out, q.items)
	return out
}

func (q *StringQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// ProfileResultQueue preserves profile-index enqueue order (spec §5
// ordering guarantees).
type ProfileResultQueue struct {
	mu    sync.Mutex
	items []ProfileResult
}

func NewProfileResultQueue() *ProfileResultQueue { return &ProfileResultQueue{} }

func (q *ProfileResultQueue) Append(r ProfileResult) {
	q.mu.Lock()
	q.items = append(q.items, r)
	q.mu.Unlock()
}

func (q *ProfileResultQueue) Snapshot() []ProfileResult {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]ProfileResult, len(q.items))
	copy(out, q.items)
	return out
}
