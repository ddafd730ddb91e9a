package state

import (
	"sync"
	"sync/atomic"
)

// ProgressBuffer is the per-job progress surface fed by the copier's
// asynchronous stdout reader (spec §3, §4.4). Appending a line takes a
// short mutex; the byte and file counters are atomics.
type ProgressBuffer struct {
	lines []string
	mu    sync.Mutex // guards lines; currentFile is guarded by fileMu

	completedFilesBytes atomic.Int64
	currentFileSize      atomic.Int64
	currentFileBytes     atomic.Int64
	filesCopied          atomic.Int64

	currentFile string
	fileMu      sync.Mutex
}

// NewProgressBuffer constructs an empty buffer.
func NewProgressBuffer() *ProgressBuffer {
	return &ProgressBuffer{}
}

// AppendLine records a raw stdout line for final parsing fallback.
func (p *ProgressBuffer) AppendLine(line string) {
	p.mu.Lock()
	p.lines = append(p.lines, line)
	p.mu.Unlock()
}

// Lines returns a snapshot copy of all appended lines.
func (p *ProgressBuffer) Lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.lines))
	copy(out, p.lines)
	return out
}

// LineCount reports the number of lines buffered so far — used by the
// job runner's stabilization wait (spec §4.4 "three consecutive
// identical line-counts").
func (p *ProgressBuffer) LineCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.lines)
}

// StartFile begins tracking a new in-flight file. It does not finalize
// the file before it; FinishCurrentFile does that.
func (p *ProgressBuffer) StartFile(name string, size int64) {
	p.fileMu.Lock()
	p.currentFile = name
	p.fileMu.Unlock()

	p.currentFileSize.Store(size)
	p.currentFileBytes.Store(0)
}

// FinishCurrentFile folds the in-flight file's size into the completed
// total and increments FilesCopied.
func (p *ProgressBuffer) FinishCurrentFile() {
	size := p.currentFileSize.Load()
	if size > 0 {
		p.completedFilesBytes.Add(size)
	}
	p.filesCopied.Add(1)
	p.currentFileSize.Store(0)
	p.currentFileBytes.Store(0)
}

// UpdatePercent sets CurrentFileBytes from a parsed percentage line.
func (p *ProgressBuffer) UpdatePercent(pct float64) {
	size := p.currentFileSize.Load()
	p.currentFileBytes.Store(int64(float64(size) * pct / 100))
}

// CurrentFile returns the name of the file currently being copied.
func (p *ProgressBuffer) CurrentFile() string {
	p.fileMu.Lock()
	defer p.fileMu.Unlock()
	return p.currentFile
}

// BytesCopied is CompletedFilesBytes + CurrentFileBytes (spec §3).
func (p *ProgressBuffer) BytesCopied() int64 {
	return p.completedFilesBytes.Load() + p.currentFileBytes.Load()
}

// FilesCopied returns the number of files fully accounted for so far.
func (p *ProgressBuffer) FilesCopied() int64 {
	return p.filesCopied.Load()
}
