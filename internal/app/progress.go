package app

import "sync"

// ProgressCapacity is how many streamed chunks a ProgressLog retains.
const ProgressCapacity = 80

// ProgressLog keeps the most recent streamed chunks of a generation request
// for display. It never feeds the response parser.
type ProgressLog struct {
	mu    sync.Mutex
	buf   []string
	start int
	total int
}

func NewProgressLog() *ProgressLog {
	return &ProgressLog{buf: make([]string, 0, ProgressCapacity)}
}

// Append records a chunk, evicting the oldest once the log is full.
func (p *ProgressLog) Append(chunk string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total++
	if len(p.buf) < ProgressCapacity {
		p.buf = append(p.buf, chunk)
		return
	}
	p.buf[p.start] = chunk
	p.start = (p.start + 1) % ProgressCapacity
}

// Lines returns the retained chunks, oldest first.
func (p *ProgressLog) Lines() []string {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.buf))
	out = append(out, p.buf[p.start:]...)
	out = append(out, p.buf[:p.start]...)
	return out
}

// Total is the number of chunks ever appended, including evicted ones.
func (p *ProgressLog) Total() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}
