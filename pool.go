package vidcount

import (
	"context"
	"errors"
	"sync"
)

// ErrPoolClosed is returned when getting a detector from a closed Pool
var ErrPoolClosed = errors.New("detector pool closed")

// Pool is a simple pool of Detectors loaded from the same Model, used to run
// detection for several videos concurrently
type Pool struct {
	// pool of detectors
	detectors chan *Detector
	// size of pool
	size int
	// model name of the pooled detectors
	name string
	// mu guards closed so detectors are never sent on a closed channel
	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new detector pool
func NewPool(size int, cfg DetectorConfig) (*Pool, error) {

	if size < 1 {
		size = 1
	}

	p := &Pool{
		detectors: make(chan *Detector, size),
		size:      size,
		name:      cfg.ModelName,
	}

	for i := 0; i < size; i++ {
		d, err := NewDetector(cfg)

		if err != nil {
			// close any instances that may have been created before receiving
			// the error
			p.Close()
			return nil, err
		}

		// attach to pool
		p.Return(d)
	}

	return p, nil
}

// Name returns the model identifier of the pooled detectors
func (p *Pool) Name() string {
	return p.name
}

// Size returns the number of detectors in the pool
func (p *Pool) Size() int {
	return p.size
}

// Get a detector from the pool, blocking until one is free or ctx is done
func (p *Pool) Get(ctx context.Context) (*Detector, error) {
	select {
	case d, ok := <-p.detectors:
		if !ok {
			return nil, ErrPoolClosed
		}
		return d, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Return a detector to the pool
func (p *Pool) Return(d *Detector) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		_ = d.Close()
		return
	}

	select {
	case p.detectors <- d:
	default:
		// pool is full
		_ = d.Close()
	}
}

// Close the pool and all detectors in it
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	p.closed = true

	// close channel
	close(p.detectors)

	// close all detectors
	for next := range p.detectors {
		_ = next.Close()
	}
}
