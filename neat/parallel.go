package neat

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
)

// Guarded serializes access to a value shared between goroutines.
type Guarded[T any] struct {
	mu    sync.Mutex
	value T
}

// NewGuarded wraps v.
func NewGuarded[T any](v T) *Guarded[T] {
	return &Guarded[T]{value: v}
}

// Do runs fn with exclusive access to the value.
func (g *Guarded[T]) Do(fn func(v *T)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(&g.value)
}

// Get returns a copy of the value.
func (g *Guarded[T]) Get() T {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

// ParallelEvaluate calls fn for every living member on up to workers
// goroutines. fn must only touch the member it is given. All failures are
// joined into the returned error.
func (p *Population[M]) ParallelEvaluate(fn FitnessFunc[M], workers int) error {
	if workers <= 0 {
		workers = 1
	}
	failures := NewGuarded[[]error](nil)
	wp := pool.New().WithMaxGoroutines(workers)
	for i, m := range p.members {
		if !p.alive[i] {
			continue
		}
		m := m // per-iteration copy (go 1.21 loop semantics)
		wp.Go(func() {
			if err := fn(m); err != nil {
				failures.Do(func(errs *[]error) {
					*errs = append(*errs, fmt.Errorf("fitness evaluation of genome %d failed: %w", m.GetGenome().ID, err))
				})
			}
		})
	}
	wp.Wait()
	if err := errors.Join(failures.Get()...); err != nil {
		return err
	}
	p.trackBest()
	return nil
}

// RunGenerationParallel is RunGeneration with fitness evaluation spread over
// workers goroutines.
func (p *Population[M]) RunGenerationParallel(fn FitnessFunc[M], workers int) (*Genome, error) {
	p.Generation++
	start := time.Now()
	if err := p.ParallelEvaluate(fn, workers); err != nil {
		return nil, fmt.Errorf("generation %d: %w", p.Generation, err)
	}
	return p.advance(start)
}
