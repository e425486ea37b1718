package insight

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slowGenerator struct {
	calls   atomic.Int32
	release chan struct{}
}

func (g *slowGenerator) Generate(ctx context.Context, industry string) (*Insights, error) {
	g.calls.Add(1)
	<-g.release
	return &Insights{AverageSalary: 1, InDemandSkills: []string{industry}}, nil
}

func TestDeduplicate_CollapsesConcurrentCalls(t *testing.T) {
	upstream := &slowGenerator{release: make(chan struct{})}
	gen := Deduplicate(upstream, 0)

	const callers = 5
	var wg sync.WaitGroup
	results := make([]*Insights, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = gen.Generate(context.Background(), "retail")
		}(i)
	}

	// Let every caller join the in-flight call before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(upstream.release)
	wg.Wait()

	assert.Equal(t, int32(1), upstream.calls.Load())
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestDeduplicate_WaiterHonorsOwnContext(t *testing.T) {
	upstream := &slowGenerator{release: make(chan struct{})}
	defer close(upstream.release)
	gen := Deduplicate(upstream, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := gen.Generate(ctx, "retail")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// ctxGenerator blocks until released or until its ctx ends.
type ctxGenerator struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (g *ctxGenerator) Generate(ctx context.Context, industry string) (*Insights, error) {
	if g.calls.Add(1) == 1 {
		close(g.started)
	}
	select {
	case <-g.release:
		return &Insights{AverageSalary: 2, InDemandSkills: []string{industry}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestDeduplicate_FirstCallerCancelDoesNotFailOthers(t *testing.T) {
	upstream := &ctxGenerator{started: make(chan struct{}), release: make(chan struct{})}
	gen := Deduplicate(upstream, time.Second)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := gen.Generate(firstCtx, "retail")
		firstErr <- err
	}()
	<-upstream.started

	type result struct {
		ins *Insights
		err error
	}
	second := make(chan result, 1)
	go func() {
		ins, err := gen.Generate(context.Background(), "retail")
		second <- result{ins, err}
	}()

	// Give the second caller time to join the in-flight call.
	time.Sleep(30 * time.Millisecond)
	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(upstream.release)
	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, 2.0, res.ins.AverageSalary)
	assert.Equal(t, int32(1), upstream.calls.Load())
}

func TestDeduplicate_SharedCallHasOwnTimeout(t *testing.T) {
	upstream := &ctxGenerator{started: make(chan struct{}), release: make(chan struct{})}
	defer close(upstream.release)
	gen := Deduplicate(upstream, 20*time.Millisecond)

	_, err := gen.Generate(context.Background(), "retail")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
