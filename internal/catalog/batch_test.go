package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-catalog-service/internal/domain"
)

func batchProducts(n int) []domain.Product {
	out := make([]domain.Product, n)
	for i := range out {
		out[i] = domain.Product{ID: string(rune('a' + i))}
	}
	return out
}

func TestRunBatch_AllSucceed(t *testing.T) {
	var count int64
	failures := runBatch(context.Background(), batchProducts(5), 2, func(ctx context.Context, p domain.Product) error {
		atomic.AddInt64(&count, 1)
		return nil
	})

	assert.Nil(t, failures)
	assert.Equal(t, int64(5), count, "every product visited exactly once")
}

func TestRunBatch_CollectsFailuresPerID(t *testing.T) {
	boom := errors.New("boom")
	failures := runBatch(context.Background(), batchProducts(4), 2, func(ctx context.Context, p domain.Product) error {
		if p.ID == "b" || p.ID == "d" {
			return boom
		}
		return nil
	})

	require.Len(t, failures, 2)
	assert.ErrorIs(t, failures["b"], boom)
	assert.ErrorIs(t, failures["d"], boom)
}

func TestRunBatch_RespectsWorkerBound(t *testing.T) {
	var current, peak int64
	var mu sync.Mutex
	gate := make(chan struct{})

	done := make(chan map[string]error)
	go func() {
		done <- runBatch(context.Background(), batchProducts(8), 3, func(ctx context.Context, p domain.Product) error {
			n := atomic.AddInt64(&current, 1)
			mu.Lock()
			if n > peak {
				peak = n
			}
			mu.Unlock()
			<-gate
			atomic.AddInt64(&current, -1)
			return nil
		})
	}()

	close(gate)
	failures := <-done

	assert.Nil(t, failures)
	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, int64(3), "no more workers than the configured bound")
}
