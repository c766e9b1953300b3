package catalog

import (
	"context"
	"sync"

	"storefront-catalog-service/internal/domain"
)

// runBatch applies fn to every product with at most workers calls in flight,
// waits for all of them, and returns the failures keyed by product id. The
// bound keeps cascade fan-out from hammering the remote store when a category
// holds many products.
func runBatch(ctx context.Context, products []domain.Product, workers int, fn func(context.Context, domain.Product) error) map[string]error {
	if workers <= 0 {
		workers = 1
	}
	if workers > len(products) {
		workers = len(products)
	}

	jobs := make(chan domain.Product)
	var mu sync.Mutex
	failures := make(map[string]error)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				if err := fn(ctx, p); err != nil {
					mu.Lock()
					failures[p.ID] = err
					mu.Unlock()
				}
			}
		}()
	}
	for _, p := range products {
		jobs <- p
	}
	close(jobs)
	wg.Wait()

	if len(failures) == 0 {
		return nil
	}
	return failures
}
