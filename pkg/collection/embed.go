package collection

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/openviking/vikingdb/pkg/vdberrors"
)

// Embedder is the external vectorization collaborator a collection calls
// when its schema declares vectorization and the caller did not supply a
// vector directly. Errors propagate as upsert failures — there is no
// partial write.
type Embedder interface {
	Embed(ctx context.Context, text string) (dense []float32, sparse map[uint32]float32, err error)
}

type embedResult struct {
	dense  []float32
	sparse map[uint32]float32
}

// breakerEmbedder wraps an Embedder with a circuit breaker so a dead
// embedder trips open after repeated failures instead of being retried on
// every upsert in the batch.
type breakerEmbedder struct {
	inner Embedder
	cb    *gobreaker.CircuitBreaker[embedResult]
}

func newBreakerEmbedder(inner Embedder, name string) *breakerEmbedder {
	cb := gobreaker.NewCircuitBreaker[embedResult](gobreaker.Settings{
		Name:        "embedder:" + name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &breakerEmbedder{inner: inner, cb: cb}
}

func (b *breakerEmbedder) Embed(ctx context.Context, text string) ([]float32, map[uint32]float32, error) {
	res, err := b.cb.Execute(func() (embedResult, error) {
		dense, sparse, err := b.inner.Embed(ctx, text)
		if err != nil {
			return embedResult{}, err
		}
		return embedResult{dense: dense, sparse: sparse}, nil
	})
	if err != nil {
		return nil, nil, vdberrors.New("collection.embed", vdberrors.EmbedderFailed, err)
	}
	return res.dense, res.sparse, nil
}
