package catalogapi

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Progress is a snapshot of a running batch fetch, reported after every chunk
type Progress struct {
	ChunksDone  int
	TotalChunks int
	Requested   int
	Retrieved   int
	SuccessRate float64
}

// ProgressFunc receives batch progress. It is invoked synchronously between
// chunks and must be cheap; nil is allowed.
type ProgressFunc func(Progress)

// BatchResult accumulates the outcome of a batch fetch. It carries partial
// results even when the fetch aborted early.
type BatchResult struct {
	Requested    int
	Items        []RawItem
	ItemErrors   []*ItemError
	TotalChunks  int
	FailedChunks int
}

// Retrieved returns the number of items fetched so far
func (r *BatchResult) Retrieved() int {
	return len(r.Items)
}

// SuccessRate returns retrieved/requested in [0, 1]
func (r *BatchResult) SuccessRate() float64 {
	if r.Requested == 0 {
		return 0
	}
	return float64(len(r.Items)) / float64(r.Requested)
}

// BatchFetcher splits an arbitrary ID list into provider-sized chunks and
// fetches them sequentially through one client. Request-level failures of a
// single chunk are counted and the remaining chunks still run; fatal errors,
// an open circuit, and quota exhaustion abort the remainder while keeping
// what was already retrieved.
type BatchFetcher struct {
	client *Client
	logger *zap.Logger
}

// NewBatchFetcher creates a fetcher over the given client
func NewBatchFetcher(client *Client, logger *zap.Logger) *BatchFetcher {
	return &BatchFetcher{
		client: client,
		logger: logger.Named("fetcher"),
	}
}

// FetchAll retrieves all requested items in MaxBatchSize chunks. The
// returned result is valid even when err is non-nil: it holds everything
// fetched before the abort.
func (f *BatchFetcher) FetchAll(ctx context.Context, itemIDs []string, resources []string, onProgress ProgressFunc) (*BatchResult, error) {
	result := &BatchResult{
		Requested:   len(itemIDs),
		TotalChunks: (len(itemIDs) + MaxBatchSize - 1) / MaxBatchSize,
	}
	if len(itemIDs) == 0 {
		return result, nil
	}

	report := func(chunksDone int) {
		if onProgress == nil {
			return
		}
		onProgress(Progress{
			ChunksDone:  chunksDone,
			TotalChunks: result.TotalChunks,
			Requested:   result.Requested,
			Retrieved:   result.Retrieved(),
			SuccessRate: result.SuccessRate(),
		})
	}

	for chunkIndex := 0; chunkIndex*MaxBatchSize < len(itemIDs); chunkIndex++ {
		start := chunkIndex * MaxBatchSize
		end := start + MaxBatchSize
		if end > len(itemIDs) {
			end = len(itemIDs)
		}
		chunk := itemIDs[start:end]

		items, err := f.client.FetchItems(ctx, chunk, resources)
		if err != nil {
			if abortErr := f.classifyAbort(err); abortErr != nil {
				f.logger.Error("batch fetch aborted",
					zap.Int("chunks_done", chunkIndex),
					zap.Int("total_chunks", result.TotalChunks),
					zap.Error(abortErr))
				// The aborting chunk still counts as processed so the
				// last progress report reflects the abort
				report(chunkIndex + 1)
				return result, abortErr
			}
			result.FailedChunks++
			f.logger.Warn("chunk fetch failed, continuing",
				zap.Int("chunk", chunkIndex+1),
				zap.Int("total_chunks", result.TotalChunks),
				zap.Error(err))
		} else {
			result.Items = append(result.Items, items.Items...)
			result.ItemErrors = append(result.ItemErrors, items.ItemErrors...)
		}

		report(chunkIndex + 1)
	}
	return result, nil
}

// classifyAbort returns the error when it must abort the batch, nil when
// the failure is confined to the current chunk.
func (f *BatchFetcher) classifyAbort(err error) error {
	var (
		fatal *FatalError
		open  *CircuitOpenError
		quota *QuotaExceededError
	)
	switch {
	case errors.As(err, &fatal), errors.As(err, &open), errors.As(err, &quota):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return nil
	}
}
