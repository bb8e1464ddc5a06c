package catalogapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testItemIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("B00TEST%03d", i)
	}
	return ids
}

// echoHandler answers every GetItems call with the requested IDs
func echoHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req itemsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		fmt.Fprint(w, itemsBody(req.ItemIDs...))
	}
}

func newTestFetcher(t *testing.T, endpoint string) *BatchFetcher {
	t.Helper()
	return NewBatchFetcher(newTestClient(t, endpoint), zap.NewNop())
}

func TestBatchFetcher_EmptyInput(t *testing.T) {
	fetcher := newTestFetcher(t, "https://catalog.example.com")

	result, err := fetcher.FetchAll(context.Background(), nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Requested)
	assert.Equal(t, 0, result.TotalChunks)
	assert.Empty(t, result.Items)
}

func TestBatchFetcher_ChunkArithmetic(t *testing.T) {
	tests := []struct {
		items      int
		wantChunks int
	}{
		{1, 1},
		{10, 1},
		{11, 2},
		{25, 3},
		{100, 10},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d items", tt.items), func(t *testing.T) {
			var requests atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				requests.Add(1)
				echoHandler(t)(w, r)
			}))
			defer server.Close()

			fetcher := newTestFetcher(t, server.URL)
			result, err := fetcher.FetchAll(context.Background(), testItemIDs(tt.items), nil, nil)
			require.NoError(t, err)

			assert.Equal(t, tt.wantChunks, result.TotalChunks)
			assert.Equal(t, int32(tt.wantChunks), requests.Load())
			assert.Equal(t, tt.items, result.Retrieved())
			assert.LessOrEqual(t, result.Retrieved(), result.Requested)
			assert.InDelta(t, 1.0, result.SuccessRate(), 0.001)
		})
	}
}

func TestBatchFetcher_ProgressReported(t *testing.T) {
	server := httptest.NewServer(echoHandler(t))
	defer server.Close()

	fetcher := newTestFetcher(t, server.URL)

	var snapshots []Progress
	result, err := fetcher.FetchAll(context.Background(), testItemIDs(25), nil, func(p Progress) {
		snapshots = append(snapshots, p)
	})
	require.NoError(t, err)
	require.Len(t, snapshots, 3)

	assert.Equal(t, Progress{ChunksDone: 1, TotalChunks: 3, Requested: 25, Retrieved: 10, SuccessRate: 10.0 / 25.0}, snapshots[0])
	assert.Equal(t, Progress{ChunksDone: 2, TotalChunks: 3, Requested: 25, Retrieved: 20, SuccessRate: 20.0 / 25.0}, snapshots[1])
	assert.Equal(t, Progress{ChunksDone: 3, TotalChunks: 3, Requested: 25, Retrieved: 25, SuccessRate: 1.0}, snapshots[2])
	assert.Equal(t, 25, result.Retrieved())
}

func TestBatchFetcher_ProgressReportedOnAbort(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 2 {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"errors": [{"code": "AccessDenied", "message": "credentials rejected"}]}`)
			return
		}
		echoHandler(t)(w, r)
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, server.URL)

	var snapshots []Progress
	_, err := fetcher.FetchAll(context.Background(), testItemIDs(25), nil, func(p Progress) {
		snapshots = append(snapshots, p)
	})

	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)

	// The aborting chunk gets a final report so a liveness consumer sees it
	require.Len(t, snapshots, 2)
	assert.Equal(t, Progress{ChunksDone: 2, TotalChunks: 3, Requested: 25, Retrieved: 10, SuccessRate: 10.0 / 25.0}, snapshots[1])
}

func TestBatchFetcher_ChunkFailureContinues(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		echoHandler(t)(w, r)
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, server.URL)
	result, err := fetcher.FetchAll(context.Background(), testItemIDs(25), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.FailedChunks)
	assert.Equal(t, 15, result.Retrieved())
	assert.Equal(t, 3, result.TotalChunks)
}

func TestBatchFetcher_FatalAborts(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 2 {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"errors": [{"code": "AccessDenied", "message": "credentials rejected"}]}`)
			return
		}
		echoHandler(t)(w, r)
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, server.URL)
	result, err := fetcher.FetchAll(context.Background(), testItemIDs(25), nil, nil)

	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)

	// Chunk 1 results survive the abort, chunk 3 was never attempted
	assert.Equal(t, 10, result.Retrieved())
	assert.Equal(t, int32(2), requests.Load())
}

func TestBatchFetcher_OpenCircuitAborts(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ledger := newMemoryLedger()
	governor, err := NewQuotaGovernor(ledger, 1000, time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	breaker := NewCircuitBreaker(2, time.Minute, zap.NewNop())
	client, err := NewClient(testClientConfig(server.URL), governor, breaker, nil, nil, zap.NewNop())
	require.NoError(t, err)
	fetcher := NewBatchFetcher(client, zap.NewNop())

	// Chunks 1 and 2 fail and trip the breaker; chunk 3 is rejected
	// without a request
	result, err := fetcher.FetchAll(context.Background(), testItemIDs(25), nil, nil)

	var openErr *CircuitOpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, int32(2), requests.Load())
	assert.Equal(t, 2, result.FailedChunks)
	assert.Equal(t, 0, result.Retrieved())
}

func TestBatchFetcher_QuotaExhaustionAborts(t *testing.T) {
	server := httptest.NewServer(echoHandler(t))
	defer server.Close()

	ledger := newMemoryLedger()
	governor, err := NewQuotaGovernor(ledger, 2, time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	breaker := NewCircuitBreaker(5, time.Minute, zap.NewNop())
	client, err := NewClient(testClientConfig(server.URL), governor, breaker, nil, nil, zap.NewNop())
	require.NoError(t, err)
	fetcher := NewBatchFetcher(client, zap.NewNop())

	result, err := fetcher.FetchAll(context.Background(), testItemIDs(25), nil, nil)

	var quotaErr *QuotaExceededError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, 20, result.Retrieved())
}
