package models

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igmirror/pkg/errors"
)

// scriptedFetcher serves pages from a fixed script, charging 2 units per
// fetch and recording the cursors it was asked for.
func scriptedFetcher(totalPages int, calls *int32, cursors *[]string) PageFetcher {
	var mu sync.Mutex
	return func(ctx context.Context, cursor string) (*Page, int, error) {
		atomic.AddInt32(calls, 1)

		mu.Lock()
		*cursors = append(*cursors, cursor)
		mu.Unlock()

		index := 0
		if cursor != "" {
			fmt.Sscanf(cursor, "cursor-%d", &index)
		}
		return &Page{
			Posts:     []*Post{{Shortcode: fmt.Sprintf("post-%d", index)}},
			EndCursor: fmt.Sprintf("cursor-%d", index+1),
			HasNext:   index+1 < totalPages,
		}, 2, nil
	}
}

func TestFetchUpToPageSequential(t *testing.T) {
	var calls int32
	var cursors []string
	tl := NewTimeline(scriptedFetcher(10, &calls, &cursors))

	units, err := tl.FetchUpToPage(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 6, units)
	assert.Equal(t, 3, tl.PageCount())
	// Pages are causally chained through the continuation cursors
	assert.Equal(t, []string{"", "cursor-1", "cursor-2"}, cursors)
}

func TestFetchUpToPageIdempotent(t *testing.T) {
	var calls int32
	var cursors []string
	tl := NewTimeline(scriptedFetcher(10, &calls, &cursors))

	_, err := tl.FetchUpToPage(context.Background(), 3)
	require.NoError(t, err)

	units, err := tl.FetchUpToPage(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 0, units)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestFetchUpToPageMonotonic(t *testing.T) {
	var calls int32
	var cursors []string
	tl := NewTimeline(scriptedFetcher(10, &calls, &cursors))

	_, err := tl.FetchUpToPage(context.Background(), 1)
	require.NoError(t, err)

	units, err := tl.FetchUpToPage(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, 6, units, "only pages 2..4 are fetched")
	assert.Equal(t, int32(5), atomic.LoadInt32(&calls))
}

func TestFetchUpToPageEndOfFeed(t *testing.T) {
	var calls int32
	var cursors []string
	tl := NewTimeline(scriptedFetcher(2, &calls, &cursors))

	units, err := tl.FetchUpToPage(context.Background(), 5)
	require.ErrorIs(t, err, ErrEndOfFeed)
	assert.Equal(t, 4, units, "both real pages were paid for")
	assert.Equal(t, 2, tl.PageCount(), "committed pages survive the failure")
}

func TestFetchUpToPageFailureKeepsPrefix(t *testing.T) {
	var n int
	tl := NewTimeline(func(ctx context.Context, cursor string) (*Page, int, error) {
		n++
		if n == 3 {
			return nil, 2, errors.New(errors.KindRateLimited, "blocked mid-sequence")
		}
		return &Page{EndCursor: fmt.Sprintf("cursor-%d", n), HasNext: true}, 2, nil
	})

	units, err := tl.FetchUpToPage(context.Background(), 2)
	require.Error(t, err)
	assert.Equal(t, errors.KindRateLimited, errors.KindOf(err))
	assert.Equal(t, 6, units, "failed fetch is still charged")
	assert.Equal(t, 2, tl.PageCount())

	// The next attempt resumes after the committed prefix
	n = 0 // fetcher succeeds from here on
	units, err = tl.FetchUpToPage(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, units)
	assert.Equal(t, 3, tl.PageCount())
}

func TestConcurrentExtensionSerialized(t *testing.T) {
	var calls int32
	var cursors []string
	tl := NewTimeline(scriptedFetcher(20, &calls, &cursors))

	var wg sync.WaitGroup
	for _, target := range []int{3, 5, 5, 3} {
		wg.Add(1)
		go func(target int) {
			defer wg.Done()
			_, err := tl.FetchUpToPage(context.Background(), target)
			assert.NoError(t, err)
		}(target)
	}
	wg.Wait()

	// Six pages exist and none was fetched twice
	assert.Equal(t, 6, tl.PageCount())
	assert.Equal(t, int32(6), atomic.LoadInt32(&calls))
}

func TestPageAccess(t *testing.T) {
	var calls int32
	var cursors []string
	tl := NewTimeline(scriptedFetcher(10, &calls, &cursors))

	_, err := tl.FetchUpToPage(context.Background(), 1)
	require.NoError(t, err)

	p, ok := tl.Page(1)
	require.True(t, ok)
	assert.Equal(t, "post-1", p.Posts[0].Shortcode)

	_, ok = tl.Page(2)
	assert.False(t, ok)
	_, ok = tl.Page(-1)
	assert.False(t, ok)

	assert.Len(t, tl.Pages(), 2)
}
