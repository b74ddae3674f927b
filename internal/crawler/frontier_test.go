package crawler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrontier_OrderAndDedupe(t *testing.T) {
	f := NewFrontier(0)

	assert.True(t, f.Add("a"), "first enqueue should succeed")
	assert.True(t, f.Add("b"))
	assert.False(t, f.Add("a"), "pending URL must not be enqueued twice")

	url, ok := f.Next()
	require.True(t, ok)
	assert.Equal(t, "a", url, "oldest pending URL is handed out first")

	assert.False(t, f.Add("a"), "visited URL must never re-enter the frontier")

	url, ok = f.Next()
	require.True(t, ok)
	assert.Equal(t, "b", url)
}

func TestFrontier_VisitedPendingDisjoint(t *testing.T) {
	f := NewFrontier(0)
	f.Add("a")
	f.Add("b")
	f.Add("c")

	_, ok := f.Next()
	require.True(t, ok)

	visited, pending := f.Snapshot()
	for _, v := range visited {
		assert.NotContains(t, pending, v, "visited and pending must stay disjoint")
	}
	assert.Len(t, visited, 1)
	assert.Len(t, pending, 2)
}

func TestFrontier_PageLimit(t *testing.T) {
	f := NewFrontier(2)
	f.Add("a")
	f.Add("b")
	f.Add("c")

	_, ok := f.Next()
	require.True(t, ok)
	f.Done()
	_, ok = f.Next()
	require.True(t, ok)
	f.Done()

	_, ok = f.Next()
	assert.False(t, ok, "Next must refuse work once the page limit is reached")
	assert.Equal(t, 2, f.Processed())
	assert.Equal(t, 1, f.Remaining(), "URLs beyond the limit stay pending for the checkpoint")
}

func TestFrontier_NextBlocksWhileWorkerActive(t *testing.T) {
	f := NewFrontier(0)
	f.Add("a")

	_, ok := f.Next()
	require.True(t, ok)

	// A second consumer must wait: the active worker may still discover URLs.
	got := make(chan string, 1)
	go func() {
		url, ok := f.Next()
		if ok {
			got <- url
		} else {
			got <- ""
		}
	}()

	select {
	case <-got:
		t.Fatal("Next returned while another worker was still active")
	case <-time.After(50 * time.Millisecond):
	}

	f.Add("b")
	select {
	case url := <-got:
		assert.Equal(t, "b", url, "waiter should wake and receive the discovered URL")
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken by Add")
	}
}

func TestFrontier_TerminatesWhenNoProducerLeft(t *testing.T) {
	f := NewFrontier(0)
	f.Add("a")

	_, ok := f.Next()
	require.True(t, ok)

	done := make(chan bool, 1)
	go func() {
		_, ok := f.Next()
		done <- ok
	}()

	f.Done()
	select {
	case ok := <-done:
		assert.False(t, ok, "Next must return no-work once the frontier is empty with no active worker")
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken by the last Done")
	}
}

func TestFrontier_CloseWakesWaiters(t *testing.T) {
	f := NewFrontier(0)
	f.Add("a")
	_, ok := f.Next()
	require.True(t, ok)

	done := make(chan bool, 1)
	go func() {
		_, ok := f.Next()
		done <- ok
	}()

	f.Close()
	select {
	case ok := <-done:
		assert.False(t, ok, "Close must unblock waiting workers")
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken by Close")
	}

	assert.False(t, f.Add("b"), "a closed frontier accepts no new URLs")
	assert.Equal(t, 0, f.Remaining(), "nothing was pending at close time")
}

func TestFrontier_RestoreSkipsVisited(t *testing.T) {
	f := NewFrontier(0)
	f.Restore([]string{"a", "b"}, []string{"b", "c", "c"})

	assert.Equal(t, 1, f.Remaining(), "restored pending URLs already visited or duplicated are dropped")

	url, ok := f.Next()
	require.True(t, ok)
	assert.Equal(t, "c", url)
}
