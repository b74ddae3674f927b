package crawler

import "sync"

// Frontier tracks visited URLs and the insertion-ordered set of pending
// URLs. The two are always disjoint: a URL is marked visited the moment it
// is handed to a worker, before the fetch begins, so it can never be
// enqueued twice.
//
// Next blocks while the frontier is empty but other workers are still
// mid-fetch and may yet discover new URLs. A condition variable wakes
// waiters on enqueue, on the last active worker finishing, and on close.
type Frontier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	visited    map[string]struct{}
	pending    []string
	pendingSet map[string]struct{}
	active     int
	processed  int
	limit      int
	closed     bool
}

// NewFrontier creates a frontier with an optional page-count limit
// (0 = unlimited).
func NewFrontier(limit int) *Frontier {
	f := &Frontier{
		visited:    make(map[string]struct{}),
		pendingSet: make(map[string]struct{}),
		limit:      limit,
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Restore seeds the frontier from persisted state. Pending URLs already
// marked visited are skipped to preserve disjointness.
func (f *Frontier) Restore(visited []string, pending []string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range visited {
		f.visited[u] = struct{}{}
	}
	for _, u := range pending {
		if _, seen := f.visited[u]; seen {
			continue
		}
		if _, queued := f.pendingSet[u]; queued {
			continue
		}
		f.pendingSet[u] = struct{}{}
		f.pending = append(f.pending, u)
	}
	f.cond.Broadcast()
}

// Add enqueues a URL unless it was already visited or is already pending.
// Returns true if the URL was enqueued.
func (f *Frontier) Add(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return false
	}
	if _, seen := f.visited[url]; seen {
		return false
	}
	if _, queued := f.pendingSet[url]; queued {
		return false
	}
	f.pendingSet[url] = struct{}{}
	f.pending = append(f.pending, url)
	f.cond.Signal()
	return true
}

// Next hands out the oldest pending URL, marking it visited and counting it
// as processed before the caller fetches it. When the frontier is empty but
// workers are active, Next waits. Returns false when the page limit is
// reached, the frontier is closed, or the frontier is empty with no active
// worker left.
func (f *Frontier) Next() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for {
		if f.closed {
			return "", false
		}
		if f.limit > 0 && f.processed >= f.limit {
			return "", false
		}
		if len(f.pending) > 0 {
			url := f.pending[0]
			f.pending = f.pending[1:]
			delete(f.pendingSet, url)
			f.visited[url] = struct{}{}
			f.processed++
			f.active++
			return url, true
		}
		if f.active == 0 {
			return "", false
		}
		f.cond.Wait()
	}
}

// Done signals that the worker finished the page it dequeued. The broadcast
// lets waiting workers either pick up newly discovered URLs or terminate
// once no producer is left.
func (f *Frontier) Done() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active--
	f.cond.Broadcast()
}

// Close wakes all waiting workers and makes Next return no-work. Used on
// cancellation; pending URLs stay queued for the checkpoint.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.cond.Broadcast()
}

// Snapshot returns the visited set and the pending list in insertion order
// for checkpointing.
func (f *Frontier) Snapshot() (visited []string, pending []string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	visited = make([]string, 0, len(f.visited))
	for u := range f.visited {
		visited = append(visited, u)
	}
	pending = make([]string, len(f.pending))
	copy(pending, f.pending)
	return visited, pending
}

// Processed returns how many URLs have been handed out so far.
func (f *Frontier) Processed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.processed
}

// Remaining returns the number of URLs still pending.
func (f *Frontier) Remaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}
