package fetcher

import "container/heap"

// queueItem is one pending job plus the bookkeeping both heaps need to
// share it.
type queueItem struct {
	job   *Fetchable
	seq   uint64
	taken bool
}

// fetchQueue orders pending jobs by expected size, smallest and largest
// both reachable in O(log n). Ties resolve to the earliest enqueued job
// so pops are deterministic. Every job lives in both heaps; whichever
// heap pops it first marks it taken and the other heap discards the
// tombstone lazily.
//
// The queue is not safe for concurrent use. The Fetcher serializes
// every operation under one mutex so empty-check and pop compose
// atomically.
type fetchQueue struct {
	min  smallestFirst
	max  largestFirst
	seq  uint64
	live int
}

func newFetchQueue() *fetchQueue { return &fetchQueue{} }

func (q *fetchQueue) push(job *Fetchable) {
	it := &queueItem{job: job, seq: q.seq}
	q.seq++
	heap.Push(&q.min, it)
	heap.Push(&q.max, it)
	q.live++
}

// popSmallest removes and returns the pending job with the smallest
// expected size. The queue must not be empty.
func (q *fetchQueue) popSmallest() *Fetchable { return q.pop(&q.min) }

// popLargest removes and returns the pending job with the largest
// expected size. The queue must not be empty.
func (q *fetchQueue) popLargest() *Fetchable { return q.pop(&q.max) }

func (q *fetchQueue) pop(h heap.Interface) *Fetchable {
	for {
		it := heap.Pop(h).(*queueItem)
		if it.taken {
			continue
		}
		it.taken = true
		q.live--
		return it.job
	}
}

func (q *fetchQueue) empty() bool { return q.live == 0 }

func (q *fetchQueue) len() int { return q.live }

type smallestFirst []*queueItem

func (h smallestFirst) Len() int { return len(h) }
func (h smallestFirst) Less(i, j int) bool {
	if h[i].job.ExpectedSize != h[j].job.ExpectedSize {
		return h[i].job.ExpectedSize < h[j].job.ExpectedSize
	}
	return h[i].seq < h[j].seq
}
func (h smallestFirst) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *smallestFirst) Push(x any)   { *h = append(*h, x.(*queueItem)) }
func (h *smallestFirst) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

type largestFirst []*queueItem

func (h largestFirst) Len() int { return len(h) }
func (h largestFirst) Less(i, j int) bool {
	if h[i].job.ExpectedSize != h[j].job.ExpectedSize {
		return h[i].job.ExpectedSize > h[j].job.ExpectedSize
	}
	return h[i].seq < h[j].seq
}
func (h largestFirst) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *largestFirst) Push(x any)   { *h = append(*h, x.(*queueItem)) }
func (h *largestFirst) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}
