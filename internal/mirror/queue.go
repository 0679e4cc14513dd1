package mirror

import "sync"

// workQueue is a FIFO of folder paths with a pending-task barrier.
//
// pending counts folders pushed but not yet marked Done. A worker blocks in
// Pop while the queue is empty and other workers may still push; Pop reports
// false once nothing is queued and nothing is pending, or after Abort.
type workQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []string
	pending int
	aborted bool
}

func newWorkQueue() *workQueue {
	q := &workQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *workQueue) Push(path string) {
	q.mu.Lock()
	q.items = append(q.items, path)
	q.pending++
	q.mu.Unlock()
	q.cond.Signal()
}

func (q *workQueue) Pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && q.pending > 0 && !q.aborted {
		q.cond.Wait()
	}
	if q.aborted || len(q.items) == 0 {
		return "", false
	}

	path := q.items[0]
	q.items[0] = ""
	q.items = q.items[1:]
	return path, true
}

// Done marks one popped folder as fully processed.
func (q *workQueue) Done() {
	q.mu.Lock()
	q.pending--
	finished := q.pending == 0
	q.mu.Unlock()
	if finished {
		q.cond.Broadcast()
	}
}

// Abort wakes every blocked Pop and makes all further Pops report false.
func (q *workQueue) Abort() {
	q.mu.Lock()
	q.aborted = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

func (q *workQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}
