package coop

const queueCompactMin = 64

// runQueue is a FIFO queue of ready tasks. Callers hold the executor mutex.
type runQueue struct {
	items []*Task
	head  int
}

func (q *runQueue) Len() int { return len(q.items) - q.head }

func (q *runQueue) Empty() bool { return q.Len() == 0 }

func (q *runQueue) Push(t *Task) {
	q.items = append(q.items, t)
}

func (q *runQueue) Pop() *Task {
	if q.Empty() {
		return nil
	}
	t := q.items[q.head]
	q.items[q.head] = nil
	q.head++
	if q.head >= queueCompactMin && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		q.items = q.items[:n]
		q.head = 0
	}
	return t
}
