package loader

import "container/heap"

// requestQueue orders pending requests by descending priority; requests
// with equal priority dispatch in submission order.
type requestQueue struct {
	items []*Request
}

func (q *requestQueue) Len() int {
	return len(q.items)
}

func (q *requestQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	return a.sequence < b.sequence
}

func (q *requestQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
}

func (q *requestQueue) Push(x any) {
	q.items = append(q.items, x.(*Request))
}

func (q *requestQueue) Pop() any {
	old := q.items
	n := len(old)
	r := old[n-1]
	old[n-1] = nil
	q.items = old[:n-1]
	return r
}

func (q *requestQueue) push(r *Request) {
	heap.Push(q, r)
}

func (q *requestQueue) pop() *Request {
	if len(q.items) == 0 {
		return nil
	}
	return heap.Pop(q).(*Request)
}

// reprioritize updates a queued request's priority in place.
func (q *requestQueue) reprioritize(r *Request, priority float64) {
	for i, item := range q.items {
		if item == r {
			r.priority = priority
			heap.Fix(q, i)
			return
		}
	}
}
