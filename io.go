package coscope

import "context"

// IODispatch performs batches of I/O requests off the scheduler's
// goroutine. Dispatch must not block: it hands the requests to other
// goroutines, which send one or more IOBatch values on resp covering
// every request. sema bounds how many batches may be in flight.
type IODispatch[I, O any] interface {
	Dispatch(
		ctx context.Context,
		alloc *IOAllocator[I, O],
		sema chan struct{},
		reqs []*IORequest[I, O],
		resp chan *IOBatch[I, O],
	)
}

// IORequest is one call to Task.IO. A retried request is dispatched
// again as the same value.
type IORequest[I, O any] struct {
	task    *Task[I, O]
	in      I
	out     O
	attempt int
	w       *waiter
}

// Input returns the value passed to Task.IO.
func (r *IORequest[I, O]) Input() I {
	return r.in
}

// Attempt returns how many times the request has been dispatched,
// starting at one.
func (r *IORequest[I, O]) Attempt() int {
	return r.attempt
}

type ioOutcome uint8

const (
	ioPending ioOutcome = iota
	ioDone
	ioRetry
)

// IOBatch is a set of requests answered together. Every request of a
// batch must get exactly one outcome, a response or a retry, before
// the batch is sent back.
type IOBatch[I, O any] struct {
	requests []*IORequest[I, O]
	outs     []O
	outcomes []ioOutcome
}

// Requests returns the requests in the batch.
func (b *IOBatch[I, O]) Requests() []*IORequest[I, O] {
	return b.requests
}

// Len returns the number of requests in the batch.
func (b *IOBatch[I, O]) Len() int {
	return len(b.requests)
}

func (b *IOBatch[I, O]) answer(i int, o ioOutcome) {
	if b.outcomes[i] != ioPending {
		panic("coscope: IO request answered twice")
	}
	b.outcomes[i] = o
}

// settle wakes the tasks whose requests completed and returns the
// requests to dispatch again. It panics if a request was left
// unanswered.
func (b *IOBatch[I, O]) settle() []*IORequest[I, O] {
	for _, o := range b.outcomes {
		if o == ioPending {
			panic("coscope: invalid batch response")
		}
	}

	var retries []*IORequest[I, O]
	for i, req := range b.requests {
		if b.outcomes[i] == ioRetry {
			req.task.Logf("IO RETRY %d", req.attempt)
			retries = append(retries, req)
			continue
		}
		req.task.Log("IO RESP")
		req.out = b.outs[i]
		req.w.wake(nil)
	}
	return retries
}

// IOAllocator builds and answers batches on behalf of a dispatcher.
type IOAllocator[I, O any] struct{}

// NewBatch returns a batch holding requests.
func (a *IOAllocator[I, O]) NewBatch(requests ...*IORequest[I, O]) *IOBatch[I, O] {
	batch := new(IOBatch[I, O])
	a.AddBatchRequest(batch, requests...)
	return batch
}

// AddBatchRequest appends requests to batch.
func (*IOAllocator[I, O]) AddBatchRequest(batch *IOBatch[I, O], requests ...*IORequest[I, O]) {
	batch.requests = append(batch.requests, requests...)
	batch.outs = append(batch.outs, make([]O, len(requests))...)
	batch.outcomes = append(batch.outcomes, make([]ioOutcome, len(requests))...)
}

// SetBatchResponse records data as the output of the i-th request.
func (*IOAllocator[I, O]) SetBatchResponse(batch *IOBatch[I, O], i int, data O) {
	batch.answer(i, ioDone)
	batch.outs[i] = data
}

// SetBatchRetry asks the scheduler to dispatch the i-th request again.
func (*IOAllocator[I, O]) SetBatchRetry(batch *IOBatch[I, O], i int) {
	batch.answer(i, ioRetry)
}

// ioQueue collects requests between two dispatches.
type ioQueue[I, O any] struct {
	requests []*IORequest[I, O]
}

func (q *ioQueue[I, O]) add(reqs ...*IORequest[I, O]) {
	q.requests = append(q.requests, reqs...)
}

// take empties the queue and returns what it held, counting one more
// attempt for each request.
func (q *ioQueue[I, O]) take() []*IORequest[I, O] {
	reqs := q.requests
	q.requests = nil
	for _, req := range reqs {
		req.attempt++
	}
	return reqs
}

func (q *ioQueue[I, O]) len() int {
	return len(q.requests)
}
