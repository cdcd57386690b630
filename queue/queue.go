// Package queue runs weighted jobs with bounded concurrency.
package queue

import (
	"container/heap"
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Queue is a job queue.
type Queue interface {
	// Push adds an entry to the queue.
	Push(Job)
	// Drain runs every queued entry, heaviest first, and blocks until all
	// are done. Results are in completion order. Entries not started when
	// ctx is cancelled fail with the context's error.
	Drain(ctx context.Context) []Result
}

// Job is queue entry.
type Job struct {
	ID      string
	Weight  int
	Execute func(ctx context.Context) error
}

// Result is a finished entry.
type Result struct {
	Job Job
	Err error
}

var _ Queue = &memoryQueue{}

// memoryQueue is the implementation of Queue using
// container/heap as underlying priority queue.
type memoryQueue struct {
	queue      priorityQueue
	concurrent int

	sync.Mutex
}

// NewWithMemoryStore creates a new Queue running at most concurrent
// entries at a time.
func NewWithMemoryStore(concurrent int) Queue {
	if concurrent < 1 {
		concurrent = 1
	}
	return &memoryQueue{concurrent: concurrent}
}

func (q *memoryQueue) Push(j Job) {
	q.Lock()
	defer q.Unlock()

	heap.Push(&q.queue, j)
}

func (q *memoryQueue) next() (Job, bool) {
	q.Lock()
	defer q.Unlock()

	if q.queue.Len() == 0 {
		return Job{}, false
	}
	return heap.Pop(&q.queue).(Job), true
}

func (q *memoryQueue) Drain(ctx context.Context) []Result {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []Result
	)
	done := func(j Job, err error) {
		mu.Lock()
		results = append(results, Result{Job: j, Err: err})
		mu.Unlock()
	}

	slots := make(chan struct{}, q.concurrent)
	for {
		job, ok := q.next()
		if !ok {
			break
		}
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
		}
		if err := ctx.Err(); err != nil {
			done(job, err)
			continue
		}

		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			defer func() { <-slots }()

			l := log.WithFields(log.Fields{"job": job.ID, "weight": job.Weight})
			l.Debug("job dispatched")
			err := job.Execute(ctx)
			if err != nil {
				l.WithError(err).Debug("job failed")
			}
			done(job, err)
		}(job)
	}
	wg.Wait()
	return results
}

var _ heap.Interface = &priorityQueue{}

type priorityQueue []Job

func (q priorityQueue) Len() int            { return len(q) }
func (q priorityQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q priorityQueue) Less(i, j int) bool  { return q[j].Weight < q[i].Weight }
func (q *priorityQueue) Push(x interface{}) { *q = append(*q, x.(Job)) }
func (q *priorityQueue) Pop() interface{} {
	l := len(*q)
	entry := (*q)[l-1]
	*q = (*q)[:l-1]
	return entry
}
