package systems

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/ember/engine/core"
)

// JobTask is a unit of work run by a JobSystem worker.
type JobTask struct {
	Name string
	Run  func() error
	// Optional callbacks, invoked on the worker goroutine.
	OnComplete func()
	OnFailure  func(err error)
}

type JobSystem struct {
	numWorkers int
	jobQueue   chan job
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

type job struct {
	task JobTask
	done chan<- error
}

var ErrNoWorkers = fmt.Errorf("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = fmt.Errorf("attempting to create worker pool with a negative channel size")

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan job, channelSize),
	}

	js.start()

	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for j := range js.jobQueue {
				err := j.task.Run()
				if err != nil {
					core.LogError("job %s failed: %s", j.task.Name, err)
					if j.task.OnFailure != nil {
						j.task.OnFailure(err)
					}
				} else if j.task.OnComplete != nil {
					j.task.OnComplete()
				}
				if j.done != nil {
					j.done <- err
				}
			}
		}()
	}
}

/**
 * @brief Shuts the job system down, waiting for queued jobs to finish.
 */
func (js *JobSystem) Shutdown() error {
	js.closeOnce.Do(func() {
		close(js.jobQueue)
	})
	js.wg.Wait()
	return nil
}

/**
 * @brief Submits the provided job to be queued for execution.
 */
func (js *JobSystem) Submit(jt JobTask) {
	js.jobQueue <- job{task: jt}
}

// RunAll queues every task and blocks until all of them finished. The
// returned error joins every task failure.
func (js *JobSystem) RunAll(tasks ...JobTask) error {
	done := make(chan error, len(tasks))
	for _, t := range tasks {
		js.jobQueue <- job{task: t, done: done}
	}
	var errs []error
	for range tasks {
		if err := <-done; err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
