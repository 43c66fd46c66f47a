package rx

import (
	"context"
	"io"

	"github.com/panjf2000/ants"
	"github.com/pkg/errors"
)

var (
	elasticScheduler   Scheduler
	immediateScheduler = immediateSchedulerImpl{}
)

func init() {
	s, err := NewElasticScheduler(ants.DefaultAntsPoolSize)
	if err != nil {
		panic(err)
	}
	elasticScheduler = s
}

// Job is executed in a Scheduler.
type Job = func(ctx context.Context)

// Scheduler is a worker pool executing jobs asynchronously.
type Scheduler interface {
	io.Closer
	// Do submits a job.
	Do(ctx context.Context, job Job) error
}

// ImmediateScheduler returns a scheduler which runs jobs in the calling goroutine.
func ImmediateScheduler() Scheduler {
	return immediateScheduler
}

// ElasticScheduler returns the shared elastic scheduler.
func ElasticScheduler() Scheduler {
	return elasticScheduler
}

// NewElasticScheduler returns a scheduler backed by a goroutine pool of the given size.
func NewElasticScheduler(size int) (Scheduler, error) {
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, errors.Wrap(err, "create worker pool failed")
	}
	return &elasticSchedulerImpl{pool: pool}, nil
}

type immediateSchedulerImpl struct{}

func (immediateSchedulerImpl) Close() error {
	return nil
}

func (immediateSchedulerImpl) Do(ctx context.Context, job Job) error {
	job(ctx)
	return nil
}

type elasticSchedulerImpl struct {
	pool *ants.Pool
}

func (p *elasticSchedulerImpl) Close() error {
	return p.pool.Release()
}

func (p *elasticSchedulerImpl) Do(ctx context.Context, job Job) error {
	return p.pool.Submit(func() {
		job(ctx)
	})
}
