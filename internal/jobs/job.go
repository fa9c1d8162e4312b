package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/prepwise/partner-server-go/internal/config"
	"github.com/prepwise/partner-server-go/internal/metrics"
	redisclient "github.com/prepwise/partner-server-go/internal/redis"
)

// Locker guards a job run so only one instance executes it at a time.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context), acquired bool, err error)
}

// RunFunc performs one pass of a job and reports how many rows it touched.
type RunFunc func(ctx context.Context) (int64, error)

type Job struct {
	name     string
	interval time.Duration
	timeout  time.Duration
	locker   Locker
	run      RunFunc
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewJob builds a ticker job. A nil locker runs every tick unguarded.
func NewJob(name string, interval time.Duration, locker Locker, run RunFunc) *Job {
	return &Job{
		name:     name,
		interval: interval,
		timeout:  config.JobRunTimeout,
		locker:   locker,
		run:      run,
		done:     make(chan struct{}),
	}
}

func (j *Job) Start() {
	j.wg.Add(1)
	go j.loop()
	log.Info().Str("job", j.name).Dur("interval", j.interval).Msg("background job started")
}

// Stop ends the loop and waits for an in-flight run to finish.
func (j *Job) Stop() {
	j.stopOnce.Do(func() {
		close(j.done)
		j.wg.Wait()
		log.Info().Str("job", j.name).Msg("background job stopped")
	})
}

func (j *Job) loop() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.tick()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.tick()
		}
	}
}

func (j *Job) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if j.locker != nil {
		release, acquired, err := j.locker.TryLock(ctx, redisclient.JobLockKey(j.name), j.timeout)
		if err != nil {
			metrics.JobRuns.WithLabelValues(j.name, "error").Inc()
			log.Error().Err(err).Str("job", j.name).Msg("failed to acquire job lock")
			return
		}
		if !acquired {
			metrics.JobRuns.WithLabelValues(j.name, "skipped").Inc()
			log.Debug().Str("job", j.name).Msg("job locked by another instance")
			return
		}
		defer release(context.Background())
	}

	count, err := j.run(ctx)
	if err != nil {
		metrics.JobRuns.WithLabelValues(j.name, "error").Inc()
		log.Error().Err(err).Str("job", j.name).Msg("background job failed")
		return
	}

	metrics.JobRuns.WithLabelValues(j.name, "ok").Inc()
	if count > 0 {
		log.Info().Str("job", j.name).Int64("count", count).Msg("background job completed")
	}
}
