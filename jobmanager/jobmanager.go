// Package jobmanager runs named periodic jobs. At most one run of a job executes at a time; a
// trigger that arrives while the job is running is skipped.
package jobmanager

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"go.viam.com/gridnav/logging"
	"go.viam.com/gridnav/utils"
)

// JobConfig names a job and its schedule. The schedule is either a Go duration ("1s") or a cron
// expression.
type JobConfig struct {
	Name     string `json:"name"`
	Schedule string `json:"schedule"`
}

// Validate ensures all parts of the config are valid.
func (jc *JobConfig) Validate(path string) error {
	if jc.Name == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "name")
	}
	if jc.Schedule == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "schedule")
	}
	return nil
}

func (jc *JobConfig) definition() gocron.JobDefinition {
	if d, err := time.ParseDuration(jc.Schedule); err == nil {
		return gocron.DurationJob(d)
	}
	return gocron.CronJob(jc.Schedule, false)
}

// Jobmanager owns a gocron scheduler and the jobs registered on it.
type Jobmanager struct {
	scheduler gocron.Scheduler
	logger    logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	namesToUUIDs map[string]uuid.UUID
}

// New returns a stopped job manager.
func New(logger logging.Logger, opts ...gocron.SchedulerOption) (*Jobmanager, error) {
	scheduler, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Jobmanager{
		scheduler:    scheduler,
		logger:       logger.Sublogger("job_manager"),
		ctx:          ctx,
		cancel:       cancel,
		namesToUUIDs: make(map[string]uuid.UUID),
	}, nil
}

// AddJob registers fn under jc. fn receives a context that is cancelled on Shutdown.
func (jm *Jobmanager) AddJob(jc JobConfig, fn func(ctx context.Context)) error {
	if err := jc.Validate("job"); err != nil {
		return err
	}
	jm.mu.Lock()
	defer jm.mu.Unlock()
	if _, ok := jm.namesToUUIDs[jc.Name]; ok {
		return errors.Errorf("job %q already exists", jc.Name)
	}

	name := jc.Name
	j, err := jm.scheduler.NewJob(
		jc.definition(),
		gocron.NewTask(func() {
			jm.logger.CDebugw(jm.ctx, "triggering job", "name", name)
			fn(jm.ctx)
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return errors.Wrapf(err, "creating job %q", name)
	}
	jm.logger.Debugw("created job", "name", name, "uuid", j.ID(), "schedule", jc.Schedule)
	jm.namesToUUIDs[name] = j.ID()
	return nil
}

// AddIntervalJob registers fn to run every interval.
func (jm *Jobmanager) AddIntervalJob(name string, interval time.Duration, fn func(ctx context.Context)) error {
	if interval <= 0 {
		return errors.Errorf("job %q interval must be positive, got %v", name, interval)
	}
	return jm.AddJob(JobConfig{Name: name, Schedule: interval.String()}, fn)
}

// Trigger runs the named job now, outside its schedule. The run is skipped if the job is
// already running.
func (jm *Jobmanager) Trigger(name string) error {
	jm.mu.Lock()
	id, ok := jm.namesToUUIDs[name]
	jm.mu.Unlock()
	if !ok {
		return errors.Errorf("no job named %q", name)
	}
	for _, j := range jm.scheduler.Jobs() {
		if j.ID() == id {
			return j.RunNow()
		}
	}
	return errors.Errorf("job %q is not scheduled", name)
}

// RemoveJob unschedules the named job.
func (jm *Jobmanager) RemoveJob(name string) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	id, ok := jm.namesToUUIDs[name]
	if !ok {
		return errors.Errorf("no job named %q", name)
	}
	delete(jm.namesToUUIDs, name)
	return jm.scheduler.RemoveJob(id)
}

// Start starts the scheduler.
func (jm *Jobmanager) Start() {
	jm.scheduler.Start()
}

// Shutdown cancels running jobs and stops the scheduler.
func (jm *Jobmanager) Shutdown() error {
	jm.logger.Info("Shutting down gracefully")
	jm.cancel()
	return jm.scheduler.Shutdown()
}
