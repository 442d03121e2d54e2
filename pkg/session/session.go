// Package session holds the state shared by the operations of one process.
//
// A [Session] owns the pipeline runner, the datasets registered under a
// name and the record of every run. It is created once and passed
// explicitly: the CLI creates one per process, the API server one per
// server, and tests one per test.
//
// Run records are kept in a [Store]:
//   - [MemoryStore]: in-process, the default
//   - [FileStore]: JSON files, so finished runs survive a restart
//
// # Usage
//
//	sess := session.New(runner, session.NewMemoryStore())
//	sess.PutDataset(ds)
//	run, err := sess.Start(ctx, "walk", pipeline.Options{Epsilon: 1.5})
//	// ... later ...
//	run, err = sess.Run(ctx, run.ID)
package session

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/trajgroups/pkg/dataset"
	trajerr "github.com/matzehuels/trajgroups/pkg/errors"
	"github.com/matzehuels/trajgroups/pkg/pipeline"
)

// Sentinel errors for session operations.
var (
	// ErrNotFound is returned when a run or dataset does not exist.
	ErrNotFound = errors.New("not found")

	// ErrExpired is returned when a run record has exceeded its TTL.
	ErrExpired = errors.New("expired")
)

// DefaultRunTTL is how long finished run records are kept.
const DefaultRunTTL = 24 * time.Hour

// Status is the lifecycle state of a run.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Run records one pipeline execution.
type Run struct {
	ID         string           `json:"id"`
	Dataset    string           `json:"dataset"`
	Options    pipeline.Options `json:"options"`
	Status     Status           `json:"status"`
	Error      string           `json:"error,omitempty"`
	Code       string           `json:"code,omitempty"`
	Result     *pipeline.Result `json:"result,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	FinishedAt time.Time        `json:"finished_at,omitzero"`
	ExpiresAt  time.Time        `json:"expires_at"`
}

// IsExpired returns true if the run record has expired.
func (r *Run) IsExpired() bool {
	return time.Now().After(r.ExpiresAt)
}

// Finished reports whether the run is done or failed.
func (r *Run) Finished() bool {
	return r.Status == StatusDone || r.Status == StatusFailed
}

// Store is the interface for run record backends.
type Store interface {
	// Get retrieves a run by ID.
	// Returns nil, nil if the run doesn't exist or has expired.
	Get(ctx context.Context, id string) (*Run, error)

	// Set stores a run, replacing any previous record with the same ID.
	Set(ctx context.Context, run *Run) error

	// Delete removes a run.
	Delete(ctx context.Context, id string) error

	// Cleanup removes expired runs.
	Cleanup(ctx context.Context) error
}

// Session is the explicit replacement for process-wide state.
type Session struct {
	ID        string
	CreatedAt time.Time
	Runner    *pipeline.Runner
	Logger    *log.Logger
	RunTTL    time.Duration

	runs Store

	mu       sync.RWMutex
	datasets map[string]*dataset.Dataset

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a session. A nil store keeps runs in memory.
func New(runner *pipeline.Runner, runs Store) *Session {
	if runs == nil {
		runs = NewMemoryStore()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ctx:       ctx,
		cancel:    cancel,
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		Runner:    runner,
		Logger:    runner.Logger,
		RunTTL:    DefaultRunTTL,
		runs:      runs,
		datasets:  make(map[string]*dataset.Dataset),
	}
}

// PutDataset registers ds under its name, replacing any previous dataset.
func (s *Session) PutDataset(ds *dataset.Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasets[ds.Name] = ds
}

// Dataset returns the dataset registered under name.
func (s *Session) Dataset(name string) (*dataset.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ds, ok := s.datasets[name]
	if !ok {
		return nil, trajerr.Wrap(trajerr.ErrCodeNotFound, ErrNotFound, "dataset %q", name)
	}
	return ds, nil
}

// Datasets returns the registered dataset names, sorted.
func (s *Session) Datasets() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.datasets))
	for name := range s.datasets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Start records a pending run on the named dataset and executes it in the
// background. The run is detached from ctx: it continues after the request
// that started it has returned and is canceled by Close.
func (s *Session) Start(ctx context.Context, name string, opts pipeline.Options) (*Run, error) {
	ds, err := s.Dataset(name)
	if err != nil {
		return nil, err
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	now := time.Now()
	run := &Run{
		ID:        uuid.NewString(),
		Dataset:   name,
		Options:   opts,
		Status:    StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(s.RunTTL),
	}
	if err := s.runs.Set(ctx, run); err != nil {
		return nil, trajerr.Wrap(trajerr.ErrCodeStorage, err, "record run")
	}

	snapshot := *run
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _ = s.execute(s.ctx, ds, snapshot)
	}()
	return run, nil
}

// Execute runs the pipeline synchronously and records the run.
func (s *Session) Execute(ctx context.Context, name string, opts pipeline.Options) (*Run, error) {
	ds, err := s.Dataset(name)
	if err != nil {
		return nil, err
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	now := time.Now()
	run := Run{
		ID:        uuid.NewString(),
		Dataset:   name,
		Options:   opts,
		CreatedAt: now,
		ExpiresAt: now.Add(s.RunTTL),
	}
	return s.execute(ctx, ds, run)
}

func (s *Session) execute(ctx context.Context, ds *dataset.Dataset, run Run) (*Run, error) {
	logger := s.Logger.With("run", run.ID)
	run.Status = StatusRunning
	if err := s.runs.Set(ctx, &run); err != nil {
		logger.Warn("record run failed", "error", err)
	}

	opts := run.Options
	opts.Logger = logger
	res, err := s.Runner.Run(ctx, ds, opts)

	run.FinishedAt = time.Now()
	run.ExpiresAt = run.FinishedAt.Add(s.RunTTL)
	if err != nil {
		run.Status = StatusFailed
		run.Error = trajerr.UserMessage(err)
		run.Code = string(trajerr.GetCode(err))
		logger.Error("run failed", "error", err)
	} else {
		run.Status = StatusDone
		run.Result = res
	}
	if serr := s.runs.Set(ctx, &run); serr != nil {
		logger.Warn("record run failed", "error", serr)
	}
	return &run, err
}

// Run returns the record of run id.
func (s *Session) Run(ctx context.Context, id string) (*Run, error) {
	run, err := s.runs.Get(ctx, id)
	if err != nil {
		return nil, trajerr.Wrap(trajerr.ErrCodeStorage, err, "load run %s", id)
	}
	if run == nil {
		return nil, trajerr.Wrap(trajerr.ErrCodeNotFound, ErrNotFound, "run %s", id)
	}
	return run, nil
}

// Wait blocks until every background run has finished.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close cancels background runs and waits for them, drops expired records
// and releases the runner.
func (s *Session) Close(ctx context.Context) error {
	s.cancel()
	s.Wait()
	return errors.Join(s.runs.Cleanup(ctx), s.Runner.Close())
}
