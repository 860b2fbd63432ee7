// Package procreg keeps track of helper processes spawned during a run so
// they can be stopped when the program is interrupted.
package procreg

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultGrace = 3 * time.Second

type Registry struct {
	mu     sync.Mutex
	procs  map[int]*os.Process
	logger *zap.Logger
	closed bool
}

func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{procs: make(map[int]*os.Process), logger: logger}
}

var ErrClosed = errors.New("process registry is shut down")

// Start starts cmd in its own process group and tracks it until the
// returned release func is called, normally right after cmd.Wait.
func (r *Registry) Start(cmd *exec.Cmd) (release func(), err error) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	configure(cmd)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return r.Track(cmd.Process), nil
}

// Track adds p to the registry. A process tracked after Shutdown is
// terminated at once.
func (r *Registry) Track(p *os.Process) (release func()) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = kill(p)
		return func() {}
	}
	r.procs[p.Pid] = p
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.procs, p.Pid)
			r.mu.Unlock()
		})
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}

// Shutdown asks every tracked process group to terminate and kills the
// ones still registered after grace. It returns once the registry is empty
// or ctx is done.
func (r *Registry) Shutdown(ctx context.Context, grace time.Duration) error {
	if grace <= 0 {
		grace = DefaultGrace
	}

	r.mu.Lock()
	r.closed = true
	procs := r.snapshotLocked()
	r.mu.Unlock()

	var errs []error
	for _, p := range procs {
		r.logger.Debug("terminating helper process", zap.Int("pid", p.Pid))
		if err := terminate(p); err != nil && !errors.Is(err, os.ErrProcessDone) {
			errs = append(errs, err)
		}
	}

	deadline := time.NewTimer(grace)
	defer deadline.Stop()
	ticker := time.NewTicker(25 * time.Millisecond)
	defer ticker.Stop()

	for r.Len() > 0 {
		select {
		case <-ctx.Done():
			return errors.Join(append(errs, ctx.Err())...)
		case <-deadline.C:
			r.mu.Lock()
			procs = r.snapshotLocked()
			r.mu.Unlock()
			for _, p := range procs {
				r.logger.Warn("killing helper process after grace period", zap.Int("pid", p.Pid), zap.Duration("grace", grace))
				if err := kill(p); err != nil && !errors.Is(err, os.ErrProcessDone) {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		case <-ticker.C:
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) snapshotLocked() []*os.Process {
	out := make([]*os.Process, 0, len(r.procs))
	for _, p := range r.procs {
		out = append(out, p)
	}
	return out
}
