// Package profiling provides CPU and heap profiling helpers for the CLI.
package profiling

import (
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/seekly/seekly/internal/errors"
)

// Profiler manages pprof output files for one process run.
type Profiler struct {
	cpuFile *os.File
}

// NewProfiler creates an idle profiler.
func NewProfiler() *Profiler {
	return &Profiler{}
}

// StartCPU begins CPU profiling into path. The returned cleanup stops the
// profile and closes the file; skipping it loses the profile.
func (p *Profiler) StartCPU(path string) (cleanup func(), err error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreIO, "create cpu profile")
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "start cpu profile")
	}
	p.cpuFile = f
	return func() {
		pprof.StopCPUProfile()
		_ = p.cpuFile.Close()
		p.cpuFile = nil
	}, nil
}

// WriteHeap writes a point-in-time heap snapshot to path. A GC runs first
// so the snapshot reflects live objects rather than garbage.
func (p *Profiler) WriteHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStoreIO, "create heap profile")
	}
	defer func() { _ = f.Close() }()

	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "write heap profile")
	}
	return nil
}
