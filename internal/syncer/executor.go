package syncer

import (
	"fmt"
	"io"
	"sync"

	"github.com/rediacc/desktop/internal/errors"
	"github.com/rediacc/desktop/internal/logger"
)

// OpResult records the outcome of one executed operation.
type OpResult struct {
	Op    Operation
	Err   error
	Bytes int64
}

// Report aggregates per-entry outcomes for one executed plan. Success is
// true only when no operation failed.
type Report struct {
	Results []OpResult
	DryRun  bool
}

func (r *Report) Success() bool {
	for _, res := range r.Results {
		if res.Err != nil {
			return false
		}
	}
	return true
}

// Failures returns the results that carry errors.
func (r *Report) Failures() []OpResult {
	var failed []OpResult
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

// ExecOptions tunes plan execution.
type ExecOptions struct {
	// DryRun reports every operation without mutating the destination.
	DryRun bool

	// Verify re-checksums both sides after each copy/update and flags
	// mismatches as per-entry failures.
	Verify bool

	// Workers bounds concurrent file transfers. Zero means 4.
	Workers int
}

// Executor applies a plan from a source endpoint to a destination endpoint.
type Executor struct {
	src Endpoint
	dst Endpoint
	log logger.Logger
}

func NewExecutor(src, dst Endpoint, log logger.Logger) *Executor {
	if log == nil {
		log = logger.Default()
	}
	return &Executor{src: src, dst: dst, log: log}
}

// Execute runs every operation and never aborts the batch: each failure is
// captured per entry. Directories are created serially first, file
// transfers run on a bounded worker pool, and deletes start only after all
// transfers have finished.
func (e *Executor) Execute(plan *Plan, opts ExecOptions) *Report {
	report := &Report{DryRun: opts.DryRun}
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}

	var dirs, files, deletes []Operation
	for _, op := range plan.Ops {
		switch {
		case op.Kind == OpSkip:
			report.Results = append(report.Results, OpResult{Op: op})
		case op.Kind == OpDelete:
			deletes = append(deletes, op)
		case op.Entry.Kind == KindDir:
			dirs = append(dirs, op)
		default:
			files = append(files, op)
		}
	}

	for _, op := range dirs {
		res := OpResult{Op: op}
		if !opts.DryRun {
			if err := e.dst.Mkdir(op.Entry.RelPath); err != nil {
				res.Err = errors.WrapWithCode(err, errors.ErrSync,
					"could not create directory "+op.Entry.RelPath, "")
			}
		}
		report.Results = append(report.Results, res)
	}

	fileResults := make([]OpResult, len(files))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, op := range files {
		wg.Add(1)
		go func(i int, op Operation) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			fileResults[i] = e.transfer(op, opts)
		}(i, op)
	}
	wg.Wait()
	report.Results = append(report.Results, fileResults...)

	for _, op := range deletes {
		res := OpResult{Op: op}
		if !opts.DryRun {
			if err := e.dst.Remove(op.Entry.RelPath, op.Entry.Kind); err != nil {
				res.Err = errors.WrapWithCode(err, errors.ErrSync,
					"could not delete "+op.Entry.RelPath, "")
			}
		}
		report.Results = append(report.Results, res)
	}

	return report
}

func (e *Executor) transfer(op Operation, opts ExecOptions) OpResult {
	res := OpResult{Op: op, Bytes: op.Entry.Size}
	if opts.DryRun {
		return res
	}

	content, err := e.src.Open(op.Entry.RelPath)
	if err != nil {
		res.Err = errors.WrapWithCode(err, errors.ErrSync,
			"could not read "+op.Entry.RelPath, "")
		return res
	}
	err = e.dst.Write(op.Entry.RelPath, content, op.Entry.Mtime)
	closeErr := drainClose(content)
	if err == nil {
		err = closeErr
	}
	if err != nil {
		res.Err = errors.WrapWithCode(err, errors.ErrSync,
			"could not transfer "+op.Entry.RelPath, "")
		return res
	}
	e.log.Debug("transferred %s (%d bytes)", op.Entry.RelPath, op.Entry.Size)

	if opts.Verify {
		srcHash, err := e.src.Checksum(op.Entry.RelPath)
		if err != nil {
			res.Err = errors.WrapWithCode(err, errors.ErrSync,
				"could not verify "+op.Entry.RelPath, "")
			return res
		}
		dstHash, err := e.dst.Checksum(op.Entry.RelPath)
		if err != nil {
			res.Err = errors.WrapWithCode(err, errors.ErrSync,
				"could not verify "+op.Entry.RelPath, "")
			return res
		}
		if srcHash != dstHash {
			res.Err = errors.New(errors.ErrSync,
				fmt.Sprintf("verification failed for %s: checksums differ after transfer", op.Entry.RelPath),
				"Retry the sync; if it persists, check the remote disk")
		}
	}
	return res
}

// drainClose discards the remainder of a reader before closing it, keeping
// remote cat sessions from blocking on a half-read pipe.
func drainClose(rc io.ReadCloser) error {
	io.Copy(io.Discard, rc)
	return rc.Close()
}
