/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package scheduler runs a per-file pipeline over a list of files with a
// bounded number of pipelines in flight.
//
// A single coordinator goroutine owns the queue and the in-flight counter.
// Every file is attempted even after failures; the run as a whole fails once
// any file failed. Skipped outcomes are never failures.
package scheduler

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/panics"

	"bennypowers.dev/kiln/job"
)

// PerFile is the pipeline run for one file.
type PerFile func(ctx context.Context, path string) job.Outcome

// RunError is returned when at least one file failed. Errs holds one error
// per distinct failure message, in the order they were first seen.
type RunError struct {
	Failed int
	Errs   []error
}

func (e *RunError) Error() string {
	if e == nil {
		return ""
	}
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d file(s) failed: %s", e.Failed, strings.Join(msgs, "; "))
}

func (e *RunError) Unwrap() []error { return e.Errs }

// Run executes perFile for every path in files with at most n pipelines in
// flight (n <= 0 is treated as 1). It returns once the queue is empty and
// nothing is in flight. Outcomes are returned in completion order.
//
// Cancelling ctx stops new launches; pipelines already running are left to
// finish, and the returned error wraps ctx.Err().
func Run(ctx context.Context, files []string, n int, perFile PerFile, log logrus.FieldLogger) ([]job.Outcome, error) {
	if n <= 0 {
		n = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	queue := files
	outcomes := make([]job.Outcome, 0, len(files))
	completionCh := make(chan job.Outcome, n)
	inflight := 0

	var (
		errs   []error
		seen   = make(map[string]struct{})
		failed int
	)

	tryLaunch := func() {
		for inflight < n && len(queue) > 0 && ctx.Err() == nil {
			path := queue[0]
			queue = queue[1:]
			inflight++
			go func() {
				completionCh <- runOne(ctx, path, perFile, log)
			}()
		}
	}

	tryLaunch()
	for inflight > 0 {
		o := <-completionCh
		inflight--
		if o.Status == job.Failed && o.Err == nil {
			o.Err = fmt.Errorf("%s: failed", o.Path)
		}
		outcomes = append(outcomes, o)

		if o.Status == job.Failed {
			failed++
			msg := o.Err.Error()
			if _, dup := seen[msg]; !dup {
				seen[msg] = struct{}{}
				errs = append(errs, o.Err)
				log.WithField("file", o.Path).WithError(o.Err).Error("build step failed")
			}
		}
		tryLaunch()
	}

	if err := ctx.Err(); err != nil && len(queue) > 0 {
		errs = append(errs, fmt.Errorf("%d file(s) not started: %w", len(queue), err))
		return outcomes, &RunError{Failed: failed, Errs: errs}
	}
	if failed > 0 {
		return outcomes, &RunError{Failed: failed, Errs: errs}
	}
	return outcomes, nil
}

// runOne runs perFile, turning a panic into a Failed outcome.
func runOne(ctx context.Context, path string, perFile PerFile, log logrus.FieldLogger) job.Outcome {
	var (
		pc      panics.Catcher
		outcome job.Outcome
	)
	pc.Try(func() {
		outcome = perFile(ctx, path)
	})
	if r := pc.Recovered(); r != nil {
		log.WithField("file", path).WithField("stack", string(r.Stack)).Error("unexpected internal error")
		return job.FailedWith(path, fmt.Errorf("%s: internal error: %w", path, r.AsError()))
	}
	if outcome.Path == "" {
		outcome.Path = path
	}
	return outcome
}

// Count tallies outcomes by status.
func Count(outcomes []job.Outcome) (done, skipped, failed int) {
	for _, o := range outcomes {
		switch o.Status {
		case job.Done:
			done++
		case job.Skipped:
			skipped++
		case job.Failed:
			failed++
		}
	}
	return done, skipped, failed
}
