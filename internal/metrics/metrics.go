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

// Package metrics counts build and clean pass outcomes for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bennypowers.dev/kiln/job"
)

// Recorder owns its own registry so several recorders can coexist in one
// process.
type Recorder struct {
	prometheus.Registry
	files    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New creates a Recorder with its collectors registered.
func New() *Recorder {
	r := &Recorder{Registry: *prometheus.NewRegistry()}

	r.files = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kiln_files_total",
		Help: "Files processed, by pass and outcome status.",
	}, []string{"pass", "status"})
	r.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kiln_pass_duration_seconds",
		Help:    "Wall time of clean and build passes.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
	}, []string{"pass"})

	r.MustRegister(r.files)
	r.MustRegister(r.duration)
	return r
}

// Observe records the outcomes and duration of one pass. A nil Recorder is
// a no-op.
func (r *Recorder) Observe(pass string, outcomes []job.Outcome, d time.Duration) {
	if r == nil {
		return
	}
	for _, o := range outcomes {
		r.files.WithLabelValues(pass, o.Status.String()).Inc()
	}
	r.duration.WithLabelValues(pass).Observe(d.Seconds())
}

// Files returns the counter for one pass and status.
func (r *Recorder) Files(pass string, status job.Status) prometheus.Counter {
	return r.files.WithLabelValues(pass, status.String())
}

// Handler serves the recorder's metrics in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r, promhttp.HandlerOpts{})
}
