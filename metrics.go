// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blockdir

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters of one block directory session.
type Metrics struct {
	Cache struct {
		Hits   int64
		Misses int64
	}
	Lookup struct {
		// IndexScans counts backward index scans, both on cache misses and
		// while recovering the tail minipages of an insert session.
		IndexScans int64
		Found      int64
		NotFound   int64
		// Trimmed counts entries discarded because they describe data past
		// the segment's end of file.
		Trimmed int64
	}
	Entries struct {
		Inserted  int64
		Coalesced int64
	}
	Minipages struct {
		Inserted int64
		Updated  int64
		Deleted  int64
	}
}

// Add accumulates o into m.
func (m *Metrics) Add(o *Metrics) {
	m.Cache.Hits += o.Cache.Hits
	m.Cache.Misses += o.Cache.Misses
	m.Lookup.IndexScans += o.Lookup.IndexScans
	m.Lookup.Found += o.Lookup.Found
	m.Lookup.NotFound += o.Lookup.NotFound
	m.Lookup.Trimmed += o.Lookup.Trimmed
	m.Entries.Inserted += o.Entries.Inserted
	m.Entries.Coalesced += o.Entries.Coalesced
	m.Minipages.Inserted += o.Minipages.Inserted
	m.Minipages.Updated += o.Minipages.Updated
	m.Minipages.Deleted += o.Minipages.Deleted
}

// String implements fmt.Stringer.
func (m *Metrics) String() string {
	return redact.StringWithoutMarkers(m)
}

// SafeFormat implements redact.SafeFormatter.
func (m *Metrics) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("cache:     hits=%d misses=%d\n", m.Cache.Hits, m.Cache.Misses)
	w.Printf("lookup:    scans=%d found=%d not-found=%d trimmed=%d\n",
		m.Lookup.IndexScans, m.Lookup.Found, m.Lookup.NotFound, m.Lookup.Trimmed)
	w.Printf("entries:   inserted=%d coalesced=%d\n", m.Entries.Inserted, m.Entries.Coalesced)
	w.Printf("minipages: inserted=%d updated=%d deleted=%d\n",
		m.Minipages.Inserted, m.Minipages.Updated, m.Minipages.Deleted)
}

// PrometheusMetrics exports session counters as prometheus counters. Sessions
// configured with Options.Metrics fold their Metrics in when they end.
type PrometheusMetrics struct {
	cache     *prometheus.CounterVec
	lookups   *prometheus.CounterVec
	entries   *prometheus.CounterVec
	minipages *prometheus.CounterVec
}

// NewPrometheusMetrics creates the block directory counters and registers
// them with reg. Counters already registered by an earlier call are reused.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	p := &PrometheusMetrics{
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blockdir",
			Name:      "cache_lookups_total",
			Help:      "Minipage cache probes by result.",
		}, []string{"result"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blockdir",
			Name:      "lookups_total",
			Help:      "Directory lookups by outcome.",
		}, []string{"result"}),
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blockdir",
			Name:      "entries_total",
			Help:      "Directory entries by operation.",
		}, []string{"op"}),
		minipages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blockdir",
			Name:      "minipage_writes_total",
			Help:      "Catalog rows written by operation.",
		}, []string{"op"}),
	}
	for _, c := range []**prometheus.CounterVec{&p.cache, &p.lookups, &p.entries, &p.minipages} {
		if err := reg.Register(*c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return nil, err
			}
			existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				return nil, err
			}
			*c = existing
		}
	}
	return p, nil
}

func (p *PrometheusMetrics) add(m *Metrics) {
	p.cache.WithLabelValues("hit").Add(float64(m.Cache.Hits))
	p.cache.WithLabelValues("miss").Add(float64(m.Cache.Misses))
	p.lookups.WithLabelValues("index_scan").Add(float64(m.Lookup.IndexScans))
	p.lookups.WithLabelValues("found").Add(float64(m.Lookup.Found))
	p.lookups.WithLabelValues("not_found").Add(float64(m.Lookup.NotFound))
	p.entries.WithLabelValues("inserted").Add(float64(m.Entries.Inserted))
	p.entries.WithLabelValues("coalesced").Add(float64(m.Entries.Coalesced))
	p.entries.WithLabelValues("trimmed").Add(float64(m.Lookup.Trimmed))
	p.minipages.WithLabelValues("insert").Add(float64(m.Minipages.Inserted))
	p.minipages.WithLabelValues("update").Add(float64(m.Minipages.Updated))
	p.minipages.WithLabelValues("delete").Add(float64(m.Minipages.Deleted))
}
