// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package resolver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Query metrics
	queriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eksnv_resolver_queries_total",
			Help: "Total number of resolver queries by query type",
		},
		[]string{"query"},
	)

	queryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eksnv_resolver_query_duration_seconds",
			Help:    "Resolver query latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	// Parse metrics
	parseFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eksnv_resolver_parse_failures_total",
			Help: "Total number of release bodies skipped due to parse failures",
		},
	)

	parseDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eksnv_resolver_parse_duration_seconds",
			Help:    "Release body parse latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// queryTimer counts a query and returns a timer for its duration histogram.
func queryTimer(query string) *prometheus.Timer {
	queriesTotal.WithLabelValues(query).Inc()
	return prometheus.NewTimer(queryDuration.WithLabelValues(query))
}
