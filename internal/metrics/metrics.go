/*
 * Metrics - OpenMetrics implementation.
 *
 * Copyright 2024 Marco Confalonieri.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *   http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics instance
var metrics *OpenMetrics

// OpenMetrics collects counters for the registrar API traffic of one run.
type OpenMetrics struct {
	registry *prometheus.Registry

	successfulApiCallsTotal *prometheus.CounterVec
	failedApiCallsTotal     *prometheus.CounterVec
	conflictRetriesTotal    *prometheus.CounterVec

	rateLimitRemaining prometheus.Gauge
}

// GetOpenMetricsInstance returns the current OpenMetrics instance or creates
// a new one if required.
func GetOpenMetricsInstance() *OpenMetrics {
	if metrics == nil {
		reg := prometheus.NewRegistry()
		metrics = &OpenMetrics{
			registry: reg,
			successfulApiCallsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "successful_api_calls_total",
					Help: "The number of successful TransIP API calls",
				},
				[]string{"action"},
			),
			failedApiCallsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "failed_api_calls_total",
					Help: "The number of TransIP API calls that returned an error",
				},
				[]string{"action"},
			),
			conflictRetriesTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "conflict_retries_total",
					Help: "The number of API calls retried after a 409 response",
				},
				[]string{"action"},
			),
			rateLimitRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "rate_limit_remaining",
				Help: "The number of API calls remaining in the current rate-limit window",
			}),
		}
		reg.MustRegister(metrics.successfulApiCallsTotal)
		reg.MustRegister(metrics.failedApiCallsTotal)
		reg.MustRegister(metrics.conflictRetriesTotal)
		reg.MustRegister(metrics.rateLimitRemaining)
	}
	return metrics
}

// getLabels builds the label map.
func getLabels(action string) prometheus.Labels {
	return prometheus.Labels{"action": action}
}

func (m OpenMetrics) GetRegistry() *prometheus.Registry {
	return m.registry
}

// IncSuccessfulApiCallsTotal increments the successful_api_calls_total counter.
func (m *OpenMetrics) IncSuccessfulApiCallsTotal(action string) {
	m.successfulApiCallsTotal.With(getLabels(action)).Inc()
}

// IncFailedApiCallsTotal increments the failed_api_calls_total counter.
func (m *OpenMetrics) IncFailedApiCallsTotal(action string) {
	m.failedApiCallsTotal.With(getLabels(action)).Inc()
}

// IncConflictRetriesTotal increments the conflict_retries_total counter.
func (m *OpenMetrics) IncConflictRetriesTotal(action string) {
	m.conflictRetriesTotal.With(getLabels(action)).Inc()
}

// SetRateLimitRemaining sets the value for the rate_limit_remaining gauge.
func (m *OpenMetrics) SetRateLimitRemaining(num int) {
	m.rateLimitRemaining.Set(float64(num))
}
