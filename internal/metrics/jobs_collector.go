package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// JobCounter reports how many extraction jobs are in each status.
type JobCounter interface {
	CountByStatus() map[string]int
}

// JobsCollector reads job counts at scrape time.
type JobsCollector struct {
	jobs    JobCounter
	byState *prometheus.Desc
}

// NewJobsCollector creates a collector over jobs.
func NewJobsCollector(jobs JobCounter) *JobsCollector {
	return &JobsCollector{
		jobs: jobs,
		byState: prometheus.NewDesc(
			prometheus.BuildFQName(
				Namespace,
				"jobs",
				"current",
			),
			"Count of extraction jobs by status",
			[]string{"status"},
			nil,
		),
	}
}

func (c *JobsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.byState
}

func (c *JobsCollector) Collect(ch chan<- prometheus.Metric) {
	for status, n := range c.jobs.CountByStatus() {
		ch <- prometheus.MustNewConstMetric(
			c.byState,
			prometheus.GaugeValue,
			float64(n),
			status,
		)
	}
}
