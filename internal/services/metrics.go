package services

import "github.com/prometheus/client_golang/prometheus"

var (
	timeEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clio_time_entries_total",
			Help: "Time entries submitted to Clio by result.",
		},
		[]string{"result"}, // accepted|rejected
	)
	syncRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clio_sync_runs_total",
			Help: "Push passes by outcome.",
		},
		[]string{"outcome"}, // not_connected|empty|completed|replayed|failed
	)
	emailsImportedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "emails_imported_total",
			Help: "Emails stored for the first time.",
		},
	)
	summariesGeneratedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "summaries_generated_total",
			Help: "Summary generation attempts by result.",
		},
		[]string{"result"}, // stored|failed
	)
)

func init() {
	prometheus.MustRegister(timeEntriesTotal, syncRunsTotal, emailsImportedTotal, summariesGeneratedTotal)
}
