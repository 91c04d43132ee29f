package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the bookkeeper.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	operationDuration *prometheus.HistogramVec
	recordWrites      *prometheus.CounterVec
	csvImportRows     *prometheus.CounterVec
	csvExports        *prometheus.CounterVec
	balanceComputes   prometheus.Counter
	authFailures      *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bookkeeper_operation_duration_seconds",
				Help:    "Duration of service operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		recordWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookkeeper_record_writes_total",
				Help: "Total record writes per collection.",
			},
			[]string{"collection"},
		),
		csvImportRows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookkeeper_csv_import_rows_total",
				Help: "CSV import rows by outcome.",
			},
			[]string{"status"},
		),
		csvExports: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookkeeper_csv_exports_total",
				Help: "CSV exports served, by record kind.",
			},
			[]string{"kind"},
		),
		balanceComputes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bookkeeper_balance_computes_total",
				Help: "Balance reconciliation runs.",
			},
		),
		authFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookkeeper_auth_failures_total",
				Help: "Authentication and authorization failures.",
			},
			[]string{"reason"},
		),
	}
}

// RecordOperationDuration records the duration of a service operation.
func (m *Metrics) RecordOperationDuration(operation string, d time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrRecordWrite increments the write counter for a collection.
func (m *Metrics) IncrRecordWrite(collection string) {
	m.recordWrites.WithLabelValues(collection).Inc()
}

// IncrImportRow counts one CSV import row outcome ("ok" or "error").
func (m *Metrics) IncrImportRow(status string) {
	m.csvImportRows.WithLabelValues(status).Inc()
}

// IncrCSVExport counts one served CSV export ("expenses" or "income").
func (m *Metrics) IncrCSVExport(kind string) {
	m.csvExports.WithLabelValues(kind).Inc()
}

// IncrBalanceCompute counts one reconciliation run.
func (m *Metrics) IncrBalanceCompute() {
	m.balanceComputes.Inc()
}

// IncrAuthFailure counts one auth failure ("unauthorized" or "forbidden").
func (m *Metrics) IncrAuthFailure(reason string) {
	m.authFailures.WithLabelValues(reason).Inc()
}

// Snapshot is a JSON-friendly view of the cumulative counters, served on
// GET /v1/metrics/summary for the admin dashboard.
type Snapshot struct {
	ExpenseWrites   int64 `json:"expenseWrites"`
	IncomeWrites    int64 `json:"incomeWrites"`
	ImportRowsOK    int64 `json:"importRowsOk"`
	ImportRowsError int64 `json:"importRowsError"`
	CSVExports      int64 `json:"csvExports"`
	BalanceComputes int64 `json:"balanceComputes"`
	AuthFailures    int64 `json:"authFailures"`
}

// GetSnapshot reads the current counter values back out of Prometheus.
func (m *Metrics) GetSnapshot() *Snapshot {
	return &Snapshot{
		ExpenseWrites:   int64(getCounterValue(m.recordWrites, "expenses")),
		IncomeWrites:    int64(getCounterValue(m.recordWrites, "income")),
		ImportRowsOK:    int64(getCounterValue(m.csvImportRows, "ok")),
		ImportRowsError: int64(getCounterValue(m.csvImportRows, "error")),
		CSVExports: int64(getCounterValue(m.csvExports, "expenses") +
			getCounterValue(m.csvExports, "income")),
		BalanceComputes: int64(getSingleCounterValue(m.balanceComputes)),
		AuthFailures: int64(getCounterValue(m.authFailures, "unauthorized") +
			getCounterValue(m.authFailures, "forbidden")),
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func getSingleCounterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
