package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Order metrics
	ordersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_orders_total",
			Help: "Total number of order submissions by outcome",
		},
		[]string{"symbol", "side", "outcome"},
	)

	rejectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_rejects_total",
			Help: "Total number of broker rejections by reason",
		},
		[]string{"symbol", "reason"},
	)

	positionSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trader_position_size",
			Help:    "Distribution of sized positions",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"symbol"},
	)

	// Capital metrics
	availableCapital = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trader_available_capital",
			Help: "Capital currently available for allocation",
		},
	)

	// Market data metrics
	currentPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trader_current_price",
			Help: "Current price of trading symbol",
		},
		[]string{"symbol"},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)
)

func init() {
	// Register metrics
	prometheus.MustRegister(ordersTotal)
	prometheus.MustRegister(rejectsTotal)
	prometheus.MustRegister(positionSize)
	prometheus.MustRegister(availableCapital)
	prometheus.MustRegister(currentPrice)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler handles Prometheus metrics endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordOrder records an order submission outcome
func RecordOrder(symbol, side, outcome string) {
	ordersTotal.WithLabelValues(symbol, side, outcome).Inc()
}

// RecordReject records a broker rejection by reason
func RecordReject(symbol, reason string) {
	rejectsTotal.WithLabelValues(symbol, reason).Inc()
}

// ObservePositionSize records a sized position
func ObservePositionSize(symbol string, size float64) {
	positionSize.WithLabelValues(symbol).Observe(size)
}

// UpdateAvailableCapital updates the available capital gauge
func UpdateAvailableCapital(amount float64) {
	availableCapital.Set(amount)
}

// UpdatePrice updates the current price metric
func UpdatePrice(symbol string, price float64) {
	currentPrice.WithLabelValues(symbol).Set(price)
}

// RecordError records an error metric
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}
