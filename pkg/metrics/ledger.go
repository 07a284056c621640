package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vouchernet"

// LedgerMetrics tracks stock movement, sales and campaign activity.
type LedgerMetrics struct {
	sales              *prometheus.CounterVec
	unitsSold          *prometheus.CounterVec
	saleFailures       *prometheus.CounterVec
	stockAdded         *prometheus.CounterVec
	importRows         *prometheus.CounterVec
	couponsIssued      prometheus.Counter
	claims             *prometheus.CounterVec
	sideEffectFailures *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	m := &LedgerMetrics{
		sales: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "sales_recorded_total",
			Help:      "Committed sales by voucher type.",
		}, []string{"voucher_type"}),
		unitsSold: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "units_sold_total",
			Help:      "Voucher units deducted by committed sales.",
		}, []string{"voucher_type"}),
		saleFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "sale_failures_total",
			Help:      "Rejected or rolled back sales by error code.",
		}, []string{"code"}),
		stockAdded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "units_stocked_total",
			Help:      "Voucher units added to seller stock.",
		}, []string{"voucher_type"}),
		importRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "imports",
			Name:      "rows_total",
			Help:      "Bulk import rows by outcome.",
		}, []string{"outcome"}),
		couponsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loyalty",
			Name:      "coupons_issued_total",
			Help:      "Loyalty coupons granted on threshold crossings.",
		}),
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "campaigns",
			Name:      "claims_total",
			Help:      "Gift claim activity by outcome.",
		}, []string{"outcome"}),
		sideEffectFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "side_effect_failures_total",
			Help:      "Dropped post-commit notifications and audit entries.",
		}, []string{"kind"}),
	}
	reg.MustRegister(
		m.sales,
		m.unitsSold,
		m.saleFailures,
		m.stockAdded,
		m.importRows,
		m.couponsIssued,
		m.claims,
		m.sideEffectFailures,
	)
	return m
}

// ObserveSale counts one committed sale of qty units.
func (m *LedgerMetrics) ObserveSale(voucherType string, qty int) {
	if m == nil || m.sales == nil {
		return
	}
	label := normalizeLabel(voucherType)
	m.sales.WithLabelValues(label).Inc()
	m.unitsSold.WithLabelValues(label).Add(float64(qty))
}

// IncSaleFailure counts a sale that did not commit.
func (m *LedgerMetrics) IncSaleFailure(code string) {
	if m == nil || m.saleFailures == nil {
		return
	}
	m.saleFailures.WithLabelValues(normalizeLabel(code)).Inc()
}

// ObserveStockAdded counts units credited to a seller.
func (m *LedgerMetrics) ObserveStockAdded(voucherType string, qty int) {
	if m == nil || m.stockAdded == nil {
		return
	}
	m.stockAdded.WithLabelValues(normalizeLabel(voucherType)).Add(float64(qty))
}

// ObserveImport counts the outcome of one bulk import batch.
func (m *LedgerMetrics) ObserveImport(succeeded, failed int) {
	if m == nil || m.importRows == nil {
		return
	}
	m.importRows.WithLabelValues("success").Add(float64(succeeded))
	m.importRows.WithLabelValues("error").Add(float64(failed))
}

// IncCouponIssued counts one loyalty coupon grant.
func (m *LedgerMetrics) IncCouponIssued() {
	if m == nil || m.couponsIssued == nil {
		return
	}
	m.couponsIssued.Inc()
}

// IncClaim counts gift claim activity (submitted, refused, approved, rejected).
func (m *LedgerMetrics) IncClaim(outcome string) {
	if m == nil || m.claims == nil {
		return
	}
	m.claims.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncSideEffectFailure counts a dropped notification or audit write.
func (m *LedgerMetrics) IncSideEffectFailure(kind string) {
	if m == nil || m.sideEffectFailures == nil {
		return
	}
	m.sideEffectFailures.WithLabelValues(normalizeLabel(kind)).Inc()
}
