package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TableTransfers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tableorder",
		Name:      "table_transfers_total",
		Help:      "Table transfer attempts by outcome.",
	}, []string{"outcome"})

	CartOrdersDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tableorder",
		Name:      "cart_orders_deleted_total",
		Help:      "Stale cart orders removed by cleanup.",
	})

	SideEffectFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tableorder",
		Name:      "side_effect_failures_total",
		Help:      "Audit, notification and event writes that failed after a commit.",
	}, []string{"kind"})

	OrdersPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tableorder",
		Name:      "orders_placed_total",
		Help:      "Cart lines promoted to placed orders.",
	})
)
