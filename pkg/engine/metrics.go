package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RestockItemQuantity tracks the current quantity of an item
	RestockItemQuantity = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "restock_item_quantity",
			Help: "Current quantity on hand for an item",
		},
		[]string{"item_id"},
	)

	// RestockDaysRemaining tracks the predicted days until an item runs out
	RestockDaysRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "restock_days_remaining",
			Help: "Predicted days until the item is depleted (999 when unknown)",
		},
		[]string{"item_id"},
	)

	// RestockForecastTotal counts forecasts by where their usage rate came from
	RestockForecastTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restock_forecast_total",
			Help: "Total number of forecasts computed",
		},
		[]string{"source"},
	)

	// RestockAlertTotal counts low-stock alert outcomes
	RestockAlertTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restock_alert_total",
			Help: "Total number of low-stock alerts by result",
		},
		[]string{"result"},
	)

	// RestockItems tracks how many items are in each stock state
	RestockItems = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "restock_items",
			Help: "Number of items per stock state",
		},
		[]string{"state"},
	)

	// RestockSnapshotTotal counts inventory snapshot attempts by result
	RestockSnapshotTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restock_snapshot_total",
			Help: "Total number of inventory snapshots by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(RestockItemQuantity)
	prometheus.MustRegister(RestockDaysRemaining)
	prometheus.MustRegister(RestockForecastTotal)
	prometheus.MustRegister(RestockAlertTotal)
	prometheus.MustRegister(RestockItems)
	prometheus.MustRegister(RestockSnapshotTotal)
}
