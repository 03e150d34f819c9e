// Package metrics exposes Prometheus metrics for the decision loop:
//
//	bot_ticks_total{strategy,result}           ticks by result (decided|skipped|failed)
//	bot_intents_total{strategy,purpose,side}   order intents emitted
//	bot_orders_total{mode,side}                orders routed (mode: live|dry_run)
//	bot_order_failures_total{side}             orders rejected by the exchange
//	bot_burst_signals_total{signal}            burst readings (BULL|BEAR|NONE)
//	bot_volume_estimate{pair}                  smoothed trade volume
//	bot_dampening_multiplier{pair}             last burst dampening multiplier
//	bot_martingale_round{pair}                 add-on rounds on the open position
//	bot_asset_weight{asset}                    current portfolio weight
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ticks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_ticks_total",
			Help: "Decision ticks by result",
		},
		[]string{"strategy", "result"},
	)

	intents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_intents_total",
			Help: "Order intents emitted",
		},
		[]string{"strategy", "purpose", "side"},
	)

	orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_orders_total",
			Help: "Orders routed to the exchange",
		},
		[]string{"mode", "side"},
	)

	orderFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_order_failures_total",
			Help: "Orders the exchange rejected or that failed in transit",
		},
		[]string{"side"},
	)

	burstSignals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_burst_signals_total",
			Help: "Burst detector readings",
		},
		[]string{"signal"},
	)

	volumeEstimate = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bot_volume_estimate",
			Help: "Exponentially smoothed trade volume.",
		},
		[]string{"pair"},
	)

	dampening = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bot_dampening_multiplier",
			Help: "Product of the dampeners applied to the last burst order.",
		},
		[]string{"pair"},
	)

	martingaleRound = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bot_martingale_round",
			Help: "Filled add-on rounds on the current position.",
		},
		[]string{"pair"},
	)

	positionValue = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bot_position_value",
			Help: "Signed quote value of the futures position held at a fixed notional.",
		},
		[]string{"pair"},
	)

	assetWeight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bot_asset_weight",
			Help: "Current portfolio weight per tracked asset.",
		},
		[]string{"asset"},
	)
)

func init() {
	prometheus.MustRegister(ticks, intents, orders, orderFailures)
	prometheus.MustRegister(burstSignals, volumeEstimate, dampening)
	prometheus.MustRegister(martingaleRound, positionValue, assetWeight)
}

func IncTick(strategy, result string) { ticks.WithLabelValues(strategy, result).Inc() }
func IncIntent(strategy, purpose, side string) { intents.WithLabelValues(strategy, purpose, side).Inc() }
func IncOrder(mode, side string) { orders.WithLabelValues(mode, side).Inc() }
func IncOrderFailure(side string) { orderFailures.WithLabelValues(side).Inc() }
func IncBurstSignal(signal string) { burstSignals.WithLabelValues(signal).Inc() }
func SetVolumeEstimate(pair string, v float64) { volumeEstimate.WithLabelValues(pair).Set(v) }
func SetDampeningMultiplier(pair string, v float64) { dampening.WithLabelValues(pair).Set(v) }
func SetMartingaleRound(pair string, round int) { martingaleRound.WithLabelValues(pair).Set(float64(round)) }
func SetPositionValue(pair string, v float64) { positionValue.WithLabelValues(pair).Set(v) }
func SetAssetWeight(asset string, weight float64) { assetWeight.WithLabelValues(asset).Set(weight) }
