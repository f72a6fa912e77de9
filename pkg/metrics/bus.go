package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	RelayOutbound = "outbound"
	RelayInbound  = "inbound"
)

// BusMetrics tracks the notification hub.
type BusMetrics struct {
	subscribers prometheus.Gauge
	published   prometheus.Counter
	coalesced   prometheus.Counter
	relayed     *prometheus.CounterVec
}

func NewBusMetrics(reg prometheus.Registerer) *BusMetrics {
	if reg == nil {
		return &BusMetrics{}
	}
	subscribers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "licensedesk_bus_subscribers",
		Help: "Currently connected viewer subscriptions.",
	})
	published := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "licensedesk_bus_published_total",
		Help: "Change signals published to the hub.",
	})
	coalesced := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "licensedesk_bus_coalesced_total",
		Help: "Signals folded into an already pending delivery.",
	})
	relayed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "licensedesk_bus_relayed_total",
		Help: "Signals exchanged with other instances.",
	}, []string{"direction"})
	reg.MustRegister(subscribers, published, coalesced, relayed)
	return &BusMetrics{
		subscribers: subscribers,
		published:   published,
		coalesced:   coalesced,
		relayed:     relayed,
	}
}

func (b *BusMetrics) SetSubscribers(n int) {
	if b == nil || b.subscribers == nil {
		return
	}
	b.subscribers.Set(float64(n))
}

func (b *BusMetrics) IncPublished() {
	if b == nil || b.published == nil {
		return
	}
	b.published.Inc()
}

func (b *BusMetrics) AddCoalesced(n int) {
	if b == nil || b.coalesced == nil || n <= 0 {
		return
	}
	b.coalesced.Add(float64(n))
}

func (b *BusMetrics) IncRelayed(direction string) {
	if b == nil || b.relayed == nil {
		return
	}
	b.relayed.WithLabelValues(normalizeLabel(direction)).Inc()
}
