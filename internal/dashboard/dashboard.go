// Package dashboard keeps aggregate counts current from bus events so views
// do not poll the collaborator.
package dashboard

import (
	"maps"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hongminglow/pawmart/internal/bus"
	"github.com/hongminglow/pawmart/internal/models"
)

type Subscriber interface {
	Subscribe(t bus.EventType, h bus.Handler) func()
}

// Counts is a point-in-time copy of the dashboard.
type Counts struct {
	PendingVendors  int
	PendingProducts int
	Orders          map[string]int
}

type Dashboard struct {
	mu              sync.RWMutex
	pendingVendors  int
	pendingProducts int
	orders          map[string]int

	pendingGauge *prometheus.GaugeVec
	ordersGauge  *prometheus.GaugeVec
	unsubscribe  []func()
}

// New subscribes to vendor, product and order events. Gauges are registered
// with reg; a nil reg keeps them unregistered.
func New(events Subscriber, reg prometheus.Registerer) *Dashboard {
	factory := promauto.With(reg)
	d := &Dashboard{
		orders: map[string]int{},
		pendingGauge: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pawmart_dashboard_pending",
			Help: "Items awaiting moderation",
		}, []string{"entity"}),
		ordersGauge: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pawmart_dashboard_orders",
			Help: "Orders by fulfillment status",
		}, []string{"status"}),
	}
	d.unsubscribe = []func(){
		events.Subscribe(bus.EventVendor, d.onVendor),
		events.Subscribe(bus.EventProduct, d.onProduct),
		events.Subscribe(bus.EventOrder, d.onOrder),
	}
	return d
}

// Seed replaces the counts with freshly listed state.
func (d *Dashboard) Seed(pendingVendors []models.VendorProfile, pendingProducts []models.Product, orders []models.Order) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pendingVendors = 0
	for _, v := range pendingVendors {
		if v.Status == models.VendorPending {
			d.pendingVendors++
		}
	}
	d.pendingProducts = 0
	for _, p := range pendingProducts {
		if p.Status == models.ProductPending {
			d.pendingProducts++
		}
	}
	if orders != nil {
		d.orders = map[string]int{}
		for _, o := range orders {
			d.orders[o.Status]++
		}
	}
	d.exportLocked()
}

func (d *Dashboard) Counts() Counts {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Counts{
		PendingVendors:  d.pendingVendors,
		PendingProducts: d.pendingProducts,
		Orders:          maps.Clone(d.orders),
	}
}

// Close stops listening to the bus.
func (d *Dashboard) Close() {
	for _, unsubscribe := range d.unsubscribe {
		unsubscribe()
	}
}

func (d *Dashboard) onVendor(ev bus.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pendingVendors = shift(d.pendingVendors, ev, models.VendorPending)
	d.exportLocked()
}

func (d *Dashboard) onProduct(ev bus.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pendingProducts = shift(d.pendingProducts, ev, models.ProductPending)
	d.exportLocked()
}

func (d *Dashboard) onOrder(ev bus.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ev.From != "" && d.orders[ev.From] > 0 {
		d.orders[ev.From]--
	}
	if ev.To != "" {
		d.orders[ev.To]++
	}
	d.exportLocked()
}

// shift adjusts a count of items in status for one move.
func shift(n int, ev bus.Event, status string) int {
	if ev.From == status && n > 0 {
		n--
	}
	if ev.To == status {
		n++
	}
	return n
}

func (d *Dashboard) exportLocked() {
	d.pendingGauge.WithLabelValues("vendor").Set(float64(d.pendingVendors))
	d.pendingGauge.WithLabelValues("product").Set(float64(d.pendingProducts))
	for _, status := range models.OrderStatuses {
		d.ordersGauge.WithLabelValues(status).Set(float64(d.orders[status]))
	}
}
