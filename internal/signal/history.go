package signal

// PriceHistory is a bounded FIFO of composite prices, oldest first.
type PriceHistory struct {
	prices   []float64
	capacity int
}

// NewPriceHistory creates an empty history holding at most capacity prices.
func NewPriceHistory(capacity int) *PriceHistory {
	return &PriceHistory{
		prices:   make([]float64, 0, capacity),
		capacity: capacity,
	}
}

// Push appends a price, evicting the oldest one when full.
func (h *PriceHistory) Push(price float64) {
	if len(h.prices) == h.capacity {
		copy(h.prices, h.prices[1:])
		h.prices = h.prices[:len(h.prices)-1]
	}
	h.prices = append(h.prices, price)
}

// Seed fills an empty history. A non-empty history is left untouched.
func (h *PriceHistory) Seed(prices []float64) {
	if len(h.prices) > 0 {
		return
	}
	for _, p := range prices {
		h.Push(p)
	}
}

func (h *PriceHistory) Len() int      { return len(h.prices) }
func (h *PriceHistory) Capacity() int { return h.capacity }

// Values returns a copy of the window, oldest first.
func (h *PriceHistory) Values() []float64 {
	out := make([]float64, len(h.prices))
	copy(out, h.prices)
	return out
}

// VolumeEstimate is an exponentially smoothed trade volume. It never goes
// negative and is only reset by constructing a new one.
type VolumeEstimate struct {
	value float64
	decay float64
}

// NewVolumeEstimate returns an estimate where decay weights the previous value.
func NewVolumeEstimate(decay float64) *VolumeEstimate {
	return &VolumeEstimate{decay: decay}
}

// Update folds a window volume sum into the estimate and returns the new value.
func (v *VolumeEstimate) Update(windowSum float64) float64 {
	if windowSum < 0 {
		windowSum = 0
	}
	v.value = v.decay*v.value + (1-v.decay)*windowSum
	return v.value
}

func (v *VolumeEstimate) Value() float64 { return v.value }
