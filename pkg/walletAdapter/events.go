package walletAdapter

import (
	"sync"

	"github.com/dandelion-network/taskctl/pkg/types"
)

// EventHub fans wallet notifications out to subscribers. Handlers run
// synchronously on the emitting goroutine, in registration order.
type EventHub struct {
	mu      sync.RWMutex
	nextId  int
	account map[int]func(types.Account)
	network map[int]func(types.Network)
	discon  map[int]func()
	order   []int
}

func NewEventHub() *EventHub {
	return &EventHub{
		account: map[int]func(types.Account){},
		network: map[int]func(types.Network){},
		discon:  map[int]func(){},
	}
}

// OnAccountChanged registers fn and returns a function that unregisters it.
func (h *EventHub) OnAccountChanged(fn func(types.Account)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.register()
	h.account[id] = fn
	return h.unsubscribe(id)
}

func (h *EventHub) OnNetworkChanged(fn func(types.Network)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.register()
	h.network[id] = fn
	return h.unsubscribe(id)
}

func (h *EventHub) OnDisconnected(fn func()) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.register()
	h.discon[id] = fn
	return h.unsubscribe(id)
}

func (h *EventHub) EmitAccountChanged(a types.Account) {
	for _, id := range h.snapshot() {
		h.mu.RLock()
		fn, ok := h.account[id]
		h.mu.RUnlock()
		if ok {
			fn(a)
		}
	}
}

func (h *EventHub) EmitNetworkChanged(n types.Network) {
	for _, id := range h.snapshot() {
		h.mu.RLock()
		fn, ok := h.network[id]
		h.mu.RUnlock()
		if ok {
			fn(n)
		}
	}
}

func (h *EventHub) EmitDisconnected() {
	for _, id := range h.snapshot() {
		h.mu.RLock()
		fn, ok := h.discon[id]
		h.mu.RUnlock()
		if ok {
			fn()
		}
	}
}

func (h *EventHub) register() int {
	h.nextId++
	h.order = append(h.order, h.nextId)
	return h.nextId
}

func (h *EventHub) unsubscribe(id int) func() {
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.account, id)
		delete(h.network, id)
		delete(h.discon, id)
		for i, o := range h.order {
			if o == id {
				h.order = append(h.order[:i], h.order[i+1:]...)
				break
			}
		}
	}
}

func (h *EventHub) snapshot() []int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]int(nil), h.order...)
}
