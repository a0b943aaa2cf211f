package transport

import (
	"encoding/json"
	"sync"
)

type outcome struct {
	result json.RawMessage
	err    error
}

// pendingTable maps outbound request ids to single-use result slots
type pendingTable struct {
	mu     sync.Mutex
	slots  map[int64]chan outcome
	closed error
}

func newPendingTable() *pendingTable {
	return &pendingTable{slots: make(map[int64]chan outcome)}
}

// register reserves a slot for id. It fails once the table is closed.
func (p *pendingTable) register(id int64) (<-chan outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed != nil {
		return nil, p.closed
	}
	slot := make(chan outcome, 1)
	p.slots[id] = slot
	return slot, nil
}

// resolve delivers the outcome for id and removes the slot. It reports
// false when no request with that id is waiting.
func (p *pendingTable) resolve(id int64, out outcome) bool {
	p.mu.Lock()
	slot, ok := p.slots[id]
	delete(p.slots, id)
	p.mu.Unlock()

	if !ok {
		return false
	}
	slot <- out
	return true
}

// forget removes a slot whose caller stopped waiting
func (p *pendingTable) forget(id int64) {
	p.mu.Lock()
	delete(p.slots, id)
	p.mu.Unlock()
}

// closeAll fails every waiting request with err and rejects new ones
func (p *pendingTable) closeAll(err error) {
	p.mu.Lock()
	slots := p.slots
	p.slots = make(map[int64]chan outcome)
	if p.closed == nil {
		p.closed = err
	}
	p.mu.Unlock()

	for _, slot := range slots {
		slot <- outcome{err: err}
	}
}

func (p *pendingTable) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}
