package health

import (
	"log"
	"sync"
	"time"
)

// Event is one raised fault: a Code reference, message, and raise time. The
// reporter's active set holds at most one Event per mnemonic.
type Event struct {
	Code      Code
	Message   string
	RaisedAt  time.Time
	Resolved  bool
}

// Callback is invoked on every raise (not on refresh-only re-raises), with
// callback failures logged and suppressed rather than propagated.
type Callback func(Event)

// Reporter maintains the deduplicated active-fault set keyed by mnemonic.
type Reporter struct {
	mu        sync.Mutex
	active    map[string]*Event
	history   []Event
	callbacks []Callback
}

// NewReporter builds an empty fault reporter.
func NewReporter() *Reporter {
	return &Reporter{active: make(map[string]*Event)}
}

// RegisterCallback adds a callback invoked on every new raise.
func (r *Reporter) RegisterCallback(cb Callback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, cb)
}

// RaiseFault creates a FaultEvent and notifies callbacks if mnemonic is not
// already active; otherwise it refreshes the timestamp without
// re-notifying.
func (r *Reporter) RaiseFault(mnemonic, message string) {
	code, ok := Lookup(mnemonic)
	if !ok {
		log.Printf("health: raise_fault called with unknown mnemonic %s", mnemonic)
		return
	}

	r.mu.Lock()
	existing, active := r.active[mnemonic]
	if active {
		existing.RaisedAt = time.Now()
		r.mu.Unlock()
		return
	}

	event := &Event{Code: code, Message: message, RaisedAt: time.Now()}
	r.active[mnemonic] = event
	r.history = append(r.history, *event)
	callbacks := append([]Callback(nil), r.callbacks...)
	r.mu.Unlock()

	log.Printf("[%s] %s: %s", code.Severity, mnemonic, message)

	for _, cb := range callbacks {
		r.invokeCallback(cb, *event)
	}
}

func (r *Reporter) invokeCallback(cb Callback, event Event) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("health: fault callback panicked: %v", rec)
		}
	}()
	cb(event)
}

// ResolveFault removes mnemonic from the active set and logs at INFO.
func (r *Reporter) ResolveFault(mnemonic string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, active := r.active[mnemonic]; !active {
		return
	}
	delete(r.active, mnemonic)
	log.Printf("[INFO] %s resolved", mnemonic)
}

// HasCritical is true iff any active code has CRITICAL severity.
func (r *Reporter) HasCritical() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.active {
		if e.Code.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// GetHighestPLCValue returns the PLC numeric value of the highest-severity
// active code, ties broken by Registry registration order; 0 if none.
func (r *Reporter) GetHighestPLCValue() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var best *Code
	for i := range Registry {
		code := Registry[i]
		if _, active := r.active[code.Mnemonic]; !active {
			continue
		}
		if best == nil || code.Severity > best.Severity {
			best = &code
		}
	}
	if best == nil {
		return 0
	}
	return best.PLCValue
}

// Snapshot is the structured result of Summary().
type Snapshot struct {
	ActiveFaults []Event
	HasCritical  bool
}

// Summary returns a structured snapshot of the active-fault set.
func (r *Reporter) Summary() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	active := make([]Event, 0, len(r.active))
	critical := false
	for _, e := range r.active {
		active = append(active, *e)
		if e.Code.Severity == SeverityCritical {
			critical = true
		}
	}
	return Snapshot{ActiveFaults: active, HasCritical: critical}
}
