package hal

import "sync"

// SimPin is an in-memory InputPin driven by tests or the host simulator.
// The zero value is an inactive pin; use NewSimPin for clarity.
type SimPin struct {
	mu      sync.Mutex
	active  bool
	changed chan struct{}
	readErr error
}

// NewSimPin creates an inactive simulated input pin.
func NewSimPin() *SimPin {
	return &SimPin{changed: make(chan struct{})}
}

// Set drives the simulated level. A level change wakes all current waiters.
func (p *SimPin) Set(active bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active == active {
		return
	}
	p.active = active
	close(p.waitCh())
	p.changed = make(chan struct{})
}

// FailNextRead makes the next Active call return err, simulating a transient
// hardware read failure.
func (p *SimPin) FailNextRead(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readErr = err
}

func (p *SimPin) Active() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.readErr != nil {
		err := p.readErr
		p.readErr = nil
		return false, err
	}
	return p.active, nil
}

func (p *SimPin) Changed() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitCh()
}

func (p *SimPin) waitCh() chan struct{} {
	if p.changed == nil {
		p.changed = make(chan struct{})
	}
	return p.changed
}

// SimOutputPin records the last driven level, for matrix strobe tests.
type SimOutputPin struct {
	mu     sync.Mutex
	active bool
}

// NewSimOutputPin creates an inactive simulated output pin.
func NewSimOutputPin() *SimOutputPin {
	return &SimOutputPin{}
}

func (p *SimOutputPin) SetActive() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = true
	return nil
}

func (p *SimOutputPin) SetInactive() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = false
	return nil
}

// IsActive reports the last driven level.
func (p *SimOutputPin) IsActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}
