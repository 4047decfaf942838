package hal

import "sync"

// SimMatrix models the electrical crosspoints of a switch matrix for tests
// and the host simulator: a column reads active when any closed switch in
// that column sits on a driven row.
type SimMatrix struct {
	mu      sync.Mutex
	rows    []*SimOutputPin
	sw      [][]bool
	changed chan struct{}
}

// NewSimMatrix creates a grid with all switches open.
func NewSimMatrix(rows, cols int) *SimMatrix {
	m := &SimMatrix{
		rows:    make([]*SimOutputPin, rows),
		sw:      make([][]bool, rows),
		changed: make(chan struct{}),
	}
	for r := range m.rows {
		m.rows[r] = NewSimOutputPin()
		m.sw[r] = make([]bool, cols)
	}
	return m
}

// SetSwitch opens or closes one crosspoint. A change wakes all current
// column waiters.
func (m *SimMatrix) SetSwitch(row, col int, closed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sw[row][col] == closed {
		return
	}
	m.sw[row][col] = closed
	close(m.changed)
	m.changed = make(chan struct{})
}

// Switch reports one crosspoint's state.
func (m *SimMatrix) Switch(row, col int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sw[row][col]
}

// RowPins returns the strobe outputs.
func (m *SimMatrix) RowPins() []OutputPin {
	out := make([]OutputPin, len(m.rows))
	for i, r := range m.rows {
		out[i] = r
	}
	return out
}

// ColPins returns the sense inputs.
func (m *SimMatrix) ColPins() []InputPin {
	out := make([]InputPin, len(m.sw[0]))
	for c := range out {
		out[c] = &simMatrixCol{m: m, col: c}
	}
	return out
}

type simMatrixCol struct {
	m   *SimMatrix
	col int
}

func (c *simMatrixCol) Active() (bool, error) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	for r, row := range c.m.rows {
		if row.IsActive() && c.m.sw[r][c.col] {
			return true, nil
		}
	}
	return false, nil
}

func (c *simMatrixCol) Changed() <-chan struct{} {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.m.changed
}
