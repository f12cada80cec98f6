package hardware

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/micro-nova/gl846-go/internal/models"
	"github.com/micro-nova/gl846-go/internal/registers"
)

// ErrInjected is the cause of every failure configured on the Mock.
var ErrInjected = errors.New("mock: failure configured")

// OpKind classifies a recorded transport call.
type OpKind int

const (
	OpRead OpKind = iota
	OpWrite
	OpBulk
	OpBlock
	OpBufferAccess
	OpSamples
	OpSleep
)

func (k OpKind) String() string {
	switch k {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpBulk:
		return "bulk"
	case OpBlock:
		return "block"
	case OpBufferAccess:
		return "buffer-access"
	case OpSamples:
		return "samples"
	case OpSleep:
		return "sleep"
	default:
		return "unknown"
	}
}

// Op is one transport call seen by the Mock.
type Op struct {
	Kind  OpKind
	Addr  uint32
	Value byte
	Len   int
}

// SampleContext is what a Sampler sees of the simulated device at the time
// of a sample read.
type SampleContext struct {
	Regs     map[Register]byte
	Frontend map[byte]uint16
	Capture  int // zero-based index of the read since the mock was created
}

// Sampler produces n bytes of image data for a simulated capture.
type Sampler func(sc SampleContext, n int) []byte

// Mock is a thread-safe in-memory GL846 simulator for tests and development.
// Register writes drive a small status model: starting an action raises the
// data and motor status bits, clearing SCAN in Reg01 drops them again, and a
// reverse move reaches the home sensor.
type Mock struct {
	mu       sync.Mutex
	regs     map[Register]byte
	frontend map[byte]uint16
	blocks   map[uint32][]byte
	bufAcc   map[byte]byte
	ops      []Op
	writes   map[Register]int
	reads    map[Register]int
	sleeps   []time.Duration
	captures int

	sampler Sampler
	fill    byte

	failWrite   bool
	failRead    bool
	failSamples bool
	failRegs    map[Register]bool
	stuck       bool
	neverHome   bool
	feBusy      int
}

// NewMock creates a simulator parked at home with an empty buffer and no
// button pressed.
func NewMock() *Mock {
	m := &Mock{
		regs:     make(map[Register]byte),
		frontend: make(map[byte]uint16),
		blocks:   make(map[uint32][]byte),
		bufAcc:   make(map[byte]byte),
		writes:   make(map[Register]int),
		reads:    make(map[Register]int),
		failRegs: make(map[Register]bool),
	}
	m.regs[0x00] = 0x01
	m.regs[Reg40] = Reg40Chkver
	m.regs[Reg41] = Reg41Bufempty | Reg41Homesnr
	m.regs[Reg6D] = 0x0f
	return m
}

// SetFailWrite configures the mock to fail all write operations.
func (m *Mock) SetFailWrite(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrite = fail
}

// SetFailRead configures the mock to fail all register reads.
func (m *Mock) SetFailRead(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failRead = fail
}

// SetFailSamples configures the mock to fail sample reads.
func (m *Mock) SetFailSamples(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSamples = fail
}

// SetFailRegister makes single and bulk writes touching reg fail.
func (m *Mock) SetFailRegister(reg Register, fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failRegs[reg] = fail
}

// SetStuck keeps the motor status bits raised regardless of stop requests.
func (m *Mock) SetStuck(stuck bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stuck = stuck
}

// SetNeverHome keeps the home sensor inactive on reverse moves.
func (m *Mock) SetNeverHome(never bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.neverHome = never
}

// SetHome sets the home sensor state.
func (m *Mock) SetHome(home bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setBit(Reg41, Reg41Homesnr, home)
}

// SetFrontendBusy reports FEBUSY on the next n status reads.
func (m *Mock) SetFrontendBusy(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feBusy = n
}

// SetButtons simulates pressed buttons (ButtonScan etc). Reg6D is active low.
func (m *Mock) SetButtons(pressed byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regs[Reg6D] = ^pressed & 0x0f
}

// SetSampler installs the capture data generator.
func (m *Mock) SetSampler(s Sampler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sampler = s
}

// SetFill makes captures without a sampler return n copies of v.
func (m *Mock) SetFill(v byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fill = v
}

// SetReg sets a register value without recording an operation.
func (m *Mock) SetReg(reg Register, val byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regs[reg] = val
}

// GetReg returns a register value for testing purposes.
func (m *Mock) GetReg(reg Register) byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regs[reg]
}

// Frontend returns the value last latched into an AFE register.
func (m *Mock) Frontend(addr byte) uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frontend[addr]
}

// Block returns the data last written at addr.
func (m *Mock) Block(addr uint32) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.blocks[addr])
}

// BufferAccess returns the value last written to the 0x8c register index.
func (m *Mock) BufferAccess(index byte) byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bufAcc[index]
}

// WriteCount returns how often reg was written, singly or in bulk.
func (m *Mock) WriteCount(reg Register) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes[reg]
}

// ReadCount returns how often reg was read.
func (m *Mock) ReadCount(reg Register) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads[reg]
}

// Ops returns a copy of the operation log.
func (m *Mock) Ops() []Op {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.ops)
}

// Sleeps returns the recorded sleep durations.
func (m *Mock) Sleeps() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.sleeps)
}

// Captures returns the number of sample reads served.
func (m *Mock) Captures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.captures
}

// ResetOps clears the operation log and counters.
func (m *Mock) ResetOps() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = nil
	m.sleeps = nil
	clear(m.writes)
	clear(m.reads)
}

func (m *Mock) ReadRegister(ctx context.Context, reg Register) (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRead {
		return 0, models.ErrTransport("mock: read register", ErrInjected)
	}
	m.ops = append(m.ops, Op{Kind: OpRead, Addr: uint32(reg)})
	m.reads[reg]++
	v := m.regs[reg]
	if reg == Reg41 && m.feBusy > 0 {
		m.feBusy--
		v |= Reg41Febusy
	}
	return v, nil
}

func (m *Mock) WriteRegister(ctx context.Context, reg Register, val byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite || m.failRegs[reg] {
		return models.ErrTransport("mock: write register", ErrInjected)
	}
	m.ops = append(m.ops, Op{Kind: OpWrite, Addr: uint32(reg), Value: val})
	m.apply(reg, val)
	return nil
}

func (m *Mock) WriteRegisters(ctx context.Context, pairs []registers.Pair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite {
		return models.ErrTransport("mock: write registers", ErrInjected)
	}
	for _, p := range pairs {
		if m.failRegs[p.Addr] {
			return models.ErrTransport("mock: write registers", ErrInjected)
		}
	}
	m.ops = append(m.ops, Op{Kind: OpBulk, Len: len(pairs)})
	for _, p := range pairs {
		m.apply(p.Addr, p.Value)
	}
	return nil
}

func (m *Mock) WriteBlock(ctx context.Context, addr uint32, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite {
		return models.ErrTransport("mock: write block", ErrInjected)
	}
	m.ops = append(m.ops, Op{Kind: OpBlock, Addr: addr, Len: len(data)})
	m.blocks[addr] = slices.Clone(data)
	return nil
}

func (m *Mock) WriteBufferAccess(ctx context.Context, index, val byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite {
		return models.ErrTransport("mock: write buffer access", ErrInjected)
	}
	m.ops = append(m.ops, Op{Kind: OpBufferAccess, Addr: uint32(index), Value: val})
	m.bufAcc[index] = val
	return nil
}

func (m *Mock) ReadSamples(ctx context.Context, n int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSamples {
		return nil, models.ErrTransport("mock: read samples", ErrInjected)
	}
	m.ops = append(m.ops, Op{Kind: OpSamples, Len: n})
	sc := SampleContext{
		Regs:     maps.Clone(m.regs),
		Frontend: maps.Clone(m.frontend),
		Capture:  m.captures,
	}
	m.captures++

	var data []byte
	if m.sampler != nil {
		data = m.sampler(sc, n)
	}
	if len(data) != n {
		out := make([]byte, n)
		if data == nil {
			for i := range out {
				out[i] = m.fill
			}
		}
		copy(out, data)
		data = out
	}
	return data, nil
}

// Sleep records d without sleeping.
func (m *Mock) Sleep(ctx context.Context, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, Op{Kind: OpSleep, Len: int(d / time.Millisecond)})
	m.sleeps = append(m.sleeps, d)
}

func (m *Mock) IsMock() bool { return true }

func (m *Mock) Close() error { return nil }

// apply stores a register write and runs the status model. Callers hold mu.
func (m *Mock) apply(reg Register, val byte) {
	m.writes[reg]++
	m.regs[reg] = val

	switch reg {
	case Reg0F:
		m.start(val != 0)
	case Reg01:
		if val&Reg01Scan == 0 && !m.stuck {
			m.setBit(Reg40, Reg40Dataenb|Reg40Motmflg, false)
			m.setBit(Reg41, Reg41Motorenb, false)
			m.setBit(Reg41, Reg41Bufempty, true)
		}
	case RegFEAddr:
		m.frontend[val] = uint16(m.regs[RegFEDHi])<<8 | uint16(m.regs[RegFEDLo])
	}
}

func (m *Mock) start(motor bool) {
	m.setBit(Reg40, Reg40Dataenb, true)
	m.setBit(Reg41, Reg41Bufempty, false)
	if !motor || m.regs[Reg02]&Reg02Mtrpwr == 0 {
		return
	}
	m.setBit(Reg40, Reg40Motmflg, true)
	m.setBit(Reg41, Reg41Motorenb|Reg41Feedfsh, true)
	reverse := m.regs[Reg02]&Reg02Mtrrev != 0
	m.setBit(Reg41, Reg41Homesnr, reverse && !m.neverHome)
}

func (m *Mock) setBit(reg Register, mask byte, on bool) {
	if on {
		m.regs[reg] |= mask
	} else {
		m.regs[reg] &^= mask
	}
}
