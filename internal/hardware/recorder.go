package hardware

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/micro-nova/gl846-go/internal/registers"
)

var (
	traceEnc cbor.EncMode
	traceDec cbor.DecMode
)

func init() {
	var err error
	traceEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	traceDec, err = cbor.DecOptions{ExtraReturnErrors: cbor.ExtraDecErrorUnknownField}.DecMode()
	if err != nil {
		panic(err)
	}
}

// EventKind names a recorded event.
type EventKind string

const (
	EventRead         EventKind = "read"
	EventWrite        EventKind = "write"
	EventBulk         EventKind = "bulk"
	EventBlock        EventKind = "block"
	EventBufferAccess EventKind = "buffer_access"
	EventSamples      EventKind = "samples"
	EventSleep        EventKind = "sleep"
	EventSlopeTable   EventKind = "slope_table"
	EventKeyValue     EventKind = "key_value"
	EventCheckpoint   EventKind = "checkpoint"
)

// Event is one entry of a recorded trace.
type Event struct {
	Kind  EventKind        `cbor:"1,keyasint" json:"kind"`
	Addr  uint32           `cbor:"2,keyasint,omitempty" json:"addr,omitempty"`
	Value uint32           `cbor:"3,keyasint,omitempty" json:"value,omitempty"`
	Regs  []registers.Pair `cbor:"4,keyasint,omitempty" json:"regs,omitempty"`
	Table []uint16         `cbor:"5,keyasint,omitempty" json:"table,omitempty"`
	Key   string           `cbor:"6,keyasint,omitempty" json:"key,omitempty"`
	Text  string           `cbor:"7,keyasint,omitempty" json:"text,omitempty"`
	Len   int              `cbor:"8,keyasint,omitempty" json:"len,omitempty"`
}

type trace struct {
	Version int     `cbor:"1,keyasint"`
	Events  []Event `cbor:"2,keyasint"`
}

const traceVersion = 1

// Recorder wraps a Conn and keeps a trace of every call plus the derived
// data the driver reports through the Recording interface.
type Recorder struct {
	inner Conn

	mu     sync.Mutex
	events []Event
}

// NewRecorder wraps inner.
func NewRecorder(inner Conn) *Recorder {
	return &Recorder{inner: inner}
}

func (r *Recorder) add(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the trace.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// Reset discards the trace.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// MarshalTrace encodes the trace as deterministic CBOR.
func (r *Recorder) MarshalTrace() ([]byte, error) {
	return traceEnc.Marshal(trace{Version: traceVersion, Events: r.Events()})
}

// UnmarshalTrace decodes a trace produced by MarshalTrace.
func UnmarshalTrace(data []byte) ([]Event, error) {
	var t trace
	if err := traceDec.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("recorder: decode trace: %w", err)
	}
	if t.Version != traceVersion {
		return nil, fmt.Errorf("recorder: unsupported trace version %d", t.Version)
	}
	return t.Events, nil
}

func (r *Recorder) ReadRegister(ctx context.Context, reg Register) (byte, error) {
	v, err := r.inner.ReadRegister(ctx, reg)
	if err == nil {
		r.add(Event{Kind: EventRead, Addr: uint32(reg), Value: uint32(v)})
	}
	return v, err
}

func (r *Recorder) WriteRegister(ctx context.Context, reg Register, val byte) error {
	r.add(Event{Kind: EventWrite, Addr: uint32(reg), Value: uint32(val)})
	return r.inner.WriteRegister(ctx, reg, val)
}

func (r *Recorder) WriteRegisters(ctx context.Context, pairs []registers.Pair) error {
	r.add(Event{Kind: EventBulk, Regs: slices.Clone(pairs)})
	return r.inner.WriteRegisters(ctx, pairs)
}

func (r *Recorder) WriteBlock(ctx context.Context, addr uint32, data []byte) error {
	r.add(Event{Kind: EventBlock, Addr: addr, Len: len(data)})
	return r.inner.WriteBlock(ctx, addr, data)
}

func (r *Recorder) WriteBufferAccess(ctx context.Context, index, val byte) error {
	r.add(Event{Kind: EventBufferAccess, Addr: uint32(index), Value: uint32(val)})
	return r.inner.WriteBufferAccess(ctx, index, val)
}

func (r *Recorder) ReadSamples(ctx context.Context, n int) ([]byte, error) {
	r.add(Event{Kind: EventSamples, Len: n})
	return r.inner.ReadSamples(ctx, n)
}

func (r *Recorder) Sleep(ctx context.Context, d time.Duration) {
	r.add(Event{Kind: EventSleep, Value: uint32(d / time.Millisecond)})
	r.inner.Sleep(ctx, d)
}

func (r *Recorder) IsMock() bool { return r.inner.IsMock() }

func (r *Recorder) Close() error { return r.inner.Close() }

func (r *Recorder) RecordSlopeTable(slot int, table []uint16) {
	r.add(Event{Kind: EventSlopeTable, Addr: uint32(slot), Table: slices.Clone(table)})
}

func (r *Recorder) RecordKeyValue(key, value string) {
	r.add(Event{Kind: EventKeyValue, Key: key, Text: value})
}

func (r *Recorder) Checkpoint(name string) {
	r.add(Event{Kind: EventCheckpoint, Text: name})
}
