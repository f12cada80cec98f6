package registers

import (
	"fmt"
	"slices"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	encMode = em
	dm, err := cbor.DecOptions{
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	decMode = dm
}

type snapshotEntry struct {
	_      struct{} `cbor:",toarray"`
	Addr   Address
	Value  byte
	Active bool
}

type snapshot struct {
	Version int             `cbor:"1,keyasint"`
	Regs    []snapshotEntry `cbor:"2,keyasint"`
}

const snapshotVersion = 1

// MarshalSnapshot encodes the full set, removed registers included, as
// deterministic CBOR. Equal sets always encode to identical bytes.
func (s *Set) MarshalSnapshot() ([]byte, error) {
	snap := snapshot{Version: snapshotVersion, Regs: make([]snapshotEntry, 0, len(s.regs))}
	for addr, e := range s.regs {
		snap.Regs = append(snap.Regs, snapshotEntry{Addr: addr, Value: e.value, Active: e.active})
	}
	slices.SortFunc(snap.Regs, func(a, b snapshotEntry) int { return int(a.Addr) - int(b.Addr) })
	b, err := encMode.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("registers: encode snapshot: %w", err)
	}
	return b, nil
}

// UnmarshalSnapshot decodes a snapshot produced by MarshalSnapshot.
func UnmarshalSnapshot(data []byte) (*Set, error) {
	var snap snapshot
	if err := decMode.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("registers: decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("registers: unsupported snapshot version %d", snap.Version)
	}
	s := New()
	for _, e := range snap.Regs {
		s.regs[e.Addr] = entry{value: e.Value, active: e.Active}
	}
	return s, nil
}
