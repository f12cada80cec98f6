package registers_test

import (
	"errors"
	"testing"

	"github.com/micro-nova/gl846-go/internal/models"
	"github.com/micro-nova/gl846-go/internal/registers"
)

func TestGetUnknownAddress(t *testing.T) {
	s := registers.New()
	if _, err := s.Get8(0x01); !errors.Is(err, models.ErrMissing) {
		t.Fatalf("Get8 on empty set: err = %v, want NotFound", err)
	}
	if err := s.Set8(0x01, 0xff); !errors.Is(err, models.ErrMissing) {
		t.Fatalf("Set8 on unknown address: err = %v, want NotFound", err)
	}
}

func TestSetKeepsParticipation(t *testing.T) {
	s := registers.New()
	s.Init(0x0b, 0x08)
	s.Remove(0x0b)
	if err := s.Set8(0x0b, 0x0c); err != nil {
		t.Fatal(err)
	}
	if s.Active(0x0b) {
		t.Error("Set8 re-enabled a removed register")
	}
	v, err := s.Get8(0x0b)
	if err != nil || v != 0x0c {
		t.Errorf("Get8(0x0b) = 0x%02x, %v; want 0x0c", v, err)
	}
	if len(s.Export()) != 0 {
		t.Errorf("removed register exported: %v", s.Export())
	}

	s.Init(0x0b, 0x01)
	if !s.Active(0x0b) {
		t.Error("Init did not restore participation")
	}
}

func TestMultiByteOrder(t *testing.T) {
	s := registers.New()
	for a := registers.Address(0x30); a < 0x36; a++ {
		s.Init(a, 0)
	}
	if err := s.Set16(0x30, 0x1234); err != nil {
		t.Fatal(err)
	}
	if err := s.Set24(0x33, 0xabcdef); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		addr registers.Address
		want byte
	}{
		{0x30, 0x34},
		{0x31, 0x12},
		{0x33, 0xef},
		{0x34, 0xcd},
		{0x35, 0xab},
	}
	for _, tc := range tests {
		if got := s.Value(tc.addr); got != tc.want {
			t.Errorf("reg 0x%02x = 0x%02x, want 0x%02x", tc.addr, got, tc.want)
		}
	}

	if v, _ := s.Get16(0x30); v != 0x1234 {
		t.Errorf("Get16 = 0x%x, want 0x1234", v)
	}
	if v, _ := s.Get24(0x33); v != 0xabcdef {
		t.Errorf("Get24 = 0x%x, want 0xabcdef", v)
	}
	if err := s.Set24(0x30, 0x1000000|0x010203); err != nil {
		t.Fatal(err)
	}
	if v, _ := s.Get24(0x30); v != 0x010203 {
		t.Errorf("Set24 kept bits above 24: got 0x%x", v)
	}
}

func TestMultiByteMissingLeavesSetUntouched(t *testing.T) {
	s := registers.New()
	s.Init(0x40, 0xaa)
	s.Init(0x41, 0xbb)
	if err := s.Set24(0x40, 0x123456); !errors.Is(err, models.ErrMissing) {
		t.Fatalf("Set24 err = %v, want NotFound", err)
	}
	if s.Value(0x40) != 0xaa || s.Value(0x41) != 0xbb {
		t.Error("failed Set24 modified registers")
	}
}

func TestExportOrderAndImport(t *testing.T) {
	s := registers.New()
	s.Init(0x87, 0x00)
	s.Init(0x01, 0x60)
	s.Init(0x5e, 0x1f)
	s.Init(0x0b, 0x08)
	s.Remove(0x0b)

	pairs := s.Export()
	want := []registers.Pair{{Addr: 0x01, Value: 0x60}, {Addr: 0x5e, Value: 0x1f}, {Addr: 0x87, Value: 0x00}}
	if len(pairs) != len(want) {
		t.Fatalf("Export() = %v, want %v", pairs, want)
	}
	for i := range want {
		if pairs[i] != want[i] {
			t.Errorf("Export()[%d] = %v, want %v", i, pairs[i], want[i])
		}
	}

	back := registers.Import(pairs)
	if got := back.Export(); len(got) != len(pairs) {
		t.Fatalf("Import/Export length %d, want %d", len(got), len(pairs))
	}
	for _, p := range pairs {
		if v, err := back.Get8(p.Addr); err != nil || v != p.Value {
			t.Errorf("imported 0x%02x = 0x%02x, %v", p.Addr, v, err)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := registers.New()
	s.Init(0x01, 0x60)
	c := s.Clone()
	if !c.Equal(s) {
		t.Fatal("clone differs from original")
	}
	if err := c.SetBits(0x01, 0x01); err != nil {
		t.Fatal(err)
	}
	if s.Value(0x01) != 0x60 {
		t.Error("changing the clone changed the original")
	}
	if c.Equal(s) {
		t.Error("Equal ignores value differences")
	}
}

func TestBitHelpers(t *testing.T) {
	s := registers.New()
	s.Init(0x02, 0x38)
	if err := s.SetFlag(0x02, 0x10, false); err != nil {
		t.Fatal(err)
	}
	if err := s.SetFlag(0x02, 0x04, true); err != nil {
		t.Fatal(err)
	}
	if got := s.Value(0x02); got != 0x2c {
		t.Errorf("reg 0x02 = 0x%02x, want 0x2c", got)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := registers.New()
	s.Init(0x01, 0x60)
	s.Init(0x0b, 0x08)
	s.Init(0xe0, 0x01)
	s.Remove(0x0b)

	data, err := s.MarshalSnapshot()
	if err != nil {
		t.Fatal(err)
	}
	again, err := s.Clone().MarshalSnapshot()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(again) {
		t.Error("snapshot encoding is not deterministic")
	}

	back, err := registers.UnmarshalSnapshot(data)
	if err != nil {
		t.Fatal(err)
	}
	if !back.Equal(s) {
		t.Error("snapshot round trip lost registers or participation")
	}
	if _, err := registers.UnmarshalSnapshot([]byte{0xff}); err == nil {
		t.Error("UnmarshalSnapshot accepted garbage")
	}
}
