package motor_test

import (
	"errors"
	"testing"

	"github.com/micro-nova/gl846-go/internal/models"
	"github.com/micro-nova/gl846-go/internal/motor"
)

var halfProfile = motor.Profile{
	Name:     "half-11000",
	Exposure: 11000,
	StepType: motor.StepHalf,
	Slope:    motor.SlopeFromSteps(22000, 1000, 1017),
}

func TestStepMultiplier(t *testing.T) {
	tests := []struct {
		reg  byte
		want int
	}{
		{0x00, 1},
		{0x01, 1},
		{0x02, 2},
		{0x04, 4},
		{0x06, 8},
		{0x08, 16},
		{0xf4, 4}, // high nibble ignored
	}
	for _, tc := range tests {
		if got := motor.StepMultiplier(tc.reg); got != tc.want {
			t.Errorf("StepMultiplier(0x%02x) = %d, want %d", tc.reg, got, tc.want)
		}
	}
}

func TestValidSlot(t *testing.T) {
	for n := -2; n <= 7; n++ {
		err := motor.ValidSlot(n)
		if n >= 0 && n <= 4 {
			if err != nil {
				t.Errorf("ValidSlot(%d) = %v, want nil", n, err)
			}
			continue
		}
		if !errors.Is(err, models.ErrInvalid) {
			t.Errorf("ValidSlot(%d) = %v, want InvalidArgument", n, err)
		}
	}
}

func TestFastStepTypeClamp(t *testing.T) {
	tests := map[motor.StepType]motor.StepType{
		motor.StepFull:    motor.StepFull,
		motor.StepHalf:    motor.StepHalf,
		motor.StepQuarter: motor.StepQuarter,
		motor.StepEighth:  motor.StepQuarter,
	}
	for in, want := range tests {
		if got := motor.FastStepType(in); got != want {
			t.Errorf("FastStepType(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestGenerateLength(t *testing.T) {
	for _, mult := range []int{1, 2, 4, 8, 16} {
		for _, dpi := range []int{75, 150, 300, 600, 1200} {
			table, err := motor.Generate(dpi, 11000, 1200, mult, halfProfile)
			if err != nil {
				t.Fatalf("Generate(dpi=%d, mult=%d): %v", dpi, mult, err)
			}
			if len(table.Entries) != table.ScanSteps*mult {
				t.Errorf("dpi=%d mult=%d: len=%d, want %d*%d", dpi, mult, len(table.Entries), table.ScanSteps, mult)
			}
			if table.ScanSteps < 2 {
				t.Errorf("dpi=%d mult=%d: scan steps %d below minimum", dpi, mult, table.ScanSteps)
			}
			if len(table.Entries) > motor.MaxTableSize {
				t.Errorf("dpi=%d mult=%d: table exceeds slot size", dpi, mult)
			}
			for i := 1; i < len(table.Entries); i++ {
				if table.Entries[i] > table.Entries[i-1] {
					t.Fatalf("dpi=%d mult=%d: entry %d increases (%d > %d)", dpi, mult, i, table.Entries[i], table.Entries[i-1])
				}
			}
		}
	}
}

func TestGenerateStopsAtTarget(t *testing.T) {
	// 600 dpi at 11000 with base 1200 gives a half-step period of 2750.
	table, err := motor.Generate(600, 11000, 1200, 1, halfProfile)
	if err != nil {
		t.Fatal(err)
	}
	if last := table.Entries[len(table.Entries)-1]; last != 2750 {
		t.Errorf("final period = %d, want 2750", last)
	}
	if first := table.Entries[0]; first != 11000 {
		t.Errorf("first period = %d, want 11000", first)
	}

	// A target faster than the profile allows stops at the profile maximum.
	fast, err := motor.Generate(600, 100, 1200, 1, halfProfile)
	if err != nil {
		t.Fatal(err)
	}
	if last := fast.Entries[len(fast.Entries)-1]; last != 500 {
		t.Errorf("final period = %d, want profile max 500", last)
	}
}

func TestGenerateRejectsBadInput(t *testing.T) {
	if _, err := motor.Generate(0, 11000, 1200, 1, halfProfile); !errors.Is(err, models.ErrInvalid) {
		t.Errorf("zero dpi: err = %v", err)
	}
	if _, err := motor.Generate(600, 11000, 1200, 3, halfProfile); !errors.Is(err, models.ErrInvalid) {
		t.Errorf("multiplier 3: err = %v", err)
	}
	if _, err := motor.Generate(600, 11000, 1200, 1, motor.Profile{}); !errors.Is(err, models.ErrInvalid) {
		t.Errorf("empty profile: err = %v", err)
	}
}

func TestZMod(t *testing.T) {
	table := motor.Table{Entries: []uint16{100, 80, 60, 50}, ScanSteps: 4}
	// sum(4) = 290, last = 50
	z1, z2 := motor.ZMod(false, 1000, table, 4, 10, 2)
	if z1 != 390 {
		t.Errorf("z1 = %d, want 390", z1)
	}
	if z2 != 790 {
		t.Errorf("z2 = %d, want 790", z2)
	}
	_, z2 = motor.ZMod(true, 1000, table, 4, 10, 2)
	if z2 != 340 {
		t.Errorf("two-table z2 = %d, want 340", z2)
	}
	z1, z2 = motor.ZMod(false, 0, table, 4, 10, 2)
	if z1 != 0 || z2 != 0 {
		t.Errorf("zero exposure: z1=%d z2=%d, want 0,0", z1, z2)
	}
}

func TestCorrectFeedClamp(t *testing.T) {
	tests := []struct {
		feed, accel, want uint32
	}{
		{1000, 100, 900},
		{100, 100, 0},
		{100, 1000, 0},
		{0, 0, 0},
		{0, 5, 0},
	}
	for _, tc := range tests {
		if got := motor.CorrectFeed(tc.feed, tc.accel); got != tc.want {
			t.Errorf("CorrectFeed(%d, %d) = %d, want %d", tc.feed, tc.accel, got, tc.want)
		}
	}
}

func TestSelectProfile(t *testing.T) {
	profiles := []motor.Profile{
		{Name: "a", Exposure: 5000},
		{Name: "b", Exposure: 11000},
		{Name: "c", Exposure: 20000},
	}
	tests := []struct {
		exposure uint32
		want     string
	}{
		{11000, "b"},
		{6000, "b"},
		{100, "a"},
		{30000, "c"},
	}
	for _, tc := range tests {
		p, err := motor.SelectProfile(profiles, tc.exposure)
		if err != nil {
			t.Fatal(err)
		}
		if p.Name != tc.want {
			t.Errorf("SelectProfile(%d) = %s, want %s", tc.exposure, p.Name, tc.want)
		}
	}
	if _, err := motor.SelectProfile(nil, 1); !errors.Is(err, models.ErrMissing) {
		t.Errorf("empty profiles: err = %v, want NotFound", err)
	}
}
