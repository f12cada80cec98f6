// Package motor generates the acceleration ramps loaded into the ASIC's
// slope-table memory and the step bookkeeping derived from them.
package motor

import (
	"fmt"
	"math"

	"github.com/micro-nova/gl846-go/internal/models"
)

// StepType is the micro-stepping granularity. Each value doubles the motor
// resolution of the previous one.
type StepType uint8

const (
	StepFull StepType = iota
	StepHalf
	StepQuarter
	StepEighth
)

func (s StepType) String() string {
	switch s {
	case StepFull:
		return "full"
	case StepHalf:
		return "half"
	case StepQuarter:
		return "quarter"
	case StepEighth:
		return "eighth"
	default:
		return fmt.Sprintf("step(%d)", uint8(s))
	}
}

// FastStepType clamps t to no finer than quarter stepping, which is what
// fast, stop and home moves run at.
func FastStepType(t StepType) StepType {
	if t >= StepQuarter {
		return StepQuarter
	}
	return t
}

// StepMultiplier decodes the step multiplier from the low nibble of the
// motor configuration register (0x9d).
func StepMultiplier(reg9d byte) int {
	return 1 << ((reg9d & 0x0f) >> 1)
}

// MaxTableSize is the number of 16-bit entries one slope-table slot holds.
const MaxTableSize = 1024

// Slot is a hardware slope-table slot.
type Slot int

const (
	SlotScan Slot = iota
	SlotBacktrack
	SlotStop
	SlotFast
	SlotHome
)

func (s Slot) String() string {
	switch s {
	case SlotScan:
		return "scan"
	case SlotBacktrack:
		return "backtrack"
	case SlotStop:
		return "stop"
	case SlotFast:
		return "fast"
	case SlotHome:
		return "home"
	default:
		return fmt.Sprintf("slot(%d)", int(s))
	}
}

// ValidSlot rejects slot indexes outside 0-4.
func ValidSlot(n int) error {
	if n < int(SlotScan) || n > int(SlotHome) {
		return models.ErrInvalidArgument("invalid slope table slot %d", n)
	}
	return nil
}

// Slope describes a constant-acceleration ramp. Speeds are expressed as
// step periods (w), i.e. the inverse of the step rate, in full steps.
type Slope struct {
	InitialW     uint32  `json:"initial_w"`
	MaxW         uint32  `json:"max_w"`
	Acceleration float64 `json:"acceleration"`
}

// SlopeFromSteps builds a ramp that goes from initialW to maxW in the given
// number of steps.
func SlopeFromSteps(initialW, maxW uint32, steps int) Slope {
	vi := 1.0 / float64(initialW)
	vm := 1.0 / float64(maxW)
	return Slope{
		InitialW:     initialW,
		MaxW:         maxW,
		Acceleration: (vm*vm - vi*vi) / (2 * float64(steps)),
	}
}

// periodAt returns the step period at step n, shifted by the step type.
func (s Slope) periodAt(n int, st StepType) uint32 {
	if n == 0 || s.InitialW == s.MaxW || s.Acceleration == 0 {
		return s.InitialW >> st
	}
	vi := 1.0 / float64(s.InitialW)
	v := math.Sqrt(vi*vi + 2*s.Acceleration*float64(n))
	return uint32(1.0/v) >> st
}

// Profile is a named motor timing profile, selected by exposure time.
type Profile struct {
	Name     string   `json:"name"`
	Exposure uint32   `json:"exposure"`
	StepType StepType `json:"step_type"`
	Slope    Slope    `json:"slope"`
}

// Table is a generated slope table. len(Entries) is always
// ScanSteps*multiplier for the multiplier it was generated with.
type Table struct {
	Entries   []uint16
	ScanSteps int
}

// Sum returns the total of the first n entries.
func (t Table) Sum(n int) uint64 {
	var sum uint64
	for _, v := range t.Entries[:min(n, len(t.Entries))] {
		sum += uint64(v)
	}
	return sum
}

// Generate builds the slope table for moving at dpi with the given
// exposure. The ramp stops at the profile's maximum speed or the speed
// implied by the exposure, whichever is slower, and is padded to a multiple
// of multiplier entries (at least two groups).
func Generate(dpi, exposure, baseDPI, multiplier int, p Profile) (Table, error) {
	if dpi <= 0 || baseDPI <= 0 {
		return Table{}, models.ErrInvalidArgument("slope: resolution must be positive (dpi=%d base=%d)", dpi, baseDPI)
	}
	if multiplier <= 0 || MaxTableSize%multiplier != 0 {
		return Table{}, models.ErrInvalidArgument("slope: invalid step multiplier %d", multiplier)
	}
	if p.Slope.InitialW == 0 || p.Slope.MaxW == 0 {
		return Table{}, models.ErrInvalidArgument("slope: profile %q has no slope", p.Name)
	}

	target := uint32(exposure*dpi/baseDPI) >> p.StepType
	final := max(target, p.Slope.MaxW>>p.StepType)

	entries := make([]uint16, 0, MaxTableSize)
	for len(entries) < MaxTableSize-1 {
		w := p.Slope.periodAt(len(entries), p.StepType)
		if w <= final {
			break
		}
		entries = append(entries, clamp16(w))
	}
	entries = append(entries, clamp16(final))

	for len(entries) < 2*multiplier || len(entries)%multiplier != 0 {
		entries = append(entries, entries[len(entries)-1])
	}
	if len(entries) > MaxTableSize {
		entries = entries[:MaxTableSize]
	}
	return Table{Entries: entries, ScanSteps: len(entries) / multiplier}, nil
}

func clamp16(v uint32) uint16 {
	if v > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(v)
}

// ZMod computes the two motor speed transition points (Z1, Z2). accelSteps
// is the ramp length in table entries, bufferSteps the re-step distance and
// moveSteps the corrected feed. With twoTable set the feed runs on the fast
// table and only one cruising step counts towards Z2.
func ZMod(twoTable bool, exposure uint32, t Table, accelSteps, moveSteps, bufferSteps int) (z1, z2 uint32) {
	if exposure == 0 || accelSteps <= 0 || len(t.Entries) == 0 {
		return 0, 0
	}
	accelSteps = min(accelSteps, len(t.Entries))
	sum := t.Sum(accelSteps)
	last := uint64(t.Entries[accelSteps-1])

	z1 = uint32((sum + uint64(bufferSteps)*last) % uint64(exposure))
	if twoTable {
		sum += last
	} else {
		sum += uint64(moveSteps) * last
	}
	z2 = uint32(sum % uint64(exposure))
	return z1, z2
}

// CorrectFeed subtracts the acceleration distance from a feed, clamping at
// zero when the ramp alone covers the whole move.
func CorrectFeed(feed, accel uint32) uint32 {
	if accel < feed {
		return feed - accel
	}
	return 0
}
