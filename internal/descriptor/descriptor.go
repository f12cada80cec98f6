// Package descriptor holds the static per-model tables the GL846 driver
// consults: sensors, motors, GPIO idle states, memory layouts and the models
// that tie them together. Everything here is read-only after init.
package descriptor

import (
	"github.com/micro-nova/gl846-go/internal/models"
	"github.com/micro-nova/gl846-go/internal/motor"
	"github.com/micro-nova/gl846-go/internal/registers"
)

// SensorID identifies a sensor table entry.
type SensorID uint8

const (
	SensorUnknown SensorID = iota
	SensorIMG101
	SensorOpticBook3800
)

func (s SensorID) String() string {
	switch s {
	case SensorIMG101:
		return "cis-img101"
	case SensorOpticBook3800:
		return "ccd-opticbook-3800"
	default:
		return "unknown"
	}
}

// MotorID identifies a motor table entry.
type MotorID uint8

const (
	MotorUnknown MotorID = iota
	MotorIMG101
	MotorOpticBook3800
)

func (m MotorID) String() string {
	switch m {
	case MotorIMG101:
		return "img101"
	case MotorOpticBook3800:
		return "opticbook-3800"
	default:
		return "unknown"
	}
}

// GpioID identifies a GPIO table entry.
type GpioID uint8

const (
	GpioUnknown GpioID = iota
	GpioIMG101
	GpioOpticBook3800
)

func (g GpioID) String() string {
	switch g {
	case GpioIMG101:
		return "img101"
	case GpioOpticBook3800:
		return "opticbook-3800"
	default:
		return "unknown"
	}
}

// SensorProfile carries the timing for one hardware resolution.
type SensorProfile struct {
	DPI             int              `json:"dpi"`
	ExposureLPeriod int              `json:"exposure_lperiod"`
	Exposure        models.Exposure  `json:"exposure"`
	SegmentOrder    []int            `json:"segment_order,omitempty"`
	CustomRegs      []registers.Pair `json:"custom_regs,omitempty"`
}

// Sensor describes the image sensor fitted to a model.
type Sensor struct {
	ID                      SensorID         `json:"id"`
	OpticalRes              int              `json:"optical_res"`
	BlackPixels             int              `json:"black_pixels"`
	DummyPixel              int              `json:"dummy_pixel"`
	CCDStartXOffset         int              `json:"ccd_start_xoffset"`
	SensorPixels            int              `json:"sensor_pixels"`
	GainWhiteRef            int              `json:"gain_white_ref"`
	CCDPixelsPerSystemPixel int              `json:"ccd_pixels_per_system_pixel"`
	Exposure                models.Exposure  `json:"exposure"`
	HWDPIs                  []int            `json:"hw_dpis"`
	CustomRegs              []registers.Pair `json:"custom_regs"`
	Profiles                []SensorProfile  `json:"profiles"`
}

// PixelRatio returns how many sensor pixels make one system pixel.
func (s *Sensor) PixelRatio() int {
	if s.CCDPixelsPerSystemPixel < 1 {
		return 1
	}
	return s.CCDPixelsPerSystemPixel
}

// RegisterHWDPI returns the smallest supported hardware resolution that is
// at least dpi, or the largest one when dpi exceeds them all.
func (s *Sensor) RegisterHWDPI(dpi int) int {
	best := 0
	for _, hw := range s.HWDPIs {
		if hw >= dpi && (best == 0 || hw < best) {
			best = hw
		}
	}
	if best != 0 {
		return best
	}
	for _, hw := range s.HWDPIs {
		best = max(best, hw)
	}
	if best == 0 {
		return s.OpticalRes
	}
	return best
}

// CustomValue returns the sensor default for addr, or 0.
func (s *Sensor) CustomValue(addr registers.Address) byte {
	for _, p := range s.CustomRegs {
		if p.Addr == addr {
			return p.Value
		}
	}
	return 0
}

// Profile returns the timing profile for dpi: the exact entry if present,
// else the nearest higher one, else the highest.
func (s *Sensor) Profile(dpi int) (SensorProfile, error) {
	if len(s.Profiles) == 0 {
		return SensorProfile{}, models.ErrNotFound("sensor %s has no profiles", s.ID)
	}
	best, highest := -1, 0
	for i, p := range s.Profiles {
		if p.DPI == dpi {
			return p, nil
		}
		if p.DPI > dpi && (best < 0 || p.DPI < s.Profiles[best].DPI) {
			best = i
		}
		if p.DPI > s.Profiles[highest].DPI {
			highest = i
		}
	}
	if best < 0 {
		best = highest
	}
	return s.Profiles[best], nil
}

// Motor describes the carriage motor.
type Motor struct {
	ID          MotorID         `json:"id"`
	BaseYDPI    int             `json:"base_ydpi"`
	OpticalYDPI int             `json:"optical_ydpi"`
	Profiles    []motor.Profile `json:"profiles"`
}

// Gpio holds the idle GPIO/GPOE programming of a model.
type Gpio struct {
	ID  GpioID `json:"id"`
	R6B byte   `json:"r6b"`
	R6C byte   `json:"r6c"`
	R6D byte   `json:"r6d"`
	R6E byte   `json:"r6e"`
	R6F byte   `json:"r6f"`
	RA6 byte   `json:"ra6"`
	RA7 byte   `json:"ra7"`
	RA8 byte   `json:"ra8"`
	RA9 byte   `json:"ra9"`
}

// MemoryLayout holds the DRAM selection and the base address registers
// 0xe0-0xe9 of a model.
type MemoryLayout struct {
	Model   string   `json:"model"`
	DRAMSel byte     `json:"dramsel"`
	RX      [10]byte `json:"rx"`
}

// Model flags.
const (
	FlagNoCalibration uint32 = 1 << iota
	FlagSearchStart
	FlagShadingRepark
)

// Model ties the tables together for one scanner product.
type Model struct {
	Name              string            `json:"name"`
	Vendor            string            `json:"vendor"`
	Product           string            `json:"product"`
	VendorID          uint16            `json:"vendor_id"`
	ProductID         uint16            `json:"product_id"`
	XDPIs             []int             `json:"xdpis"`
	YDPIs             []int             `json:"ydpis"`
	XOffset           float64           `json:"x_offset"`
	YOffset           float64           `json:"y_offset"`
	YOffsetCalibWhite float64           `json:"y_offset_calib_white"`
	LineDistance      int               `json:"line_distance"`
	ShadingLines      int               `json:"shading_lines"`
	SearchLines       int               `json:"search_lines"`
	IsCIS             bool              `json:"is_cis"`
	IsSheetfed        bool              `json:"is_sheetfed"`
	Flags             uint32            `json:"flags"`
	SensorID          SensorID          `json:"sensor_id"`
	MotorID           MotorID           `json:"motor_id"`
	GpioID            GpioID            `json:"gpio_id"`
	DefaultMethod     models.ScanMethod `json:"default_method"`
	Frontend          models.Frontend   `json:"frontend"`
}

// Has reports whether all bits of flag are set.
func (m *Model) Has(flag uint32) bool { return m.Flags&flag == flag }

// MinXDPI returns the lowest horizontal resolution the model offers.
func (m *Model) MinXDPI() int { return minOf(m.XDPIs) }

// MinYDPI returns the lowest vertical resolution the model offers.
func (m *Model) MinYDPI() int { return minOf(m.YDPIs) }

func minOf(v []int) int {
	if len(v) == 0 {
		return 0
	}
	lo := v[0]
	for _, x := range v[1:] {
		lo = min(lo, x)
	}
	return lo
}
