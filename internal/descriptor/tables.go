package descriptor

import (
	"slices"

	"github.com/micro-nova/gl846-go/internal/models"
	"github.com/micro-nova/gl846-go/internal/motor"
	"github.com/micro-nova/gl846-go/internal/registers"
)

var sensors = []Sensor{
	{
		ID:                      SensorIMG101,
		OpticalRes:              1200,
		BlackPixels:             31,
		DummyPixel:              31,
		CCDStartXOffset:         0,
		SensorPixels:            10800,
		GainWhiteRef:            200,
		CCDPixelsPerSystemPixel: 1,
		HWDPIs:                  []int{600, 1200},
		CustomRegs: []registers.Pair{
			{Addr: 0x16, Value: 0xbb}, {Addr: 0x17, Value: 0x13}, {Addr: 0x18, Value: 0x10},
			{Addr: 0x19, Value: 0x2a}, {Addr: 0x1a, Value: 0x34}, {Addr: 0x1b, Value: 0x00},
			{Addr: 0x1c, Value: 0x20}, {Addr: 0x1d, Value: 0x06},
			{Addr: 0x52, Value: 0x02}, {Addr: 0x53, Value: 0x04}, {Addr: 0x54, Value: 0x06},
			{Addr: 0x55, Value: 0x08}, {Addr: 0x56, Value: 0x0a}, {Addr: 0x57, Value: 0x00},
			{Addr: 0x58, Value: 0x59}, {Addr: 0x59, Value: 0x31}, {Addr: 0x5a, Value: 0x40},
		},
		Profiles: []SensorProfile{
			{
				DPI:             600,
				ExposureLPeriod: 11000,
				Exposure:        models.Exposure{Red: 0x0400, Green: 0x0400, Blue: 0x0400},
				SegmentOrder:    []int{0, 1},
				CustomRegs:      []registers.Pair{{Addr: 0x74, Value: 0x00}, {Addr: 0x75, Value: 0x01}, {Addr: 0x76, Value: 0xff}},
			},
			{
				DPI:             1200,
				ExposureLPeriod: 11000,
				Exposure:        models.Exposure{Red: 0x0400, Green: 0x0400, Blue: 0x0400},
				SegmentOrder:    []int{0, 1},
				CustomRegs:      []registers.Pair{{Addr: 0x74, Value: 0x00}, {Addr: 0x75, Value: 0x01}, {Addr: 0x76, Value: 0xff}},
			},
		},
	},
	{
		ID:                      SensorOpticBook3800,
		OpticalRes:              1200,
		BlackPixels:             31,
		DummyPixel:              31,
		CCDStartXOffset:         0,
		SensorPixels:            10200,
		GainWhiteRef:            200,
		CCDPixelsPerSystemPixel: 1,
		HWDPIs:                  []int{600, 1200},
		CustomRegs: []registers.Pair{
			{Addr: 0x16, Value: 0x10}, {Addr: 0x17, Value: 0x04}, {Addr: 0x18, Value: 0x00},
			{Addr: 0x19, Value: 0x50}, {Addr: 0x1a, Value: 0x00}, {Addr: 0x1b, Value: 0x00},
			{Addr: 0x1c, Value: 0x20}, {Addr: 0x1d, Value: 0x04},
			{Addr: 0x52, Value: 0x0a}, {Addr: 0x53, Value: 0x0d}, {Addr: 0x54, Value: 0x00},
			{Addr: 0x55, Value: 0x03}, {Addr: 0x56, Value: 0x06}, {Addr: 0x57, Value: 0x08},
			{Addr: 0x58, Value: 0x5b}, {Addr: 0x59, Value: 0x00}, {Addr: 0x5a, Value: 0x40},
		},
		Profiles: []SensorProfile{
			{
				DPI:             600,
				ExposureLPeriod: 11000,
				Exposure:        models.Exposure{Red: 0x0a00, Green: 0x0a00, Blue: 0x0a00},
			},
			{
				DPI:             1200,
				ExposureLPeriod: 11000,
				Exposure:        models.Exposure{Red: 0x0a00, Green: 0x0a00, Blue: 0x0a00},
			},
		},
	},
}

var motors = []Motor{
	{
		ID:          MotorIMG101,
		BaseYDPI:    600,
		OpticalYDPI: 1200,
		Profiles: []motor.Profile{
			{Name: "img101-half", Exposure: 11000, StepType: motor.StepHalf, Slope: motor.SlopeFromSteps(22000, 1000, 1017)},
		},
	},
	{
		ID:          MotorOpticBook3800,
		BaseYDPI:    600,
		OpticalYDPI: 1200,
		Profiles: []motor.Profile{
			{Name: "opticbook-3800-half", Exposure: 11000, StepType: motor.StepHalf, Slope: motor.SlopeFromSteps(22000, 1000, 1017)},
		},
	},
}

var gpios = []Gpio{
	{ID: GpioIMG101, R6B: 0x72, R6C: 0x1f, R6D: 0xa4, R6E: 0x80, R6F: 0xa7, RA6: 0xe0, RA7: 0xa0, RA8: 0xf0, RA9: 0x00},
	{ID: GpioOpticBook3800, R6B: 0x30, R6C: 0x01, R6D: 0x80, R6E: 0x2d, R6F: 0x80, RA6: 0x0c, RA7: 0x8f, RA8: 0x08, RA9: 0x04},
}

var layouts = []MemoryLayout{
	{
		Model:   "canon-image-formula-101",
		DRAMSel: 0x8b,
		RX:      [10]byte{0x0a, 0x15, 0x16, 0x2b, 0x2c, 0x41, 0x42, 0x4d, 0x4e, 0x59},
	},
	{
		Model:   "plustek-opticbook-3800",
		DRAMSel: 0x2a,
		RX:      [10]byte{0x0a, 0x15, 0x16, 0x2b, 0x2c, 0x41, 0x42, 0x4d, 0x4e, 0x59},
	},
}

var adiFrontend = models.Frontend{
	Mode:     models.FrontendInitial,
	Control0: 0x0080,
	Control1: 0x0003,
}

var modelList = []Model{
	{
		Name:              "canon-image-formula-101",
		Vendor:            "Canon",
		Product:           "Image Formula 101",
		VendorID:          0x1083,
		ProductID:         0x162e,
		XDPIs:             []int{1200, 600, 300, 150, 100, 75},
		YDPIs:             []int{1200, 600, 300, 150, 100, 75},
		XOffset:           17.0,
		YOffset:           8.0,
		YOffsetCalibWhite: 1.7,
		ShadingLines:      100,
		SearchLines:       100,
		IsCIS:             true,
		Flags:             FlagSearchStart | FlagShadingRepark,
		SensorID:          SensorIMG101,
		MotorID:           MotorIMG101,
		GpioID:            GpioIMG101,
		DefaultMethod:     models.MethodFlatbed,
		Frontend:          adiFrontend,
	},
	{
		Name:              "plustek-opticbook-3800",
		Vendor:            "PLUSTEK",
		Product:           "OpticBook 3800",
		VendorID:          0x07b3,
		ProductID:         0x1300,
		XDPIs:             []int{1200, 600, 300, 150, 100, 75},
		YDPIs:             []int{1200, 600, 300, 150, 100, 75},
		XOffset:           7.2,
		YOffset:           14.7,
		YOffsetCalibWhite: 0,
		LineDistance:      24,
		ShadingLines:      75,
		SearchLines:       200,
		IsCIS:             false,
		Flags:             FlagSearchStart,
		SensorID:          SensorOpticBook3800,
		MotorID:           MotorOpticBook3800,
		GpioID:            GpioOpticBook3800,
		DefaultMethod:     models.MethodFlatbed,
		Frontend:          adiFrontend,
	},
}

// Models returns the names of all known models.
func Models() []string {
	names := make([]string, 0, len(modelList))
	for _, m := range modelList {
		names = append(names, m.Name)
	}
	return names
}

// ModelByName looks a model up by its short name.
func ModelByName(name string) (Model, error) {
	for _, m := range modelList {
		if m.Name == name {
			return cloneModel(m), nil
		}
	}
	return Model{}, models.ErrNotFound("unknown model %q", name)
}

// ModelByUSB looks a model up by USB vendor/product id.
func ModelByUSB(vendor, product uint16) (Model, error) {
	for _, m := range modelList {
		if m.VendorID == vendor && m.ProductID == product {
			return cloneModel(m), nil
		}
	}
	return Model{}, models.ErrNotFound("no model for usb id %04x:%04x", vendor, product)
}

// SensorByID returns a private copy of the sensor table entry, so callers
// may update its live exposure.
func SensorByID(id SensorID) (Sensor, error) {
	for _, s := range sensors {
		if s.ID == id {
			c := s
			c.HWDPIs = slices.Clone(s.HWDPIs)
			c.CustomRegs = slices.Clone(s.CustomRegs)
			c.Profiles = slices.Clone(s.Profiles)
			return c, nil
		}
	}
	return Sensor{}, models.ErrNotFound("unknown sensor %s", id)
}

// MotorByID returns the motor table entry.
func MotorByID(id MotorID) (Motor, error) {
	for _, m := range motors {
		if m.ID == id {
			c := m
			c.Profiles = slices.Clone(m.Profiles)
			return c, nil
		}
	}
	return Motor{}, models.ErrNotFound("unknown motor %s", id)
}

// GpioByID returns the GPIO table entry.
func GpioByID(id GpioID) (Gpio, error) {
	for _, g := range gpios {
		if g.ID == id {
			return g, nil
		}
	}
	return Gpio{}, models.ErrNotFound("failed to find GPIO profile %s", id)
}

// LayoutFor returns the memory layout of the named model.
func LayoutFor(model string) (MemoryLayout, error) {
	for _, l := range layouts {
		if l.Model == model {
			return l, nil
		}
	}
	return MemoryLayout{}, models.ErrNotFound("failed to find memory layout for model %s", model)
}

func cloneModel(m Model) Model {
	m.XDPIs = slices.Clone(m.XDPIs)
	m.YDPIs = slices.Clone(m.YDPIs)
	return m
}

// Bundle is everything a device needs from the tables.
type Bundle struct {
	Model  Model
	Sensor Sensor
	Motor  Motor
	Gpio   Gpio
	Layout MemoryLayout
}

// Lookup resolves a model name into its full table bundle. A missing entry
// in any table is reported as NotFound.
func Lookup(name string) (Bundle, error) {
	m, err := ModelByName(name)
	if err != nil {
		return Bundle{}, err
	}
	s, err := SensorByID(m.SensorID)
	if err != nil {
		return Bundle{}, err
	}
	mo, err := MotorByID(m.MotorID)
	if err != nil {
		return Bundle{}, err
	}
	g, err := GpioByID(m.GpioID)
	if err != nil {
		return Bundle{}, err
	}
	l, err := LayoutFor(m.Name)
	if err != nil {
		return Bundle{}, err
	}
	return Bundle{Model: m, Sensor: s, Motor: mo, Gpio: g, Layout: l}, nil
}
