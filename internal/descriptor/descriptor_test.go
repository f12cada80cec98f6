package descriptor_test

import (
	"errors"
	"testing"

	"github.com/micro-nova/gl846-go/internal/descriptor"
	"github.com/micro-nova/gl846-go/internal/models"
)

func TestLookupAllModels(t *testing.T) {
	for _, name := range descriptor.Models() {
		b, err := descriptor.Lookup(name)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", name, err)
		}
		if b.Model.Name != name {
			t.Errorf("Lookup(%q).Model.Name = %q", name, b.Model.Name)
		}
		if len(b.Motor.Profiles) == 0 {
			t.Errorf("%s: motor has no profiles", name)
		}
		if b.Sensor.OpticalRes == 0 || b.Sensor.SensorPixels == 0 {
			t.Errorf("%s: incomplete sensor %+v", name, b.Sensor)
		}
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, err := descriptor.Lookup("no-such-scanner"); !errors.Is(err, models.ErrMissing) {
		t.Errorf("Lookup unknown model: err = %v, want NotFound", err)
	}
	if _, err := descriptor.SensorByID(descriptor.SensorUnknown); !errors.Is(err, models.ErrMissing) {
		t.Errorf("SensorByID unknown: err = %v, want NotFound", err)
	}
	if _, err := descriptor.GpioByID(descriptor.GpioUnknown); !errors.Is(err, models.ErrMissing) {
		t.Errorf("GpioByID unknown: err = %v, want NotFound", err)
	}
	if _, err := descriptor.ModelByUSB(0, 0); !errors.Is(err, models.ErrMissing) {
		t.Errorf("ModelByUSB unknown: err = %v, want NotFound", err)
	}
}

func TestRegisterHWDPI(t *testing.T) {
	s := descriptor.Sensor{OpticalRes: 1200, HWDPIs: []int{600, 1200, 2400}}
	tests := []struct {
		dpi, want int
	}{
		{75, 600},
		{600, 600},
		{601, 1200},
		{1200, 1200},
		{2000, 2400},
		{4800, 2400},
	}
	for _, tc := range tests {
		if got := s.RegisterHWDPI(tc.dpi); got != tc.want {
			t.Errorf("RegisterHWDPI(%d) = %d, want %d", tc.dpi, got, tc.want)
		}
	}
}

func TestSensorProfileSelection(t *testing.T) {
	s := descriptor.Sensor{Profiles: []descriptor.SensorProfile{
		{DPI: 600, ExposureLPeriod: 1},
		{DPI: 1200, ExposureLPeriod: 2},
	}}
	tests := []struct {
		dpi  int
		want int
	}{
		{600, 1},
		{300, 1},
		{900, 2},
		{2400, 2},
	}
	for _, tc := range tests {
		p, err := s.Profile(tc.dpi)
		if err != nil {
			t.Fatal(err)
		}
		if p.ExposureLPeriod != tc.want {
			t.Errorf("Profile(%d) picked lperiod %d, want %d", tc.dpi, p.ExposureLPeriod, tc.want)
		}
	}
	empty := descriptor.Sensor{}
	if _, err := empty.Profile(600); !errors.Is(err, models.ErrMissing) {
		t.Errorf("empty sensor: err = %v, want NotFound", err)
	}
}

func TestSensorCopyIsPrivate(t *testing.T) {
	a, err := descriptor.SensorByID(descriptor.SensorIMG101)
	if err != nil {
		t.Fatal(err)
	}
	a.Exposure.Red = 1234
	a.Profiles[0].ExposureLPeriod = 1
	b, _ := descriptor.SensorByID(descriptor.SensorIMG101)
	if b.Exposure.Red == 1234 || b.Profiles[0].ExposureLPeriod == 1 {
		t.Error("SensorByID returned shared table storage")
	}
}

func TestModelMinimums(t *testing.T) {
	m, err := descriptor.ModelByName("canon-image-formula-101")
	if err != nil {
		t.Fatal(err)
	}
	if m.MinXDPI() != 75 || m.MinYDPI() != 75 {
		t.Errorf("min dpi = %d/%d, want 75/75", m.MinXDPI(), m.MinYDPI())
	}
	if !m.IsCIS {
		t.Error("image formula 101 should be a CIS model")
	}
}
