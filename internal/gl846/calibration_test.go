package gl846_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/micro-nova/gl846-go/internal/gl846"
	"github.com/micro-nova/gl846-go/internal/hardware"
	"github.com/micro-nova/gl846-go/internal/models"
)

// exposureSampler answers 16-bit planar captures whose level is ten times
// the programmed exposure of each channel.
func exposureSampler(sc hardware.SampleContext, n int) []byte {
	exp := [3]hardware.Register{hardware.RegExpR, hardware.RegExpG, hardware.RegExpB}
	pixels := n / 6
	out := make([]byte, n)
	for ch, r := range exp {
		e := int(sc.Regs[r]) | int(sc.Regs[r+1])<<8
		v := min(e*10, 0xffff)
		for i := 0; i < pixels; i++ {
			off := 2*i + 2*ch*pixels
			out[off] = byte(v)
			out[off+1] = byte(v >> 8)
		}
	}
	return out
}

func TestLEDCalibrationConverges(t *testing.T) {
	dev, m := newDevice(t, img101)
	m.SetSampler(exposureSampler)

	got, err := gl846.New().LEDCalibration(context.Background(), dev)
	if err != nil {
		t.Fatalf("LEDCalibration: %v", err)
	}
	// 0x400 gives 10240; one rescale to the 29000 floor
	want := models.Exposure{Red: 2900, Green: 2900, Blue: 2900}
	if got != want {
		t.Errorf("exposure = %+v, want %+v", got, want)
	}
	if m.Captures() != 2 {
		t.Errorf("captures = %d, want 2", m.Captures())
	}
	if v, _ := dev.Regs.Get16(hardware.RegExpG); v != 2900 {
		t.Errorf("committed green exposure = %d, want 2900", v)
	}
	if dev.Sensor.Exposure != want {
		t.Error("calibrated exposure should become the live sensor exposure")
	}
	if dev.CalibRegs.Value(hardware.Reg02)&hardware.Reg02Mtrpwr != 0 {
		t.Error("motor must stay off during LED calibration")
	}
}

func TestLEDCalibrationBestEffort(t *testing.T) {
	dev, m := newDevice(t, img101)
	m.SetFill(0)

	got, err := gl846.New().LEDCalibration(context.Background(), dev)
	if err != nil {
		t.Fatalf("LEDCalibration: %v", err)
	}
	if m.Captures() != 100 {
		t.Errorf("captures = %d, want the 100 turn cap", m.Captures())
	}
	want := models.Exposure{Red: 0xffff, Green: 0xffff, Blue: 0xffff}
	if got != want {
		t.Errorf("exposure = %+v, want %+v", got, want)
	}
}

func TestLEDCalibrationTransportError(t *testing.T) {
	dev, m := newDevice(t, img101)
	m.SetFailSamples(true)

	_, err := gl846.New().LEDCalibration(context.Background(), dev)
	if !errors.Is(err, models.ErrTransportFailed) {
		t.Fatalf("err = %v, want transport error", err)
	}
	if m.GetReg(hardware.Reg40)&hardware.Reg40Dataenb != 0 {
		t.Error("failed capture should be stopped")
	}
}

// saturatingSampler models a black level that follows the channel-1
// offset up to a ceiling.
func saturatingSampler(limit int) hardware.Sampler {
	return func(sc hardware.SampleContext, n int) []byte {
		v := byte(min(int(sc.Frontend[0x06]), limit))
		out := make([]byte, n)
		for i := range out {
			out[i] = v
		}
		return out
	}
}

func TestOffsetCalibration(t *testing.T) {
	dev, m := newDevice(t, img101)
	adjustableFrontend(t, dev, m)
	m.SetSampler(saturatingSampler(100))

	if err := gl846.New().OffsetCalibration(context.Background(), dev); err != nil {
		t.Fatalf("OffsetCalibration: %v", err)
	}
	// bounds 10/255, then 132 71 101 86 93 97 99 100
	if got := m.Captures(); got != 10 {
		t.Errorf("captures = %d, want 10", got)
	}
	for ch, o := range dev.Frontend.Offset {
		if o != 100 {
			t.Errorf("offset %d = %d, want 100", ch, o)
		}
	}
	for ch, g := range dev.Frontend.Gain {
		if g != 0 {
			t.Errorf("gain %d = %d, want 0", ch, g)
		}
	}
	if m.Frontend(0x06) != 100 {
		t.Errorf("programmed offset = %d, want 100", m.Frontend(0x06))
	}
	if dev.CalibRegs.Value(hardware.Reg02)&hardware.Reg02Mtrpwr != 0 {
		t.Error("motor must stay off during offset calibration")
	}
}

func TestOffsetCalibrationPassCap(t *testing.T) {
	dev, m := newDevice(t, img101)
	adjustableFrontend(t, dev, m)
	// a level that grows with the offset keeps moving the bottom bound
	m.SetSampler(saturatingSampler(255))

	if err := gl846.New().OffsetCalibration(context.Background(), dev); err != nil {
		t.Fatalf("OffsetCalibration: %v", err)
	}
	if got := m.Captures(); got > 2+32 {
		t.Errorf("captures = %d, exceeds the pass cap", got)
	}
	if o := dev.Frontend.Offset[1]; o < 253 {
		t.Errorf("offset = %d, want the search to end next to the top bound", o)
	}
}

// Only a midpoint level equal to the top bound's level moves the top
// bound. Any other level moves the bottom bound, even one brighter than the
// top, so a non-monotonic response steers the search upwards.
func TestOffsetCalibrationEqualTopMovesTop(t *testing.T) {
	dev, m := newDevice(t, img101)
	adjustableFrontend(t, dev, m)
	var sampled []int
	m.SetSampler(func(sc hardware.SampleContext, n int) []byte {
		offset := int(sc.Frontend[0x06])
		sampled = append(sampled, offset)
		v := byte(200)
		if offset >= 190 {
			v = 50
		}
		out := make([]byte, n)
		for i := range out {
			out[i] = v
		}
		return out
	})

	if err := gl846.New().OffsetCalibration(context.Background(), dev); err != nil {
		t.Fatalf("OffsetCalibration: %v", err)
	}
	// 132 reads brighter than the top bound yet raises the bottom bound
	want := []int{10, 255, 132, 193, 162, 177, 185, 189, 191, 190}
	if !slices.Equal(sampled, want) {
		t.Errorf("sampled offsets = %v, want %v", sampled, want)
	}
	if o := dev.Frontend.Offset[0]; o != 190 {
		t.Errorf("offset = %d, want 190", o)
	}
}

func TestCalibrationSkippedForFixedFrontend(t *testing.T) {
	dev, m := newDevice(t, img101)
	ctx := context.Background()
	cmd := gl846.New()

	if err := cmd.OffsetCalibration(ctx, dev); err != nil {
		t.Fatalf("OffsetCalibration: %v", err)
	}
	if err := cmd.CoarseGainCalibration(ctx, dev, 600); err != nil {
		t.Fatalf("CoarseGainCalibration: %v", err)
	}
	if m.Captures() != 0 {
		t.Errorf("captures = %d, want none", m.Captures())
	}
	if dev.Frontend != dev.FrontendInitial {
		t.Error("frontend should be untouched")
	}
}

func TestGainCode(t *testing.T) {
	tests := []struct {
		target float64
		mean   int
		want   uint8
	}{
		{200, 200, 75},
		{180, 100, 167},
		{200, 1000, 0},
		{200, 0, 255},
		{10000, 1, 255},
	}
	for _, tt := range tests {
		if got := gl846.GainCode(tt.target, tt.mean); got != tt.want {
			t.Errorf("GainCode(%v, %d) = %d, want %d", tt.target, tt.mean, got, tt.want)
		}
	}
}

func TestCoarseGainCalibrationCIS(t *testing.T) {
	dev, m := newDevice(t, img101)
	adjustableFrontend(t, dev, m)
	levels := [3]byte{100, 150, 200}
	m.SetSampler(func(sc hardware.SampleContext, n int) []byte {
		pixels := n / 30
		out := make([]byte, n)
		for ch, v := range levels {
			for i := 0; i < pixels; i++ {
				out[ch*pixels+i] = v
			}
		}
		return out
	})

	if err := gl846.New().CoarseGainCalibration(context.Background(), dev, 600); err != nil {
		t.Fatalf("CoarseGainCalibration: %v", err)
	}
	// 75 dpi is below the optical resolution, so the target is 0.9*200:
	// codes 167, 109, 51, and a CIS sensor uses the lowest for all
	for ch, g := range dev.Frontend.Gain {
		if g != 51 {
			t.Errorf("gain %d = %d, want 51", ch, g)
		}
	}
	if m.GetReg(hardware.Reg40)&(hardware.Reg40Dataenb|hardware.Reg40Motmflg) != 0 {
		t.Error("gain calibration should end stopped")
	}
	if !dev.HeadPosKnown || dev.HeadPos != 0 {
		t.Error("gain calibration should end parked")
	}
}

func TestCoarseGainCalibrationCCD(t *testing.T) {
	dev, m := newDevice(t, opticbook)
	adjustableFrontend(t, dev, m)
	dev.Settings.XRes = 1200
	levels := [3]byte{100, 160, 200}
	m.SetSampler(func(sc hardware.SampleContext, n int) []byte {
		out := make([]byte, n)
		for i := range out {
			out[i] = levels[i%3]
		}
		return out
	})

	if err := gl846.New().CoarseGainCalibration(context.Background(), dev, 1200); err != nil {
		t.Fatalf("CoarseGainCalibration: %v", err)
	}
	// target 200: gains 2.0, 1.25, 1.0
	want := [3]uint8{179, 116, 75}
	if dev.Frontend.Gain != want {
		t.Errorf("gain = %v, want %v", dev.Frontend.Gain, want)
	}
}

func TestSearchStrip(t *testing.T) {
	tests := []struct {
		name     string
		fill     byte
		forward  bool
		black    bool
		wantErr  bool
		captures int
	}{
		{"white forward on white", 0xff, true, false, false, 1},
		{"white backward on white", 0xff, false, false, false, 1},
		{"black forward on black", 0x00, true, true, false, 1},
		{"black backward on white", 0xff, false, true, true, 20},
		{"white forward on black", 0x00, true, false, true, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, m := newDevice(t, img101)
			m.SetFill(tt.fill)

			err := gl846.New().SearchStrip(context.Background(), dev, tt.forward, tt.black)
			if tt.wantErr {
				if !errors.Is(err, models.ErrNotSupported) {
					t.Errorf("err = %v, want unsupported", err)
				}
			} else if err != nil {
				t.Errorf("SearchStrip: %v", err)
			}
			if got := m.Captures(); got != tt.captures {
				t.Errorf("captures = %d, want %d", got, tt.captures)
			}
		})
	}
}

func TestSearchStripFindsLaterPass(t *testing.T) {
	dev, m := newDevice(t, img101)
	m.SetSampler(func(sc hardware.SampleContext, n int) []byte {
		out := make([]byte, n)
		v := byte(0xff)
		if sc.Capture == 3 {
			v = 0x10
		}
		for i := range out {
			out[i] = v
		}
		return out
	})

	if err := gl846.New().SearchStrip(context.Background(), dev, true, true); err != nil {
		t.Fatalf("SearchStrip: %v", err)
	}
	if m.Captures() != 4 {
		t.Errorf("captures = %d, want 4", m.Captures())
	}
	if m.GetReg(hardware.Reg02)&hardware.Reg02Mtrrev != 0 {
		t.Error("forward search must not reverse the motor")
	}
}

func TestSearchStripToleratesFewWrongPixels(t *testing.T) {
	dev, m := newDevice(t, img101)
	// 2 % dark pixels in a white area
	m.SetSampler(func(sc hardware.SampleContext, n int) []byte {
		out := make([]byte, n)
		for i := range out {
			if i%50 == 0 {
				out[i] = 0
			} else {
				out[i] = 0xff
			}
		}
		return out
	})

	if err := gl846.New().SearchStrip(context.Background(), dev, false, false); err != nil {
		t.Fatalf("SearchStrip: %v", err)
	}
	if m.GetReg(hardware.Reg02)&hardware.Reg02Mtrrev == 0 {
		t.Error("backward search should reverse the motor")
	}
}
