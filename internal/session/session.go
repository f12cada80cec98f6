// Package session derives the geometry of one scan-like operation from its
// parameters and the sensor/model tables. A Session is computed once and
// then only read.
package session

import (
	"github.com/micro-nova/gl846-go/internal/descriptor"
	"github.com/micro-nova/gl846-go/internal/models"
)

// Session is the compiled view of a scan request.
type Session struct {
	Params models.ScanParams `json:"params"`

	HWDPI                    int   `json:"hw_dpi"`
	OpticalResolution        int   `json:"optical_resolution"`
	PixelStartX              int   `json:"pixel_startx"`
	PixelEndX                int   `json:"pixel_endx"`
	OutputPixels             int   `json:"output_pixels"`
	OutputLineBytesRaw       int   `json:"output_line_bytes_raw"`
	OutputLineBytesRequested int   `json:"output_line_bytes_requested"`
	ColorShift               int   `json:"color_shift"`
	OutputLineCount          int   `json:"output_line_count"`
	BufferSizeRead           int   `json:"buffer_size_read"`
	SegmentOrder             []int `json:"segment_order,omitempty"`
	EnableLEDAdd             bool  `json:"enable_ledadd"`

	computed bool
}

// Compute validates params and derives the session. The result is ready for
// register compilation.
func Compute(params models.ScanParams, sensor *descriptor.Sensor, model *descriptor.Model) (Session, error) {
	if err := params.Validate(); err != nil {
		return Session{}, err
	}
	if sensor.OpticalRes <= 0 {
		return Session{}, models.ErrInvalidArgument("sensor %s has no optical resolution", sensor.ID)
	}

	s := Session{Params: params}
	ratio := sensor.PixelRatio()
	s.HWDPI = sensor.RegisterHWDPI(params.XRes * ratio)
	s.OpticalResolution = sensor.OpticalRes / ratio

	s.PixelStartX = params.StartX*s.HWDPI/sensor.OpticalRes + sensor.DummyPixel
	s.PixelEndX = s.PixelStartX + params.Pixels*s.HWDPI/params.XRes
	if s.PixelEndX < s.PixelStartX {
		return Session{}, models.ErrInvalidArgument("pixel window end %d before start %d", s.PixelEndX, s.PixelStartX)
	}

	s.OutputPixels = params.Pixels
	requested := params.RequestedPixels
	if requested == 0 {
		requested = params.Pixels
	}
	s.OutputLineBytesRaw = params.Pixels * params.Channels * params.Depth / 8
	s.OutputLineBytesRequested = requested * params.Channels * params.Depth / 8

	if params.Channels == 3 && !params.Flags.Has(models.FlagIgnoreLineDistance) {
		s.ColorShift = model.LineDistance * params.YRes / sensor.OpticalRes
	}
	s.OutputLineCount = params.Lines + s.ColorShift
	s.BufferSizeRead = s.OutputLineBytesRaw * params.Channels * max(s.OutputLineCount, 1)

	if p, err := sensor.Profile(s.HWDPI); err == nil {
		s.SegmentOrder = p.SegmentOrder
	}
	s.EnableLEDAdd = model.IsCIS && params.Channels == 1 && params.ColorFilter == models.FilterNone

	s.computed = true
	return s, nil
}

// Computed reports whether the session went through Compute.
func (s *Session) Computed() bool { return s.computed }

// AssertComputed fails for sessions that were never computed.
func (s *Session) AssertComputed() error {
	if !s.computed {
		return models.ErrInvalidArgument("scan session used before it was computed")
	}
	return nil
}

// MaxWords returns the MAXWD register value: the raw line size times the
// channel count in 4-byte words.
func (s *Session) MaxWords() uint32 {
	return uint32(s.OutputLineBytesRaw*s.Params.Channels) >> 2
}

// TotalBytesToRead is what a reader should expect from a full scan.
func (s *Session) TotalBytesToRead() int {
	return s.OutputLineBytesRequested * s.Params.Lines
}
