package models

// Buttons is the front-panel button state.
type Buttons struct {
	Scan  bool `json:"scan"`
	File  bool `json:"file"`
	Email bool `json:"email"`
	Copy  bool `json:"copy"`
}

// SessionSummary is the part of a compiled session the API reports.
type SessionSummary struct {
	Params          ScanParams `json:"params"`
	HWDPI           int        `json:"hw_dpi"`
	PixelStartX     int        `json:"pixel_startx"`
	PixelEndX       int        `json:"pixel_endx"`
	OutputPixels    int        `json:"output_pixels"`
	OutputLineBytes int        `json:"output_line_bytes"`
	OutputLines     int        `json:"output_lines"`
	ColorShift      int        `json:"color_shift"`
	BufferSizeRead  int        `json:"buffer_size_read"`
}

// DeviceStatus is the device state returned by GET /api/status and pushed
// to event subscribers.
type DeviceStatus struct {
	Name         string          `json:"name"`
	Model        string          `json:"model"`
	Vendor       string          `json:"vendor"`
	ASIC         string          `json:"asic"`
	Transport    string          `json:"transport"`
	Version      int             `json:"chip_version"`
	Booted       bool            `json:"booted"`
	Motor        string          `json:"motor"`
	HeadPos      int             `json:"head_pos"`
	HeadPosKnown bool            `json:"head_pos_known"`
	Buttons      Buttons         `json:"buttons"`
	Frontend     Frontend        `json:"frontend"`
	Exposure     Exposure        `json:"exposure"`
	Settings     Settings        `json:"settings"`
	Session      *SessionSummary `json:"session,omitempty"`
	LastOp       string          `json:"last_op,omitempty"`
	LastError    string          `json:"last_error,omitempty"`
	SoftwareVer  string          `json:"version"`
}

// Config is the persisted daemon configuration. Calibration results are
// never stored here; every session calibrates from scratch.
type Config struct {
	Version   int          `json:"version"`
	Name      string       `json:"name"`
	Model     string       `json:"model"`
	Transport string       `json:"transport"`
	Device    string       `json:"device,omitempty"`
	PowerPin  string       `json:"power_pin,omitempty"`
	DumpDir   string       `json:"dump_dir,omitempty"`
	Record    bool         `json:"record"`
	Advertise bool         `json:"advertise"`
	Scan      ScanDefaults `json:"scan"`
}

// ScanDefaults are the settings applied to the device after boot.
type ScanDefaults struct {
	Method string  `json:"method"`
	Mode   string  `json:"mode"`
	XRes   int     `json:"xres"`
	YRes   int     `json:"yres"`
	Depth  int     `json:"depth"`
	Filter string  `json:"filter"`
	TLX    float64 `json:"tl_x"`
	TLY    float64 `json:"tl_y"`
	Pixels int     `json:"pixels"`
	Lines  int     `json:"lines"`
}

// Apply converts the defaults into settings, keeping base for fields left
// at their zero value.
func (d ScanDefaults) Apply(base Settings) (Settings, error) {
	s := base
	if d.Method != "" {
		m, err := ParseScanMethod(d.Method)
		if err != nil {
			return base, err
		}
		s.ScanMethod = m
	}
	if d.Mode != "" {
		m, err := ParseScanMode(d.Mode)
		if err != nil {
			return base, err
		}
		s.ScanMode = m
	}
	if d.Filter != "" {
		f, err := ParseColorFilter(d.Filter)
		if err != nil {
			return base, err
		}
		s.ColorFilter = f
	}
	if d.XRes > 0 {
		s.XRes = d.XRes
	}
	if d.YRes > 0 {
		s.YRes = d.YRes
	}
	if d.Depth > 0 {
		s.Depth = d.Depth
	}
	if d.Pixels > 0 {
		s.Pixels = d.Pixels
	}
	if d.Lines > 0 {
		s.Lines = d.Lines
	}
	s.TLX, s.TLY = d.TLX, d.TLY
	return s, nil
}

// Transport kinds.
const (
	TransportUSB    = "usb"
	TransportSerial = "serial"
	TransportMock   = "mock"
)
