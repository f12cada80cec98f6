package models

// SettingsUpdate is the PATCH body for the scan settings. Nil fields are
// left unchanged.
type SettingsUpdate struct {
	Method *string  `json:"method,omitempty"`
	Mode   *string  `json:"mode,omitempty"`
	XRes   *int     `json:"xres,omitempty"`
	YRes   *int     `json:"yres,omitempty"`
	Depth  *int     `json:"depth,omitempty"`
	Filter *string  `json:"filter,omitempty"`
	TLX    *float64 `json:"tl_x,omitempty"`
	TLY    *float64 `json:"tl_y,omitempty"`
	Pixels *int     `json:"pixels,omitempty"`
	Lines  *int     `json:"lines,omitempty"`
}

// Merge applies the update to s.
func (u SettingsUpdate) Merge(s Settings) (Settings, error) {
	if u.Method != nil {
		m, err := ParseScanMethod(*u.Method)
		if err != nil {
			return s, err
		}
		s.ScanMethod = m
	}
	if u.Mode != nil {
		m, err := ParseScanMode(*u.Mode)
		if err != nil {
			return s, err
		}
		s.ScanMode = m
	}
	if u.Filter != nil {
		f, err := ParseColorFilter(*u.Filter)
		if err != nil {
			return s, err
		}
		s.ColorFilter = f
	}
	if u.XRes != nil {
		s.XRes = *u.XRes
	}
	if u.YRes != nil {
		s.YRes = *u.YRes
	}
	if u.Depth != nil {
		s.Depth = *u.Depth
	}
	if u.TLX != nil {
		s.TLX = *u.TLX
	}
	if u.TLY != nil {
		s.TLY = *u.TLY
	}
	if u.Pixels != nil {
		s.Pixels = *u.Pixels
	}
	if u.Lines != nil {
		s.Lines = *u.Lines
	}
	return s, nil
}

// CompileRequest is the POST body for compiling an arbitrary scan-like
// operation into a scratch register image.
type CompileRequest struct {
	Params ScanParams `json:"params"`
	Flags  []string   `json:"flags,omitempty"`
}

// GainRequest selects the resolution for coarse gain calibration.
type GainRequest struct {
	DPI int `json:"dpi"`
}

// HomeRequest controls whether the park call waits for the home sensor.
type HomeRequest struct {
	Wait bool `json:"wait"`
}

// FeedRequest moves the head forward by Steps base-resolution steps.
type FeedRequest struct {
	Steps int `json:"steps"`
}

// StripRequest selects the strip search direction and colour.
type StripRequest struct {
	Forward bool `json:"forward"`
	Black   bool `json:"black"`
}

// RegisterWrite is the PUT body for a single register write.
type RegisterWrite struct {
	Value byte `json:"value"`
}

// RegisterValue is one register in API responses.
type RegisterValue struct {
	Addr  uint16 `json:"addr"`
	Value byte   `json:"value"`
}

// ExposureResult is the response of LED calibration.
type ExposureResult struct {
	Exposure Exposure `json:"exposure"`
}

// BootRequest selects a cold boot, which resets the ASIC first.
type BootRequest struct {
	Cold bool `json:"cold"`
}
