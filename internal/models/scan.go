package models

import "strings"

// ScanFlag selects behavioural toggles for a single scan-like operation.
type ScanFlag uint32

const (
	FlagNone                  ScanFlag = 0
	FlagDisableShading        ScanFlag = 1 << 0
	FlagDisableGamma          ScanFlag = 1 << 1
	FlagSingleLine            ScanFlag = 1 << 2
	FlagFeeding               ScanFlag = 1 << 3
	FlagIgnoreLineDistance    ScanFlag = 1 << 4
	FlagDisableBufferFullMove ScanFlag = 1 << 5
	FlagAutoGoHome            ScanFlag = 1 << 6
	FlagDisableLamp           ScanFlag = 1 << 7
)

// Has reports whether all bits of f are set.
func (s ScanFlag) Has(f ScanFlag) bool { return s&f == f }

var flagNames = []struct {
	flag ScanFlag
	name string
}{
	{FlagDisableShading, "disable_shading"},
	{FlagDisableGamma, "disable_gamma"},
	{FlagSingleLine, "single_line"},
	{FlagFeeding, "feeding"},
	{FlagIgnoreLineDistance, "ignore_line_distance"},
	{FlagDisableBufferFullMove, "disable_buffer_full_move"},
	{FlagAutoGoHome, "auto_go_home"},
	{FlagDisableLamp, "disable_lamp"},
}

func (s ScanFlag) String() string {
	if s == FlagNone {
		return "none"
	}
	var names []string
	for _, f := range flagNames {
		if s.Has(f.flag) {
			names = append(names, f.name)
		}
	}
	return strings.Join(names, "|")
}

// ParseScanFlags converts flag names (as produced by String) into a bitmask.
// Unknown names are reported through ok=false.
func ParseScanFlags(names []string) (flags ScanFlag, ok bool) {
	ok = true
	for _, n := range names {
		found := false
		for _, f := range flagNames {
			if f.name == n {
				flags |= f.flag
				found = true
				break
			}
		}
		if !found {
			ok = false
		}
	}
	return flags, ok
}

// ColorFilter selects the channel captured by a single-channel scan.
type ColorFilter uint8

const (
	FilterRed ColorFilter = iota
	FilterGreen
	FilterBlue
	FilterNone
)

func (c ColorFilter) String() string {
	switch c {
	case FilterRed:
		return "red"
	case FilterGreen:
		return "green"
	case FilterBlue:
		return "blue"
	default:
		return "none"
	}
}

// ScanMode is the requested colour mode.
type ScanMode uint8

const (
	ModeLineart ScanMode = iota
	ModeHalftone
	ModeGray
	ModeColor
)

func (m ScanMode) String() string {
	switch m {
	case ModeLineart:
		return "lineart"
	case ModeHalftone:
		return "halftone"
	case ModeGray:
		return "gray"
	default:
		return "color"
	}
}

// Channels returns the channel count captured for the mode.
func (m ScanMode) Channels() int {
	if m == ModeColor {
		return 3
	}
	return 1
}

// ScanMethod selects the optical path.
type ScanMethod uint8

const (
	MethodFlatbed ScanMethod = iota
	MethodTransparency
)

func (m ScanMethod) String() string {
	if m == MethodTransparency {
		return "transparency"
	}
	return "flatbed"
}

// ScanParams describes one scan-like operation (real scan, calibration
// capture, strip search or parking move).
type ScanParams struct {
	XRes            int         `json:"xres"`
	YRes            int         `json:"yres"`
	StartX          int         `json:"startx"` // optical resolution pixels
	StartY          int         `json:"starty"` // motor base steps
	Pixels          int         `json:"pixels"`
	RequestedPixels int         `json:"requested_pixels,omitempty"`
	Lines           int         `json:"lines"`
	Depth           int         `json:"depth"`
	Channels        int         `json:"channels"`
	ScanMethod      ScanMethod  `json:"scan_method"`
	ScanMode        ScanMode    `json:"scan_mode"`
	ColorFilter     ColorFilter `json:"color_filter"`
	Flags           ScanFlag    `json:"flags"`
}

// Validate checks the geometry invariants every compiled session relies on.
func (p ScanParams) Validate() error {
	switch {
	case p.XRes <= 0 || p.YRes <= 0:
		return ErrInvalidArgument("resolution must be positive (xres=%d yres=%d)", p.XRes, p.YRes)
	case p.Pixels <= 0:
		return ErrInvalidArgument("pixel count must be positive (%d)", p.Pixels)
	case p.Lines < 0:
		return ErrInvalidArgument("line count must not be negative (%d)", p.Lines)
	case p.StartX < 0 || p.StartY < 0:
		return ErrInvalidArgument("scan origin must not be negative (%d,%d)", p.StartX, p.StartY)
	case p.Channels != 1 && p.Channels != 3:
		return ErrInvalidArgument("channel count must be 1 or 3 (%d)", p.Channels)
	case p.Depth != 8 && p.Depth != 16:
		return ErrInvalidArgument("bit depth must be 8 or 16 (%d)", p.Depth)
	case p.RequestedPixels < 0:
		return ErrInvalidArgument("requested pixel count must not be negative (%d)", p.RequestedPixels)
	}
	return nil
}

// MMPerInch converts millimetre offsets into dots.
const MMPerInch = 25.4

// Settings are the user-level scan settings the device was last configured
// with. Geometry is in millimetres, matching the front-end conventions.
type Settings struct {
	ScanMethod      ScanMethod  `json:"scan_method"`
	ScanMode        ScanMode    `json:"scan_mode"`
	XRes            int         `json:"xres"`
	YRes            int         `json:"yres"`
	TLX             float64     `json:"tl_x"`
	TLY             float64     `json:"tl_y"`
	Lines           int         `json:"lines"`
	Pixels          int         `json:"pixels"`
	RequestedPixels int         `json:"requested_pixels"`
	Depth           int         `json:"depth"`
	ColorFilter     ColorFilter `json:"color_filter"`
	Threshold       uint8       `json:"threshold"`
}

// Channels returns the channel count for the configured mode.
func (s Settings) Channels() int { return s.ScanMode.Channels() }
