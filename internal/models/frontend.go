package models

// FrontendMode distinguishes the power-on frontend profile from the one the
// calibration procedures adjust.
type FrontendMode uint8

const (
	FrontendInitial FrontendMode = iota
	FrontendRuntime
)

func (m FrontendMode) String() string {
	if m == FrontendInitial {
		return "initial"
	}
	return "runtime"
}

// Frontend holds the analog front-end programming: two control registers
// plus per-channel gain and offset codes.
type Frontend struct {
	Mode     FrontendMode `json:"mode"`
	Control0 uint16       `json:"control0"`
	Control1 uint16       `json:"control1"`
	Gain     [3]uint8     `json:"gain"`
	Offset   [3]uint8     `json:"offset"`
}

// SetGain sets the gain code of channel ch (0-2) and marks the profile as
// runtime-adjusted.
func (f *Frontend) SetGain(ch int, v uint8) {
	f.Gain[ch] = v
	f.Mode = FrontendRuntime
}

// SetOffset sets the offset code of channel ch (0-2) and marks the profile
// as runtime-adjusted.
func (f *Frontend) SetOffset(ch int, v uint8) {
	f.Offset[ch] = v
	f.Mode = FrontendRuntime
}

// SetOffsets sets all three offsets to v.
func (f *Frontend) SetOffsets(v uint8) {
	for ch := range f.Offset {
		f.SetOffset(ch, v)
	}
}

// Exposure is a per-channel LED exposure triple.
type Exposure struct {
	Red   uint16 `json:"red"`
	Green uint16 `json:"green"`
	Blue  uint16 `json:"blue"`
}

// IsZero reports whether no channel has an exposure set.
func (e Exposure) IsZero() bool { return e.Red == 0 && e.Green == 0 && e.Blue == 0 }
