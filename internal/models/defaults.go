package models

// ConfigVersion is the current config document version.
const ConfigVersion = 2

// DefaultConfig is used when no config file exists: a mock IMG101 with
// colour settings at 300 dpi.
func DefaultConfig() Config {
	return Config{
		Version:   ConfigVersion,
		Name:      "gl846",
		Model:     "canon-image-formula-101",
		Transport: TransportMock,
		Advertise: true,
		Scan: ScanDefaults{
			Method: "flatbed",
			Mode:   "color",
			XRes:   300,
			YRes:   300,
			Depth:  8,
			Filter: "red",
		},
	}
}

// ParseScanMode accepts the names produced by ScanMode.String.
func ParseScanMode(s string) (ScanMode, error) {
	switch s {
	case "lineart":
		return ModeLineart, nil
	case "halftone":
		return ModeHalftone, nil
	case "gray":
		return ModeGray, nil
	case "color":
		return ModeColor, nil
	}
	return 0, ErrInvalidArgument("unknown scan mode %q", s)
}

// ParseColorFilter accepts the names produced by ColorFilter.String.
func ParseColorFilter(s string) (ColorFilter, error) {
	switch s {
	case "red":
		return FilterRed, nil
	case "green":
		return FilterGreen, nil
	case "blue":
		return FilterBlue, nil
	case "none":
		return FilterNone, nil
	}
	return 0, ErrInvalidArgument("unknown color filter %q", s)
}

// ParseScanMethod accepts the names produced by ScanMethod.String.
func ParseScanMethod(s string) (ScanMethod, error) {
	switch s {
	case "flatbed":
		return MethodFlatbed, nil
	case "transparency":
		return MethodTransparency, nil
	}
	return 0, ErrInvalidArgument("unknown scan method %q", s)
}
