package models

// Scan enums travel as their names in JSON.

func (m ScanMethod) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *ScanMethod) UnmarshalText(b []byte) error {
	v, err := ParseScanMethod(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

func (m ScanMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *ScanMode) UnmarshalText(b []byte) error {
	v, err := ParseScanMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

func (c ColorFilter) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *ColorFilter) UnmarshalText(b []byte) error {
	v, err := ParseColorFilter(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
