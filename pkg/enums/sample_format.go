package enums

import "fmt"

// SampleFormat identifies a purchasable asset variant of a sample.
type SampleFormat string

const (
	SampleFormatWAV   SampleFormat = "wav"
	SampleFormatStems SampleFormat = "stems"
	SampleFormatMIDI  SampleFormat = "midi"
)

var validSampleFormats = []SampleFormat{
	SampleFormatWAV,
	SampleFormatStems,
	SampleFormatMIDI,
}

// String implements fmt.Stringer.
func (f SampleFormat) String() string {
	return string(f)
}

// IsValid reports whether the value is a known SampleFormat.
func (f SampleFormat) IsValid() bool {
	for _, candidate := range validSampleFormats {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseSampleFormat converts raw input into a SampleFormat.
func ParseSampleFormat(value string) (SampleFormat, error) {
	for _, candidate := range validSampleFormats {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sample format %q", value)
}
