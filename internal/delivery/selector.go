package delivery

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/wavecrate/wavecrate-backend/pkg/enums"
)

// Selection maps a sample and requested quality onto a concrete storage
// object. The key layout is fixed at ingest time: previews live under
// previews/, full-quality renditions under samples/<id>/.
type Selection struct {
	Key         string
	ContentType string
	Extension   string
}

// PreviewSelection returns the openly streamable low-quality rendition.
func PreviewSelection(sampleID uuid.UUID) Selection {
	return Selection{
		Key:         fmt.Sprintf("previews/%s.mp3", sampleID),
		ContentType: "audio/mpeg",
		Extension:   ".mp3",
	}
}

// FormatSelection returns the storage object for a purchased format. A nil
// format selects WAV.
func FormatSelection(sampleID uuid.UUID, format *enums.SampleFormat) Selection {
	chosen := enums.SampleFormatWAV
	if format != nil {
		chosen = *format
	}
	switch chosen {
	case enums.SampleFormatStems:
		return Selection{
			Key:         fmt.Sprintf("samples/%s/stems.zip", sampleID),
			ContentType: "application/zip",
			Extension:   "-stems.zip",
		}
	case enums.SampleFormatMIDI:
		return Selection{
			Key:         fmt.Sprintf("samples/%s/midi.zip", sampleID),
			ContentType: "application/zip",
			Extension:   "-midi.zip",
		}
	default:
		return Selection{
			Key:         fmt.Sprintf("samples/%s/full.wav", sampleID),
			ContentType: "audio/wav",
			Extension:   ".wav",
		}
	}
}

var filenameStrip = regexp.MustCompile(`[^a-z0-9]+`)

// Filename builds a safe attachment filename from the sample title.
func (s Selection) Filename(title string) string {
	base := filenameStrip.ReplaceAllString(strings.ToLower(title), "-")
	base = strings.Trim(base, "-")
	if base == "" {
		base = "sample"
	}
	return base + s.Extension
}
