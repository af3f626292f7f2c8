package screen

import (
	"time"

	"github.com/corona10/goimagehash"
	"github.com/google/uuid"
)

// Frame is one captured image of the selected region.
type Frame struct {
	ID          uuid.UUID
	Image       []byte
	Format      string // "png" or "jpeg", as decoded
	CapturedAt  time.Time
	Region      Region
	Fingerprint *goimagehash.ImageHash
}

// MIMEType returns the media type of the image payload.
func (f Frame) MIMEType() string {
	switch f.Format {
	case "jpeg", "gif":
		return "image/" + f.Format
	default:
		return "image/png"
	}
}
