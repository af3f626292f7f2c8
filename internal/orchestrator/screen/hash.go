package screen

import (
	"bytes"
	"image"
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder

	"github.com/corona10/goimagehash"

	apperrors "github.com/GriffinCanCode/screen-narrator/internal/errors"
)

// Hasher computes perceptual fingerprints for encoded images.
type Hasher struct{}

// Hash decodes data and returns its pHash along with the decoded format name.
func (Hasher) Hash(data []byte) (*goimagehash.ImageHash, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", apperrors.Wrap(err, apperrors.CodeCaptureFailed, "decode frame")
	}
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return nil, "", apperrors.Wrap(err, apperrors.CodeCaptureFailed, "hash frame")
	}
	return hash, format, nil
}
