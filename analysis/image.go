package analysis

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"

	"github.com/croscope/croscope/models"
)

// NormalizeImage prepares captured screenshot bytes for the model transport.
//
// Full-page screenshots of long landing pages routinely exceed the pixel
// ceiling multimodal APIs enforce, so any image whose larger dimension (width
// or height — constraining only height under-constrains very wide pages)
// exceeds maxDim is downscaled to fit within maxDim×maxDim with Lanczos
// resampling, preserving aspect ratio. Downscaled or exotically-encoded
// images are re-encoded as PNG, which also collapses palette and other
// non-standard color modes that some transports reject. An image already
// within bounds and in a transport-friendly format passes through unchanged.
//
// Returns the prepared bytes and their MIME type. Malformed input fails with
// IMAGE_DECODE_FAILED; the caller records it as a per-page capture failure.
func NormalizeImage(raw []byte, maxDim int) ([]byte, string, error) {
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", models.NewAnalysisError(
			models.ErrCodeImageDecode,
			"failed to decode screenshot bytes",
			err,
		)
	}

	bounds := img.Bounds()
	within := bounds.Dx() <= maxDim && bounds.Dy() <= maxDim

	if within && (format == "png" || format == "jpeg") {
		return raw, "image/" + format, nil
	}

	if !within {
		// Fit only ever shrinks; the constrained axis lands on maxDim and
		// the other follows the aspect ratio.
		img = imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, "", models.NewAnalysisError(
			models.ErrCodeImageDecode,
			"failed to re-encode screenshot",
			err,
		)
	}
	return buf.Bytes(), "image/png", nil
}
