package cache

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	// Decoders for images served under a png or jpg name in another format.
	_ "image/gif"
)

// normalizer turns a fetched body into the bytes stored for an extension.
type normalizer func(body []byte, w io.Writer) error

// normalizerFor returns how bodies with ext are persisted. Raster images are
// decoded and re-encoded so a truncated or mislabeled body never reaches the
// cache; everything else is copied as is.
func normalizerFor(ext string) normalizer {
	switch ext {
	case "png":
		return reencode(func(w io.Writer, img image.Image) error {
			return png.Encode(w, img)
		})
	case "jpg", "jpeg":
		return reencode(func(w io.Writer, img image.Image) error {
			return jpeg.Encode(w, img, &jpeg.Options{Quality: 100})
		})
	default:
		return copyBody
	}
}

func copyBody(body []byte, w io.Writer) error {
	_, err := w.Write(body)
	return err
}

func reencode(encode func(io.Writer, image.Image) error) normalizer {
	return func(body []byte, w io.Writer) error {
		detected := mimetype.Detect(body)
		if !strings.HasPrefix(detected.String(), "image/") {
			return fmt.Errorf("%w: body is %s", errDecode, detected.String())
		}
		img, _, err := image.Decode(bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("%w: %v", errDecode, err)
		}
		return encode(w, img)
	}
}
