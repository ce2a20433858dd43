package signature

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"strings"

	"golang.org/x/image/draw"
)

// Default thumbnail bounds for the notification channel.
const (
	DefaultThumbWidth  = 200
	DefaultThumbHeight = 100
)

const dataURLPrefix = "data:image/png;base64,"

// Artifact is an encoded signature image.
type Artifact struct {
	Data   []byte
	Width  int
	Height int
}

// DataURL renders the artifact as a base64 PNG data URL.
func (a Artifact) DataURL() string {
	return dataURLPrefix + base64.StdEncoding.EncodeToString(a.Data)
}

// DecodeError reports that a thumbnail source could not be read as an image.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "signature thumbnail could not be created: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }

var errNotDataURL = errors.New("not a base64 image data URL")

// ParseDataURL extracts the image bytes from a "data:image/...;base64," URL.
func ParseDataURL(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "data:image/") {
		return nil, errNotDataURL
	}
	i := strings.Index(s, ";base64,")
	if i < 0 {
		return nil, errNotDataURL
	}
	b, err := base64.StdEncoding.DecodeString(s[i+len(";base64,"):])
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return b, nil
}

// EncodeFull returns a lossless PNG of the raster at its physical resolution.
func EncodeFull(s *Surface) (Artifact, error) {
	img := s.Image()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Artifact{}, fmt.Errorf("encode png: %w", err)
	}
	b := img.Bounds()
	return Artifact{Data: buf.Bytes(), Width: b.Dx(), Height: b.Dy()}, nil
}

// ThumbnailSize returns the dimensions of a w×h image scaled down to fit
// within maxW×maxH. Images that already fit keep their size.
func ThumbnailSize(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	scale := math.Min(1, math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h)))
	tw := int(math.Round(float64(w) * scale))
	th := int(math.Round(float64(h) * scale))
	return max(tw, 1), max(th, 1)
}

// EncodeThumbnail decodes source and re-encodes it scaled to fit maxW×maxH.
// Decoding runs off the caller's goroutine; cancelling ctx abandons the wait.
func EncodeThumbnail(ctx context.Context, source []byte, maxW, maxH int) (Artifact, error) {
	if maxW <= 0 || maxH <= 0 {
		return Artifact{}, fmt.Errorf("thumbnail bounds must be positive, got %dx%d", maxW, maxH)
	}

	type result struct {
		a   Artifact
		err error
	}
	done := make(chan result, 1)
	go func() {
		a, err := thumbnail(source, maxW, maxH)
		done <- result{a, err}
	}()

	select {
	case <-ctx.Done():
		return Artifact{}, ctx.Err()
	case r := <-done:
		return r.a, r.err
	}
}

func thumbnail(source []byte, maxW, maxH int) (Artifact, error) {
	src, _, err := image.Decode(bytes.NewReader(source))
	if err != nil {
		return Artifact{}, &DecodeError{Err: err}
	}
	sb := src.Bounds()
	tw, th := ThumbnailSize(sb.Dx(), sb.Dy(), maxW, maxH)
	if tw == 0 {
		return Artifact{}, &DecodeError{Err: errors.New("empty image")}
	}

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return Artifact{}, fmt.Errorf("encode png: %w", err)
	}
	return Artifact{Data: buf.Bytes(), Width: tw, Height: th}, nil
}
