// Package lvgl encodes raster images into the LVGL v9 binary image format
// with RGB565 pixel data, the layout read by lv_image from SD storage.
package lvgl

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
)

// LVGL v9 image header layout: a magic byte, a color-format byte and five
// little-endian 16-bit fields (flags, width, height, stride, reserved).
const (
	Magic             = 0x19
	ColorFormatRGB565 = 0x12
	HeaderSize        = 12

	// MaxDim is the largest width or height the 16-bit header fields can
	// describe.
	MaxDim = 0xFFFF
)

var (
	ErrInvalidImage  = errors.New("invalid image")
	ErrInvalidHeader = errors.New("invalid image header")
)

// Header is the fixed 12-byte preamble of an encoded image.
type Header struct {
	Magic       byte
	ColorFormat byte
	Flags       uint16
	Width       uint16
	Height      uint16
	Stride      uint16
	Reserved    uint16
}

// DataSize returns the expected pixel-data length following the header.
func (h Header) DataSize() int {
	return int(h.Width) * int(h.Height) * 2
}

func (h Header) append(dst []byte) []byte {
	dst = append(dst, h.Magic, h.ColorFormat)
	dst = binary.LittleEndian.AppendUint16(dst, h.Flags)
	dst = binary.LittleEndian.AppendUint16(dst, h.Width)
	dst = binary.LittleEndian.AppendUint16(dst, h.Height)
	dst = binary.LittleEndian.AppendUint16(dst, h.Stride)
	dst = binary.LittleEndian.AppendUint16(dst, h.Reserved)
	return dst
}

// ParseHeader decodes and validates the fixed preamble of an encoded image.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes, need %d", ErrInvalidHeader, len(b), HeaderSize)
	}

	h := Header{
		Magic:       b[0],
		ColorFormat: b[1],
		Flags:       binary.LittleEndian.Uint16(b[2:]),
		Width:       binary.LittleEndian.Uint16(b[4:]),
		Height:      binary.LittleEndian.Uint16(b[6:]),
		Stride:      binary.LittleEndian.Uint16(b[8:]),
		Reserved:    binary.LittleEndian.Uint16(b[10:]),
	}

	if h.Magic != Magic {
		return Header{}, fmt.Errorf("%w: bad magic 0x%02x", ErrInvalidHeader, h.Magic)
	}
	if h.ColorFormat != ColorFormatRGB565 {
		return Header{}, fmt.Errorf("%w: unsupported color format 0x%02x", ErrInvalidHeader, h.ColorFormat)
	}
	if h.Width == 0 || h.Height == 0 {
		return Header{}, fmt.Errorf("%w: zero dimension", ErrInvalidHeader)
	}
	if int(h.Stride) != int(h.Width)*2 {
		return Header{}, fmt.Errorf("%w: stride %d for width %d", ErrInvalidHeader, h.Stride, h.Width)
	}

	return h, nil
}

// ReadHeader reads and validates a header from r.
func ReadHeader(r io.Reader) (Header, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	return ParseHeader(buf[:])
}

// PackRGB565 truncates an 8-bit RGB triple to 5-6-5 channel depths and
// packs it into one 16-bit value.
func PackRGB565(r, g, b uint8) uint16 {
	return uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
}

// Decode turns raw PNG or JPEG bytes into an image, dispatching on the
// magic byte signature.
func Decode(data []byte) (image.Image, error) {
	switch {
	case len(data) >= 4 && bytes.Equal(data[:4], []byte{0x89, 0x50, 0x4E, 0x47}):
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
		return img, nil
	case len(data) >= 2 && bytes.Equal(data[:2], []byte{0xFF, 0xD8}):
		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
		return img, nil
	}
	return nil, fmt.Errorf("%w: unrecognized format", ErrInvalidImage)
}

// Encode converts an image to header-plus-RGB565 bytes. Pixels are visited
// row-major, top to bottom, left to right; each packed value is written low
// byte first. Alpha is discarded.
func Encode(img image.Image) ([]byte, error) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: no pixel data", ErrInvalidImage)
	}
	if width > MaxDim || height > MaxDim {
		return nil, fmt.Errorf("%w: %dx%d exceeds 16-bit dimensions", ErrInvalidImage, width, height)
	}

	h := Header{
		Magic:       Magic,
		ColorFormat: ColorFormatRGB565,
		Width:       uint16(width),
		Height:      uint16(height),
		Stride:      uint16(width * 2),
	}

	out := make([]byte, 0, HeaderSize+width*height*2)
	out = h.append(out)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			v := PackRGB565(uint8(r>>8), uint8(g>>8), uint8(b>>8))
			out = append(out, byte(v), byte(v>>8))
		}
	}

	return out, nil
}

// ConvertBytes decodes source image bytes and encodes them.
func ConvertBytes(data []byte) ([]byte, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return Encode(img)
}

// ConvertFile reads a source image, writes the encoded result to dst and
// verifies the file landed on disk with the expected size. The size is
// re-read after writing rather than trusting the write call.
func ConvertFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read source image: %w", err)
	}

	encoded, err := ConvertBytes(data)
	if err != nil {
		return err
	}

	if err := os.WriteFile(dst, encoded, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		return fmt.Errorf("verify %s: %w", dst, err)
	}
	if info.Size() != int64(len(encoded)) || info.Size() <= HeaderSize {
		return fmt.Errorf("verify %s: wrote %d bytes, expected %d", dst, info.Size(), len(encoded))
	}

	return nil
}
