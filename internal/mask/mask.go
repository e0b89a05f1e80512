// Package mask converts instance segmentation masks into per-actor bounding
// boxes.
//
// A mask carries three planes of equal size. Plane 0 is the semantic class
// tag, planes 1 and 2 are the low and high bytes of the instance (actor) id,
// which is how the simulator's instance segmentation camera encodes them in
// the R, G and B channels.
package mask

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
)

// ErrInvalidMask is returned for masks whose planes do not match their size.
var ErrInvalidMask = errors.New("invalid mask")

// Mask is a three-plane instance mask stored row-major.
type Mask struct {
	Width    int
	Height   int
	Class    []uint8
	InstLow  []uint8
	InstHigh []uint8
}

// NewMask allocates an all-background mask.
func NewMask(width, height int) *Mask {
	n := width * height
	return &Mask{
		Width:    width,
		Height:   height,
		Class:    make([]uint8, n),
		InstLow:  make([]uint8, n),
		InstHigh: make([]uint8, n),
	}
}

// FromCHW builds a mask from a channel-first 3×H×W array.
func FromCHW(data [][][]uint8) (*Mask, error) {
	if len(data) != 3 {
		return nil, fmt.Errorf("%w: expected 3 channels, got %d", ErrInvalidMask, len(data))
	}
	h := len(data[0])
	if h == 0 {
		return nil, fmt.Errorf("%w: empty channel", ErrInvalidMask)
	}
	w := len(data[0][0])
	m := NewMask(w, h)
	planes := [3][]uint8{m.Class, m.InstLow, m.InstHigh}
	for c := 0; c < 3; c++ {
		if len(data[c]) != h {
			return nil, fmt.Errorf("%w: channel %d has %d rows, want %d", ErrInvalidMask, c, len(data[c]), h)
		}
		for y, row := range data[c] {
			if len(row) != w {
				return nil, fmt.Errorf("%w: channel %d row %d has %d columns, want %d", ErrInvalidMask, c, y, len(row), w)
			}
			copy(planes[c][y*w:], row)
		}
	}
	return m, nil
}

// FromImage reads R as class, G as instance low byte and B as instance high byte.
func FromImage(img image.Image) *Mask {
	b := img.Bounds()
	m := NewMask(b.Dx(), b.Dy())
	switch src := img.(type) {
	case *image.NRGBA:
		for y := 0; y < m.Height; y++ {
			row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := 0; x < m.Width; x++ {
				i := y*m.Width + x
				m.Class[i], m.InstLow[i], m.InstHigh[i] = row[4*x], row[4*x+1], row[4*x+2]
			}
		}
	default:
		for y := 0; y < m.Height; y++ {
			for x := 0; x < m.Width; x++ {
				c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				i := y*m.Width + x
				m.Class[i], m.InstLow[i], m.InstHigh[i] = c.R, c.G, c.B
			}
		}
	}
	return m
}

// Decode reads a PNG-encoded mask.
func Decode(r io.Reader) (*Mask, error) {
	img, err := png.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode mask: %w", err)
	}
	return FromImage(img), nil
}

// Load reads a PNG mask from disk.
func Load(path string) (*Mask, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Set writes one pixel.
func (m *Mask) Set(x, y int, class uint8, instance uint16) {
	i := y*m.Width + x
	m.Class[i] = class
	m.InstLow[i] = uint8(instance)
	m.InstHigh[i] = uint8(instance >> 8)
}

// Image renders the mask back into the RGB encoding it was read from.
func (m *Mask) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, m.Width, m.Height))
	for i := range m.Class {
		img.Pix[4*i] = m.Class[i]
		img.Pix[4*i+1] = m.InstLow[i]
		img.Pix[4*i+2] = m.InstHigh[i]
		img.Pix[4*i+3] = 0xff
	}
	return img
}

func (m *Mask) validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil", ErrInvalidMask)
	}
	n := m.Width * m.Height
	if m.Width < 0 || m.Height < 0 || len(m.Class) != n || len(m.InstLow) != n || len(m.InstHigh) != n {
		return fmt.Errorf("%w: %dx%d with planes %d/%d/%d", ErrInvalidMask,
			m.Width, m.Height, len(m.Class), len(m.InstLow), len(m.InstHigh))
	}
	return nil
}
