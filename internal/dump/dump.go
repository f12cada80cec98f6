// Package dump writes raw scanner captures to disk as TIFF images so
// calibration and strip-search data can be inspected offline.
package dump

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/image/tiff"

	"github.com/micro-nova/gl846-go/internal/models"
)

// Image converts a capture into an image. Samples are line-interleaved
// (RGBRGB...) and 16-bit samples are little-endian. Missing trailing bytes
// read as zero.
func Image(data []byte, pixels, lines, channels, depth int) (image.Image, error) {
	if pixels <= 0 || lines <= 0 {
		return nil, models.ErrInvalidArgument("empty capture geometry %dx%d", pixels, lines)
	}
	if channels != 1 && channels != 3 {
		return nil, models.ErrInvalidArgument("unsupported channel count %d", channels)
	}
	if depth != 8 && depth != 16 {
		return nil, models.ErrInvalidArgument("unsupported depth %d", depth)
	}
	bps := depth / 8
	sample := func(i int) uint16 {
		o := i * bps
		if o+bps > len(data) {
			return 0
		}
		if bps == 1 {
			return uint16(data[o]) * 0x101
		}
		return uint16(data[o]) | uint16(data[o+1])<<8
	}

	rect := image.Rect(0, 0, pixels, lines)
	switch {
	case channels == 1 && depth == 8:
		img := image.NewGray(rect)
		for i := range img.Pix {
			img.Pix[i] = byte(sample(i) >> 8)
		}
		return img, nil
	case channels == 1:
		img := image.NewGray16(rect)
		for y := 0; y < lines; y++ {
			for x := 0; x < pixels; x++ {
				img.SetGray16(x, y, color.Gray16{Y: sample(y*pixels + x)})
			}
		}
		return img, nil
	case depth == 8:
		img := image.NewNRGBA(rect)
		for y := 0; y < lines; y++ {
			for x := 0; x < pixels; x++ {
				i := (y*pixels + x) * 3
				img.SetNRGBA(x, y, color.NRGBA{
					R: byte(sample(i) >> 8), G: byte(sample(i+1) >> 8), B: byte(sample(i+2) >> 8), A: 0xff,
				})
			}
		}
		return img, nil
	default:
		img := image.NewNRGBA64(rect)
		for y := 0; y < lines; y++ {
			for x := 0; x < pixels; x++ {
				i := (y*pixels + x) * 3
				img.SetNRGBA64(x, y, color.NRGBA64{R: sample(i), G: sample(i + 1), B: sample(i + 2), A: 0xffff})
			}
		}
		return img, nil
	}
}

// Dir writes each dump as <dir>/<name>.tiff.
type Dir struct {
	path string

	mu    sync.Mutex
	count int
}

// NewDir creates the dump directory if needed.
func NewDir(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("dump: create %s: %w", path, err)
	}
	return &Dir{path: path}, nil
}

// Path returns the file a dump named name is written to.
func (d *Dir) Path(name string) string {
	return filepath.Join(d.path, name+".tiff")
}

// Count returns how many dumps were written.
func (d *Dir) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}

// Dump implements asic.Dumper. Failures are logged and never returned.
func (d *Dir) Dump(name string, data []byte, pixels, lines, channels, depth int) {
	if err := d.write(name, data, pixels, lines, channels, depth); err != nil {
		slog.Warn("dump: write failed", "name", name, "err", err)
		return
	}
	d.mu.Lock()
	d.count++
	d.mu.Unlock()
	slog.Debug("dump: wrote capture", "name", name, "pixels", pixels, "lines", lines)
}

func (d *Dir) write(name string, data []byte, pixels, lines, channels, depth int) error {
	img, err := Image(data, pixels, lines, channels, depth)
	if err != nil {
		return err
	}
	tmp := d.Path(name) + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, d.Path(name))
}
