package persist

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/nightsky-data/skystack/internal/stack"
)

// ImageWriter is the image-write collaborator: it receives a finished
// composite, already converted to RGBA, and a destination filename.
type ImageWriter interface {
	Write(fname string, img image.Image) error
}

// ToRGBA converts a job's camera-native BGR buffer to an RGBA image for
// the writer. Alpha is opaque.
func ToRGBA(job stack.SaveJob) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, job.Width, job.Height))
	for i := 0; i < job.Width*job.Height; i++ {
		src := i * stack.Channels
		dst := i * 4
		img.Pix[dst] = job.Pix[src+2]
		img.Pix[dst+1] = job.Pix[src+1]
		img.Pix[dst+2] = job.Pix[src]
		img.Pix[dst+3] = 0xFF
	}
	return img
}

// PNGWriter writes PNG files to the local filesystem, creating parent
// directories as needed.
type PNGWriter struct{}

func (PNGWriter) Write(fname string, img image.Image) error {
	if dir := filepath.Dir(fname); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.Create(fname)
	if err != nil {
		return fmt.Errorf("create %s: %w", fname, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", fname, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", fname, err)
	}
	return nil
}
