package codec

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
)

// Ktx2Encoder turns tightly packed RGBA8 pixels into a KTX2 container with a
// Basis Universal supercompressed payload.
type Ktx2Encoder interface {
	Encode(rgba []byte, width, height int) ([]byte, error)
}

// BasisuCliEncoder drives the basisu command line encoder: UASTC 4x4, KTX2
// output, mipmap generation with wrapped sampling. Initialization (locating
// the executable) happens once and is shared by all calls.
type BasisuCliEncoder struct {
	// Path of the basisu executable; looked up on PATH when empty.
	Path string

	initOnce sync.Once
	initErr  error
	resolved string
}

func (e *BasisuCliEncoder) init() {
	e.initOnce.Do(func() {
		candidate := e.Path
		if candidate == "" {
			candidate = "basisu"
		}
		e.resolved, e.initErr = exec.LookPath(candidate)
	})
}

func (e *BasisuCliEncoder) Encode(rgba []byte, width, height int) ([]byte, error) {
	e.init()
	if e.initErr != nil {
		return nil, fmt.Errorf("basisu encoder unavailable: %w", e.initErr)
	}
	if len(rgba) < width*height*4 || width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid rgba payload %dx%d", width, height)
	}

	dir, err := os.MkdirTemp("", "basisu")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "texture.png")
	out := filepath.Join(dir, "texture.ktx2")
	if err := writePng(in, rgba, width, height); err != nil {
		return nil, err
	}

	cmd := exec.Command(e.resolved,
		"-uastc", "-ktx2", "-mipmap", "-mip_wrap",
		"-q", "64",
		"-output_file", out,
		in,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("basisu failed: %v: %s", err, output)
	}
	return os.ReadFile(out)
}

func writePng(path string, rgba []byte, width, height int) error {
	img := &image.NRGBA{
		Pix:    rgba,
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
