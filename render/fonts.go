package render

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

type faceKey struct {
	size float64
	bold bool
}

// Faces hands out font faces by size and weight, caching each one.
type Faces struct {
	regular *opentype.Font
	bold    *opentype.Font

	mu    sync.Mutex
	faces map[faceKey]font.Face
}

// LoadFaces parses the TrueType files at the given paths. An empty path falls
// back to the bundled Go fonts; point these at a font with full Vietnamese
// coverage for production receipts.
func LoadFaces(regularPath, boldPath string) (*Faces, error) {
	regular, err := parseFont(regularPath, goregular.TTF)
	if err != nil {
		return nil, err
	}
	bold, err := parseFont(boldPath, gobold.TTF)
	if err != nil {
		return nil, err
	}
	return &Faces{regular: regular, bold: bold, faces: make(map[faceKey]font.Face)}, nil
}

func parseFont(path string, fallback []byte) (*opentype.Font, error) {
	data := fallback
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read font %s: %w", path, err)
		}
		data = b
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font %q: %w", path, err)
	}
	return f, nil
}

// Face returns the face for a pixel size.
func (f *Faces) Face(size float64, bold bool) (font.Face, error) {
	key := faceKey{size: size, bold: bold}

	f.mu.Lock()
	defer f.mu.Unlock()
	if face, ok := f.faces[key]; ok {
		return face, nil
	}

	src := f.regular
	if bold {
		src = f.bold
	}
	face, err := opentype.NewFace(src, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create face %.1fpx: %w", size, err)
	}
	f.faces[key] = face
	return face, nil
}
