package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

const defaultFamily = "go"

type fontFamily struct {
	regular *opentype.Font
	medium  *opentype.Font
	bold    *opentype.Font
}

// FontSet maps family names to parsed fonts. Parsed fonts are shared; faces
// are created per text layer because a face is not safe for concurrent use.
type FontSet struct {
	mu       sync.RWMutex
	families map[string]*fontFamily
}

// NewFontSet returns a FontSet holding the built-in Go fonts.
func NewFontSet() (*FontSet, error) {
	fs := &FontSet{families: make(map[string]*fontFamily)}

	builtin := []struct {
		family string
		weight string
		ttf    []byte
	}{
		{"go", "regular", goregular.TTF},
		{"go", "medium", gomedium.TTF},
		{"go", "bold", gobold.TTF},
		{"go mono", "regular", gomono.TTF},
		{"go mono", "bold", gomonobold.TTF},
	}
	for _, b := range builtin {
		f, err := opentype.Parse(b.ttf)
		if err != nil {
			return nil, fmt.Errorf("failed to parse built-in font %s %s: %w", b.family, b.weight, err)
		}
		fs.register(b.family, b.weight, f)
	}
	return fs, nil
}

// LoadDir registers every .ttf and .otf file in dir. The family name is the
// file name without extension; a "-bold" or "-medium" suffix selects the weight.
func (fs *FontSet) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	loaded := 0
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".ttf" && ext != ".otf") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		b, err := os.ReadFile(path)
		if err != nil {
			logrus.WithError(err).WithField("path", path).Warn("Failed to read font file")
			continue
		}
		f, err := opentype.Parse(b)
		if err != nil {
			logrus.WithError(err).WithField("path", path).Warn("Failed to parse font file")
			continue
		}
		family, weight := splitFontName(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		fs.register(family, weight, f)
		loaded++
	}
	logrus.WithFields(logrus.Fields{"dir": dir, "count": loaded}).Info("Loaded fonts")
	return nil
}

func splitFontName(name string) (family, weight string) {
	n := strings.ToLower(name)
	for _, w := range []string{"bold", "medium", "regular"} {
		for _, sep := range []string{"-", "_", " "} {
			if strings.HasSuffix(n, sep+w) {
				return strings.TrimSuffix(n, sep+w), w
			}
		}
	}
	return n, "regular"
}

func (fs *FontSet) register(family, weight string, f *opentype.Font) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	key := strings.ToLower(strings.TrimSpace(family))
	fam, ok := fs.families[key]
	if !ok {
		fam = &fontFamily{}
		fs.families[key] = fam
	}
	switch weight {
	case "bold":
		fam.bold = f
	case "medium":
		fam.medium = f
	default:
		fam.regular = f
	}
}

// pick returns the best font for the family and CSS weight, falling back to
// the default family when the requested one is unknown.
func (fs *FontSet) pick(family string, weight int) *opentype.Font {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	fam, ok := fs.families[strings.ToLower(strings.TrimSpace(family))]
	if !ok {
		fam = fs.families[defaultFamily]
	}

	var f *opentype.Font
	switch {
	case weight >= 600:
		f = fam.bold
	case weight >= 500:
		f = fam.medium
	}
	if f == nil {
		f = fam.regular
	}
	if f == nil {
		f = fam.bold
	}
	if f == nil {
		f = fam.medium
	}
	return f
}

// Face creates a new face at size pixels.
func (fs *FontSet) Face(family string, weight int, size float64) (font.Face, error) {
	f := fs.pick(family, weight)
	if f == nil {
		return nil, fmt.Errorf("no font available for family %q", family)
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}
