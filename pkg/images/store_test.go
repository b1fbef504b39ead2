package images

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/example/shopfront/pkg/apperr"
	"github.com/example/shopfront/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(&config.UploadConfig{
		Dir:               t.TempDir(),
		URLPrefix:         "uploads/products",
		AllowedExtensions: []string{"png", "jpg", "jpeg", "gif"},
		MaxDimension:      800,
		Quality:           85,
		DefaultImage:      "images/default-product.svg",
	})
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }
	return s
}

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestSaveShrinksAndFlattens(t *testing.T) {
	s := newTestStore(t)

	ref, err := s.Save("My Photo.png", bytes.NewReader(pngBytes(t, 1600, 400, color.NRGBA{})))
	require.NoError(t, err)
	assert.Equal(t, "uploads/products/20240506_070809_My_Photo.png", ref)

	img, err := imaging.Open(filepath.Join(s.dir, "20240506_070809_My_Photo.png"))
	require.NoError(t, err)
	assert.Equal(t, 800, img.Bounds().Dx())
	assert.Equal(t, 200, img.Bounds().Dy())

	r, g, b, _ := img.At(10, 10).RGBA()
	assert.Greater(t, r>>8, uint32(240))
	assert.Greater(t, g>>8, uint32(240))
	assert.Greater(t, b>>8, uint32(240))
}

func TestSaveKeepsSmallImages(t *testing.T) {
	s := newTestStore(t)

	ref, err := s.Save("tiny.jpg", bytes.NewReader(pngBytes(t, 20, 10, color.Black)))
	require.NoError(t, err)

	img, err := imaging.Open(filepath.Join(s.dir, filepath.Base(ref)))
	require.NoError(t, err)
	assert.Equal(t, 20, img.Bounds().Dx())
	assert.Equal(t, 10, img.Bounds().Dy())
}

func TestSaveRejects(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Save("notes.txt", strings.NewReader("hello"))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = s.Save("broken.png", strings.NewReader("not an image"))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)

	ref, err := s.Save("a.png", bytes.NewReader(pngBytes(t, 4, 4, color.White)))
	require.NoError(t, err)
	path := filepath.Join(s.dir, filepath.Base(ref))
	_, err = os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ref))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, s.Delete(ref))
	assert.NoError(t, s.Delete("images/default-product.svg"))
	assert.NoError(t, s.Delete(""))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "evil.png", sanitize("../../evil.png"))
	assert.Equal(t, "a_b.jpg", sanitize(`C:\tmp\a b.jpg`))
	assert.Equal(t, "image.gif", sanitize("???.gif"))
}
