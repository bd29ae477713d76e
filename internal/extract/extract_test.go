package extract

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecognizer struct {
	rec  *Recognition
	err  error
	seen image.Rectangle
}

func (f *fakeRecognizer) Recognize(ctx context.Context, img image.Image) (*Recognition, error) {
	f.seen = img.Bounds()
	return f.rec, f.err
}

func encodePNG(t *testing.T, w, h int) *bytes.Buffer {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 80, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &buf
}

func TestDetectScalesToOriginal(t *testing.T) {
	fake := &fakeRecognizer{rec: &Recognition{
		Words: []Word{
			{Text: "101", Box: image.Rect(590, 140, 610, 160)},
			{Text: "A1", Box: image.Rect(0, 0, 10, 10)},
			{Text: "123456", Box: image.Rect(0, 0, 10, 10)},
			{Text: "2045", Box: image.Rect(1190, 290, 1210, 310)},
		},
		Text: "101 A1 123456 2045",
	}}
	p := NewPipeline(fake, 1200, nil)

	got, size, err := p.Detect(context.Background(), encodePNG(t, 240, 120))
	require.NoError(t, err)

	assert.Equal(t, Size{Width: 240, Height: 120}, size)
	assert.Equal(t, image.Rect(0, 0, 1200, 600), fake.seen)

	require.Len(t, got, 2)
	assert.Equal(t, "101", got[0].Unit)
	assert.InDelta(t, 0.5, got[0].X, 1e-9)
	assert.InDelta(t, 0.25, got[0].Y, 1e-9)
	assert.Equal(t, "2045", got[1].Unit)
	assert.Equal(t, 1.0, got[1].X)
	assert.InDelta(t, 0.5, got[1].Y, 1e-9)
}

func TestLocateFallback(t *testing.T) {
	rec := &Recognition{
		Words: []Word{{Text: "Lobby", Box: image.Rect(0, 0, 5, 5)}},
		Text:  "Lobby 12 then 345\nunits 6789 10 11 12 13 9",
	}
	got := Locate(rec, Size{Width: 100, Height: 100}, 1200)

	require.Len(t, got, 7)
	assert.Equal(t, Detection{Unit: "12", X: 0.2, Y: 0.2}, got[0])
	assert.Equal(t, "345", got[1].Unit)
	assert.InDelta(t, 0.35, got[1].X, 1e-9)
	assert.Equal(t, "6789", got[2].Unit)
	assert.Equal(t, 1.0, got[6].X)
	assert.Equal(t, 1.0, got[6].Y)
}

func TestLocateEmpty(t *testing.T) {
	assert.Empty(t, Locate(nil, Size{Width: 10, Height: 10}, 1200))
	assert.Empty(t, Locate(&Recognition{}, Size{Width: 10, Height: 10}, 1200))
	assert.NotNil(t, Locate(&Recognition{Text: "no digits"}, Size{Width: 10, Height: 10}, 1200))
}

func TestDetectErrors(t *testing.T) {
	p := NewPipeline(&fakeRecognizer{err: errors.New("ocr down")}, 0, nil)

	_, _, err := p.Detect(context.Background(), strings.NewReader("not an image"))
	assert.Error(t, err)

	_, _, err = p.Detect(context.Background(), encodePNG(t, 20, 10))
	assert.EqualError(t, err, "ocr down")
}

func TestPreprocess(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 300, 100))
	for i := range img.Pix {
		img.Pix[i] = 100
	}
	for x := 100; x < 200; x++ {
		for y := 30; y < 70; y++ {
			img.SetGray(x, y, color.Gray{Y: 150})
		}
	}

	out := Preprocess(img, 600)
	require.Equal(t, image.Rect(0, 0, 600, 200), out.Bounds())

	// The flat background ends up black and the brighter block white.
	assert.Equal(t, uint8(0), out.GrayAt(20, 20).Y)
	assert.Equal(t, uint8(255), out.GrayAt(300, 100).Y)
}

func TestClamp8(t *testing.T) {
	assert.Equal(t, uint8(0), clamp8(-10))
	assert.Equal(t, uint8(255), clamp8(300))
	assert.Equal(t, uint8(128), clamp8(127.6))
}

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t1200\t600\t-1\t\n" +
	"4\t1\t1\t1\t1\t0\t10\t10\t300\t20\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t10\t10\t40\t20\t91.5\t101\n" +
	"5\t1\t1\t1\t1\t2\t60\t10\t40\t20\t88\t102\n" +
	"5\t1\t1\t1\t2\t1\t10\t40\t60\t20\t75\tLobby\n" +
	"5\t1\t1\t1\t2\t2\t80\t40\t40\t20\t-1\t \n"

func TestParseTSV(t *testing.T) {
	rec, err := ParseTSV(strings.NewReader(sampleTSV))
	require.NoError(t, err)

	require.Len(t, rec.Words, 3)
	assert.Equal(t, Word{Text: "101", Box: image.Rect(10, 10, 50, 30), Confidence: 91.5}, rec.Words[0])
	assert.Equal(t, "Lobby", rec.Words[2].Text)
	assert.Equal(t, "101 102\nLobby", rec.Text)
}

func TestParseTSVEdgeCases(t *testing.T) {
	rec, err := ParseTSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rec.Words)

	_, err = ParseTSV(strings.NewReader("level\ttext\n5\t101\n"))
	assert.Error(t, err)
}

func TestNewTesseractRecognizerDefaults(t *testing.T) {
	r := NewTesseractRecognizer("", "")
	assert.Equal(t, "tesseract", r.Path)
	assert.Equal(t, "eng", r.Language)
}
