// Package extract finds unit numbers and their positions on floor-plan
// images.
package extract

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"regexp"

	"github.com/copyleftdev/unitroute/internal/logging"
)

// DefaultWidth is the width images are scaled to before recognition.
const DefaultWidth = 1200

var (
	unitWord = regexp.MustCompile(`^\d{2,5}$`)
	unitText = regexp.MustCompile(`\d{2,5}`)
)

// Detection is a unit label found on an image, with coordinates normalized to
// the original image size.
type Detection struct {
	Unit  string  `json:"unit"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Floor int     `json:"floor"`
}

// Word is one recognized word and its bounding box in preprocessed-image
// pixels.
type Word struct {
	Text       string
	Box        image.Rectangle
	Confidence float64
}

// Recognition is the output of a text recognizer.
type Recognition struct {
	Words []Word
	Text  string
}

// Recognizer turns an image into words.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) (*Recognition, error)
}

// Pipeline decodes, preprocesses and recognizes floor-plan images.
type Pipeline struct {
	recognizer Recognizer
	width      int
	logger     *logging.Logger
}

// NewPipeline creates a pipeline. A non-positive width selects DefaultWidth.
func NewPipeline(recognizer Recognizer, width int, logger *logging.Logger) *Pipeline {
	if width <= 0 {
		width = DefaultWidth
	}
	if logger == nil {
		logger = logging.New(logging.ErrorLevel, io.Discard)
	}
	return &Pipeline{recognizer: recognizer, width: width, logger: logger.WithComponent("extract")}
}

// Size is the pixel size of a decoded image.
type Size struct {
	Width  int
	Height int
}

// Detect reads an image and returns the unit labels found on it.
func (p *Pipeline) Detect(ctx context.Context, r io.Reader) ([]Detection, Size, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, Size{}, fmt.Errorf("failed to decode image: %w", err)
	}
	b := img.Bounds()
	size := Size{Width: b.Dx(), Height: b.Dy()}
	if size.Width == 0 || size.Height == 0 {
		return nil, size, fmt.Errorf("image has no pixels")
	}

	processed := Preprocess(img, p.width)
	rec, err := p.recognizer.Recognize(ctx, processed)
	if err != nil {
		return nil, size, err
	}

	found := Locate(rec, size, p.width)
	p.logger.Debug("units detected", map[string]interface{}{
		"format": format,
		"width":  size.Width,
		"height": size.Height,
		"words":  len(rec.Words),
		"units":  len(found),
	})
	return found, size, nil
}

// Locate converts recognized words into detections. Word centers are scaled
// from the processed width back to the original image and normalized. When
// no word qualifies, numbers in the raw text get placeholder positions along
// the diagonal.
func Locate(rec *Recognition, orig Size, processedWidth int) []Detection {
	detected := []Detection{}
	if rec == nil {
		return detected
	}

	scale := float64(orig.Width) / float64(processedWidth)
	for _, w := range rec.Words {
		if !unitWord.MatchString(w.Text) {
			continue
		}
		cx := float64(w.Box.Min.X+w.Box.Max.X) / 2 * scale
		cy := float64(w.Box.Min.Y+w.Box.Max.Y) / 2 * scale
		detected = append(detected, Detection{
			Unit: w.Text,
			X:    clamp01(cx / float64(orig.Width)),
			Y:    clamp01(cy / float64(orig.Height)),
		})
	}
	if len(detected) > 0 || rec.Text == "" {
		return detected
	}

	for i, num := range unitText.FindAllString(rec.Text, -1) {
		pos := clamp01(0.2 + 0.15*float64(i))
		detected = append(detected, Detection{Unit: num, X: pos, Y: pos})
	}
	return detected
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
