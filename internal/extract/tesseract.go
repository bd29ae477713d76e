package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

const charWhitelist = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz "

// TesseractRecognizer runs the tesseract CLI in single-block mode and reads
// its TSV output.
type TesseractRecognizer struct {
	Path     string
	Language string
}

// NewTesseractRecognizer returns a recognizer using the given binary and
// language, falling back to "tesseract" and "eng".
func NewTesseractRecognizer(path, language string) *TesseractRecognizer {
	if path == "" {
		path = "tesseract"
	}
	if language == "" {
		language = "eng"
	}
	return &TesseractRecognizer{Path: path, Language: language}
}

func (r *TesseractRecognizer) Recognize(ctx context.Context, img image.Image) (*Recognition, error) {
	f, err := os.CreateTemp("", "unitroute-ocr-*.png")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp image: %w", err)
	}
	defer os.Remove(f.Name())

	if err := png.Encode(f, img); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to encode temp image: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to write temp image: %w", err)
	}

	cmd := exec.CommandContext(ctx, r.Path, f.Name(), "stdout",
		"-l", r.Language,
		"--psm", "6",
		"-c", "tessedit_char_whitelist="+charWhitelist,
		"tsv",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("tesseract failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return ParseTSV(&stdout)
}

// ParseTSV reads tesseract's TSV output. Word rows (level 5) become Words;
// the raw text is rebuilt line by line.
func ParseTSV(r io.Reader) (*Recognition, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return &Recognition{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tsv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, name := range []string{"level", "block_num", "par_num", "line_num", "left", "top", "width", "height", "conf", "text"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("tsv output has no %q column", name)
		}
	}

	var (
		rec      Recognition
		lines    []string
		current  []string
		lastLine string
	)
	flush := func() {
		if len(current) > 0 {
			lines = append(lines, strings.Join(current, " "))
			current = nil
		}
	}

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tsv row: %w", err)
		}
		if len(row) <= col["text"] {
			continue
		}
		if level, _ := strconv.Atoi(row[col["level"]]); level != 5 {
			continue
		}
		text := strings.TrimSpace(row[col["text"]])
		if text == "" {
			continue
		}

		lineKey := row[col["block_num"]] + "." + row[col["par_num"]] + "." + row[col["line_num"]]
		if lineKey != lastLine {
			flush()
			lastLine = lineKey
		}
		current = append(current, text)

		left, _ := strconv.Atoi(row[col["left"]])
		top, _ := strconv.Atoi(row[col["top"]])
		width, _ := strconv.Atoi(row[col["width"]])
		height, _ := strconv.Atoi(row[col["height"]])
		conf, _ := strconv.ParseFloat(row[col["conf"]], 64)
		rec.Words = append(rec.Words, Word{
			Text:       text,
			Box:        image.Rect(left, top, left+width, top+height),
			Confidence: conf,
		})
	}
	flush()

	rec.Text = strings.Join(lines, "\n")
	return &rec, nil
}
