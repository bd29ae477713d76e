// Package export renders planned routes as printable or CAD-friendly route
// sheets.
package export

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/skip2/go-qrcode"

	"github.com/copyleftdev/unitroute/internal/planner"
)

// Format names an output format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
	FormatDXF  Format = "dxf"
	FormatPNG  Format = "png"
)

var contentTypes = map[Format]string{
	FormatPDF:  "application/pdf",
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	FormatDXF:  "application/dxf",
	FormatPNG:  "image/png",
}

// ParseFormat validates a format name. An empty name selects PDF.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return FormatPDF, nil
	}
	if _, ok := contentTypes[f]; !ok {
		return "", fmt.Errorf("unsupported export format %q", s)
	}
	return f, nil
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	return contentTypes[f]
}

// Stop is one row of a route sheet.
type Stop struct {
	Seq   int
	Label string
	X     float64
	Y     float64
	Floor int
	// Leg is the distance travelled from the previous stop.
	Leg float64
}

// Sheet is a route ready to render.
type Sheet struct {
	MapID         string
	Stops         []Stop
	Length        float64
	ReturnToStart bool
}

// FromPlan builds a sheet from a planned route. Leg lengths are planar; the
// total keeps the solver's length, which includes floor penalties.
func FromPlan(p *planner.Plan) *Sheet {
	s := &Sheet{
		MapID:         p.MapID,
		Length:        p.Length,
		ReturnToStart: p.ReturnToStart,
		Stops:         make([]Stop, len(p.Path)),
	}
	for i, w := range p.Path {
		stop := Stop{Seq: i + 1, Label: w.ID, X: w.X, Y: w.Y, Floor: w.Floor}
		if i > 0 {
			prev := p.Path[i-1]
			stop.Leg = math.Hypot(w.X-prev.X, w.Y-prev.Y)
		}
		s.Stops[i] = stop
	}
	return s
}

// Labels returns the stop labels in visiting order.
func (s *Sheet) Labels() []string {
	labels := make([]string, len(s.Stops))
	for i, st := range s.Stops {
		labels[i] = st.Label
	}
	return labels
}

// QRPayload is the text encoded into route QR codes.
func (s *Sheet) QRPayload() string {
	return s.MapID + ":" + strings.Join(s.Labels(), ",")
}

// Render writes the sheet in the requested format.
func Render(w io.Writer, format Format, s *Sheet) error {
	if len(s.Stops) == 0 {
		return fmt.Errorf("route has no stops")
	}
	switch format {
	case FormatPDF:
		return renderPDF(w, s)
	case FormatXLSX:
		return renderXLSX(w, s)
	case FormatDXF:
		return renderDXF(w, s)
	case FormatPNG:
		return renderQR(w, s)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

func renderQR(w io.Writer, s *Sheet) error {
	png, err := qrcode.Encode(s.QRPayload(), qrcode.Medium, 256)
	if err != nil {
		return fmt.Errorf("failed to generate QR code: %w", err)
	}
	_, err = w.Write(png)
	return err
}

// bounds returns the bounding box of the stops, widened to avoid a zero span.
func bounds(stops []Stop) (minX, minY, spanX, spanY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, st := range stops {
		minX, maxX = math.Min(minX, st.X), math.Max(maxX, st.X)
		minY, maxY = math.Min(minY, st.Y), math.Max(maxY, st.Y)
	}
	spanX, spanY = maxX-minX, maxY-minY
	if spanX == 0 {
		spanX = 1
	}
	if spanY == 0 {
		spanY = 1
	}
	return minX, minY, spanX, spanY
}
