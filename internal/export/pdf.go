package export

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/go-pdf/fpdf"
	"github.com/skip2/go-qrcode"
)

const (
	pageMargin  = 15.0
	diagramSize = 120.0
	qrSize      = 40.0
	rowHeight   = 6.0
)

func renderPDF(w io.Writer, s *Sheet) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Route sheet", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Map %s", s.MapID), "", 1, "L", false, 0, "")
	loop := "open path"
	if s.ReturnToStart {
		loop = "returns to start"
	}
	pdf.CellFormat(0, 6, fmt.Sprintf("%d stops, length %.4f (%s)", len(s.Stops), s.Length, loop), "", 1, "L", false, 0, "")

	top := pdf.GetY() + 4
	drawDiagram(pdf, s, pageMargin, top)

	qrPNG, err := qrcode.Encode(s.QRPayload(), qrcode.Medium, 256)
	if err != nil {
		return fmt.Errorf("failed to generate QR code: %w", err)
	}
	pdf.RegisterImageOptionsReader("route_qr", fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(qrPNG))
	pdf.ImageOptions("route_qr", pageMargin+diagramSize+10, top, qrSize, qrSize, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")

	pdf.SetY(top + diagramSize + 8)
	drawTable(pdf, s)

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to build pdf: %w", err)
	}
	return pdf.Output(w)
}

// drawDiagram plots the stops in a square box, y growing downwards like the
// source image.
func drawDiagram(pdf *fpdf.Fpdf, s *Sheet, left, top float64) {
	pdf.SetDrawColor(200, 200, 200)
	pdf.SetLineWidth(0.2)
	pdf.Rect(left, top, diagramSize, diagramSize, "D")

	const pad = 8.0
	minX, minY, spanX, spanY := bounds(s.Stops)
	scale := (diagramSize - 2*pad) / math.Max(spanX, spanY)
	pos := func(st Stop) (float64, float64) {
		return left + pad + (st.X-minX)*scale, top + pad + (st.Y-minY)*scale
	}

	pdf.SetDrawColor(30, 90, 200)
	pdf.SetLineWidth(0.5)
	for i := 1; i < len(s.Stops); i++ {
		x1, y1 := pos(s.Stops[i-1])
		x2, y2 := pos(s.Stops[i])
		pdf.Line(x1, y1, x2, y2)
	}
	if s.ReturnToStart && len(s.Stops) > 1 {
		pdf.SetDashPattern([]float64{1.5, 1}, 0)
		x1, y1 := pos(s.Stops[len(s.Stops)-1])
		x2, y2 := pos(s.Stops[0])
		pdf.Line(x1, y1, x2, y2)
		pdf.SetDashPattern([]float64{}, 0)
	}

	pdf.SetFont("Helvetica", "", 7)
	for i, st := range s.Stops {
		x, y := pos(st)
		if i == 0 {
			pdf.SetFillColor(200, 40, 40)
		} else {
			pdf.SetFillColor(30, 90, 200)
		}
		pdf.Circle(x, y, 1.2, "F")
		pdf.Text(x+1.8, y-1.2, st.Label)
	}
	pdf.SetFillColor(255, 255, 255)
}

func drawTable(pdf *fpdf.Fpdf, s *Sheet) {
	widths := []float64{12, 40, 30, 30, 18, 30}
	headers := []string{"#", "Unit", "X", "Y", "Floor", "Leg"}

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range headers {
		pdf.CellFormat(widths[i], rowHeight, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, st := range s.Stops {
		cells := []string{
			fmt.Sprintf("%d", st.Seq),
			st.Label,
			fmt.Sprintf("%.4f", st.X),
			fmt.Sprintf("%.4f", st.Y),
			fmt.Sprintf("%d", st.Floor),
			fmt.Sprintf("%.4f", st.Leg),
		}
		for i, c := range cells {
			align := "R"
			if i == 1 {
				align = "L"
			}
			pdf.CellFormat(widths[i], rowHeight, c, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
}
