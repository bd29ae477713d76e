package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/yofu/dxf"
)

// DXF drawings are written in map units; normalized coordinates are scaled
// up so the drawing is legible at default zoom.
const (
	dxfScale      = 1000.0
	dxfStopRadius = 5.0
	dxfTextHeight = 8.0
)

func renderDXF(w io.Writer, s *Sheet) error {
	d := dxf.NewDrawing()

	minX, minY, spanX, spanY := bounds(s.Stops)
	scale := 1.0
	if spanX <= 1 && spanY <= 1 {
		scale = dxfScale
	}
	// DXF y grows upwards; image y grows downwards.
	pos := func(st Stop) (float64, float64) {
		return (st.X - minX) * scale, -(st.Y - minY) * scale
	}

	if _, err := d.AddLayer("ROUTE", dxf.DefaultColor, dxf.DefaultLineType, true); err != nil {
		return fmt.Errorf("failed to add layer: %w", err)
	}
	for i := 1; i < len(s.Stops); i++ {
		x1, y1 := pos(s.Stops[i-1])
		x2, y2 := pos(s.Stops[i])
		if _, err := d.Line(x1, y1, 0, x2, y2, 0); err != nil {
			return fmt.Errorf("failed to draw leg %d: %w", i, err)
		}
	}
	if s.ReturnToStart && len(s.Stops) > 1 {
		x1, y1 := pos(s.Stops[len(s.Stops)-1])
		x2, y2 := pos(s.Stops[0])
		if _, err := d.Line(x1, y1, 0, x2, y2, 0); err != nil {
			return fmt.Errorf("failed to draw closing leg: %w", err)
		}
	}

	if _, err := d.AddLayer("STOPS", dxf.DefaultColor, dxf.DefaultLineType, true); err != nil {
		return fmt.Errorf("failed to add layer: %w", err)
	}
	for _, st := range s.Stops {
		x, y := pos(st)
		if _, err := d.Circle(x, y, 0, dxfStopRadius); err != nil {
			return fmt.Errorf("failed to draw stop %s: %w", st.Label, err)
		}
		label := fmt.Sprintf("%d: %s", st.Seq, st.Label)
		if _, err := d.Text(label, x+dxfStopRadius*1.5, y, 0, dxfTextHeight); err != nil {
			return fmt.Errorf("failed to label stop %s: %w", st.Label, err)
		}
	}

	// The drawing only saves to a path.
	dir, err := os.MkdirTemp("", "unitroute-dxf-")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "route.dxf")
	if err := d.SaveAs(path); err != nil {
		return fmt.Errorf("failed to write dxf: %w", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
