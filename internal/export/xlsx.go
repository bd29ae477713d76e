package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const routeSheet = "Route"

func renderXLSX(w io.Writer, s *Sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", routeSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headers := []interface{}{"Seq", "Unit", "X", "Y", "Floor", "Leg"}
	if err := setRow(f, 1, headers); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	if err := f.SetCellStyle(routeSheet, "A1", "F1", bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, st := range s.Stops {
		row := []interface{}{st.Seq, st.Label, st.X, st.Y, st.Floor, st.Leg}
		if err := setRow(f, i+2, row); err != nil {
			return err
		}
	}

	total := len(s.Stops) + 3
	if err := setRow(f, total, []interface{}{"Total", s.MapID, nil, nil, nil, s.Length}); err != nil {
		return err
	}
	if err := f.SetColWidth(routeSheet, "B", "B", 16); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}

	_, err = f.WriteTo(w)
	return err
}

func setRow(f *excelize.File, row int, values []interface{}) error {
	for col, v := range values {
		if v == nil {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(routeSheet, cell, v); err != nil {
			return fmt.Errorf("failed to set %s: %w", cell, err)
		}
	}
	return nil
}
