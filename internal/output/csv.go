package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/talgya/bilayer-epidemic/internal/engine"
	"github.com/talgya/bilayer-epidemic/internal/experiment"
)

// WriteGridCSV writes one reducer of a sweep as a matrix: one row per axis1
// value, one column per axis2 value. Cells that did not finish are empty.
func WriteGridCSV(w io.Writer, reducer string, grid *experiment.Grid) error {
	cw := csv.NewWriter(w)

	header := make([]string, 0, len(grid.Axis2.Values)+1)
	header = append(header, grid.Axis1.Name+`\`+grid.Axis2.Name)
	for _, v2 := range grid.Axis2.Values {
		header = append(header, num(v2))
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, v1 := range grid.Axis1.Values {
		row := make([]string, 0, len(header))
		row = append(row, num(v1))
		for _, v2 := range grid.Axis2.Values {
			c, ok := grid.Get(v1, v2)
			if !ok {
				row = append(row, "")
				continue
			}
			v, ok := c.Values[reducer]
			if !ok {
				return fmt.Errorf("output: cell (%v, %v) has no %q", v1, v2, reducer)
			}
			row = append(row, num(v))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteSeriesCSV writes one row per step and one column per metric.
func WriteSeriesCSV(w io.Writer, res *engine.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"step"}, res.Names...)); err != nil {
		return err
	}

	row := make([]string, len(res.Names)+1)
	for step := 0; step < res.Steps(); step++ {
		row[0] = strconv.Itoa(step)
		for i, name := range res.Names {
			row[i+1] = num(res.Series[name][step])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
