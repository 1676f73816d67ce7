package perception

import (
	"math"

	"github.com/banshee-data/wayfinder/internal/depth"
)

// Partition splits f into a rows×cols grid and aggregates the pixels whose
// depth lies in (0, maxRange). Cells without a valid pixel are dropped, as is
// everything when the frame is nil or malformed. Cell bounds use integer
// division, so frames smaller than the grid yield empty (dropped) cells.
func Partition(f *depth.Frame, rows, cols int, maxRange float64) []GridCell {
	if !f.Valid() || rows <= 0 || cols <= 0 {
		return nil
	}

	cells := make([]GridCell, 0, rows*cols)
	for row := 0; row < rows; row++ {
		y0 := row * f.Height / rows
		y1 := (row + 1) * f.Height / rows
		for col := 0; col < cols; col++ {
			x0 := col * f.Width / cols
			x1 := (col + 1) * f.Width / cols

			cell := GridCell{Row: row, Col: col, X0: x0, Y0: y0, X1: x1, Y1: y1, MinDepth: math.Inf(1)}
			sum := 0.0
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					d := f.At(x, y)
					if !(d > 0 && d < maxRange) {
						continue // also rejects NaN
					}
					sum += d
					cell.ValidPixels++
					if d < cell.MinDepth {
						cell.MinDepth = d
					}
				}
			}
			if cell.ValidPixels == 0 {
				continue
			}
			cell.AvgDepth = sum / float64(cell.ValidPixels)
			cells = append(cells, cell)
		}
	}
	return cells
}
