// Package generator produces avatar positions for loops and granulometric
// depositions.
package generator

import (
	"math"

	"scenecore/pkg/domain"
)

// Circle places count points evenly on a circle of the given radius.
func Circle(count int, radius, ox, oy float64) [][]float64 {
	out := make([][]float64, 0, count)
	for i := 0; i < count; i++ {
		angle := 2 * math.Pi * float64(i) / float64(count)
		out = append(out, []float64{ox + radius*math.Cos(angle), oy + radius*math.Sin(angle)})
	}
	return out
}

// Grid fills a square grid row by row; the side is ceil(sqrt(count)).
func Grid(count int, step, ox, oy float64) [][]float64 {
	side := int(math.Ceil(math.Sqrt(float64(count))))
	out := make([][]float64, 0, count)
	for i := 0; i < count; i++ {
		col, row := i%side, i/side
		out = append(out, []float64{ox + float64(col)*step, oy + float64(row)*step})
	}
	return out
}

// Line places points along x, or along y when invert is set.
func Line(count int, step, ox, oy float64, invert bool) [][]float64 {
	out := make([][]float64, 0, count)
	for i := 0; i < count; i++ {
		d := float64(i) * step
		if invert {
			out = append(out, []float64{ox, oy + d})
		} else {
			out = append(out, []float64{ox + d, oy})
		}
	}
	return out
}

// Spiral places points on a spiral whose radius grows by factor per point.
func Spiral(count int, radius, factor, ox, oy float64) [][]float64 {
	turns := count / 5
	if turns < 1 {
		turns = 1
	}
	out := make([][]float64, 0, count)
	for i := 0; i < count; i++ {
		angle := 2 * math.Pi * float64(i) / float64(turns)
		r := radius + float64(i)*factor
		out = append(out, []float64{ox + r*math.Cos(angle), oy + r*math.Sin(angle)})
	}
	return out
}

// Positions returns the centers a loop produces in the given project dimension.
func Positions(loop domain.Loop, dimension int) ([][]float64, error) {
	if err := domain.ValidateLoop(loop, dimension); err != nil {
		return nil, err
	}
	switch loop.Pattern {
	case domain.PatternCircle:
		return Circle(loop.Count, loop.Radius, loop.OffsetX, loop.OffsetY), nil
	case domain.PatternGrid:
		return Grid(loop.Count, loop.Step, loop.OffsetX, loop.OffsetY), nil
	case domain.PatternLine:
		return Line(loop.Count, loop.Step, loop.OffsetX, loop.OffsetY, loop.InvertAxis), nil
	case domain.PatternSpiral:
		return Spiral(loop.Count, loop.Radius, loop.SpiralFactor, loop.OffsetX, loop.OffsetY), nil
	default:
		out := make([][]float64, len(loop.Centers))
		for i, c := range loop.Centers {
			out[i] = []float64{c[0], c[1]}
		}
		return out, nil
	}
}
