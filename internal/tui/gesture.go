package tui

import (
	"github.com/cleverkeys/swipedecoder/internal/geometry"
	"github.com/cleverkeys/swipedecoder/internal/swipe"
)

// qwertyRows lays out a standard three-row QWERTY keyboard in a unit grid;
// SynthesizeGesture scales it to the bounding box below.
var qwertyRows = [][]rune{
	[]rune("qwertyuiop"),
	[]rune("asdfghjkl"),
	[]rune("zxcvbnm"),
}

const (
	synthBBoxW = 1080
	synthBBoxH = 360
	rowHeight  = synthBBoxH / 3
)

func keyCenter(r rune) (float32, float32, bool) {
	for rowIdx, row := range qwertyRows {
		for colIdx, k := range row {
			if k == r {
				colWidth := float32(synthBBoxW) / float32(len(row))
				x := colWidth*float32(colIdx) + colWidth/2
				y := float32(rowHeight)*float32(rowIdx) + float32(rowHeight)/2
				return x, y, true
			}
		}
	}
	return 0, 0, false
}

// SynthesizeGesture builds a straight-line-between-keys swipe path for word,
// sampled at 15ms intervals, so the TUI can exercise the full prediction
// pipeline without a touchscreen.
func SynthesizeGesture(word string) swipe.Gesture {
	var keyXY [][2]float32
	for _, r := range word {
		if x, y, ok := keyCenter(r); ok {
			keyXY = append(keyXY, [2]float32{x, y})
		}
	}
	if len(keyXY) == 0 {
		return swipe.Gesture{BBoxW: synthBBoxW, BBoxH: synthBBoxH}
	}
	if len(keyXY) == 1 {
		keyXY = append(keyXY, keyXY[0])
	}

	const samplesPerSegment = 8
	var points []swipe.Point
	var tMs int64
	const stepMs = 15

	points = append(points, swipe.Point{X: keyXY[0][0], Y: keyXY[0][1], TMs: tMs})
	for i := 1; i < len(keyXY); i++ {
		x0, y0 := keyXY[i-1][0], keyXY[i-1][1]
		x1, y1 := keyXY[i][0], keyXY[i][1]
		for s := 1; s <= samplesPerSegment; s++ {
			frac := float32(s) / float32(samplesPerSegment)
			tMs += stepMs
			points = append(points, swipe.Point{
				X:   x0 + (x1-x0)*frac,
				Y:   y0 + (y1-y0)*frac,
				TMs: tMs,
			})
		}
	}

	return swipe.Gesture{Points: points, BBoxW: synthBBoxW, BBoxH: synthBBoxH}
}

// QwertyLayout returns the char->center map the facade's SetLayout expects,
// matching the grid SynthesizeGesture draws its paths over.
func QwertyLayout() map[rune]geometry.Point {
	out := map[rune]geometry.Point{}
	for _, row := range qwertyRows {
		for _, r := range row {
			x, y, _ := keyCenter(r)
			out[r] = geometry.Point{X: x, Y: y}
		}
	}
	return out
}
