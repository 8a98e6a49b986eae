package assemble

import (
	"image/color"

	"github.com/user/lcdtap/pkg/pipeline"
	"github.com/user/lcdtap/pkg/ports"
)

// colourBars are the classic test-card bars, left to right.
var colourBars = []color.RGBA{
	{0xff, 0xff, 0xff, 0xff},
	{0xff, 0xff, 0x00, 0xff},
	{0x00, 0xff, 0xff, 0xff},
	{0x00, 0xff, 0x00, 0xff},
	{0xff, 0x00, 0xff, 0xff},
	{0xff, 0x00, 0x00, 0xff},
	{0x00, 0x00, 0xff, 0xff},
	{0x00, 0x00, 0x00, 0xff},
}

// DiagnosticPattern renders the frame shown while the device is silent:
// vertical colour bars with a caption in the lower band.
func DiagnosticPattern(r ports.Renderer, g pipeline.Geometry) []byte {
	canvas := r.CreateCanvas(g.Width, g.Height, color.Black)

	barsHeight := g.Height * 3 / 4
	for i, c := range colourBars {
		x0 := i * g.Width / len(colourBars)
		x1 := (i + 1) * g.Width / len(colourBars)
		canvas.DrawRect(x0, 0, x1-x0, barsHeight, c)
	}
	canvas.DrawText("NO SIGNAL", g.Width/2, barsHeight+(g.Height-barsHeight)/2, color.White)

	return pipeline.FrameFromImage(canvas.ToImage(), g)
}
