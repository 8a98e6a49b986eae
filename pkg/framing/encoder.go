package framing

import (
	"github.com/user/lcdtap/pkg/pipeline"
	"github.com/user/lcdtap/pkg/protocol"
)

// EncodeScanline produces the wire form of a scanline. Pixel channels are
// reduced to their top 5 bits.
func EncodeScanline(h pipeline.Header, pixels []byte, layout protocol.HeaderLayout) []byte {
	out := make([]byte, 0, 2+len(pixels))
	out = append(out, EncodeHeader(h, layout)...)
	for _, p := range pixels {
		out = append(out, p>>protocol.ChannelShift)
	}
	return out
}

// EncodeHeader produces the two header bytes of a scanline.
func EncodeHeader(h pipeline.Header, layout protocol.HeaderLayout) []byte {
	sync := protocol.SyncBit
	if h.Overflow {
		sync |= layout.OverflowMask
	}
	sync |= byte(h.Frame<<protocol.FrameShift) & protocol.FrameMask
	sync |= byte(h.Row>>7) & protocol.RowHighMask
	return []byte{sync, byte(h.Row) & protocol.PayloadMask}
}
