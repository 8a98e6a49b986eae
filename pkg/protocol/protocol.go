// Package protocol holds the process-wide constants of the display tap:
// USB identifiers, vendor request codes and the scanline header layout.
package protocol

import (
	"fmt"
	"time"
)

// USB identifiers of the Glasgow interface board.
const (
	VendorID  uint16 = 0x20b7
	ProductID uint16 = 0x9db1
)

// Vendor control requests understood by the Glasgow firmware.
const (
	RequestTypeVendor uint8 = 0x40

	ReqEEPROM      uint8 = 0x10
	ReqFPGAConfig  uint8 = 0x11
	ReqStatus      uint8 = 0x12
	ReqRegister    uint8 = 0x13
	ReqIOVoltage   uint8 = 0x14
	ReqSenseVolt   uint8 = 0x15
	ReqAlertVolt   uint8 = 0x16
	ReqPollAlert   uint8 = 0x17
	ReqBitstreamID uint8 = 0x18
	ReqIOBufEnable uint8 = 0x19
	ReqLimitVolt   uint8 = 0x1a
)

// I/O port selection masks for voltage requests.
const (
	PortA uint16 = 0x01
	PortB uint16 = 0x02
)

// Streaming link parameters.
const (
	// Configuration is the USB configuration selected before claiming.
	Configuration = 1
	// Interface is the streaming interface number.
	Interface = 0
	// InEndpoint is the bulk IN endpoint address (0x86 = IN, number 6).
	InEndpoint = 0x86
	// BitstreamChunkSize is the payload size of one FPGA configuration request.
	BitstreamChunkSize = 1024
	// BufferSize is the size of one bulk read.
	BufferSize = 16384
	// ReadTimeout bounds a single bulk read.
	ReadTimeout = 100 * time.Millisecond
	// IdleInterval is the Timeout cadence of an exhausted replay.
	IdleInterval = 100 * time.Millisecond
)

// Voltage3V3 is the little-endian payload of a ReqIOVoltage request for 3.3 V.
var Voltage3V3 = []byte{0xe4, 0x0c}

// BitstreamIDAll is written after a bitstream upload to mark it as configured.
var BitstreamIDAll = []byte{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// Framing bits shared by every header layout.
const (
	SyncBit     byte = 0x80
	PayloadMask byte = 0x7f
	FrameMask   byte = 0x3e
	FrameShift       = 1
	RowHighMask byte = 0x01

	// FrameModulus is the period of the frame counter.
	FrameModulus = 32

	// ChannelShift widens a 5-bit colour channel to 8 bits.
	ChannelShift = 3
)

// HeaderLayout describes where a firmware revision places the overflow flag
// inside the sync byte.
type HeaderLayout struct {
	Name         string
	OverflowMask byte
}

var (
	// LayoutV1 carries the overflow flag in bit 6.
	LayoutV1 = HeaderLayout{Name: "v1", OverflowMask: 0x40}
	// LayoutV2 carries the overflow flag in bit 4.
	LayoutV2 = HeaderLayout{Name: "v2", OverflowMask: 0x10}
)

// ParseLayout returns the header layout with the given name.
// An empty name selects LayoutV1.
func ParseLayout(name string) (HeaderLayout, error) {
	switch name {
	case "", LayoutV1.Name:
		return LayoutV1, nil
	case LayoutV2.Name:
		return LayoutV2, nil
	default:
		return HeaderLayout{}, fmt.Errorf("protocol: unknown header layout %q", name)
	}
}
