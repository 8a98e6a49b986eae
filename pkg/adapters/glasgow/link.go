// Package glasgow implements ports.Link for the Glasgow interface board
// over libusb.
package glasgow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"

	"github.com/user/lcdtap/pkg/ports"
	"github.com/user/lcdtap/pkg/protocol"
)

var (
	// ErrDeviceNotFound is returned when no board with the expected VID/PID is attached.
	ErrDeviceNotFound = errors.New("glasgow: device not found")

	// ErrShortControl is returned when a control transfer wrote fewer bytes than requested.
	ErrShortControl = errors.New("glasgow: short control transfer")
)

// Link is an opened and configured board streaming on the bulk IN endpoint.
type Link struct {
	usb    *gousb.Context
	dev    *gousb.Device
	cfg    *gousb.Config
	intf   *gousb.Interface
	ep     *gousb.InEndpoint
	logger ports.Logger
}

// Open finds the board, runs the setup sequence and claims the streaming
// interface. Any failure releases what was acquired so far.
func Open(opts ports.LinkOptions, logger ports.Logger) (*Link, error) {
	l := &Link{
		usb:    gousb.NewContext(),
		logger: logger.WithComponent("glasgow"),
	}

	if err := l.open(opts); err != nil {
		l.Close()
		return nil, err
	}
	return l, nil
}

func (l *Link) open(opts ports.LinkOptions) error {
	dev, err := l.usb.OpenDeviceWithVIDPID(gousb.ID(protocol.VendorID), gousb.ID(protocol.ProductID))
	if err != nil {
		return fmt.Errorf("open device: %w", err)
	}
	if dev == nil {
		return ErrDeviceNotFound
	}
	l.dev = dev
	l.logger.Info("Opened device %04x:%04x", protocol.VendorID, protocol.ProductID)

	if err := setup(dev, opts.Bitstream, l.logger); err != nil {
		return err
	}

	if err := dev.SetAutoDetach(true); err != nil {
		return fmt.Errorf("enable kernel driver auto-detach: %w", err)
	}
	l.cfg, err = dev.Config(protocol.Configuration)
	if err != nil {
		return fmt.Errorf("set configuration %d: %w", protocol.Configuration, err)
	}
	l.intf, err = l.cfg.Interface(protocol.Interface, 0)
	if err != nil {
		return fmt.Errorf("claim interface %d: %w", protocol.Interface, err)
	}
	l.ep, err = l.intf.InEndpoint(protocol.InEndpoint & 0x0f)
	if err != nil {
		return fmt.Errorf("open endpoint %#02x: %w", protocol.InEndpoint, err)
	}
	return nil
}

// controller is the control-transfer half of a USB device.
type controller interface {
	Control(rType, request uint8, val, idx uint16, data []byte) (int, error)
}

// setup powers the I/O ports and, when a bitstream is given, configures the FPGA.
func setup(dev controller, bitstream []byte, logger ports.Logger) error {
	if err := control(dev, protocol.ReqIOVoltage, 0, protocol.PortA|protocol.PortB, protocol.Voltage3V3); err != nil {
		return fmt.Errorf("set I/O voltage: %w", err)
	}

	if len(bitstream) == 0 {
		return nil
	}

	chunks := 0
	for off := 0; off < len(bitstream); off += protocol.BitstreamChunkSize {
		end := min(off+protocol.BitstreamChunkSize, len(bitstream))
		if err := control(dev, protocol.ReqFPGAConfig, 0, uint16(chunks), bitstream[off:end]); err != nil {
			return fmt.Errorf("upload bitstream chunk %d: %w", chunks, err)
		}
		chunks++
	}
	if err := control(dev, protocol.ReqBitstreamID, 0, 0, protocol.BitstreamIDAll); err != nil {
		return fmt.Errorf("write bitstream ID: %w", err)
	}
	logger.Info("Uploaded bitstream (%d bytes in %d chunks)", len(bitstream), chunks)
	return nil
}

func control(dev controller, request uint8, val, idx uint16, data []byte) error {
	n, err := dev.Control(protocol.RequestTypeVendor, request, val, idx, data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return fmt.Errorf("%w: %d of %d bytes", ErrShortControl, n, len(data))
	}
	return nil
}

// ReadBulk reads from the IN endpoint, giving up after timeout.
func (l *Link) ReadBulk(ctx context.Context, buf []byte, timeout time.Duration) (int, error) {
	readCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	n, err := l.ep.ReadContext(readCtx, buf)
	if err != nil && n == 0 {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if readCtx.Err() != nil || errors.Is(err, gousb.TransferTimedOut) || errors.Is(err, gousb.ErrorTimeout) {
			return 0, ports.ErrReadTimeout
		}
		return 0, err
	}
	return n, nil
}

// Close releases the interface, configuration, device and libusb context.
func (l *Link) Close() error {
	var errs []error
	if l.intf != nil {
		l.intf.Close()
		l.intf = nil
	}
	if l.cfg != nil {
		if err := l.cfg.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close config: %w", err))
		}
		l.cfg = nil
	}
	if l.dev != nil {
		if err := l.dev.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close device: %w", err))
		}
		l.dev = nil
	}
	if l.usb != nil {
		if err := l.usb.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close usb context: %w", err))
		}
		l.usb = nil
	}
	return errors.Join(errs...)
}

// Ensure Link implements ports.Link
var _ ports.Link = (*Link)(nil)
