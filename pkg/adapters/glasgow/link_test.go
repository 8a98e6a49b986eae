package glasgow

import (
	"bytes"
	"errors"
	"testing"

	"github.com/user/lcdtap/pkg/adapters/logger"
	"github.com/user/lcdtap/pkg/protocol"
)

type controlCall struct {
	request uint8
	val     uint16
	idx     uint16
	data    []byte
}

type fakeDevice struct {
	calls   []controlCall
	short   bool
	failAt  int
	failErr error
}

func (f *fakeDevice) Control(rType, request uint8, val, idx uint16, data []byte) (int, error) {
	if rType != protocol.RequestTypeVendor {
		return 0, errors.New("unexpected request type")
	}
	f.calls = append(f.calls, controlCall{request, val, idx, append([]byte(nil), data...)})
	if f.failErr != nil && len(f.calls) == f.failAt {
		return 0, f.failErr
	}
	if f.short {
		return len(data) - 1, nil
	}
	return len(data), nil
}

func TestSetup_VoltageOnly(t *testing.T) {
	dev := &fakeDevice{}
	if err := setup(dev, nil, logger.NewNoop()); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	if len(dev.calls) != 1 {
		t.Fatalf("expected 1 control transfer, got %d", len(dev.calls))
	}
	c := dev.calls[0]
	if c.request != protocol.ReqIOVoltage {
		t.Errorf("expected voltage request, got %#x", c.request)
	}
	if c.idx != protocol.PortA|protocol.PortB {
		t.Errorf("expected both ports, got %#x", c.idx)
	}
	if !bytes.Equal(c.data, []byte{0xe4, 0x0c}) {
		t.Errorf("expected 3.3V payload, got %x", c.data)
	}
}

func TestSetup_Bitstream(t *testing.T) {
	dev := &fakeDevice{}
	bitstream := make([]byte, 2*protocol.BitstreamChunkSize+10)
	for i := range bitstream {
		bitstream[i] = byte(i)
	}

	if err := setup(dev, bitstream, logger.NewNoop()); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	// voltage, three chunks, bitstream ID
	if len(dev.calls) != 5 {
		t.Fatalf("expected 5 control transfers, got %d", len(dev.calls))
	}
	var uploaded []byte
	for i, c := range dev.calls[1:4] {
		if c.request != protocol.ReqFPGAConfig {
			t.Errorf("chunk %d: expected FPGA config request, got %#x", i, c.request)
		}
		if int(c.idx) != i {
			t.Errorf("chunk %d: expected index %d, got %d", i, i, c.idx)
		}
		uploaded = append(uploaded, c.data...)
	}
	if !bytes.Equal(uploaded, bitstream) {
		t.Error("uploaded chunks do not reassemble the bitstream")
	}
	if len(dev.calls[3].data) != 10 {
		t.Errorf("expected 10-byte final chunk, got %d", len(dev.calls[3].data))
	}

	id := dev.calls[4]
	if id.request != protocol.ReqBitstreamID || !bytes.Equal(id.data, protocol.BitstreamIDAll) {
		t.Errorf("unexpected bitstream ID transfer: %+v", id)
	}
}

func TestSetup_ShortTransfer(t *testing.T) {
	dev := &fakeDevice{short: true}
	err := setup(dev, nil, logger.NewNoop())
	if !errors.Is(err, ErrShortControl) {
		t.Errorf("expected ErrShortControl, got %v", err)
	}
}

func TestSetup_UploadFailureStops(t *testing.T) {
	dev := &fakeDevice{failAt: 2, failErr: errors.New("pipe error")}
	bitstream := make([]byte, 3*protocol.BitstreamChunkSize)

	if err := setup(dev, bitstream, logger.NewNoop()); err == nil {
		t.Fatal("expected upload error")
	}
	if len(dev.calls) != 2 {
		t.Errorf("expected setup to stop after the failed chunk, got %d calls", len(dev.calls))
	}
}
