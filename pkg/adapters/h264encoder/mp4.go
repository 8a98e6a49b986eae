package h264encoder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Eyevinn/mp4ff/mp4"
)

// NAL unit types used when splitting the elementary stream.
const (
	naluSlice    = 1
	naluIDR      = 5
	naluSEI      = 6
	naluSPS      = 7
	naluPPS      = 8
	naluAUD      = 9
	naluTypeMask = 0x1f
)

// sampleDuration is the length of one frame in timescale units.
const sampleDuration = 1000

// accessUnit holds the NAL units of one coded picture.
type accessUnit struct {
	nalus    [][]byte
	keyframe bool
}

func (au *accessUnit) hasSlice() bool {
	for _, n := range au.nalus {
		if t := n[0] & naluTypeMask; t == naluSlice || t == naluIDR {
			return true
		}
	}
	return false
}

// splitAccessUnits groups an Annex B stream into pictures. Delimiters start
// a new unit; as a fallback so does any non-slice or slice NAL that follows
// a complete picture.
func splitAccessUnits(stream []byte) []accessUnit {
	var units []accessUnit
	for _, nalu := range parseAnnexB(stream) {
		if len(nalu) == 0 {
			continue
		}
		typ := nalu[0] & naluTypeMask

		n := len(units)
		switch {
		case typ == naluAUD:
			units = append(units, accessUnit{})
			continue
		case n == 0:
			units = append(units, accessUnit{})
		case units[n-1].hasSlice() && (typ == naluSlice || typ == naluIDR || typ == naluSEI || typ == naluSPS || typ == naluPPS):
			units = append(units, accessUnit{})
		}

		au := &units[len(units)-1]
		au.nalus = append(au.nalus, nalu)
		if typ == naluIDR {
			au.keyframe = true
		}
	}

	out := units[:0]
	for _, au := range units {
		if au.hasSlice() {
			out = append(out, au)
		}
	}
	return out
}

// buildMP4 creates a fragmented MP4 container with one constant-duration
// sample per access unit.
func buildMP4(units []accessUnit, width, height int, fps float64) ([]byte, error) {
	if len(units) == 0 {
		return nil, ErrNoFrames
	}

	timescale := uint32(math.Round(fps * sampleDuration))
	trackID := uint32(1)

	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(timescale, "video", "und")
	trak := init.Moov.Trak

	sps, pps, err := extractSPSPPS(units)
	if err != nil {
		return nil, fmt.Errorf("extract SPS/PPS: %w", err)
	}

	avcC, err := mp4.CreateAvcC([][]byte{sps}, [][]byte{pps}, true)
	if err != nil {
		return nil, fmt.Errorf("create avcC: %w", err)
	}

	avc1 := mp4.CreateVisualSampleEntryBox("avc1", uint16(width), uint16(height), avcC)
	trak.Mdia.Minf.Stbl.Stsd.AddChild(avc1)
	trak.Tkhd.Width = mp4.Fixed32(width << 16)
	trak.Tkhd.Height = mp4.Fixed32(height << 16)

	frag, err := mp4.CreateFragment(1, trackID)
	if err != nil {
		return nil, fmt.Errorf("create fragment: %w", err)
	}

	for i, au := range units {
		flags := mp4.NonSyncSampleFlags
		if au.keyframe {
			flags = mp4.SyncSampleFlags
		}

		data := convertToAVCC(au.nalus)
		frag.AddFullSample(mp4.FullSample{
			Sample: mp4.Sample{
				Flags: flags,
				Size:  uint32(len(data)),
				Dur:   sampleDuration,
			},
			DecodeTime: uint64(i) * sampleDuration,
			Data:       data,
		})
	}

	var buf bytes.Buffer

	ftyp := mp4.NewFtyp("isom", 0x200, []string{"isom", "iso2", "avc1", "mp41"})
	if err := ftyp.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode ftyp: %w", err)
	}
	if err := init.Moov.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode moov: %w", err)
	}
	if err := frag.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode fragment: %w", err)
	}

	return buf.Bytes(), nil
}

// extractSPSPPS returns the first SPS and PPS in the stream.
func extractSPSPPS(units []accessUnit) (sps, pps []byte, err error) {
	for _, au := range units {
		for _, nalu := range au.nalus {
			switch nalu[0] & naluTypeMask {
			case naluSPS:
				if sps == nil {
					sps = append([]byte(nil), nalu...)
				}
			case naluPPS:
				if pps == nil {
					pps = append([]byte(nil), nalu...)
				}
			}
		}
		if sps != nil && pps != nil {
			return sps, pps, nil
		}
	}

	if sps == nil {
		return nil, nil, fmt.Errorf("SPS not found")
	}
	return nil, nil, fmt.Errorf("PPS not found")
}

// parseAnnexB parses Annex B byte stream into individual NAL units.
func parseAnnexB(data []byte) [][]byte {
	var nalus [][]byte
	start := -1
	i := 0

	for i+2 < len(data) {
		// start code 0x000001, optionally preceded by another zero
		if data[i] == 0 && data[i+1] == 0 && data[i+2] == 1 {
			if start >= 0 {
				end := i
				if end > start && data[end-1] == 0 {
					end--
				}
				nalus = append(nalus, data[start:end])
			}
			i += 3
			start = i
			continue
		}
		i++
	}

	if start >= 0 && start < len(data) {
		nalus = append(nalus, data[start:])
	}
	return nalus
}

// convertToAVCC writes NAL units length-prefixed, leaving out parameter sets
// which live in the avcC box.
func convertToAVCC(nalus [][]byte) []byte {
	var out []byte
	for _, nalu := range nalus {
		if t := nalu[0] & naluTypeMask; t == naluSPS || t == naluPPS {
			continue
		}
		out = binary.BigEndian.AppendUint32(out, uint32(len(nalu)))
		out = append(out, nalu...)
	}
	return out
}
