// Package edf reads European Data Format recordings and slices them
// into fixed-length snippets for rating. The format is self-describing:
// a fixed-width ASCII header, per-channel headers, then data records of
// little-endian int16 samples scaled to physical units.
package edf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Recording is one parsed EDF file with samples converted to physical
// units (microvolts for EEG channels).
type Recording struct {
	ChannelNames []string
	// Data is indexed [channel][sample].
	Data         [][]float64
	SamplingRate float64
	// Duration is the total recording length in seconds.
	Duration float64
}

// ReadRecording parses the EDF file at path.
func ReadRecording(path string) (*Recording, error) {
	f, err := os.Open(path) // #nosec G304 -- operator-supplied data directory
	if err != nil {
		return nil, fmt.Errorf("open edf: %w", err)
	}
	defer f.Close()
	return parse(bufio.NewReader(f))
}

// header carries the fixed part of the EDF header needed for decoding.
type header struct {
	headerSize     int
	numRecords     int
	recordDuration float64
	numChannels    int
}

func parse(r *bufio.Reader) (*Recording, error) {
	hdr, err := parseHeader(r)
	if err != nil {
		return nil, err
	}

	chans, err := parseChannelHeaders(r, hdr.numChannels)
	if err != nil {
		return nil, err
	}

	// The header may pad beyond the fixed and per-channel blocks;
	// anything before the declared data offset is discarded.
	consumed := 256 + hdr.numChannels*256
	if hdr.headerSize > consumed {
		if _, err := io.CopyN(io.Discard, r, int64(hdr.headerSize-consumed)); err != nil {
			return nil, fmt.Errorf("skip header padding: %w", err)
		}
	}

	// All channels are expected to share a sampling rate; the source
	// recordings do, and mixed-rate files are out of scope.
	samplesPerRecord := chans.samplesPerRecord[0]
	totalSamples := hdr.numRecords * samplesPerRecord

	data := make([][]float64, hdr.numChannels)
	for ch := range data {
		data[ch] = make([]float64, 0, totalSamples)
	}

	maxSamples := 0
	for _, n := range chans.samplesPerRecord {
		if n > maxSamples {
			maxSamples = n
		}
	}
	buf := make([]byte, 2*maxSamples)
	for rec := 0; rec < hdr.numRecords; rec++ {
		for ch := 0; ch < hdr.numChannels; ch++ {
			n := chans.samplesPerRecord[ch]
			if _, err := io.ReadFull(r, buf[:2*n]); err != nil {
				return nil, fmt.Errorf("read data record %d channel %d: %w", rec, ch, err)
			}
			// Digital-to-physical conversion. The digital value must be
			// widened before scaling or int16 range recordings overflow.
			scale := (chans.physMax[ch] - chans.physMin[ch]) /
				float64(chans.digMax[ch]-chans.digMin[ch])
			for i := 0; i < n; i++ {
				digital := int16(binary.LittleEndian.Uint16(buf[2*i:]))
				physical := (float64(digital)-float64(chans.digMin[ch]))*scale + chans.physMin[ch]
				data[ch] = append(data[ch], physical)
			}
		}
	}

	return &Recording{
		ChannelNames: chans.names,
		Data:         data,
		SamplingRate: float64(samplesPerRecord) / hdr.recordDuration,
		Duration:     float64(hdr.numRecords) * hdr.recordDuration,
	}, nil
}

func parseHeader(r *bufio.Reader) (header, error) {
	var hdr header
	fields := []struct {
		width int
		name  string
		dst   func(string) error
	}{
		{8, "version", skip},
		{80, "patient id", skip},
		{80, "recording id", skip},
		{8, "start date", skip},
		{8, "start time", skip},
		{8, "header size", intField(&hdr.headerSize)},
		{44, "reserved", skip},
		{8, "record count", intField(&hdr.numRecords)},
		{8, "record duration", floatField(&hdr.recordDuration)},
		{4, "channel count", intField(&hdr.numChannels)},
	}
	for _, f := range fields {
		raw, err := readField(r, f.width)
		if err != nil {
			return hdr, fmt.Errorf("read %s: %w", f.name, err)
		}
		if err := f.dst(raw); err != nil {
			return hdr, fmt.Errorf("parse %s %q: %w", f.name, raw, err)
		}
	}
	if hdr.numChannels <= 0 || hdr.numRecords <= 0 || hdr.recordDuration <= 0 {
		return hdr, fmt.Errorf("invalid edf header: %d channels, %d records, %.3fs records",
			hdr.numChannels, hdr.numRecords, hdr.recordDuration)
	}
	return hdr, nil
}

// channelHeaders holds the per-channel header arrays, each stored as a
// contiguous block of fixed-width fields in file order.
type channelHeaders struct {
	names            []string
	physMin, physMax []float64
	digMin, digMax   []int
	samplesPerRecord []int
}

func parseChannelHeaders(r *bufio.Reader, n int) (channelHeaders, error) {
	ch := channelHeaders{
		names:            make([]string, n),
		physMin:          make([]float64, n),
		physMax:          make([]float64, n),
		digMin:           make([]int, n),
		digMax:           make([]int, n),
		samplesPerRecord: make([]int, n),
	}

	blocks := []struct {
		width int
		name  string
		store func(i int, raw string) error
	}{
		{16, "label", func(i int, raw string) error { ch.names[i] = raw; return nil }},
		{80, "transducer", func(int, string) error { return nil }},
		{8, "physical dimension", func(int, string) error { return nil }},
		{8, "physical minimum", func(i int, raw string) error { return parseFloat(raw, &ch.physMin[i]) }},
		{8, "physical maximum", func(i int, raw string) error { return parseFloat(raw, &ch.physMax[i]) }},
		{8, "digital minimum", func(i int, raw string) error { return parseInt(raw, &ch.digMin[i]) }},
		{8, "digital maximum", func(i int, raw string) error { return parseInt(raw, &ch.digMax[i]) }},
		{80, "prefiltering", func(int, string) error { return nil }},
		{8, "samples per record", func(i int, raw string) error { return parseInt(raw, &ch.samplesPerRecord[i]) }},
		{32, "reserved", func(int, string) error { return nil }},
	}

	for _, b := range blocks {
		for i := 0; i < n; i++ {
			raw, err := readField(r, b.width)
			if err != nil {
				return ch, fmt.Errorf("read channel %s [%d]: %w", b.name, i, err)
			}
			if err := b.store(i, raw); err != nil {
				return ch, fmt.Errorf("parse channel %s [%d] %q: %w", b.name, i, raw, err)
			}
		}
	}

	for i := 0; i < n; i++ {
		if ch.digMax[i] == ch.digMin[i] {
			return ch, fmt.Errorf("channel %d: digital range is empty", i)
		}
		if ch.samplesPerRecord[i] <= 0 {
			return ch, fmt.Errorf("channel %d: invalid samples per record %d", i, ch.samplesPerRecord[i])
		}
	}
	return ch, nil
}

func readField(r *bufio.Reader, width int) (string, error) {
	buf := make([]byte, width)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return strings.TrimSpace(string(buf)), nil
}

func skip(string) error { return nil }

func intField(dst *int) func(string) error {
	return func(raw string) error { return parseInt(raw, dst) }
}

func floatField(dst *float64) func(string) error {
	return func(raw string) error { return parseFloat(raw, dst) }
}

func parseInt(raw string, dst *int) error {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func parseFloat(raw string, dst *float64) error {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}
