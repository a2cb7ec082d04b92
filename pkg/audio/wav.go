package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

const (
	formatPCM        = 1
	formatIEEEFloat  = 3
	formatExtensible = 0xFFFE
)

// ErrUnsupported is returned for WAV encodings the decoder does not handle.
var ErrUnsupported = errors.New("audio: unsupported WAV encoding")

// wavHeader holds the parsed fmt chunk fields.
type wavHeader struct {
	format        uint16
	channels      uint16
	sampleRate    uint32
	bitsPerSample uint16
}

// ReadWAV decodes a RIFF/WAV stream. 16-bit integer PCM and 32-bit IEEE
// float are accepted at any sample rate and channel count; float samples
// are converted to 16-bit PCM. Unknown chunks are skipped.
func ReadWAV(r io.ReadSeeker) (*Clip, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("audio: read RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, errors.New("audio: not a RIFF/WAVE file")
	}

	var (
		h        wavHeader
		fmtFound bool
	)
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, fmt.Errorf("audio: read chunk header: %w", err)
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			var err error
			if h, err = readFmtChunk(r, size); err != nil {
				return nil, err
			}
			fmtFound = true

		case "data":
			if !fmtFound {
				return nil, errors.New("audio: data chunk before fmt chunk")
			}
			return readDataChunk(r, size, h)

		default:
			// Chunks are padded to an even length.
			skip := int64(size) + int64(size%2)
			if _, err := r.Seek(skip, io.SeekCurrent); err != nil {
				return nil, fmt.Errorf("audio: skip chunk %q: %w", id, err)
			}
		}
	}
	if !fmtFound {
		return nil, errors.New("audio: missing fmt chunk")
	}
	return nil, errors.New("audio: missing data chunk")
}

// ReadWAVFile is a convenience wrapper that opens a file path.
func ReadWAVFile(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audio: open %q: %w", path, err)
	}
	defer f.Close()
	return ReadWAV(f)
}

// Load reads the WAV file at path and converts it to [STTFormat].
func Load(path string) (*Clip, error) {
	clip, err := ReadWAVFile(path)
	if err != nil {
		return nil, err
	}
	return Convert(clip, STTFormat), nil
}

func readFmtChunk(r io.ReadSeeker, size uint32) (wavHeader, error) {
	var h wavHeader
	if size < 16 {
		return h, fmt.Errorf("audio: fmt chunk too short (%d bytes)", size)
	}
	buf := make([]byte, size+size%2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return h, fmt.Errorf("audio: read fmt chunk: %w", err)
	}
	h.format = binary.LittleEndian.Uint16(buf[0:2])
	h.channels = binary.LittleEndian.Uint16(buf[2:4])
	h.sampleRate = binary.LittleEndian.Uint32(buf[4:8])
	// Skip byteRate (4 bytes) and blockAlign (2 bytes).
	h.bitsPerSample = binary.LittleEndian.Uint16(buf[14:16])

	// WAVE_FORMAT_EXTENSIBLE carries the real format in the sub-format GUID.
	if h.format == formatExtensible && size >= 26 {
		h.format = binary.LittleEndian.Uint16(buf[24:26])
	}

	switch {
	case h.channels == 0:
		return h, fmt.Errorf("%w: zero channels", ErrUnsupported)
	case h.sampleRate == 0:
		return h, fmt.Errorf("%w: zero sample rate", ErrUnsupported)
	case h.format == formatPCM && h.bitsPerSample == 16:
	case h.format == formatIEEEFloat && h.bitsPerSample == 32:
	default:
		return h, fmt.Errorf("%w: format %d with %d bits per sample", ErrUnsupported, h.format, h.bitsPerSample)
	}
	return h, nil
}

func readDataChunk(r io.Reader, size uint32, h wavHeader) (*Clip, error) {
	raw := make([]byte, size)
	n, err := io.ReadFull(r, raw)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("audio: read PCM data: %w", err)
	}
	// Tolerate a truncated final chunk, as many recorders write a
	// placeholder size.
	raw = raw[:n]

	frameBytes := int(h.channels) * int(h.bitsPerSample) / 8
	raw = raw[:len(raw)-len(raw)%frameBytes]

	pcm := raw
	if h.format == formatIEEEFloat {
		samples := make([]float32, len(raw)/4)
		for i := range samples {
			samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		pcm = Float32ToPCM(samples)
	}
	return &Clip{Data: pcm, SampleRate: int(h.sampleRate), Channels: int(h.channels)}, nil
}

// EncodeWAV wraps clip's PCM data in a standard 44-byte RIFF/WAV header.
func EncodeWAV(clip *Clip) []byte {
	const bps = 16
	byteRate := clip.SampleRate * clip.Channels * bps / 8
	blockAlign := clip.Channels * bps / 8
	dataSize := len(clip.Data)

	var buf bytes.Buffer
	buf.Grow(44 + dataSize)

	// RIFF chunk descriptor
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize)) // file size − 8
	buf.WriteString("WAVE")

	// fmt sub-chunk
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))              // sub-chunk size (PCM)
	_ = binary.Write(&buf, binary.LittleEndian, uint16(formatPCM))       // audio format
	_ = binary.Write(&buf, binary.LittleEndian, uint16(clip.Channels))   // num channels
	_ = binary.Write(&buf, binary.LittleEndian, uint32(clip.SampleRate)) // sample rate
	_ = binary.Write(&buf, binary.LittleEndian, uint32(byteRate))        // byte rate
	_ = binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))      // block align
	_ = binary.Write(&buf, binary.LittleEndian, uint16(bps))             // bits per sample

	// data sub-chunk
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(clip.Data)

	return buf.Bytes()
}
