package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"time"
)

const (
	bitsPerSample  = 16
	wavHeaderBytes = 44
)

var errNotWAV = errors.New("not a RIFF/WAVE file")

// EncodeWAV wraps raw 16-bit signed little-endian PCM data in a standard
// RIFF/WAV container.
func EncodeWAV(pcm []byte, f Format) []byte {
	byteRate := f.SampleRate * f.Channels * bitsPerSample / 8
	blockAlign := f.Channels * bitsPerSample / 8
	dataSize := len(pcm)

	buf := make([]byte, wavHeaderBytes+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}

// DecodeWAV parses a RIFF/WAVE container holding 16-bit integer PCM and
// returns the raw sample bytes and their format. Chunks other than "fmt " and
// "data" (LIST, fact, ...) are skipped.
func DecodeWAV(data []byte) ([]byte, Format, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, Format{}, errNotWAV
	}

	var (
		f       Format
		haveFmt bool
	)
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		end := body + size
		if end > len(data) || end < body {
			// Streaming writers leave the data size unset; take what exists.
			if id == "data" {
				end = len(data)
			} else {
				return nil, Format{}, fmt.Errorf("chunk %q overruns file", id)
			}
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, Format{}, fmt.Errorf("fmt chunk too short (%d bytes)", size)
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			bits := binary.LittleEndian.Uint16(data[body+14 : body+16])
			// 0xFFFE is WAVE_FORMAT_EXTENSIBLE; its subformat is assumed PCM.
			if (format != 1 && format != 0xFFFE) || bits != bitsPerSample {
				return nil, Format{}, fmt.Errorf("unsupported WAV encoding (format %d, %d bits)", format, bits)
			}
			f.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			f.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, Format{}, errors.New("data chunk before fmt chunk")
			}
			if f.Channels <= 0 || f.SampleRate <= 0 {
				return nil, Format{}, fmt.Errorf("invalid WAV format %s", f)
			}
			pcm := data[body:end]
			return pcm[:len(pcm)-len(pcm)%(2*f.Channels)], f, nil
		}

		off = end + size%2 // chunks are word aligned
	}
	return nil, Format{}, errors.New("no data chunk")
}

// ReadWAV loads and decodes the WAV file at path.
func ReadWAV(path string) ([]byte, Format, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Format{}, err
	}
	return DecodeWAV(data)
}

// WriteWAV encodes pcm as a WAV file at path.
func WriteWAV(path string, pcm []byte, f Format) error {
	return os.WriteFile(path, EncodeWAV(pcm, f), 0o600)
}

// PCMDuration returns the playback duration of n bytes of 16-bit PCM.
func PCMDuration(n int, f Format) time.Duration {
	bytesPerSec := f.SampleRate * f.Channels * bitsPerSample / 8
	if bytesPerSec <= 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(bytesPerSec))
}

// pcmOffset converts a time offset into a frame-aligned byte offset.
func pcmOffset(d time.Duration, f Format) int {
	frameBytes := f.Channels * bitsPerSample / 8
	frames := int64(d) * int64(f.SampleRate) / int64(time.Second)
	return int(frames) * frameBytes
}
