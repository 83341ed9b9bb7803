package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var oggCapture = []byte("OggS")

// oggStream is the logical Opus stream extracted from an Ogg container.
type oggStream struct {
	channels int
	preSkip  int
	// granule is the final granule position (48 kHz samples incl. pre-skip).
	granule int64
	packets [][]byte
}

// demuxOggOpus splits an Ogg container into Opus packets. Only the first
// logical stream is read; chained or multiplexed streams are ignored.
func demuxOggOpus(data []byte) (*oggStream, error) {
	if !bytes.HasPrefix(data, oggCapture) {
		return nil, errors.New("not an Ogg file")
	}

	var (
		packets [][]byte
		partial []byte
		serial  uint32
		granule int64
		first   = true
	)
	off := 0
	for off < len(data) {
		if len(data)-off < 27 || !bytes.Equal(data[off:off+4], oggCapture) {
			return nil, fmt.Errorf("malformed Ogg page at offset %d", off)
		}
		hdr := data[off : off+27]
		pageSerial := binary.LittleEndian.Uint32(hdr[14:18])
		nsegs := int(hdr[26])
		if len(data)-off < 27+nsegs {
			return nil, fmt.Errorf("truncated Ogg segment table at offset %d", off)
		}
		lacing := data[off+27 : off+27+nsegs]
		body := off + 27 + nsegs

		total := 0
		for _, l := range lacing {
			total += int(l)
		}
		if len(data)-body < total {
			return nil, fmt.Errorf("truncated Ogg page at offset %d", off)
		}

		if first {
			serial = pageSerial
			first = false
		}
		if pageSerial == serial {
			if g := int64(binary.LittleEndian.Uint64(hdr[6:14])); g > 0 {
				granule = g
			}
			pos := body
			for _, l := range lacing {
				partial = append(partial, data[pos:pos+int(l)]...)
				pos += int(l)
				if l < 255 {
					packets = append(packets, partial)
					partial = nil
				}
			}
		}
		off = body + total
	}

	if len(packets) < 2 {
		return nil, errors.New("Ogg stream has no Opus headers")
	}
	head := packets[0]
	if len(head) < 19 || !bytes.HasPrefix(head, []byte("OpusHead")) {
		return nil, errors.New("Ogg stream is not Opus")
	}
	if !bytes.HasPrefix(packets[1], []byte("OpusTags")) {
		return nil, errors.New("Opus stream is missing OpusTags")
	}
	channels := int(head[9])
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("unsupported Opus channel count %d", channels)
	}
	return &oggStream{
		channels: channels,
		preSkip:  int(binary.LittleEndian.Uint16(head[10:12])),
		granule:  granule,
		packets:  packets[2:],
	}, nil
}
