package audio_test

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"layeh.com/gopus"

	"github.com/MrWong99/reelwright/pkg/audio"
)

// sinePCM returns n frames of a 440 Hz sine wave at the given format.
func sinePCM(n int, f audio.Format) []byte {
	samples := make([]int16, 0, n*f.Channels)
	for i := range n {
		v := int16(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(f.SampleRate)))
		for range f.Channels {
			samples = append(samples, v)
		}
	}
	return samplesToBytes(samples)
}

// oggPage builds one Ogg page carrying a single complete packet. The CRC
// field is left zero; the demuxer does not verify it.
func oggPage(packet []byte, granule int64, seq uint32, headerType byte) []byte {
	var lacing []byte
	n := len(packet)
	for n >= 255 {
		lacing = append(lacing, 255)
		n -= 255
	}
	lacing = append(lacing, byte(n))

	page := make([]byte, 27, 27+len(lacing)+len(packet))
	copy(page[0:4], "OggS")
	page[5] = headerType
	binary.LittleEndian.PutUint64(page[6:14], uint64(granule))
	binary.LittleEndian.PutUint32(page[14:18], 0x5eed)
	binary.LittleEndian.PutUint32(page[18:22], seq)
	page[26] = byte(len(lacing))
	page = append(page, lacing...)
	return append(page, packet...)
}

// writeOggOpus encodes one second of 48 kHz mono audio as an Ogg/Opus file.
func writeOggOpus(t *testing.T, path string) {
	t.Helper()
	const (
		frameSize = 960
		frames    = 50
		preSkip   = 312
	)
	enc, err := gopus.NewEncoder(48000, 1, gopus.Voip)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}

	head := make([]byte, 19)
	copy(head, "OpusHead")
	head[8] = 1 // version
	head[9] = 1 // channels
	binary.LittleEndian.PutUint16(head[10:12], preSkip)
	binary.LittleEndian.PutUint32(head[12:16], 48000)

	file := oggPage(head, 0, 0, 0x02)
	file = append(file, oggPage([]byte("OpusTags\x00\x00\x00\x00\x00\x00\x00\x00"), 0, 1, 0)...)

	pcm := bytesToSamples(sinePCM(frameSize*frames, audio.Format{SampleRate: 48000, Channels: 1}))
	for i := range frames {
		pkt, err := enc.Encode(pcm[i*frameSize:(i+1)*frameSize], frameSize, 4000)
		if err != nil {
			t.Fatalf("Encode frame %d: %v", i, err)
		}
		var ht byte
		if i == frames-1 {
			ht = 0x04
		}
		granule := int64(preSkip + (i+1)*frameSize)
		file = append(file, oggPage(pkt, granule, uint32(i+2), ht)...)
	}
	if err := os.WriteFile(path, file, 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestNative_NormalizeWAV(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "in.wav")
	dst := filepath.Join(dir, "out.wav")
	in := audio.Format{SampleRate: 48000, Channels: 2}
	if err := audio.WriteWAV(src, sinePCM(96000, in), in); err != nil {
		t.Fatal(err)
	}

	n := audio.NewNative()
	ctx := context.Background()
	if err := n.Normalize(ctx, src, dst); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	pcm, f, err := audio.ReadWAV(dst)
	if err != nil {
		t.Fatalf("ReadWAV: %v", err)
	}
	if f != audio.Target {
		t.Errorf("format = %v, want %v", f, audio.Target)
	}
	if d := audio.PCMDuration(len(pcm), f); d != 2*time.Second {
		t.Errorf("duration = %s, want 2s", d)
	}

	secs, err := n.Duration(ctx, dst)
	if err != nil {
		t.Fatalf("Duration: %v", err)
	}
	if secs != 2 {
		t.Errorf("Duration = %v, want 2", secs)
	}
}

func TestNative_Extract(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "in.wav")
	if err := audio.WriteWAV(src, sinePCM(16000*5, audio.Target), audio.Target); err != nil {
		t.Fatal(err)
	}
	n := audio.NewNative()
	ctx := context.Background()

	dst := filepath.Join(dir, "seg.wav")
	if err := n.Extract(ctx, src, dst, 4*time.Second, 2*time.Second); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	secs, err := n.Duration(ctx, dst)
	if err != nil {
		t.Fatal(err)
	}
	// The slice is clipped at the end of the source.
	if secs != 1 {
		t.Errorf("extracted %v seconds, want 1", secs)
	}

	err = n.Extract(ctx, src, filepath.Join(dir, "none.wav"), 10*time.Second, time.Second)
	if !errors.Is(err, audio.ErrConversion) {
		t.Errorf("Extract past end = %v, want ErrConversion", err)
	}
}

func TestNative_OggOpus(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "voice.ogg")
	dst := filepath.Join(dir, "voice.wav")
	writeOggOpus(t, src)

	n := audio.NewNative()
	ctx := context.Background()

	secs, err := n.Duration(ctx, src)
	if err != nil {
		t.Fatalf("Duration: %v", err)
	}
	if secs != 1 {
		t.Errorf("Duration = %v, want 1", secs)
	}

	if err := n.Normalize(ctx, src, dst); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	pcm, f, err := audio.ReadWAV(dst)
	if err != nil {
		t.Fatal(err)
	}
	if f != audio.Target {
		t.Errorf("format = %v", f)
	}
	got := audio.PCMDuration(len(pcm), f)
	if got < 950*time.Millisecond || got > time.Second {
		t.Errorf("decoded duration = %s, want ~1s", got)
	}
}

func TestNative_UnsupportedContainer(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "clip.mp3")
	if err := os.WriteFile(src, []byte("ID3\x03\x00garbage"), 0o600); err != nil {
		t.Fatal(err)
	}
	n := audio.NewNative()
	err := n.Normalize(context.Background(), src, filepath.Join(dir, "out.wav"))

	var convErr *audio.ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("Normalize = %v, want *ConversionError", err)
	}
	if convErr.Op != "normalize" || convErr.Path != src {
		t.Errorf("ConversionError = %+v", convErr)
	}
	if !errors.Is(err, audio.ErrConversion) {
		t.Error("errors.Is(err, ErrConversion) = false")
	}
}
