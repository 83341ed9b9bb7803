package audio

import "log/slog"

// ToTarget converts interleaved 16-bit PCM in format from to the canonical
// [Target] format. Resampling runs before downmixing so stereo input only
// pays for one interpolation pass per frame. Input already in the target
// format is returned unchanged.
func ToTarget(pcm []byte, from Format) []byte {
	if len(pcm)%2 != 0 {
		slog.Warn("audio: odd byte count in PCM data, dropping trailing byte", "bytes", len(pcm))
		pcm = pcm[:len(pcm)-1]
	}
	if from == Target {
		return pcm
	}

	if from.Channels > 2 {
		pcm = DownmixMono(pcm, from.Channels)
		from.Channels = 1
	}
	if from.SampleRate != TargetSampleRate {
		if from.Channels == 1 {
			pcm = ResampleMono16(pcm, from.SampleRate, TargetSampleRate)
		} else {
			pcm = ResampleStereo16(pcm, from.SampleRate, TargetSampleRate)
		}
	}
	if from.Channels == 2 {
		pcm = StereoToMono(pcm)
	}
	return pcm
}

// StereoToMono averages L+R per stereo frame (4 bytes) to produce mono output.
func StereoToMono(pcm []byte) []byte {
	return DownmixMono(pcm, 2)
}

// DownmixMono averages every frame of interleaved channels down to a single
// int16 sample. Arithmetic is done in int32 so the sum cannot overflow.
func DownmixMono(pcm []byte, channels int) []byte {
	if channels <= 1 {
		return pcm
	}
	frameBytes := channels * 2
	frames := len(pcm) / frameBytes
	out := make([]byte, frames*2)
	for i := range frames {
		var sum int32
		for ch := range channels {
			off := i*frameBytes + ch*2
			sum += int32(int16(pcm[off]) | int16(pcm[off+1])<<8)
		}
		avg := clamp16(sum / int32(channels))
		out[i*2] = byte(avg)
		out[i*2+1] = byte(avg >> 8)
	}
	return out
}

// ResampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using linear
// interpolation. If srcRate == dstRate, the input is returned unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	return resample16(pcm, 1, srcRate, dstRate)
}

// ResampleStereo16 resamples 16-bit interleaved stereo PCM from srcRate to
// dstRate using linear interpolation on each channel.
func ResampleStereo16(pcm []byte, srcRate, dstRate int) []byte {
	return resample16(pcm, 2, srcRate, dstRate)
}

func resample16(pcm []byte, channels, srcRate, dstRate int) []byte {
	frameBytes := channels * 2
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(pcm) < frameBytes {
		return pcm
	}
	srcFrames := len(pcm) / frameBytes
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	if dstFrames == 0 {
		return nil
	}

	out := make([]byte, dstFrames*frameBytes)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstFrames {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)
		next := srcIdx + 1
		if next >= srcFrames {
			next = srcIdx
		}
		for ch := range channels {
			a := sampleAt(pcm, srcIdx*frameBytes+ch*2)
			b := sampleAt(pcm, next*frameBytes+ch*2)
			v := int16(float64(a)*(1-frac) + float64(b)*frac)
			off := i*frameBytes + ch*2
			out[off] = byte(v)
			out[off+1] = byte(v >> 8)
		}
	}
	return out
}

func sampleAt(pcm []byte, off int) int16 {
	return int16(pcm[off]) | int16(pcm[off+1])<<8
}

func clamp16(v int32) int16 {
	switch {
	case v > 32767:
		return 32767
	case v < -32768:
		return -32768
	}
	return int16(v)
}

// int16sToBytes converts int16 PCM samples to little-endian bytes.
func int16sToBytes(pcm []int16) []byte {
	b := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}

// Float32 scales 16-bit PCM samples into [-1, 1). A trailing odd byte is
// dropped. Channels stay interleaved.
func Float32(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/2)
	for i := range out {
		out[i] = float32(sampleAt(pcm, i*2)) / 32768
	}
	return out
}
