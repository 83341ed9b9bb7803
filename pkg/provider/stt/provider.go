// Package stt defines the Provider interface for speech-to-text backends.
//
// Transcription here is batch and file based: the caller hands over one
// normalized WAV segment and blocks until the backend returns its text. A
// backend may be a plain HTTP endpoint (package httpstt), a whisper.cpp
// server or in-process model (package whisper), or Deepgram (package
// deepgram).
//
// Implementations must be safe for concurrent use; the transcription pipeline
// may run several segments in parallel.
package stt

import "context"

// Request describes one segment to transcribe.
type Request struct {
	// Path is a 16-bit PCM WAV file.
	Path string

	// SampleRate is the sample rate of the file in Hz.
	SampleRate int

	// Channels is the channel count of the file.
	Channels int

	// Language is an optional BCP-47 hint ("uz", "en-US"). Empty lets the
	// backend decide.
	Language string
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe returns the recognized text of the segment at req.Path. An
	// empty string with a nil error means the backend heard nothing. Transport
	// failures, timeouts, non-2xx responses and malformed bodies are errors.
	Transcribe(ctx context.Context, req Request) (string, error)
}
