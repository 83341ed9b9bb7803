package whisper_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/reelwright/pkg/audio"
	"github.com/MrWong99/reelwright/pkg/provider/stt"
	"github.com/MrWong99/reelwright/pkg/provider/stt/whisper"
)

func writeSegment(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "segment-001.wav")
	if err := audio.WriteWAV(path, make([]byte, 3200), audio.Target); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNew_EmptyServerURL_ReturnsError(t *testing.T) {
	t.Parallel()
	if _, err := whisper.New(""); err == nil {
		t.Fatal("expected error for empty serverURL, got nil")
	}
}

func TestTranscribe_PostsInference(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/inference" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		file, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if hdr.Filename != "segment-001.wav" || len(data) != 44+3200 {
			t.Errorf("upload = %q (%d bytes)", hdr.Filename, len(data))
		}
		if got := r.FormValue("language"); got != "uz" {
			t.Errorf("language = %q, want uz", got)
		}
		if got := r.FormValue("model"); got != "small" {
			t.Errorf("model = %q, want small", got)
		}
		if got := r.FormValue("temperature"); got != "0.2" {
			t.Errorf("temperature = %q, want 0.2", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": " salom \n"})
	}))
	defer srv.Close()

	p, err := whisper.New(srv.URL+"/", whisper.WithModel("small"), whisper.WithLanguage("en"), whisper.WithTemperature(0.2))
	if err != nil {
		t.Fatal(err)
	}
	got, err := p.Transcribe(context.Background(), stt.Request{Path: writeSegment(t), Language: "uz"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "salom" {
		t.Errorf("Transcribe = %q, want salom", got)
	}
}

func TestTranscribe_ServerError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := whisper.New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Transcribe(context.Background(), stt.Request{Path: writeSegment(t)})
	if err == nil || !strings.Contains(err.Error(), "model not loaded") {
		t.Fatalf("Transcribe error = %v, want server message", err)
	}
}

func TestTranscribe_MissingFile(t *testing.T) {
	t.Parallel()
	p, err := whisper.New("http://127.0.0.1:1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Transcribe(context.Background(), stt.Request{Path: filepath.Join(t.TempDir(), "gone.wav")}); err == nil {
		t.Fatal("expected error for missing segment")
	}
}

func TestTranscribe_MalformedJSON(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "{not json")
	}))
	defer srv.Close()

	p, err := whisper.New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Transcribe(context.Background(), stt.Request{Path: writeSegment(t)}); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestTranscribe_CancelledContext(t *testing.T) {
	t.Parallel()
	p, err := whisper.New("http://127.0.0.1:1")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Transcribe(ctx, stt.Request{Path: writeSegment(t)}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
