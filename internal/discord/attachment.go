package discord

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/reelwright/internal/content"
)

// audioExtensions are accepted when an attachment carries no audio content
// type.
var audioExtensions = map[string]bool{
	".ogg": true, ".oga": true, ".opus": true, ".mp3": true, ".wav": true,
	".m4a": true, ".aac": true, ".flac": true, ".webm": true,
}

// IsAudio reports whether a is a voice message or an audio file.
func IsAudio(a *discordgo.MessageAttachment) bool {
	if a == nil {
		return false
	}
	if strings.HasPrefix(strings.ToLower(a.ContentType), "audio/") {
		return true
	}
	return audioExtensions[strings.ToLower(filepath.Ext(a.Filename))]
}

// FirstAudio returns the first audio attachment of m, or nil.
func FirstAudio(attachments []*discordgo.MessageAttachment) *discordgo.MessageAttachment {
	for _, a := range attachments {
		if IsAudio(a) {
			return a
		}
	}
	return nil
}

// download fetches a to a temporary file. Attachments over the size limit
// are not stored: the returned Audio carries only their size, which the
// transcription pipeline rejects. The cleanup removes the file.
func (b *Bot) download(ctx context.Context, a *discordgo.MessageAttachment) (content.Audio, func(), error) {
	if int64(a.Size) > b.maxAudioBytes {
		return content.Audio{Size: int64(a.Size)}, nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return content.Audio{}, nil, fmt.Errorf("discord: create download request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return content.Audio{}, nil, fmt.Errorf("discord: download attachment: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return content.Audio{}, nil, fmt.Errorf("discord: download attachment: HTTP %d", resp.StatusCode)
	}

	f, err := os.CreateTemp(b.scratchDir, "attachment-*"+strings.ToLower(filepath.Ext(a.Filename)))
	if err != nil {
		return content.Audio{}, nil, fmt.Errorf("discord: create temp file: %w", err)
	}
	path := f.Name()
	cleanup := func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.Warn("discord: remove attachment", "path", path, "err", err)
		}
	}

	n, copyErr := io.Copy(f, io.LimitReader(resp.Body, b.maxAudioBytes+1))
	closeErr := f.Close()
	switch {
	case copyErr != nil:
		cleanup()
		return content.Audio{}, nil, fmt.Errorf("discord: read attachment: %w", copyErr)
	case closeErr != nil:
		cleanup()
		return content.Audio{}, nil, fmt.Errorf("discord: write attachment: %w", closeErr)
	case n > b.maxAudioBytes:
		cleanup()
		return content.Audio{Size: n}, nil, nil
	}
	return content.Audio{Path: path, Size: n}, cleanup, nil
}
