package processors

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"videoTranscriptQA/core"
	"videoTranscriptQA/logging"
	"videoTranscriptQA/metrics"
)

// Extractor downloads the best available audio stream for a remote URL
// and transcodes it to a single-file codec under the work directory.
type Extractor interface {
	ExtractAudio(ctx context.Context, url, destPath string) error
}

// Resolver normalizes uploaded byte streams and remote URLs into local
// audio assets the rest of the pipeline can consume. Every asset it
// returns is owned: the caller must delete it when the request ends.
type Resolver struct {
	WorkDir   string
	Extractor Extractor
	logger    zerolog.Logger
}

func NewResolver(workDir string, extractor Extractor) *Resolver {
	return &Resolver{
		WorkDir:   workDir,
		Extractor: extractor,
		logger:    logging.WithComponent("resolver"),
	}
}

// ResolveUpload writes an uploaded byte stream to a uniquely named file
// in the work directory. An empty stream is rejected; a partial file is
// removed before the error propagates.
func (r *Resolver) ResolveUpload(src io.Reader, filename string) (core.AudioAsset, error) {
	if err := os.MkdirAll(r.WorkDir, 0755); err != nil {
		return core.AudioAsset{}, core.NewAcquisitionError(fmt.Errorf("create work dir: %w", err))
	}

	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".mp3"
	}
	dest := filepath.Join(r.WorkDir, uuid.NewString()+ext)

	f, err := os.Create(dest)
	if err != nil {
		return core.AudioAsset{}, core.NewAcquisitionError(fmt.Errorf("create temp file: %w", err))
	}

	n, err := io.Copy(f, src)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dest)
		return core.AudioAsset{}, core.NewAcquisitionError(fmt.Errorf("write upload: %w", err))
	}
	if n == 0 {
		os.Remove(dest)
		return core.AudioAsset{}, core.NewAcquisitionError(fmt.Errorf("uploaded stream is empty"))
	}

	metrics.TempFilesCreated.Inc()
	r.logger.Debug().Str("path", dest).Int64("bytes", n).Msg("upload saved")
	return core.AudioAsset{Path: dest, Owned: true}, nil
}

// ResolveURL delegates to the extractor and returns the downloaded
// audio as an owned asset. Whatever the extractor left behind on
// failure is removed before the error propagates.
func (r *Resolver) ResolveURL(ctx context.Context, url string) (core.AudioAsset, error) {
	if strings.TrimSpace(url) == "" {
		return core.AudioAsset{}, core.NewAcquisitionError(fmt.Errorf("url is empty"))
	}
	if err := os.MkdirAll(r.WorkDir, 0755); err != nil {
		return core.AudioAsset{}, core.NewAcquisitionError(fmt.Errorf("create work dir: %w", err))
	}

	dest := filepath.Join(r.WorkDir, uuid.NewString()+".mp3")
	if err := r.Extractor.ExtractAudio(ctx, url, dest); err != nil {
		removeWithPartials(dest)
		return core.AudioAsset{}, core.NewAcquisitionError(fmt.Errorf("extract audio from url: %w", err))
	}
	if fi, err := os.Stat(dest); err != nil || fi.Size() == 0 {
		removeWithPartials(dest)
		return core.AudioAsset{}, core.NewAcquisitionError(fmt.Errorf("extractor produced no audio for %s", url))
	}

	metrics.TempFilesCreated.Inc()
	r.logger.Debug().Str("path", dest).Str("url", url).Msg("audio downloaded")
	return core.AudioAsset{Path: dest, Owned: true}, nil
}

// removeWithPartials deletes the destination file along with any
// intermediate artifacts the extractor may have written next to it
// (yt-dlp leaves .part and pre-transcode files on interruption).
func removeWithPartials(dest string) {
	os.Remove(dest)
	stem := strings.TrimSuffix(dest, filepath.Ext(dest))
	if matches, err := filepath.Glob(stem + ".*"); err == nil {
		for _, m := range matches {
			os.Remove(m)
		}
	}
	if matches, err := filepath.Glob(dest + ".part"); err == nil {
		for _, m := range matches {
			os.Remove(m)
		}
	}
}

// YtDlpExtractor shells out to yt-dlp for the download and lets its
// ffmpeg postprocessor produce a single mp3 file.
type YtDlpExtractor struct {
	Binary string
}

func NewYtDlpExtractor() *YtDlpExtractor {
	return &YtDlpExtractor{Binary: "yt-dlp"}
}

func (y *YtDlpExtractor) ExtractAudio(ctx context.Context, url, destPath string) error {
	// yt-dlp appends the final extension itself, so hand it the stem.
	stem := strings.TrimSuffix(destPath, filepath.Ext(destPath))
	args := []string{
		"-f", "bestaudio/best",
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", "192K",
		"--no-playlist",
		"--quiet",
		"-o", stem + ".%(ext)s",
		url,
	}
	cmd := exec.CommandContext(ctx, y.Binary, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("yt-dlp failed: %v: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
