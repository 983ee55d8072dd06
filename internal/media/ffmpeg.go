package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/calwin/live-speech-translator/pkg/file"
	"github.com/calwin/live-speech-translator/pkg/log"
)

// streamSampleRate is the sample rate the recognizer expects.
const streamSampleRate = "16000"

type ffmpeg struct {
	ffmpegCmd string
	filePath  string
	fileDir   string
	fileName  string
}

func NewFfmpeg(mediaPath string) ffmpeg {
	mediaPath = filepath.Clean(mediaPath)

	return ffmpeg{
		ffmpegCmd: "ffmpeg",
		filePath:  mediaPath,
		fileDir:   filepath.Dir(mediaPath),
		fileName:  filepath.Base(mediaPath),
	}
}

// ExtractAudio strips the audio track out of the media file and writes it to
// toDir as 16 kHz mono PCM WAV, the format the recognizer ingests.
func (ff ffmpeg) ExtractAudio(ctx context.Context, toDir, name string) (string, error) {
	output := filepath.Join(toDir, name)

	cmdPath, err := exec.LookPath(ff.ffmpegCmd)
	if err != nil {
		return "", fmt.Errorf("ffmpeg not found: %w", err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, cmdPath, ff.extractAudioArgs(output)...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		log.Error("ffmpeg audio extraction failed: %v: %s", err, stderr.String())
		return "", fmt.Errorf("failed to extract audio: %w", err)
	}
	return output, nil
}

// DefExtractAudio extracts next to the source file, deriving the output name
// from it.
func (ff ffmpeg) DefExtractAudio(ctx context.Context) (string, error) {
	return ff.ExtractAudio(ctx, ff.fileDir, file.ReplaceExt(ff.fileName, ".wav"))
}

func (ff ffmpeg) extractAudioArgs(targetPath string) []string {
	return []string{
		"-y",
		"-i", ff.filePath,
		"-vn", // drop the video stream
		"-ac", "1",
		"-ar", streamSampleRate,
		"-acodec", "pcm_s16le",
		"-f", "wav",
		targetPath,
	}
}
