// Package alert announces fired reminders on the host: an optional chime
// followed by the reminder text spoken through an external TTS command.
package alert

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"

	"github.com/edgard/herald/internal/config"
)

const speakTimeout = 30 * time.Second

// Speaker plays a chime and speaks text through a TTS command such as espeak-ng.
type Speaker struct {
	command   string
	voice     string
	chimeFile string
	logger    *slog.Logger

	// One utterance at a time; overlapping reminders queue up.
	mu       sync.Mutex
	initOnce sync.Once
	initErr  error
}

// NewSpeaker creates a speaker from cfg.
func NewSpeaker(cfg config.AlertConfig, logger *slog.Logger) *Speaker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Speaker{
		command:   cfg.Command,
		voice:     cfg.Voice,
		chimeFile: cfg.ChimeFile,
		logger:    logger.With("component", "alert"),
	}
}

// Speak plays the chime, if configured, then speaks text. A chime failure is
// logged and does not prevent speech.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.chimeFile != "" {
		if err := s.chime(ctx); err != nil {
			s.logger.WarnContext(ctx, "Failed to play chime", "file", s.chimeFile, "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, speakTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.command, s.args(text)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s failed: %w: %s", s.command, err, strings.TrimSpace(string(out)))
	}
	s.logger.DebugContext(ctx, "Spoke alert", "text", text)
	return nil
}

func (s *Speaker) args(text string) []string {
	var args []string
	if s.voice != "" {
		args = append(args, "-v", s.voice)
	}
	return append(args, text)
}

func (s *Speaker) chime(ctx context.Context) error {
	f, err := os.Open(s.chimeFile)
	if err != nil {
		return err
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to decode mp3: %w", err)
	}
	defer streamer.Close()

	// The audio device is opened once per process with the first chime's rate.
	s.initOnce.Do(func() {
		s.initErr = speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10))
	})
	if s.initErr != nil {
		return fmt.Errorf("failed to open audio device: %w", s.initErr)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(streamer, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}

// Nop is an alerter that does nothing, used when alerts are disabled.
type Nop struct{}

// Speak implements the alerter interface.
func (Nop) Speak(context.Context, string) error { return nil }
