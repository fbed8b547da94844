package sink

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	logx "kolwatch/pkg/logx"
)

const (
	DefaultPlayer        = "afplay"
	DefaultSoundFile     = "notification.mp3"
	DefaultFallbackSound = "/System/Library/Sounds/Glass.aiff"
)

type AudioConfig struct {
	// Player is the command that plays a sound file given as its last argument.
	Player string
	Args   []string

	SoundFile     string
	FallbackSound string
}

// Audio plays a sound for every post and prints it to the log. Status and
// error notifications are logged only.
type Audio struct {
	cfg AudioConfig
	log logx.Logger

	run    func(ctx context.Context, name string, args ...string) ([]byte, error)
	exists func(path string) bool
}

func NewAudio(cfg AudioConfig, log logx.Logger) *Audio {
	if strings.TrimSpace(cfg.Player) == "" {
		cfg.Player = DefaultPlayer
	}
	if cfg.SoundFile == "" {
		cfg.SoundFile = DefaultSoundFile
	}
	if cfg.FallbackSound == "" {
		cfg.FallbackSound = DefaultFallbackSound
	}
	return &Audio{cfg: cfg, log: log, run: runCommand, exists: fileExists}
}

func (a *Audio) Name() string { return "audio" }

func (a *Audio) Deliver(ctx context.Context, n Notification) error {
	if n.Kind != KindPost {
		if n.Kind == KindError {
			a.log.Warn(FormatPlain(n))
		} else {
			a.log.Info(FormatPlain(n))
		}
		return nil
	}
	a.log.Info("new post",
		logx.String("handle", n.Handle),
		logx.String("text", n.Text),
		logx.String("url", n.Permalink),
	)

	sound := a.sound()
	args := append(append([]string(nil), a.cfg.Args...), sound)
	out, err := a.run(ctx, a.cfg.Player, args...)
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("play %s: %w: %s", sound, err, msg)
		}
		return fmt.Errorf("play %s: %w", sound, err)
	}
	return nil
}

// sound picks the configured file, or the system sound when it is missing.
func (a *Audio) sound() string {
	if a.exists(a.cfg.SoundFile) {
		return a.cfg.SoundFile
	}
	return a.cfg.FallbackSound
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
