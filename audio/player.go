package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// CommandPlayer pipes each reply into an external player's stdin.
type CommandPlayer struct {
	Command string
}

func NewCommandPlayer(command string) *CommandPlayer {
	return &CommandPlayer{Command: command}
}

func (p *CommandPlayer) Play(ctx context.Context, audio []byte) error {
	fields := strings.Fields(p.Command)
	if len(fields) == 0 {
		return fmt.Errorf("no play command configured")
	}

	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
	cmd.Stdin = bytes.NewReader(audio)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logf("playing %d bytes with %s", len(audio), fields[0])
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("failed to play audio: %w: %s", err, msg)
		}
		return fmt.Errorf("failed to play audio: %w", err)
	}
	return nil
}

// FilePlayer saves each reply to a directory instead of playing it.
type FilePlayer struct {
	Dir string
	Ext string

	mu    sync.Mutex
	saved []string
}

func NewFilePlayer(dir string) *FilePlayer {
	return &FilePlayer{Dir: dir, Ext: ".mp3"}
}

func (p *FilePlayer) Play(ctx context.Context, audio []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(p.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	ext := p.Ext
	if ext == "" {
		ext = ".mp3"
	}
	path := filepath.Join(p.Dir, "reply-"+uuid.New().String()+ext)
	if err := os.WriteFile(path, audio, 0644); err != nil {
		return fmt.Errorf("failed to write audio: %w", err)
	}

	p.mu.Lock()
	p.saved = append(p.saved, path)
	p.mu.Unlock()

	logf("saved reply audio to %s", path)
	return nil
}

// Saved lists the files written so far.
func (p *FilePlayer) Saved() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.saved))
	copy(out, p.saved)
	return out
}
