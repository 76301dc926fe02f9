package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"crawlchat/config"
)

// ErrPermissionDenied is returned when the capture device cannot be opened.
var ErrPermissionDenied = errors.New("microphone unavailable or permission denied")

const (
	// BytesPerSecond matches the default capture format: 48kHz, 16-bit, mono.
	BytesPerSecond = 48000 * 2

	minFragmentSize = 512
)

// FragmentSize converts a capture cadence into a read size.
func FragmentSize(ms int) int {
	if ms <= 0 {
		ms = config.DefaultFragmentMS
	}
	size := BytesPerSecond * ms / 1000
	if size < minFragmentSize {
		return minFragmentSize
	}
	return size
}

// CommandRecorder captures audio from an external program that writes the
// recording to stdout, such as arecord or ffmpeg.
type CommandRecorder struct {
	Command      string
	FragmentSize int

	mu      sync.Mutex
	cmd     *exec.Cmd
	stopped bool
	err     error
}

func NewCommandRecorder(command string, fragmentMS int) *CommandRecorder {
	return &CommandRecorder{
		Command:      command,
		FragmentSize: FragmentSize(fragmentMS),
	}
}

func (r *CommandRecorder) Start(ctx context.Context) (<-chan []byte, error) {
	fields := strings.Fields(r.Command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no record command configured", ErrPermissionDenied)
	}

	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create capture pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}

	r.mu.Lock()
	r.cmd = cmd
	r.stopped = false
	r.err = nil
	r.mu.Unlock()

	logf("capture started: %s (pid %d)", r.Command, cmd.Process.Pid)

	ch := make(chan []byte)
	go func() {
		defer close(ch)
		captured, _ := pump(ctx, stdout, r.fragmentSize(), ch)
		waitErr := cmd.Wait()
		if waitErr != nil {
			logf("capture exited: %v", waitErr)
		}
		r.finish(ctx, captured, waitErr, strings.TrimSpace(stderr.String()))
	}()

	return ch, nil
}

// finish records why capture ended. Exits caused by Stop or by ctx are
// normal; anything else is a capture failure.
func (r *CommandRecorder) finish(ctx context.Context, captured int, waitErr error, stderr string) {
	if waitErr == nil || ctx.Err() != nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}

	detail := waitErr.Error()
	if stderr != "" {
		detail += ": " + stderr
	}
	if captured == 0 {
		r.err = fmt.Errorf("%w: %s", ErrPermissionDenied, detail)
	} else {
		r.err = fmt.Errorf("capture ended unexpectedly: %s", detail)
	}
}

// Err reports why the last capture failed. It is nil after a clean exit or
// a Stop, and only meaningful once the fragment channel has closed.
func (r *CommandRecorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Stop asks the capture program to finish. Buffered audio is still
// delivered before the fragment channel closes.
func (r *CommandRecorder) Stop() error {
	r.mu.Lock()
	cmd := r.cmd
	r.cmd = nil
	r.stopped = true
	r.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("failed to stop capture: %w", err)
		}
	}
	return nil
}

func (r *CommandRecorder) fragmentSize() int {
	if r.FragmentSize <= 0 {
		return FragmentSize(0)
	}
	return r.FragmentSize
}

// FileRecorder replays a prerecorded file as if it were captured live.
type FileRecorder struct {
	Path         string
	FragmentSize int

	mu     sync.Mutex
	cancel context.CancelFunc
	err    error
}

func NewFileRecorder(path string, fragmentMS int) *FileRecorder {
	return &FileRecorder{
		Path:         path,
		FragmentSize: FragmentSize(fragmentMS),
	}
}

func (r *FileRecorder) Start(ctx context.Context) (<-chan []byte, error) {
	f, err := os.Open(r.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recording: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.err = nil
	r.mu.Unlock()

	size := r.FragmentSize
	if size <= 0 {
		size = FragmentSize(0)
	}

	ch := make(chan []byte)
	go func() {
		defer close(ch)
		defer f.Close()
		if _, err := pump(ctx, f, size, ch); err != nil {
			r.mu.Lock()
			r.err = fmt.Errorf("failed to read recording: %w", err)
			r.mu.Unlock()
		}
	}()

	return ch, nil
}

func (r *FileRecorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	return nil
}

func (r *FileRecorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// pump forwards src to ch in size-byte fragments until EOF or ctx ends. It
// returns the number of bytes delivered and any read error other than EOF.
func pump(ctx context.Context, src io.Reader, size int, ch chan<- []byte) (int, error) {
	total := 0
	for {
		buf := make([]byte, size)
		n, err := io.ReadFull(src, buf)
		if n > 0 {
			select {
			case ch <- buf[:n]:
				total += n
			case <-ctx.Done():
				return total, nil
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

func logf(format string, args ...any) {
	if config.DebugLog != nil {
		config.DebugLog.Printf("[Audio] "+format, args...)
	}
}
