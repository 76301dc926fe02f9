package voice

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"crawlchat/config"
)

// Recorder captures microphone audio as a stream of fragments. The channel
// is closed once capture has ended and every fragment was delivered. Err is
// consulted after the close: a non-nil error means capture failed rather
// than finishing.
type Recorder interface {
	Start(ctx context.Context) (<-chan []byte, error)
	Stop() error
	Err() error
}

// Player plays one reply and blocks until playback ends.
type Player interface {
	Play(ctx context.Context, audio []byte) error
}

// Update reports a change in the current exchange. Role is set when a
// transcript entry should be appended.
type Update struct {
	Seq    uint64
	Phase  Phase
	Role   string
	Text   string
	Prompt string
	Err    error
}

// Client runs voice exchanges against the /voice-chat endpoint. At most one
// exchange is live; starting a new one tears down the previous connection.
type Client struct {
	URL    string
	Dialer *websocket.Dialer

	recorder Recorder
	player   Player
	updates  chan Update

	mu      sync.Mutex
	seq     uint64
	current *exchange
}

type exchange struct {
	seq      uint64
	conn     *websocket.Conn
	cancel   context.CancelFunc
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewClient(url string, recorder Recorder, player Player) *Client {
	return &Client{
		URL:      url,
		Dialer:   websocket.DefaultDialer,
		recorder: recorder,
		player:   player,
		updates:  make(chan Update, 64),
	}
}

// Updates delivers exchange progress. The channel is never closed.
func (c *Client) Updates() <-chan Update {
	return c.updates
}

// Start opens a fresh connection and begins recording. It returns the
// sequence number tagged on every update of the new exchange.
func (c *Client) Start(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		c.current.close()
		c.current = nil
	}

	conn, _, err := c.Dialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to voice endpoint: %w", err)
	}

	exCtx, cancel := context.WithCancel(context.Background())
	fragments, err := c.recorder.Start(exCtx)
	if err != nil {
		cancel()
		conn.Close()
		return 0, fmt.Errorf("failed to start recording: %w", err)
	}

	c.seq++
	ex := &exchange{
		seq:    c.seq,
		conn:   conn,
		cancel: cancel,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	c.current = ex

	logf("voice exchange %d started against %s", ex.seq, c.URL)
	go c.run(exCtx, ex, fragments)

	return ex.seq, nil
}

// Stop ends capture on the current exchange. The recording is sent once the
// server has signalled readiness.
func (c *Client) Stop() error {
	c.mu.Lock()
	ex := c.current
	c.mu.Unlock()

	if ex == nil {
		return ErrNotRecording
	}
	ex.stopOnce.Do(func() { close(ex.stop) })
	return nil
}

// Cancel aborts the current exchange, discarding anything still in flight.
func (c *Client) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		logf("voice exchange %d cancelled", c.current.seq)
		c.current.close()
		c.current = nil
	}
}

// Close releases the live exchange, if any.
func (c *Client) Close() error {
	c.Cancel()
	return nil
}

func (ex *exchange) close() {
	ex.cancel()
	ex.conn.Close()
	<-ex.done
}

func (c *Client) run(ctx context.Context, ex *exchange, fragments <-chan []byte) {
	defer close(ex.done)

	events := make(chan Event)
	readErrs := make(chan error, 1)
	go readFrames(ctx, ex.conn, events, readErrs)

	playDone := make(chan error, 1)
	capturing := true
	stopRequested := ex.stop

	defer func() {
		if capturing {
			c.stopRecorder()
		}
	}()
	defer ex.cancel()

	state, _ := Step(State{}, StartInput{})
	c.emit(ctx, Update{Seq: ex.seq, Phase: state.Phase})

	for {
		var in Input

		select {
		case <-ctx.Done():
			return

		case <-stopRequested:
			stopRequested = nil
			if capturing {
				c.stopRecorder()
				capturing = false
			}
			continue

		case data, ok := <-fragments:
			if !ok {
				fragments = nil
				capturing = false
				if err := c.recorder.Err(); err != nil {
					in = FailureInput{Err: fmt.Errorf("recording failed: %w", err)}
				} else {
					in = StopInput{}
				}
			} else {
				in = FragmentInput{Data: data}
			}

		case ev := <-events:
			in = ServerInput{Event: ev}

		case err := <-readErrs:
			if state.Phase == PhaseIdle && !capturing {
				logf("voice exchange %d closed: %v", ex.seq, err)
				return
			}
			in = FailureInput{Err: fmt.Errorf("voice connection lost: %w", err)}

		case err := <-playDone:
			in = PlaybackDoneInput{Err: err}
		}

		for in != nil {
			prev := state.Phase
			reported := false
			var effects []Effect
			state, effects = Step(state, in)
			in = nil

			for _, eff := range effects {
				switch eff := eff.(type) {
				case SendAudioEffect:
					logf("voice exchange %d: sending %d bytes from %d fragments", ex.seq, len(eff.Payload), eff.Fragments)
					if err := ex.conn.WriteMessage(websocket.BinaryMessage, eff.Payload); err != nil {
						in = FailureInput{Err: fmt.Errorf("failed to send recording: %w", err)}
					}

				case SendCompleteEffect:
					if err := ex.conn.WriteMessage(websocket.TextMessage, completeFrame()); err != nil {
						in = FailureInput{Err: fmt.Errorf("failed to acknowledge playback: %w", err)}
					}

				case PlayEffect:
					audio := eff.Audio
					go func() {
						playDone <- c.player.Play(ctx, audio)
					}()

				case AppendEffect:
					c.emit(ctx, Update{Seq: ex.seq, Phase: state.Phase, Role: eff.Role, Text: eff.Text, Prompt: eff.Prompt})
					reported = true

				case CloseEffect:
					logf("voice exchange %d failed: %v", ex.seq, eff.Err)
					ex.conn.Close()
					c.emit(ctx, Update{Seq: ex.seq, Phase: state.Phase, Err: eff.Err})
					return
				}
			}

			if state.Phase != prev && !reported {
				c.emit(ctx, Update{Seq: ex.seq, Phase: state.Phase})
			}
		}
	}
}

func (c *Client) stopRecorder() {
	if err := c.recorder.Stop(); err != nil {
		logf("failed to stop recorder: %v", err)
	}
}

// emit delivers an update unless the exchange was torn down first.
func (c *Client) emit(ctx context.Context, u Update) {
	select {
	case c.updates <- u:
	case <-ctx.Done():
	}
}

func readFrames(ctx context.Context, conn *websocket.Conn, events chan<- Event, errs chan<- error) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err == nil {
			var ev Event
			ev, err = ParseFrame(messageType, data)
			if err == nil {
				select {
				case events <- ev:
					continue
				case <-ctx.Done():
					return
				}
			}
		}

		select {
		case errs <- err:
		case <-ctx.Done():
		}
		return
	}
}

func logf(format string, args ...any) {
	if config.DebugLog != nil {
		config.DebugLog.Printf("[Voice] "+format, args...)
	}
}
