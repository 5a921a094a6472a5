package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

const (
	chunkSize   = 32 * 1024
	dialTimeout = 10 * time.Second
)

// Recognizer drives recognize-once sessions against a streaming speech
// recognition service: one websocket session per voice note, binary PCM
// frames in, exactly one final transcript out.
type Recognizer struct {
	endpoint string
	apiKey   string
	language string
	dialer   *websocket.Dialer
	logger   *slog.Logger
}

func NewRecognizer(endpoint, apiKey, language string, logger *slog.Logger) *Recognizer {
	return &Recognizer{
		endpoint: endpoint,
		apiKey:   apiKey,
		language: language,
		dialer:   &websocket.Dialer{HandshakeTimeout: dialTimeout},
		logger:   logger,
	}
}

type resultMessage struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Error   string `json:"error,omitempty"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

type sessionResult struct {
	text string
	err  error
}

// Transcribe pushes the PCM stream into one recognition session and resolves
// to the final transcript, or "" when no speech was detected. The session is
// closed on every exit path.
func (r *Recognizer) Transcribe(ctx context.Context, pcm io.Reader) (string, error) {
	buf := make([]byte, chunkSize)

	// A stream that closes without producing a single byte means nothing was
	// decodable; by policy that is an empty transcript, not a failure, and no
	// session is opened for it.
	n, err := pcm.Read(buf)
	if n == 0 {
		if err == nil || errors.Is(err, io.EOF) {
			return "", nil
		}
		return "", fmt.Errorf("reading audio stream: %w", err)
	}

	conn, err := r.dial(ctx)
	if err != nil {
		return "", fmt.Errorf("opening recognition session: %w", err)
	}
	defer conn.Close()

	results := make(chan sessionResult, 1)
	go r.readResults(conn, results)

	if err := r.pump(conn, pcm, buf, n, results); err != nil {
		return "", err
	}

	select {
	case res := <-results:
		if res.err != nil {
			return "", fmt.Errorf("recognition session: %w", res.err)
		}
		return res.text, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (r *Recognizer) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(r.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing endpoint: %w", err)
	}
	q := u.Query()
	q.Set("language", r.language)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", "16000")
	q.Set("channels", "1")
	q.Set("interim_results", "false")
	u.RawQuery = q.Encode()

	header := http.Header{
		"Authorization": {"Token " + r.apiKey},
	}

	conn, _, err := r.dialer.DialContext(ctx, u.String(), header)
	return conn, err
}

// pump writes the first chunk and then the rest of the stream as binary
// frames, signaling end-of-audio when the stream closes. The pipe read is
// the only buffering between the subprocess and the session.
func (r *Recognizer) pump(conn *websocket.Conn, pcm io.Reader, buf []byte, n int, results chan sessionResult) error {
	var sent int
	for {
		if n > 0 {
			if err := conn.WriteMessage(websocket.BinaryMessage, buf[:n]); err != nil {
				// A write can race the server finalizing early; a pending
				// result wins over the broken pipe.
				if res, ok := pendingResult(results); ok {
					return res
				}
				return fmt.Errorf("pushing audio: %w", err)
			}
			sent += n
		}

		var err error
		n, err = pcm.Read(buf)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return fmt.Errorf("reading audio stream: %w", err)
			}
			break
		}
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		if res, ok := pendingResult(results); ok {
			return res
		}
		return fmt.Errorf("closing audio stream: %w", err)
	}

	r.logger.Debug("audio pushed to recognition session", "bytes", sent)
	return nil
}

// pendingResult checks for a result that arrived while pump still owned
// control flow. An error result surfaces as the session error; a success
// result is put back for the caller to pick up.
func pendingResult(results chan sessionResult) (error, bool) {
	select {
	case res := <-results:
		if res.err != nil {
			return fmt.Errorf("recognition session: %w", res.err), true
		}
		results <- res
		return nil, true
	default:
		return nil, false
	}
}

func (r *Recognizer) readResults(conn *websocket.Conn, results chan<- sessionResult) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			results <- sessionResult{err: err}
			return
		}

		var res resultMessage
		if err := json.Unmarshal(msg, &res); err != nil {
			r.logger.Debug("unparseable session message", "error", err)
			continue
		}

		if res.Type == "error" || res.Error != "" {
			results <- sessionResult{err: errors.New(res.Error)}
			return
		}

		if !res.IsFinal {
			continue
		}

		text := ""
		if len(res.Channel.Alternatives) > 0 {
			text = res.Channel.Alternatives[0].Transcript
		}
		results <- sessionResult{text: text}
		return
	}
}
