package analysis

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/tidwall/gjson"
)

// DoneSentinel is the data payload that terminates an OpenAI-style stream.
const DoneSentinel = "[DONE]"

// maxLineBytes bounds a single SSE line; image-heavy prompts can echo large frames.
const maxLineBytes = 1 << 20

// TokenStream yields incremental text tokens. Next returns io.EOF once the
// terminal sentinel has been seen or the underlying stream ended.
type TokenStream interface {
	Next(ctx context.Context) (string, error)
	Close() error
}

// Frame is one dispatched server-sent event.
type Frame struct {
	Event string
	Data  string
	ID    string
}

// Decoder splits an SSE byte stream into frames.
type Decoder struct {
	scanner *bufio.Scanner
}

func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Decoder{scanner: sc}
}

// Next returns the next frame that carries data. Comment lines (heartbeats)
// and frames without a data field are dropped. A trailing frame without the
// closing blank line is still dispatched at EOF.
func (d *Decoder) Next() (Frame, error) {
	var (
		f       Frame
		data    []string
		hasData bool
	)
	for d.scanner.Scan() {
		line := strings.TrimRight(d.scanner.Text(), "\r")
		if line == "" {
			if hasData {
				f.Data = strings.Join(data, "\n")
				return f, nil
			}
			f = Frame{}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "data":
			data = append(data, value)
			hasData = true
		case "event":
			f.Event = value
		case "id":
			f.ID = value
		}
	}
	if err := d.scanner.Err(); err != nil {
		return Frame{}, err
	}
	if hasData {
		f.Data = strings.Join(data, "\n")
		return f, nil
	}
	return Frame{}, io.EOF
}

// tokenPaths are the places known completion APIs put the incremental text.
var tokenPaths = []string{
	"choices.0.delta.content",
	"choices.0.text",
	"candidates.0.content.parts.0.text",
	"token",
	"text",
}

// ExtractToken pulls the text delta out of one frame's data. ok is false for
// frames that carry no token: heartbeats, keep-alive pings, partial JSON.
func ExtractToken(data string) (token string, done bool, ok bool) {
	data = strings.TrimSpace(data)
	if data == DoneSentinel {
		return "", true, false
	}
	if data == "" || !gjson.Valid(data) {
		return "", false, false
	}
	parsed := gjson.Parse(data)
	if !parsed.IsObject() {
		return "", false, false
	}
	for _, p := range tokenPaths {
		if v := parsed.Get(p); v.Exists() && v.Type == gjson.String {
			return v.String(), false, true
		}
	}
	return "", false, false
}

// SSETokens adapts an SSE body into a TokenStream.
type SSETokens struct {
	body    io.ReadCloser
	decoder *Decoder
	done    bool

	// Skipped counts frames dropped as heartbeats or unparseable chunks.
	Skipped int
}

func NewSSETokens(body io.ReadCloser) *SSETokens {
	return &SSETokens{body: body, decoder: NewDecoder(body)}
}

func (s *SSETokens) Next(ctx context.Context) (string, error) {
	for {
		if s.done {
			return "", io.EOF
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		f, err := s.decoder.Next()
		if errors.Is(err, io.EOF) {
			s.done = true
			return "", io.EOF
		}
		if err != nil {
			return "", err
		}
		if f.Event == "error" {
			return "", &UpstreamError{Message: f.Data}
		}
		tok, done, ok := ExtractToken(f.Data)
		if done {
			s.done = true
			return "", io.EOF
		}
		if !ok {
			s.Skipped++
			continue
		}
		if tok == "" {
			continue
		}
		return tok, nil
	}
}

func (s *SSETokens) Close() error {
	return s.body.Close()
}

// UpstreamError is an error event sent by the completion endpoint mid-stream.
type UpstreamError struct {
	Message string
}

func (e *UpstreamError) Error() string {
	msg := gjson.Get(e.Message, "error.message").String()
	if msg == "" {
		msg = e.Message
	}
	return "upstream stream error: " + msg
}

// ChanTokens is a TokenStream fed by a producer goroutine, used for SDKs that
// deliver chunks through a callback.
type ChanTokens struct {
	tokens chan string
	errc   chan error
	cancel context.CancelFunc
}

// NewChanTokens starts produce in a goroutine. produce must call emit for each
// chunk and return when the upstream call finishes.
func NewChanTokens(ctx context.Context, produce func(ctx context.Context, emit func(string) error) error) *ChanTokens {
	ctx, cancel := context.WithCancel(ctx)
	c := &ChanTokens{
		tokens: make(chan string, 16),
		errc:   make(chan error, 1),
		cancel: cancel,
	}
	go func() {
		defer close(c.tokens)
		err := produce(ctx, func(tok string) error {
			select {
			case c.tokens <- tok:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		c.errc <- err
	}()
	return c
}

func (c *ChanTokens) Next(ctx context.Context) (string, error) {
	select {
	case tok, ok := <-c.tokens:
		if ok {
			return tok, nil
		}
		if err := <-c.errc; err != nil {
			c.errc <- err
			return "", err
		}
		c.errc <- nil
		return "", io.EOF
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *ChanTokens) Close() error {
	c.cancel()
	return nil
}
