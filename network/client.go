package network

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"

	"github.com/luca-patrignani/mental-arena/errs"
	"github.com/luca-patrignani/mental-arena/note"
)

// Client is the transport of one identity on a remote board.
type Client struct {
	baseURL   string
	identity  string
	client    *http.Client
	tlsConfig *tls.Config
	maxTries  uint
	logger    *slog.Logger

	sendMu sync.Mutex
	clock  uint64
	synced atomic.Bool
}

type ClientOption func(*Client)

// WithTimeout bounds every HTTP request.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = timeout
	}
}

// WithLimitedCAs trusts only the certificates in pool.
func WithLimitedCAs(pool *x509.CertPool) ClientOption {
	return func(c *Client) {
		c.tlsConfig = &tls.Config{RootCAs: pool}
		c.client.Transport = &http.Transport{TLSClientConfig: c.tlsConfig}
	}
}

// WithMaxTries bounds the attempts of one send.
func WithMaxTries(n uint) ClientOption {
	return func(c *Client) {
		c.maxTries = n
	}
}

func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

func NewClient(baseURL, identity string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		identity: identity,
		client:   &http.Client{Timeout: 10 * time.Second},
		maxTries: 5,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Identity is the sender identity of the client.
func (c *Client) Identity() string {
	return c.identity
}

// Connect synchronizes the sender clock. Until it succeeds Send and Observe
// report errs.ErrNotReady.
func (c *Client) Connect(ctx context.Context) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.syncClock(ctx)
}

func (c *Client) syncClock(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/clock?sender="+url.QueryEscape(c.identity), nil)
	if err != nil {
		return err
	}
	var resp clockResponse
	if err := c.do(req, http.StatusOK, &resp); err != nil {
		return fmt.Errorf("sync clock: %w", err)
	}
	c.clock = resp.Clock
	c.synced.Store(true)
	c.logger.Debug("clock synchronized", "clock", resp.Clock)
	return nil
}

// Send posts payload to recipient. Sends are serialized; a clock mismatch
// resynchronizes the clock before the next attempt.
func (c *Client) Send(ctx context.Context, recipient string, payload []byte) (note.ID, error) {
	if !c.synced.Load() {
		return "", errs.ErrNotReady
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	op := func() (note.ID, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/notes", bytes.NewReader(payload))
		if err != nil {
			return "", backoff.Permanent(err)
		}
		req.Header.Set(headerClock, strconv.FormatUint(c.clock, 10))
		req.Header.Set(headerSender, c.identity)
		req.Header.Set(headerRecipient, recipient)
		var m note.Message
		err = c.do(req, http.StatusCreated, &m)
		switch {
		case err == nil:
			c.clock++
			return m.ID, nil
		case errs.CodeOf(err) == errs.CodeStateMismatch:
			if serr := c.syncClock(ctx); serr != nil {
				return "", serr
			}
			return "", err
		case errs.Retryable(err):
			return "", err
		}
		return "", backoff.Permanent(err)
	}
	notify := func(err error, next time.Duration) {
		c.logger.Warn("send failed, retrying", "err", err, "in", next)
	}
	id, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(c.maxTries),
		backoff.WithNotify(notify),
	)
	if err != nil {
		return "", errs.Wrap(errs.CodeTransportSendFailed, "post note", err)
	}
	return id, nil
}

// Observe lists the notes matching f.
func (c *Client) Observe(ctx context.Context, f note.Filter) ([]note.Message, error) {
	if !c.synced.Load() {
		return nil, errs.ErrNotReady
	}
	q := url.Values{}
	if f.Sender != "" {
		q.Set("sender", f.Sender)
	}
	if f.Recipient != "" {
		q.Set("recipient", f.Recipient)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/notes?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var notes []note.Message
	if err := c.do(req, http.StatusOK, &notes); err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return notes, nil
}

// do sends req and decodes a JSON body when the status is want. Failures are
// coded: a conflict is a state mismatch, transport and server errors are
// send failures and the rest are malformed requests.
func (c *Client) do(req *http.Request, want int, v any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return errs.Wrap(errs.CodeTransportSendFailed, req.Method+" "+req.URL.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := fmt.Sprintf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
		switch {
		case resp.StatusCode == http.StatusConflict:
			return errs.New(errs.CodeStateMismatch, msg)
		case resp.StatusCode >= 500:
			return errs.New(errs.CodeTransportSendFailed, msg)
		}
		return errs.New(errs.CodeMalformedSignal, msg)
	}
	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

// Feed subscribes to notes addressed to the client. The returned channel
// receives a value per new note and is closed when the connection drops or
// ctx is done.
func (c *Client) Feed(ctx context.Context) (<-chan struct{}, error) {
	u, err := url.Parse(c.baseURL + "/feed")
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.RawQuery = url.Values{"recipient": {c.identity}}.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second, TLSClientConfig: c.tlsConfig}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial feed: %w", err)
	}
	wake := make(chan struct{}, 1)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go func() {
		defer close(wake)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				c.logger.Debug("feed closed", "err", err)
				return
			}
			var ev FeedEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				continue
			}
			select {
			case wake <- struct{}{}:
			default:
			}
		}
	}()
	return wake, nil
}
