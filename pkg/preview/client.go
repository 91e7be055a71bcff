// Package preview is a client for a running avatar preview server. It follows
// the status and frame streams over websocket and calls the tuning API.
package preview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/teslashibe/go-avatar/internal/httpc"
	"github.com/teslashibe/go-avatar/pkg/tracking"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrUnexpectedMessage is returned when a stream sends the wrong message type.
var ErrUnexpectedMessage = errors.New("preview: unexpected message type")

// Client dials a preview server
type Client struct {
	base   *url.URL
	dialer websocket.Dialer
	http   *http.Client
}

// NewClient creates a client for a server address such as
// "localhost:8090" or "http://host:8090".
func NewClient(addr string) (*Client, error) {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("preview: parse address: %w", err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("preview: unsupported scheme %q", u.Scheme)
	}

	return &Client{
		base: u,
		dialer: websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		http: httpc.New(httpc.DefaultTimeout),
	}, nil
}

// URL returns the websocket URL for a stream path
func (c *Client) URL(path string) string {
	u := *c.base
	u.Path = u.Path + path
	return u.String()
}

// WatchStatus delivers every status update to fn until ctx is done or the
// connection fails. A nil error means ctx ended the watch.
func (c *Client) WatchStatus(ctx context.Context, fn func(tracking.Status)) error {
	return c.stream(ctx, "/ws/status", func(msgType int, data []byte) error {
		if msgType != websocket.TextMessage {
			return ErrUnexpectedMessage
		}
		var status tracking.Status
		if err := json.Unmarshal(data, &status); err != nil {
			return fmt.Errorf("preview: decode status: %w", err)
		}
		fn(status)
		return nil
	})
}

// WatchFrames delivers every rendered JPEG frame to fn until ctx is done or
// the connection fails.
func (c *Client) WatchFrames(ctx context.Context, fn func(jpeg []byte)) error {
	return c.stream(ctx, "/ws/frames", func(msgType int, data []byte) error {
		if msgType != websocket.BinaryMessage {
			return ErrUnexpectedMessage
		}
		fn(data)
		return nil
	})
}

func (c *Client) stream(ctx context.Context, path string, handle func(int, []byte) error) error {
	conn, _, err := c.dialer.DialContext(ctx, c.URL(path), nil)
	if err != nil {
		return fmt.Errorf("preview: dial %s: %w", path, err)
	}
	defer conn.Close()

	// Unblock ReadMessage when ctx ends
	stop := context.AfterFunc(ctx, func() {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	})
	defer stop()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("preview: read %s: %w", path, err)
		}
		if err := handle(msgType, data); err != nil {
			return err
		}
	}
}
