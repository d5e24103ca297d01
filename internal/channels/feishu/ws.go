package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	wsEndpointPath    = "/callback/ws/endpoint"
	wsPingInterval    = 30 * time.Second
	wsReconnectMin    = 2 * time.Second
	wsReconnectMax    = 60 * time.Second
	wsReadLimitBytes  = 1 << 20
	wsHandshakeWindow = 15 * time.Second
)

// WSEventHandler receives raw event payloads from the long connection.
type WSEventHandler interface {
	HandleEvent(ctx context.Context, payload []byte) error
}

// WSClient maintains the Feishu event long connection: endpoint discovery,
// dial, ping keepalive, and reconnect with capped backoff.
type WSClient struct {
	appID     string
	appSecret string
	domain    string
	handler   WSEventHandler

	httpClient *http.Client

	mu   sync.Mutex
	conn *websocket.Conn
	stop chan struct{}
}

// NewWSClient creates a client; call Start to connect.
func NewWSClient(appID, appSecret, domain string, handler WSEventHandler) *WSClient {
	return &WSClient{
		appID:      appID,
		appSecret:  appSecret,
		domain:     domain,
		handler:    handler,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		stop:       make(chan struct{}),
	}
}

// Start runs the connection loop until Stop is called or the context ends.
func (w *WSClient) Start(ctx context.Context) error {
	backoff := wsReconnectMin
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		default:
		}

		err := w.connectAndServe(ctx)
		if err == nil || ctx.Err() != nil {
			return ctx.Err()
		}

		slog.Warn("feishu ws disconnected, reconnecting", "error", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > wsReconnectMax {
			backoff = wsReconnectMax
		}
	}
}

// Stop closes the connection and halts reconnecting.
func (w *WSClient) Stop() {
	close(w.stop)
	w.mu.Lock()
	if w.conn != nil {
		w.conn.Close(websocket.StatusNormalClosure, "shutting down")
	}
	w.mu.Unlock()
}

func (w *WSClient) connectAndServe(ctx context.Context) error {
	wsURL, err := w.fetchEndpoint(ctx)
	if err != nil {
		return err
	}

	dialCtx, cancel := context.WithTimeout(ctx, wsHandshakeWindow)
	conn, _, err := websocket.Dial(dialCtx, wsURL, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("feishu ws dial: %w", err)
	}
	conn.SetReadLimit(wsReadLimitBytes)

	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.conn = nil
		w.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	slog.Info("feishu ws connected")

	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	go w.pingLoop(pingCtx, conn)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("feishu ws read: %w", err)
		}
		w.dispatch(ctx, data)
	}
}

// frame is the envelope of a long-connection message.
type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (w *WSClient) dispatch(ctx context.Context, data []byte) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		// Some control frames are not JSON; ignore them.
		return
	}
	switch f.Type {
	case "event":
		if w.handler == nil {
			return
		}
		if err := w.handler.HandleEvent(ctx, f.Payload); err != nil {
			slog.Warn("feishu ws event handler failed", "error", err)
		}
	case "pong", "":
		// keepalive reply, nothing to do
	}
}

func (w *WSClient) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"ping"}`)); err != nil {
				return
			}
		}
	}
}

// fetchEndpoint asks the platform for this app's long-connection URL.
func (w *WSClient) fetchEndpoint(ctx context.Context) (string, error) {
	body, _ := json.Marshal(map[string]string{
		"AppID":     w.appID,
		"AppSecret": w.appSecret,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		w.domain+wsEndpointPath, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("feishu ws endpoint request: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Data struct {
			URL string `json:"URL"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("feishu ws endpoint decode: %w", err)
	}
	if result.Code != 0 || result.Data.URL == "" {
		return "", fmt.Errorf("feishu ws endpoint error: code=%d msg=%s", result.Code, result.Msg)
	}
	return result.Data.URL, nil
}
