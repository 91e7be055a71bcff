package web

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-avatar/pkg/camera"
	"github.com/teslashibe/go-avatar/pkg/tracking"
)

type fakeTracker struct {
	mu     sync.Mutex
	status tracking.Status
	params tracking.TuningParams
}

func (f *fakeTracker) Status() tracking.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeTracker) GetTuningParams() tracking.TuningParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.params
}

func (f *fakeTracker) SetTuningParams(p tracking.TuningParams) error {
	if p.Smoothing > 1 {
		return errors.New("smoothing out of range")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.Smoothing > 0 {
		f.params.Smoothing = p.Smoothing
	}
	if p.DetectionHz > 0 {
		f.params.DetectionHz = p.DetectionHz
	}
	return nil
}

func do(t *testing.T, s *Server, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]interface{}
	if len(data) > 0 && data[0] == '{' {
		require.NoError(t, json.Unmarshal(data, &out))
	}
	return resp.StatusCode, out
}

func TestStatus(t *testing.T) {
	s := NewServer(Config{Port: "0"})

	s.UpdateAvatar(tracking.Status{ID: "pushed", Expression: tracking.Surprised})
	code, body := do(t, s, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pushed", body["id"])
	assert.Equal(t, "surprised", body["expression"])

	s.SetTracker(&fakeTracker{status: tracking.Status{
		ID:         "live",
		Running:    true,
		Expression: tracking.Happy,
		Rendered:   tracking.Pose{X: 10, Y: 20, Scale: 1},
	}})
	code, body = do(t, s, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "live", body["id"])
	assert.Equal(t, "happy", body["expression"])
	assert.Equal(t, true, body["running"])
	rendered := body["rendered"].(map[string]interface{})
	assert.Equal(t, 20.0, rendered["y"])
}

func TestTuning(t *testing.T) {
	s := NewServer(Config{Port: "0"})

	code, _ := do(t, s, http.MethodGet, "/api/tuning", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	s.SetTracker(&fakeTracker{params: tracking.TuningParams{Smoothing: 0.3, DetectionHz: 20}})

	code, body := do(t, s, http.MethodGet, "/api/tuning", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0.3, body["smoothing"])

	code, body = do(t, s, http.MethodPut, "/api/tuning", `{"smoothing":0.5}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0.5, body["smoothing"])
	assert.Equal(t, 20.0, body["detection_hz"])

	code, body = do(t, s, http.MethodPut, "/api/tuning", `{"smoothing":3}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["error"], "smoothing")

	code, _ = do(t, s, http.MethodPut, "/api/tuning", `{not json`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCamera(t *testing.T) {
	s := NewServer(Config{Port: "0"})

	code, _ := do(t, s, http.MethodGet, "/api/camera", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	manager := camera.NewManager(camera.DefaultConfig())
	var applied int
	manager.OnConfigChange = func(camera.Config) error {
		applied++
		return nil
	}
	s.SetCamera(manager)

	code, body := do(t, s, http.MethodGet, "/api/camera", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 640.0, body["width"])

	code, body = do(t, s, http.MethodPut, "/api/camera", `{"preset":"720p","quality":70}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1280.0, body["width"])
	assert.Equal(t, 70.0, body["quality"])
	assert.Equal(t, 1, applied)

	code, _ = do(t, s, http.MethodPut, "/api/camera", `{"width":5}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, 1280, manager.GetConfig().Width)

	req := httptest.NewRequest(http.MethodGet, "/api/camera/presets", nil)
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	var names []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&names))
	assert.Equal(t, camera.PresetNames(), names)
}

func TestLogs(t *testing.T) {
	s := NewServer(Config{Port: "0"})
	for i := 0; i < maxLogs+20; i++ {
		s.AddLog("info", "entry")
	}
	s.AddLog("expression", "neutral → happy")

	logs := s.Logs()
	require.Len(t, logs, maxLogs)
	assert.Equal(t, "expression", logs[len(logs)-1].Type)

	req := httptest.NewRequest(http.MethodGet, "/api/logs", nil)
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	var got []LogEntry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Len(t, got, maxLogs)
}

func TestFrame(t *testing.T) {
	s := NewServer(Config{Port: "0"})

	code, _ := do(t, s, http.MethodGet, "/api/frame", "")
	assert.Equal(t, http.StatusNotFound, code)

	s.WriteFrame([]byte{0xff, 0xd8, 0xff, 0xd9})

	req := httptest.NewRequest(http.MethodGet, "/api/frame", nil)
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	data, _ := io.ReadAll(resp.Body)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff, 0xd9}, data)
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	s := NewServer(Config{Port: "0"})
	for _, path := range []string{"/ws/frames", "/ws/status", "/ws/logs"} {
		code, _ := do(t, s, http.MethodGet, path, "")
		assert.Equal(t, http.StatusUpgradeRequired, code, path)
	}
}

func TestShutdownBeforeStart(t *testing.T) {
	s := NewServer(Config{Port: "0"})
	assert.NoError(t, s.Shutdown())
}

// startLocal serves s on an ephemeral port and returns a dialable address.
func startLocal(t *testing.T, s *Server) string {
	t.Helper()
	require.NoError(t, s.StartAsync(context.Background()))
	t.Cleanup(func() { s.Shutdown() })

	_, port, err := net.SplitHostPort(s.Addr())
	require.NoError(t, err)
	return "127.0.0.1:" + port
}

func TestStatusWS_InitialStatusMatchesREST(t *testing.T) {
	s := NewServer(Config{Port: "0"})
	s.UpdateAvatar(tracking.Status{ID: "stale"})
	s.SetTracker(&fakeTracker{status: tracking.Status{ID: "live", Expression: tracking.Happy}})
	addr := startLocal(t, s)

	code, body := do(t, s, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "live", body["id"])

	conn, _, err := gorillaws.DefaultDialer.Dial("ws://"+addr+"/ws/status", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var got tracking.Status
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "live", got.ID)
	assert.Equal(t, tracking.Happy, got.Expression)
}

func TestStartAfterShutdown(t *testing.T) {
	s := NewServer(Config{Port: "0"})
	require.NoError(t, s.Shutdown())

	assert.ErrorIs(t, s.StartAsync(context.Background()), ErrServerClosed)
	assert.ErrorIs(t, s.Start(context.Background()), ErrServerClosed)
	assert.Empty(t, s.Addr())
}

func TestShutdownRacingStartAsync(t *testing.T) {
	s := NewServer(Config{Port: "0"})
	require.NoError(t, s.StartAsync(context.Background()))
	_, port, err := net.SplitHostPort(s.Addr())
	require.NoError(t, err)

	// No wait: the serving goroutine may not have reached the listener yet.
	require.NoError(t, s.Shutdown())

	for _, h := range []interface{ Done() <-chan struct{} }{s.statusHub, s.logHub, s.frameHub} {
		select {
		case <-h.Done():
		case <-time.After(2 * time.Second):
			t.Fatal("hub still running after Shutdown")
		}
	}

	assert.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", "127.0.0.1:"+port, 100*time.Millisecond)
		if err != nil {
			return true
		}
		conn.Close()
		return false
	}, 2*time.Second, 20*time.Millisecond, "port still accepting after Shutdown")

	assert.NoError(t, s.Shutdown())
}
