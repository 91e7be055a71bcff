package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-avatar/pkg/camera"
	"github.com/teslashibe/go-avatar/pkg/hub"
	"github.com/teslashibe/go-avatar/pkg/tracking"
)

func unavailable(c *fiber.Ctx, what string) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": what + " " + errUnavailable.Error(),
	})
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": err.Error(),
	})
}

// currentStatus returns the live tracker status, or the last pushed one
func (s *Server) currentStatus() tracking.Status {
	if tracker, _ := s.controls(); tracker != nil {
		return tracker.Status()
	}
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.currentStatus())
}

// handleGetTuning returns current tracking parameters
func (s *Server) handleGetTuning(c *fiber.Ctx) error {
	tracker, _ := s.controls()
	if tracker == nil {
		return unavailable(c, "tracker")
	}
	return c.JSON(tracker.GetTuningParams())
}

// handleSetTuning applies the non-zero fields of the body
func (s *Server) handleSetTuning(c *fiber.Ctx) error {
	tracker, _ := s.controls()
	if tracker == nil {
		return unavailable(c, "tracker")
	}

	var params tracking.TuningParams
	if err := c.BodyParser(&params); err != nil {
		return badRequest(c, err)
	}
	if err := tracker.SetTuningParams(params); err != nil {
		return badRequest(c, err)
	}

	s.AddLog("info", "tuning updated")
	return c.JSON(tracker.GetTuningParams())
}

// handleGetCamera returns the current camera configuration
func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	_, cam := s.controls()
	if cam == nil {
		return unavailable(c, "camera")
	}
	return c.JSON(cam.GetConfig())
}

// handleSetCamera updates camera fields or switches to a preset
func (s *Server) handleSetCamera(c *fiber.Ctx) error {
	_, cam := s.controls()
	if cam == nil {
		return unavailable(c, "camera")
	}

	params := make(map[string]interface{})
	if err := c.BodyParser(&params); err != nil {
		return badRequest(c, err)
	}
	if err := cam.UpdateConfig(params); err != nil {
		return badRequest(c, err)
	}

	cfg := cam.GetConfig()
	s.AddLog("camera", "config updated")
	return c.JSON(cfg)
}

// handleCameraPresets lists the camera preset names
func (s *Server) handleCameraPresets(c *fiber.Ctx) error {
	return c.JSON(camera.PresetNames())
}

// handleGetLogs returns recent log entries
func (s *Server) handleGetLogs(c *fiber.Ctx) error {
	return c.JSON(s.Logs())
}

// handleFrame returns the most recent rendered frame
func (s *Server) handleFrame(c *fiber.Ctx) error {
	s.frameMu.RLock()
	frame := s.frame
	s.frameMu.RUnlock()

	if frame == nil {
		return fiber.ErrNotFound
	}
	c.Set(fiber.HeaderContentType, "image/jpeg")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(frame)
}

// handleFramesWS streams rendered JPEG frames
func (s *Server) handleFramesWS(c *websocket.Conn) {
	serve(s.frameHub, c)
}

// handleStatusWS sends the current status, then streams updates
func (s *Server) handleStatusWS(c *websocket.Conn) {
	if err := c.WriteJSON(s.currentStatus()); err != nil {
		return
	}
	serve(s.statusHub, c)
}

// handleLogsWS replays recent logs, then streams new entries
func (s *Server) handleLogsWS(c *websocket.Conn) {
	for _, entry := range s.Logs() {
		if err := c.WriteJSON(entry); err != nil {
			return
		}
	}
	serve(s.logHub, c)
}

func serve(h *hub.Hub, c *websocket.Conn) {
	if client := hub.NewClient(h, c); client != nil {
		client.Run()
	}
}
