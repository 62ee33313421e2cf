package web

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-handscroll/pkg/hub"
	"github.com/teslashibe/go-handscroll/pkg/scroll"
)

// ScrollRequest is a manual scroll input. Exactly one field must be set.
type ScrollRequest struct {
	Target *float64 `json:"target,omitempty"`
	Wheel  *float64 `json:"wheel,omitempty"`
	Touch  *float64 `json:"touch,omitempty"`
}

var errScrollRequest = errors.New("exactly one of target, wheel or touch is required")

// apply writes the request into the signal and returns the new target.
func (r ScrollRequest) apply(sig *scroll.Signal) (float64, error) {
	set := 0
	for _, f := range []*float64{r.Target, r.Wheel, r.Touch} {
		if f != nil {
			set++
		}
	}
	if set != 1 {
		return 0, errScrollRequest
	}
	switch {
	case r.Target != nil:
		return sig.SetTarget(*r.Target), nil
	case r.Wheel != nil:
		return sig.Wheel(*r.Wheel), nil
	default:
		return sig.Touch(*r.Touch), nil
	}
}

// AssetInfo describes a preloaded asset.
type AssetInfo struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// handleStatus returns the loading and control state
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.Status())
}

// handleScroll applies a manual scroll input
func (s *Server) handleScroll(c *fiber.Ctx) error {
	req, err := decodeScrollRequest(c.Body())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	target, err := req.apply(s.signal)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"target": target})
}

// handleListAssets lists the preloaded assets
func (s *Server) handleListAssets(c *fiber.Ctx) error {
	handles := s.registry.Handles()
	out := make([]AssetInfo, 0, len(handles))
	for _, h := range handles {
		out = append(out, AssetInfo{ID: h.ID, URL: h.URL, ContentType: h.ContentType, Size: h.Size()})
	}
	return c.JSON(out)
}

// handleAsset serves one preloaded asset from memory
func (s *Server) handleAsset(c *fiber.Ctx) error {
	h, ok := s.registry.Get(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": fmt.Sprintf("asset %q not preloaded", c.Params("id")),
		})
	}
	c.Set(fiber.HeaderContentType, h.ContentType)
	c.Set(fiber.HeaderCacheControl, "public, max-age=31536000, immutable")
	return c.Send(h.Bytes())
}

// handleStatusWS streams status updates
func (s *Server) handleStatusWS(c *websocket.Conn) {
	hub.NewClient(s.statusHub, c, nil).Run()
}

// handleScrollWS streams the smoothed value and accepts scroll inputs
func (s *Server) handleScrollWS(c *websocket.Conn) {
	hub.NewClient(s.scrollHub, c, func(data []byte) {
		req, err := decodeScrollRequest(data)
		if err != nil {
			s.logger.Debug("bad scroll message", "error", err)
			return
		}
		if _, err := req.apply(s.signal); err != nil {
			s.logger.Debug("bad scroll message", "error", err)
		}
	}).Run()
}
