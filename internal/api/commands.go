package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/avhost/av/internal/control"
	"github.com/avhost/av/internal/logger"
)

// PostCommand handles POST /api/v1/commands
func (c *Controller) PostCommand(ctx echo.Context) error {
	var req control.CommandRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid command body", http.StatusBadRequest)
	}

	res, err := control.Apply(c.Engine, req)
	if err != nil {
		return c.HandleError(ctx, err, "Command rejected", statusFor(err))
	}
	c.log.Debug("command queued",
		logger.String("op", res.Op),
		logger.Int("id", int(res.ID)))
	return ctx.JSON(http.StatusAccepted, res)
}

// PostVoice handles POST /api/v1/voices
func (c *Controller) PostVoice(ctx echo.Context) error {
	var req control.VoiceRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid voice body", http.StatusBadRequest)
	}

	res, err := control.ApplyVoice(c.Engine, req)
	if err != nil {
		return c.HandleError(ctx, err, "Voice rejected", statusFor(err))
	}
	c.log.Debug("voice queued",
		logger.String("op", res.Op),
		logger.Int("id", int(res.ID)),
		logger.String("waveform", req.Waveform),
		logger.Float64("frequency", req.Frequency))
	return ctx.JSON(http.StatusAccepted, res)
}

// DeleteVoice handles DELETE /api/v1/voices/:id
func (c *Controller) DeleteVoice(ctx echo.Context) error {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 32)
	if err != nil {
		return c.HandleError(ctx, err, "Voice id must be an integer", http.StatusBadRequest)
	}

	res, err := control.Apply(c.Engine, control.CommandRequest{Op: "voice_remove", ID: int32(id)})
	if err != nil {
		return c.HandleError(ctx, err, "Voice removal rejected", statusFor(err))
	}
	return ctx.JSON(http.StatusAccepted, res)
}
