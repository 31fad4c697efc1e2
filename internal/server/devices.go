package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	devicedomain "github.com/gridora/gridora/internal/device/domain"
	"github.com/gridora/gridora/pkg/apperr"
)

var errInvalidID = apperr.Validation("invalid_id")
var errInvalidBody = apperr.Validation("invalid_request_body")

func parseID(c *gin.Context) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, errInvalidID)
		return 0, false
	}
	return id, true
}

func (s *Server) registerDevice(c *gin.Context) {
	var req devicedomain.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, apperr.Wrap(errInvalidBody, err))
		return
	}

	device, err := s.deviceSvc.Register(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, device)
}

func (s *Server) listDevices(c *gin.Context) {
	req := devicedomain.ListRequest{
		DeviceType: devicedomain.DeviceType(c.Query("device_type")),
		ActiveOnly: c.Query("active") == "true",
		Limit:      intQuery(c, "limit"),
	}

	devices, err := s.deviceSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"devices": devices})
}

func (s *Server) getDevice(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	device, err := s.deviceSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, device)
}

func (s *Server) updateDevice(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req devicedomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, apperr.Wrap(errInvalidBody, err))
		return
	}

	device, err := s.deviceSvc.Update(c.Request.Context(), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, device)
}

func (s *Server) deleteDevice(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := s.deviceSvc.SoftDelete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) restoreDevice(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := s.deviceSvc.Restore(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	device, err := s.deviceSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, device)
}
