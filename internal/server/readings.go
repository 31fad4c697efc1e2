package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	telemetrydomain "github.com/gridora/gridora/internal/telemetry/domain"
	"github.com/gridora/gridora/pkg/apperr"
)

func intQuery(c *gin.Context, key string) int {
	v, _ := strconv.Atoi(c.Query(key))
	return v
}

func timeQuery(c *gin.Context, key string) *time.Time {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &t
}

type ingestReadingRequest struct {
	DeviceID string `json:"device_id"`
	telemetrydomain.ReadingInput
}

func (s *Server) ingestReading(c *gin.Context) {
	var req ingestReadingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, apperr.Wrap(errInvalidBody, err))
		return
	}

	reading, err := s.telemetrySvc.Ingest(c.Request.Context(), req.DeviceID, req.ReadingInput)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reading)
}

func (s *Server) ingestReadingBatch(c *gin.Context) {
	var req telemetrydomain.IngestBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, apperr.Wrap(errInvalidBody, err))
		return
	}

	count, err := s.telemetrySvc.IngestBatch(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ingested": count})
}

func (s *Server) listReadings(c *gin.Context) {
	req := telemetrydomain.ListReadingsRequest{
		Since: timeQuery(c, "since"),
		Until: timeQuery(c, "until"),
		Limit: intQuery(c, "limit"),
	}
	if raw := c.Query("device_id"); raw != "" {
		device, err := s.deviceSvc.GetByDeviceID(c.Request.Context(), raw)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		req.DeviceID = device.ID
	}

	readings, err := s.telemetrySvc.ListReadings(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"readings": readings})
}

func (s *Server) listAggregates(c *gin.Context) {
	req := telemetrydomain.ListAggregatesRequest{
		Bucket: telemetrydomain.Bucket(c.Query("bucket")),
		Since:  timeQuery(c, "since"),
		Limit:  intQuery(c, "limit"),
	}
	if raw := c.Query("device_id"); raw != "" {
		device, err := s.deviceSvc.GetByDeviceID(c.Request.Context(), raw)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		req.DeviceID = device.ID
	}

	aggregates, err := s.telemetrySvc.ListAggregates(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"aggregates": aggregates})
}
