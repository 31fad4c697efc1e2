package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gridora/gridora/pkg/apperr"
)

var errSchedulerDisabled = apperr.NotFound("scheduler_not_configured")

// The sweep endpoints trigger one background job immediately; the scheduler
// runs the same jobs on its own cadence.
func (s *Server) triggerAggregation(c *gin.Context) {
	if s.scheduler == nil {
		AbortWithError(c, errSchedulerDisabled)
		return
	}
	if err := s.scheduler.AggregateReadingsJob(c.Request.Context()); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": "aggregate_readings", "status": "done"})
}

func (s *Server) triggerCleanup(c *gin.Context) {
	if s.scheduler == nil {
		AbortWithError(c, errSchedulerDisabled)
		return
	}
	if err := s.scheduler.CleanupReadingsJob(c.Request.Context()); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": "cleanup_readings", "status": "done"})
}

func (s *Server) triggerProcessOrders(c *gin.Context) {
	if s.scheduler == nil {
		AbortWithError(c, errSchedulerDisabled)
		return
	}
	if err := s.scheduler.ProcessPendingOrdersJob(c.Request.Context()); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": "process_pending_orders", "status": "done"})
}

func (s *Server) triggerRetryPayments(c *gin.Context) {
	if s.scheduler == nil {
		AbortWithError(c, errSchedulerDisabled)
		return
	}
	if err := s.scheduler.RetryFailedPaymentsJob(c.Request.Context()); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": "retry_failed_payments", "status": "done"})
}
