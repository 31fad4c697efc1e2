package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	orderdomain "github.com/gridora/gridora/internal/order/domain"
	"github.com/gridora/gridora/pkg/apperr"
)

func (s *Server) createOrder(c *gin.Context) {
	var req orderdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, apperr.Wrap(errInvalidBody, err))
		return
	}

	order, err := s.orderSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (s *Server) listOrders(c *gin.Context) {
	req := orderdomain.ListRequest{
		Status:        orderdomain.Status(c.Query("status")),
		CustomerEmail: c.Query("customer_email"),
		Limit:         intQuery(c, "limit"),
	}

	orders, err := s.orderSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (s *Server) getOrder(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	order, err := s.orderSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) updateOrder(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req orderdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, apperr.Wrap(errInvalidBody, err))
		return
	}

	order, err := s.orderSvc.Update(c.Request.Context(), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type cancelOrderRequest struct {
	ExpectedVersion int64 `json:"expected_version"`
}

func (s *Server) cancelOrder(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req cancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, apperr.Wrap(errInvalidBody, err))
		return
	}

	order, err := s.orderSvc.Cancel(c.Request.Context(), id, req.ExpectedVersion)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) deleteOrder(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := s.orderSvc.SoftDelete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) restoreOrder(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := s.orderSvc.Restore(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	order, err := s.orderSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) listOrderItems(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	items, err := s.orderSvc.LineItems(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"line_items": items})
}
