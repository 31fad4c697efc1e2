package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/gridora/gridora/internal/payment/domain"
	"github.com/gridora/gridora/pkg/apperr"
	"github.com/shopspring/decimal"
)

type createPaymentRequest struct {
	Amount         decimal.Decimal      `json:"amount"`
	Currency       string               `json:"currency"`
	Method         paymentdomain.Method `json:"method"`
	IdempotencyKey string               `json:"idempotency_key"`
}

// The Idempotency-Key header takes precedence over the body field.
func (s *Server) createPayment(c *gin.Context) {
	orderID, ok := parseID(c)
	if !ok {
		return
	}
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, apperr.Wrap(errInvalidBody, err))
		return
	}
	if key := c.GetHeader("Idempotency-Key"); key != "" {
		req.IdempotencyKey = key
	}

	payment, err := s.paymentSvc.CreateForOrder(c.Request.Context(), paymentdomain.CreateRequest{
		OrderID:        orderID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Method:         req.Method,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

func (s *Server) getPayment(c *gin.Context) {
	orderID, ok := parseID(c)
	if !ok {
		return
	}
	payment, err := s.paymentSvc.GetByOrder(c.Request.Context(), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}
