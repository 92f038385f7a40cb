package server

import (
	"errors"

	contributiondomain "github.com/erinfolamirukayat/theweddingplace/internal/contribution/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (s *Server) PaymentInitiateRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.paymentLimiter.Enabled() {
			c.Next()
			return
		}
		allowed, err := s.paymentLimiter.AllowInitiate(c.Request.Context(), c.ClientIP())
		if err != nil {
			// a broken limiter must not take payments down with it
			zap.L().Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

func (s *Server) PaymentVerifyRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.paymentLimiter.Enabled() {
			c.Next()
			return
		}
		allowed, err := s.paymentLimiter.AllowVerify(c.Request.Context(), c.ClientIP())
		if err != nil {
			zap.L().Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	if vErr := asValidationErrors(err); vErr != nil {
		code := ""
		if len(vErr.Errors) > 0 {
			code = vErr.Errors[0].Code
		}
		return "validation_error", code
	}
	switch {
	case isValidationError(err):
		return "validation_error", validationErrorCode(err)
	case errors.Is(err, contributiondomain.ErrInvalidSignature):
		return "unauthorized", "invalid_webhook_signature"
	case errors.Is(err, contributiondomain.ErrConflict):
		return "conflict", "contribution_conflict"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited", "rate_limited"
	case isNotFoundError(err):
		return "not_found", "not_found"
	case errors.Is(err, contributiondomain.ErrGatewayUnavailable):
		return "service_unavailable", "payment_gateway_unavailable"
	default:
		return "internal_error", "internal_error"
	}
}
