package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	contributiondomain "github.com/erinfolamirukayat/theweddingplace/internal/contribution/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const paystackSignatureHeader = "x-paystack-signature"

func (s *Server) InitiateContribution(c *gin.Context) {
	var req contributiondomain.InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.contributionSvc.Initiate(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) VerifyPayment(c *gin.Context) {
	reference := strings.TrimSpace(c.Query("reference"))
	if reference == "" {
		AbortWithError(c, newValidationError("reference", "invalid_reference", "invalid reference"))
		return
	}

	resp, err := s.contributionSvc.ConfirmByReference(c.Request.Context(), reference)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// HandlePaymentWebhook acknowledges redeliveries, ignored event types and
// terminal-state conflicts with 200 so the gateway stops retrying; only
// signature failures and transient processing errors are surfaced.
func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	signature := c.GetHeader(paystackSignatureHeader)

	err = s.contributionSvc.IngestWebhook(c.Request.Context(), payload, signature)
	if err != nil {
		if errors.Is(err, contributiondomain.ErrAlreadyProcessed) ||
			errors.Is(err, contributiondomain.ErrEventIgnored) ||
			errors.Is(err, contributiondomain.ErrConflict) ||
			errors.Is(err, contributiondomain.ErrInvalidPayload) {
			zap.L().Warn("webhook acknowledged without effect", zap.Error(err))
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) ListContributions(c *gin.Context) {
	id, ok := pathID(c, "registryItemId")
	if !ok {
		return
	}
	resp, err := s.contributionSvc.History(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
