package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	bookingdomain "github.com/smallbiznis/classbook/internal/booking/domain"
	"github.com/smallbiznis/classbook/internal/observability/logger"
	"go.uber.org/zap"
)

func (s *Server) ListMemberBookings(c *gin.Context) {
	var query bookingdomain.ListRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	query.Status = strings.TrimSpace(query.Status)
	query.PageToken = strings.TrimSpace(query.PageToken)

	resp, err := s.bookingSvc.ListMemberBookings(c.Request.Context(), query)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Bookings, "page_info": resp.PageInfo})
}

func (s *Server) GetBooking(c *gin.Context) {
	resp, err := s.bookingSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("ref")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Set("session_key", resp.SessionKey)

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CancelBooking(c *gin.Context) {
	resp, err := s.bookingSvc.Cancel(c.Request.Context(), strings.TrimSpace(c.Param("ref")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Set("session_key", resp.SessionKey)

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RetryBookingPayment(c *gin.Context) {
	resp, err := s.bookingSvc.RetryPayment(c.Request.Context(), strings.TrimSpace(c.Param("ref")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// HandlePaymentCallback is called by the payment provider, not by a member,
// so it sits outside the club context and relies on the adapter signature.
func (s *Server) HandlePaymentCallback(c *gin.Context) {
	provider := strings.TrimSpace(c.Param("provider"))
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.bookingSvc.HandlePaymentCallback(c.Request.Context(), provider, payload, c.Request.Header); err != nil {
		logger.FromContext(c.Request.Context()).Warn("payment callback rejected",
			zap.String("provider", provider),
			zap.Error(err),
		)
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
