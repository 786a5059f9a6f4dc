package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	bookingdomain "github.com/smallbiznis/classbook/internal/booking/domain"
	obscontext "github.com/smallbiznis/classbook/internal/observability/context"
	"github.com/smallbiznis/classbook/internal/recurrence"
)

func (s *Server) ListOccurrences(c *gin.Context) {
	var query bookingdomain.ListOccurrencesRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	query.WindowEnd = strings.TrimSpace(query.WindowEnd)

	resp, err := s.bookingSvc.ListOccurrences(c.Request.Context(), strings.TrimSpace(c.Param("id")), query)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetSessionSummary(c *gin.Context) {
	classID := strings.TrimSpace(c.Param("id"))
	date := strings.TrimSpace(c.Param("date"))
	s.tagSession(c, classID, date)

	resp, err := s.bookingSvc.GetSessionSummary(c.Request.Context(), classID, date)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type bookSessionRequest struct {
	PaymentMethod string `json:"payment_method"`
}

// BookSession answers 201 when a seat is taken, 202 when the member was
// queued and 409 when the session turned the request away. The body always
// carries the outcome.
func (s *Server) BookSession(c *gin.Context) {
	var req bookSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, invalidRequestError())
		return
	}

	classID := strings.TrimSpace(c.Param("id"))
	date := strings.TrimSpace(c.Param("date"))
	s.tagSession(c, classID, date)

	resp, err := s.bookingSvc.Book(c.Request.Context(), bookingdomain.BookRequest{
		ClassID:       classID,
		Date:          date,
		PaymentMethod: strings.TrimSpace(req.PaymentMethod),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set("booking_outcome", string(resp.Outcome))
	c.JSON(bookOutcomeStatus(resp.Outcome), gin.H{"data": resp})
}

func (s *Server) JoinWaitlist(c *gin.Context) {
	classID := strings.TrimSpace(c.Param("id"))
	date := strings.TrimSpace(c.Param("date"))
	s.tagSession(c, classID, date)

	resp, err := s.bookingSvc.Enqueue(c.Request.Context(), bookingdomain.EnqueueRequest{
		ClassID: classID,
		Date:    date,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"data": resp})
}

func bookOutcomeStatus(outcome bookingdomain.Outcome) int {
	switch outcome {
	case bookingdomain.OutcomeAttend:
		return http.StatusCreated
	case bookingdomain.OutcomeWaitlisted:
		return http.StatusAccepted
	case bookingdomain.OutcomeRejectedFull, bookingdomain.OutcomeRejectedDuplicate:
		return http.StatusConflict
	default:
		return http.StatusOK
	}
}

// tagSession exposes the session key to the request logger and tracer.
func (s *Server) tagSession(c *gin.Context, classID, date string) {
	parsed, err := recurrence.ParseDate(date)
	if err != nil || classID == "" {
		return
	}
	key := recurrence.SessionKey(classID, parsed)
	c.Set("session_key", key)
	c.Request = c.Request.WithContext(obscontext.WithSessionKey(c.Request.Context(), key))
}
