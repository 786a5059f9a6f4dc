package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/classbook/internal/authorization"
	bookingdomain "github.com/smallbiznis/classbook/internal/booking/domain"
	classdomain "github.com/smallbiznis/classbook/internal/classdef/domain"
	"github.com/smallbiznis/classbook/internal/clubcontext"
	"github.com/smallbiznis/classbook/internal/config"
	creditdomain "github.com/smallbiznis/classbook/internal/credit/domain"
	paymentdomain "github.com/smallbiznis/classbook/internal/payment/domain"
	"github.com/smallbiznis/classbook/internal/ratelimit"
	"github.com/smallbiznis/classbook/internal/recurrence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuthorizer struct {
	deny    map[string]bool
	subject string
}

func (f *fakeAuthorizer) Authorize(ctx context.Context, actor string, clubID string, object string, action string) error {
	_ = ctx
	_ = clubID
	_ = object
	f.subject = actor
	if f.deny[action] {
		return authorization.ErrForbidden
	}
	return nil
}

type fakeBookingService struct {
	bookingdomain.Service

	outcome     bookingdomain.Outcome
	bookErr     error
	lastBook    bookingdomain.BookRequest
	lastActor   string
	callbackErr error
	callbacks   int
}

func (f *fakeBookingService) Book(ctx context.Context, req bookingdomain.BookRequest) (*bookingdomain.BookResponse, error) {
	f.lastBook = req
	if memberID, ok := clubcontext.MemberIDFromContext(ctx); ok {
		f.lastActor = memberID.String()
	}
	if f.bookErr != nil {
		return nil, f.bookErr
	}
	return &bookingdomain.BookResponse{
		Outcome: f.outcome,
		Booking: &bookingdomain.BookingResponse{ID: "1", ClassID: req.ClassID, SessionDate: req.Date},
	}, nil
}

func (f *fakeBookingService) Cancel(ctx context.Context, bookingRef string) (*bookingdomain.BookingResponse, error) {
	_ = ctx
	if bookingRef == "missing" {
		return nil, bookingdomain.ErrBookingNotFound
	}
	return &bookingdomain.BookingResponse{ID: bookingRef, Status: "cancel"}, nil
}

func (f *fakeBookingService) HandlePaymentCallback(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	_ = ctx
	_ = provider
	_ = payload
	_ = headers
	f.callbacks++
	return f.callbackErr
}

func newTestRouter(t *testing.T, authz *fakeAuthorizer, bookings *fakeBookingService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(ErrorHandlingMiddleware())
	limiter, err := ratelimit.NewBookingLimiter(nil, config.Config{})
	require.NoError(t, err)

	srv := NewServer(ServerParams{
		Gin:            router,
		AuthzSvc:       authz,
		BookingSvc:     bookings,
		BookingLimiter: limiter,
	})
	srv.RegisterRoutes()
	return router
}

func doRequest(router http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body == "" {
		reader = &bytes.Buffer{}
	} else {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func memberHeaders(role string) map[string]string {
	h := map[string]string{HeaderClub: "7", HeaderMember: "42"}
	if role != "" {
		h[HeaderRole] = role
	}
	return h
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	return body.Error
}

func TestRequestsWithoutIdentityAreUnauthorized(t *testing.T) {
	bookings := &fakeBookingService{outcome: bookingdomain.OutcomeAttend}
	router := newTestRouter(t, &fakeAuthorizer{}, bookings)

	resp := doRequest(router, http.MethodPost, "/v1/classes/9/sessions/2025-01-08/bookings", "", map[string]string{HeaderClub: "7"})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, errorTypeUnauthorized, decodeError(t, resp).Type)

	resp = doRequest(router, http.MethodPost, "/v1/classes/9/sessions/2025-01-08/bookings", "", memberHeaders("owner"))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Empty(t, bookings.lastBook.ClassID)
}

func TestBookSessionStatusFollowsOutcome(t *testing.T) {
	cases := []struct {
		outcome bookingdomain.Outcome
		status  int
	}{
		{bookingdomain.OutcomeAttend, http.StatusCreated},
		{bookingdomain.OutcomeWaitlisted, http.StatusAccepted},
		{bookingdomain.OutcomeRejectedFull, http.StatusConflict},
		{bookingdomain.OutcomeRejectedDuplicate, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(string(tc.outcome), func(t *testing.T) {
			bookings := &fakeBookingService{outcome: tc.outcome}
			router := newTestRouter(t, &fakeAuthorizer{}, bookings)

			resp := doRequest(router, http.MethodPost, "/v1/classes/9/sessions/2025-01-08/bookings", `{"payment_method":"credit"}`, memberHeaders(""))
			require.Equal(t, tc.status, resp.Code, resp.Body.String())

			var body struct {
				Data bookingdomain.BookResponse `json:"data"`
			}
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
			assert.Equal(t, tc.outcome, body.Data.Outcome)
			assert.Equal(t, "9", bookings.lastBook.ClassID)
			assert.Equal(t, "2025-01-08", bookings.lastBook.Date)
			assert.Equal(t, "credit", bookings.lastBook.PaymentMethod)
			assert.Equal(t, "42", bookings.lastActor)
		})
	}
}

func TestBookSessionAcceptsEmptyBody(t *testing.T) {
	bookings := &fakeBookingService{outcome: bookingdomain.OutcomeAttend}
	router := newTestRouter(t, &fakeAuthorizer{}, bookings)

	resp := doRequest(router, http.MethodPost, "/v1/classes/9/sessions/2025-01-08/bookings", "", memberHeaders(""))
	assert.Equal(t, http.StatusCreated, resp.Code)
	assert.Empty(t, bookings.lastBook.PaymentMethod)
}

func TestBookSessionMapsDomainErrors(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		errType string
	}{
		{bookingdomain.ErrSessionNotFound, http.StatusNotFound, errorTypeNotFound},
		{bookingdomain.ErrSessionStarted, http.StatusUnprocessableEntity, errorTypePolicyViolation},
		{fmt.Errorf("start checkout: %w", paymentdomain.ErrProviderFailure), http.StatusBadGateway, errorTypeUpstream},
		{bookingdomain.ErrInvalidDate, http.StatusBadRequest, errorTypeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			router := newTestRouter(t, &fakeAuthorizer{}, &fakeBookingService{bookErr: tc.err})

			resp := doRequest(router, http.MethodPost, "/v1/classes/9/sessions/2025-01-08/bookings", "", memberHeaders(""))
			assert.Equal(t, tc.status, resp.Code)
			assert.Equal(t, tc.errType, decodeError(t, resp).Type)
		})
	}
}

func TestAuthorizerDenialIsForbidden(t *testing.T) {
	authz := &fakeAuthorizer{deny: map[string]bool{authorization.ActionBookingCancel: true}}
	router := newTestRouter(t, authz, &fakeBookingService{})

	resp := doRequest(router, http.MethodPost, "/v1/bookings/5/cancel", "", memberHeaders("manager"))
	assert.Equal(t, http.StatusForbidden, resp.Code)
	assert.Equal(t, "manager:42", authz.subject)
}

func TestCancelBooking(t *testing.T) {
	router := newTestRouter(t, &fakeAuthorizer{}, &fakeBookingService{})

	resp := doRequest(router, http.MethodPost, "/v1/bookings/5/cancel", "", memberHeaders(""))
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = doRequest(router, http.MethodPost, "/v1/bookings/missing/cancel", "", memberHeaders(""))
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, bookingdomain.ErrBookingNotFound.Error(), decodeError(t, resp).Message)
}

func TestPaymentCallbackNeedsNoIdentity(t *testing.T) {
	bookings := &fakeBookingService{}
	router := newTestRouter(t, &fakeAuthorizer{}, bookings)

	resp := doRequest(router, http.MethodPost, "/v1/payments/callback/hosted", `{"type":"confirmed"}`, nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 1, bookings.callbacks)

	bookings.callbackErr = paymentdomain.ErrInvalidSignature
	resp = doRequest(router, http.MethodPost, "/v1/payments/callback/hosted", `{"type":"confirmed"}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	router := newTestRouter(t, &fakeAuthorizer{}, &fakeBookingService{})

	resp := doRequest(router, http.MethodGet, "/v2/nothing", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, errorTypeNotFound, decodeError(t, resp).Type)
}

func TestMapErrorTaxonomy(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		errType string
	}{
		{"class missing", classdomain.ErrNotFound, http.StatusNotFound, errorTypeNotFound},
		{"slug taken", classdomain.ErrSlugTaken, http.StatusConflict, errorTypeConflict},
		{"already booked", bookingdomain.ErrAlreadyBooked, http.StatusConflict, errorTypeConflict},
		{"bad rule", fmt.Errorf("weekly: %w", recurrence.ErrInvalidWeekdays), http.StatusBadRequest, errorTypeInvalidRule},
		{"no credit", creditdomain.ErrInsufficientCredit, http.StatusUnprocessableEntity, errorTypePolicyViolation},
		{"waitlist off", bookingdomain.ErrWaitlistDisabled, http.StatusUnprocessableEntity, errorTypePolicyViolation},
		{"provider down", paymentdomain.ErrProviderFailure, http.StatusBadGateway, errorTypeUpstream},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests, errorTypeRateLimited},
		{"no member", bookingdomain.ErrInvalidMember, http.StatusUnauthorized, errorTypeUnauthorized},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, errorTypeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.errType, payload.Type)
		})
	}

	_, payload := mapError(recurrence.ErrInvalidWeekdays)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "weekdays", payload.Errors[0].Field)

	errType, code := classifyErrorForLog(bookingdomain.ErrSessionStarted)
	assert.Equal(t, errorTypePolicyViolation, errType)
	assert.Equal(t, "session_started", code)
}
