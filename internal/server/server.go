package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/classbook/internal/audit/domain"
	"github.com/smallbiznis/classbook/internal/authorization"
	bookingdomain "github.com/smallbiznis/classbook/internal/booking/domain"
	classdomain "github.com/smallbiznis/classbook/internal/classdef/domain"
	clubdomain "github.com/smallbiznis/classbook/internal/club/domain"
	"github.com/smallbiznis/classbook/internal/config"
	creditdomain "github.com/smallbiznis/classbook/internal/credit/domain"
	"github.com/smallbiznis/classbook/internal/liveevents"
	notificationdomain "github.com/smallbiznis/classbook/internal/notification/domain"
	"github.com/smallbiznis/classbook/internal/observability"
	obslogger "github.com/smallbiznis/classbook/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/classbook/internal/observability/metrics"
	obstracing "github.com/smallbiznis/classbook/internal/observability/tracing"
	"github.com/smallbiznis/classbook/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterRoutes() }),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := strings.TrimSpace(cfg.HTTPAddr)
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	authzSvc        authorization.Service
	auditSvc        auditdomain.Service
	classSvc        classdomain.Service
	clubSvc         clubdomain.Service
	bookingSvc      bookingdomain.Service
	creditSvc       creditdomain.Service
	notificationSvc notificationdomain.Service
	liveEvents      *liveevents.Hub
	obsMetrics      *obsmetrics.Metrics
	bookingLimiter  *ratelimit.BookingLimiter
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	AuthzSvc        authorization.Service
	AuditSvc        auditdomain.Service
	ClassSvc        classdomain.Service
	ClubSvc         clubdomain.Service
	BookingSvc      bookingdomain.Service
	CreditSvc       creditdomain.Service
	NotificationSvc notificationdomain.Service
	LiveEvents      *liveevents.Hub           `optional:"true"`
	ObsMetrics      *obsmetrics.Metrics       `optional:"true"`
	BookingLimiter  *ratelimit.BookingLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		authzSvc:        p.AuthzSvc,
		auditSvc:        p.AuditSvc,
		classSvc:        p.ClassSvc,
		clubSvc:         p.ClubSvc,
		bookingSvc:      p.BookingSvc,
		creditSvc:       p.CreditSvc,
		notificationSvc: p.NotificationSvc,
		liveEvents:      p.LiveEvents,
		obsMetrics:      p.ObsMetrics,
		bookingLimiter:  p.BookingLimiter,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterRoutes() {
	v1 := s.engine.Group("/v1")

	// Provider callbacks carry no member identity; the adapter verifies the signature.
	v1.POST("/payments/callback/:provider", s.HandlePaymentCallback)

	api := v1.Group("", ClubContext())

	// -------- Classes --------
	api.POST("/classes", s.authorizeClubAction(authorization.ObjectClass, authorization.ActionClassCreate), s.CreateClass)
	api.GET("/classes", s.authorizeClubAction(authorization.ObjectClass, authorization.ActionClassView), s.ListClasses)
	api.GET("/classes/:id", s.authorizeClubAction(authorization.ObjectClass, authorization.ActionClassView), s.GetClass)
	api.PATCH("/classes/:id", s.authorizeClubAction(authorization.ObjectClass, authorization.ActionClassUpdate), s.UpdateClass)
	api.DELETE("/classes/:id", s.authorizeClubAction(authorization.ObjectClass, authorization.ActionClassDelete), s.DeleteClass)

	// -------- Sessions --------
	api.GET("/classes/:id/occurrences", s.authorizeClubAction(authorization.ObjectSession, authorization.ActionSessionView), s.ListOccurrences)
	api.GET("/classes/:id/sessions/:date/summary", s.authorizeClubAction(authorization.ObjectSession, authorization.ActionSessionView), s.GetSessionSummary)
	api.POST("/classes/:id/sessions/:date/bookings", s.authorizeClubAction(authorization.ObjectBooking, authorization.ActionBookingCreate), s.BookingRateLimit(), s.BookSession)
	api.POST("/classes/:id/sessions/:date/waitlist", s.authorizeClubAction(authorization.ObjectWaitlist, authorization.ActionWaitlistJoin), s.BookingRateLimit(), s.JoinWaitlist)
	api.GET("/sessions/:key/events", s.authorizeClubAction(authorization.ObjectSession, authorization.ActionSessionView), s.StreamSessionEvents)

	// -------- Bookings --------
	api.GET("/bookings", s.authorizeClubAction(authorization.ObjectBooking, authorization.ActionBookingView), s.ListMemberBookings)
	api.GET("/bookings/:ref", s.authorizeClubAction(authorization.ObjectBooking, authorization.ActionBookingView), s.GetBooking)
	api.POST("/bookings/:ref/cancel", s.authorizeClubAction(authorization.ObjectBooking, authorization.ActionBookingCancel), s.BookingRateLimit(), s.CancelBooking)
	api.POST("/bookings/:ref/payment", s.authorizeClubAction(authorization.ObjectPayment, authorization.ActionPaymentRetry), s.RetryBookingPayment)

	// -------- Member account --------
	api.GET("/credits", s.authorizeClubAction(authorization.ObjectCredit, authorization.ActionCreditView), s.GetCredits)
	api.GET("/notifications", s.authorizeClubAction(authorization.ObjectNotification, authorization.ActionNotificationView), s.ListNotifications)
	api.POST("/notifications/:id/read", s.authorizeClubAction(authorization.ObjectNotification, authorization.ActionNotificationView), s.MarkNotificationRead)

	// -------- Club --------
	api.GET("/club/policy", s.authorizeClubAction(authorization.ObjectClubPolicy, authorization.ActionClubPolicyView), s.GetClubPolicy)
	api.PUT("/club/policy", s.authorizeClubAction(authorization.ObjectClubPolicy, authorization.ActionClubPolicyManage), s.UpdateClubPolicy)
	api.GET("/audit-logs", s.authorizeClubAction(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)

	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
