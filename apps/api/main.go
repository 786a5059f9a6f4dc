package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/classbook/internal/audit"
	"github.com/smallbiznis/classbook/internal/authorization"
	"github.com/smallbiznis/classbook/internal/booking"
	"github.com/smallbiznis/classbook/internal/cache"
	"github.com/smallbiznis/classbook/internal/classdef"
	"github.com/smallbiznis/classbook/internal/clock"
	"github.com/smallbiznis/classbook/internal/club"
	"github.com/smallbiznis/classbook/internal/config"
	"github.com/smallbiznis/classbook/internal/credit"
	"github.com/smallbiznis/classbook/internal/liveevents"
	"github.com/smallbiznis/classbook/internal/notification"
	"github.com/smallbiznis/classbook/internal/observability"
	"github.com/smallbiznis/classbook/internal/payment"
	"github.com/smallbiznis/classbook/internal/promotion"
	"github.com/smallbiznis/classbook/internal/providers"
	"github.com/smallbiznis/classbook/internal/ratelimit"
	"github.com/smallbiznis/classbook/internal/server"
	"github.com/smallbiznis/classbook/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		cache.Module,

		audit.Module,
		authorization.Module,
		classdef.Module,
		club.Module,
		credit.Module,
		liveevents.Module,
		providers.Module,
		notification.Module,
		payment.Module,
		booking.Module,
		// Seats freed by requests served here are promoted by this replica.
		promotion.Module,
		ratelimit.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
