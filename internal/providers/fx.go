package providers

import (
	"github.com/smallbiznis/classbook/internal/providers/email"
	"github.com/smallbiznis/classbook/internal/providers/slack"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	slack.Module,
)
