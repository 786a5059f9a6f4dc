package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// BookingConfig carries club-independent defaults that can change without a restart.
type BookingConfig struct {
	CancelGraceValue     int    `mapstructure:"cancelGraceValue"`
	CancelGraceUnit      string `mapstructure:"cancelGraceUnit"`
	OfferTTLMinutes      int    `mapstructure:"offerTTLMinutes"`
	PromoterPollSeconds  int    `mapstructure:"promoterPollSeconds"`
	WaitlistEnabled      bool   `mapstructure:"waitlistEnabled"`
	InPersonPayment      bool   `mapstructure:"inPersonPayment"`
	OccurrenceHorizonDay int    `mapstructure:"occurrenceHorizonDays"`
}

func DefaultBookingConfig() BookingConfig {
	return BookingConfig{
		CancelGraceValue:     24,
		CancelGraceUnit:      "hours",
		OfferTTLMinutes:      12 * 60,
		PromoterPollSeconds:  30,
		WaitlistEnabled:      true,
		InPersonPayment:      false,
		OccurrenceHorizonDay: 365,
	}
}

func (c BookingConfig) PromoterInterval() time.Duration {
	return time.Duration(c.PromoterPollSeconds) * time.Second
}

func (c BookingConfig) OfferTTL() time.Duration {
	return time.Duration(c.OfferTTLMinutes) * time.Minute
}

type BookingConfigHolder struct {
	current atomic.Value // holds BookingConfig
}

// NewStaticBookingConfigHolder returns a holder that never reloads.
func NewStaticBookingConfigHolder(cfg BookingConfig) *BookingConfigHolder {
	holder := &BookingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewBookingConfigHolder(log *zap.Logger) (*BookingConfigHolder, error) {
	log = log.Named("config.booking")
	v := viper.New()

	v.SetConfigName("booking")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/classbook")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CLASSBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBookingConfig()
	v.SetDefault("booking.cancelGraceValue", defaults.CancelGraceValue)
	v.SetDefault("booking.cancelGraceUnit", defaults.CancelGraceUnit)
	v.SetDefault("booking.offerTTLMinutes", defaults.OfferTTLMinutes)
	v.SetDefault("booking.promoterPollSeconds", defaults.PromoterPollSeconds)
	v.SetDefault("booking.waitlistEnabled", defaults.WaitlistEnabled)
	v.SetDefault("booking.inPersonPayment", defaults.InPersonPayment)
	v.SetDefault("booking.occurrenceHorizonDays", defaults.OccurrenceHorizonDay)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	cfg, err := decodeBookingConfig(v)
	if err != nil {
		return nil, err
	}
	if err := validateBookingConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticBookingConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeBookingConfig(v)
		if err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := validateBookingConfig(updated); err != nil {
			log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *BookingConfigHolder) Get() BookingConfig {
	return h.current.Load().(BookingConfig)
}

// decodeBookingConfig goes through Unmarshal rather than UnmarshalKey so that
// keys missing from the file still pick up their defaults.
func decodeBookingConfig(v *viper.Viper) (BookingConfig, error) {
	var wrapper struct {
		Booking BookingConfig `mapstructure:"booking"`
	}
	if err := v.Unmarshal(&wrapper); err != nil {
		return BookingConfig{}, err
	}
	return wrapper.Booking, nil
}

func validateBookingConfig(cfg BookingConfig) error {
	if cfg.CancelGraceValue < 0 {
		return errors.New("booking.cancelGraceValue cannot be negative")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.CancelGraceUnit)) {
	case "minutes", "hours", "days":
	default:
		return errors.New("booking.cancelGraceUnit must be minutes, hours or days")
	}
	if cfg.OfferTTLMinutes <= 0 {
		return errors.New("booking.offerTTLMinutes must be positive")
	}
	if cfg.PromoterPollSeconds <= 0 {
		return errors.New("booking.promoterPollSeconds must be positive")
	}
	if cfg.OccurrenceHorizonDay <= 0 {
		return errors.New("booking.occurrenceHorizonDays must be positive")
	}
	return nil
}
