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

const (
	RepeatPolicyAllow = "allow"
	RepeatPolicyBlock = "block"
)

// DeliveryPolicy controls how purchased files are handed out.
type DeliveryPolicy struct {
	// URLTTL bounds the lifetime of every issued download URL.
	URLTTL time.Duration `mapstructure:"urlTTL"`
	// RepeatDownloads is either "allow" or "block".
	RepeatDownloads string `mapstructure:"repeatDownloads"`
}

func (p DeliveryPolicy) BlocksRepeats() bool {
	return p.RepeatDownloads == RepeatPolicyBlock
}

func DefaultDeliveryPolicy() DeliveryPolicy {
	return DeliveryPolicy{
		URLTTL:          5 * time.Minute,
		RepeatDownloads: RepeatPolicyAllow,
	}
}

type DeliveryPolicyHolder struct {
	current atomic.Value // holds DeliveryPolicy
}

// NewStaticDeliveryPolicyHolder returns a holder that never reloads.
func NewStaticDeliveryPolicyHolder(policy DeliveryPolicy) *DeliveryPolicyHolder {
	holder := &DeliveryPolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func NewDeliveryPolicyHolder(log *zap.Logger) (*DeliveryPolicyHolder, error) {
	log = log.Named("config.delivery")
	v := viper.New()

	v.SetConfigName("delivery")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/plume")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PLUME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultDeliveryPolicy()
	v.SetDefault("delivery.urlTTL", defaults.URLTTL)
	v.SetDefault("delivery.repeatDownloads", defaults.RepeatDownloads)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	cfg, err := readDeliveryPolicy(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticDeliveryPolicyHolder(cfg)
	if !fileFound {
		return holder, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := readDeliveryPolicy(v)
		if err != nil {
			log.Warn("delivery policy reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("delivery policy reloaded",
			zap.String("file", e.Name),
			zap.Duration("url_ttl", updated.URLTTL),
			zap.String("repeat_downloads", updated.RepeatDownloads),
		)
	})
	v.WatchConfig()

	return holder, nil
}

func (h *DeliveryPolicyHolder) Get() DeliveryPolicy {
	return h.current.Load().(DeliveryPolicy)
}

func readDeliveryPolicy(v *viper.Viper) (DeliveryPolicy, error) {
	cfg := DeliveryPolicy{
		URLTTL:          v.GetDuration("delivery.urlTTL"),
		RepeatDownloads: strings.ToLower(strings.TrimSpace(v.GetString("delivery.repeatDownloads"))),
	}
	if err := validateDeliveryPolicy(cfg); err != nil {
		return DeliveryPolicy{}, err
	}
	return cfg, nil
}

func validateDeliveryPolicy(cfg DeliveryPolicy) error {
	if cfg.URLTTL <= 0 {
		return errors.New("delivery.urlTTL must be positive")
	}
	if cfg.URLTTL > time.Hour {
		return errors.New("delivery.urlTTL cannot exceed 1h")
	}
	switch cfg.RepeatDownloads {
	case RepeatPolicyAllow, RepeatPolicyBlock:
		return nil
	default:
		return errors.New("delivery.repeatDownloads must be allow or block")
	}
}
