package email

import (
	"strings"

	"github.com/njaeplume/plume/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.email",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config, log *zap.Logger) (Provider, error) {
	emailCfg := cfg.Email
	switch strings.ToLower(strings.TrimSpace(emailCfg.Provider)) {
	case "resend":
		return NewResend(emailCfg.APIKey, emailCfg.APIBaseURL, emailCfg.From, emailCfg.Timeout)
	case "smtp":
		return NewSMTP(Config{
			Host:     emailCfg.SMTPHost,
			Port:     emailCfg.SMTPPort,
			Username: emailCfg.SMTPUsername,
			Password: emailCfg.SMTPPassword,
			From:     emailCfg.From,
			Timeout:  emailCfg.Timeout,
		})
	case "", "noop":
		if cfg.IsProduction() {
			log.Warn("email provider disabled in production")
		}
		return NewNoOp(log), nil
	default:
		return nil, ErrMisconfigured
	}
}
