package bootstrap

import (
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/wolfman30/clinic-intake/internal/config"
	"github.com/wolfman30/clinic-intake/internal/notify"
	"github.com/wolfman30/clinic-intake/internal/observability/metrics"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// BuildEmailSender picks SendGrid or SES from EMAIL_PROVIDER. "auto" prefers
// SendGrid when a key is present. A nil result means emails are only logged.
func BuildEmailSender(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (notify.EmailSender, string) {
	if cfg == nil {
		return nil, "stub"
	}
	sendgrid := func() notify.EmailSender {
		if s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); s != nil {
			return s
		}
		return nil
	}
	ses := func() notify.EmailSender {
		if strings.TrimSpace(cfg.SESFromEmail) == "" {
			return nil
		}
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.ClinicName,
		}, logger)
	}

	switch cfg.EmailProvider {
	case "sendgrid":
		if s := sendgrid(); s != nil {
			return s, "sendgrid"
		}
	case "ses":
		if s := ses(); s != nil {
			return s, "ses"
		}
	default:
		if s := sendgrid(); s != nil {
			return s, "sendgrid"
		}
		if s := ses(); s != nil {
			return s, "ses"
		}
	}
	return nil, "stub"
}

// BuildSMSSender returns Twilio when fully configured, otherwise nil.
func BuildSMSSender(cfg *appconfig.Config, logger *logging.Logger) (notify.SMSSender, string) {
	if cfg == nil || cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" || cfg.TwilioFromNumber == "" {
		return nil, "stub"
	}
	return notify.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger), "twilio"
}

// BuildNotifier wires both channels under NOTIFY_TIMEOUT.
func BuildNotifier(cfg *appconfig.Config, awsCfg aws.Config, m *metrics.SchedulingMetrics, logger *logging.Logger) *notify.Notifier {
	if logger == nil {
		logger = logging.Default()
	}
	email, emailProvider := BuildEmailSender(cfg, awsCfg, logger)
	sms, smsProvider := BuildSMSSender(cfg, logger)
	logger.Info("notification channels configured", "email", emailProvider, "sms", smsProvider)
	var timeout time.Duration
	if cfg != nil {
		timeout = cfg.NotifyTimeout
	}
	return notify.NewNotifier(email, sms, timeout, m, logger)
}
