package bootstrap

import (
	"log/slog"

	"github.com/iotgcet/club-portal/config"
	"github.com/iotgcet/club-portal/internal/observability/notify"
	"github.com/iotgcet/club-portal/internal/observability/notify/slack"
	"github.com/iotgcet/club-portal/internal/observability/statsd"
)

// BuildMetrics creates the StatsD client, or nil when metrics are disabled.
// A dial failure logs and disables metrics rather than failing startup.
func BuildMetrics(cfg config.MetricsConfig, logger *slog.Logger) *statsd.Client {
	if !cfg.Enabled {
		return nil
	}

	client, err := statsd.NewClient(statsd.Config{
		Enabled: true,
		Address: cfg.Addr,
		Prefix:  cfg.Prefix,
		Logger:  logger,
	})
	if err != nil {
		if logger != nil {
			logger.Warn("metrics disabled: statsd dial failed", "addr", cfg.Addr, "error", err)
		}
		return nil
	}
	return client
}

// BuildNotifier creates the club Slack sink, or nil when no webhook is
// configured.
//
//nolint:ireturn // the sink is consumed through its interface.
func BuildNotifier(cfg config.NotifyConfig, logger *slog.Logger) notify.Sink {
	if cfg.SlackWebhookURL == "" {
		return nil
	}

	client, err := slack.NewClient(slack.Config{
		WebhookURL: cfg.SlackWebhookURL,
		Channel:    cfg.SlackChannel,
		Username:   cfg.SlackUsername,
		RetryLimit: 2,
	})
	if err != nil {
		if logger != nil {
			logger.Warn("slack notifications disabled", "error", err)
		}
		return nil
	}
	return client
}
