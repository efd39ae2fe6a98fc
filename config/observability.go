package config

// MetricsConfig configures the optional StatsD metrics sink.
// Metrics are disabled unless METRICS_ENABLED is set.
type MetricsConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"false"`
	Addr    string `env:"ADDR"    envDefault:"localhost:8125"`
	Prefix  string `env:"PREFIX"  envDefault:"clubportal"`
}

// NotifyConfig configures membership notifications to the club Slack.
// Notifications are disabled when the webhook URL is empty.
type NotifyConfig struct {
	SlackWebhookURL string `env:"SLACK_WEBHOOK_URL"`
	SlackChannel    string `env:"SLACK_CHANNEL"`
	SlackUsername   string `env:"SLACK_USERNAME" envDefault:"club-portal"`
}
