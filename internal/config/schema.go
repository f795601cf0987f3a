package config

// Config is the top-level YAML structure.
type Config struct {
	Version    string         `yaml:"version"`
	Server     ServerConf     `yaml:"server"`
	Database   DatabaseConf   `yaml:"database"`
	Engine     EngineConf     `yaml:"engine"`
	Transports TransportsConf `yaml:"transports"`
}

// ServerConf holds HTTP listener settings.
type ServerConf struct {
	Addr            string `yaml:"addr"`
	ReadTimeoutMs   int    `yaml:"read_timeout_ms"`
	WriteTimeoutMs  int    `yaml:"write_timeout_ms"`
	ShutdownGraceMs int    `yaml:"shutdown_grace_ms"`
}

// DatabaseConf points at the rule/log store.
// URL schemes: sqlite:// and postgres://.
type DatabaseConf struct {
	URL string `yaml:"url"`
}

// EngineConf holds tunable execution settings. StrictCompare switches
// condition evaluation from loose coercing comparisons to same-type only.
type EngineConf struct {
	ExecWorkers     int  `yaml:"exec_workers"`
	QueueDepth      int  `yaml:"queue_depth"`
	ExecTimeoutMs   int  `yaml:"exec_timeout_ms"`
	StrictCompare   bool `yaml:"strict_compare"`
	DefaultLogLimit int  `yaml:"default_log_limit"`
}

// TransportsConf configures the action transports.
type TransportsConf struct {
	EmailFrom        string `yaml:"email_from"`
	WebhookTimeoutMs int    `yaml:"webhook_timeout_ms"`
}
