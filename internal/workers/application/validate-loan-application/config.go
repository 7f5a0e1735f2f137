// internal/workers/application/validate-loan-application/config.go
package validateloanapplication

import (
	"time"

	"loan-wizard/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig(wc config.WorkerConfig) *Config {
	timeout := config.GetDuration(wc.Timeout)
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Config{
		Timeout: timeout,
	}
}
