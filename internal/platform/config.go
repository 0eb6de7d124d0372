package platform

import (
	"time"

	"reelgen/internal/config"
)

// ConfigFrom converts the [platform] config section.
func ConfigFrom(cfg *config.Config) Config {
	if cfg == nil {
		return Config{}
	}
	return Config{
		ProjectID:       cfg.Platform.ProjectID,
		Location:        cfg.Platform.Location,
		CredentialsFile: cfg.Platform.CredentialsFile,
		BaseURL:         cfg.Platform.BaseURL,
		RequestTimeout:  time.Duration(cfg.Platform.RequestTimeout) * time.Second,
	}
}
