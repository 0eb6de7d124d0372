package config

import (
	"errors"
	"fmt"
	"strings"
)

var supportedAspectRatios = map[string]struct{}{
	"9:16": {},
	"16:9": {},
	"1:1":  {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePlatform(); err != nil {
		return err
	}
	if err := c.validateVideo(); err != nil {
		return err
	}
	if err := c.validateImage(); err != nil {
		return err
	}
	if err := c.validateStory(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePlatform() error {
	return ensurePositiveMap(map[string]int{
		"platform.request_timeout": c.Platform.RequestTimeout,
	})
}

func (c *Config) validateVideo() error {
	if _, ok := supportedAspectRatios[c.Video.AspectRatio]; !ok {
		return fmt.Errorf("video.aspect_ratio %q is not supported", c.Video.AspectRatio)
	}
	if err := ensurePositiveMap(map[string]int{
		"video.poll_timeout_seconds":  c.Video.PollTimeoutSeconds,
		"video.poll_interval_seconds": c.Video.PollIntervalSeconds,
	}); err != nil {
		return err
	}
	if c.Video.PollIntervalSeconds > c.Video.PollTimeoutSeconds {
		return errors.New("video.poll_interval_seconds must not exceed video.poll_timeout_seconds")
	}
	if c.Video.StorageURI != "" && !strings.HasPrefix(c.Video.StorageURI, "gs://") {
		return errors.New("video.storage_uri must start with gs://")
	}
	return nil
}

func (c *Config) validateImage() error {
	if _, ok := supportedAspectRatios[c.Image.AspectRatio]; !ok {
		return fmt.Errorf("image.aspect_ratio %q is not supported", c.Image.AspectRatio)
	}
	if c.Image.MaxRetries < 0 {
		return errors.New("image.max_retries must be zero or greater")
	}
	return nil
}

func (c *Config) validateStory() error {
	if c.Story.Temperature < 0 || c.Story.Temperature > 2 {
		return errors.New("story.temperature must be between 0 and 2")
	}
	return ensurePositiveMap(map[string]int{
		"story.timeout_seconds":  c.Story.TimeoutSeconds,
		"story.default_duration": c.Story.DefaultDuration,
	})
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic == "" {
		return nil
	}
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
