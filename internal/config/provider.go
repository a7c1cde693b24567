package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Action names used as keys under `actions:`.
const (
	ActionGenerateText  = "generate_text"
	ActionSummariseText = "summarise_text"
	ActionGenerateImage = "generate_image"
)

// KnownActions lists every action this provider serves.
var KnownActions = []string{ActionGenerateText, ActionSummariseText, ActionGenerateImage}

// ErrInvalidExtraParams is returned for extra params that are not valid JSON.
var ErrInvalidExtraParams = errors.New("This is not valid JSON.")

// ProviderSettings holds the settings shared by the site and provider instances.
type ProviderSettings struct {
	Region          string                    `yaml:"region"`
	AccessKeyID     string                    `yaml:"access_key_id"`
	SecretAccessKey string                    `yaml:"secret_access_key"`
	SessionToken    string                    `yaml:"session_token"`
	RateLimits      *RateLimitsConfig         `yaml:"rate_limits"`
	Actions         map[string]ActionSettings `yaml:"actions"`
}

// SiteConfig is the site-wide fallback for every instance.
type SiteConfig struct {
	// Identifier is mixed into pseudonymous user ids.
	Identifier       string `yaml:"identifier"`
	ProviderSettings `yaml:",inline"`
}

// InstanceConfig is one configured provider instance.
type InstanceConfig struct {
	Name             string `yaml:"name"`
	ProviderSettings `yaml:",inline"`
}

// ActionSettings configures one action.
type ActionSettings struct {
	Model             string `yaml:"model"`
	SystemInstruction string `yaml:"system_instruction"`
	ExtraParams       string `yaml:"extra_params"` // raw JSON object
}

// RateLimitsConfig toggles the hourly user and global limits.
type RateLimitsConfig struct {
	User   RateLimitRule `yaml:"user"`
	Global RateLimitRule `yaml:"global"`
}

// RateLimitRule is a single hourly limit.
type RateLimitRule struct {
	Enabled bool `yaml:"enabled"`
	Limit   int  `yaml:"limit"`
}

// Default rate limits applied when a rule is enabled without a limit.
const (
	DefaultUserRateLimit   = 10
	DefaultGlobalRateLimit = 100
)

// Validate checks one settings block. prefix is used in error messages.
func (p *ProviderSettings) Validate(prefix string) error {
	if p.RateLimits != nil {
		if p.RateLimits.User.Limit < 0 {
			return fmt.Errorf("%s.rate_limits.user.limit must not be negative", prefix)
		}
		if p.RateLimits.Global.Limit < 0 {
			return fmt.Errorf("%s.rate_limits.global.limit must not be negative", prefix)
		}
	}
	for action, settings := range p.Actions {
		if !isKnownAction(action) {
			return fmt.Errorf("%s.actions: unknown action %q", prefix, action)
		}
		if err := ValidateExtraParams(settings.ExtraParams); err != nil {
			return fmt.Errorf("%s.actions.%s.extra_params: %w", prefix, action, err)
		}
	}
	return nil
}

func isKnownAction(action string) bool {
	for _, a := range KnownActions {
		if a == action {
			return true
		}
	}
	return false
}

// ErrExtraParamsNotObject is returned for request overrides that are valid
// JSON but not an object.
var ErrExtraParamsNotObject = errors.New("Extra parameters must be a JSON object.")

// ValidateExtraParams accepts empty input or any valid JSON document.
func ValidateExtraParams(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	if !json.Valid([]byte(raw)) {
		return ErrInvalidExtraParams
	}
	return nil
}

// ValidateExtraOverride accepts empty input or a JSON object. Per-request
// overrides are held to this; there is no form to correct them afterwards.
func ValidateExtraOverride(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if err := ValidateExtraParams(trimmed); err != nil {
		return err
	}
	if trimmed != "" && trimmed[0] != '{' {
		return ErrExtraParamsNotObject
	}
	return nil
}

// NormalizeExtraParams validates raw and returns it pretty printed with four
// space indentation, the form stored in instance settings.
func NormalizeExtraParams(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", nil
	}
	if err := ValidateExtraParams(trimmed); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(trimmed), "", "    "); err != nil {
		return "", ErrInvalidExtraParams
	}
	return buf.String(), nil
}

// normalizeActions rewrites every extra_params value in its stored form.
// Validate must have accepted p first.
func (p *ProviderSettings) normalizeActions() {
	for action, settings := range p.Actions {
		normalized, err := NormalizeExtraParams(settings.ExtraParams)
		if err != nil {
			continue
		}
		settings.ExtraParams = normalized
		p.Actions[action] = settings
	}
}
