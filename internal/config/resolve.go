package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// DefaultRegion is used when neither the instance nor the site has a valid region.
const DefaultRegion = "eu-west-1"

var regionPattern = regexp.MustCompile(`^(us|eu|ap|sa|ca|me|af)-[a-z]+-\d$`)

var (
	// ErrModelNotConfigured means no model is set for the action at any layer.
	ErrModelNotConfigured = errors.New("model not configured")

	// ErrUnknownInstance means the requested provider instance does not exist.
	ErrUnknownInstance = errors.New("unknown provider instance")

	// ErrUnknownAction means the action is not served by this provider.
	ErrUnknownAction = errors.New("unknown action")
)

// ValidRegion reports whether region looks like an AWS commercial region.
func ValidRegion(region string) bool {
	return regionPattern.MatchString(region)
}

// Overrides are per-request action settings. They rank below instance
// action settings and above site action settings.
type Overrides struct {
	Model             string
	SystemInstruction string
	ExtraParams       string
}

// Credentials are static AWS credentials.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// Snapshot is the fully resolved configuration for one invocation.
// It is a value type and is never modified after Resolve returns.
type Snapshot struct {
	InstanceID        string
	Action            string
	SiteIdentifier    string
	Model             string
	SystemInstruction string
	ExtraParams       []byte
	Region            string
	Credentials       Credentials
	UseDefaultChain   bool
	UserRateLimit     RateLimitRule
	GlobalRateLimit   RateLimitRule
}

// Configured reports whether the snapshot can reach Bedrock: static keys and
// a region, or the default credential chain.
func (s Snapshot) Configured() bool {
	if s.Region == "" {
		return false
	}
	if s.UseDefaultChain {
		return true
	}
	return s.Credentials.AccessKeyID != "" && s.Credentials.SecretAccessKey != ""
}

// Resolver turns layered configuration into per-invocation snapshots.
type Resolver struct {
	cfg *Config
}

// NewResolver creates a resolver over cfg. cfg must not be modified afterwards.
func NewResolver(cfg *Config) *Resolver {
	return &Resolver{cfg: cfg}
}

// Config returns the underlying configuration.
func (r *Resolver) Config() *Config {
	return r.cfg
}

// Resolve builds the snapshot for instanceID and action. An empty instanceID
// resolves against site settings only.
func (r *Resolver) Resolve(instanceID, action string, overrides Overrides) (Snapshot, error) {
	if !isKnownAction(action) {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	var inst *InstanceConfig
	if instanceID != "" {
		found, ok := r.cfg.Instances[instanceID]
		if !ok {
			return Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownInstance, instanceID)
		}
		inst = &found
	}

	site := r.cfg.Site
	siteAction := site.Actions[action]
	var instAction ActionSettings
	if inst != nil {
		instAction = inst.Actions[action]
	}

	snap := Snapshot{
		InstanceID:        instanceID,
		Action:            action,
		SiteIdentifier:    site.Identifier,
		Model:             firstNonEmpty(instAction.Model, overrides.Model, siteAction.Model),
		SystemInstruction: firstNonEmpty(instAction.SystemInstruction, overrides.SystemInstruction, siteAction.SystemInstruction),
		UseDefaultChain:   r.cfg.Transport.UsesDefaultChain(),
	}
	if snap.Model == "" {
		return Snapshot{}, fmt.Errorf("%w for action %s", ErrModelNotConfigured, action)
	}
	if extra := firstNonEmpty(instAction.ExtraParams, overrides.ExtraParams, siteAction.ExtraParams); extra != "" {
		snap.ExtraParams = []byte(extra)
	}

	siteRegion := site.Region
	creds := Credentials{
		AccessKeyID:     site.AccessKeyID,
		SecretAccessKey: site.SecretAccessKey,
		SessionToken:    site.SessionToken,
	}
	limits := site.RateLimits
	instRegion := ""
	if inst != nil {
		instRegion = inst.Region
		// Instance keys replace site keys as a set so a site session token
		// never pairs with instance keys.
		if inst.AccessKeyID != "" || inst.SecretAccessKey != "" {
			creds = Credentials{
				AccessKeyID:     inst.AccessKeyID,
				SecretAccessKey: inst.SecretAccessKey,
				SessionToken:    inst.SessionToken,
			}
		}
		if inst.RateLimits != nil {
			limits = inst.RateLimits
		}
	}
	snap.Credentials = creds
	snap.Region = resolveRegion(instRegion, siteRegion)
	if limits != nil {
		snap.UserRateLimit = withDefault(limits.User, DefaultUserRateLimit)
		snap.GlobalRateLimit = withDefault(limits.Global, DefaultGlobalRateLimit)
	}

	return snap, nil
}

// Configured reports whether instanceID (or the site when empty) has usable
// credentials and region, independent of any action.
func (r *Resolver) Configured(instanceID string) bool {
	snap, err := r.Resolve(instanceID, ActionGenerateText, Overrides{Model: "-"})
	if err != nil {
		return false
	}
	return snap.Configured()
}

func resolveRegion(candidates ...string) string {
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if ValidRegion(c) {
			return c
		}
	}
	return DefaultRegion
}

func withDefault(rule RateLimitRule, limit int) RateLimitRule {
	if rule.Enabled && rule.Limit == 0 {
		rule.Limit = limit
	}
	return rule
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
