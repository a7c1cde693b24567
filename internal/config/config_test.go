package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compresr/bedrock-provider/internal/config"
)

const baseYAML = `
server:
  port: 8088
  read_timeout: 30s
  write_timeout: 2m
site:
  identifier: ${TEST_SITE_ID:-moodle-prod}
  region: ${TEST_REGION:-us-east-1}
  access_key_id: AKIASITE
  secret_access_key: site-secret
  rate_limits:
    user: {enabled: true}
    global: {enabled: false, limit: 500}
  actions:
    generate_text:
      model: anthropic.claude-3-5-sonnet-20240620-v1:0
      extra_params: '{"top_p": 0.9}'
    generate_image:
      model: amazon.nova-canvas-v1:0
instances:
  "7":
    name: Course helper
    region: not-a-region
    access_key_id: AKIAINST
    secret_access_key: inst-secret
    rate_limits:
      user: {enabled: true, limit: 3}
      global: {enabled: true, limit: 50}
    actions:
      summarise_text:
        model: meta.llama3-70b-instruct-v1:0
        system_instruction: Summarise for students.
  "8":
    region: ap-southeast-2
transport:
  mode: sdk
  timeout: 60s
`

func mustLoad(t *testing.T, data string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFromBytes([]byte(data))
	require.NoError(t, err)
	return cfg
}

// =============================================================================
// LOADING
// =============================================================================

func TestLoadFromBytes_ExpandsEnv(t *testing.T) {
	t.Setenv("TEST_SITE_ID", "site-xyz")

	cfg := mustLoad(t, baseYAML)

	assert.Equal(t, "site-xyz", cfg.Site.Identifier)
	assert.Equal(t, "us-east-1", cfg.Site.Region)
	assert.Equal(t, 2*time.Minute, cfg.Server.WriteTimeout)
	assert.Equal(t, "Course helper", cfg.Instances["7"].Name)
	assert.Equal(t, "AKIAINST", cfg.Instances["7"].AccessKeyID)
}

func TestLoadFromBytes_EnvOverrides(t *testing.T) {
	t.Setenv("BEDROCK_TELEMETRY_LOG", "/tmp/actions.jsonl")

	cfg := mustLoad(t, baseYAML)

	assert.True(t, cfg.Monitoring.TelemetryEnabled)
	assert.Equal(t, "/tmp/actions.jsonl", cfg.Monitoring.TelemetryPath)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing port",
			yaml:    "server: {read_timeout: 1s, write_timeout: 1s}",
			wantErr: "server.port is required",
		},
		{
			name:    "bad extra params",
			yaml:    "server: {port: 1, read_timeout: 1s, write_timeout: 1s}\nsite:\n  actions:\n    generate_text: {extra_params: '{nope'}",
			wantErr: "This is not valid JSON.",
		},
		{
			name:    "negative user limit",
			yaml:    "server: {port: 1, read_timeout: 1s, write_timeout: 1s}\nsite:\n  rate_limits:\n    user: {enabled: true, limit: -1}",
			wantErr: "site.rate_limits.user.limit must not be negative",
		},
		{
			name:    "negative instance global limit",
			yaml:    "server: {port: 1, read_timeout: 1s, write_timeout: 1s}\ninstances:\n  \"2\":\n    rate_limits:\n      global: {enabled: true, limit: -5}",
			wantErr: "instances.2.rate_limits.global.limit must not be negative",
		},
		{
			name:    "unknown action",
			yaml:    "server: {port: 1, read_timeout: 1s, write_timeout: 1s}\nsite:\n  actions:\n    translate: {model: x}",
			wantErr: `unknown action "translate"`,
		},
		{
			name:    "redis without addr",
			yaml:    "server: {port: 1, read_timeout: 1s, write_timeout: 1s}\nrate_limit: {backend: redis}",
			wantErr: "rate_limit.redis.addr is required",
		},
		{
			name:    "unknown usage driver",
			yaml:    "server: {port: 1, read_timeout: 1s, write_timeout: 1s}\nusage: {driver: mysql}",
			wantErr: "unknown driver",
		},
		{
			name:    "unknown transport mode",
			yaml:    "server: {port: 1, read_timeout: 1s, write_timeout: 1s}\ntransport: {mode: grpc}",
			wantErr: "unknown mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadFromBytes([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// =============================================================================
// RESOLUTION
// =============================================================================

func TestResolve_SiteOnly(t *testing.T) {
	r := config.NewResolver(mustLoad(t, baseYAML))

	snap, err := r.Resolve("", config.ActionGenerateText, config.Overrides{})

	require.NoError(t, err)
	assert.Equal(t, "anthropic.claude-3-5-sonnet-20240620-v1:0", snap.Model)
	assert.Equal(t, "{\n    \"top_p\": 0.9\n}", string(snap.ExtraParams))
	assert.Equal(t, "us-east-1", snap.Region)
	assert.Equal(t, "AKIASITE", snap.Credentials.AccessKeyID)
	assert.Equal(t, config.RateLimitRule{Enabled: true, Limit: config.DefaultUserRateLimit}, snap.UserRateLimit)
	assert.False(t, snap.GlobalRateLimit.Enabled)
	assert.True(t, snap.Configured())
}

func TestResolve_Precedence(t *testing.T) {
	r := config.NewResolver(mustLoad(t, baseYAML))

	// Instance action settings beat request overrides.
	snap, err := r.Resolve("7", config.ActionSummariseText, config.Overrides{
		Model:             "amazon.titan-text-express-v1",
		SystemInstruction: "ignored",
	})
	require.NoError(t, err)
	assert.Equal(t, "meta.llama3-70b-instruct-v1:0", snap.Model)
	assert.Equal(t, "Summarise for students.", snap.SystemInstruction)

	// Request overrides beat site settings.
	snap, err = r.Resolve("7", config.ActionGenerateText, config.Overrides{
		Model:       "amazon.titan-text-express-v1",
		ExtraParams: `{"max_tokens": 10}`,
	})
	require.NoError(t, err)
	assert.Equal(t, "amazon.titan-text-express-v1", snap.Model)
	assert.Equal(t, `{"max_tokens": 10}`, string(snap.ExtraParams))
}

func TestResolve_InstanceCredentialsAndLimits(t *testing.T) {
	r := config.NewResolver(mustLoad(t, baseYAML))

	snap, err := r.Resolve("7", config.ActionGenerateImage, config.Overrides{})

	require.NoError(t, err)
	assert.Equal(t, "7", snap.InstanceID)
	assert.Equal(t, "AKIAINST", snap.Credentials.AccessKeyID)
	assert.Equal(t, "inst-secret", snap.Credentials.SecretAccessKey)
	assert.Equal(t, config.RateLimitRule{Enabled: true, Limit: 3}, snap.UserRateLimit)
	assert.Equal(t, config.RateLimitRule{Enabled: true, Limit: 50}, snap.GlobalRateLimit)
	// Invalid instance region falls through to the site region.
	assert.Equal(t, "us-east-1", snap.Region)
}

func TestResolve_Region(t *testing.T) {
	r := config.NewResolver(mustLoad(t, baseYAML))

	snap, err := r.Resolve("8", config.ActionGenerateText, config.Overrides{})
	require.NoError(t, err)
	assert.Equal(t, "ap-southeast-2", snap.Region)

	t.Setenv("TEST_REGION", "mars-1")
	r = config.NewResolver(mustLoad(t, baseYAML))
	snap, err = r.Resolve("", config.ActionGenerateText, config.Overrides{})
	require.NoError(t, err)
	assert.Equal(t, config.DefaultRegion, snap.Region)
}

func TestResolve_Errors(t *testing.T) {
	r := config.NewResolver(mustLoad(t, baseYAML))

	_, err := r.Resolve("", config.ActionSummariseText, config.Overrides{})
	assert.ErrorIs(t, err, config.ErrModelNotConfigured)

	_, err = r.Resolve("99", config.ActionGenerateText, config.Overrides{})
	assert.ErrorIs(t, err, config.ErrUnknownInstance)

	_, err = r.Resolve("", "translate", config.Overrides{})
	assert.ErrorIs(t, err, config.ErrUnknownAction)
}

func TestResolver_Configured(t *testing.T) {
	cfg := mustLoad(t, baseYAML)
	r := config.NewResolver(cfg)

	assert.True(t, r.Configured(""))
	assert.True(t, r.Configured("7"))
	assert.False(t, r.Configured("99"))

	cfg.Site.AccessKeyID = ""
	assert.False(t, r.Configured(""))

	cfg.Transport.Credentials = config.CredentialsDefaultChain
	assert.True(t, r.Configured(""))
}

func TestValidRegion(t *testing.T) {
	valid := []string{"eu-west-1", "us-east-2", "ap-southeast-1", "sa-east-1", "ca-central-1", "me-south-1", "af-south-1"}
	invalid := []string{"", "eu-west", "cn-north-1", "us-gov-west-1", "EU-WEST-1", "eu-west-12", " eu-west-1"}

	for _, r := range valid {
		assert.True(t, config.ValidRegion(r), r)
	}
	for _, r := range invalid {
		assert.False(t, config.ValidRegion(r), r)
	}
}

// =============================================================================
// EXTRA PARAMS
// =============================================================================

func TestNormalizeExtraParams(t *testing.T) {
	got, err := config.NormalizeExtraParams(`{"top_p":0.9,"stop":["a"]}`)
	require.NoError(t, err)
	assert.Equal(t, "{\n    \"top_p\": 0.9,\n    \"stop\": [\n        \"a\"\n    ]\n}", got)

	got, err = config.NormalizeExtraParams("   ")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = config.NormalizeExtraParams(`{"a":}`)
	assert.ErrorIs(t, err, config.ErrInvalidExtraParams)
	assert.EqualError(t, err, "This is not valid JSON.")
}

func TestResolve_EnabledZeroLimitTakesDefault(t *testing.T) {
	cfg := mustLoad(t, `
server: {port: 1, read_timeout: 1s, write_timeout: 1s}
site:
  actions:
    generate_text: {model: m}
  rate_limits:
    user: {enabled: true, limit: 0}
    global: {enabled: true}
`)

	snap, err := config.NewResolver(cfg).Resolve("", config.ActionGenerateText, config.Overrides{})

	require.NoError(t, err)
	assert.Equal(t, config.RateLimitRule{Enabled: true, Limit: config.DefaultUserRateLimit}, snap.UserRateLimit)
	assert.Equal(t, config.RateLimitRule{Enabled: true, Limit: config.DefaultGlobalRateLimit}, snap.GlobalRateLimit)
}

func TestLoadFromBytes_NormalizesExtraParams(t *testing.T) {
	cfg := mustLoad(t, `
server: {port: 1, read_timeout: 1s, write_timeout: 1s}
site:
  actions:
    generate_text: {model: m, extra_params: '{"stop":["a"]}'}
instances:
  "3":
    actions:
      summarise_text: {model: m, extra_params: '  {"top_p":0.5}  '}
      generate_image: {model: m}
`)

	assert.Equal(t, "{\n    \"stop\": [\n        \"a\"\n    ]\n}", cfg.Site.Actions[config.ActionGenerateText].ExtraParams)
	assert.Equal(t, "{\n    \"top_p\": 0.5\n}", cfg.Instances["3"].Actions[config.ActionSummariseText].ExtraParams)
	assert.Empty(t, cfg.Instances["3"].Actions[config.ActionGenerateImage].ExtraParams)
}

func TestValidateExtraOverride(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{name: "empty", raw: ""},
		{name: "blank", raw: "  \n"},
		{name: "object", raw: `{"temperature": 0.2}`},
		{name: "padded object", raw: ` {"a":1} `},
		{name: "truncated", raw: `{"temperature": 0.2,`, wantErr: config.ErrInvalidExtraParams},
		{name: "array", raw: `[1,2]`, wantErr: config.ErrExtraParamsNotObject},
		{name: "scalar", raw: `5`, wantErr: config.ErrExtraParamsNotObject},
		{name: "string", raw: `"x"`, wantErr: config.ErrExtraParamsNotObject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := config.ValidateExtraOverride(tt.raw)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
