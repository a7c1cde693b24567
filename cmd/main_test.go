package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/compresr/bedrock-provider/external"
	"github.com/compresr/bedrock-provider/internal/actions"
	"github.com/compresr/bedrock-provider/internal/config"
	"github.com/compresr/bedrock-provider/internal/imaging"
	"github.com/compresr/bedrock-provider/internal/monitoring"
	"github.com/compresr/bedrock-provider/internal/store"
	"github.com/compresr/bedrock-provider/internal/tui"
)

type mockInvoker struct {
	mock.Mock
}

func (m *mockInvoker) InvokeModel(ctx context.Context, in *external.InvokeInput) (*external.InvokeOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*external.InvokeOutput)
	return out, args.Error(1)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	yaml := fmt.Sprintf(`
server: {port: 18090, read_timeout: 30s, write_timeout: 30s}
site:
  identifier: site-1
  region: eu-central-1
  access_key_id: AKIA
  secret_access_key: secret
  actions:
    generate_text:
      model: anthropic.claude-3-haiku-20240307-v1:0
drafts:
  dir: %s
`, t.TempDir())
	cfg, err := config.LoadFromBytes([]byte(yaml))
	require.NoError(t, err)
	return cfg
}

func newTestRuntime(t *testing.T) (*runtime, *mockInvoker) {
	t.Helper()
	invoker := &mockInvoker{}
	rt, err := newRuntime(context.Background(), testConfig(t), monitoring.Nop(), invoker)
	require.NoError(t, err)
	t.Cleanup(rt.Close)
	return rt, invoker
}

// =============================================================================
// CONFIG
// =============================================================================

func TestEmbeddedDefaultConfigIsValid(t *testing.T) {
	data, err := getEmbeddedConfig("default")
	require.NoError(t, err)

	cfg, err := config.LoadFromBytes(data)
	require.NoError(t, err)
	assert.Equal(t, 18090, cfg.Server.Port)
	assert.Equal(t, config.TransportSDK, cfg.Transport.Mode)
	assert.NotEmpty(t, cfg.Site.Actions[config.ActionGenerateImage].Model)

	names, err := listEmbeddedConfigs()
	require.NoError(t, err)
	assert.Equal(t, []string{"default"}, names)
}

func TestResolveConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	t.Run("falls back to embedded", func(t *testing.T) {
		_, source, err := resolveConfig("")
		require.NoError(t, err)
		assert.Equal(t, "(embedded) default.yaml", source)
	})

	t.Run("finds local configs dir", func(t *testing.T) {
		require.NoError(t, os.MkdirAll("configs", 0o750))
		require.NoError(t, os.WriteFile(filepath.Join("configs", "config.yaml"), []byte("server: {}"), 0o600))
		data, source, err := resolveConfig("")
		require.NoError(t, err)
		assert.Equal(t, "configs/config.yaml", source)
		assert.Equal(t, "server: {}", string(data))
	})

	t.Run("explicit path must exist", func(t *testing.T) {
		_, _, err := resolveConfig("/nonexistent/config.yaml")
		assert.ErrorContains(t, err, "config file not found")
	})
}

func TestLoadConfig_InvalidFileNamesSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: {port: 0}"), 0o600))

	_, _, err := loadConfig(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
	assert.Contains(t, err.Error(), "server.port is required")
}

// =============================================================================
// FLAGS
// =============================================================================

func TestParseActionFlags(t *testing.T) {
	var stderr bytes.Buffer

	f, err := parseActionFlags("invoke", []string{"generate_image", "--prompt", "a fox", "--width", "512", "--instance", "3"}, &stderr)
	require.NoError(t, err)
	assert.Equal(t, actions.KindGenerateImage, f.kind)
	assert.Equal(t, 512, f.width)

	req := f.request("a fox")
	assert.Equal(t, "3", req.InstanceID)
	assert.Equal(t, "a fox", req.Prompt)

	f, err = parseActionFlags("invoke", []string{"--model", "amazon.titan-text-lite-v1", "summarise_text"}, &stderr)
	require.NoError(t, err)
	assert.Equal(t, actions.KindSummariseText, f.kind)
	assert.Equal(t, "amazon.titan-text-lite-v1", f.model)
}

func TestParseActionFlags_Errors(t *testing.T) {
	var stderr bytes.Buffer

	_, err := parseActionFlags("invoke", nil, &stderr)
	assert.ErrorContains(t, err, "action is required")

	_, err = parseActionFlags("invoke", []string{"translate"}, &stderr)
	assert.ErrorIs(t, err, config.ErrUnknownAction)

	_, err = parseActionFlags("invoke", []string{"generate_text", "--extra", "{nope"}, &stderr)
	assert.ErrorIs(t, err, config.ErrInvalidExtraParams)

	_, err = parseActionFlags("invoke", []string{"generate_text", "--extra", "[1,2]"}, &stderr)
	assert.ErrorIs(t, err, config.ErrExtraParamsNotObject)

	_, err = parseActionFlags("invoke", []string{"generate_text", "--bogus"}, &stderr)
	var exit exitError
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, 2, exit.code)
}

func TestReadPrompt(t *testing.T) {
	f := &actionFlags{prompt: "from flag"}
	got, err := f.readPrompt(nil, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "from flag", got)

	path := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	stdin, err := os.Open(path)
	require.NoError(t, err)
	defer stdin.Close()

	got, err = (&actionFlags{}).readPrompt(stdin, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Empty(t, got, "empty stdin falls back to the default prompt")
}

// =============================================================================
// INVOKE AND DRY RUN
// =============================================================================

func TestInvokeAction_Success(t *testing.T) {
	rt, invoker := newTestRuntime(t)
	invoker.On("InvokeModel", mock.Anything, mock.MatchedBy(func(in *external.InvokeInput) bool {
		return in.Region == "eu-central-1" && in.Credentials.AccessKeyID == "AKIA"
	})).Return(&external.InvokeOutput{Body: []byte(`{"content":[{"text":"Hi"}],"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":1}}`)}, nil).Once()

	var out bytes.Buffer
	err := invokeAction(context.Background(), rt.processor, actions.Request{Kind: actions.KindGenerateText, Prompt: "Hello"}, &out)

	require.NoError(t, err)
	var res actions.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.True(t, res.Success)
	assert.Equal(t, "Hi", res.GeneratedContent)

	summaries, err := rt.usage.Summarize(context.Background(), store.Filter{})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 1, summaries[0].Succeeded)
	invoker.AssertExpectations(t)
}

func TestInvokeAction_FailurePrintsResultAndExitsNonZero(t *testing.T) {
	rt, invoker := newTestRuntime(t)

	var out bytes.Buffer
	err := invokeAction(context.Background(), rt.processor, actions.Request{Kind: actions.KindGenerateImage, Prompt: "fox"}, &out)

	var exit exitError
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, 1, exit.code)
	assert.Contains(t, out.String(), `"success": false`)
	assert.Contains(t, out.String(), `"error_code": 500`)
	invoker.AssertNotCalled(t, "InvokeModel", mock.Anything, mock.Anything)
}

func TestPreviewAction(t *testing.T) {
	rt, invoker := newTestRuntime(t)

	var out bytes.Buffer
	err := previewAction(rt.processor, actions.Request{Kind: actions.KindGenerateText, Prompt: "Hello", ExtraParams: `{"temperature": 0.2}`}, &out)

	require.NoError(t, err)
	var preview actions.Preview
	require.NoError(t, json.Unmarshal(out.Bytes(), &preview))
	assert.Equal(t, "eu-central-1", preview.Region)
	assert.Contains(t, string(preview.Body), `"temperature":0.2`)
	assert.Positive(t, preview.EstimatedPromptTokens)
	invoker.AssertNotCalled(t, "InvokeModel", mock.Anything, mock.Anything)
}

func TestNewRuntime_BadBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Usage.Driver = "oracle"

	_, err := newRuntime(context.Background(), cfg, monitoring.Nop(), &mockInvoker{})

	assert.ErrorContains(t, err, "usage ledger")
}

func TestNewWatermarker(t *testing.T) {
	assert.IsType(t, imaging.NoopWatermarker{}, newWatermarker(config.WatermarkConfig{}))

	wm := newWatermarker(config.WatermarkConfig{Enabled: true, Text: "AI"})
	require.IsType(t, &imaging.TextWatermarker{}, wm)
	assert.Equal(t, "AI", wm.(*imaging.TextWatermarker).Text)
}

// =============================================================================
// STATS
// =============================================================================

func TestFetchSummaries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/usage", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("summary"))
		assert.Equal(t, "1h0m0s", r.URL.Query().Get("since"))
		assert.Equal(t, "7", r.URL.Query().Get("instance_id"))
		_, _ = w.Write([]byte(`{"summaries":[{"action":"generate_text","total":3,"succeeded":2,"failed":1,"prompt_tokens":10,"completion_tokens":20}]}`))
	}))
	defer srv.Close()

	got, err := fetchSummaries(context.Background(), srv.Client(), statsFlags{serverURL: srv.URL + "/", instance: "7", since: time.Hour})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].Total)
}

func TestFetchSummaries_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"usage ledger is disabled"}}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := fetchSummaries(context.Background(), srv.Client(), statsFlags{serverURL: srv.URL})

	assert.ErrorContains(t, err, "usage ledger is disabled")
}

func TestPrintSummaries(t *testing.T) {
	var out bytes.Buffer
	console := tui.NewConsole(&out)

	printSummaries(console, []store.Summary{
		{Action: "generate_image", Total: 1, Succeeded: 1},
		{Action: "generate_text", Total: 2, Failed: 1, PromptTokens: 5, CompletionTokens: 7},
	})

	s := out.String()
	assert.Contains(t, s, "ACTION")
	assert.Contains(t, s, "generate_image")
	assert.Regexp(t, `all\s+3\s+1\s+1\s+5\s+7`, s)

	out.Reset()
	printSummaries(console, nil)
	assert.Contains(t, out.String(), "no usage recorded")
}

func TestPrintHelpListsActions(t *testing.T) {
	var out bytes.Buffer
	printHelp(&out)

	for _, action := range config.KnownActions {
		assert.Contains(t, out.String(), action)
	}
	assert.Contains(t, out.String(), "Embedded configs: default")
}
