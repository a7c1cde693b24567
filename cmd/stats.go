package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/compresr/bedrock-provider/internal/gateway"
	"github.com/compresr/bedrock-provider/internal/store"
	"github.com/compresr/bedrock-provider/internal/tui"
)

// statsTimeout bounds the request to a running server.
const statsTimeout = 10 * time.Second

type statsFlags struct {
	configPath string
	serverURL  string
	instance   string
	action     string
	since      time.Duration
}

// runStats prints usage summaries, either from a running server (--url) or
// straight from the configured ledger.
func runStats(args []string, stdout io.Writer) error {
	loadEnvFiles()

	var f statsFlags
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.StringVar(&f.configPath, "config", "", "path to config file")
	fs.StringVar(&f.serverURL, "url", "", "query a running server, e.g. http://localhost:18090")
	fs.StringVar(&f.instance, "instance", "", "only this instance")
	fs.StringVar(&f.action, "action", "", "only this action")
	fs.DurationVar(&f.since, "since", 0, "only records newer than this duration")
	if err := fs.Parse(args); err != nil {
		return exitError{code: 2}
	}
	if f.since < 0 {
		return fmt.Errorf("--since must not be negative")
	}

	console := tui.NewConsole(stdout)
	ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
	defer cancel()

	var (
		summaries []store.Summary
		err       error
	)
	if f.serverURL != "" {
		summaries, err = fetchSummaries(ctx, http.DefaultClient, f)
	} else {
		summaries, err = ledgerSummaries(ctx, console, f)
	}
	if err != nil {
		return err
	}

	printSummaries(console, summaries)
	return nil
}

// ledgerSummaries opens the configured ledger directly.
func ledgerSummaries(ctx context.Context, console *tui.Console, f statsFlags) ([]store.Summary, error) {
	cfg, _, err := loadConfig(f.configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Usage.Driver == "" || cfg.Usage.Driver == "memory" {
		console.Warn("usage.driver is memory: records live in the server process, use --url to query it")
	}

	ledger, err := store.New(cfg.Usage)
	if err != nil {
		return nil, fmt.Errorf("usage ledger: %w", err)
	}
	defer ledger.Close()

	return ledger.Summarize(ctx, f.filter())
}

func (f statsFlags) filter() store.Filter {
	filter := store.Filter{InstanceID: f.instance, Action: f.action}
	if f.since > 0 {
		filter.Since = time.Now().Add(-f.since)
	}
	return filter
}

// fetchSummaries queries GET /v1/usage on a running server.
func fetchSummaries(ctx context.Context, client *http.Client, f statsFlags) ([]store.Summary, error) {
	q := url.Values{"summary": {"true"}}
	if f.instance != "" {
		q.Set("instance_id", f.instance)
	}
	if f.action != "" {
		q.Set("action", f.action)
	}
	if f.since > 0 {
		q.Set("since", f.since.String())
	}
	endpoint := strings.TrimRight(f.serverURL, "/") + "/v1/usage?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid --url: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", f.serverURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, gateway.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read usage response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("usage request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var usage gateway.UsageResponse
	if err := json.Unmarshal(body, &usage); err != nil {
		return nil, fmt.Errorf("invalid usage response: %w", err)
	}
	return usage.Summaries, nil
}

func printSummaries(console *tui.Console, summaries []store.Summary) {
	console.Header("Usage")
	if len(summaries) == 0 {
		console.Info("no usage recorded")
		return
	}

	tw := tabwriter.NewWriter(console.Writer(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ACTION\tTOTAL\tSUCCEEDED\tFAILED\tPROMPT TOKENS\tCOMPLETION TOKENS")
	var total store.Summary
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", s.Action, s.Total, s.Succeeded, s.Failed, s.PromptTokens, s.CompletionTokens)
		total.Total += s.Total
		total.Succeeded += s.Succeeded
		total.Failed += s.Failed
		total.PromptTokens += s.PromptTokens
		total.CompletionTokens += s.CompletionTokens
	}
	if len(summaries) > 1 {
		fmt.Fprintf(tw, "all\t%d\t%d\t%d\t%d\t%d\n", total.Total, total.Succeeded, total.Failed, total.PromptTokens, total.CompletionTokens)
	}
	_ = tw.Flush()
}

