// Package main is the entry point for the Bedrock provider.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/compresr/bedrock-provider/internal/config"
)

// Version is the release version, overridden at build time with
// -ldflags "-X main.Version=...".
var Version = "v0.1.0"

// appDir is the per-user config directory under ~/.config.
const appDir = "bedrock-provider"

// ANSI color codes
const (
	brandOrange = "\033[38;2;255;153;0m"
	bold        = "\033[1m"
	reset       = "\033[0m"
)

// ASCII banner for startup
const banner = `
 ██████╗ ███████╗██████╗ ██████╗  ██████╗  ██████╗██╗  ██╗
 ██╔══██╗██╔════╝██╔══██╗██╔══██╗██╔═══██╗██╔════╝██║ ██╔╝
 ██████╔╝█████╗  ██║  ██║██████╔╝██║   ██║██║     █████╔╝
 ██╔══██╗██╔══╝  ██║  ██║██╔══██╗██║   ██║██║     ██╔═██╗
 ██████╔╝███████╗██████╔╝██║  ██║╚██████╔╝╚██████╗██║  ██╗
 ╚═════╝ ╚══════╝╚═════╝ ╚═╝  ╚═╝ ╚═════╝  ╚═════╝╚═╝  ╚═╝
`

func printBanner(w io.Writer) {
	fmt.Fprint(w, brandOrange+bold+banner+reset+"\n")
}

// loadEnvFiles loads .env from standard locations
func loadEnvFiles() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		_ = godotenv.Load()
		return
	}

	// Try loading from ~/.config/bedrock-provider/.env first
	configEnv := filepath.Join(homeDir, ".config", appDir, ".env")
	if _, err := os.Stat(configEnv); err == nil {
		_ = godotenv.Load(configEnv)
	}

	// Also load local .env (can override)
	_ = godotenv.Load()
}

func main() {
	if len(os.Args) < 2 {
		printHelp(os.Stdout)
		os.Exit(2)
	}

	args := os.Args[2:]
	var err error
	switch os.Args[1] {
	case "serve", "start":
		err = runServe(args)
	case "invoke", "run":
		err = runInvoke(args, os.Stdin, os.Stdout)
	case "dry-run", "preview":
		err = runDryRun(args, os.Stdin, os.Stdout)
	case "stats", "usage":
		err = runStats(args, os.Stdout)
	case "version", "-v", "--version":
		printVersion(os.Stdout)
	case "help", "-h", "--help":
		printHelp(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printHelp(os.Stderr)
		os.Exit(2)
	}

	if err != nil {
		var exit exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// exitError ends the process with code after output was already written.
type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// =============================================================================
// CONFIG
// =============================================================================

// resolveConfig resolves the config for a command.
// Checks: user flag -> filesystem locations -> embedded default.
// Returns raw bytes and source description.
func resolveConfig(userConfig string) ([]byte, string, error) {
	// If user specified a config path, read it directly
	if userConfig != "" {
		data, err := os.ReadFile(userConfig)
		if err != nil {
			return nil, "", fmt.Errorf("config file not found: %s", userConfig)
		}
		return data, userConfig, nil
	}

	for _, path := range configSearchPaths() {
		if data, err := os.ReadFile(path); err == nil {
			return data, path, nil
		}
	}

	// Fall back to embedded config
	if data, err := getEmbeddedConfig("default"); err == nil {
		return data, "(embedded) default.yaml", nil
	}

	return nil, "", fmt.Errorf("no config file found. Specify --config path")
}

// configSearchPaths lists config locations in order of preference.
func configSearchPaths() []string {
	var paths []string
	if homeDir, _ := os.UserHomeDir(); homeDir != "" {
		paths = append(paths, filepath.Join(homeDir, ".config", appDir, "configs", "config.yaml"))
	}
	return append(paths, "configs/config.yaml")
}

// loadConfig resolves and parses the configuration.
func loadConfig(userConfig string) (*config.Config, string, error) {
	data, source, err := resolveConfig(userConfig)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.LoadFromBytes(data)
	if err != nil {
		return nil, source, fmt.Errorf("%s: %w", source, err)
	}
	return cfg, source, nil
}

// =============================================================================
// LOGGING
// =============================================================================

// setupLogging configures zerolog with a console writer on out.
func setupLogging(debug bool, out io.Writer) {
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	})

	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// =============================================================================
// HELP
// =============================================================================

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "bedrock-provider %s\n", Version)
}

// printHelp prints usage information
func printHelp(w io.Writer) {
	printBanner(w)
	fmt.Fprintln(w, "Bedrock provider - AI actions backed by Amazon Bedrock")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  bedrock-provider <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve        Start the HTTP API")
	fmt.Fprintln(w, "  invoke       Run one action and print the result as JSON")
	fmt.Fprintln(w, "  dry-run      Print the request body an action would send, without sending it")
	fmt.Fprintln(w, "  stats        Print usage ledger summaries")
	fmt.Fprintln(w, "  version      Print version information")
	fmt.Fprintln(w, "  help         Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Actions:")
	for _, action := range config.KnownActions {
		fmt.Fprintf(w, "  %s\n", action)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Common options:")
	fmt.Fprintln(w, "  --config FILE        Config file (default: ~/.config/bedrock-provider/configs/config.yaml,")
	fmt.Fprintln(w, "                       ./configs/config.yaml, then the embedded default)")
	fmt.Fprintln(w, "  --debug              Enable debug logging")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Invoke and dry-run options:")
	fmt.Fprintln(w, "  --instance ID        Provider instance (default: site settings)")
	fmt.Fprintln(w, "  --user ID            User id, pseudonymised before use")
	fmt.Fprintln(w, "  --prompt TEXT        Prompt text (default: read from stdin)")
	fmt.Fprintln(w, "  --model ID           Override the configured model")
	fmt.Fprintln(w, "  --system TEXT        Override the system instruction")
	fmt.Fprintln(w, "  --extra JSON         Override the extra params")
	fmt.Fprintln(w, "  --width N --height N Image size")
	fmt.Fprintln(w, "  --lang CODE          Language for error messages (en, it)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Stats options:")
	fmt.Fprintln(w, "  --since DURATION     Only records newer than DURATION (e.g. 24h)")
	fmt.Fprintln(w, "  --instance ID        Only this instance")
	fmt.Fprintln(w)
	if names, err := listEmbeddedConfigs(); err == nil && len(names) > 0 {
		fmt.Fprintf(w, "Embedded configs: %s\n", strings.Join(names, ", "))
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  bedrock-provider serve --config configs/config.yaml")
	fmt.Fprintln(w, "  bedrock-provider invoke generate_text --prompt \"Write a haiku\"")
	fmt.Fprintln(w, "  echo \"long text\" | bedrock-provider invoke summarise_text")
	fmt.Fprintln(w, "  bedrock-provider dry-run generate_image --prompt \"a red fox\" --width 512 --height 512")
	fmt.Fprintln(w, "  bedrock-provider stats --since 24h")
}
