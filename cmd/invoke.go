package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/compresr/bedrock-provider/internal/actions"
	"github.com/compresr/bedrock-provider/internal/config"
	"github.com/compresr/bedrock-provider/internal/monitoring"
	"github.com/compresr/bedrock-provider/internal/tui"
)

// actionFlags are the options shared by invoke and dry-run.
type actionFlags struct {
	kind       actions.Kind
	configPath string
	debug      bool

	instance string
	user     string
	prompt   string
	model    string
	system   string
	extra    string
	lang     string
	width    int
	height   int
}

// parseActionFlags accepts the action kind before or after the options.
func parseActionFlags(name string, args []string, stderr io.Writer) (*actionFlags, error) {
	f := &actionFlags{}
	var kind string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		kind, args = args[0], args[1:]
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.configPath, "config", "", "path to config file")
	fs.BoolVar(&f.debug, "debug", false, "enable debug logging")
	fs.StringVar(&f.instance, "instance", "", "provider instance id")
	fs.StringVar(&f.user, "user", "", "user id")
	fs.StringVar(&f.prompt, "prompt", "", "prompt text (default: read from stdin)")
	fs.StringVar(&f.model, "model", "", "model id override")
	fs.StringVar(&f.system, "system", "", "system instruction override")
	fs.StringVar(&f.extra, "extra", "", "extra params override (JSON object)")
	fs.StringVar(&f.lang, "lang", "", "language for error messages")
	fs.IntVar(&f.width, "width", 0, "image width")
	fs.IntVar(&f.height, "height", 0, "image height")
	if err := fs.Parse(args); err != nil {
		return nil, exitError{code: 2}
	}

	if kind == "" && fs.NArg() > 0 {
		kind = fs.Arg(0)
	}
	if kind == "" {
		return nil, fmt.Errorf("%s: action is required (%s)", name, strings.Join(config.KnownActions, ", "))
	}
	k, err := actions.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	f.kind = k

	if f.extra != "" {
		if err := config.ValidateExtraOverride(f.extra); err != nil {
			return nil, fmt.Errorf("--extra: %w", err)
		}
	}
	if f.width < 0 || f.height < 0 {
		return nil, errors.New("--width and --height must not be negative")
	}
	return f, nil
}

// readPrompt returns --prompt, or prompt text from stdin. An empty prompt is
// allowed; the action substitutes its default.
func (f *actionFlags) readPrompt(stdin *os.File, stderr io.Writer) (string, error) {
	if f.prompt != "" {
		return f.prompt, nil
	}
	if stdin == nil {
		return "", nil
	}
	prompt, err := tui.ReadPrompt(stdin, stderr, "Prompt: ")
	if errors.Is(err, tui.ErrEmptyPrompt) {
		return "", nil
	}
	return prompt, err
}

func (f *actionFlags) request(prompt string) actions.Request {
	return actions.Request{
		Kind:              f.kind,
		InstanceID:        f.instance,
		UserID:            f.user,
		Prompt:            prompt,
		Model:             f.model,
		SystemInstruction: f.system,
		ExtraParams:       f.extra,
		Width:             f.width,
		Height:            f.height,
		Lang:              f.lang,
	}
}

// setup loads env files and config, and returns a logger on stderr so
// stdout carries only the JSON result.
func (f *actionFlags) setup() (*config.Config, *monitoring.Logger, error) {
	loadEnvFiles()
	setupLogging(f.debug, os.Stderr)

	cfg, _, err := loadConfig(f.configPath)
	if err != nil {
		return nil, nil, err
	}

	lc := loggerConfig(cfg, f.debug)
	lc.Output = "stderr"
	if !f.debug {
		lc.Level = "warn"
	}
	return cfg, monitoring.New(lc), nil
}

// =============================================================================
// INVOKE
// =============================================================================

// runInvoke runs one action and prints its Result.
func runInvoke(args []string, stdin *os.File, stdout io.Writer) error {
	f, err := parseActionFlags("invoke", args, os.Stderr)
	if err != nil {
		return err
	}
	cfg, logger, err := f.setup()
	if err != nil {
		return err
	}
	prompt, err := f.readPrompt(stdin, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	return invokeAction(ctx, rt.processor, f.request(prompt), stdout)
}

// invokeAction runs req and writes the Result. A failed Result is still
// written, and reported through the exit code.
func invokeAction(ctx context.Context, p *actions.Processor, req actions.Request, out io.Writer) error {
	res := p.Run(ctx, req)
	if err := writeJSON(out, res); err != nil {
		return err
	}
	if !res.Success {
		return exitError{code: 1}
	}
	return nil
}

// =============================================================================
// DRY RUN
// =============================================================================

// runDryRun prints the request body an action would send. Nothing is sent
// and no rate limit slot is used.
func runDryRun(args []string, stdin *os.File, stdout io.Writer) error {
	f, err := parseActionFlags("dry-run", args, os.Stderr)
	if err != nil {
		return err
	}
	cfg, logger, err := f.setup()
	if err != nil {
		return err
	}
	prompt, err := f.readPrompt(stdin, os.Stderr)
	if err != nil {
		return err
	}

	rt, err := newRuntime(context.Background(), cfg, logger, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	return previewAction(rt.processor, f.request(prompt), stdout)
}

// previewAction writes the Preview, or the failure Result when the request
// cannot be built.
func previewAction(p *actions.Processor, req actions.Request, out io.Writer) error {
	preview, err := p.Preview(req)
	if err != nil {
		if werr := writeJSON(out, actions.ResultFromError(err)); werr != nil {
			return werr
		}
		return exitError{code: 1}
	}
	return writeJSON(out, preview)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
