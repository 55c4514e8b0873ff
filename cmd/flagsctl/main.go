package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater/v2"
	"github.com/jessevdk/go-flags"

	"github.com/tylerearls/folio/pkg/domain"
	"github.com/tylerearls/folio/pkg/flagclient"
	"github.com/tylerearls/folio/pkg/flagfile"
	folioflags "github.com/tylerearls/folio/pkg/flags"
)

// Opts with all CLI options
type Opts struct {
	File string `short:"f" long:"file" env:"FLAGS_FILE" default:"flipt.yaml" description:"flag definition file"`

	List    struct{} `command:"list" description:"list all flags and their current state"`
	Status  struct{} `command:"status" description:"show flag status summary"`
	Enable  FlagArg  `command:"enable" description:"enable a flag in the flag file"`
	Disable FlagArg  `command:"disable" description:"disable a flag in the flag file"`
	Sync    SyncOpts `command:"sync" description:"push runtime flags of an environment to the flags endpoint"`
	Remote  struct {
		URL   string `long:"url" env:"FLAGS_URL" required:"true" description:"flags endpoint"`
		Cache string `long:"cache" env:"FLAGS_CACHE" description:"cache file, disabled when empty"`
	} `command:"remote" description:"show flags served by the endpoint"`

	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

// FlagArg is a command taking a single flag name
type FlagArg struct {
	Args struct {
		Flag string `positional-arg-name:"flag" required:"yes"`
	} `positional-args:"yes"`
}

// SyncOpts for the sync command
type SyncOpts struct {
	URL     string        `long:"url" env:"FLAGS_URL" required:"true" description:"flags endpoint"`
	APIKey  string        `long:"api-key" env:"FLAGS_API_KEY" required:"true" description:"admin api key"`
	Env     string        `long:"env" default:"production" description:"environment to sync"`
	Timeout time.Duration `long:"timeout" default:"10s" description:"request timeout"`
	Retries int           `long:"retries" default:"3" description:"attempts for transient failures"`
	DryRun  bool          `long:"dry-run" description:"print the payload without sending"`
}

// errPermanent marks sync failures not worth retrying
var errPermanent = errors.New("permanent failure")

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.NoColor {
		color.NoColor = true
	}
	setupLog(opts.Debug)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, parser.Active.Name, opts, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		cancel()
		os.Exit(1) //nolint:gocritic // cancel called above
	}
}

func run(ctx context.Context, cmd string, opts Opts, out io.Writer) error {
	switch cmd {
	case "list":
		cfg, err := flagfile.Load(opts.File)
		if err != nil {
			return err
		}
		printList(out, cfg)
	case "status":
		cfg, err := flagfile.Load(opts.File)
		if err != nil {
			return err
		}
		printStatus(out, cfg, opts.File)
	case "enable":
		return setEnabled(out, opts.File, opts.Enable.Args.Flag, true)
	case "disable":
		return setEnabled(out, opts.File, opts.Disable.Args.Flag, false)
	case "sync":
		cfg, err := flagfile.Load(opts.File)
		if err != nil {
			return err
		}
		return syncFlags(ctx, out, cfg, opts.Sync)
	case "remote":
		c := &flagclient.Client{URL: opts.Remote.URL, CachePath: opts.Remote.Cache}
		set, err := c.Flags(ctx)
		if err != nil {
			lgr.Printf("[WARN] can't get remote flags, showing defaults: %v", err)
			set = folioflags.Defaults()
		}
		printSet(out, set)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func setEnabled(out io.Writer, path, key string, enabled bool) error {
	cfg, err := flagfile.Load(path)
	if err != nil {
		return err
	}
	changes, err := cfg.SetEnabled(key, enabled)
	if err != nil {
		if errors.Is(err, flagfile.ErrFlagNotFound) {
			build, runtime := cfg.Names()
			return fmt.Errorf("%w, available build-time: [%s], runtime: [%s]", err,
				strings.Join(build, ", "), strings.Join(runtime, ", "))
		}
		return err
	}

	verb := "disabled"
	if enabled {
		verb = "enabled"
	}
	for _, ch := range changes {
		if ch.Environment == "" {
			fmt.Fprintf(out, "%s %s flag %s\n", verb, ch.Kind, ch.Flag)
			continue
		}
		fmt.Fprintf(out, "  updated %s environment\n", ch.Environment)
	}

	if err := cfg.Save(path); err != nil {
		return err
	}
	fmt.Fprintf(out, "changes saved to %s, commit them to deploy\n", path)
	return nil
}

// syncFlags puts runtime flags of the environment to the endpoint. Network errors,
// 5xx and 429 are retried, other responses stop immediately.
func syncFlags(ctx context.Context, out io.Writer, cfg *flagfile.Config, opts SyncOpts) error {
	set := cfg.RuntimeFlagSet(opts.Env)
	if err := folioflags.Validate(set); err != nil {
		return fmt.Errorf("runtime flags of %s can't be synced: %w", opts.Env, err)
	}
	body, err := folioflags.Marshal(set)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "flags to sync (%s):\n", opts.Env)
	printSet(out, set)
	if opts.DryRun {
		fmt.Fprintf(out, "%s\n", body)
		return nil
	}

	client := &http.Client{Timeout: opts.Timeout}
	attempts := max(opts.Retries, 1)
	err = repeater.NewBackoff(attempts, 200*time.Millisecond, repeater.WithMaxDelay(2*time.Second)).Do(ctx, func() error {
		return putFlags(ctx, client, opts.URL, opts.APIKey, body)
	}, errPermanent)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	fmt.Fprintf(out, "synced %d flags to %s\n", len(set), opts.URL)
	return nil
}

func putFlags(ctx context.Context, client *http.Client, url, apiKey string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: make request: %v", errPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		lgr.Printf("[DEBUG] sync request failed, will retry: %v", err)
		return fmt.Errorf("put flags: %w", err)
	}
	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		lgr.Printf("[DEBUG] sync got %d, will retry", resp.StatusCode)
		return fmt.Errorf("put flags: status %d", resp.StatusCode)
	default:
		return fmt.Errorf("%w: status %d, %s", errPermanent, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
}

func printList(out io.Writer, cfg *flagfile.Config) {
	line := strings.Repeat("-", 50)
	fmt.Fprintf(out, "build-time flags:\n%s\n", line)
	printFlags(out, cfg.BuildTimeFlags)
	fmt.Fprintf(out, "\nruntime flags:\n%s\n", line)
	printFlags(out, cfg.RuntimeFlags)

	fmt.Fprintf(out, "\nenvironment overrides:\n%s\n", line)
	for _, env := range cfg.EnvNames() {
		fmt.Fprintf(out, "  %s:\n", env)
		e := cfg.Environments[env]
		for _, k := range flagfile.SortedKeys(e.BuildTimeFlags) {
			fmt.Fprintf(out, "    build: %s = %s\n", k, state(e.BuildTimeFlags[k].Enabled))
		}
		for _, k := range flagfile.SortedKeys(e.RuntimeFlags) {
			fmt.Fprintf(out, "    runtime: %s = %s\n", k, state(e.RuntimeFlags[k].Enabled))
		}
	}
}

func printFlags(out io.Writer, defs map[string]flagfile.Flag) {
	if len(defs) == 0 {
		fmt.Fprintln(out, "  (none defined)")
		return
	}
	for _, k := range flagfile.SortedKeys(defs) {
		fmt.Fprintf(out, "  %s: %s\n", k, state(defs[k].Enabled))
		if d := defs[k].Description; d != "" {
			fmt.Fprintf(out, "    %s\n", d)
		}
	}
}

func printStatus(out io.Writer, cfg *flagfile.Config, path string) {
	st := cfg.Status()
	fmt.Fprintf(out, "build-time flags: %d/%d enabled\n", st.BuildTimeEnabled, st.BuildTimeTotal)
	fmt.Fprintf(out, "runtime flags: %d/%d enabled\n", st.RuntimeEnabled, st.RuntimeTotal)
	fmt.Fprintf(out, "namespace: %s\nconfig version: %s\nconfig path: %s\n", cfg.Namespace, cfg.Version, path)
}

func printSet(out io.Writer, set domain.FeatureFlagSet) {
	for _, k := range flagfile.SortedKeys(set) {
		f := set[k]
		if f.Message != nil {
			fmt.Fprintf(out, "  %s: %s (%s)\n", k, state(f.Enabled), *f.Message)
			continue
		}
		fmt.Fprintf(out, "  %s: %s\n", k, state(f.Enabled))
	}
}

func state(enabled bool) string {
	if enabled {
		return color.GreenString("enabled")
	}
	return color.RedString("disabled")
}

func setupLog(dbg bool) {
	logOpts := []lgr.Option{lgr.Out(os.Stderr), lgr.Err(os.Stderr)}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.Msec, lgr.LevelBraces}
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
