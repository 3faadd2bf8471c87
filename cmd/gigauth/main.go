// Command gigauth is a terminal client for the marketplace API.
//
// The session is kept in a JSON file, so it survives between invocations and
// is shared with any other process that points at the same file.
//
// Usage:
//
//	gigauth [global flags] <command> [command flags]
//
// Commands:
//
//	login     exchange email and password for a session
//	register  create an account and sign in
//	whoami    show the signed-in identity, verified against the backend
//	call      send an authenticated request and print the response
//	logout    end the session
//	status    print the local session state without network access
//	serve     run the stub backend for local development
//
// Configuration comes from GIGAUTH_* environment variables and global flags.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/MrEthical07/gigauth"
	flag "github.com/spf13/pflag"
)

type globals struct {
	baseURL     string
	sessionFile string
	debug       bool
}

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, g globals, args []string) error
}

var commands = []command{
	{"login", "exchange email and password for a session", runLogin},
	{"register", "create an account and sign in", runRegister},
	{"whoami", "show the signed-in identity", runWhoami},
	{"call", "send an authenticated request", runCall},
	{"logout", "end the session", runLogout},
	{"status", "print the local session state", runStatus},
	{"serve", "run the stub backend", runServe},
}

func main() {
	fs := flag.NewFlagSet("gigauth", flag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.Usage = func() { usage(fs) }

	var g globals
	fs.StringVar(&g.baseURL, "base-url", "", "API root (default GIGAUTH_BASE_URL or http://localhost:5000/api)")
	fs.StringVar(&g.sessionFile, "session-file", defaultSessionFile(), "where the session is kept")
	fs.BoolVarP(&g.debug, "debug", "d", false, "log every request and state transition to stderr")

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}
	if fs.NArg() == 0 {
		usage(fs)
		os.Exit(2)
	}

	name, args := fs.Arg(0), fs.Args()[1:]
	for _, cmd := range commands {
		if cmd.name != name {
			continue
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		err := cmd.run(ctx, g, args)
		stop()
		if err != nil {
			fmt.Fprintf(os.Stderr, "gigauth %s: %v\n", name, err)
			os.Exit(exitCode(err))
		}
		return
	}

	fmt.Fprintf(os.Stderr, "gigauth: unknown command %q\n", name)
	usage(fs)
	os.Exit(2)
}

func usage(fs *flag.FlagSet) {
	fmt.Fprintln(os.Stderr, "usage: gigauth [global flags] <command> [command flags]")
	fmt.Fprintln(os.Stderr, "\ncommands:")
	for _, cmd := range commands {
		fmt.Fprintf(os.Stderr, "  %-9s %s\n", cmd.name, cmd.summary)
	}
	fmt.Fprintln(os.Stderr, "\nglobal flags:")
	fs.PrintDefaults()
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".gigauth-session.json"
	}
	return filepath.Join(dir, "gigauth", "session.json")
}

// exitCode distinguishes credential problems from connectivity problems so
// scripts can react differently.
func exitCode(err error) int {
	switch {
	case gigauth.IsNetworkUnavailable(err):
		return 3
	case errors.Is(err, gigauth.ErrCredentialRejected),
		errors.Is(err, gigauth.ErrSessionExpired),
		errors.Is(err, gigauth.ErrRefreshFailed):
		return 4
	case errors.Is(err, gigauth.ErrValidationFailed):
		return 5
	default:
		return 1
	}
}

func openEngine(g globals) (*gigauth.Engine, error) {
	cfg, err := gigauth.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	if g.baseURL != "" {
		cfg.Transport.BaseURL = g.baseURL
	}
	if g.debug {
		cfg.Log.Debug = true
	}
	// A one-shot command has nothing to follow.
	cfg.Session.WatchExternal = false

	return gigauth.New().
		WithConfig(cfg).
		WithFile(g.sessionFile).
		Build()
}
