// Package main provides the entry point for cursor-login, a helper that signs a
// user in to Cursor through the deep-login handshake and prints the issued access token.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/router-for-me/cursor-login/internal/api"
	"github.com/router-for-me/cursor-login/internal/auth/cursor"
	"github.com/router-for-me/cursor-login/internal/buildinfo"
	"github.com/router-for-me/cursor-login/internal/cmd"
	"github.com/router-for-me/cursor-login/internal/config"
	"github.com/router-for-me/cursor-login/internal/logging"
	"github.com/router-for-me/cursor-login/internal/store"
	"github.com/router-for-me/cursor-login/internal/tui"
	"github.com/router-for-me/cursor-login/internal/util"
	log "github.com/sirupsen/logrus"
)

var (
	Version           = "dev"
	Commit            = "none"
	BuildDate         = "unknown"
	DefaultConfigPath = ""
)

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	var configPath string
	var noBrowser bool
	var copyToken bool
	var tuiMode bool
	var serve bool
	var maxAttempts int
	var showVersion bool

	flag.StringVar(&configPath, "config", DefaultConfigPath, "Configure File Path")
	flag.BoolVar(&noBrowser, "no-browser", false, "Don't open the login page automatically")
	flag.BoolVar(&copyToken, "copy-token", false, "Copy the access token to the clipboard after login")
	flag.BoolVar(&tuiMode, "tui", false, "Start the terminal login panel")
	flag.BoolVar(&serve, "serve", false, "Serve the login API on 127.0.0.1")
	flag.IntVar(&maxAttempts, "max-attempts", 0, "Override the number of poll attempts")
	flag.BoolVar(&showVersion, "version", false, "Print version information and exit")

	flag.CommandLine.Usage = func() {
		out := flag.CommandLine.Output()
		_, _ = fmt.Fprintf(out, "Usage of %s\n", os.Args[0])
		flag.CommandLine.VisitAll(func(f *flag.Flag) {
			s := fmt.Sprintf("  -%s", f.Name)
			name, unquoteUsage := flag.UnquoteUsage(f)
			if name != "" {
				s += " " + name
			}
			if len(s) <= 4 {
				s += "	"
			} else {
				s += "\n    "
			}
			if unquoteUsage != "" {
				s += unquoteUsage
			}
			if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" {
				s += fmt.Sprintf(" (default %s)", f.DefValue)
			}
			_, _ = fmt.Fprint(out, s+"\n")
		})
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("cursor-login Version: %s, Commit: %s, BuiltAt: %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)
		return
	}

	wd, err := os.Getwd()
	if err != nil {
		log.Errorf("failed to get working directory: %v", err)
		return
	}

	// Load environment variables from .env if present.
	if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil {
		if !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}

	// An explicit -config must exist; the implicit ./config.yaml is optional.
	var cfg *config.Config
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
	} else {
		cfg, err = config.LoadConfigOptional(filepath.Join(wd, "config.yaml"), true)
	}
	if err != nil {
		log.Errorf("failed to load config: %v", err)
		return
	}

	if err = logging.ConfigureLogOutput(cfg); err != nil {
		log.Errorf("failed to configure log output: %v", err)
		return
	}
	util.SetLogLevel(cfg)
	log.Debugf("cursor-login Version: %s, Commit: %s, BuiltAt: %s", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)

	if resolvedAuthDir, errResolveAuthDir := util.ResolveAuthDir(cfg.AuthDir); errResolveAuthDir != nil {
		log.Errorf("failed to resolve auth directory: %v", errResolveAuthDir)
		return
	} else {
		cfg.AuthDir = resolvedAuthDir
	}
	if maxAttempts > 0 {
		cfg.Cursor.MaxAttempts = maxAttempts
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slots, closeSlots, err := store.OpenSlotStore(ctx, cfg.AuthDir, store.LookupEnv)
	if err != nil {
		log.Errorf("failed to open credential slot: %v", err)
		return
	}
	defer func() {
		if errClose := closeSlots(); errClose != nil {
			log.Warnf("failed to close credential slot: %v", errClose)
		}
	}()

	var openerOpts []cursor.Option
	if noBrowser {
		openerOpts = append(openerOpts, cursor.WithURLOpener(nil))
	}

	switch {
	case serve:
		// Frontends open the login page themselves.
		handshake := cursor.NewCursorAuth(cfg, cursor.WithURLOpener(nil))
		server := api.NewServer(cfg, api.NewHandler(cfg, handshake, slots))
		if err = server.Start(); err != nil {
			log.Errorf("failed to start API server: %v", err)
			return
		}
		select {
		case <-ctx.Done():
		case errServe := <-server.Errors():
			log.Errorf("API server failed: %v", errServe)
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err = server.Stop(shutdownCtx); err != nil {
			log.Warnf("failed to stop API server: %v", err)
		}
	case tuiMode:
		handshake := cursor.NewCursorAuth(cfg, openerOpts...)
		if err = tui.Run(ctx, handshake, slots, cfg.Cursor.MaxAttempts, os.Stdout); err != nil {
			log.Errorf("TUI error: %v", err)
		}
	default:
		cmd.DoCursorLogin(ctx, cfg, &cmd.LoginOptions{
			NoBrowser:   noBrowser,
			CopyToken:   copyToken,
			MaxAttempts: maxAttempts,
			Slots:       slots,
		})
	}
}
