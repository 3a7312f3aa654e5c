package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"shiftplanner.ebus.dev/internal/appconf"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("shiftplanner", flag.ContinueOnError)
	configPath := fs.String("f", "", "path to a JSON config file")
	envFile := fs.String("env-file", ".env", "dotenv file loaded before the environment is read")
	port := fs.Int("port", 0, "API server port (overrides config)")
	apiKeys := fs.String("api-keys", "", "comma separated API keys (overrides config)")
	gtfsPath := fs.String("gtfs", "", "GTFS zip path or URL to import at startup (overrides config)")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath, *envFile)
	if err != nil {
		return err
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *apiKeys != "" {
		cfg.ApiKeys = ParseAPIKeys(*apiKeys)
	}
	if *gtfsPath != "" {
		cfg.GTFSPath = *gtfsPath
	}
	if *verbose {
		cfg.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	coreApp, err := BuildApplication(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, api := CreateServer(coreApp, cfg)
	return Run(ctx, srv, coreApp, api)
}

// loadConfig layers defaults, the optional config file and the environment.
func loadConfig(configPath, envFile string) (appconf.Config, error) {
	if err := appconf.LoadDotEnv(envFile); err != nil {
		return appconf.Config{}, err
	}

	cfg := appconf.Default()
	if configPath != "" {
		jsonConfig, err := appconf.LoadFromFile(configPath)
		if err != nil {
			return cfg, err
		}
		cfg = jsonConfig.ToAppConfig()
	}
	return appconf.ApplyEnv(cfg)
}
