package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/nadmax/fitsync/internal/config"
	"github.com/nadmax/fitsync/internal/logging"
)

var CLI struct {
	Fetch FetchCmd `cmd:"" help:"Fetch steps and sleep for a date range and store them."`
	Month MonthCmd `cmd:"" help:"Print the normalized view of one month."`
	Serve ServeCmd `cmd:"" help:"Run the HTTP API."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("fitsync"),
		kong.Description("Fetch, store and normalize activity tracker step and sleep data"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, logFile, err := logging.New(logging.Options{
		Dir:   cfg.LogDir,
		Level: cfg.LogLevel,
		Debug: cfg.Debug,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open log directory: %v\n", err)
		os.Exit(1)
	}

	app := &App{Config: cfg, Logger: logger, Out: os.Stdout}
	err = ctx.Run(app)
	_ = logFile.Close()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
