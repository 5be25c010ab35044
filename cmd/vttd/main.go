package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/tablekeep/vtt/internal/config"
	"github.com/tablekeep/vtt/internal/logging"
)

var (
	// Logger is the process-wide slog logger, set up before any command runs.
	Logger = slog.Default()
	// DBLogger is handed to the database manager.
	DBLogger zerolog.Logger

	SlogManager = logging.NewSlogManager()
	StartTime   = time.Now()

	configDir string
	logToFile bool
	logFile   *os.File
)

func main() {
	root := &cobra.Command{
		Use:               "vttd",
		Short:             "Virtual tabletop scene sync daemon",
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) { teardown() },
	}
	root.Version = version
	root.SetVersionTemplate("{{.Version}}\n")
	root.PersistentFlags().StringVar(&configDir, "config", ".", "directory holding "+config.FileName)
	root.PersistentFlags().BoolVar(&logToFile, "log-file", false, "write logs to a file under logsDir")

	root.AddCommand(serveCmd())
	root.AddCommand(migrateLegacyCmd())
	root.AddCommand(exportCmd())
	root.AddCommand(mcpCmd())
	root.AddCommand(versionCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	cfgErr := config.Load(configDir)

	// stdout belongs to the MCP stdio transport, so console logs go to stderr
	out := logging.Outputs{File: os.Stderr}
	if logToFile {
		f, err := logging.OpenLogFile(config.GetString("logsDir"), "vttd", StartTime)
		if err != nil {
			return err
		}
		logFile = f
		out.File = f
	}
	if gl := config.GetGraylogConfig(); gl.Enabled {
		out.GraylogAddress = gl.Address
	}

	level := config.GetString("logLevel")
	if err := SlogManager.Setup(level, out); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	Logger = SlogManager.Logger()
	DBLogger = logging.NewZerolog(out.File, level)

	if cfgErr != nil {
		Logger.Warn("Using default configuration", "dir", configDir, "error", cfgErr)
	}
	return nil
}

func teardown() {
	_ = SlogManager.Close()
	if logFile != nil {
		_ = logFile.Close()
	}
}
