package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"yakunote/internal/config"
	"yakunote/internal/pkg/logger"
)

const appName = "yakunote"

type cliEnv struct {
	cfg *config.Config
	log *slog.Logger
}

func newRootCmd() *cobra.Command {
	env := &cliEnv{}
	var logLevel string

	root := &cobra.Command{
		Use:           appName,
		Short:         "Extract, summarize and translate web pages",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config failed: %w", err)
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			env.cfg = cfg
			// Logs go to stderr so command output stays pipeable.
			env.log = logger.InitWriter(os.Stderr, cfg.Log.Level, "app", cfg.App.Name)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(env),
		newExtractCmd(env),
		newSummarizeCmd(env),
		newTranslateCmd(env),
	)
	return root
}

// readText takes the text from args, or from stdin when there are none or the only arg is "-".
func readText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin failed: %w", err)
	}
	return string(data), nil
}
