package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"yakunote/internal/app"
	"yakunote/internal/bootstrap"
	httptransport "yakunote/internal/transport/http"
)

func newServeCmd(env *cliEnv) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web application",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port > 0 {
				env.cfg.App.Port = port
			}
			a, err := bootstrap.NewWithConfig(cmd.Context(), env.cfg, env.log)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					env.log.Error("close resources failed", "error", err)
				}
			}()
			return httptransport.Run(cmd.Context(), a)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides APP_PORT)")
	return cmd
}

func newExtractCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "extract URL",
		Short: "Print the main text of a web page or PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := bootstrap.NewExtractor(env.cfg).Extract(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}
}

func newSummarizeCmd(env *cliEnv) *cobra.Command {
	var (
		lang    string
		fromURL string
	)
	cmd := &cobra.Command{
		Use:   "summarize [TEXT|-]",
		Short: "Summarize text, stdin or a page (--url) in Japanese or English",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				text string
				err  error
			)
			if fromURL != "" {
				text, err = bootstrap.NewExtractor(env.cfg).Extract(cmd.Context(), fromURL)
			} else {
				text, err = readText(cmd, args)
			}
			if err != nil {
				return err
			}

			svc := bootstrap.NewSummaryService(env.cfg, env.log)
			var summary string
			switch lang {
			case app.LangJapanese:
				summary, err = svc.Summarize(cmd.Context(), text)
			case app.LangEnglish:
				summary, err = svc.SummarizeEnglish(cmd.Context(), text)
			default:
				return fmt.Errorf("--lang must be %q or %q", app.LangJapanese, app.LangEnglish)
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), summary)
			return err
		},
	}
	cmd.Flags().StringVarP(&lang, "lang", "l", app.LangJapanese, "summary language (ja or en)")
	cmd.Flags().StringVarP(&fromURL, "url", "u", "", "extract the text from this page first")
	return cmd
}

func newTranslateCmd(env *cliEnv) *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "translate [TEXT|-]",
		Short: "Translate text between Japanese and English",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd, args)
			if err != nil {
				return err
			}
			out, err := bootstrap.NewSummaryService(env.cfg, env.log).Translate(cmd.Context(), text, target)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().StringVarP(&target, "to", "t", app.LangEnglish, "target language (ja or en)")
	return cmd
}
