package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"toolgate/internal/app"
)

type serveOptions struct {
	configPath string
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	root := newRootCmd(logger)
	if err := root.Execute(); err != nil {
		logger.Fatal("command failed", zap.Error(err))
	}
}

func newRootCmd(logger *zap.Logger) *cobra.Command {
	opts := serveOptions{
		configPath: "toolgate.yaml",
	}

	root := &cobra.Command{
		Use:     "toolgated",
		Short:   "MCP gateway that discovers, gates and routes backend tools on demand",
		Version: app.Version,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", opts.configPath, "path to gateway config file")

	root.AddCommand(
		newServeCmd(logger, &opts),
		newValidateCmd(logger, &opts),
		newImportCmd(logger, &opts),
	)

	return root
}

func newServeCmd(logger *zap.Logger, opts *serveOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			application := app.New(logger)
			return application.Serve(ctx, app.ServeConfig{
				ConfigPath: opts.configPath,
			})
		},
	}

	return cmd
}

func newValidateCmd(logger *zap.Logger, opts *serveOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate gateway configuration without connecting backends",
		RunE: func(cmd *cobra.Command, args []string) error {
			application := app.New(logger)
			return application.ValidateConfig(cmd.Context(), app.ValidateConfig{
				ConfigPath: opts.configPath,
			})
		},
	}

	return cmd
}

type importOptions struct {
	source     string
	sourcePath string
	env        map[string]string
	dryRun     bool
}

func newImportCmd(logger *zap.Logger, opts *serveOptions) *cobra.Command {
	var importOpts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import backend definitions from an agent client config into the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			application := app.New(logger)
			summary, err := application.Import(cmd.Context(), app.ImportConfig{
				ConfigPath: opts.configPath,
				Source:     importOpts.source,
				Path:       importOpts.sourcePath,
				Env:        importOpts.env,
				DryRun:     importOpts.dryRun,
			})
			if err != nil {
				return err
			}

			fmt.Printf("source=%s path=%s imported=%d issues=%d\n",
				summary.Source, summary.Path, len(summary.Imported), len(summary.Issues))
			for _, name := range summary.Imported {
				fmt.Println(name)
			}
			for _, issue := range summary.Issues {
				fmt.Printf("issue=%s name=%s %s\n", issue.Kind, issue.Name, issue.Message)
			}
			return nil
		},
	}

	addImportFlags(cmd.Flags(), &importOpts)
	_ = cmd.MarkFlagRequired("source")

	return cmd
}

func addImportFlags(flags *pflag.FlagSet, opts *importOptions) {
	flags.StringVar(&opts.source, "source", "", "agent client to import from (claude, codex, gemini)")
	flags.StringVar(&opts.sourcePath, "path", "", "override the source config location")
	flags.StringToStringVar(&opts.env, "env", nil, "env overrides applied to every imported backend (key=value)")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "list what would be imported without writing")
}

func signalAwareContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
