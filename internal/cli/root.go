package cli

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/reglet-dev/capkit/config"
	"github.com/spf13/cobra"
)

var version = "dev"

// SetVersion sets the version reported by the version command and --version.
func SetVersion(v string) {
	version = v
}

type appKey struct{}

// annotationApp marks commands that need the registry and dispatcher.
const annotationApp = "capkit/app"

var needsApp = map[string]string{annotationApp: "true"}

// withApp runs fn with the app built for cmd and shuts the app down
// afterwards, whether or not fn fails.
func withApp(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		a := appFrom(cmd)
		defer func() {
			err = stdErrors.Join(err, a.close(context.WithoutCancel(cmd.Context())))
		}()
		return fn(cmd, a, args)
	}
}

// NewRootCommand builds the capkit command tree. cfg supplies defaults that
// the persistent flags may override.
func NewRootCommand(cfg config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "capkit",
		Short:         "Register, describe and invoke capabilities",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[annotationApp] != "true" {
				return nil
			}
			a, err := newApp(cmd.Context(), cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, a))
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfg.ManifestPath, "manifest", cfg.ManifestPath, "capability manifest (YAML or JSON)")
	flags.StringVar(&cfg.CatalogPath, "db", cfg.CatalogPath, "catalog database path")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")

	root.AddCommand(
		newListCommand(),
		newFunctionsCommand(),
		newInvokeCommand(),
		newCatalogCommand(),
		newVersionCommand(),
	)
	return root
}

func appFrom(cmd *cobra.Command) *app {
	a, _ := cmd.Context().Value(appKey{}).(*app)
	return a
}

// Execute runs the command line against the process environment and exits
// with a non-zero status on failure.
func Execute() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}
	root := NewRootCommand(cfg)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}
