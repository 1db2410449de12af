package cli

import (
	"bytes"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/reglet-dev/capkit/application/dispatch"
	"github.com/reglet-dev/capkit/domain/entities"
	"github.com/reglet-dev/capkit/infrastructure/catalog"
	"github.com/reglet-dev/capkit/runctx"
	"github.com/spf13/cobra"
)

// ErrCallFailed is returned by invoke when the step result carries an error.
var ErrCallFailed = stdErrors.New("call failed")

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "list",
		Short:       "List registered capabilities",
		Args:        cobra.NoArgs,
		Annotations: needsApp,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			for _, id := range a.registry.List() {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		}),
	}
}

func newFunctionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "functions <capability-id>",
		Short:       "Describe the functions of a capability",
		Args:        cobra.ExactArgs(1),
		Annotations: needsApp,
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			def, err := a.dispatcher.Describe(cmd.Context(), entities.CapabilityID(args[0]))
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), def)
		}),
	}
}

func newInvokeCommand() *cobra.Command {
	var (
		params string
		runID  string
	)
	cmd := &cobra.Command{
		Use:         "invoke <capability-id> <function>",
		Short:       "Invoke a capability function and print the step result",
		Args:        cobra.ExactArgs(2),
		Annotations: needsApp,
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			values, err := decodeParams(params)
			if err != nil {
				return err
			}

			opts := []runctx.Option{runctx.WithServices(a.registry.Services())}
			if runID != "" {
				opts = append(opts, runctx.WithRunID(runID))
			}
			rc := runctx.New(cmd.Context(), opts...)

			res := a.dispatcher.Invoke(rc, dispatch.Call{
				CapabilityID: entities.CapabilityID(args[0]),
				Function:     args[1],
				Parameters:   values,
			})
			if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.IsSuccess() {
				return fmt.Errorf("%w: %s", ErrCallFailed, res.Kind())
			}
			return nil
		}),
	}
	cmd.Flags().StringVarP(&params, "params", "p", "", "parameters as a JSON object")
	cmd.Flags().StringVar(&runID, "run-id", "", "run identifier attached to logs and metadata")
	return cmd
}

func decodeParams(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var values map[string]any
	if err := dec.Decode(&values); err != nil {
		return nil, fmt.Errorf("decode --params: %w", err)
	}
	if values == nil {
		values = map[string]any{}
	}
	return values, nil
}

func newCatalogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the persisted capability catalog",
	}

	var prune bool
	syncCmd := &cobra.Command{
		Use:         "sync",
		Short:       "Describe every registered capability and store the result",
		Args:        cobra.NoArgs,
		Annotations: needsApp,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			store, err := catalog.Open(cmd.Context(), a.config.CatalogPath)
			if err != nil {
				return err
			}
			defer store.Close()

			var opts []catalog.SyncOption
			if prune {
				opts = append(opts, catalog.WithPrune())
			}
			ids := a.registry.List()
			if err := catalog.Sync(cmd.Context(), store, a.dispatcher, ids, opts...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "synced %d capabilities\n", len(ids))
			return nil
		}),
	}
	syncCmd.Flags().BoolVar(&prune, "prune", false, "remove stored capabilities that are no longer registered")

	listCmd := &cobra.Command{
		Use:         "list",
		Short:       "List stored capabilities",
		Args:        cobra.NoArgs,
		Annotations: needsApp,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			store, err := catalog.Open(cmd.Context(), a.config.CatalogPath)
			if err != nil {
				return err
			}
			defer store.Close()

			defs, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"ID", "Runtime", "Functions", "Updated", "Description"})
			for _, def := range defs {
				t.AppendRow(table.Row{def.ID, def.Runtime, len(def.Functions), def.UpdatedAt.Format(time.RFC3339), def.Description})
			}
			t.Render()
			return nil
		}),
	}

	cmd.AddCommand(syncCmd, listCmd)
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
