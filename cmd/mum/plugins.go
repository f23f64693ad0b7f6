package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/themaluxis/MUM/dynamic"
)

func newPluginsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Manage installed plugins",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered plugins",
		Args:  cobra.NoArgs,
		RunE: withApp(configPath, func(cmd *cobra.Command, a *app, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tVERSION\tKIND\tSTATE\tFEATURES\tERROR")
			for _, rec := range a.reg.List() {
				features := make([]string, 0, len(rec.Manifest.SupportedFeatures))
				for _, f := range rec.Manifest.SupportedFeatures {
					features = append(features, string(f))
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					rec.ID(), rec.Manifest.Name, rec.Manifest.Version,
					rec.Kind, rec.State, strings.Join(features, ","), rec.LastError)
			}
			return w.Flush()
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "enable <plugin-id>",
		Short: "Enable a plugin",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(configPath, func(cmd *cobra.Command, a *app, args []string) error {
			state, err := a.reg.Enable(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], state)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "disable <plugin-id>",
		Short: "Disable a plugin",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(configPath, func(cmd *cobra.Command, a *app, args []string) error {
			state, err := a.reg.Disable(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], state)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "install <archive>",
		Short: "Install a plugin from a tar.gz or zip archive",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(configPath, func(cmd *cobra.Command, a *app, args []string) error {
			archive, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read archive: %w", err)
			}
			rec, err := a.installer.Install(cmd.Context(), archive)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "installed %s %s (state %s)\n",
				rec.ID(), rec.Manifest.Version, rec.State)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "uninstall <plugin-id>",
		Short: "Uninstall a disabled community plugin",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(configPath, func(cmd *cobra.Command, a *app, args []string) error {
			if err := a.installer.Uninstall(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uninstalled %s\n", args[0])
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "watch",
		Short: "Watch the plugins directory and reload changed plugins",
		Args:  cobra.NoArgs,
		RunE: withApp(configPath, func(cmd *cobra.Command, a *app, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			w := dynamic.NewWatcher(a.installer.Root(), func(dir string) {
				rec, err := a.installer.Reinstall(ctx, dir)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "reload %s: %v\n", dir, err)
					return
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reloaded %s %s\n", rec.ID(), rec.Manifest.Version)
			}, dynamic.WithWatcherLogger(a.logger))
			if err := w.Start(); err != nil {
				return err
			}
			defer w.Stop()

			fmt.Fprintf(cmd.OutOrStdout(), "watching %s\n", a.installer.Root())
			<-ctx.Done()
			return nil
		}),
	})

	return cmd
}
