package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/themaluxis/MUM/dispatch"
	"github.com/themaluxis/MUM/media"
)

func newServersCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "servers",
		Short: "Manage configured server instances",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List configured servers",
		Args:  cobra.NoArgs,
		RunE: withApp(configPath, func(cmd *cobra.Command, a *app, args []string) error {
			instances, err := a.instances.List()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPLUGIN\tURL\tID")
			for _, inst := range instances {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", inst.Name, inst.PluginID, inst.URL, inst.ID)
			}
			return w.Flush()
		}),
	})

	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a server instance",
		Args:  cobra.ExactArgs(1),
	}
	var (
		addPlugin   string
		addURL      string
		addAPIKey   string
		addUsername string
		addPassword string
	)
	addCmd.Flags().StringVar(&addPlugin, "plugin", "", "plugin identifier (e.g. plex)")
	addCmd.Flags().StringVar(&addURL, "url", "", "server base URL")
	addCmd.Flags().StringVar(&addAPIKey, "api-key", "", "API key or token")
	addCmd.Flags().StringVar(&addUsername, "username", "", "basic auth username")
	addCmd.Flags().StringVar(&addPassword, "password", "", "basic auth password")
	addCmd.MarkFlagRequired("plugin")
	addCmd.MarkFlagRequired("url")
	addCmd.RunE = withApp(configPath, func(cmd *cobra.Command, a *app, args []string) error {
		if _, ok := a.reg.Get(addPlugin); !ok {
			return fmt.Errorf("unknown plugin %q", addPlugin)
		}
		inst, err := a.instances.Add(media.Instance{
			Name:     args[0],
			PluginID: addPlugin,
			URL:      addURL,
			APIKey:   addAPIKey,
			Username: addUsername,
			Password: addPassword,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s)\n", inst.Name, inst.ID)
		return nil
	})
	cmd.AddCommand(addCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a server instance",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(configPath, func(cmd *cobra.Command, a *app, args []string) error {
			inst, err := a.resolveInstance(args[0])
			if err != nil {
				return err
			}
			if err := a.instances.Remove(inst.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", inst.Name)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "test <name>",
		Short: "Test the connection to a server",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(configPath, func(cmd *cobra.Command, a *app, args []string) error {
			inst, err := a.resolveInstance(args[0])
			if err != nil {
				return err
			}
			res, err := a.disp.Invoke(cmd.Context(), inst, dispatch.OpTestConnection, dispatch.Args{})
			if err != nil {
				return err
			}
			status := "offline"
			if res.Connection.Online {
				status = "online"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s) %s\n",
				inst.Name, status, res.Connection.Version, res.Connection.Message)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "sessions <name>",
		Short: "Show active sessions on a server",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(configPath, func(cmd *cobra.Command, a *app, args []string) error {
			inst, err := a.resolveInstance(args[0])
			if err != nil {
				return err
			}
			res, err := a.disp.Invoke(cmd.Context(), inst, dispatch.OpListSessions, dispatch.Args{})
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "USER\tTITLE\tSTATE\tPROGRESS\tPLAYER\tIP")
			for _, s := range res.Sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%.0f%%\t%s\t%s\n",
					s.Username, s.MediaTitle, s.State, s.ProgressPercent, s.Player, s.IPAddress)
			}
			return w.Flush()
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "sync [name...]",
		Short: "Sync all servers, or only the named ones",
		RunE: withApp(configPath, func(cmd *cobra.Command, a *app, args []string) error {
			var instances []media.Instance
			if len(args) == 0 {
				all, err := a.instances.List()
				if err != nil {
					return err
				}
				instances = all
			} else {
				for _, ref := range args {
					inst, err := a.resolveInstance(ref)
					if err != nil {
						return err
					}
					instances = append(instances, inst)
				}
			}

			reports, err := a.syncer.Sync(cmd.Context(), instances)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SERVER\tONLINE\tUSERS\tLIBRARIES\tSESSIONS\tDURATION\tERROR")
			for _, r := range reports {
				errMsg := ""
				if r.Err != nil {
					errMsg = r.Err.Error()
				}
				fmt.Fprintf(w, "%s\t%t\t%d\t%d\t%d\t%s\t%s\n",
					r.Instance.Name, r.Online, len(r.Users), len(r.Libraries),
					len(r.Sessions), r.Duration.Round(time.Millisecond), errMsg)
			}
			return w.Flush()
		}),
	})

	return cmd
}
