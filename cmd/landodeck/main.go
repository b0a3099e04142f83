package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/landodeck/internal/workflow"
)

func main() {
	root := buildRoot()
	if err := root.ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, errOperationFailed) {
			_, _ = fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// buildRoot creates the command tree
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	landodeckCommand := command{global: globalFlags}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createServeCommand(globalFlags),
		createConfigCommand(landodeckCommand),
		createSitesCommand(landodeckCommand),
		createInfoCommand(landodeckCommand),
		createCreateCommand(landodeckCommand),
		createDestroyCommand(landodeckCommand),
		createMigrateCommand(landodeckCommand),
		createOperationsCommand(landodeckCommand),
		createLogsCommand(landodeckCommand),
		createCancelCommand(landodeckCommand),
	)
	for _, action := range []workflow.Action{workflow.ActionStart, workflow.ActionStop, workflow.ActionRestart, workflow.ActionRebuild} {
		root.AddCommand(createLifecycleCommand(landodeckCommand, action))
	}
	return root
}

// createRootCommand creates the root command with the persistent flags
func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "landodeck",
		Short: "Control plane for Lando development sites",
		Long: `Landodeck runs Lando site operations (create, start, stop, rebuild,
destroy, database migration) in a local daemon and streams their output.

Examples:
  landodeck serve                          # Start daemon
  landodeck sites                          # List sites
  landodeck start mysite --wait            # Start a site and follow its log
  landodeck logs <operation-id> --follow
  landodeck sites --api-url=http://127.0.0.1:3000/api`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to JSON config file (default ~/.landodeckrc.json)")
	root.PersistentFlags().StringVar(&flags.APIUrl, "api-url", "", "daemon URL (default derived from the config, e.g. http://127.0.0.1:3000/api)")
	root.PersistentFlags().DurationVar(&flags.APITimeout, "api-timeout", 10*time.Second, "request timeout")

	return root
}

func addWaitFlags(cmd *cobra.Command, f *WaitFlags) {
	cmd.Flags().BoolVar(&f.Wait, "wait", false, "follow the operation log until it completes")
	cmd.Flags().DurationVar(&f.Interval, "interval", 500*time.Millisecond, "poll interval while waiting")
}

func createSitesCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "sites",
		Short: "List sites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.bind(cmd.OutOrStdout()).Sites(cmd.Context())
		},
	}
}

func createInfoCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "info <site>",
		Short: "Show a site's Landofile and lando info",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.bind(cmd.OutOrStdout()).Info(cmd.Context(), args[0])
		},
	}
}

// createLifecycleCommand creates start, stop, restart or rebuild
func createLifecycleCommand(c command, action workflow.Action) *cobra.Command {
	flags := &WaitFlags{}
	cmd := &cobra.Command{
		Use:   string(action) + " <site>",
		Short: fmt.Sprintf("Run 'lando %s' for a site", action),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.bind(cmd.OutOrStdout()).Lifecycle(cmd.Context(), args[0], string(action), *flags)
		},
	}
	addWaitFlags(cmd, flags)
	return cmd
}

func createCreateCommand(c command) *cobra.Command {
	flags := &CreateFlags{}
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new site",
		Long: `Create a new site directory under the sites directory, write its
Landofile and start it. WordPress sites are downloaded and installed.

Examples:
  landodeck create blog --recipe=wordpress --php=8.2 --wait
  landodeck create app --recipe=lamp --database=mysql:8.0 --webroot=public`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.bind(cmd.OutOrStdout()).Create(cmd.Context(), args[0], *flags)
		},
	}
	cmd.Flags().StringVar(&flags.Recipe, "recipe", "", "lando recipe (required)")
	cmd.Flags().StringVar(&flags.PHP, "php", "", "php version")
	cmd.Flags().StringVar(&flags.Database, "database", "", "database service, e.g. mariadb:10.6")
	cmd.Flags().StringVar(&flags.Webroot, "webroot", "", "webroot relative to the site")
	addWaitFlags(cmd, &flags.WaitFlags)
	if err := cmd.MarkFlagRequired("recipe"); err != nil {
		panic(err)
	}
	return cmd
}

func createDestroyCommand(c command) *cobra.Command {
	flags := &WaitFlags{}
	cmd := &cobra.Command{
		Use:   "destroy <site>",
		Short: "Destroy a site and remove its directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.bind(cmd.OutOrStdout()).Destroy(cmd.Context(), args[0], *flags)
		},
	}
	addWaitFlags(cmd, flags)
	return cmd
}

func createMigrateCommand(c command) *cobra.Command {
	flags := &MigrateFlags{}
	cmd := &cobra.Command{
		Use:   "migrate <site>",
		Short: "Change a site's php or database version, keeping its data",
		Long: `Export the database, rewrite the Landofile, destroy and rebuild the
site, then import the export back.

Examples:
  landodeck migrate mysite --database=mysql:8.0 --wait
  landodeck migrate mysite --php=8.3 --no-phpmyadmin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.bind(cmd.OutOrStdout()).Migrate(cmd.Context(), args[0], *flags)
		},
	}
	cmd.Flags().StringVar(&flags.PHP, "php", "", "new php version")
	cmd.Flags().StringVar(&flags.Database, "database", "", "new database service, e.g. mariadb:10.11")
	cmd.Flags().BoolVar(&flags.PhpMyAdmin, "phpmyadmin", false, "add a phpMyAdmin service")
	cmd.Flags().BoolVar(&flags.NoPhpMyAdmin, "no-phpmyadmin", false, "remove the phpMyAdmin service")
	addWaitFlags(cmd, &flags.WaitFlags)
	return cmd
}

func createOperationsCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "operations",
		Short: "List recent operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.bind(cmd.OutOrStdout()).Operations(cmd.Context())
		},
	}
}

func createLogsCommand(c command) *cobra.Command {
	flags := &LogsFlags{}
	cmd := &cobra.Command{
		Use:   "logs <operation-id>",
		Short: "Print an operation's output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.bind(cmd.OutOrStdout()).Logs(cmd.Context(), args[0], *flags)
		},
	}
	cmd.Flags().BoolVarP(&flags.Follow, "follow", "f", false, "keep printing until the operation completes")
	cmd.Flags().IntVar(&flags.Since, "since", 0, "skip this many lines")
	cmd.Flags().DurationVar(&flags.Interval, "interval", 500*time.Millisecond, "poll interval with --follow")
	return cmd
}

func createCancelCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <operation-id>",
		Short: "Cancel a running operation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.bind(cmd.OutOrStdout()).Cancel(cmd.Context(), args[0])
		},
	}
}

// createConfigCommand groups the local configuration helpers
func createConfigCommand(c command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the local Lando setup",
	}

	detect := &cobra.Command{
		Use:   "detect",
		Short: "Detect the lando executable and a sites directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.bind(cmd.OutOrStdout()).ConfigDetect(cmd.Context())
		},
	}

	flags := &VerifyFlags{}
	verify := &cobra.Command{
		Use:   "verify",
		Short: "Check that lando runs and the sites directory exists",
		Long: `Check a lando executable and a sites directory. Paths not given as
flags are taken from the config file. Exits non-zero when either check fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.bind(cmd.OutOrStdout()).ConfigVerify(cmd.Context(), *flags)
		},
	}
	verify.Flags().StringVar(&flags.LandoPath, "lando-path", "", "lando executable to check")
	verify.Flags().StringVar(&flags.SitesDirectory, "sites-directory", "", "sites directory to check")

	cmd.AddCommand(detect, verify)
	return cmd
}
