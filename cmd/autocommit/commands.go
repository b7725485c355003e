package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bashhack/autocommit/internal/config"
	"github.com/bashhack/autocommit/internal/logger"
)

// NewRootCommand builds the autocommit command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "autocommit",
		Short: "Commit the project after every firmware build",
		Long: `autocommit stages the whole project and commits it with a message
built from firmware_version.txt each time a PlatformIO build finishes.

Git failures are reported but never fail the build.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return configure(app, cmd) },
	}
	root.SetOut(app.Stdout)
	root.SetErr(app.Stderr)
	root.SetIn(app.Stdin)

	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newRunCommand(app),
		newWatchCommand(app),
		newInstallCommand(app),
		newVersionCommand(app),
	)
	return root
}

func newRunCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the post-build hook once",
		Long: `Reads the firmware version, changes into the project root, stages all
changes and commits them as "Auto-commit: build <version>".

This is what the PlatformIO post-build action calls. It exits 0 when git
fails unless --strict is given.`,
		Args: cobra.NoArgs,
		// Configuration errors are handled in RunE so they cannot fail the build
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := configure(app, cmd); err != nil {
				_, _ = fmt.Fprintf(app.Stderr, "%s ❌ Post-build hook not run: %v\n", logger.Tag, err)
				if strict, _ := cmd.Flags().GetBool("strict"); strict || app.Config.Strict {
					return err
				}
				return nil
			}
			return app.RunHook(cmd.Context())
		},
	}
	cmd.Flags().Bool("dry-run", false, "Show what would be committed without committing")
	return cmd
}

func newWatchCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the hook whenever a build artifact is rewritten",
		Long: `Watches the firmware binaries (default: .pio/build/*/firmware.bin) and
runs the hook once the writes settle. Use this when the build cannot be
configured to call "autocommit run" itself.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Watch(cmd.Context())
		},
	}
	cmd.Flags().StringSlice("artifact", nil, "Build artifact to watch, relative to the project root (repeatable)")
	cmd.Flags().Duration("debounce", config.DefaultDebounce, "Time to wait for artifact writes to settle")
	cmd.Flags().Bool("dry-run", false, "Show what would be committed without committing")
	return cmd
}

func newInstallCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Register the hook as a PlatformIO post-build action",
		Long: `Writes autocommit_hook.py into the project root. The script attaches
"autocommit run" to the firmware binary target, so every successful build
commits the project.`,
		Args: cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return app.Install()
		},
	}
	cmd.Flags().Bool("force", false, "Overwrite an existing hook script without asking")
	cmd.Flags().Bool("non-interactive", false, "Never prompt; refuse to overwrite a modified script")
	return cmd
}

func newVersionCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// Skips configuration loading so version works outside a project
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(*cobra.Command, []string) {
			app.ShowVersion()
		},
	}
}

// configure layers the config file, environment and flags onto
// app.Config and initializes the app.
func configure(app *App, cmd *cobra.Command) error {
	flags := cmd.Flags()

	explicitDir, err := flags.GetString("project-dir")
	if err != nil {
		return err
	}
	projectDir, err := config.ResolveProjectDir(explicitDir)
	if err != nil {
		return err
	}

	configFile, err := flags.GetString("config")
	if err != nil {
		return err
	}
	if err := app.Config.Load(projectDir, configFile); err != nil {
		return err
	}
	if err := app.Config.ApplyFlags(flags); err != nil {
		return err
	}

	return app.Initialize()
}
