package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"toastcall/internal/binding"
)

var overrideFlag bool

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create the protocol association for the configured app id",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		command, err := a.command()
		if err != nil {
			return err
		}
		res, err := binding.New(binding.NewSystemStore()).Register(a.id, command, binding.Options{
			Override: overrideFlag || a.cfg.OverrideRegistration,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", binding.KeyPath(a.id), res)
		return nil
	},
}

var unregisterCmd = &cobra.Command{
	Use:   "unregister",
	Short: "Remove the protocol association",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		if err := binding.New(binding.NewSystemStore()).Unregister(a.id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: removed\n", binding.KeyPath(a.id))
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear this app's notifications from the action center",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		return a.notifier.Clear()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "toastcall-demo %s (commit=%s, built=%s)\n", version, commit, buildDate)
	},
}

func init() {
	registerCmd.Flags().BoolVar(&overrideFlag, "override", false, "replace an existing association")
	rootCmd.AddCommand(registerCmd, unregisterCmd, clearCmd, versionCmd)
}
