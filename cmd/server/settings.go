package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/slidewizard/backend/internal/settings"
)

// clientFlag selects the browser client whose cache export and seed use.
var clientFlag string

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Inspect and manage template settings files",
}

var settingsValidateCmd = &cobra.Command{
	Use:   "validate [file.json]",
	Short: "Check that a settings file can be imported",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		cfg, err := settings.Decode(data)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d image slots, %d text slots)\n", args[0], len(cfg.Images), len(cfg.Texts))
		return nil
	},
}

var settingsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print a client's cached previous settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openPersistence(clientFlag)
		if err != nil {
			return err
		}
		cfg := p.ReadLocalCache()
		if cfg == nil {
			return settings.ErrCacheEmpty
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	},
}

var settingsSeedCmd = &cobra.Command{
	Use:   "seed [preset.yaml]",
	Short: "Replace a client's cached previous settings with a YAML preset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openPersistence(clientFlag)
		if err != nil {
			return err
		}
		cfg, err := settings.LoadPreset(args[0])
		if err != nil {
			return err
		}
		p.CacheLocally(cfg)
		fmt.Fprintf(cmd.OutOrStdout(), "cached %d image slots, %d text slots\n", len(cfg.Images), len(cfg.Texts))
		return nil
	},
}

var settingsClientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "List the clients that have cached settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		caches, err := openClientCaches()
		if err != nil {
			return err
		}
		ids, err := caches.Clients()
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{settingsExportCmd, settingsSeedCmd} {
		c.Flags().StringVar(&clientFlag, "client", "", "client id (see settings clients)")
		_ = c.MarkFlagRequired("client")
	}
	settingsCmd.AddCommand(settingsValidateCmd, settingsExportCmd, settingsSeedCmd, settingsClientsCmd)
}

func openClientCaches() (*settings.ClientCaches, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return settings.NewClientCaches(cfg.Storage.SettingsDirectory)
}

// openPersistence opens the settings cache of client under the directory
// named by the server config.
func openPersistence(client string) (*settings.Persistence, error) {
	caches, err := openClientCaches()
	if err != nil {
		return nil, err
	}
	cache, err := caches.For(client)
	if err != nil {
		return nil, err
	}
	return settings.New(cache, nil), nil
}
