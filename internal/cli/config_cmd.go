package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/jtriage/internal/config"
	"github.com/Dicklesworthstone/jtriage/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.CreateDefault()
			if err != nil {
				return err
			}
			if IsJSONOutput() {
				return output.WriteJSON(cmd.OutOrStdout(), map[string]interface{}{"success": true, "path": path})
			}
			f := GetFormatter(cmd.OutOrStdout())
			f.Success("Created %s", path)
			f.Wrapped("Set ATLASSIAN_CLOUD_ID, ATLASSIAN_EMAIL and ATLASSIAN_API_TOKEN (or a .env file) before running analyze.")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			if IsJSONOutput() {
				return output.WriteJSON(cmd.OutOrStdout(), map[string]interface{}{"path": path})
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := currentConfig()
			if IsJSONOutput() {
				return output.WriteJSON(cmd.OutOrStdout(), c)
			}
			return config.Print(c, cmd.OutOrStdout())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and Jira credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigValidate(cmd)
		},
	})

	return cmd
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultPath()
}

// validateResponse is the JSON body for config validate.
type validateResponse struct {
	Success bool     `json:"success"`
	Path    string   `json:"path"`
	Errors  []string `json:"errors,omitempty"`
	Missing []string `json:"missing_credentials,omitempty"`
}

func runConfigValidate(cmd *cobra.Command) error {
	c := currentConfig()
	resp := validateResponse{Path: configPath()}
	for _, err := range config.Validate(c) {
		resp.Errors = append(resp.Errors, err.Error())
	}
	resp.Missing = config.MissingCredentials(c)
	resp.Success = len(resp.Errors) == 0 && len(resp.Missing) == 0

	if IsJSONOutput() {
		if err := output.WriteJSON(cmd.OutOrStdout(), resp); err != nil {
			return err
		}
	} else {
		f := GetFormatter(cmd.OutOrStdout())
		f.KeyValue("Config", resp.Path)
		for _, e := range resp.Errors {
			f.Warning("%s", e)
		}
		for _, m := range resp.Missing {
			f.Warning("%s is not set", m)
		}
		if resp.Success {
			f.Success("Configuration is valid")
		}
	}
	if !resp.Success {
		return fmt.Errorf("configuration has %s and %s",
			output.CountStr(len(resp.Errors), "error", "errors"),
			output.CountStr(len(resp.Missing), "missing credential", "missing credentials"))
	}
	return nil
}
