package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"spendsight/internal/api"
	"spendsight/internal/core"
)

func settingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read or update role settings",
	}
	cmd.AddCommand(settingsGetCmd(a))
	cmd.AddCommand(settingsSetCmd(a))
	return cmd
}

func settingsGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <role>",
		Short: "Print the settings document of a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role := args[0]
			if err := validRole(role); err != nil {
				return err
			}
			s, err := a.client.GetSettings(cmd.Context(), role)
			if err != nil {
				return fmt.Errorf("get settings: %s", api.Message(err))
			}
			return printJSON(cmd.OutOrStdout(), s)
		},
	}
}

func settingsSetCmd(a *app) *cobra.Command {
	var (
		patchJSON string
		file      string
		theme     string
	)
	cmd := &cobra.Command{
		Use:   "set <role>",
		Short: "Apply a partial settings update",
		Long: `Apply a partial settings update. Sections left out of the patch are
unchanged. The patch comes from --patch, --file (use - for stdin), or the
shorthand flags.

  spendctl settings set admin --patch '{"preferences":{"theme":"light"}}'
  spendctl settings set employee --theme dark`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role := args[0]
			if err := validRole(role); err != nil {
				return err
			}

			var src io.Reader
			switch {
			case patchJSON != "" && file != "":
				return errors.New("use either --patch or --file, not both")
			case patchJSON != "":
				src = strings.NewReader(patchJSON)
			case file == "-":
				src = cmd.InOrStdin()
			case file != "":
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				src = f
			}

			var patch core.SettingsPatch
			if src != nil {
				if err := decodePatch(src, &patch); err != nil {
					return err
				}
			}
			if theme != "" {
				patch.Preferences = &core.Preferences{Theme: theme}
			}
			if patch == (core.SettingsPatch{}) {
				return errors.New("nothing to update: pass --patch, --file or a shorthand flag")
			}

			s, err := a.client.UpdateSettings(cmd.Context(), role, patch)
			if err != nil {
				return fmt.Errorf("update settings: %s", api.Message(err))
			}
			return printJSON(cmd.OutOrStdout(), s)
		},
	}
	cmd.Flags().StringVar(&patchJSON, "patch", "", "settings patch as JSON")
	cmd.Flags().StringVar(&file, "file", "", "read the JSON patch from a file, - for stdin")
	cmd.Flags().StringVar(&theme, "theme", "", "set preferences.theme")
	return cmd
}

func decodePatch(r io.Reader, patch *core.SettingsPatch) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(patch); err != nil {
		return fmt.Errorf("invalid settings patch: %w", err)
	}
	return nil
}
