package application

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/JonMunkholm/coursehub/internal/core"
)

func newListCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every course on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return fmt.Errorf("failed to get format flag: %w", err)
			}

			c, err := newClient(v)
			if err != nil {
				return err
			}
			snapshot, err := c.FetchAll(contextOrBackground(cmd))
			if err != nil {
				return err
			}

			if format == "json" {
				return writeJSON(cmd.OutOrStdout(), snapshot)
			}
			return printCourses(cmd.OutOrStdout(), snapshot)
		},
	}
	cmd.Flags().String("format", "", "Output format (json)")
	return cmd
}

func newDuplicatesCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "duplicates",
		Short: "Show courses whose codes collide once normalized",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return fmt.Errorf("failed to get format flag: %w", err)
			}

			c, err := newClient(v)
			if err != nil {
				return err
			}
			snapshot, err := c.FetchAll(contextOrBackground(cmd))
			if err != nil {
				return err
			}

			groups := core.FindDuplicates(snapshot)
			if format == "json" {
				return writeJSON(cmd.OutOrStdout(), groups)
			}
			return printDuplicates(cmd.OutOrStdout(), groups)
		},
	}
	cmd.Flags().String("format", "", "Output format (json)")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
