package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lexcodex/fitcoach/agent"
)

func newCatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Print the tool catalog handed to the model",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := json.MarshalIndent(agent.BuildCatalog(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
