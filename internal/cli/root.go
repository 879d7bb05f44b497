// Package cli defines the carprice command tree.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/Brownie44l1/carprice-api/internal/config"
	"github.com/Brownie44l1/carprice-api/pkg/logging"
)

func NewRootCmd() *cobra.Command {
	var cfg *config.Config

	cmd := &cobra.Command{
		Use:   "carprice",
		Short: "Used car price estimation service",
		Long: `carprice estimates a vehicle's resale price from its year, mileage and
make/model using a pretrained regression model, and optionally returns a
resized preview of an uploaded photo.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg = config.Load()
			logging.Setup(cfg.LogLevel)
		},
		SilenceUsage: true,
	}

	cmd.AddCommand(newServeCmd(&cfg))
	cmd.AddCommand(newEstimateCmd(&cfg))

	return cmd
}
