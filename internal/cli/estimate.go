package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Brownie44l1/carprice-api/internal/config"
	"github.com/Brownie44l1/carprice-api/internal/estimate"
)

type estimateOutput struct {
	Make          string  `json:"make"`
	Model         string  `json:"model"`
	PriceEstimate float64 `json:"price_estimate"`
	ImageWidth    int     `json:"image_width,omitempty"`
	ImageHeight   int     `json:"image_height,omitempty"`
	ImageOut      string  `json:"image_out,omitempty"`
}

func newEstimateCmd(cfg **config.Config) *cobra.Command {
	var (
		sub       estimate.Submission
		imagePath string
		imageOut  string
	)

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate one car's price and print the result as JSON",
		Example: `  carprice estimate --year 2020 --mileage 15000 --model-id 5
  carprice estimate --year 2016 --mileage 80000 --model-id 12 --image car.jpg --image-out preview.jpg`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sub.Mileage < 0 {
				return fmt.Errorf("mileage must not be negative")
			}
			if imagePath != "" {
				data, err := os.ReadFile(imagePath)
				if err != nil {
					return fmt.Errorf("failed to read image: %w", err)
				}
				sub.Image = data
			}

			a, err := loadApp(cmd.Context(), *cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.service.Estimate(cmd.Context(), sub)
			if err != nil {
				return err
			}

			out := estimateOutput{
				Make:          res.Make,
				Model:         res.Model,
				PriceEstimate: res.Price,
			}
			if res.Image != nil {
				out.ImageWidth = res.Image.Width
				out.ImageHeight = res.Image.Height
				if imageOut != "" {
					if err := os.WriteFile(imageOut, res.Image.JPEG, 0644); err != nil {
						return fmt.Errorf("failed to write preview: %w", err)
					}
					out.ImageOut = imageOut
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().IntVar(&sub.Year, "year", 0, "Model year")
	cmd.Flags().IntVar(&sub.Mileage, "mileage", 0, "Odometer reading")
	cmd.Flags().IntVar(&sub.ModelID, "model-id", 0, "Catalog id of the make/model")
	cmd.Flags().StringVar(&imagePath, "image", "", "Optional photo to normalize")
	cmd.Flags().StringVar(&imageOut, "image-out", "", "Write the normalized JPEG here")
	_ = cmd.MarkFlagRequired("year")
	_ = cmd.MarkFlagRequired("model-id")

	return cmd
}
