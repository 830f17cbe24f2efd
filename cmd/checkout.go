package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/cartpilot-io/cartpilot/internal/agent"
	"github.com/cartpilot-io/cartpilot/internal/browser"
	"github.com/cartpilot-io/cartpilot/internal/observability"
)

// newCheckoutCmd creates and configures the `checkout` command, which runs a
// single checkout directly against a local browser.
func newCheckoutCmd() *cobra.Command {
	checkoutCmd := &cobra.Command{
		Use:   "checkout",
		Short: "Runs one checkout against a storefront and reports the outcome",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their viper keys so command-line values override
			// the config file and environment.
			if err := viper.BindPFlag("checkout.base_url", cmd.Flags().Lookup("url")); err != nil {
				return err
			}
			if err := viper.BindPFlag("checkout.shipping_preference", cmd.Flags().Lookup("preference")); err != nil {
				return err
			}
			return viper.BindPFlag("checkout.artifacts_dir", cmd.Flags().Lookup("artifacts-dir"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg := appCfg

			if err := viper.Unmarshal(cfg); err != nil {
				return fmt.Errorf("failed to re-unmarshal config with flag overrides: %w", err)
			}

			manager := browser.NewManager(cfg.Browser, logger)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				if err := manager.Shutdown(shutdownCtx); err != nil {
					logger.Warn("Error during browser manager shutdown", zap.Error(err))
				}
			}()

			opts := agent.RunOptions{
				BaseURL:            cfg.Checkout.BaseURL,
				ProductID:          viper.GetString("product_id"),
				Query:              viper.GetString("query"),
				ImagePath:          cfg.Checkout.SampleImage,
				ArtifactsDir:       cfg.Checkout.ArtifactsDir,
				ShippingPreference: agent.Preference(cfg.Checkout.ShippingPreference),
			}
			if image := viper.GetString("image"); image != "" {
				opts.ImagePath = image
			}

			logger.Info("Starting checkout run",
				zap.String("url", opts.BaseURL),
				zap.String("product_id", opts.ProductID),
				zap.String("preference", string(opts.ShippingPreference)),
			)

			a := agent.New(manager, cfg.Browser, logger)
			report := a.RunFullCheckout(ctx, opts)

			printReport(report)
			if !report.Success {
				return fmt.Errorf("checkout failed: %s", report.Error)
			}
			return nil
		},
	}

	checkoutCmd.Flags().StringP("url", "u", "", "Storefront URL to check out against. (Overrides config/env)")
	checkoutCmd.Flags().String("product-id", "", "Product id to buy; falls back to the first result when unmatched.")
	checkoutCmd.Flags().StringP("query", "q", "", "Search query to locate the product.")
	checkoutCmd.Flags().String("image", "", "Reference image to upload before searching.")
	checkoutCmd.Flags().String("preference", "", "Shipping preference: fastest, cheapest or best_value. (Overrides config/env)")
	checkoutCmd.Flags().String("artifacts-dir", "", "Directory receiving run screenshots. (Overrides config/env)")

	// Flags without a direct config key.
	_ = viper.BindPFlag("product_id", checkoutCmd.Flags().Lookup("product-id"))
	_ = viper.BindPFlag("query", checkoutCmd.Flags().Lookup("query"))
	_ = viper.BindPFlag("image", checkoutCmd.Flags().Lookup("image"))

	return checkoutCmd
}

func printReport(report *agent.RunReport) {
	if report.Success {
		fmt.Printf("\nCheckout complete. Order reference: %s\n", report.OrderRef)
	} else {
		fmt.Printf("\nCheckout failed at %s: %s\n", report.FinalState, report.Error)
	}
	if report.AppliedCoupon != "" {
		fmt.Printf("Applied coupon: %s\n", report.AppliedCoupon)
	}
	if report.ShippingMethod != "" {
		fmt.Printf("Shipping method: %s\n", report.ShippingMethod)
	}
	if report.MatchedByFallback {
		fmt.Println("Note: requested product was not found; purchased the first listed result.")
	}
	if report.ScreenshotPath != "" {
		fmt.Printf("Screenshot: %s\n", report.ScreenshotPath)
	}
}
