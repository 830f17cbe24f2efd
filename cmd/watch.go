package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cartpilot-io/cartpilot/internal/observability"
	"github.com/cartpilot-io/cartpilot/internal/poller"
)

// consoleObserver renders job updates to stdout as they arrive.
type consoleObserver struct{}

func (consoleObserver) LogLine(line string) {
	fmt.Printf("  %s\n", line)
}

func (consoleObserver) ProgressChanged(pct int) {
	fmt.Printf("[%3d%%]\n", pct)
}

// newWatchCmd creates and configures the `watch` command: the client side of
// the job protocol. Without arguments it starts a new checkout on the
// service and follows it; with a job id it follows an existing job.
func newWatchCmd() *cobra.Command {
	watchCmd := &cobra.Command{
		Use:   "watch [job-id]",
		Short: "Starts a checkout on the job service and follows it to completion",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("poller.server_url", cmd.Flags().Lookup("server")); err != nil {
				return err
			}
			return viper.BindPFlag("checkout.base_url", cmd.Flags().Lookup("url"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg := appCfg

			if err := viper.Unmarshal(cfg); err != nil {
				return fmt.Errorf("failed to re-unmarshal config with flag overrides: %w", err)
			}

			client := poller.NewHTTPClient(cfg.Poller.ServerURL, logger)
			p := poller.New(client, cfg.Poller, logger, poller.WithObserver(consoleObserver{}))

			var report poller.StatusReport
			var err error
			if len(args) == 1 {
				report, err = p.Wait(ctx, args[0])
			} else {
				report, err = p.Run(ctx, poller.CheckoutRequest{
					CheckoutURL:        cfg.Checkout.BaseURL,
					ProductID:          viper.GetString("watch_product_id"),
					ProductName:        viper.GetString("watch_query"),
					ShippingPreference: cfg.Checkout.ShippingPreference,
				})
			}

			if errors.Is(err, poller.ErrPollTimeout) {
				// The job keeps running on the service; only our watch ends.
				fmt.Println("\nGave up waiting; the job is still running on the service.")
				return err
			}
			if err != nil {
				return err
			}

			if report.Succeeded() {
				fmt.Println("\nCheckout completed successfully.")
				return nil
			}
			return fmt.Errorf("checkout failed: %s", report.Error)
		},
	}

	watchCmd.Flags().StringP("server", "s", "", "Job service base URL. (Overrides config/env)")
	watchCmd.Flags().StringP("url", "u", "", "Storefront URL to check out against. (Overrides config/env)")
	watchCmd.Flags().String("product-id", "", "Product id to buy.")
	watchCmd.Flags().StringP("query", "q", "", "Search query to locate the product.")

	_ = viper.BindPFlag("watch_product_id", watchCmd.Flags().Lookup("product-id"))
	_ = viper.BindPFlag("watch_query", watchCmd.Flags().Lookup("query"))

	return watchCmd
}
