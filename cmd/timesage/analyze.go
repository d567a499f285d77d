package cli

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/timesage/timesage/internal/auth"
	"github.com/timesage/timesage/internal/gateway"
	"github.com/timesage/timesage/internal/logging"
)

func analyzeCmd() *cobra.Command {
	var appName, windowTitle string

	cmd := &cobra.Command{
		Use:   "analyze <screenshot.png>",
		Short: "Describe a screenshot with the remote model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
			if err != nil {
				return err
			}
			defer log.Sync()

			provider := auth.NewKeychainProvider(cfg.Gateway.TokenURL, log)
			gw := gateway.New(cfg.Gateway.Endpoint, provider, gateway.WithLogger(log))

			res := gw.AnalyzeScreenshot(cmd.Context(), gateway.AnalyzeRequest{
				Path:        args[0],
				AppName:     appName,
				WindowTitle: windowTitle,
			})

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	cmd.Flags().StringVar(&appName, "app", "", "application name for context and fallback")
	cmd.Flags().StringVar(&windowTitle, "title", "", "window title for context and fallback")
	return cmd
}
