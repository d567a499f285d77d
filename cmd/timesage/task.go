package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/timesage/timesage/internal/auth"
	"github.com/timesage/timesage/internal/gateway"
	"github.com/timesage/timesage/internal/logging"
	"github.com/timesage/timesage/internal/signal"
)

func taskCmd() *cobra.Command {
	var taskType string
	var includeUser bool

	cmd := &cobra.Command{
		Use:   "task [signals.json]",
		Short: "Run a signal-driven AI task from a JSON signal file (or stdin)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
			if err != nil {
				return err
			}
			defer log.Sync()

			var data []byte
			if len(args) == 1 {
				data, err = os.ReadFile(args[0])
			} else {
				data, err = io.ReadAll(os.Stdin)
			}
			if err != nil {
				return fmt.Errorf("read signals: %w", err)
			}

			var signals []signal.Signal
			if err := json.Unmarshal(data, &signals); err != nil {
				return fmt.Errorf("decode signals: %w", err)
			}

			provider := auth.NewKeychainProvider(cfg.Gateway.TokenURL, log)
			gw := gateway.New(cfg.Gateway.Endpoint, provider, gateway.WithLogger(log))

			res := gw.ExecuteTask(cmd.Context(), gateway.TaskRequest{
				TaskType:           signal.TaskType(taskType),
				Signals:            signals,
				IncludeUserContext: includeUser,
			})

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	cmd.Flags().StringVar(&taskType, "type", string(signal.TaskSummarization),
		"task type: summarization, classification, account_selection, split_suggestion")
	cmd.Flags().BoolVar(&includeUser, "user-context", false, "include user profile/preference signals")
	return cmd
}
