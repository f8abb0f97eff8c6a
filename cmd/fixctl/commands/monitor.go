package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func monitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Stream FIX session state-change events",
		Long:  "Connects to the fixengine daemon and streams logon/logout events until interrupted (Ctrl+C).",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, client.baseURL+"/events", nil)
			if err != nil {
				return fmt.Errorf("build request: %w", err)
			}

			resp, err := client.hc.Do(req)
			if err != nil {
				return fmt.Errorf("watch events: %w", err)
			}
			defer resp.Body.Close()

			dec := json.NewDecoder(resp.Body)
			for {
				var event eventView
				if err := dec.Decode(&event); err != nil {
					if errors.Is(err, context.Canceled) {
						return nil
					}
					if ctx.Err() != nil {
						return nil
					}
					return fmt.Errorf("decode event: %w", err)
				}

				out, fmtErr := formatEvent(event, outputFormat)
				if fmtErr != nil {
					return fmt.Errorf("format event: %w", fmtErr)
				}
				fmt.Println(out)
			}
		},
	}

	return cmd
}
