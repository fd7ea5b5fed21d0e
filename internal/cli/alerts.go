package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/velia-labs/settler/internal/core/config"
	redisclient "github.com/velia-labs/settler/internal/infra/redis"
)

var (
	alertsLimit int64
	alertsAck   bool
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List queued escalation alerts, oldest first",
	Run:   runAlerts,
}

func init() {
	alertsCmd.Flags().Int64Var(&alertsLimit, "limit", 50, "maximum alerts to list")
	alertsCmd.Flags().BoolVar(&alertsAck, "ack", false, "acknowledge and remove the listed alerts")
	rootCmd.AddCommand(alertsCmd)
}

func runAlerts(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Redis.URL == "" {
		slog.Error("No redis configured; the alert queue requires redis")
		os.Exit(1)
	}

	client, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = client.Close()
	}()

	alerts, err := client.PendingAlerts(context.Background(), alertsLimit)
	if err != nil {
		slog.Error("Failed to list alerts", "error", err)
		os.Exit(1)
	}
	if len(alerts) == 0 {
		fmt.Println("no pending alerts")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "CREATED\tCHAIN\tINVOICE\tREASON\tOP KEY")
	for _, a := range alerts {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			a.CreatedAt.Format(time.RFC3339), a.ChainID, a.InvoiceID, a.Reason, a.OpKey)
	}
	_ = w.Flush()

	if alertsAck {
		for _, a := range alerts {
			if err := client.AckAlert(context.Background(), a); err != nil {
				slog.Error("Failed to ack alert", "id", a.ID, "error", err)
				os.Exit(1)
			}
		}
		fmt.Printf("\nacknowledged %d alerts\n", len(alerts))
	}
}
