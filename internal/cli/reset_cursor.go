package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/velia-labs/settler/internal/core/config"
	"github.com/velia-labs/settler/internal/infra/storage/postgres"
)

var resetConfirmed bool

var resetCursorCmd = &cobra.Command{
	Use:   "reset-cursor [chain_id] [block_height]",
	Short: "Force the cursor for a chain to a given block height",
	Long: `Force the cursor for a chain to a given block height, regressions
included. Rewinding replays events; the idempotency store keeps the
replays from moving funds twice.`,
	Args: cobra.ExactArgs(2),
	Run:  runResetCursor,
}

func init() {
	resetCursorCmd.Flags().BoolVar(&resetConfirmed, "yes", false, "confirm the reset")
	rootCmd.AddCommand(resetCursorCmd)
}

func runResetCursor(cmd *cobra.Command, args []string) {
	chainID := args[0]
	height, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		fmt.Printf("Invalid block height: %v\n", err)
		os.Exit(1)
	}

	if !resetConfirmed {
		fmt.Println("Refusing to reset without --yes")
		os.Exit(1)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := postgres.NewCursorRepo(db).Reset(ctx, chainID, height); err != nil {
		slog.Error("Failed to reset cursor", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Successfully reset cursor for %s to block %d\n", chainID, height)
}
