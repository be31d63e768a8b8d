package cli

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/renderguard/renderguard/internal/core/config"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the critical state and zero all error counters",
	Run:   runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(fmt.Sprintf("http://127.0.0.1:%d/reset", cfg.Server.Port), "application/json", nil)
	if err != nil {
		slog.Error("Failed to call reset endpoint", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		slog.Error("Reset rejected", "status", resp.StatusCode)
		os.Exit(1)
	}
	slog.Info("Error accounting reset")
}
