package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/renderguard/renderguard/internal/core/config"
	"github.com/renderguard/renderguard/internal/status"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current error-containment and rendering state",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/status", cfg.Server.Port))
	if err != nil {
		slog.Error("Failed to query status endpoint", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var report status.Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		slog.Error("Failed to decode status response", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "STATE\tENGINE\tERRORS\tCRITICAL\tBREAKER\tRENDERED\tFAILED\tPENDING")
	_, _ = fmt.Fprintf(w, "%s\t%v\t%d\t%v\t%v\t%d\t%d\t%d\n",
		report.State,
		report.EngineReady,
		report.Guard.TotalErrors,
		report.Guard.Critical,
		report.Guard.BreakerTripped,
		report.Render.Rendered,
		report.Render.Failed,
		report.Render.Pending,
	)
	_ = w.Flush()

	if len(report.Guard.RecentErrors) > 0 {
		fmt.Println()
		ew := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
		_, _ = fmt.Fprintln(ew, "TIME\tCONTEXT\tOPERATION\tMESSAGE")
		for _, rec := range report.Guard.RecentErrors {
			_, _ = fmt.Fprintf(ew, "%s\t%s\t%s\t%s\n",
				rec.Timestamp.Format(time.TimeOnly), rec.ContextType, rec.Operation, rec.Message)
		}
		_ = ew.Flush()
	}
}
