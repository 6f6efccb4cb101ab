package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"vmigrate/internal/executor"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "View daemon status",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Get(daemonURL("/status"))
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		var result struct {
			Running []executor.RunningJob `json:"running"`
		}

		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("failed to decode status response: %w", err)
		}

		if len(result.Running) == 0 {
			fmt.Println("no running jobs")
			return nil
		}

		fmt.Printf("%-6s %-25s %s\n", "JOB", "VM", "RUNNING FOR")
		for _, job := range result.Running {
			fmt.Printf("%-6d %-25s %s\n",
				job.JobID, job.VMName, time.Since(job.StartedAt).Round(time.Second))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
