package cmd

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Manage migration jobs",
}

type jobRow struct {
	ID                    uint   `json:"ID"`
	VMName                string `json:"vm_name"`
	Status                string `json:"status"`
	Progress              int    `json:"progress"`
	SourceProviderID      uint   `json:"source_provider_id"`
	DestinationProviderID uint   `json:"destination_provider_id"`
	TargetNode            string `json:"target_node"`
}

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Get(daemonURL("/api/jobs"))
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		var jobs []jobRow
		_ = json.NewDecoder(resp.Body).Decode(&jobs)

		if len(jobs) == 0 {
			fmt.Println("no jobs")
			return nil
		}

		fmt.Printf("%-4s %-25s %-10s %-5s %-4s %-4s %s\n",
			"ID", "VM", "STATUS", "PROG", "SRC", "DST", "NODE")
		for _, j := range jobs {
			node := j.TargetNode
			if node == "" {
				node = "-"
			}
			fmt.Printf("%-4d %-25s %-10s %3d%% %-4d %-4d %s\n",
				j.ID, j.VMName, j.Status, j.Progress,
				j.SourceProviderID, j.DestinationProviderID, node)
		}

		return nil
	},
}

var (
	jobSource     uint
	jobDest       uint
	jobTargetNode string
)

var jobCreateCmd = &cobra.Command{
	Use:   "create [vm...]",
	Short: "Create migration jobs for one or more VMs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, _ := json.Marshal(map[string]any{
			"source_provider_id":      jobSource,
			"destination_provider_id": jobDest,
			"vm_names":                args,
			"target_node":             jobTargetNode,
		})

		resp, err := http.Post(daemonURL("/api/jobs/batch"), "application/json", bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		if resp.StatusCode != http.StatusCreated {
			var result map[string]any
			_ = json.NewDecoder(resp.Body).Decode(&result)
			return fmt.Errorf("batch rejected: %v", result["error"])
		}

		var jobs []jobRow
		_ = json.NewDecoder(resp.Body).Decode(&jobs)

		for _, j := range jobs {
			fmt.Printf("job created: id=%d vm=%s\n", j.ID, j.VMName)
		}

		return nil
	},
}

var jobLogsCmd = &cobra.Command{
	Use:   "logs [id]",
	Short: "Print a job's log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Get(daemonURL("/api/jobs/" + args[0] + "/logs"))
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		var lines []struct {
			Seq     int    `json:"seq"`
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&lines)

		for _, line := range lines {
			fmt.Printf("%4d  %s\n", line.Seq, line.Message)
		}

		return nil
	},
}

var jobWatchCmd = &cobra.Command{
	Use:   "watch [id]",
	Short: "Follow a job's live stream until it finishes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Get(daemonURL("/api/jobs/" + args[0] + "/stream"))
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("stream rejected: %s", resp.Status)
		}

		scanner := bufio.NewScanner(resp.Body)
		event := ""
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")

			case strings.HasPrefix(line, "data: "):
				data := strings.TrimPrefix(line, "data: ")
				switch event {
				case "progress":
					fmt.Printf("progress: %s%%\n", data)
				case "done":
					fmt.Printf("done: %s\n", data)
					return nil
				default:
					fmt.Println(data)
				}

			case line == "":
				event = ""
			}
		}

		return scanner.Err()
	},
}

func init() {
	jobCmd.AddCommand(jobListCmd, jobCreateCmd, jobLogsCmd, jobWatchCmd)

	jobCreateCmd.Flags().UintVar(&jobSource, "source", 0, "source provider id")
	jobCreateCmd.Flags().UintVar(&jobDest, "dest", 0, "destination provider id")
	jobCreateCmd.Flags().StringVar(&jobTargetNode, "target-node", "", "destination node (defaults to the first discovered node)")
	_ = jobCreateCmd.MarkFlagRequired("source")
	_ = jobCreateCmd.MarkFlagRequired("dest")

	rootCmd.AddCommand(jobCmd)
}
