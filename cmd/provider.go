package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
)

var providerCmd = &cobra.Command{
	Use:   "provider",
	Short: "Manage platform providers",
}

var providerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Get(daemonURL("/api/providers"))
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		var providers []struct {
			ID     uint   `json:"ID"`
			Name   string `json:"name"`
			Kind   string `json:"kind"`
			APIURL string `json:"api_url"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&providers)

		if len(providers) == 0 {
			fmt.Println("no providers configured")
			return nil
		}

		fmt.Printf("%-4s %-20s %-10s %s\n", "ID", "NAME", "KIND", "URL")
		for _, p := range providers {
			fmt.Printf("%-4d %-20s %-10s %s\n", p.ID, p.Name, p.Kind, p.APIURL)
		}

		return nil
	},
}

var (
	providerKind     string
	providerURL      string
	providerUsername string
	providerSecret   string
	providerInsecure bool
)

var providerAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Add a provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		verify := !providerInsecure
		payload, _ := json.Marshal(map[string]any{
			"name":       args[0],
			"kind":       providerKind,
			"api_url":    providerURL,
			"username":   providerUsername,
			"secret":     providerSecret,
			"verify_ssl": verify,
		})

		resp, err := http.Post(daemonURL("/api/providers"), "application/json", bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		var result map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&result)

		if resp.StatusCode != http.StatusCreated {
			return fmt.Errorf("provider rejected: %v", result["error"])
		}

		fmt.Printf("provider added: id=%v name=%s kind=%s\n", result["ID"], args[0], providerKind)
		return nil
	},
}

var providerRemoveCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Remove a provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, _ := http.NewRequest(http.MethodDelete, daemonURL("/api/providers/"+args[0]), nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		fmt.Printf("provider %s removed\n", args[0])
		return nil
	},
}

var providerSyncCmd = &cobra.Command{
	Use:   "sync [id]",
	Short: "Refresh a provider's inventory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Post(daemonURL("/api/providers/"+args[0]+"/sync"), "application/json", nil)
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		var result map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&result)

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("sync failed: %v", result["error"])
		}

		fmt.Printf("synced: %v items (%v)\n", result["items"], result["kind"])
		return nil
	},
}

var providerInventoryCmd = &cobra.Command{
	Use:   "inventory [id]",
	Short: "Show a provider's cached inventory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Get(daemonURL("/api/providers/" + args[0] + "/inventory"))
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		var items []struct {
			Name       string `json:"name"`
			ExternalID string `json:"external_id"`
			Kind       string `json:"kind"`
			PowerState string `json:"power_state"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&items)

		if len(items) == 0 {
			fmt.Println("no cached inventory, run 'vmigrate provider sync' first")
			return nil
		}

		fmt.Printf("%-30s %-15s %-6s %s\n", "NAME", "EXTERNAL ID", "KIND", "STATE")
		for _, item := range items {
			fmt.Printf("%-30s %-15s %-6s %s\n", item.Name, item.ExternalID, item.Kind, item.PowerState)
		}

		return nil
	},
}

func init() {
	providerCmd.AddCommand(providerListCmd, providerAddCmd, providerRemoveCmd,
		providerSyncCmd, providerInventoryCmd)

	providerAddCmd.Flags().StringVar(&providerKind, "kind", "", "provider kind (vcenter or proxmox)")
	providerAddCmd.Flags().StringVar(&providerURL, "url", "", "provider API URL")
	providerAddCmd.Flags().StringVar(&providerUsername, "username", "", "username or API token id")
	providerAddCmd.Flags().StringVar(&providerSecret, "secret", "", "password or API token secret")
	providerAddCmd.Flags().BoolVar(&providerInsecure, "insecure", false, "skip TLS verification")
	_ = providerAddCmd.MarkFlagRequired("kind")
	_ = providerAddCmd.MarkFlagRequired("url")

	rootCmd.AddCommand(providerCmd)
}
