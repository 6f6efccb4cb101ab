package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"vmigrate/internal/model"
)

// proxmoxClient talks to the Proxmox VE API using an API token. The token id
// lives in the provider's username field, the secret in its secret field.
type proxmoxClient struct {
	provider model.Provider
	http     *http.Client
}

func newProxmoxClient(provider model.Provider) *proxmoxClient {
	return &proxmoxClient{
		provider: provider,
		http:     newHTTPClient(provider.VerifySSL),
	}
}

type proxmoxNode struct {
	Node   string `json:"node"`
	Status string `json:"status"`
	MaxCPU int    `json:"maxcpu"`
	MaxMem int64  `json:"maxmem"`
}

func (c *proxmoxClient) Discover(ctx context.Context) ([]model.InventoryItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		baseURL(c.provider.APIURL)+"/api2/json/nodes", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization",
		fmt.Sprintf("PVEAPIToken=%s=%s", c.provider.Username, c.provider.Secret))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreachable, c.provider.APIURL, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: proxmox rejected token %s", ErrAuthFailed, c.provider.Username)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: proxmox returned %d", ErrUnreachable, resp.StatusCode)
	}

	var payload struct {
		Data []proxmoxNode `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode proxmox node list: %w", err)
	}

	items := make([]model.InventoryItem, 0, len(payload.Data))
	for _, node := range payload.Data {
		if node.Node == "" {
			continue
		}

		items = append(items, model.InventoryItem{
			ProviderID:  c.provider.ID,
			Name:        node.Node,
			ExternalID:  node.Node,
			Kind:        model.ItemNode,
			PowerState:  node.Status,
			CPUCount:    node.MaxCPU,
			MemoryBytes: node.MaxMem,
		})
	}

	return items, nil
}
