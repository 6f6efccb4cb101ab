package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"vmigrate/internal/model"
)

// vcenterClient talks to the vSphere Automation REST API. It opens a session
// with basic auth, lists VMs, and closes the session again.
type vcenterClient struct {
	provider model.Provider
	http     *http.Client
}

func newVCenterClient(provider model.Provider) *vcenterClient {
	return &vcenterClient{
		provider: provider,
		http:     newHTTPClient(provider.VerifySSL),
	}
}

type vcenterVM struct {
	VM         string `json:"vm"`
	Name       string `json:"name"`
	PowerState string `json:"power_state"`
	CPUCount   int    `json:"cpu_count"`
	MemoryMiB  int64  `json:"memory_size_MiB"`
}

func (c *vcenterClient) Discover(ctx context.Context) ([]model.InventoryItem, error) {
	session, err := c.login(ctx)
	if err != nil {
		return nil, err
	}
	defer c.logout(ctx, session)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		baseURL(c.provider.APIURL)+"/rest/vcenter/vm", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("vmware-api-session-id", session)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreachable, c.provider.APIURL, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: vcenter rejected session", ErrAuthFailed)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: vcenter returned %d", ErrUnreachable, resp.StatusCode)
	}

	var payload struct {
		Value []vcenterVM `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode vcenter vm list: %w", err)
	}

	items := make([]model.InventoryItem, 0, len(payload.Value))
	for _, vm := range payload.Value {
		items = append(items, model.InventoryItem{
			ProviderID:  c.provider.ID,
			Name:        vm.Name,
			ExternalID:  vm.VM,
			Kind:        model.ItemVM,
			PowerState:  vm.PowerState,
			CPUCount:    vm.CPUCount,
			MemoryBytes: vm.MemoryMiB * 1024 * 1024,
		})
	}

	return items, nil
}

func (c *vcenterClient) login(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		baseURL(c.provider.APIURL)+"/rest/com/vmware/cis/session", nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.provider.Username, c.provider.Secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUnreachable, c.provider.APIURL, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", fmt.Errorf("%w: vcenter rejected credentials for %s", ErrAuthFailed, c.provider.Username)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: vcenter session endpoint returned %d", ErrUnreachable, resp.StatusCode)
	}

	var payload struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode vcenter session: %w", err)
	}

	return payload.Value, nil
}

func (c *vcenterClient) logout(ctx context.Context, session string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		baseURL(c.provider.APIURL)+"/rest/com/vmware/cis/session", nil)
	if err != nil {
		return
	}
	req.Header.Set("vmware-api-session-id", session)

	if resp, err := c.http.Do(req); err == nil {
		_ = resp.Body.Close()
	}
}
