package platform

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"vmigrate/internal/model"
)

var (
	// ErrUnreachable wraps network-level failures talking to a provider.
	ErrUnreachable = errors.New("provider unreachable")
	// ErrAuthFailed wraps credential rejections from a provider.
	ErrAuthFailed = errors.New("provider authentication failed")
)

// Client discovers the current inventory of one provider: VMs for sources,
// placement nodes for destinations.
type Client interface {
	Discover(ctx context.Context) ([]model.InventoryItem, error)
}

// Factory builds the API client for a provider record. Injected so tests
// can substitute fakes.
type Factory func(provider model.Provider) (Client, error)

// NewClient dispatches on provider kind.
func NewClient(provider model.Provider) (Client, error) {
	switch provider.Kind {
	case model.ProviderVCenter:
		return newVCenterClient(provider), nil
	case model.ProviderProxmox:
		return newProxmoxClient(provider), nil
	default:
		return nil, fmt.Errorf("unsupported provider kind: %s", provider.Kind)
	}
}

func newHTTPClient(verifySSL bool) *http.Client {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: !verifySSL},
	}

	return &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	}
}

func baseURL(apiURL string) string {
	return strings.TrimRight(apiURL, "/")
}
