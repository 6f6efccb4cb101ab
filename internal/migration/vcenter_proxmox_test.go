package migration

import (
	"context"
	"testing"
	"vmigrate/internal/model"
	"vmigrate/internal/platform"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	items []model.InventoryItem
	err   error
}

func (c *fakeClient) Discover(ctx context.Context) ([]model.InventoryItem, error) {
	return c.items, c.err
}

func fakeFactory(nodes ...string) platform.Factory {
	return func(p model.Provider) (platform.Client, error) {
		if p.Kind == model.ProviderProxmox {
			items := make([]model.InventoryItem, 0, len(nodes))
			for _, n := range nodes {
				items = append(items, model.InventoryItem{Name: n, Kind: model.ItemNode})
			}
			return &fakeClient{items: items}, nil
		}
		return &fakeClient{}, nil
	}
}

func request() *Request {
	return &Request{
		VMName:      "vm-1",
		Source:      model.Provider{Kind: model.ProviderVCenter},
		Destination: model.Provider{Kind: model.ProviderProxmox},
	}
}

func runAll(t *testing.T, steps []Step) {
	t.Helper()
	for _, step := range steps {
		require.NoError(t, step.Run(context.Background()), step.Name)
	}
}

func TestWeightsSumToOneHundred(t *testing.T) {
	s := NewVCenterProxmox(fakeFactory("pve1"), nil)

	total := 0
	for _, step := range s.Steps(request()) {
		assert.Positive(t, step.Weight, step.Name)
		total += step.Weight
	}
	assert.Equal(t, 100, total)
}

func TestPlanResolvesDefaultTargetNode(t *testing.T) {
	s := NewVCenterProxmox(fakeFactory("pve1", "pve2"), nil)

	req := request()
	var recorded string
	req.SetTargetNode = func(node string) error {
		recorded = node
		return nil
	}

	runAll(t, s.Steps(req))

	assert.Equal(t, "pve1", req.TargetNode, "first discovered node wins")
	assert.Equal(t, "pve1", recorded)
}

func TestPlanKeepsRequestedTargetNode(t *testing.T) {
	s := NewVCenterProxmox(fakeFactory("pve1"), nil)

	req := request()
	req.TargetNode = "pve9"
	var recorded string
	req.SetTargetNode = func(node string) error {
		recorded = node
		return nil
	}

	runAll(t, s.Steps(req))

	assert.Equal(t, "pve9", req.TargetNode)
	assert.Equal(t, "pve9", recorded)
}

func TestPlanFailsWithoutAnyNode(t *testing.T) {
	s := NewVCenterProxmox(fakeFactory(), nil)

	var failed error
	for _, step := range s.Steps(request()) {
		if err := step.Run(context.Background()); err != nil {
			failed = err
			break
		}
	}

	require.Error(t, failed)
	assert.Contains(t, failed.Error(), "no nodes")
}

func TestRegistryDispatch(t *testing.T) {
	r := DefaultRegistry(fakeFactory("pve1"))

	_, ok := r.For(model.ProviderVCenter, model.ProviderProxmox)
	assert.True(t, ok)

	_, ok = r.For(model.ProviderProxmox, model.ProviderVCenter)
	assert.False(t, ok, "reverse direction is not a supported pair")
}
