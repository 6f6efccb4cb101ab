package migration

import (
	"context"
	"errors"
	"vmigrate/internal/model"
	"vmigrate/internal/platform"
)

// DataPlane is the contract for the disk transfer operations of a
// vCenter-to-Proxmox migration. The orchestrator sequences these calls but
// does not implement the transfer itself.
type DataPlane interface {
	Export(ctx context.Context, vm model.InventoryItem) error
	Convert(ctx context.Context, vm model.InventoryItem) error
	Upload(ctx context.Context, vm model.InventoryItem, node string) error
	Provision(ctx context.Context, vm model.InventoryItem, node string) error
	Migrate(ctx context.Context, vm model.InventoryItem, node string) error
}

// VCenterProxmox migrates a VM from a vCenter source to a Proxmox
// destination: connectivity checks, plan preparation, then the weighted
// transfer phases.
type VCenterProxmox struct {
	factory platform.Factory
	data    DataPlane
}

func NewVCenterProxmox(factory platform.Factory, data DataPlane) *VCenterProxmox {
	if data == nil {
		data = placeholderDataPlane{}
	}

	return &VCenterProxmox{
		factory: factory,
		data:    data,
	}
}

func (s *VCenterProxmox) Steps(req *Request) []Step {
	// Captured by the connectivity step, consumed by plan preparation when
	// the request names no target node.
	var nodes []model.InventoryItem

	return []Step{
		{
			Name:   "Validating connectivity with vCenter source",
			Weight: 10,
			Run: func(ctx context.Context) error {
				client, err := s.factory(req.Source)
				if err != nil {
					return err
				}
				_, err = client.Discover(ctx)
				return err
			},
		},
		{
			Name:   "Validating connectivity with Proxmox destination",
			Weight: 10,
			Run: func(ctx context.Context) error {
				client, err := s.factory(req.Destination)
				if err != nil {
					return err
				}
				nodes, err = client.Discover(ctx)
				return err
			},
		},
		{
			Name:   "Preparing migration plan",
			Weight: 10,
			Run: func(ctx context.Context) error {
				node := req.TargetNode
				if node == "" {
					if len(nodes) == 0 {
						return errors.New("destination node not specified and Proxmox cluster returned no nodes")
					}
					node = nodes[0].Name
				}

				req.TargetNode = node
				if req.SetTargetNode != nil {
					return req.SetTargetNode(node)
				}
				return nil
			},
		},
		{
			Name:   "Export VM from vCenter as OVA",
			Weight: 20,
			Run: func(ctx context.Context) error {
				return s.data.Export(ctx, req.VM)
			},
		},
		{
			Name:   "Convert disks to qcow2 using qemu-img",
			Weight: 15,
			Run: func(ctx context.Context) error {
				return s.data.Convert(ctx, req.VM)
			},
		},
		{
			Name:   "Upload converted disks to Proxmox storage",
			Weight: 15,
			Run: func(ctx context.Context) error {
				return s.data.Upload(ctx, req.VM, req.TargetNode)
			},
		},
		{
			Name:   "Provision Proxmox VM and attach disks",
			Weight: 10,
			Run: func(ctx context.Context) error {
				return s.data.Provision(ctx, req.VM, req.TargetNode)
			},
		},
		{
			Name:   "Initiate Proxmox live migration",
			Weight: 10,
			Run: func(ctx context.Context) error {
				return s.data.Migrate(ctx, req.VM, req.TargetNode)
			},
		},
	}
}

// placeholderDataPlane stands in until a real transfer implementation is
// attached; manual data transfer steps may still be required.
type placeholderDataPlane struct{}

func (placeholderDataPlane) Export(context.Context, model.InventoryItem) error { return nil }

func (placeholderDataPlane) Convert(context.Context, model.InventoryItem) error { return nil }

func (placeholderDataPlane) Upload(context.Context, model.InventoryItem, string) error {
	return nil
}

func (placeholderDataPlane) Provision(context.Context, model.InventoryItem, string) error {
	return nil
}

func (placeholderDataPlane) Migrate(context.Context, model.InventoryItem, string) error {
	return nil
}
