package model

type ItemKind string

const (
	ItemVM   ItemKind = "vm"
	ItemNode ItemKind = "node"
)

// InventoryItem is a discovered VM (source providers) or placement node
// (destination providers). Display attributes are informational only.
// Items live in the in-memory cache and are replaced wholesale on each sync.
type InventoryItem struct {
	ProviderID  uint     `json:"provider_id"`
	Name        string   `json:"name"`
	ExternalID  string   `json:"external_id"`
	Kind        ItemKind `json:"kind"`
	PowerState  string   `json:"power_state,omitempty"`
	CPUCount    int      `json:"cpu_count,omitempty"`
	MemoryBytes int64    `json:"memory_bytes,omitempty"`
}

// SyncSummary reports the outcome of one inventory sync.
type SyncSummary struct {
	ProviderID uint   `json:"provider_id"`
	Kind       string `json:"kind"`
	Items      int    `json:"items"`
}
