package model

import (
	"fmt"

	"gorm.io/gorm"
)

type ProviderKind string

const (
	ProviderVCenter ProviderKind = "vcenter"
	ProviderProxmox ProviderKind = "proxmox"
)

func (k ProviderKind) Valid() bool {
	return k == ProviderVCenter || k == ProviderProxmox
}

// Provider is a configured connection to a virtualization platform.
// vCenter providers act as migration sources (VM inventory), Proxmox
// providers as destinations (placement nodes).
type Provider struct {
	gorm.Model
	Name      string       `gorm:"not null" json:"name"`
	Kind      ProviderKind `gorm:"not null" json:"kind"`
	APIURL    string       `gorm:"not null" json:"api_url"`
	Username  string       `json:"username"`
	Secret    string       `json:"-"`
	VerifySSL bool         `gorm:"default:true" json:"verify_ssl"`
}

// Validate checks the fields each provider kind requires. vCenter needs
// username/password credentials; Proxmox needs an API token id and secret
// carried in the same two fields.
func (p *Provider) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("provider name is required")
	}
	if !p.Kind.Valid() {
		return fmt.Errorf("unsupported provider kind: %s", p.Kind)
	}
	if p.APIURL == "" {
		return fmt.Errorf("provider api_url is required")
	}

	switch p.Kind {
	case ProviderVCenter:
		if p.Username == "" || p.Secret == "" {
			return fmt.Errorf("vcenter provider requires username and secret")
		}
	case ProviderProxmox:
		if p.Username == "" || p.Secret == "" {
			return fmt.Errorf("proxmox provider requires token id and secret")
		}
	}

	return nil
}
