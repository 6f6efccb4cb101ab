package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderValidate(t *testing.T) {
	valid := Provider{
		Name:     "lab-vc",
		Kind:     ProviderVCenter,
		APIURL:   "https://vc.lab",
		Username: "admin",
		Secret:   "pw",
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(p *Provider)
	}{
		{"missing name", func(p *Provider) { p.Name = "" }},
		{"bad kind", func(p *Provider) { p.Kind = "hyperv" }},
		{"missing url", func(p *Provider) { p.APIURL = "" }},
		{"vcenter without credentials", func(p *Provider) { p.Secret = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			assert.Error(t, p.Validate())
		})
	}
}

func TestProxmoxRequiresToken(t *testing.T) {
	p := Provider{Name: "pve", Kind: ProviderProxmox, APIURL: "https://pve.lab"}
	assert.Error(t, p.Validate())

	p.Username = "root@pam!vmigrate"
	p.Secret = "token-secret"
	assert.NoError(t, p.Validate())
}

func TestJobStatusTerminal(t *testing.T) {
	assert.False(t, JobQueued.Terminal())
	assert.False(t, JobRunning.Terminal())
	assert.True(t, JobCompleted.Terminal())
	assert.True(t, JobFailed.Terminal())
}
