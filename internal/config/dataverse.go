package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	DataverseAuthOAuth = "oauth"
	DataverseAuthKey   = "key"
)

type DataverseConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	URL          string `mapstructure:"url"`
	APIVersion   string `mapstructure:"api_version"`
	AuthType     string `mapstructure:"auth_type"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	TenantID     string `mapstructure:"tenant_id"`
	APIKey       string `mapstructure:"api_key"`
}

func (d *DataverseConfig) Normalize() {
	d.URL = strings.TrimRight(strings.TrimSpace(d.URL), "/")
	if d.APIVersion == "" {
		d.APIVersion = "9.2"
	}
	if d.AuthType == "" {
		d.AuthType = DataverseAuthOAuth
	}
}

func (d *DataverseConfig) Validate() error {
	if d.URL == "" {
		return errors.New("url is required")
	}

	switch d.AuthType {
	case DataverseAuthOAuth:
		if d.ClientID == "" || d.ClientSecret == "" || d.TenantID == "" {
			return errors.New("oauth auth type requires client_id, client_secret, and tenant_id")
		}
	case DataverseAuthKey:
		if d.APIKey == "" {
			return errors.New("key auth type requires api_key")
		}
	default:
		return fmt.Errorf("unknown auth type %q", d.AuthType)
	}

	return nil
}

// APIBase возвращает корень Web API, например https://org.crm.dynamics.com/api/data/v9.2
func (d *DataverseConfig) APIBase() string {
	return fmt.Sprintf("%s/api/data/v%s", d.URL, d.APIVersion)
}

func (d *DataverseConfig) TokenURL() string {
	return fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/token", d.TenantID)
}
