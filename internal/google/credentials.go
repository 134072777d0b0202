package google

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrInvalidCredentials is returned when a credentials file has no client id.
var ErrInvalidCredentials = errors.New("credentials file has no client_id")

// Credentials is the OAuth client registration read from disk.
type Credentials struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	RedirectURIs []string `json:"redirect_uris"`
	AuthURI      string   `json:"auth_uri,omitempty"`
	TokenURI     string   `json:"token_uri,omitempty"`
}

// RedirectURL returns the first registered redirect URI, or "".
func (c *Credentials) RedirectURL() string {
	if len(c.RedirectURIs) == 0 {
		return ""
	}
	return c.RedirectURIs[0]
}

// LoadCredentials reads an OAuth client file. Both the flat layout and the
// Google Cloud console download (fields nested under "installed" or "web")
// are accepted.
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	creds, err := ParseCredentials(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return creds, nil
}

// ParseCredentials decodes the contents of a credentials file.
func ParseCredentials(data []byte) (*Credentials, error) {
	var file struct {
		Credentials
		Installed *Credentials `json:"installed"`
		Web       *Credentials `json:"web"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}

	creds := &file.Credentials
	switch {
	case file.Installed != nil:
		creds = file.Installed
	case file.Web != nil:
		creds = file.Web
	}

	if creds.ClientID == "" {
		return nil, ErrInvalidCredentials
	}
	return creds, nil
}
