package service

import (
	"context"
	"fmt"

	"note-issuance-engine/internal/core/ports"
)

// StaticCredentialStore resolves HMAC access keys from a fixed set loaded
// at startup.
type StaticCredentialStore struct {
	byKey map[string]ports.Credential
}

// NewStaticCredentialStore indexes creds by access key. Keys must be unique
// and every credential needs a secret and a role.
func NewStaticCredentialStore(creds ...ports.Credential) (*StaticCredentialStore, error) {
	byKey := make(map[string]ports.Credential, len(creds))
	for _, c := range creds {
		if c.AccessKey == "" || c.Secret == "" {
			return nil, fmt.Errorf("credential for account %q: access key and secret are required", c.Account)
		}
		switch c.Role {
		case ports.RoleOperator, ports.RoleGranter:
		default:
			return nil, fmt.Errorf("credential %s: unknown role %q", c.AccessKey, c.Role)
		}
		if _, dup := byKey[c.AccessKey]; dup {
			return nil, fmt.Errorf("duplicate access key %s", c.AccessKey)
		}
		if c.Account == "" {
			c.Account = c.AccessKey
		}
		byKey[c.AccessKey] = c
	}
	return &StaticCredentialStore{byKey: byKey}, nil
}

// Lookup returns the credential for accessKey, or nil if it is unknown.
func (s *StaticCredentialStore) Lookup(_ context.Context, accessKey string) (*ports.Credential, error) {
	c, ok := s.byKey[accessKey]
	if !ok {
		return nil, nil
	}
	return &c, nil
}
