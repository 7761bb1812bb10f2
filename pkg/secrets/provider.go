package secrets

import "context"

// Provider defines a generic secrets manager interface.
// Concrete implementations (AWS, env, etc.) can satisfy this.
type Provider interface {
	// GetSecret retrieves a secret by name and returns it as a key-value map.
	GetSecret(ctx context.Context, name string) (map[string]string, error)
}

// StaticProvider serves secrets from memory. Useful for local runs and tests.
type StaticProvider map[string]map[string]string

// GetSecret returns a copy of the named secret.
func (p StaticProvider) GetSecret(_ context.Context, name string) (map[string]string, error) {
	s, ok := p[name]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	out := make(map[string]string, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out, nil
}

// NotFoundError reports a missing secret.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string { return "secret not found: " + e.Name }
