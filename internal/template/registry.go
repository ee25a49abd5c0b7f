package template

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Status is the lifecycle status of a template version.
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusArchived
}

// ErrImmutableVersion is returned when a registered version id is reused with
// a different body.
var ErrImmutableVersion = errors.New("template version is immutable")

// Version is one registered body of a template.
type Version struct {
	TemplateID        string   `json:"template_id"`
	VersionID         string   `json:"version_id"`
	ContentHash       string   `json:"content_hash"` // hex SHA-256 of Body
	Status            Status   `json:"status"`
	Body              string   `json:"body"`
	ProtectedSections []string `json:"protected_sections,omitempty"`
}

// Registry holds template versions in registration order.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	templates map[string][]Version
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{templates: make(map[string][]Version)}
}

// HashBody returns the content hash of a template body.
func HashBody(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

// Register adds a version, or updates the status of an existing version with
// identical content. Reusing versionID with a different body returns
// ErrImmutableVersion and leaves the registry unchanged.
func (r *Registry) Register(templateID, versionID, body string, protected []string, status Status) (Version, error) {
	if templateID == "" || versionID == "" {
		return Version{}, fmt.Errorf("register template: empty template or version id")
	}
	if status == "" {
		status = StatusActive
	}
	if !status.Valid() {
		return Version{}, fmt.Errorf("register template %s@%s: unknown status %q", templateID, versionID, status)
	}

	v := Version{
		TemplateID:        templateID,
		VersionID:         versionID,
		ContentHash:       HashBody(body),
		Status:            status,
		Body:              body,
		ProtectedSections: slices.Clone(protected),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	versions := r.templates[templateID]
	idx := slices.IndexFunc(versions, func(existing Version) bool {
		return existing.VersionID == versionID
	})
	if idx < 0 {
		r.templates[templateID] = append(versions, v)
		return v, nil
	}

	if versions[idx].ContentHash != v.ContentHash {
		return Version{}, fmt.Errorf("%w: %s@%s", ErrImmutableVersion, templateID, versionID)
	}
	versions[idx].Status = status
	return versions[idx], nil
}

// GetVersion returns a specific version.
func (r *Registry) GetVersion(templateID, versionID string) (Version, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, v := range r.templates[templateID] {
		if v.VersionID == versionID {
			return v, true
		}
	}
	return Version{}, false
}

// GetActiveVersion returns the most recently registered active version.
func (r *Registry) GetActiveVersion(templateID string) (Version, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions := r.templates[templateID]
	for i := len(versions) - 1; i >= 0; i-- {
		if versions[i].Status == StatusActive {
			return versions[i], true
		}
	}
	return Version{}, false
}

// Versions returns every version of a template in registration order.
func (r *Registry) Versions(templateID string) []Version {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.templates[templateID])
}
