// Package memory provides in-memory implementations of the capture stores
// for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/JakeFAU/webcapture/internal/capture"
)

// Store implements capture.Store with maps guarded by a single mutex.
type Store struct {
	mu          sync.RWMutex
	websites    map[string]capture.Website
	domains     map[string]string
	jobs        map[string]capture.Job
	pages       map[string]capture.Page
	screenshots map[string]capture.Screenshot
	profiles    map[string]capture.DeviceProfile
}

var _ capture.Store = (*Store)(nil)

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		websites:    make(map[string]capture.Website),
		domains:     make(map[string]string),
		jobs:        make(map[string]capture.Job),
		pages:       make(map[string]capture.Page),
		screenshots: make(map[string]capture.Screenshot),
		profiles:    make(map[string]capture.DeviceProfile),
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

// GetOrCreateWebsite returns the website for site.Domain, inserting site when
// the domain is new.
func (s *Store) GetOrCreateWebsite(_ context.Context, site capture.Website) (capture.Website, error) {
	if strings.TrimSpace(site.Domain) == "" {
		return capture.Website{}, fmt.Errorf("website domain is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.domains[site.Domain]; ok {
		return s.websites[id], nil
	}
	if _, exists := s.websites[site.ID]; exists {
		return capture.Website{}, fmt.Errorf("website %s already exists", site.ID)
	}
	s.websites[site.ID] = site
	s.domains[site.Domain] = site.ID
	return site, nil
}

// GetWebsite fetches a website by ID.
func (s *Store) GetWebsite(_ context.Context, id string) (capture.Website, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	site, ok := s.websites[id]
	if !ok {
		return capture.Website{}, fmt.Errorf("website %s: %w", id, capture.ErrNotFound)
	}
	return site, nil
}

// DeleteWebsite removes a website. Tests use it to simulate a parent row
// disappearing under a queued job.
func (s *Store) DeleteWebsite(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if site, ok := s.websites[id]; ok {
		delete(s.domains, site.Domain)
		delete(s.websites, id)
	}
}

// GetDeviceProfileByName returns the stored profile with exactly name.
func (s *Store) GetDeviceProfileByName(_ context.Context, name string) (capture.DeviceProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.profiles {
		if p.Name == name {
			return p, nil
		}
	}
	return capture.DeviceProfile{}, fmt.Errorf("device profile %q: %w", name, capture.ErrNotFound)
}

// ListDeviceProfiles returns profiles ordered by name.
func (s *Store) ListDeviceProfiles(_ context.Context, defaultsOnly bool) ([]capture.DeviceProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]capture.DeviceProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		if defaultsOnly && !p.IsDefault {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// CreateDeviceProfile stores a profile. Names are unique.
func (s *Store) CreateDeviceProfile(_ context.Context, profile capture.DeviceProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.profiles[profile.ID]; exists {
		return fmt.Errorf("device profile %s already exists", profile.ID)
	}
	for _, p := range s.profiles {
		if p.Name == profile.Name {
			return fmt.Errorf("device profile %q: %w", profile.Name, capture.ErrConflict)
		}
	}
	s.profiles[profile.ID] = profile
	return nil
}
