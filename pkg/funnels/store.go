package funnels

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"funnel-health/pkg/models"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type funnelFile struct {
	NextID         int                      `json:"nextId"`
	ByExperienceID map[string]models.Funnel `json:"byExperienceId"`
}

// FileStore keeps funnel definitions in a single JSON file. Writes go through a temporary file
// renamed over the original, so readers never see a half-written file.
type FileStore struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

// NewFileStore creates a store backed by path. The file is created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// Get returns the funnel of experienceID or models.ErrFunnelNotFound.
func (s *FileStore) Get(_ context.Context, experienceID string) (*models.Funnel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.read()
	f, ok := data.ByExperienceID[experienceID]
	if !ok {
		return nil, models.ErrFunnelNotFound
	}
	return &f, nil
}

// Upsert creates or replaces the funnel of f.ExperienceID. Created funnels get a local_<n> id;
// replaced funnels keep their id and creation time.
func (s *FileStore) Upsert(_ context.Context, f models.Funnel) (*models.Funnel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.read()
	now := s.now().UTC()
	if f.Steps == nil {
		f.Steps = []models.Step{}
	}

	if existing, ok := data.ByExperienceID[f.ExperienceID]; ok {
		existing.CompanyID = f.CompanyID
		existing.Steps = f.Steps
		existing.CountingMode = f.CountingMode
		existing.UpdatedAt = now
		f = existing
	} else {
		f.ID = fmt.Sprintf("local_%d", data.NextID)
		data.NextID++
		f.CreatedAt = now
		f.UpdatedAt = now
	}
	data.ByExperienceID[f.ExperienceID] = f

	if err := s.write(data); err != nil {
		return nil, err
	}
	return &f, nil
}

// Delete removes the funnel of experienceID and reports whether one existed.
func (s *FileStore) Delete(_ context.Context, experienceID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.read()
	if _, ok := data.ByExperienceID[experienceID]; !ok {
		return false, nil
	}
	delete(data.ByExperienceID, experienceID)
	if err := s.write(data); err != nil {
		return false, err
	}
	return true, nil
}

// All returns every stored funnel.
func (s *FileStore) All(_ context.Context) ([]models.Funnel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.read()
	out := make([]models.Funnel, 0, len(data.ByExperienceID))
	for _, f := range data.ByExperienceID {
		out = append(out, f)
	}
	sortByExperience(out)
	return out, nil
}

// read treats a missing or corrupt file as an empty store.
func (s *FileStore) read() funnelFile {
	empty := funnelFile{NextID: 1, ByExperienceID: map[string]models.Funnel{}}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).WithField("path", s.path).Warn("Failed reading funnels file.")
		}
		return empty
	}
	var data funnelFile
	if err := json.Unmarshal(raw, &data); err != nil {
		log.WithError(err).WithField("path", s.path).Warn("Invalid funnels file, starting empty.")
		return empty
	}
	if data.NextID < 1 {
		data.NextID = 1
	}
	if data.ByExperienceID == nil {
		data.ByExperienceID = map[string]models.Funnel{}
	}
	return data
}

func (s *FileStore) write(data funnelFile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(err, "create funnels dir")
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode funnels")
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return errors.Wrap(err, "write funnels")
	}
	return errors.Wrap(os.Rename(tmp, s.path), "replace funnels file")
}
