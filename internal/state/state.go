package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Registration is the last known notification registration for a project.
type Registration struct {
	ProjectID      string    `json:"project_id"`
	PushToken      string    `json:"push_token,omitempty"`
	SecondaryToken string    `json:"secondary_token,omitempty"`
	Permission     string    `json:"permission"`
	UpdatedAt      time.Time `json:"updated_at"`
}

var mu sync.Mutex

const stateFileName = "pushhand_state.json"

// FilePath returns the state file location: PUSHHAND_STATE_DIR, then the
// user cache directory, then the working directory.
func FilePath() string {
	if dir := os.Getenv("PUSHHAND_STATE_DIR"); dir != "" {
		return filepath.Join(dir, stateFileName)
	}
	if cache, err := os.UserCacheDir(); err == nil {
		return filepath.Join(cache, "pushhand", stateFileName)
	}
	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, stateFileName)
	}
	return filepath.Join(os.TempDir(), stateFileName)
}

// loadAllUnlocked reads the state file. Caller must hold mu.
func loadAllUnlocked() (map[string]Registration, error) {
	data, err := os.ReadFile(FilePath())
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]Registration), nil
		}
		return nil, fmt.Errorf("load state: %w", err)
	}
	out := make(map[string]Registration)
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return out, nil
}

// saveAllUnlocked writes the state file. Caller must hold mu.
func saveAllUnlocked(m map[string]Registration) error {
	p := FilePath()
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("mkdir state dir: %w", err)
	}
	if err := os.WriteFile(p, b, 0o600); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}

// SaveRegistration persists r keyed by project. The whole read-modify-write
// cycle runs under the package mutex.
func SaveRegistration(r Registration) error {
	if r.ProjectID == "" {
		return fmt.Errorf("save registration: empty project id")
	}
	mu.Lock()
	defer mu.Unlock()
	m, err := loadAllUnlocked()
	if err != nil {
		return err
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now().UTC()
	}
	m[r.ProjectID] = r
	return saveAllUnlocked(m)
}

// GetRegistration looks up the registration for a project.
func GetRegistration(projectID string) (Registration, bool, error) {
	mu.Lock()
	defer mu.Unlock()
	m, err := loadAllUnlocked()
	if err != nil {
		return Registration{}, false, err
	}
	r, ok := m[projectID]
	return r, ok, nil
}

// RemoveRegistration forgets a project's registration.
func RemoveRegistration(projectID string) error {
	mu.Lock()
	defer mu.Unlock()
	m, err := loadAllUnlocked()
	if err != nil {
		return err
	}
	delete(m, projectID)
	return saveAllUnlocked(m)
}

// GetAllRegistrations returns every persisted registration.
func GetAllRegistrations() (map[string]Registration, error) {
	mu.Lock()
	defer mu.Unlock()
	return loadAllUnlocked()
}
