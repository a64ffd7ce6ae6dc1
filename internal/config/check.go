package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Component health values
const (
	Healthy   = "healthy"
	Degraded  = "degraded"
	Unhealthy = "unhealthy"
)

// HealthCheckResult is the outcome of Check
type HealthCheckResult struct {
	Timestamp       time.Time         `json:"timestamp" yaml:"timestamp"`
	OverallHealth   string            `json:"overall_health" yaml:"overall_health"`
	ComponentStatus map[string]string `json:"component_status" yaml:"component_status"`
	Issues          []string          `json:"issues" yaml:"issues"`
	Recommendations []string          `json:"recommendations" yaml:"recommendations"`
}

func (r *HealthCheckResult) set(component, status, issue string) {
	r.ComponentStatus[component] = status
	if issue != "" {
		r.Issues = append(r.Issues, issue)
	}
	switch {
	case status == Unhealthy:
		r.OverallHealth = Unhealthy
	case status == Degraded && r.OverallHealth == Healthy:
		r.OverallHealth = Degraded
	}
}

// Check inspects the local environment the configuration points at: the
// uploads directories, the local archive directory and key material. It
// does not contact the database or cloud providers.
func Check(c *AppConfig) *HealthCheckResult {
	r := &HealthCheckResult{
		Timestamp:       time.Now().UTC(),
		OverallHealth:   Healthy,
		ComponentStatus: make(map[string]string),
		Issues:          []string{},
		Recommendations: []string{},
	}

	if err := c.Validate(); err != nil {
		r.set("configuration", Unhealthy, fmt.Sprintf("configuration validation failed: %v", err))
	} else {
		r.set("configuration", Healthy, "")
	}

	checkAuth(c, r)
	checkUploads(c, r)
	checkArchive(c, r)
	recommend(c, r)
	return r
}

func checkAuth(c *AppConfig, r *HealthCheckResult) {
	if len(c.Auth.JWTSecret) < 16 {
		r.set("auth", Degraded, "auth.jwt_secret is shorter than 16 characters; serve will refuse to start")
		return
	}
	r.set("auth", Healthy, "")
}

func checkUploads(c *AppConfig, r *HealthCheckResult) {
	roots := c.Uploads.Roots
	if c.Uploads.DefaultRoot != "" {
		roots = append([]string{c.Uploads.DefaultRoot}, roots...)
	}
	if len(roots) == 0 {
		r.set("uploads", Healthy, "")
		return
	}

	for _, root := range roots {
		info, err := os.Stat(root)
		if err == nil && info.IsDir() {
			r.set("uploads", Healthy, "")
			return
		}
	}
	r.set("uploads", Degraded, "none of the configured uploads directories exist yet")
}

func checkArchive(c *AppConfig, r *HealthCheckResult) {
	storage := c.Archive.Storage
	if storage.Provider == "local" && storage.Local != nil {
		if err := writable(storage.Local.BasePath); err != nil {
			r.set("archive_storage", Unhealthy, err.Error())
		} else {
			r.set("archive_storage", Healthy, "")
		}
	} else {
		r.set("archive_storage", Healthy, "")
	}

	enc := c.Archive.Encryption
	if !enc.Enabled {
		r.set("encryption", Healthy, "")
		return
	}
	if _, err := enc.Secret(); err != nil {
		r.set("encryption", Unhealthy, fmt.Sprintf("encryption key unavailable: %v", err))
		return
	}
	r.set("encryption", Healthy, "")
}

// writable creates dir if needed and verifies a file can be written there
func writable(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("cannot create archive directory: %w", err)
	}
	marker := filepath.Join(dir, ".permission_test")
	if err := os.WriteFile(marker, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("insufficient write permissions for archive directory: %w", err)
	}
	os.Remove(marker)
	return nil
}

func recommend(c *AppConfig, r *HealthCheckResult) {
	if c.Archive.Storage.Provider != "local" && !c.Archive.Encryption.Enabled {
		r.Recommendations = append(r.Recommendations,
			"Enable archive encryption before storing snapshots off-site")
	}
	if c.Archive.Retention.MaxArchives == 0 && c.Archive.Retention.MaxAge == 0 {
		r.Recommendations = append(r.Recommendations,
			"Configure archive.retention to prevent unlimited storage growth")
	}
	if c.Database.Driver == "sqlite3" && c.Server.Address != "" && len(c.Server.AllowedOrigins) == 0 {
		r.Recommendations = append(r.Recommendations,
			"Set server.allowed_origins to the admin frontend URL")
	}
}
