package analysis

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/otp-analysis/internal/geo"
	"github.com/otp-analysis/pkg/otp/models"
)

// JobKind selects the analysis a job file runs.
type JobKind string

const (
	KindRoute     JobKind = "route"
	KindIsochrone JobKind = "isochrone"
	KindODMatrix  JobKind = "odmatrix"
)

// PointSource is a GeoJSON file of points. CRS must be given explicitly.
type PointSource struct {
	Path    string `yaml:"path" validate:"required"`
	IDField string `yaml:"idField"`
	CRS     string `yaml:"crs" validate:"required"`
}

// Job is one analysis read from a YAML file.
type Job struct {
	Name         string       `yaml:"name"`
	Kind         JobKind      `yaml:"kind" validate:"required,oneof=route isochrone odmatrix"`
	Mode         string       `yaml:"mode"`
	Departure    string       `yaml:"departure" validate:"required"`
	Origins      PointSource  `yaml:"origins" validate:"required"`
	Destinations *PointSource `yaml:"destinations" validate:"required_unless=Kind isochrone"`
	TripName     string       `yaml:"tripName"`
	Breaks       []int        `yaml:"breaks" validate:"omitempty,dive,gt=0"`
	// MaxTravelTimeMinutes enables the catchment pre-filter of odmatrix jobs.
	MaxTravelTimeMinutes *int              `yaml:"maxTravelTimeMinutes" validate:"omitempty,gt=0"`
	Params               map[string]string `yaml:"params"`
	Output               string            `yaml:"output" validate:"required"`

	// baseDir resolves relative paths.
	baseDir string
}

// LoadJob reads and validates a job file. Relative paths inside it are
// resolved against the file's directory.
func LoadJob(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading job file: %w", err)
	}
	job, err := ParseJob(data)
	if err != nil {
		return nil, fmt.Errorf("job file %s: %w", path, err)
	}
	job.baseDir = filepath.Dir(path)
	return job, nil
}

// ParseJob decodes and validates a job document.
func ParseJob(data []byte) (*Job, error) {
	var job Job
	if err := yaml.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decoding yaml: %w", err)
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return &job, nil
}

// Validate checks field constraints and the departure time format.
func (j *Job) Validate() error {
	if err := validator.New().Struct(j); err != nil {
		return fmt.Errorf("validating job: %w", err)
	}
	if _, err := j.DepartureTime(); err != nil {
		return err
	}
	if err := geo.ValidateCRS(j.Origins.CRS); err != nil {
		return fmt.Errorf("origins: %w", err)
	}
	if j.Destinations != nil {
		if err := geo.ValidateCRS(j.Destinations.CRS); err != nil {
			return fmt.Errorf("destinations: %w", err)
		}
	}
	return nil
}

// DepartureTime parses Departure as RFC 3339.
func (j *Job) DepartureTime() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, j.Departure)
	if err != nil {
		return time.Time{}, fmt.Errorf("departure %q: %w", j.Departure, err)
	}
	return t, nil
}

// TravelMode returns the job mode, defaulting to transit plus walking.
func (j *Job) TravelMode() models.Mode {
	if j.Mode == "" {
		return models.ModeTransitWalk
	}
	return models.Mode(j.Mode)
}

// Resolve returns path relative to the job file.
func (j *Job) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || j.baseDir == "" {
		return path
	}
	return filepath.Join(j.baseDir, path)
}

// DisplayName names the job in logs and notifications.
func (j *Job) DisplayName() string {
	if j.Name != "" {
		return j.Name
	}
	return string(j.Kind)
}
