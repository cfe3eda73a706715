package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/canvasync/canvasync/internal/gateway"
	"github.com/canvasync/canvasync/internal/model"
)

// The sync and watch commands run the engine against a fixture-backed
// assignment source: the platform bindings for a real remote API and a
// real device calendar live outside this module, so the CLI's job is to
// exercise and observe the engine, not to talk to a phone.

// fixtureFile is the YAML shape of an assignment fixture.
type fixtureFile struct {
	Courses     []fixtureCourse     `yaml:"courses"`
	Assignments []fixtureAssignment `yaml:"assignments"`
}

type fixtureCourse struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type fixtureAssignment struct {
	ID          string     `yaml:"id"`
	CourseID    string     `yaml:"course_id"`
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	DueAt       *time.Time `yaml:"due_at"`
	UpdatedAt   *time.Time `yaml:"updated_at"`
	Points      *float64   `yaml:"points"`
}

// fixtureSource serves assignments parsed from a fixture file.
type fixtureSource struct {
	assignments []model.Assignment
}

// ListAssignments implements gateway.AssignmentSource.
func (s *fixtureSource) ListAssignments(ctx context.Context, courseIDs []string) ([]model.Assignment, error) {
	out := make([]model.Assignment, len(s.assignments))
	copy(out, s.assignments)
	return out, nil
}

// loadFixture parses a fixture file into an assignment source and the
// courseID-to-name map.
func loadFixture(path string) (gateway.AssignmentSource, map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()

	var fixture fixtureFile
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&fixture); err != nil {
		return nil, nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}

	names := make(map[string]string, len(fixture.Courses))
	for _, c := range fixture.Courses {
		names[c.ID] = c.Name
	}

	assignments := make([]model.Assignment, 0, len(fixture.Assignments))
	for _, fa := range fixture.Assignments {
		if fa.ID == "" {
			return nil, nil, fmt.Errorf("fixture %s: assignment without id", path)
		}
		assignments = append(assignments, model.Assignment{
			ID:             fa.ID,
			CourseID:       fa.CourseID,
			Name:           fa.Name,
			Description:    fa.Description,
			DueAt:          fa.DueAt,
			UpdatedAt:      fa.UpdatedAt,
			PointsPossible: fa.Points,
		})
	}

	return &fixtureSource{assignments: assignments}, names, nil
}
