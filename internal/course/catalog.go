// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

package course

import (
	"fmt"
	"sort"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/viewguard/viewguard/internal/models"
)

// Catalog is the read-only course definition set loaded at startup.
type Catalog struct {
	byID  map[string]*models.Course
	order []string
}

// LoadCatalog reads the course catalog from a YAML file of the shape:
//
//	courses:
//	  - id: golang-101
//	    title: Go Fundamentals
//	    parts:
//	      - type: video
//	        title: Intro
//	        url: https://cdn.example.com/intro.mp4
func LoadCatalog(path string) (*Catalog, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}

	var courses []models.Course
	if err := k.UnmarshalWithConf("courses", &courses, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("unmarshal catalog: %w", err)
	}
	return NewCatalog(courses)
}

// NewCatalog indexes a course list, rejecting duplicates and courses
// without units.
func NewCatalog(courses []models.Course) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]*models.Course, len(courses))}
	for i := range courses {
		crs := &courses[i]
		if crs.ID == "" {
			return nil, fmt.Errorf("catalog: course %d has no id", i)
		}
		if _, dup := c.byID[crs.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate course id %s", crs.ID)
		}
		if len(crs.Units) == 0 {
			return nil, fmt.Errorf("catalog: course %s has no units", crs.ID)
		}
		for j, unit := range crs.Units {
			switch unit.Type {
			case models.UnitTypeVideo, models.UnitTypeQuiz:
			default:
				return nil, fmt.Errorf("catalog: course %s unit %d has unknown type %q", crs.ID, j, unit.Type)
			}
		}
		c.byID[crs.ID] = crs
		c.order = append(c.order, crs.ID)
	}
	return c, nil
}

// Get returns the course definition, or nil when unknown.
func (c *Catalog) Get(id string) *models.Course {
	return c.byID[id]
}

// ViewableCourses returns the courses the employee may open now, in
// catalog order.
func (c *Catalog) ViewableCourses(employeeID string, isAdmin bool, now time.Time) []*models.Course {
	out := make([]*models.Course, 0, len(c.order))
	for _, id := range c.order {
		crs := c.byID[id]
		if crs.ViewableBy(employeeID, isAdmin, now) {
			out = append(out, crs)
		}
	}
	return out
}

// IDs returns all course IDs sorted lexically. Intended for admin
// listings where catalog order is irrelevant.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	sort.Strings(out)
	return out
}

// Len returns the number of courses in the catalog.
func (c *Catalog) Len() int { return len(c.order) }
