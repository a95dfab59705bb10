// Package projects serves sourcing projects: the project list, the project
// wizard submission and the manufacturer matches computed for a project.
package projects

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sourcing-hub/marketplace/internal/listing"
	"github.com/sourcing-hub/marketplace/internal/platform/httpx"
)

// Project statuses accepted by the wizard.
const (
	StatusDraft     = "draft"
	StatusActive    = "active"
	StatusMatching  = "matching"
	StatusCompleted = "completed"
)

// TopMatches is the number of matches returned with a new project.
const TopMatches = 5

// CreateRequest is the project wizard submission. JSON names follow the
// upstream API.
type CreateRequest struct {
	Title           string   `json:"title" validate:"required,min=3,max=120"`
	Description     string   `json:"description,omitempty" validate:"max=2000"`
	ProductCategory string   `json:"productCategory" validate:"required,max=80"`
	Industry        string   `json:"industry,omitempty" validate:"max=80"`
	TargetMarket    string   `json:"targetMarket,omitempty" validate:"max=80"`
	Volume          string   `json:"volume,omitempty" validate:"omitempty,volume"`
	Certifications  []string `json:"requiredCertifications,omitempty" validate:"max=20,dive,required,max=80"`
	Allergens       []string `json:"allergens,omitempty" validate:"max=30,dive,required,max=80"`
	PackagingTypes  []string `json:"packagingTypes,omitempty" validate:"max=20,dive,required,max=80"`
	Budget          float64  `json:"budget,omitempty" validate:"gte=0"`
	Timeline        string   `json:"timeline,omitempty" validate:"omitempty,oneof=asap 1-3-months 3-6-months 6-plus-months"`
	Status          string   `json:"status,omitempty" validate:"omitempty,oneof=draft active"`
}

// Trim normalises whitespace in free-text fields.
func (r CreateRequest) Trim() CreateRequest {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.ProductCategory = strings.TrimSpace(r.ProductCategory)
	r.Industry = strings.TrimSpace(r.Industry)
	r.TargetMarket = strings.TrimSpace(r.TargetMarket)
	r.Volume = strings.TrimSpace(r.Volume)
	r.Timeline = strings.TrimSpace(r.Timeline)
	if r.Status == "" {
		r.Status = StatusActive
	}
	return r
}

// Created is the result of a wizard submission: the stored project and its
// best matches. MatchError is set when the matches could not be loaded.
type Created struct {
	Project    listing.Record      `json:"project"`
	Matches    []listing.Record    `json:"matches"`
	MatchError *listing.FetchError `json:"match_error,omitempty"`
}

func newValidator() *validator.Validate {
	return httpx.MustValidator()
}
