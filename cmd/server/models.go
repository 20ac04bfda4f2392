package main

import (
	"time"

	"github.com/ishitaakhatri/claims-iq/rules"
)

// API request and response models.

// ProcessClaimRequest is the request body for claim evaluation. The
// document is base64-encoded; an optional rule list overrides the
// active rule set for this request only.
type ProcessClaimRequest struct {
	Document     string        `json:"document"`
	ContentType  string        `json:"contentType,omitempty"`
	DocumentName string        `json:"documentName"`
	Rules        []*rules.Rule `json:"rules,omitempty"`
}

// CreateRuleRequest is the request body for creating a rule. A rule is
// either field-based (field + operator + value) or expression-based.
type CreateRuleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Field       string `json:"field,omitempty"`
	Operator    string `json:"operator,omitempty"`
	Value       any    `json:"value,omitempty"`
	Weight      int    `json:"weight"`
	Expression  string `json:"expression,omitempty"`
	Active      bool   `json:"active"`
}

// UpdateRuleRequest is the request body for updating a rule. Updates
// carry the full rule shape, so the create request doubles as the
// update payload.
type UpdateRuleRequest = CreateRuleRequest

// RulesListResponse is the response for listing rules.
type RulesListResponse struct {
	Rules []*rules.Rule `json:"rules"`
}

// ErrorResponse is the shape of all error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status      string `json:"status"`
	RulesLoaded int    `json:"rulesLoaded"`
	Errors      int64  `json:"totalErrors"`
	Warnings    int64  `json:"totalWarnings"`
}

func (r *CreateRuleRequest) toRule(id string, now time.Time) *rules.Rule {
	return &rules.Rule{
		ID:          id,
		Name:        r.Name,
		Description: r.Description,
		Field:       r.Field,
		Operator:    rules.Operator(r.Operator),
		Value:       r.Value,
		Weight:      r.Weight,
		Expression:  r.Expression,
		Active:      r.Active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
