// Package agent defines the agent resource: a named, versioned preset of
// preamble, temperature, model and deployment that chat requests are built
// from.
package agent

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	deployment "github.com/haowjy/meridian-deploy-go"
)

// DefaultTemperature is used when an agent is created without one.
const DefaultTemperature = 0.3

// DefaultVersion is used when an agent is created without a version.
const DefaultVersion = 1

// Agent is a stored chat preset owned by a user.
type Agent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Version     int     `json:"version"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Preamble    *string `json:"preamble"`
	Temperature float64 `json:"temperature"`

	// Model is served by the deployment below.
	Model string `json:"model"`
	// Deployment is the registry name the agent's requests are routed to.
	Deployment string `json:"deployment"`
}

// CreateAgent is the payload for creating an agent.
type CreateAgent struct {
	Name        string   `json:"name"`
	Version     *int     `json:"version,omitempty"`
	Description *string  `json:"description,omitempty"`
	Preamble    *string  `json:"preamble,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Model       string   `json:"model"`
	Deployment  string   `json:"deployment"`
}

// UpdateAgent is a partial update; nil fields are left unchanged.
type UpdateAgent struct {
	Name        *string  `json:"name,omitempty"`
	Version     *int     `json:"version,omitempty"`
	Description *string  `json:"description,omitempty"`
	Preamble    *string  `json:"preamble,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Model       *string  `json:"model,omitempty"`
	Deployment  *string  `json:"deployment,omitempty"`
}

// DeleteAgent is the (empty) payload for deleting an agent.
type DeleteAgent struct{}

// Validate checks the required fields and value ranges.
func (c CreateAgent) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return &deployment.ValidationError{Field: "name", Value: c.Name, Reason: "name is required"}
	}
	if c.Model == "" {
		return &deployment.ValidationError{Field: "model", Value: c.Model, Reason: "model is required"}
	}
	if c.Deployment == "" {
		return &deployment.ValidationError{Field: "deployment", Value: c.Deployment, Reason: "deployment is required"}
	}
	return validateRanges(c.Version, c.Temperature)
}

// Validate checks the fields that are set.
func (u UpdateAgent) Validate() error {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return &deployment.ValidationError{Field: "name", Value: *u.Name, Reason: "name cannot be empty"}
	}
	if u.Model != nil && *u.Model == "" {
		return &deployment.ValidationError{Field: "model", Value: *u.Model, Reason: "model cannot be empty"}
	}
	if u.Deployment != nil && *u.Deployment == "" {
		return &deployment.ValidationError{Field: "deployment", Value: *u.Deployment, Reason: "deployment cannot be empty"}
	}
	return validateRanges(u.Version, u.Temperature)
}

func validateRanges(version *int, temperature *float64) error {
	if version != nil && *version < 1 {
		return &deployment.ValidationError{Field: "version", Value: *version, Reason: "must be at least 1"}
	}
	if temperature != nil && (*temperature < 0.0 || *temperature > 2.0) {
		return &deployment.ValidationError{Field: "temperature", Value: *temperature, Reason: "must be between 0.0 and 2.0"}
	}
	return nil
}

// NewAgent creates an agent owned by userID from a validated payload.
func NewAgent(userID string, c CreateAgent, now time.Time) (*Agent, error) {
	if userID == "" {
		return nil, &deployment.ValidationError{Field: "user_id", Value: userID, Reason: "user id is required"}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	a := &Agent{
		ID:          uuid.NewString(),
		UserID:      userID,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     DefaultVersion,
		Name:        c.Name,
		Description: cloneString(c.Description),
		Preamble:    cloneString(c.Preamble),
		Temperature: DefaultTemperature,
		Model:       c.Model,
		Deployment:  c.Deployment,
	}
	if c.Version != nil {
		a.Version = *c.Version
	}
	if c.Temperature != nil {
		a.Temperature = *c.Temperature
	}
	return a, nil
}

// Apply validates u and merges its set fields into a copy of the agent.
func (a *Agent) Apply(u UpdateAgent, now time.Time) (*Agent, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}

	updated := *a
	updated.Description = cloneString(a.Description)
	updated.Preamble = cloneString(a.Preamble)

	if u.Name != nil {
		updated.Name = *u.Name
	}
	if u.Version != nil {
		updated.Version = *u.Version
	}
	if u.Description != nil {
		updated.Description = cloneString(u.Description)
	}
	if u.Preamble != nil {
		updated.Preamble = cloneString(u.Preamble)
	}
	if u.Temperature != nil {
		updated.Temperature = *u.Temperature
	}
	if u.Model != nil {
		updated.Model = *u.Model
	}
	if u.Deployment != nil {
		updated.Deployment = *u.Deployment
	}
	updated.UpdatedAt = now
	return &updated, nil
}

// ChatParams returns the generation parameters the agent contributes to a request.
func (a *Agent) ChatParams() deployment.ChatParams {
	model := a.Model
	temperature := a.Temperature
	return deployment.ChatParams{
		Model:       &model,
		Temperature: &temperature,
		Preamble:    cloneString(a.Preamble),
	}
}

// NewChatRequest builds a request for message with the agent's parameters.
func (a *Agent) NewChatRequest(message string, history []deployment.ChatMessage) *deployment.ChatRequest {
	return deployment.NewChatRequest(message, history, a.ChatParams())
}

// Resolve returns the adapter serving the agent. The deployment must be
// registered and available, and must list the agent's model.
func (a *Agent) Resolve(reg *deployment.Registry) (deployment.Adapter, error) {
	adapter, err := reg.Resolve(a.Deployment)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(adapter.ListModels(), a.Model) {
		return nil, &deployment.ValidationError{
			Field:  "model",
			Value:  a.Model,
			Reason: fmt.Sprintf("not served by deployment %s", a.Deployment),
		}
	}
	return adapter, nil
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
