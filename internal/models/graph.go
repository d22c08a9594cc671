// Package models defines the typed domain structures shared by the store,
// the managers, and the external surfaces (CLI, HTTP API, MCP).
package models

import "time"

// DefaultEntityType is used when an entity is created without an explicit type.
const DefaultEntityType = "concept"

// Entity is a named node in the knowledge graph. Identity is per-tenant and
// case-insensitive on Name; the stored casing of the first write is preserved.
type Entity struct {
	Name         string   `json:"name"`
	EntityType   string   `json:"entityType"`
	Observations []string `json:"observations"`
}

// Relation is a directed typed edge between two entities, addressed by entity
// name rather than surrogate id so any casing variant of a name resolves.
type Relation struct {
	From         string `json:"from"`
	To           string `json:"to"`
	RelationType string `json:"relationType"`
}

// KnowledgeGraph is the full (or partial) graph view returned by the query
// engine: entities with their observations plus the relations between them.
type KnowledgeGraph struct {
	Entities  []Entity   `json:"entities"`
	Relations []Relation `json:"relations"`
}

// EntityInput is one item of a CreateEntities request.
type EntityInput struct {
	Name         string   `json:"name"`
	EntityType   string   `json:"entityType,omitempty"`
	Observations []string `json:"observations,omitempty"`
}

// ObservationInput is one item of an AddObservations request.
type ObservationInput struct {
	EntityName string   `json:"entityName"`
	Contents   []string `json:"contents"`
}

// ObservationResult reports the outcome of one AddObservations item. Added
// holds only the contents actually inserted (case-insensitive duplicates are
// skipped). Error is set when the named entity does not exist; a per-item
// error never aborts the rest of the batch.
type ObservationResult struct {
	EntityName string   `json:"entityName"`
	Added      []string `json:"added"`
	Error      string   `json:"error,omitempty"`
}

// ObservationDeletion is one item of a DeleteObservations request.
type ObservationDeletion struct {
	EntityName   string   `json:"entityName"`
	Observations []string `json:"observations"`
}

// DeletionResult reports which observations were actually removed from an
// entity, based on rows affected. An unknown entity yields an empty Deleted
// list, not an error.
type DeletionResult struct {
	EntityName string   `json:"entityName"`
	Deleted    []string `json:"deleted"`
}

// Summary is the cached prose description of a tenant's graph. IsStale is
// computed on read: true when the live entity or observation counts diverge
// from the counts recorded when the summary was saved.
type Summary struct {
	Summary          string    `json:"summary"`
	GeneratedAt      time.Time `json:"generatedAt"`
	EntityCount      int       `json:"entityCount"`
	ObservationCount int       `json:"observationCount"`
	IsStale          bool      `json:"isStale"`
	UserEditCount    int       `json:"userEditCount"`
}

// UserEdit is an observation that was flagged as a user-requested edit,
// joined with its owning entity's name.
type UserEdit struct {
	EntityName  string    `json:"entityName"`
	Observation string    `json:"observation"`
	CreatedAt   time.Time `json:"createdAt"`
}

// GraphStats summarizes a tenant's stored data.
type GraphStats struct {
	EntityCount      int `json:"entity_count"`
	ObservationCount int `json:"observation_count"`
	RelationCount    int `json:"relation_count"`
	UserEditCount    int `json:"user_edit_count"`
	LiveMessageCount int `json:"live_message_count"`
}
