// Package models defines the canonical domain model for the intelligence
// engine. Every artifact carries the org and entity it was computed for.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// EntityType is the kind of advertising object a metric series belongs to.
// Only known kinds are accepted; no runtime type resolution.
type EntityType string

const (
	EntityCampaign EntityType = "campaign"
	EntityAdSet    EntityType = "ad_set"
	EntityAd       EntityType = "ad"
	EntityAccount  EntityType = "account"
)

// Valid returns true if the entity type is a known kind.
func (t EntityType) Valid() bool {
	switch t {
	case EntityCampaign, EntityAdSet, EntityAd, EntityAccount:
		return true
	default:
		return false
	}
}

// EntityRef identifies the subject an intelligence artifact was computed for.
type EntityRef struct {
	Type EntityType `json:"entity_type" db:"entity_type"`
	ID   string     `json:"entity_id" db:"entity_id"`
}

// Valid returns true if the reference has a known type and a non-empty id.
func (e EntityRef) Valid() bool {
	return e.Type.Valid() && e.ID != ""
}

func (e EntityRef) String() string {
	return string(e.Type) + "/" + e.ID
}

// OrgContext scopes an operation to one tenant. It is passed explicitly
// into every service call; nothing reads tenant state from ambient context.
type OrgContext struct {
	OrgID string `json:"org_id"`
}

// Valid returns true if the context carries a tenant id.
func (o OrgContext) Valid() bool {
	return o.OrgID != ""
}

// Params is a JSONB column holding opaque numeric parameters
// (hyperparameters, fitted coefficients).
type Params map[string]float64

// Value implements driver.Valuer so sqlx can write Params as JSONB.
func (p Params) Value() (driver.Value, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p)
}

// Scan implements sql.Scanner for reading JSONB columns.
func (p *Params) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*p = nil
		return nil
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("cannot scan %T into Params", src)
	}
}

// StringList is a JSON-encoded list column (e.g. model features).
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("cannot scan %T into StringList", src)
	}
}
