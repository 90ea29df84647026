// Package assets manages the IT and OT network asset inventory that
// modifications target.
package assets

import (
	"errors"
	"time"
)

// Kind separates information-technology from operational-technology assets.
type Kind string

const (
	KindIT Kind = "IT"
	KindOT Kind = "OT"
)

// Asset lifecycle statuses.
type AssetStatus string

const (
	AssetActive         AssetStatus = "ACTIVE"
	AssetMaintenance    AssetStatus = "MAINTENANCE"
	AssetDecommissioned AssetStatus = "DECOMMISSIONED"
)

// Asset is one managed piece of network infrastructure.
type Asset struct {
	ID          int64
	Name        string
	Kind        Kind
	Location    string
	Address     string
	Criticality int16
	Status      AssetStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

var (
	// ErrNotFound indicates record missing.
	ErrNotFound = errors.New("assets: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("assets: invalid input")
)
