package models

import (
	"fmt"
	"strings"
)

// OwnerType is the kind of entity an attachment can belong to.
// Owners are weak references: this module stores and filters by them
// but never loads the owning entity.
type OwnerType string

const (
	OwnerNews    OwnerType = "news"
	OwnerProduct OwnerType = "product"
	OwnerService OwnerType = "service"
	OwnerPost    OwnerType = "post"
	OwnerSetting OwnerType = "setting"
)

var ownerTypes = map[OwnerType]struct{}{
	OwnerNews:    {},
	OwnerProduct: {},
	OwnerService: {},
	OwnerPost:    {},
	OwnerSetting: {},
}

// Valid reports whether t is a known owner kind
func (t OwnerType) Valid() bool {
	_, ok := ownerTypes[t]
	return ok
}

// ParseOwnerType parses an owner kind case-insensitively
func ParseOwnerType(s string) (OwnerType, error) {
	t := OwnerType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown owner type %q", s)
	}
	return t, nil
}

// Owner identifies the entity an attachment is associated to
type Owner struct {
	Type OwnerType `json:"owner_type"`
	ID   uint      `json:"owner_id"`
}

// NewOwner validates and builds an Owner
func NewOwner(ownerType string, id uint) (Owner, error) {
	t, err := ParseOwnerType(ownerType)
	if err != nil {
		return Owner{}, err
	}
	if id == 0 {
		return Owner{}, fmt.Errorf("owner id must be positive")
	}
	return Owner{Type: t, ID: id}, nil
}

// Key returns a stable string key such as "news:42"
func (o Owner) Key() string {
	return fmt.Sprintf("%s:%d", o.Type, o.ID)
}

func (o Owner) String() string {
	return o.Key()
}
