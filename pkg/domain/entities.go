// Package domain defines the persisted workshop entities, the document that
// holds them, and the rule evaluation primitives shared by the store and the
// service layer.
package domain

import (
	"encoding/json"
	"strings"
)

// EntityType identifies the type of record stored in the document.
type EntityType string

// Supported entity type identifiers used in Change records and errors.
const (
	EntityClient   EntityType = "client"
	EntityBike     EntityType = "bike"
	EntityService  EntityType = "service"
	EntityReminder EntityType = "reminder"
	// EntityBackup identifies an exported backup document.
	EntityBackup EntityType = "backup"
)

// UsageTier classifies how hard a client rides.
type UsageTier string

// Wire values match the persisted single-letter codes.
const (
	TierCasual   UsageTier = "A"
	TierSport    UsageTier = "B"
	TierProHeavy UsageTier = "C"
)

// Valid reports whether the tier is one of the known codes.
func (t UsageTier) Valid() bool {
	switch t {
	case TierCasual, TierSport, TierProHeavy:
		return true
	}
	return false
}

// ServiceType is the package a service job was sold as.
type ServiceType string

// Service types as persisted.
const (
	ServiceSport  ServiceType = "Sport"
	ServiceExpert ServiceType = "Expert"
	ServiceOther  ServiceType = "Otro"
)

// ReminderStatus tracks client follow-up for a maintenance reminder.
type ReminderStatus string

// Reminder statuses.
const (
	ReminderPending   ReminderStatus = "Pending"
	ReminderContacted ReminderStatus = "Contacted"
	ReminderDismissed ReminderStatus = "Dismissed"
)

// Valid reports whether the status is recognised. Empty is allowed.
func (s ReminderStatus) Valid() bool {
	switch s {
	case "", ReminderPending, ReminderContacted, ReminderDismissed:
		return true
	}
	return false
}

// ItemCategory tags an extra line item on a service.
type ItemCategory string

// Line item categories.
const (
	CategoryPart  ItemCategory = "part"
	CategoryLabor ItemCategory = "labor"
)

// Client is a shop customer. Clients are soft deleted so their history stays
// resolvable.
type Client struct {
	ID        int64     `json:"id"`
	DisplayID string    `json:"displayId,omitempty"`
	Name      string    `json:"name"`
	DNI       string    `json:"dni,omitempty"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email,omitempty"`
	UsageTier UsageTier `json:"usage_tier"`
	IsDeleted bool      `json:"isDeleted,omitempty"`
}

// Bike belongs to a client through ClientID.
type Bike struct {
	ID           int64  `json:"id"`
	ClientID     int64  `json:"client_id"`
	Brand        string `json:"brand"`
	Model        string `json:"model"`
	Transmission string `json:"transmission"`
	Notes        string `json:"notes,omitempty"`
}

// ExtraItem is a priced part or labor line on a service.
type ExtraItem struct {
	ID          string       `json:"id"`
	Description string       `json:"description"`
	Price       float64      `json:"price"`
	Category    ItemCategory `json:"category,omitempty"`
}

// ServiceRecord is one workshop job on a bike.
type ServiceRecord struct {
	ID            int64           `json:"id"`
	BikeID        int64           `json:"bike_id"`
	DateIn        string          `json:"date_in,omitempty"`
	DateOut       string          `json:"date_out,omitempty"`
	Status        ServiceStatus   `json:"status"`
	ServiceType   ServiceType     `json:"service_type"`
	Checklist     map[string]bool `json:"checklist_data,omitempty"`
	PartsUsed     string          `json:"parts_used,omitempty"`
	MechanicNotes string          `json:"mechanic_notes,omitempty"`
	BasePrice     float64         `json:"basePrice"`
	ExtraItems    []ExtraItem     `json:"extraItems"`
	TotalPrice    float64         `json:"totalPrice"`
}

// ComputeTotal returns BasePrice plus the sum of all extra item prices.
func (s ServiceRecord) ComputeTotal() float64 {
	total := s.BasePrice
	for _, item := range s.ExtraItems {
		total += item.Price
	}
	return total
}

// PartItems returns the extra items tagged as parts.
func (s ServiceRecord) PartItems() []ExtraItem {
	var parts []ExtraItem
	for _, item := range s.ExtraItems {
		if item.Category == CategoryPart {
			parts = append(parts, item)
		}
	}
	return parts
}

// Reminder schedules a maintenance follow-up for a bike component. IDs are
// timestamp based with a random fraction and are therefore not integral.
type Reminder struct {
	ID            float64        `json:"id"`
	ClientID      int64          `json:"client_id"`
	BikeID        int64          `json:"bike_id"`
	Component     string         `json:"component"`
	DueDate       string         `json:"due_date"`
	AssignedDate  string         `json:"assigned_date,omitempty"`
	CurrentHealth *int           `json:"current_health,omitempty"`
	Status        ReminderStatus `json:"status,omitempty"`
}

// ComponentKey normalises a component name for case-insensitive matching.
func ComponentKey(component string) string {
	return strings.ToLower(strings.TrimSpace(component))
}

// Action indicates the type of modification performed.
type Action string

// Change actions recorded per transaction.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Change captures one mutation applied inside a transaction. Before and After
// hold JSON snapshots of the record; either may be nil.
type Change struct {
	Entity EntityType      `json:"entity"`
	Action Action          `json:"action"`
	ID     string          `json:"id"`
	Before json.RawMessage `json:"before,omitempty"`
	After  json.RawMessage `json:"after,omitempty"`
}
