package domain

import (
	"encoding/json"
	"strings"
)

// ServiceStatus is the set of workshop job states. Legacy spellings are folded
// into the canonical values when a document is decoded; unrecognised text is
// kept verbatim so it survives the next save.
type ServiceStatus string

// Canonical service statuses.
const (
	StatusIntake     ServiceStatus = "Intake"
	StatusInProgress ServiceStatus = "In Progress"
	StatusPending    ServiceStatus = "Pending"
	StatusCompleted  ServiceStatus = "Completed"
	StatusDelivered  ServiceStatus = "Delivered"
)

// legacyStatuses maps lowercase historical spellings onto canonical values.
var legacyStatuses = map[string]ServiceStatus{
	"intake":      StatusIntake,
	"ingresado":   StatusIntake,
	"recibido":    StatusIntake,
	"in progress": StatusInProgress,
	"in_progress": StatusInProgress,
	"en proceso":  StatusInProgress,
	"en progreso": StatusInProgress,
	"pending":     StatusPending,
	"pendiente":   StatusPending,
	"completed":   StatusCompleted,
	"finalizado":  StatusCompleted,
	"terminado":   StatusCompleted,
	"delivered":   StatusDelivered,
	"entregado":   StatusDelivered,
}

// ParseServiceStatus folds any known spelling into a canonical status. The
// second return value is false when the input was not recognised, in which
// case StatusPending is returned.
func ParseServiceStatus(raw string) (ServiceStatus, bool) {
	status, ok := legacyStatuses[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return StatusPending, false
	}
	return status, true
}

// IsClosed reports whether the job has been completed or handed back.
func (s ServiceStatus) IsClosed() bool {
	return s == StatusCompleted || s == StatusDelivered
}

// IsActive reports whether the job is still on the workshop floor.
func (s ServiceStatus) IsActive() bool {
	return !s.IsClosed()
}

// Valid reports whether s is one of the canonical values.
func (s ServiceStatus) Valid() bool {
	switch s {
	case StatusIntake, StatusInProgress, StatusPending, StatusCompleted, StatusDelivered:
		return true
	}
	return false
}

// IsUnknown reports whether s holds unrecognised legacy text.
func (s ServiceStatus) IsUnknown() bool {
	return !s.Valid()
}

// UnmarshalJSON accepts canonical and legacy spellings. An empty status
// decodes as Pending and any other unrecognised text is kept as is.
func (s *ServiceStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	status, ok := ParseServiceStatus(raw)
	if !ok && strings.TrimSpace(raw) != "" {
		status = ServiceStatus(raw)
	}
	*s = status
	return nil
}
