package domain

// SchemaVersion is the document layout produced by the current migration set.
const SchemaVersion = 2

// Document is the whole persisted dataset. It is always read and written as a
// unit.
type Document struct {
	SchemaVersion int   `json:"schemaVersion"`
	Revision      int64 `json:"revision"`
	// Epoch identifies one lineage of the document. It is assigned when a
	// document is created, seeded or imported and never changes otherwise.
	Epoch     string          `json:"epoch,omitempty"`
	Clients   []Client        `json:"clients"`
	Bikes     []Bike          `json:"bikes"`
	Services  []ServiceRecord `json:"services"`
	Reminders []Reminder      `json:"reminders"`
}

// Normalize replaces nil collections with empty ones and fills per-record
// defaults so the encoded form never carries nulls.
func (d Document) Normalize() Document {
	if d.Clients == nil {
		d.Clients = []Client{}
	}
	if d.Bikes == nil {
		d.Bikes = []Bike{}
	}
	if d.Services == nil {
		d.Services = []ServiceRecord{}
	}
	if d.Reminders == nil {
		d.Reminders = []Reminder{}
	}
	for i := range d.Services {
		if d.Services[i].ExtraItems == nil {
			d.Services[i].ExtraItems = []ExtraItem{}
		}
	}
	return d
}

// Clone returns a deep copy safe to mutate independently.
func (d Document) Clone() Document {
	out := Document{
		SchemaVersion: d.SchemaVersion,
		Revision:      d.Revision,
		Epoch:         d.Epoch,
		Clients:       append([]Client(nil), d.Clients...),
		Bikes:         append([]Bike(nil), d.Bikes...),
		Services:      make([]ServiceRecord, len(d.Services)),
		Reminders:     make([]Reminder, len(d.Reminders)),
	}
	for i, svc := range d.Services {
		out.Services[i] = CloneService(svc)
	}
	for i, r := range d.Reminders {
		out.Reminders[i] = CloneReminder(r)
	}
	return out.Normalize()
}

// CloneService deep copies the map and slice fields of a service.
func CloneService(s ServiceRecord) ServiceRecord {
	cp := s
	if s.Checklist != nil {
		cp.Checklist = make(map[string]bool, len(s.Checklist))
		for k, v := range s.Checklist {
			cp.Checklist[k] = v
		}
	}
	cp.ExtraItems = append([]ExtraItem(nil), s.ExtraItems...)
	if cp.ExtraItems == nil {
		cp.ExtraItems = []ExtraItem{}
	}
	return cp
}

// CloneReminder copies the optional health pointer.
func CloneReminder(r Reminder) Reminder {
	cp := r
	if r.CurrentHealth != nil {
		h := *r.CurrentHealth
		cp.CurrentHealth = &h
	}
	return cp
}

// MigrationReport describes what the migration engine changed while opening
// or importing a document.
type MigrationReport struct {
	FromVersion       int             `json:"from_version"`
	ToVersion         int             `json:"to_version"`
	Applied           []string        `json:"applied,omitempty"`
	ServiceIDs        map[int64]int64 `json:"service_ids,omitempty"`
	RemindersRemoved  int             `json:"reminders_removed"`
	DisplayIDsChanged int             `json:"display_ids_changed"`
	// ReloadRequired tells consumers that cached ids are no longer valid.
	ReloadRequired bool `json:"reload_required"`
}

// Changed reports whether the migrated document differs from its input.
func (r MigrationReport) Changed() bool {
	return r.FromVersion != r.ToVersion || r.ReloadRequired || r.RemindersRemoved > 0 || r.DisplayIDsChanged > 0
}
