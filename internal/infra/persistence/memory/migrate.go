package memory

import (
	"sort"
	"strconv"

	"github.com/google/uuid"

	"probikes/pkg/domain"
)

// NewEpoch returns a fresh document epoch.
func NewEpoch() string {
	return uuid.NewString()
}

// LegacyServiceIDThreshold is the smallest id considered timestamp derived.
// Service ids created before sequential numbering are Unix milliseconds.
const LegacyServiceIDThreshold int64 = 1_000_000

type migrationStep struct {
	version int
	name    string
	apply   func(doc *Document, report *MigrationReport)
}

// migrationSteps run in order for every document whose schema version is below
// the step's version.
var migrationSteps = []migrationStep{
	{version: 1, name: "sequential_service_ids", apply: renumberServiceIDs},
	{version: 2, name: "consolidate_reminders", apply: consolidateReminders},
}

// Migrate brings doc to the current schema version and recomputes client
// display ids. A document without an epoch is given a fresh one. The input is
// not modified.
func Migrate(doc Document) (Document, MigrationReport) {
	out := doc.Clone()
	if out.Epoch == "" {
		out.Epoch = NewEpoch()
	}
	report := MigrationReport{FromVersion: out.SchemaVersion}
	for _, step := range migrationSteps {
		if out.SchemaVersion >= step.version {
			continue
		}
		step.apply(&out, &report)
		out.SchemaVersion = step.version
		report.Applied = append(report.Applied, step.name)
	}
	report.DisplayIDsChanged = assignDisplayIDs(&out)
	report.ToVersion = out.SchemaVersion
	return out, report
}

// renumberServiceIDs rewrites timestamp-derived service ids to 1..N ordered by
// intake date. Nothing references service ids, so no foreign keys move. Data
// without legacy ids is left alone.
func renumberServiceIDs(doc *Document, report *MigrationReport) {
	legacy := false
	for _, svc := range doc.Services {
		if svc.ID > LegacyServiceIDThreshold {
			legacy = true
			break
		}
	}
	if !legacy {
		return
	}
	sorted := append([]domain.ServiceRecord(nil), doc.Services...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return domain.TimestampMillis(sorted[i].DateIn) < domain.TimestampMillis(sorted[j].DateIn)
	})
	mapping := make(map[int64]int64, len(sorted))
	changed := false
	for i := range sorted {
		newID := int64(i + 1)
		if sorted[i].ID != newID || doc.Services[i].ID != sorted[i].ID {
			changed = true
		}
		mapping[sorted[i].ID] = newID
		sorted[i].ID = newID
	}
	doc.Services = sorted
	if changed {
		report.ServiceIDs = mapping
		report.ReloadRequired = true
	}
}

// consolidateReminders runs the per-bike dedup pass over every bike that has
// reminders, including orphaned bike ids.
func consolidateReminders(doc *Document, report *MigrationReport) {
	seen := make(map[int64]bool)
	var bikes []int64
	for _, r := range doc.Reminders {
		if !seen[r.BikeID] {
			seen[r.BikeID] = true
			bikes = append(bikes, r.BikeID)
		}
	}
	tx := &transaction{state: *doc}
	before := len(tx.state.Reminders)
	for _, bikeID := range bikes {
		tx.DeduplicateReminders(bikeID)
	}
	report.RemindersRemoved += before - len(tx.state.Reminders)
	*doc = tx.state
}

// assignDisplayIDs orders clients by id and sets every display id to its
// 1-based rank, soft-deleted clients included. It returns how many clients
// changed position or display id.
func assignDisplayIDs(doc *Document) int {
	sorted := append([]domain.Client(nil), doc.Clients...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	changed := 0
	for i := range sorted {
		display := strconv.Itoa(i + 1)
		if sorted[i].DisplayID != display || sorted[i].ID != doc.Clients[i].ID {
			changed++
		}
		sorted[i].DisplayID = display
	}
	doc.Clients = sorted
	return changed
}
