package memory

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"probikes/pkg/domain"
)

type transaction struct {
	store   *Store
	state   Document
	changes []Change
	now     time.Time
}

func (tx *transaction) SchemaVersion() int { return tx.state.SchemaVersion }
func (tx *transaction) Revision() int64    { return tx.state.Revision }
func (tx *transaction) Epoch() string      { return tx.state.Epoch }
func (tx *transaction) Now() time.Time     { return tx.now }

// Snapshot returns a read-only view over the transaction's working copy.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

func (tx *transaction) ListClients() []domain.Client { return tx.Snapshot().ListClients() }
func (tx *transaction) ListBikes() []domain.Bike     { return tx.Snapshot().ListBikes() }
func (tx *transaction) ListServices() []domain.ServiceRecord {
	return tx.Snapshot().ListServices()
}
func (tx *transaction) ListReminders() []domain.Reminder { return tx.Snapshot().ListReminders() }

func (tx *transaction) FindClient(id int64) (domain.Client, bool) {
	return tx.Snapshot().FindClient(id)
}

func (tx *transaction) FindBike(id int64) (domain.Bike, bool) {
	return tx.Snapshot().FindBike(id)
}

func (tx *transaction) FindService(id int64) (domain.ServiceRecord, bool) {
	return tx.Snapshot().FindService(id)
}

func (tx *transaction) FindReminder(id float64) (domain.Reminder, bool) {
	return tx.Snapshot().FindReminder(id)
}

func (tx *transaction) recordChange(entity domain.EntityType, action domain.Action, id string, before, after any) {
	change := Change{Entity: entity, Action: action, ID: id}
	if before != nil {
		change.Before, _ = json.Marshal(before)
	}
	if after != nil {
		change.After, _ = json.Marshal(after)
	}
	tx.changes = append(tx.changes, change)
}

func idString(id int64) string { return strconv.FormatInt(id, 10) }

func reminderIDString(id float64) string { return strconv.FormatFloat(id, 'f', -1, 64) }

// nextTimestampID derives an id from the transaction clock, bumping past the
// largest existing id so two creates in the same millisecond stay unique.
func (tx *transaction) nextTimestampID(maxExisting int64) int64 {
	id := tx.now.UnixMilli()
	if id <= maxExisting {
		id = maxExisting + 1
	}
	return id
}

// CreateClient assigns a timestamp id and the next display id.
func (tx *transaction) CreateClient(c domain.Client) (domain.Client, error) {
	var maxID int64
	maxDisplay := 0
	for _, existing := range tx.state.Clients {
		if existing.ID > maxID {
			maxID = existing.ID
		}
		if n, err := strconv.Atoi(existing.DisplayID); err == nil && n > maxDisplay {
			maxDisplay = n
		}
	}
	c.ID = tx.nextTimestampID(maxID)
	c.DisplayID = strconv.Itoa(maxDisplay + 1)
	c.IsDeleted = false
	tx.state.Clients = append(tx.state.Clients, c)
	tx.recordChange(domain.EntityClient, domain.ActionCreate, idString(c.ID), nil, c)
	return c, nil
}

// UpdateClient applies mutator to the stored client. The id is immutable.
func (tx *transaction) UpdateClient(id int64, mutator func(*domain.Client) error) (domain.Client, error) {
	i := clientIndex(&tx.state, id)
	if i < 0 {
		return domain.Client{}, domain.NotFound(domain.EntityClient, id)
	}
	before := tx.state.Clients[i]
	current := before
	if err := mutator(&current); err != nil {
		return domain.Client{}, err
	}
	current.ID = id
	tx.state.Clients[i] = current
	tx.recordChange(domain.EntityClient, domain.ActionUpdate, idString(id), before, current)
	return current, nil
}

// SoftDeleteClient flags the client as deleted and leaves every other
// collection untouched.
func (tx *transaction) SoftDeleteClient(id int64) error {
	_, err := tx.UpdateClient(id, func(c *domain.Client) error {
		c.IsDeleted = true
		return nil
	})
	return err
}

// CreateBike assigns a timestamp id.
func (tx *transaction) CreateBike(b domain.Bike) (domain.Bike, error) {
	var maxID int64
	for _, existing := range tx.state.Bikes {
		if existing.ID > maxID {
			maxID = existing.ID
		}
	}
	b.ID = tx.nextTimestampID(maxID)
	tx.state.Bikes = append(tx.state.Bikes, b)
	tx.recordChange(domain.EntityBike, domain.ActionCreate, idString(b.ID), nil, b)
	return b, nil
}

// UpdateBike applies mutator to the stored bike.
func (tx *transaction) UpdateBike(id int64, mutator func(*domain.Bike) error) (domain.Bike, error) {
	i := bikeIndex(&tx.state, id)
	if i < 0 {
		return domain.Bike{}, domain.NotFound(domain.EntityBike, id)
	}
	before := tx.state.Bikes[i]
	current := before
	if err := mutator(&current); err != nil {
		return domain.Bike{}, err
	}
	current.ID = id
	tx.state.Bikes[i] = current
	tx.recordChange(domain.EntityBike, domain.ActionUpdate, idString(id), before, current)
	return current, nil
}

// DeleteBike removes the row. Services and reminders pointing at it are left
// in place.
func (tx *transaction) DeleteBike(id int64) error {
	i := bikeIndex(&tx.state, id)
	if i < 0 {
		return domain.NotFound(domain.EntityBike, id)
	}
	before := tx.state.Bikes[i]
	tx.state.Bikes = append(tx.state.Bikes[:i], tx.state.Bikes[i+1:]...)
	tx.recordChange(domain.EntityBike, domain.ActionDelete, idString(id), before, nil)
	return nil
}

// CreateService assigns max(id)+1, stamps the intake date and computes the
// total price.
func (tx *transaction) CreateService(s domain.ServiceRecord) (domain.ServiceRecord, error) {
	var maxID int64
	for _, existing := range tx.state.Services {
		if existing.ID > maxID {
			maxID = existing.ID
		}
	}
	s = domain.CloneService(s)
	s.ID = maxID + 1
	s.DateIn = domain.FormatTimestamp(tx.now)
	if s.Status == "" {
		s.Status = domain.StatusIntake
	}
	prepareServicePricing(&s)
	tx.state.Services = append(tx.state.Services, s)
	tx.recordChange(domain.EntityService, domain.ActionCreate, idString(s.ID), nil, s)
	return domain.CloneService(s), nil
}

// UpdateService applies mutator and recomputes the total price.
func (tx *transaction) UpdateService(id int64, mutator func(*domain.ServiceRecord) error) (domain.ServiceRecord, error) {
	i := serviceIndex(&tx.state, id)
	if i < 0 {
		return domain.ServiceRecord{}, domain.NotFound(domain.EntityService, id)
	}
	before := domain.CloneService(tx.state.Services[i])
	current := domain.CloneService(before)
	if err := mutator(&current); err != nil {
		return domain.ServiceRecord{}, err
	}
	current.ID = id
	prepareServicePricing(&current)
	tx.state.Services[i] = current
	tx.recordChange(domain.EntityService, domain.ActionUpdate, idString(id), before, current)
	return domain.CloneService(current), nil
}

// DeleteService removes the row.
func (tx *transaction) DeleteService(id int64) error {
	i := serviceIndex(&tx.state, id)
	if i < 0 {
		return domain.NotFound(domain.EntityService, id)
	}
	before := tx.state.Services[i]
	tx.state.Services = append(tx.state.Services[:i], tx.state.Services[i+1:]...)
	tx.recordChange(domain.EntityService, domain.ActionDelete, idString(id), before, nil)
	return nil
}

func prepareServicePricing(s *domain.ServiceRecord) {
	if s.ExtraItems == nil {
		s.ExtraItems = []domain.ExtraItem{}
	}
	for i := range s.ExtraItems {
		if s.ExtraItems[i].ID == "" {
			s.ExtraItems[i].ID = uuid.NewString()
		}
	}
	s.TotalPrice = s.ComputeTotal()
}

// UpdateReminder applies mutator to the stored reminder.
func (tx *transaction) UpdateReminder(id float64, mutator func(*domain.Reminder) error) (domain.Reminder, error) {
	i := reminderIndex(&tx.state, id)
	if i < 0 {
		return domain.Reminder{}, domain.NotFound(domain.EntityReminder, reminderIDString(id))
	}
	before := domain.CloneReminder(tx.state.Reminders[i])
	current := domain.CloneReminder(before)
	if err := mutator(&current); err != nil {
		return domain.Reminder{}, err
	}
	current.ID = id
	if domain.ComponentKey(current.Component) == "" {
		return domain.Reminder{}, fmt.Errorf("%w: reminder component is required", domain.ErrInvalidInput)
	}
	tx.state.Reminders[i] = current
	tx.recordChange(domain.EntityReminder, domain.ActionUpdate, reminderIDString(id), before, current)
	return current, nil
}

// DeleteReminder removes the row.
func (tx *transaction) DeleteReminder(id float64) error {
	i := reminderIndex(&tx.state, id)
	if i < 0 {
		return domain.NotFound(domain.EntityReminder, reminderIDString(id))
	}
	tx.removeReminderAt(i)
	return nil
}

func (tx *transaction) removeReminderAt(i int) {
	before := tx.state.Reminders[i]
	tx.state.Reminders = append(tx.state.Reminders[:i], tx.state.Reminders[i+1:]...)
	tx.recordChange(domain.EntityReminder, domain.ActionDelete, reminderIDString(before.ID), before, nil)
}

// ReplaceDocument migrates doc and installs it as the working copy under a
// new epoch. The revision of the transaction is kept so the commit still
// advances it.
func (tx *transaction) ReplaceDocument(doc Document) MigrationReport {
	doc.Epoch = ""
	migrated, report := Migrate(doc)
	migrated.Revision = tx.state.Revision
	tx.state = migrated
	tx.recordChange(domain.EntityBackup, domain.ActionUpdate, "document", nil, nil)
	return report
}
