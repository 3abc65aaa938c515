package domain

import (
	"context"
	"time"
)

// TransactionView provides read-only access to a document snapshot. List
// methods return copies in persisted order.
type TransactionView interface {
	SchemaVersion() int
	Revision() int64
	Epoch() string
	ListClients() []Client
	ListBikes() []Bike
	ListServices() []ServiceRecord
	ListReminders() []Reminder
	FindClient(id int64) (Client, bool)
	FindBike(id int64) (Bike, bool)
	FindService(id int64) (ServiceRecord, bool)
	FindReminder(id float64) (Reminder, bool)
}

// Transaction exposes the repository operations a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	TransactionView
	Snapshot() TransactionView
	Now() time.Time

	CreateClient(Client) (Client, error)
	UpdateClient(id int64, mutator func(*Client) error) (Client, error)
	SoftDeleteClient(id int64) error

	CreateBike(Bike) (Bike, error)
	UpdateBike(id int64, mutator func(*Bike) error) (Bike, error)
	DeleteBike(id int64) error

	CreateService(ServiceRecord) (ServiceRecord, error)
	UpdateService(id int64, mutator func(*ServiceRecord) error) (ServiceRecord, error)
	DeleteService(id int64) error

	UpsertReminders(batch []Reminder) ([]Reminder, error)
	UpdateReminder(id float64, mutator func(*Reminder) error) (Reminder, error)
	DeleteReminder(id float64) error
	DeduplicateReminders(bikeID int64) bool

	// ReplaceDocument migrates and swaps in a whole dataset, keeping the
	// current revision.
	ReplaceDocument(Document) MigrationReport
}

// PersistentStore is the abstraction the service layer depends on.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	ExportState() Document
}
