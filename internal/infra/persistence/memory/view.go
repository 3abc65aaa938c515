package memory

import "probikes/pkg/domain"

type transactionView struct {
	state *Document
}

func newTransactionView(state *Document) TransactionView {
	return transactionView{state: state}
}

func (v transactionView) SchemaVersion() int { return v.state.SchemaVersion }
func (v transactionView) Revision() int64    { return v.state.Revision }
func (v transactionView) Epoch() string      { return v.state.Epoch }

func (v transactionView) ListClients() []domain.Client {
	return append([]domain.Client(nil), v.state.Clients...)
}

func (v transactionView) ListBikes() []domain.Bike {
	return append([]domain.Bike(nil), v.state.Bikes...)
}

func (v transactionView) ListServices() []domain.ServiceRecord {
	out := make([]domain.ServiceRecord, len(v.state.Services))
	for i, svc := range v.state.Services {
		out[i] = domain.CloneService(svc)
	}
	return out
}

func (v transactionView) ListReminders() []domain.Reminder {
	out := make([]domain.Reminder, len(v.state.Reminders))
	for i, r := range v.state.Reminders {
		out[i] = domain.CloneReminder(r)
	}
	return out
}

func (v transactionView) FindClient(id int64) (domain.Client, bool) {
	if i := clientIndex(v.state, id); i >= 0 {
		return v.state.Clients[i], true
	}
	return domain.Client{}, false
}

func (v transactionView) FindBike(id int64) (domain.Bike, bool) {
	if i := bikeIndex(v.state, id); i >= 0 {
		return v.state.Bikes[i], true
	}
	return domain.Bike{}, false
}

func (v transactionView) FindService(id int64) (domain.ServiceRecord, bool) {
	if i := serviceIndex(v.state, id); i >= 0 {
		return domain.CloneService(v.state.Services[i]), true
	}
	return domain.ServiceRecord{}, false
}

func (v transactionView) FindReminder(id float64) (domain.Reminder, bool) {
	if i := reminderIndex(v.state, id); i >= 0 {
		return domain.CloneReminder(v.state.Reminders[i]), true
	}
	return domain.Reminder{}, false
}

func clientIndex(doc *Document, id int64) int {
	for i := range doc.Clients {
		if doc.Clients[i].ID == id {
			return i
		}
	}
	return -1
}

func bikeIndex(doc *Document, id int64) int {
	for i := range doc.Bikes {
		if doc.Bikes[i].ID == id {
			return i
		}
	}
	return -1
}

func serviceIndex(doc *Document, id int64) int {
	for i := range doc.Services {
		if doc.Services[i].ID == id {
			return i
		}
	}
	return -1
}

func reminderIndex(doc *Document, id float64) int {
	for i := range doc.Reminders {
		if doc.Reminders[i].ID == id {
			return i
		}
	}
	return -1
}
