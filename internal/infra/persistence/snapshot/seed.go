package snapshot

import (
	"time"

	"probikes/pkg/domain"
)

// SeedDocument returns the demonstration dataset installed when no usable
// document exists: three clients with one bike each and no jobs.
func SeedDocument(now time.Time) domain.Document {
	base := now.UnixMilli()
	clients := []domain.Client{
		{ID: base, DisplayID: "1", Name: "Juan Perez", Phone: "1112345678", UsageTier: domain.TierSport, DNI: "12345678"},
		{ID: base + 1, DisplayID: "2", Name: "Maria Garcia", Phone: "1187654321", UsageTier: domain.TierCasual, DNI: "87654321"},
		{ID: base + 2, DisplayID: "3", Name: "Pedro Lopez", Phone: "1155556666", UsageTier: domain.TierProHeavy, DNI: "11223344"},
	}
	bikes := []domain.Bike{
		{ID: base + 10, ClientID: clients[0].ID, Brand: "Specialized", Model: "Tarmac", Transmission: "Shimano 105", Notes: "Bici de ruta"},
		{ID: base + 11, ClientID: clients[1].ID, Brand: "Trek", Model: "Marlin", Transmission: "Deore 1x10", Notes: "Uso urbano"},
		{ID: base + 12, ClientID: clients[2].ID, Brand: "Cannondale", Model: "Scalpel", Transmission: "XTR", Notes: "Competencia"},
	}
	return domain.Document{
		SchemaVersion: domain.SchemaVersion,
		Clients:       clients,
		Bikes:         bikes,
	}.Normalize()
}
