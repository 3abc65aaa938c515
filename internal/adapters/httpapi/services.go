package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"probikes/internal/core"
	"probikes/pkg/domain"
)

type extraItemRequest struct {
	ID          string  `json:"id"`
	Description string  `json:"description" validate:"required"`
	Price       float64 `json:"price" validate:"gte=0"`
	Category    string  `json:"category" validate:"omitempty,oneof=part labor"`
}

func toItems(in []extraItemRequest) []domain.ExtraItem {
	items := make([]domain.ExtraItem, 0, len(in))
	for _, it := range in {
		items = append(items, domain.ExtraItem{
			ID:          it.ID,
			Description: it.Description,
			Price:       it.Price,
			Category:    domain.ItemCategory(it.Category),
		})
	}
	return items
}

type serviceRequest struct {
	BikeID        int64              `json:"bike_id" validate:"required,gt=0"`
	DateIn        string             `json:"date_in"`
	Status        string             `json:"status"`
	ServiceType   string             `json:"service_type" validate:"omitempty,oneof=Sport Expert Otro"`
	Checklist     map[string]bool    `json:"checklist_data"`
	PartsUsed     string             `json:"parts_used"`
	MechanicNotes string             `json:"mechanic_notes"`
	BasePrice     float64            `json:"basePrice" validate:"gte=0"`
	ExtraItems    []extraItemRequest `json:"extraItems" validate:"dive"`
}

func (r serviceRequest) toDomain() (domain.ServiceRecord, error) {
	svc := domain.ServiceRecord{
		BikeID:        r.BikeID,
		DateIn:        r.DateIn,
		ServiceType:   domain.ServiceType(r.ServiceType),
		Checklist:     r.Checklist,
		PartsUsed:     r.PartsUsed,
		MechanicNotes: r.MechanicNotes,
		BasePrice:     r.BasePrice,
		ExtraItems:    toItems(r.ExtraItems),
	}
	if r.Status != "" {
		status, ok := domain.ParseServiceStatus(r.Status)
		if !ok {
			return svc, badRequest("unknown service status %q", r.Status)
		}
		svc.Status = status
	}
	return svc, nil
}

type servicePatch struct {
	BikeID        *int64             `json:"bike_id" validate:"omitempty,gt=0"`
	ServiceType   *string            `json:"service_type" validate:"omitempty,oneof=Sport Expert Otro"`
	Checklist     map[string]bool    `json:"checklist_data"`
	PartsUsed     *string            `json:"parts_used"`
	MechanicNotes *string            `json:"mechanic_notes"`
	BasePrice     *float64           `json:"basePrice" validate:"omitempty,gte=0"`
	ExtraItems    []extraItemRequest `json:"extraItems" validate:"omitempty,dive"`
}

func (p servicePatch) apply(svc *domain.ServiceRecord) error {
	if p.BikeID != nil {
		svc.BikeID = *p.BikeID
	}
	if p.ServiceType != nil {
		svc.ServiceType = domain.ServiceType(*p.ServiceType)
	}
	if p.Checklist != nil {
		svc.Checklist = p.Checklist
	}
	if p.PartsUsed != nil {
		svc.PartsUsed = *p.PartsUsed
	}
	if p.MechanicNotes != nil {
		svc.MechanicNotes = *p.MechanicNotes
	}
	if p.BasePrice != nil {
		svc.BasePrice = *p.BasePrice
	}
	if p.ExtraItems != nil {
		svc.ExtraItems = toItems(p.ExtraItems)
	}
	return nil
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (s *Server) createService(c *gin.Context) {
	var req serviceRequest
	if err := s.bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	record, err := req.toDomain()
	if err != nil {
		s.fail(c, err)
		return
	}
	created, res, err := s.svc.CreateService(c.Request.Context(), record)
	if err != nil {
		s.fail(c, err)
		return
	}
	withWarnings(c, res)
	c.JSON(http.StatusCreated, created)
}

func (s *Server) getService(c *gin.Context) {
	id, err := intParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}
	svc, err := s.svc.GetService(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, svc)
}

func (s *Server) updateService(c *gin.Context) {
	id, err := intParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}
	var patch servicePatch
	if err := s.bind(c, &patch); err != nil {
		s.fail(c, err)
		return
	}
	updated, res, err := s.svc.UpdateService(c.Request.Context(), id, patch.apply)
	if err != nil {
		s.fail(c, err)
		return
	}
	withWarnings(c, res)
	c.JSON(http.StatusOK, updated)
}

func (s *Server) updateServiceStatus(c *gin.Context) {
	id, err := intParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}
	var req statusRequest
	if err := s.bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	updated, _, err := s.svc.UpdateServiceStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) deleteService(c *gin.Context) {
	id, err := intParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}
	if _, err := s.svc.DeleteService(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) finalizeService(c *gin.Context) {
	id, err := intParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}
	var in core.FinalizeInput
	if err := s.bind(c, &in); err != nil {
		s.fail(c, err)
		return
	}
	out, res, err := s.svc.FinalizeService(c.Request.Context(), id, in)
	if err != nil {
		s.fail(c, err)
		return
	}
	withWarnings(c, res)
	c.JSON(http.StatusOK, out)
}
