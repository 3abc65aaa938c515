package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"probikes/pkg/domain"
)

type bikeRequest struct {
	ClientID     int64  `json:"client_id" validate:"required,gt=0"`
	Brand        string `json:"brand" validate:"max=80"`
	Model        string `json:"model" validate:"max=120"`
	Transmission string `json:"transmission" validate:"max=120"`
	Notes        string `json:"notes"`
}

type bikePatch struct {
	ClientID     *int64  `json:"client_id" validate:"omitempty,gt=0"`
	Brand        *string `json:"brand" validate:"omitempty,max=80"`
	Model        *string `json:"model" validate:"omitempty,max=120"`
	Transmission *string `json:"transmission" validate:"omitempty,max=120"`
	Notes        *string `json:"notes"`
}

func (p bikePatch) apply(b *domain.Bike) error {
	if p.ClientID != nil {
		b.ClientID = *p.ClientID
	}
	if p.Brand != nil {
		b.Brand = *p.Brand
	}
	if p.Model != nil {
		b.Model = *p.Model
	}
	if p.Transmission != nil {
		b.Transmission = *p.Transmission
	}
	if p.Notes != nil {
		b.Notes = *p.Notes
	}
	return nil
}

func (s *Server) listBikes(c *gin.Context) {
	bikes, err := s.svc.ListBikes(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, bikes)
}

func (s *Server) createBike(c *gin.Context) {
	var req bikeRequest
	if err := s.bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	created, res, err := s.svc.CreateBike(c.Request.Context(), domain.Bike{
		ClientID:     req.ClientID,
		Brand:        req.Brand,
		Model:        req.Model,
		Transmission: req.Transmission,
		Notes:        req.Notes,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	withWarnings(c, res)
	c.JSON(http.StatusCreated, created)
}

func (s *Server) getBike(c *gin.Context) {
	id, err := intParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}
	bike, err := s.svc.GetBike(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, bike)
}

func (s *Server) updateBike(c *gin.Context) {
	id, err := intParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}
	var patch bikePatch
	if err := s.bind(c, &patch); err != nil {
		s.fail(c, err)
		return
	}
	updated, res, err := s.svc.UpdateBike(c.Request.Context(), id, patch.apply)
	if err != nil {
		s.fail(c, err)
		return
	}
	withWarnings(c, res)
	c.JSON(http.StatusOK, updated)
}

func (s *Server) deleteBike(c *gin.Context) {
	id, err := intParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}
	if _, err := s.svc.DeleteBike(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) bikeServices(c *gin.Context) {
	id, err := intParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}
	services, err := s.svc.BikeServices(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, services)
}

func (s *Server) bikeReminders(c *gin.Context) {
	id, err := intParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}
	reminders, err := s.svc.BikeReminders(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reminders)
}

func (s *Server) dedupeBikeReminders(c *gin.Context) {
	id, err := intParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}
	changed, err := s.svc.DeduplicateBikeReminders(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed})
}
