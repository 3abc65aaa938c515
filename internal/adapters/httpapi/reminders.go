package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"probikes/pkg/domain"
)

type reminderRequest struct {
	ID            float64 `json:"id"`
	ClientID      int64   `json:"client_id"`
	BikeID        int64   `json:"bike_id" validate:"required,gt=0"`
	Component     string  `json:"component" validate:"required"`
	DueDate       string  `json:"due_date" validate:"required"`
	AssignedDate  string  `json:"assigned_date"`
	CurrentHealth *int    `json:"current_health" validate:"omitempty,gte=0,lte=100"`
	Status        string  `json:"status" validate:"omitempty,oneof=Pending Contacted Dismissed"`
}

type reminderPatch struct {
	Component     *string `json:"component" validate:"omitempty,min=1"`
	DueDate       *string `json:"due_date" validate:"omitempty,min=1"`
	CurrentHealth *int    `json:"current_health" validate:"omitempty,gte=0,lte=100"`
	Status        *string `json:"status" validate:"omitempty,oneof=Pending Contacted Dismissed"`
}

func (p reminderPatch) apply(r *domain.Reminder) error {
	if p.Component != nil {
		r.Component = *p.Component
	}
	if p.DueDate != nil {
		r.DueDate = *p.DueDate
	}
	if p.CurrentHealth != nil {
		health := *p.CurrentHealth
		r.CurrentHealth = &health
	}
	if p.Status != nil {
		r.Status = domain.ReminderStatus(*p.Status)
	}
	return nil
}

func (s *Server) upsertReminders(c *gin.Context) {
	var batch []reminderRequest
	if err := c.ShouldBindJSON(&batch); err != nil {
		s.fail(c, badRequest("decode body: %v", err))
		return
	}
	if err := s.validate.Var(batch, "required,dive"); err != nil {
		s.fail(c, err)
		return
	}
	reminders := make([]domain.Reminder, 0, len(batch))
	for _, r := range batch {
		reminders = append(reminders, domain.Reminder{
			ID:            r.ID,
			ClientID:      r.ClientID,
			BikeID:        r.BikeID,
			Component:     r.Component,
			DueDate:       r.DueDate,
			AssignedDate:  r.AssignedDate,
			CurrentHealth: r.CurrentHealth,
			Status:        domain.ReminderStatus(r.Status),
		})
	}
	stored, res, err := s.svc.UpsertReminders(c.Request.Context(), reminders)
	if err != nil {
		s.fail(c, err)
		return
	}
	withWarnings(c, res)
	c.JSON(http.StatusOK, stored)
}

func (s *Server) getReminder(c *gin.Context) {
	id, err := reminderParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	r, err := s.svc.GetReminder(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) updateReminder(c *gin.Context) {
	id, err := reminderParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var patch reminderPatch
	if err := s.bind(c, &patch); err != nil {
		s.fail(c, err)
		return
	}
	updated, res, err := s.svc.UpdateReminder(c.Request.Context(), id, patch.apply)
	if err != nil {
		s.fail(c, err)
		return
	}
	withWarnings(c, res)
	c.JSON(http.StatusOK, updated)
}

func (s *Server) deleteReminder(c *gin.Context) {
	id, err := reminderParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if _, err := s.svc.DeleteReminder(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
