package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"probikes/pkg/domain"
)

type clientRequest struct {
	Name      string `json:"name" validate:"required,max=120"`
	DNI       string `json:"dni" validate:"max=20"`
	Phone     string `json:"phone" validate:"max=40"`
	Email     string `json:"email" validate:"omitempty,email"`
	UsageTier string `json:"usage_tier" validate:"omitempty,oneof=A B C"`
}

func (r clientRequest) toDomain() domain.Client {
	return domain.Client{
		Name:      r.Name,
		DNI:       strings.TrimSpace(r.DNI),
		Phone:     strings.TrimSpace(r.Phone),
		Email:     strings.TrimSpace(r.Email),
		UsageTier: domain.UsageTier(r.UsageTier),
	}
}

type clientPatch struct {
	Name      *string `json:"name" validate:"omitempty,max=120"`
	DNI       *string `json:"dni" validate:"omitempty,max=20"`
	Phone     *string `json:"phone" validate:"omitempty,max=40"`
	Email     *string `json:"email" validate:"omitempty,email"`
	UsageTier *string `json:"usage_tier" validate:"omitempty,oneof=A B C"`
}

func (p clientPatch) apply(c *domain.Client) error {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.DNI != nil {
		c.DNI = strings.TrimSpace(*p.DNI)
	}
	if p.Phone != nil {
		c.Phone = strings.TrimSpace(*p.Phone)
	}
	if p.Email != nil {
		c.Email = strings.TrimSpace(*p.Email)
	}
	if p.UsageTier != nil {
		c.UsageTier = domain.UsageTier(*p.UsageTier)
	}
	return nil
}

// withWarnings exposes the number of non-blocking rule violations.
func withWarnings(c *gin.Context, res domain.Result) {
	n := 0
	for _, v := range res.Violations {
		if v.Severity == domain.SeverityWarn {
			n++
		}
	}
	if n > 0 {
		c.Header("X-Rule-Warnings", strconv.Itoa(n))
	}
}

// listClients lists live clients. A q parameter switches to search, and a
// blank q is an empty search that matches nothing.
func (s *Server) listClients(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		clients []domain.Client
		err     error
	)
	if q, ok := c.GetQuery("q"); ok {
		clients, err = s.svc.SearchClients(ctx, strings.TrimSpace(q))
	} else {
		clients, err = s.svc.ListClients(ctx)
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, clients)
}

func (s *Server) createClient(c *gin.Context) {
	var req clientRequest
	if err := s.bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	created, res, err := s.svc.CreateClient(c.Request.Context(), req.toDomain())
	if err != nil {
		s.fail(c, err)
		return
	}
	withWarnings(c, res)
	c.JSON(http.StatusCreated, created)
}

func (s *Server) getClient(c *gin.Context) {
	id, err := intParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}
	client, err := s.svc.GetClient(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

func (s *Server) updateClient(c *gin.Context) {
	id, err := intParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}
	var patch clientPatch
	if err := s.bind(c, &patch); err != nil {
		s.fail(c, err)
		return
	}
	updated, res, err := s.svc.UpdateClient(c.Request.Context(), id, patch.apply)
	if err != nil {
		s.fail(c, err)
		return
	}
	withWarnings(c, res)
	c.JSON(http.StatusOK, updated)
}

func (s *Server) deleteClient(c *gin.Context) {
	id, err := intParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}
	if _, err := s.svc.DeleteClient(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) clientBikes(c *gin.Context) {
	id, err := intParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}
	bikes, err := s.svc.ClientBikes(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, bikes)
}

func (s *Server) clientServices(c *gin.Context) {
	id, err := intParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}
	services, err := s.svc.ClientServices(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, services)
}

func (s *Server) clientReminders(c *gin.Context) {
	id, err := intParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}
	reminders, err := s.svc.ClientReminders(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reminders)
}
