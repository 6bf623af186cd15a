package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/avelari/workbase-backend/internal/services"
)

type ProjectHandler struct {
	projects services.ProjectService
}

func NewProjectHandler(projects services.ProjectService) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

func (ph *ProjectHandler) Create(c *gin.Context) {
	var in services.CreateProjectInput
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	row, err := ph.projects.CreateProject(c.Request.Context(), in)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, row)
}

func (ph *ProjectHandler) Update(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	var in services.UpdateProjectInput
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	row, err := ph.projects.UpdateProject(c.Request.Context(), id, in)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, row)
}

func (ph *ProjectHandler) Delete(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := ph.projects.DeleteProject(c.Request.Context(), id); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": id})
}

func (ph *ProjectHandler) ListMine(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	rows, err := ph.projects.ListMine(c.Request.Context(), limit)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"projects": rows})
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	return id, nil
}
