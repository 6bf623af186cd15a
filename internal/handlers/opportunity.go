package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/avelari/workbase-backend/internal/services"
)

type OpportunityHandler struct {
	opportunities services.OpportunityService
}

func NewOpportunityHandler(opportunities services.OpportunityService) *OpportunityHandler {
	return &OpportunityHandler{opportunities: opportunities}
}

func (oh *OpportunityHandler) Create(c *gin.Context) {
	var in services.CreateOpportunityInput
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	row, err := oh.opportunities.CreateOpportunity(c.Request.Context(), in)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, row)
}

func (oh *OpportunityHandler) ListMine(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	rows, err := oh.opportunities.ListMine(c.Request.Context(), limit)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"opportunities": rows})
}

func (oh *OpportunityHandler) CreateNextStep(c *gin.Context) {
	var in services.CreateNextStepInput
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	row, err := oh.opportunities.CreateNextStep(c.Request.Context(), in)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, row)
}

func (oh *OpportunityHandler) UpdateNextStep(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	var in services.UpdateNextStepInput
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	row, err := oh.opportunities.UpdateNextStep(c.Request.Context(), id, in)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, row)
}

func (oh *OpportunityHandler) DeleteNextStep(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := oh.opportunities.DeleteNextStep(c.Request.Context(), id); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": id})
}

func (oh *OpportunityHandler) ListNextSteps(c *gin.Context) {
	opportunityID, err := pathUUID(c, "opportunityID")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	rows, err := oh.opportunities.ListNextSteps(c.Request.Context(), opportunityID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"next_steps": rows})
}

func (oh *OpportunityHandler) LogCommunication(c *gin.Context) {
	var in services.LogCommunicationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	row, err := oh.opportunities.LogCommunication(c.Request.Context(), in)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, row)
}

func (oh *OpportunityHandler) DeleteCommunication(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := oh.opportunities.DeleteCommunication(c.Request.Context(), id); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": id})
}

func (oh *OpportunityHandler) ListCommunications(c *gin.Context) {
	opportunityID, err := pathUUID(c, "opportunityID")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	rows, err := oh.opportunities.ListCommunications(c.Request.Context(), opportunityID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"communications": rows})
}
