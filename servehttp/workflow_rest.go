package servehttp

import (
	"net/http"

	"reqflow/bizerror"
	"reqflow/domain/flow"
	"reqflow/misc"
	"reqflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func RegisterWorkflowDefinitionHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/workflow-definitions", middleWares...)

	handler := &workflowDefinitionHandler{
		validator: validator.New(),
	}

	g.POST("", handler.handleCreateDefinition)
	g.GET("", handler.handleQueryDefinitions)
	g.GET(":defId", handler.handleDetailDefinition)
	g.PUT(":defId", handler.handleUpdateDefinitionBase)
	g.DELETE(":defId", handler.handleDeleteDefinition)
}

type workflowDefinitionHandler struct {
	validator *validator.Validate
}

func (h *workflowDefinitionHandler) handleCreateDefinition(c *gin.Context) {
	creation := flow.WorkflowDefinitionCreation{}
	err := c.ShouldBindBodyWith(&creation, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(creation); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	detail, err := flow.CreateWorkflowDefinitionFunc(&creation, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusCreated, detail)
}

func (h *workflowDefinitionHandler) handleQueryDefinitions(c *gin.Context) {
	query := flow.WorkflowDefinitionQuery{}
	_ = c.MustBindWith(&query, binding.Query)

	definitions, err := flow.QueryWorkflowDefinitionsFunc(&query, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, definitions)
}

func (h *workflowDefinitionHandler) handleDetailDefinition(c *gin.Context) {
	id, err := types.ParseID(c.Param("defId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("defId") + "'"})
		return
	}

	detail, err := flow.DetailWorkflowDefinitionFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *workflowDefinitionHandler) handleUpdateDefinitionBase(c *gin.Context) {
	id, err := types.ParseID(c.Param("defId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("defId") + "'"})
		return
	}

	updating := flow.WorkflowDefinitionBaseUpdation{}
	err = c.ShouldBindBodyWith(&updating, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(updating); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	definition, err := flow.UpdateWorkflowDefinitionFunc(id, &updating, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, definition)
}

func (h *workflowDefinitionHandler) handleDeleteDefinition(c *gin.Context) {
	id, err := types.ParseID(c.Param("defId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("defId") + "'"})
		return
	}

	err = flow.DeleteWorkflowDefinitionFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.Status(http.StatusNoContent)
}
