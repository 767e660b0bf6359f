package servehttp

import (
	"net/http"

	"reqflow/bizerror"
	"reqflow/domain"
	"reqflow/domain/approval"
	"reqflow/domain/request"
	"reqflow/misc"
	"reqflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func RegisterRequestHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	itemHandler := &requestHandler{kind: domain.FormKindItemRequest, validator: validator.New()}
	vehicleHandler := &requestHandler{kind: domain.FormKindVehicleRequest, validator: validator.New()}

	itemGroup := r.Group("/v1/item-requests", middleWares...)
	itemGroup.POST("", itemHandler.handleCreateItemRequest)
	itemGroup.PUT(":id", itemHandler.handleUpdateItemRequest)
	itemGroup.GET(":id", itemHandler.handleDetailItemRequest)
	registerCommonRequestRoutes(itemGroup, itemHandler)

	vehicleGroup := r.Group("/v1/vehicle-requests", middleWares...)
	vehicleGroup.POST("", vehicleHandler.handleCreateVehicleRequest)
	vehicleGroup.PUT(":id", vehicleHandler.handleUpdateVehicleRequest)
	vehicleGroup.GET(":id", vehicleHandler.handleDetailVehicleRequest)
	registerCommonRequestRoutes(vehicleGroup, vehicleHandler)
}

func registerCommonRequestRoutes(g *gin.RouterGroup, handler *requestHandler) {
	g.GET("", handler.handleQueryRequests)
	g.DELETE(":id", handler.handleDeleteRequest)

	g.POST(":id/submit", handler.handleSubmitRequest)
	g.POST(":id/approve", handler.handleApproveRequest)
	g.POST(":id/decline", handler.handleDeclineRequest)
	g.POST(":id/return", handler.handleReturnRequest)
	g.POST(":id/cancel", handler.handleCancelRequest)
}

type requestHandler struct {
	kind      domain.FormKind
	validator *validator.Validate
}

func (h *requestHandler) parseIDOrAbort(c *gin.Context) (types.ID, bool) {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("id") + "'"})
		return 0, false
	}
	return id, true
}

func (h *requestHandler) handleCreateItemRequest(c *gin.Context) {
	creation := request.ItemRequestCreation{}
	err := c.ShouldBindBodyWith(&creation, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(creation); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	record, err := request.CreateItemRequestFunc(&creation, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (h *requestHandler) handleUpdateItemRequest(c *gin.Context) {
	id, ok := h.parseIDOrAbort(c)
	if !ok {
		return
	}

	updating := request.ItemRequestUpdating{}
	err := c.ShouldBindBodyWith(&updating, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(updating); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	record, err := request.UpdateItemRequestFunc(id, &updating, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *requestHandler) handleDetailItemRequest(c *gin.Context) {
	id, ok := h.parseIDOrAbort(c)
	if !ok {
		return
	}

	detail, err := request.DetailItemRequestFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *requestHandler) handleCreateVehicleRequest(c *gin.Context) {
	creation := request.VehicleRequestCreation{}
	err := c.ShouldBindBodyWith(&creation, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(creation); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	record, err := request.CreateVehicleRequestFunc(&creation, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (h *requestHandler) handleUpdateVehicleRequest(c *gin.Context) {
	id, ok := h.parseIDOrAbort(c)
	if !ok {
		return
	}

	updating := request.VehicleRequestUpdating{}
	err := c.ShouldBindBodyWith(&updating, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(updating); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	record, err := request.UpdateVehicleRequestFunc(id, &updating, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *requestHandler) handleDetailVehicleRequest(c *gin.Context) {
	id, ok := h.parseIDOrAbort(c)
	if !ok {
		return
	}

	detail, err := request.DetailVehicleRequestFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *requestHandler) handleQueryRequests(c *gin.Context) {
	query := request.RequestQuery{}
	_ = c.MustBindWith(&query, binding.Query)

	records, err := request.QueryRequestsFunc(h.kind, &query, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *requestHandler) handleDeleteRequest(c *gin.Context) {
	id, ok := h.parseIDOrAbort(c)
	if !ok {
		return
	}

	err := request.DeleteRequestFunc(h.kind, id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *requestHandler) handleSubmitRequest(c *gin.Context) {
	id, ok := h.parseIDOrAbort(c)
	if !ok {
		return
	}

	record, err := approval.SubmitRequestFunc(h.kind, id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *requestHandler) handleApproveRequest(c *gin.Context) {
	id, ok := h.parseIDOrAbort(c)
	if !ok {
		return
	}

	review := approval.ApprovalReview{}
	err := c.ShouldBindBodyWith(&review, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	record, err := approval.ApproveRequestFunc(h.kind, id, &review, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *requestHandler) handleDeclineRequest(c *gin.Context) {
	id, ok := h.parseIDOrAbort(c)
	if !ok {
		return
	}

	review := approval.ApprovalReview{}
	err := c.ShouldBindBodyWith(&review, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	record, err := approval.DeclineRequestFunc(h.kind, id, &review, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *requestHandler) handleReturnRequest(c *gin.Context) {
	id, ok := h.parseIDOrAbort(c)
	if !ok {
		return
	}

	directive := approval.ReturnDirective{}
	err := c.ShouldBindBodyWith(&directive, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	record, err := approval.ReturnRequestFunc(h.kind, id, &directive, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *requestHandler) handleCancelRequest(c *gin.Context) {
	id, ok := h.parseIDOrAbort(c)
	if !ok {
		return
	}

	record, err := approval.CancelRequestFunc(h.kind, id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, record)
}
