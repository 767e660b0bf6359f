package servehttp

import (
	"net/http"

	"reqflow/auditlog"
	"reqflow/bizerror"
	"reqflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

type auditRecordQuery struct {
	EntityType string   `form:"entityType"`
	EntityID   types.ID `form:"entityId"`
}

func RegisterAuditRecordHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/audit-records", middleWares...)
	g.GET("", handleQueryAuditRecords)
}

func handleQueryAuditRecords(c *gin.Context) {
	query := auditRecordQuery{}
	_ = c.MustBindWith(&query, binding.Query)
	if query.EntityType == "" || query.EntityID == 0 {
		panic(&bizerror.ErrBadParam{})
	}

	records, err := auditlog.QueryAuditRecords(query.EntityType, query.EntityID, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, records)
}
