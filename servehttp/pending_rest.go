package servehttp

import (
	"net/http"

	"reqflow/indices"
	"reqflow/session"

	"github.com/gin-gonic/gin"
)

// RegisterPendingRequestHandler exposes the search-mirror view of requests
// awaiting the current user's action.
func RegisterPendingRequestHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/pending-requests", middleWares...)
	g.GET("", handleQueryPendingRequests)
}

func handleQueryPendingRequests(c *gin.Context) {
	s := session.ExtractSessionFromGinContext(c)
	docs, err := indices.SearchPendingRequests(s.Identity.ID)
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, docs)
}
