package testinfra

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"

	"reqflow/authority"
	"reqflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
)

// BuildSession build an authenticated session for direct invocation of
// domain operations in tests.
func BuildSession(uid types.ID, departmentID types.ID, roles ...string) *session.Session {
	return &session.Session{
		Token:    "test-token",
		Identity: session.Identity{ID: uid, Name: "user" + uid.String(), Nickname: "User " + uid.String(), DepartmentID: departmentID},
		Perms:    authority.Permissions(roles),
		Context:  context.Background(),
	}
}

func ExecuteRequest(req *http.Request, router *gin.Engine) (int, string, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	bodyBytes, _ := ioutil.ReadAll(w.Body)
	return w.Code, string(bodyBytes), w
}
