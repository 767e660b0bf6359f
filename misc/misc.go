package misc

import (
	"os"
	"sync"

	"github.com/google/uuid"
)

type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

var (
	serviceName     string
	serviceInstance string
	identityOnce    sync.Once
)

func GetServiceName() string {
	loadServiceIdentity()
	return serviceName
}

func GetServiceInstance() string {
	loadServiceIdentity()
	return serviceInstance
}

func loadServiceIdentity() {
	identityOnce.Do(func() {
		serviceName = os.Getenv("SERVICE_NAME")
		if serviceName == "" {
			serviceName = "reqflow"
		}
		serviceInstance, _ = os.Hostname()
		if serviceInstance == "" {
			serviceInstance = uuid.New().String()
		}
	})
}
