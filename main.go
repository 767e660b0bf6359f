package main

import (
	"context"
	"net/http"
	"os"

	"reqflow/account"
	"reqflow/auditlog"
	"reqflow/bizerror"
	"reqflow/client/es"
	"reqflow/domain"
	"reqflow/infra/tracing"
	"reqflow/misc"
	"reqflow/persistence"
	"reqflow/servehttp"
	"reqflow/session"
	"reqflow/sessions"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	logrus.Infof("service %s starting, instance %s", misc.GetServiceName(), misc.GetServiceInstance())

	dbConfig, err := persistence.ParseDatabaseConfigFromEnv()
	if err != nil {
		logrus.Fatalf("parse database config failed %v", err)
	}

	// create database (no conflict)
	if dbConfig.DriverType == "mysql" {
		if err := persistence.PrepareMysqlDatabase(dbConfig.DriverArgs); err != nil {
			logrus.Fatalf("failed to prepare database %v", err)
		}
	}

	ds := &persistence.DataSourceManager{DatabaseConfig: dbConfig}
	if err := ds.Start(); err != nil {
		logrus.Fatalf("database connection failed %v", err)
	}
	defer ds.Stop()
	persistence.ActiveDataSourceManager = ds

	// database migration (race condition)
	err = ds.GormDB(context.Background()).AutoMigrate(
		&account.User{}, &account.Department{},
		&domain.WorkflowDefinition{}, &domain.WorkflowStep{},
		&domain.ItemRequest{}, &domain.VehicleRequest{}, &domain.RequestLineItem{},
		&domain.ApprovalRecord{}, &auditlog.AuditRecord{},
	).Error
	if err != nil {
		logrus.Fatalf("database migration failed %v", err)
	}

	if err := account.DefaultSecurityConfiguration(); err != nil {
		logrus.Fatalf("default security configuration failed %v", err)
	}

	tracingCloser, err := tracing.Bootstrap()
	if err != nil {
		logrus.Fatalf("tracing bootstrap failed %v", err)
	}
	defer tracingCloser.Close()

	if err := es.BootESClient(os.Getenv("ES_ADDRESSES")); err != nil {
		logrus.Fatalf("elasticsearch bootstrap failed %v", err)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), bizerror.ErrorHandling(), tracing.TracingIngress())
	engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, misc.GetServiceName())
	})

	sessions.RegisterSessionsHandler(engine)

	servehttp.RegisterWorkflowDefinitionHandler(engine, session.SimpleAuthFilter())
	servehttp.RegisterRequestHandler(engine, session.SimpleAuthFilter())
	servehttp.RegisterPendingRequestHandler(engine, session.SimpleAuthFilter())
	servehttp.RegisterAuditRecordHandler(engine, session.SimpleAuthFilter())
	servehttp.RegisterUserHandler(engine, session.SimpleAuthFilter())

	port := os.Getenv("SERVICE_PORT")
	if port == "" {
		port = "80"
	}
	if err := engine.Run(":" + port); err != nil {
		logrus.Fatalf("server exited %v", err)
	}
}
