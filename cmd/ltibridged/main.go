// cmd/ltibridged/main.go
package main

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/campushq/ltibridge/internal/config"
	"github.com/campushq/ltibridge/internal/db"
	"github.com/campushq/ltibridge/internal/httpapi"
	"github.com/campushq/ltibridge/internal/idtoken"
	"github.com/campushq/ltibridge/internal/keys"
	"github.com/campushq/ltibridge/internal/launch"
	"github.com/campushq/ltibridge/internal/obs"
	"github.com/campushq/ltibridge/internal/outcomes"
	"github.com/campushq/ltibridge/internal/token"
	"github.com/campushq/ltibridge/internal/tool"
)

func main() {
	cfg := config.FromEnv()

	log := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	log.SetFormatter(&logrus.JSONFormatter{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.WithError(err).Fatal("db open failed")
	}
	store := tool.NewSQLStore(dbh)

	manager := &keys.Manager{Storage: keys.NewSQLStorage(dbh)}
	signer := &idtoken.Signer{Keys: manager, Issuer: cfg.Issuer}
	verifier := &idtoken.Verifier{Keyset: &idtoken.KeysetCache{}}

	if cfg.EnableMetrics {
		obs.Init()
	}

	srv := &httpapi.Server{
		Tools:    store,
		Tokens:   &token.Service{Store: store},
		Keys:     manager,
		Verifier: verifier,
		Orchestrator: &launch.Orchestrator{
			Tools:  store,
			Signer: signer,
			Platform: launch.Platform{
				URL:               cfg.Issuer,
				Name:              cfg.PlatformName,
				Version:           cfg.PlatformVersion,
				FamilyCode:        cfg.PlatformFamilyCode,
				ContactEmail:      cfg.PlatformContactEmail,
				GUID:              cfg.PlatformGUID,
				OutcomeServiceURL: cfg.PublicURL + "/lti/outcomes",
				LoginReturnURL:    cfg.PublicURL + "/lti/auth",
			},
			Log: log,
		},
		Outcomes:       &outcomes.Service{Grades: outcomes.NewSQLGradebook(dbh), Log: log},
		Log:            log,
		PublicURL:      cfg.PublicURL,
		TokenRateLimit: cfg.TokenRateLimit,
		TokenRateBurst: cfg.TokenRateBurst,
		CORSOrigins:    cfg.CORSOrigins,
		EnableMetrics:  cfg.EnableMetrics,
	}

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.WithField("addr", cfg.HTTPAddr).Info("ltibridged listening")
	if err := httpSrv.ListenAndServe(); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}
