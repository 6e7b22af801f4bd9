//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/saas-auth/internal/bootstrap"
	"github.com/yanqian/saas-auth/internal/domain/auth"
	"github.com/yanqian/saas-auth/internal/infra/config"
	httpiface "github.com/yanqian/saas-auth/internal/interface/http"
	"github.com/yanqian/saas-auth/pkg/logger"
	"github.com/yanqian/saas-auth/pkg/metrics"
)

func initializeApp() (*bootstrap.App, func(), error) {
	wire.Build(
		config.Load,
		logger.New,
		metrics.NewRegistry,
		provideAuthConfig,
		provideArgon2Hasher,
		provideTokenCodec,
		provideAuthRepository,
		auth.NewService,
		wire.Bind(new(auth.PasswordHasher), new(*auth.Argon2Hasher)),
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil, nil
}
