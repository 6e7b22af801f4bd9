//go:build !wireinject
// +build !wireinject

// This file holds the injector for builds without the wireinject tag. It is
// kept by hand in the shape wire emits; running `go generate ./cmd/app`
// replaces it with generated output from wire.go.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire

package main

import (
	"github.com/yanqian/saas-auth/internal/bootstrap"
	"github.com/yanqian/saas-auth/internal/domain/auth"
	"github.com/yanqian/saas-auth/internal/infra/config"
	"github.com/yanqian/saas-auth/internal/interface/http"
	"github.com/yanqian/saas-auth/pkg/logger"
	"github.com/yanqian/saas-auth/pkg/metrics"
)

func initializeApp() (*bootstrap.App, func(), error) {
	configConfig, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	slogLogger := logger.New()
	authConfig := provideAuthConfig(configConfig)
	repository, cleanup, err := provideAuthRepository(configConfig, slogLogger)
	if err != nil {
		return nil, nil, err
	}
	argon2Hasher, err := provideArgon2Hasher(configConfig)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	tokenCodec := provideTokenCodec(configConfig)
	service, err := auth.NewService(authConfig, repository, argon2Hasher, tokenCodec, slogLogger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	handler := http.NewHandler(service, slogLogger)
	registry := metrics.NewRegistry()
	server := http.NewRouter(configConfig, handler, registry)
	app := bootstrap.NewApp(configConfig, slogLogger, server)
	return app, func() {
		cleanup()
	}, nil
}
