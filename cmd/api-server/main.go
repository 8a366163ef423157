// Package main API Server 入口
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"mindcare/api"
	"mindcare/internal/apiserver/blog"
	"mindcare/internal/apiserver/server"
	"mindcare/internal/config"
	"mindcare/internal/shared/completion"
	"mindcare/internal/shared/infra"
	"mindcare/internal/shared/mailer"
	"mindcare/internal/shared/objstore"
	"mindcare/internal/shared/storage/dbutil"
	"mindcare/pkg/logging"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "api-server:", err)
		os.Exit(1)
	}
}

func run() error {
	flagSet := pflag.NewFlagSet("api-server", pflag.ContinueOnError)
	configDir := flagSet.String("config", "", "directory containing {env}.yaml (overrides CONFIG_DIR)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *configDir != "" {
		config.SetConfigDir(*configDir)
	}

	// 加载配置（.env.{env} + {env}.yaml + 环境变量）
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Log.Component = "api-server"
	logger := logging.New(cfg.Log)
	logger.Info("starting api server", "env", cfg.Env, "config", cfg.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := api.Load(ctx); err != nil {
		return err
	}

	// 持久化存储
	store, err := infra.OpenStorage(dbutil.DriverType(cfg.DatabaseDriver), cfg.DatabaseURL, cfg.DatabaseName)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	logger.Info("storage connected", "driver", cfg.DatabaseDriver)

	inf := infra.NewLocalInfrastructure(store)
	if cfg.RedisURL != "" {
		redisInfra, err := infra.NewRedisInfra(cfg.RedisURL)
		if err != nil {
			inf.Close()
			return fmt.Errorf("connect redis: %w", err)
		}
		inf.WithRedis(redisInfra)
	} else {
		logger.Info("redis disabled, using in-process cache and broadcast")
	}
	defer inf.Close()

	if err := infra.SeedRooms(ctx, store); err != nil {
		return fmt.Errorf("seed rooms: %w", err)
	}

	// 博客图片（可选）
	var images blog.ImageStore
	if cfg.MinIO.Enabled() {
		client, err := objstore.NewClient(cfg.MinIO)
		if err != nil {
			return err
		}
		if err := client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("ensure bucket: %w", err)
		}
		images = client
	} else {
		logger.Info("minio disabled, blog image upload unavailable")
	}

	h := server.NewHandler(server.Deps{
		Store:          store,
		Cache:          inf.Cache,
		EventBus:       inf.EventBus,
		Mailer:         mailer.New(cfg.Mail, logger),
		Completer:      completion.NewClient(cfg.Chatbot),
		Images:         images,
		HealthChecks:   inf.HealthChecks(),
		JWTSecret:      cfg.Auth.JWTSecret,
		TokenTTL:       cfg.Auth.TokenTTL,
		SecureCookies:  cfg.IsProd(),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Logger:         logger,
	})

	if err := h.Auth.EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		return fmt.Errorf("ensure admin: %w", err)
	}
	h.Start(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          newServerErrorLog(logger),
	}

	// 优雅关闭
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	cancel()
	h.Shutdown(5 * time.Second)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server shutdown error")
	}
	logger.Info("server stopped")
	return nil
}
