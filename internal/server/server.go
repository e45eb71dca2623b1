package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/pmcompanion/pmcompanion/config"
	"github.com/pmcompanion/pmcompanion/internal/store"
)

// Run migrates the database, wires the handlers and serves the API.
func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "Cookie"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()
	dsn, err := cfg.Storage.Postgres.DSN()
	if err != nil {
		return err
	}
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	secret := cfg.Server.JWTSecret
	if secret == "" {
		return fmt.Errorf("jwt secret not configured (server.jwt_secret)")
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Storage.Redis.Addr(), Password: cfg.Storage.Redis.Pass, DB: cfg.Storage.Redis.DB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr(), err)
	}

	api := e.Group("/api")

	auth := &AuthHandler{Store: st, Secret: []byte(secret), TokenTTL: cfg.Server.TokenTTL}
	auth.Register(api.Group("/auth"))

	me := api.Group("/me")
	me.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return withAuth(next, []byte(secret))
	})
	me.GET("", func(c echo.Context) error {
		return c.JSON(200, MeResponse{UserID: c.Get("user_id").(string)})
	})

	ch := &ChatsHandler{Store: st}
	ch.Register(api.Group("/chats"), []byte(secret))

	th := &TelemetryHandler{Store: st}
	th.Register(api.Group("/chats"), api.Group("/telemetry"), []byte(secret))

	sh := &SessionHandler{Store: st, Rdb: rdb}
	sh.Register(api.Group("/session"), []byte(secret))

	addr := cfg.Server.Address
	if addr == "" {
		addr = ":10001"
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
