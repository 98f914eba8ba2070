package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	gconfig "github.com/goliatone/go-config/config"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-print"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/realworld-apps/conduit"
	"github.com/realworld-apps/conduit/config"
)

type App struct {
	config *gconfig.Container[*config.AppConfig]
	bunDB  *bun.DB
	repo   conduit.RepositoryManager
	srv    *fiber.App
	logger *glog.BaseLogger
}

func (a *App) Config() *config.AppConfig {
	return a.config.Raw()
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Info),
		glog.WithName("conduit"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	cfg := gconfig.New(&config.AppConfig{}).
		WithLogger(lgr.GetLogger("config"))

	ctx := context.Background()
	if err := cfg.Load(ctx); err != nil {
		panic(err)
	}

	app := &App{
		config: cfg,
		logger: lgr,
	}

	if app.Config().GetPersistence().GetDebug() {
		fmt.Println(print.MaybeHighlightJSON(cfg.Raw()))
	}

	if err := WithPersistence(ctx, app); err != nil {
		panic(err)
	}

	if err := WithHTTPServer(ctx, app); err != nil {
		panic(err)
	}

	go func() {
		addr := app.Config().GetServer().GetAddress()
		if err := app.srv.Listen(addr); err != nil {
			app.GetLogger("server").Error("listener stopped", "error", err)
		}
	}()

	WaitExitSignal()

	if err := app.srv.ShutdownWithTimeout(10 * time.Second); err != nil {
		app.GetLogger("server").Error("shutdown failed", "error", err)
	}
}

func WithPersistence(ctx context.Context, app *App) error {
	pcfg := app.Config().GetPersistence()

	db, err := sql.Open(sqliteshim.ShimName, pcfg.GetDSN())
	if err != nil {
		return err
	}

	persistence.RegisterModel((*conduit.User)(nil))
	persistence.RegisterModel((*conduit.Auth)(nil))
	persistence.RegisterModel((*conduit.Tag)(nil))
	persistence.RegisterModel((*conduit.Follow)(nil))

	client, err := persistence.New(pcfg, db, sqlitedialect.New())
	if err != nil {
		return err
	}

	client.SetLogger(app.GetLogger("persistence"))

	migrationsFS, err := fs.Sub(conduit.GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return err
	}

	client.RegisterDialectMigrations(
		migrationsFS,
		persistence.WithDialectSourceLabel("data/sql/migrations"),
		persistence.WithValidationTargets("sqlite"),
	)

	if err := client.ValidateDialects(ctx); err != nil {
		return err
	}

	if err := client.Migrate(ctx); err != nil {
		return err
	}

	app.bunDB = client.DB()
	app.repo = conduit.NewRepositoryManager(client.DB())

	return app.repo.Validate()
}

func WithHTTPServer(ctx context.Context, app *App) error {
	acfg := app.Config().GetAuth()

	hasher := conduit.NewHasher(acfg.GetBcryptCost())

	tokens := conduit.NewTokenService(
		[]byte(acfg.GetSigningKey()),
		acfg.GetTokenTTL(),
		acfg.GetIssuer(),
		app.GetLogger("tokens"),
	)

	accounts := conduit.NewAccounts(app.repo, hasher, tokens).
		WithLogger(app.GetLogger("accounts"))

	profiles := conduit.NewProfiles(app.repo).
		WithLogger(app.GetLogger("profiles"))

	controller := conduit.NewController(
		conduit.WithAccounts(accounts),
		conduit.WithProfiles(profiles),
		conduit.WithTags(app.repo.Tags()),
		conduit.WithControllerLogger(app.GetLogger("http")),
		conduit.WithContextKey(acfg.GetContextKey()),
	)

	srv := fiber.New(fiber.Config{
		AppName:           "conduit",
		EnablePrintRoutes: app.Config().GetPersistence().GetDebug(),
	})

	srv.Use(recover.New())
	srv.Use(logger.New())

	protected := conduit.ProtectedRoute(acfg, tokens)
	optional := conduit.OptionalRoute(acfg, tokens)
	conduit.RegisterRoutes(srv, controller, protected, optional)

	app.srv = srv

	return nil
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
