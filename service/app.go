package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"postkeeper/app/config"
	"postkeeper/app/controllers"
	"postkeeper/app/feed"
	"postkeeper/app/repositories"
	"postkeeper/app/routes"
	"postkeeper/app/services"
)

// App is the posts service wired from a configuration.
type App struct {
	Repo     *repositories.Repository
	Posts    *services.PostService
	Comments *services.CommentService
	Sync     *services.SyncService
	Router   http.Handler
}

// NewApp opens the document store and builds services and routes.
func NewApp(cfg config.Config, logger *slog.Logger) (*App, error) {
	repo, err := repositories.NewRepository(repositories.Options{
		Path:              cfg.StorePath(),
		OptimisticLocking: cfg.Posts.OptimisticLocking,
		Logger:            logger,
	})
	if err != nil {
		return nil, err
	}

	client, err := feed.New(cfg.Feed.BaseURL, cfg.Feed.Path, feed.Options{
		Timeout:  cfg.Feed.Timeout,
		CacheTTL: cfg.Feed.CacheTTL,
	})
	if err != nil {
		repo.Close()
		return nil, err
	}

	posts := services.NewPostService(repo.Posts)
	comments := services.NewCommentService(repo.Posts, repo.Comments, services.CommentOptions{
		RefreshProjectionOnUpdate: cfg.Comments.RefreshProjectionOnUpdate,
		Logger:                    logger,
	})
	sync := services.NewSyncService(repo.Posts, repo.Imports, client, services.SyncOptions{
		Dedupe: cfg.Sync.Dedupe,
		Logger: logger,
	})

	router := routes.SetupRoutes(logger, routes.Controllers{
		Posts:    controllers.NewPostController(posts),
		Comments: controllers.NewCommentController(comments),
		Sync:     controllers.NewSyncController(sync),
	})

	return &App{
		Repo:     repo,
		Posts:    posts,
		Comments: comments,
		Sync:     sync,
		Router:   router,
	}, nil
}

func (a *App) Close() error {
	return a.Repo.Close()
}

// RunAppServer serves the posts API until ctx is cancelled.
func RunAppServer(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	app, err := NewApp(cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info("starting posts service",
		"addr", cfg.Server.Addr,
		"db_path", cfg.StorePath(),
		"refresh_projection_on_update", cfg.Comments.RefreshProjectionOnUpdate,
		"optimistic_locking", cfg.Posts.OptimisticLocking,
		"sync_dedupe", cfg.Sync.Dedupe,
	)
	return serveUntilDone(ctx, logger, srv, srv.ListenAndServe)
}

// RunSyncOnce imports the feed once and reports the counts on w.
func RunSyncOnce(ctx context.Context, cfg config.Config, logger *slog.Logger, w io.Writer) error {
	app, err := NewApp(cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	created, result, err := app.Sync.Run(ctx)
	if err != nil {
		fmt.Fprintf(w, "Sync failed after creating %d posts: %v\n", len(created), err)
		return err
	}
	fmt.Fprintf(w, "Imported %d posts (refreshed %d, skipped %d, invalid %d)\n", result.Created, result.Refreshed, result.Skipped, result.Invalid)
	return nil
}

// Serve is the entry point of the serve command.
func Serve(args []string) int {
	return runWithConfig("serve", args, func(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
		return RunAppServer(ctx, cfg, logger)
	})
}

// SyncFeed is the entry point of the sync command.
func SyncFeed(args []string) int {
	return runWithConfig("sync", args, func(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
		return RunSyncOnce(ctx, cfg, logger, os.Stdout)
	})
}

func runWithConfig(name string, args []string, run func(context.Context, config.Config, *slog.Logger) error) int {
	cfg, _, err := loadConfig(name, args, os.Stderr)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return 1
	}
	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error(name+" failed", "error", err)
		return 1
	}
	return 0
}
