package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	account "github.com/goliatone/go-account"
	"github.com/goliatone/go-account/activitymap"
	"github.com/goliatone/go-account/config"
	"github.com/goliatone/go-account/httpapi"
	"github.com/goliatone/go-account/logging"
	"github.com/goliatone/go-account/mail"
	"github.com/goliatone/go-account/persistence"
	"github.com/goliatone/go-account/social"
	"github.com/goliatone/go-account/social/providers/sfdc"
	"github.com/goliatone/go-account/storage/s3avatars"
	"github.com/goliatone/go-router"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "accountsd: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Debug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := persistence.OpenAndMigrate(ctx, cfg.DB.Driver, cfg.DB.DSN, logger.Named("db"))
	if err != nil {
		return err
	}
	defer db.Close()

	hasher := account.NewBcryptHasher(cfg.GetBcryptCost())
	repo := account.NewRepositoryManager(db, hasher, nil)
	repo.MustValidate()

	tokens := account.NewTokenServiceFromConfig(cfg, account.WithTokenLogger(logger.Named("tokens")))
	activityLog := logger.Named("activity")
	activity := activitymap.Sink(func(ctx context.Context, record activitymap.Record) error {
		activityLog.Info(record.Verb, record.Fields()...)
		return nil
	})

	accounts := account.NewManager(repo, hasher, tokens, cfg).
		WithLogger(logger.Named("accounts")).
		WithActivitySink(activity)

	if cfg.SMTP.Enabled() {
		mailer, err := mail.New(mail.Config{
			Host:       cfg.SMTP.Host,
			Port:       cfg.SMTP.Port,
			Username:   cfg.SMTP.Username,
			Password:   cfg.SMTP.Password,
			From:       cfg.SMTP.From,
			RequireTLS: cfg.SMTP.RequireTLS,
		})
		if err != nil {
			return err
		}
		accounts.WithMailer(mailer.WithLogger(logger.Named("mail")))
	}

	if cfg.S3.Enabled() {
		blobs, err := s3avatars.New(ctx, s3avatars.Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
			PathStyle: cfg.S3.PathStyle,
		})
		if err != nil {
			return err
		}
		accounts.WithBlobStore(blobs)
	}

	if cfg.Avatar.DefaultImage != "" {
		if err := seedDefaultAvatar(ctx, accounts, cfg.Avatar.DefaultImage); err != nil {
			return err
		}
	}

	sessions := httpapi.NewSessions(httpapi.SessionConfig{
		CookieName: cfg.Session.CookieName,
		Expiration: cfg.Session.Expiration,
		Secure:     cfg.Session.Secure,
	})

	opts := []httpapi.Option{
		httpapi.WithLogger(logger.Named("http")),
		httpapi.WithMaxAvatarSize(cfg.Avatar.MaxSize),
		httpapi.WithSessions(sessions),
	}

	if cfg.SFDC.Enabled() {
		provider := sfdc.New(sfdc.Config{
			ClientID:     cfg.SFDC.ClientID,
			ClientSecret: cfg.SFDC.ClientSecret,
			CallbackURL:  cfg.SFDC.CallbackURL,
			Scopes:       cfg.SFDC.Scopes,
			LoginURL:     cfg.SFDC.LoginURL,
		})
		linker := social.NewLinker(repo).
			WithAvatarAssigner(accounts).
			WithActivitySink(activity).
			WithLogger(logger.Named("social"))
		auth := social.NewAuthenticator(
			social.NewStateSigner([]byte(cfg.GetStateKey()), social.DefaultStateTTL),
			linker,
			tokens,
			social.WithProvider(provider),
		)
		opts = append(opts, httpapi.WithSocial(auth, provider.Name()))
	}

	ctrl := httpapi.NewController(
		accounts,
		account.NewRequestVerifier(tokens, cfg, logger.Named("verifier")),
		account.NewGate(repo.Users(), account.DefaultOwnerParam),
		opts...,
	)
	ctrl.Debug = cfg.Debug

	srv := router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		return sessions.Install(fiber.New(fiber.Config{
			UnescapePath:          true,
			DisableStartupMessage: true,
			BodyLimit:             cfg.Avatar.MaxSize + 1<<20,
			ErrorHandler:          router.DefaultFiberErrorHandler(router.DefaultFiberErrorHandlerConfig()),
		}))
	})
	srv.Router().WithLogger(logger.Named("router"))
	ctrl.Register(srv.Router())

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("listening on %s", cfg.HTTP.Addr)
		return srv.Serve(cfg.HTTP.Addr)
	})

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	group.Go(func() error {
		reconcile(ctx, accounts, logger, cfg.Avatar.OrphanGrace, cfg.Avatar.ReconcileEvery)
		return nil
	})

	return group.Wait()
}

// reconcile sweeps orphaned avatars until ctx is done
func reconcile(ctx context.Context, accounts *account.Manager, logger account.Logger, grace, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := accounts.ReconcileOrphanAvatars(ctx, grace); err != nil {
				logger.Error("avatar reconciliation failed: %v", err)
			}
		}
	}
}

func seedDefaultAvatar(ctx context.Context, accounts *account.Manager, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read default avatar: %w", err)
	}
	_, err = accounts.SeedDefaultAvatar(ctx, account.AvatarFile{
		Data:        data,
		ContentType: http.DetectContentType(data),
	})
	return err
}
