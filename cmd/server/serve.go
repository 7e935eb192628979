package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"chatd/internal/config"
	"chatd/internal/domain"
	"chatd/internal/httpserver"
	"chatd/internal/permission"
	"chatd/internal/presence"
	"chatd/internal/security"
	"chatd/internal/server"
	"chatd/internal/service"
	"chatd/internal/session"
	"chatd/internal/store/sqlite"
	"chatd/internal/store/textfile"
	"chatd/internal/transport"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := setupLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores
	accounts := textfile.NewAccountStore(cfg.Path(cfg.AccountsFile))
	if err := accounts.Load(); err != nil {
		return err
	}
	groups := textfile.NewGroupStore(cfg.Path(cfg.GroupsFile), cfg.Path(cfg.GroupRolesFile), cfg.GroupMemberLimit)
	if err := groups.Load(); err != nil {
		return err
	}
	archive := textfile.NewArchive(cfg.Path(cfg.GroupRecordDir), cfg.Path(cfg.FriendRecordDir))
	requests := textfile.NewRequestStore(cfg.Path(cfg.RequestsFile), groups)

	db, err := sqlite.Open(cfg.Path(cfg.AuditDB))
	if err != nil {
		return err
	}
	defer db.Close()
	if err := sqlite.Migrate(db); err != nil {
		return err
	}

	// Services
	reg := presence.NewRegistry(log)
	perms := permission.NewRegistry()
	audit := service.NewAuditService(sqlite.NewAuditRepo(db), log)
	groupSvc := service.NewGroupService(groups, audit, log)
	chatSvc := service.NewChatService(accounts, groups, archive, reg, audit, log, cfg.HistoryLimit)
	svc := session.Services{
		Accounts: accounts,
		Auth:     service.NewAuthService(accounts, groups, security.NewPasswordHasher(cfg.BcryptCost), audit, log, cfg.DefaultGroup),
		Chat:     chatSvc,
		Groups:   groupSvc,
		Requests: service.NewRequestService(requests, accounts, groupSvc, chatSvc, audit, log),
		Audit:    audit,
	}

	mgr := session.NewManager(svc, reg, perms, session.Options{
		LegacyLogin:    cfg.LegacyLogin,
		LegacyPassword: cfg.LegacyPassword,
		MaxLineBytes:   cfg.MaxLineBytes,
	}, log)
	requests.SetWatcher(func() { mgr.RequestsChanged(ctx) })

	gid, created, err := groupSvc.Ensure(ctx, cfg.DefaultGroup, domain.ConsoleName)
	if err != nil {
		return fmt.Errorf("ensure default group: %w", err)
	}
	if created {
		log.Info("created default group", "name", cfg.DefaultGroup, "id", gid)
	}

	// Listeners
	tcp, err := transport.ListenTCP(cfg.ChatAddr())
	if err != nil {
		return err
	}

	// one ceiling for TCP and WebSocket sessions together
	limit := server.NewLimit(cfg.MaxConnections)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.NewAcceptor(tcp, mgr, limit, log).Run(gctx)
	})

	if cfg.HTTPEnabled() {
		ws := transport.NewWSListener(cfg.HTTPAddr(), cfg.CORSOrigins)
		tokens := security.NewTokenService(cfg.JWTSecret, cfg.AppName, time.Duration(cfg.AccessTokenMinutes)*time.Minute)

		srv := &http.Server{
			Addr:              cfg.HTTPAddr(),
			Handler:           httpserver.NewRouter(cfg, mgr, audit, tokens, ws),
			ReadHeaderTimeout: 15 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		g.Go(func() error {
			return server.NewAcceptor(ws, mgr, limit, log).Run(gctx)
		})
		g.Go(func() error {
			log.Info("starting operator API", "addr", cfg.HTTPAddr())
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn("graceful shutdown failed", "err", err)
			}
			return nil
		})
	}

	if stdinConsole {
		go readConsole(gctx, os.Stdin, mgr, log)
	}

	log.Info("chat server started", "addr", tcp.Addr(), "data_dir", cfg.DataDir)
	err = g.Wait()
	log.Info("server stopped")
	return err
}

// readConsole feeds operator lines from r to the session manager until EOF.
// Output is written by ExecuteConsole through the logger.
func readConsole(ctx context.Context, r io.Reader, mgr *session.Manager, log *slog.Logger) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		mgr.ExecuteConsole(ctx, sc.Text())
	}
	if err := sc.Err(); err != nil {
		log.Warn("console input closed", "err", err)
	}
}
