// Relay — signaling relay entry point.
//
// Serves /ws/webrtc/<roomId>?clientId=<id> and fans signaling frames out
// between the two participants of each room. With -issue it prints a
// participant token signed with -secret instead, for callctl -token.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/pterm/pterm"

	"github.com/1ureka/classcall/internal/config"
	"github.com/1ureka/classcall/internal/relay"
	"github.com/1ureka/classcall/internal/util"
)

var version = "dev"

const shutdownTimeout = 5 * time.Second

func main() {
	// Root context — cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.LoadRelay(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		util.LogError("%v", err)
		os.Exit(2)
	}

	if cfg.Debug {
		util.EnableDebug()
	}

	if cfg.Issue != "" {
		token, err := relay.IssueToken(cfg.Secret, cfg.Issue, cfg.TokenTTL)
		if err != nil {
			util.LogError("%v", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	pterm.Info.Println(fmt.Sprintf("Relay — v%s", version))
	pterm.Println()

	if err := serve(ctx, cfg); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
	util.LogInfo("relay stopped")
}

func serve(ctx context.Context, cfg *config.Relay) error {
	hub := relay.New(relay.Options{Secret: cfg.Secret})
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           hub.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		util.LogSuccess("listening on %s", cfg.ListenAddr)
		if cfg.Secret == "" {
			util.LogWarning("no secret configured — participants are not authenticated")
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("relay server: %w", err)
	case <-ctx.Done():
	}

	// Hijacked WebSocket connections are not tracked by Shutdown.
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
