// Callctl — CLI entry point.
//
// Joins a room on the signaling relay and runs one peer-to-peer call
// session, printing every status transition. The local capture is
// synthetic; received media is counted, not rendered.
//
// It can be launched interactively (no -room flag) or non-interactively via
// CLI flags (-relay, -room, -client, -token, -no-audio, -no-video, -trace).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/pterm/pterm"

	"github.com/1ureka/classcall/internal/call"
	"github.com/1ureka/classcall/internal/config"
	"github.com/1ureka/classcall/internal/media"
	"github.com/1ureka/classcall/internal/signaling"
	"github.com/1ureka/classcall/internal/transport"
	"github.com/1ureka/classcall/internal/util"
)

var version = "dev"

func main() {
	// Root context — cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.LoadCall(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		util.LogError("%v", err)
		os.Exit(2)
	}

	switch {
	case cfg.Trace:
		util.EnableTrace()
	case cfg.Debug:
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("Callctl — v%s", version))
	pterm.Println()

	if cfg.RoomID == "" {
		cfg.RoomID = askRoom()
	}

	if err := run(ctx, cfg); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
}

// run starts one session and blocks until it ends or ctx is cancelled.
func run(ctx context.Context, cfg *config.Call) error {
	dialer := &signaling.Dialer{BaseURL: cfg.RelayURL, Token: cfg.Token}

	drain := media.NewDrain(nil)
	s := call.New(call.Deps{
		Media:    &media.SyntheticSource{Audio: cfg.Audio, Video: cfg.Video},
		NewPeer:  call.PionPeers(transport.Config{ICEServers: cfg.ICEServers}),
		Dial:     call.WebSocketDialer(dialer),
		Playback: drain,
	})
	drain.SetStats(s.Stats())
	defer s.Close()

	ended := make(chan call.Status, 1)
	s.OnStatusChange(func(st call.Status, err error) {
		printStatus(st, err)
		if st.Terminal() {
			select {
			case ended <- st:
			default:
			}
		}
	})

	util.LogInfo("joining room %q as %q", cfg.RoomID, cfg.ClientID)
	if err := s.Start(ctx, cfg.RoomID, cfg.ClientID); err != nil {
		if errors.Is(err, call.ErrClosed) {
			return nil
		}
		return err
	}

	util.StartStatsReporter(ctx, s.Stats(), cfg.StatsInterval)

	select {
	case <-ctx.Done():
		util.LogInfo("ending call")
		return nil
	case st := <-ended:
		if st == call.StatusError {
			return s.Err()
		}
		return nil
	}
}

// printStatus renders one status transition.
func printStatus(st call.Status, err error) {
	line := call.StatusLine(st, err)
	switch st {
	case call.StatusInCall:
		pterm.Success.Println(line)
	case call.StatusError:
		pterm.Error.Println(line)
	case call.StatusDisconnected:
		pterm.Warning.Println(line)
	default:
		pterm.Info.Println(line)
	}
}

// askRoom prompts for a room id until a non-empty one is entered.
func askRoom() string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("Room id").
			Show()

		pterm.Println()
		if room := strings.TrimSpace(raw); room != "" {
			return room
		}
		util.LogWarning("room id must not be empty")
	}
}
