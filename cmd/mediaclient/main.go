// Mediaclient — CLI entry point.
//
// This tool joins a WebRTC conference room through a session-engine, keeping
// the publisher and subscriber transports alive across ICE hiccups and full
// rejoins, and exposes a small stdin command loop for publishing a track and
// sending user data packets.
//
// It can be launched interactively (no flags) or non-interactively via CLI
// flags (-url, -token, -policy).
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/pterm/pterm"
	"golang.org/x/sync/errgroup"

	"github.com/meshcall/session-engine/internal/config"
	"github.com/meshcall/session-engine/internal/engine"
	"github.com/meshcall/session-engine/internal/observability"
	"github.com/meshcall/session-engine/internal/wire"
)

var version = "dev"

func main() {
	// Root context — cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	urlFlag := flag.String("url", "", "Signaling WebSocket URL")
	tokenFlag := flag.String("token", "", "Join token")
	policyFlag := flag.String("policy", "", "Reconnect policy: default, soft, full")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	log := observability.NewLogger("cli")
	if *debugMode {
		observability.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("Mediaclient — v%s", version))
	pterm.Println()

	wsURL, token := *urlFlag, *tokenFlag
	if wsURL == "" {
		wsURL = askURL()
	}
	if token == "" {
		token = askToken()
	}

	policy := parsePolicy(*policyFlag)

	if err := run(ctx, log, wsURL, token, policy); err != nil {
		log.Error("session ended with error: %v", err)
		os.Exit(1)
	}

	log.Info("session closed")
}

// cliListener renders engine callbacks as log lines; AddTrack's result and
// user packets are the only events worth more than a line of text here.
type cliListener struct {
	engine.NoopListener
	log *observability.Logger
}

func (l *cliListener) OnEngineConnected()    { l.log.Success("connected") }
func (l *cliListener) OnEngineReconnecting() { l.log.Warning("reconnecting") }
func (l *cliListener) OnEngineReconnected()  { l.log.Success("reconnected") }
func (l *cliListener) OnEngineDisconnected(reason engine.DisconnectReason) {
	l.log.Warning("disconnected: %v", reason)
}
func (l *cliListener) OnFailToConnect(err error) { l.log.Error("failed to connect: %v", err) }
func (l *cliListener) OnJoinResponse(resp *wire.JoinResponse) {
	l.log.Info("joined as %s, %d other participant(s)", resp.ParticipantSID, len(resp.OtherParticipants))
}
func (l *cliListener) OnUserPacket(pkt *wire.UserPacket) {
	l.log.Info("data from %s: %s", pkt.ParticipantSID, string(pkt.Payload))
}
func (l *cliListener) OnUpdateParticipants(p []wire.ParticipantInfo) {
	l.log.Info("room now has %d participant(s)", len(p))
}

// run joins the room, starts the stdin command loop, and blocks until ctx
// is cancelled or the command loop exits (on "quit" or stdin EOF). Both
// goroutines share ctx so either the command loop exiting or Ctrl+C stops
// both.
func run(ctx context.Context, log *observability.Logger, wsURL, token string, policy config.ReconnectPolicy) error {
	l := &cliListener{log: log}
	e := engine.New(l, nil)
	defer e.Close("cli exited")

	opts := config.ConnectOptions{ReconnectPolicy: policy, AutoSubscribe: true}
	if _, err := e.Join(ctx, wsURL, token, opts, config.RoomOptions{}); err != nil {
		return fmt.Errorf("join failed: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return commandLoop(gctx, e, log)
	})
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	return g.Wait()
}

// commandLoop reads one command per line from stdin until ctx is
// cancelled, stdin is closed, or the user types "quit".
func commandLoop(ctx context.Context, e *engine.Engine, log *observability.Logger) error {
	pterm.Println()
	pterm.Info.Println("commands: pub <name>, rm <sid>, send <text>, quit")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if shouldStop := handleCommand(ctx, e, log, line); shouldStop {
				return nil
			}
		}
	}
}

func handleCommand(ctx context.Context, e *engine.Engine, log *observability.Logger, line string) (stop bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "quit":
		return true

	case "pub":
		name := "track"
		if len(fields) > 1 {
			name = fields[1]
		}
		info, err := e.AddTrackAuto(ctx, name, wire.TrackKindData)
		if err != nil {
			log.Error("publish failed: %v", err)
			return false
		}
		log.Success("published %q as %s", info.Name, info.SID)

	case "rm":
		if len(fields) < 2 {
			log.Warning("usage: rm <sid>")
			return false
		}
		if err := e.RemoveTrack(ctx, fields[1]); err != nil {
			log.Error("remove failed: %v", err)
		}

	case "send":
		text := strings.TrimPrefix(line, "send ")
		pkt := &wire.DataPacket{Kind: wire.DataPacketUser, User: &wire.UserPacket{Payload: []byte(text)}}
		if err := e.SendData(ctx, pkt, true); err != nil {
			log.Error("send failed: %v", err)
		}

	default:
		log.Warning("unknown command: %s", fields[0])
	}
	return false
}

func parsePolicy(s string) config.ReconnectPolicy {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "soft":
		return config.ReconnectForceSoft
	case "full":
		return config.ReconnectForceFull
	default:
		return config.ReconnectDefault
	}
}

func askURL() string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("Signaling URL (e.g. wss://room.example.com/ws)").
			Show()
		raw = strings.TrimSpace(raw)
		if raw != "" {
			pterm.Println()
			return raw
		}
		pterm.Println()
		pterm.Warning.Println("URL cannot be empty")
	}
}

func askToken() string {
	raw, _ := pterm.DefaultInteractiveTextInput.
		WithDefaultText("Join token").
		Show()
	pterm.Println()
	return strings.TrimSpace(raw)
}
