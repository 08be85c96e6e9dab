// Package main provides the control CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/osa030/tome/internal/app/host"
	"github.com/osa030/tome/internal/infra/hostrpc"
)

var (
	app    = kingpin.New("tomectl", "tome control client")
	server = app.Flag("server", "Player address").Default("http://127.0.0.1:7421").String()
	token  = app.Flag("token", "Shared host token (or set TOME_HOST_TOKEN env)").Envar("TOME_HOST_TOKEN").String()

	playCmd     = app.Command("play", "Resume playback")
	pauseCmd    = app.Command("pause", "Pause playback")
	toggleCmd   = app.Command("toggle", "Toggle play/pause")
	nextCmd     = app.Command("next", "Skip to the next track")
	previousCmd = app.Command("previous", "Go back to the previous track").Alias("prev")

	// status command
	statusCmd = app.Command("status", "Show the playback status")

	// enqueue command
	enqueueCmd  = app.Command("enqueue", "Append a file or directory to the queue")
	enqueuePath = enqueueCmd.Arg("path", "File or directory").Required().String()

	// host command
	hostCmd  = app.Command("host", "Run a host shell that prints what the player pushes")
	hostAddr = hostCmd.Flag("addr", "Listen address").Default("127.0.0.1:7422").String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := hostrpc.NewPlayerClient(http.DefaultClient, *server, *token)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Execute command
	switch command {
	case playCmd.FullCommand():
		emit(ctx, client, host.EventPlay)
	case pauseCmd.FullCommand():
		emit(ctx, client, host.EventPause)
	case toggleCmd.FullCommand():
		emit(ctx, client, host.EventToggle)
	case nextCmd.FullCommand():
		emit(ctx, client, host.EventNext)
	case previousCmd.FullCommand():
		emit(ctx, client, host.EventPrevious)
	case statusCmd.FullCommand():
		status(ctx, client)
	case enqueueCmd.FullCommand():
		enqueue(ctx, client, *enqueuePath)
	case hostCmd.FullCommand():
		serveHost(*hostAddr, *token)
	}
}

func fail(err error) {
	fmt.Printf("Error: %v\n", err)
	os.Exit(1)
}

func emit(ctx context.Context, client *hostrpc.PlayerClient, event string) {
	if err := client.Emit(ctx, event); err != nil {
		fail(err)
	}
	fmt.Printf("Sent %s\n", event)
}

func status(ctx context.Context, client *hostrpc.PlayerClient) {
	s, err := client.Status(ctx)
	if err != nil {
		fail(err)
	}

	fmt.Println("\n=== PLAYER STATUS ===")
	fmt.Printf("State: %v (%v)\n", s["state"], s["status"])
	fmt.Printf("Volume: %.0f%%", toFloat(s["volume"])*100)
	if muted, _ := s["muted"].(bool); muted {
		fmt.Print(" (muted)")
	}
	fmt.Println()
	fmt.Printf("Queue: %v tracks, cursor %v, %v upcoming (%s remaining)\n",
		s["queue_length"], s["cursor"], s["upcoming"], formatSeconds(toFloat(s["remaining"])))

	t, err := host.DecodeTrack(s)
	if err != nil {
		fail(err)
	}
	if t == nil {
		fmt.Println("\nNo track loaded")
		fmt.Println()
		return
	}

	fmt.Println("\nCurrent Track:")
	fmt.Printf("  Title: %s\n", t.Metadata.Title)
	fmt.Printf("  Artist: %s\n", t.Metadata.Artist)
	fmt.Printf("  Album: %s\n", t.Metadata.Album)
	fmt.Printf("  Path: %s\n", t.Path)
	fmt.Printf("  Position: %s / %s\n", formatSeconds(toFloat(s["position"])), formatSeconds(t.Duration.Seconds()))
	if loading, _ := s["loading"].(bool); loading {
		fmt.Println("  Loading...")
	}
	fmt.Println()
}

func enqueue(ctx context.Context, client *hostrpc.PlayerClient, path string) {
	n, err := client.Enqueue(ctx, path)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Queued %d tracks\n", n)
}

// serveHost runs a HostService that prints every invoke until interrupted.
func serveHost(addr, token string) {
	mux := http.NewServeMux()
	mux.Handle(hostrpc.NewHostHandler(token, printInvoke))

	srv := &http.Server{
		Addr:    addr,
		Handler: h2c.NewHandler(mux, &http2.Server{}),
	}

	// Handle shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nStopping host...")
		_ = srv.Close()
	}()

	fmt.Printf("Host listening on %s. Press Ctrl+C to exit.\n", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fail(err)
	}
}

func printInvoke(_ context.Context, cmd string, args map[string]any) error {
	switch cmd {
	case host.CmdSetMetadata:
		t, err := host.DecodeTrack(args)
		if err != nil {
			return err
		}
		if t == nil {
			fmt.Println("[metadata] (none)")
			return nil
		}
		fmt.Printf("[metadata] %s - %s (%s)\n", t.Metadata.Artist, t.Metadata.Title, t.Metadata.Album)
	case host.CmdSetPlayback:
		p, err := host.DecodePlayback(args)
		if err != nil {
			return err
		}
		progress := "-"
		if p.Progress != nil {
			progress = formatSeconds(*p.Progress)
		}
		fmt.Printf("[playback] %s %s\n", p.Status(), progress)
	default:
		fmt.Printf("[%s] %v\n", cmd, args)
	}
	return nil
}

func toFloat(v any) float64 {
	f, _ := v.(float64)
	return f
}

func formatSeconds(sec float64) string {
	s := int(sec)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
