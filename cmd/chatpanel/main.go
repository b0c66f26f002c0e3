package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/zhouzirui/chatpanel/internal/config"
	"github.com/zhouzirui/chatpanel/internal/handler"
	panelhandler "github.com/zhouzirui/chatpanel/internal/handler/panel"
	"github.com/zhouzirui/chatpanel/internal/metrics"
	"github.com/zhouzirui/chatpanel/internal/model/chat"
	"github.com/zhouzirui/chatpanel/internal/panel"
	"github.com/zhouzirui/chatpanel/internal/render"
	"github.com/zhouzirui/chatpanel/internal/server"
	chatclient "github.com/zhouzirui/chatpanel/internal/service/chat"
	"github.com/zhouzirui/chatpanel/internal/tui"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	apiURL := flag.String("api", cfg.Panel.APIURL, "chat backend base URL")
	sessionID := flag.String("session", cfg.Panel.SessionID, "session id, generated when empty")
	webAddr := flag.String("web", "", "serve the web panel on this address instead of the terminal panel")
	flag.Parse()

	baseURL, err := config.NormalizeAPIURL(*apiURL)
	if err != nil {
		log.Fatalf("invalid -api: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := chatclient.NewClient(baseURL, cfg.Panel.RequestTimeout)
	opts := []panel.Option{
		panel.WithWelcome(cfg.Panel.WelcomeMessage),
		panel.WithObserver(metrics.Exchanges{}),
	}

	if *webAddr != "" {
		checkBackend(ctx, client)
		addr, err := config.ParseAddr(*webAddr, "8080")
		if err != nil {
			log.Fatalf("invalid -web: %v", err)
		}
		panelHandler := panelhandler.New(client, render.NewHTML(), *sessionID, opts...)
		if err := server.Run(ctx, "chat panel", addr, handler.NewPanelRouter(panelHandler)); err != nil {
			log.Fatalf("server error: %v", err)
		}
		return
	}

	runTerminal(ctx, cfg.Panel, client, *sessionID, opts)
}

func runTerminal(ctx context.Context, cfg config.PanelConfig, client *chatclient.Client, sessionID string, opts []panel.Option) {
	logFile, err := tea.LogToFile(cfg.LogFile, "chatpanel ")
	if err != nil {
		log.Fatalf("failed to open log file: %v", err)
	}
	defer logFile.Close()

	checkBackend(ctx, client)

	session := chat.NewSession(sessionID)
	view := tui.NewView()
	renderer := render.NewTerminal(cfg.Width)
	ctrl := panel.New(client, session.ID, renderer, view, opts...)
	ctrl.Greet()

	model := tui.New(ctx, ctrl, view, cfg.Width, 24, tui.WithResizableRenderer(renderer))
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "chat panel error: %v\n", err)
		os.Exit(1)
	}
}

// checkBackend only warns: the panel stays usable and the user can retry later.
func checkBackend(ctx context.Context, client *chatclient.Client) {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := client.Health(probeCtx); err != nil {
		log.Printf("warning: chat backend at %s is not healthy: %v", client.BaseURL(), err)
		return
	}
	log.Printf("chat backend at %s is healthy", client.BaseURL())
}
