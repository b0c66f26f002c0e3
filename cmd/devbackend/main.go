package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/chatpanel/internal/config"
	"github.com/zhouzirui/chatpanel/internal/handler"
	chathandler "github.com/zhouzirui/chatpanel/internal/handler/chat"
	"github.com/zhouzirui/chatpanel/internal/server"
	"github.com/zhouzirui/chatpanel/internal/service/history"
	"github.com/zhouzirui/chatpanel/internal/service/reply"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	var replies reply.Generator = reply.Echo{}
	if cfg.AI.Enabled() {
		llm, err := reply.NewLLM(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize LLM replies: %v", err)
			log.Println("continuing with echo replies")
		} else {
			replies = llm
			log.Println("LLM replies enabled")
		}
	} else {
		log.Println("Ark 凭证未配置，使用回声回复")
	}

	historySvc := history.NewService(cfg.Backend.HistoryLimit)
	router := handler.NewBackendRouter(chathandler.New(historySvc, replies))

	if err := server.Run(ctx, "chat backend", cfg.Server.Addr, router); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
