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

	"hirechat/internal/api"
	"hirechat/internal/config"
	"hirechat/internal/conversation"
	"hirechat/internal/events"
	"hirechat/internal/presence"
	"hirechat/internal/transport"
	"hirechat/internal/ui"
)

func main() {
	cfg := config.FromEnv()
	flag.StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "backend base URL")
	flag.StringVar(&cfg.Email, "email", cfg.Email, "account email")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	apiClient := api.NewClient(cfg.BaseURL)
	login, err := apiClient.Login(ctx, cfg.Email, cfg.Password)
	cancel()
	if err != nil {
		log.Fatalf("login failed: %v", err)
	}

	bus := events.NewBus()
	messages := bus.SubscribeMessages()
	presenceCh := bus.SubscribePresence()

	toasts := make(chan string, 8)
	tracker := presence.NewTracker(login.Profile.ID, apiClient, func(name, content string) {
		select {
		case toasts <- fmt.Sprintf("%s: %s", name, content):
		default:
		}
	})
	store := conversation.NewStore(login.Profile.ID, apiClient)

	identity := transport.Identity{Profile: login.Profile, Token: login.AccessToken}
	client := transport.NewClient(cfg.WebSocketURL()+"?token="+login.AccessToken, bus)

	ctx, cancel = context.WithTimeout(context.Background(), 15*time.Second)
	err = client.Connect(ctx, identity)
	cancel()
	if err != nil {
		log.Fatalf("connect failed: %v", err)
	}
	// Both the signal handler and the deferred call may fire; Disconnect
	// sends the offline announcement at most once.
	defer client.Disconnect()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		client.Disconnect()
	}()

	model := ui.New(ui.Deps{
		Identity:  identity,
		Transport: client,
		Tracker:   tracker,
		Store:     store,
		Messages:  messages,
		Presence:  presenceCh,
		Toasts:    toasts,
	})

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithReportFocus())
	if _, err := program.Run(); err != nil {
		log.Fatalf("ui: %v", err)
	}
	bus.Close()
}
