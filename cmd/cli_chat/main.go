package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"support-router/internal/config"
	"support-router/internal/domain"
	"support-router/internal/transport"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	url := flag.String("url", "ws://localhost:"+cfg.HTTPPort+"/ws", "websocket endpoint")
	flag.Parse()

	logger, _ := zap.NewDevelopment(zap.IncreaseLevel(zap.WarnLevel))
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := transport.NewClient(transport.ClientOptions{
		URL:    *url,
		Policy: transport.Policy{BaseDelay: cfg.ReconnectBaseDelay, MaxAttempts: cfg.ReconnectMaxAttempts},
		Logger: logger,
		OnFrame: func(f transport.Frame) {
			switch f.Type {
			case transport.FrameChat:
				fmt.Printf("\n[%s] %s\n> ", f.AgentName, f.Content)
			case transport.FrameError:
				fmt.Printf("\n[error %s] %s\n> ", f.Code, f.Message)
			}
		},
		OnState: func(s domain.ConnectionState) {
			switch s {
			case domain.StateOpen:
				fmt.Println("[online]")
			case domain.StateReconnecting:
				fmt.Println("[reconnecting...]")
			}
		},
	})

	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	fmt.Println("Support chat. Type a message, or 'exit' to quit.")
	lines := make(chan string)
	go func() {
		reader := bufio.NewScanner(os.Stdin)
		for reader.Scan() {
			lines <- reader.Text()
		}
		close(lines)
	}()

	fmt.Print("> ")
	for {
		select {
		case <-client.Exhausted():
			fmt.Println("\n[offline] could not reach the server, giving up")
			<-done
			os.Exit(1)
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				fmt.Printf("\nconnection ended: %v\n", err)
			}
			return
		case line, ok := <-lines:
			text := strings.TrimSpace(line)
			if !ok || text == "exit" || text == "quit" {
				_ = client.Close()
				<-done
				return
			}
			if text == "" {
				fmt.Print("> ")
				continue
			}
			if _, err := client.Send(text); err != nil {
				fmt.Printf("[not sent: %v]\n> ", err)
			}
		}
	}
}
