package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"hekumbi_chat/internal/client"
	"hekumbi_chat/internal/config"
	"hekumbi_chat/internal/entities"
	"hekumbi_chat/internal/infrastructure"
	"hekumbi_chat/internal/usecases"
)

// Operator console: follows the dashboard and, when a chat id is given as
// the first argument, joins that chat and sends each stdin line as a reply.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}
	log := infrastructure.NewLogger(infrastructure.LogConfig{Level: cfg.LogLevel, Format: "text", File: cfg.LogFile})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw := client.NewGateway(cfg.APIBaseURL, nil)
	if err := gw.Login(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		log.WithError(err).Fatal("Login failed")
	}

	hub := client.NewHub(0)
	defer hub.Close()
	printNotifications(hub)

	dash := client.NewDashboard(client.DashboardConfig{
		API:               gw,
		Dialer:            client.NewWSDialer(gw, client.SurfaceAdmin),
		Hub:               hub,
		ReconnectDelay:    cfg.ReconnectDelay,
		ReconcileInterval: cfg.ReconcileInterval,
		Log:               log,
	})
	dash.SetChatFilter(entities.ListFilter{Status: cfg.ConsoleChats})
	dash.SetQuoteFilter(entities.ListFilter{Status: cfg.ConsoleQuotes})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = dash.Run(ctx)
	}()

	if len(os.Args) > 1 {
		attach(ctx, cfg, gw, hub, os.Args[1], log)
		stop()
	} else {
		<-ctx.Done()
	}
	wg.Wait()

	if a := dash.Analytics(); a != nil {
		fmt.Printf("Chats: %d (%d activos) | Orçamentos: %d (%d pendentes) | Conversão: %d%%\n",
			a.Overview.TotalChats, a.Overview.ActiveChats, a.Overview.TotalQuotes, a.Overview.PendingQuotes, a.Overview.ConversionRate)
	}
}

func printNotifications(hub *client.Hub) {
	var mu sync.Mutex
	var last string
	hub.OnChange(func(list []client.Notification) {
		mu.Lock()
		defer mu.Unlock()
		if len(list) == 0 || list[0].ID == last {
			return
		}
		n := list[0]
		last = n.ID
		fmt.Printf("[%s] %s: %s\n", n.Type, n.Title, n.Message)
	})
}

func attach(ctx context.Context, cfg *config.Config, gw *client.Gateway, hub *client.Hub, chatID string, log logrus.FieldLogger) {
	cs := client.NewChatSync(client.ChatSyncConfig{
		Surface:           client.SurfaceAdmin,
		Chat:              entities.Chat{ID: chatID, Status: entities.ChatActive},
		API:               gw,
		Dialer:            client.NewWSDialer(gw, client.SurfaceAdmin),
		Hub:               hub,
		Responder:         usecases.NewMessageService(),
		ReconnectDelay:    cfg.ReconnectDelay,
		ReconcileInterval: cfg.ReconcileInterval,
		BotDelay:          cfg.BotReplyDelay,
		Log:               log,
	})
	if err := cs.Bootstrap(ctx); err != nil {
		log.WithError(err).Error("Failed to load chat")
		return
	}
	for _, m := range cs.Messages() {
		printMessage(m)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		err := cs.Subscribe(ctx, printMessage, func(c entities.Chat) {
			fmt.Printf("-- chat %s: %s / %s\n", c.ID, c.Status, c.Priority)
		})
		if err == nil {
			fmt.Println("-- chat encerrado")
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	var in <-chan string = lines
	for {
		select {
		case <-ctx.Done():
			cs.Wait()
			<-done
			return
		case <-done:
			cs.Wait()
			return
		case line, ok := <-in:
			if !ok {
				in = nil
				cancel()
				continue
			}
			if _, err := cs.Send(ctx, line); err != nil && !entities.IsValidation(err) {
				log.WithError(err).Warn("Message not delivered")
			}
		}
	}
}

func printMessage(m entities.Message) {
	fmt.Printf("%s %-8s %s\n", m.CreatedAt.Local().Format("15:04:05"), m.Sender, m.Content)
}
