package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/harshhpatil/recipegramapp-sub000/internal/client"
	"github.com/harshhpatil/recipegramapp-sub000/internal/event"
	"github.com/harshhpatil/recipegramapp-sub000/internal/model"

	"go.uber.org/zap"
)

// dmclient is a terminal client for one conversation. Every stdin line is
// sent to -to; incoming messages are printed as they arrive.
func main() {
	gatewayURL := flag.String("gateway", "ws://localhost:8081/ws", "realtime gateway url")
	apiURL := flag.String("api", "http://localhost:8080", "REST facade base url")
	token := flag.String("token", os.Getenv("DM_TOKEN"), "bearer token")
	self := flag.String("me", "", "your user id")
	partner := flag.String("to", "", "partner user id")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if *token == "" || *self == "" || *partner == "" {
		logger.Fatal("-token, -me and -to are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var stream client.EventStream
	gw, err := client.DialGateway(ctx, *gatewayURL, *token, logger)
	if err != nil {
		logger.Warn("gateway unavailable, sending over REST", zap.Error(err))
	} else {
		defer gw.Close()
		stream = gw
	}

	session := client.NewSession(*self, stream, client.NewREST(*apiURL, *token, nil), logger)
	session.OnEvent(func(ev event.WsEvent) {
		switch ev.Event {
		case event.EventReceiveMessage:
			var msg model.Message
			if ev.Decode(&msg) == nil && msg.SenderID == *partner {
				fmt.Printf("%s: %s\n", msg.SenderID, msg.Content)
			}
		case event.EventMessageError:
			var e model.MessageError
			if ev.Decode(&e) == nil {
				fmt.Printf("! %s\n", e.Message)
			}
		}
	})

	if err := session.Open(ctx, *partner); err != nil {
		logger.Fatal("failed to open conversation", zap.Error(err))
	}
	for _, m := range session.Messages(*partner) {
		fmt.Printf("%s: %s\n", m.SenderID, m.Content)
	}

	if stream != nil {
		go func() {
			if err := session.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("gateway closed", zap.Error(err))
			}
		}()
	}

	lines := bufio.NewScanner(os.Stdin)
	for lines.Scan() {
		text := strings.TrimSpace(lines.Text())
		if text == "" {
			continue
		}
		if text == "/retry" {
			for _, m := range session.Messages(*partner) {
				if !m.Failed {
					continue
				}
				if _, err := session.Retry(ctx, *partner, m.TempID); err != nil {
					fmt.Printf("! %v\n", err)
				}
			}
			continue
		}
		if _, err := session.Send(ctx, client.Draft{RecipientID: *partner, Content: text}); err != nil {
			fmt.Printf("! %v\n", err)
		}
	}
}
