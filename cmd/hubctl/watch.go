package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gookit/color"
	"github.com/urfave/cli/v2"

	"sandwich_hub/internal/client"
	"sandwich_hub/internal/events"
)

const reconnectDelay = 2 * time.Second

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "follow live activity as a user",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8000"},
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"HUBCTL_PASSWORD"}},
		},
		Action: func(c *cli.Context) error {
			api, tok, err := client.Login(c.Context, c.String("url"), c.String("email"), c.String("password"), nil)
			if err != nil {
				return err
			}
			color.Info.Printf("watching as %s\n", tok.User.DisplayName)

			view := client.NewView(api)
			for {
				err := api.Subscribe(c.Context, func(ev events.Event) { show(c.Context, view, ev) })
				if errors.Is(err, context.Canceled) || c.Context.Err() != nil {
					return nil
				}
				color.Warn.Printf("disconnected: %v\n", err)
				// Whatever happened while offline was not delivered.
				view.Invalidate()
				select {
				case <-c.Context.Done():
					return nil
				case <-time.After(reconnectDelay):
				}
			}
		},
	}
}

func show(ctx context.Context, view *client.View, ev events.Event) {
	view.Apply(ev)
	stamp := time.UnixMilli(ev.TS).Format("15:04:05")

	switch ev.Name {
	case events.MessageCreated, events.MessageUpdated:
		msgs, err := view.Messages(ctx, ev.ConversationID)
		if err != nil {
			color.Warn.Printf("%s conversation %d: %v\n", stamp, ev.ConversationID, err)
			return
		}
		for _, m := range msgs {
			if m.ID == ev.MessageID {
				fmt.Printf("%s %s %s\n", color.Gray.Sprint(stamp), color.Cyan.Sprintf("[%d] %s:", ev.ConversationID, m.SenderName), m.Content)
				return
			}
		}
	case events.MessageDeleted:
		fmt.Printf("%s %s\n", color.Gray.Sprint(stamp), color.Yellow.Sprintf("[%d] message %d deleted", ev.ConversationID, ev.MessageID))
	case events.ConversationDeleted:
		fmt.Printf("%s %s\n", color.Gray.Sprint(stamp), color.Red.Sprintf("[%d] conversation deleted", ev.ConversationID))
	case events.ConversationUpdated:
		fmt.Printf("%s %s\n", color.Gray.Sprint(stamp), color.Yellow.Sprintf("[%d] conversation updated", ev.ConversationID))
	case events.TaskUpdated:
		fmt.Printf("%s %s\n", color.Gray.Sprint(stamp), color.Green.Sprintf("task %d updated", ev.TaskID))
	}
}
