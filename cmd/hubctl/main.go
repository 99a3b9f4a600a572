package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"sandwich_hub/internal/app"
	"sandwich_hub/internal/config"
	"sandwich_hub/internal/restore"
	"sandwich_hub/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cliApp := &cli.App{
		Name:  "hubctl",
		Usage: "operate a Sandwich Hub deployment",
		Commands: []*cli.Command{
			migrateCommand(),
			createUserCommand(),
			restoreCommand(),
			watchCommand(),
		},
	}
	if err := cliApp.RunContext(ctx, os.Args); err != nil {
		color.Error.Println(err)
		os.Exit(1)
	}
}

// withApp loads configuration and opens the store for one command.
func withApp(c *cli.Context, fn func(*app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	a, err := app.Open(c.Context, cfg, nil, logs.GetLoggerFromString(cfg.LogLevel))
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	return fn(a)
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "bring the database schema up to date",
		Action: func(c *cli.Context) error {
			return withApp(c, func(*app.App) error {
				color.Success.Println("schema is up to date")
				return nil
			})
		},
	}
}

func createUserCommand() *cli.Command {
	return &cli.Command{
		Name:  "create-user",
		Usage: "register an account",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"HUBCTL_PASSWORD"}},
			&cli.StringFlag{Name: "name", Usage: "display name, defaults to the email"},
			&cli.StringFlag{Name: "role", Value: "volunteer"},
			&cli.StringSliceFlag{Name: "grant", Usage: "extra capability, repeatable"},
		},
		Action: func(c *cli.Context) error {
			return withApp(c, func(a *app.App) error {
				u, err := a.Services.Users.Register(c.Context, service.RegisterInput{
					Email:       c.String("email"),
					DisplayName: c.String("name"),
					Password:    c.String("password"),
					Role:        c.String("role"),
					Permissions: c.StringSlice("grant"),
				})
				if err != nil {
					return err
				}
				color.Success.Printf("created %s (%s) as %s\n", u.Email, u.ID, u.Role)
				return nil
			})
		},
	}
}

func restoreCommand() *cli.Command {
	return &cli.Command{
		Name:      "restore",
		Usage:     "import group conversations and Core Team history from a JSON backup",
		ArgsUsage: "<backup.json>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "owner", Required: true, Usage: "id or email of the account that creates restored conversations"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("restore needs exactly one backup file", 2)
			}
			f, err := os.Open(c.Args().First())
			if err != nil {
				return err
			}
			defer f.Close()
			backup, err := restore.Decode(f)
			if err != nil {
				return err
			}

			return withApp(c, func(a *app.App) error {
				owner := c.String("owner")
				if strings.Contains(owner, "@") {
					u, err := a.Services.Users.GetByEmail(c.Context, owner)
					if err != nil {
						return fmt.Errorf("owner %s: %w", owner, err)
					}
					owner = u.ID
				}
				log := logs.GetLoggerFromString("WARN")
				rep, err := restore.New(a.Services, owner, log).Run(c.Context, backup)
				if rep != nil {
					printReport(rep)
				}
				return err
			})
		},
	}
}

func printReport(rep *restore.Report) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Item", "Count", "Detail"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.Append([]string{"groups created", fmt.Sprint(len(rep.GroupsCreated)), strings.Join(rep.GroupsCreated, ", ")})
	table.Append([]string{"groups skipped", fmt.Sprint(len(rep.GroupsSkipped)), strings.Join(rep.GroupsSkipped, ", ")})
	table.Append([]string{"members skipped", fmt.Sprint(rep.MembersSkipped), "unknown user ids"})
	table.Append([]string{"messages imported", fmt.Sprint(rep.MessagesImported), restore.CoreTeamChannel})
	table.Append([]string{"messages skipped", fmt.Sprint(rep.MessagesSkipped), "duplicates or other chats"})
	table.Render()

	if rep.ChannelCreated {
		color.Info.Printf("created the %s channel\n", restore.CoreTeamChannel)
	}
}
