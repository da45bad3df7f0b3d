package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/target/modpipe/internal/bootstrap"
	"github.com/target/modpipe/internal/data"
	"github.com/target/modpipe/internal/domain/model"
	"github.com/target/modpipe/internal/service"
)

const defaultClientCommandTimeout = 2 * time.Minute

type clientCreateOptions struct {
	Name       string
	WebhookURL string
}

type clientIDOptions struct {
	ID string
}

type clientListOptions struct {
	Limit  int
	Offset int
}

// newClientService wires the encrypted client repo for CLI commands. The
// encryption key must match the one the API server runs with or existing
// secrets will fail to decrypt.
func newClientService(cmdCtx *commandContext, db *sql.DB) *service.ClientService {
	encryptor := bootstrap.CreateEncryptor(cmdCtx.Config.SecretsEncryptionKey, cmdCtx.Logger)
	return service.MustNewClientService(service.ClientServiceOptions{
		Repo:   data.NewClientRepo(db, encryptor),
		Logger: cmdCtx.Logger,
	})
}

func runClientCreate(cmdCtx *commandContext, args []string) error {
	opts, err := parseClientCreateFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, defaultClientCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		svc := newClientService(cmdCtx, db)

		registered, regErr := svc.Register(ctx, &model.CreateClientRequest{
			Name:       opts.Name,
			WebhookURL: opts.WebhookURL,
		})
		if regErr != nil {
			return fmt.Errorf("register client: %w", regErr)
		}

		return printCredentials(registered, "Store these credentials now; the secret is not shown again.")
	})
}

func runClientRotateSecret(cmdCtx *commandContext, args []string) error {
	opts, err := parseClientIDFlags("client-rotate-secret", args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, defaultClientCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		svc := newClientService(cmdCtx, db)

		rotated, rotErr := svc.RotateSecret(ctx, opts.ID)
		if rotErr != nil {
			return fmt.Errorf("rotate secret: %w", rotErr)
		}

		return printCredentials(rotated, "Deliveries signed with the previous secret remain verifiable during the grace window.")
	})
}

func runClientSuspend(cmdCtx *commandContext, args []string) error {
	return runClientSetStatus(cmdCtx, args, "client-suspend", func(ctx context.Context, svc *service.ClientService, id string) (*model.Client, error) {
		return svc.Suspend(ctx, id)
	})
}

func runClientResume(cmdCtx *commandContext, args []string) error {
	return runClientSetStatus(cmdCtx, args, "client-resume", func(ctx context.Context, svc *service.ClientService, id string) (*model.Client, error) {
		return svc.Resume(ctx, id)
	})
}

func runClientSetStatus(
	cmdCtx *commandContext,
	args []string,
	cmdName string,
	apply func(context.Context, *service.ClientService, string) (*model.Client, error),
) error {
	opts, err := parseClientIDFlags(cmdName, args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, defaultClientCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		svc := newClientService(cmdCtx, db)

		client, applyErr := apply(ctx, svc, opts.ID)
		if applyErr != nil {
			return applyErr
		}

		return writef(os.Stdout, "client %s (%s) is now %s\n", client.ID, client.Name, client.Status)
	})
}

func runClientList(cmdCtx *commandContext, args []string) error {
	opts, err := parseClientListFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, defaultClientCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		svc := newClientService(cmdCtx, db)

		clients, listErr := svc.List(ctx, opts.Limit, opts.Offset)
		if listErr != nil {
			return fmt.Errorf("list clients: %w", listErr)
		}

		if len(clients) == 0 {
			return writeln(os.Stdout, "(no clients)")
		}
		return printClientTable(clients)
	})
}

func printClientTable(clients []*model.Client) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(w, "ID\tName\tStatus\tSecret Ver\tWebhook URL\tCreated"); err != nil {
		return err
	}
	for _, c := range clients {
		if err := writef(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			c.ID,
			c.Name,
			c.Status,
			c.SecretVersion,
			c.WebhookURL,
			c.CreatedAt.Format(time.RFC3339),
		); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush client table: %w", err)
	}
	return nil
}

func printCredentials(registered *service.RegisteredClient, note string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writef(w, "ID\t%s\n", registered.Client.ID); err != nil {
		return err
	}
	if err := writef(w, "Name\t%s\n", registered.Client.Name); err != nil {
		return err
	}
	if err := writef(w, "API Key\t%s\n", registered.Client.APIKey); err != nil {
		return err
	}
	if err := writef(w, "HMAC Secret\t%s\n", registered.HMACSecret); err != nil {
		return err
	}
	if err := writef(w, "Secret Version\t%d\n", registered.Client.SecretVersion); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush credentials: %w", err)
	}
	return writef(os.Stdout, "\n%s\n", note)
}

func parseClientCreateFlags(args []string) (clientCreateOptions, error) {
	fs := flag.NewFlagSet("client-create", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts clientCreateOptions
	fs.StringVar(&opts.Name, "name", "", "Unique client name (required)")
	fs.StringVar(&opts.WebhookURL, "webhook-url", "", "Endpoint that receives moderation verdicts (required)")

	if err := fs.Parse(args); err != nil {
		return clientCreateOptions{}, err
	}

	if opts.Name == "" {
		return clientCreateOptions{}, errors.New("--name is required")
	}
	if opts.WebhookURL == "" {
		return clientCreateOptions{}, errors.New("--webhook-url is required")
	}
	return opts, nil
}

func parseClientIDFlags(cmdName string, args []string) (clientIDOptions, error) {
	fs := flag.NewFlagSet(cmdName, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts clientIDOptions
	fs.StringVar(&opts.ID, "id", "", "Client id (required)")

	if err := fs.Parse(args); err != nil {
		return clientIDOptions{}, err
	}

	if opts.ID == "" {
		return clientIDOptions{}, errors.New("--id is required")
	}
	return opts, nil
}

func parseClientListFlags(args []string) (clientListOptions, error) {
	fs := flag.NewFlagSet("client-list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := clientListOptions{Limit: 50}
	fs.IntVar(&opts.Limit, "limit", 50, "Maximum number of clients to list")
	fs.IntVar(&opts.Offset, "offset", 0, "Number of clients to skip")

	if err := fs.Parse(args); err != nil {
		return clientListOptions{}, err
	}

	if opts.Limit < 1 {
		return clientListOptions{}, errors.New("--limit must be at least 1")
	}
	if opts.Offset < 0 {
		return clientListOptions{}, errors.New("--offset must not be negative")
	}
	return opts, nil
}
