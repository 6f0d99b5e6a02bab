// Package google reads entities from a Google Sheets spreadsheet, one tab
// per entity. The first row of each tab names the record fields.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/sources"
)

// Config selects the spreadsheet and credentials. Tabs maps an entity to its
// tab name; missing entries default to the entity name.
type Config struct {
	SpreadsheetID   string
	CredentialsJSON string
	CredentialsFile string
	Tabs            map[sources.Entity]string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	tabs          map[sources.Entity]string
	logger        *log.Logger
}

var _ sources.Source = (*Client)(nil)

// New creates a read-only Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	svc, err := newSheetsService(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(cfg.SpreadsheetID),
		tabs:          cfg.Tabs,
		logger:        logger,
	}, nil
}

// newSheetsService initializes a Sheets Service from service account
// credentials: inline JSON, a file, or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context, cfg Config, logger *log.Logger) (*gsheet.Service, error) {
	credentialsFile := strings.TrimSpace(cfg.CredentialsFile)
	if cfg.CredentialsJSON == "" && credentialsFile == "" {
		credentialsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case cfg.CredentialsJSON != "":
		credentialsJSON = []byte(cfg.CredentialsJSON)
	case credentialsFile != "":
		b, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	logger.InfoContext(ctx, "Google Sheets service created", "credentials_size", len(credentialsJSON))
	return svc, nil
}

func (c *Client) tab(e sources.Entity) string {
	if name, ok := c.tabs[e]; ok && name != "" {
		return name
	}
	return string(e)
}

// readTab fetches every cell of the entity's tab. Numbers and booleans come
// back typed, dates as their displayed text.
func (c *Client) readTab(ctx context.Context, e sources.Entity) ([][]any, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := c.tab(e)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

func read[T any](ctx context.Context, c *Client, e sources.Entity) ([]T, error) {
	values, err := c.readTab(ctx, e)
	if err != nil {
		return nil, err
	}
	out, skipped := decodeRows[T](values)
	if len(skipped) > 0 {
		c.logger.WarnContext(ctx, "Skipped unreadable rows", log.FieldEntity, e, log.FieldCount, len(skipped), log.FieldError, skipped[0])
	}
	return out, nil
}

func (c *Client) Expenses(ctx context.Context, _ core.Period) ([]core.Transaction, error) {
	out, err := read[core.Transaction](ctx, c, sources.Expenses)
	if err != nil {
		return nil, err
	}
	return sources.StampType(out, core.Expense), nil
}

func (c *Client) Incomes(ctx context.Context, _ core.Period) ([]core.Transaction, error) {
	out, err := read[core.Transaction](ctx, c, sources.Incomes)
	if err != nil {
		return nil, err
	}
	return sources.StampType(out, core.Income), nil
}

func (c *Client) Categories(ctx context.Context) ([]core.Category, error) {
	return read[core.Category](ctx, c, sources.Categories)
}

func (c *Client) Subcategories(ctx context.Context) ([]core.Subcategory, error) {
	return read[core.Subcategory](ctx, c, sources.Subcategories)
}

func (c *Client) CreditCards(ctx context.Context) ([]core.CreditCard, error) {
	return read[core.CreditCard](ctx, c, sources.CreditCards)
}

func (c *Client) BankAccounts(ctx context.Context) ([]core.BankAccount, error) {
	return read[core.BankAccount](ctx, c, sources.BankAccounts)
}

func (c *Client) Transfers(ctx context.Context) ([]core.Transfer, error) {
	return read[core.Transfer](ctx, c, sources.Transfers)
}
