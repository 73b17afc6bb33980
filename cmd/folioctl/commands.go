package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/google/subcommands"

	"cryptofolio/internal/app"
	"cryptofolio/internal/config"
	"cryptofolio/internal/logger"
	"cryptofolio/internal/models"
	"cryptofolio/internal/price"
	"cryptofolio/internal/store/postgres"
)

func loadRoot() (*app.Root, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.New(cfg)
}

// --- migrateCmd ---

type migrateCmd struct{}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "applies, reverts or reports database migrations" }
func (*migrateCmd) Usage() string {
	return `migrate up|down|version

up applies every pending migration, down reverts the latest one and version
prints the current schema version. Uses the DATABASE_* settings.
`
}
func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (c *migrateCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return subcommands.ExitFailure
	}
	log, err := logger.New(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		return subcommands.ExitFailure
	}
	defer log.Sync()

	db, err := postgres.Connect(cfg.Database.DSN(), log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to database: %v\n", err)
		return subcommands.ExitFailure
	}
	defer db.Close()

	path := cfg.Database.MigrationsPath
	switch f.Arg(0) {
	case "up":
		err = postgres.MigrateUp(db.DB(), path, log)
	case "down":
		err = postgres.MigrateDown(db.DB(), path, log)
	case "version":
		var version uint
		var dirty bool
		version, dirty, err = postgres.MigrationVersion(db.DB(), path)
		if err == nil && version == 0 {
			fmt.Println("no migrations applied")
		} else if err == nil {
			fmt.Printf("version %d (dirty: %t)\n", version, dirty)
		}
	default:
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running migration %s: %v\n", f.Arg(0), err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// --- adduserCmd ---

type adduserCmd struct {
	email    string
	password string
	name     string
}

func (*adduserCmd) Name() string     { return "adduser" }
func (*adduserCmd) Synopsis() string { return "creates a user account" }
func (*adduserCmd) Usage() string {
	return `adduser -email <email> -password <password> [-name <display name>]

Creates an account directly in the store, bypassing the signup password policy.
`
}
func (c *adduserCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.email, "email", "", "Email address of the new user.")
	f.StringVar(&c.password, "password", "", "Password of the new user.")
	f.StringVar(&c.name, "name", "", "Optional display name.")
}

func (c *adduserCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.email == "" || c.password == "" {
		fmt.Fprintln(os.Stderr, "Error: -email and -password flags are required.")
		return subcommands.ExitUsageError
	}

	root, err := loadRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing: %v\n", err)
		return subcommands.ExitFailure
	}
	defer root.Cleanup()

	user, err := root.Auth.CreateUser(ctx, c.email, c.password, c.name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating user: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Created user %s (%s)\n", user.Email, user.ID)
	return subcommands.ExitSuccess
}

// --- priceCmd ---

type priceCmd struct{}

func (*priceCmd) Name() string     { return "price" }
func (*priceCmd) Synopsis() string { return "prints the live price of a coin" }
func (*priceCmd) Usage() string {
	return `price <coin>

Coin may be a CoinGecko id or a ticker from the catalog. Prints N/A when the
price cannot be obtained.
`
}
func (*priceCmd) SetFlags(*flag.FlagSet) {}

func (c *priceCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}

	root, err := loadRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing: %v\n", err)
		return subcommands.ExitFailure
	}
	defer root.Cleanup()

	coin := root.Coins.Resolve(f.Arg(0))
	p := root.Prices.LivePrice(ctx, coin)
	fmt.Printf("%s: %s\n", root.Coins.DisplayName(coin), models.FormatPrice(p, root.Prices.Currency()))
	if p == 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// --- historyCmd ---

type historyCmd struct {
	currency string
	raw      bool
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "summarizes the price history of a coin" }
func (*historyCmd) Usage() string {
	return `history [-currency <code>] [-json] <coin> <days>

Prints first, last, low, high, change and the moving average over the last
<days> days. With -json the raw [timestamp, price] pairs are printed instead.
`
}
func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.currency, "currency", "", "Quote currency, defaults to PRICE_CURRENCY.")
	f.BoolVar(&c.raw, "json", false, "Print the raw series as JSON.")
}

func (c *historyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	days, err := strconv.Atoi(f.Arg(1))
	if err != nil || days < 1 {
		fmt.Fprintln(os.Stderr, "Error: days must be a positive integer.")
		return subcommands.ExitUsageError
	}

	root, err := loadRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing: %v\n", err)
		return subcommands.ExitFailure
	}
	defer root.Cleanup()

	coin := root.Coins.Resolve(f.Arg(0))
	currency := c.currency
	if currency == "" {
		currency = root.Prices.Currency()
	}

	series, err := root.Prices.HistoricalSeries(ctx, coin, days, currency)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	if c.raw {
		if err := json.NewEncoder(os.Stdout).Encode(series); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding series: %v\n", err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}

	sum, ok := price.Summarize(series, price.DefaultSMAPeriod)
	if !ok {
		fmt.Printf("No price data for %s over %d days.\n", root.Coins.DisplayName(coin), days)
		return subcommands.ExitSuccess
	}
	fmt.Printf("%s over %d days (%d points)\n", root.Coins.DisplayName(coin), days, sum.Points)
	fmt.Printf("  first  %s\n", models.FormatPrice(sum.First, currency))
	fmt.Printf("  last   %s (%+.2f%%)\n", models.FormatPrice(sum.Last, currency), sum.ChangePct)
	fmt.Printf("  low    %s\n", models.FormatPrice(sum.Min, currency))
	fmt.Printf("  high   %s\n", models.FormatPrice(sum.Max, currency))
	fmt.Printf("  sma%-3d %s\n", sum.SMAPeriod, models.FormatPrice(sum.SMA, currency))
	return subcommands.ExitSuccess
}
