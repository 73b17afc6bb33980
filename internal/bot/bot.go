package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"cryptofolio/internal/config"
	"cryptofolio/internal/digest"
	"cryptofolio/internal/feed"
	"cryptofolio/internal/models"
	"cryptofolio/internal/portfolio"
	"cryptofolio/internal/price"
	"cryptofolio/internal/store"
)

const defaultChartDays = 7

type Prices interface {
	LivePrice(ctx context.Context, coin string) float64
	HistoricalSeries(ctx context.Context, coin string, days int, currency string) ([]models.PricePoint, error)
	Currency() string
}

type Subscriber interface {
	Subscribe(userID string) (<-chan models.ChangeEvent, func())
}

// Sender is the part of the Telegram API the bot writes through.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot answers commands from a single chat on behalf of a single user and
// tells that chat when the user's holdings change.
type Bot struct {
	api    *tgbotapi.BotAPI
	sender Sender
	chatID int64
	owner  models.User

	prices    Prices
	portfolio *portfolio.Service
	digest    *digest.Writer
	feed      Subscriber
	logger    *zap.Logger
}

// New authorizes with Telegram and resolves the owning user.
func New(ctx context.Context, cfg config.TelegramConfig, users store.Users, prices Prices, folio *portfolio.Service, writer *digest.Writer, sub Subscriber, logger *zap.Logger) (*Bot, error) {
	owner, err := users.UserByEmail(ctx, cfg.UserEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to find bot owner %s: %w", cfg.UserEmail, err)
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Bot{
		api:       api,
		sender:    api,
		chatID:    cfg.ChatID,
		owner:     owner,
		prices:    prices,
		portfolio: folio,
		digest:    writer,
		feed:      sub,
		logger:    logger,
	}, nil
}

// Start serves updates until ctx is done.
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Authorized on Telegram",
		zap.String("account", b.api.Self.UserName),
		zap.Int64("chat_id", b.chatID),
		zap.String("owner", b.owner.ID))

	go b.watchHoldings(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	b.handleUpdates(ctx, updates)
	return nil
}

func (b *Bot) handleUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for update := range updates {
		if update.Message == nil || !update.Message.IsCommand() {
			continue
		}
		if chat := update.Message.Chat; chat == nil || chat.ID != b.chatID {
			b.logger.Debug("Ignoring message from foreign chat")
			continue
		}
		reply := b.handleCommand(ctx, update.Message.Command(), update.Message.CommandArguments())
		b.send(reply)
	}
}

func (b *Bot) send(text string) {
	if text == "" {
		return
	}
	if _, err := b.sender.Send(tgbotapi.NewMessage(b.chatID, text)); err != nil {
		b.logger.Error("Failed to send Telegram message", zap.Error(err))
	}
}

func (b *Bot) handleCommand(ctx context.Context, command, args string) string {
	fields := strings.Fields(args)

	switch command {
	case "start", "help":
		return helpText
	case "price":
		if len(fields) == 0 {
			return "Usage: /price <coin>"
		}
		return b.priceReply(ctx, fields[0])
	case "chart":
		if len(fields) == 0 {
			return "Usage: /chart <coin> [days]"
		}
		days := defaultChartDays
		if len(fields) > 1 {
			n, err := strconv.Atoi(fields[1])
			if err != nil || n < 1 {
				return "Days must be a positive number."
			}
			days = n
		}
		return b.chartReply(ctx, fields[0], days)
	case "portfolio":
		return b.portfolioReply(ctx)
	case "holdings":
		return b.holdingsReply(ctx)
	case "history":
		month, year := "", ""
		if len(fields) > 0 {
			month = fields[0]
		}
		if len(fields) > 1 {
			year = fields[1]
		}
		return b.historyReply(ctx, month, year)
	case "digest":
		return b.digestReply(ctx)
	default:
		return "Unknown command. Try /help."
	}
}

const helpText = `Commands:
/price <coin> - live price
/chart <coin> [days] - price summary, default 7 days
/portfolio - balance, profit/loss and allocation
/holdings - your holdings
/history [month 0-11|all] [year|all] - transactions
/digest - a short written summary`

func (b *Bot) priceReply(ctx context.Context, input string) string {
	coins := b.portfolio.Coins()
	coin := coins.Resolve(input)
	p := b.prices.LivePrice(ctx, coin)
	return fmt.Sprintf("💰 %s: %s", coins.DisplayName(coin), models.FormatPrice(p, b.prices.Currency()))
}

func (b *Bot) chartReply(ctx context.Context, input string, days int) string {
	coins := b.portfolio.Coins()
	coin := coins.Resolve(input)
	name := coins.DisplayName(coin)
	cur := b.prices.Currency()

	series, err := b.prices.HistoricalSeries(ctx, coin, days, cur)
	if err != nil {
		if !errors.Is(err, price.ErrSeriesUnavailable) {
			b.logger.Error("Chart lookup failed", zap.String("coin", coin), zap.Error(err))
		}
		return fmt.Sprintf("Failed to load data for %s.", name)
	}
	sum, ok := price.Summarize(series, price.DefaultSMAPeriod)
	if !ok {
		return fmt.Sprintf("No price data for %s over %d days.", name, days)
	}
	return formatChart(name, days, cur, sum)
}

func (b *Bot) portfolioReply(ctx context.Context) string {
	sum, err := b.portfolio.Summary(ctx, b.owner.ID)
	if err != nil {
		b.logger.Error("Portfolio lookup failed", zap.Error(err))
		return "Failed to load your portfolio."
	}
	return formatSummary(b.owner.WelcomeName(), sum)
}

func (b *Bot) holdingsReply(ctx context.Context) string {
	valued, err := b.portfolio.ValuedHoldings(ctx, b.owner.ID)
	if err != nil {
		b.logger.Error("Holdings lookup failed", zap.Error(err))
		return "Failed to load your holdings."
	}
	return formatHoldings(valued, b.portfolio.Currency())
}

func (b *Bot) historyReply(ctx context.Context, month, year string) string {
	filter, err := portfolio.ParseFilter(month, year)
	if err != nil {
		return err.Error()
	}
	txs, err := b.portfolio.Transactions(ctx, b.owner.ID, filter)
	if err != nil {
		b.logger.Error("History lookup failed", zap.Error(err))
		return "Failed to load your transactions."
	}
	return formatTransactions(txs, b.portfolio.Coins())
}

func (b *Bot) digestReply(ctx context.Context) string {
	sum, err := b.portfolio.Summary(ctx, b.owner.ID)
	if err != nil {
		b.logger.Error("Portfolio lookup failed", zap.Error(err))
		return "Failed to load your portfolio."
	}
	text, err := b.digest.Write(ctx, b.owner.WelcomeName(), sum)
	if err != nil {
		b.logger.Warn("Digest fell back to snapshot", zap.Error(err))
	}
	return text
}

// watchHoldings keeps a view of the owner's holdings from the change feed
// and announces each change. A dropped subscription is rebuilt from the
// store.
func (b *Bot) watchHoldings(ctx context.Context) {
	for ctx.Err() == nil {
		events, cancel := b.feed.Subscribe(b.owner.ID)
		seed, err := b.portfolio.Holdings(ctx, b.owner.ID)
		if err != nil {
			cancel()
			b.logger.Error("Failed to seed holdings watcher", zap.Error(err))
			return
		}

		view := feed.NewReconciler(seed)
		err = view.Run(ctx, events, func(ev models.ChangeEvent, holdings []models.Holding) {
			b.send(formatChange(ev, holdings, b.portfolio.Coins()))
		})
		cancel()
		if err != nil {
			return
		}
		b.logger.Warn("Change feed dropped the bot, resubscribing")
	}
}
