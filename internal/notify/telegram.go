// Package notify delivers signal approvals and desk status over Telegram.
package notify

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"crypto-trade-desk/internal/approval"
	"crypto-trade-desk/internal/domain"
	"crypto-trade-desk/internal/storage"
)

const (
	callbackApprovePrefix = "signal_approve_"
	callbackRejectPrefix  = "signal_reject_"
)

// Config holds Telegram bot settings.
type Config struct {
	Token  string
	ChatID int64 // operator chat receiving approval requests
}

// Notifier posts pending signals with approve/reject buttons and serves the
// desk status commands. Decisions flow through the approval gateway, so a
// stale button press on an expired or decided signal is answered, not applied.
type Notifier struct {
	bot       *bot.Bot
	gateway   *approval.Gateway
	signals   storage.SignalStore
	trades    storage.TradeStore
	portfolio storage.PortfolioStore
	chatID    int64
	logger    *log.Logger

	// open trade ids seen on the previous poster pass; trades that leave
	// this set get a close announcement
	openSeen map[string]struct{}
}

// NewNotifier creates the Telegram notifier and registers its handlers.
func NewNotifier(cfg Config, gateway *approval.Gateway, signals storage.SignalStore, trades storage.TradeStore, portfolio storage.PortfolioStore, logger *log.Logger) (*Notifier, error) {
	if logger == nil {
		logger = log.Default()
	}

	n := &Notifier{
		gateway:   gateway,
		signals:   signals,
		trades:    trades,
		portfolio: portfolio,
		chatID:    cfg.ChatID,
		logger:    logger,
	}

	b, err := bot.New(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	n.bot = b

	b.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, n.startHandler)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/status", bot.MatchTypeExact, n.statusHandler)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/portfolio", bot.MatchTypeExact, n.portfolioHandler)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/signals", bot.MatchTypeExact, n.signalsHandler)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "signal_", bot.MatchTypePrefix, n.callbackHandler)

	return n, nil
}

// Run processes Telegram updates until the context is canceled.
func (n *Notifier) Run(ctx context.Context) {
	n.logger.Printf("[notify] telegram bot started")
	n.bot.Start(ctx)
	n.logger.Printf("[notify] telegram bot stopped")
}

// NotifySignal posts an approval request for a pending signal and binds the
// message id to the signal for later callback routing.
func (n *Notifier) NotifySignal(ctx context.Context, sig *domain.Signal, now time.Time) error {
	msg, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: n.chatID,
		Text:   formatSignalMessage(sig),
		ReplyMarkup: &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{
				{
					{Text: "✅ Approve", CallbackData: callbackApprovePrefix + sig.ID},
					{Text: "❌ Reject", CallbackData: callbackRejectPrefix + sig.ID},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("send signal message: %w", err)
	}

	if err := n.signals.SetTelegramMessageID(ctx, sig.ID, int64(msg.ID), now); err != nil {
		return fmt.Errorf("bind message %d to signal %s: %w", msg.ID, sig.ID, err)
	}

	n.logger.Printf("[notify] signal %s posted as message %d", sig.ID, msg.ID)
	return nil
}

// PostPending posts every pending signal that has no approval message yet.
// Returns the number of signals posted.
func (n *Notifier) PostPending(ctx context.Context, now time.Time) (int, error) {
	pending, err := n.signals.ListByStatus(ctx, domain.SignalStatusPending)
	if err != nil {
		return 0, fmt.Errorf("list pending signals: %w", err)
	}

	posted := 0
	for _, sig := range pending {
		if sig.TelegramMessageID != nil {
			continue
		}
		if err := n.NotifySignal(ctx, sig, now); err != nil {
			n.logger.Printf("[notify] post signal %s: %v", sig.ID, err)
			continue
		}
		posted++
	}
	return posted, nil
}

// RunPoster polls for unposted pending signals on the given interval until
// the context is canceled.
func (n *Notifier) RunPoster(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := n.PostPending(ctx, now.UTC()); err != nil {
				n.logger.Printf("[notify] poster pass failed: %v", err)
			}
			if err := n.announceClosed(ctx); err != nil {
				n.logger.Printf("[notify] close announcements failed: %v", err)
			}
		}
	}
}

// announceClosed reports trades that left the open set since the previous
// pass. The first pass only seeds the set, so trades settled while the bot
// was down are not replayed.
func (n *Notifier) announceClosed(ctx context.Context) error {
	open, err := n.trades.ListOpen(ctx)
	if err != nil {
		return fmt.Errorf("list open trades: %w", err)
	}

	current := make(map[string]struct{}, len(open))
	for _, tr := range open {
		current[tr.ID] = struct{}{}
	}

	if n.openSeen != nil {
		for _, id := range closedSince(n.openSeen, current) {
			trade, err := n.trades.GetByID(ctx, id)
			if err != nil {
				n.logger.Printf("[notify] load closed trade %s: %v", id, err)
				continue
			}
			if !trade.Status.ClosesTrade() {
				continue
			}
			if err := n.NotifyTradeClosed(ctx, trade); err != nil {
				n.logger.Printf("[notify] announce trade %s: %v", id, err)
			}
		}
	}

	n.openSeen = current
	return nil
}

// closedSince returns the ids present in prev but absent from current,
// sorted for deterministic announcement order.
func closedSince(prev, current map[string]struct{}) []string {
	var gone []string
	for id := range prev {
		if _, still := current[id]; !still {
			gone = append(gone, id)
		}
	}
	sort.Strings(gone)
	return gone
}

// NotifyTradeClosed reports a settled trade to the operator chat.
func (n *Notifier) NotifyTradeClosed(ctx context.Context, trade *domain.Trade) error {
	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: n.chatID,
		Text:   formatTradeClosedMessage(trade),
	})
	if err != nil {
		return fmt.Errorf("send trade close message: %w", err)
	}
	return nil
}

func (n *Notifier) callbackHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	query := update.CallbackQuery
	approve, signalID, ok := parseCallback(query.Data)
	if !ok {
		n.answerCallback(ctx, b, query.ID, "Unrecognized action")
		return
	}

	operator := operatorName(query.From)
	now := time.Now().UTC()

	var applied bool
	var err error
	if approve {
		applied, err = n.gateway.Approve(ctx, signalID, operator, now)
	} else {
		applied, err = n.gateway.Reject(ctx, signalID, operator, now)
	}
	if err != nil {
		n.logger.Printf("[notify] decision on %s failed: %v", signalID, err)
		n.answerCallback(ctx, b, query.ID, "Decision failed, try again")
		return
	}

	if !applied {
		n.answerCallback(ctx, b, query.ID, "Signal already decided or expired")
		n.refreshMessage(ctx, b, query, signalID)
		return
	}

	verdict := "rejected"
	if approve {
		verdict = "approved"
	}
	n.answerCallback(ctx, b, query.ID, "Signal "+verdict)
	n.refreshMessage(ctx, b, query, signalID)
}

// refreshMessage rewrites the approval message with the signal's current
// state and drops the buttons.
func (n *Notifier) refreshMessage(ctx context.Context, b *bot.Bot, query *models.CallbackQuery, signalID string) {
	sig, err := n.signals.GetByID(ctx, signalID)
	if err != nil {
		n.logger.Printf("[notify] reload signal %s: %v", signalID, err)
		return
	}

	if query.Message.Message == nil {
		return
	}
	_, err = b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    query.Message.Message.Chat.ID,
		MessageID: query.Message.Message.ID,
		Text:      formatSignalMessage(sig),
	})
	if err != nil {
		n.logger.Printf("[notify] edit message for %s: %v", signalID, err)
	}
}

func (n *Notifier) answerCallback(ctx context.Context, b *bot.Bot, queryID, text string) {
	_, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: queryID,
		Text:            text,
	})
	if err != nil {
		n.logger.Printf("[notify] answer callback: %v", err)
	}
}

func (n *Notifier) startHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text: "Trade desk bot.\n" +
			"/status - open positions and realized P&L\n" +
			"/portfolio - latest balance snapshot\n" +
			"/signals - signals awaiting approval",
	})
}

func (n *Notifier) statusHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	open, err := n.trades.ListOpen(ctx)
	if err != nil {
		n.replyError(ctx, b, update, err)
		return
	}
	total, err := n.trades.TotalPnl(ctx, nil)
	if err != nil {
		n.replyError(ctx, b, update, err)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Open positions: %d\nRealized P&L: %s\n", len(open), total)
	for _, tr := range open {
		fmt.Fprintf(&sb, "\n%s %s qty=%s entry=%s sl=%s tp=%s",
			tr.Side, tr.Symbol, tr.Quantity, tr.EntryPrice, tr.StopLossPrice, tr.TakeProfitPrice)
	}

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   sb.String(),
	})
}

func (n *Notifier) portfolioHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	snap, err := n.portfolio.Latest(ctx, "USDT")
	if err != nil {
		n.replyError(ctx, b, update, err)
		return
	}

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text: fmt.Sprintf("USDT balance\nTotal: %s\nAvailable: %s\nLocked: %s\nAs of %s",
			snap.TotalBalance, snap.AvailableBalance, snap.LockedBalance,
			snap.Timestamp.Format(time.RFC3339)),
	})
}

func (n *Notifier) signalsHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	pending, err := n.signals.ListByStatus(ctx, domain.SignalStatusPending)
	if err != nil {
		n.replyError(ctx, b, update, err)
		return
	}

	if len(pending) == 0 {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: update.Message.Chat.ID,
			Text:   "No signals awaiting approval.",
		})
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Pending signals: %d\n", len(pending))
	for _, sig := range pending {
		fmt.Fprintf(&sb, "\n%s %s conf=%s entry=%s", sig.SignalType, sig.Symbol, sig.Confidence, sig.EntryPrice)
	}

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   sb.String(),
	})
}

func (n *Notifier) replyError(ctx context.Context, b *bot.Bot, update *models.Update, err error) {
	n.logger.Printf("[notify] command failed: %v", err)
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   "Command failed, see logs.",
	})
}

// parseCallback splits a button payload into decision and signal id.
func parseCallback(data string) (approve bool, signalID string, ok bool) {
	switch {
	case strings.HasPrefix(data, callbackApprovePrefix):
		return true, strings.TrimPrefix(data, callbackApprovePrefix), true
	case strings.HasPrefix(data, callbackRejectPrefix):
		return false, strings.TrimPrefix(data, callbackRejectPrefix), true
	}
	return false, "", false
}

// operatorName prefers the username, falling back to the numeric id.
func operatorName(u models.User) string {
	if u.Username != "" {
		return u.Username
	}
	return strconv.FormatInt(u.ID, 10)
}

func formatSignalMessage(sig *domain.Signal) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Signal %s\n", sig.Status)
	fmt.Fprintf(&sb, "%s %s\n", sig.SignalType, sig.Symbol)
	fmt.Fprintf(&sb, "Confidence: %s%%\n", sig.Confidence)
	fmt.Fprintf(&sb, "Entry: %s\nStop loss: %s\nTake profit: %s\n",
		sig.EntryPrice, sig.StopLossPrice, sig.TakeProfitPrice)
	if sig.AnalysisSummary != "" {
		fmt.Fprintf(&sb, "\n%s\n", sig.AnalysisSummary)
	}
	if sig.ApprovedBy != nil {
		fmt.Fprintf(&sb, "\nDecided by %s", *sig.ApprovedBy)
	}
	if sig.Status == domain.SignalStatusPending && sig.ExpiresAt != nil {
		fmt.Fprintf(&sb, "\nExpires %s", sig.ExpiresAt.UTC().Format(time.RFC3339))
	}
	return sb.String()
}

func formatTradeClosedMessage(trade *domain.Trade) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Trade closed: %s\n", trade.Status)
	fmt.Fprintf(&sb, "%s %s qty=%s\n", trade.Side, trade.Symbol, trade.Quantity)
	fmt.Fprintf(&sb, "Entry: %s", trade.EntryPrice)
	if trade.ExitPrice != nil {
		fmt.Fprintf(&sb, "\nExit: %s", trade.ExitPrice)
	}
	if trade.PnlAmount != nil && trade.PnlPercentage != nil {
		fmt.Fprintf(&sb, "\nP&L: %s (%s%%)", trade.PnlAmount, trade.PnlPercentage)
	}
	return sb.String()
}
