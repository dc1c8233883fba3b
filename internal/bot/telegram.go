package bot

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"kolscope/internal/domain"
	"kolscope/internal/service"

	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v3"
)

// TelegramBot answers /price and /impact commands and pushes high-impact
// alerts to a configured chat. It satisfies service.Notifier.
type TelegramBot struct {
	bot         *tele.Bot
	alertChatID int64
}

func StartTelegramBot(analysisService *service.AnalysisService, resolver service.PriceResolver, alertChatID int64) *TelegramBot {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Fatalf("failed to create Telegram bot: %v", err)
	}

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/price", func(c tele.Context) error {
		args := c.Args()
		if len(args) == 0 {
			return c.Send("Usage: /price WIF")
		}
		symbol := strings.ToUpper(args[0])
		target := time.Now().UTC()

		pair := resolver.SelectBestPair(context.Background(), symbol, target)
		if pair == nil {
			return c.Send(fmt.Sprintf("No pairs found for %s", symbol))
		}
		point, err := resolver.Resolve(context.Background(), symbol, target, domain.AdhocLabel(target), pair)
		if err != nil {
			return c.Send(fmt.Sprintf("Error resolving price for %s: %v", symbol, err))
		}
		msg := fmt.Sprintf("%s (%s on %s)\nPrice: $%s\nSource: %s",
			symbol, pair.PairAddress, pair.DexID, decimalOrDash(point.PriceUSD), point.Source)
		return c.Send(msg)
	})

	b.Handle("/impact", func(c tele.Context) error {
		args := c.Args()
		if len(args) == 0 {
			return c.Send("Usage: /impact WIF")
		}
		symbol := strings.ToUpper(args[0])

		results, err := analysisService.ImpactsByToken(context.Background(), symbol, 5)
		if err != nil {
			return c.Send(fmt.Sprintf("Error fetching impacts for %s: %v", symbol, err))
		}
		if len(results) == 0 {
			return c.Send(fmt.Sprintf("No impact results for %s yet", symbol))
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Recent %s mentions:\n", symbol)
		for _, res := range results {
			fmt.Fprintf(&sb, "\n@%s at %s\n%s", res.Author, res.TweetTime.Format("2006-01-02 15:04"), formatChanges(res))
		}
		return c.Send(sb.String())
	})

	log.Println("Telegram bot started")
	go b.Start()

	return &TelegramBot{bot: b, alertChatID: alertChatID}
}

// NotifyHighImpact pushes one alert message to the configured chat. A zero
// chat ID disables alerts.
func (t *TelegramBot) NotifyHighImpact(res *domain.ImpactResult) {
	if t == nil || t.alertChatID == 0 {
		return
	}
	msg := fmt.Sprintf("High impact mention of %s by @%s\n%s",
		res.Token, res.Author, formatChanges(res))
	if _, err := t.bot.Send(tele.ChatID(t.alertChatID), msg); err != nil {
		log.Printf("failed to send high-impact alert: %v", err)
	}
}

func formatChanges(res *domain.ImpactResult) string {
	var sb strings.Builder
	for _, tf := range domain.Timeframes {
		if tf.Label == domain.LabelFirstMention {
			continue
		}
		change := res.ChangeFor(tf.Label)
		if change == nil {
			fmt.Fprintf(&sb, "%s: n/a\n", tf.Label)
			continue
		}
		fmt.Fprintf(&sb, "%s: %s%%\n", tf.Label, change.StringFixed(2))
	}
	return sb.String()
}

func decimalOrDash(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return d.String()
}
