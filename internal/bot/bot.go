package bot

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v3"

	"blackout-watch/internal/cache"
	"blackout-watch/internal/database"
	"blackout-watch/internal/models"
	"blackout-watch/internal/schedule"
)

// conversationState tracks where a user is in the subscribe flow.
type conversationState int

const (
	stateIdle conversationState = iota
	stateAwaitingAddress
)

// Bot wraps the Telegram bot and subscription command logic.
type Bot struct {
	bot           *tele.Bot
	db            *database.DB
	cache         cache.Store
	loc           *time.Location
	intervalMin   int // default check interval for new subscriptions
	conversations map[int64]conversationState
	mu            sync.RWMutex
}

var htmlOpts = &tele.SendOptions{ParseMode: tele.ModeHTML}

// New creates and configures the Telegram bot.
func New(token string, db *database.DB, c cache.Store, loc *time.Location, intervalMin int) (*Bot, error) {
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	bot := &Bot{
		bot:           b,
		db:            db,
		cache:         c,
		loc:           loc,
		intervalMin:   intervalMin,
		conversations: make(map[int64]conversationState),
	}
	bot.registerHandlers()
	return bot, nil
}

// TeleBot exposes the underlying telebot instance for the MQ listener.
func (b *Bot) TeleBot() *tele.Bot { return b.bot }

func (b *Bot) Start() { b.bot.Start() }
func (b *Bot) Stop()  { b.bot.Stop() }

func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", func(c tele.Context) error {
		return c.Send(msgStart, htmlOpts)
	})
	b.bot.Handle("/help", func(c tele.Context) error {
		return c.Send(msgHelp, htmlOpts)
	})
	b.bot.Handle("/cancel", b.handleCancel)
	b.bot.Handle("/subscribe", b.handleSubscribe)
	b.bot.Handle("/unsubscribe", b.handleUnsubscribe)
	b.bot.Handle("/list", b.handleList)
	b.bot.Handle("/schedule", b.handleSchedule)
	b.bot.Handle("/alert", b.handleAlert)
	b.bot.Handle(tele.OnText, b.handleText)
	b.bot.Handle(&unsubBtn, b.handleUnsubCallback)
}

func (b *Bot) setState(userID int64, s conversationState) {
	b.mu.Lock()
	if s == stateIdle {
		delete(b.conversations, userID)
	} else {
		b.conversations[userID] = s
	}
	b.mu.Unlock()
}

func (b *Bot) state(userID int64) conversationState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.conversations[userID]
}

// ── Commands ────────────────────────────────────────────────────────

func (b *Bot) handleCancel(c tele.Context) error {
	b.setState(c.Sender().ID, stateIdle)
	return c.Send(msgCancelled)
}

func (b *Bot) handleSubscribe(c tele.Context) error {
	b.setState(c.Sender().ID, stateAwaitingAddress)
	return c.Send(msgSubscribePrompt, htmlOpts)
}

func (b *Bot) handleText(c tele.Context) error {
	userID := c.Sender().ID
	if b.state(userID) != stateAwaitingAddress {
		return c.Send(msgUnknownCommand)
	}

	addr, ok := parseAddress(c.Text())
	if !ok {
		return c.Send(msgBadAddress, htmlOpts)
	}

	sub, err := b.db.CreateSubscription(context.Background(), userID, addr, b.intervalMin, 0)
	if err != nil {
		log.Printf("[bot] create subscription for user %d: %v", userID, err)
		return c.Send(msgError)
	}
	b.setState(userID, stateIdle)
	return c.Send(fmt.Sprintf(msgSubscribed, sub.Address().Display()), htmlOpts)
}

func (b *Bot) handleList(c tele.Context) error {
	subs, err := b.db.ListByUser(context.Background(), c.Sender().ID)
	if err != nil {
		log.Printf("[bot] list subscriptions: %v", err)
		return c.Send(msgError)
	}
	if len(subs) == 0 {
		return c.Send(msgNoSubsYet)
	}

	var sb strings.Builder
	sb.WriteString("<b>Ваші підписки:</b>\n")
	for _, s := range subs {
		fmt.Fprintf(&sb, "\n📍 %s", s.Address().Display())
		if s.Group != "" {
			fmt.Fprintf(&sb, " (група %s)", s.Group)
		}
		if s.LeadTimeMin > 0 {
			fmt.Fprintf(&sb, "\n   ⏰ попередження за %d хв", s.LeadTimeMin)
		}
	}
	return c.Send(sb.String(), htmlOpts)
}

func (b *Bot) handleSchedule(c tele.Context) error {
	ctx := context.Background()
	subs, err := b.db.ListByUser(ctx, c.Sender().ID)
	if err != nil {
		log.Printf("[bot] list subscriptions: %v", err)
		return c.Send(msgError)
	}
	if len(subs) == 0 {
		return c.Send(msgNoSubsYet)
	}

	for _, s := range subs {
		entry, ok, err := b.cache.Get(ctx, s.Address())
		if err != nil {
			log.Printf("[bot] read cache for %s: %v", s.Address().Display(), err)
			return c.Send(msgError)
		}
		if !ok || entry.Snapshot == nil {
			if err := c.Send(fmt.Sprintf("📍 %s\n%s", s.Address().Display(), msgNoScheduleYet)); err != nil {
				return err
			}
			continue
		}
		if err := c.Send(formatSchedule(s, entry.Snapshot, b.loc), htmlOpts); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) handleAlert(c tele.Context) error {
	payload := strings.TrimSpace(c.Message().Payload)
	minutes, err := strconv.Atoi(payload)
	if err != nil || minutes < 0 || minutes > schedule.MinutesPerDay {
		return c.Send(msgAlertUsage, htmlOpts)
	}

	if err := b.db.UpdateLeadTime(context.Background(), c.Sender().ID, minutes); err != nil {
		log.Printf("[bot] update lead time: %v", err)
		return c.Send(msgError)
	}
	if minutes == 0 {
		return c.Send(msgAlertDisabled)
	}
	return c.Send(fmt.Sprintf(msgAlertEnabled, minutes))
}

// ── /unsubscribe ────────────────────────────────────────────────────

var unsubBtn = tele.InlineButton{Unique: "unsub"}

func (b *Bot) handleUnsubscribe(c tele.Context) error {
	subs, err := b.db.ListByUser(context.Background(), c.Sender().ID)
	if err != nil {
		log.Printf("[bot] list subscriptions: %v", err)
		return c.Send(msgError)
	}
	if len(subs) == 0 {
		return c.Send(msgNoSubsYet)
	}

	rows := make([][]tele.InlineButton, 0, len(subs))
	for _, s := range subs {
		btn := unsubBtn
		btn.Text = s.Address().Display()
		btn.Data = strconv.FormatInt(s.ID, 10)
		rows = append(rows, []tele.InlineButton{btn})
	}
	return c.Send(msgUnsubHeader, &tele.ReplyMarkup{InlineKeyboard: rows})
}

func (b *Bot) handleUnsubCallback(c tele.Context) error {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Data()), 10, 64)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: msgUnsubNotFound})
	}
	ok, err := b.db.DeleteSubscriptionByID(context.Background(), c.Sender().ID, id)
	if err != nil {
		log.Printf("[bot] delete subscription %d: %v", id, err)
		return c.Respond(&tele.CallbackResponse{Text: msgError})
	}
	if !ok {
		return c.Respond(&tele.CallbackResponse{Text: msgUnsubNotFound})
	}
	if err := c.Respond(&tele.CallbackResponse{Text: msgUnsubscribed}); err != nil {
		return err
	}
	return c.Edit(msgUnsubscribed)
}

// ── Helpers ─────────────────────────────────────────────────────────

// parseAddress splits "Місто, вулиця, будинок" into an address key.
func parseAddress(text string) (models.AddressKey, bool) {
	parts := strings.Split(text, ",")
	if len(parts) != 3 {
		return models.AddressKey{}, false
	}
	addr := models.AddressKey{
		City:   strings.TrimSpace(parts[0]),
		Street: strings.TrimSpace(parts[1]),
		House:  strings.TrimSpace(parts[2]),
	}
	if addr.City == "" || addr.Street == "" || addr.House == "" {
		return models.AddressKey{}, false
	}
	return addr, true
}

// formatSchedule renders the cached schedule for one subscription.
func formatSchedule(sub *models.Subscription, snap *schedule.Snapshot, loc *time.Location) string {
	var sb strings.Builder
	sb.WriteString("📍 <b>")
	sb.WriteString(sub.Address().Display())
	sb.WriteString("</b>")
	if sub.Group != "" {
		fmt.Fprintf(&sb, " (група %s)", sub.Group)
	}

	wroteAny := false
	for _, date := range schedule.SortedDates(snap.Schedule) {
		windows := schedule.MergeSlots(snap.Schedule[date])
		if len(windows) == 0 {
			continue
		}
		wroteAny = true
		fmt.Fprintf(&sb, "\n\n📅 <b>%s</b>", date)
		for _, w := range windows {
			fmt.Fprintf(&sb, "\n⚡️ %s–%s",
				schedule.FormatMinutes(w.StartMin), schedule.FormatMinutes(w.EndMin))
		}
	}
	if !wroteAny {
		sb.WriteString("\n\n✅ Відключень не заплановано")
	}

	if ev, ok := schedule.NextEvent(snap, time.Now(), loc); ok && ev.Kind == schedule.OutageStart {
		fmt.Fprintf(&sb, "\n\n🕓 Наступне відключення: %s", ev.At.In(loc).Format("02.01 о 15:04"))
	}
	return sb.String()
}
