package notify

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"vinted-monitor/services"
	"vinted-monitor/utils"
)

const helpText = `Commands:
/add_query <url> [name] - watch a catalog search
/queries - list watched searches
/remove_query <n|all> - stop watching a search
/add_country <code> - accept sellers from a country
/remove_country <code> - drop a country from the allowlist
/allowlist - show accepted countries`

// Bot is the part of *tgbotapi.BotAPI used by the command loop.
type Bot interface {
	Sender
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

// CommandRouter answers chat commands from the configured chat.
type CommandRouter struct {
	bot       Bot
	chatID    int64
	queries   *services.QueryService
	allowlist *services.AllowlistService
	logger    *utils.Logger

	idleDelay time.Duration
}

// NewCommandRouter creates a router serving chatID only.
func NewCommandRouter(bot Bot, chatID int64, queries *services.QueryService, allowlist *services.AllowlistService, logger *utils.Logger) *CommandRouter {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &CommandRouter{
		bot:       bot,
		chatID:    chatID,
		queries:   queries,
		allowlist: allowlist,
		logger:    logger,
		idleDelay: 200 * time.Millisecond,
	}
}

// Run long-polls for updates until ctx is cancelled.
func (r *CommandRouter) Run(ctx context.Context) error {
	offset := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30
		updates, err := r.bot.GetUpdates(u)
		if err != nil {
			delay := retryDelayFromError(err)
			r.logger.Warn("[telegram] getUpdates failed: %v; retry in %v", err, delay)
			if !sleepCtx(ctx, delay) {
				return nil
			}
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			r.HandleUpdate(ctx, upd)
		}
		if len(updates) == 0 && !sleepCtx(ctx, r.idleDelay) {
			return nil
		}
	}
}

// HandleUpdate replies to a single command message.
func (r *CommandRouter) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || !msg.IsCommand() {
		return
	}
	if msg.Chat == nil || msg.Chat.ID != r.chatID {
		r.logger.Debug("[telegram] Ignoring /%s from chat %d", msg.Command(), chatIDOf(msg))
		return
	}

	reply := r.Execute(ctx, msg.Command(), msg.CommandArguments())
	if reply == "" {
		return
	}
	out := tgbotapi.NewMessage(r.chatID, reply)
	out.DisableWebPagePreview = true
	if _, err := r.bot.Send(out); err != nil {
		r.logger.Error("[telegram] Reply to /%s failed: %v", msg.Command(), err)
	}
}

// Execute runs a command and returns the reply text.
func (r *CommandRouter) Execute(ctx context.Context, command, args string) string {
	args = strings.TrimSpace(args)

	switch command {
	case "start", "help":
		return helpText

	case "add_query":
		fields := strings.Fields(args)
		if len(fields) == 0 {
			return "Usage: /add_query <url> [name]"
		}
		name := strings.Join(fields[1:], " ")
		reply, added, err := r.queries.ProcessQuery(ctx, fields[0], name)
		if added {
			r.logger.Info("[telegram] %s", reply)
		}
		return r.reply(command, reply, err)

	case "queries":
		list, err := r.queries.ListQueries(ctx)
		if err != nil {
			return r.reply(command, "", err)
		}
		if list == "" {
			return "No queries yet."
		}
		return list

	case "remove_query":
		if args == "" {
			return "Usage: /remove_query <n|all>"
		}
		reply, err := r.queries.RemoveQuery(ctx, args)
		return r.reply(command, reply, err)

	case "add_country", "remove_country":
		if args == "" {
			return "Usage: /" + command + " <code>"
		}
		edit := r.allowlist.AddCountry
		if command == "remove_country" {
			edit = r.allowlist.RemoveCountry
		}
		reply, list, err := edit(ctx, args)
		if reply == "" {
			return r.reply(command, "", err)
		}
		return reply + "\n" + services.FormatAllowlist(list)

	case "allowlist":
		list, err := r.allowlist.Allowlist(ctx)
		if err != nil {
			return r.reply(command, "", err)
		}
		return services.FormatAllowlist(list)
	}

	return "Unknown command. Send /help for the list."
}

// reply keeps user-facing messages from the services and hides internal
// errors behind a generic text.
func (r *CommandRouter) reply(command, msg string, err error) string {
	if msg != "" {
		return msg
	}
	if err != nil {
		r.logger.Error("[telegram] /%s failed: %v", command, err)
	}
	return "Something went wrong, please try again."
}

func chatIDOf(m *tgbotapi.Message) int64 {
	if m.Chat == nil {
		return 0
	}
	return m.Chat.ID
}

var retryAfterRe = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

func retryDelayFromError(err error) time.Duration {
	if d, ok := retryAfter(err); ok {
		return clampDelay(d)
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "too many requests") {
		if m := retryAfterRe.FindStringSubmatch(msg); len(m) == 2 {
			if sec, convErr := strconv.Atoi(m[1]); convErr == nil {
				return clampDelay(time.Duration(sec) * time.Second)
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return time.Second
}

func clampDelay(d time.Duration) time.Duration {
	return min(max(d, time.Second), 15*time.Second)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
