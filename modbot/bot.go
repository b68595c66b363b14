package modbot

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	tele "gopkg.in/telebot.v3"
	"gopkg.in/telebot.v3/middleware"
)

type Bot struct {
	Bot       *tele.Bot
	Cfg       Config
	Registry  Registry
	Workflow  *Workflow
	Assembler *AlbumAssembler

	redis *RedisRegistry
}

func NewBot(cfg Config, settings ...tele.Settings) (*Bot, error) {
	cfg = cfg.FillDefaults()

	settings_ := tele.Settings{
		Token:       cfg.Token,
		Poller:      &tele.LongPoller{Timeout: time.Second * 60},
		Synchronous: true,
		ParseMode:   "",
		OnError:     nil,
	}
	if len(settings) > 0 {
		settings_ = settings[0]
	}
	bot, err := tele.NewBot(settings_)
	if err != nil {
		return nil, err
	}
	bot.OnError = func(err error, ctx tele.Context) {
		log.Printf("%s", err.Error())
		if ctx == nil || ctx.Chat() == nil {
			return
		}
		if err := ctx.Send("an error occurred, please try again"); err != nil {
			log.Printf("%s", err.Error())
		}
	}

	channel := Chat(cfg.ChannelId)
	channelChat, err := bot.ChatByUsername(cfg.ChannelId)
	if err != nil {
		return nil, fmt.Errorf("channel %s: %w", channel, err)
	}
	if _, err = bot.ChatMemberOf(channelChat, bot.Me); err != nil {
		return nil, fmt.Errorf("bot is not a member of channel %s: %w", channel, err)
	}

	mb := &Bot{Bot: bot, Cfg: cfg}
	if cfg.RedisAddress != "" {
		mb.redis = NewRedisRegistry(fmt.Sprintf("%s:%d", cfg.RedisPrefix, bot.Me.ID), &redis.Options{
			Addr: cfg.RedisAddress,
			DB:   cfg.RedisDatabaseNumber,
		})
		if err := mb.redis.Ping(); err != nil {
			return nil, fmt.Errorf("redis at %s: %w", cfg.RedisAddress, err)
		}
		if err := mb.redis.Reset(); err != nil {
			return nil, fmt.Errorf("resetting approvals: %w", err)
		}
		mb.Registry = mb.redis
	} else {
		mb.Registry = NewMemoryRegistry()
	}

	messenger := NewTelegramMessenger(bot)
	publisher := NewPublisher(messenger, channel, cfg.PollRetryBackoff)
	mb.Workflow = NewWorkflow(cfg.OwnerChatId, messenger, mb.Registry, publisher)
	mb.Assembler = NewAlbumAssembler(cfg.AlbumTimeout, func(album Album) {
		log.Printf("album %s assembled, %d photos", album.Key, len(album.Items))
		mb.Workflow.ReceivePhotos(album.From, album.Refs(), album.Caption())
	})

	return mb, nil
}

func (mb *Bot) Start() {
	err := mb.Bot.SetCommands(
		[]tele.Command{
			{
				Text:        "/start",
				Description: "how to submit a photo",
			}, {
				Text:        "/poll",
				Description: "attach a poll: /poll Question|Option 1|Option 2",
			}, {
				Text:        "/cancel",
				Description: "close the conversation or drop the current submission",
			}},
	)
	if err != nil {
		log.Printf("setting commands failed: %s", err.Error())
	}

	private := mb.Bot.Group()
	private.Use(personalMessagesOnly)

	private.Handle("/start", func(ctx tele.Context) error {
		return ctx.Send(textStart)
	})
	private.Handle("/cancel", func(ctx tele.Context) error {
		mb.Workflow.Cancel(submitterOf(ctx))
		return nil
	})

	onText := func(ctx tele.Context) error {
		mb.Workflow.ReceiveText(submitterOf(ctx), ctx.Message().Text)
		return nil
	}
	private.Handle("/poll", onText)
	private.Handle(tele.OnText, onText)

	private.Handle(tele.OnPhoto, func(ctx tele.Context) error {
		msg := ctx.Message()
		if msg.Photo == nil {
			return ctx.Send(textSendPhoto)
		}
		from := submitterOf(ctx)
		item := MediaItem{Ref: MediaRef(msg.Photo.FileID), Caption: msg.Caption}
		if msg.AlbumID != "" {
			mb.Assembler.Ingest(GroupKey{Chat: msg.Chat.ID, Album: msg.AlbumID}, from, item)
			return nil
		}
		mb.Workflow.ReceivePhotos(from, []MediaRef{item.Ref}, item.Caption)
		return nil
	})
	private.Handle(tele.OnMedia, func(ctx tele.Context) error {
		return ctx.Send(textSendPhoto)
	})

	private.Handle(tele.OnCallback, func(ctx tele.Context) error {
		callback := ctx.Callback()
		if err := ctx.Respond(); err != nil {
			log.Printf("answering callback failed: %s", err.Error())
		}
		action, err := ParseAction(callback.Data)
		if err != nil {
			log.Printf("callback from %d ignored: %s", ctx.Sender().ID, err.Error())
			return nil
		}
		log.Printf("callback from %d: %s", ctx.Sender().ID, action.Data())
		mb.Workflow.HandleAction(submitterOf(ctx), messageRef(callback.Message), action)
		return nil
	})

	owner := mb.Bot.Group()
	owner.Use(personalMessagesOnly)
	owner.Use(middleware.Whitelist(mb.Cfg.OwnerChatId))
	owner.Handle("/pending", func(ctx tele.Context) error {
		approvals, err := mb.Registry.List()
		if err != nil {
			return err
		}
		return ctx.Send(PendingReport(approvals, mb.Assembler.Pending(), time.Now()), tele.ModeHTML)
	})

	log.Printf("bot started as @%s", mb.Bot.Me.Username)
	mb.Bot.Start()
}

// Stop flushes albums still in assembly, stops polling and closes redis.
func (mb *Bot) Stop() {
	mb.Assembler.Stop()
	mb.Bot.Stop()
	if mb.redis != nil {
		if err := mb.redis.Close(); err != nil {
			log.Printf("closing redis: %s", err.Error())
		}
	}
}

func submitterOf(ctx tele.Context) Submitter {
	sender := ctx.Sender()
	if sender == nil {
		return Submitter{}
	}
	return Submitter{
		Id:          sender.ID,
		DisplayName: strings.TrimSpace(sender.FirstName + " " + sender.LastName),
		Username:    sender.Username,
	}
}

func personalMessagesOnly(next tele.HandlerFunc) tele.HandlerFunc {
	return func(ctx tele.Context) error {
		if ctx.Chat() != nil && ctx.Sender() != nil && ctx.Chat().ID == ctx.Sender().ID {
			return next(ctx)
		}
		return nil
	}
}
