package modbot

import (
	"errors"
	"log"
	"net/http"
	"strings"

	tele "gopkg.in/telebot.v3"
)

// telegramMessenger is the telebot implementation of Messenger.
type telegramMessenger struct {
	bot *tele.Bot
}

func NewTelegramMessenger(bot *tele.Bot) Messenger {
	return &telegramMessenger{bot: bot}
}

func (tm *telegramMessenger) SendText(to Chat, text string, kb Keyboard) (MessageRef, error) {
	msg, err := tm.bot.Send(to, text, sendOptions(kb))
	if err != nil {
		return MessageRef{}, deliveryError("send text", to, err)
	}
	return messageRef(msg), nil
}

func (tm *telegramMessenger) SendPhoto(to Chat, ref MediaRef, caption string, kb Keyboard) (MessageRef, error) {
	photo := &tele.Photo{File: tele.File{FileID: string(ref)}, Caption: caption}
	msg, err := tm.bot.Send(to, photo, sendOptions(kb))
	if err != nil {
		return MessageRef{}, deliveryError("send photo", to, err)
	}
	return messageRef(msg), nil
}

func (tm *telegramMessenger) SendAlbum(to Chat, refs []MediaRef, caption string) ([]MessageRef, error) {
	album := make(tele.Album, len(refs))
	for i, ref := range refs {
		photo := &tele.Photo{File: tele.File{FileID: string(ref)}}
		if i == 0 {
			photo.Caption = caption
		}
		album[i] = photo
	}
	messages, err := tm.bot.SendAlbum(to, album)
	if err != nil {
		return nil, deliveryError("send album", to, err)
	}
	refsSent := make([]MessageRef, len(messages))
	for i := range messages {
		refsSent[i] = messageRef(&messages[i])
	}
	return refsSent, nil
}

func (tm *telegramMessenger) SendPoll(to Chat, question string, options []string) (MessageRef, error) {
	poll := &tele.Poll{
		Type:     tele.PollRegular,
		Question: question,
		Options:  make([]tele.PollOption, len(options)),
	}
	for i, option := range options {
		poll.Options[i] = tele.PollOption{Text: option}
	}
	msg, err := tm.bot.Send(to, poll)
	if err != nil {
		return MessageRef{}, deliveryError("send poll", to, err)
	}
	return messageRef(msg), nil
}

// Edit replaces the caption of a media message or the text of a text message,
// and sends text as a new message when neither edit goes through.
func (tm *telegramMessenger) Edit(msg MessageRef, text string, kb Keyboard) error {
	if msg.HasMedia {
		_, err := tm.bot.EditCaption(msg, text, sendOptions(kb))
		if err == nil {
			return nil
		}
		log.Printf("edit caption of %d in chat %d failed: %s", msg.MessageId, msg.ChatId, err.Error())
	}
	_, err := tm.bot.Edit(msg, text, sendOptions(kb))
	if err == nil {
		return nil
	}
	log.Printf("edit text of %d in chat %d failed: %s", msg.MessageId, msg.ChatId, err.Error())

	_, err = tm.SendText(ChatID(msg.ChatId), text, kb)
	return err
}

func sendOptions(kb Keyboard) *tele.SendOptions {
	opts := &tele.SendOptions{}
	if len(kb) == 0 {
		return opts
	}
	markup := &tele.ReplyMarkup{InlineKeyboard: make([][]tele.InlineButton, len(kb))}
	for i, row := range kb {
		markup.InlineKeyboard[i] = make([]tele.InlineButton, len(row))
		for j, button := range row {
			markup.InlineKeyboard[i][j] = tele.InlineButton{Text: button.Text, Data: button.Data}
		}
	}
	opts.ReplyMarkup = markup
	return opts
}

func messageRef(msg *tele.Message) MessageRef {
	if msg == nil {
		return MessageRef{}
	}
	ref := MessageRef{MessageId: msg.ID, HasMedia: msg.Photo != nil || msg.AlbumID != ""}
	if msg.Chat != nil {
		ref.ChatId = msg.Chat.ID
	}
	return ref
}

func deliveryError(op string, to Chat, err error) error {
	return &DeliveryError{Op: op, Chat: to, Kind: classifyDeliveryError(err), Err: err}
}

func classifyDeliveryError(err error) DeliveryKind {
	if isNetTimeout(err) {
		return DeliveryTimeout
	}

	var teleErr *tele.Error
	if errors.As(err, &teleErr) {
		switch teleErr.Code {
		case http.StatusForbidden:
			return DeliveryForbidden
		case http.StatusUnauthorized:
			return DeliveryUnauthorized
		}
	}

	// telebot reports unlisted api errors as plain strings
	description := strings.ToLower(err.Error())
	switch {
	case strings.Contains(description, "timeout"):
		return DeliveryTimeout
	case strings.Contains(description, "forbidden"):
		return DeliveryForbidden
	case strings.Contains(description, "unauthorized"):
		return DeliveryUnauthorized
	}
	return DeliveryUnknown
}
