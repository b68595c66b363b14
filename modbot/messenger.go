package modbot

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
)

// MediaRef is the transport's opaque handle of an uploaded photo (a Telegram file id).
type MediaRef string

// MessageRef points at a message that was sent or received, so it can be edited later.
type MessageRef struct {
	ChatId    int64
	MessageId int
	HasMedia  bool
}

// MessageSig makes MessageRef usable as telebot's Editable.
func (ref MessageRef) MessageSig() (string, int64) {
	return strconv.Itoa(ref.MessageId), ref.ChatId
}

type Button struct {
	Text string
	Data string
}

// Keyboard is a set of inline button rows.
type Keyboard [][]Button

// Messenger is everything the workflow needs from the chat transport.
// Edit falls back to a fresh text message when neither caption nor text can be edited.
type Messenger interface {
	SendText(to Chat, text string, kb Keyboard) (MessageRef, error)
	SendPhoto(to Chat, ref MediaRef, caption string, kb Keyboard) (MessageRef, error)
	SendAlbum(to Chat, refs []MediaRef, caption string) ([]MessageRef, error)
	SendPoll(to Chat, question string, options []string) (MessageRef, error)
	Edit(msg MessageRef, text string, kb Keyboard) error
}

// Chat is a destination: a numeric chat id or a public @username.
type Chat string

func ChatID(id int64) Chat {
	return Chat(strconv.FormatInt(id, 10))
}

// Recipient makes Chat usable as telebot's Recipient.
func (chat Chat) Recipient() string {
	return string(chat)
}

type DeliveryKind int

const (
	DeliveryUnknown DeliveryKind = iota
	DeliveryTimeout
	DeliveryForbidden
	DeliveryUnauthorized
)

func (kind DeliveryKind) String() string {
	switch kind {
	case DeliveryTimeout:
		return "timeout"
	case DeliveryForbidden:
		return "forbidden"
	case DeliveryUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// DeliveryError is returned by every Messenger call that did not reach the chat.
type DeliveryError struct {
	Op   string
	Chat Chat
	Kind DeliveryKind
	Err  error
}

func (err *DeliveryError) Error() string {
	return fmt.Sprintf("%s to %s failed (%s): %v", err.Op, err.Chat, err.Kind, err.Err)
}

func (err *DeliveryError) Unwrap() error {
	return err.Err
}

// IsTimeout reports whether err is a delivery failure worth retrying.
func IsTimeout(err error) bool {
	var deliveryErr *DeliveryError
	if errors.As(err, &deliveryErr) {
		return deliveryErr.Kind == DeliveryTimeout
	}
	return isNetTimeout(err)
}

func isNetTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
