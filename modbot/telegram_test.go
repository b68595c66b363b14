package modbot

import (
	"context"
	"errors"
	"fmt"
	"testing"

	tele "gopkg.in/telebot.v3"
)

func TestClassifyDeliveryError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want DeliveryKind
	}{
		{"blocked", &tele.Error{Code: 403, Description: "Forbidden: bot was blocked by the user"}, DeliveryForbidden},
		{"bad token", &tele.Error{Code: 401, Description: "Unauthorized"}, DeliveryUnauthorized},
		{"deadline", fmt.Errorf("telebot: Post: %w", context.DeadlineExceeded), DeliveryTimeout},
		{"plain forbidden", errors.New("telegram: Forbidden: user is deactivated (403)"), DeliveryForbidden},
		{"plain timeout", errors.New("read tcp: i/o timeout"), DeliveryTimeout},
		{"other", errors.New("telegram: Bad Request: chat not found (400)"), DeliveryUnknown},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := classifyDeliveryError(c.err); got != c.want {
				t.Fatalf("got %s, want %s", got, c.want)
			}
		})
	}
}

func TestIsTimeout(t *testing.T) {
	if !IsTimeout(deliveryError("send poll", testChannel, context.DeadlineExceeded)) {
		t.Fatal("deadline must count as a timeout")
	}
	if IsTimeout(deliveryError("send poll", testChannel, &tele.Error{Code: 403})) {
		t.Fatal("forbidden is not a timeout")
	}
}

func TestSendOptions(t *testing.T) {
	if opts := sendOptions(nil); opts.ReplyMarkup != nil {
		t.Fatal("no keyboard, no markup")
	}

	kb := Keyboard{
		{button("Approve", Action{Kind: ActionApprove, ApprovalId: "id"}), button("Disapprove", Action{Kind: ActionDisapprove, ApprovalId: "id"})},
		{button("Reply", Action{Kind: ActionReply, ApprovalId: "id"})},
	}
	markup := sendOptions(kb).ReplyMarkup
	if len(markup.InlineKeyboard) != 2 || len(markup.InlineKeyboard[0]) != 2 {
		t.Fatalf("markup = %+v", markup.InlineKeyboard)
	}
	if got := markup.InlineKeyboard[0][1]; got.Text != "Disapprove" || got.Data != kb[0][1].Data {
		t.Fatalf("button = %+v", got)
	}
}

func TestMessageRef(t *testing.T) {
	ref := messageRef(&tele.Message{ID: 5, Chat: &tele.Chat{ID: 9}, Photo: &tele.Photo{}})
	if ref.ChatId != 9 || ref.MessageId != 5 || !ref.HasMedia {
		t.Fatalf("ref = %+v", ref)
	}
	id, chat := ref.MessageSig()
	if id != "5" || chat != 9 {
		t.Fatalf("sig = %s, %d", id, chat)
	}
}
