package modbot

import (
	"errors"
	"strconv"
	"strings"
	"sync"
)

type sentMessage struct {
	Op       string
	To       Chat
	Text     string
	Media    []MediaRef
	Options  []string
	Keyboard Keyboard
	Ref      MessageRef
}

// fakeMessenger records everything sent through it. Sends to a chat listed in
// unreachable fail with a forbidden DeliveryError, and errors queued in failNext
// are returned by the next calls of that op. Errors queued in failAfterSend are
// returned after the message was recorded as delivered.
type fakeMessenger struct {
	mutex         sync.Mutex
	sent          []sentMessage
	edits         []sentMessage
	unreachable   map[Chat]bool
	failNext      map[string][]error
	failAfterSend map[string][]error
	lastId        int
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{
		unreachable:   map[Chat]bool{},
		failNext:      map[string][]error{},
		failAfterSend: map[string][]error{},
	}
}

func (fm *fakeMessenger) setUnreachable(chat Chat, unreachable bool) {
	defer fm.mutex.Unlock()
	fm.mutex.Lock()
	fm.unreachable[chat] = unreachable
}

func (fm *fakeMessenger) queueError(op string, errs ...error) {
	defer fm.mutex.Unlock()
	fm.mutex.Lock()
	fm.failNext[op] = append(fm.failNext[op], errs...)
}

func (fm *fakeMessenger) queueErrorAfterSend(op string, errs ...error) {
	defer fm.mutex.Unlock()
	fm.mutex.Lock()
	fm.failAfterSend[op] = append(fm.failAfterSend[op], errs...)
}

func (fm *fakeMessenger) record(msg sentMessage) (MessageRef, error) {
	defer fm.mutex.Unlock()
	fm.mutex.Lock()

	if queued := fm.failNext[msg.Op]; len(queued) > 0 {
		fm.failNext[msg.Op] = queued[1:]
		return MessageRef{}, queued[0]
	}
	if fm.unreachable[msg.To] {
		return MessageRef{}, &DeliveryError{Op: msg.Op, Chat: msg.To, Kind: DeliveryForbidden, Err: errors.New("Forbidden: bot was blocked by the user")}
	}

	fm.lastId++
	chatId, _ := strconv.ParseInt(string(msg.To), 10, 64)
	msg.Ref = MessageRef{ChatId: chatId, MessageId: fm.lastId, HasMedia: len(msg.Media) > 0}
	fm.sent = append(fm.sent, msg)
	if queued := fm.failAfterSend[msg.Op]; len(queued) > 0 {
		fm.failAfterSend[msg.Op] = queued[1:]
		return MessageRef{}, queued[0]
	}
	return msg.Ref, nil
}

func (fm *fakeMessenger) SendText(to Chat, text string, kb Keyboard) (MessageRef, error) {
	return fm.record(sentMessage{Op: "text", To: to, Text: text, Keyboard: kb})
}

func (fm *fakeMessenger) SendPhoto(to Chat, ref MediaRef, caption string, kb Keyboard) (MessageRef, error) {
	return fm.record(sentMessage{Op: "photo", To: to, Text: caption, Media: []MediaRef{ref}, Keyboard: kb})
}

func (fm *fakeMessenger) SendAlbum(to Chat, refs []MediaRef, caption string) ([]MessageRef, error) {
	ref, err := fm.record(sentMessage{Op: "album", To: to, Text: caption, Media: append([]MediaRef(nil), refs...)})
	if err != nil {
		return nil, err
	}
	return []MessageRef{ref}, nil
}

func (fm *fakeMessenger) SendPoll(to Chat, question string, options []string) (MessageRef, error) {
	return fm.record(sentMessage{Op: "poll", To: to, Text: question, Options: append([]string(nil), options...)})
}

func (fm *fakeMessenger) Edit(msg MessageRef, text string, kb Keyboard) error {
	defer fm.mutex.Unlock()
	fm.mutex.Lock()
	fm.edits = append(fm.edits, sentMessage{Op: "edit", To: ChatID(msg.ChatId), Text: text, Keyboard: kb, Ref: msg})
	return nil
}

// to returns what was sent to chat, in order.
func (fm *fakeMessenger) to(chat Chat) []sentMessage {
	defer fm.mutex.Unlock()
	fm.mutex.Lock()
	var out []sentMessage
	for _, msg := range fm.sent {
		if msg.To == chat {
			out = append(out, msg)
		}
	}
	return out
}

func (fm *fakeMessenger) last(chat Chat) sentMessage {
	messages := fm.to(chat)
	if len(messages) == 0 {
		return sentMessage{}
	}
	return messages[len(messages)-1]
}

func (fm *fakeMessenger) lastEdit() sentMessage {
	defer fm.mutex.Unlock()
	fm.mutex.Lock()
	if len(fm.edits) == 0 {
		return sentMessage{}
	}
	return fm.edits[len(fm.edits)-1]
}

func (fm *fakeMessenger) received(chat Chat, substring string) bool {
	for _, msg := range fm.to(chat) {
		if strings.Contains(msg.Text, substring) {
			return true
		}
	}
	return false
}

// buttonData finds the callback data of the button labelled text.
func buttonData(kb Keyboard, text string) string {
	for _, row := range kb {
		for _, b := range row {
			if b.Text == text {
				return b.Data
			}
		}
	}
	return ""
}
