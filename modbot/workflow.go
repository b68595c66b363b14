package modbot

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/AlekSi/pointer"
)

var errOutdatedPreview = errors.New("preview is outdated")

// Workflow drives a submission from the first photo to the owner's decision.
// Submitter dialog state lives in Sessions, pending reviews in Registry.
type Workflow struct {
	Owner     int64
	Messenger Messenger
	Sessions  *SessionStore
	Registry  Registry
	Publisher *Publisher
	Relay     *RelayManager
}

func NewWorkflow(owner int64, messenger Messenger, registry Registry, publisher *Publisher) *Workflow {
	sessions := NewSessionStore()
	return &Workflow{
		Owner:     owner,
		Messenger: messenger,
		Sessions:  sessions,
		Registry:  registry,
		Publisher: publisher,
		Relay:     NewRelayManager(messenger, sessions),
	}
}

// ReceivePhotos starts a submission from a single photo or an assembled album.
// Photos from a user in a relay session are relayed instead.
func (w *Workflow) ReceivePhotos(from Submitter, media []MediaRef, caption string) {
	if len(media) == 0 {
		return
	}
	if w.Relay.Relay(from, RelayContent{Media: media, Caption: caption}) {
		return
	}

	if len(media) == 1 {
		w.Sessions.BeginSingle(from.Id, media[0], caption)
	} else {
		w.Sessions.BeginAlbum(from.Id, media, caption)
	}

	prompt := textImageReceived
	if len(media) > 1 {
		prompt = fmt.Sprintf(textAlbumReceived, len(media))
	}
	kb := Keyboard{
		{button("Yes", Action{Kind: ActionAddEnrichment})},
		{button("No", Action{Kind: ActionNoEnrichment})},
	}
	if _, err := w.Messenger.SendText(ChatID(from.Id), prompt, kb); err != nil {
		log.Printf("prompt for %d failed: %s", from.Id, err.Error())
		w.sendTo(from.Id, textPreviewFailed, kb)
	}
}

// ReceiveText handles a text message that is not a command of its own.
func (w *Workflow) ReceiveText(from Submitter, text string) {
	session := w.Sessions.Get(from.Id)
	switch {
	case session.Stage == StageAwaitingEnrichmentInput || session.Stage == StageAwaitingConfirmation:
		w.receiveEnrichment(from, text)
	case session.Relay != nil:
		w.Relay.Relay(from, RelayContent{Text: text})
	case session.Stage == StageAwaitingEnrichmentChoice:
		w.sendTo(from.Id, textUseButtons, nil)
	default:
		w.sendTo(from.Id, textNoImage, nil)
	}
}

func (w *Workflow) receiveEnrichment(from Submitter, text string) {
	enrichment, err := ParseEnrichment(text)
	if err != nil {
		w.sendTo(from.Id, sentence(err.Error()), nil)
		return
	}

	confirm := Action{Kind: ActionConfirmCaption}
	if enrichment.Poll != nil {
		confirm.Kind = ActionConfirmPoll
		err = w.Sessions.SetPoll(from.Id, enrichment.Poll.Question, enrichment.Poll.Options)
	} else {
		err = w.Sessions.SetCaption(from.Id, *enrichment.Caption)
	}
	if err != nil {
		w.sendTo(from.Id, textNoImage, nil)
		return
	}

	session := w.Sessions.Get(from.Id)
	kb := Keyboard{{
		button("Confirm", confirm),
		button("New Input", Action{Kind: ActionNewInput}),
	}}
	w.sendPreview(ChatID(from.Id), session.Draft, kb)
}

// sendPreview shows the media with the draft caption or poll question. Albums
// can't carry buttons, so they are followed by a message holding the keyboard.
func (w *Workflow) sendPreview(to Chat, draft Draft, kb Keyboard) {
	caption := draftText(draft)
	if len(draft.Media) == 1 && utf8.RuneCountInString(caption) <= MaxCaptionLength {
		if _, err := w.Messenger.SendPhoto(to, draft.Media[0], caption, kb); err != nil {
			log.Printf("preview to %s failed: %s", to, err.Error())
			w.sendText(to, textPreviewFailed, kb)
		}
		return
	}

	if _, err := sendMedia(w.Messenger, to, draft.Media, truncate(caption, MaxCaptionLength), nil); err != nil {
		log.Printf("preview to %s failed: %s", to, err.Error())
	}
	w.sendText(to, "Tap Confirm to forward it for approval, or New Input to change it.", kb)
}

// HandleAction applies a callback button pressed by user on the message origin.
func (w *Workflow) HandleAction(user Submitter, origin MessageRef, action Action) {
	switch action.Kind {
	case ActionAddEnrichment:
		if err := w.Sessions.SetStage(user.Id, StageAwaitingEnrichmentInput); err != nil {
			w.edit(origin, textNoImage, nil)
			return
		}
		w.edit(origin, GuideText, nil)
	case ActionNewInput:
		if err := w.Sessions.DiscardDraft(user.Id); err != nil {
			w.edit(origin, textNoImage, nil)
			return
		}
		w.edit(origin, GuideText, nil)
	case ActionNoEnrichment, ActionConfirmCaption, ActionConfirmPoll:
		w.finalize(user, origin, action.Kind)
	case ActionApprove, ActionDisapprove, ActionReply, ActionContact:
		if user.Id != w.Owner {
			log.Printf("user %d pressed owner action %s, ignored", user.Id, action.Kind)
			return
		}
		switch action.Kind {
		case ActionApprove:
			_ = w.Approve(origin, action.ApprovalId)
		case ActionDisapprove:
			_ = w.Disapprove(origin, action.ApprovalId)
		default:
			w.Contact(action.ApprovalId, action.Kind)
		}
	}
}

// finalize turns the session into an approval and notifies the owner as one
// unit: the session is cleared only when the owner got the request.
// "No" drops a poll draft but keeps the caption the photos arrived with.
func (w *Workflow) finalize(from Submitter, origin MessageRef, kind ActionKind) {
	var approval *Approval
	err := w.Sessions.Finalize(from.Id, func(draft Draft) error {
		switch kind {
		case ActionNoEnrichment:
			if draft.Stage != StageAwaitingEnrichmentChoice {
				return errOutdatedPreview
			}
			draft.Poll = nil
		case ActionConfirmCaption:
			if draft.Stage != StageAwaitingConfirmation || draft.Caption == nil {
				return errOutdatedPreview
			}
		case ActionConfirmPoll:
			if draft.Stage != StageAwaitingConfirmation || draft.Poll == nil {
				return errOutdatedPreview
			}
		}

		approval = NewApproval(from, draft)
		if err := w.Registry.Put(approval); err != nil {
			return err
		}
		if err := w.notifyOwner(approval); err != nil {
			if _, popErr := w.Registry.Pop(approval.Id); popErr != nil {
				log.Printf("while withdrawing %s, an error occurred %s", approval.Id, popErr.Error())
			}
			return err
		}
		return nil
	})

	switch {
	case err == nil:
		done := textForwarded
		switch kind {
		case ActionConfirmCaption:
			done = textForwardedCaption
		case ActionConfirmPoll:
			done = textForwardedPoll
		}
		log.Printf("approval %s created for user %d", approval.Id, from.Id)
		w.edit(origin, done, nil)
	case errors.Is(err, ErrNoSubmission):
		w.edit(origin, textNoImage, nil)
	case errors.Is(err, errOutdatedPreview):
		w.sendTo(from.Id, textOutdatedPreview, nil)
	default:
		log.Printf("forwarding submission of %d failed: %s", from.Id, err.Error())
		w.sendTo(from.Id, textForwardFailed, nil)
	}
}

func (w *Workflow) notifyOwner(approval *Approval) error {
	owner := ChatID(w.Owner)
	header := fmt.Sprintf(textApprovalRequest, approval.Id, approval.Submitter.Identity())
	body := draftText(Draft{Caption: approval.Caption, Poll: approval.Poll})
	kb := ownerKeyboard(approval.Id, true)

	if len(approval.Media) == 1 {
		caption := joinNonEmpty("\n\n", body, header)
		if utf8.RuneCountInString(caption) <= MaxCaptionLength {
			_, err := w.Messenger.SendPhoto(owner, approval.Media[0], caption, kb)
			return err
		}
	}
	if _, err := sendMedia(w.Messenger, owner, approval.Media, truncate(body, MaxCaptionLength), nil); err != nil {
		return err
	}
	_, err := w.Messenger.SendText(owner, header, kb)
	return err
}

func ownerKeyboard(id string, pending bool) Keyboard {
	contact := []Button{
		button("Reply", Action{Kind: ActionReply, ApprovalId: id}),
		button("Contact", Action{Kind: ActionContact, ApprovalId: id}),
	}
	if !pending {
		return Keyboard{contact}
	}
	return Keyboard{
		{
			button("Approve", Action{Kind: ActionApprove, ApprovalId: id}),
			button("Disapprove", Action{Kind: ActionDisapprove, ApprovalId: id}),
		},
		contact,
	}
}

// Approve publishes the approval to the channel. It returns ErrApprovalNotFound
// when the id was already processed. The approval is consumed by the pop even
// when publishing fails: a failed send may still have reached the channel.
func (w *Workflow) Approve(origin MessageRef, id string) error {
	approval, err := w.Registry.Pop(id)
	if err != nil {
		w.reportPopError(origin, id, err)
		return err
	}

	if err := w.Publisher.Publish(approval); err != nil {
		log.Printf("%s", err.Error())
		w.edit(origin, fmt.Sprintf(textPublishFailed, describeDelivery(err)), ownerKeyboard(id, false))
		w.sendTo(approval.Submitter.Id, textYourPublishFailed, nil)
		return err
	}

	log.Printf("approval %s approved and published", id)
	w.edit(origin, textApproved, ownerKeyboard(id, false))
	w.sendTo(approval.Submitter.Id, textYourApproved, nil)
	return nil
}

// Disapprove discards the approval, with the same single-use semantics as Approve.
func (w *Workflow) Disapprove(origin MessageRef, id string) error {
	approval, err := w.Registry.Pop(id)
	if err != nil {
		w.reportPopError(origin, id, err)
		return err
	}

	log.Printf("approval %s disapproved", id)
	w.edit(origin, textDisapproved, ownerKeyboard(id, false))
	w.sendTo(approval.Submitter.Id, textYourDisapproved, nil)
	return nil
}

func (w *Workflow) reportPopError(origin MessageRef, id string, err error) {
	if errors.Is(err, ErrApprovalNotFound) {
		w.edit(origin, textNotFound, ownerKeyboard(id, false))
		return
	}
	log.Printf("while taking %s, an error occurred %s", id, err.Error())
	w.sendTo(w.Owner, fmt.Sprintf("an error occurred, %s", err.Error()), nil)
}

// Contact opens a relay session with the submitter of the approval.
func (w *Workflow) Contact(id string, reason ActionKind) {
	submitter, err := w.Registry.Contact(id)
	if err != nil {
		w.sendTo(w.Owner, fmt.Sprintf(textUnknownPeer, id), nil)
		return
	}
	_ = w.Relay.Establish(w.Owner, submitter, id, reason)
}

// Cancel ends the user's relay session, or drops an unfinished submission.
func (w *Workflow) Cancel(user Submitter) {
	if w.Relay.Cancel(user.Id) {
		return
	}
	if w.Sessions.Get(user.Id).HasMedia() {
		w.Sessions.Clear(user.Id)
		w.sendTo(user.Id, textDiscarded, nil)
		return
	}
	w.sendTo(user.Id, textNothingToCancel, nil)
}

func (w *Workflow) sendTo(userId int64, text string, kb Keyboard) {
	w.sendText(ChatID(userId), text, kb)
}

func (w *Workflow) sendText(to Chat, text string, kb Keyboard) {
	if _, err := w.Messenger.SendText(to, text, kb); err != nil {
		log.Printf("while sending to %s, an error occurred %s", to, err.Error())
	}
}

func (w *Workflow) edit(msg MessageRef, text string, kb Keyboard) {
	if err := w.Messenger.Edit(msg, text, kb); err != nil {
		log.Printf("while editing %d in chat %d, an error occurred %s", msg.MessageId, msg.ChatId, err.Error())
	}
}

func draftText(draft Draft) string {
	if draft.Poll != nil {
		return draft.Poll.Preview()
	}
	return pointer.GetString(draft.Caption)
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, sep)
}

func truncate(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit-1]) + "…"
}

func sentence(text string) string {
	r, size := utf8.DecodeRuneInString(text)
	if r == utf8.RuneError {
		return text
	}
	return string(unicode.ToUpper(r)) + text[size:]
}
