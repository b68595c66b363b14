package modbot

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
)

var ErrRelayToSelf = errors.New("cannot open a conversation with yourself")

// RelayContent is one relayed message: text, or photos with an optional caption.
type RelayContent struct {
	Text    string
	Media   []MediaRef
	Caption string
}

// RelayManager keeps anonymous owner <-> submitter conversations. Both sides of
// a session live in the SessionStore and are set and cleared together.
type RelayManager struct {
	Messenger Messenger
	Sessions  *SessionStore

	// serializes establish and cancel so the two sides never diverge
	mutex sync.Mutex
}

func NewRelayManager(messenger Messenger, sessions *SessionStore) *RelayManager {
	return &RelayManager{Messenger: messenger, Sessions: sessions}
}

func (rm *RelayManager) Active(userId int64) (RelayLink, bool) {
	session := rm.Sessions.Get(userId)
	if session.Relay == nil {
		return RelayLink{}, false
	}
	return *session.Relay, true
}

// Establish probes the submitter and opens a session when the probe was delivered.
// An earlier session of either party is ended first, the newest one wins.
func (rm *RelayManager) Establish(owner int64, submitter Submitter, approvalId string, reason ActionKind) error {
	if owner == submitter.Id {
		rm.notify(owner, ErrRelayToSelf.Error())
		return ErrRelayToSelf
	}

	probe := textProbeReply
	if reason == ActionContact {
		probe = textProbeContact
	}
	if _, err := rm.Messenger.SendText(ChatID(submitter.Id), probe, nil); err != nil {
		log.Printf("relay probe to %d failed: %s", submitter.Id, err.Error())
		rm.notify(owner, fmt.Sprintf(textUnreachable, submitter.Identity(), manualContact(submitter)))
		return err
	}

	rm.mutex.Lock()
	displaced := make([]int64, 0, 2)
	if peer, ok := rm.detach(owner); ok && peer != submitter.Id {
		displaced = append(displaced, peer)
	}
	if peer, ok := rm.detach(submitter.Id); ok && peer != owner {
		displaced = append(displaced, peer)
	}
	rm.Sessions.SetRelay(owner, RelayLink{Role: RoleOwner, Peer: submitter.Id, ApprovalId: approvalId})
	rm.Sessions.SetRelay(submitter.Id, RelayLink{Role: RoleSubmitter, Peer: owner, ApprovalId: approvalId})
	rm.mutex.Unlock()

	for _, peer := range displaced {
		rm.notify(peer, textRelayEnded)
	}
	rm.notify(owner, fmt.Sprintf(textRelayOpened, submitter.Identity(), approvalId))
	return nil
}

// Relay forwards content from a user with an active session and reports whether
// it did. A failed delivery is reported to the sender and keeps the session.
func (rm *RelayManager) Relay(from Submitter, content RelayContent) bool {
	link, ok := rm.Active(from.Id)
	if !ok {
		return false
	}

	to := ChatID(link.Peer)
	var text string
	switch link.Role {
	case RoleOwner:
		text = fmt.Sprintf(textFromModerator, content.body())
	default:
		text = fmt.Sprintf(textFromSubmitter, from.DisplayName, link.ApprovalId, content.body())
	}

	var err error
	if len(content.Media) > 0 {
		_, err = sendMedia(rm.Messenger, to, content.Media, text, nil)
	} else {
		_, err = rm.Messenger.SendText(to, text, nil)
	}
	if err != nil {
		log.Printf("relay from %d to %d failed: %s", from.Id, link.Peer, err.Error())
		rm.notify(from.Id, fmt.Sprintf(textRelayFailed, describeDelivery(err)))
	}
	return true
}

// Cancel ends the user's session from either side and tells the other party.
func (rm *RelayManager) Cancel(userId int64) bool {
	rm.mutex.Lock()
	peer, ok := rm.detach(userId)
	rm.mutex.Unlock()
	if !ok {
		return false
	}

	rm.notify(peer, textRelayEnded)
	rm.notify(userId, textRelayEndedByYou)
	return true
}

// detach clears the user's link and the matching link of the peer.
func (rm *RelayManager) detach(userId int64) (int64, bool) {
	link, ok := rm.Sessions.ClearRelay(userId)
	if !ok {
		return 0, false
	}
	rm.Sessions.ClearRelayIf(link.Peer, userId)
	return link.Peer, true
}

func (rm *RelayManager) notify(userId int64, text string) {
	if _, err := rm.Messenger.SendText(ChatID(userId), text, nil); err != nil {
		log.Printf("while sending to user %d, an error occurred %s", userId, err.Error())
	}
}

func (content RelayContent) body() string {
	if len(content.Media) > 0 {
		return content.Caption
	}
	return content.Text
}

func manualContact(submitter Submitter) string {
	links := []string{fmt.Sprintf("tg://user?id=%d", submitter.Id)}
	if submitter.Username != "" {
		links = append(links, "@"+submitter.Username)
	}
	return strings.Join(links, " ")
}

func describeDelivery(err error) string {
	var deliveryErr *DeliveryError
	if errors.As(err, &deliveryErr) {
		switch deliveryErr.Kind {
		case DeliveryForbidden:
			return "the recipient has blocked the bot"
		case DeliveryTimeout:
			return "the request timed out"
		}
	}
	return "unexpected error"
}
