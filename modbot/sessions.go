package modbot

import (
	"errors"
	"sync"

	"github.com/AlekSi/pointer"
)

type Stage int

const (
	StageIdle Stage = iota
	StageAwaitingEnrichmentChoice
	StageAwaitingEnrichmentInput
	StageAwaitingConfirmation
)

func (stage Stage) String() string {
	switch stage {
	case StageAwaitingEnrichmentChoice:
		return "awaiting-enrichment-choice"
	case StageAwaitingEnrichmentInput:
		return "awaiting-enrichment-input"
	case StageAwaitingConfirmation:
		return "awaiting-confirmation"
	default:
		return "idle"
	}
}

type RelayRole int

const (
	RoleOwner RelayRole = iota + 1
	RoleSubmitter
)

// RelayLink is one side of a relay session: who is on the other end and which
// approval the conversation is about.
type RelayLink struct {
	Role       RelayRole
	Peer       int64
	ApprovalId string
}

// Draft is the submission part of a session, handed out as a copy.
type Draft struct {
	Stage   Stage
	Media   []MediaRef
	Caption *string
	Poll    *Poll
}

func (d Draft) HasMedia() bool {
	return len(d.Media) > 0
}

// Session is the per-user record. Submission fields and Relay are independent:
// clearing a submission never ends a relay session and vice versa.
type Session struct {
	Draft
	Relay *RelayLink
}

var ErrNoSubmission = errors.New("no image found, please send an image first")

type sessionEntry struct {
	mutex   sync.Mutex
	session Session
}

type SessionStore struct {
	mutex   sync.Mutex
	entries map[int64]*sessionEntry
}

func NewSessionStore() *SessionStore {
	return &SessionStore{entries: make(map[int64]*sessionEntry)}
}

func (store *SessionStore) entry(userId int64) *sessionEntry {
	defer store.mutex.Unlock()
	store.mutex.Lock()

	e, contains := store.entries[userId]
	if !contains {
		e = &sessionEntry{}
		store.entries[userId] = e
	}
	return e
}

func (store *SessionStore) update(userId int64, fn func(*Session) error) error {
	e := store.entry(userId)
	defer e.mutex.Unlock()
	e.mutex.Lock()
	return fn(&e.session)
}

func (store *SessionStore) BeginSingle(userId int64, ref MediaRef, caption string) {
	store.BeginAlbum(userId, []MediaRef{ref}, caption)
}

// BeginAlbum replaces whatever submission the user had with a new one.
// A non-empty native caption becomes the caption draft.
func (store *SessionStore) BeginAlbum(userId int64, refs []MediaRef, caption string) {
	_ = store.update(userId, func(s *Session) error {
		s.Draft = Draft{
			Stage: StageAwaitingEnrichmentChoice,
			Media: append([]MediaRef(nil), refs...),
		}
		if caption != "" {
			s.Caption = pointer.ToString(caption)
		}
		return nil
	})
}

func (store *SessionStore) SetCaption(userId int64, text string) error {
	return store.update(userId, func(s *Session) error {
		if !s.HasMedia() {
			return ErrNoSubmission
		}
		s.Caption = pointer.ToString(text)
		s.Poll = nil
		s.Stage = StageAwaitingConfirmation
		return nil
	})
}

func (store *SessionStore) SetPoll(userId int64, question string, options []string) error {
	return store.update(userId, func(s *Session) error {
		if !s.HasMedia() {
			return ErrNoSubmission
		}
		s.Poll = &Poll{Question: question, Options: append([]string(nil), options...)}
		s.Caption = nil
		s.Stage = StageAwaitingConfirmation
		return nil
	})
}

func (store *SessionStore) SetStage(userId int64, stage Stage) error {
	return store.update(userId, func(s *Session) error {
		if !s.HasMedia() {
			return ErrNoSubmission
		}
		s.Stage = stage
		return nil
	})
}

// DiscardDraft drops the caption or poll draft and waits for a replacement.
func (store *SessionStore) DiscardDraft(userId int64) error {
	return store.update(userId, func(s *Session) error {
		if !s.HasMedia() {
			return ErrNoSubmission
		}
		s.Caption = nil
		s.Poll = nil
		s.Stage = StageAwaitingEnrichmentInput
		return nil
	})
}

// Clear removes the submission and leaves the relay link alone.
func (store *SessionStore) Clear(userId int64) {
	_ = store.update(userId, func(s *Session) error {
		s.Draft = Draft{}
		return nil
	})
}

func (store *SessionStore) Get(userId int64) Session {
	var snapshot Session
	_ = store.update(userId, func(s *Session) error {
		snapshot = copySession(*s)
		return nil
	})
	return snapshot
}

// Finalize hands a copy of the draft to fn and clears the submission when fn
// succeeds, all under the user's lock. When fn fails the session is untouched.
func (store *SessionStore) Finalize(userId int64, fn func(Draft) error) error {
	return store.update(userId, func(s *Session) error {
		if !s.HasMedia() {
			return ErrNoSubmission
		}
		if err := fn(copySession(*s).Draft); err != nil {
			return err
		}
		s.Draft = Draft{}
		return nil
	})
}

func (store *SessionStore) SetRelay(userId int64, link RelayLink) {
	_ = store.update(userId, func(s *Session) error {
		s.Relay = &link
		return nil
	})
}

// ClearRelay removes the user's relay link and returns it, if there was one.
func (store *SessionStore) ClearRelay(userId int64) (RelayLink, bool) {
	var link RelayLink
	var found bool
	_ = store.update(userId, func(s *Session) error {
		if s.Relay != nil {
			link, found = *s.Relay, true
			s.Relay = nil
		}
		return nil
	})
	return link, found
}

// ClearRelayIf removes the user's relay link only when it still points at peer.
func (store *SessionStore) ClearRelayIf(userId int64, peer int64) bool {
	var cleared bool
	_ = store.update(userId, func(s *Session) error {
		if s.Relay != nil && s.Relay.Peer == peer {
			s.Relay = nil
			cleared = true
		}
		return nil
	})
	return cleared
}

func copySession(s Session) Session {
	out := Session{Draft: Draft{Stage: s.Stage}}
	if s.Media != nil {
		out.Media = append([]MediaRef(nil), s.Media...)
	}
	if s.Caption != nil {
		out.Caption = pointer.ToString(*s.Caption)
	}
	if s.Poll != nil {
		out.Poll = &Poll{Question: s.Poll.Question, Options: append([]string(nil), s.Poll.Options...)}
	}
	if s.Relay != nil {
		link := *s.Relay
		out.Relay = &link
	}
	return out
}
