package modbot

import (
	"fmt"
	"strings"
)

type ActionKind int

const (
	ActionAddEnrichment ActionKind = iota + 1
	ActionNoEnrichment
	ActionConfirmCaption
	ActionConfirmPoll
	ActionNewInput
	ActionApprove
	ActionDisapprove
	ActionReply
	ActionContact
)

var actionTokens = map[ActionKind]string{
	ActionAddEnrichment:  "add_caption_poll",
	ActionNoEnrichment:   "no_caption_poll",
	ActionConfirmCaption: "confirm_caption",
	ActionConfirmPoll:    "confirm_poll",
	ActionNewInput:       "new_input",
	ActionApprove:        "approve",
	ActionDisapprove:     "disapprove",
	ActionReply:          "reply_post",
	ActionContact:        "contact_post",
}

// Action is a decoded callback button. ApprovalId is set for the owner's actions only.
type Action struct {
	Kind       ActionKind
	ApprovalId string
}

func (kind ActionKind) needsApproval() bool {
	return kind == ActionApprove || kind == ActionDisapprove || kind == ActionReply || kind == ActionContact
}

func (kind ActionKind) String() string {
	if token, ok := actionTokens[kind]; ok {
		return token
	}
	return fmt.Sprintf("action(%d)", int(kind))
}

// Data encodes the action as callback data, e.g. "approve:<id>".
func (a Action) Data() string {
	if a.Kind.needsApproval() {
		return actionTokens[a.Kind] + ":" + a.ApprovalId
	}
	return actionTokens[a.Kind]
}

// ParseAction decodes callback data. Owner actions without an id, like a bare
// "approve", are rejected.
func ParseAction(data string) (Action, error) {
	token, id, hasId := strings.Cut(strings.TrimSpace(data), ":")
	for kind, known := range actionTokens {
		if known != token {
			continue
		}
		if kind.needsApproval() {
			if !hasId || id == "" {
				return Action{}, fmt.Errorf("callback %q has no approval id", data)
			}
			return Action{Kind: kind, ApprovalId: id}, nil
		}
		if hasId {
			return Action{}, fmt.Errorf("callback %q takes no argument", data)
		}
		return Action{Kind: kind}, nil
	}
	return Action{}, fmt.Errorf("unknown callback %q", data)
}

func button(text string, action Action) Button {
	return Button{Text: text, Data: action.Data()}
}
