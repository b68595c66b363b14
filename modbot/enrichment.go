package modbot

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Telegram rejects longer captions, poll questions and poll options.
const (
	MinPollOptions        = 2
	MaxPollOptions        = 10
	MaxCaptionLength      = 1024
	MaxPollQuestionLength = 300
	MaxPollOptionLength   = 100
)

var (
	ErrPollTooFewOptions  = fmt.Errorf("please provide at least %d options for the poll, separated by |", MinPollOptions)
	ErrPollTooManyOptions = fmt.Errorf("polls can have at most %d options", MaxPollOptions)
	ErrPollNoQuestion     = errors.New("the poll question is empty, format: /poll Question|Option 1|Option 2")
	ErrCaptionTooLong     = fmt.Errorf("the caption is too long, at most %d characters are allowed", MaxCaptionLength)
	ErrQuestionTooLong    = fmt.Errorf("the poll question is too long, at most %d characters are allowed", MaxPollQuestionLength)
	ErrOptionTooLong      = fmt.Errorf("a poll option is too long, at most %d characters are allowed", MaxPollOptionLength)
)

// Enrichment is what a submitter typed after choosing to add a caption or poll:
// exactly one of Caption or Poll is set.
type Enrichment struct {
	Caption *string
	Poll    *Poll
}

// ParseEnrichment reads "/poll[@bot] question|option|option..." as a poll and
// any other text as a caption. The command token is matched case-insensitively;
// question and options are trimmed and blank options dropped. Text that Telegram
// would refuse to publish is rejected here.
func ParseEnrichment(text string) (Enrichment, error) {
	body, isPoll := pollBody(text)
	if !isPoll {
		if utf8.RuneCountInString(text) > MaxCaptionLength {
			return Enrichment{}, ErrCaptionTooLong
		}
		caption := text
		return Enrichment{Caption: &caption}, nil
	}

	parts := strings.Split(body, "|")
	question := strings.TrimSpace(parts[0])
	options := make([]string, 0, len(parts)-1)
	for _, part := range parts[1:] {
		if option := strings.TrimSpace(part); option != "" {
			options = append(options, option)
		}
	}

	switch {
	case len(options) < MinPollOptions:
		return Enrichment{}, ErrPollTooFewOptions
	case len(options) > MaxPollOptions:
		return Enrichment{}, ErrPollTooManyOptions
	case question == "":
		return Enrichment{}, ErrPollNoQuestion
	case utf8.RuneCountInString(question) > MaxPollQuestionLength:
		return Enrichment{}, ErrQuestionTooLong
	}
	for _, option := range options {
		if utf8.RuneCountInString(option) > MaxPollOptionLength {
			return Enrichment{}, ErrOptionTooLong
		}
	}
	return Enrichment{Poll: &Poll{Question: question, Options: options}}, nil
}

func pollBody(text string) (string, bool) {
	trimmed := strings.TrimLeftFunc(text, unicode.IsSpace)
	end := strings.IndexFunc(trimmed, unicode.IsSpace)
	token, rest := trimmed, ""
	if end >= 0 {
		token, rest = trimmed[:end], trimmed[end:]
	}

	command, _, _ := strings.Cut(token, "@")
	if !strings.EqualFold(command, "/poll") {
		return "", false
	}
	return strings.TrimSpace(rest), true
}
