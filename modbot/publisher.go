package modbot

import (
	"fmt"
	"log"
	"time"

	"github.com/AlekSi/pointer"
)

const DefaultPollAttempts = 3

// Publisher sends approved submissions to the channel: the media first, then
// the poll as a separate message.
type Publisher struct {
	Messenger    Messenger
	Channel      Chat
	PollAttempts int
	PollBackoff  time.Duration

	// replaced in tests
	sleep func(time.Duration)
}

func NewPublisher(messenger Messenger, channel Chat, pollBackoff time.Duration) *Publisher {
	if pollBackoff <= 0 {
		pollBackoff = DefaultPollRetryBackoff
	}
	return &Publisher{
		Messenger:    messenger,
		Channel:      channel,
		PollAttempts: DefaultPollAttempts,
		PollBackoff:  pollBackoff,
		sleep:        time.Sleep,
	}
}

// Publish returns an error only when the media could not be sent. A poll that
// fails after the media went out is logged and the post counts as published.
func (publisher *Publisher) Publish(approval *Approval) error {
	if _, err := sendMedia(publisher.Messenger, publisher.Channel, approval.Media, pointer.GetString(approval.Caption), nil); err != nil {
		return fmt.Errorf("publishing %s: %w", approval.Id, err)
	}

	if approval.Poll == nil {
		return nil
	}
	if err := publisher.sendPoll(approval.Poll); err != nil {
		log.Printf("poll for %s was not published: %s", approval.Id, err.Error())
	}
	return nil
}

// sendPoll retries on timeouts only, everything else fails at once.
func (publisher *Publisher) sendPoll(poll *Poll) error {
	attempts := publisher.PollAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		_, err = publisher.Messenger.SendPoll(publisher.Channel, poll.Question, poll.Options)
		if err == nil {
			return nil
		}
		if !IsTimeout(err) {
			return err
		}
		log.Printf("sending poll timed out, attempt %d/%d", attempt, attempts)
		if attempt < attempts {
			publisher.sleep(publisher.PollBackoff)
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", attempts, err)
}

// sendMedia sends one photo as a photo message and several as an album with the
// caption on the first item. Keyboards can only be attached to a single photo.
func sendMedia(messenger Messenger, to Chat, media []MediaRef, caption string, kb Keyboard) ([]MessageRef, error) {
	switch len(media) {
	case 0:
		return nil, fmt.Errorf("nothing to send to %s", to)
	case 1:
		msg, err := messenger.SendPhoto(to, media[0], caption, kb)
		if err != nil {
			return nil, err
		}
		return []MessageRef{msg}, nil
	default:
		return messenger.SendAlbum(to, media, caption)
	}
}
