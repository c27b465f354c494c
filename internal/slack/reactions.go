package slack

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ReactionEvent is the structure received from slack-forwarder via NATS.
type ReactionEvent struct {
	Reaction  string `json:"reaction"`
	UserID    string `json:"user_id"`
	Channel   string `json:"channel"`
	MessageTS string `json:"message_ts"`
}

// ReviewVerdict maps a Slack reaction to a review outcome.
type ReviewVerdict string

const (
	VerdictApproved      ReviewVerdict = "approved"
	VerdictChangesNeeded ReviewVerdict = "changes_needed"
	VerdictSkipped       ReviewVerdict = "skipped"
	VerdictUnknown       ReviewVerdict = "unknown"
)

func ParseReaction(reaction string) ReviewVerdict {
	switch reaction {
	case "+1", "thumbsup", "white_check_mark":
		return VerdictApproved
	case "-1", "thumbsdown":
		return VerdictChangesNeeded
	case "shrug":
		return VerdictSkipped
	default:
		return VerdictUnknown
	}
}

// ParseReactionEvent parses a NATS message payload from slack-forwarder into a ReactionEvent.
func ParseReactionEvent(data []byte) (*ReactionEvent, error) {
	// slack-forwarder wraps the event fields in metadata.
	var wrapper struct {
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("parse reaction wrapper: %w", err)
	}

	evt := &ReactionEvent{
		Reaction:  strings.Trim(wrapper.Metadata["text"], ":"),
		UserID:    wrapper.Metadata["user_id"],
		Channel:   wrapper.Metadata["channel_id"],
		MessageTS: wrapper.Metadata["message_ts"],
	}
	if evt.MessageTS == "" {
		return nil, fmt.Errorf("reaction event without message_ts")
	}
	return evt, nil
}
