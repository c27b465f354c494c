package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/nova/internal/spec"
)

const defaultPostMessageURL = "https://slack.com/api/chat.postMessage"

type Poster struct {
	token   string
	channel string
	client  *http.Client
	logger  *slog.Logger
	apiURL  string
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	return &Poster{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  defaultPostMessageURL,
		logger:  logger,
	}
}

// PostReviewSummary posts a new specification to Slack for human review.
// Returns the message timestamp (ts) which is used for tracking reactions.
func (p *Poster) PostReviewSummary(ctx context.Context, s *spec.Specification) (string, error) {
	text := formatReviewMessage(s)

	ts, err := p.post(ctx, map[string]any{
		"channel": p.channel,
		"text":    text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": text,
				},
			},
			{
				"type": "context",
				"elements": []map[string]any{
					{
						"type": "mrkdwn",
						"text": "React: :+1: approve | :-1: needs changes | :shrug: skip",
					},
				},
			},
		},
	})
	if err != nil {
		return "", err
	}

	p.logger.Info("posted review to slack", "ts", ts, "specification_id", s.ID)
	return ts, nil
}

// PostThread posts a threaded reply to a message.
func (p *Poster) PostThread(ctx context.Context, threadTS, text string) error {
	_, err := p.post(ctx, map[string]any{
		"channel":   p.channel,
		"thread_ts": threadTS,
		"text":      text,
	})
	return err
}

func (p *Poster) post(ctx context.Context, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &slackResp); err != nil {
		return "", fmt.Errorf("parse slack response: %w", err)
	}
	if !slackResp.OK {
		return "", fmt.Errorf("slack error: %s", slackResp.Error)
	}
	return slackResp.TS, nil
}

func formatReviewMessage(s *spec.Specification) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "*%s* (%s)\n", s.Title, s.ProjectNumber)
	fmt.Fprintf(&sb, "*Industry:* %s | *Team:* %s | *Budget:* %s\n\n", s.Industry, s.TeamSize, s.BudgetRange)
	fmt.Fprintf(&sb, "%s\n\n", s.ProblemSummary)

	if len(s.Requirements) > 0 {
		fmt.Fprintf(&sb, "*Requirements: %d*\n", len(s.Requirements))
		for _, r := range s.Requirements {
			fmt.Fprintf(&sb, "• [%s] %s: %s\n", r.Priority, r.Category, r.Description)
		}
	} else {
		sb.WriteString("_No requirements extracted._\n")
	}

	if est := s.DesiredOutcome.EffortEstimate; est != nil {
		fmt.Fprintf(&sb, "\n*Estimate:* %.0f h, %s\n", est.Hours, est.CostEUR)
	}

	return sb.String()
}
