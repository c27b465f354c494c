package spec

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Op string

const (
	OpRequestReview  Op = "request_review"
	OpApprove        Op = "approve"
	OpStartWork      Op = "start_work"
	OpComplete       Op = "complete"
	OpCancel         Op = "cancel"
	OpMarkDesignPaid Op = "mark_design_paid"
	OpSetDesignURL   Op = "set_design_url"
	OpRelease        Op = "release_to_marketplace"
	OpAddComment     Op = "add_comment"
	OpResolveComment Op = "resolve_comment"
	OpRequestChanges Op = "request_changes"
)

// LifecycleError reports a rejected transition. The specification is left
// untouched when one is returned.
type LifecycleError struct {
	Op     Op
	Status Status
	Reason string
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("%s rejected in status %s: %s", e.Op, e.Status, e.Reason)
}

func (s *Specification) reject(op Op, format string, args ...any) error {
	return &LifecycleError{Op: op, Status: s.Status, Reason: fmt.Sprintf(format, args...)}
}

// statusTransitions lists, per op, the statuses it may start from and the
// status it leads to.
var statusTransitions = map[Op]struct {
	from []Status
	to   Status
}{
	OpRequestReview: {from: []Status{StatusDraft}, to: StatusReview},
	OpApprove:       {from: []Status{StatusDraft, StatusReview}, to: StatusApproved},
	OpStartWork:     {from: []Status{StatusApproved}, to: StatusInProgress},
	OpComplete:      {from: []Status{StatusInProgress}, to: StatusCompleted},
	OpCancel:        {from: []Status{StatusDraft, StatusReview, StatusApproved, StatusInProgress}, to: StatusCancelled},
}

// IsStatusOp reports whether op moves the primary status.
func IsStatusOp(op Op) bool {
	_, ok := statusTransitions[op]
	return ok
}

// Transition applies a status op. Repeating an op whose target status is
// already reached is a no-op and reports changed=false.
func (s *Specification) Transition(op Op, now time.Time) (changed bool, err error) {
	t, ok := statusTransitions[op]
	if !ok {
		return false, s.reject(op, "not a status transition")
	}
	if s.Status == t.to {
		return false, nil
	}

	allowed := false
	for _, from := range t.from {
		if s.Status == from {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, s.reject(op, "cannot move from %s to %s", s.Status, t.to)
	}

	if op == OpApprove {
		if n := s.OpenBlockingComments(); n > 0 {
			return false, s.reject(op, "%d blocking comment(s) still open", n)
		}
	}

	s.Status = t.to
	s.UpdatedAt = now
	return true, nil
}

// OpenBlockingComments counts blocking comments that have not been resolved.
func (s *Specification) OpenBlockingComments() int {
	n := 0
	for _, c := range s.Comments {
		if c.Blocking && !c.Resolved {
			n++
		}
	}
	return n
}

// MarkDesignPaid records the payment for the design draft. The flag never
// goes back to false; repeating the call is a no-op.
func (s *Specification) MarkDesignPaid(now time.Time) (changed bool) {
	if s.IsDesignPaid {
		return false
	}
	s.IsDesignPaid = true
	s.UpdatedAt = now
	return true
}

// SetDesignURL attaches the delivered design. Requires payment, can only be
// set once; setting the same URL again is a no-op.
func (s *Specification) SetDesignURL(raw string, now time.Time) (changed bool, err error) {
	raw = strings.TrimSpace(raw)
	if !s.IsDesignPaid {
		return false, s.reject(OpSetDesignURL, "design has not been paid")
	}
	u, perr := url.Parse(raw)
	if perr != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return false, s.reject(OpSetDesignURL, "invalid design url %q", raw)
	}
	if s.DesignURL != nil {
		if *s.DesignURL == raw {
			return false, nil
		}
		return false, s.reject(OpSetDesignURL, "design url already set")
	}
	s.DesignURL = &raw
	s.UpdatedAt = now
	return true, nil
}

// ReleaseToMarketplace publishes the specification to developers. Requires
// a design URL; repeating the call is a no-op.
func (s *Specification) ReleaseToMarketplace(now time.Time) (changed bool, err error) {
	if s.ReleasedToMarketplace {
		return false, nil
	}
	if s.DesignURL == nil {
		return false, s.reject(OpRelease, "design url is not set")
	}
	if s.Status == StatusCancelled {
		return false, s.reject(OpRelease, "specification is cancelled")
	}
	s.ReleasedToMarketplace = true
	s.UpdatedAt = now
	return true, nil
}

// AddComment appends a comment and returns it.
func (s *Specification) AddComment(author CommentAuthor, content string, blocking bool, now time.Time) (Comment, error) {
	content = strings.TrimSpace(content)
	switch {
	case !author.Valid():
		return Comment{}, s.reject(OpAddComment, "unknown author %q", author)
	case content == "":
		return Comment{}, s.reject(OpAddComment, "empty comment")
	case s.Status == StatusCancelled:
		return Comment{}, s.reject(OpAddComment, "specification is cancelled")
	}
	c := Comment{
		ID:        "comment-" + uuid.NewString(),
		Author:    author,
		Content:   content,
		Blocking:  blocking,
		Timestamp: now.UTC(),
	}
	s.Comments = append(s.Comments, c)
	s.UpdatedAt = now
	return c, nil
}

// RequestChanges records a reviewer's change request as a blocking comment.
// A draft moves to review first.
func (s *Specification) RequestChanges(author CommentAuthor, content string, now time.Time) (Comment, error) {
	if s.Status == StatusDraft {
		if _, err := s.Transition(OpRequestReview, now); err != nil {
			return Comment{}, err
		}
	}
	return s.AddComment(author, content, true, now)
}

// ResolveComment marks a comment resolved. Resolving twice is a no-op.
func (s *Specification) ResolveComment(id string, now time.Time) (changed bool, err error) {
	for i := range s.Comments {
		if s.Comments[i].ID != id {
			continue
		}
		if s.Comments[i].Resolved {
			return false, nil
		}
		s.Comments[i].Resolved = true
		s.UpdatedAt = now
		return true, nil
	}
	return false, s.reject(OpResolveComment, "comment %s not found", id)
}
