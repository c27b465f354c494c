package spec

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

var now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newSpec() *Specification {
	return &Specification{ID: uuid.New(), Status: StatusDraft, Title: "Rechnungen automatisieren"}
}

func isLifecycleErr(t *testing.T, err error) *LifecycleError {
	t.Helper()
	var le *LifecycleError
	if !errors.As(err, &le) {
		t.Fatalf("expected LifecycleError, got %v", err)
	}
	return le
}

func TestTransition_HappyPath(t *testing.T) {
	s := newSpec()
	for _, step := range []struct {
		op   Op
		want Status
	}{
		{OpRequestReview, StatusReview},
		{OpApprove, StatusApproved},
		{OpStartWork, StatusInProgress},
		{OpComplete, StatusCompleted},
	} {
		changed, err := s.Transition(step.op, now)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", step.op, err)
		}
		if !changed || s.Status != step.want {
			t.Fatalf("%s: expected %s, got %s (changed=%v)", step.op, step.want, s.Status, changed)
		}
	}
}

func TestTransition_ApproveFromDraft(t *testing.T) {
	s := newSpec()
	if _, err := s.Transition(OpApprove, now); err != nil {
		t.Fatalf("draft -> approved should be allowed: %v", err)
	}
}

func TestTransition_Invalid(t *testing.T) {
	tests := []struct {
		from Status
		op   Op
	}{
		{StatusDraft, OpStartWork},
		{StatusDraft, OpComplete},
		{StatusReview, OpRequestReview},
		{StatusApproved, OpRequestReview},
		{StatusInProgress, OpApprove},
		{StatusCompleted, OpCancel},
		{StatusCancelled, OpApprove},
		{StatusCancelled, OpRequestReview},
		{StatusDraft, OpMarkDesignPaid},
	}
	for _, tc := range tests {
		s := newSpec()
		s.Status = tc.from
		before := s.Clone()

		_, err := s.Transition(tc.op, now)
		if tc.from == StatusReview && tc.op == OpRequestReview {
			if err != nil {
				t.Errorf("repeat review request should be a no-op, got %v", err)
			}
			continue
		}
		le := isLifecycleErr(t, err)
		if le.Op != tc.op || le.Status != tc.from {
			t.Errorf("unexpected error fields %+v", le)
		}
		if s.Status != before.Status || !s.UpdatedAt.Equal(before.UpdatedAt) {
			t.Errorf("%s from %s mutated the specification", tc.op, tc.from)
		}
	}
}

func TestTransition_CancelFromAnyNonTerminal(t *testing.T) {
	for _, from := range []Status{StatusDraft, StatusReview, StatusApproved, StatusInProgress} {
		s := newSpec()
		s.Status = from
		if _, err := s.Transition(OpCancel, now); err != nil {
			t.Errorf("cancel from %s: %v", from, err)
		}
		if s.Status != StatusCancelled {
			t.Errorf("expected cancelled, got %s", s.Status)
		}
		changed, err := s.Transition(OpCancel, now)
		if err != nil || changed {
			t.Errorf("repeat cancel should be a no-op, got changed=%v err=%v", changed, err)
		}
	}
}

func TestApprove_BlockedByOpenComment(t *testing.T) {
	s := newSpec()
	c, err := s.AddComment(AuthorReviewer, "Budget fehlt", true, now)
	if err != nil {
		t.Fatalf("add comment: %v", err)
	}

	_, err = s.Transition(OpApprove, now)
	isLifecycleErr(t, err)
	if s.Status != StatusDraft {
		t.Fatalf("status changed despite rejection: %s", s.Status)
	}

	if _, err := s.ResolveComment(c.ID, now); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := s.Transition(OpApprove, now); err != nil {
		t.Fatalf("approve after resolve: %v", err)
	}
}

func TestDesignURL_RequiresPayment(t *testing.T) {
	s := newSpec()

	_, err := s.SetDesignURL("https://designs.example.com/d/1", now)
	isLifecycleErr(t, err)
	if s.DesignURL != nil {
		t.Fatal("design url set despite rejection")
	}

	if !s.MarkDesignPaid(now) {
		t.Fatal("first payment should change the specification")
	}
	if s.Status != StatusDraft {
		t.Errorf("payment must not change status, got %s", s.Status)
	}

	changed, err := s.SetDesignURL("https://designs.example.com/d/1", now)
	if err != nil || !changed {
		t.Fatalf("expected success after payment, got changed=%v err=%v", changed, err)
	}
}

func TestDesignURL_SetOnce(t *testing.T) {
	s := newSpec()
	s.MarkDesignPaid(now)
	if _, err := s.SetDesignURL("https://designs.example.com/a", now); err != nil {
		t.Fatal(err)
	}

	changed, err := s.SetDesignURL("https://designs.example.com/a", now)
	if err != nil || changed {
		t.Errorf("same url should be a no-op, got changed=%v err=%v", changed, err)
	}
	_, err = s.SetDesignURL("https://designs.example.com/b", now)
	isLifecycleErr(t, err)
	if *s.DesignURL != "https://designs.example.com/a" {
		t.Errorf("design url overwritten: %s", *s.DesignURL)
	}
}

func TestDesignURL_Invalid(t *testing.T) {
	s := newSpec()
	s.MarkDesignPaid(now)
	for _, raw := range []string{"", "not a url", "ftp://example.com/x", "/relative"} {
		if _, err := s.SetDesignURL(raw, now); err == nil {
			t.Errorf("expected rejection for %q", raw)
		}
	}
}

func TestMarkDesignPaid_Irreversible(t *testing.T) {
	s := newSpec()
	s.MarkDesignPaid(now)
	if s.MarkDesignPaid(now) {
		t.Error("second payment should be a no-op")
	}
	if !s.IsDesignPaid {
		t.Error("paid flag reset")
	}
}

func TestRelease(t *testing.T) {
	s := newSpec()

	_, err := s.ReleaseToMarketplace(now)
	isLifecycleErr(t, err)
	if s.ReleasedToMarketplace {
		t.Fatal("released without design url")
	}

	s.MarkDesignPaid(now)
	if _, err := s.SetDesignURL("https://designs.example.com/a", now); err != nil {
		t.Fatal(err)
	}

	changed, err := s.ReleaseToMarketplace(now)
	if err != nil || !changed {
		t.Fatalf("expected release, got changed=%v err=%v", changed, err)
	}
	changed, err = s.ReleaseToMarketplace(now)
	if err != nil || changed {
		t.Errorf("second release should be a no-op, got changed=%v err=%v", changed, err)
	}
}

func TestRelease_CancelledRejected(t *testing.T) {
	s := newSpec()
	s.MarkDesignPaid(now)
	s.SetDesignURL("https://designs.example.com/a", now)
	s.Transition(OpCancel, now)

	_, err := s.ReleaseToMarketplace(now)
	isLifecycleErr(t, err)
}

func TestAddComment_Validation(t *testing.T) {
	s := newSpec()
	if _, err := s.AddComment("stranger", "hi", false, now); err == nil {
		t.Error("expected rejection for unknown author")
	}
	if _, err := s.AddComment(AuthorEntrepreneur, "  ", false, now); err == nil {
		t.Error("expected rejection for empty content")
	}
	c, err := s.AddComment(AuthorNova, "Passt so?", false, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Comments) != 1 || s.Comments[0].ID != c.ID {
		t.Errorf("comment not appended: %+v", s.Comments)
	}
	if _, err := s.ResolveComment("missing", now); err == nil {
		t.Error("expected error for unknown comment")
	}
}

func TestRequestChanges(t *testing.T) {
	s := newSpec()
	c, err := s.RequestChanges(AuthorReviewer, "Budget fehlt", now)
	if err != nil {
		t.Fatalf("request changes: %v", err)
	}
	if !c.Blocking || s.Status != StatusReview {
		t.Fatalf("expected blocking comment and review status, got %+v in %s", c, s.Status)
	}

	// Already in review: only the comment is added.
	if _, err := s.RequestChanges(AuthorReviewer, "Zeitplan unklar", now); err != nil {
		t.Fatalf("second request: %v", err)
	}
	if s.Status != StatusReview || s.OpenBlockingComments() != 2 {
		t.Errorf("expected review with 2 blocking comments, got %s / %d", s.Status, s.OpenBlockingComments())
	}

	// Approved specifications keep their status.
	approved := newSpec()
	approved.Status = StatusApproved
	if _, err := approved.RequestChanges(AuthorReviewer, "Nachtrag", now); err != nil {
		t.Fatalf("request on approved: %v", err)
	}
	if approved.Status != StatusApproved {
		t.Errorf("expected approved to stay, got %s", approved.Status)
	}

	cancelled := newSpec()
	cancelled.Status = StatusCancelled
	_, err = cancelled.RequestChanges(AuthorReviewer, "zu spät", now)
	isLifecycleErr(t, err)
	if len(cancelled.Comments) != 0 {
		t.Error("rejected request must not add a comment")
	}
}

func TestClone_IsDeep(t *testing.T) {
	h := 5.0
	u := "https://designs.example.com/a"
	s := newSpec()
	s.Requirements = []Requirement{{ID: "r1", ManualHoursPerWeek: &h}}
	s.DesignURL = &u
	s.Comments = []Comment{{ID: "c1"}}

	c := s.Clone()
	*c.Requirements[0].ManualHoursPerWeek = 1
	*c.DesignURL = "changed"
	c.Comments[0].Resolved = true

	if *s.Requirements[0].ManualHoursPerWeek != 5 || *s.DesignURL != u || s.Comments[0].Resolved {
		t.Error("clone shares memory with the original")
	}
}
