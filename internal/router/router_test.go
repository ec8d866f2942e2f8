package router

import (
	"testing"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/agenda"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func classify(t *testing.T, text string) Command {
	t.Helper()
	return New("Beat").Classify(text, agenda.StyleModerate)
}

func wantIntent(t *testing.T, got Command, want Intent) {
	t.Helper()
	if got.Intent != want {
		t.Fatalf("want intent %s, got %s (text %q)", want, got.Intent, got.Text)
	}
}

// ── Address detection ────────────────────────────────────────────────────────

func TestAddressDetector(t *testing.T) {
	t.Parallel()

	d := NewAddressDetector("Beat")

	t.Run("leading name with comma", func(t *testing.T) {
		t.Parallel()
		if !d.Addressed("Beat, how much time is left?") {
			t.Fatal("want addressed")
		}
	})

	t.Run("at-mention", func(t *testing.T) {
		t.Parallel()
		if !d.Addressed("@beat what did we decide?") {
			t.Fatal("want addressed")
		}
	})

	t.Run("case-insensitive standalone token", func(t *testing.T) {
		t.Parallel()
		if !d.Addressed("I think BEAT should track this") {
			t.Fatal("want addressed")
		}
	})

	t.Run("name inside a longer word does not match", func(t *testing.T) {
		t.Parallel()
		if d.Addressed("we got beaten by the deadline") {
			t.Fatal("want not addressed")
		}
		if d.Addressed("the upbeat mood helped") {
			t.Fatal("want not addressed")
		}
	})

	t.Run("strip removes a leading address only", func(t *testing.T) {
		t.Parallel()
		if got := d.Strip("Beat, skip this item"); got != "skip this item" {
			t.Fatalf("want remainder, got %q", got)
		}
		if got := d.Strip("hey Beat skip this"); got != "skip this" {
			t.Fatalf("want remainder, got %q", got)
		}
		if got := d.Strip("I asked Beat to help"); got != "I asked Beat to help" {
			t.Fatalf("mid-sentence mention must stay intact, got %q", got)
		}
	})

	t.Run("aliases match too", func(t *testing.T) {
		t.Parallel()
		d := NewAddressDetector("Beat", "meetbot")
		if !d.Addressed("meetbot, next topic please") {
			t.Fatal("want alias addressed")
		}
	})

	t.Run("empty name never matches", func(t *testing.T) {
		t.Parallel()
		d := NewAddressDetector("")
		if d.Addressed("anything at all") {
			t.Fatal("detector without names must not match")
		}
	})
}

// ── Classification ───────────────────────────────────────────────────────────

func TestClassify(t *testing.T) {
	t.Parallel()

	t.Run("silence request needs no address", func(t *testing.T) {
		t.Parallel()
		wantIntent(t, classify(t, "please be quiet"), IntentSilence)
		wantIntent(t, classify(t, "ok everyone, we've got this"), IntentSilence)
	})

	t.Run("silence request wins over other intents", func(t *testing.T) {
		t.Parallel()
		wantIntent(t, classify(t, "Beat, please be quiet"), IntentSilence)
	})

	t.Run("unaddressed utterances do not engage", func(t *testing.T) {
		t.Parallel()
		wantIntent(t, classify(t, "how much time is left?"), IntentNone)
		wantIntent(t, classify(t, "let's move on to the budget"), IntentNone)
		wantIntent(t, classify(t, ""), IntentNone)
	})

	t.Run("time query", func(t *testing.T) {
		t.Parallel()
		got := classify(t, "Beat, how much time is left?")
		wantIntent(t, got, IntentTimeQuery)

		wantIntent(t, classify(t, "hey beat, time check"), IntentTimeQuery)
		wantIntent(t, classify(t, "@beat how long do we have?"), IntentTimeQuery)
	})

	t.Run("skip", func(t *testing.T) {
		t.Parallel()
		wantIntent(t, classify(t, "Beat, skip this"), IntentSkip)
		wantIntent(t, classify(t, "Beat, let's move on"), IntentSkip)
		wantIntent(t, classify(t, "beat next topic"), IntentSkip)
	})

	t.Run("end meeting", func(t *testing.T) {
		t.Parallel()
		wantIntent(t, classify(t, "Beat, end the meeting"), IntentEnd)
		wantIntent(t, classify(t, "Beat, wrap it up now"), IntentEnd)
		wantIntent(t, classify(t, "beat, adjourn"), IntentEnd)
	})

	t.Run("override", func(t *testing.T) {
		t.Parallel()
		wantIntent(t, classify(t, "Beat, keep going"), IntentOverride)
		wantIntent(t, classify(t, "Beat, give us more time"), IntentOverride)
		wantIntent(t, classify(t, "beat a few more minutes please"), IntentOverride)
	})

	t.Run("document requests map to types", func(t *testing.T) {
		t.Parallel()

		got := classify(t, "Beat, who was here today?")
		wantIntent(t, got, IntentDocumentRequest)
		if got.Doc == nil || got.Doc.Type != agenda.DocAttendance {
			t.Fatalf("want attendance request, got %+v", got.Doc)
		}

		got = classify(t, "Beat, send the action items afterwards")
		wantIntent(t, got, IntentDocumentRequest)
		if got.Doc == nil || got.Doc.Type != agenda.DocActionItems {
			t.Fatalf("want action-items request, got %+v", got.Doc)
		}

		got = classify(t, "Beat, we need a summary of this")
		wantIntent(t, got, IntentDocumentRequest)
		if got.Doc == nil || got.Doc.Type != agenda.DocSummary {
			t.Fatalf("want summary request, got %+v", got.Doc)
		}
	})

	t.Run("freeform document request captures the description", func(t *testing.T) {
		t.Parallel()
		got := classify(t, "Beat, note down the budget decision")
		wantIntent(t, got, IntentDocumentRequest)
		if got.Doc == nil || got.Doc.Type != agenda.DocCustom {
			t.Fatalf("want custom request, got %+v", got.Doc)
		}
		if got.Doc.Description != "the budget decision" {
			t.Fatalf("want captured description, got %q", got.Doc.Description)
		}
	})

	t.Run("first matching pattern wins", func(t *testing.T) {
		t.Parallel()
		got := classify(t, "Beat, summarize the meeting and note down the risks")
		wantIntent(t, got, IntentDocumentRequest)
		if got.Doc.Type != agenda.DocSummary {
			t.Fatalf("want the earlier summary pattern, got %v", got.Doc.Type)
		}
	})

	t.Run("addressed with no command goes to the model", func(t *testing.T) {
		t.Parallel()
		got := classify(t, "Beat, what do you think about this?")
		wantIntent(t, got, IntentNamedAddress)
		if got.Remainder != "what do you think about this?" {
			t.Fatalf("want stripped remainder, got %q", got.Remainder)
		}
	})
}

// ── Chatting mode ────────────────────────────────────────────────────────────

func TestClassifyChatting(t *testing.T) {
	t.Parallel()

	r := New("Beat")

	t.Run("silence still works", func(t *testing.T) {
		t.Parallel()
		got := r.Classify("please be quiet", agenda.StyleChatting)
		wantIntent(t, got, IntentSilence)
	})

	t.Run("commands are bypassed to the model", func(t *testing.T) {
		t.Parallel()
		got := r.Classify("Beat, how much time is left?", agenda.StyleChatting)
		wantIntent(t, got, IntentGeneral)

		got = r.Classify("so anyway, about the weekend", agenda.StyleChatting)
		wantIntent(t, got, IntentGeneral)
		if got.Remainder != "so anyway, about the weekend" {
			t.Fatalf("want untouched remainder, got %q", got.Remainder)
		}
	})
}
