package codec

import (
	"testing"

	"github.com/vincentyang1210/pion/event"
	"github.com/vincentyang1210/pion/vocab"
)

// vocabHarness bundles the test vocabulary with term lookup shorthand.
type vocabHarness struct {
	t     *testing.T
	mgr   *vocab.Manager
	vocab *vocab.Vocabulary
}

func newVocabHarness(t *testing.T) *vocabHarness {
	t.Helper()
	mgr := newTestVocabulary(t)
	return &vocabHarness{t: t, mgr: mgr, vocab: mgr.Vocabulary()}
}

func (h *vocabHarness) ref(local string) vocab.TermRef {
	return ref(h.t, h.vocab, local)
}

func (h *vocabHarness) newEvent() *event.Event {
	return event.New(h.ref("http-event"))
}
