package memory

import (
	"sync"
	"time"

	"quizzz-service/internal/app"
)

// DefaultDraftIdle is how long an untouched draft editor stays open.
const DefaultDraftIdle = 30 * time.Minute

// DraftWorkspace is an in-memory implementation of app.DraftWorkspace. Editors that have
// not been used for the idle period are closed; their drafts reload from the store on the
// next access.
type DraftWorkspace struct {
	idle time.Duration
	now  func() time.Time

	mu        sync.Mutex
	editors   map[string]*openDraft
	lastSweep time.Time
}

type openDraft struct {
	editor  *app.DraftEditor
	touched time.Time
}

func NewDraftWorkspace(idle time.Duration) *DraftWorkspace {
	if idle <= 0 {
		idle = DefaultDraftIdle
	}
	return &DraftWorkspace{
		idle:    idle,
		now:     time.Now,
		editors: make(map[string]*openDraft),
	}
}

func (w *DraftWorkspace) Get(draftID string) (*app.DraftEditor, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	open, ok := w.editors[draftID]
	if !ok {
		return nil, false
	}
	if now.Sub(open.touched) > w.idle {
		delete(w.editors, draftID)
		return nil, false
	}
	open.touched = now
	return open.editor, true
}

func (w *DraftWorkspace) Put(draftID string, editor *app.DraftEditor) {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	w.sweepLocked(now)
	w.editors[draftID] = &openDraft{editor: editor, touched: now}
}

func (w *DraftWorkspace) Drop(draftID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.editors, draftID)
}

// sweepLocked closes idle editors, at most once per idle period.
func (w *DraftWorkspace) sweepLocked(now time.Time) {
	if now.Sub(w.lastSweep) < w.idle {
		return
	}
	w.lastSweep = now
	for id, open := range w.editors {
		if now.Sub(open.touched) > w.idle {
			delete(w.editors, id)
		}
	}
}
