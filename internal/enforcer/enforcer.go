// Package enforcer decides what happens when a tab lands on a domain the
// user's goals reject: nothing, an overlay takeover, a soft-block
// countdown, or a hard close with a redirect to the supervisor page.
package enforcer

import (
	"context"
	"log"

	"tabwarden/internal/attention"
	"tabwarden/internal/browser"
	"tabwarden/internal/cache"
	"tabwarden/internal/domain"
	"tabwarden/internal/session"
	"tabwarden/internal/softblock"
	"tabwarden/internal/store"
)

// Notifier raises desktop notifications on enforcement. Optional.
type Notifier interface {
	BlockEnforced(domain string) error
	CountdownExpired() error
}

// BlockRecorder journals enforcement actions locally. Optional.
type BlockRecorder interface {
	RecordBlock(kind, domain string) error
}

// Journal kinds mirrored here so the enforcer does not import the journal
// implementation.
const (
	blockKindHard    = "hard_block"
	blockKindSoft    = "soft_block"
	blockKindOverlay = "overlay_block"
	blockKindExpiry  = "soft_block_expired"
)

type Enforcer struct {
	sessions *session.Manager
	store    *store.Client
	cache    *cache.DomainCache
	timer    *softblock.Timer
	tabs     *browser.Registry
	accum    *attention.Accumulator
	journal  BlockRecorder
	notifier Notifier

	supervisorURL  string // site prefix used to find an already-open tab
	supervisorPage string // full URL of the supervisor route
	defaultTimeout int    // minutes, when settings carry none
}

func New(sessions *session.Manager, st *store.Client, dc *cache.DomainCache, timer *softblock.Timer, tabs *browser.Registry, accum *attention.Accumulator, supervisorURL, supervisorPage string, defaultTimeout int) *Enforcer {
	return &Enforcer{
		sessions:       sessions,
		store:          st,
		cache:          dc,
		timer:          timer,
		tabs:           tabs,
		accum:          accum,
		supervisorURL:  supervisorURL,
		supervisorPage: supervisorPage,
		defaultTimeout: defaultTimeout,
	}
}

// SetJournal attaches an optional local block recorder.
func (e *Enforcer) SetJournal(j BlockRecorder) { e.journal = j }

// SetNotifier attaches an optional desktop notifier.
func (e *Enforcer) SetNotifier(n Notifier) { e.notifier = n }

// CheckTab runs the blocking decision for one tab. It never returns an
// error: it is invoked from event callbacks with no supervisor above them,
// so every failure resolves to the safest default (allow) and a log line.
// force skips the settings gate and hard-blocks unconditionally: the
// soft-block expiry path.
func (e *Enforcer) CheckTab(ctx context.Context, tabID int, rawURL string, force bool) {
	dom, ok := domain.NormalizeHost(rawURL)
	if !ok {
		return
	}
	if !e.sessions.Authenticated() {
		return
	}

	snap, err := e.cache.Get(ctx)
	if err != nil {
		log.Printf("enforcer: domain fetch failed, allowing %s: %v", dom, err)
		return
	}
	if len(snap.Rejected) == 0 {
		return
	}

	if !domain.MatchAny(dom, snap.Rejected) {
		// User is not on a violating tab; suspend any running countdown.
		if e.timer.Pause() {
			e.broadcastTick()
		}
		return
	}

	e.bumpDeviationWarnings(ctx, dom, snap.Rows)

	if force {
		e.hardBlock(tabID, dom, blockKindExpiry)
		return
	}

	settings, err := e.fetchSettings(ctx)
	if err != nil || settings == nil {
		// Fail open: without settings there is nothing to enforce with.
		log.Printf("enforcer: settings unavailable, allowing %s: %v", dom, err)
		return
	}

	switch {
	case settings.HardBlock:
		e.hardBlock(tabID, dom, blockKindHard)

	case settings.SoftBlock:
		e.softBlock(ctx, dom, settings.Timeout(e.defaultTimeout))

	default:
		e.overlayBlock(tabID, dom, settings.Overlay)
	}
}

// bumpDeviationWarnings increments deviation_warning on every row whose
// rejected list matches the domain. Best effort: the block must not wait
// on, or fail because of, these writes.
func (e *Enforcer) bumpDeviationWarnings(ctx context.Context, dom string, rows []store.GoalRow) {
	sess := e.sessions.Current()
	for i := range rows {
		row := &rows[i]
		if !domain.MatchAny(dom, row.Rejected()) {
			continue
		}
		patch := map[string]any{"deviation_warning": row.DeviationWarning + 1}
		if err := e.store.PatchGoalRow(ctx, sess.AccessToken, row.ID, row.GoalID, patch); err != nil {
			log.Printf("enforcer: deviation warning for row %s failed: %v", row.ID, err)
		}
	}
}

func (e *Enforcer) fetchSettings(ctx context.Context) (*store.Settings, error) {
	pid, err := e.sessions.ResolveProfileID(ctx)
	if err != nil || pid == "" {
		return nil, err
	}
	return e.store.Settings(ctx, e.sessions.Current().AccessToken, pid)
}

// hardBlock closes the tab, brings the supervisor page to front and drops
// any attention accumulated on the domain.
func (e *Enforcer) hardBlock(tabID int, dom, kind string) {
	log.Printf("enforcer: hard block -> closing tab %d (%s)", tabID, dom)
	e.tabs.CloseTab(tabID)
	e.focusSupervisor()
	e.accum.ClearDomain(dom)
	e.recordBlock(kind, dom)
	if e.notifier != nil {
		if err := e.notifier.BlockEnforced(dom); err != nil {
			log.Printf("enforcer: notification failed: %v", err)
		}
	}
}

// focusSupervisor reuses an open tab on the app's site, or opens a new one.
func (e *Enforcer) focusSupervisor() {
	if tab, ok := e.tabs.FindByURLPrefix(e.supervisorURL); ok {
		e.tabs.NavigateTab(tab.ID, e.supervisorPage, true)
		return
	}
	e.tabs.CreateTab(e.supervisorPage)
}

// softBlock starts or resumes the countdown. Starting while a countdown is
// live is a no-op, so rapid tab events cannot reset the clock.
func (e *Enforcer) softBlock(ctx context.Context, dom string, timeoutMinutes int) {
	if !e.timer.Live() {
		remaining := e.timer.Start(timeoutMinutes, false)
		log.Printf("enforcer: soft block countdown started (%ds) for %s", remaining, dom)
		e.recordBlock(blockKindSoft, dom)
		e.broadcastTick()

		// Guard against a stale trigger: if the active tab moved off the
		// rejected set between the event and now, start suspended.
		if !e.activeTabRejected(ctx) {
			e.timer.Pause()
			e.broadcastTick()
		}
		return
	}
	if e.timer.Resume() {
		log.Printf("enforcer: soft block resumed (%ds left)", e.timer.Status().RemainingSecs)
		e.broadcastTick()
	}
}

// activeTabRejected reports whether the focused tab currently matches a
// rejected pattern, using whatever the cache already holds.
func (e *Enforcer) activeTabRejected(ctx context.Context) bool {
	tab, ok := e.tabs.ActiveTab()
	if !ok {
		return false
	}
	dom, ok := domain.NormalizeHost(tab.URL)
	if !ok {
		return false
	}
	snap, err := e.cache.Get(ctx)
	if err != nil {
		return false
	}
	return domain.MatchAny(dom, snap.Rejected)
}

// overlayBlock injects the full-page takeover, or falls back to a hard
// close when the overlay is disabled or the page refuses injection.
func (e *Enforcer) overlayBlock(tabID int, dom string, overlayEnabled bool) {
	if !overlayEnabled {
		log.Printf("enforcer: overlay disabled -> closing tab %d (%s)", tabID, dom)
		e.hardBlock(tabID, dom, blockKindHard)
		return
	}
	if err := e.tabs.InjectOverlay(tabID); err != nil {
		log.Printf("enforcer: overlay injection failed, falling back to close: %v", err)
		e.hardBlock(tabID, dom, blockKindHard)
		return
	}
	log.Printf("enforcer: overlay block on tab %d (%s)", tabID, dom)
	e.accum.ClearDomain(dom)
	e.recordBlock(blockKindOverlay, dom)
}

// EnforceExpiry hard-blocks every open tab matching a rejected pattern.
// Invoked when the soft-block countdown reaches zero; expiry always
// escalates regardless of the hard/soft settings.
func (e *Enforcer) EnforceExpiry(ctx context.Context) {
	snap, err := e.cache.Get(ctx)
	if err != nil {
		log.Printf("enforcer: expiry sweep could not load domains: %v", err)
		return
	}
	log.Printf("enforcer: soft block expired, enforcing on all matching tabs")
	for _, tab := range e.tabs.Tabs() {
		dom, ok := domain.NormalizeHost(tab.URL)
		if !ok || !domain.MatchAny(dom, snap.Rejected) {
			continue
		}
		e.CheckTab(ctx, tab.ID, tab.URL, true)
	}
	if e.notifier != nil {
		if err := e.notifier.CountdownExpired(); err != nil {
			log.Printf("enforcer: notification failed: %v", err)
		}
	}
}

// TestURL reports whether url would be blocked right now, and by which
// pattern. Diagnostic only, no side effects.
func (e *Enforcer) TestURL(ctx context.Context, rawURL string) (blocked bool, pattern string) {
	dom, ok := domain.NormalizeHost(rawURL)
	if !ok {
		return false, ""
	}
	snap, err := e.cache.Get(ctx)
	if err != nil {
		return false, ""
	}
	for _, p := range snap.Rejected {
		if domain.Match(dom, p) {
			return true, p
		}
	}
	return false, ""
}

// SoftBlockTime answers the UI's countdown query: remaining seconds, the
// configured default timeout in minutes, and the paused flag. When soft
// block is configured but no countdown has started yet, the full timeout
// is reported so the widget can show what is at stake.
func (e *Enforcer) SoftBlockTime(ctx context.Context) (remainingSecs, defaultTimeoutMinutes int, paused bool) {
	defaultTimeoutMinutes = e.defaultTimeout

	settings, err := e.fetchSettings(ctx)
	if err == nil && settings != nil {
		defaultTimeoutMinutes = settings.Timeout(e.defaultTimeout)
	}

	st := e.timer.Status()
	remainingSecs = st.RemainingSecs
	if settings != nil && settings.SoftBlock && remainingSecs <= 0 && !st.Running {
		remainingSecs = defaultTimeoutMinutes * 60
	}
	return remainingSecs, defaultTimeoutMinutes, st.Paused
}

// PauseIfIdle suspends the countdown when the focused tab is not on a
// rejected domain. The engine calls this from the 1 Hz tick.
func (e *Enforcer) PauseIfIdle(ctx context.Context) bool {
	if !e.timer.Status().Running {
		return false
	}
	if e.activeTabRejected(ctx) {
		return false
	}
	if e.timer.Pause() {
		e.broadcastTick()
		return true
	}
	return false
}

func (e *Enforcer) broadcastTick() {
	st := e.timer.Status()
	e.tabs.Broadcast("softBlockTick", map[string]any{
		"remainingSecs": st.RemainingSecs,
		"isPaused":      st.Paused,
	})
}

// BroadcastTick pushes the current countdown value to every tab.
func (e *Enforcer) BroadcastTick() { e.broadcastTick() }

func (e *Enforcer) recordBlock(kind, dom string) {
	if e.journal == nil {
		return
	}
	if err := e.journal.RecordBlock(kind, dom); err != nil {
		log.Printf("enforcer: journal write failed: %v", err)
	}
}
