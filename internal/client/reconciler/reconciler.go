// Package reconciler keeps the local tab set and the server in step for a
// signed-in user. Local edits never wait on the network: pushes, pulls and
// deletes run in goroutines and their outcome is reported as a Status.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/patric-chuzhbe/scratchpad/internal/client/autosync"
	"github.com/patric-chuzhbe/scratchpad/internal/client/tabset"
	"github.com/patric-chuzhbe/scratchpad/internal/logger"
	"github.com/patric-chuzhbe/scratchpad/internal/models"
)

type apiClient interface {
	Register(ctx context.Context, username, pin string) (models.UserInfo, string, error)
	Login(ctx context.Context, username, pin string) (models.UserInfo, string, error)
	ListTabs(ctx context.Context, userID string) (models.Tabs, error)
	SaveTab(ctx context.Context, tab models.SaveTabRequest) error
	DeleteTab(ctx context.Context, userID, tabID string) error
	DeleteAllTabs(ctx context.Context, userID string) error
	SetToken(token string)
}

const (
	DefaultDebounce     = 2 * time.Second
	DefaultSyncInterval = 30 * time.Second

	maxParallelPushes     = 4
	syncErrorsChannelSize = 8
)

// ErrNotSignedIn is returned by operations that need an account.
var ErrNotSignedIn = errors.New("not signed in")

// Status is a transient, user-facing message about a sync outcome.
type Status struct {
	Message string
	IsError bool
}

type initOptions struct {
	debounce     time.Duration
	syncInterval time.Duration
	onStatus     func(Status)
}

type InitOption func(*initOptions)

// WithDebounce sets the quiet period after the last edit before a push.
func WithDebounce(debounce time.Duration) InitOption {
	return func(options *initOptions) {
		options.debounce = debounce
	}
}

// WithSyncInterval sets the period of the background push.
func WithSyncInterval(interval time.Duration) InitOption {
	return func(options *initOptions) {
		options.syncInterval = interval
	}
}

// WithStatusHandler receives every Status. Calls are serialized.
func WithStatusHandler(handler func(Status)) InitOption {
	return func(options *initOptions) {
		options.onStatus = handler
	}
}

// Session owns the local tab set, the signed-in account, the debounce timer
// and the periodic sync worker.
type Session struct {
	api          apiClient
	tabs         *tabset.TabSet
	debounce     time.Duration
	syncInterval time.Duration
	onStatus     func(Status)

	// ctx is never cancelled: requests already sent finish after Logout.
	ctx context.Context

	mu            sync.Mutex
	account       *tabset.Account
	debounceTimer *time.Timer
	debounceGen   uint64
	syncer        *autosync.AutoSync

	inflight sync.WaitGroup
	statusMu sync.Mutex
}

func New(api apiClient, tabs *tabset.TabSet, optionsProto ...InitOption) *Session {
	options := &initOptions{
		debounce:     DefaultDebounce,
		syncInterval: DefaultSyncInterval,
		onStatus: func(status Status) {
			logger.Log.Debugln("sync status:", status.Message, "error:", status.IsError)
		},
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	return &Session{
		api:          api,
		tabs:         tabs,
		debounce:     options.debounce,
		syncInterval: options.syncInterval,
		onStatus:     options.onStatus,
		ctx:          context.Background(),
	}
}

// Resume restores a remembered account and restarts the periodic sync.
// It reports whether an account was found.
func (s *Session) Resume() bool {
	account, ok := s.tabs.Account()
	if !ok {
		return false
	}

	s.mu.Lock()
	s.signInLocked(account)
	s.mu.Unlock()

	return true
}

// Register creates an account, remembers it and uploads the local tabs.
func (s *Session) Register(ctx context.Context, username, pin string) error {
	info, token, err := s.api.Register(ctx, username, pin)
	if err != nil {
		s.report(Status{Message: fmt.Sprintf("Registration failed: %v", err), IsError: true})
		return err
	}

	s.remember(info, token)
	s.report(Status{Message: fmt.Sprintf("Registered as %s", info.Username)})

	s.goAsync(func() {
		s.reportPush(s.push(s.ctx))
	})

	return nil
}

// Login authenticates, remembers the account and pulls the server tabs.
func (s *Session) Login(ctx context.Context, username, pin string) error {
	info, token, err := s.api.Login(ctx, username, pin)
	if err != nil {
		s.report(Status{Message: fmt.Sprintf("Login failed: %v", err), IsError: true})
		return err
	}

	s.remember(info, token)
	s.report(Status{Message: fmt.Sprintf("Signed in as %s", info.Username)})

	s.goAsync(s.pull)

	return nil
}

// Logout stops the periodic sync and any pending debounced push and forgets
// the account. Requests already sent are left to finish.
func (s *Session) Logout() {
	s.mu.Lock()
	s.cancelDebounceLocked()
	s.stopSyncerLocked()
	s.account = nil
	err := s.tabs.ForgetAccount()
	s.mu.Unlock()

	s.api.SetToken("")
	if err != nil {
		s.report(Status{Message: fmt.Sprintf("Unable to forget the account: %v", err), IsError: true})
		return
	}
	s.report(Status{Message: "Signed out"})
}

// SyncNow pulls the server tabs. A non-empty server set replaces the local one.
func (s *Session) SyncNow() error {
	if _, ok := s.Account(); !ok {
		s.report(Status{Message: "Sign in to sync", IsError: true})
		return ErrNotSignedIn
	}

	s.goAsync(s.pull)

	return nil
}

// EditContent replaces the content of a tab.
func (s *Session) EditContent(tabID, content string) error {
	return s.mutate(func() error {
		return s.tabs.SetContent(tabID, content)
	})
}

// Rename sets the name of a tab.
func (s *Session) Rename(tabID, name string) error {
	return s.mutate(func() error {
		return s.tabs.Rename(tabID, name)
	})
}

// AddTab appends a tab, selects it and returns its id.
func (s *Session) AddTab() (string, error) {
	var tabID string
	err := s.mutate(func() error {
		var err error
		tabID, err = s.tabs.Add()
		return err
	})

	return tabID, err
}

// Select makes tabID the selected tab. Selection is never synced.
func (s *Session) Select(tabID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tabs.Select(tabID)
}

// RemoveTab deletes a tab locally and, when signed in, on the server.
func (s *Session) RemoveTab(tabID string) error {
	s.mu.Lock()
	if err := s.tabs.Remove(tabID); err != nil {
		s.mu.Unlock()
		return err
	}
	account := s.account
	s.mu.Unlock()

	if account != nil {
		userID := account.ID
		s.goAsync(func() {
			if err := s.api.DeleteTab(s.ctx, userID, tabID); err != nil {
				s.report(Status{Message: fmt.Sprintf("Delete sync failed: %v", err), IsError: true})
			}
		})
	}

	return nil
}

// ClearAll resets the local set to a single empty tab and, when signed in,
// deletes every server tab.
func (s *Session) ClearAll() error {
	s.mu.Lock()
	if err := s.tabs.Reset(); err != nil {
		s.mu.Unlock()
		return err
	}
	account := s.account
	s.mu.Unlock()

	if account != nil {
		userID := account.ID
		s.goAsync(func() {
			if err := s.api.DeleteAllTabs(s.ctx, userID); err != nil {
				s.report(Status{Message: fmt.Sprintf("Clear sync failed: %v", err), IsError: true})
			}
		})
	}

	return nil
}

// ToggleTheme flips between dark and light and returns true for dark.
func (s *Session) ToggleTheme() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tabs.ToggleDarkMode()
}

// Tabs returns a snapshot of the local tabs in display order.
func (s *Session) Tabs() []tabset.Tab {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tabs.Tabs()
}

// Tab returns one local tab.
func (s *Session) Tab(tabID string) (tabset.Tab, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.tabs.Has(tabID) {
		return tabset.Tab{}, false
	}

	return s.tabs.Tab(tabID), true
}

// Selected returns the id of the selected tab.
func (s *Session) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tabs.Selected()
}

// DarkMode reports the current theme.
func (s *Session) DarkMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tabs.DarkMode()
}

// Account returns the signed-in account.
func (s *Session) Account() (tabset.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.account == nil {
		return tabset.Account{}, false
	}

	return *s.account, true
}

// Wait blocks until every pending debounced push and every async request
// started so far has finished. It must not race with new mutations.
func (s *Session) Wait() {
	s.inflight.Wait()
}

// Close pushes a pending debounced change right away, stops the periodic
// sync and waits for outstanding work. The account stays remembered.
func (s *Session) Close() {
	s.mu.Lock()
	flush := s.flushDebounceLocked() && s.account != nil
	syncer := s.syncer
	s.stopSyncerLocked()
	s.mu.Unlock()

	if flush {
		s.goAsync(func() {
			s.reportPush(s.push(s.ctx))
		})
	}
	if syncer != nil {
		syncer.Wait()
	}
	s.Wait()
}

func (s *Session) mutate(change func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := change(); err != nil {
		return err
	}
	if s.account != nil {
		s.scheduleDebounceLocked()
	}

	return nil
}

func (s *Session) remember(info models.UserInfo, token string) {
	account := tabset.Account{
		ID:       info.ID,
		Username: info.Username,
		Token:    token,
	}

	s.mu.Lock()
	err := s.tabs.SetAccount(account)
	s.signInLocked(account)
	s.mu.Unlock()

	if err != nil {
		s.report(Status{Message: fmt.Sprintf("Unable to remember the account: %v", err), IsError: true})
	}
}

func (s *Session) signInLocked(account tabset.Account) {
	s.cancelDebounceLocked()
	s.stopSyncerLocked()

	s.account = &account
	s.api.SetToken(account.Token)

	s.syncer = autosync.New(
		func(ctx context.Context) error {
			return s.push(context.WithoutCancel(ctx))
		},
		s.syncInterval,
		syncErrorsChannelSize,
	)
	s.syncer.ListenErrors(s.reportPush)
	s.syncer.Run(s.ctx)
}

func (s *Session) stopSyncerLocked() {
	if s.syncer == nil {
		return
	}
	s.syncer.Stop()
	s.syncer = nil
}

// scheduleDebounceLocked (re)arms the debounce timer. Each armed timer holds
// one inflight slot until it fires or is cancelled.
func (s *Session) scheduleDebounceLocked() {
	s.cancelDebounceLocked()

	gen := s.debounceGen
	s.inflight.Add(1)
	s.debounceTimer = time.AfterFunc(s.debounce, func() {
		s.fireDebounce(gen)
	})
}

// cancelDebounceLocked invalidates the pending timer, including one whose
// callback is already waiting for the lock.
func (s *Session) cancelDebounceLocked() {
	s.debounceGen++
	if s.debounceTimer == nil {
		return
	}
	if s.debounceTimer.Stop() {
		s.inflight.Done()
	}
	s.debounceTimer = nil
}

// flushDebounceLocked stops a timer that has not fired yet and reports
// whether the caller has to push in its place. A timer that already fired
// is left to push on its own.
func (s *Session) flushDebounceLocked() bool {
	if s.debounceTimer == nil || !s.debounceTimer.Stop() {
		return false
	}
	s.inflight.Done()
	s.debounceTimer = nil
	s.debounceGen++

	return true
}

func (s *Session) fireDebounce(gen uint64) {
	defer s.inflight.Done()

	s.mu.Lock()
	if gen != s.debounceGen || s.account == nil {
		s.mu.Unlock()
		return
	}
	s.debounceTimer = nil
	s.mu.Unlock()

	s.reportPush(s.push(s.ctx))
}

// push uploads a snapshot of every local tab.
func (s *Session) push(ctx context.Context) error {
	s.mu.Lock()
	if s.account == nil {
		s.mu.Unlock()
		return ErrNotSignedIn
	}
	userID := s.account.ID
	tabs := s.tabs.Tabs()
	s.mu.Unlock()

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxParallelPushes)
	for _, tab := range tabs {
		request := models.SaveTabRequest{
			UserID:  userID,
			TabID:   tab.ID,
			TabName: tab.Name,
			Content: tab.Content,
		}
		group.Go(func() error {
			return s.api.SaveTab(groupCtx, request)
		})
	}

	return group.Wait()
}

// pull replaces the local set with a non-empty server set. An empty server
// set gets the local tabs pushed instead.
func (s *Session) pull() {
	account, ok := s.Account()
	if !ok {
		return
	}

	serverTabs, err := s.api.ListTabs(s.ctx, account.ID)
	if err != nil {
		s.report(Status{Message: fmt.Sprintf("Load failed: %v", err), IsError: true})
		return
	}

	if len(serverTabs) == 0 {
		s.reportPush(s.push(s.ctx))
		return
	}

	localTabs := make([]tabset.Tab, 0, len(serverTabs))
	for _, serverTab := range serverTabs {
		localTabs = append(localTabs, tabset.Tab{
			ID:      serverTab.TabID,
			Name:    serverTab.TabName,
			Content: serverTab.Content,
		})
	}

	s.mu.Lock()
	if s.account == nil || s.account.ID != account.ID {
		s.mu.Unlock()
		return
	}
	err = s.tabs.Replace(localTabs)
	s.mu.Unlock()

	if err != nil {
		s.report(Status{Message: fmt.Sprintf("Unable to save loaded tabs: %v", err), IsError: true})
		return
	}
	s.report(Status{Message: fmt.Sprintf("Loaded %d tab(s) from cloud", len(localTabs))})
}

func (s *Session) reportPush(err error) {
	switch {
	case errors.Is(err, ErrNotSignedIn):
		return
	case err != nil:
		s.report(Status{Message: fmt.Sprintf("Sync failed: %v", err), IsError: true})
	default:
		s.report(Status{Message: "Synced"})
	}
}

func (s *Session) goAsync(fn func()) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		fn()
	}()
}

func (s *Session) report(status Status) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()

	s.onStatus(status)
}
