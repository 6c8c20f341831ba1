// Package tabset models the client's ordered list of tabs, the selected tab,
// the theme flag and the signed-in account on top of a key/value store.
//
// Keys: code_canvas_<id> holds a tab's content, tab_name_<id> its name,
// tabsList the JSON array of ids, currentCodeCanvas the selected id,
// isDarkMode "true"/"false" and currentUser the JSON account record.
package tabset

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/thoas/go-funk"
)

const (
	contentKeyPrefix = "code_canvas_"
	nameKeyPrefix    = "tab_name_"
	tabsListKey      = "tabsList"
	selectedKey      = "currentCodeCanvas"
	darkModeKey      = "isDarkMode"
	currentUserKey   = "currentUser"

	// DefaultTabID is the id of the single tab of a fresh or cleared set.
	DefaultTabID = "1"
)

var (
	ErrUnknownTab = errors.New("unknown tab")
	ErrLastTab    = errors.New("the last tab cannot be removed")
)

type store interface {
	Get(key string) (string, bool)
	Update(fn func(values map[string]string)) error
}

// Tab is one local text buffer.
type Tab struct {
	ID      string
	Name    string
	Content string
}

// Account is the signed-in user as remembered between runs.
type Account struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Token    string `json:"token,omitempty"`
}

// TabSet is not safe for concurrent use; callers serialize access.
type TabSet struct {
	store store
}

func New(s store) *TabSet {
	return &TabSet{store: s}
}

// IDs returns the tab ids in display order. It is never empty.
func (t *TabSet) IDs() []string {
	raw, ok := t.store.Get(tabsListKey)
	if !ok {
		return []string{DefaultTabID}
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil || len(ids) == 0 {
		return []string{DefaultTabID}
	}

	return ids
}

// Has reports whether id is in the set.
func (t *TabSet) Has(id string) bool {
	return funk.ContainsString(t.IDs(), id)
}

// Selected returns the id of the selected tab.
func (t *TabSet) Selected() string {
	id, ok := t.store.Get(selectedKey)
	if !ok || id == "" {
		return DefaultTabID
	}

	return id
}

// Tab returns the stored name and content of id. Missing values are empty.
func (t *TabSet) Tab(id string) Tab {
	name, _ := t.store.Get(nameKeyPrefix + id)
	content, _ := t.store.Get(contentKeyPrefix + id)

	return Tab{
		ID:      id,
		Name:    name,
		Content: content,
	}
}

// Tabs returns a snapshot of every tab in display order.
func (t *TabSet) Tabs() []Tab {
	ids := t.IDs()
	tabs := make([]Tab, 0, len(ids))
	for _, id := range ids {
		tabs = append(tabs, t.Tab(id))
	}

	return tabs
}

// SetContent replaces the content of an existing tab.
func (t *TabSet) SetContent(id, content string) error {
	if !t.Has(id) {
		return fmt.Errorf("%w: %q", ErrUnknownTab, id)
	}

	return t.store.Update(func(values map[string]string) {
		values[contentKeyPrefix+id] = content
	})
}

// Rename sets the name of an existing tab. Surrounding blanks are trimmed.
func (t *TabSet) Rename(id, name string) error {
	if !t.Has(id) {
		return fmt.Errorf("%w: %q", ErrUnknownTab, id)
	}

	return t.store.Update(func(values map[string]string) {
		values[nameKeyPrefix+id] = strings.TrimSpace(name)
	})
}

// Add appends a tab whose id is one more than the largest numeric id and
// selects it. Ids that are not numbers count as zero.
func (t *TabSet) Add() (string, error) {
	ids := t.IDs()
	maxID := 0
	for _, id := range ids {
		if n, err := strconv.Atoi(id); err == nil && n > maxID {
			maxID = n
		}
	}
	newID := strconv.Itoa(maxID + 1)
	ids = append(ids, newID)

	err := t.store.Update(func(values map[string]string) {
		values[tabsListKey] = encodeIDs(ids)
		values[selectedKey] = newID
	})

	return newID, err
}

// Select makes id the selected tab.
func (t *TabSet) Select(id string) error {
	if !t.Has(id) {
		return fmt.Errorf("%w: %q", ErrUnknownTab, id)
	}

	return t.store.Update(func(values map[string]string) {
		values[selectedKey] = id
	})
}

// Remove deletes the tab with its name and content. Removing the selected tab
// selects the first remaining one.
func (t *TabSet) Remove(id string) error {
	ids := t.IDs()
	if !funk.ContainsString(ids, id) {
		return fmt.Errorf("%w: %q", ErrUnknownTab, id)
	}
	if len(ids) == 1 {
		return ErrLastTab
	}

	remaining := funk.FilterString(ids, func(candidate string) bool {
		return candidate != id
	})
	selected := t.Selected()

	return t.store.Update(func(values map[string]string) {
		values[tabsListKey] = encodeIDs(remaining)
		delete(values, contentKeyPrefix+id)
		delete(values, nameKeyPrefix+id)
		if selected == id {
			values[selectedKey] = remaining[0]
		}
	})
}

// Reset drops every tab and leaves a single empty tab "1" selected.
func (t *TabSet) Reset() error {
	return t.Replace(nil)
}

// Replace swaps the whole set for tabs and selects the first of them.
// An empty tabs leaves the default single empty tab.
func (t *TabSet) Replace(tabs []Tab) error {
	oldIDs := t.IDs()
	if len(tabs) == 0 {
		tabs = []Tab{{ID: DefaultTabID}}
	}

	newIDs := make([]string, 0, len(tabs))
	for _, tab := range tabs {
		newIDs = append(newIDs, tab.ID)
	}

	return t.store.Update(func(values map[string]string) {
		for _, id := range oldIDs {
			delete(values, contentKeyPrefix+id)
			delete(values, nameKeyPrefix+id)
		}
		for _, tab := range tabs {
			values[contentKeyPrefix+tab.ID] = tab.Content
			values[nameKeyPrefix+tab.ID] = tab.Name
		}
		values[tabsListKey] = encodeIDs(newIDs)
		values[selectedKey] = newIDs[0]
	})
}

// DarkMode reports the theme; dark is the default.
func (t *TabSet) DarkMode() bool {
	raw, ok := t.store.Get(darkModeKey)
	return !ok || raw != "false"
}

// ToggleDarkMode flips the theme and returns the new value.
func (t *TabSet) ToggleDarkMode() (bool, error) {
	dark := !t.DarkMode()
	err := t.store.Update(func(values map[string]string) {
		values[darkModeKey] = strconv.FormatBool(dark)
	})

	return dark, err
}

// Account returns the remembered account, if any.
func (t *TabSet) Account() (Account, bool) {
	raw, ok := t.store.Get(currentUserKey)
	if !ok {
		return Account{}, false
	}

	var account Account
	if err := json.Unmarshal([]byte(raw), &account); err != nil || account.ID == "" {
		return Account{}, false
	}

	return account, true
}

// SetAccount remembers account.
func (t *TabSet) SetAccount(account Account) error {
	raw, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("in internal/client/tabset/tabset.go/SetAccount(): error while `json.Marshal()` calling: %w", err)
	}

	return t.store.Update(func(values map[string]string) {
		values[currentUserKey] = string(raw)
	})
}

// ForgetAccount removes the remembered account.
func (t *TabSet) ForgetAccount() error {
	return t.store.Update(func(values map[string]string) {
		delete(values, currentUserKey)
	})
}

func encodeIDs(ids []string) string {
	// Marshalling a []string cannot fail.
	raw, _ := json.Marshal(ids)
	return string(raw)
}
