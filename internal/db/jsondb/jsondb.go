// Package jsondb is a storage backend that keeps users and tabs in memory and
// writes them to a JSON file on Close. It is meant for development and for
// single-instance deployments without PostgreSQL.
package jsondb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thoas/go-funk"

	"github.com/patric-chuzhbe/scratchpad/internal/models"
	"github.com/patric-chuzhbe/scratchpad/internal/user"
)

type JSONDB struct {
	fileName string
	mu       sync.RWMutex
	Cache    CacheStruct
}

// CacheStruct is the persisted document. Tabs are keyed by user ID, then by
// tab ID.
type CacheStruct struct {
	Users             map[string]*user.User
	UsernamesToIDs    map[string]string
	UsersIdsToTabsMap map[string]map[string]models.Tab
}

// NewCache returns an empty document.
func NewCache() CacheStruct {
	return CacheStruct{
		Users:             map[string]*user.User{},
		UsernamesToIDs:    map[string]string{},
		UsersIdsToTabsMap: map[string]map[string]models.Tab{},
	}
}

func initDBFile(fileName string) error {
	return writeToJSONFile(fileName, NewCache())
}

func writeToJSONFile(fileName string, cache interface{}) error {
	jsonData, err := json.MarshalIndent(cache, "", "\t")
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %w", err)
	}

	file, err := os.OpenFile(fileName, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0600)
	if err != nil {
		return fmt.Errorf("error opening file: %w", err)
	}
	defer file.Close()

	if _, err = file.Write(jsonData); err != nil {
		return fmt.Errorf("error writing to file: %w", err)
	}

	return nil
}

func parseJSONFile(fileName string, cache *CacheStruct) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(cache)
}

// New loads fileName, creating it with an empty document when missing.
func New(fileName string) (*JSONDB, error) {
	db := &JSONDB{
		fileName: fileName,
		Cache:    NewCache(),
	}

	err := parseJSONFile(db.fileName, &db.Cache)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if err := initDBFile(fileName); err != nil {
			return nil, err
		}
	}
	db.fillMissingMaps()

	return db, nil
}

func (db *JSONDB) fillMissingMaps() {
	if db.Cache.Users == nil {
		db.Cache.Users = map[string]*user.User{}
	}
	if db.Cache.UsernamesToIDs == nil {
		db.Cache.UsernamesToIDs = map[string]string{}
	}
	if db.Cache.UsersIdsToTabsMap == nil {
		db.Cache.UsersIdsToTabsMap = map[string]map[string]models.Tab{}
	}
}

func (db *JSONDB) Ping(ctx context.Context) error {
	return nil
}

// Close writes the document back to the file.
func (db *JSONDB) Close() error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return writeToJSONFile(db.fileName, db.Cache)
}

func (db *JSONDB) CreateUser(ctx context.Context, usr *user.User) (string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.Cache.UsernamesToIDs[usr.Username]; exists {
		return "", models.ErrConflict
	}

	stored := *usr
	stored.ID = uuid.New().String()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	db.Cache.Users[stored.ID] = &stored
	db.Cache.UsernamesToIDs[stored.Username] = stored.ID

	return stored.ID, nil
}

func (db *JSONDB) GetUserByUsername(ctx context.Context, username string) (*user.User, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	userID, found := db.Cache.UsernamesToIDs[username]
	if !found {
		return nil, false, nil
	}
	usr, found := db.Cache.Users[userID]
	if !found {
		return nil, false, nil
	}
	result := *usr

	return &result, true, nil
}

func (db *JSONDB) GetTabs(ctx context.Context, userID string) (models.Tabs, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	userTabs := db.Cache.UsersIdsToTabsMap[userID]
	result := make(models.Tabs, 0, len(userTabs))
	if len(userTabs) == 0 {
		return result, nil
	}

	tabIDs := funk.Keys(userTabs).([]string)
	sort.Strings(tabIDs)
	for _, tabID := range tabIDs {
		result = append(result, userTabs[tabID])
	}

	return result, nil
}

func (db *JSONDB) UpsertTab(ctx context.Context, userID string, tab models.Tab) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.Cache.Users[userID]; !exists {
		return models.ErrUnknownUser
	}

	userTabs, ok := db.Cache.UsersIdsToTabsMap[userID]
	if !ok {
		userTabs = map[string]models.Tab{}
		db.Cache.UsersIdsToTabsMap[userID] = userTabs
	}
	tab.UpdatedAt = time.Now().UTC()
	userTabs[tab.TabID] = tab

	return nil
}

func (db *JSONDB) DeleteTab(ctx context.Context, userID, tabID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	delete(db.Cache.UsersIdsToTabsMap[userID], tabID)

	return nil
}

func (db *JSONDB) DeleteAllTabs(ctx context.Context, userID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	delete(db.Cache.UsersIdsToTabsMap, userID)

	return nil
}

func (db *JSONDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return int64(len(db.Cache.Users)), nil
}

func (db *JSONDB) GetNumberOfTabs(ctx context.Context) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var total int64
	for _, userTabs := range db.Cache.UsersIdsToTabsMap {
		total += int64(len(userTabs))
	}

	return total, nil
}
