package collections

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	ErrCollectionNotFound = errors.New("collection not found")
	ErrInvalidName        = errors.New("invalid collection name")
)

// Manager persists named, ordered lists of character names in one JSON
// object. Every mutation rewrites the whole file.
type Manager struct {
	path    string
	order   []string
	members map[string][]string
	mu      sync.RWMutex
	log     *log.Logger
}

// NewManager creates a manager for the collections file at path
func NewManager(path string, logger *log.Logger) *Manager {
	return &Manager{
		path:    path,
		members: make(map[string][]string),
		log:     logger,
	}
}

// Path returns the collections file location
func (m *Manager) Path() string {
	return m.path
}

// Load reads the collections file. A missing file is an empty store; an
// unreadable one is moved aside to .bak and the store starts empty.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.order = nil
	m.members = make(map[string][]string)

	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	order, members, err := decodeOrdered(data)
	if err != nil {
		backupPath := m.path + ".bak"
		m.log.Error("Failed to parse collections, starting empty", "path", m.path, "backup", backupPath, "error", err)
		if rerr := os.Rename(m.path, backupPath); rerr != nil {
			m.log.Warn("Failed to back up collections file", "error", rerr)
		}
		return nil
	}

	m.order = order
	m.members = members
	return nil
}

// Save writes the collections file
func (m *Manager) Save() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.save()
}

func (m *Manager) save() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return err
	}
	data, err := encodeOrdered(m.order, m.members)
	if err != nil {
		return fmt.Errorf("failed to marshal collections: %w", err)
	}
	return os.WriteFile(m.path, data, 0644)
}

// Names returns collection names in insertion order
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.order)
}

// Create adds an empty collection. Returns false if it already exists.
func (m *Manager) Create(name string) (bool, error) {
	if name == "" {
		return false, ErrInvalidName
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.members[name]; ok {
		return false, nil
	}
	m.members[name] = []string{}
	m.order = append(m.order, name)
	m.log.Debug("Collection created", "name", name)
	return true, m.save()
}

// Delete removes a collection. Returns false if it did not exist.
func (m *Manager) Delete(name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.members[name]; !ok {
		return false, nil
	}
	delete(m.members, name)
	m.order = slices.DeleteFunc(m.order, func(n string) bool { return n == name })
	m.log.Debug("Collection deleted", "name", name)
	return true, m.save()
}

// Rename moves a collection's members under a new name, which goes to
// the end of the order. Returns false if old is missing or new is taken.
func (m *Manager) Rename(oldName, newName string) (bool, error) {
	if newName == "" {
		return false, ErrInvalidName
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	items, ok := m.members[oldName]
	if !ok {
		return false, nil
	}
	if _, taken := m.members[newName]; taken {
		return false, nil
	}

	delete(m.members, oldName)
	m.order = slices.DeleteFunc(m.order, func(n string) bool { return n == oldName })
	m.members[newName] = items
	m.order = append(m.order, newName)
	m.log.Debug("Collection renamed", "from", oldName, "to", newName)
	return true, m.save()
}

// AddMember appends item to a collection; adding a present item is a no-op
func (m *Manager) AddMember(name, item string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	items, ok := m.members[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	if slices.Contains(items, item) {
		return nil
	}
	m.members[name] = append(items, item)
	return m.save()
}

// RemoveMember drops item from a collection; removing an absent item is a no-op
func (m *Manager) RemoveMember(name, item string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	items, ok := m.members[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	idx := slices.Index(items, item)
	if idx < 0 {
		return nil
	}
	m.members[name] = slices.Delete(items, idx, idx+1)
	return m.save()
}

// Members returns a copy of a collection's members in order
func (m *Manager) Members(name string) ([]string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items, ok := m.members[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(items), true
}

// CollectionsContaining returns, in order, the collections listing item
func (m *Manager) CollectionsContaining(item string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	for _, name := range m.order {
		if slices.Contains(m.members[name], item) {
			names = append(names, name)
		}
	}
	return names
}

// decodeOrdered parses a JSON object of string arrays keeping key order
func decodeOrdered(data []byte) ([]string, map[string][]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("expected a JSON object")
	}

	var order []string
	members := make(map[string][]string)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected token %v", tok)
		}
		var items []string
		if err := dec.Decode(&items); err != nil {
			return nil, nil, fmt.Errorf("collection %q: %w", key, err)
		}
		if items == nil {
			items = []string{}
		}
		if _, seen := members[key]; !seen {
			order = append(order, key)
		}
		members[key] = items
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return order, members, nil
}

// encodeOrdered renders members as an indented JSON object in order
func encodeOrdered(order []string, members map[string][]string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		items := members[name]
		if items == nil {
			items = []string{}
		}
		value, err := json.Marshal(items)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}
