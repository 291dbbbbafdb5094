// Package overlay keeps the two device-local annotations over remote
// conversation data: pinned conversation partners and nickname overrides.
// The overlay never syncs remotely; it is re-applied on every render via
// Annotate.
package overlay

import (
	"encoding/json"
	"errors"
	"os"
	"sort"
	"sync"

	"hopin-service/internal/models"
)

// Overlay is the device-local annotation blob.
type Overlay struct {
	PinnedIDs []string          `json:"pinnedChatIds"`
	Nicknames map[string]string `json:"chatNicknames"`
}

// Store persists the overlay as a single JSON file.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore constructs a Store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the overlay; a missing file is an empty overlay.
func (s *Store) Load() (Overlay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Pin adds a counterpart id to the pinned set.
func (s *Store) Pin(counterpartID string) error {
	return s.update(func(o *Overlay) {
		for _, id := range o.PinnedIDs {
			if id == counterpartID {
				return
			}
		}
		o.PinnedIDs = append(o.PinnedIDs, counterpartID)
	})
}

// Unpin removes a counterpart id from the pinned set.
func (s *Store) Unpin(counterpartID string) error {
	return s.update(func(o *Overlay) {
		kept := o.PinnedIDs[:0]
		for _, id := range o.PinnedIDs {
			if id != counterpartID {
				kept = append(kept, id)
			}
		}
		o.PinnedIDs = kept
	})
}

// SetNickname sets or clears a display-name override for a counterpart.
func (s *Store) SetNickname(counterpartID, nickname string) error {
	return s.update(func(o *Overlay) {
		if o.Nicknames == nil {
			o.Nicknames = map[string]string{}
		}
		if nickname == "" {
			delete(o.Nicknames, counterpartID)
			return
		}
		o.Nicknames[counterpartID] = nickname
	})
}

func (s *Store) update(mutate func(*Overlay)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.load()
	if err != nil {
		return err
	}
	mutate(&o)

	data, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

func (s *Store) load() (Overlay, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Overlay{}, nil
		}
		return Overlay{}, err
	}
	var o Overlay
	if err := json.Unmarshal(data, &o); err != nil {
		return Overlay{}, err
	}
	return o, nil
}

// Annotate applies the overlay to a remote conversation list: nickname
// overrides replace the counterpart username and pinned counterparts float
// to the top, each group keeping its original order.
func Annotate(list []models.ConversationSummary, o Overlay) []models.ConversationSummary {
	pinned := map[string]bool{}
	for _, id := range o.PinnedIDs {
		pinned[id] = true
	}

	out := make([]models.ConversationSummary, len(list))
	copy(out, list)
	for i := range out {
		if nickname, ok := o.Nicknames[out[i].CounterpartID]; ok && nickname != "" {
			out[i].Username = nickname
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return pinned[out[i].CounterpartID] && !pinned[out[j].CounterpartID]
	})
	return out
}
