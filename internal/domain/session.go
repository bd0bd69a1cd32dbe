package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"
)

// Session is the continuation record for a search identity. It carries just
// enough state to resume a "load more" request without re-emitting channels
// the client has already seen.
type Session struct {
	ID                 string    `json:"id"`
	Keyword            string    `json:"keyword"`
	FiltersFingerprint string    `json:"filters_fingerprint"`
	LastEmittedRank    int       `json:"last_emitted_rank"`
	KnownIdentities    []string  `json:"known_identities"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Knows reports whether the identity has already been surfaced in this session.
func (s *Session) Knows(identity string) bool {
	for _, known := range s.KnownIdentities {
		if known == identity {
			return true
		}
	}
	return false
}

// Remember adds identities to the session's known set, skipping duplicates.
// The known set only ever grows.
func (s *Session) Remember(identities ...string) {
	for _, id := range identities {
		if id != "" && !s.Knows(id) {
			s.KnownIdentities = append(s.KnownIdentities, id)
		}
	}
}

// AdvanceRank raises LastEmittedRank to rank. Lower acknowledgments are
// ignored so a stale client can never move the high-water mark backwards.
func (s *Session) AdvanceRank(rank int) {
	if rank > s.LastEmittedRank {
		s.LastEmittedRank = rank
	}
}

// FingerprintFilters derives a stable fingerprint for a filters bag so that
// (keyword, filters) pairs map to the same session across requests. Keys are
// sorted before hashing; an empty bag fingerprints to the empty string.
func FingerprintFilters(filters Filters) string {
	if len(filters) == 0 {
		return ""
	}

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		if v, err := json.Marshal(filters[k]); err == nil {
			h.Write(v)
		}
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
