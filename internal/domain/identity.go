package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// IdentityKey computes the deterministic content hash that recognizes "the
// same event" across re-fetches and between the ingestion pipeline and the
// override submission API. Any tool that addresses events by key must use
// this exact function; the two sides have to agree byte for byte.
//
// Fields are separated by NUL so that ("ab","c") and ("a","bc") never
// collide. startTime is the clock time on the start date, or "" for an
// untimed start.
func IdentityKey(startDate, startTime, title, url string) string {
	h := sha256.New()
	h.Write([]byte(startDate))
	h.Write([]byte{0})
	h.Write([]byte(startTime))
	h.Write([]byte{0})
	h.Write([]byte(title))
	h.Write([]byte{0})
	h.Write([]byte(url))
	return hex.EncodeToString(h.Sum(nil))
}

// ComputeIdentityKey derives the candidate's key from its own fields.
func (c EventCandidate) ComputeIdentityKey() string {
	return IdentityKey(c.StartDate, c.TimeMap[c.StartDate], c.Title, c.URL)
}
