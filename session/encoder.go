package session

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrCorrupt is returned when a persisted session cannot be decoded or is
// internally inconsistent.
var ErrCorrupt = errors.New("persisted session corrupt")

const identityFormatVersion = 1

type identityRecord struct {
	Version int    `json:"v"`
	ID      string `json:"id"`
	Email   string `json:"email,omitempty"`
	Role    string `json:"role,omitempty"`
	Name    string `json:"name,omitempty"`
}

// EncodeIdentity serializes an identity snapshot for storage.
func EncodeIdentity(id Identity) (string, error) {
	data, err := json.Marshal(identityRecord{
		Version: identityFormatVersion,
		ID:      id.ID,
		Email:   id.Email,
		Role:    id.Role,
		Name:    id.Name,
	})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeIdentity parses a snapshot written by [EncodeIdentity]. Snapshots written
// before versioning (no "v" field) are accepted.
func DecodeIdentity(raw string) (Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, nil
	}

	var rec identityRecord
	dec := json.NewDecoder(strings.NewReader(raw))
	if err := dec.Decode(&rec); err != nil {
		return Identity{}, errors.Join(ErrCorrupt, err)
	}
	if rec.Version > identityFormatVersion {
		return Identity{}, errors.Join(ErrCorrupt, errors.New("unknown identity format version"))
	}

	id := Identity{
		ID:    rec.ID,
		Email: rec.Email,
		Role:  rec.Role,
		Name:  rec.Name,
	}
	if id.ID == "" && id.Email == "" {
		return Identity{}, errors.Join(ErrCorrupt, errors.New("identity has neither id nor email"))
	}
	return id, nil
}
