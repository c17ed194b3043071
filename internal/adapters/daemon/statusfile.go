// Package daemon implements the long-lived server process, the client
// side of its framed protocol, and daemon lifecycle management (status
// file discovery, spawning, idle shutdown).
package daemon

import (
	"encoding/json"
	"os"
	"path/filepath"

	"go.trai.ch/pycheck/internal/core/domain"
	"go.trai.ch/zerr"
)

// WriteStatus publishes the daemon's discovery record. The file is the
// only registry there is, so it is written completely before the daemon
// starts serving.
func WriteStatus(path string, record domain.StatusRecord) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
			return zerr.Wrap(err, "failed to create status directory")
		}
	}
	data, err := json.Marshal(record)
	if err != nil {
		return zerr.Wrap(err, "failed to encode status record")
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, domain.PrivateFilePerm); err != nil {
		return zerr.Wrap(err, "failed to write status file")
	}
	return nil
}

// RemoveStatus deletes the status file; a missing file is fine.
func RemoveStatus(path string) {
	_ = os.Remove(path)
}

// ReadStatus reads and validates the discovery record. Every failure
// mode — missing file, malformed JSON, wrong shape, wrong field types,
// dead pid — is domain.ErrBadStatus; the caller treats it as "no usable
// daemon", fatal to discovery.
func ReadStatus(path string) (domain.StatusRecord, error) {
	data, err := os.ReadFile(path) //nolint:gosec // status path is operator-controlled
	if err != nil {
		return domain.StatusRecord{}, zerr.Wrap(domain.ErrBadStatus, "status file not readable: "+err.Error())
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.StatusRecord{}, zerr.Wrap(domain.ErrBadStatus, "status file is not a JSON object")
	}

	var record domain.StatusRecord
	pidRaw, ok := raw["pid"]
	if !ok {
		return domain.StatusRecord{}, zerr.Wrap(domain.ErrBadStatus, "status file has no pid field")
	}
	if err := json.Unmarshal(pidRaw, &record.PID); err != nil {
		return domain.StatusRecord{}, zerr.Wrap(domain.ErrBadStatus, "status file pid is not an integer")
	}

	nameRaw, ok := raw["connection_name"]
	if !ok {
		// The legacy field name is still honored.
		nameRaw, ok = raw["sockname"]
	}
	if !ok {
		return domain.StatusRecord{}, zerr.Wrap(domain.ErrBadStatus, "status file has no connection_name field")
	}
	if err := json.Unmarshal(nameRaw, &record.ConnectionName); err != nil || record.ConnectionName == "" {
		return domain.StatusRecord{}, zerr.Wrap(domain.ErrBadStatus, "status file connection_name is not a string")
	}

	if !pidAlive(record.PID) {
		return domain.StatusRecord{}, zerr.Wrap(domain.ErrBadStatus, "recorded daemon pid is not alive")
	}
	return record, nil
}
