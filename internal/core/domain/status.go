package domain

// StatusRecord is the small JSON document a daemon (or worker) publishes
// at a well-known path so clients can discover it without a registry.
// Clients must treat the record as untrustworthy until the pid has been
// verified alive.
type StatusRecord struct {
	PID            int    `json:"pid"`
	ConnectionName string `json:"connection_name"`
}
