// Package source provides access to the upstream data provider and the
// snapshot normalization used by the poll loop.
package source

// SettingHeartbeat is the settings key naming the designated liveness tag.
const SettingHeartbeat = "HEARTBEAT"

// Source is the upstream data provider boundary. GetAllData returns the
// current value set in one of two shapes: an ordered list of records, or a
// map from tag name to a raw value or {value, timestamp} record. Both are
// normalized immediately by this package; downstream code never re-inspects
// the shape.
type Source interface {
	GetAllData() (interface{}, error)
	GetSettings() (map[string]string, error)
}
