package source

// Reading is a point-in-time value for one tag. Timestamp is monotonic
// milliseconds as reported by the upstream source; nil when the source did
// not supply one or the tag was missing.
type Reading struct {
	TagID     string      `json:"tagId"`
	Value     interface{} `json:"value"`
	Timestamp *int64      `json:"timestamp"`
}

// Snapshot is the canonical normalized shape: tag name to reading.
type Snapshot map[string]Reading

// Record field names accepted for the list-of-records shape.
var (
	idFields    = []string{"tagId", "name", "tag", "id"}
	valueFields = []string{"value", "val", "v"}
)

// Normalize converts either upstream shape into a Snapshot. Records that do
// not carry a recognizable tag identifier are dropped; a malformed entry
// never fails the whole read.
func Normalize(raw interface{}) Snapshot {
	snap := Snapshot{}

	switch data := raw.(type) {
	case []interface{}:
		for _, item := range data {
			rec, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			id := stringField(rec, idFields)
			if id == "" {
				continue
			}
			r := Reading{TagID: id}
			for _, f := range valueFields {
				if v, ok := rec[f]; ok {
					r.Value = v
					break
				}
			}
			r.Timestamp = numField(rec, "timestamp")
			snap[id] = r
		}

	case map[string]interface{}:
		for id, v := range data {
			r := Reading{TagID: id}
			if rec, ok := v.(map[string]interface{}); ok {
				if val, ok := rec["value"]; ok {
					r.Value = val
					r.Timestamp = numField(rec, "timestamp")
				} else {
					// A map without a value field is itself the raw value.
					r.Value = v
				}
			} else {
				r.Value = v
			}
			snap[id] = r
		}
	}

	return snap
}

// ReadOne returns the current reading for a single tag. A missing tag yields
// a null reading, never an error.
func ReadOne(src Source, tagID string) (Reading, error) {
	raw, err := src.GetAllData()
	if err != nil {
		return Reading{TagID: tagID}, err
	}
	snap := Normalize(raw)
	if r, ok := snap[tagID]; ok {
		return r, nil
	}
	return Reading{TagID: tagID}, nil
}

// ReadAll returns a reading for every tag in the list, in list order.
// Tags absent from the source appear as null readings.
func ReadAll(src Source, tags []string) ([]Reading, error) {
	raw, err := src.GetAllData()
	if err != nil {
		return nil, err
	}
	snap := Normalize(raw)

	readings := make([]Reading, 0, len(tags))
	for _, tag := range tags {
		if r, ok := snap[tag]; ok {
			readings = append(readings, r)
		} else {
			readings = append(readings, Reading{TagID: tag})
		}
	}
	return readings, nil
}

// stringField returns the first present string field from the candidates.
func stringField(rec map[string]interface{}, fields []string) string {
	for _, f := range fields {
		if s, ok := rec[f].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// numField returns a numeric field as milliseconds, or nil.
func numField(rec map[string]interface{}, field string) *int64 {
	switch n := rec[field].(type) {
	case float64:
		ms := int64(n)
		return &ms
	case int64:
		ms := n
		return &ms
	case int:
		ms := int64(n)
		return &ms
	}
	return nil
}
