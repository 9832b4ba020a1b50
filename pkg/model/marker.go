package model

import "time"

// DefaultLabel is used when a marker context carries no label.
const DefaultLabel = "EMPTY"

// MarkerSeparator joins the sections of a marker body. It cannot occur in
// canonical JSON, hex or base64url text.
const MarkerSeparator = "\n::\n"

// MarkerPrefix starts every marker file name.
const MarkerPrefix = ".marker_"

// MarkerFlags describes the operation being marked.
// Extra keeps room for flags that have no dedicated field yet.
type MarkerFlags struct {
	Force      bool              `json:"force"`
	Outdated   bool              `json:"outdated"`
	Deploying  bool              `json:"deploying"`
	MigrateDB  bool              `json:"migrate_db"`
	MigratePVs bool              `json:"migrate_pvs"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// MarkerContext is the operation metadata a marker commits to.
type MarkerContext struct {
	Path  string      `json:"path"`
	Label string      `json:"label"`
	Flags MarkerFlags `json:"flags"`
}

// WithDefaults returns a copy with an empty label replaced by label.
func (c MarkerContext) WithDefaults(label string) MarkerContext {
	if label == "" {
		label = DefaultLabel
	}
	if c.Label == "" {
		c.Label = label
	}
	return c
}

// MarkerPayload is the committed portion of a marker body.
type MarkerPayload struct {
	Timestamp string        `json:"timestamp"`
	Actor     string        `json:"actor"`
	Context   MarkerContext `json:"context"`
}

// MarkerRecord is the parsed content of one marker file.
type MarkerRecord struct {
	Name       string        `json:"name"`
	Commitment HashValue     `json:"commitment"`
	Timestamp  time.Time     `json:"timestamp"`
	Actor      string        `json:"actor"`
	Context    MarkerContext `json:"context"`
	Entropy    string        `json:"entropy"`
	Body       []byte        `json:"-"`
}
