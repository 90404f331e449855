package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// FileRecord describes a detected file in a transport-friendly format.
type FileRecord struct {
	FileName       string `json:"fileName"`
	Locator        string `json:"locator"`
	LocatorKind    string `json:"locatorKind"`
	Size           int64  `json:"size"`
	LastModified   string `json:"lastModified,omitempty"`
	LastModifiedMs int64  `json:"lastModifiedMs"`
	Incremental    bool   `json:"incremental"`
}

// TrackerStatus summarizes the tracking session.
type TrackerStatus struct {
	Running          bool   `json:"running"`
	SessionID        string `json:"sessionId,omitempty"`
	Target           string `json:"target"`
	ColdScanComplete bool   `json:"coldScanComplete"`
	ExistingCount    int    `json:"existingCount"`
	BaselineNew      int    `json:"baselineNew"`
	Strategy         string `json:"strategy,omitempty"`
	WatcherState     string `json:"watcherState"`
	QueueDepth       int    `json:"queueDepth"`
	QueueCapacity    int    `json:"queueCapacity"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool          `json:"running"`
	PID          int           `json:"pid"`
	LockFilePath string        `json:"lockFilePath"`
	StorePath    string        `json:"storePath"`
	StoreBackend string        `json:"storeBackend"`
	Tracker      TrackerStatus `json:"tracker"`
}

// ExistingResponse lists the files classified as existing this session.
type ExistingResponse struct {
	Files []FileRecord `json:"files"`
	Count int          `json:"count"`
}

// KnownResponse reports whether a file name is in the known set.
type KnownResponse struct {
	FileName string `json:"fileName"`
	Known    bool   `json:"known"`
}

// HealthResponse is returned by the liveness and readiness probes.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
