package model

import "time"

// Remote collection names. Documents in both collections are keyed by the
// composite `{ownerId}_{appId}` identifier so retried writes stay idempotent.
const (
	CollectionDeletedApps     = "deletedApps"
	CollectionAppRestrictions = "appRestrictions"
	CollectionAppUsage        = "appUsage"
)

// DefaultRestrictionSeconds is the time limit applied when a guardian
// restores a deleted app (2 hours).
const DefaultRestrictionSeconds float64 = 2 * 60 * 60

// ActivitySegment is one interval-bounded report of app activity, produced
// once per reporting interval by the reporting environment. Immutable.
type ActivitySegment struct {
	Start          time.Time          `json:"start"`
	End            time.Time          `json:"end"`
	PerAppDuration map[string]float64 `json:"perAppDuration"` // app id -> seconds
	AppNames       map[string]string  `json:"appNames,omitempty"`
	BucketHour     int                `json:"bucketHour"` // source hour hint; -1 when absent
}

// TimeRange is one recorded usage session for an app.
type TimeRange struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Seconds   float64   `json:"seconds"`
	SessionID string    `json:"sessionId"`
}

// AppUsageRecord is the cumulative usage aggregate for one app. It is only
// ever accumulated in place, never deleted; newer accumulation supersedes.
type AppUsageRecord struct {
	AppID             string          `json:"appId"`
	DisplayName       string          `json:"displayName,omitempty"`
	CumulativeSeconds float64         `json:"cumulativeSeconds"`
	HourlyBreakdown   map[int]float64 `json:"hourlyBreakdown"` // hour 0-23 -> seconds
	TimeRanges        []TimeRange     `json:"timeRanges"`
}

// DeletedAppRecord tracks one detected app removal through its lifecycle.
// At most one unprocessed record exists per composite key at any time.
type DeletedAppRecord struct {
	AppID        string    `json:"appId"`
	DisplayName  string    `json:"displayName"`
	DetectedAt   time.Time `json:"detectedAt"`
	OwnerID      string    `json:"ownerId"`
	WasMonitored bool      `json:"wasMonitored"`
	IsProcessed  bool      `json:"isProcessed"`
}

// Key returns the record's composite remote-document key.
func (r DeletedAppRecord) Key() string { return CompositeKey(r.OwnerID, r.AppID) }

// Restriction is the guardian-facing per-app limit document. This core only
// creates or disables restrictions as a side effect of restore/remove.
type Restriction struct {
	AppID             string    `json:"appId"`
	OwnerID           string    `json:"ownerId"`
	TimeLimitSeconds  float64   `json:"timeLimit"`
	IsDisabled        bool      `json:"isDisabled"`
	DailyUsageSeconds float64   `json:"dailyUsage"`
	LastResetDate     time.Time `json:"lastResetDate"`
}

// ReconcileStatus is the best-effort status blob the scheduler writes after
// each pass. LastError is cleared on the next successful pass.
type ReconcileStatus struct {
	LastRun     time.Time `json:"lastRun"`
	LastSuccess time.Time `json:"lastSuccess"`
	LastError   string    `json:"lastError,omitempty"`
}

// CompositeKey builds the `{ownerId}_{appId}` identifier used for all remote
// documents belonging to this core.
func CompositeKey(ownerID, appID string) string {
	return ownerID + "_" + appID
}
