package statestore

// Flat key namespace. This layout is an external compatibility surface for
// the reporting environment; key names must stay stable.
//
// Ownership: the reporter context writes the usage.* family, the agent
// context writes the recon.* family. Both may read either family.
const (
	KeyUsageRecords = "usage.apps"        // JSON map app id -> AppUsageRecord
	KeyObservedApps = "usage.observed"    // JSON string list
	KeyLastUpdate   = "usage.lastUpdate"  // RFC3339 timestamp
	KeyNewAppQueue  = "usage.newAppQueue" // JSON string list (threshold probe queue)

	KeyKnownApps   = "recon.knownApps" // JSON string list (reconciled baseline)
	KeyReconStatus = "recon.status"    // JSON ReconcileStatus blob
)
