package db

const (
	RELEASE_STATUS_INIT      = "init"
	RELEASE_STATUS_PENDING   = "pending"
	RELEASE_STATUS_PROCESSED = "processed"

	BRIDGE_STATUS_ACTIVE = "active"
	BRIDGE_STATUS_PAUSED = "paused"
)
