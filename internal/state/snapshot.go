package state

import "time"

// SnapshotRecord tracks a VSS snapshot both in-process and in the
// on-disk JSON registry (spec §3).
type SnapshotRecord struct {
	ShadowId       string    `json:"shadow_id"`
	SourceVolume   string    `json:"source_volume"`
	ShadowPath     string    `json:"shadow_path"`
	CreatedAt      time.Time `json:"created_at"`
	IsRemote       bool      `json:"is_remote"`
	ServerName     string    `json:"server_name,omitempty"`
	ShareName      string    `json:"share_name,omitempty"`
	ShareLocalPath string    `json:"share_local_path,omitempty"`

	// JunctionPath is the exposed reparse point, if one has been created
	// for the current profile run. Not persisted as part of retention
	// bookkeeping; only the snapshot itself is tracked across restarts.
	JunctionPath string `json:"-"`
}

// MountRecord tracks a UNC-to-drive-letter mapping (spec §3).
type MountRecord struct {
	DriveLetter  string    `json:"drive_letter"`
	UNCRoot      string    `json:"unc_root"`
	OriginalPath string    `json:"original_path"`
	MappedPath   string    `json:"mapped_path"`
	CreatedAt    time.Time `json:"created_at"`
}
