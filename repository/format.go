package repository

import "path/filepath"

// FormatVersion is the schema/layout version this provider writes and
// reads. Bumped only for a breaking on-disk change (spec.md §4.7 "Format
// markers").
const FormatVersion = 1

// ProviderName identifies this package's storage provider in a
// repository's format.json, matching spec.md §6's example marker.
const ProviderName = "db-v1"

// formatHeader/formatFileVersion tag format.json through persist.SaveJSON/
// LoadJSON so a corrupt or foreign file is rejected before its fields are
// trusted.
const (
	formatHeader      = "reversion-format"
	formatFileVersion = "1"
)

// Format is the repository root's format marker (spec.md §4.7, §6):
// `{"provider":"db-v1","format_version":1,"uuid":"…","hash_algorithm":"SHA-256"}`.
type Format struct {
	Provider      string `json:"provider"`
	FormatVersion int    `json:"format_version"`
	UUID          string `json:"uuid"`
	HashAlgorithm string `json:"hash_algorithm"`
}

func formatPath(root string) string {
	return filepath.Join(root, "format.json")
}

func metadataPath(root string) string {
	return filepath.Join(root, "metadata.db")
}

func blobsPath(root string) string {
	return filepath.Join(root, "blobs")
}
