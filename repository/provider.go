package repository

import (
	"os"

	"github.com/google/uuid"
	"github.com/lostatc/reversion/blobstore"
	"github.com/lostatc/reversion/config"
	"github.com/lostatc/reversion/reversionerrors"
	"github.com/lostatc/reversion/store"
	"github.com/lostatc/reversion/timeline"
	"github.com/spf13/afero"
	"github.com/uplo-tech/errors"
)

// Provider is a storage backend's factory: given a path, it knows whether
// a repository of its own kind lives there and how to open or create one
// (spec.md §4.11 "a process-wide registry of provider implementations").
type Provider interface {
	Name() string
	Description() string
	// DefaultConfig returns the raw config overrides a fresh repository is
	// created with; an empty map means every config.Property falls back to
	// its own Default.
	DefaultConfig() map[string]string
	Check(path string) bool
	Open(path string) (*Repository, error)
	Create(path string, rawConfig map[string]string) (*Repository, error)
}

// Importer is optionally implemented by a Provider that can adopt an
// externally-produced tree at src into a repository at tgt.
type Importer interface {
	Import(src, tgt string) error
}

// Exporter is optionally implemented by a Provider that can materialise a
// repository's current state as a plain directory tree at tgt.
type Exporter interface {
	Export(tgt string) error
}

// DBProvider is reversion's sole built-in storage provider: a SQLite
// metadata store plus a sharded content-addressed blob directory
// (spec.md §4.7 format.json "provider":"db-v1").
type DBProvider struct{}

// NewDBProvider constructs the db-v1 provider.
func NewDBProvider() *DBProvider { return &DBProvider{} }

// Name implements Provider.
func (p *DBProvider) Name() string { return ProviderName }

// Description implements Provider.
func (p *DBProvider) Description() string {
	return "SQLite metadata store with a sharded, content-addressed blob directory"
}

// DefaultConfig implements Provider: no overrides, every config.Property
// resolves to its own documented default.
func (p *DBProvider) DefaultConfig() map[string]string {
	return map[string]string{}
}

// Check implements Provider: the format marker is present, names this
// provider, and carries a format version this build understands.
func (p *DBProvider) Check(path string) bool {
	f, err := readFormat(path)
	if err != nil {
		return false
	}
	return f.Provider == ProviderName && f.FormatVersion <= FormatVersion
}

// Open implements Provider.
func (p *DBProvider) Open(path string) (*Repository, error) {
	if _, err := os.Stat(formatPath(path)); err != nil {
		return nil, reversionerrors.ErrIncompatibleRepository
	}
	f, err := readFormat(path)
	if err != nil {
		return nil, errors.Compose(reversionerrors.ErrInvalidRepository, err)
	}
	if f.Provider != ProviderName {
		return nil, reversionerrors.ErrIncompatibleRepository
	}
	if f.FormatVersion > FormatVersion {
		return nil, reversionerrors.ErrUnsupportedFormat
	}
	return openAt(path, f)
}

// Create implements Provider: fails with ErrAlreadyExists if a format
// marker is already present at path.
func (p *DBProvider) Create(path string, rawConfig map[string]string) (*Repository, error) {
	if _, err := os.Stat(formatPath(path)); err == nil {
		return nil, reversionerrors.ErrAlreadyExists
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, errors.AddContext(err, "could not create repository directory")
	}
	if err := os.MkdirAll(blobsPath(path), 0755); err != nil {
		return nil, errors.AddContext(err, "could not create blob store directory")
	}

	st, err := store.Open(metadataPath(path))
	if err != nil {
		return nil, errors.AddContext(err, "could not open metadata store")
	}
	for k, v := range rawConfig {
		if err := st.SetConfig(k, v); err != nil {
			st.Close()
			return nil, errors.AddContext(err, "could not apply config override")
		}
	}
	cfg := config.New(st)
	hashAlg, err := config.Get(cfg, config.HashAlgorithm)
	if err != nil {
		st.Close()
		return nil, err
	}

	bs, err := blobstore.Open(afero.NewOsFs(), blobsPath(path))
	if err != nil {
		st.Close()
		return nil, errors.AddContext(err, "could not open blob store")
	}

	f := Format{
		Provider:      ProviderName,
		FormatVersion: FormatVersion,
		UUID:          uuid.NewString(),
		HashAlgorithm: hashAlg.String(),
	}
	if err := writeFormat(path, f); err != nil {
		st.Close()
		bs.Close()
		return nil, err
	}

	return &Repository{
		path: path, store: st, blobs: bs, config: cfg, format: f,
		timelines: make(map[string]*timeline.Timeline),
	}, nil
}
