package workdir

import (
	"os"
	"path/filepath"

	"github.com/lostatc/reversion/persist"
	"github.com/lostatc/reversion/reversionerrors"
	"github.com/uplo-tech/errors"
)

const (
	configHeader  = "reversion-workdir-config"
	configVersion = "1"
	linkHeader    = "reversion-workdir-link"
	linkVersion   = "1"
)

// binding is the .versioning/config file's contents: which timeline this
// working directory tracks (spec.md §6 "config # binding: {timeline_id}").
type binding struct {
	TimelineID string
}

func bindingPath(vdir string) string { return filepath.Join(vdir, "config") }

func saveBinding(vdir string, b binding) error {
	return persist.SaveJSON(persist.Metadata{Header: configHeader, Version: configVersion}, b, bindingPath(vdir))
}

func loadBinding(vdir string) (binding, error) {
	var b binding
	if err := persist.LoadJSON(persist.Metadata{Header: configHeader, Version: configVersion}, &b, bindingPath(vdir)); err != nil {
		return binding{}, errors.Compose(reversionerrors.ErrInvalidRepository, err)
	}
	return b, nil
}

// repositoryLink is the contents of a .versioning/repository stub file
// when the repository lives outside the working directory (spec.md §4.10
// "a stub file referencing an external repository path").
type repositoryLink struct {
	Path string
}

func repositoryEntryPath(vdir string) string { return filepath.Join(vdir, "repository") }

func saveRepositoryLink(vdir string, l repositoryLink) error {
	return persist.SaveJSON(persist.Metadata{Header: linkHeader, Version: linkVersion}, l, repositoryEntryPath(vdir))
}

// resolveRepositoryPath locates the repository this working directory is
// bound to: the embedded directory at .versioning/repository, or, when
// that entry is a plain file, the path stored in its link.
func resolveRepositoryPath(vdir string) (string, error) {
	entry := repositoryEntryPath(vdir)
	fi, err := os.Stat(entry)
	if err != nil {
		return "", errors.Compose(reversionerrors.ErrInvalidRepository, err)
	}
	if fi.IsDir() {
		return entry, nil
	}
	var link repositoryLink
	if err := persist.LoadJSON(persist.Metadata{Header: linkHeader, Version: linkVersion}, &link, entry); err != nil {
		return "", errors.Compose(reversionerrors.ErrInvalidRepository, err)
	}
	return link.Path, nil
}

func saveIgnore(vdir string, matchers []Matcher) error {
	var lines []byte
	for _, m := range matchers {
		switch mm := m.(type) {
		case PrefixMatcher:
			lines = append(lines, []byte("prefix:"+mm.Prefix+"\n")...)
		case GlobMatcher:
			lines = append(lines, []byte("glob:"+mm.Pattern+"\n")...)
		}
	}
	return os.WriteFile(ignorePath(vdir), lines, 0644)
}

func ignorePath(vdir string) string { return filepath.Join(vdir, "ignore") }

func loadIgnoreFile(vdir string) ([]Matcher, error) {
	data, err := os.ReadFile(ignorePath(vdir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.AddContext(err, "could not read ignore file")
	}
	return ParseIgnore(data)
}
