package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fetchverify/pkg/asset"
	"fetchverify/pkg/logging"

	"github.com/BurntSushi/toml"
)

const (
	FileIDPlaceholder = "{FILEID}"
	DefaultFolder     = "master"
)

var ErrUnknownFolder = errors.New("unknown folder")

// Source produces the batch of requests for one run.
type Source interface {
	Requests(ctx context.Context) ([]asset.Request, error)
}

// Static is a Source over a fixed list.
type Static []asset.Request

func (s Static) Requests(ctx context.Context) ([]asset.Request, error) {
	out := make([]asset.Request, len(s))
	copy(out, s)
	return out, nil
}

// LoadRequests reads a TOML file of [[asset]] tables into a Static source.
// Relative folders are resolved against the file's directory.
func LoadRequests(path string) (Static, error) {
	var doc struct {
		Assets []asset.Request `toml:"asset"`
	}
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode requests %s: %w", path, err)
	}
	base := filepath.Dir(path)
	for i := range doc.Assets {
		if f := doc.Assets[i].TargetFolder; f != "" && !filepath.IsAbs(f) {
			doc.Assets[i].TargetFolder = filepath.Join(base, f)
		}
	}
	return Static(doc.Assets), nil
}

// Func adapts a plain function to Source.
type Func func(ctx context.Context) ([]asset.Request, error)

func (f Func) Requests(ctx context.Context) ([]asset.Request, error) { return f(ctx) }

type Property struct {
	Name  string `toml:"name"`
	Value string `toml:"value"`
}

// FileMapping pairs the property holding file IDs with the property holding
// their digests and names the folder they are written into.
type FileMapping struct {
	URLProperty  string `toml:"url_property"`
	HashProperty string `toml:"hash_property"`
	Folder       string `toml:"folder"`
}

// Manifest is the on-disk description of a batch.
type Manifest struct {
	Properties []Property        `toml:"property"`
	Files      []FileMapping     `toml:"file"`
	Folders    map[string]string `toml:"folders"`
}

// LoadManifest decodes a TOML manifest. Relative folder paths are resolved
// against the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", path, err)
	}
	base := filepath.Dir(path)
	for name, dir := range m.Folders {
		dir = strings.TrimSpace(dir)
		if dir != "" && !filepath.IsAbs(dir) {
			dir = filepath.Join(base, dir)
		}
		m.Folders[name] = dir
	}
	return &m, nil
}

// ManifestSource builds requests out of a manifest and a download URL
// template in which {FILEID} is replaced by each file ID.
type ManifestSource struct {
	Manifest    *Manifest
	DownloadURL string
}

func (s *ManifestSource) Requests(ctx context.Context) ([]asset.Request, error) {
	logger := logging.GetLogger(ctx)
	if s.Manifest == nil {
		return nil, fmt.Errorf("no manifest loaded")
	}

	values := s.Manifest.values()
	var reqs []asset.Request
	for _, fm := range s.Manifest.Files {
		folderName := fm.Folder
		if folderName == "" {
			folderName = DefaultFolder
		}
		folder, ok := s.Manifest.Folders[folderName]
		if !ok || folder == "" {
			return nil, fmt.Errorf("%w: failed to get the configured folder %q", ErrUnknownFolder, folderName)
		}

		ids, hasIDs := values[fm.URLProperty]
		hashes, hasHashes := values[fm.HashProperty]
		if !hasIDs || !hasHashes {
			logger.Debug("skipping file mapping without values", "url_property", fm.URLProperty, "hash_property", fm.HashProperty)
			continue
		}
		if len(ids) != len(hashes) {
			logger.Warn("file ids and hashes differ in count, skipping", "url_property", fm.URLProperty, "ids", len(ids), "hashes", len(hashes))
			continue
		}

		for i, id := range ids {
			reqs = append(reqs, asset.Request{
				ID:             id,
				SourceURL:      strings.ReplaceAll(s.DownloadURL, FileIDPlaceholder, id),
				ExpectedDigest: hashes[i],
				TargetFolder:   folder,
			})
			logger.Debug("request added", "id", id, "folder", folder)
		}
	}
	return reqs, nil
}

// values groups non-blank property values by name, splitting comma separated
// lists and keeping their order.
func (m *Manifest) values() map[string][]string {
	out := map[string][]string{}
	for _, p := range m.Properties {
		if strings.TrimSpace(p.Value) == "" {
			continue
		}
		for _, v := range strings.Split(p.Value, ",") {
			v = strings.TrimSpace(v)
			if v != "" {
				out[p.Name] = append(out[p.Name], v)
			}
		}
	}
	return out
}

// ManifestFile loads path on every call so that a long-lived process sees
// edits between runs.
func ManifestFile(path, downloadURL string) Source {
	return Func(func(ctx context.Context) ([]asset.Request, error) {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("manifest not readable: %w", err)
		}
		m, err := LoadManifest(path)
		if err != nil {
			return nil, err
		}
		return (&ManifestSource{Manifest: m, DownloadURL: downloadURL}).Requests(ctx)
	})
}
