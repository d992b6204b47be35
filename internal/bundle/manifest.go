package bundle

import (
	"bufio"
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
)

// ManifestPath is the entry path of the manifest inside a bundle archive,
// and its relative path inside an unpacked working directory.
const ManifestPath = "META-INF/MANIFEST.MF"

// Manifest attribute names recognized by the parser.
const (
	AttrBundleID           = "Bundle-Id"
	AttrBundleDependencyID = "Bundle-Dependency-Id"
	AttrExtensionClasses   = "Extension-Classes"
)

// Manifest holds the identity and extension declarations of a bundle.
type Manifest struct {
	// BundleID identifies the bundle. Synthesized from the archive filename
	// when the archive carries no manifest.
	BundleID string

	// DependencyID names the bundle whose classes this bundle must see.
	// Empty when the bundle declares no parent.
	DependencyID string

	// Extensions are the declared extension class names, in declaration order.
	Extensions []string

	// Attributes holds every parsed attribute, including the ones above.
	Attributes map[string]string
}

// Synthetic reports whether the manifest was synthesized from an archive
// filename rather than parsed from manifest bytes.
func (m *Manifest) Synthetic() bool {
	_, ok := m.Attributes[AttrBundleID]
	return !ok
}

// InvalidManifestError reports malformed manifest syntax.
type InvalidManifestError struct {
	Line   int
	Reason string
}

func (e *InvalidManifestError) Error() string {
	return fmt.Sprintf("invalid manifest at line %d: %s", e.Line, e.Reason)
}

// ParseManifest parses JAR-style `Key: value` attribute lines from the main
// manifest section. A line starting with a single space continues the
// previous attribute's value. Parsing stops at the first blank line.
func ParseManifest(data []byte) (*Manifest, error) {
	attrs := make(map[string]string)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	lastKey := ""
	for scanner.Scan() {
		line++
		raw := strings.TrimRight(scanner.Text(), "\r")
		if raw == "" {
			break
		}

		if strings.HasPrefix(raw, " ") {
			if lastKey == "" {
				return nil, &InvalidManifestError{Line: line, Reason: "continuation line without a preceding attribute"}
			}
			attrs[lastKey] += strings.TrimPrefix(raw, " ")
			continue
		}

		key, value, found := strings.Cut(raw, ":")
		if !found {
			return nil, &InvalidManifestError{Line: line, Reason: fmt.Sprintf("attribute line %q has no colon", raw)}
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, &InvalidManifestError{Line: line, Reason: "attribute line has an empty name"}
		}

		attrs[key] = strings.TrimSpace(value)
		lastKey = key
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read manifest bytes: %w", err)
	}

	m := &Manifest{
		BundleID:     attrs[AttrBundleID],
		DependencyID: attrs[AttrBundleDependencyID],
		Attributes:   attrs,
	}

	if classes := attrs[AttrExtensionClasses]; classes != "" {
		seen := make(map[string]struct{})
		for _, name := range strings.Split(classes, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			m.Extensions = append(m.Extensions, name)
		}
	}

	return m, nil
}

// SyntheticManifest builds an identity-only manifest for an archive without
// one. The bundle id is the archive filename without its extension; such a
// bundle contributes no extensions but is still unpacked.
func SyntheticManifest(archiveName string) *Manifest {
	base := filepath.Base(archiveName)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return &Manifest{
		BundleID:   stem,
		Attributes: map[string]string{},
	}
}
