package unpack

import (
	"github.com/bundlekit/bundlekit/internal/bundle"
	"github.com/bundlekit/bundlekit/internal/extension"
)

type WarningKind string

const (
	WarnAlternateRootUnusable WarningKind = "alternate-root-unusable"
	WarnCorruptArchive        WarningKind = "corrupt-archive"
	WarnInvalidManifest       WarningKind = "invalid-manifest"
	WarnExtractionFailure     WarningKind = "extraction-failure"
	WarnDuplicateBundleID     WarningKind = "duplicate-bundle-id"
	WarnDependencyUnresolved  WarningKind = "dependency-unresolved"
	WarnDependencyCycle       WarningKind = "dependency-cycle"
	WarnExtensionConflict     WarningKind = "extension-name-conflict"
)

// Warning is a non-fatal finding attached to a run's result. Every failure
// other than an invalid primary root degrades to a warning.
type Warning struct {
	Kind    WarningKind
	Message string
}

// Result is the outcome of a completed unpack run. A run that found nothing
// yields an empty but non-nil result; only an invalid primary root yields no
// result at all.
type Result struct {
	Mapping *extension.Mapping
	Graph   *extension.Graph

	// Bundles holds every retained bundle with dependencies ordered before
	// their dependents.
	Bundles []*bundle.Unpacked

	Warnings []Warning
}

// ExtensionNames returns every discovered extension class name, sorted.
func (r *Result) ExtensionNames() []string {
	return r.Mapping.Names()
}

// Lookup returns the bundle id providing the named extension.
func (r *Result) Lookup(name string) (string, bool) {
	return r.Mapping.Lookup(name)
}
