package bundle

import "time"

// Unpacked describes an archive whose contents are mirrored into a working
// directory, either freshly extracted or reused from a prior successful run.
// The working-directory tree is owned by external cleanup; nothing in this
// subsystem deletes it.
type Unpacked struct {
	Manifest      *Manifest
	WorkDir       string
	SourcePath    string
	SourceModTime time.Time

	// Extracted is false when a prior run's working directory was reused.
	Extracted bool
}

func (u *Unpacked) BundleID() string {
	return u.Manifest.BundleID
}
