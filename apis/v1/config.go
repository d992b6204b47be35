package v1

// UnpackConfig is the top-level configuration document for an unpack run.
type UnpackConfig struct {
	Kind     string     `yaml:"kind" json:"kind" validate:"required,eq=UnpackConfig"`
	Metadata Metadata   `yaml:"metadata" json:"metadata"`
	Spec     UnpackSpec `yaml:"spec" json:"spec" validate:"required"`
}

type Metadata struct {
	Name string `yaml:"name" json:"name" validate:"required"`
}

type UnpackSpec struct {
	Library LibrarySpec `yaml:"library" json:"library" validate:"required"`

	// WorkDirectory is the base directory under which per-archive
	// `<archive-name>-unpacked` subdirectories are created.
	WorkDirectory string `yaml:"workDirectory" json:"workDirectory" validate:"required"`

	// Workers bounds concurrent archive extraction. Zero means sequential.
	Workers int `yaml:"workers,omitempty" json:"workers,omitempty" validate:"gte=0"`
}

// LibrarySpec names the directories scanned for bundle archives.
type LibrarySpec struct {
	// Directory is the primary library directory. It must exist and be a
	// directory or the whole run fails.
	Directory string `yaml:"directory" json:"directory" validate:"required"`

	// Alternates are optional additional library directories. A missing or
	// file-typed alternate is skipped, not fatal.
	Alternates []string `yaml:"alternates,omitempty" json:"alternates,omitempty"`

	// BundleSuffix selects which files in a library directory are treated
	// as bundle archives. Defaults to ".bundle".
	BundleSuffix string `yaml:"bundleSuffix,omitempty" json:"bundleSuffix,omitempty"`
}
