// Package model defines the shared domain entities for the code-intelligence
// core: projects, snapshots, files, symbols, references, and changesets.
package model

import "time"

// SnapshotState is the lifecycle state of a Snapshot.
type SnapshotState string

const (
	SnapshotPending  SnapshotState = "PENDING"
	SnapshotIndexing SnapshotState = "INDEXING"
	SnapshotReady    SnapshotState = "READY"
	SnapshotFailed   SnapshotState = "FAILED"
)

// ChangesetStatus is the lifecycle state of a Changeset.
type ChangesetStatus string

const (
	ChangesetProposed   ChangesetStatus = "PROPOSED"
	ChangesetApplied    ChangesetStatus = "APPLIED"
	ChangesetRolledBack ChangesetStatus = "ROLLED_BACK"
	ChangesetRejected   ChangesetStatus = "REJECTED"
)

// SymbolKind classifies a Symbol's syntactic role.
type SymbolKind string

const (
	SymbolModule    SymbolKind = "module"
	SymbolClass     SymbolKind = "class"
	SymbolFunction  SymbolKind = "function"
	SymbolMethod    SymbolKind = "method"
	SymbolProperty  SymbolKind = "property"
	SymbolVariable  SymbolKind = "variable"
	SymbolConstant  SymbolKind = "constant"
	SymbolInterface SymbolKind = "interface"
	SymbolType      SymbolKind = "type"
	SymbolEnum      SymbolKind = "enum"
	SymbolImport    SymbolKind = "import"
)

// ReferenceKind classifies the nature of a Reference edge.
type ReferenceKind string

const (
	RefImport         ReferenceKind = "import"
	RefCall           ReferenceKind = "call"
	RefUsage          ReferenceKind = "usage"
	RefInheritance    ReferenceKind = "inheritance"
	RefImplementation ReferenceKind = "implementation"
	RefTypeReference  ReferenceKind = "type_reference"
)

// Project is a logical repository tracked by the system.
type Project struct {
	ID            string
	Name          string
	RootPath      string
	DefaultBranch string
}

// Snapshot is an immutable-after-READY index of a Project at one point in time.
type Snapshot struct {
	ID             string
	ProjectID      string
	CommitID       string
	Branch         string
	State          SnapshotState
	Progress       int
	ErrorMessage   string
	FileCount      int
	SymbolCount    int
	TotalLines     int
	SchemaVersion  int
	CreatedAt      time.Time
}

// File is one text or binary-marked file within a Snapshot.
type File struct {
	ID            string
	SnapshotID    string
	Path          string
	Language      string
	SizeBytes     int64
	LineCount     int
	ContentHash   string
	IsBinary      bool
	CachedContent *string
}

// Symbol is a named entity defined in a File.
type Symbol struct {
	ID             string
	SnapshotID     string
	FileID         string
	Name           string
	QualifiedName  string
	Kind           SymbolKind
	StartLine      int
	EndLine        int
	StartCol       int
	EndCol         int
	Signature      string
	Docstring      string
	ParentID       *string
}

// Reference is a directed edge from a source Symbol to a target Symbol or File.
type Reference struct {
	ID           string
	SnapshotID   string
	FromSymbolID string
	ToSymbolID   *string
	ToFileID     *string
	Kind         ReferenceKind
	Line         int
	Column       int
}

// Changeset is a proposed multi-file edit against a specific Snapshot.
type Changeset struct {
	ID             string
	SnapshotID     string
	Title          string
	Rationale      string
	Status         ChangesetStatus
	CreatedAt      time.Time
	AppliedAt      *time.Time
	RolledBackAt   *time.Time
	CommitID       string
	CommitMessage  string
}

// Patch is one file's portion of a Changeset.
type Patch struct {
	ID               string
	ChangesetID      string
	FilePath         string
	OriginalContent  *string
	NewContent       string
	Diff             string
	ApplyOrder       int
}
