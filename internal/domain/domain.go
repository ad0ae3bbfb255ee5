// Package domain holds the entities of §3: Folder, Video, Clip, SyncCursor,
// and their global-store mirror counterparts, plus the field registry of
// §4.5/§9 describing the nine visual fields.
package domain

import "time"

type IndexStatus string

const (
	StatusPending       IndexStatus = "pending"
	StatusMetadataDone  IndexStatus = "metadataDone"
	StatusVectorsDone   IndexStatus = "vectorsDone"
	StatusSTTRunning    IndexStatus = "sttRunning"
	StatusSTTDone       IndexStatus = "sttDone"
	StatusVisionRunning IndexStatus = "visionRunning"
	StatusCompleted     IndexStatus = "completed"
	StatusFailed        IndexStatus = "failed"
	StatusOrphaned      IndexStatus = "orphaned"
)

const (
	LayerMetadata = 0
	LayerVectors  = 1
	LayerSTT      = 2
	LayerVision   = 3
)

// Folder is an authoritative media root.
type Folder struct {
	ID              int64
	Path            string
	VolumeUUID      string
	VolumeName      string
	LastSeenAt      time.Time
	Available       bool
}

// Video is one row per media file inside a folder.
type Video struct {
	ID                int64
	FolderID          int64
	FilePath          string
	FileName          string
	SizeBytes         int64
	FileHash          *string
	ModifiedTime      time.Time
	DurationSeconds   *float64
	IndexLayer        int
	IndexStatus       IndexStatus
	LastProcessedClip int64
	SrtPath           *string
	OrphanedAt        *time.Time
	LastError         *string
}

// Clip is one row per scene segment.
type Clip struct {
	ID                  int64
	VideoID             int64
	StartTime           float64
	EndTime             float64
	ThumbnailPath       string
	Transcript          *string
	Scene               *string
	Subjects            []string // array field, stored as JSON
	Actions             *string
	Objects             []string // array field
	Mood                *string
	ShotType            *string
	Lighting            *string
	Colors              []string // array field
	Description         *string
	Tags                []string
	TextEmbedding       []byte
	TextEmbeddingModel  *string
	ImageEmbedding      []byte
	ImageEmbeddingModel *string
	VisionProvider      *string
}

// SyncCursor is the per-folder high-watermark row kept in the global store.
type SyncCursor struct {
	FolderPath           string
	LastSyncedClipRowid  int64
	LastSyncedVideoRowid int64
	LastSyncedAt         time.Time
	VolumeUUID           string
	VolumeName           string
}

// GlobalVideo mirrors a Video row into the aggregated search store.
type GlobalVideo struct {
	ID            int64
	SourceFolder  string
	SourceVideoID int64
	FilePath      string
	FileName      string
	IndexStatus   IndexStatus
	SrtPath       *string
}

// GlobalClip mirrors a Clip row into the aggregated search store.
type GlobalClip struct {
	ID                 int64
	SourceFolder       string
	SourceClipID       int64
	SourceVideoID      int64
	StartTime          float64
	EndTime            float64
	ThumbnailPath      string
	Transcript         *string
	Description        *string
	Tags               []string
	TextEmbedding      []byte
	TextEmbeddingModel *string
}

// EmbeddingGroup partitions the nine visual fields into the text-composition
// groups consumed by EmbeddingCoordinator (§4.6): primary joined with ". ",
// detail and meta joined with ", ".
type EmbeddingGroup string

const (
	GroupPrimary EmbeddingGroup = "primary"
	GroupDetail  EmbeddingGroup = "detail"
	GroupMeta    EmbeddingGroup = "meta"
)

type MergeStrategy string

const (
	MergePreferNonNil        MergeStrategy = "preferNonNil"
	MergePreferNonEmptyArray MergeStrategy = "preferNonEmptyArray"
)

// FieldSpec is one row of the single-source vision field registry (§9):
// authored once, consumed by SQL generation, prompt generation, response
// schema generation, embedding text composition, and merge dispatch.
type FieldSpec struct {
	ColumnName     string
	IsArray        bool
	IncludeInTags  bool
	EmbeddingGroup EmbeddingGroup
	MergeStrategy  MergeStrategy
	PromptLine     string
	DisplayLabel   string
}

// FieldRegistry is the static table of the nine visual fields. Adding a
// field is a single-point edit here; every consumer iterates this slice.
var FieldRegistry = []FieldSpec{
	{
		ColumnName:     "scene",
		IsArray:        false,
		IncludeInTags:  false,
		EmbeddingGroup: GroupPrimary,
		MergeStrategy:  MergePreferNonNil,
		PromptLine:     "scene: a short description of the overall setting or location",
		DisplayLabel:   "Scene",
	},
	{
		ColumnName:     "subjects",
		IsArray:        true,
		IncludeInTags:  true,
		EmbeddingGroup: GroupPrimary,
		MergeStrategy:  MergePreferNonEmptyArray,
		PromptLine:     "subjects: the people, animals, or primary objects visible",
		DisplayLabel:   "Subjects",
	},
	{
		ColumnName:     "actions",
		IsArray:        false,
		IncludeInTags:  false,
		EmbeddingGroup: GroupPrimary,
		MergeStrategy:  MergePreferNonNil,
		PromptLine:     "actions: what is happening in the scene",
		DisplayLabel:   "Actions",
	},
	{
		ColumnName:     "objects",
		IsArray:        true,
		IncludeInTags:  true,
		EmbeddingGroup: GroupDetail,
		MergeStrategy:  MergePreferNonEmptyArray,
		PromptLine:     "objects: notable inanimate objects visible",
		DisplayLabel:   "Objects",
	},
	{
		ColumnName:     "mood",
		IsArray:        false,
		IncludeInTags:  true,
		EmbeddingGroup: GroupDetail,
		MergeStrategy:  MergePreferNonNil,
		PromptLine:     "mood: the emotional tone of the scene",
		DisplayLabel:   "Mood",
	},
	{
		ColumnName:     "shotType",
		IsArray:        false,
		IncludeInTags:  true,
		EmbeddingGroup: GroupMeta,
		MergeStrategy:  MergePreferNonNil,
		PromptLine:     "shotType: the camera shot type (e.g. close-up, wide, aerial)",
		DisplayLabel:   "Shot Type",
	},
	{
		ColumnName:     "lighting",
		IsArray:        false,
		IncludeInTags:  false,
		EmbeddingGroup: GroupMeta,
		MergeStrategy:  MergePreferNonNil,
		PromptLine:     "lighting: the lighting condition (e.g. bright, low-light, backlit)",
		DisplayLabel:   "Lighting",
	},
	{
		ColumnName:     "colors",
		IsArray:        true,
		IncludeInTags:  false,
		EmbeddingGroup: GroupMeta,
		MergeStrategy:  MergePreferNonEmptyArray,
		PromptLine:     "colors: the dominant colors present",
		DisplayLabel:   "Colors",
	},
	{
		ColumnName:     "description",
		IsArray:        false,
		IncludeInTags:  false,
		EmbeddingGroup: GroupPrimary,
		MergeStrategy:  MergePreferNonNil,
		PromptLine:     "description: a one or two sentence natural-language summary of the clip",
		DisplayLabel:   "Description",
	},
}
