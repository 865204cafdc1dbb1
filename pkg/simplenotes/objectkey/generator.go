package objectkey

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Generator defines the interface for blob key generation strategies
type Generator interface {
	// GenerateKey creates the storage key for one uploaded attachment
	GenerateKey(metadata KeyMetadata) string
}

// KeyMetadata contains information that influences key generation
type KeyMetadata struct {
	OwnerID    string
	NoteID     string
	FileName   string
	UploadedAt time.Time

	// UploadID is a fresh random value per upload. Generators that include it
	// produce keys that cannot collide even for identical owner, filename and
	// timestamp.
	UploadID uuid.UUID
}

// LegacyGenerator reproduces the original owner/timestamp-filename layout:
// {owner}/{unix millis}-{filename}
//
// Two uploads of the same filename by the same owner within one millisecond
// map to the same key. Prefer UniqueGenerator.
type LegacyGenerator struct{}

func NewLegacyGenerator() *LegacyGenerator {
	return &LegacyGenerator{}
}

func (g *LegacyGenerator) GenerateKey(metadata KeyMetadata) string {
	return fmt.Sprintf("%s/%d-%s",
		sanitizePathComponent(metadata.OwnerID),
		metadata.UploadedAt.UnixMilli(),
		sanitizeFilename(metadata.FileName))
}

// UniqueGenerator shards keys on the upload ID, Git style:
// notes/{owner}/{ab}/{cdef...}_{filename}
type UniqueGenerator struct {
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
}

func NewUniqueGenerator() *UniqueGenerator {
	return &UniqueGenerator{
		ShardLength: 2,
	}
}

func (g *UniqueGenerator) GenerateKey(metadata KeyMetadata) string {
	uploadID := metadata.UploadID
	if uploadID == uuid.Nil {
		uploadID = uuid.New()
	}
	idStr := strings.ReplaceAll(uploadID.String(), "-", "")

	shardLength := g.ShardLength
	if shardLength <= 0 || shardLength > len(idStr) {
		shardLength = 2
	}
	shardDir := idStr[:shardLength]
	name := idStr[shardLength:]
	if metadata.FileName != "" {
		name = fmt.Sprintf("%s_%s", name, sanitizeFilename(metadata.FileName))
	}

	return fmt.Sprintf("notes/%s/%s/%s", sanitizePathComponent(metadata.OwnerID), shardDir, name)
}

// CustomFuncGenerator allows users to provide their own key generation function
type CustomFuncGenerator struct {
	GenerateFunc func(metadata KeyMetadata) string
}

func NewCustomFuncGenerator(fn func(metadata KeyMetadata) string) *CustomFuncGenerator {
	return &CustomFuncGenerator{
		GenerateFunc: fn,
	}
}

func (g *CustomFuncGenerator) GenerateKey(metadata KeyMetadata) string {
	return g.GenerateFunc(metadata)
}

// NewRecommendedGenerator returns the recommended generator for new installations
func NewRecommendedGenerator() Generator {
	return NewUniqueGenerator()
}

// ForStrategy maps a configured strategy name to a generator.
func ForStrategy(name string) (Generator, error) {
	switch name {
	case "", "unique":
		return NewUniqueGenerator(), nil
	case "legacy":
		return NewLegacyGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown object key strategy: %s", name)
	}
}

var filenameReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	" ", "_",
)

func sanitizeFilename(filename string) string {
	name := filenameReplacer.Replace(filename)
	if name == "" || name == "." || name == ".." {
		return "file"
	}
	return name
}

func sanitizePathComponent(component string) string {
	c := strings.ToLower(filenameReplacer.Replace(component))
	if c == "" || c == "." || c == ".." {
		return "_"
	}
	return c
}
