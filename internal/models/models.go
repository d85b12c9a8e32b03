// package models defines the data model for sorting files into date buckets
package models

import (
	"fmt"
	"path/filepath"
	"time"
)

// Model defines the base interface for all persistent models.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// WorkItem is a regular file discovered during traversal.
type WorkItem struct {
	Path string `json:"path"` // Absolute path to the file
}

// Name returns the file's base name.
func (w WorkItem) Name() string {
	return filepath.Base(w.Path)
}

// Bucket is the year/month destination for a file.
type Bucket struct {
	Year  string `json:"year"`  // Four digits
	Month string `json:"month"` // "01" through "12"
}

const (
	minBucketYear = 0
	maxBucketYear = 9999
)

// BucketFor derives the bucket for a modification time in UTC.
//
// ok is false when the year cannot be written with four digits.
func BucketFor(t time.Time) (b Bucket, ok bool) {
	t = t.UTC()
	year := t.Year()
	if year < minBucketYear || year > maxBucketYear {
		return Bucket{}, false
	}
	return Bucket{
		Year:  fmt.Sprintf("%04d", year),
		Month: fmt.Sprintf("%02d", int(t.Month())),
	}, true
}

// Dir returns root/YYYY/MM.
func (b Bucket) Dir(root string) string {
	return filepath.Join(root, b.Year, b.Month)
}

// IsZero reports whether no bucket was computed.
func (b Bucket) IsZero() bool {
	return b.Year == "" && b.Month == ""
}

func (b Bucket) String() string {
	if b.IsZero() {
		return ""
	}
	return b.Year + "/" + b.Month
}
