package portfolio

import (
	"context"
	"errors"
	"fmt"

	"github.com/tendant/portfolio-admin/pkg/portfolio/objectkey"
)

// ImageCacheControl is the cache-control value stored with every upload.
const ImageCacheControl = "3600"

// WithKeyGenerator overrides how ImageService derives object keys.
func WithKeyGenerator(g objectkey.Generator) Option {
	return func(s *settings) {
		if g != nil {
			s.keys = g
		}
	}
}

// ImageService keeps image rows and blob store objects in step.
type ImageService struct {
	rows  *EntityService[Image]
	blobs BlobStore
	keys  objectkey.Generator
	settings
}

// NewImageService creates an ImageService storing rows in table and files in blobs.
func NewImageService(table Table[Image], blobs BlobStore, opts ...Option) *ImageService {
	rows := NewEntityService(table, ImageEntity, opts...)
	keys := rows.settings.keys
	if keys == nil {
		keys = objectkey.NewTimestampGenerator()
	}
	return &ImageService{
		rows:     rows,
		blobs:    blobs,
		keys:     keys,
		settings: rows.settings,
	}
}

// Blobs returns the store the service uploads to.
func (s *ImageService) Blobs() BlobStore {
	return s.blobs
}

// GetImages returns every image ordered by name.
func (s *ImageService) GetImages(ctx context.Context) ([]Image, error) {
	return s.rows.List(ctx)
}

// GetImage returns one image row.
func (s *ImageService) GetImage(ctx context.Context, id int64) (Image, error) {
	return s.rows.Get(ctx, id)
}

// UploadFile stores f under a key derived from name and returns the stored
// key with its public URL. Existing keys are never overwritten.
func (s *ImageService) UploadFile(ctx context.Context, name string, f *FileUpload) (string, string, error) {
	key := s.keys.GenerateKey(name, f.Filename)
	path, err := s.blobs.Upload(ctx, key, f.Reader, UploadOptions{
		CacheControl: ImageCacheControl,
		ContentType:  f.ContentType,
		Upsert:       false,
	})
	if err != nil {
		return "", "", err
	}
	return path, s.blobs.PublicURL(path), nil
}

// CreateImage uploads the file then inserts the row. When the insert fails
// the uploaded object is removed again.
func (s *ImageService) CreateImage(ctx context.Context, draft ImageDraft) (Image, error) {
	if err := draft.Validate(); err != nil {
		return Image{}, fmt.Errorf("error creating image: %w", err)
	}

	path, publicURL, err := s.UploadFile(ctx, draft.Name, draft.File)
	if err != nil {
		err = fmt.Errorf("error uploading image: %w", err)
		s.rows.notifyError(ctx, err)
		return Image{}, err
	}

	row, err := s.rows.table.Insert(ctx, map[string]any{
		"name":       draft.Name,
		"is_logo":    draft.IsLogo,
		"path":       path,
		"public_url": publicURL,
	})
	if err != nil {
		err = fmt.Errorf("error creating image: %w", err)
		if cerr := s.discard(ctx, path); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return Image{}, err
	}

	s.rows.notifySuccess(ctx, "created")
	return row, nil
}

// UpdateImage applies patch to the image row. With a new file the object is
// uploaded first and the row is pointed at it. The previous object is
// removed once the row is updated; if that removal fails the updated row is
// returned together with an *OrphanedBlobError.
func (s *ImageService) UpdateImage(ctx context.Context, id int64, patch ImagePatch) (Image, error) {
	if err := patch.Validate(); err != nil {
		return Image{}, fmt.Errorf("error updating image: %w", err)
	}

	cols := patch.Columns()
	var previous Image
	var uploaded string
	if patch.File != nil {
		var err error
		previous, err = s.rows.Get(ctx, id)
		if err != nil {
			return Image{}, fmt.Errorf("error updating image: %w", err)
		}
		name := previous.Name
		if patch.Name != nil {
			name = *patch.Name
		}
		path, publicURL, err := s.UploadFile(ctx, name, patch.File)
		if err != nil {
			err = fmt.Errorf("error uploading image: %w", err)
			s.rows.notifyError(ctx, err)
			return Image{}, err
		}
		uploaded = path
		cols["path"] = path
		cols["public_url"] = publicURL
	}

	row, err := s.rows.table.Update(ctx, id, cols)
	if err != nil {
		err = fmt.Errorf("error updating image: %w", err)
		if uploaded != "" {
			if cerr := s.discard(ctx, uploaded); cerr != nil {
				err = errors.Join(err, cerr)
			}
		}
		return Image{}, err
	}
	s.rows.notifySuccess(ctx, "updated")

	if uploaded == "" || previous.Path == "" || previous.Path == uploaded {
		return row, nil
	}
	if err := s.blobs.Remove(context.WithoutCancel(ctx), previous.Path); err != nil {
		orphan := &OrphanedBlobError{ImageID: id, Path: previous.Path, Err: err}
		s.logger.Warn("Failed to remove replaced image file", "image_id", id, "path", previous.Path, "error", err)
		notify(ctx, s.settings, NewNotification(KindWarn, "Warning", orphan.Error()))
		return row, orphan
	}
	return row, nil
}

// DeleteImage deletes the row only.
func (s *ImageService) DeleteImage(ctx context.Context, id int64) error {
	return s.rows.Delete(ctx, id)
}

// DeleteFile deletes the object only.
func (s *ImageService) DeleteFile(ctx context.Context, path string) error {
	if err := s.blobs.Remove(ctx, path); err != nil {
		return fmt.Errorf("error deleting file %s: %w", path, err)
	}
	return nil
}

// RemoveImage deletes the object of img and then its row. A failure stops
// the sequence and nothing is restored.
func (s *ImageService) RemoveImage(ctx context.Context, img Image) error {
	if img.Path != "" {
		if err := s.DeleteFile(ctx, img.Path); err != nil {
			return err
		}
	}
	return s.DeleteImage(ctx, img.ID)
}

// discard removes an object uploaded by a write that did not complete. The
// removal runs even if ctx is already cancelled.
func (s *ImageService) discard(ctx context.Context, path string) error {
	err := s.blobs.Remove(context.WithoutCancel(ctx), path)
	if err == nil {
		return nil
	}
	s.logger.Error("Failed to remove uploaded file after failed write", "path", path, "error", err)
	err = fmt.Errorf("error removing uploaded file %s: %w", path, err)
	s.rows.notifyError(ctx, err)
	return err
}
