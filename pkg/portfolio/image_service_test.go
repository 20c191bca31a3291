package portfolio_test

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/portfolio-admin/pkg/portfolio"
	"github.com/tendant/portfolio-admin/pkg/portfolio/notify"
	"github.com/tendant/portfolio-admin/pkg/portfolio/objectkey"
	"github.com/tendant/portfolio-admin/pkg/portfolio/repo/memory"
	memorystorage "github.com/tendant/portfolio-admin/pkg/portfolio/storage/memory"
)

// faultyBlobs wraps a blob store, records removals and fails the configured
// operations
type faultyBlobs struct {
	portfolio.BlobStore
	uploadErr error
	removeErr error
	removed   []string
}

func (f *faultyBlobs) Upload(ctx context.Context, key string, r io.Reader, opts portfolio.UploadOptions) (string, error) {
	if f.uploadErr != nil {
		return "", &portfolio.BlobStoreError{Bucket: "images", Key: key, Op: "upload", Err: f.uploadErr}
	}
	return f.BlobStore.Upload(ctx, key, r, opts)
}

func (f *faultyBlobs) Remove(ctx context.Context, keys ...string) error {
	f.removed = append(f.removed, keys...)
	if f.removeErr != nil {
		return &portfolio.BlobStoreError{Bucket: "images", Key: strings.Join(keys, ","), Op: "remove", Err: f.removeErr}
	}
	return f.BlobStore.Remove(ctx, keys...)
}

// steppingClock returns a later instant on every call so generated keys differ
func steppingClock() func() time.Time {
	now := time.UnixMilli(1700000000000)
	return func() time.Time {
		now = now.Add(time.Millisecond)
		return now
	}
}

type imageFixture struct {
	svc   *portfolio.ImageService
	table *faultyTable[portfolio.Image]
	blobs *faultyBlobs
	store *memorystorage.Backend
	feed  *notify.Feed
}

func newImageFixture() *imageFixture {
	store := memorystorage.New("images", "/storage")
	blobs := &faultyBlobs{BlobStore: store}
	table := &faultyTable[portfolio.Image]{Table: memory.New().Images}
	feed := notify.NewFeed(20)
	keys := objectkey.NewTimestampGenerator()
	keys.Now = steppingClock()
	svc := portfolio.NewImageService(table, blobs,
		portfolio.WithNotifier(feed),
		portfolio.WithKeyGenerator(keys),
	)
	return &imageFixture{svc: svc, table: table, blobs: blobs, store: store, feed: feed}
}

func file(name, content string) *portfolio.FileUpload {
	return &portfolio.FileUpload{
		Filename:    name,
		ContentType: "image/png",
		Size:        int64(len(content)),
		Reader:      strings.NewReader(content),
	}
}

func readBlob(t *testing.T, store portfolio.BlobStore, key string) string {
	t.Helper()
	rc, err := store.Download(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestImageService_CreateThenList(t *testing.T) {
	f := newImageFixture()
	ctx := context.Background()

	img, err := f.svc.CreateImage(ctx, portfolio.ImageDraft{Name: "Café Niño!", IsLogo: true, File: file("photo.PNG", "png-data")})
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^\d+_cafe-nino\.png$`), img.Path)
	assert.Equal(t, "/storage/images/"+img.Path, img.PublicURL)
	assert.True(t, img.IsLogo)

	images, err := f.svc.GetImages(ctx)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "png-data", readBlob(t, f.store, images[0].Path))

	meta, err := f.store.Stat(ctx, img.Path)
	require.NoError(t, err)
	assert.Equal(t, portfolio.ImageCacheControl, meta.CacheControl)

	assert.Equal(t, "Image created successfully", recent(t, f.feed)[0].Detail)
}

func TestImageService_CreateValidation(t *testing.T) {
	f := newImageFixture()

	_, err := f.svc.CreateImage(context.Background(), portfolio.ImageDraft{})
	var ve *portfolio.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"name", "file"}, ve.Fields)
	assert.Empty(t, f.blobs.removed)
}

func TestImageService_CreateUploadFailure(t *testing.T) {
	f := newImageFixture()
	f.blobs.uploadErr = errors.New("bucket quota exceeded")

	_, err := f.svc.CreateImage(context.Background(), portfolio.ImageDraft{Name: "logo", File: file("logo.svg", "<svg/>")})
	require.Error(t, err)
	assert.ErrorIs(t, err, portfolio.ErrUploadFailed)
	assert.Equal(t, 0, f.table.Table.(*memory.Table[portfolio.Image]).Len())

	items := recent(t, f.feed)
	require.Len(t, items, 1)
	assert.Equal(t, portfolio.KindError, items[0].Kind)
}

func TestImageService_CreateInsertFailureRemovesBlob(t *testing.T) {
	f := newImageFixture()
	insertErr := portfolio.QueryError(portfolio.TableImages, "insert", portfolio.KindConflict, errors.New("duplicate key"))
	f.table.insertErr = insertErr

	_, err := f.svc.CreateImage(context.Background(), portfolio.ImageDraft{Name: "logo", File: file("logo.png", "x")})
	require.Error(t, err)
	assert.ErrorIs(t, err, insertErr)
	assert.Contains(t, err.Error(), "error creating image")

	require.Len(t, f.blobs.removed, 1)
	objects, err := f.store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestImageService_CreateCompensationFailureIsJoined(t *testing.T) {
	f := newImageFixture()
	insertErr := portfolio.QueryError(portfolio.TableImages, "insert", portfolio.KindUnavailable, errors.New("timeout"))
	removeErr := errors.New("permission denied")
	f.table.insertErr = insertErr
	f.blobs.removeErr = removeErr

	_, err := f.svc.CreateImage(context.Background(), portfolio.ImageDraft{Name: "logo", File: file("logo.png", "x")})
	require.Error(t, err)
	assert.ErrorIs(t, err, insertErr)
	assert.ErrorIs(t, err, removeErr)
	assert.Equal(t, portfolio.KindUnavailable, portfolio.QueryErrorKindOf(err))
}

func TestImageService_UpdateWithNewFile(t *testing.T) {
	f := newImageFixture()
	ctx := context.Background()

	img, err := f.svc.CreateImage(ctx, portfolio.ImageDraft{Name: "Logo", File: file("logo.png", "old")})
	require.NoError(t, err)

	updated, err := f.svc.UpdateImage(ctx, img.ID, portfolio.ImagePatch{File: file("logo-v2.png", "new")})
	require.NoError(t, err)
	assert.NotEqual(t, img.Path, updated.Path)
	assert.Equal(t, "Logo", updated.Name)
	assert.Equal(t, "new", readBlob(t, f.store, updated.Path))
	assert.Equal(t, "/storage/images/"+updated.Path, updated.PublicURL)

	_, err = f.store.Stat(ctx, img.Path)
	assert.ErrorIs(t, err, portfolio.ErrObjectNotFound)
}

func TestImageService_UpdateWithoutFile(t *testing.T) {
	f := newImageFixture()
	ctx := context.Background()

	img, err := f.svc.CreateImage(ctx, portfolio.ImageDraft{Name: "Logo", File: file("logo.png", "old")})
	require.NoError(t, err)

	updated, err := f.svc.UpdateImage(ctx, img.ID, portfolio.ImagePatch{Name: strPtr("Brand"), IsLogo: boolPtr(true)})
	require.NoError(t, err)
	assert.Equal(t, "Brand", updated.Name)
	assert.True(t, updated.IsLogo)
	assert.Equal(t, img.Path, updated.Path)
	assert.Empty(t, f.blobs.removed)
}

func TestImageService_UpdateFailureRemovesNewBlob(t *testing.T) {
	f := newImageFixture()
	ctx := context.Background()

	img, err := f.svc.CreateImage(ctx, portfolio.ImageDraft{Name: "Logo", File: file("logo.png", "old")})
	require.NoError(t, err)

	f.table.updateErr = portfolio.QueryError(portfolio.TableImages, "update", portfolio.KindUnavailable, errors.New("down"))
	_, err = f.svc.UpdateImage(ctx, img.ID, portfolio.ImagePatch{File: file("logo.png", "new")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error updating image")

	objects, err := f.store.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, img.Path, objects[0].Key)
	assert.Equal(t, "old", readBlob(t, f.store, img.Path))
}

func TestImageService_UpdateOldBlobRemovalFailure(t *testing.T) {
	f := newImageFixture()
	ctx := context.Background()

	img, err := f.svc.CreateImage(ctx, portfolio.ImageDraft{Name: "Logo", File: file("logo.png", "old")})
	require.NoError(t, err)

	f.blobs.removeErr = errors.New("network unreachable")
	updated, err := f.svc.UpdateImage(ctx, img.ID, portfolio.ImagePatch{File: file("logo.png", "new")})
	require.Error(t, err)

	var orphan *portfolio.OrphanedBlobError
	require.ErrorAs(t, err, &orphan)
	assert.Equal(t, img.Path, orphan.Path)
	assert.Equal(t, img.ID, orphan.ImageID)

	// the row change is kept and returned
	assert.NotEqual(t, img.Path, updated.Path)
	stored, err := f.svc.GetImage(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Path, stored.Path)

	assert.Equal(t, portfolio.KindWarn, recent(t, f.feed)[0].Kind)
}

func TestImageService_UpdateMissingImage(t *testing.T) {
	f := newImageFixture()

	_, err := f.svc.UpdateImage(context.Background(), 42, portfolio.ImagePatch{File: file("x.png", "x")})
	require.Error(t, err)
	assert.ErrorIs(t, err, portfolio.ErrNoRows)

	objects, err := f.store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestImageService_RemoveImage(t *testing.T) {
	f := newImageFixture()
	ctx := context.Background()

	img, err := f.svc.CreateImage(ctx, portfolio.ImageDraft{Name: "Logo", File: file("logo.png", "data")})
	require.NoError(t, err)

	require.NoError(t, f.svc.RemoveImage(ctx, img))

	images, err := f.svc.GetImages(ctx)
	require.NoError(t, err)
	assert.Empty(t, images)
	_, err = f.store.Stat(ctx, img.Path)
	assert.ErrorIs(t, err, portfolio.ErrObjectNotFound)
}

func TestImageService_RemoveImageStopsOnBlobFailure(t *testing.T) {
	f := newImageFixture()
	ctx := context.Background()

	img, err := f.svc.CreateImage(ctx, portfolio.ImageDraft{Name: "Logo", File: file("logo.png", "data")})
	require.NoError(t, err)

	f.blobs.removeErr = errors.New("denied")
	err = f.svc.RemoveImage(ctx, img)
	require.Error(t, err)
	var bse *portfolio.BlobStoreError
	require.ErrorAs(t, err, &bse)
	assert.Equal(t, "remove", bse.Op)

	images, err := f.svc.GetImages(ctx)
	require.NoError(t, err)
	assert.Len(t, images, 1)
}
