package attachment_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/welldanyogia/webrana-cms-backend/internal/attachment"
	apperrors "github.com/welldanyogia/webrana-cms-backend/internal/errors"
	"github.com/welldanyogia/webrana-cms-backend/internal/fixtures"
	"github.com/welldanyogia/webrana-cms-backend/internal/lock"
	"github.com/welldanyogia/webrana-cms-backend/internal/mocks"
	"github.com/welldanyogia/webrana-cms-backend/internal/models"
	"github.com/welldanyogia/webrana-cms-backend/internal/repository"
	"github.com/welldanyogia/webrana-cms-backend/internal/storage"
	"gorm.io/gorm"
)

var (
	testNow = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	news42  = models.Owner{Type: models.OwnerNews, ID: 42}
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingNotifier collects published events
type recordingNotifier struct {
	mu     sync.Mutex
	events []attachment.Event
}

func (n *recordingNotifier) Publish(e attachment.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) ofType(t attachment.EventType) []attachment.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []attachment.Event
	for _, e := range n.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// faultyStorage fails selected operations of the wrapped storage
type faultyStorage struct {
	storage.FileStorage
	moveErr   error
	deleteErr error
	moves     int
	mu        sync.Mutex
}

func (f *faultyStorage) Move(ctx context.Context, src, dst string) error {
	f.mu.Lock()
	f.moves++
	f.mu.Unlock()
	if f.moveErr != nil {
		return f.moveErr
	}
	return f.FileStorage.Move(ctx, src, dst)
}

func (f *faultyStorage) Delete(ctx context.Context, filePath string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.FileStorage.Delete(ctx, filePath)
}

type ServiceTestSuite struct {
	suite.Suite
	db       *gorm.DB
	repo     repository.AttachmentRepository
	fs       afero.Fs
	store    *faultyStorage
	notifier *recordingNotifier
	svc      attachment.Service
	ctx      context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}

func (s *ServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.db = fixtures.NewSQLiteDB(s.T())
	s.repo = repository.NewAttachmentRepository(s.db)
	s.fs = afero.NewMemMapFs()
	s.store = &faultyStorage{FileStorage: storage.NewStorageWithFs(s.fs)}
	s.notifier = &recordingNotifier{}
	s.svc = s.newService(attachment.Config{MaxUploadSize: 1 << 20})
}

func (s *ServiceTestSuite) newService(cfg attachment.Config) attachment.Service {
	return attachment.NewService(s.repo, s.store, lock.NewMemoryLocker(), attachment.NewLayout("/uploads", "temp"), cfg, discardLogger(),
		attachment.WithNotifier(s.notifier),
		attachment.WithClock(func() time.Time { return testNow }),
	)
}

func (s *ServiceTestSuite) upload(name string, content []byte) *models.Attachment {
	att, err := s.svc.UploadTemp(s.ctx, attachment.UploadRequest{Content: content, FileName: name, ContentType: "image/jpeg"})
	s.Require().NoError(err)
	return att
}

func (s *ServiceTestSuite) exists(p string) bool {
	ok, err := afero.Exists(s.fs, p)
	s.Require().NoError(err)
	return ok
}

func (s *ServiceTestSuite) fileCount() int {
	count := 0
	err := afero.Walk(s.fs, ".", func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			count++
		}
		return nil
	})
	s.Require().NoError(err)
	return count
}

func (s *ServiceTestSuite) reload(id uint) *models.Attachment {
	var att models.Attachment
	s.Require().NoError(s.db.Unscoped().First(&att, id).Error)
	return &att
}

// --- UploadTemp ---

func (s *ServiceTestSuite) TestUploadTemp_CreatesTemporaryRow() {
	content := fixtures.JPEG(s.T())

	att := s.upload("Photo.JPG", content)

	s.NotZero(att.ID)
	s.True(att.IsTemporary)
	s.Equal(models.StateTemporary, att.State)
	s.Nil(att.ObjectType)
	s.Nil(att.ObjectID)
	s.True(strings.HasPrefix(att.FilePath, "temp/2026/10/18/"), att.FilePath)
	s.Equal(".jpg", path.Ext(att.FilePath))
	s.Equal("/uploads/"+att.FilePath, att.URL)
	s.Equal("Photo.JPG", att.OriginalFileName)
	s.Equal("image/jpeg", att.ContentType)
	s.Equal("image", att.RelationType)
	s.Equal(int64(len(content)), att.FileSize)
	s.True(s.exists(att.FilePath))

	stored := s.reload(att.ID)
	s.True(stored.IsTemporary)
	s.Equal(testNow.Unix(), stored.CreatedDate.Unix())
}

func (s *ServiceTestSuite) TestUploadTemp_ReencodesOpaquePNGToJPEG() {
	svc := s.newService(attachment.Config{MaxUploadSize: 1 << 20, ImageReencode: true, JPEGQuality: 80})

	att, err := svc.UploadTemp(s.ctx, attachment.UploadRequest{Content: fixtures.PNG(s.T(), false), FileName: "shot.png", RelationType: "content"})

	s.Require().NoError(err)
	s.Equal(".jpg", path.Ext(att.FilePath))
	s.Equal("image/jpeg", att.ContentType)
	s.Equal("content", att.RelationType)

	data, err := afero.ReadFile(s.fs, att.FilePath)
	s.Require().NoError(err)
	s.Equal("image/jpeg", mimetype.Detect(data).String())
	s.Equal(int64(len(data)), att.FileSize)
}

func (s *ServiceTestSuite) TestUploadTemp_KeepsTransparencyAsPNG() {
	svc := s.newService(attachment.Config{MaxUploadSize: 1 << 20, ImageReencode: true})

	att, err := svc.UploadTemp(s.ctx, attachment.UploadRequest{Content: fixtures.PNG(s.T(), true), FileName: "logo.png"})

	s.Require().NoError(err)
	s.Equal(".png", path.Ext(att.FilePath))
	s.Equal("image/png", att.ContentType)
}

func (s *ServiceTestSuite) TestUploadTemp_RejectsInvalidUploadsWithoutWrites() {
	tests := []struct {
		name string
		req  attachment.UploadRequest
	}{
		{"empty", attachment.UploadRequest{FileName: "a.jpg"}},
		{"too large", attachment.UploadRequest{FileName: "a.txt", Content: bytes.Repeat([]byte("a"), 2<<20)}},
		{"blocked", attachment.UploadRequest{FileName: "run.exe", Content: []byte("MZ")}},
		{"mismatch", attachment.UploadRequest{FileName: "a.png", Content: []byte("plain text")}},
		{"bad relation", attachment.UploadRequest{FileName: "a.txt", Content: []byte("x"), RelationType: "Bad Type"}},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			att, err := s.svc.UploadTemp(s.ctx, tt.req)

			s.Nil(att)
			s.True(apperrors.IsValidation(err), "got %v", err)
		})
	}

	var count int64
	s.Require().NoError(s.db.Model(&models.Attachment{}).Count(&count).Error)
	s.Zero(count)
	s.Zero(s.fileCount())
}

func (s *ServiceTestSuite) TestUploadTemp_StorageFailureIsIOError() {
	store := new(mocks.MockFileStorage)
	store.On("Save", mock.Anything, mock.Anything, mock.Anything, mock.Anything, "text/plain").
		Return(errors.New("disk full"))
	svc := attachment.NewService(s.repo, store, lock.NewMemoryLocker(), attachment.NewLayout("/uploads", "temp"), attachment.Config{}, discardLogger())

	_, err := svc.UploadTemp(s.ctx, attachment.UploadRequest{FileName: "a.txt", Content: []byte("hello")})

	s.True(apperrors.IsIO(err))
	var count int64
	s.Require().NoError(s.db.Model(&models.Attachment{}).Count(&count).Error)
	s.Zero(count)
}

func (s *ServiceTestSuite) TestUploadTemp_InsertFailureRemovesFile() {
	repo := new(mocks.MockAttachmentRepository)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*models.Attachment")).
		Return(errors.New("connection reset"))
	svc := attachment.NewService(repo, s.store, lock.NewMemoryLocker(), attachment.NewLayout("/uploads", "temp"), attachment.Config{}, discardLogger())

	_, err := svc.UploadTemp(s.ctx, attachment.UploadRequest{FileName: "a.txt", Content: []byte("hello")})

	s.Require().Error(err)
	s.Contains(err.Error(), "failed to record attachment")
	s.Zero(s.fileCount())
	repo.AssertExpectations(s.T())
}

// --- AssociateAttachments ---

func (s *ServiceTestSuite) TestAssociate_FeaturedImage() {
	att := s.upload("cover.jpg", fixtures.JPEG(s.T()))
	tempPath := att.FilePath

	ok, err := s.svc.AssociateAttachments(s.ctx, []uint{att.ID}, news42, attachment.AssociateOptions{IsFeatured: true})

	s.Require().NoError(err)
	s.True(ok)

	stored := s.reload(att.ID)
	s.Equal("news/42/"+path.Base(tempPath), stored.FilePath)
	s.Equal("/uploads/news/42/"+path.Base(tempPath), stored.URL)
	s.Equal(models.StateAssociated, stored.State)
	s.False(stored.IsTemporary)
	s.True(stored.IsPrimary)
	s.Empty(stored.PendingPath)
	s.True(stored.IsOwnedBy(news42))
	s.False(s.exists(tempPath))
	s.True(s.exists(stored.FilePath))

	s.Len(s.notifier.ofType(attachment.EventAssociated), 1)
	s.Len(s.notifier.ofType(attachment.EventPrimary), 1)
}

func (s *ServiceTestSuite) TestAssociate_SecondFeaturedReplacesPrimary() {
	first := s.upload("one.jpg", fixtures.JPEG(s.T()))
	second := s.upload("two.jpg", fixtures.JPEG(s.T()))

	_, err := s.svc.AssociateAttachments(s.ctx, []uint{first.ID}, news42, attachment.AssociateOptions{IsFeatured: true})
	s.Require().NoError(err)
	_, err = s.svc.AssociateAttachments(s.ctx, []uint{second.ID}, news42, attachment.AssociateOptions{IsFeatured: true})
	s.Require().NoError(err)

	s.False(s.reload(first.ID).IsPrimary)
	s.True(s.reload(second.ID).IsPrimary)

	list, err := s.svc.GetByEntity(s.ctx, news42)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(second.ID, list[0].ID)
	s.Equal(first.ID, list[1].ID)
	s.Equal(0, s.reload(first.ID).OrderIndex)
	s.Equal(1, s.reload(second.ID).OrderIndex)
}

func (s *ServiceTestSuite) TestAssociate_SameOwnerIsIdempotent() {
	att := s.upload("a.jpg", fixtures.JPEG(s.T()))

	ok1, err := s.svc.AssociateAttachments(s.ctx, []uint{att.ID}, news42, attachment.AssociateOptions{})
	s.Require().NoError(err)
	afterFirst := s.reload(att.ID)

	ok2, err := s.svc.AssociateAttachments(s.ctx, []uint{att.ID, att.ID}, news42, attachment.AssociateOptions{})
	s.Require().NoError(err)
	afterSecond := s.reload(att.ID)

	s.True(ok1)
	s.True(ok2)
	s.Equal(afterFirst.FilePath, afterSecond.FilePath)
	s.Equal(afterFirst.OrderIndex, afterSecond.OrderIndex)
	s.Equal(1, s.store.moves)
	s.Len(s.notifier.ofType(attachment.EventAssociated), 1)

	var count int64
	s.Require().NoError(s.db.Model(&models.Attachment{}).Count(&count).Error)
	s.Equal(int64(1), count)
}

func (s *ServiceTestSuite) TestAssociate_SameOwnerRaisesContentImageFlag() {
	att := s.upload("a.jpg", fixtures.JPEG(s.T()))
	_, err := s.svc.AssociateAttachments(s.ctx, []uint{att.ID}, news42, attachment.AssociateOptions{})
	s.Require().NoError(err)

	_, err = s.svc.AssociateAttachments(s.ctx, []uint{att.ID}, news42, attachment.AssociateOptions{IsContentImage: true})
	s.Require().NoError(err)

	s.True(s.reload(att.ID).IsContentImage)
	s.Equal(1, s.store.moves)
}

func (s *ServiceTestSuite) TestAssociate_ReparentsToDifferentOwner() {
	att := s.upload("a.jpg", fixtures.JPEG(s.T()))
	_, err := s.svc.AssociateAttachments(s.ctx, []uint{att.ID}, news42, attachment.AssociateOptions{IsFeatured: true})
	s.Require().NoError(err)
	oldPath := s.reload(att.ID).FilePath

	product := models.Owner{Type: models.OwnerProduct, ID: 7}
	ok, err := s.svc.AssociateAttachments(s.ctx, []uint{att.ID}, product, attachment.AssociateOptions{})

	s.Require().NoError(err)
	s.True(ok)
	stored := s.reload(att.ID)
	s.Equal("product/7/"+path.Base(oldPath), stored.FilePath)
	s.True(stored.IsOwnedBy(product))
	s.False(stored.IsPrimary)
	s.False(s.exists(oldPath))
	s.True(s.exists(stored.FilePath))
}

func (s *ServiceTestSuite) TestAssociate_SkipsUnknownIDs() {
	att := s.upload("a.jpg", fixtures.JPEG(s.T()))

	ok, err := s.svc.AssociateAttachments(s.ctx, []uint{9999, att.ID}, news42, attachment.AssociateOptions{})
	s.Require().NoError(err)
	s.True(ok)
	s.True(s.reload(att.ID).IsOwnedBy(news42))

	ok, err = s.svc.AssociateAttachments(s.ctx, []uint{9999, 0}, news42, attachment.AssociateOptions{})
	s.Require().NoError(err)
	s.False(ok)
}

func (s *ServiceTestSuite) TestAssociate_DeletedRowIsNotResolved() {
	att := s.upload("a.jpg", fixtures.JPEG(s.T()))
	s.Require().NoError(s.svc.Delete(s.ctx, att.ID))

	ok, err := s.svc.AssociateAttachments(s.ctx, []uint{att.ID}, news42, attachment.AssociateOptions{})

	s.Require().NoError(err)
	s.False(ok)
	s.True(s.reload(att.ID).IsDeleted())
}

func (s *ServiceTestSuite) TestAssociate_MoveFailureRollsBack() {
	att := s.upload("a.jpg", fixtures.JPEG(s.T()))
	s.store.moveErr = errors.New("permission denied")

	ok, err := s.svc.AssociateAttachments(s.ctx, []uint{att.ID}, news42, attachment.AssociateOptions{})

	s.False(ok)
	s.True(apperrors.IsIO(err))
	stored := s.reload(att.ID)
	s.Equal(models.StateTemporary, stored.State)
	s.True(stored.IsTemporary)
	s.Empty(stored.PendingPath)
	s.Equal(att.FilePath, stored.FilePath)
}

func (s *ServiceTestSuite) TestAssociate_InvalidOwner() {
	_, err := s.svc.AssociateAttachments(s.ctx, []uint{1}, models.Owner{Type: "page", ID: 1}, attachment.AssociateOptions{})
	s.True(apperrors.IsValidation(err))

	_, err = s.svc.AssociateAttachments(s.ctx, []uint{1}, models.Owner{Type: models.OwnerNews}, attachment.AssociateOptions{})
	s.True(apperrors.IsValidation(err))
}

func (s *ServiceTestSuite) TestAssociate_InFlightRowIsLeftAlone() {
	row := fixtures.NewAttachmentBuilder().WithState(models.StateMoving).WithPendingPath("post/1/x.jpg").Build()
	s.Require().NoError(s.repo.Create(s.ctx, row))

	ok, err := s.svc.AssociateAttachments(s.ctx, []uint{row.ID}, news42, attachment.AssociateOptions{IsFeatured: true})

	s.Require().NoError(err)
	s.True(ok)
	s.Zero(s.store.moves)
	stored := s.reload(row.ID)
	s.Equal(models.StateMoving, stored.State)
	s.False(stored.IsPrimary)
}

func (s *ServiceTestSuite) TestAssociate_ConcurrentSameIDMovesOnce() {
	att := s.upload("a.jpg", fixtures.JPEG(s.T()))

	var wg sync.WaitGroup
	results := make([]bool, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.svc.AssociateAttachments(s.ctx, []uint{att.ID}, news42, attachment.AssociateOptions{})
		}(i)
	}
	wg.Wait()

	for i := range results {
		s.NoError(errs[i])
		s.True(results[i])
	}
	s.Equal(1, s.store.moves)
	stored := s.reload(att.ID)
	s.Equal(models.StateAssociated, stored.State)
	s.True(s.exists(stored.FilePath))
}

func (s *ServiceTestSuite) TestAssociate_ConcurrentFeaturedLeavesOnePrimary() {
	const n = 6
	ids := make([]uint, n)
	for i := range ids {
		ids[i] = s.upload("a.jpg", fixtures.JPEG(s.T())).ID
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			_, err := s.svc.AssociateAttachments(s.ctx, []uint{id}, news42, attachment.AssociateOptions{IsFeatured: true})
			assert.NoError(s.T(), err)
		}(id)
	}
	wg.Wait()

	var primaries int64
	s.Require().NoError(s.db.Model(&models.Attachment{}).
		Where("object_type = ? AND object_id = ? AND is_primary = ?", "news", 42, true).
		Count(&primaries).Error)
	s.Equal(int64(1), primaries)
}

// --- Delete paths ---

func (s *ServiceTestSuite) TestDelete_RemovesFileAndSoftDeletes() {
	att := s.upload("a.jpg", fixtures.JPEG(s.T()))
	_, err := s.svc.AssociateAttachments(s.ctx, []uint{att.ID}, news42, attachment.AssociateOptions{})
	s.Require().NoError(err)
	filePath := s.reload(att.ID).FilePath

	s.Require().NoError(s.svc.Delete(s.ctx, att.ID))

	s.False(s.exists(filePath))
	s.True(s.reload(att.ID).IsDeleted())
	_, err = s.svc.GetByID(s.ctx, att.ID)
	s.True(apperrors.IsNotFound(err))
	s.Len(s.notifier.ofType(attachment.EventDeleted), 1)

	err = s.svc.Delete(s.ctx, att.ID)
	s.True(apperrors.IsNotFound(err))
}

func (s *ServiceTestSuite) TestDelete_FileFailureKeepsRow() {
	att := s.upload("a.jpg", fixtures.JPEG(s.T()))
	s.store.deleteErr = errors.New("file locked")

	err := s.svc.Delete(s.ctx, att.ID)

	s.True(apperrors.IsIO(err))
	stored := s.reload(att.ID)
	s.False(stored.IsDeleted())
	s.Equal(models.StateTemporary, stored.State)
	s.True(s.exists(att.FilePath))
}

func (s *ServiceTestSuite) TestDelete_RowBeingMovedIsConflict() {
	att := s.upload("a.jpg", fixtures.JPEG(s.T()))
	dst := "news/42/" + path.Base(att.FilePath)
	s.Require().NoError(s.db.Model(&models.Attachment{}).Where("id = ?", att.ID).
		Updates(map[string]any{"state": models.StateMoving, "pending_path": dst}).Error)

	err := s.svc.Delete(s.ctx, att.ID)

	s.True(apperrors.IsConflict(err))
	stored := s.reload(att.ID)
	s.False(stored.IsDeleted())
	s.Equal(models.StateMoving, stored.State)
	s.Equal(dst, stored.PendingPath)
	s.True(s.exists(att.FilePath))
	s.Empty(s.notifier.ofType(attachment.EventDeleted))
}

func (s *ServiceTestSuite) TestDeleteFiles_SkipsRowsBeingMoved() {
	kept := s.upload("a.jpg", fixtures.JPEG(s.T()))
	gone := s.upload("b.jpg", fixtures.JPEG(s.T()))
	_, err := s.svc.AssociateAttachments(s.ctx, []uint{kept.ID, gone.ID}, news42, attachment.AssociateOptions{})
	s.Require().NoError(err)
	s.Require().NoError(s.db.Model(&models.Attachment{}).Where("id = ?", kept.ID).
		Updates(map[string]any{"state": models.StateMoving, "pending_path": "product/1/" + path.Base(kept.FilePath)}).Error)

	deleted, err := s.svc.DeleteFiles(s.ctx, news42)

	s.Require().NoError(err)
	s.Equal(1, deleted)
	s.False(s.reload(kept.ID).IsDeleted())
	s.True(s.exists(s.reload(kept.ID).FilePath))
	s.True(s.reload(gone.ID).IsDeleted())
}

func (s *ServiceTestSuite) TestDeleteFiles_DeletesOnlyTheOwnersAttachments() {
	var ids []uint
	for i := 0; i < 3; i++ {
		ids = append(ids, s.upload("a.jpg", fixtures.JPEG(s.T())).ID)
	}
	other := s.upload("b.jpg", fixtures.JPEG(s.T()))
	_, err := s.svc.AssociateAttachments(s.ctx, ids, news42, attachment.AssociateOptions{IsFeatured: true})
	s.Require().NoError(err)
	product := models.Owner{Type: models.OwnerProduct, ID: 1}
	_, err = s.svc.AssociateAttachments(s.ctx, []uint{other.ID}, product, attachment.AssociateOptions{})
	s.Require().NoError(err)

	deleted, err := s.svc.DeleteFiles(s.ctx, news42)

	s.Require().NoError(err)
	s.Equal(3, deleted)
	list, err := s.svc.GetByEntity(s.ctx, news42)
	s.Require().NoError(err)
	s.Empty(list)
	s.Equal(1, s.fileCount())
	s.False(s.reload(other.ID).IsDeleted())
}

func (s *ServiceTestSuite) TestDeleteFiles_ToleratesMissingFiles() {
	att := s.upload("a.jpg", fixtures.JPEG(s.T()))
	_, err := s.svc.AssociateAttachments(s.ctx, []uint{att.ID}, news42, attachment.AssociateOptions{})
	s.Require().NoError(err)
	s.Require().NoError(s.fs.Remove(s.reload(att.ID).FilePath))

	deleted, err := s.svc.DeleteFiles(s.ctx, news42)

	s.Require().NoError(err)
	s.Equal(1, deleted)
	s.True(s.reload(att.ID).IsDeleted())
}

// --- Reads ---

func (s *ServiceTestSuite) TestOpen_ReadsContent() {
	content := []byte("quarterly numbers")
	att, err := s.svc.UploadTemp(s.ctx, attachment.UploadRequest{FileName: "report.txt", Content: content, RelationType: "document"})
	s.Require().NoError(err)

	got, rc, err := s.svc.Open(s.ctx, att.ID)
	s.Require().NoError(err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	s.Require().NoError(err)

	s.Equal(att.ID, got.ID)
	s.Equal(content, data)
}

func (s *ServiceTestSuite) TestOpenPath() {
	att, err := s.svc.UploadTemp(s.ctx, attachment.UploadRequest{FileName: "r.txt", Content: []byte("x")})
	s.Require().NoError(err)

	_, rc, err := s.svc.OpenPath(s.ctx, att.FilePath)
	s.Require().NoError(err)
	rc.Close()

	_, _, err = s.svc.OpenPath(s.ctx, "../etc/passwd")
	s.True(apperrors.IsValidation(err))
	s.ErrorIs(err, storage.ErrPathTraversal)

	_, _, err = s.svc.OpenPath(s.ctx, "news/1/unknown.jpg")
	s.True(apperrors.IsNotFound(err))
}

func (s *ServiceTestSuite) TestOpen_MissingFileIsNotFound() {
	att, err := s.svc.UploadTemp(s.ctx, attachment.UploadRequest{FileName: "r.txt", Content: []byte("x")})
	s.Require().NoError(err)
	s.Require().NoError(s.fs.Remove(att.FilePath))

	_, _, err = s.svc.Open(s.ctx, att.ID)

	s.True(apperrors.IsNotFound(err))
}

func (s *ServiceTestSuite) TestFindTemporaryByFileName() {
	att := s.upload("a.jpg", fixtures.JPEG(s.T()))

	found, err := s.svc.FindTemporaryByFileName(s.ctx, path.Base(att.FilePath))
	s.Require().NoError(err)
	s.Equal(att.ID, found.ID)

	_, err = s.svc.FindTemporaryByFileName(s.ctx, "missing.jpg")
	s.True(apperrors.IsNotFound(err))
}
