package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/defense-jury-api/internal/models"
	appErrors "github.com/noah-isme/defense-jury-api/pkg/errors"
	"github.com/noah-isme/defense-jury-api/pkg/export"
	"github.com/noah-isme/defense-jury-api/pkg/jobs"
	"github.com/noah-isme/defense-jury-api/pkg/storage"
)

type capturingRenderer struct {
	docs []export.VerdictDocument
}

func (r *capturingRenderer) Render(doc export.VerdictDocument) ([]byte, error) {
	r.docs = append(r.docs, doc)
	return []byte("%PDF-fake " + doc.VerdictID), nil
}

func newArchiveFixture(t *testing.T, renderer verdictRenderer) (*fixture, *ArchiveService, *storage.LocalStorage) {
	t.Helper()
	f := newFixture(t)
	seedPairedSitting(t, f)
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("archive-secret", time.Hour)
	svc := NewArchiveService(fakeVerdicts{f.w}, fakeSittings{f.w}, fakeSessions{f.w}, fakeRooms{f.w}, fakeCandidates{f.w}, fakeEvaluators{f.w}, fakeDocuments{f.w},
		store, signer, renderer, nil, ArchiveServiceConfig{APIPrefix: "/api/v1/"})
	return f, svc, store
}

func finalizeSittingB(t *testing.T, f *fixture) *models.Verdict {
	t.Helper()
	ctx := context.Background()
	verdict, err := f.verdicts.Create(ctx, "sitting-b", "ev-7", verdictRequest(16.5))
	require.NoError(t, err)
	_, err = f.verdicts.Approve(ctx, verdict.ID, "ev-8")
	require.NoError(t, err)
	final, err := f.verdicts.Approve(ctx, verdict.ID, "ev-9")
	require.NoError(t, err)
	require.Equal(t, models.VerdictStatusFinalized, final.Status)
	return final
}

func TestArchiveServiceArchiveBuildsRecord(t *testing.T) {
	renderer := &capturingRenderer{}
	f, svc, store := newArchiveFixture(t, renderer)
	verdict := finalizeSittingB(t, f)

	key, err := svc.Archive(context.Background(), verdict.ID)
	require.NoError(t, err)
	require.Equal(t, "verdicts/"+verdict.ID+"/pv.pdf", key)

	require.Len(t, renderer.docs, 1)
	doc := renderer.docs[0]
	require.Equal(t, "JUNE", doc.SessionLabel)
	require.Equal(t, "Room room-b", doc.RoomName)
	require.Equal(t, "10:00", doc.StartTime)
	require.Equal(t, "VERY_GOOD", doc.Mention)
	require.Equal(t, *verdict.Seal, doc.Seal)
	require.Len(t, doc.Candidates, 2)
	require.Equal(t, "Candidate cand-2", doc.Candidates[0].Name)
	require.Equal(t, "Memoir MEM-2024-001", doc.Candidates[0].Thesis)
	require.Len(t, doc.Members, 4)

	stored, err := fakeVerdicts{f.w}.FindByID(context.Background(), nil, verdict.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ArchiveKey)
	require.Equal(t, key, *stored.ArchiveKey)

	file, err := store.Open(key)
	require.NoError(t, err)
	defer file.Close()
	content, err := io.ReadAll(file)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(content, []byte("%PDF")))
}

func TestArchiveServiceRejectsUnfinalizedVerdict(t *testing.T) {
	f, svc, _ := newArchiveFixture(t, &capturingRenderer{})
	verdict, err := f.verdicts.Create(context.Background(), "sitting-b", "ev-7", verdictRequest(12))
	require.NoError(t, err)

	_, err = svc.Archive(context.Background(), verdict.ID)
	require.True(t, errors.Is(err, appErrors.ErrPreconditionFailed))

	_, err = svc.GetDownloadURL(context.Background(), verdict.ID)
	require.True(t, errors.Is(err, appErrors.ErrPreconditionFailed))

	_, err = svc.GetDownloadURL(context.Background(), "missing")
	require.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestArchiveServiceDownloadRoundTrip(t *testing.T) {
	renderer := &capturingRenderer{}
	f, svc, _ := newArchiveFixture(t, renderer)
	verdict := finalizeSittingB(t, f)

	link, err := svc.GetDownloadURL(context.Background(), verdict.ID)
	require.NoError(t, err)
	require.Len(t, renderer.docs, 1, "missing archives are rendered on demand")
	require.True(t, strings.HasPrefix(link.URL, "/api/v1/verdicts/documents/"))
	require.True(t, link.ExpiresAt.After(time.Now()))

	_, err = svc.GetDownloadURL(context.Background(), verdict.ID)
	require.NoError(t, err)
	require.Len(t, renderer.docs, 1, "existing archives are reused")

	token := strings.TrimPrefix(link.URL, "/api/v1/verdicts/documents/")
	download, err := svc.Download(context.Background(), token)
	require.NoError(t, err)
	defer download.File.Close()
	require.Equal(t, "pv-"+verdict.ID+".pdf", download.Filename)
	require.Greater(t, download.SizeBytes, int64(0))

	_, err = svc.Download(context.Background(), token+"x")
	require.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestArchiveServiceDownloadRejectsForeignKey(t *testing.T) {
	_, svc, _ := newArchiveFixture(t, &capturingRenderer{})
	signer := storage.NewSignedURLSigner("archive-secret", time.Hour)

	token, _, err := signer.Generate("verdict-1", "verdicts/verdict-2/pv.pdf")
	require.NoError(t, err)
	_, err = svc.Download(context.Background(), token)
	require.True(t, errors.Is(err, appErrors.ErrForbidden))

	token, _, err = signer.Generate("verdict-9", verdictArchiveKey("verdict-9"))
	require.NoError(t, err)
	_, err = svc.Download(context.Background(), token)
	require.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestArchiveServiceRendersRealPDF(t *testing.T) {
	f, svc, store := newArchiveFixture(t, export.NewVerdictRenderer("Faculty of Science"))
	verdict := finalizeSittingB(t, f)

	key, err := svc.Archive(context.Background(), verdict.ID)
	require.NoError(t, err)
	file, err := store.Open(key)
	require.NoError(t, err)
	defer file.Close()
	head := make([]byte, 4)
	_, err = io.ReadFull(file, head)
	require.NoError(t, err)
	require.Equal(t, "%PDF", string(head))
}

func TestVerdictEffectsArchiveJobUsesArchiveService(t *testing.T) {
	f, svc, _ := newArchiveFixture(t, &capturingRenderer{})
	f.effects = NewVerdictEffects(VerdictEffectsDeps{
		Queue:       f.queue,
		Candidates:  fakeCandidates{f.w},
		Evaluators:  fakeEvaluators{f.w},
		Documents:   fakeDocuments{f.w},
		Tickets:     fakeTickets{f.w},
		Submissions: fakeSubmissions{f.w},
		Archiver:    svc,
		Metrics:     f.metrics,
	})
	mux := jobs.NewMux()
	f.effects.Register(mux)
	f.verdicts.effects = f.effects

	verdict := finalizeSittingB(t, f)
	f.queue.drain(t, mux)

	stored, err := fakeVerdicts{f.w}.FindByID(context.Background(), nil, verdict.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ArchiveKey)
	require.Len(t, f.w.st.submissions, 1)
	require.Equal(t, SubmissionStatusQueued, f.w.st.submissions[0].Status, "no library client configured")
}
