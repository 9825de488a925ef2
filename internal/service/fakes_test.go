package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/defense-jury-api/internal/models"
	"github.com/noah-isme/defense-jury-api/pkg/database"
	"github.com/noah-isme/defense-jury-api/pkg/jobs"
	"github.com/noah-isme/defense-jury-api/pkg/library"
	"github.com/noah-isme/defense-jury-api/pkg/mailer"
)

type fakeState struct {
	sessions     map[string]models.DefenseSession
	candidates   map[string]models.Candidate
	evaluators   map[string]models.Evaluator
	rooms        map[string]models.Room
	reservations []models.RoomReservation
	sittings     map[string]models.Sitting
	verdicts     map[string]models.Verdict
	documents    map[string]models.MemoirDocument
	tickets      []models.RevisionTicket
	submissions  []models.LibrarySubmission
	audits       []models.AuditLog
	seq          int
}

func (s fakeState) clone() fakeState {
	out := fakeState{
		sessions:     make(map[string]models.DefenseSession, len(s.sessions)),
		candidates:   make(map[string]models.Candidate, len(s.candidates)),
		evaluators:   make(map[string]models.Evaluator, len(s.evaluators)),
		rooms:        make(map[string]models.Room, len(s.rooms)),
		reservations: append([]models.RoomReservation(nil), s.reservations...),
		sittings:     make(map[string]models.Sitting, len(s.sittings)),
		verdicts:     make(map[string]models.Verdict, len(s.verdicts)),
		documents:    make(map[string]models.MemoirDocument, len(s.documents)),
		tickets:      append([]models.RevisionTicket(nil), s.tickets...),
		submissions:  append([]models.LibrarySubmission(nil), s.submissions...),
		audits:       append([]models.AuditLog(nil), s.audits...),
		seq:          s.seq,
	}
	for k, v := range s.sessions {
		out.sessions[k] = v
	}
	for k, v := range s.candidates {
		out.candidates[k] = v
	}
	for k, v := range s.evaluators {
		out.evaluators[k] = v
	}
	for k, v := range s.rooms {
		out.rooms[k] = v
	}
	for k, v := range s.sittings {
		out.sittings[k] = copySitting(v)
	}
	for k, v := range s.verdicts {
		out.verdicts[k] = copyVerdict(v)
	}
	for k, v := range s.documents {
		out.documents[k] = v
	}
	return out
}

func copySitting(s models.Sitting) models.Sitting {
	s.CandidateIDs = append([]string(nil), s.CandidateIDs...)
	s.Members = append([]models.SittingMember(nil), s.Members...)
	return s
}

func copyVerdict(v models.Verdict) models.Verdict {
	v.Approvals = append([]models.VerdictApproval(nil), v.Approvals...)
	return v
}

// fakeWorld is an in-memory database shared by the fake repositories.
type fakeWorld struct {
	mu    sync.Mutex
	st    fakeState
	locks []string
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{st: fakeState{
		sessions:   map[string]models.DefenseSession{},
		candidates: map[string]models.Candidate{},
		evaluators: map[string]models.Evaluator{},
		rooms:      map[string]models.Room{},
		sittings:   map[string]models.Sitting{},
		verdicts:   map[string]models.Verdict{},
		documents:  map[string]models.MemoirDocument{},
	}}
}

func (w *fakeWorld) nextID(prefix string) string {
	w.st.seq++
	return fmt.Sprintf("%s-%d", prefix, w.st.seq)
}

func (w *fakeWorld) sitting(id string) models.Sitting {
	w.mu.Lock()
	defer w.mu.Unlock()
	return copySitting(w.st.sittings[id])
}

func (w *fakeWorld) evaluator(id string) models.Evaluator {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.st.evaluators[id]
}

func (w *fakeWorld) addSitting(s models.Sitting) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range s.Members {
		s.Members[i].SittingID = s.ID
	}
	w.st.sittings[s.ID] = copySitting(s)
	w.st.reservations = append(w.st.reservations, models.RoomReservation{
		ID: "res-" + s.ID, RoomID: s.RoomID, SittingID: &s.ID, StartsAt: s.StartsAt, EndsAt: s.EndsAt,
	})
}

// txRunner runs fn against the world and restores the previous state when fn fails.
type txRunner struct {
	w     *fakeWorld
	mu    sync.Mutex
	calls int
}

func (t *txRunner) WithinTx(ctx context.Context, fn database.TxFunc) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	t.w.mu.Lock()
	snapshot := t.w.st.clone()
	t.w.mu.Unlock()
	if err := fn(ctx, nil); err != nil {
		t.w.mu.Lock()
		t.w.st = snapshot
		t.w.mu.Unlock()
		return err
	}
	return nil
}

type fakeSessions struct{ w *fakeWorld }

func (f fakeSessions) Create(_ context.Context, _ sqlx.ExtContext, session *models.DefenseSession) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	if session.ID == "" {
		session.ID = f.w.nextID("session")
	}
	f.w.st.sessions[session.ID] = *session
	return nil
}

func (f fakeSessions) FindByID(_ context.Context, id string) (*models.DefenseSession, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	s, ok := f.w.st.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (f fakeSessions) LockForUpdate(ctx context.Context, _ sqlx.ExtContext, id string) (*models.DefenseSession, error) {
	f.w.mu.Lock()
	f.w.locks = append(f.w.locks, id)
	f.w.mu.Unlock()
	return f.FindByID(ctx, id)
}

func (f fakeSessions) List(_ context.Context, filter models.DefenseSessionFilter) ([]models.DefenseSession, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	var out []models.DefenseSession
	for _, s := range f.w.st.sessions {
		if filter.Level != "" && s.Level != filter.Level {
			continue
		}
		if filter.AcademicYear != "" && s.AcademicYear != filter.AcademicYear {
			continue
		}
		if filter.ActiveOnly && !s.Active {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeSessions) Activate(_ context.Context, _ sqlx.ExtContext, id, level string) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	if _, ok := f.w.st.sessions[id]; !ok {
		return sql.ErrNoRows
	}
	for key, s := range f.w.st.sessions {
		if s.Level == level {
			s.Active = key == id
			f.w.st.sessions[key] = s
		}
	}
	return nil
}

type fakeCandidates struct{ w *fakeWorld }

func (f fakeCandidates) ListRoster(_ context.Context, level, academicYear string) ([]models.Candidate, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	var out []models.Candidate
	for _, c := range f.w.st.candidates {
		if c.Level == level && c.AcademicYear == academicYear {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeCandidates) FindByIDs(_ context.Context, _ sqlx.ExtContext, ids []string) ([]models.Candidate, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	out := []models.Candidate{}
	for _, id := range ids {
		if c, ok := f.w.st.candidates[id]; ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeCandidates) UpdateFolderStatus(_ context.Context, _ sqlx.ExtContext, ids []string, status models.FolderStatus) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	for _, id := range ids {
		c := f.w.st.candidates[id]
		c.FolderStatus = status
		f.w.st.candidates[id] = c
	}
	return nil
}

type fakeEvaluators struct{ w *fakeWorld }

func (f fakeEvaluators) ListAvailable(context.Context) ([]models.Evaluator, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	var out []models.Evaluator
	for _, e := range f.w.st.evaluators {
		if e.Available {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeEvaluators) FindByIDs(_ context.Context, _ sqlx.ExtContext, ids []string) ([]models.Evaluator, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	out := []models.Evaluator{}
	for _, id := range ids {
		if e, ok := f.w.st.evaluators[id]; ok {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeEvaluators) IncrementLoad(_ context.Context, _ sqlx.ExtContext, id string, delta int) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	e, ok := f.w.st.evaluators[id]
	if !ok {
		return sql.ErrNoRows
	}
	e.CommittedSlotCount += delta
	f.w.st.evaluators[id] = e
	return nil
}

type fakeRooms struct{ w *fakeWorld }

func (f fakeRooms) ListAvailable(context.Context) ([]models.Room, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	var out []models.Room
	for _, r := range f.w.st.rooms {
		if r.Available {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeRooms) FindByIDs(_ context.Context, ids []string) ([]models.Room, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	out := []models.Room{}
	for _, id := range ids {
		if r, ok := f.w.st.rooms[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f fakeRooms) Reserve(_ context.Context, _ sqlx.ExtContext, reservation *models.RoomReservation) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	if reservation.ID == "" {
		reservation.ID = f.w.nextID("res")
	}
	f.w.st.reservations = append(f.w.st.reservations, *reservation)
	return nil
}

func (f fakeRooms) LockBookings(context.Context, sqlx.ExtContext) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	f.w.locks = append(f.w.locks, "bookings")
	return nil
}

func (f fakeRooms) BusyIntervals(_ context.Context, _ sqlx.ExtContext, from, to time.Time) ([]models.BusyInterval, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	var out []models.BusyInterval
	for _, r := range f.w.st.reservations {
		if r.Overlaps(from, to) {
			out = append(out, models.BusyInterval{ResourceID: r.RoomID, SittingID: r.SittingID, StartsAt: r.StartsAt, EndsAt: r.EndsAt})
		}
	}
	return out, nil
}

func (f fakeRooms) RescheduleSitting(_ context.Context, _ sqlx.ExtContext, sittingID string, start, end time.Time) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	for i, r := range f.w.st.reservations {
		if r.SittingID != nil && *r.SittingID == sittingID {
			f.w.st.reservations[i].StartsAt = start
			f.w.st.reservations[i].EndsAt = end
		}
	}
	return nil
}

type fakeSittings struct{ w *fakeWorld }

func (f fakeSittings) Create(_ context.Context, _ sqlx.ExtContext, sitting *models.Sitting) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	if sitting.ID == "" {
		sitting.ID = f.w.nextID("sitting")
	}
	for i := range sitting.Members {
		sitting.Members[i].SittingID = sitting.ID
	}
	f.w.st.sittings[sitting.ID] = copySitting(*sitting)
	return nil
}

func (f fakeSittings) ReplaceRoster(_ context.Context, _ sqlx.ExtContext, sitting *models.Sitting) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	current, ok := f.w.st.sittings[sitting.ID]
	if !ok {
		return sql.ErrNoRows
	}
	current.CandidateIDs = append([]string(nil), sitting.CandidateIDs...)
	current.Members = append([]models.SittingMember(nil), sitting.Members...)
	f.w.st.sittings[sitting.ID] = current
	return nil
}

func (f fakeSittings) FindByID(_ context.Context, _ sqlx.ExtContext, id string) (*models.Sitting, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	s, ok := f.w.st.sittings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := copySitting(s)
	return &out, nil
}

func (f fakeSittings) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Sitting, error) {
	return f.FindByID(ctx, exec, id)
}

func (f fakeSittings) ListBySession(_ context.Context, sessionID string) ([]models.Sitting, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	var out []models.Sitting
	for _, s := range f.w.st.sittings {
		if s.SessionID == sessionID {
			out = append(out, copySitting(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].StartsAt.Before(out[j].StartsAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f fakeSittings) EvaluatorBusyIntervals(_ context.Context, _ sqlx.ExtContext, ids []string, from, to time.Time) ([]models.BusyInterval, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	watched := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		watched[id] = struct{}{}
	}
	var out []models.BusyInterval
	for _, s := range f.w.st.sittings {
		if s.Status != models.SittingStatusConfirmed || !s.Overlaps(from, to) {
			continue
		}
		for _, m := range s.Members {
			if _, ok := watched[m.EvaluatorID]; ok {
				id := s.ID
				out = append(out, models.BusyInterval{ResourceID: m.EvaluatorID, SittingID: &id, StartsAt: s.StartsAt, EndsAt: s.EndsAt})
			}
		}
	}
	return out, nil
}

func (f fakeSittings) ScheduledCandidateIDs(_ context.Context, _ sqlx.ExtContext, ids []string) ([]string, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	seen := map[string]struct{}{}
	out := []string{}
	for _, s := range f.w.st.sittings {
		if s.Status != models.SittingStatusConfirmed {
			continue
		}
		for _, id := range s.CandidateIDs {
			if _, ok := wanted[id]; !ok {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f fakeSittings) UpdateWindow(_ context.Context, _ sqlx.ExtContext, id string, start, end time.Time) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	s, ok := f.w.st.sittings[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.StartsAt, s.EndsAt = start, end
	f.w.st.sittings[id] = s
	return nil
}

type fakeVerdicts struct{ w *fakeWorld }

func (f fakeVerdicts) Create(_ context.Context, _ sqlx.ExtContext, verdict *models.Verdict) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	for _, v := range f.w.st.verdicts {
		if v.SittingID == verdict.SittingID {
			return fmt.Errorf("insert verdict: duplicate sitting %s", verdict.SittingID)
		}
	}
	if verdict.ID == "" {
		verdict.ID = f.w.nextID("verdict")
	}
	stored := copyVerdict(*verdict)
	stored.Approvals = nil
	f.w.st.verdicts[verdict.ID] = stored
	return nil
}

func (f fakeVerdicts) FindByID(_ context.Context, _ sqlx.ExtContext, id string) (*models.Verdict, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	v, ok := f.w.st.verdicts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := copyVerdict(v)
	return &out, nil
}

func (f fakeVerdicts) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Verdict, error) {
	return f.FindByID(ctx, exec, id)
}

func (f fakeVerdicts) FindBySitting(_ context.Context, _ sqlx.ExtContext, sittingID string) (*models.Verdict, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	for _, v := range f.w.st.verdicts {
		if v.SittingID == sittingID {
			out := copyVerdict(v)
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f fakeVerdicts) ListBySittings(_ context.Context, sittingIDs []string) ([]models.Verdict, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	wanted := make(map[string]struct{}, len(sittingIDs))
	for _, id := range sittingIDs {
		wanted[id] = struct{}{}
	}
	var out []models.Verdict
	for _, v := range f.w.st.verdicts {
		if _, ok := wanted[v.SittingID]; ok {
			out = append(out, copyVerdict(v))
		}
	}
	return out, nil
}

func (f fakeVerdicts) Update(_ context.Context, _ sqlx.ExtContext, verdict *models.Verdict) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	stored, ok := f.w.st.verdicts[verdict.ID]
	if !ok || stored.Status == models.VerdictStatusFinalized {
		return sql.ErrNoRows
	}
	approvals := stored.Approvals
	stored = copyVerdict(*verdict)
	stored.Approvals = approvals
	f.w.st.verdicts[verdict.ID] = stored
	return nil
}

func (f fakeVerdicts) AddApproval(_ context.Context, _ sqlx.ExtContext, approval *models.VerdictApproval) (bool, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	v, ok := f.w.st.verdicts[approval.VerdictID]
	if !ok {
		return false, fmt.Errorf("insert approval: unknown verdict %s", approval.VerdictID)
	}
	if v.ApprovedBy(approval.EvaluatorID) {
		return false, nil
	}
	v.Approvals = append(append([]models.VerdictApproval(nil), v.Approvals...), *approval)
	f.w.st.verdicts[v.ID] = v
	return true, nil
}

func (f fakeVerdicts) ListApprovals(_ context.Context, _ sqlx.ExtContext, verdictID string) ([]models.VerdictApproval, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	return append([]models.VerdictApproval{}, f.w.st.verdicts[verdictID].Approvals...), nil
}

func (f fakeVerdicts) DeleteApprovalsExcept(_ context.Context, _ sqlx.ExtContext, verdictID, keep string) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	v := f.w.st.verdicts[verdictID]
	var kept []models.VerdictApproval
	for _, a := range v.Approvals {
		if a.EvaluatorID == keep {
			kept = append(kept, a)
		}
	}
	v.Approvals = kept
	f.w.st.verdicts[verdictID] = v
	return nil
}

func (f fakeVerdicts) Delete(_ context.Context, _ sqlx.ExtContext, id string) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	if _, ok := f.w.st.verdicts[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.w.st.verdicts, id)
	return nil
}

func (f fakeVerdicts) SetArchiveKey(_ context.Context, id, key string) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	v, ok := f.w.st.verdicts[id]
	if !ok {
		return sql.ErrNoRows
	}
	v.ArchiveKey = &key
	f.w.st.verdicts[id] = v
	return nil
}

type fakeAudit struct{ w *fakeWorld }

func (f fakeAudit) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	f.w.st.audits = append(f.w.st.audits, *log)
	return nil
}

func (w *fakeWorld) auditActions() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.st.audits))
	for i, a := range w.st.audits {
		out[i] = a.Action
	}
	return out
}

type fakeDocuments struct{ w *fakeWorld }

func (f fakeDocuments) FindByIDs(_ context.Context, ids []string) ([]models.MemoirDocument, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	out := []models.MemoirDocument{}
	for _, id := range ids {
		if d, ok := f.w.st.documents[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f fakeDocuments) UpdateStatus(_ context.Context, id string, status models.DocumentStatus) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	d, ok := f.w.st.documents[id]
	if !ok {
		return sql.ErrNoRows
	}
	d.Status = status
	f.w.st.documents[id] = d
	return nil
}

type fakeTickets struct{ w *fakeWorld }

func (f fakeTickets) Create(_ context.Context, ticket *models.RevisionTicket) (bool, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	for _, t := range f.w.st.tickets {
		if t.VerdictID == ticket.VerdictID && t.CandidateID == ticket.CandidateID {
			return false, nil
		}
	}
	ticket.ID = f.w.nextID("ticket")
	f.w.st.tickets = append(f.w.st.tickets, *ticket)
	return true, nil
}

type fakeSubmissions struct{ w *fakeWorld }

func (f fakeSubmissions) FindByVerdictDocument(_ context.Context, verdictID, documentRef string) (*models.LibrarySubmission, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	for _, s := range f.w.st.submissions {
		if s.VerdictID == verdictID && s.DocumentRef == documentRef {
			out := s
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f fakeSubmissions) Create(_ context.Context, sub *models.LibrarySubmission) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	sub.ID = f.w.nextID("submission")
	f.w.st.submissions = append(f.w.st.submissions, *sub)
	return nil
}

// recordingQueue keeps enqueued jobs so tests can dispatch them synchronously.
type recordingQueue struct {
	mu   sync.Mutex
	jobs []jobs.Job
}

func (q *recordingQueue) Enqueue(job jobs.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

// take removes and returns the jobs enqueued so far.
func (q *recordingQueue) take() []jobs.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	pending := q.jobs
	q.jobs = nil
	return pending
}

// drain dispatches jobs, including the ones enqueued by handlers, until the queue is empty.
func (q *recordingQueue) drain(t *testing.T, mux *jobs.Mux) []jobs.Job {
	t.Helper()
	var processed []jobs.Job
	for pending := q.take(); len(pending) > 0; pending = q.take() {
		for _, job := range pending {
			if err := mux.Dispatch(context.Background(), job); err != nil {
				t.Fatalf("dispatch %s: %v", job.Type, err)
			}
			processed = append(processed, job)
		}
	}
	return processed
}

type fakeLibrary struct {
	mu    sync.Mutex
	calls []library.Submission
	err   error
}

func (l *fakeLibrary) SubmitDocument(_ context.Context, sub library.Submission) (*library.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.calls = append(l.calls, sub)
	return &library.Receipt{ExternalID: "lib-" + sub.DocumentRef, Status: "RECEIVED"}, nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (m *fakeMailer) Enabled() bool { return true }

func (m *fakeMailer) Send(msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

type fakeArchiver struct {
	mu       sync.Mutex
	archived []string
}

func (a *fakeArchiver) Archive(_ context.Context, verdictID string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.archived = append(a.archived, verdictID)
	return verdictArchiveKey(verdictID), nil
}

const (
	testLevel = "LICENCE"
	testYear  = "2023-2024"
)

func day(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := time.ParseInLocation("2006-01-02", value, time.UTC)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	return d
}

func at(t *testing.T, date, clock string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, time.UTC)
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}
	return ts
}

func strPtr(v string) *string { return &v }

// fixture wires every jury service against one fake world.
type fixture struct {
	w          *fakeWorld
	tx         *txRunner
	metrics    *MetricsService
	queue      *recordingQueue
	mux        *jobs.Mux
	library    *fakeLibrary
	mailer     *fakeMailer
	archiver   *fakeArchiver
	jury       *JuryService
	overrides  *SittingOverrideService
	verdicts   *VerdictService
	effects    *VerdictEffects
	sessionSvc *SessionService
	sittingSvc *SittingService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	w := newFakeWorld()
	f := &fixture{
		w:        w,
		tx:       &txRunner{w: w},
		metrics:  NewMetricsService(),
		queue:    &recordingQueue{},
		mux:      jobs.NewMux(),
		library:  &fakeLibrary{},
		mailer:   &fakeMailer{},
		archiver: &fakeArchiver{},
	}
	policy := DefaultSchedulingPolicy()
	f.jury = NewJuryService(fakeSessions{w}, fakeCandidates{w}, fakeEvaluators{w}, fakeRooms{w}, fakeSittings{w}, f.tx, nil, fakeAudit{w}, f.metrics, nil, nil,
		JuryServiceConfig{Policy: policy, ProposalTTL: time.Hour})
	f.overrides = NewSittingOverrideService(fakeSessions{w}, fakeCandidates{w}, fakeEvaluators{w}, fakeRooms{w}, fakeSittings{w}, fakeVerdicts{w}, f.tx, fakeAudit{w}, f.metrics, nil, nil, policy)
	f.effects = NewVerdictEffects(VerdictEffectsDeps{
		Queue:       f.queue,
		Candidates:  fakeCandidates{w},
		Evaluators:  fakeEvaluators{w},
		Documents:   fakeDocuments{w},
		Tickets:     fakeTickets{w},
		Submissions: fakeSubmissions{w},
		Library:     f.library,
		Mailer:      f.mailer,
		Archiver:    f.archiver,
		Metrics:     f.metrics,
	})
	f.effects.Register(f.mux)
	f.verdicts = NewVerdictService(fakeVerdicts{w}, fakeSittings{w}, fakeCandidates{w}, f.tx, NewMentionScale(nil), f.effects, fakeAudit{w}, f.metrics, nil, nil)
	f.sessionSvc = NewSessionService(fakeSessions{w}, f.tx, fakeAudit{w}, nil, nil)
	f.sittingSvc = NewSittingService(fakeSessions{w}, fakeSittings{w}, fakeVerdicts{w}, fakeRooms{w}, fakeCandidates{w}, fakeEvaluators{w}, nil)

	w.st.sessions["sess-1"] = models.DefenseSession{ID: "sess-1", AcademicYear: testYear, Label: "JUNE", Level: testLevel, Active: true}
	return f
}

func (f *fixture) addCandidate(id, program, supervisorID string, opts ...func(*models.Candidate)) {
	c := models.Candidate{
		ID:           id,
		Name:         "Candidate " + id,
		Program:      program,
		Level:        testLevel,
		AcademicYear: testYear,
		SupervisorID: supervisorID,
		FolderStatus: models.FolderStatusApprovedAwaitingDefense,
	}
	for _, opt := range opts {
		opt(&c)
	}
	f.w.mu.Lock()
	f.w.st.candidates[id] = c
	f.w.mu.Unlock()
}

func (f *fixture) addEvaluator(id string, grade models.AcademicGrade) {
	f.w.mu.Lock()
	f.w.st.evaluators[id] = models.Evaluator{ID: id, Name: "Prof " + id, Email: id + "@univ.test", Grade: grade, Available: true}
	f.w.mu.Unlock()
}

func (f *fixture) addRoom(id string, capacity int) {
	f.w.mu.Lock()
	f.w.st.rooms[id] = models.Room{ID: id, Name: "Room " + id, Capacity: capacity, Available: true}
	f.w.mu.Unlock()
}

func (f *fixture) addDocument(id, ref string) {
	f.w.mu.Lock()
	f.w.st.documents[id] = models.MemoirDocument{ID: id, Ref: ref, Title: "Memoir " + ref, Status: models.DocumentStatusValidated}
	f.w.mu.Unlock()
}

func withDocument(id string) func(*models.Candidate) {
	return func(c *models.Candidate) { c.DocumentID = &id }
}

func withPair(id string) func(*models.Candidate) {
	return func(c *models.Candidate) { c.PairID = &id }
}

// counterValue reads one counter sample from the metrics registry.
func counterValue(t *testing.T, m *MetricsService, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	samples:
		for _, metric := range family.GetMetric() {
			pairs := metric.GetLabel()
			if len(pairs) != len(labels) {
				continue
			}
			for _, pair := range pairs {
				if labels[pair.GetName()] != pair.GetValue() {
					continue samples
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}
