package service

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sakif/rankboard/internal/apperror"
	"github.com/sakif/rankboard/internal/auth"
	"github.com/sakif/rankboard/internal/metrics"
	"github.com/sakif/rankboard/internal/model"
	"github.com/sakif/rankboard/internal/repository"
	"github.com/sakif/rankboard/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

// =========================================================================
// FAKE STORE
// =========================================================================
//
// fakeStore is an in-memory stand-in for the SQLite adapter. It implements
// every repository interface the services use, with the same uniqueness,
// not-found and cascade behaviour, so the services can be tested without a
// database.

var (
	_ repository.UserRepository        = (*fakeStore)(nil)
	_ repository.ChallengeRepository   = (*fakeStore)(nil)
	_ repository.SubmissionRepository  = (*fakeStore)(nil)
	_ repository.ScoreRepository       = (*fakeStore)(nil)
	_ repository.LeaderboardRepository = (*fakeStore)(nil)
	_ repository.BlobIndex             = (*fakeStore)(nil)
)

type fakeStore struct {
	mu          sync.Mutex
	nextID      int64
	clock       time.Time
	users       map[int64]*model.User
	challenges  map[int64]*model.Challenge
	submissions map[int64]*model.Submission
	scores      map[int64]*model.Score

	// set to simulate failures
	insertSubmissionErr error
	updateSubmissionErr error
	// beforeInsert runs inside InsertSubmission before the uniqueness
	// check, to simulate a concurrent writer.
	beforeInsert func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		clock:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		users:       make(map[int64]*model.User),
		challenges:  make(map[int64]*model.Challenge),
		submissions: make(map[int64]*model.Submission),
		scores:      make(map[int64]*model.Score),
	}
}

// tick advances the fake clock so successive writes get distinct times.
func (f *fakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

// ---- users ----

func (f *fakeStore) CreateUser(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.users {
		if strings.EqualFold(o.Email, u.Email) {
			return apperror.Conflict("email already in use")
		}
		if o.Username == u.Username {
			return apperror.Conflict("username already in use")
		}
	}
	u.ID = f.id()
	u.CreatedAt = f.tick()
	u.UpdatedAt = u.CreatedAt
	stored := *u
	f.users[u.ID] = &stored
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	out := *u
	return &out, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			out := *u
			return &out, nil
		}
	}
	return nil, apperror.NotFoundMessage("user not found")
}

func (f *fakeStore) ListUsers(_ context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.User{}
	for _, u := range f.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) UpdateUser(_ context.Context, id int64, upd model.UserUpdate) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	if upd.Username != nil {
		u.Username = *upd.Username
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	if upd.Role != nil {
		u.Role = *upd.Role
	}
	u.UpdatedAt = f.tick()
	out := *u
	return &out, nil
}

func (f *fakeStore) SetAvatar(_ context.Context, id int64, filename *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.AvatarFilename = filename
	return nil
}

func (f *fakeStore) DeleteUser(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return apperror.NotFound("user", id)
	}
	delete(f.users, id)
	for cid, c := range f.challenges {
		if c.CreatedByAdminID == id {
			f.deleteChallengeLocked(cid)
		}
	}
	for sid, s := range f.submissions {
		if s.UserID == id {
			f.deleteSubmissionLocked(sid)
		}
	}
	for scid, sc := range f.scores {
		if sc.AdminID == id {
			delete(f.scores, scid)
		}
	}
	return nil
}

func (f *fakeStore) CountAdmins(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, u := range f.users {
		if u.Role == model.RoleAdmin {
			n++
		}
	}
	return n, nil
}

// ---- challenges ----

func (f *fakeStore) CreateChallenge(_ context.Context, c *model.Challenge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[c.CreatedByAdminID]; !ok {
		return apperror.NotFound("user", c.CreatedByAdminID)
	}
	c.ID = f.id()
	now := f.tick()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	stored := *c
	f.challenges[c.ID] = &stored
	return nil
}

func (f *fakeStore) GetChallengeByID(_ context.Context, id int64) (*model.Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.challenges[id]
	if !ok {
		return nil, apperror.NotFound("challenge", id)
	}
	out := *c
	return &out, nil
}

func (f *fakeStore) ListChallenges(_ context.Context) ([]model.Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Challenge{}
	for _, c := range f.challenges {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) UpdateChallenge(_ context.Context, id int64, upd model.ChallengeUpdate) (*model.Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.challenges[id]
	if !ok {
		return nil, apperror.NotFound("challenge", id)
	}
	if upd.Title != nil {
		c.Title = *upd.Title
	}
	if upd.Description != nil {
		c.Description = *upd.Description
	}
	if upd.CreatedAt != nil {
		c.CreatedAt = *upd.CreatedAt
	}
	if upd.Deadline != nil {
		c.Deadline = *upd.Deadline
	}
	c.UpdatedAt = f.tick()
	out := *c
	return &out, nil
}

func (f *fakeStore) DeleteChallenge(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.challenges[id]; !ok {
		return apperror.NotFound("challenge", id)
	}
	f.deleteChallengeLocked(id)
	return nil
}

func (f *fakeStore) deleteChallengeLocked(id int64) {
	delete(f.challenges, id)
	for sid, s := range f.submissions {
		if s.ChallengeID == id {
			f.deleteSubmissionLocked(sid)
		}
	}
}

// ---- submissions ----

func (f *fakeStore) InsertSubmission(_ context.Context, s *model.Submission) error {
	if f.beforeInsert != nil {
		hook := f.beforeInsert
		f.beforeInsert = nil
		hook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertSubmissionErr != nil {
		return f.insertSubmissionErr
	}
	for _, o := range f.submissions {
		if o.ChallengeID == s.ChallengeID && o.UserID == s.UserID {
			return apperror.Conflict("submission already exists")
		}
	}
	s.ID = f.id()
	s.SubmittedAt = f.tick()
	s.UpdatedAt = s.SubmittedAt
	stored := *s
	f.submissions[s.ID] = &stored
	return nil
}

func (f *fakeStore) UpdateSubmissionFile(_ context.Context, id int64, filename string) (*model.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateSubmissionErr != nil {
		return nil, f.updateSubmissionErr
	}
	s, ok := f.submissions[id]
	if !ok {
		return nil, apperror.NotFound("submission", id)
	}
	s.Filename = filename
	s.SubmittedAt = f.tick()
	s.UpdatedAt = s.SubmittedAt
	out := *s
	return &out, nil
}

func (f *fakeStore) GetSubmissionByID(_ context.Context, id int64) (*model.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.submissions[id]
	if !ok {
		return nil, apperror.NotFound("submission", id)
	}
	out := *s
	return &out, nil
}

func (f *fakeStore) GetSubmissionForChallengeAndUser(_ context.Context, challengeID, userID int64) (*model.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.submissions {
		if s.ChallengeID == challengeID && s.UserID == userID {
			out := *s
			return &out, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ListSubmissionsForChallenge(_ context.Context, challengeID int64) ([]model.SubmissionWithUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.SubmissionWithUser{}
	for _, s := range f.submissions {
		if s.ChallengeID != challengeID {
			continue
		}
		u := f.users[s.UserID]
		out = append(out, model.SubmissionWithUser{
			Submission:     *s,
			Username:       u.Username,
			AvatarFilename: u.AvatarFilename,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out, nil
}

func (f *fakeStore) ListSubmissionFilenames(_ context.Context, challengeID int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.submissions {
		if s.ChallengeID == challengeID {
			out = append(out, s.Filename)
		}
	}
	return out, nil
}

func (f *fakeStore) ListSubmissionFilenamesByUser(_ context.Context, userID int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.submissions {
		c := f.challenges[s.ChallengeID]
		if s.UserID == userID || (c != nil && c.CreatedByAdminID == userID) {
			out = append(out, s.Filename)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteSubmission(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.submissions[id]; !ok {
		return apperror.NotFound("submission", id)
	}
	f.deleteSubmissionLocked(id)
	return nil
}

func (f *fakeStore) deleteSubmissionLocked(id int64) {
	delete(f.submissions, id)
	for scid, sc := range f.scores {
		if sc.SubmissionID == id {
			delete(f.scores, scid)
		}
	}
}

// ---- scores ----

func (f *fakeStore) UpsertScore(_ context.Context, s *model.Score) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.submissions[s.SubmissionID]; !ok {
		return apperror.NotFound("submission", s.SubmissionID)
	}
	now := f.tick()
	for _, o := range f.scores {
		if o.SubmissionID == s.SubmissionID && o.AdminID == s.AdminID {
			o.Score = s.Score
			o.Feedback = s.Feedback
			o.UpdatedAt = now
			*s = *o
			return nil
		}
	}
	s.ID = f.id()
	s.CreatedAt = now
	s.UpdatedAt = now
	stored := *s
	f.scores[s.ID] = &stored
	return nil
}

func (f *fakeStore) ListScoresForSubmission(_ context.Context, submissionID int64) ([]model.ScoreWithAdmin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.ScoreWithAdmin{}
	for _, sc := range f.sortedScoresLocked() {
		if sc.SubmissionID == submissionID {
			out = append(out, model.ScoreWithAdmin{Score: *sc, AdminUsername: f.users[sc.AdminID].Username})
		}
	}
	return out, nil
}

func (f *fakeStore) sortedScoresLocked() []*model.Score {
	all := make([]*model.Score, 0, len(f.scores))
	for _, sc := range f.scores {
		all = append(all, sc)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})
	return all
}

// ---- leaderboard ----

func (f *fakeStore) LeaderboardRows(_ context.Context, challengeID int64) ([]model.LeaderboardRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.challenges[challengeID]; !ok {
		return []model.LeaderboardRow{}, nil
	}

	var participants []*model.User
	for _, u := range f.users {
		if u.Role == model.RoleUser {
			participants = append(participants, u)
		}
	}
	sort.Slice(participants, func(i, j int) bool { return participants[i].Username < participants[j].Username })

	var rows []model.LeaderboardRow
	for _, u := range participants {
		base := model.LeaderboardRow{UserID: u.ID, Username: u.Username, AvatarFilename: u.AvatarFilename}
		var sub *model.Submission
		for _, s := range f.submissions {
			if s.ChallengeID == challengeID && s.UserID == u.ID {
				sub = s
			}
		}
		if sub == nil {
			rows = append(rows, base)
			continue
		}
		base.SubmissionID = &sub.ID
		scored := false
		for _, sc := range f.sortedScoresLocked() {
			if sc.SubmissionID != sub.ID {
				continue
			}
			r := base
			r.ScoreID = &sc.ID
			r.AdminID = &sc.AdminID
			name := f.users[sc.AdminID].Username
			r.AdminUsername = &name
			r.Score = &sc.Score
			r.Feedback = sc.Feedback
			rows = append(rows, r)
			scored = true
		}
		if !scored {
			rows = append(rows, base)
		}
	}
	return rows, nil
}

// ---- blob index ----

func (f *fakeStore) ReferencedAvatars(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, u := range f.users {
		if u.AvatarFilename != nil {
			out = append(out, *u.AvatarFilename)
		}
	}
	return out, nil
}

func (f *fakeStore) ReferencedSubmissions(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.submissions {
		out = append(out, s.Filename)
	}
	return out, nil
}

// =========================================================================
// HELPERS
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testEnv wires every service against one fakeStore and a LocalStore in a
// temp directory.
type testEnv struct {
	store   *fakeStore
	blobs   *storage.LocalStore
	metrics *metrics.Metrics

	users       *UserService
	challenges  *ChallengeService
	submissions *SubmissionService
	scores      *ScoreService
	auth        *AuthService
	maintenance *MaintenanceService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newFakeStore()
	blobs, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	logger := testLogger()
	m := metrics.New()
	cleaner := storage.NewCleaner(blobs, logger, m)
	passwords := auth.NewPasswordService(bcrypt.MinCost)
	tokens, err := auth.NewTokenService("0123456789abcdef0123456789abcdef", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	authSvc, err := NewAuthService(store, tokens, passwords, logger)
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}

	return &testEnv{
		store:       store,
		blobs:       blobs,
		metrics:     m,
		users:       NewUserService(store, store, passwords, blobs, cleaner, logger),
		challenges:  NewChallengeService(store, store, cleaner, logger),
		submissions: NewSubmissionService(store, store, blobs, cleaner, m, logger),
		scores:      NewScoreService(store, store, store, m, logger),
		auth:        authSvc,
		maintenance: NewMaintenanceService(store, cleaner, logger),
	}
}

func (e *testEnv) createUser(t *testing.T, username string, role model.Role) *model.User {
	t.Helper()
	u, err := e.users.Create(context.Background(), NewUser{
		Username: username,
		Email:    username + "@example.com",
		Password: "Passw0rd!",
		Role:     role,
	})
	if err != nil {
		t.Fatalf("creating user %s: %v", username, err)
	}
	return u
}

func (e *testEnv) createChallenge(t *testing.T, adminID int64, title string) *model.Challenge {
	t.Helper()
	c, err := e.challenges.Create(context.Background(), adminID, NewChallenge{
		Title:    title,
		Deadline: time.Now().Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("creating challenge %s: %v", title, err)
	}
	return c
}

func (e *testEnv) submit(t *testing.T, challengeID, userID int64, body string) *model.Submission {
	t.Helper()
	sub, _, err := e.submissions.Submit(context.Background(), challengeID, userID, strings.NewReader(body))
	if err != nil {
		t.Fatalf("submitting: %v", err)
	}
	return sub
}

func (e *testEnv) blobNames(t *testing.T, bucket storage.Bucket) []string {
	t.Helper()
	names, err := e.blobs.List(context.Background(), bucket)
	if err != nil {
		t.Fatalf("listing %s: %v", bucket, err)
	}
	return names
}

// assertMetric scrapes /metrics and checks that line appears verbatim.
func assertMetric(t *testing.T, e *testEnv, line string) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), line+"\n") {
		t.Errorf("metrics missing %q", line)
	}
}

func identity(u *model.User) auth.Identity {
	return auth.Identity{UserID: u.ID, Username: u.Username, Role: u.Role}
}

func strPtr(s string) *string { return &s }
