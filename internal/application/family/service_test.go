package family

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-pregnancy-family/internal/domain"
	"github.com/go-pregnancy-family/internal/pkg/id"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// memStore applies the same guards as the DynamoDB transactions under one lock.
type memStore struct {
	mu       sync.Mutex
	families map[string]*domain.Family
	codes    map[string]string
	members  map[string]*domain.FamilyMembership
	leaveErr []error
	// beforeLeave runs under the lock ahead of each Leave, to stage concurrent changes.
	beforeLeave func(s *memStore)
}

func newMemStore() *memStore {
	return &memStore{
		families: map[string]*domain.Family{},
		codes:    map[string]string{},
		members:  map[string]*domain.FamilyMembership{},
	}
}

func (s *memStore) Create(_ context.Context, f *domain.Family, owner *domain.FamilyMembership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[owner.UserID]; ok {
		return fmt.Errorf("x: %w", domain.ErrAlreadyMember)
	}
	if _, ok := s.codes[f.InviteCode]; ok {
		return fmt.Errorf("x: %w", domain.ErrInviteCodeTaken)
	}
	cp, m := *f, *owner
	s.families[f.FamilyID] = &cp
	s.codes[f.InviteCode] = f.FamilyID
	s.members[owner.UserID] = &m
	return nil
}

func (s *memStore) Get(_ context.Context, familyID string) (*domain.Family, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.families[familyID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (s *memStore) FamilyIDByInviteCode(_ context.Context, code string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fid, ok := s.codes[code]
	if !ok {
		return "", domain.ErrNotFound
	}
	return fid, nil
}

func (s *memStore) Membership(_ context.Context, userID string) (*domain.FamilyMembership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *memStore) Members(_ context.Context, familyID string) ([]domain.FamilyMembership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.FamilyMembership{}
	for _, m := range s.members {
		if m.FamilyID == familyID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *memStore) Join(_ context.Context, m *domain.FamilyMembership, limit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[m.UserID]; ok {
		return domain.ErrAlreadyMember
	}
	f := s.families[m.FamilyID]
	if !f.Active || f.MemberCount >= limit {
		return domain.ErrCondition
	}
	cp := *m
	s.members[m.UserID] = &cp
	f.MemberCount++
	return nil
}

func (s *memStore) Leave(_ context.Context, m *domain.FamilyMembership, expectCount int, successor string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.beforeLeave != nil {
		s.beforeLeave(s)
	}
	if len(s.leaveErr) > 0 {
		err := s.leaveErr[0]
		s.leaveErr = s.leaveErr[1:]
		return err
	}
	if cur, ok := s.members[m.UserID]; !ok || cur.FamilyID != m.FamilyID {
		return domain.ErrNotFound
	}
	f := s.families[m.FamilyID]
	if successor != "" {
		if next, ok := s.members[successor]; !ok || next.FamilyID != m.FamilyID || f.OwnerID != m.UserID {
			return domain.ErrCondition
		}
	}
	if f.MemberCount != expectCount {
		return domain.ErrCondition
	}
	delete(s.members, m.UserID)
	f.MemberCount--
	if expectCount == 1 {
		f.Active = false
	}
	if successor != "" {
		f.OwnerID = successor
	}
	return nil
}

func (s *memStore) RotateInviteCode(_ context.Context, familyID, prev, next string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.codes[next]; ok {
		return domain.ErrInviteCodeTaken
	}
	f := s.families[familyID]
	if f.InviteCode != prev {
		return domain.ErrCondition
	}
	delete(s.codes, prev)
	s.codes[next] = familyID
	f.InviteCode, f.InviteExpiresAt = next, expiresAt
	return nil
}

func (s *memStore) Update(_ context.Context, familyID string, updates map[string]interface{}) (*domain.Family, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.families[familyID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	for k, v := range updates {
		switch k {
		case fieldOwnerID:
			f.OwnerID = v.(string)
		case fieldDueDate:
			f.DueDate = v.(string)
		case fieldBabyName:
			f.BabyName = v.(string)
		case fieldBabyGender:
			f.BabyGender = v.(domain.Gender)
		}
	}
	cp := *f
	return &cp, nil
}

type userMap map[string]*domain.User

func (u userMap) Get(_ context.Context, userID string) (*domain.User, error) {
	if usr, ok := u[userID]; ok {
		return usr, nil
	}
	return nil, domain.ErrUserNotFound
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Broadcast(ctx context.Context, familyID string, recipients []string, kind domain.NotificationKind, message string) error {
	return m.Called(ctx, familyID, recipients, kind, message).Error(0)
}

// --- helpers ---

var now = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

var users = userMap{
	"mom":  {UserID: "mom", Nickname: "小雨妈妈", RoleType: domain.RolePregnant},
	"dad":  {UserID: "dad", Nickname: "小雨爸爸", RoleType: domain.RolePartner},
	"gran": {UserID: "gran", Nickname: "外婆", RoleType: domain.RoleGrandparent},
}

type fixture struct {
	store *memStore
	clock time.Time
	svc   Service
}

func newFixture(limit int, codes ...string) *fixture {
	fx := &fixture{store: newMemStore(), clock: now}
	i := 0
	fx.svc = NewService(ServiceDeps{
		FamilyRepo:  fx.store,
		Users:       users,
		InviteTTL:   7 * 24 * time.Hour,
		MemberLimit: limit,
		Now:         func() time.Time { return fx.clock },
		NewID:       id.Sequence("fam1"),
		NewCode: func() (string, error) {
			if i < len(codes) {
				i++
				return codes[i-1], nil
			}
			return fmt.Sprintf("CODE%04d", i), nil
		},
	})
	return fx
}

func (fx *fixture) create(t *testing.T) *domain.FamilyView {
	t.Helper()
	v, err := fx.svc.CreateFamily(context.Background(), "mom", "小雨的家庭")
	require.NoError(t, err)
	return v
}

// --- CreateFamily ---

func TestCreateFamily(t *testing.T) {
	fx := newFixture(10, "ABCD2345")
	v := fx.create(t)

	assert.Equal(t, "fam1", v.Family.FamilyID)
	assert.Equal(t, "ABCD2345", v.Family.InviteCode)
	assert.Equal(t, 1, v.Family.MemberCount)
	assert.Equal(t, now.Add(7*24*time.Hour), v.Family.InviteExpiresAt)
	assert.Equal(t, domain.FamilyOwner, v.Membership.FamilyRole)
	assert.Equal(t, domain.RolePregnant, v.Membership.RoleType)
}

func TestCreateFamily_RetriesOnCodeCollision(t *testing.T) {
	fx := newFixture(10)
	fx.store.codes["TAKEN234"] = "other"
	fx.svc = NewService(ServiceDeps{
		FamilyRepo: fx.store, Users: users, MemberLimit: 10,
		NewCode: sequenceCodes("TAKEN234", "TAKEN234", "FRESH234"),
	})

	v, err := fx.svc.CreateFamily(context.Background(), "mom", "家")
	require.NoError(t, err)
	assert.Equal(t, "FRESH234", v.Family.InviteCode)
}

func TestCreateFamily_GivesUpAfterTenCollisions(t *testing.T) {
	store := newMemStore()
	store.codes["TAKEN234"] = "other"
	calls := 0
	svc := NewService(ServiceDeps{FamilyRepo: store, Users: users, MemberLimit: 10,
		NewCode: func() (string, error) { calls++; return "TAKEN234", nil }})

	_, err := svc.CreateFamily(context.Background(), "mom", "家")
	assert.ErrorIs(t, err, domain.ErrSystem)
	assert.Equal(t, maxCodeAttempts, calls)
}

func TestCreateFamily_OwnerAlreadyMember(t *testing.T) {
	fx := newFixture(10, "ABCD2345", "EFGH2345")
	fx.create(t)

	_, err := fx.svc.CreateFamily(context.Background(), "mom", "第二个家")
	assert.ErrorIs(t, err, domain.ErrFamilyMemberExists)
}

func sequenceCodes(codes ...string) func() (string, error) {
	i := 0
	return func() (string, error) {
		c := codes[i]
		i++
		return c, nil
	}
}

// --- JoinByInviteCode ---

func TestJoin_Success(t *testing.T) {
	fx := newFixture(10, "ABCD2345")
	fx.create(t)

	v, err := fx.svc.JoinByInviteCode(context.Background(), "dad", "ABCD2345")
	require.NoError(t, err)
	assert.Equal(t, domain.FamilyMember, v.Membership.FamilyRole)
	assert.Equal(t, 2, v.Family.MemberCount)
	assert.Len(t, v.Members, 2)
}

func TestJoin_Failures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(fx *fixture)
		user  string
		code  string
		want  error
	}{
		{name: "unknown code", user: "dad", code: "ZZZZ2345", want: domain.ErrInvalidInviteCode},
		{name: "expired", user: "dad", code: "ABCD2345", want: domain.ErrInviteCodeExpired,
			setup: func(fx *fixture) { fx.clock = now.Add(7 * 24 * time.Hour) }},
		{name: "inactive", user: "dad", code: "ABCD2345", want: domain.ErrInvalidInviteCode,
			setup: func(fx *fixture) { fx.store.families["fam1"].Active = false }},
		{name: "already in family", user: "mom", code: "ABCD2345", want: domain.ErrFamilyMemberExists},
		{name: "in other family", user: "dad", code: "ABCD2345", want: domain.ErrAlreadyInOtherFamily,
			setup: func(fx *fixture) {
				fx.store.members["dad"] = &domain.FamilyMembership{UserID: "dad", FamilyID: "elsewhere"}
			}},
		{name: "full", user: "gran", code: "ABCD2345", want: domain.ErrFamilyMemberLimitExceeded,
			setup: func(fx *fixture) {
				_, err := fx.svc.JoinByInviteCode(context.Background(), "dad", "ABCD2345")
				if err != nil {
					panic(err)
				}
			}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(2, "ABCD2345")
			fx.create(t)
			if tt.setup != nil {
				tt.setup(fx)
			}
			_, err := fx.svc.JoinByInviteCode(context.Background(), tt.user, tt.code)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestJoin_LimitHoldsUnderConcurrency(t *testing.T) {
	const limit = 4
	fx := newFixture(limit, "ABCD2345")
	fx.create(t)
	for i := 0; i < 20; i++ {
		uid := fmt.Sprintf("u%02d", i)
		users[uid] = &domain.User{UserID: uid, Nickname: uid, RoleType: domain.RoleFamily}
	}
	t.Cleanup(func() {
		for i := 0; i < 20; i++ {
			delete(users, fmt.Sprintf("u%02d", i))
		}
	})

	var wg sync.WaitGroup
	errs := make([]error, 20)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = fx.svc.JoinByInviteCode(context.Background(), fmt.Sprintf("u%02d", i), "ABCD2345")
		}(i)
	}
	wg.Wait()

	joined := 0
	for _, err := range errs {
		if err == nil {
			joined++
		} else {
			assert.ErrorIs(t, err, domain.ErrFamilyMemberLimitExceeded)
		}
	}
	assert.Equal(t, limit-1, joined)
	assert.Equal(t, limit, fx.store.families["fam1"].MemberCount)
}

func TestJoin_NotifiesExistingMembers(t *testing.T) {
	fx := newFixture(10, "ABCD2345")
	n := &mockNotifier{}
	fx.svc.(*service).notifier = n
	fx.create(t)
	n.On("Broadcast", mock.Anything, "fam1", []string{"mom"}, domain.NotifyMemberJoined, "小雨爸爸加入了家庭").
		Return(errors.New("throttled"))

	_, err := fx.svc.JoinByInviteCode(context.Background(), "dad", "ABCD2345")
	require.NoError(t, err, "notification failure must not fail the join")
	n.AssertExpectations(t)
}

// --- Leave ---

func TestLeave_NotMember(t *testing.T) {
	fx := newFixture(10, "ABCD2345")
	fx.create(t)

	err := fx.svc.Leave(context.Background(), "dad", "fam1")
	assert.ErrorIs(t, err, domain.ErrFamilyMemberNotFound)
}

func TestLeave_OnlyPregnantMemberCannotLeave(t *testing.T) {
	fx := newFixture(10, "ABCD2345")
	fx.create(t)
	_, err := fx.svc.JoinByInviteCode(context.Background(), "dad", "ABCD2345")
	require.NoError(t, err)

	err = fx.svc.Leave(context.Background(), "mom", "fam1")
	assert.ErrorIs(t, err, domain.ErrCannotLeaveFamily)
}

func TestLeave_OwnerLeavingTransfersOwnership(t *testing.T) {
	fx := newFixture(10, "ABCD2345")
	fx.create(t)
	fx.clock = now.Add(time.Hour)
	_, err := fx.svc.JoinByInviteCode(context.Background(), "dad", "ABCD2345")
	require.NoError(t, err)
	fx.store.families["fam1"].OwnerID = "dad"

	require.NoError(t, fx.svc.Leave(context.Background(), "dad", "fam1"))
	f := fx.store.families["fam1"]
	assert.Equal(t, "mom", f.OwnerID)
	assert.Equal(t, 1, f.MemberCount)
	assert.True(t, f.Active)
}

func TestLeave_SuccessorLeavingConcurrentlyPicksAnother(t *testing.T) {
	fx := newFixture(10, "ABCD2345")
	fx.create(t)
	for i, uid := range []string{"dad", "gran"} {
		fx.clock = now.Add(time.Duration(i+1) * time.Hour)
		_, err := fx.svc.JoinByInviteCode(context.Background(), uid, "ABCD2345")
		require.NoError(t, err)
	}
	fx.store.families["fam1"].OwnerID = "dad"

	calls := 0
	fx.store.beforeLeave = func(s *memStore) {
		calls++
		if calls == 1 {
			// mom leaves between dad's read and dad's write.
			delete(s.members, "mom")
			s.families["fam1"].MemberCount--
		}
	}

	require.NoError(t, fx.svc.Leave(context.Background(), "dad", "fam1"))
	assert.Equal(t, 2, calls)
	f := fx.store.families["fam1"]
	assert.Equal(t, "gran", f.OwnerID)
	assert.Equal(t, 1, f.MemberCount)
	assert.True(t, f.Active)
}

func TestLeave_FailedHandoverKeepsOwnerAndMembership(t *testing.T) {
	fx := newFixture(10, "ABCD2345")
	fx.create(t)
	fx.clock = now.Add(time.Hour)
	_, err := fx.svc.JoinByInviteCode(context.Background(), "dad", "ABCD2345")
	require.NoError(t, err)
	fx.store.families["fam1"].OwnerID = "dad"
	for i := 0; i < maxLeaveAttempts; i++ {
		fx.store.leaveErr = append(fx.store.leaveErr, domain.ErrCondition)
	}

	err = fx.svc.Leave(context.Background(), "dad", "fam1")
	assert.ErrorIs(t, err, domain.CodeConflict.Err())
	f := fx.store.families["fam1"]
	assert.Equal(t, "dad", f.OwnerID)
	assert.Contains(t, fx.store.members, "dad")
	assert.Equal(t, 2, f.MemberCount)
}

func TestLeave_LastMemberDeactivatesFamily(t *testing.T) {
	fx := newFixture(10, "ABCD2345")
	fx.create(t)

	require.NoError(t, fx.svc.Leave(context.Background(), "mom", "fam1"))
	f := fx.store.families["fam1"]
	assert.False(t, f.Active)
	assert.Equal(t, 0, f.MemberCount)

	_, err := fx.svc.JoinByInviteCode(context.Background(), "dad", "ABCD2345")
	assert.ErrorIs(t, err, domain.ErrInvalidInviteCode)
}

func TestLeave_RetriesWhenCountMoves(t *testing.T) {
	fx := newFixture(10, "ABCD2345")
	fx.create(t)
	fx.store.leaveErr = []error{domain.ErrCondition, domain.ErrCondition}

	require.NoError(t, fx.svc.Leave(context.Background(), "mom", "fam1"))
}

func TestLeave_GivesUpUnderContention(t *testing.T) {
	fx := newFixture(10, "ABCD2345")
	fx.create(t)
	for i := 0; i < maxLeaveAttempts; i++ {
		fx.store.leaveErr = append(fx.store.leaveErr, domain.ErrCondition)
	}

	err := fx.svc.Leave(context.Background(), "mom", "fam1")
	assert.ErrorIs(t, err, domain.CodeConflict.Err())
}

// --- reads and owner operations ---

func TestGetForUser(t *testing.T) {
	fx := newFixture(10, "ABCD2345")
	fx.create(t)

	_, err := fx.svc.GetForUser(context.Background(), "dad")
	assert.ErrorIs(t, err, domain.ErrFamilyMemberNotFound)

	v, err := fx.svc.GetForUser(context.Background(), "mom")
	require.NoError(t, err)
	assert.Equal(t, domain.FamilyOwner, v.Membership.FamilyRole)
	assert.Len(t, v.Members, 1)
}

func TestMembers_RequiresMembership(t *testing.T) {
	fx := newFixture(10, "ABCD2345")
	fx.create(t)

	_, err := fx.svc.Members(context.Background(), "gran", "fam1")
	assert.ErrorIs(t, err, domain.ErrFamilyMemberNotFound)
}

func TestRegenerateInviteCode(t *testing.T) {
	fx := newFixture(10, "ABCD2345", "NEWC2345")
	fx.create(t)
	_, err := fx.svc.JoinByInviteCode(context.Background(), "dad", "ABCD2345")
	require.NoError(t, err)

	_, err = fx.svc.RegenerateInviteCode(context.Background(), "dad", "fam1")
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	fx.clock = now.Add(48 * time.Hour)
	f, err := fx.svc.RegenerateInviteCode(context.Background(), "mom", "fam1")
	require.NoError(t, err)
	assert.Equal(t, "NEWC2345", f.InviteCode)
	assert.Equal(t, fx.clock.Add(7*24*time.Hour), f.InviteExpiresAt)

	_, err = fx.svc.JoinByInviteCode(context.Background(), "gran", "ABCD2345")
	assert.ErrorIs(t, err, domain.ErrInvalidInviteCode)
}

func TestUpdatePregnancy(t *testing.T) {
	fx := newFixture(10, "ABCD2345")
	fx.create(t)
	name, gender := "小雨", 2

	tests := []struct {
		due  string
		want error
	}{
		{due: "2026-03-01", want: domain.ErrInvalidDueDate},
		{due: "2026-12-07", want: domain.ErrInvalidDueDate},
		{due: "2026-13-01", want: domain.ErrInvalidDueDate},
		{due: "2026-03-02"},
		{due: "2026-12-06"},
	}
	for _, tt := range tests {
		t.Run(tt.due, func(t *testing.T) {
			f, err := fx.svc.UpdatePregnancy(context.Background(), "mom", "fam1",
				domain.UpdatePregnancyRequest{DueDate: tt.due, BabyName: &name, BabyGender: &gender})
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.due, f.DueDate)
			assert.Equal(t, domain.GenderFemale, f.BabyGender)
		})
	}
}

func TestUpdatePregnancy_NonMember(t *testing.T) {
	fx := newFixture(10, "ABCD2345")
	fx.create(t)

	_, err := fx.svc.UpdatePregnancy(context.Background(), "dad", "fam1", domain.UpdatePregnancyRequest{DueDate: "2026-06-01"})
	assert.ErrorIs(t, err, domain.ErrFamilyMemberNotFound)
}
