package family

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/go-pregnancy-family/internal/domain"
	"github.com/go-pregnancy-family/internal/pkg/id"
	"github.com/go-pregnancy-family/internal/pkg/token"
)

const (
	// maxCodeAttempts bounds invite-code generation when a fresh code collides.
	maxCodeAttempts = 10
	// maxLeaveAttempts bounds optimistic retries when the member count moves under a leave.
	maxLeaveAttempts = 5

	fieldDueDate    = "due_date"
	fieldBabyName   = "baby_name"
	fieldBabyGender = "baby_gender"
)

var errMembershipBusy = domain.CodeConflict.Err().WithMessage("家庭成员变动频繁，请稍后重试")

type Service interface {
	CreateFamily(ctx context.Context, ownerID, name string) (*domain.FamilyView, error)
	// CheckInviteCode resolves code to a joinable family without joining it.
	CheckInviteCode(ctx context.Context, code string) (*domain.Family, error)
	JoinByInviteCode(ctx context.Context, userID, code string) (*domain.FamilyView, error)
	Leave(ctx context.Context, userID, familyID string) error
	// GetForUser returns domain.ErrFamilyMemberNotFound when the user has no family.
	GetForUser(ctx context.Context, userID string) (*domain.FamilyView, error)
	Members(ctx context.Context, userID, familyID string) ([]domain.FamilyMembership, error)
	RegenerateInviteCode(ctx context.Context, userID, familyID string) (*domain.Family, error)
	UpdatePregnancy(ctx context.Context, userID, familyID string, req domain.UpdatePregnancyRequest) (*domain.Family, error)
}

type familyStore interface {
	Create(ctx context.Context, f *domain.Family, owner *domain.FamilyMembership) error
	Get(ctx context.Context, familyID string) (*domain.Family, error)
	FamilyIDByInviteCode(ctx context.Context, code string) (string, error)
	Membership(ctx context.Context, userID string) (*domain.FamilyMembership, error)
	Members(ctx context.Context, familyID string) ([]domain.FamilyMembership, error)
	Join(ctx context.Context, m *domain.FamilyMembership, limit int) error
	// Leave hands ownership to a non-empty successor in the same write.
	Leave(ctx context.Context, m *domain.FamilyMembership, expectCount int, successor string, now time.Time) error
	RotateInviteCode(ctx context.Context, familyID, prev, next string, expiresAt time.Time) error
	Update(ctx context.Context, familyID string, updates map[string]interface{}) (*domain.Family, error)
}

type userLookup interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type notifier interface {
	Broadcast(ctx context.Context, familyID string, recipients []string, kind domain.NotificationKind, message string) error
}

type service struct {
	repo        familyStore
	users       userLookup
	notifier    notifier
	inviteTTL   time.Duration
	memberLimit int
	now         func() time.Time
	newID       id.Generator
	newCode     func() (string, error)
}

type ServiceDeps struct {
	FamilyRepo  familyStore
	Users       userLookup
	Notifier    notifier
	InviteTTL   time.Duration
	MemberLimit int
	Now         func() time.Time
	NewID       id.Generator
	NewCode     func() (string, error)
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		repo:        deps.FamilyRepo,
		users:       deps.Users,
		notifier:    deps.Notifier,
		inviteTTL:   deps.InviteTTL,
		memberLimit: deps.MemberLimit,
		now:         deps.Now,
		newID:       deps.NewID,
		newCode:     deps.NewCode,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = id.New
	}
	if s.newCode == nil {
		s.newCode = token.NewInviteCode
	}
	return s
}

func (s *service) CreateFamily(ctx context.Context, ownerID, name string) (*domain.FamilyView, error) {
	owner, err := s.users.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	f := &domain.Family{
		FamilyID:        s.newID(),
		Name:            name,
		OwnerID:         ownerID,
		InviteExpiresAt: now.Add(s.inviteTTL),
		MemberCount:     1,
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	m := &domain.FamilyMembership{
		UserID:     ownerID,
		FamilyID:   f.FamilyID,
		FamilyRole: domain.FamilyOwner,
		RoleType:   owner.RoleType,
		Nickname:   owner.Nickname,
		JoinedAt:   now,
	}
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		if f.InviteCode, err = s.newCode(); err != nil {
			return nil, domain.ErrSystem.Wrap(err)
		}
		err = s.repo.Create(ctx, f, m)
		if !errors.Is(err, domain.ErrInviteCodeTaken) {
			break
		}
		slog.Warn("invite code collision", "code", f.InviteCode, "attempt", attempt+1)
	}
	switch {
	case err == nil:
		return &domain.FamilyView{Family: f, Membership: m, Members: []domain.FamilyMembership{*m}}, nil
	case errors.Is(err, domain.ErrAlreadyMember):
		return nil, domain.ErrFamilyMemberExists.Wrap(err)
	case errors.Is(err, domain.ErrInviteCodeTaken):
		return nil, domain.ErrSystem.WithMessage("邀请码生成失败，请重试").Wrap(err)
	default:
		return nil, domain.StoreFailure(err)
	}
}

func (s *service) CheckInviteCode(ctx context.Context, code string) (*domain.Family, error) {
	familyID, err := s.repo.FamilyIDByInviteCode(ctx, code)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidInviteCode
	}
	if err != nil {
		return nil, domain.StoreFailure(err)
	}
	f, err := s.repo.Get(ctx, familyID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidInviteCode
	}
	if err != nil {
		return nil, domain.StoreFailure(err)
	}
	if !f.Active {
		return nil, domain.ErrInvalidInviteCode
	}
	if f.InviteExpired(s.now()) {
		return nil, domain.ErrInviteCodeExpired
	}
	if f.MemberCount >= s.memberLimit {
		return nil, domain.ErrFamilyMemberLimitExceeded
	}
	return f, nil
}

func (s *service) JoinByInviteCode(ctx context.Context, userID, code string) (*domain.FamilyView, error) {
	f, err := s.CheckInviteCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNotMember(ctx, userID, f.FamilyID); err != nil {
		return nil, err
	}
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	m := &domain.FamilyMembership{
		UserID:     userID,
		FamilyID:   f.FamilyID,
		FamilyRole: domain.FamilyMember,
		RoleType:   u.RoleType,
		Nickname:   u.Nickname,
		JoinedAt:   s.now().UTC(),
	}
	err = s.repo.Join(ctx, m, s.memberLimit)
	switch {
	case errors.Is(err, domain.ErrAlreadyMember):
		if err := s.ensureNotMember(ctx, userID, f.FamilyID); err != nil {
			return nil, err
		}
		return nil, domain.ErrFamilyMemberExists.Wrap(err)
	case errors.Is(err, domain.ErrCondition):
		return nil, s.notJoinable(ctx, f.FamilyID, err)
	case err != nil:
		return nil, domain.StoreFailure(err)
	}

	members, err := s.repo.Members(ctx, f.FamilyID)
	if err != nil {
		slog.Warn("list members after join", "family_id", f.FamilyID, "error", err)
	}
	f.MemberCount++
	s.notify(ctx, f.FamilyID, others(members, userID), domain.NotifyMemberJoined, fmt.Sprintf("%s加入了家庭", u.Nickname))
	return &domain.FamilyView{Family: f, Membership: m, Members: members}, nil
}

// ensureNotMember fails when userID already holds a membership.
func (s *service) ensureNotMember(ctx context.Context, userID, familyID string) error {
	existing, err := s.repo.Membership(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil
	case err != nil:
		return domain.StoreFailure(err)
	case existing.FamilyID == familyID:
		return domain.ErrFamilyMemberExists
	default:
		return domain.ErrAlreadyInOtherFamily
	}
}

// notJoinable re-reads the family to tell a deactivated family from a full one.
func (s *service) notJoinable(ctx context.Context, familyID string, cause error) error {
	f, err := s.repo.Get(ctx, familyID)
	if err != nil {
		return domain.StoreFailure(err)
	}
	if !f.Active {
		return domain.ErrInvalidInviteCode.Wrap(cause)
	}
	return domain.ErrFamilyMemberLimitExceeded.Wrap(cause)
}

func (s *service) Leave(ctx context.Context, userID, familyID string) error {
	m, err := s.membership(ctx, userID, familyID)
	if err != nil {
		return err
	}
	for attempt := 0; attempt < maxLeaveAttempts; attempt++ {
		f, err := s.repo.Get(ctx, familyID)
		if err != nil {
			return domain.StoreFailure(err)
		}
		members, err := s.repo.Members(ctx, familyID)
		if err != nil {
			return domain.StoreFailure(err)
		}
		remaining := others(members, userID)
		if f.MemberCount > 1 && m.RoleType == domain.RolePregnant && !hasRole(members, userID, domain.RolePregnant) {
			return domain.ErrCannotLeaveFamily
		}

		next := ""
		if f.OwnerID == userID {
			next = successor(remaining)
		}
		err = s.repo.Leave(ctx, m, f.MemberCount, next, s.now().UTC())
		switch {
		case errors.Is(err, domain.ErrCondition):
			continue
		case errors.Is(err, domain.ErrNotFound):
			return domain.ErrFamilyMemberNotFound.Wrap(err)
		case err != nil:
			return domain.StoreFailure(err)
		}

		s.notify(ctx, familyID, remaining, domain.NotifyMemberLeft, fmt.Sprintf("%s退出了家庭", m.Nickname))
		return nil
	}
	return errMembershipBusy
}

// successor picks the earliest joined of the remaining members, or "" when none remain.
func successor(remaining []domain.FamilyMembership) string {
	if len(remaining) == 0 {
		return ""
	}
	sorted := append([]domain.FamilyMembership(nil), remaining...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].JoinedAt.Before(sorted[j].JoinedAt) })
	return sorted[0].UserID
}

func (s *service) GetForUser(ctx context.Context, userID string) (*domain.FamilyView, error) {
	m, err := s.repo.Membership(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrFamilyMemberNotFound
	}
	if err != nil {
		return nil, domain.StoreFailure(err)
	}
	f, err := s.repo.Get(ctx, m.FamilyID)
	if err != nil {
		return nil, domain.StoreFailure(err)
	}
	members, err := s.repo.Members(ctx, m.FamilyID)
	if err != nil {
		return nil, domain.StoreFailure(err)
	}
	return &domain.FamilyView{Family: f, Membership: withRole(m, f), Members: members}, nil
}

func (s *service) Members(ctx context.Context, userID, familyID string) ([]domain.FamilyMembership, error) {
	if _, err := s.membership(ctx, userID, familyID); err != nil {
		return nil, err
	}
	members, err := s.repo.Members(ctx, familyID)
	if err != nil {
		return nil, domain.StoreFailure(err)
	}
	return members, nil
}

func (s *service) RegenerateInviteCode(ctx context.Context, userID, familyID string) (*domain.Family, error) {
	if _, err := s.membership(ctx, userID, familyID); err != nil {
		return nil, err
	}
	f, err := s.repo.Get(ctx, familyID)
	if err != nil {
		return nil, domain.StoreFailure(err)
	}
	if f.OwnerID != userID {
		return nil, domain.ErrPermissionDenied
	}
	expiresAt := s.now().UTC().Add(s.inviteTTL)
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		next, err := s.newCode()
		if err != nil {
			return nil, domain.ErrSystem.Wrap(err)
		}
		err = s.repo.RotateInviteCode(ctx, familyID, f.InviteCode, next, expiresAt)
		switch {
		case err == nil:
			f.InviteCode, f.InviteExpiresAt = next, expiresAt
			return f, nil
		case errors.Is(err, domain.ErrInviteCodeTaken):
			continue
		case errors.Is(err, domain.ErrCondition):
			return nil, errMembershipBusy.Wrap(err)
		default:
			return nil, domain.StoreFailure(err)
		}
	}
	return nil, domain.ErrSystem.WithMessage("邀请码生成失败，请重试")
}

func (s *service) UpdatePregnancy(ctx context.Context, userID, familyID string, req domain.UpdatePregnancyRequest) (*domain.Family, error) {
	if _, err := s.membership(ctx, userID, familyID); err != nil {
		return nil, err
	}
	due, err := domain.ParseDueDate(req.DueDate)
	if err != nil {
		return nil, domain.ErrInvalidDueDate
	}
	today := domain.CivilDate(s.now())
	if !due.After(today) || due.After(today.AddDate(0, 0, domain.PregnancyDays)) {
		return nil, domain.ErrInvalidDueDate
	}
	updates := map[string]interface{}{fieldDueDate: req.DueDate}
	if req.BabyName != nil {
		updates[fieldBabyName] = *req.BabyName
	}
	if req.BabyGender != nil {
		updates[fieldBabyGender] = domain.Gender(*req.BabyGender)
	}
	f, err := s.repo.Update(ctx, familyID, updates)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrFamilyNotFound
	}
	if err != nil {
		return nil, domain.StoreFailure(err)
	}
	return f, nil
}

// membership returns userID's membership, requiring it to be in familyID.
func (s *service) membership(ctx context.Context, userID, familyID string) (*domain.FamilyMembership, error) {
	m, err := s.repo.Membership(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrFamilyMemberNotFound
	}
	if err != nil {
		return nil, domain.StoreFailure(err)
	}
	if m.FamilyID != familyID {
		return nil, domain.ErrFamilyMemberNotFound
	}
	return m, nil
}

func (s *service) notify(ctx context.Context, familyID string, recipients []string, kind domain.NotificationKind, msg string) {
	if s.notifier == nil || len(recipients) == 0 {
		return
	}
	if err := s.notifier.Broadcast(ctx, familyID, recipients, kind, msg); err != nil {
		slog.Warn("family notification failed", "family_id", familyID, "kind", kind, "error", err)
	}
}

// others returns the ids of members other than userID.
func others(members []domain.FamilyMembership, userID string) []string {
	ids := make([]string, 0, len(members))
	for _, m := range members {
		if m.UserID != userID {
			ids = append(ids, m.UserID)
		}
	}
	return ids
}

// hasRole reports whether a member other than userID has role.
func hasRole(members []domain.FamilyMembership, userID string, role domain.RoleType) bool {
	for _, m := range members {
		if m.UserID != userID && m.RoleType == role {
			return true
		}
	}
	return false
}

// withRole reflects the family's current owner on the membership.
func withRole(m *domain.FamilyMembership, f *domain.Family) *domain.FamilyMembership {
	out := *m
	out.FamilyRole = domain.FamilyMember
	if f.OwnerID == m.UserID {
		out.FamilyRole = domain.FamilyOwner
	}
	return &out
}
