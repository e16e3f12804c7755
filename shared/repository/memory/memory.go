// Package memory is an in-process implementation of the repository stores.
// It backs STORE_DRIVER=memory and the handler tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pavitra93/leadhub/shared/models"
	"github.com/pavitra93/leadhub/shared/policy"
	"github.com/pavitra93/leadhub/shared/repository"
	"github.com/pavitra93/leadhub/shared/utils"
)

// Store holds tenants, identities and leads behind one lock so cascades are atomic
type Store struct {
	mu      sync.RWMutex
	tenants map[uuid.UUID]models.Tenant
	users   map[uuid.UUID]models.User
	leads   map[uuid.UUID]models.Lead
	last    time.Time
	failure error

	deleteManyCalls int
}

// New creates an empty store
func New() *Store {
	return &Store{
		tenants: make(map[uuid.UUID]models.Tenant),
		users:   make(map[uuid.UUID]models.User),
		leads:   make(map[uuid.UUID]models.Lead),
	}
}

// Tenants returns the TenantStore view
func (s *Store) Tenants() *TenantStore { return &TenantStore{s} }

// Users returns the UserStore view
func (s *Store) Users() *UserStore { return &UserStore{s} }

// Leads returns the LeadStore view
func (s *Store) Leads() *LeadStore { return &LeadStore{s} }

// Stats returns the StatsStore view
func (s *Store) Stats() *StatsStore { return &StatsStore{s} }

// FailWith makes every subsequent call return a persistence error wrapping err.
// Passing nil restores normal behaviour.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}

// DeleteManyCalls reports how often LeadStore.DeleteMany reached the store
func (s *Store) DeleteManyCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deleteManyCalls
}

// check must be called with mu held
func (s *Store) check() error {
	if s.failure != nil {
		return utils.PersistenceError(s.failure)
	}
	return nil
}

// stamp returns a strictly increasing timestamp so ordering by creation is stable.
// Must be called with mu held.
func (s *Store) stamp() time.Time {
	now := time.Now()
	if !now.After(s.last) {
		now = s.last.Add(time.Microsecond)
	}
	s.last = now
	return now
}

// TenantStore implements repository.TenantStore
type TenantStore struct{ s *Store }

func (t *TenantStore) Create(ctx context.Context, tenant *models.Tenant) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	for _, existing := range s.tenants {
		if existing.Slug == tenant.Slug {
			return utils.ConflictError("Tenant already exists")
		}
	}
	if tenant.ID == uuid.Nil {
		tenant.ID = uuid.New()
	}
	now := s.stamp()
	tenant.CreatedAt, tenant.UpdatedAt = now, now
	s.tenants[tenant.ID] = *tenant
	return nil
}

func (t *TenantStore) List(ctx context.Context) ([]models.Tenant, error) {
	s := t.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	tenants := make([]models.Tenant, 0, len(s.tenants))
	for _, tenant := range s.tenants {
		tenant.UsersCount = s.countUsers(policy.ForTenant(tenant.ID))
		tenants = append(tenants, tenant)
	}
	sort.Slice(tenants, func(i, j int) bool { return tenants[i].CreatedAt.After(tenants[j].CreatedAt) })
	return tenants, nil
}

func (t *TenantStore) Get(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	s := t.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	tenant, ok := s.tenants[id]
	if !ok {
		return nil, utils.NotFoundError("Tenant not found")
	}
	tenant.UsersCount = s.countUsers(policy.ForTenant(id))
	return &tenant, nil
}

func (t *TenantStore) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	s := t.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	for _, tenant := range s.tenants {
		if tenant.Slug == slug {
			return &tenant, nil
		}
	}
	return nil, utils.NotFoundError("Tenant not found")
}

func (t *TenantStore) SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.Tenant, error) {
	s := t.s
	s.mu.Lock()
	if err := s.check(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	tenant, ok := s.tenants[id]
	if !ok {
		s.mu.Unlock()
		return nil, utils.NotFoundError("Tenant not found")
	}
	tenant.IsActive = active
	tenant.UpdatedAt = s.stamp()
	s.tenants[id] = tenant
	s.mu.Unlock()
	return t.Get(ctx, id)
}

func (t *TenantStore) Delete(ctx context.Context, id uuid.UUID) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	if _, ok := s.tenants[id]; !ok {
		return utils.NotFoundError("Tenant not found")
	}
	for leadID, lead := range s.leads {
		if lead.TenantID == id {
			delete(s.leads, leadID)
		}
	}
	for userID, user := range s.users {
		if user.BelongsTo(id) {
			delete(s.users, userID)
		}
	}
	delete(s.tenants, id)
	return nil
}

// UserStore implements repository.UserStore
type UserStore struct{ s *Store }

func (u *UserStore) Create(ctx context.Context, user *models.User) error {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	user.Email = models.NormalizeEmail(user.Email)
	if user.TenantID != nil && s.emailTaken(*user.TenantID, user.Email, uuid.Nil) {
		return utils.ConflictError("User already exists")
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := s.stamp()
	user.CreatedAt, user.UpdatedAt = now, now
	s.users[user.ID] = *user
	return nil
}

func (u *UserStore) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s := u.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	user, ok := s.users[id]
	if !ok {
		return nil, utils.NotFoundError("User not found")
	}
	return &user, nil
}

func (u *UserStore) FindByEmail(ctx context.Context, email string) ([]models.User, error) {
	s := u.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	email = models.NormalizeEmail(email)
	var users []models.User
	for _, user := range s.users {
		if user.Email == email {
			users = append(users, user)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users, nil
}

func (u *UserStore) EmailTaken(ctx context.Context, tenantID uuid.UUID, email string, exclude uuid.UUID) (bool, error) {
	s := u.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return false, err
	}
	return s.emailTaken(tenantID, models.NormalizeEmail(email), exclude), nil
}

// emailTaken must be called with mu held. Tenant-less identities collide with every tenant.
func (s *Store) emailTaken(tenantID uuid.UUID, email string, exclude uuid.UUID) bool {
	for _, user := range s.users {
		if user.ID != exclude && (user.TenantID == nil || user.BelongsTo(tenantID)) && user.Email == email {
			return true
		}
	}
	return false
}

func (u *UserStore) HasSuperAdmin(ctx context.Context) (bool, error) {
	s := u.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return false, err
	}
	for _, user := range s.users {
		if user.IsSuperAdmin() {
			return true, nil
		}
	}
	return false, nil
}

func (u *UserStore) List(ctx context.Context, scope policy.Scope) ([]models.User, error) {
	s := u.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	users := make([]models.User, 0)
	for _, user := range s.users {
		if scope.Allows(user.TenantID) {
			users = append(users, user)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	return users, nil
}

func (u *UserStore) Get(ctx context.Context, scope policy.Scope, id uuid.UUID) (*models.User, error) {
	s := u.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	user, ok := s.users[id]
	if !ok || !scope.Allows(user.TenantID) {
		return nil, utils.NotFoundError("User not found")
	}
	return &user, nil
}

func (u *UserStore) UpdateRole(ctx context.Context, scope policy.Scope, id uuid.UUID, role models.Role, assignedBy uuid.UUID) (*models.User, error) {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	user, ok := s.users[id]
	if !ok || !scope.Allows(user.TenantID) {
		return nil, utils.NotFoundError("User not found")
	}
	user.Role = role
	user.RoleAssignedBy = &assignedBy
	user.UpdatedAt = s.stamp()
	s.users[id] = user
	return &user, nil
}

func (u *UserStore) UpdateProfile(ctx context.Context, user *models.User) error {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	stored, ok := s.users[user.ID]
	if !ok {
		return utils.NotFoundError("User not found")
	}
	email := models.NormalizeEmail(user.Email)
	if stored.TenantID != nil && s.emailTaken(*stored.TenantID, email, stored.ID) {
		return utils.ConflictError("User already exists")
	}
	stored.Name, stored.Email, stored.Phone = user.Name, email, user.Phone
	stored.UpdatedAt = s.stamp()
	s.users[user.ID] = stored
	user.Email = email
	return nil
}

func (u *UserStore) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	user, ok := s.users[id]
	if !ok {
		return utils.NotFoundError("User not found")
	}
	user.PasswordHash = hash
	user.UpdatedAt = s.stamp()
	s.users[id] = user
	return nil
}

func (u *UserStore) Delete(ctx context.Context, scope policy.Scope, id uuid.UUID) error {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	user, ok := s.users[id]
	if !ok || !scope.Allows(user.TenantID) {
		return utils.NotFoundError("User not found")
	}
	delete(s.users, id)
	return nil
}

// LeadStore implements repository.LeadStore
type LeadStore struct{ s *Store }

func (l *LeadStore) Create(ctx context.Context, lead *models.Lead) error {
	s := l.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = s.stamp()
	}
	lead.UpdatedAt = lead.CreatedAt
	s.leads[lead.ID] = *lead
	return nil
}

func (l *LeadStore) List(ctx context.Context, scope policy.Scope, filter repository.LeadFilter) ([]models.Lead, error) {
	s := l.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	leads := s.matchLeads(scope, filter)
	sort.Slice(leads, func(i, j int) bool { return leads[i].CreatedAt.After(leads[j].CreatedAt) })
	if filter.Limit > 0 && len(leads) > filter.Limit {
		leads = leads[:filter.Limit]
	}
	return leads, nil
}

func (l *LeadStore) Count(ctx context.Context, scope policy.Scope, filter repository.LeadFilter) (int64, error) {
	s := l.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return 0, err
	}
	return int64(len(s.matchLeads(scope, filter))), nil
}

func (l *LeadStore) Get(ctx context.Context, scope policy.Scope, id uuid.UUID) (*models.Lead, error) {
	s := l.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	lead, ok := s.leads[id]
	if !ok || !scope.Allows(&lead.TenantID) {
		return nil, utils.NotFoundError("Lead not found")
	}
	return &lead, nil
}

func (l *LeadStore) Delete(ctx context.Context, scope policy.Scope, id uuid.UUID) error {
	s := l.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	lead, ok := s.leads[id]
	if !ok || !scope.Allows(&lead.TenantID) {
		return utils.NotFoundError("Lead not found")
	}
	delete(s.leads, id)
	return nil
}

func (l *LeadStore) DeleteMany(ctx context.Context, scope policy.Scope, ids []uuid.UUID) (int64, error) {
	s := l.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(ids) == 0 {
		return 0, utils.ValidationError("No leads selected")
	}
	s.deleteManyCalls++
	if err := s.check(); err != nil {
		return 0, err
	}
	var deleted int64
	for _, id := range ids {
		lead, ok := s.leads[id]
		if ok && scope.Allows(&lead.TenantID) {
			delete(s.leads, id)
			deleted++
		}
	}
	return deleted, nil
}

// matchLeads must be called with mu held
func (s *Store) matchLeads(scope policy.Scope, filter repository.LeadFilter) []models.Lead {
	leads := make([]models.Lead, 0)
	for _, lead := range s.leads {
		if !scope.Allows(&lead.TenantID) || !leadMatches(lead, filter) {
			continue
		}
		leads = append(leads, lead)
	}
	return leads
}

func leadMatches(lead models.Lead, filter repository.LeadFilter) bool {
	if filter.Type != "" && lead.LeadType != filter.Type {
		return false
	}
	if source := strings.TrimSpace(filter.Source); source != "" {
		if strings.EqualFold(source, utils.DefaultUTMSource) {
			if lead.UTMSource != nil && *lead.UTMSource != "" && !strings.EqualFold(*lead.UTMSource, utils.DefaultUTMSource) {
				return false
			}
		} else if lead.UTMSource == nil || !strings.EqualFold(*lead.UTMSource, source) {
			return false
		}
	}
	if filter.From != nil && lead.CreatedAt.Before(*filter.From) {
		return false
	}
	if filter.To != nil && !lead.CreatedAt.Before(*filter.To) {
		return false
	}
	return true
}

// StatsStore implements repository.StatsStore
type StatsStore struct{ s *Store }

func (st *StatsStore) CountTenants(ctx context.Context) (int64, error) {
	s := st.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return 0, err
	}
	return int64(len(s.tenants)), nil
}

func (st *StatsStore) CountUsers(ctx context.Context, scope policy.Scope) (int64, error) {
	s := st.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return 0, err
	}
	return s.countUsers(scope), nil
}

// countUsers must be called with mu held
func (s *Store) countUsers(scope policy.Scope) int64 {
	var n int64
	for _, user := range s.users {
		if scope.Allows(user.TenantID) {
			n++
		}
	}
	return n
}

func (st *StatsStore) TenantLeadStats(ctx context.Context, since time.Time) ([]repository.TenantStats, error) {
	s := st.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	rows := make([]repository.TenantStats, 0, len(s.tenants))
	for _, tenant := range s.tenants {
		row := repository.TenantStats{
			ID:         tenant.ID,
			Name:       tenant.Name,
			Slug:       tenant.Slug,
			IsActive:   tenant.IsActive,
			UsersCount: s.countUsers(policy.ForTenant(tenant.ID)),
		}
		for _, lead := range s.leads {
			if lead.TenantID != tenant.ID {
				continue
			}
			row.TotalLeads++
			if !lead.CreatedAt.Before(since) {
				row.TodayLeads++
			}
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TotalLeads != rows[j].TotalLeads {
			return rows[i].TotalLeads > rows[j].TotalLeads
		}
		return rows[i].Name < rows[j].Name
	})
	return rows, nil
}

var (
	_ repository.TenantStore = (*TenantStore)(nil)
	_ repository.UserStore   = (*UserStore)(nil)
	_ repository.LeadStore   = (*LeadStore)(nil)
	_ repository.StatsStore  = (*StatsStore)(nil)
)
