package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/restaurant-pos/internal/model"
	"github.com/iliyamo/restaurant-pos/internal/utils"
)

// MemoryDB is an in-process store used with STORE_DRIVER=memory and in
// tests.  It offers the same repositories as the MySQL driver with the same
// sentinel errors.  Values are copied on the way in and out so callers never
// share state with the store.
type MemoryDB struct {
	mu         sync.RWMutex
	tables     map[uint64]model.Table
	orders     map[uint64]*model.Order
	categories map[uint64]model.Category
	dishes     map[uint64]model.Dish
	users      map[uint64]model.User
	tokens     map[string]model.RefreshToken
	seq        uint64
	now        func() time.Time
}

// NewMemoryDB returns an empty store.
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		tables:     make(map[uint64]model.Table),
		orders:     make(map[uint64]*model.Order),
		categories: make(map[uint64]model.Category),
		dishes:     make(map[uint64]model.Dish),
		users:      make(map[uint64]model.User),
		tokens:     make(map[string]model.RefreshToken),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryDB) nextID() uint64 {
	m.seq++
	return m.seq
}

// Tables returns the table repository view of the store.
func (m *MemoryDB) Tables() *MemoryTableRepo { return &MemoryTableRepo{m: m} }

// Orders returns the order repository view of the store.
func (m *MemoryDB) Orders() *MemoryOrderRepo { return &MemoryOrderRepo{m: m} }

// Menu returns the menu repository view of the store.
func (m *MemoryDB) Menu() *MemoryMenuRepo { return &MemoryMenuRepo{m: m} }

// Users returns the staff account view of the store.
func (m *MemoryDB) Users() *MemoryUserRepo { return &MemoryUserRepo{m: m} }

// Tokens returns the refresh token view of the store.
func (m *MemoryDB) Tokens() *MemoryTokenRepo { return &MemoryTokenRepo{m: m} }

// MemoryTableRepo mirrors TableRepo over a MemoryDB.
type MemoryTableRepo struct{ m *MemoryDB }

func copyID(p *uint64) *uint64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func (r *MemoryTableRepo) Create(_ context.Context, t *model.Table) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.tables {
		if existing.TableNumber == t.TableNumber {
			return ErrTableNumberExists
		}
	}
	now := r.m.now()
	t.ID = r.m.nextID()
	t.CreatedAt, t.UpdatedAt = now, now
	t.ActiveOrderID = copyID(t.ActiveOrderID)
	r.m.tables[t.ID] = *t
	return nil
}

func (r *MemoryTableRepo) GetByID(_ context.Context, id uint64) (*model.Table, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	t, ok := r.m.tables[id]
	if !ok {
		return nil, ErrTableNotFound
	}
	t.ActiveOrderID = copyID(t.ActiveOrderID)
	return &t, nil
}

func (r *MemoryTableRepo) FindByActiveOrder(_ context.Context, orderID uint64) (*model.Table, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for _, t := range r.m.tables {
		if t.ActiveOrderID != nil && *t.ActiveOrderID == orderID {
			t.ActiveOrderID = copyID(t.ActiveOrderID)
			return &t, nil
		}
	}
	return nil, ErrTableNotFound
}

func (r *MemoryTableRepo) List(_ context.Context) ([]model.TableView, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	out := make([]model.TableView, 0, len(r.m.tables))
	for _, t := range r.m.tables {
		v := model.TableView{Table: t}
		v.ActiveOrderID = copyID(t.ActiveOrderID)
		if t.ActiveOrderID != nil {
			if o, ok := r.m.orders[*t.ActiveOrderID]; ok {
				name := o.Customer.Name
				v.ActiveOrderCustomer = &name
			}
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TableNumber < out[j].TableNumber })
	return out, nil
}

func (r *MemoryTableRepo) UpdateState(_ context.Context, id uint64, status string, activeOrderID *uint64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	t, ok := r.m.tables[id]
	if !ok {
		return ErrTableNotFound
	}
	t.Status = status
	t.ActiveOrderID = copyID(activeOrderID)
	t.UpdatedAt = r.m.now()
	r.m.tables[id] = t
	return nil
}

// MemoryOrderRepo mirrors OrderRepo over a MemoryDB.
type MemoryOrderRepo struct{ m *MemoryDB }

func (r *MemoryOrderRepo) Create(_ context.Context, o *model.Order) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	now := r.m.now()
	o.ID = r.m.nextID()
	o.CreatedAt, o.UpdatedAt = now, now
	r.m.orders[o.ID] = o.Clone()
	return nil
}

func (r *MemoryOrderRepo) GetByID(_ context.Context, id uint64) (*model.Order, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	o, ok := r.m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (r *MemoryOrderRepo) List(_ context.Context, limit int) ([]model.Order, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	out := make([]model.Order, 0, len(r.m.orders))
	for _, o := range r.m.orders {
		out = append(out, *o.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryOrderRepo) AppendItems(_ context.Context, o *model.Order, newItems []model.LineItem) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored, ok := r.m.orders[o.ID]
	if !ok {
		return ErrOrderNotFound
	}
	if stored.Status != model.OrderInProgress {
		return ErrOrderNotOpen
	}
	stored.Items = append(stored.Items, newItems...)
	stored.Bill = o.Bill
	stored.TaxRatePercent = o.TaxRatePercent
	stored.UpdatedAt = r.m.now()
	return nil
}

func (r *MemoryOrderRepo) Complete(_ context.Context, id uint64, paymentMethod string, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored, ok := r.m.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	if stored.Status != model.OrderInProgress {
		return ErrOrderNotOpen
	}
	at = at.UTC()
	stored.Status = model.OrderCompleted
	stored.PaymentMethod = paymentMethod
	stored.CompletedAt = &at
	stored.UpdatedAt = r.m.now()
	return nil
}

// MemoryMenuRepo mirrors MenuRepo over a MemoryDB.
type MemoryMenuRepo struct{ m *MemoryDB }

func (r *MemoryMenuRepo) CreateCategory(_ context.Context, c *model.Category) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.categories {
		if strings.EqualFold(existing.Name, c.Name) {
			return ErrCategoryExists
		}
	}
	c.ID = r.m.nextID()
	c.CreatedAt = r.m.now()
	r.m.categories[c.ID] = *c
	return nil
}

func (r *MemoryMenuRepo) ListCategories(_ context.Context) ([]model.Category, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	out := make([]model.Category, 0, len(r.m.categories))
	for _, c := range r.m.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryMenuRepo) GetCategoryByID(_ context.Context, id uint64) (*model.Category, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	c, ok := r.m.categories[id]
	if !ok {
		return nil, ErrCategoryNotFound
	}
	return &c, nil
}

func (r *MemoryMenuRepo) CreateDish(_ context.Context, d *model.Dish) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cat, ok := r.m.categories[d.CategoryID]
	if !ok {
		return ErrCategoryNotFound
	}
	for _, existing := range r.m.dishes {
		if existing.CategoryID == d.CategoryID && strings.EqualFold(existing.Name, d.Name) {
			return ErrDishExists
		}
	}
	d.ID = r.m.nextID()
	d.Category = cat.Name
	d.CreatedAt = r.m.now()
	r.m.dishes[d.ID] = *d
	return nil
}

func (r *MemoryMenuRepo) GetDishByID(_ context.Context, id uint64) (*model.Dish, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	d, ok := r.m.dishes[id]
	if !ok {
		return nil, ErrDishNotFound
	}
	return &d, nil
}

func (r *MemoryMenuRepo) ListDishes(_ context.Context, categoryID *uint64) ([]model.Dish, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	out := make([]model.Dish, 0, len(r.m.dishes))
	for _, d := range r.m.dishes {
		if categoryID != nil && d.CategoryID != *categoryID {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// MemoryUserRepo mirrors UserRepo over a MemoryDB.
type MemoryUserRepo struct{ m *MemoryDB }

func (r *MemoryUserRepo) Create(_ context.Context, email, password, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if u.Email == email {
			return 0, ErrEmailExists
		}
	}
	now := r.m.now()
	u := model.User{ID: r.m.nextID(), Email: email, PasswordHash: hash, Role: role, IsActive: true, CreatedAt: now, UpdatedAt: now}
	r.m.users[u.ID] = u
	return u.ID, nil
}

func (r *MemoryUserRepo) GetByEmail(_ context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for _, u := range r.m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, ErrUserNotFound
}

func (r *MemoryUserRepo) GetByID(_ context.Context, id uint64) (model.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	u, ok := r.m.users[id]
	if !ok {
		return model.User{}, ErrUserNotFound
	}
	return u, nil
}

func (r *MemoryUserRepo) Count(_ context.Context) (int, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	return len(r.m.users), nil
}

// MemoryTokenRepo mirrors TokenRepo over a MemoryDB.
type MemoryTokenRepo struct{ m *MemoryDB }

func (r *MemoryTokenRepo) StoreRefresh(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.tokens[tokenHash] = model.RefreshToken{
		ID: r.m.nextID(), UserID: userID, TokenHash: tokenHash, ExpiresAt: exp.UTC(), CreatedAt: r.m.now(),
	}
	return nil
}

func (r *MemoryTokenRepo) ValidateRefresh(_ context.Context, tokenHash string) (uint64, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	t, ok := r.m.tokens[tokenHash]
	if !ok || t.RevokedAt != nil || r.m.now().After(t.ExpiresAt) {
		return 0, ErrRefreshInvalid
	}
	return t.UserID, nil
}

func (r *MemoryTokenRepo) RevokeByHash(_ context.Context, tokenHash string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if t, ok := r.m.tokens[tokenHash]; ok && t.RevokedAt == nil {
		now := r.m.now()
		t.RevokedAt = &now
		r.m.tokens[tokenHash] = t
	}
	return nil
}

func (r *MemoryTokenRepo) RevokeAllForUser(_ context.Context, userID uint64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	now := r.m.now()
	for h, t := range r.m.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
			r.m.tokens[h] = t
		}
	}
	return nil
}
