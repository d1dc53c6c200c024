package repository

import (
	"context"
	"iter"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/mehrbod2002/masjidmap/internal/geo"
	"github.com/mehrbod2002/masjidmap/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// The in-memory stores back STORAGE_DRIVER=memory and the service tests.
// Records are copied on the way in and out so callers never alias stored state.

type MemoryAccountRepository struct {
	mu       sync.RWMutex
	accounts map[primitive.ObjectID]*models.Account
	byEmail  map[string]primitive.ObjectID
}

func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{
		accounts: make(map[primitive.ObjectID]*models.Account),
		byEmail:  make(map[string]primitive.ObjectID),
	}
}

func (r *MemoryAccountRepository) SaveAccount(ctx context.Context, account *models.Account) error {
	if err := checkContext(ctx, "insert account"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	email := models.NormalizeEmail(account.Email)
	if _, taken := r.byEmail[email]; taken {
		return ErrDuplicate
	}
	account.ID = primitive.NewObjectID()
	account.Email = email
	account.CreatedAt = time.Now().UTC()
	account.UpdatedAt = account.CreatedAt
	cp := *account
	r.accounts[cp.ID] = &cp
	r.byEmail[email] = cp.ID
	onRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.accounts, cp.ID)
		delete(r.byEmail, email)
	})
	return nil
}

func (r *MemoryAccountRepository) GetAccountByID(ctx context.Context, id primitive.ObjectID) (*models.Account, error) {
	if err := checkContext(ctx, "find account"); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	cp := *account
	return &cp, nil
}

func (r *MemoryAccountRepository) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	if err := checkContext(ctx, "find account"); err != nil {
		return nil, err
	}
	r.mu.RLock()
	id, ok := r.byEmail[models.NormalizeEmail(email)]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return r.GetAccountByID(ctx, id)
}

func (r *MemoryAccountRepository) GetAllAccounts(ctx context.Context) ([]*models.Account, error) {
	return r.filter(ctx, func(*models.Account) bool { return true })
}

func (r *MemoryAccountRepository) GetAccountsByRole(ctx context.Context, role models.Role) ([]*models.Account, error) {
	return r.filter(ctx, func(a *models.Account) bool { return a.Role == role })
}

func (r *MemoryAccountRepository) filter(ctx context.Context, keep func(*models.Account) bool) ([]*models.Account, error) {
	if err := checkContext(ctx, "find accounts"); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	accounts := []*models.Account{}
	for _, a := range r.accounts {
		if keep(a) {
			cp := *a
			accounts = append(accounts, &cp)
		}
	}
	sort.SliceStable(accounts, func(i, j int) bool { return accounts[i].CreatedAt.Before(accounts[j].CreatedAt) })
	return accounts, nil
}

func (r *MemoryAccountRepository) UpdateRole(ctx context.Context, id primitive.ObjectID, from, to models.Role) error {
	if err := checkContext(ctx, "update account role"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok || account.Role != from {
		return ErrNoMatch
	}
	prevUpdated := account.UpdatedAt
	account.Role = to
	account.UpdatedAt = time.Now().UTC()
	onRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if a, ok := r.accounts[id]; ok {
			a.Role = from
			a.UpdatedAt = prevUpdated
		}
	})
	return nil
}

type MemoryPlaceRepository struct {
	mu     sync.RWMutex
	places map[primitive.ObjectID]*models.Place
}

func NewMemoryPlaceRepository() *MemoryPlaceRepository {
	return &MemoryPlaceRepository{places: make(map[primitive.ObjectID]*models.Place)}
}

func clonePlace(p *models.Place) *models.Place {
	cp := *p
	cp.Location.Coordinates = slices.Clone(p.Location.Coordinates)
	return &cp
}

func (r *MemoryPlaceRepository) SavePlace(ctx context.Context, place *models.Place) error {
	if err := checkContext(ctx, "insert place"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	place.ID = primitive.NewObjectID()
	place.CreatedAt = time.Now().UTC()
	place.UpdatedAt = place.CreatedAt
	r.places[place.ID] = clonePlace(place)
	id := place.ID
	onRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.places, id)
	})
	return nil
}

func (r *MemoryPlaceRepository) GetPlaceByID(ctx context.Context, id primitive.ObjectID) (*models.Place, error) {
	if err := checkContext(ctx, "find place"); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	place, ok := r.places[id]
	if !ok {
		return nil, nil
	}
	return clonePlace(place), nil
}

func (r *MemoryPlaceRepository) GetAllPlaces(ctx context.Context) ([]*models.Place, error) {
	if err := checkContext(ctx, "find places"); err != nil {
		return nil, err
	}
	places := r.snapshot()
	sort.SliceStable(places, func(i, j int) bool { return places[i].Name < places[j].Name })
	return places, nil
}

func (r *MemoryPlaceRepository) snapshot() []*models.Place {
	r.mu.RLock()
	defer r.mu.RUnlock()

	places := make([]*models.Place, 0, len(r.places))
	for _, p := range r.places {
		places = append(places, clonePlace(p))
	}
	return places
}

func (r *MemoryPlaceRepository) UpdatePlace(ctx context.Context, place *models.Place) error {
	if err := checkContext(ctx, "update place"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.places[place.ID]
	if !ok {
		return ErrNoMatch
	}
	place.CreatedAt = existing.CreatedAt
	place.UpdatedAt = time.Now().UTC()
	r.places[place.ID] = clonePlace(place)
	onRollback(ctx, func() { r.restore(existing) })
	return nil
}

// restore puts a previously stored record back in place.
func (r *MemoryPlaceRepository) restore(place *models.Place) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.places[place.ID] = place
}

func (r *MemoryPlaceRepository) DeletePlace(ctx context.Context, id primitive.ObjectID) error {
	if err := checkContext(ctx, "delete place"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.places[id]
	if !ok {
		return ErrNoMatch
	}
	delete(r.places, id)
	onRollback(ctx, func() { r.restore(existing) })
	return nil
}

// Candidates yields every place; there is no spatial index to narrow the scan.
func (r *MemoryPlaceRepository) Candidates(ctx context.Context, _ geo.Point, _ float64) iter.Seq2[*models.Place, error] {
	return func(yield func(*models.Place, error) bool) {
		if err := checkContext(ctx, "find nearby places"); err != nil {
			yield(nil, err)
			return
		}
		for _, p := range r.snapshot() {
			if !yield(p, nil) {
				return
			}
		}
	}
}

type MemoryChangeRequestRepository struct {
	mu       sync.RWMutex
	requests map[primitive.ObjectID]*models.ChangeRequest
	order    []primitive.ObjectID
}

func NewMemoryChangeRequestRepository() *MemoryChangeRequestRepository {
	return &MemoryChangeRequestRepository{requests: make(map[primitive.ObjectID]*models.ChangeRequest)}
}

func (r *MemoryChangeRequestRepository) SaveChangeRequest(ctx context.Context, request *models.ChangeRequest) error {
	if err := checkContext(ctx, "insert change request"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	request.ID = primitive.NewObjectID()
	request.Status = models.StatusPending
	request.CreatedAt = time.Now().UTC()
	r.requests[request.ID] = request.Clone()
	r.order = append(r.order, request.ID)
	id := request.ID
	onRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.requests, id)
		r.order = slices.DeleteFunc(r.order, func(o primitive.ObjectID) bool { return o == id })
	})
	return nil
}

func (r *MemoryChangeRequestRepository) GetChangeRequestByID(ctx context.Context, id primitive.ObjectID) (*models.ChangeRequest, error) {
	if err := checkContext(ctx, "find change request"); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.requests[id].Clone(), nil
}

func (r *MemoryChangeRequestRepository) ListChangeRequests(ctx context.Context, filter models.RequestFilter) ([]*models.ChangeRequest, error) {
	if err := checkContext(ctx, "find change requests"); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	requests := []*models.ChangeRequest{}
	for i := len(r.order) - 1; i >= 0; i-- {
		req := r.requests[r.order[i]]
		if filter.Status != "" && filter.Status != models.StatusAll && req.Status != filter.Status {
			continue
		}
		if filter.RequestedBy != nil && req.RequestedBy != *filter.RequestedBy {
			continue
		}
		requests = append(requests, req.Clone())
	}
	return requests, nil
}

func (r *MemoryChangeRequestRepository) ResolveChangeRequest(ctx context.Context, id primitive.ObjectID, res models.Resolution) error {
	if err := checkContext(ctx, "resolve change request"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[id]
	if !ok || !req.IsPending() {
		return ErrNoMatch
	}
	prev := req.Clone()
	processedBy, processedAt := res.ProcessedBy, res.ProcessedAt
	req.Status = res.Status
	req.ProcessedBy = &processedBy
	req.AdminResponse = res.AdminResponse
	req.ProcessedAt = &processedAt
	onRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.requests[id] = prev
	})
	return nil
}

func (r *MemoryChangeRequestRepository) DeletePendingChangeRequest(ctx context.Context, id, requester primitive.ObjectID) error {
	if err := checkContext(ctx, "delete change request"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[id]
	if !ok || !req.IsPending() || req.RequestedBy != requester {
		return ErrNoMatch
	}
	pos := slices.Index(r.order, id)
	delete(r.requests, id)
	r.order = slices.Delete(r.order, pos, pos+1)
	onRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.requests[id] = req
		r.order = slices.Insert(r.order, min(pos, len(r.order)), id)
	})
	return nil
}

type MemoryLogRepository struct {
	mu   sync.RWMutex
	logs []*models.LogEntry
}

func NewMemoryLogRepository() *MemoryLogRepository {
	return &MemoryLogRepository{}
}

func (r *MemoryLogRepository) SaveLog(ctx context.Context, log *models.LogEntry) error {
	if err := checkContext(ctx, "insert log"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	log.ID = primitive.NewObjectID()
	log.Timestamp = time.Now().UTC()
	cp := *log
	r.logs = append(r.logs, &cp)
	return nil
}

func (r *MemoryLogRepository) GetAllLogs(ctx context.Context, page, limit int) ([]*models.LogEntry, error) {
	return r.page(ctx, nil, page, limit)
}

func (r *MemoryLogRepository) GetLogsByActor(ctx context.Context, actorID primitive.ObjectID, page, limit int) ([]*models.LogEntry, error) {
	return r.page(ctx, &actorID, page, limit)
}

func (r *MemoryLogRepository) page(ctx context.Context, actorID *primitive.ObjectID, page, limit int) ([]*models.LogEntry, error) {
	if err := checkContext(ctx, "find logs"); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	skip := (page - 1) * limit
	logs := []*models.LogEntry{}
	for i := len(r.logs) - 1; i >= 0 && len(logs) < limit; i-- {
		entry := r.logs[i]
		if actorID != nil && entry.ActorID != *actorID {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		cp := *entry
		logs = append(logs, &cp)
	}
	return logs, nil
}
