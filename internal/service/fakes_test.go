package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/yeonho-dev/lecture-payments/internal/catalog"
	"github.com/yeonho-dev/lecture-payments/internal/event"
	"github.com/yeonho-dev/lecture-payments/internal/gateway"
	"github.com/yeonho-dev/lecture-payments/internal/model"
	"github.com/yeonho-dev/lecture-payments/internal/repository"
)

type fakePurchases struct {
	mu        sync.Mutex
	nextID    uint64
	records   map[uint64]model.Purchase
	createErr error
	updateErr error
}

func newFakePurchases() *fakePurchases {
	return &fakePurchases{records: make(map[uint64]model.Purchase)}
}

func (f *fakePurchases) Create(_ context.Context, p *model.Purchase) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	p.ID = f.nextID
	f.records[p.ID] = *p
	return nil
}

func (f *fakePurchases) Update(_ context.Context, p *model.Purchase) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.records[p.ID] = *p
	return nil
}

func (f *fakePurchases) FindByID(_ context.Context, id uint64) (*model.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (f *fakePurchases) FindByMerchantUID(_ context.Context, merchantUID string) (*model.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.records {
		if p.MerchantUID == merchantUID {
			p := p
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakePurchases) ExistsByChargeUID(_ context.Context, chargeUID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.records {
		if p.ChargeUID == chargeUID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePurchases) ListByUser(_ context.Context, userUID string) ([]model.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var list []model.Purchase
	for id := uint64(1); id <= f.nextID; id++ {
		if p, ok := f.records[id]; ok && p.UserUID == userUID {
			list = append(list, p)
		}
	}
	return list, nil
}

func (f *fakePurchases) ListByStatus(_ context.Context, status model.PurchaseStatus) ([]model.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var list []model.Purchase
	for id := uint64(1); id <= f.nextID; id++ {
		if p, ok := f.records[id]; ok && p.Status == status {
			list = append(list, p)
		}
	}
	return list, nil
}

func (f *fakePurchases) ListByStatusPage(ctx context.Context, status model.PurchaseStatus, limit, offset int) ([]model.Purchase, error) {
	list, err := f.ListByStatus(ctx, status)
	if err != nil {
		return nil, err
	}
	if offset >= len(list) {
		return nil, nil
	}
	list = list[offset:]
	if limit < len(list) {
		list = list[:limit]
	}
	return list, nil
}

func (f *fakePurchases) add(p model.Purchase) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	p.ID = f.nextID
	f.records[p.ID] = p
	return p.ID
}

func (f *fakePurchases) get(t *testing.T, id uint64) model.Purchase {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.records[id]
	if !ok {
		t.Fatalf("purchase %d not found", id)
	}
	return p
}

type fakeRollbackFailures struct {
	mu      sync.Mutex
	nextID  uint64
	records map[uint64]model.RollbackFailure
}

func newFakeRollbackFailures() *fakeRollbackFailures {
	return &fakeRollbackFailures{records: make(map[uint64]model.RollbackFailure)}
}

func (f *fakeRollbackFailures) Create(_ context.Context, r *model.RollbackFailure) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	r.ID = f.nextID
	f.records[r.ID] = *r
	return nil
}

func (f *fakeRollbackFailures) FindByID(_ context.Context, id uint64) (*model.RollbackFailure, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (f *fakeRollbackFailures) Delete(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, id)
	return nil
}

func (f *fakeRollbackFailures) List(_ context.Context, limit, offset int) ([]model.RollbackFailure, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var list []model.RollbackFailure
	for id := uint64(1); id <= f.nextID; id++ {
		if r, ok := f.records[id]; ok {
			list = append(list, r)
		}
	}
	if offset >= len(list) {
		return nil, nil
	}
	list = list[offset:]
	if limit < len(list) {
		list = list[:limit]
	}
	return list, nil
}

type fakeCancelFailures struct {
	mu      sync.Mutex
	nextID  uint64
	records map[uint64]model.CancelFailure
}

func newFakeCancelFailures() *fakeCancelFailures {
	return &fakeCancelFailures{records: make(map[uint64]model.CancelFailure)}
}

func (f *fakeCancelFailures) Create(_ context.Context, r *model.CancelFailure) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	r.ID = f.nextID
	f.records[r.ID] = *r
	return nil
}

func (f *fakeCancelFailures) FindByPurchaseID(_ context.Context, purchaseID uint64) (*model.CancelFailure, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.PurchaseID == purchaseID {
			r := r
			return &r, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeCancelFailures) Delete(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, id)
	return nil
}

func (f *fakeCancelFailures) List(_ context.Context, limit, offset int) ([]model.CancelFailure, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var list []model.CancelFailure
	for id := uint64(1); id <= f.nextID; id++ {
		if r, ok := f.records[id]; ok {
			list = append(list, r)
		}
	}
	if offset >= len(list) {
		return nil, nil
	}
	list = list[offset:]
	if limit < len(list) {
		list = list[:limit]
	}
	return list, nil
}

func (f *fakeCancelFailures) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type stubGateway struct {
	mu           sync.Mutex
	verify       map[string]*gateway.ChargeStatus
	verifyErr    error
	cancelStatus string
	cancelErr    error
	cancelCalls  int
}

func newStubGateway() *stubGateway {
	return &stubGateway{verify: make(map[string]*gateway.ChargeStatus), cancelStatus: "cancelled"}
}

func (s *stubGateway) Verify(_ context.Context, chargeUID string) (*gateway.ChargeStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.verifyErr != nil {
		return nil, s.verifyErr
	}
	st, ok := s.verify[chargeUID]
	if !ok {
		return nil, gateway.ErrChargeNotFound
	}
	return st, nil
}

func (s *stubGateway) Cancel(_ context.Context, _ string, _ int64) (*gateway.CancelResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelCalls++
	if s.cancelErr != nil {
		return nil, s.cancelErr
	}
	return &gateway.CancelResult{Status: s.cancelStatus}, nil
}

func (s *stubGateway) ListPaid(_ context.Context, _, _ time.Time) ([]gateway.PaymentRecord, error) {
	return nil, nil
}

func (s *stubGateway) FetchByChargeUID(_ context.Context, _ string) (*gateway.PaymentRecord, error) {
	return nil, gateway.ErrChargeNotFound
}

type stubCatalog struct {
	infos       map[uint64]*catalog.CourseInfo
	discounts   map[uint64]*catalog.Discount
	discountErr error
}

func newStubCatalog() *stubCatalog {
	return &stubCatalog{
		infos:     make(map[uint64]*catalog.CourseInfo),
		discounts: make(map[uint64]*catalog.Discount),
	}
}

func (s *stubCatalog) Info(_ context.Context, productID uint64) (*catalog.CourseInfo, error) {
	if info, ok := s.infos[productID]; ok {
		return info, nil
	}
	return &catalog.CourseInfo{Title: "unknown", Instructor: "unknown"}, nil
}

func (s *stubCatalog) ReserveDiscount(_ context.Context, productID uint64) (*catalog.Discount, error) {
	if s.discountErr != nil {
		return nil, s.discountErr
	}
	if d, ok := s.discounts[productID]; ok {
		return d, nil
	}
	return &catalog.Discount{Applied: false}, nil
}

type recordingBus struct {
	mu        sync.Mutex
	published []publishedMessage
}

type publishedMessage struct {
	topic   string
	payload []byte
}

func (b *recordingBus) Publish(_ context.Context, topic string, message any) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, publishedMessage{topic: topic, payload: payload})
	return nil
}

func (b *recordingBus) Subscribe(string, event.Handler) {}

func (b *recordingBus) publishedOn(topic string) []publishedMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []publishedMessage
	for _, m := range b.published {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}
