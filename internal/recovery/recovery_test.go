package recovery

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/yeonho-dev/lecture-payments/internal/catalog"
	"github.com/yeonho-dev/lecture-payments/internal/event"
	"github.com/yeonho-dev/lecture-payments/internal/gateway"
	"github.com/yeonho-dev/lecture-payments/internal/model"
	"github.com/yeonho-dev/lecture-payments/internal/repository"
)

// Shared fakes for the recovery tests.

type memPurchaseRepo struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[uint64]model.Purchase
}

func newMemPurchaseRepo() *memPurchaseRepo {
	return &memPurchaseRepo{rows: map[uint64]model.Purchase{}}
}

func (m *memPurchaseRepo) Create(_ context.Context, p *model.Purchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.ID = m.nextID
	m.rows[p.ID] = *p
	return nil
}

func (m *memPurchaseRepo) Update(_ context.Context, p *model.Purchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[p.ID] = *p
	return nil
}

func (m *memPurchaseRepo) FindByID(_ context.Context, id uint64) (*model.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (m *memPurchaseRepo) FindByMerchantUID(_ context.Context, merchantUID string) (*model.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.rows {
		if p.MerchantUID == merchantUID {
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memPurchaseRepo) ExistsByChargeUID(_ context.Context, chargeUID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.rows {
		if p.ChargeUID == chargeUID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memPurchaseRepo) ListByUser(_ context.Context, userUID string) ([]model.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Purchase
	for id := uint64(1); id <= m.nextID; id++ {
		if p, ok := m.rows[id]; ok && p.UserUID == userUID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memPurchaseRepo) ListByStatus(_ context.Context, status model.PurchaseStatus) ([]model.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Purchase
	for id := uint64(1); id <= m.nextID; id++ {
		if p, ok := m.rows[id]; ok && p.Status == status {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memPurchaseRepo) ListByStatusPage(ctx context.Context, status model.PurchaseStatus, limit, offset int) ([]model.Purchase, error) {
	all, _ := m.ListByStatus(ctx, status)
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *memPurchaseRepo) all() []model.Purchase {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Purchase
	for id := uint64(1); id <= m.nextID; id++ {
		if p, ok := m.rows[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

type stubGateway struct {
	verify     map[string]*gateway.ChargeStatus
	verifyErr  map[string]error
	cancel     map[string]*gateway.CancelResult
	cancelErr  map[string]error
	paid       []gateway.PaymentRecord
	paidErr    error
	fetched    map[string]*gateway.PaymentRecord
	fetchedErr map[string]error
}

func newStubGateway() *stubGateway {
	return &stubGateway{
		verify:     map[string]*gateway.ChargeStatus{},
		verifyErr:  map[string]error{},
		cancel:     map[string]*gateway.CancelResult{},
		cancelErr:  map[string]error{},
		fetched:    map[string]*gateway.PaymentRecord{},
		fetchedErr: map[string]error{},
	}
}

func (s *stubGateway) Verify(_ context.Context, chargeUID string) (*gateway.ChargeStatus, error) {
	if err, ok := s.verifyErr[chargeUID]; ok {
		return nil, err
	}
	if st, ok := s.verify[chargeUID]; ok {
		return st, nil
	}
	return nil, gateway.ErrChargeNotFound
}

func (s *stubGateway) Cancel(_ context.Context, chargeUID string, _ int64) (*gateway.CancelResult, error) {
	if err, ok := s.cancelErr[chargeUID]; ok {
		return nil, err
	}
	if res, ok := s.cancel[chargeUID]; ok {
		return res, nil
	}
	return nil, errors.New("cancel rejected")
}

func (s *stubGateway) ListPaid(_ context.Context, _, _ time.Time) ([]gateway.PaymentRecord, error) {
	return s.paid, s.paidErr
}

func (s *stubGateway) FetchByChargeUID(_ context.Context, chargeUID string) (*gateway.PaymentRecord, error) {
	if err, ok := s.fetchedErr[chargeUID]; ok {
		return nil, err
	}
	if rec, ok := s.fetched[chargeUID]; ok {
		return rec, nil
	}
	return nil, gateway.ErrChargeNotFound
}

type stubCatalog struct {
	prices    map[uint64]int64
	discounts map[uint64]*catalog.Discount
}

func newStubCatalog() *stubCatalog {
	return &stubCatalog{prices: map[uint64]int64{}, discounts: map[uint64]*catalog.Discount{}}
}

func (s *stubCatalog) Info(_ context.Context, productID uint64) (*catalog.CourseInfo, error) {
	price, ok := s.prices[productID]
	if !ok {
		return &catalog.CourseInfo{Title: "unknown", Instructor: "unknown"}, nil
	}
	return &catalog.CourseInfo{Title: "course", Instructor: "kim", Price: price}, nil
}

func (s *stubCatalog) ReserveDiscount(_ context.Context, productID uint64) (*catalog.Discount, error) {
	if d, ok := s.discounts[productID]; ok {
		return d, nil
	}
	return &catalog.Discount{Applied: false}, nil
}

type recordingBus struct {
	mu        sync.Mutex
	published map[string][][]byte
}

func newRecordingBus() *recordingBus {
	return &recordingBus{published: map[string][][]byte{}}
}

func (b *recordingBus) Publish(_ context.Context, topic string, message any) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[topic] = append(b.published[topic], payload)
	return nil
}

func (b *recordingBus) Subscribe(string, event.Handler) {}

func (b *recordingBus) publishedOn(topic string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.published[topic]
}
