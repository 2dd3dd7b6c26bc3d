package usecases

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/limistah/conciliation-service/internal/models"
	"github.com/limistah/conciliation-service/internal/repositories"
)

// memoryStore backs the mock repositories so a run applied through
// MockReconciliationRepository is visible to the record repositories.
type memoryStore struct {
	users       map[uint]*models.User
	terminals   map[uint]*models.Terminal
	sales       map[uint]*models.TerminalSale
	receipts    map[uint]*models.BankReceipt
	divergences map[uint]*models.Divergence
	summaries   map[uint]*models.Reconciliation
	nextID      uint

	// applyErr makes the next ApplyRun fail
	applyErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:       make(map[uint]*models.User),
		terminals:   make(map[uint]*models.Terminal),
		sales:       make(map[uint]*models.TerminalSale),
		receipts:    make(map[uint]*models.BankReceipt),
		divergences: make(map[uint]*models.Divergence),
		summaries:   make(map[uint]*models.Reconciliation),
	}
}

func (s *memoryStore) id() uint {
	s.nextID++
	return s.nextID
}

func (s *memoryStore) repositories() *repositories.Repositories {
	return &repositories.Repositories{
		User:           &MockUserRepository{store: s},
		Terminal:       &MockTerminalRepository{store: s},
		Sale:           &MockSaleRepository{store: s},
		Receipt:        &MockReceiptRepository{store: s},
		Divergence:     &MockDivergenceRepository{store: s},
		Reconciliation: &MockReconciliationRepository{store: s},
		DB:             nil, // Skip DB for unit tests
	}
}

func (s *memoryStore) divergencesOf(terminalID uint, period string) []models.Divergence {
	var out []models.Divergence
	for _, d := range s.divergences {
		if d.TerminalID == terminalID && d.Period == period {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memoryStore) pending(recordType models.RecordType, id uint) bool {
	switch recordType {
	case models.RecordTypeSale:
		sale, ok := s.sales[id]
		return ok && !sale.IsReconciled()
	case models.RecordTypeReceipt:
		receipt, ok := s.receipts[id]
		return ok && !receipt.IsReconciled()
	}
	return false
}

func idSet(ids []uint) map[uint]bool {
	set := make(map[uint]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// MockUserRepository implements UserRepository interface for testing
type MockUserRepository struct {
	store *memoryStore
}

func (m *MockUserRepository) Create(_ context.Context, user *models.User) error {
	if user.ID == 0 {
		user.ID = m.store.id()
	}
	stored := *user
	m.store.users[user.ID] = &stored
	return nil
}

func (m *MockUserRepository) GetByID(_ context.Context, id uint) (*models.User, error) {
	if user, ok := m.store.users[id]; ok {
		found := *user
		return &found, nil
	}
	return nil, repositories.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, user := range m.store.users {
		if user.Email == email {
			found := *user
			return &found, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *MockUserRepository) Update(_ context.Context, user *models.User) error {
	stored := *user
	m.store.users[user.ID] = &stored
	return nil
}

// MockTerminalRepository implements TerminalRepository interface for testing
type MockTerminalRepository struct {
	store *memoryStore
}

func (m *MockTerminalRepository) Create(_ context.Context, terminal *models.Terminal) error {
	if terminal.ID == 0 {
		terminal.ID = m.store.id()
	}
	stored := *terminal
	m.store.terminals[terminal.ID] = &stored
	return nil
}

func (m *MockTerminalRepository) GetByID(_ context.Context, id uint) (*models.Terminal, error) {
	if terminal, ok := m.store.terminals[id]; ok {
		found := *terminal
		return &found, nil
	}
	return nil, repositories.ErrNotFound
}

func (m *MockTerminalRepository) GetBySerialNumber(_ context.Context, serial string) (*models.Terminal, error) {
	for _, terminal := range m.store.terminals {
		if terminal.SerialNumber == serial {
			found := *terminal
			return &found, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *MockTerminalRepository) Update(_ context.Context, terminal *models.Terminal) error {
	stored := *terminal
	m.store.terminals[terminal.ID] = &stored
	return nil
}

func (m *MockTerminalRepository) List(_ context.Context, activeOnly bool, offset, limit int) ([]models.Terminal, error) {
	var terminals []models.Terminal
	for _, terminal := range m.store.terminals {
		if activeOnly && !terminal.Active {
			continue
		}
		terminals = append(terminals, *terminal)
	}
	sort.Slice(terminals, func(i, j int) bool { return terminals[i].ID < terminals[j].ID })

	if offset >= len(terminals) {
		return []models.Terminal{}, nil
	}
	end := len(terminals)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return terminals[offset:end], nil
}

// MockSaleRepository implements SaleRepository interface for testing
type MockSaleRepository struct {
	store *memoryStore
}

func (m *MockSaleRepository) CreateBatch(_ context.Context, sales []models.TerminalSale) error {
	for i := range sales {
		sales[i].ID = m.store.id()
		stored := sales[i]
		m.store.sales[stored.ID] = &stored
	}
	return nil
}

func (m *MockSaleRepository) GetByID(_ context.Context, id uint) (*models.TerminalSale, error) {
	if sale, ok := m.store.sales[id]; ok {
		found := *sale
		return &found, nil
	}
	return nil, repositories.ErrNotFound
}

func (m *MockSaleRepository) ExistingNSUs(_ context.Context, terminalID uint, nsus []string) ([]string, error) {
	wanted := make(map[string]bool, len(nsus))
	for _, nsu := range nsus {
		wanted[nsu] = true
	}
	var existing []string
	for _, sale := range m.store.sales {
		if sale.TerminalID == terminalID && wanted[sale.NSU] {
			existing = append(existing, sale.NSU)
		}
	}
	sort.Strings(existing)
	return existing, nil
}

func (m *MockSaleRepository) List(_ context.Context, filter repositories.RecordFilter) ([]models.TerminalSale, error) {
	var sales []models.TerminalSale
	for _, sale := range m.store.sales {
		if sale.TerminalID != filter.TerminalID {
			continue
		}
		if !filter.From.IsZero() && sale.TransactionDate.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !sale.TransactionDate.Before(filter.To) {
			continue
		}
		if filter.Status != "" && sale.Status != filter.Status {
			continue
		}
		sales = append(sales, *sale)
	}
	sort.Slice(sales, func(i, j int) bool {
		if !sales[i].TransactionDate.Equal(sales[j].TransactionDate) {
			return sales[i].TransactionDate.Before(sales[j].TransactionDate)
		}
		return sales[i].ID < sales[j].ID
	})
	return sales, nil
}

// MockReceiptRepository implements ReceiptRepository interface for testing
type MockReceiptRepository struct {
	store *memoryStore
}

func (m *MockReceiptRepository) CreateBatch(_ context.Context, receipts []models.BankReceipt) error {
	for i := range receipts {
		receipts[i].ID = m.store.id()
		stored := receipts[i]
		m.store.receipts[stored.ID] = &stored
	}
	return nil
}

func (m *MockReceiptRepository) GetByID(_ context.Context, id uint) (*models.BankReceipt, error) {
	if receipt, ok := m.store.receipts[id]; ok {
		found := *receipt
		return &found, nil
	}
	return nil, repositories.ErrNotFound
}

func (m *MockReceiptRepository) List(_ context.Context, filter repositories.RecordFilter) ([]models.BankReceipt, error) {
	var receipts []models.BankReceipt
	for _, receipt := range m.store.receipts {
		if receipt.TerminalID != filter.TerminalID {
			continue
		}
		if !filter.From.IsZero() && receipt.ReceiptDate.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !receipt.ReceiptDate.Before(filter.To) {
			continue
		}
		if filter.Status != "" && receipt.Status != filter.Status {
			continue
		}
		receipts = append(receipts, *receipt)
	}
	sort.Slice(receipts, func(i, j int) bool {
		if !receipts[i].ReceiptDate.Equal(receipts[j].ReceiptDate) {
			return receipts[i].ReceiptDate.Before(receipts[j].ReceiptDate)
		}
		return receipts[i].ID < receipts[j].ID
	})
	return receipts, nil
}

// MockDivergenceRepository implements DivergenceRepository interface for testing
type MockDivergenceRepository struct {
	store *memoryStore
}

func (m *MockDivergenceRepository) GetByID(_ context.Context, id uint) (*models.Divergence, error) {
	if divergence, ok := m.store.divergences[id]; ok {
		found := *divergence
		return &found, nil
	}
	return nil, repositories.ErrNotFound
}

func (m *MockDivergenceRepository) ListByPeriod(_ context.Context, terminalID uint, period string, status models.DivergenceStatus) ([]models.Divergence, error) {
	var out []models.Divergence
	for _, d := range m.store.divergencesOf(terminalID, period) {
		if status != "" && d.Status != status {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (m *MockDivergenceRepository) ListForRecords(_ context.Context, saleIDs, receiptIDs []uint) ([]models.Divergence, error) {
	wanted := make(map[recordKey]bool, len(saleIDs)+len(receiptIDs))
	for _, id := range saleIDs {
		wanted[recordKey{models.RecordTypeSale, id}] = true
	}
	for _, id := range receiptIDs {
		wanted[recordKey{models.RecordTypeReceipt, id}] = true
	}
	var out []models.Divergence
	for _, d := range m.store.divergences {
		if wanted[recordKey{d.RecordType, d.RecordID}] {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockDivergenceRepository) Update(_ context.Context, divergence *models.Divergence) error {
	if _, ok := m.store.divergences[divergence.ID]; !ok {
		return repositories.ErrNotFound
	}
	stored := *divergence
	m.store.divergences[divergence.ID] = &stored
	return nil
}

func (m *MockDivergenceRepository) CountByStatus(_ context.Context, terminalID uint, period string) (int, int, error) {
	var pending, resolved int
	for _, d := range m.store.divergencesOf(terminalID, period) {
		if d.IsResolved() {
			resolved++
		} else {
			pending++
		}
	}
	return pending, resolved, nil
}

// MockReconciliationRepository implements ReconciliationRepository interface for testing
type MockReconciliationRepository struct {
	store *memoryStore
}

func (m *MockReconciliationRepository) GetByTerminalPeriod(_ context.Context, terminalID uint, period string) (*models.Reconciliation, error) {
	for _, summary := range m.store.summaries {
		if summary.TerminalID == terminalID && summary.Period == period {
			found := *summary
			return &found, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *MockReconciliationRepository) Save(ctx context.Context, summary *models.Reconciliation) error {
	if summary.ID == 0 {
		if existing, err := m.GetByTerminalPeriod(ctx, summary.TerminalID, summary.Period); err == nil {
			summary.ID = existing.ID
		} else {
			summary.ID = m.store.id()
		}
	}
	stored := *summary
	m.store.summaries[summary.ID] = &stored
	return nil
}

func (m *MockReconciliationRepository) List(_ context.Context, terminalID uint, offset, limit int) ([]models.Reconciliation, error) {
	var out []models.Reconciliation
	for _, summary := range m.store.summaries {
		if summary.TerminalID == terminalID {
			out = append(out, *summary)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period > out[j].Period })
	if offset >= len(out) {
		return []models.Reconciliation{}, nil
	}
	end := len(out)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return out[offset:end], nil
}

func (m *MockReconciliationRepository) ApplyRun(ctx context.Context, changes *repositories.RunChanges) error {
	if err := m.store.applyErr; err != nil {
		m.store.applyErr = nil
		return err
	}

	// Validate everything first so a failed run leaves the store untouched.
	for _, sale := range changes.Sales {
		stored, ok := m.store.sales[sale.ID]
		if !ok || stored.IsReconciled() {
			return fmt.Errorf("sale %d: %w", sale.ID, repositories.ErrConcurrentUpdate)
		}
	}
	for _, receipt := range changes.Receipts {
		stored, ok := m.store.receipts[receipt.ID]
		if !ok || stored.IsReconciled() {
			return fmt.Errorf("receipt %d: %w", receipt.ID, repositories.ErrConcurrentUpdate)
		}
	}
	for _, d := range changes.NewDivergences {
		if !m.store.pending(d.RecordType, d.RecordID) {
			return fmt.Errorf("%s %d: %w", d.RecordType, d.RecordID, repositories.ErrConcurrentUpdate)
		}
		for _, existing := range m.store.divergences {
			if existing.RecordType == d.RecordType && existing.RecordID == d.RecordID {
				return errors.New("UNIQUE constraint failed: idx_divergence_record")
			}
		}
	}

	for _, sale := range changes.Sales {
		stored := *sale
		m.store.sales[sale.ID] = &stored
	}
	for _, receipt := range changes.Receipts {
		stored := *receipt
		m.store.receipts[receipt.ID] = &stored
	}
	reconciled := make(map[models.RecordType]map[uint]bool)
	saleIDs, receiptIDs := changes.RecordIDs()
	reconciled[models.RecordTypeSale] = idSet(saleIDs)
	reconciled[models.RecordTypeReceipt] = idSet(receiptIDs)
	for id, d := range m.store.divergences {
		if reconciled[d.RecordType][d.RecordID] {
			delete(m.store.divergences, id)
		}
	}
	for _, id := range changes.DeleteDivergenceIDs {
		delete(m.store.divergences, id)
	}
	for _, d := range changes.NewDivergences {
		d.ID = m.store.id()
		stored := *d
		m.store.divergences[d.ID] = &stored
	}
	if changes.Summary != nil {
		return m.Save(ctx, changes.Summary)
	}
	return nil
}
