package settlement

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/erp/setoff/internal/domain/accounting"
	"github.com/erp/setoff/internal/domain/settlement"
	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// In-memory fakes backing the service tests. Aggregates are stored by
// value so an aborted transaction can restore the previous state the
// way a database rollback would.

func newLineID() uuid.UUID { return uuid.New() }

type fakeStore struct {
	lines    map[settlement.SourceLineRef]settlement.SourceLine
	credits  map[uuid.UUID]settlement.PrepaymentCredit
	docs     map[uuid.UUID]settlement.SettlementDocument
	entries  map[uuid.UUID]accounting.JournalEntry
	docSeq   int
	entrySeq int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		lines:   make(map[settlement.SourceLineRef]settlement.SourceLine),
		credits: make(map[uuid.UUID]settlement.PrepaymentCredit),
		docs:    make(map[uuid.UUID]settlement.SettlementDocument),
		entries: make(map[uuid.UUID]accounting.JournalEntry),
	}
}

func (s *fakeStore) clone() *fakeStore {
	c := newFakeStore()
	for k, v := range s.lines {
		c.lines[k] = v
	}
	for k, v := range s.credits {
		c.credits[k] = v
	}
	for k, v := range s.docs {
		c.docs[k] = v
	}
	for k, v := range s.entries {
		c.entries[k] = v
	}
	c.docSeq = s.docSeq
	c.entrySeq = s.entrySeq
	return c
}

func (s *fakeStore) restore(from *fakeStore) {
	s.lines = from.lines
	s.credits = from.credits
	s.docs = from.docs
	s.entries = from.entries
	s.docSeq = from.docSeq
	s.entrySeq = from.entrySeq
}

func (s *fakeStore) putLine(line *settlement.SourceLine) {
	s.lines[line.Ref] = *line
}

func (s *fakeStore) putCredit(credit *settlement.PrepaymentCredit) {
	s.credits[credit.ID] = *credit
}

type fakeLineRepo struct{ store *fakeStore }

func (r *fakeLineRepo) Save(_ context.Context, line *settlement.SourceLine) error {
	r.store.lines[line.Ref] = *line
	return nil
}

func (r *fakeLineRepo) SaveWithLock(_ context.Context, line *settlement.SourceLine, expectedVersion int) error {
	stored, ok := r.store.lines[line.Ref]
	if ok && stored.Version != expectedVersion {
		return shared.ErrConcurrencyConflict
	}
	line.IncrementVersion()
	r.store.lines[line.Ref] = *line
	return nil
}

func (r *fakeLineRepo) FindByRef(_ context.Context, _ uuid.UUID, ref settlement.SourceLineRef) (*settlement.SourceLine, error) {
	line, ok := r.store.lines[ref]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &line, nil
}

func (r *fakeLineRepo) FindByRefs(ctx context.Context, tenantID uuid.UUID, refs []settlement.SourceLineRef) ([]*settlement.SourceLine, error) {
	var out []*settlement.SourceLine
	for _, ref := range refs {
		if line, ok := r.store.lines[ref]; ok {
			l := line
			out = append(out, &l)
		}
	}
	return out, nil
}

func (r *fakeLineRepo) FindByRefsForUpdate(ctx context.Context, tenantID uuid.UUID, refs []settlement.SourceLineRef) ([]*settlement.SourceLine, error) {
	return r.FindByRefs(ctx, tenantID, refs)
}

func (r *fakeLineRepo) FindOpenByCounterparty(_ context.Context, tenantID, counterpartyID uuid.UUID, direction settlement.Direction) ([]*settlement.SourceLine, error) {
	var out []*settlement.SourceLine
	for _, line := range r.store.lines {
		if line.TenantID == tenantID && line.CounterpartyID == counterpartyID &&
			line.Direction() == direction && line.Outstanding().IsPositive() {
			l := line
			out = append(out, &l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BusinessDate.Before(out[j].BusinessDate) })
	return out, nil
}

type fakeCreditRepo struct{ store *fakeStore }

func (r *fakeCreditRepo) Save(_ context.Context, credit *settlement.PrepaymentCredit) error {
	r.store.credits[credit.ID] = *credit
	return nil
}

func (r *fakeCreditRepo) SaveWithLock(_ context.Context, credit *settlement.PrepaymentCredit, expectedVersion int) error {
	stored, ok := r.store.credits[credit.ID]
	if ok && stored.Version != expectedVersion {
		return shared.ErrConcurrencyConflict
	}
	credit.IncrementVersion()
	r.store.credits[credit.ID] = *credit
	return nil
}

func (r *fakeCreditRepo) FindByID(_ context.Context, _ uuid.UUID, id uuid.UUID) (*settlement.PrepaymentCredit, error) {
	credit, ok := r.store.credits[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &credit, nil
}

func (r *fakeCreditRepo) FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*settlement.PrepaymentCredit, error) {
	var out []*settlement.PrepaymentCredit
	for _, id := range ids {
		if credit, ok := r.store.credits[id]; ok {
			c := credit
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *fakeCreditRepo) FindByIDsForUpdate(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*settlement.PrepaymentCredit, error) {
	return r.FindByIDs(ctx, tenantID, ids)
}

func (r *fakeCreditRepo) FindBySourceDocumentCode(_ context.Context, tenantID uuid.UUID, code string) (*settlement.PrepaymentCredit, error) {
	for _, credit := range r.store.credits {
		if credit.TenantID == tenantID && credit.SourceDocumentCode == code {
			c := credit
			return &c, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeCreditRepo) FindAvailableByCounterparty(_ context.Context, tenantID, counterpartyID uuid.UUID, direction settlement.Direction) ([]*settlement.PrepaymentCredit, error) {
	var out []*settlement.PrepaymentCredit
	for _, credit := range r.store.credits {
		if credit.TenantID == tenantID && credit.CounterpartyID == counterpartyID &&
			credit.Direction == direction && credit.AvailableBalance().IsPositive() {
			c := credit
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.Before(out[j].IssuedAt) })
	return out, nil
}

type fakeDocRepo struct{ store *fakeStore }

func (r *fakeDocRepo) Save(_ context.Context, doc *settlement.SettlementDocument) error {
	r.store.docs[doc.ID] = *doc
	return nil
}

func (r *fakeDocRepo) SaveWithLock(_ context.Context, doc *settlement.SettlementDocument, expectedVersion int) error {
	stored, ok := r.store.docs[doc.ID]
	if ok && stored.Version != expectedVersion {
		return shared.ErrConcurrencyConflict
	}
	doc.IncrementVersion()
	r.store.docs[doc.ID] = *doc
	return nil
}

func (r *fakeDocRepo) FindByID(_ context.Context, _ uuid.UUID, id uuid.UUID) (*settlement.SettlementDocument, error) {
	doc, ok := r.store.docs[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &doc, nil
}

func (r *fakeDocRepo) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*settlement.SettlementDocument, error) {
	return r.FindByID(ctx, tenantID, id)
}

func (r *fakeDocRepo) FindByDocumentNumber(_ context.Context, tenantID uuid.UUID, number string) (*settlement.SettlementDocument, error) {
	for _, doc := range r.store.docs {
		if doc.TenantID == tenantID && doc.DocumentNumber == number {
			d := doc
			return &d, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeDocRepo) List(_ context.Context, tenantID uuid.UUID, _ settlement.SettlementDocumentFilter) (*shared.Paginated[*settlement.SettlementDocument], error) {
	var items []*settlement.SettlementDocument
	for _, doc := range r.store.docs {
		if doc.TenantID == tenantID {
			d := doc
			items = append(items, &d)
		}
	}
	page := shared.NewPaginated(items, int64(len(items)), 1, 20)
	return &page, nil
}

func (r *fakeDocRepo) NextDocumentNumber(_ context.Context, _ uuid.UUID, direction settlement.Direction, date time.Time) (string, error) {
	r.store.docSeq++
	prefix := "RV"
	if direction == settlement.DirectionPayable {
		prefix = "PV"
	}
	return fmt.Sprintf("%s-%s-%04d", prefix, date.Format("20060102"), r.store.docSeq), nil
}

type fakeEntryRepo struct{ store *fakeStore }

func (r *fakeEntryRepo) Save(_ context.Context, entry *accounting.JournalEntry) error {
	r.store.entries[entry.ID] = *entry
	return nil
}

func (r *fakeEntryRepo) SaveWithLock(_ context.Context, entry *accounting.JournalEntry, expectedVersion int) error {
	stored, ok := r.store.entries[entry.ID]
	if ok && stored.Version != expectedVersion {
		return shared.ErrConcurrencyConflict
	}
	entry.IncrementVersion()
	r.store.entries[entry.ID] = *entry
	return nil
}

func (r *fakeEntryRepo) FindByID(_ context.Context, _ uuid.UUID, id uuid.UUID) (*accounting.JournalEntry, error) {
	entry, ok := r.store.entries[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &entry, nil
}

func (r *fakeEntryRepo) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*accounting.JournalEntry, error) {
	return r.FindByID(ctx, tenantID, id)
}

func (r *fakeEntryRepo) FindByEntryNumber(_ context.Context, tenantID uuid.UUID, number string) (*accounting.JournalEntry, error) {
	for _, entry := range r.store.entries {
		if entry.TenantID == tenantID && entry.EntryNumber == number {
			e := entry
			return &e, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeEntryRepo) FindBySourceDocument(_ context.Context, tenantID, sourceDocumentID uuid.UUID) ([]*accounting.JournalEntry, error) {
	var out []*accounting.JournalEntry
	for _, entry := range r.store.entries {
		if entry.TenantID == tenantID && entry.SourceDocumentID != nil && *entry.SourceDocumentID == sourceDocumentID {
			e := entry
			out = append(out, &e)
		}
	}
	return out, nil
}

func (r *fakeEntryRepo) List(_ context.Context, tenantID uuid.UUID, _ accounting.JournalEntryFilter) (*shared.Paginated[*accounting.JournalEntry], error) {
	var items []*accounting.JournalEntry
	for _, entry := range r.store.entries {
		if entry.TenantID == tenantID {
			e := entry
			items = append(items, &e)
		}
	}
	page := shared.NewPaginated(items, int64(len(items)), 1, 20)
	return &page, nil
}

func (r *fakeEntryRepo) TrialBalance(_ context.Context, tenantID uuid.UUID, fiscalPeriod string) ([]accounting.TrialBalanceRow, error) {
	byCode := make(map[string]*accounting.TrialBalanceRow)
	for _, entry := range r.store.entries {
		if entry.TenantID != tenantID || entry.FiscalPeriod != fiscalPeriod {
			continue
		}
		for _, line := range entry.Lines {
			row, ok := byCode[line.AccountCode]
			if !ok {
				row = &accounting.TrialBalanceRow{
					AccountCode: line.AccountCode,
					TotalDebit:  valueobject.ZeroCNY(),
					TotalCredit: valueobject.ZeroCNY(),
				}
				byCode[line.AccountCode] = row
			}
			if line.Side == accounting.SideDebit {
				row.TotalDebit = row.TotalDebit.MustAdd(line.Amount)
			} else {
				row.TotalCredit = row.TotalCredit.MustAdd(line.Amount)
			}
		}
	}
	rows := make([]accounting.TrialBalanceRow, 0, len(byCode))
	for _, row := range byCode {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].AccountCode < rows[j].AccountCode })
	return rows, nil
}

func (r *fakeEntryRepo) NextEntryNumber(_ context.Context, _ uuid.UUID, fiscalPeriod string) (string, error) {
	r.store.entrySeq++
	return fmt.Sprintf("JE-%s-%04d", fiscalPeriod, r.store.entrySeq), nil
}

// fakeUnitOfWork snapshots the store and restores it when the
// transaction function errors, imitating a rollback
type fakeUnitOfWork struct{ store *fakeStore }

func (u *fakeUnitOfWork) WithinTransaction(ctx context.Context, fn func(ctx context.Context, repos settlement.TxRepositories) error) error {
	snapshot := u.store.clone()
	repos := settlement.TxRepositories{
		SourceLines:    &fakeLineRepo{store: u.store},
		Credits:        &fakeCreditRepo{store: u.store},
		Documents:      &fakeDocRepo{store: u.store},
		JournalEntries: &fakeEntryRepo{store: u.store},
	}
	if err := fn(ctx, repos); err != nil {
		u.store.restore(snapshot)
		return err
	}
	return nil
}

// fakePostingProvider serves a posting service over a fixed test chart
type fakePostingProvider struct {
	service *accounting.PostingService
	err     error
}

func (p *fakePostingProvider) PostingService(context.Context, uuid.UUID) (*accounting.PostingService, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.service, nil
}

type capturedEvents struct {
	events []shared.DomainEvent
}

func (c *capturedEvents) Publish(_ context.Context, events ...shared.DomainEvent) error {
	c.events = append(c.events, events...)
	return nil
}

var (
	_ settlement.SourceLineRepository       = (*fakeLineRepo)(nil)
	_ settlement.PrepaymentCreditRepository = (*fakeCreditRepo)(nil)
	_ settlement.SettlementDocumentRepository = (*fakeDocRepo)(nil)
	_ accounting.JournalEntryRepository     = (*fakeEntryRepo)(nil)
	_ settlement.UnitOfWork                 = (*fakeUnitOfWork)(nil)
)
