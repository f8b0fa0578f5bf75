package ingest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harborview/backoffice/internal/catalog"
	"github.com/harborview/backoffice/internal/email"
	"github.com/harborview/backoffice/internal/ledger"
	"github.com/harborview/backoffice/internal/mapping"
	"github.com/harborview/backoffice/internal/match"
	"github.com/harborview/backoffice/internal/statement"
	"github.com/harborview/backoffice/internal/suppliers"
)

type memoryStatementStore struct {
	refs map[string]bool
}

func (s *memoryStatementStore) ExistsReference(ctx context.Context, ref string) (bool, error) {
	return ref != "" && s.refs[ref], nil
}

func (s *memoryStatementStore) SaveStatementTransaction(ctx context.Context, tx statement.Transaction) (bool, error) {
	if tx.Reference != "" {
		if s.refs == nil {
			s.refs = make(map[string]bool)
		}
		s.refs[tx.Reference] = true
	}
	return true, nil
}

func newTestStatementService(store StatementStore, mappings *memoryMappings, cat *fakeCatalog) *StatementService {
	return NewStatementService(statement.NewParser(statement.Config{}), store, mappings,
		cat, match.NewEngine(match.Config{}), nil)
}

func TestStatementImportDeduplicatesByReference(t *testing.T) {
	store := &memoryStatementStore{refs: map[string]bool{"REF1": true}}
	svc := newTestStatementService(store, &memoryMappings{}, &fakeCatalog{})

	file := []byte("Date,Description,Amount,Reference\n" +
		"1/2/2024,Coffee Shop,12.34,REF1\n" +
		"1/3/2024,Hardware Store,50.00,REF2\n")

	result, err := svc.Import(context.Background(), file)
	require.NoError(t, err)
	require.Equal(t, 1, result.Imported)
	require.Equal(t, 1, result.Skipped)
	require.Len(t, result.Transactions, 1)
	require.Equal(t, "REF2", result.Transactions[0].Reference)
}

func TestStatementImportNoTransactionsIsSoft(t *testing.T) {
	svc := newTestStatementService(&memoryStatementStore{}, &memoryMappings{}, &fakeCatalog{})

	result, err := svc.Import(context.Background(), []byte("just,some,noise\nno,header,here\n"))
	require.NoError(t, err)
	require.Zero(t, result.Imported)
	require.Contains(t, result.Message, "No transactions")
}

func TestStatementImportResolvesDescriptions(t *testing.T) {
	cat := &fakeCatalog{products: []catalog.Product{
		{ID: "p5", Name: "Coffee Shop Blend 1lb"},
		{ID: "p7", Name: "Cleaning Supplies Pack"},
	}}
	mappings := &memoryMappings{}
	_, err := mappings.Upsert(context.Background(), mapping.UpsertInput{
		Type: mapping.TypeProductNames, Source: "ACME Corp 0042", Target: "Cleaning Supplies Pack", TargetID: "p7",
	})
	require.NoError(t, err)
	svc := newTestStatementService(&memoryStatementStore{}, mappings, cat)

	file := []byte("Date,Description,Amount,Reference\n" +
		"1/2/2024,Coffee Shop,12.34,REF1\n" +
		"1/3/2024,ACME Corp 0042,50.00,REF2\n" +
		"1/4/2024,Parking Garage,8.00,REF3\n")

	result, err := svc.Import(context.Background(), file)
	require.NoError(t, err)
	require.Len(t, result.Transactions, 3)

	require.Equal(t, "p5", result.Transactions[0].ProductID, "matched via catalog search")
	require.Equal(t, "Coffee Shop Blend 1lb", result.Transactions[0].MatchedName)

	require.Equal(t, "p7", result.Transactions[1].ProductID, "matched via learned mapping")

	require.Empty(t, result.Transactions[2].ProductID, "unresolved lines stay unbound")

	learned, err := mappings.Find(context.Background(), mapping.TypeProductNames, "Coffee Shop")
	require.NoError(t, err, "a search match is recorded for future imports")
	require.Equal(t, "p5", learned.TargetID)
}

type fixedDirectory struct {
	supplier suppliers.Supplier
}

func (d *fixedDirectory) FindByNameOrAlias(ctx context.Context, name string) (suppliers.Supplier, error) {
	if name == d.supplier.Name {
		return d.supplier, nil
	}
	for _, alias := range d.supplier.Aliases {
		if alias == name {
			return d.supplier, nil
		}
	}
	return suppliers.Supplier{}, suppliers.ErrNotFound
}

type memoryMappings struct {
	records map[string]mapping.Mapping
}

func mappingKey(typ mapping.Type, source string) string {
	return string(typ) + "|" + mapping.NormalizeSource(source)
}

func (m *memoryMappings) Find(ctx context.Context, typ mapping.Type, source string) (mapping.Mapping, error) {
	if rec, ok := m.records[mappingKey(typ, source)]; ok {
		return rec, nil
	}
	return mapping.Mapping{}, mapping.ErrNotFound
}

func (m *memoryMappings) Upsert(ctx context.Context, input mapping.UpsertInput) (mapping.Mapping, error) {
	if m.records == nil {
		m.records = make(map[string]mapping.Mapping)
	}
	rec := mapping.Mapping{
		Type:       input.Type,
		Source:     mapping.NormalizeSource(input.Source),
		Target:     input.Target,
		TargetID:   input.TargetID,
		Confidence: input.Confidence,
		UsageCount: input.UsageCount,
	}
	m.records[mappingKey(input.Type, input.Source)] = rec
	return rec, nil
}

type fakeCatalog struct {
	products []catalog.Product
	costs    []catalog.CostEntry
}

func (c *fakeCatalog) Search(ctx context.Context, query string) ([]catalog.Product, error) {
	var out []catalog.Product
	for _, p := range c.products {
		if match.Score(query, p.Name) > 0 {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *fakeCatalog) GetByID(ctx context.Context, id string) (catalog.Product, error) {
	for _, p := range c.products {
		if p.ID == id {
			return p, nil
		}
	}
	return catalog.Product{}, catalog.ErrNotFound
}

func (c *fakeCatalog) RecordCost(ctx context.Context, id string, entry catalog.CostEntry) error {
	c.costs = append(c.costs, entry)
	return nil
}

type fakeLedger struct {
	calls []string
}

func (l *fakeLedger) ApplyChanges(ctx context.Context, transactionID string, txType ledger.TransactionType, source string, items []ledger.ItemChange) ([]ledger.UpdateResult, error) {
	results := make([]ledger.UpdateResult, 0, len(items))
	for _, item := range items {
		l.calls = append(l.calls, fmt.Sprintf("%s:%s:%d", transactionID, item.ProductID, item.Quantity))
		results = append(results, ledger.UpdateResult{ProductID: item.ProductID, Success: true, ChangeRecorded: true})
	}
	return results, nil
}

type fakePurchaseStore struct {
	saved []Purchase
}

func (s *fakePurchaseStore) SavePurchase(ctx context.Context, p Purchase) error {
	s.saved = append(s.saved, p)
	return nil
}

type memorySource struct {
	messages []email.Message
}

func (s *memorySource) GetMessage(ctx context.Context, id string) (email.Message, error) {
	for _, m := range s.messages {
		if m.ID == id {
			return m, nil
		}
	}
	return email.Message{}, fmt.Errorf("message %s not found", id)
}

func (s *memorySource) ListMessages(ctx context.Context, query string, maxResults int64) ([]string, error) {
	ids := make([]string, 0, len(s.messages))
	for _, m := range s.messages {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

const testNotification = `
<html><body>
<div style="color: #006fcf"><span>Alert</span><p>Viva Raw</p></div>
<p>You spent $16.00* today.</p>
</body></html>`

const testInvoice = `
<html><body>
<p>Order #777, total $16.00</p>
<div class="item">
  <div class="head"><p class="name">Turkey Blend x 2</p></div>
  <div class="pricing"><span>Price: <span>$10.00</span></span></div>
</div>
</body></html>`

func testSupplier() suppliers.Supplier {
	return suppliers.Supplier{
		ID:                    "sup1",
		Name:                  "Viva Raw",
		InvoiceEmail:          "orders@vivaraw.com",
		InvoiceSubjectPattern: "order confirmed",
		ExtractionRule: email.Rule{
			OrderNumber: &email.Pattern{Pattern: `Order\s+#(\d+)`, GroupIndex: 1},
			Products: &email.ProductsRule{
				ContainerSelector: "div.item",
				NameSelector:      "p.name",
			},
		},
		Correction: email.Correction{DiscountPercent: 20, QuantityMultiplier: 2, PriceDivisor: 2},
	}
}

func newTestInvoiceService(src email.Source, cat *fakeCatalog, led *fakeLedger, store *fakePurchaseStore) *InvoiceService {
	return NewInvoiceService(src, &fixedDirectory{supplier: testSupplier()}, &memoryMappings{},
		cat, led, store, match.NewEngine(match.Config{}), nil)
}

func TestProcessNotification(t *testing.T) {
	src := &memorySource{messages: []email.Message{
		{ID: "notif", HTMLBody: testNotification},
		{ID: "inv", Subject: "Your Order Confirmed", HTMLBody: testInvoice},
	}}
	cat := &fakeCatalog{products: []catalog.Product{
		{ID: "p1", Name: "Turkey Blend for Dogs 1lb", LastPurchasePrice: 4.25},
	}}
	svc := newTestInvoiceService(src, cat, &fakeLedger{}, &fakePurchaseStore{})

	result, err := svc.ProcessNotification(context.Background(), "notif", 0)
	require.NoError(t, err)
	require.Empty(t, result.Message)
	require.Equal(t, "Viva Raw", result.ExtractedSupplier)
	require.InDelta(t, 16.00, result.Amount, 0.0001)
	require.True(t, result.IsLastEmail)
	require.Equal(t, "777", result.ParsedData.OrderNumber)
	require.InDelta(t, 16.00, result.ParsedData.TotalAmount, 0.0001)

	require.Len(t, result.ParsedData.Products, 1)
	item := result.ParsedData.Products[0]
	require.Equal(t, "Turkey Blend", item.RawName)
	require.Equal(t, 4, item.Quantity)
	require.InDelta(t, 4.00, item.UnitPrice, 0.0001)
	require.InDelta(t, 16.00, item.TotalPrice, 0.0001)
	require.Equal(t, "p1", item.ProductID)
	require.Equal(t, "Turkey Blend for Dogs 1lb", item.MatchedName)
	require.InDelta(t, 4.25, item.LastKnownPrice, 0.0001)
}

func TestProcessNotificationSupplierNotFoundIsSoft(t *testing.T) {
	src := &memorySource{messages: []email.Message{
		{ID: "notif", HTMLBody: "<html><body><p>Your statement is ready</p></body></html>"},
	}}
	svc := newTestInvoiceService(src, &fakeCatalog{}, &fakeLedger{}, &fakePurchaseStore{})

	result, err := svc.ProcessNotification(context.Background(), "notif", 0)
	require.NoError(t, err)
	require.Contains(t, result.Message, "Could not find supplier name")
}

func TestProcessNotificationMissingAmountIsSoft(t *testing.T) {
	body := `<html><body><div style="color: #006fcf"><p>Viva Raw</p></div><p>Thanks for your order</p></body></html>`
	src := &memorySource{messages: []email.Message{
		{ID: "notif", HTMLBody: body},
		{ID: "inv", Subject: "Your Order Confirmed", HTMLBody: testInvoice},
	}}
	svc := newTestInvoiceService(src, &fakeCatalog{}, &fakeLedger{}, &fakePurchaseStore{})

	result, err := svc.ProcessNotification(context.Background(), "notif", 0)
	require.NoError(t, err)
	require.Contains(t, result.Message, "Could not find purchase amount")
	require.Equal(t, "Viva Raw", result.ExtractedSupplier)
	require.Empty(t, result.ParsedData.Products, "no invoice is matched without an amount")
}

func TestProcessNotificationUnknownSupplierIsSoft(t *testing.T) {
	body := `<html><body><div style="color: #006fcf"><p>Mystery Meats</p></div><p>$5.00*</p></body></html>`
	src := &memorySource{messages: []email.Message{{ID: "notif", HTMLBody: body}}}
	svc := newTestInvoiceService(src, &fakeCatalog{}, &fakeLedger{}, &fakePurchaseStore{})

	result, err := svc.ProcessNotification(context.Background(), "notif", 0)
	require.NoError(t, err)
	require.Contains(t, result.Message, "No supplier configured")
	require.Equal(t, "Mystery Meats", result.ExtractedSupplier)
}

func TestProcessNotificationUsesLearnedProductMapping(t *testing.T) {
	src := &memorySource{messages: []email.Message{
		{ID: "notif", HTMLBody: testNotification},
		{ID: "inv", Subject: "Your Order Confirmed", HTMLBody: testInvoice},
	}}
	cat := &fakeCatalog{products: []catalog.Product{
		{ID: "p9", Name: "House Special Mix", LastPurchasePrice: 3.10},
	}}
	mappings := &memoryMappings{}
	_, err := mappings.Upsert(context.Background(), mapping.UpsertInput{
		Type: mapping.TypeEmailProduct, Source: "Turkey Blend", Target: "House Special Mix", TargetID: "p9",
	})
	require.NoError(t, err)

	svc := NewInvoiceService(src, &fixedDirectory{supplier: testSupplier()}, mappings,
		cat, &fakeLedger{}, &fakePurchaseStore{}, match.NewEngine(match.Config{}), nil)

	result, err := svc.ProcessNotification(context.Background(), "notif", 0)
	require.NoError(t, err)
	require.Len(t, result.ParsedData.Products, 1)
	require.Equal(t, "p9", result.ParsedData.Products[0].ProductID)
}

func TestCommitPurchase(t *testing.T) {
	cat := &fakeCatalog{}
	led := &fakeLedger{}
	store := &fakePurchaseStore{}
	svc := newTestInvoiceService(&memorySource{}, cat, led, store)

	results, err := svc.CommitPurchase(context.Background(), Purchase{
		SupplierID: "sup1",
		Items: []MatchedLineItem{
			{LineItem: email.LineItem{RawName: "Turkey Blend", Quantity: 4, UnitPrice: 4.00, TotalPrice: 16.00}, ProductID: "p1"},
			{LineItem: email.LineItem{RawName: "Unmatched Thing", Quantity: 1, UnitPrice: 2.00}},
		},
	})
	require.NoError(t, err)
	require.Len(t, store.saved, 1)
	require.NotEmpty(t, store.saved[0].ID)
	require.Len(t, results, 1, "unmatched items never reach the ledger")
	require.Len(t, led.calls, 1)
	require.Len(t, cat.costs, 1)
	require.InDelta(t, 4.00, cat.costs[0].UnitPrice, 0.0001)
}
