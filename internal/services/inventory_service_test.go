package services_test

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	"sweetshop/internal/domain"
	"sweetshop/internal/repos"
	"sweetshop/internal/services"
	"sweetshop/internal/validate"
)

func memInventory(t *testing.T) *services.InventoryService {
	t.Helper()
	db, err := repos.OpenDB("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return services.NewInventoryService(repos.NewSweetRepo(db))
}

func mustCreate(t *testing.T, svc *services.InventoryService, name, cat string, price float64, qty int) domain.Sweet {
	t.Helper()
	sw, err := svc.Create(context.Background(), services.CreateSweetInput{Name: name, Category: cat, Price: price, Quantity: qty})
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	return sw
}

func intp(n int) *int           { return &n }
func floatp(f float64) *float64 { return &f }
func strp(s string) *string     { return &s }

func TestInventoryService_Create(t *testing.T) {
	svc := memInventory(t)
	ctx := context.Background()

	sw := mustCreate(t, svc, "  Kaju Katli ", " Indian ", 30, 10)
	if sw.Name != "Kaju Katli" || sw.Category != "Indian" || sw.Quantity != 10 {
		t.Fatalf("unexpected sweet %+v", sw)
	}
	if _, err := uuid.Parse(sw.ID); err != nil {
		t.Fatalf("id is not a uuid: %q", sw.ID)
	}
	if sw.CreatedAt.IsZero() {
		t.Fatal("createdAt not set")
	}

	bad := []services.CreateSweetInput{
		{Name: "", Price: 1, Quantity: 1},
		{Name: "   ", Price: 1, Quantity: 1},
		{Name: "Ladoo", Price: -1, Quantity: 1},
		{Name: "Ladoo", Price: 1, Quantity: -1},
	}
	for _, in := range bad {
		if _, err := svc.Create(ctx, in); !errors.Is(err, services.ErrInvalidSweet) {
			t.Errorf("%+v: want ErrInvalidSweet, got %v", in, err)
		}
	}
}

func TestInventoryService_ListAndSearch(t *testing.T) {
	svc := memInventory(t)
	ctx := context.Background()

	empty, err := svc.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("empty catalog: want non-nil empty slice, got %#v", empty)
	}

	mustCreate(t, svc, "Gulab Jamun", "Indian", 10, 50)
	choc := mustCreate(t, svc, "Dark Chocolate", "Chocolate", 20, 5)

	all, err := svc.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].ID != choc.ID {
		t.Fatalf("want newest first, got %+v", all)
	}

	got, err := svc.Search(ctx, domain.SearchFilter{Name: "  choc  "})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != choc.ID {
		t.Fatalf("name search: got %+v", got)
	}

	got, err = svc.Search(ctx, domain.SearchFilter{MinPrice: floatp(100)})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("price search: want none, got %+v", got)
	}
}

func TestInventoryService_SearchBounds(t *testing.T) {
	svc := memInventory(t)
	ctx := context.Background()
	ten := mustCreate(t, svc, "Barfi", "Indian", 10, 5)
	mustCreate(t, svc, "Fudge", "British", 20, 5)

	got, err := svc.Search(ctx, domain.SearchFilter{MinPrice: floatp(-5), MaxPrice: floatp(15)})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != ten.ID {
		t.Fatalf("negative lower bound: got %+v", got)
	}

	got, err = svc.Search(ctx, domain.SearchFilter{MinPrice: floatp(-5)})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("negative lower bound alone: want both, got %+v", got)
	}

	long := strings.Repeat("é", validate.MaxTermLen+1)
	for _, f := range []domain.SearchFilter{{Name: long}, {Category: long}} {
		if _, err := svc.Search(ctx, f); !errors.Is(err, services.ErrInvalidFilter) {
			t.Errorf("overlong term: want ErrInvalidFilter, got %v", err)
		}
	}
	if _, err := svc.Search(ctx, domain.SearchFilter{Name: strings.Repeat("é", validate.MaxTermLen)}); err != nil {
		t.Errorf("term at the limit: %v", err)
	}
}

func TestInventoryService_SearchAccentedName(t *testing.T) {
	svc := memInventory(t)
	ctx := context.Background()
	sw := mustCreate(t, svc, "Crème Brûlée", "Français", 12, 3)
	mustCreate(t, svc, "Creme Egg", "British", 1, 3)

	for _, f := range []domain.SearchFilter{{Name: "CRÈME"}, {Name: "brûlée"}, {Category: "FRANÇAIS"}} {
		got, err := svc.Search(ctx, f)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].ID != sw.ID {
			t.Errorf("%+v: got %+v", f, got)
		}
	}
}

func TestInventoryService_NameLengthMessage(t *testing.T) {
	svc := memInventory(t)
	ctx := context.Background()
	long := strings.Repeat("a", validate.MaxNameLen+1)
	limit := strconv.Itoa(validate.MaxNameLen)

	_, err := svc.Create(ctx, services.CreateSweetInput{Name: long, Price: 1, Quantity: 1})
	if !errors.Is(err, services.ErrInvalidSweet) || !strings.Contains(err.Error(), limit) {
		t.Fatalf("create: want ErrInvalidSweet naming the limit, got %v", err)
	}

	sw := mustCreate(t, svc, "Peda", "Indian", 5, 5)
	_, err = svc.Update(ctx, sw.ID, domain.SweetPatch{Name: strp(long)})
	if !errors.Is(err, services.ErrInvalidSweet) || !strings.Contains(err.Error(), limit) {
		t.Fatalf("update: want ErrInvalidSweet naming the limit, got %v", err)
	}
	mustCreate(t, svc, strings.Repeat("b", validate.MaxNameLen), "", 1, 1)
}

func TestInventoryService_Update(t *testing.T) {
	svc := memInventory(t)
	ctx := context.Background()
	sw := mustCreate(t, svc, "Ladoo", "Indian", 15, 40)

	got, err := svc.Update(ctx, sw.ID, domain.SweetPatch{Price: floatp(20), Quantity: intp(60)})
	if err != nil {
		t.Fatal(err)
	}
	if got.Price != 20 || got.Quantity != 60 || got.Name != "Ladoo" {
		t.Fatalf("unexpected patch result %+v", got)
	}

	if _, err := svc.Update(ctx, sw.ID, domain.SweetPatch{Name: strp(" ")}); !errors.Is(err, services.ErrInvalidSweet) {
		t.Fatalf("blank name: want ErrInvalidSweet, got %v", err)
	}
	if _, err := svc.Update(ctx, sw.ID, domain.SweetPatch{Quantity: intp(-3)}); !errors.Is(err, services.ErrInvalidSweet) {
		t.Fatalf("negative qty: want ErrInvalidSweet, got %v", err)
	}
	if _, err := svc.Update(ctx, "not-an-id", domain.SweetPatch{}); !errors.Is(err, services.ErrInvalidID) {
		t.Fatalf("bad id: want ErrInvalidID, got %v", err)
	}
	if _, err := svc.Update(ctx, uuid.NewString(), domain.SweetPatch{Price: floatp(1)}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("missing: want ErrNotFound, got %v", err)
	}
}

func TestInventoryService_Delete(t *testing.T) {
	svc := memInventory(t)
	ctx := context.Background()
	sw := mustCreate(t, svc, "Jalebi", "Indian", 4, 0)

	if err := svc.Delete(ctx, sw.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(ctx, sw.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("second delete: want ErrNotFound, got %v", err)
	}
	if err := svc.Delete(ctx, "123"); !errors.Is(err, services.ErrInvalidID) {
		t.Fatalf("bad id: want ErrInvalidID, got %v", err)
	}
}

func TestInventoryService_PurchaseAndRestock(t *testing.T) {
	svc := memInventory(t)
	ctx := context.Background()
	sw := mustCreate(t, svc, "Kaju Katli", "Indian", 30, 1)

	got, err := svc.Purchase(ctx, sw.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Quantity != 0 {
		t.Fatalf("want 0 left, got %d", got.Quantity)
	}
	if _, err := svc.Purchase(ctx, sw.ID); !errors.Is(err, services.ErrOutOfStock) {
		t.Fatalf("want ErrOutOfStock, got %v", err)
	}

	for _, amt := range []*int{nil, intp(0), intp(-5)} {
		if _, err := svc.Restock(ctx, sw.ID, amt); !errors.Is(err, services.ErrInvalidQuantity) {
			t.Errorf("restock %v: want ErrInvalidQuantity, got %v", amt, err)
		}
	}
	got, err = svc.Restock(ctx, sw.ID, intp(5))
	if err != nil {
		t.Fatal(err)
	}
	if got.Quantity != 5 {
		t.Fatalf("want 5 after restock, got %d", got.Quantity)
	}

	if _, err := svc.Purchase(ctx, uuid.NewString()); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("missing: want ErrNotFound, got %v", err)
	}
	if _, err := svc.Restock(ctx, uuid.NewString(), intp(1)); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("missing: want ErrNotFound, got %v", err)
	}
	if _, err := svc.Purchase(ctx, "abc"); !errors.Is(err, services.ErrInvalidID) {
		t.Fatalf("bad id: want ErrInvalidID, got %v", err)
	}
}

func TestInventoryService_ConcurrentPurchaseNeverOversells(t *testing.T) {
	svc := memInventory(t)
	const stock, buyers = 3, 25
	sw := mustCreate(t, svc, "Rasgulla", "Indian", 8, stock)

	var ok, out atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Purchase(context.Background(), sw.ID)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, services.ErrOutOfStock):
				out.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok.Load() != stock || out.Load() != buyers-stock {
		t.Fatalf("want %d sold and %d rejected, got %d and %d", stock, buyers-stock, ok.Load(), out.Load())
	}
	list, err := svc.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if list[0].Quantity != 0 {
		t.Fatalf("want 0 left, got %d", list[0].Quantity)
	}
}

// brokenStore fails every call the way an unreachable database would.
type brokenStore struct{ err error }

func (b brokenStore) Insert(context.Context, domain.Sweet) error { return b.err }
func (b brokenStore) Get(context.Context, string) (domain.Sweet, error) {
	return domain.Sweet{}, b.err
}
func (b brokenStore) Query(context.Context, domain.SearchFilter) ([]domain.Sweet, error) {
	return nil, b.err
}
func (b brokenStore) Patch(context.Context, string, domain.SweetPatch) (domain.Sweet, error) {
	return domain.Sweet{}, b.err
}
func (b brokenStore) DecrementIfPositive(context.Context, string) (domain.Sweet, error) {
	return domain.Sweet{}, b.err
}
func (b brokenStore) Increment(context.Context, string, int) (domain.Sweet, error) {
	return domain.Sweet{}, b.err
}
func (b brokenStore) Delete(context.Context, string) error { return b.err }

func TestInventoryService_StoreFailureIsWrapped(t *testing.T) {
	cause := errors.New("connection refused")
	svc := services.NewInventoryService(brokenStore{err: cause})
	ctx := context.Background()
	id := uuid.NewString()

	checks := map[string]error{}
	_, checks["create"] = svc.Create(ctx, services.CreateSweetInput{Name: "x", Price: 1})
	_, checks["list"] = svc.List(ctx)
	_, checks["update"] = svc.Update(ctx, id, domain.SweetPatch{Price: floatp(1)})
	checks["delete"] = svc.Delete(ctx, id)
	_, checks["purchase"] = svc.Purchase(ctx, id)
	_, checks["restock"] = svc.Restock(ctx, id, intp(1))

	for op, err := range checks {
		if !errors.Is(err, cause) {
			t.Errorf("%s: want wrapped store error, got %v", op, err)
		}
		for _, domainErr := range []error{services.ErrNotFound, services.ErrOutOfStock, services.ErrInvalidID} {
			if errors.Is(err, domainErr) {
				t.Errorf("%s: store failure reported as %v", op, domainErr)
			}
		}
	}
}
