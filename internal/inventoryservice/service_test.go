package inventoryservice_test

import (
	"bytes"
	"context"
	"errors"
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/settings"
	"github.com/starford/sowilo/internal/testutil"
	"github.com/starford/sowilo/internal/testutil/servicetest"
)

func loaded(t *testing.T, movies ...string) *servicetest.Harness {
	t.Helper()
	h := servicetest.New(t, nil)
	h.Inventory.Serve(servicetest.InventoryHTML(movies...))
	if err := h.Service.Refresh(context.Background(), false); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	return h
}

func TestService_SheetsAndTotals(t *testing.T) {
	h := loaded(t, "alien")
	ctx := context.Background()

	views, err := h.Service.Sheets(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 2 || views[0].SheetName != "Movies" || views[1].DisplayName != "Music" {
		t.Fatalf("views = %+v", views)
	}
	if views[0].Records != 1 || views[0].Size != 600 || views[0].SizeUnit != "GB" {
		t.Errorf("movies view = %+v", views[0])
	}

	tot := h.Service.Totals()
	if tot.Records != 2 || tot.Sheets != 2 || tot.SizeUnit != "TB" || math.Abs(tot.Size-1.1) > 1e-9 {
		t.Errorf("totals = %+v", tot)
	}
}

func TestService_FeedReplacedPerPass(t *testing.T) {
	h := loaded(t, "alien", "brazil")
	ctx := context.Background()

	changes := h.Service.Changes()
	if len(changes) != 3 {
		t.Fatalf("first pass changes = %d, want 3 added", len(changes))
	}
	for _, c := range changes {
		if c.Kind != models.ChangeAdded {
			t.Errorf("change = %+v", c)
		}
	}

	h.Inventory.Serve(servicetest.InventoryHTML("alien"))
	if err := h.Service.Refresh(ctx, false); err != nil {
		t.Fatal(err)
	}
	changes = h.Service.Changes()
	if len(changes) != 1 || changes[0].Kind != models.ChangeRemoved || changes[0].Key != "/media/movies/brazil" {
		t.Fatalf("second pass = %+v", changes)
	}

	if err := h.Service.DismissChange(changes[0].ID); err != nil {
		t.Fatal(err)
	}
	if err := h.Service.DismissChange("missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("dismiss missing = %v", err)
	}

	// An unchanged fetch leaves an empty feed.
	if err := h.Service.Refresh(ctx, false); err != nil {
		t.Fatal(err)
	}
	if n := len(h.Service.Changes()); n != 0 {
		t.Errorf("unchanged pass left %d events", n)
	}
}

func TestService_RenameAndReorder(t *testing.T) {
	h := loaded(t, "alien")
	ctx := context.Background()

	if err := h.Service.RenameSheet(ctx, "Music", "Albums"); err != nil {
		t.Fatal(err)
	}
	if err := h.Service.ReorderSheets(ctx, []string{"Music"}); err != nil {
		t.Fatal(err)
	}

	views, _ := h.Service.Sheets(ctx)
	if views[0].SheetName != "Music" || views[0].DisplayName != "Albums" || views[0].Position != 0 {
		t.Errorf("first = %+v", views[0])
	}
	if views[1].SheetName != "Movies" || views[1].Position != 1 {
		t.Errorf("second = %+v", views[1])
	}

	if err := h.Service.RenameSheet(ctx, "Nope", "x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("rename unknown = %v", err)
	}
	var ve *apperr.ValidationError
	if err := h.Service.ReorderSheets(ctx, []string{"Music", "Music"}); !errors.As(err, &ve) {
		t.Errorf("duplicate order = %v", err)
	}

	detail, err := h.Service.Sheet(ctx, "Music")
	if err != nil || detail.DisplayName != "Albums" || len(detail.Items) != 1 {
		t.Errorf("detail = %+v, %v", detail, err)
	}
	if _, err := h.Service.Sheet(ctx, "Nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("sheet unknown = %v", err)
	}
}

func TestService_FilterSorted(t *testing.T) {
	h := loaded(t, "alpha", "gamma", "beta")
	ctx := context.Background()

	res, err := h.Service.Filter(ctx, "movies", "name", "desc")
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 1 || len(res[0].Records) != 3 {
		t.Fatalf("results = %+v", res)
	}
	if res[0].Records[0].Name != "gamma" || res[0].Records[2].Name != "alpha" {
		t.Errorf("order = %+v", res[0].Records)
	}

	if _, err := h.Service.Filter(ctx, "movies", "colour", ""); err == nil {
		t.Error("unknown sort field should fail")
	}
	if res, _ := h.Service.Filter(ctx, "", "", ""); len(res) != 0 {
		t.Errorf("empty query = %+v", res)
	}
}

func TestService_RefreshInterval(t *testing.T) {
	h := servicetest.New(t, nil)
	ctx := context.Background()

	if err := h.Service.SetAutoRefreshInterval(ctx, 90); err != nil {
		t.Fatal(err)
	}
	if h.Service.RefreshInterval() != 90 || h.Scheduler.Interval() != 90*time.Second {
		t.Errorf("interval = %d", h.Service.RefreshInterval())
	}
	n, ok, err := h.Prefs.Int(ctx, settings.KeyRefreshInterval)
	if err != nil || !ok || n != 90 {
		t.Errorf("persisted = (%d, %v, %v)", n, ok, err)
	}

	var ve *apperr.ValidationError
	if err := h.Service.SetAutoRefreshInterval(ctx, -1); !errors.As(err, &ve) {
		t.Errorf("negative = %v", err)
	}
}

func TestService_ScheduledTickRefreshes(t *testing.T) {
	h := servicetest.New(t, nil)
	h.Inventory.Serve(servicetest.InventoryHTML("alien"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.Scheduler.Run(ctx) }()

	if err := h.Scheduler.SetInterval(20 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	testutil.Eventually(t, 2*time.Second, 10*time.Millisecond, func() bool {
		return h.Service.Totals().Records == 2
	}, "scheduled refresh never installed a snapshot")
}

func TestService_Accounts(t *testing.T) {
	h := loaded(t, "alien")
	ctx := context.Background()

	h.Accounts.Serve(testutil.PublishedHTML(nil, testutil.Sheet{Tab: "Users", Rows: [][]string{
		testutil.Header,
		testutil.Row("/home/ana", "ana", "", "", ""),
	}}))
	if err := h.Service.SetAccountSourceURL(ctx, h.Accounts.URL()); err != nil {
		t.Fatal(err)
	}

	acc := h.Service.Accounts()
	if len(acc) != 1 || acc[0].SheetName != "Users" || len(acc[0].Records) != 1 {
		t.Errorf("accounts = %+v", acc)
	}
	if h.Service.Totals().Accounts != 1 {
		t.Errorf("totals.accounts = %d", h.Service.Totals().Accounts)
	}
	// The account source is not reconciled into the change feed.
	for _, c := range h.Service.Changes() {
		if c.Key == "/home/ana" {
			t.Errorf("account record leaked into feed: %+v", c)
		}
	}
}

func TestService_SourcesFetchIndependently(t *testing.T) {
	h := servicetest.New(t, nil)
	ctx := context.Background()
	h.Inventory.Serve(servicetest.InventoryHTML("alien"))
	h.Accounts.Serve(testutil.PublishedHTML(nil, testutil.Sheet{Tab: "Users", Rows: [][]string{
		testutil.Header,
		testutil.Row("/home/ana", "ana", "", "", ""),
	}}))

	entered, release := h.Inventory.Hold()
	defer release()
	errc := make(chan error, 1)
	go func() { errc <- h.Service.Refresh(ctx, false) }()
	<-entered

	if !h.Service.Inventory().Fetching() {
		t.Fatal("inventory should be fetching")
	}
	if h.Service.AccountsController().Fetching() {
		t.Error("accounts must not share the inventory fetching state")
	}
	if err := h.Service.SetAccountSourceURL(ctx, h.Accounts.URL()); err != nil {
		t.Fatalf("SetAccountSourceURL while inventory busy = %v", err)
	}
	if err := h.Service.RefreshAccounts(ctx, true); err != nil {
		t.Fatalf("RefreshAccounts while inventory busy = %v", err)
	}
	if acc := h.Service.Accounts(); len(acc) != 1 || len(acc[0].Records) != 1 {
		t.Errorf("accounts = %+v", acc)
	}
	if !h.Service.Inventory().Fetching() {
		t.Error("inventory fetch should still be in progress")
	}

	release()
	if err := <-errc; err != nil {
		t.Fatal(err)
	}
	if h.Service.Totals().Records != 2 {
		t.Errorf("inventory records = %d", h.Service.Totals().Records)
	}
}

func TestService_StatusAfterFailure(t *testing.T) {
	h := loaded(t, "alien")
	h.Inventory.Fail(http.StatusServiceUnavailable)

	err := h.Service.Refresh(context.Background(), true)
	var ne *apperr.NetworkError
	if !errors.As(err, &ne) || ne.Status != http.StatusServiceUnavailable {
		t.Fatalf("err = %v", err)
	}
	st := h.Service.Status()
	if st.Inventory.Error == "" || st.Inventory.Records != 2 || st.Accounts == nil {
		t.Errorf("status = %+v", st)
	}
}

func TestService_ExportUsesDisplayNames(t *testing.T) {
	h := loaded(t, "alien")
	ctx := context.Background()
	if err := h.Service.RenameSheet(ctx, "Movies", "Films"); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := h.Service.ExportXLSX(ctx, &buf); err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if list := f.GetSheetList(); len(list) != 2 || list[0] != "Films" || list[1] != "Music" {
		t.Errorf("sheets = %q", list)
	}
}
