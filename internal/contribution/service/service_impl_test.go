package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	contributiondomain "github.com/erinfolamirukayat/theweddingplace/internal/contribution/domain"
	contributionledger "github.com/erinfolamirukayat/theweddingplace/internal/contribution/ledger"
	contributionservice "github.com/erinfolamirukayat/theweddingplace/internal/contribution/service"
	"github.com/erinfolamirukayat/theweddingplace/internal/observability/metrics"
	registryrepo "github.com/erinfolamirukayat/theweddingplace/internal/registry/repository"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeGateway struct {
	checkout    *contributiondomain.GatewayCheckout
	initErr     error
	verifyFn    func(ctx context.Context, reference string) (*contributiondomain.Verification, error)
	verifyCalls int
	sigOK       bool
	event       *contributiondomain.WebhookEvent
	parseErr    error
}

func (f *fakeGateway) Initialize(ctx context.Context, email string, amount float64, metadata contributiondomain.Metadata) (*contributiondomain.GatewayCheckout, error) {
	if f.initErr != nil {
		return nil, f.initErr
	}
	return f.checkout, nil
}

func (f *fakeGateway) Verify(ctx context.Context, reference string) (*contributiondomain.Verification, error) {
	f.verifyCalls++
	if f.verifyFn == nil {
		return nil, contributiondomain.ErrGatewayUnavailable
	}
	return f.verifyFn(ctx, reference)
}

func (f *fakeGateway) VerifyWebhookSignature(payload []byte, signature string) bool {
	return f.sigOK
}

func (f *fakeGateway) ParseWebhookEvent(payload []byte) (*contributiondomain.WebhookEvent, error) {
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	return f.event, nil
}

func (f *fakeGateway) Provider() string { return "paystack" }

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared&_busy_timeout=5000", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	// sqlite allows a single writer; serialize at the pool
	sqlDB.SetMaxOpenConns(1)

	schema := []string{
		`CREATE TABLE products (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			price BIGINT NOT NULL,
			image_url TEXT NOT NULL DEFAULT '',
			suggested_amount BIGINT NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE registries (
			id BIGINT PRIMARY KEY,
			couple_names TEXT NOT NULL,
			wedding_date DATETIME,
			story TEXT NOT NULL DEFAULT '',
			share_url TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE registry_items (
			id BIGINT PRIMARY KEY,
			registry_id BIGINT NOT NULL,
			product_id BIGINT NOT NULL,
			quantity INTEGER NOT NULL DEFAULT 1,
			contributions_received BIGINT NOT NULL DEFAULT 0,
			is_fully_funded BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE contributions (
			id BIGINT PRIMARY KEY,
			registry_item_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			amount BIGINT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			payment_reference TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_contributions_payment_reference ON contributions(payment_reference)`,
		`CREATE TABLE gateway_events (
			id BIGINT PRIMARY KEY,
			provider TEXT NOT NULL,
			event_type TEXT NOT NULL,
			reference TEXT NOT NULL,
			payload TEXT NOT NULL,
			received_at DATETIME NOT NULL,
			processed_at DATETIME
		)`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func newTestMetrics(t *testing.T) *metrics.Metrics {
	t.Helper()

	provider, err := metrics.NewProvider(nil, metrics.Config{}, nil)
	if err != nil {
		t.Fatalf("meter provider: %v", err)
	}
	m, err := metrics.New(metrics.Config{}, provider)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	return m
}

var testNodeCounter int64

func newTestNode(t *testing.T) *snowflake.Node {
	t.Helper()

	node, err := snowflake.NewNode(atomic.AddInt64(&testNodeCounter, 1) % 1024)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}

func newTestService(t *testing.T, db *gorm.DB, gw contributiondomain.Gateway) contributiondomain.Service {
	t.Helper()

	node := newTestNode(t)
	return contributionservice.NewService(contributionservice.Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Gateway:  gw,
		Ledger:   contributionledger.Provide(),
		Registry: registryrepo.Provide(),
		Metrics:  newTestMetrics(t),
	})
}

func seedRegistryItem(t *testing.T, db *gorm.DB, price int64, quantity int) snowflake.ID {
	t.Helper()

	node := newTestNode(t)
	now := time.Now().UTC()
	productID := node.Generate()
	registryID := node.Generate()
	itemID := node.Generate()

	if err := db.Exec(
		`INSERT INTO products (id, name, category, description, price, image_url, suggested_amount, created_at)
		 VALUES (?, 'Stand Mixer', 'Kitchen', '', ?, '', 0, ?)`,
		productID, price, now,
	).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if err := db.Exec(
		`INSERT INTO registries (id, couple_names, story, share_url, created_at)
		 VALUES (?, 'Ada and Emeka', '', ?, ?)`,
		registryID, fmt.Sprintf("ada-and-emeka-%s", registryID.Base36()), now,
	).Error; err != nil {
		t.Fatalf("seed registry: %v", err)
	}
	if err := db.Exec(
		`INSERT INTO registry_items (id, registry_id, product_id, quantity, contributions_received, is_fully_funded, created_at)
		 VALUES (?, ?, ?, ?, 0, FALSE, ?)`,
		itemID, registryID, productID, quantity, now,
	).Error; err != nil {
		t.Fatalf("seed registry item: %v", err)
	}
	return itemID
}

func itemTotals(t *testing.T, db *gorm.DB, itemID snowflake.ID) (int64, bool) {
	t.Helper()

	var row struct {
		ContributionsReceived int64
		IsFullyFunded         bool
	}
	if err := db.Raw(
		`SELECT contributions_received, is_fully_funded FROM registry_items WHERE id = ?`,
		itemID,
	).Scan(&row).Error; err != nil {
		t.Fatalf("read item totals: %v", err)
	}
	return row.ContributionsReceived, row.IsFullyFunded
}

func TestInitiateOpensCheckoutAndRecordsPending(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	itemID := seedRegistryItem(t, db, 1_000_000, 1)

	gw := &fakeGateway{checkout: &contributiondomain.GatewayCheckout{
		AuthorizationURL: "https://checkout.paystack.com/abc",
		AccessCode:       "abc",
		Reference:        "ref_init_1",
	}}
	svc := newTestService(t, db, gw)

	session, err := svc.Initiate(ctx, contributiondomain.InitiateRequest{
		RegistryItemID: itemID,
		Name:           "Ngozi",
		Email:          "ngozi@example.com",
		Amount:         5000,
		Message:        "Congratulations!",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if session.Reference != "ref_init_1" {
		t.Fatalf("reference = %q, want ref_init_1", session.Reference)
	}
	if session.Contribution.Status != contributiondomain.StatusInitiated {
		t.Fatalf("status = %q, want initiated", session.Contribution.Status)
	}
	if session.Contribution.Amount != 500_000 {
		t.Fatalf("amount = %d kobo, want 500000", session.Contribution.Amount)
	}

	received, funded := itemTotals(t, db, itemID)
	if received != 0 || funded {
		t.Fatalf("pending checkout must not touch totals, got received=%d funded=%v", received, funded)
	}
}

func TestInitiateValidation(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	itemID := seedRegistryItem(t, db, 1_000_000, 1)

	gw := &fakeGateway{checkout: &contributiondomain.GatewayCheckout{Reference: "r", AuthorizationURL: "u"}}
	svc := newTestService(t, db, gw)

	cases := []struct {
		name    string
		req     contributiondomain.InitiateRequest
		wantErr error
	}{
		{
			name:    "below minimum",
			req:     contributiondomain.InitiateRequest{RegistryItemID: itemID, Name: "N", Email: "n@x.com", Amount: 4999.99},
			wantErr: contributiondomain.ErrAmountBelowMinimum,
		},
		{
			name:    "exceeds remaining balance",
			req:     contributiondomain.InitiateRequest{RegistryItemID: itemID, Name: "N", Email: "n@x.com", Amount: 12_000},
			wantErr: contributiondomain.ErrAmountExceedsBalance,
		},
		{
			name:    "missing name",
			req:     contributiondomain.InitiateRequest{RegistryItemID: itemID, Email: "n@x.com", Amount: 5000},
			wantErr: contributiondomain.ErrInvalidName,
		},
		{
			name:    "bad email",
			req:     contributiondomain.InitiateRequest{RegistryItemID: itemID, Name: "N", Email: "nope", Amount: 5000},
			wantErr: contributiondomain.ErrInvalidEmail,
		},
		{
			name:    "unknown item",
			req:     contributiondomain.InitiateRequest{RegistryItemID: 987654321, Name: "N", Email: "n@x.com", Amount: 5000},
			wantErr: contributiondomain.ErrRegistryItemNotFound,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Initiate(ctx, tc.req); !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestReconcileCommitsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	itemID := seedRegistryItem(t, db, 1_000_000, 1)

	gw := &fakeGateway{}
	svc := newTestService(t, db, gw)

	meta := contributiondomain.Metadata{RegistryItemID: itemID, Name: "Ngozi", Email: "n@x.com"}
	row, err := svc.Reconcile(ctx, "ref_once", 500_000, meta)
	if err != nil {
		t.Fatalf("first reconcile: %v", err)
	}
	if row.Status != contributiondomain.StatusCompleted {
		t.Fatalf("status = %q, want completed", row.Status)
	}

	for i := 0; i < 5; i++ {
		replay, err := svc.Reconcile(ctx, "ref_once", 500_000, meta)
		if !errors.Is(err, contributiondomain.ErrAlreadyProcessed) {
			t.Fatalf("replay %d err = %v, want ErrAlreadyProcessed", i, err)
		}
		if replay == nil || replay.ID != row.ID {
			t.Fatalf("replay %d must return the committed row", i)
		}
	}

	received, _ := itemTotals(t, db, itemID)
	if received != 500_000 {
		t.Fatalf("received = %d, want 500000 after replays", received)
	}
}

func TestReconcileConcurrentSameReference(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	itemID := seedRegistryItem(t, db, 10_000_000, 1)

	svc := newTestService(t, db, &fakeGateway{})
	meta := contributiondomain.Metadata{RegistryItemID: itemID, Name: "Ngozi", Email: "n@x.com"}

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	commits := 0
	replays := 0
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.Reconcile(ctx, "ref_race", 250_000, meta)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				commits++
			case errors.Is(err, contributiondomain.ErrAlreadyProcessed):
				replays++
			default:
				t.Errorf("unexpected err: %v", err)
			}
		}()
	}
	wg.Wait()

	if commits != 1 {
		t.Fatalf("commits = %d, want exactly 1", commits)
	}
	if replays != workers-1 {
		t.Fatalf("replays = %d, want %d", replays, workers-1)
	}
	received, _ := itemTotals(t, db, itemID)
	if received != 250_000 {
		t.Fatalf("received = %d, want 250000", received)
	}
}

func TestReconcileConcurrentDistinctReferences(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	itemID := seedRegistryItem(t, db, 10_000_000, 1)

	svc := newTestService(t, db, &fakeGateway{})
	meta := contributiondomain.Metadata{RegistryItemID: itemID, Name: "Ngozi", Email: "n@x.com"}

	const workers = 6
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(n int) {
			defer wg.Done()
			if _, err := svc.Reconcile(ctx, fmt.Sprintf("ref_distinct_%d", n), 100_000, meta); err != nil {
				t.Errorf("reconcile %d: %v", n, err)
			}
		}(i)
	}
	wg.Wait()

	received, _ := itemTotals(t, db, itemID)
	if received != int64(workers)*100_000 {
		t.Fatalf("received = %d, want %d", received, workers*100_000)
	}
}

func TestFullyFundedBoundary(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	itemID := seedRegistryItem(t, db, 100_000, 1)

	svc := newTestService(t, db, &fakeGateway{})
	meta := contributiondomain.Metadata{RegistryItemID: itemID, Name: "Ngozi", Email: "n@x.com"}

	if _, err := svc.Reconcile(ctx, "ref_partial", 99_999, meta); err != nil {
		t.Fatalf("partial reconcile: %v", err)
	}
	received, funded := itemTotals(t, db, itemID)
	if received != 99_999 || funded {
		t.Fatalf("one kobo short must not fund, got received=%d funded=%v", received, funded)
	}

	if _, err := svc.Reconcile(ctx, "ref_final_kobo", 1, meta); err != nil {
		t.Fatalf("final reconcile: %v", err)
	}
	received, funded = itemTotals(t, db, itemID)
	if received != 100_000 || !funded {
		t.Fatalf("reaching target must fund, got received=%d funded=%v", received, funded)
	}
}

func TestTerminalStatesAreImmutable(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	itemID := seedRegistryItem(t, db, 1_000_000, 1)

	gw := &fakeGateway{checkout: &contributiondomain.GatewayCheckout{
		Reference: "ref_failed_first", AuthorizationURL: "u",
	}}
	svc := newTestService(t, db, gw)

	if _, err := svc.Initiate(ctx, contributiondomain.InitiateRequest{
		RegistryItemID: itemID, Name: "Ngozi", Email: "n@x.com", Amount: 5000,
	}); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if err := svc.RecordFailure(ctx, "ref_failed_first"); err != nil {
		t.Fatalf("record failure: %v", err)
	}

	// success after failure contradicts the recorded terminal state
	meta := contributiondomain.Metadata{RegistryItemID: itemID, Name: "Ngozi", Email: "n@x.com"}
	if _, err := svc.Reconcile(ctx, "ref_failed_first", 500_000, meta); !errors.Is(err, contributiondomain.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	received, _ := itemTotals(t, db, itemID)
	if received != 0 {
		t.Fatalf("failed reference must not fund, received = %d", received)
	}

	// failure after success keeps the commit
	if _, err := svc.Reconcile(ctx, "ref_success_first", 500_000, meta); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if err := svc.RecordFailure(ctx, "ref_success_first"); !errors.Is(err, contributiondomain.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	received, _ = itemTotals(t, db, itemID)
	if received != 500_000 {
		t.Fatalf("received = %d, want 500000 after late failure event", received)
	}
}

func TestConfirmByReference(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	itemID := seedRegistryItem(t, db, 10_000_000, 1)
	meta := contributiondomain.Metadata{RegistryItemID: itemID, Name: "Ngozi", Email: "n@x.com"}

	t.Run("fast path skips gateway", func(t *testing.T) {
		gw := &fakeGateway{}
		svc := newTestService(t, db, gw)
		if _, err := svc.Reconcile(ctx, "ref_fast", 500_000, meta); err != nil {
			t.Fatalf("reconcile: %v", err)
		}

		row, err := svc.ConfirmByReference(ctx, "ref_fast")
		if err != nil {
			t.Fatalf("confirm: %v", err)
		}
		if row.Status != contributiondomain.StatusCompleted {
			t.Fatalf("status = %q, want completed", row.Status)
		}
		if gw.verifyCalls != 0 {
			t.Fatalf("verify calls = %d, want 0", gw.verifyCalls)
		}
	})

	t.Run("gateway success commits", func(t *testing.T) {
		gw := &fakeGateway{verifyFn: func(ctx context.Context, reference string) (*contributiondomain.Verification, error) {
			return &contributiondomain.Verification{
				Status:    contributiondomain.VerifySucceeded,
				Reference: reference,
				Amount:    600_000,
				Metadata:  meta,
			}, nil
		}}
		svc := newTestService(t, db, gw)

		row, err := svc.ConfirmByReference(ctx, "ref_verify_ok")
		if err != nil {
			t.Fatalf("confirm: %v", err)
		}
		if row.Amount != 600_000 {
			t.Fatalf("amount = %d, want the gateway's 600000", row.Amount)
		}
	})

	t.Run("pending stays unconfirmed", func(t *testing.T) {
		gw := &fakeGateway{verifyFn: func(ctx context.Context, reference string) (*contributiondomain.Verification, error) {
			return &contributiondomain.Verification{Status: contributiondomain.VerifyPending, Reference: reference}, nil
		}}
		svc := newTestService(t, db, gw)
		if _, err := svc.ConfirmByReference(ctx, "ref_pending"); !errors.Is(err, contributiondomain.ErrUnconfirmed) {
			t.Fatalf("err = %v, want ErrUnconfirmed", err)
		}
	})

	t.Run("gateway outage is not a decline", func(t *testing.T) {
		gw := &fakeGateway{verifyFn: func(ctx context.Context, reference string) (*contributiondomain.Verification, error) {
			return nil, contributiondomain.ErrGatewayUnavailable
		}}
		svc := newTestService(t, db, gw)
		if _, err := svc.ConfirmByReference(ctx, "ref_outage"); !errors.Is(err, contributiondomain.ErrGatewayUnavailable) {
			t.Fatalf("err = %v, want ErrGatewayUnavailable", err)
		}

		var status string
		db.Raw(`SELECT status FROM contributions WHERE payment_reference = ?`, "ref_outage").Scan(&status)
		if status != "" {
			t.Fatalf("outage must not write rows, found status %q", status)
		}
	})

	t.Run("declined marks failure", func(t *testing.T) {
		gw := &fakeGateway{
			checkout: &contributiondomain.GatewayCheckout{Reference: "ref_declined", AuthorizationURL: "u"},
			verifyFn: func(ctx context.Context, reference string) (*contributiondomain.Verification, error) {
				return &contributiondomain.Verification{Status: contributiondomain.VerifyFailed, Reference: reference}, nil
			},
		}
		svc := newTestService(t, db, gw)
		if _, err := svc.Initiate(ctx, contributiondomain.InitiateRequest{
			RegistryItemID: itemID, Name: "Ngozi", Email: "n@x.com", Amount: 5000,
		}); err != nil {
			t.Fatalf("initiate: %v", err)
		}

		if _, err := svc.ConfirmByReference(ctx, "ref_declined"); !errors.Is(err, contributiondomain.ErrPaymentDeclined) {
			t.Fatalf("err = %v, want ErrPaymentDeclined", err)
		}
		var status string
		db.Raw(`SELECT status FROM contributions WHERE payment_reference = ?`, "ref_declined").Scan(&status)
		if status != string(contributiondomain.StatusFailed) {
			t.Fatalf("status = %q, want failed", status)
		}
	})
}

func TestIngestWebhook(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	itemID := seedRegistryItem(t, db, 10_000_000, 1)
	meta := contributiondomain.Metadata{RegistryItemID: itemID, Name: "Ngozi", Email: "n@x.com"}
	payload := []byte(`{"event":"charge.success","data":{"reference":"ref_hook","amount":500000}}`)

	t.Run("signature gate", func(t *testing.T) {
		gw := &fakeGateway{sigOK: false, event: &contributiondomain.WebhookEvent{
			Type: contributiondomain.EventChargeSuccess, Reference: "ref_hook", Amount: 500_000, Metadata: meta,
		}}
		svc := newTestService(t, db, gw)

		if err := svc.IngestWebhook(ctx, payload, "bad"); !errors.Is(err, contributiondomain.ErrInvalidSignature) {
			t.Fatalf("err = %v, want ErrInvalidSignature", err)
		}
		var count int64
		db.Raw(`SELECT COUNT(*) FROM gateway_events`).Scan(&count)
		if count != 0 {
			t.Fatalf("rejected payload must not be recorded, found %d events", count)
		}
		received, _ := itemTotals(t, db, itemID)
		if received != 0 {
			t.Fatalf("rejected payload must not fund, received = %d", received)
		}
	})

	t.Run("success event commits without prior row", func(t *testing.T) {
		gw := &fakeGateway{sigOK: true, event: &contributiondomain.WebhookEvent{
			Type: contributiondomain.EventChargeSuccess, Reference: "ref_hook", Amount: 500_000, Metadata: meta,
		}}
		svc := newTestService(t, db, gw)

		if err := svc.IngestWebhook(ctx, payload, "good"); err != nil {
			t.Fatalf("ingest: %v", err)
		}
		received, _ := itemTotals(t, db, itemID)
		if received != 500_000 {
			t.Fatalf("received = %d, want 500000", received)
		}

		var processed int64
		db.Raw(`SELECT COUNT(*) FROM gateway_events WHERE reference = ? AND processed_at IS NOT NULL`, "ref_hook").Scan(&processed)
		if processed != 1 {
			t.Fatalf("processed events = %d, want 1", processed)
		}
	})

	t.Run("redelivery is acknowledged once committed", func(t *testing.T) {
		gw := &fakeGateway{sigOK: true, event: &contributiondomain.WebhookEvent{
			Type: contributiondomain.EventChargeSuccess, Reference: "ref_hook", Amount: 500_000, Metadata: meta,
		}}
		svc := newTestService(t, db, gw)

		if err := svc.IngestWebhook(ctx, payload, "good"); err != nil {
			t.Fatalf("redelivery: %v", err)
		}
		received, _ := itemTotals(t, db, itemID)
		if received != 500_000 {
			t.Fatalf("redelivery must not double fund, received = %d", received)
		}
	})

	t.Run("ignored event types", func(t *testing.T) {
		gw := &fakeGateway{sigOK: true, parseErr: contributiondomain.ErrEventIgnored}
		svc := newTestService(t, db, gw)
		err := svc.IngestWebhook(ctx, []byte(`{"event":"transfer.success"}`), "good")
		if !errors.Is(err, contributiondomain.ErrEventIgnored) {
			t.Fatalf("err = %v, want ErrEventIgnored", err)
		}
	})

	t.Run("failure event settles pending row", func(t *testing.T) {
		checkoutGW := &fakeGateway{checkout: &contributiondomain.GatewayCheckout{
			Reference: "ref_hook_fail", AuthorizationURL: "u",
		}}
		svc := newTestService(t, db, checkoutGW)
		if _, err := svc.Initiate(ctx, contributiondomain.InitiateRequest{
			RegistryItemID: itemID, Name: "Ngozi", Email: "n@x.com", Amount: 5000,
		}); err != nil {
			t.Fatalf("initiate: %v", err)
		}

		gw := &fakeGateway{sigOK: true, event: &contributiondomain.WebhookEvent{
			Type: contributiondomain.EventChargeFailed, Reference: "ref_hook_fail",
		}}
		svc = newTestService(t, db, gw)
		if err := svc.IngestWebhook(ctx, []byte(`{"event":"charge.failed","data":{"reference":"ref_hook_fail"}}`), "good"); err != nil {
			t.Fatalf("ingest: %v", err)
		}

		var status string
		db.Raw(`SELECT status FROM contributions WHERE payment_reference = ?`, "ref_hook_fail").Scan(&status)
		if status != string(contributiondomain.StatusFailed) {
			t.Fatalf("status = %q, want failed", status)
		}
	})

	t.Run("success event for a failed reference is settled", func(t *testing.T) {
		gw := &fakeGateway{sigOK: true, event: &contributiondomain.WebhookEvent{
			Type: contributiondomain.EventChargeSuccess, Reference: "ref_hook_fail", Amount: 500_000, Metadata: meta,
		}}
		svc := newTestService(t, db, gw)

		// the gateway redelivers until it sees a 2xx, so a contradictory
		// event must be swallowed after logging, not surfaced
		if err := svc.IngestWebhook(ctx, []byte(`{"event":"charge.success","data":{"reference":"ref_hook_fail"}}`), "good"); err != nil {
			t.Fatalf("ingest: %v", err)
		}

		var status string
		db.Raw(`SELECT status FROM contributions WHERE payment_reference = ?`, "ref_hook_fail").Scan(&status)
		if status != string(contributiondomain.StatusFailed) {
			t.Fatalf("status = %q, want failed to stay terminal", status)
		}
		received, _ := itemTotals(t, db, itemID)
		if received != 500_000 {
			t.Fatalf("conflicting event must not fund, received = %d", received)
		}
		var processed int64
		db.Raw(`SELECT COUNT(*) FROM gateway_events WHERE reference = ? AND processed_at IS NOT NULL`, "ref_hook_fail").Scan(&processed)
		if processed != 1 {
			t.Fatalf("processed events = %d, want 1", processed)
		}
	})

	t.Run("success event without registry metadata is settled", func(t *testing.T) {
		gw := &fakeGateway{sigOK: true, event: &contributiondomain.WebhookEvent{
			Type: contributiondomain.EventChargeSuccess, Reference: "ref_hook_meta", Amount: 500_000,
		}}
		svc := newTestService(t, db, gw)

		if err := svc.IngestWebhook(ctx, []byte(`{"event":"charge.success","data":{"reference":"ref_hook_meta"}}`), "good"); err != nil {
			t.Fatalf("ingest: %v", err)
		}

		var count int64
		db.Raw(`SELECT COUNT(*) FROM contributions WHERE payment_reference = ?`, "ref_hook_meta").Scan(&count)
		if count != 0 {
			t.Fatalf("unattributable event must not write a contribution, found %d", count)
		}
		var processed int64
		db.Raw(`SELECT COUNT(*) FROM gateway_events WHERE reference = ? AND processed_at IS NOT NULL`, "ref_hook_meta").Scan(&processed)
		if processed != 1 {
			t.Fatalf("processed events = %d, want 1", processed)
		}
	})
}

func TestHistoryListsContributions(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	itemID := seedRegistryItem(t, db, 10_000_000, 1)

	svc := newTestService(t, db, &fakeGateway{})
	meta := contributiondomain.Metadata{RegistryItemID: itemID, Name: "Ngozi", Email: "n@x.com"}

	for i := 0; i < 3; i++ {
		if _, err := svc.Reconcile(ctx, fmt.Sprintf("ref_history_%d", i), 100_000, meta); err != nil {
			t.Fatalf("reconcile %d: %v", i, err)
		}
	}

	rows, err := svc.History(ctx, itemID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("history rows = %d, want 3", len(rows))
	}
	for _, row := range rows {
		if row.Status != contributiondomain.StatusCompleted {
			t.Fatalf("history row %s status = %q, want completed", row.PaymentReference, row.Status)
		}
	}
}
