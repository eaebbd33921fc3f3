package mongo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xecure-ai/alex-sub000/internal/job"
)

var (
	testMongoClient    *mongodriver.Client
	testMongoContainer testcontainers.Container
	skipMongoTests     bool
)

func setupMongoDB() {
	ctx := context.Background()

	var containerErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				containerErr = fmt.Errorf("docker not available: %v", r)
			}
		}()
		req := testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForLog("Waiting for connections"),
			Tmpfs:        map[string]string{"/data/db": "rw"},
		}
		testMongoContainer, containerErr = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
	}()

	if containerErr != nil {
		skipMongoTests = true
		return
	}

	host, err := testMongoContainer.Host(ctx)
	if err != nil {
		skipMongoTests = true
		return
	}
	port, err := testMongoContainer.MappedPort(ctx, "27017")
	if err != nil {
		skipMongoTests = true
		return
	}

	uri := fmt.Sprintf("mongodb://%s:%s", host, port.Port())
	testMongoClient, err = mongodriver.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		skipMongoTests = true
		return
	}
	if err := testMongoClient.Ping(ctx, nil); err != nil {
		skipMongoTests = true
		return
	}
}

func getStore(t *testing.T) *Store {
	t.Helper()
	if testMongoClient == nil && !skipMongoTests {
		setupMongoDB()
	}
	if skipMongoTests {
		t.Skip("Docker not available, skipping MongoDB integration test")
	}
	store, err := NewStoreFromMongo(Options{
		Client:   testMongoClient,
		Database: "alex_test",
		// One collection per test keeps concurrent test runs isolated.
		Collection: t.Name(),
	})
	if err != nil {
		t.Fatalf("NewStoreFromMongo() error = %v", err)
	}
	return store
}

// TestJobLifecyclePersistsAcrossStoreRecreation exercises the full
// pending -> running -> completed transition plus a slot write against a
// real MongoDB instance, then rebuilds the Store to confirm the record
// persisted rather than living only in process memory.
func TestJobLifecyclePersistsAcrossStoreRecreation(t *testing.T) {
	store := getStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	jobID, err := store.CreateJob(ctx, "user-1", job.KindPortfolioAnalysis, job.RequestPayload{
		Accounts: []job.Account{{Name: "brokerage", Positions: []job.Position{{Symbol: "VTI", Quantity: 10}}}},
	})
	if err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}

	if err := store.UpdateStatus(ctx, jobID, job.StatusRunning, ""); err != nil {
		t.Fatalf("UpdateStatus(running) error = %v", err)
	}
	report := "# Summary\nLooks diversified."
	if err := store.SetSlot(ctx, jobID, job.SlotReport, report); err != nil {
		t.Fatalf("SetSlot(report) error = %v", err)
	}
	if err := store.UpdateStatus(ctx, jobID, job.StatusCompleted, ""); err != nil {
		t.Fatalf("UpdateStatus(completed) error = %v", err)
	}

	reopened, err := NewStore(store.client)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	rec, err := reopened.GetJob(ctx, jobID)
	if err != nil {
		t.Fatalf("GetJob() after reopen error = %v", err)
	}
	if rec.Status != job.StatusCompleted {
		t.Errorf("Status = %v, want completed", rec.Status)
	}
	if rec.Report == nil || *rec.Report != report {
		t.Errorf("Report = %v, want %q", rec.Report, report)
	}
}

// TestUpdateStatusRejectsInvalidTransition confirms the status guard holds
// against a live MongoDB findOneAndUpdate, not just the in-memory fake.
func TestUpdateStatusRejectsInvalidTransition(t *testing.T) {
	store := getStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	jobID, err := store.CreateJob(ctx, "user-1", job.KindPortfolioAnalysis, job.RequestPayload{})
	if err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}

	if err := store.UpdateStatus(ctx, jobID, job.StatusCompleted, ""); err == nil {
		t.Fatal("UpdateStatus(pending -> completed) error = nil, want ErrInvalidTransition")
	}
}
