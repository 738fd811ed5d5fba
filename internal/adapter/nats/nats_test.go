package nats

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vitalis-ai/vitalis/internal/port/messagequeue"
)

// testConnect connects to NATS or skips the test if NATS_URL is not set.
func testConnect(t *testing.T) *Queue {
	t.Helper()

	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("requires NATS_URL")
	}

	q, err := Connect(context.Background(), url)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() {
		if err := q.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return q
}

// uniqueSubject returns a test subject under the "agents." prefix which the
// VITALIS stream captures (agents.>).
func uniqueSubject(t *testing.T) string {
	t.Helper()
	return "agents.test." + t.Name()
}

func TestQueue_PublishSubscribe(t *testing.T) {
	q := testConnect(t)
	subject := uniqueSubject(t)

	type payload struct {
		Msg string `json:"msg"`
	}
	want := payload{Msg: "hello-nats"}
	data, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var (
		mu       sync.Mutex
		received []payload
	)
	done := make(chan struct{})

	cancel, err := q.Subscribe(context.Background(), subject, func(_ context.Context, _ string, data []byte) error {
		var p payload
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		mu.Lock()
		received = append(received, p)
		mu.Unlock()
		close(done)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	if err := q.Publish(context.Background(), subject, data); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 || received[0] != want {
		t.Fatalf("received = %+v, want [%+v]", received, want)
	}
}

func TestQueue_SubjectConstants(t *testing.T) {
	// Every published subject must fall under a stream-captured pattern.
	subjects := []string{
		messagequeue.SubjectAgentDeployed,
		messagequeue.SubjectAgentRevised,
		messagequeue.SubjectActionTransition,
		messagequeue.SubjectApprovalRequested,
		messagequeue.SubjectApprovalResolved,
	}
	for _, s := range subjects {
		if !strings.HasPrefix(s, "agents.") && !strings.HasPrefix(s, "approvals.") {
			t.Errorf("subject %q not captured by stream patterns", s)
		}
	}
}
