package mongostore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dkeye/Huddle/internal/adapters/store/storetest"
	"github.com/stretchr/testify/require"
)

// Requires a reachable MongoDB; set MEET_TEST_MONGO_URI to run.
func TestStoreIntegration(t *testing.T) {
	uri := os.Getenv("MEET_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("MEET_TEST_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := "huddle_test_" + time.Now().Format("20060102150405")
	s, err := Open(ctx, uri, db)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.client.Database(db).Drop(context.Background())
		_ = s.Close(context.Background())
	})

	storetest.Run(t, s)
}
