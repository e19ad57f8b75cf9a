package bot

import (
	"testing"
	"time"

	"github.com/BTreeMap/HabitPipe/internal/store"
)

func TestOptionsApply(t *testing.T) {
	var cfg Opts
	for _, opt := range []Option{
		WithTransport(TransportTwilio),
		WithAddr(":9090"),
		WithOpenAIKey("sk-test"),
		WithStateTTL(30 * time.Minute),
	} {
		opt(&cfg)
	}

	if cfg.Transport != TransportTwilio || cfg.Addr != ":9090" || cfg.OpenAIKey != "sk-test" || cfg.StateTTL != 30*time.Minute {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestBuildStoreDefaultsToInMemory(t *testing.T) {
	st, err := buildStore(nil)
	if err != nil {
		t.Fatalf("buildStore failed: %v", err)
	}
	defer st.Close()

	if _, ok := st.(*store.InMemoryStore); !ok {
		t.Errorf("expected in-memory store, got %T", st)
	}
}

func TestBuildStoreSQLite(t *testing.T) {
	path := t.TempDir() + "/habits.db"
	st, err := buildStore([]store.Option{store.WithSQLiteDSN(path)})
	if err != nil {
		t.Fatalf("buildStore failed: %v", err)
	}
	defer st.Close()

	if _, ok := st.(*store.SQLiteStore); !ok {
		t.Errorf("expected SQLite store, got %T", st)
	}
}

func TestBuildTransportRejectsUnknown(t *testing.T) {
	if _, _, err := buildTransport("carrier-pigeon", nil, nil); err == nil {
		t.Error("expected an error for an unknown transport")
	}
}
