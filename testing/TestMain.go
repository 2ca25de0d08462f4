package testing

import (
	"os"
	"path/filepath"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("LEDGER_TEST_MODE", "1")
		if os.Getenv("DOCUMENT_DIR") == "" {
			_ = os.Setenv("DOCUMENT_DIR", filepath.Join(os.TempDir(), "ledger-test-documents"))
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
