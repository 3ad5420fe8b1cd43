package threads

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salchaD-27/pipeline-check/internal/config"
	"github.com/salchaD-27/pipeline-check/internal/finding"
)

func TestThreadSafety(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		flagged bool
	}{
		{"executor_without_lock", "test_pool.py", "from concurrent.futures import ThreadPoolExecutor\n", true},
		{"threading_without_lock", "test_worker.py", "import threading\nthreading.Thread(target=run).start()\n", true},
		{"threading_with_lock", "test_worker.py", "import threading\nmu = threading.Lock()\n", false},
		{"lowercase_lock_counts", "test_worker.py", "import threading\nwith self.lock:\n    pass\n", false},
		{"no_threads", "test_plain.py", "def test_ok():\n    assert True\n", false},
		{"not_a_test_file", "worker.py", "import threading\n", false},
		{"unparsable_is_still_checked", "test_broken.py", "import threading\ndef broken(:\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			path := filepath.Join(root, "tests", tt.file)
			require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			got, err := New(config.Default()).Scan(context.Background(), root)
			require.NoError(t, err)
			if !tt.flagged {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, finding.P1, got[0].Priority)
			assert.Equal(t, finding.ThreadSafety, got[0].Category)
			assert.Equal(t, path, got[0].File)
			assert.Nil(t, got[0].Line)
			assert.NoError(t, got[0].Validate())
		})
	}
}

func TestCustomMarkers(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "test_async.py"), []byte("import asyncio\n"), 0o644))

	cfg := config.Default()
	cfg.ConcurrencyMarkers = []string{"asyncio"}
	got, err := New(cfg).Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
