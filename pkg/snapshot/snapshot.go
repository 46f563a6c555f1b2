package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

// UpdateEnv writes the golden files instead of comparing against them when set
const UpdateEnv = "UPDATE_SNAPSHOTS"

var (
	funcCount   = make(map[string]int)
	funcCountMu sync.Mutex
)

// testingT is the part of *testing.T the comparison needs
type testingT interface {
	Helper()
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
	Logf(format string, args ...interface{})
}

// ValidateSnapshot compares obj, as indented JSON, to a golden file in testdata/
// The file is named after the calling test and the number of prior calls it made.
// A missing golden file fails the test unless UPDATE_SNAPSHOTS is set.
func ValidateSnapshot(t *testing.T, obj interface{}, depth int, msgAndArgs ...interface{}) {
	t.Helper()
	validate(t, goldenFile(1+depth), obj, os.Getenv(UpdateEnv) != "", msgAndArgs...)
}

func validate(t testingT, filename string, obj interface{}, update bool, msgAndArgs ...interface{}) {
	t.Helper()

	objJSON, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		t.Fatalf("could not marshal snapshot: %v", err)
		return
	}

	if update {
		write(t, filename, objJSON)
		return
	}

	expects, err := os.ReadFile(filename)
	if err != nil {
		t.Fatalf("could not read %s, run with %s=1 to create it: %v", filename, UpdateEnv, err)
		return
	}

	if !assert.Equal(t, strings.Trim(string(expects), "\n"), strings.Trim(string(objJSON), "\n"), msgAndArgs...) {
		t.Logf("snapshot %s", filename)
	}
}

func goldenFile(skip int) string {
	pc, _, _, _ := runtime.Caller(skip + 1)
	funcName := filepath.Base(runtime.FuncForPC(pc).Name())

	funcCountMu.Lock()
	call := funcCount[funcName]
	funcCount[funcName] = call + 1
	funcCountMu.Unlock()

	return filepath.Join("testdata", fmt.Sprintf("%s-%d.json", funcName, call))
}

func write(t testingT, filename string, data []byte) {
	t.Helper()

	logrus.WithField("filename", filename).Info("writing snapshot file")
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		t.Fatalf("could not create %s: %v", filepath.Dir(filename), err)
		return
	}

	if err := os.WriteFile(filename, append(data, '\n'), 0644); err != nil {
		t.Fatalf("could not write %s: %v", filename, err)
	}
}
