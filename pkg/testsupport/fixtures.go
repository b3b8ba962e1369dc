package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-record-loader/record"
)

// LoadFixture loads test data from a fixture file.
// The path is relative to the test package directory.
func LoadFixture(t *testing.T, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture from %s: %v", path, err)
	}

	return data
}

// LoadFixtureJSON loads JSON test data from a fixture file and unmarshals it.
// The path is relative to the test package directory.
func LoadFixtureJSON(t *testing.T, path string, dest any) {
	t.Helper()

	data := LoadFixture(t, path)
	if err := json.Unmarshal(data, dest); err != nil {
		t.Fatalf("failed to unmarshal JSON fixture from %s: %v", path, err)
	}
}

// FixturePath constructs a path to a fixture file relative to the testdata directory.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}

// Scenario describes a batch load: the requested references, what the
// cache holds and what live retrieval returns, and the expected output.
type Scenario struct {
	Name      string           `json:"name"`
	Policy    string           `json:"policy"`
	Cacheable []string         `json:"cacheable"`
	Request   []string         `json:"request"`
	Cached    []map[string]any `json:"cached"`
	Live      []map[string]any `json:"live"`
	Expected  []Expectation    `json:"expected"`
}

// Expectation is the expected record at one output position.
type Expectation struct {
	Source  string `json:"source"`
	ID      string `json:"id"`
	Missing bool   `json:"missing"`
	Cached  bool   `json:"cached"`
}

// LoadScenario loads a Scenario fixture.
func LoadScenario(t *testing.T, path string) Scenario {
	t.Helper()

	var s Scenario
	LoadFixtureJSON(t, path, &s)
	if len(s.Request) != len(s.Expected) {
		t.Fatalf("scenario %s: %d requests but %d expectations", path, len(s.Request), len(s.Expected))
	}
	return s
}

// Documents builds documents from fixture rows. Each row needs a "source"
// and an "id"; the remaining keys become document fields.
func Documents(t *testing.T, rows []map[string]any) []*record.Document {
	t.Helper()

	docs := make([]*record.Document, 0, len(rows))
	for _, row := range rows {
		source, _ := row["source"].(string)
		id, _ := row["id"].(string)
		if source == "" || id == "" {
			t.Fatalf("fixture row without source or id: %v", row)
		}
		fields := make(map[string]any, len(row))
		for k, v := range row {
			if k != "source" {
				fields[k] = v
			}
		}
		docs = append(docs, record.NewDocument(source, id, fields))
	}
	return docs
}
