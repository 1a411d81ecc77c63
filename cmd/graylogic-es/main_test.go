package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nerrad567/gray-logic-entities/internal/auth"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const validRecords = `
- platform: switch
  data:
    switch_address: 1/1/1
- platform: binary_sensor
  data:
    ga_sensor: [2/1/1, 2/1/2]
    sync_state: expire 20
`

func TestValidate_Valid(t *testing.T) {
	path := writeFile(t, "ok.yaml", validRecords)

	out, err := execute(t, "", "validate", path)
	if err != nil {
		t.Fatalf("validate error = %v, output:\n%s", err, out)
	}
	if strings.Count(out, ": ok (") != 2 {
		t.Errorf("output = %q, want two ok lines", out)
	}
}

func TestValidate_JSONNormalises(t *testing.T) {
	out, err := execute(t, `{"platform":"switch","data":{"switch_address":"1/1/1","sync_state":"30"}}`,
		"validate", "--json", "-")
	if err != nil {
		t.Fatalf("validate error = %v", err)
	}

	var results []validationResult
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("unmarshal %q: %v", out, err)
	}
	if len(results) != 1 || !results[0].Valid {
		t.Fatalf("results = %+v", results)
	}
	data, _ := results[0].Record["data"].(map[string]any)
	if data["sync_state"] != float64(30) || data["invert"] != false {
		t.Errorf("normalised data = %v", data)
	}
}

func TestValidate_Invalid(t *testing.T) {
	path := writeFile(t, "bad.yaml", `
- platform: switch
  data:
    switch_address: 1/1/1
- platform: switch
  data:
    switch_address: 1/1/1
    device_class: kettle
- platform: fan
  data: {}
`)

	out, err := execute(t, "", "validate", "--json", path)
	if !errors.Is(err, errInvalidRecords) {
		t.Fatalf("error = %v, want errInvalidRecords", err)
	}

	var results []validationResult
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("unmarshal %q: %v", out, err)
	}
	want := []struct {
		valid bool
		field string
	}{
		{valid: true},
		{valid: false, field: "data.device_class"},
		{valid: false, field: "platform"},
	}
	if len(results) != len(want) {
		t.Fatalf("got %d results, want %d", len(results), len(want))
	}
	for i, w := range want {
		if results[i].Valid != w.valid || results[i].Field != w.field {
			t.Errorf("result %d = %+v, want valid=%v field=%q", i, results[i], w.valid, w.field)
		}
	}
}

func TestValidate_BadDocument(t *testing.T) {
	path := writeFile(t, "scalar.yaml", "just a string\n")
	if _, err := execute(t, "", "validate", path); err == nil {
		t.Error("validate should fail for a scalar document")
	}
	if _, err := execute(t, "", "validate", filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("validate should fail for a missing file")
	}
	if _, err := execute(t, "", "validate"); err == nil {
		t.Error("validate should require a file argument")
	}
}

func TestPlatforms(t *testing.T) {
	out, err := execute(t, "", "platforms")
	if err != nil {
		t.Fatalf("platforms error = %v", err)
	}
	for _, want := range []string{"binary_sensor", "switch", "ga_sensor", "switch_address", "required"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, "", "platforms", "--json", "switch")
	if err != nil {
		t.Fatalf("platforms switch error = %v", err)
	}
	var infos []struct {
		Platform string `json:"platform"`
	}
	if err := json.Unmarshal([]byte(out), &infos); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(infos) != 1 || infos[0].Platform != "switch" {
		t.Errorf("infos = %+v", infos)
	}

	if _, err := execute(t, "", "platforms", "fan"); err == nil {
		t.Error("unknown platform should fail")
	}
}

func TestImport(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "es.db")
	path := writeFile(t, "ok.yaml", validRecords)

	out, err := execute(t, "", "import", "--db", dbPath, path)
	if err != nil {
		t.Fatalf("import error = %v, output:\n%s", err, out)
	}
	if !strings.Contains(out, "imported 2 entities") {
		t.Errorf("output = %q", out)
	}
	if strings.Count(out, "knx_es_") != 2 {
		t.Errorf("expected two generated unique IDs in %q", out)
	}
}

func TestImport_AllOrNothing(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "es.db")
	bad := writeFile(t, "bad.yaml", validRecords+"- platform: switch\n  data: {}\n")

	if _, err := execute(t, "", "import", "--db", dbPath, bad); err == nil {
		t.Fatal("import should fail when a record is invalid")
	}

	good := writeFile(t, "ok.yaml", `{"platform":"switch","data":{"switch_address":"1/1/1"}}`)
	out, err := execute(t, "", "import", "--db", dbPath, good)
	if err != nil {
		t.Fatalf("import error = %v", err)
	}
	if !strings.Contains(out, "imported 1 entities") {
		t.Errorf("output = %q, want only the new record imported", out)
	}
}

func TestHashPassword(t *testing.T) {
	out, err := execute(t, "correct-horse\n", "hash-password")
	if err != nil {
		t.Fatalf("hash-password error = %v", err)
	}
	hash := strings.TrimSpace(out)
	ok, err := auth.VerifyPassword("correct-horse", hash)
	if err != nil || !ok {
		t.Errorf("VerifyPassword(%q) = %v, %v", hash, ok, err)
	}

	if _, err := execute(t, "\n", "hash-password"); err == nil {
		t.Error("empty password should fail")
	}
}
