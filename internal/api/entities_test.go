package api

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-entities/internal/entitystore"
)

const switchBody = `{"platform":"switch","data":{"name":"Kitchen","switch_address":"1/1/1"}}`

func createEntity(t *testing.T, srv *Server, body string) entitystore.Entry {
	t.Helper()
	w := do(t, srv, http.MethodPost, "/api/v1/entity-store", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body: %s", w.Code, w.Body.String())
	}
	var entry entitystore.Entry
	decodeBody(t, w, &entry)
	return entry
}

func TestCreateAndGetEntity(t *testing.T) {
	srv, _ := testServer(t)

	entry := createEntity(t, srv, switchBody)
	if entry.UniqueID == "" || entry.Platform != "switch" {
		t.Fatalf("created entry = %+v", entry)
	}
	addrs, _ := entry.Data["switch_address"].([]any)
	if len(addrs) != 1 || addrs[0] != "1/1/1" {
		t.Errorf("switch_address = %v, want [1/1/1]", entry.Data["switch_address"])
	}
	if entry.Data["respond_to_read"] != false {
		t.Errorf("default respond_to_read not applied: %v", entry.Data)
	}

	w := do(t, srv, http.MethodGet, "/api/v1/entity-store/"+entry.UniqueID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var got entitystore.Entry
	decodeBody(t, w, &got)
	if got.UniqueID != entry.UniqueID || got.Data["name"] != "Kitchen" {
		t.Errorf("get = %+v", got)
	}
}

func TestCreateEntity_ValidationErrors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{name: "unknown platform", body: `{"platform":"fan","data":{}}`, wantField: "platform"},
		{name: "missing data", body: `{"platform":"switch"}`, wantField: "data"},
		{name: "missing address", body: `{"platform":"switch","data":{}}`, wantField: "data.switch_address"},
		{name: "bad device class", body: `{"platform":"switch","data":{"switch_address":"1/1/1","device_class":"kettle"}}`, wantField: "data.device_class"},
		{name: "bad sync state", body: `{"platform":"switch","data":{"switch_address":"1/1/1","sync_state":"sometimes"}}`, wantField: "data.sync_state"},
		{name: "extra field", body: `{"platform":"switch","data":{"switch_address":"1/1/1","colour":"red"}}`, wantField: "data.colour"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, store := testServer(t)

			w := do(t, srv, http.MethodPost, "/api/v1/entity-store", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400; body: %s", w.Code, w.Body.String())
			}
			var resp Error
			decodeBody(t, w, &resp)
			if resp.Code != ErrCodeValidation {
				t.Errorf("code = %q, want %q", resp.Code, ErrCodeValidation)
			}
			if resp.Field != tt.wantField {
				t.Errorf("field = %q, want %q", resp.Field, tt.wantField)
			}
			if store.Count() != 0 {
				t.Errorf("invalid entity stored")
			}
		})
	}
}

func TestCreateEntity_InvalidJSON(t *testing.T) {
	srv, _ := testServer(t)

	for _, body := range []string{`{`, `null`, `[1,2]`} {
		w := do(t, srv, http.MethodPost, "/api/v1/entity-store", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, w.Code)
		}
	}
}

func TestCreateEntity_PermissiveCategory(t *testing.T) {
	srv, _ := testServer(t)

	entry := createEntity(t, srv, `{"platform":"switch","data":{"switch_address":"1/1/1","entity_category":"bogus"}}`)
	if v, ok := entry.Data["entity_category"]; !ok || v != nil {
		t.Errorf("entity_category = %v (present %v), want null", v, ok)
	}
}

func TestListEntities(t *testing.T) {
	srv, _ := testServer(t)
	createEntity(t, srv, switchBody)
	createEntity(t, srv, `{"platform":"binary_sensor","data":{"ga_sensor":"2/1/1","device_class":"motion"}}`)

	tests := []struct {
		query string
		code  int
		count int
	}{
		{query: "", code: http.StatusOK, count: 2},
		{query: "?platform=switch", code: http.StatusOK, count: 1},
		{query: "?platform=binary_sensor", code: http.StatusOK, count: 1},
		{query: "?platform=fan", code: http.StatusBadRequest},
	}
	for _, tt := range tests {
		w := do(t, srv, http.MethodGet, "/api/v1/entity-store"+tt.query, "")
		if w.Code != tt.code {
			t.Errorf("%q: status = %d, want %d", tt.query, w.Code, tt.code)
			continue
		}
		if tt.code != http.StatusOK {
			continue
		}
		var resp struct {
			Count int `json:"count"`
		}
		decodeBody(t, w, &resp)
		if resp.Count != tt.count {
			t.Errorf("%q: count = %d, want %d", tt.query, resp.Count, tt.count)
		}
	}
}

func TestUpdateEntity(t *testing.T) {
	srv, _ := testServer(t)
	entry := createEntity(t, srv, switchBody)
	path := "/api/v1/entity-store/" + entry.UniqueID

	w := do(t, srv, http.MethodPut, path, `{"platform":"switch","data":{"name":"Hall","switch_address":["1/1/2","1/1/3"]}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body: %s", w.Code, w.Body.String())
	}
	var updated entitystore.Entry
	decodeBody(t, w, &updated)
	if updated.Data["name"] != "Hall" {
		t.Errorf("name = %v, want Hall", updated.Data["name"])
	}
	if !updated.CreatedAt.Equal(entry.CreatedAt) {
		t.Errorf("CreatedAt changed: %v -> %v", entry.CreatedAt, updated.CreatedAt)
	}

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{name: "platform change", path: path, body: `{"platform":"binary_sensor","data":{"ga_sensor":"2/1/1"}}`, want: http.StatusNotFound},
		{name: "unknown id", path: "/api/v1/entity-store/knx_es_missing", body: switchBody, want: http.StatusNotFound},
		{name: "mismatched id", path: path, body: `{"unique_id":"other","platform":"switch","data":{"switch_address":"1/1/1"}}`, want: http.StatusBadRequest},
		{name: "invalid data", path: path, body: `{"platform":"switch","data":{"switch_address":"99/99/99"}}`, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, http.MethodPut, tt.path, tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d; body: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestDeleteEntity(t *testing.T) {
	srv, store := testServer(t)
	entry := createEntity(t, srv, switchBody)
	path := "/api/v1/entity-store/" + entry.UniqueID

	if w := do(t, srv, http.MethodDelete, path, ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	if store.Count() != 0 {
		t.Errorf("Count() = %d after delete", store.Count())
	}
	if w := do(t, srv, http.MethodGet, path, ""); w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", w.Code)
	}
	if w := do(t, srv, http.MethodDelete, path, ""); w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestValidateEntity(t *testing.T) {
	srv, store := testServer(t)

	w := do(t, srv, http.MethodPost, "/api/v1/entity-store/validate",
		`{"platform":"binary_sensor","data":{"ga_sensor":"2/1/1","sync_state":"30","context_timeout":2.5}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("validate status = %d, body: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Valid  bool           `json:"valid"`
		Record map[string]any `json:"record"`
	}
	decodeBody(t, w, &resp)
	if !resp.Valid {
		t.Error("valid = false")
	}
	data, _ := resp.Record["data"].(map[string]any)
	if data["sync_state"] != float64(30) {
		t.Errorf("sync_state = %v, want 30", data["sync_state"])
	}
	if store.Count() != 0 {
		t.Error("validate stored an entity")
	}

	w = do(t, srv, http.MethodPost, "/api/v1/entity-store/validate",
		`{"platform":"binary_sensor","data":{"ga_sensor":"2/1/1","context_timeout":11}}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("out of range context_timeout status = %d, want 400", w.Code)
	}
}

func TestSchemaEndpoints(t *testing.T) {
	srv, _ := testServer(t)

	w := do(t, srv, http.MethodGet, "/api/v1/entity-store/schema", "")
	if w.Code != http.StatusOK {
		t.Fatalf("schema status = %d", w.Code)
	}
	var all struct {
		Platforms []struct {
			Platform string `json:"platform"`
		} `json:"platforms"`
	}
	decodeBody(t, w, &all)
	if len(all.Platforms) != 2 || all.Platforms[0].Platform != "binary_sensor" || all.Platforms[1].Platform != "switch" {
		t.Errorf("platforms = %+v", all.Platforms)
	}

	w = do(t, srv, http.MethodGet, "/api/v1/entity-store/schema/switch", "")
	if w.Code != http.StatusOK {
		t.Fatalf("switch schema status = %d", w.Code)
	}
	var sw struct {
		Fields []struct {
			Name     string `json:"name"`
			Required bool   `json:"required"`
		} `json:"fields"`
	}
	decodeBody(t, w, &sw)
	required := 0
	for _, f := range sw.Fields {
		if f.Required {
			required++
			if f.Name != "switch_address" {
				t.Errorf("unexpected required field %q", f.Name)
			}
		}
	}
	if required != 1 {
		t.Errorf("required fields = %d, want 1", required)
	}

	if w := do(t, srv, http.MethodGet, "/api/v1/entity-store/schema/fan", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown platform schema status = %d, want 404", w.Code)
	}
}

func TestEntityChangeBroadcast(t *testing.T) {
	srv, _ := testServer(t)

	client := newTestClient(srv.hub, ChannelEntityStore)
	srv.hub.Register(client)

	entry := createEntity(t, srv, switchBody)

	select {
	case raw := <-client.send:
		var msg struct {
			EventType string             `json:"event_type"`
			Payload   entitystore.Change `json:"payload"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.EventType != ChannelEntityStore {
			t.Errorf("event_type = %q", msg.EventType)
		}
		if msg.Payload.Kind != entitystore.ChangeCreated || msg.Payload.Entry.UniqueID != entry.UniqueID {
			t.Errorf("payload = %+v", msg.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for entity broadcast")
	}
}
