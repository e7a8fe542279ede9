package githubtasks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shurcooL/githubv4"
)

// mockGraphQLServer replies to sequential GraphQL POSTs with the canned
// responses, one per request in the order received.
func mockGraphQLServer(t *testing.T, responses ...map[string]any) *httptest.Server {
	t.Helper()
	call := 0
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if call >= len(responses) {
			t.Fatalf("unexpected GraphQL call %d, only %d responses configured", call+1, len(responses))
		}
		resp := responses[call]
		call++
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
}

func newTestClient(serverURL string) *ProjectsClient {
	return &ProjectsClient{
		client:     githubv4.NewEnterpriseClient(serverURL, http.DefaultClient),
		ctx:        context.Background(),
		owner:      "acme",
		repo:       "widgets",
		projectNum: 1,
		fieldName:  "Target Date",
	}
}

func projectIDResponse() map[string]any {
	return map[string]any{
		"data": map[string]any{
			"repository": map[string]any{
				"projectV2": map[string]any{"id": "PVT_kw"},
			},
		},
	}
}

func TestGetDateField_Found(t *testing.T) {
	server := mockGraphQLServer(t,
		projectIDResponse(),
		map[string]any{
			"data": map[string]any{
				"node": map[string]any{
					"fields": map[string]any{
						"nodes": []map[string]any{
							{"id": "PVTF_due", "name": "Target Date"},
							{"id": "PVTF_other", "name": "Estimate"},
						},
					},
				},
			},
		},
	)
	defer server.Close()

	client := newTestClient(server.URL)
	field, err := client.GetDateField()
	if err != nil {
		t.Fatalf("GetDateField() error: %v", err)
	}
	if field.ID != "PVTF_due" || field.Name != "Target Date" {
		t.Errorf("GetDateField() = %+v, want ID=PVTF_due Name=Target Date", field)
	}
}

func TestGetDateField_NotFound(t *testing.T) {
	server := mockGraphQLServer(t,
		projectIDResponse(),
		map[string]any{
			"data": map[string]any{
				"node": map[string]any{
					"fields": map[string]any{
						"nodes": []map[string]any{
							{"id": "PVTF_other", "name": "Estimate"},
						},
					},
				},
			},
		},
	)
	defer server.Close()

	client := newTestClient(server.URL)
	if _, err := client.GetDateField(); err == nil {
		t.Fatal("GetDateField() expected error for missing field, got nil")
	}
}

func TestGetOrAddItem_ExistingMember(t *testing.T) {
	server := mockGraphQLServer(t,
		projectIDResponse(), // findItem -> getProjectID
		map[string]any{ // findItem -> items query, match on first page
			"data": map[string]any{
				"node": map[string]any{
					"items": map[string]any{
						"nodes": []map[string]any{
							{"id": "PVTI_1", "content": map[string]any{"number": 42}},
						},
						"pageInfo": map[string]any{"hasNextPage": false, "endCursor": ""},
					},
				},
			},
		},
	)
	defer server.Close()

	client := newTestClient(server.URL)
	itemID, err := client.GetOrAddItem(42)
	if err != nil {
		t.Fatalf("GetOrAddItem() error: %v", err)
	}
	if itemID != "PVTI_1" {
		t.Errorf("GetOrAddItem() = %q, want PVTI_1", itemID)
	}
}

func TestGetOrAddItem_AddsWhenMissing(t *testing.T) {
	server := mockGraphQLServer(t,
		projectIDResponse(), // findItem -> getProjectID
		map[string]any{ // findItem -> items query, no match, no next page
			"data": map[string]any{
				"node": map[string]any{
					"items": map[string]any{
						"nodes":    []map[string]any{},
						"pageInfo": map[string]any{"hasNextPage": false, "endCursor": ""},
					},
				},
			},
		},
		map[string]any{ // getIssueNodeID
			"data": map[string]any{
				"repository": map[string]any{
					"issue": map[string]any{"id": "I_kwDO123"},
				},
			},
		},
		projectIDResponse(), // addIssueToProject -> getProjectID
		map[string]any{ // addIssueToProject mutation
			"data": map[string]any{
				"addProjectV2ItemById": map[string]any{
					"item": map[string]any{"id": "PVTI_new"},
				},
			},
		},
	)
	defer server.Close()

	client := newTestClient(server.URL)
	itemID, err := client.GetOrAddItem(99)
	if err != nil {
		t.Fatalf("GetOrAddItem() error: %v", err)
	}
	if itemID != "PVTI_new" {
		t.Errorf("GetOrAddItem() = %q, want PVTI_new", itemID)
	}
}

func TestUpdateDateField(t *testing.T) {
	server := mockGraphQLServer(t,
		projectIDResponse(),
		map[string]any{
			"data": map[string]any{
				"updateProjectV2ItemFieldValue": map[string]any{
					"projectV2Item": map[string]any{"id": "PVTI_1"},
				},
			},
		},
	)
	defer server.Close()

	client := newTestClient(server.URL)
	if err := client.UpdateDateField("PVTI_1", "PVTF_due", "2026-08-15"); err != nil {
		t.Fatalf("UpdateDateField() error: %v", err)
	}
}

func TestUpdateDateField_InvalidDate(t *testing.T) {
	client := newTestClient("http://unused.invalid")
	if err := client.UpdateDateField("PVTI_1", "PVTF_due", "not-a-date"); err == nil {
		t.Fatal("UpdateDateField() expected error for malformed date, got nil")
	}
}

func TestGetDateValue_Found(t *testing.T) {
	server := mockGraphQLServer(t,
		projectIDResponse(),
		map[string]any{
			"data": map[string]any{
				"node": map[string]any{
					"items": map[string]any{
						"nodes": []map[string]any{
							{
								"content": map[string]any{"number": 42},
								"fieldValues": map[string]any{
									"nodes": []map[string]any{
										{"field": map[string]any{"id": "PVTF_due"}, "date": "2026-08-15"},
									},
								},
							},
						},
						"pageInfo": map[string]any{"hasNextPage": false, "endCursor": ""},
					},
				},
			},
		},
	)
	defer server.Close()

	client := newTestClient(server.URL)
	date, err := client.GetDateValue(42, "PVTF_due")
	if err != nil {
		t.Fatalf("GetDateValue() error: %v", err)
	}
	if date != "2026-08-15" {
		t.Errorf("GetDateValue() = %q, want 2026-08-15", date)
	}
}

func TestGetDateValue_NoIssueMatch(t *testing.T) {
	server := mockGraphQLServer(t,
		projectIDResponse(),
		map[string]any{
			"data": map[string]any{
				"node": map[string]any{
					"items": map[string]any{
						"nodes":    []map[string]any{},
						"pageInfo": map[string]any{"hasNextPage": false, "endCursor": ""},
					},
				},
			},
		},
	)
	defer server.Close()

	client := newTestClient(server.URL)
	date, err := client.GetDateValue(42, "PVTF_due")
	if err != nil {
		t.Fatalf("GetDateValue() error: %v", err)
	}
	if date != "" {
		t.Errorf("GetDateValue() = %q, want empty string", date)
	}
}
