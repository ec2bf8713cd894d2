package repository

import (
	"reflect"
	"testing"

	"github.com/notifyhub/mailqueue/internal/domain"
)

func TestBuildListWhere(t *testing.T) {
	failed := domain.StatusFailed
	category := "progress_reminder"
	priority := 2

	tests := []struct {
		name      string
		filter    domain.ListFilter
		wantWhere string
		wantArgs  []any
	}{
		{"no filter", domain.ListFilter{}, "", nil},
		{"status only", domain.ListFilter{Status: &failed}, " WHERE status = $1", []any{failed}},
		{
			"all filters",
			domain.ListFilter{Status: &failed, Category: &category, Priority: &priority},
			" WHERE status = $1 AND category = $2 AND priority = $3",
			[]any{failed, category, priority},
		},
		{"priority placeholder starts at one", domain.ListFilter{Priority: &priority}, " WHERE priority = $1", []any{priority}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			where, args := buildListWhere(tc.filter)
			if where != tc.wantWhere {
				t.Fatalf("expected %q, got %q", tc.wantWhere, where)
			}
			if !reflect.DeepEqual(args, tc.wantArgs) {
				t.Fatalf("expected args %v, got %v", tc.wantArgs, args)
			}
		})
	}
}

func TestIsUUID(t *testing.T) {
	if !isUUID("3f2b8a4e-5c1d-4f6a-9b7e-2d8c0e1a4b6f") {
		t.Fatal("expected a valid uuid")
	}
	if isUUID("missing") {
		t.Fatal("expected a malformed id to be rejected")
	}
}
